// drm_ioctl.go - raw DRM ioctl encodings and wire structs
package main

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// DRM ioctl numbers, Linux x86_64/arm64 encoding:
//
//	_IO(type, nr)         = (type << 8) | nr
//	_IOR(type, nr, size)  = 0x80000000 | (size << 16) | (type << 8) | nr
//	_IOW(type, nr, size)  = 0x40000000 | (size << 16) | (type << 8) | nr
//	_IOWR(type, nr, size) = 0xC0000000 | (size << 16) | (type << 8) | nr
const (
	drmIoctlSetMaster          = 0x641e
	drmIoctlDropMaster         = 0x641f
	drmIoctlSetClientCap       = 0x4010640d
	drmIoctlModeGetResources   = 0xc04064a0
	drmIoctlModeGetCrtc        = 0xc06864a1
	drmIoctlModeSetCrtc        = 0xc06864a2
	drmIoctlModeCursor         = 0xc01c64a3
	drmIoctlModeGetEncoder     = 0xc01464a6
	drmIoctlModeGetConnector   = 0xc05064a7
	drmIoctlModeGetProperty    = 0xc04064aa
	drmIoctlModeGetPropBlob    = 0xc01064ac
	drmIoctlModeAddFb          = 0xc01c64ae
	drmIoctlModeRmFb           = 0xc00464af
	drmIoctlModeDirtyFb        = 0xc01864b1
	drmIoctlModeCreateDumb     = 0xc02064b2
	drmIoctlModeMapDumb        = 0xc01064b3
	drmIoctlModeDestroyDumb    = 0xc00464b4
	drmIoctlModeGetPlaneRes    = 0xc01064b5
	drmIoctlModeGetPlane       = 0xc02064b6
	drmIoctlModeSetPlane       = 0xc03064b7
	drmIoctlModeObjGetProps    = 0xc02064b9
	drmIoctlModeObjSetProp     = 0xc01864ba
	drmIoctlGetCap             = 0xc010640c
	drmClientCapUniversalPlanes = 2
	drmClientCapAtomic          = 3
)

// DRM connector connection states.
const (
	drmModeConnected    = 1
	drmModeDisconnected = 2
	drmModeUnknownConn  = 3
)

// DRM connector type identifiers relevant to internal-panel detection.
const (
	drmModeConnectorLVDS = 7
	drmModeConnectorDSI  = 16
	drmModeConnectorEDP  = 14
)

const drmModePropBlob = 1 << 4

// drmVersion mirrors struct drm_version; only the fields we read are kept
// at full width, Name is read through a second ioctl call.
type drmVersion struct {
	VersionMajor    int32
	VersionMinor    int32
	VersionPatch    int32
	NameLen         uint64
	NamePtr         uint64
	DateLen         uint64
	DatePtr         uint64
	DescLen         uint64
	DescPtr         uint64
	_               [4]byte // padding to match kernel struct alignment on amd64
}

type drmModeCardRes struct {
	FbIDPtr         uint64
	CrtcIDPtr       uint64
	ConnectorIDPtr  uint64
	EncoderIDPtr    uint64
	CountFbs        uint32
	CountCrtcs      uint32
	CountConnectors uint32
	CountEncoders   uint32
	MinWidth        uint32
	MaxWidth        uint32
	MinHeight       uint32
	MaxHeight       uint32
}

type drmModeModeInfo struct {
	Clock      uint32
	Hdisplay   uint16
	HsyncStart uint16
	HsyncEnd   uint16
	Htotal     uint16
	Hskew      uint16
	Vdisplay   uint16
	VsyncStart uint16
	VsyncEnd   uint16
	Vtotal     uint16
	Vscan      uint16
	Vrefresh   uint32
	Flags      uint32
	Type       uint32
	Name       [32]byte
}

const drmModeTypePreferred = 1 << 3

type drmModeGetConnector struct {
	EncodersPtr     uint64
	ModesPtr        uint64
	PropsPtr        uint64
	PropValuesPtr   uint64
	CountModes      uint32
	CountProps      uint32
	CountEncoders   uint32
	EncoderID       uint32
	ConnectorID     uint32
	ConnectorType   uint32
	ConnectorTypeID uint32
	Connection      uint32
	MmWidth         uint32
	MmHeight        uint32
	Subpixel        uint32
	Pad             uint32
}

type drmModeGetEncoder struct {
	EncoderID     uint32
	EncoderType   uint32
	CrtcID        uint32
	PossibleCrtcs uint32
	PossibleClones uint32
}

type drmModeCrtc struct {
	SetConnectorsPtr uint64
	CountConnectors  uint32
	CrtcID           uint32
	FbID             uint32
	X                uint32
	Y                uint32
	GammaSize        uint32
	ModeValid        uint32
	Mode             drmModeModeInfo
}

type drmModeCreateDumb struct {
	Height uint32
	Width  uint32
	Bpp    uint32
	Flags  uint32
	Handle uint32
	Pitch  uint32
	Size   uint64
}

type drmModeMapDumb struct {
	Handle uint32
	Pad    uint32
	Offset uint64
}

type drmModeFbCmd struct {
	FbID   uint32
	Width  uint32
	Height uint32
	Pitch  uint32
	Bpp    uint32
	Depth  uint32
	Handle uint32
}

type drmModeGetPlaneRes struct {
	PlaneIDPtr uint64
	CountPlanes uint32
}

type drmModeGetPlane struct {
	PlaneID        uint32
	CrtcID         uint32
	FbID           uint32
	PossibleCrtcs  uint32
	GammaSize      uint32
	CountFormatTypes uint32
	FormatTypePtr  uint64
}

type drmModeSetPlane struct {
	PlaneID uint32
	CrtcID  uint32
	FbID    uint32
	Flags   uint32

	CrtcX, CrtcY           int32
	CrtcW, CrtcH           uint32
	SrcX, SrcY, SrcH, SrcW uint32
}

type drmModeObjGetProperties struct {
	PropsPtr      uint64
	PropValuesPtr uint64
	CountProps    uint32
	ObjID         uint32
	ObjType       uint32
}

type drmModeGetProperty struct {
	ValuesPtr uint64
	EnumsPtr  uint64
	PropID    uint32
	Flags     uint32
	Name      [32]byte
	CountValues uint32
	CountEnums  uint32
}

type drmModeGetPropBlobRec struct {
	BlobID uint32
	Length uint32
	Data   uint64
}

type drmModeFbDirtyCmd struct {
	FbID      uint32
	Flags     uint32
	Color     uint32
	NumClips  uint32
	ClipsPtr  uint64
}

type drmSetClientCap struct {
	Capability uint64
	Value      uint64
}

type drmGetCap struct {
	Capability uint64
	Value      uint64
}

func drmIoctl(fd uintptr, req uintptr, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, req, uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}

func drmSetMaster(f *os.File) error {
	return drmIoctl(f.Fd(), drmIoctlSetMaster, nil)
}

func drmDropMaster(f *os.File) error {
	return drmIoctl(f.Fd(), drmIoctlDropMaster, nil)
}

func drmSetClientCapability(f *os.File, cap uint64, value uint64) error {
	req := drmSetClientCap{Capability: cap, Value: value}
	return drmIoctl(f.Fd(), drmIoctlSetClientCap, unsafe.Pointer(&req))
}

// drmGetVersionName fetches just the driver name field from DRM_IOCTL_VERSION.
// Implemented as two calls: first with NameLen=0 to learn the length, then
// with a buffer sized to match, the same two-call shape GETRESOURCES uses.
func drmGetVersionName(f *os.File) (string, error) {
	var v drmVersion
	if err := drmIoctl(f.Fd(), 0xc0406400, unsafe.Pointer(&v)); err != nil {
		return "", fmt.Errorf("DRM_IOCTL_VERSION (probe): %w", err)
	}
	if v.NameLen == 0 {
		return "", nil
	}
	buf := make([]byte, v.NameLen)
	v2 := drmVersion{NameLen: v.NameLen, NamePtr: uint64(uintptr(unsafe.Pointer(&buf[0])))}
	if err := drmIoctl(f.Fd(), 0xc0406400, unsafe.Pointer(&v2)); err != nil {
		return "", fmt.Errorf("DRM_IOCTL_VERSION (fill): %w", err)
	}
	return string(buf), nil
}

// drmGetResources performs the standard two-call GETRESOURCES dance:
// once to learn counts, once with arrays sized to match.
func drmGetResources(f *os.File) (crtcIDs, connectorIDs, encoderIDs []uint32, err error) {
	var res drmModeCardRes
	if err := drmIoctl(f.Fd(), drmIoctlModeGetResources, unsafe.Pointer(&res)); err != nil {
		return nil, nil, nil, fmt.Errorf("MODE_GETRESOURCES (count): %w", err)
	}
	if res.CountCrtcs == 0 || res.CountConnectors == 0 {
		return nil, nil, nil, fmt.Errorf("no crtcs or connectors (crtcs=%d connectors=%d)", res.CountCrtcs, res.CountConnectors)
	}

	crtcIDs = make([]uint32, res.CountCrtcs)
	connectorIDs = make([]uint32, res.CountConnectors)
	encoderIDs = make([]uint32, res.CountEncoders)

	res2 := drmModeCardRes{
		CrtcIDPtr:       ptrOf(crtcIDs),
		ConnectorIDPtr:  ptrOf(connectorIDs),
		CountCrtcs:      res.CountCrtcs,
		CountConnectors: res.CountConnectors,
	}
	if res.CountEncoders > 0 {
		res2.EncoderIDPtr = ptrOf(encoderIDs)
		res2.CountEncoders = res.CountEncoders
	}
	if err := drmIoctl(f.Fd(), drmIoctlModeGetResources, unsafe.Pointer(&res2)); err != nil {
		return nil, nil, nil, fmt.Errorf("MODE_GETRESOURCES (fill): %w", err)
	}
	return crtcIDs, connectorIDs, encoderIDs, nil
}

func drmGetConnector(f *os.File, connectorID uint32) (drmModeGetConnector, []drmModeModeInfo, []uint32, error) {
	var conn drmModeGetConnector
	conn.ConnectorID = connectorID
	if err := drmIoctl(f.Fd(), drmIoctlModeGetConnector, unsafe.Pointer(&conn)); err != nil {
		return conn, nil, nil, fmt.Errorf("MODE_GETCONNECTOR(%d) count: %w", connectorID, err)
	}

	modes := make([]drmModeModeInfo, conn.CountModes)
	encoders := make([]uint32, conn.CountEncoders)
	conn2 := drmModeGetConnector{ConnectorID: connectorID}
	if conn.CountModes > 0 {
		conn2.ModesPtr = ptrOf(modes)
		conn2.CountModes = conn.CountModes
	}
	if conn.CountEncoders > 0 {
		conn2.EncodersPtr = ptrOf(encoders)
		conn2.CountEncoders = conn.CountEncoders
	}
	if err := drmIoctl(f.Fd(), drmIoctlModeGetConnector, unsafe.Pointer(&conn2)); err != nil {
		return conn2, nil, nil, fmt.Errorf("MODE_GETCONNECTOR(%d) fill: %w", connectorID, err)
	}
	return conn2, modes, encoders, nil
}

func drmGetEncoder(f *os.File, encoderID uint32) (drmModeGetEncoder, error) {
	enc := drmModeGetEncoder{EncoderID: encoderID}
	if err := drmIoctl(f.Fd(), drmIoctlModeGetEncoder, unsafe.Pointer(&enc)); err != nil {
		return enc, fmt.Errorf("MODE_GETENCODER(%d): %w", encoderID, err)
	}
	return enc, nil
}

func drmGetCrtc(f *os.File, crtcID uint32) (drmModeCrtc, error) {
	crtc := drmModeCrtc{CrtcID: crtcID}
	if err := drmIoctl(f.Fd(), drmIoctlModeGetCrtc, unsafe.Pointer(&crtc)); err != nil {
		return crtc, fmt.Errorf("MODE_GETCRTC(%d): %w", crtcID, err)
	}
	return crtc, nil
}

func drmSetCrtc(f *os.File, crtcID, fbID uint32, connectorIDs []uint32, mode drmModeModeInfo) error {
	req := drmModeCrtc{
		CrtcID:          crtcID,
		FbID:            fbID,
		ModeValid:       1,
		Mode:            mode,
		CountConnectors: uint32(len(connectorIDs)),
	}
	if len(connectorIDs) > 0 {
		req.SetConnectorsPtr = ptrOf(connectorIDs)
	}
	if err := drmIoctl(f.Fd(), drmIoctlModeSetCrtc, unsafe.Pointer(&req)); err != nil {
		return fmt.Errorf("MODE_SETCRTC(%d): %w", crtcID, err)
	}
	return nil
}

// drmDisableCrtc clears a CRTC's fb (blanks it) without touching other CRTCs.
func drmDisableCrtc(f *os.File, crtcID uint32) error {
	req := drmModeCrtc{CrtcID: crtcID}
	if err := drmIoctl(f.Fd(), drmIoctlModeSetCrtc, unsafe.Pointer(&req)); err != nil {
		return fmt.Errorf("MODE_SETCRTC(disable %d): %w", crtcID, err)
	}
	return nil
}

func drmCreateDumb(f *os.File, width, height, bpp uint32) (drmModeCreateDumb, error) {
	req := drmModeCreateDumb{Width: width, Height: height, Bpp: bpp}
	if err := drmIoctl(f.Fd(), drmIoctlModeCreateDumb, unsafe.Pointer(&req)); err != nil {
		return req, fmt.Errorf("MODE_CREATE_DUMB: %w", err)
	}
	return req, nil
}

func drmAddFb(f *os.File, width, height, pitch, bpp, depth, handle uint32) (uint32, error) {
	req := drmModeFbCmd{Width: width, Height: height, Pitch: pitch, Bpp: bpp, Depth: depth, Handle: handle}
	if err := drmIoctl(f.Fd(), drmIoctlModeAddFb, unsafe.Pointer(&req)); err != nil {
		return 0, fmt.Errorf("MODE_ADDFB: %w", err)
	}
	return req.FbID, nil
}

func drmRmFb(f *os.File, fbID uint32) error {
	id := fbID
	if err := drmIoctl(f.Fd(), drmIoctlModeRmFb, unsafe.Pointer(&id)); err != nil {
		return fmt.Errorf("MODE_RMFB(%d): %w", fbID, err)
	}
	return nil
}

func drmDestroyDumb(f *os.File, handle uint32) error {
	h := handle
	if err := drmIoctl(f.Fd(), drmIoctlModeDestroyDumb, unsafe.Pointer(&h)); err != nil {
		return fmt.Errorf("MODE_DESTROY_DUMB(%d): %w", handle, err)
	}
	return nil
}

func drmMapDumb(f *os.File, handle uint32) (uint64, error) {
	req := drmModeMapDumb{Handle: handle}
	if err := drmIoctl(f.Fd(), drmIoctlModeMapDumb, unsafe.Pointer(&req)); err != nil {
		return 0, fmt.Errorf("MODE_MAP_DUMB(%d): %w", handle, err)
	}
	return req.Offset, nil
}

func drmDirtyFb(f *os.File, fbID uint32) error {
	req := drmModeFbDirtyCmd{FbID: fbID}
	if err := drmIoctl(f.Fd(), drmIoctlModeDirtyFb, unsafe.Pointer(&req)); err != nil {
		return fmt.Errorf("MODE_DIRTYFB(%d): %w", fbID, err)
	}
	return nil
}

func drmGetPlaneResources(f *os.File) ([]uint32, error) {
	var res drmModeGetPlaneRes
	if err := drmIoctl(f.Fd(), drmIoctlModeGetPlaneRes, unsafe.Pointer(&res)); err != nil {
		return nil, fmt.Errorf("MODE_GETPLANERESOURCES (count): %w", err)
	}
	if res.CountPlanes == 0 {
		return nil, nil
	}
	ids := make([]uint32, res.CountPlanes)
	res2 := drmModeGetPlaneRes{PlaneIDPtr: ptrOf(ids), CountPlanes: res.CountPlanes}
	if err := drmIoctl(f.Fd(), drmIoctlModeGetPlaneRes, unsafe.Pointer(&res2)); err != nil {
		return nil, fmt.Errorf("MODE_GETPLANERESOURCES (fill): %w", err)
	}
	return ids, nil
}

func drmGetPlane(f *os.File, planeID uint32) (drmModeGetPlane, error) {
	p := drmModeGetPlane{PlaneID: planeID}
	if err := drmIoctl(f.Fd(), drmIoctlModeGetPlane, unsafe.Pointer(&p)); err != nil {
		return p, fmt.Errorf("MODE_GETPLANE(%d): %w", planeID, err)
	}
	return p, nil
}

// drmDisablePlane clears a plane's fb/crtc assignment (used to disable
// non-primary planes attached to the console CRTC, per spec.md §4.1).
func drmDisablePlane(f *os.File, planeID uint32) error {
	req := drmModeSetPlane{PlaneID: planeID}
	if err := drmIoctl(f.Fd(), drmIoctlModeSetPlane, unsafe.Pointer(&req)); err != nil {
		return fmt.Errorf("MODE_SETPLANE(disable %d): %w", planeID, err)
	}
	return nil
}

func drmObjGetProperties(f *os.File, objID, objType uint32) ([]uint32, []uint64, error) {
	var req drmModeObjGetProperties
	req.ObjID, req.ObjType = objID, objType
	if err := drmIoctl(f.Fd(), drmIoctlModeObjGetProps, unsafe.Pointer(&req)); err != nil {
		return nil, nil, fmt.Errorf("MODE_OBJ_GETPROPERTIES (count): %w", err)
	}
	if req.CountProps == 0 {
		return nil, nil, nil
	}
	propIDs := make([]uint32, req.CountProps)
	values := make([]uint64, req.CountProps)
	req2 := drmModeObjGetProperties{
		ObjID: objID, ObjType: objType, CountProps: req.CountProps,
		PropsPtr: ptrOf(propIDs), PropValuesPtr: ptrOf(values),
	}
	if err := drmIoctl(f.Fd(), drmIoctlModeObjGetProps, unsafe.Pointer(&req2)); err != nil {
		return nil, nil, fmt.Errorf("MODE_OBJ_GETPROPERTIES (fill): %w", err)
	}
	return propIDs, values, nil
}

func drmGetProperty(f *os.File, propID uint32) (drmModeGetProperty, error) {
	p := drmModeGetProperty{PropID: propID}
	if err := drmIoctl(f.Fd(), drmIoctlModeGetProperty, unsafe.Pointer(&p)); err != nil {
		return p, fmt.Errorf("MODE_GETPROPERTY(%d): %w", propID, err)
	}
	return p, nil
}

func drmGetPropBlob(f *os.File, blobID uint32) ([]byte, error) {
	req := drmModeGetPropBlobRec{BlobID: blobID}
	if err := drmIoctl(f.Fd(), drmIoctlModeGetPropBlob, unsafe.Pointer(&req)); err != nil {
		return nil, fmt.Errorf("MODE_GETPROPBLOB(%d) count: %w", blobID, err)
	}
	if req.Length == 0 {
		return nil, nil
	}
	data := make([]byte, req.Length)
	req2 := drmModeGetPropBlobRec{BlobID: blobID, Length: req.Length, Data: ptrOf(data)}
	if err := drmIoctl(f.Fd(), drmIoctlModeGetPropBlob, unsafe.Pointer(&req2)); err != nil {
		return nil, fmt.Errorf("MODE_GETPROPBLOB(%d) fill: %w", blobID, err)
	}
	return data, nil
}

// ptrOf returns a kernel-ioctl-compatible pointer to a slice's backing array.
// Slices passed here must outlive the ioctl call (they do: callers keep
// them on the stack across the syscall).
func ptrOf[T any](s []T) uint64 {
	if len(s) == 0 {
		return 0
	}
	return uint64(uintptr(unsafe.Pointer(&s[0])))
}

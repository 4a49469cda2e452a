// drm_device.go - DRM device scan, scoring, and mode-set
package main

import (
	"fmt"
	"os"
	"time"
	"unsafe"
)

const (
	drmMaxMinor       = 16
	drmSetMasterRetry = 10
	drmSetMasterDelay = 100 * time.Millisecond
	edidSize          = 128
)

// drmMode is the subset of a connector's mode list we keep around.
type drmMode struct {
	info      drmModeModeInfo
	preferred bool
}

func (m drmMode) width() int  { return int(m.info.Hdisplay) }
func (m drmMode) height() int { return int(m.info.Vdisplay) }

// DrmDevice is one opened KMS fd along with the console output it drives.
// Attributes mirror spec.md §3 exactly.
type DrmDevice struct {
	file       *os.File
	driverName string

	consoleConnectorID uint32
	consoleCrtcID      uint32
	consoleMode        drmModeModeInfo
	isInternal         bool
	mmWidth, mmHeight  uint32
	edid               [edidSize]byte
	edidFound          bool

	otherConnectorIDs []uint32
	allCrtcIDs        []uint32

	refCount      int
	delayedRmFbID uint32
	haveDelayedFb bool
}

// drmScan iterates /dev/dri/cardN, keeping the highest-scoring usable device.
// Non-fatal: returns (nil, nil) if nothing usable is found, triggering the
// headless fallback described in spec.md §4.1's failure semantics.
func drmScan(lidClosed bool) (*DrmDevice, error) {
	var best *DrmDevice
	bestScore := minInt

	for minor := 0; minor < drmMaxMinor; minor++ {
		path := fmt.Sprintf("/dev/dri/card%d", minor)
		f, err := os.OpenFile(path, os.O_RDWR, 0)
		if err != nil {
			continue
		}

		if err := setMasterWithRetry(f); err != nil {
			logWarning("drm: card%d: SetMaster failed after retries: %v", minor, err)
		}

		dev, err := probeDevice(f)
		if err != nil {
			f.Close()
			continue
		}
		dev.file = f

		if err := dev.findMainMonitor(lidClosed); err != nil {
			f.Close()
			continue
		}
		if err := dev.readEdid(); err != nil {
			logWarning("drm: card%d: no EDID on connector %d: %v", minor, dev.consoleConnectorID, err)
		}

		score := dev.score()
		if score > bestScore {
			if best != nil {
				best.file.Close()
			}
			best = dev
			bestScore = score
		} else {
			f.Close()
		}
	}

	if best != nil {
		_ = drmDropMaster(best.file)
	}
	return best, nil
}

const minInt = -1 << 62

func setMasterWithRetry(f *os.File) error {
	var err error
	for attempt := 0; attempt < drmSetMasterRetry; attempt++ {
		if err = drmSetMaster(f); err == nil {
			return nil
		}
		time.Sleep(drmSetMasterDelay)
	}
	return err
}

// probeDevice fetches resources and rejects devices with no CRTCs/connectors
// (filters out vgem-style virtual devices per spec.md §4.1).
func probeDevice(f *os.File) (*DrmDevice, error) {
	crtcIDs, connectorIDs, _, err := drmGetResources(f)
	if err != nil {
		return nil, err
	}
	name, _ := drmGetVersionName(f)
	_ = drmSetClientCapability(f, drmClientCapUniversalPlanes, 1)
	return &DrmDevice{driverName: name, allCrtcIDs: crtcIDs, otherConnectorIDs: connectorIDs}, nil
}

// score implements spec.md §4.1's scoring function.
func (d *DrmDevice) score() int {
	s := 0
	if d.isInternal {
		s++
	}
	switch d.driverName {
	case "udl", "evdi":
		s--
	case "vgem":
		s -= 1_000_000
	}
	return s
}

var internalConnectorPriority = []uint32{drmModeConnectorLVDS, drmModeConnectorEDP, drmModeConnectorDSI}

// findMainMonitor implements spec.md §4.1's main-monitor selection: internal
// panels first (unless the lid is closed), else the first connected external
// connector; preferred mode if flagged, else mode 0.
func (d *DrmDevice) findMainMonitor(lidClosed bool) error {
	type candidate struct {
		connID   uint32
		conn     drmModeGetConnector
		modes    []drmModeModeInfo
		internal bool
	}
	var connected []candidate

	for _, id := range d.otherConnectorIDs {
		conn, modes, _, err := drmGetConnector(d.file, id)
		if err != nil || conn.Connection != drmModeConnected || len(modes) == 0 {
			continue
		}
		internal := isInternalConnectorType(conn.ConnectorType)
		connected = append(connected, candidate{id, conn, modes, internal})
	}
	if len(connected) == 0 {
		return fmt.Errorf("no connected connectors")
	}

	pick := func(wantInternal bool) *candidate {
		if wantInternal {
			for _, want := range internalConnectorPriority {
				for i := range connected {
					if connected[i].internal && connected[i].conn.ConnectorType == want {
						return &connected[i]
					}
				}
			}
			return nil
		}
		for i := range connected {
			if !connected[i].internal {
				return &connected[i]
			}
		}
		return nil
	}

	var chosen *candidate
	if !lidClosed {
		chosen = pick(true)
	}
	if chosen == nil {
		chosen = pick(false)
	}
	if chosen == nil && !lidClosed {
		chosen = &connected[0]
	}
	if chosen == nil {
		return fmt.Errorf("no usable connector (lid closed, only internal panels connected)")
	}

	d.consoleConnectorID = chosen.connID
	d.isInternal = chosen.internal
	d.mmWidth, d.mmHeight = chosen.conn.MmWidth, chosen.conn.MmHeight
	d.consoleMode = selectPreferredMode(chosen.modes)

	crtcID, err := d.findCrtcForConnector(chosen.connID, chosen.conn.EncoderID)
	if err != nil {
		return err
	}
	d.consoleCrtcID = crtcID
	return nil
}

func isInternalConnectorType(t uint32) bool {
	switch t {
	case drmModeConnectorLVDS, drmModeConnectorEDP, drmModeConnectorDSI:
		return true
	}
	return false
}

func selectPreferredMode(modes []drmModeModeInfo) drmModeModeInfo {
	for _, m := range modes {
		if m.Type&drmModeTypePreferred != 0 {
			return m
		}
	}
	return modes[0]
}

// findCrtcForConnector implements spec.md §4.1's CRTC selection: keep an
// existing encoder->CRTC path, else pick among possible CRTCs the one with
// the most attachable planes.
func (d *DrmDevice) findCrtcForConnector(connectorID, currentEncoderID uint32) (uint32, error) {
	if currentEncoderID != 0 {
		enc, err := drmGetEncoder(d.file, currentEncoderID)
		if err == nil && enc.CrtcID != 0 {
			return enc.CrtcID, nil
		}
	}

	_, _, encoderIDs, err := drmGetConnector(d.file, connectorID)
	if err != nil {
		return 0, err
	}

	planeCounts := d.crtcPlaneCounts()

	var bestCrtc uint32
	bestPlanes := -1
	for _, encID := range encoderIDs {
		enc, err := drmGetEncoder(d.file, encID)
		if err != nil {
			continue
		}
		for i, crtcID := range d.allCrtcIDs {
			if enc.PossibleCrtcs&(1<<uint(i)) == 0 {
				continue
			}
			if n := planeCounts[crtcID]; n > bestPlanes {
				bestPlanes = n
				bestCrtc = crtcID
			}
		}
	}
	if bestCrtc == 0 {
		return 0, fmt.Errorf("no crtc reachable for connector %d", connectorID)
	}
	return bestCrtc, nil
}

// crtcPlaneCounts counts, for each CRTC, how many planes may attach to it.
func (d *DrmDevice) crtcPlaneCounts() map[uint32]int {
	counts := make(map[uint32]int, len(d.allCrtcIDs))
	planeIDs, err := drmGetPlaneResources(d.file)
	if err != nil {
		return counts
	}
	for _, pid := range planeIDs {
		p, err := drmGetPlane(d.file, pid)
		if err != nil {
			continue
		}
		for i, crtcID := range d.allCrtcIDs {
			if p.PossibleCrtcs&(1<<uint(i)) != 0 {
				counts[crtcID]++
			}
		}
	}
	return counts
}

// drmIsPrimaryPlane reports whether a plane carries the "type" property
// value PRIMARY (1), looked up by iterating object properties.
func (d *DrmDevice) drmIsPrimaryPlane(planeID uint32) bool {
	const objTypePlane = 0xeeeeeeee
	propIDs, values, err := drmObjGetProperties(d.file, planeID, objTypePlane)
	if err != nil {
		return true // fail open: do not blindly disable an unrecognised plane
	}
	for i, propID := range propIDs {
		prop, err := drmGetProperty(d.file, propID)
		if err != nil {
			continue
		}
		if string(trimNulBytes(prop.Name[:])) == "type" {
			return values[i] == 1
		}
	}
	return true
}

func trimNulBytes(b []byte) []byte {
	for i, c := range b {
		if c == 0 {
			return b[:i]
		}
	}
	return b
}

// drmDisableNonPrimaryPlanes disables every plane attached to crtcID that is
// not the primary plane, per spec.md §4.1's mode-set step.
func (d *DrmDevice) drmDisableNonPrimaryPlanes(crtcID uint32) {
	planeIDs, err := drmGetPlaneResources(d.file)
	if err != nil {
		return
	}
	for _, pid := range planeIDs {
		p, err := drmGetPlane(d.file, pid)
		if err != nil || p.CrtcID != crtcID {
			continue
		}
		if d.drmIsPrimaryPlane(pid) {
			continue
		}
		if err := drmDisablePlane(d.file, pid); err != nil {
			logWarning("drm: failed to disable plane %d: %v", pid, err)
		}
	}
}

// setMode performs the mode-set described in spec.md §4.1: program the
// console CRTC with surf's fb, hide the cursor, disable non-primary planes
// on the console CRTC, and disable every other CRTC not already mirroring
// it. Schedules the previous fb for delayed removal.
func (d *DrmDevice) setMode(surf *VideoSurface) error {
	if err := drmSetMaster(d.file); err != nil {
		logWarning("drm: SetMaster before mode-set failed: %v", err)
	}

	if err := drmSetCrtc(d.file, d.consoleCrtcID, surf.fbID, []uint32{d.consoleConnectorID}, d.consoleMode); err != nil {
		return fmt.Errorf("mode-set failed: %w", err)
	}

	// best-effort: hide hw cursor (DRM_MODE_CURSOR_BO with a zero handle)
	cursor := struct {
		Flags, CrtcID         uint32
		X, Y                  int32
		Width, Height, Handle uint32
	}{Flags: 0x01, CrtcID: d.consoleCrtcID}
	_ = drmIoctl(d.file.Fd(), drmIoctlModeCursor, unsafe.Pointer(&cursor))
	d.drmDisableNonPrimaryPlanes(d.consoleCrtcID)

	for _, crtcID := range d.allCrtcIDs {
		if crtcID == d.consoleCrtcID {
			continue
		}
		crtc, err := drmGetCrtc(d.file, crtcID)
		if err != nil || crtc.FbID == 0 {
			continue
		}
		if crtc.CrtcID == d.consoleCrtcID {
			continue // mirrored output, leave it alone
		}
		if err := drmDisableCrtc(d.file, crtcID); err != nil {
			logWarning("drm: failed to disable crtc %d: %v", crtcID, err)
		}
	}

	d.scheduleDelayedRmFb(surf.fbID)
	return nil
}

// scheduleDelayedRmFb removes the *previous* delayed fb now and remembers
// the current one for next time, so handoffs stay free of a black flash
// (spec.md §4.1).
func (d *DrmDevice) scheduleDelayedRmFb(newFbID uint32) {
	if d.haveDelayedFb && d.delayedRmFbID != newFbID {
		if err := drmRmFb(d.file, d.delayedRmFbID); err != nil {
			logWarning("drm: delayed RmFB(%d) failed: %v", d.delayedRmFbID, err)
		}
	}
	d.delayedRmFbID = newFbID
	d.haveDelayedFb = true
}

// readEdid iterates the console connector's properties looking for the
// "EDID" blob and copies up to 128 bytes into the device record.
func (d *DrmDevice) readEdid() error {
	if d.edidFound {
		return nil
	}
	const objTypeConnector = 0xc0c0c0c0
	propIDs, values, err := drmObjGetProperties(d.file, d.consoleConnectorID, objTypeConnector)
	if err != nil {
		return err
	}
	for i, propID := range propIDs {
		prop, err := drmGetProperty(d.file, propID)
		if err != nil {
			continue
		}
		if string(trimNulBytes(prop.Name[:])) != "EDID" {
			continue
		}
		blob, err := drmGetPropBlob(d.file, uint32(values[i]))
		if err != nil || len(blob) == 0 {
			continue
		}
		n := copy(d.edid[:], blob)
		d.edidFound = n > 0
		return nil
	}
	return fmt.Errorf("no EDID property on connector %d", d.consoleConnectorID)
}

// InternalPanel reports whether the console connector is a built-in panel
// (LVDS/eDP/DSI) rather than an external monitor.
func (d *DrmDevice) InternalPanel() bool { return d.isInternal }

// EDID returns the raw EDID blob readEdid captured, or a zeroed buffer if
// none was found.
func (d *DrmDevice) EDID() []byte { return d.edid[:] }

func (d *DrmDevice) ref()   { d.refCount++ }
func (d *DrmDevice) unref() {
	d.refCount--
	if d.refCount <= 0 && d.file != nil {
		d.file.Close()
		d.file = nil
	}
}

func (d *DrmDevice) close() {
	if d.file != nil {
		_ = d.file.Close()
		d.file = nil
	}
}

// drmRescan implements spec.md §4.1's hotplug rescan: drop master, rescan,
// compare console connector/CRTC with the previous device.
type rescanResult int

const (
	rescanNoChange rescanResult = iota
	rescanChanged
	rescanNone
)

func drmRescan(prev *DrmDevice, lidClosed bool) (*DrmDevice, rescanResult, error) {
	if prev != nil {
		_ = drmDropMaster(prev.file)
	}

	next, err := drmScan(lidClosed)
	if err != nil {
		return nil, rescanNone, err
	}
	if next == nil {
		if prev != nil {
			prev.close()
		}
		return nil, rescanNone, nil
	}
	if prev != nil && prev.consoleConnectorID == next.consoleConnectorID && prev.consoleCrtcID == next.consoleCrtcID {
		next.close()
		_ = drmSetMaster(prev.file)
		return prev, rescanNoChange, nil
	}
	if prev != nil {
		prev.close()
	}
	return next, rescanChanged, nil
}

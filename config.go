// config.go - CLI surface, §6
//
// The original daemon parses argv by hand in main.c; this uses the
// standard flag package the way the rest of the ecosystem corpus's CLI
// tools do (no flag library appears anywhere in the retrieval pack, so
// the standard library is the grounded choice here, not a fallback).
package main

import (
	"flag"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Config holds every CLI-configurable value from spec.md §6's flag table.
type Config struct {
	Daemon      bool
	EnableVTs   bool
	EnableVT1   bool
	EnableGfx   bool
	NumVTs      int
	PreCreateVTs bool
	NoLogin     bool
	SplashOnly  bool

	FrameInterval time.Duration
	LoopStart     int
	LoopCount     int
	LoopInterval  time.Duration
	LoopOffsetX   int
	LoopOffsetY   int
	OffsetX       int
	OffsetY       int
	Scale         int
	ClearColor    uint32

	Images []string // --image, --image-hires, and trailing positional args

	PrintResolution bool

	SocketPath string
	Port       int
	UseDBus    bool

	DevPreview bool // mirror the console into a windowed ebiten preview
}

// maxNumVTs is spec.md §8's documented boundary: "num_vts default is 4,
// maximum 12."
const maxNumVTs = 12

// defaultConfig matches the original daemon's compiled-in defaults
// (original_source/main.c and splash.c).
func defaultConfig() *Config {
	return &Config{
		NumVTs:        4,
		FrameInterval: 0,
		LoopStart:     -1,
		LoopCount:     -1,
		LoopInterval:  0,
		Scale:         1,
		ClearColor:    0x000000,
		Port:          defaultIPCPort,
	}
}

// ParseConfig parses args (normally os.Args[1:]) into a Config. Trailing
// positional arguments are appended to Images per spec.md §6.
func ParseConfig(args []string) (*Config, error) {
	cfg := defaultConfig()
	fs := flag.NewFlagSet("frecon", flag.ContinueOnError)

	fs.BoolVar(&cfg.Daemon, "daemon", false, "detach and write a pid file")
	fs.BoolVar(&cfg.EnableVTs, "enable-vts", false, "enable text VTs")
	fs.BoolVar(&cfg.EnableVT1, "enable-vt1", false, "keep VT1 as a text VT")
	fs.BoolVar(&cfg.EnableGfx, "enable-gfx", false, "accepted; OSC image/box-drawing escape codes are not handled")
	fs.IntVar(&cfg.NumVTs, "num-vts", cfg.NumVTs, "number of text VTs")
	fs.BoolVar(&cfg.PreCreateVTs, "pre-create-vts", false, "spawn all VT shells at startup")
	fs.BoolVar(&cfg.NoLogin, "no-login", false, "do not wait for a login prompt signal")
	fs.BoolVar(&cfg.SplashOnly, "splash-only", false, "play the splash program and exit")

	frameMS := fs.Int("frame-interval", 0, "milliseconds between splash frames")
	fs.IntVar(&cfg.LoopStart, "loop-start", cfg.LoopStart, "index of the first looped frame")
	fs.IntVar(&cfg.LoopCount, "loop-count", cfg.LoopCount, "loop repeat count, negative forever")
	loopMS := fs.Int("loop-interval", 0, "milliseconds between looped frames")
	loopOffset := fs.String("loop-offset", "", "x,y offset applied to looped frames")
	offset := fs.String("offset", "", "x,y offset applied to all frames")
	fs.IntVar(&cfg.Scale, "scale", cfg.Scale, "integer DPI scale override")
	clear := fs.String("clear", "", "0xRRGGBB background clear color")
	image := fs.String("image", "", "splash image path")
	imageHiRes := fs.String("image-hires", "", "high-DPI splash image path")
	fs.BoolVar(&cfg.PrintResolution, "print-resolution", false, "print WIDTH HEIGHT and exit")
	fs.StringVar(&cfg.SocketPath, "socket", "", "unix socket path for the command channel")
	fs.IntVar(&cfg.Port, "port", cfg.Port, "TCP port for the command channel when no socket path is set")
	fs.BoolVar(&cfg.UseDBus, "dbus", false, "use the system bus instead of a stream socket")
	fs.BoolVar(&cfg.DevPreview, "dev-preview", false, "mirror the console framebuffer into a windowed preview")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if *frameMS > 0 {
		cfg.FrameInterval = time.Duration(*frameMS) * time.Millisecond
	}
	if *loopMS > 0 {
		cfg.LoopInterval = time.Duration(*loopMS) * time.Millisecond
	}
	if *loopOffset != "" {
		x, y, err := parseXY(*loopOffset)
		if err != nil {
			return nil, fmt.Errorf("--loop-offset: %w", err)
		}
		cfg.LoopOffsetX, cfg.LoopOffsetY = x, y
	}
	if *offset != "" {
		x, y, err := parseXY(*offset)
		if err != nil {
			return nil, fmt.Errorf("--offset: %w", err)
		}
		cfg.OffsetX, cfg.OffsetY = x, y
	}
	if *clear != "" {
		v, err := strconv.ParseUint(strings.TrimPrefix(*clear, "0x"), 16, 32)
		if err != nil {
			return nil, fmt.Errorf("--clear: %w", err)
		}
		cfg.ClearColor = uint32(v)
	}
	if *image != "" {
		cfg.Images = append(cfg.Images, *image)
	}
	if *imageHiRes != "" {
		cfg.Images = append(cfg.Images, *imageHiRes)
	}
	cfg.Images = append(cfg.Images, fs.Args()...)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate rejects flag combinations the original daemon refuses too
// (SPEC_FULL.md's Open Question decision: splash-only and VTs are
// mutually exclusive, since a splash player owns VT 0 outright).
func (cfg *Config) validate() error {
	if cfg.SplashOnly && cfg.EnableVTs {
		return fmt.Errorf("--splash-only and --enable-vts are mutually exclusive")
	}
	if cfg.NumVTs < 0 || cfg.NumVTs > maxNumVTs {
		return fmt.Errorf("--num-vts must be between 0 and %d", maxNumVTs)
	}
	if cfg.Scale < 1 {
		return fmt.Errorf("--scale must be >= 1")
	}
	return nil
}

func parseXY(s string) (x, y int, err error) {
	parts := strings.SplitN(s, ",", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected x,y, got %q", s)
	}
	x, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, err
	}
	y, err = strconv.Atoi(parts[1])
	return x, y, err
}

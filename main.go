// main.go - frecon daemon entry point
package main

import (
	"fmt"
	"os"
)

func main() {
	cfg, err := ParseConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if cfg.PrintResolution {
		runPrintResolution()
		return
	}

	if err := daemonizeIfRequested(cfg); err != nil {
		logError("daemonize: %v", err)
		os.Exit(1)
	}
	defer func() {
		if cfg.Daemon {
			removePidFile()
		}
	}()

	lidClosed := probeLidClosed()
	device, err := drmScan(lidClosed)
	if err != nil {
		logError("drm scan: %v", err)
		os.Exit(1)
	}

	var surface *VideoSurface
	if device == nil {
		logWarning("no usable DRM device found, falling back to headless mode")
		surface = newHeadlessSurface()
	} else {
		surface, err = newVideoSurface(device)
		if err != nil {
			logError("video surface: %v", err)
			os.Exit(1)
		}
		if err := device.setMode(surface); err != nil {
			logError("mode-set: %v", err)
			os.Exit(1)
		}
	}

	if device != nil {
		if err := writeDisplayInfoCookie(device.InternalPanel(), device.EDID()); err != nil {
			logWarning("display info cookie: %v", err)
		}
	}

	daemon := NewDaemon(cfg, surface, device)

	if cfg.DevPreview {
		preview, err := NewVideoOutput(videoBackendEbiten)
		if err != nil {
			logWarning("dev-preview: %v", err)
		} else {
			width, height := surface.dimensions()
			if err := preview.SetDisplayConfig(DisplayConfig{Width: width, Height: height, Scale: surface.scaling}); err != nil {
				logWarning("dev-preview: configure: %v", err)
			}
			if err := preview.Start(); err != nil {
				logWarning("dev-preview: start: %v", err)
			} else {
				daemon.preview = preview
			}
		}
	}

	if err := setupIPC(daemon, cfg); err != nil {
		logError("ipc: %v", err)
		os.Exit(1)
	}

	input, err := NewInputManager()
	if err != nil {
		logError("input: %v", err)
		os.Exit(1)
	}
	daemon.input = input
	daemon.lidClosed = input.LidClosed()

	if !input.HasDevices() {
		stdin, err := NewStdinFallbackSource()
		if err != nil {
			logWarning("input: no evdev nodes grabbable and no stdin fallback available: %v", err)
		} else {
			daemon.stdin = stdin
		}
	}

	splashTerm, err := NewTerminal(0, surface, cfg.Scale)
	if err != nil {
		logError("splash terminal: %v", err)
		os.Exit(1)
	}
	daemon.AddTerminal(splashTerm)

	if len(cfg.Images) > 0 {
		program := buildSplashProgram(cfg)
		daemon.splash = NewSplashPlayer(program, splashTerm)
	} else {
		_ = splashTerm.Activate()
	}

	if cfg.EnableVTs {
		numCreate := 0
		if cfg.PreCreateVTs {
			numCreate = cfg.NumVTs
		} else if cfg.EnableVT1 {
			numCreate = 1
		}
		for vt := 1; vt <= numCreate; vt++ {
			t, err := NewTerminal(vt, surface, cfg.Scale)
			if err != nil {
				logWarning("pre-create vt%d: %v", vt, err)
				continue
			}
			daemon.AddTerminal(t)
		}
		if cfg.EnableVT1 {
			daemon.switchTo(1)
		}
	}

	if !cfg.NoLogin {
		if err := daemon.ArmLoginPromptSignal(); err != nil {
			logWarning("login prompt signal: %v", err)
		}
	}

	if err := daemon.Run(); err != nil {
		logError("event loop: %v", err)
		daemon.Close()
		os.Exit(1)
	}
	daemon.Close()
}

// setupIPC chooses the dbus or socket transport per --dbus, wiring both to
// daemon.handleCommand.
func setupIPC(daemon *Daemon, cfg *Config) error {
	if cfg.UseDBus {
		t, err := NewDBusTransport(daemon.handleCommand)
		if err != nil {
			return err
		}
		daemon.dbus = t
		return nil
	}
	t, err := NewSocketTransport(cfg.SocketPath, cfg.Port, daemon.handleCommand)
	if err != nil {
		return err
	}
	daemon.socket = t
	return nil
}

// buildSplashProgram turns cfg's image list and loop/offset flags into a
// SplashProgram, mirroring original_source/splash.c's parse_filespec.
func buildSplashProgram(cfg *Config) *SplashProgram {
	program := &SplashProgram{
		ClearColor:   cfg.ClearColor,
		LoopStart:    cfg.LoopStart,
		LoopCount:    cfg.LoopCount,
		LoopDuration: cfg.LoopInterval,
		LoopOffsetX:  cfg.LoopOffsetX,
		LoopOffsetY:  cfg.LoopOffsetY,
	}
	for _, path := range cfg.Images {
		program.AddFrame(SplashFrame{
			Path:     path,
			OffsetX:  cfg.OffsetX,
			OffsetY:  cfg.OffsetY,
			Duration: cfg.FrameInterval,
		})
	}
	return program
}

// runPrintResolution implements --print-resolution: open a DRM device,
// print its console mode, exit. No daemon state is constructed.
func runPrintResolution() {
	device, err := drmScan(probeLidClosed())
	if err != nil || device == nil {
		fmt.Fprintln(os.Stderr, "no usable DRM device found")
		os.Exit(1)
	}
	fmt.Printf("%d %d\n", device.consoleMode.Hdisplay, device.consoleMode.Vdisplay)
}

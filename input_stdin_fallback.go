// input_stdin_fallback.go - dev-stdin fallback input source
//
// Adapted from the teacher's terminal_host.go. That file drove a
// goroutine reading raw stdin into an emulator MMIO device; §5 forbids
// background goroutines here, so this version exposes its stdin fd for
// registration in the single poll(2) set (event_loop.go) and a Drain
// method the loop calls once stdin is reported readable, instead of
// spawning its own reader loop.
package main

import (
	"os"
	"syscall"

	"golang.org/x/term"
)

// StdinFallbackSource feeds raw stdin bytes to the active terminal when no
// evdev keyboard node could be grabbed (spec.md §4.5, dev-preview mode with
// no /dev/input nodes available).
type StdinFallbackSource struct {
	fd           int
	oldTermState *term.State
	active       bool
}

// NewStdinFallbackSource puts stdin into raw, non-blocking mode. The
// returned source's Fd() is meant to be added to the event loop's poll set;
// call Stop() to restore stdin before the process exits.
func NewStdinFallbackSource() (*StdinFallbackSource, error) {
	fd := int(os.Stdin.Fd())

	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return nil, &VideoError{Operation: "stdin fallback", Details: "MakeRaw", Err: err}
	}

	if err := syscall.SetNonblock(fd, true); err != nil {
		_ = term.Restore(fd, oldState)
		return nil, &VideoError{Operation: "stdin fallback", Details: "SetNonblock", Err: err}
	}

	return &StdinFallbackSource{fd: fd, oldTermState: oldState, active: true}, nil
}

// Fd returns the descriptor to poll for readability.
func (s *StdinFallbackSource) Fd() int { return s.fd }

// Drain reads every byte currently available on stdin, translating the
// raw-mode Enter/Backspace sequences the same way terminal_host.go did
// (CR->LF, DEL->BS), and delivers each to deliver.
func (s *StdinFallbackSource) Drain(deliver func(b byte)) error {
	buf := make([]byte, 256)
	for {
		n, err := syscall.Read(s.fd, buf)
		if n > 0 {
			for _, b := range buf[:n] {
				if b == '\r' {
					b = '\n'
				}
				if b == 0x7F {
					b = 0x08
				}
				deliver(b)
			}
		}
		if err == syscall.EAGAIN || err == syscall.EWOULDBLOCK {
			return nil
		}
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
	}
}

// Stop restores stdin to blocking, cooked mode.
func (s *StdinFallbackSource) Stop() {
	if !s.active {
		return
	}
	s.active = false
	_ = syscall.SetNonblock(s.fd, false)
	if s.oldTermState != nil {
		_ = term.Restore(s.fd, s.oldTermState)
		s.oldTermState = nil
	}
}

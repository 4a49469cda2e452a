// daemonize.go - --daemon handling: pid file and kernel-log redirection
//
// frecon's original daemon has no cmd/-style foreground/background split
// to borrow from in the teacher (the emulator is always foreground), so
// this is built from spec.md §6/§7's daemon semantics directly, in the
// plain error-return style the rest of this package uses.
package main

import (
	"fmt"
	"os"
	"strconv"
)

const pidFilePath = "/run/frecon.pid"

// writePidFile records the current process id, overwriting any stale
// file left by a previous run.
func writePidFile() error {
	f, err := os.OpenFile(pidFilePath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("daemonize: pid file: %w", err)
	}
	defer f.Close()
	_, err = f.WriteString(strconv.Itoa(os.Getpid()))
	return err
}

// removePidFile cleans up on a normal shutdown path; failure is logged,
// not fatal, since the process is exiting either way.
func removePidFile() {
	if err := os.Remove(pidFilePath); err != nil && !os.IsNotExist(err) {
		logWarning("daemonize: remove pid file: %v", err)
	}
}

// daemonizeIfRequested implements --daemon: write the pid file and
// redirect the logger to the kernel log device, since stdio is not a
// meaningful destination once the parent has detached. Unlike a classic
// fork-based daemonize, this process does not fork: the caller (an init
// system or a parent shell backgrounding it with &) already owns the
// detach; frecon only needs to stop writing to a controlling terminal
// that may disappear.
func daemonizeIfRequested(cfg *Config) error {
	if !cfg.Daemon {
		return nil
	}
	if err := writePidFile(); err != nil {
		return err
	}
	if err := redirectLogToKmsg(); err != nil {
		logWarning("daemonize: kernel log redirect failed, keeping stderr: %v", err)
	}
	return nil
}

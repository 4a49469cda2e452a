// pty.go - PTY half of the terminal: opens /dev/ptmx and spawns the shell
//
// Hand-rolled against /dev/ptmx + TIOCGPTN/TIOCSPTLCK, grounded on the
// devpts semantics visible in the retrieved gvisor devpts/master.go file
// (same ioctl numbers, same grantpt/unlockpt contract) and on the child-spawn
// shape of the teacher's original_source/term.c term_run_child.
package main

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"
)

type winsize struct {
	Row, Col       uint16
	Xpixel, Ypixel uint16
}

// ptySession holds the master side of a PTY and the child process attached
// to its slave side.
type ptySession struct {
	master *os.File
	slave  *os.File
	cmd    *exec.Cmd
}

// openPTY allocates a new pseudoterminal pair: opens /dev/ptmx for the
// master, clears the kernel lock (TIOCSPTLCK, the unlockpt(3) equivalent),
// and resolves the slave's path via TIOCGPTN (grantpt(3) is a no-op under
// devpts's default ptmxmode=0666 udev rule, so no chmod/chown is needed).
func openPTY() (master, slave *os.File, err error) {
	master, err = os.OpenFile("/dev/ptmx", os.O_RDWR|unix.O_NOCTTY, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("open /dev/ptmx: %w", err)
	}

	fd := int(master.Fd())

	var unlock int32
	if err := ioctl(fd, unix.TIOCSPTLCK, unsafe.Pointer(&unlock)); err != nil {
		master.Close()
		return nil, nil, fmt.Errorf("TIOCSPTLCK: %w", err)
	}

	var n uint32
	if err := ioctl(fd, unix.TIOCGPTN, unsafe.Pointer(&n)); err != nil {
		master.Close()
		return nil, nil, fmt.Errorf("TIOCGPTN: %w", err)
	}

	slavePath := fmt.Sprintf("/dev/pts/%d", n)
	slave, err = os.OpenFile(slavePath, os.O_RDWR|unix.O_NOCTTY, 0)
	if err != nil {
		master.Close()
		return nil, nil, fmt.Errorf("open %s: %w", slavePath, err)
	}

	return master, slave, nil
}

func ioctl(fd int, req uint, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(req), uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}

// spawnShell opens a PTY pair and execs $SHELL -il (falling back to
// /bin/sh) on the slave side, matching term_run_child's TERM=xterm
// override.
func spawnShell(cols, rows int) (*ptySession, error) {
	master, slave, err := openPTY()
	if err != nil {
		return nil, &VideoError{Operation: "pty spawn", Details: "allocate pty", Err: err}
	}

	if err := setWinsize(slave, cols, rows); err != nil {
		master.Close()
		slave.Close()
		return nil, &VideoError{Operation: "pty spawn", Details: "set initial size", Err: err}
	}

	shell := os.Getenv("SHELL")
	if shell == "" {
		shell = "/bin/sh"
	}

	cmd := exec.Command(shell, "-il")
	cmd.Env = append(os.Environ(), "TERM=xterm")
	cmd.Stdin = slave
	cmd.Stdout = slave
	cmd.Stderr = slave
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid:  true,
		Setctty: true,
	}

	if err := cmd.Start(); err != nil {
		master.Close()
		slave.Close()
		return nil, &VideoError{Operation: "pty spawn", Details: shell, Err: err}
	}

	// The child inherited the slave fd across fork/exec; the parent has no
	// further use for it once the shell owns its controlling terminal. The
	// closed *os.File is kept only for Name(), the slave path MakeVT reports.
	slave.Close()

	return &ptySession{master: master, slave: slave, cmd: cmd}, nil
}

// Fd is the master descriptor to register in the event loop's poll set.
func (p *ptySession) Fd() int { return int(p.master.Fd()) }

// Read satisfies io.Reader for the VT adapter's input feed.
func (p *ptySession) Read(buf []byte) (int, error) { return p.master.Read(buf) }

// Write satisfies io.Writer for the VT adapter's keyboard/response feed.
func (p *ptySession) Write(buf []byte) (int, error) { return p.master.Write(buf) }

// Resize updates the PTY's window size, called on a terminal resize
// (spec.md §4.4) or a console scale change.
func (p *ptySession) Resize(cols, rows int) error {
	return setWinsize(p.master, cols, rows)
}

func setWinsize(f *os.File, cols, rows int) error {
	ws := winsize{Row: uint16(rows), Col: uint16(cols)}
	return ioctl(int(f.Fd()), unix.TIOCSWINSZ, unsafe.Pointer(&ws))
}

// ChildDone reports whether the shell process has already exited, mirroring
// term_is_child_done's WNOHANG waitpid poll. A child found exited is
// reaped here.
func (p *ptySession) ChildDone() bool {
	if p.cmd.ProcessState != nil {
		return true
	}
	var ws syscall.WaitStatus
	pid, err := syscall.Wait4(p.cmd.Process.Pid, &ws, syscall.WNOHANG, nil)
	return pid == p.cmd.Process.Pid || err == syscall.ECHILD
}

// Wait releases the exec.Cmd's hold on the child, called from Respawn; it
// returns an error when ChildDone has already reaped the child.
func (p *ptySession) Wait() error {
	return p.cmd.Wait()
}

// Close releases the PTY master.
func (p *ptySession) Close() error {
	return p.master.Close()
}

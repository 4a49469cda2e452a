// ipc_socket.go - stream socket transport for the command channel
//
// Adapted from runtime_ipc.go's net.Listen("unix", ...) bind and
// stale-socket cleanup (dial-then-remove-then-relisten). The accept loop
// and per-connection goroutine are gone: §5 forbids background
// goroutines, so the listener fd and every accepted connection fd are
// registered directly in event_loop.go's poll set, and this type exposes
// Accept/ReadCommand methods the loop calls once readiness is observed.
package main

import (
	"fmt"
	"net"
	"os"
	"strconv"
)

const ipcMaxLineSize = 4096

// defaultIPCPort matches spec.md §6's "default 6530".
const defaultIPCPort = 6530

// SocketTransport owns the listening socket and the single in-flight
// connection the protocol allows at a time (spec.md §6: "one connection
// at a time").
type SocketTransport struct {
	listener   net.Listener
	listenerFd int // cached once at bind time, see ListenerFd
	sockPath   string // "" when listening on TCP instead of a unix socket
	conn       net.Conn
	connFd     int // cached once per accepted conn, see ConnFd
	handler    CommandHandler
}

// NewSocketTransport binds a UNIX socket at sockPath, falling back to TCP
// on the given port when sockPath is empty.
func NewSocketTransport(sockPath string, port int, handler CommandHandler) (*SocketTransport, error) {
	if sockPath == "" {
		ln, err := net.Listen("tcp", "127.0.0.1:"+strconv.Itoa(port))
		if err != nil {
			return nil, fmt.Errorf("ipc: tcp listen: %w", err)
		}
		return newSocketTransport(ln, "", handler)
	}

	ln, err := net.Listen("unix", sockPath)
	if err != nil {
		// Stale socket cleanup: try connecting. If the peer is dead, remove
		// and retry; if it answers, another instance genuinely owns it.
		conn, dialErr := net.Dial("unix", sockPath)
		if dialErr != nil {
			os.Remove(sockPath)
			ln, err = net.Listen("unix", sockPath)
			if err != nil {
				return nil, fmt.Errorf("ipc: bind failed: %w", err)
			}
		} else {
			conn.Close()
			return nil, fmt.Errorf("ipc: another instance is already running at %s", sockPath)
		}
	}

	return newSocketTransport(ln, sockPath, handler)
}

func newSocketTransport(ln net.Listener, sockPath string, handler CommandHandler) (*SocketTransport, error) {
	fd, ok := fdOf(ln)
	if !ok {
		return nil, fmt.Errorf("ipc: listener has no backing fd")
	}
	return &SocketTransport{listener: ln, listenerFd: fd, connFd: -1, sockPath: sockPath, handler: handler}, nil
}

// ListenerFd is registered in the event loop's poll set; readiness means a
// new connection can be Accepted without blocking. The fd is dup'd and
// cached once, at bind time, rather than re-derived from the listener on
// every poll iteration: net.Listener.File() dups a fresh descriptor on
// each call, and calling it once per loop iteration would leak one fd per
// iteration for the daemon's entire pre-login lifetime.
func (t *SocketTransport) ListenerFd() (int, bool) {
	return t.listenerFd, true
}

// ConnFd is the active connection's cached descriptor, or (0, false) if
// none is open.
func (t *SocketTransport) ConnFd() (int, bool) {
	if t.conn == nil || t.connFd < 0 {
		return 0, false
	}
	return t.connFd, true
}

// AcceptOne accepts a single pending connection, refusing a second
// concurrent client per the one-at-a-time protocol rule. The accepted
// conn's fd is dup'd and cached exactly once here, not re-derived per poll
// iteration.
func (t *SocketTransport) AcceptOne() error {
	conn, err := t.listener.Accept()
	if err != nil {
		return err
	}
	if t.conn != nil {
		conn.Close()
		return nil
	}
	fd, ok := fdOf(conn)
	if !ok {
		conn.Close()
		return fmt.Errorf("ipc: accepted conn has no backing fd")
	}
	t.conn = conn
	t.connFd = fd
	return nil
}

// ReadCommand reads one pending request off the active connection,
// dispatches it through handler, and writes the plain-text reply. A read
// error or EOF closes the connection.
func (t *SocketTransport) ReadCommand() {
	if t.conn == nil {
		return
	}
	buf := make([]byte, ipcMaxLineSize)
	n, err := t.conn.Read(buf)
	if err != nil || n == 0 {
		t.conn.Close()
		t.conn = nil
		t.connFd = -1
		return
	}

	req, perr := parseCommandLine(string(buf[:n]))
	if perr != nil {
		logWarning("ipc: %v", perr)
		return
	}

	result := t.handler(req)
	if result.Err != nil {
		logWarning("ipc: %s failed: %v", req.Verb, result.Err)
		return
	}
	if result.Reply != "" {
		t.conn.Write([]byte(result.Reply + "\n"))
	}
}

// Close shuts down the listener and any open connection, removing the
// unix socket file if one was used.
func (t *SocketTransport) Close() {
	if t.conn != nil {
		t.conn.Close()
		t.conn = nil
		t.connFd = -1
	}
	t.listener.Close()
	if t.sockPath != "" {
		os.Remove(t.sockPath)
	}
}

// fdOf extracts the raw file descriptor backing a net.Conn or
// net.Listener that wraps an *os.File (true for both TCPConn/UnixConn and
// their Listener counterparts), for registration in the poll set. Callers
// must invoke this exactly once per conn/listener lifetime and cache the
// result: File() dups a fresh descriptor on every call, so calling it
// repeatedly (e.g. once per poll iteration) leaks a descriptor each time.
func fdOf(v interface{}) (int, bool) {
	type fileConn interface {
		File() (*os.File, error)
	}
	fc, ok := v.(fileConn)
	if !ok {
		return 0, false
	}
	f, err := fc.File()
	if err != nil {
		return 0, false
	}
	return int(f.Fd()), true
}

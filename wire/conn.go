package wire

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"

	"golang.org/x/sys/unix"
)

func runtimeDir() string {
	dir, ok := os.LookupEnv("XDG_RUNTIME_DIR")
	if ok {
		return dir
	}
	return fmt.Sprintf("/var/run/user/%v", os.Getuid())
}

// SocketPath determines the path to the Wayland Unix domain socket
// based on the contents of the $WAYLAND_DISPLAY environment variable.
// It does not attempt to determine if the value corresponds to an
// actual socket.
func SocketPath() string {
	v, ok := os.LookupEnv("WAYLAND_DISPLAY")
	if !ok {
		v = "wayland-0"
	}
	return NamedSocketPath(v)
}

// NamedSocketPath is SocketPath for an explicit display name,
// ignoring the environment. An absolute name is used as-is.
func NamedSocketPath(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(runtimeDir(), name)
}

// Conn is a low-level Wayland connection. It is a thin wrapper around
// the Unix socket; message framing is handled by MessageBuilder and
// ReadMessage.
type Conn struct {
	conn *net.UnixConn
}

// NewConn returns a Conn wrapping c. The Conn takes over the
// lifecycle of c; close it via the Conn's Close method.
func NewConn(c *net.UnixConn) *Conn {
	return &Conn{conn: c}
}

// Dial opens a connection to the Wayland socket based on the current
// environment. It follows the procedure outlined at
// https://wayland-book.com/protocol-design/wire-protocol.html#transports
func Dial() (*Conn, error) {
	if v, ok := os.LookupEnv("WAYLAND_SOCKET"); ok {
		fd, err := strconv.ParseInt(v, 10, 0)
		if err != nil {
			return nil, fmt.Errorf("parse WAYLAND_SOCKET fd: %w", err)
		}
		file := os.NewFile(uintptr(fd), "WAYLAND_SOCKET")
		defer file.Close()

		c, err := net.FileConn(file)
		if err != nil {
			return nil, fmt.Errorf("open WAYLAND_SOCKET connection: %w", err)
		}
		return NewConn(c.(*net.UnixConn)), nil
	}

	s, err := net.Dial("unix", SocketPath())
	if err != nil {
		return nil, err
	}
	return NewConn(s.(*net.UnixConn)), nil
}

// DialName opens a connection to the compositor socket with the
// given name. An empty name falls back to Dial's environment-based
// lookup, including $WAYLAND_SOCKET fd passing.
func DialName(name string) (*Conn, error) {
	if name == "" {
		return Dial()
	}

	s, err := net.Dial("unix", NamedSocketPath(name))
	if err != nil {
		return nil, err
	}
	return NewConn(s.(*net.UnixConn)), nil
}

// Pair returns two connected Conns backed by an anonymous socket
// pair. It exists to let a client and a compositor run inside the
// same process, which is mainly useful for tests.
func Pair() (*Conn, *Conn, error) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("socketpair: %w", err)
	}

	conns := make([]*Conn, 0, 2)
	for i, fd := range fds {
		file := os.NewFile(uintptr(fd), fmt.Sprintf("wayland-pair-%v", i))
		c, err := net.FileConn(file)
		file.Close()
		if err != nil {
			return nil, nil, fmt.Errorf("open pair connection: %w", err)
		}
		conns = append(conns, NewConn(c.(*net.UnixConn)))
	}
	return conns[0], conns[1], nil
}

// Close closes the underlying connection.
func (c *Conn) Close() error {
	return c.conn.Close()
}

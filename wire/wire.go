// Package wire implements the Wayland wire format: 32-bit words in
// host byte order, 8-byte message headers, and file descriptor
// passing over the socket's ancillary data. It deals purely in
// messages; protocol object semantics live in the packages built on
// top of it.
package wire

import (
	"encoding/binary"
	"errors"
	"io"
	"net"
	"unsafe"

	"golang.org/x/sys/unix"
)

// hostOrder is the byte order of the local machine. The wire format
// is host-order, not network-order, as both ends are always on the
// same machine.
var hostOrder binary.ByteOrder = binary.LittleEndian

func init() {
	n := uint32(1)
	b := (*[4]byte)(unsafe.Pointer(&n))
	if b[0] == 0 {
		hostOrder = binary.BigEndian
	}
}

func readWord[T ~int32 | ~uint32](r io.Reader) (T, error) {
	var data [4]byte
	_, err := io.ReadFull(r, data[:])
	if err != nil {
		return 0, err
	}

	v := hostOrder.Uint32(data[:])
	return *(*T)(unsafe.Pointer(&v)), nil
}

func writeWord[T ~int32 | ~uint32](w io.Writer, v T) error {
	var data [4]byte
	hostOrder.PutUint32(data[:], *(*uint32)(unsafe.Pointer(&v)))
	n, err := w.Write(data[:])
	if (err == nil) && (n < len(data)) {
		return io.ErrShortWrite
	}
	return err
}

// padding returns the number of bytes necessary to pad length up to
// the next 32-bit boundary.
func padding(length uint32) uint32 {
	return (4 - (length & 3)) & 3
}

// Uint32 decodes one word of an array argument. Array contents are
// not self-describing; the protocol defines what they hold.
func Uint32(b []byte) uint32 {
	return hostOrder.Uint32(b)
}

// PutUint32 encodes one word of an array argument.
func PutUint32(b []byte, v uint32) {
	hostOrder.PutUint32(b, v)
}

// Object is a protocol object proxy. Implementations decode and
// react to the events addressed to their ID.
type Object interface {
	// ID is the object's protocol ID, or 0 if it has not been
	// registered yet.
	ID() uint32

	// SetID is called exactly once, when the object is registered.
	SetID(id uint32)

	// Interface is the protocol name of the object's interface, such
	// as "wl_surface".
	Interface() string

	// Dispatch decodes the event in msg and delivers it.
	Dispatch(msg *MessageBuffer) error

	// Delete marks the object as dead. The object's ID may be reused
	// by the peer afterwards.
	Delete()
}

// NewID is the wire representation of a typeless new-object argument,
// as used by wl_registry.bind.
type NewID struct {
	Interface string
	Version   uint32
	ID        uint32
}

// unixTee reads from c while simultaneously collecting any ancillary
// data that arrives with the same segment into oob.
type unixTee struct {
	c   *net.UnixConn
	oob io.Writer
}

func (t unixTee) Read(buf []byte) (int, error) {
	oob := make([]byte, unix.CmsgSpace(len(buf)))
	n, oobn, _, _, err := t.c.ReadMsgUnix(buf, oob)
	_, ooberr := t.oob.Write(oob[:oobn])
	return n, errors.Join(err, ooberr)
}

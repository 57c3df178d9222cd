package wire

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// MessageBuffer holds an incoming message that has been read from the
// socket but not yet decoded. The ReadX methods decode arguments in
// order; errors are sticky and surfaced by Err.
type MessageBuffer struct {
	sender  uint32
	op      uint16
	size    uint16
	data    bytes.Reader
	fds     []int
	fdindex int
	err     error
	args    []any
}

// ReadMessage reads the next message from the socket, including any
// file descriptors that arrive in the same segment.
func ReadMessage(c *Conn) (*MessageBuffer, error) {
	var mr MessageBuffer

	var oob bytes.Buffer
	r := unixTee{c: c.conn, oob: &oob}

	sender, err := readWord[uint32](r)
	if err != nil {
		return nil, fmt.Errorf("read message sender: %w", err)
	}
	mr.sender = sender

	so, err := readWord[uint32](r)
	if err != nil {
		return nil, fmt.Errorf("read message size and opcode: %w", err)
	}
	mr.size = uint16(so >> 16)
	mr.op = uint16(so & 0xFFFF)
	if mr.size < 8 {
		return nil, fmt.Errorf("message size %v shorter than header", mr.size)
	}

	data := bytes.NewBuffer(make([]byte, 0, mr.size-8))
	_, err = io.CopyN(data, r, int64(mr.size)-8)
	if err != nil {
		return nil, fmt.Errorf("read message body: %w", err)
	}

	if oob.Len() > 0 {
		cmsgs, err := unix.ParseSocketControlMessage(oob.Bytes())
		if err != nil {
			return nil, fmt.Errorf("parse socket control messages: %w", err)
		}
		for _, cmsg := range cmsgs {
			fds, err := unix.ParseUnixRights(&cmsg)
			if err != nil {
				if errors.Is(err, unix.EINVAL) {
					continue
				}
				return nil, fmt.Errorf("parse unix control message: %w", err)
			}
			mr.fds = append(mr.fds, fds...)
		}
	}

	mr.data.Reset(data.Bytes())
	return &mr, nil
}

// Sender is the object ID that the message is addressed to.
func (r *MessageBuffer) Sender() uint32 { return r.sender }

// Op is the opcode of the message.
func (r *MessageBuffer) Op() uint16 { return r.op }

// Size is the total size of the message, including the 8-byte header.
func (r *MessageBuffer) Size() uint16 { return r.size }

// Err reports any error encountered while decoding arguments. A
// message whose arguments have all been decoded cleanly reports nil.
func (r *MessageBuffer) Err() error {
	if errors.Is(r.err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return r.err
}

func (r *MessageBuffer) ReadInt() (v int32) {
	if r.err != nil {
		return
	}
	v, r.err = readWord[int32](&r.data)
	r.args = append(r.args, v)
	return v
}

func (r *MessageBuffer) ReadUint() (v uint32) {
	if r.err != nil {
		return
	}
	v, r.err = readWord[uint32](&r.data)
	r.args = append(r.args, v)
	return v
}

func (r *MessageBuffer) ReadFixed() (v Fixed) {
	if r.err != nil {
		return
	}
	v, r.err = readWord[Fixed](&r.data)
	r.args = append(r.args, v)
	return v
}

func (r *MessageBuffer) ReadNewID() NewID {
	return NewID{
		Interface: r.ReadString(),
		Version:   r.ReadUint(),
		ID:        r.ReadUint(),
	}
}

func (r *MessageBuffer) ReadString() string {
	if r.err != nil {
		return ""
	}

	length := r.ReadUint()
	if r.err != nil {
		return ""
	}
	if length == 0 {
		return ""
	}
	pad := padding(length)

	buf := make([]byte, length+pad)
	_, r.err = io.ReadFull(&r.data, buf)
	if r.err != nil {
		return ""
	}
	if buf[length-1] != 0 {
		r.err = errors.New("string is not null-terminated")
		return ""
	}

	v := string(buf[:length-1])
	r.args = append(r.args, v)
	return v
}

func (r *MessageBuffer) ReadArray() []byte {
	if r.err != nil {
		return nil
	}

	length := r.ReadUint()
	if r.err != nil {
		return nil
	}
	pad := padding(length)

	buf := make([]byte, length+pad)
	_, r.err = io.ReadFull(&r.data, buf)
	if r.err != nil {
		return nil
	}

	r.args = append(r.args, buf[:length])
	return buf[:length]
}

// ReadFile pops the next file descriptor received with the message.
// Ownership of the descriptor moves to the returned File.
func (r *MessageBuffer) ReadFile() *os.File {
	if r.err != nil {
		return nil
	}

	if r.fdindex >= len(r.fds) {
		r.err = errors.New("no more file descriptors")
		return nil
	}

	f := os.NewFile(uintptr(r.fds[r.fdindex]), "")
	r.fdindex++
	r.args = append(r.args, f)
	return f
}

// ReadFD is like ReadFile but hands over the raw descriptor. The
// caller is responsible for closing it.
func (r *MessageBuffer) ReadFD() int {
	if r.err != nil {
		return -1
	}

	if r.fdindex >= len(r.fds) {
		r.err = errors.New("no more file descriptors")
		return -1
	}

	fd := r.fds[r.fdindex]
	r.fdindex++
	r.args = append(r.args, fd)
	return fd
}

// Debug formats the decoded message for trace output, attributing it
// to sender.
func (r *MessageBuffer) Debug(sender Object) string {
	args := make([]string, 0, len(r.args))
	for _, arg := range r.args {
		switch arg := arg.(type) {
		case string:
			args = append(args, strconv.Quote(arg))
		case *os.File:
			args = append(args, fmt.Sprint(arg.Fd()))
		default:
			args = append(args, fmt.Sprint(arg))
		}
	}

	name := "event"
	if n, ok := sender.(interface{ EventName(op uint16) string }); ok {
		name = n.EventName(r.op)
	}
	return fmt.Sprintf("%v@%v.%v(%v)", sender.Interface(), r.sender, name, strings.Join(args, ", "))
}

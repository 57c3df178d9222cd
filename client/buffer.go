package wl

import "deedles.dev/wlsink/wire"

const BufferInterface = "wl_buffer"

type BufferListener interface {
	// Release fires when the compositor no longer reads from the
	// buffer's backing storage. With an explicit-synchronization
	// extension active on the surface, release is signalled through
	// that extension instead and this event never fires.
	Release()
}

// Buffer is a wl_buffer: a handle to pixel storage that can be
// attached to surfaces.
type Buffer struct {
	object
	Listener BufferListener
}

func (b *Buffer) Interface() string { return BufferInterface }

func (b *Buffer) Destroy() {
	msg := wire.NewMessage(b, 0)
	msg.Method = "destroy"
	b.client.Enqueue(msg)
}

func (b *Buffer) Dispatch(msg *wire.MessageBuffer) error {
	switch msg.Op() {
	case 0: // release
		if err := msg.Err(); err != nil {
			return err
		}
		if b.Listener != nil {
			b.Listener.Release()
		}
		return nil
	}

	return wire.UnknownOpError{Interface: BufferInterface, Op: msg.Op()}
}

func (b *Buffer) EventName(op uint16) string {
	if op == 0 {
		return "release"
	}
	return "unknown"
}

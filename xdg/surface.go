package xdg

import (
	wl "deedles.dev/wlsink/client"
	"deedles.dev/wlsink/wire"
)

const SurfaceInterface = "xdg_surface"

type SurfaceListener interface {
	// Configure delivers an atomic batch of pending state. It must
	// be acknowledged with AckConfigure before the next commit that
	// relies on it.
	Configure(serial uint32)
}

// Surface is an xdg_surface: the shell's wrapper around a wl_surface,
// carrying the configure/ack handshake.
type Surface struct {
	object
	Listener SurfaceListener

	surface *wl.Surface
}

func (s *Surface) Interface() string { return SurfaceInterface }

// Surface returns the wrapped wl_surface.
func (s *Surface) Surface() *wl.Surface { return s.surface }

func (s *Surface) Destroy() {
	msg := wire.NewMessage(s, 0)
	msg.Method = "destroy"
	s.client.Enqueue(msg)
}

// GetToplevel gives the surface the toplevel window role.
func (s *Surface) GetToplevel() *Toplevel {
	t := &Toplevel{xdgSurface: s}
	t.setup(s.client, s.version, t)

	msg := wire.NewMessage(s, 1)
	msg.Method = "get_toplevel"
	msg.Args = []any{t.id}
	msg.WriteUint(t.id)
	s.client.Enqueue(msg)

	return t
}

// SetWindowGeometry declares the rectangle that visually counts as
// the window, excluding shadows and the like.
func (s *Surface) SetWindowGeometry(x, y, width, height int32) {
	msg := wire.NewMessage(s, 3)
	msg.Method = "set_window_geometry"
	msg.Args = []any{x, y, width, height}
	msg.WriteInt(x)
	msg.WriteInt(y)
	msg.WriteInt(width)
	msg.WriteInt(height)
	s.client.Enqueue(msg)
}

func (s *Surface) AckConfigure(serial uint32) {
	msg := wire.NewMessage(s, 4)
	msg.Method = "ack_configure"
	msg.Args = []any{serial}
	msg.WriteUint(serial)
	s.client.Enqueue(msg)
}

func (s *Surface) Dispatch(msg *wire.MessageBuffer) error {
	switch msg.Op() {
	case 0: // configure
		serial := msg.ReadUint()
		if err := msg.Err(); err != nil {
			return err
		}
		if s.Listener != nil {
			s.Listener.Configure(serial)
		}
		return nil
	}

	return wire.UnknownOpError{Interface: SurfaceInterface, Op: msg.Op()}
}

func (s *Surface) EventName(op uint16) string {
	if op == 0 {
		return "configure"
	}
	return "unknown"
}

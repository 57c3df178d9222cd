package xdg

import (
	wl "deedles.dev/wlsink/client"
	"deedles.dev/wlsink/wire"
)

const ToplevelInterface = "xdg_toplevel"

// ToplevelState is one entry of the states array in a toplevel
// configure event.
type ToplevelState uint32

const (
	ToplevelStateMaximized ToplevelState = iota + 1
	ToplevelStateFullscreen
	ToplevelStateResizing
	ToplevelStateActivated
)

// ToplevelResizeEdge names the edge or corner a resize is dragged
// from.
type ToplevelResizeEdge uint32

const (
	ToplevelResizeEdgeNone        ToplevelResizeEdge = 0
	ToplevelResizeEdgeTop         ToplevelResizeEdge = 1
	ToplevelResizeEdgeBottom      ToplevelResizeEdge = 2
	ToplevelResizeEdgeLeft        ToplevelResizeEdge = 4
	ToplevelResizeEdgeTopLeft     ToplevelResizeEdge = 5
	ToplevelResizeEdgeBottomLeft  ToplevelResizeEdge = 6
	ToplevelResizeEdgeRight       ToplevelResizeEdge = 8
	ToplevelResizeEdgeTopRight    ToplevelResizeEdge = 9
	ToplevelResizeEdgeBottomRight ToplevelResizeEdge = 10
)

type ToplevelListener interface {
	// Configure proposes a size and a state set. Zero width or
	// height means the client picks its own size.
	Configure(width, height int32, states []ToplevelState)
	// Close asks the window to close; the client decides what that
	// means.
	Close()
	// ConfigureBounds communicates, before the first configure, the
	// maximum size recommended for the window.
	ConfigureBounds(width, height int32)
}

// Toplevel is the xdg_toplevel window role.
type Toplevel struct {
	object
	Listener ToplevelListener

	xdgSurface *Surface
}

func (t *Toplevel) Interface() string { return ToplevelInterface }

func (t *Toplevel) Destroy() {
	msg := wire.NewMessage(t, 0)
	msg.Method = "destroy"
	t.client.Enqueue(msg)
}

func (t *Toplevel) SetTitle(title string) {
	msg := wire.NewMessage(t, 2)
	msg.Method = "set_title"
	msg.Args = []any{title}
	msg.WriteString(title)
	t.client.Enqueue(msg)
}

func (t *Toplevel) SetAppID(appID string) {
	msg := wire.NewMessage(t, 3)
	msg.Method = "set_app_id"
	msg.Args = []any{appID}
	msg.WriteString(appID)
	t.client.Enqueue(msg)
}

// Move starts an interactive, compositor-driven move, triggered by
// the input event identified by serial.
func (t *Toplevel) Move(seat *wl.Seat, serial uint32) {
	msg := wire.NewMessage(t, 5)
	msg.Method = "move"
	msg.Args = []any{seat, serial}
	msg.WriteObject(seat)
	msg.WriteUint(serial)
	t.client.Enqueue(msg)
}

// Resize starts an interactive resize from the given edge.
func (t *Toplevel) Resize(seat *wl.Seat, serial uint32, edges ToplevelResizeEdge) {
	msg := wire.NewMessage(t, 6)
	msg.Method = "resize"
	msg.Args = []any{seat, serial, edges}
	msg.WriteObject(seat)
	msg.WriteUint(serial)
	msg.WriteUint(uint32(edges))
	t.client.Enqueue(msg)
}

func (t *Toplevel) SetMaxSize(width, height int32) {
	msg := wire.NewMessage(t, 7)
	msg.Method = "set_max_size"
	msg.Args = []any{width, height}
	msg.WriteInt(width)
	msg.WriteInt(height)
	t.client.Enqueue(msg)
}

func (t *Toplevel) SetMinSize(width, height int32) {
	msg := wire.NewMessage(t, 8)
	msg.Method = "set_min_size"
	msg.Args = []any{width, height}
	msg.WriteInt(width)
	msg.WriteInt(height)
	t.client.Enqueue(msg)
}

// SetFullscreen requests fullscreen on output. A nil output lets the
// compositor choose.
func (t *Toplevel) SetFullscreen(output *wl.Output) {
	msg := wire.NewMessage(t, 11)
	msg.Method = "set_fullscreen"
	msg.Args = []any{output}
	msg.WriteObject(output)
	t.client.Enqueue(msg)
}

func (t *Toplevel) UnsetFullscreen() {
	msg := wire.NewMessage(t, 12)
	msg.Method = "unset_fullscreen"
	t.client.Enqueue(msg)
}

func (t *Toplevel) Dispatch(msg *wire.MessageBuffer) error {
	switch msg.Op() {
	case 0: // configure
		width := msg.ReadInt()
		height := msg.ReadInt()
		raw := msg.ReadArray()
		if err := msg.Err(); err != nil {
			return err
		}
		states := make([]ToplevelState, 0, len(raw)/4)
		for i := 0; i+4 <= len(raw); i += 4 {
			states = append(states, ToplevelState(wire.Uint32(raw[i:i+4])))
		}
		if t.Listener != nil {
			t.Listener.Configure(width, height, states)
		}
		return nil

	case 1: // close
		if err := msg.Err(); err != nil {
			return err
		}
		if t.Listener != nil {
			t.Listener.Close()
		}
		return nil

	case 2: // configure_bounds
		width := msg.ReadInt()
		height := msg.ReadInt()
		if err := msg.Err(); err != nil {
			return err
		}
		if t.Listener != nil {
			t.Listener.ConfigureBounds(width, height)
		}
		return nil

	case 3: // wm_capabilities
		msg.ReadArray()
		return msg.Err()
	}

	return wire.UnknownOpError{Interface: ToplevelInterface, Op: msg.Op()}
}

func (t *Toplevel) EventName(op uint16) string {
	switch op {
	case 0:
		return "configure"
	case 1:
		return "close"
	case 2:
		return "configure_bounds"
	case 3:
		return "wm_capabilities"
	}
	return "unknown"
}

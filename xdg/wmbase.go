package xdg

import (
	wl "deedles.dev/wlsink/client"
	"deedles.dev/wlsink/wire"
)

const (
	WmBaseInterface = "xdg_wm_base"
	wmBaseVersion   = 4
)

type WmBaseListener interface {
	// Ping must be answered with Pong, or the compositor may deem
	// the client unresponsive and kill the connection.
	Ping(serial uint32)
}

// WmBase is the xdg_wm_base global, the entry point to xdg-shell.
type WmBase struct {
	object
	Listener WmBaseListener
}

func BindWmBase(c *wl.Client, r *wl.Registry, name, version uint32) *WmBase {
	wb := &WmBase{}
	wb.setup(c, min(version, wmBaseVersion), wb)
	r.Bind(name, WmBaseInterface, wb.version, wb)
	return wb
}

func (wb *WmBase) Interface() string { return WmBaseInterface }

func (wb *WmBase) Destroy() {
	msg := wire.NewMessage(wb, 0)
	msg.Method = "destroy"
	wb.client.Enqueue(msg)
}

// GetXdgSurface wraps a wl_surface for use with xdg-shell. The
// surface must not have a buffer attached yet.
func (wb *WmBase) GetXdgSurface(surface *wl.Surface) *Surface {
	s := &Surface{surface: surface}
	s.setup(wb.client, wb.version, s)

	msg := wire.NewMessage(wb, 2)
	msg.Method = "get_xdg_surface"
	msg.Args = []any{s.id, surface}
	msg.WriteUint(s.id)
	msg.WriteObject(surface)
	wb.client.Enqueue(msg)

	return s
}

func (wb *WmBase) Pong(serial uint32) {
	msg := wire.NewMessage(wb, 3)
	msg.Method = "pong"
	msg.Args = []any{serial}
	msg.WriteUint(serial)
	wb.client.Enqueue(msg)
}

func (wb *WmBase) Dispatch(msg *wire.MessageBuffer) error {
	switch msg.Op() {
	case 0: // ping
		serial := msg.ReadUint()
		if err := msg.Err(); err != nil {
			return err
		}
		if wb.Listener != nil {
			wb.Listener.Ping(serial)
		}
		return nil
	}

	return wire.UnknownOpError{Interface: WmBaseInterface, Op: msg.Op()}
}

func (wb *WmBase) EventName(op uint16) string {
	if op == 0 {
		return "ping"
	}
	return "unknown"
}

package wl

import "deedles.dev/wlsink/wire"

const (
	ShellInterface = "wl_shell"
	shellVersion   = 1

	ShellSurfaceInterface = "wl_shell_surface"
)

// ShellSurfaceResize is the bitmask of window edges being dragged in
// a resize.
type ShellSurfaceResize uint32

const (
	ShellSurfaceResizeNone        ShellSurfaceResize = 0
	ShellSurfaceResizeTop         ShellSurfaceResize = 1
	ShellSurfaceResizeBottom      ShellSurfaceResize = 2
	ShellSurfaceResizeLeft        ShellSurfaceResize = 4
	ShellSurfaceResizeTopLeft     ShellSurfaceResize = 5
	ShellSurfaceResizeBottomLeft  ShellSurfaceResize = 6
	ShellSurfaceResizeRight       ShellSurfaceResize = 8
	ShellSurfaceResizeTopRight    ShellSurfaceResize = 9
	ShellSurfaceResizeBottomRight ShellSurfaceResize = 10
)

// ShellSurfaceFullscreenMethod hints how the compositor should make
// up the difference between surface and output size.
type ShellSurfaceFullscreenMethod uint32

const (
	ShellSurfaceFullscreenMethodDefault ShellSurfaceFullscreenMethod = iota
	ShellSurfaceFullscreenMethodScale
	ShellSurfaceFullscreenMethodDriver
	ShellSurfaceFullscreenMethodFill
)

// Shell is the deprecated wl_shell global, kept for compositors that
// predate xdg-shell.
type Shell struct {
	object
}

func BindShell(c *Client, r *Registry, name, version uint32) *Shell {
	s := &Shell{}
	s.setup(c, min(version, shellVersion), s)
	r.Bind(name, ShellInterface, s.version, s)
	return s
}

func (s *Shell) Interface() string { return ShellInterface }

// GetShellSurface gives surface the wl_shell_surface role.
func (s *Shell) GetShellSurface(surface *Surface) *ShellSurface {
	ss := &ShellSurface{surface: surface}
	ss.setup(s.client, s.version, ss)

	msg := wire.NewMessage(s, 0)
	msg.Method = "get_shell_surface"
	msg.Args = []any{ss.id, surface}
	msg.WriteUint(ss.id)
	msg.WriteObject(surface)
	s.client.Enqueue(msg)

	return ss
}

func (s *Shell) Dispatch(msg *wire.MessageBuffer) error {
	return wire.UnknownOpError{Interface: ShellInterface, Op: msg.Op()}
}

type ShellSurfaceListener interface {
	// Ping must be answered with Pong, or the compositor may deem
	// the client unresponsive.
	Ping(serial uint32)
	// Configure suggests a new size for the surface; unlike
	// xdg-shell there is no acknowledgement step.
	Configure(edges ShellSurfaceResize, width, height int32)
	PopupDone()
}

// ShellSurface is the wl_shell_surface role object.
type ShellSurface struct {
	object
	Listener ShellSurfaceListener

	surface *Surface
}

func (ss *ShellSurface) Interface() string { return ShellSurfaceInterface }

// Surface returns the surface holding this role.
func (ss *ShellSurface) Surface() *Surface { return ss.surface }

func (ss *ShellSurface) Pong(serial uint32) {
	msg := wire.NewMessage(ss, 0)
	msg.Method = "pong"
	msg.Args = []any{serial}
	msg.WriteUint(serial)
	ss.client.Enqueue(msg)
}

// Move starts an interactive, compositor-driven move, triggered by
// the input event identified by serial.
func (ss *ShellSurface) Move(seat *Seat, serial uint32) {
	msg := wire.NewMessage(ss, 1)
	msg.Method = "move"
	msg.Args = []any{seat, serial}
	msg.WriteObject(seat)
	msg.WriteUint(serial)
	ss.client.Enqueue(msg)
}

// Resize starts an interactive resize from the given edges.
func (ss *ShellSurface) Resize(seat *Seat, serial uint32, edges ShellSurfaceResize) {
	msg := wire.NewMessage(ss, 2)
	msg.Method = "resize"
	msg.Args = []any{seat, serial, edges}
	msg.WriteObject(seat)
	msg.WriteUint(serial)
	msg.WriteUint(uint32(edges))
	ss.client.Enqueue(msg)
}

func (ss *ShellSurface) SetToplevel() {
	msg := wire.NewMessage(ss, 3)
	msg.Method = "set_toplevel"
	ss.client.Enqueue(msg)
}

// SetFullscreen maps the surface fullscreen on output. A nil output
// lets the compositor pick one.
func (ss *ShellSurface) SetFullscreen(method ShellSurfaceFullscreenMethod, framerate uint32, output *Output) {
	msg := wire.NewMessage(ss, 5)
	msg.Method = "set_fullscreen"
	msg.Args = []any{method, framerate, output}
	msg.WriteUint(uint32(method))
	msg.WriteUint(framerate)
	msg.WriteObject(output)
	ss.client.Enqueue(msg)
}

func (ss *ShellSurface) SetTitle(title string) {
	msg := wire.NewMessage(ss, 8)
	msg.Method = "set_title"
	msg.Args = []any{title}
	msg.WriteString(title)
	ss.client.Enqueue(msg)
}

func (ss *ShellSurface) SetClass(class string) {
	msg := wire.NewMessage(ss, 9)
	msg.Method = "set_class"
	msg.Args = []any{class}
	msg.WriteString(class)
	ss.client.Enqueue(msg)
}

func (ss *ShellSurface) Dispatch(msg *wire.MessageBuffer) error {
	switch msg.Op() {
	case 0: // ping
		serial := msg.ReadUint()
		if err := msg.Err(); err != nil {
			return err
		}
		if ss.Listener != nil {
			ss.Listener.Ping(serial)
		}
		return nil

	case 1: // configure
		edges := msg.ReadUint()
		width := msg.ReadInt()
		height := msg.ReadInt()
		if err := msg.Err(); err != nil {
			return err
		}
		if ss.Listener != nil {
			ss.Listener.Configure(ShellSurfaceResize(edges), width, height)
		}
		return nil

	case 2: // popup_done
		if err := msg.Err(); err != nil {
			return err
		}
		if ss.Listener != nil {
			ss.Listener.PopupDone()
		}
		return nil
	}

	return wire.UnknownOpError{Interface: ShellSurfaceInterface, Op: msg.Op()}
}

func (ss *ShellSurface) EventName(op uint16) string {
	switch op {
	case 0:
		return "ping"
	case 1:
		return "configure"
	case 2:
		return "popup_done"
	}
	return "unknown"
}

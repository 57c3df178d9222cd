// Package fullscreen implements the client side of
// zwp_fullscreen_shell_v1, the shell of output-dedicated embedded
// compositors. It has no window management: a surface is simply
// presented on an output.
package fullscreen

import (
	wl "deedles.dev/wlsink/client"
	"deedles.dev/wlsink/wire"
)

const (
	ShellInterface = "zwp_fullscreen_shell_v1"
	shellVersion   = 1
)

// PresentMethod hints how content smaller or larger than the output
// should be displayed.
type PresentMethod uint32

const (
	PresentMethodDefault PresentMethod = iota
	PresentMethodCenter
	PresentMethodZoom
	PresentMethodZoomCrop
	PresentMethodStretch
)

// Capability flags advertised by the shell.
type Capability uint32

const (
	CapabilityArbitraryModes Capability = 1
	CapabilityCursorPlane    Capability = 2
)

type ShellListener interface {
	Capability(capability Capability)
}

// Shell is the zwp_fullscreen_shell_v1 global.
type Shell struct {
	object
	Listener ShellListener
}

type object struct {
	client  *wl.Client
	id      uint32
	version uint32
	dead    bool
}

func (o *object) ID() uint32 { return o.id }

func (o *object) SetID(id uint32) { o.id = id }

func (o *object) Version() uint32 { return o.version }

func (o *object) Delete() { o.dead = true }

func BindShell(c *wl.Client, r *wl.Registry, name, version uint32) *Shell {
	s := &Shell{}
	s.client = c
	s.version = min(version, shellVersion)
	c.Add(s)
	r.Bind(name, ShellInterface, s.version, s)
	return s
}

func (s *Shell) Interface() string { return ShellInterface }

// Release destroys the shell object, leaving presented surfaces
// alone.
func (s *Shell) Release() {
	msg := wire.NewMessage(s, 0)
	msg.Method = "release"
	s.client.Enqueue(msg)
}

// PresentSurface displays surface on output, replacing whatever was
// presented there before. A nil output lets the compositor pick; a
// nil surface removes the client's content from output.
func (s *Shell) PresentSurface(surface *wl.Surface, method PresentMethod, output *wl.Output) {
	msg := wire.NewMessage(s, 1)
	msg.Method = "present_surface"
	msg.Args = []any{surface, method, output}
	msg.WriteObject(surface)
	msg.WriteUint(uint32(method))
	msg.WriteObject(output)
	s.client.Enqueue(msg)
}

func (s *Shell) Dispatch(msg *wire.MessageBuffer) error {
	switch msg.Op() {
	case 0: // capability
		capability := msg.ReadUint()
		if err := msg.Err(); err != nil {
			return err
		}
		if s.Listener != nil {
			s.Listener.Capability(Capability(capability))
		}
		return nil
	}

	return wire.UnknownOpError{Interface: ShellInterface, Op: msg.Op()}
}

func (s *Shell) EventName(op uint16) string {
	if op == 0 {
		return "capability"
	}
	return "unknown"
}

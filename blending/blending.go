// Package blending implements the client side of
// zwp_alpha_compositing_v1, a vendor extension that lets a surface
// set a global alpha and blending equation. Compositors without it
// simply never advertise the global.
package blending

import (
	wl "deedles.dev/wlsink/client"
	"deedles.dev/wlsink/wire"
)

const (
	CompositingInterface = "zwp_alpha_compositing_v1"
	compositingVersion   = 1

	BlendingInterface = "zwp_blending_v1"
)

// Equation selects how a surface is blended with the content below
// it.
type Equation uint32

const (
	EquationNone Equation = iota
	EquationPremultiplied
	EquationStraight
	EquationFromSource
)

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

func (o *object) setup(c *wl.Client, version uint32, self wire.Object) {
	o.client = c
	o.version = version
	c.Add(self)
}

// Compositing is the zwp_alpha_compositing_v1 global.
type Compositing struct {
	object
}

func BindCompositing(c *wl.Client, r *wl.Registry, name, version uint32) *Compositing {
	a := &Compositing{}
	a.setup(c, min(version, compositingVersion), a)
	r.Bind(name, CompositingInterface, a.version, a)
	return a
}

func (a *Compositing) Interface() string { return CompositingInterface }

func (a *Compositing) Destroy() {
	msg := wire.NewMessage(a, 0)
	msg.Method = "destroy"
	a.client.Enqueue(msg)
}

// GetBlending extends surface with blending state.
func (a *Compositing) GetBlending(surface *wl.Surface) *Blending {
	b := &Blending{}
	b.setup(a.client, a.version, b)

	msg := wire.NewMessage(a, 1)
	msg.Method = "get_blending"
	msg.Args = []any{b.id, surface}
	msg.WriteUint(b.id)
	msg.WriteObject(surface)
	a.client.Enqueue(msg)

	return b
}

func (a *Compositing) Dispatch(msg *wire.MessageBuffer) error {
	return wire.UnknownOpError{Interface: CompositingInterface, Op: msg.Op()}
}

// Blending is the per-surface blending state. Changes are
// double-buffered and take effect on the next wl_surface.commit.
type Blending struct {
	object
}

func (b *Blending) Interface() string { return BlendingInterface }

func (b *Blending) Destroy() {
	msg := wire.NewMessage(b, 0)
	msg.Method = "destroy"
	b.client.Enqueue(msg)
}

func (b *Blending) SetBlending(equation Equation) {
	msg := wire.NewMessage(b, 1)
	msg.Method = "set_blending"
	msg.Args = []any{equation}
	msg.WriteUint(uint32(equation))
	b.client.Enqueue(msg)
}

func (b *Blending) SetAlpha(value wire.Fixed) {
	msg := wire.NewMessage(b, 2)
	msg.Method = "set_alpha"
	msg.Args = []any{value}
	msg.WriteFixed(value)
	b.client.Enqueue(msg)
}

func (b *Blending) Dispatch(msg *wire.MessageBuffer) error {
	return wire.UnknownOpError{Interface: BlendingInterface, Op: msg.Op()}
}

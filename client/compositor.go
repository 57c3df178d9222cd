package wl

import "deedles.dev/wlsink/wire"

const (
	CompositorInterface = "wl_compositor"
	compositorVersion   = 4
)

// Compositor is the wl_compositor global, the factory for surfaces
// and regions.
type Compositor struct {
	object
}

// BindCompositor binds the wl_compositor global advertised under
// name. The bound version is capped at what this package implements.
func BindCompositor(c *Client, r *Registry, name, version uint32) *Compositor {
	comp := &Compositor{}
	comp.setup(c, min(version, compositorVersion), comp)
	r.Bind(name, CompositorInterface, comp.version, comp)
	return comp
}

func (c *Compositor) Interface() string { return CompositorInterface }

func (c *Compositor) CreateSurface() *Surface {
	s := &Surface{}
	s.setup(c.client, c.version, s)

	msg := wire.NewMessage(c, 0)
	msg.Method = "create_surface"
	msg.Args = []any{s.id}
	msg.WriteUint(s.id)
	c.client.Enqueue(msg)

	return s
}

func (c *Compositor) CreateRegion() *Region {
	reg := &Region{}
	reg.setup(c.client, c.version, reg)

	msg := wire.NewMessage(c, 1)
	msg.Method = "create_region"
	msg.Args = []any{reg.id}
	msg.WriteUint(reg.id)
	c.client.Enqueue(msg)

	return reg
}

func (c *Compositor) Dispatch(msg *wire.MessageBuffer) error {
	return wire.UnknownOpError{Interface: CompositorInterface, Op: msg.Op()}
}

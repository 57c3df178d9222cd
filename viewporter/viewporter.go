// Package viewporter implements the client side of wp_viewporter,
// which lets the compositor crop and scale surface content instead
// of the client resampling pixels itself.
package viewporter

import (
	wl "deedles.dev/wlsink/client"
	"deedles.dev/wlsink/wire"
)

const (
	ViewporterInterface = "wp_viewporter"
	viewporterVersion   = 1

	ViewportInterface = "wp_viewport"
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

// Viewporter is the wp_viewporter global, the factory for viewports.
type Viewporter struct {
	object
}

func BindViewporter(c *wl.Client, r *wl.Registry, name, version uint32) *Viewporter {
	v := &Viewporter{}
	v.setup(c, min(version, viewporterVersion), v)
	r.Bind(name, ViewporterInterface, v.version, v)
	return v
}

func (v *Viewporter) Interface() string { return ViewporterInterface }

func (v *Viewporter) Destroy() {
	msg := wire.NewMessage(v, 0)
	msg.Method = "destroy"
	v.client.Enqueue(msg)
}

// GetViewport attaches crop/scale state to surface. At most one
// viewport may exist per surface.
func (v *Viewporter) GetViewport(surface *wl.Surface) *Viewport {
	vp := &Viewport{}
	vp.setup(v.client, v.version, vp)

	msg := wire.NewMessage(v, 1)
	msg.Method = "get_viewport"
	msg.Args = []any{vp.id, surface}
	msg.WriteUint(vp.id)
	msg.WriteObject(surface)
	v.client.Enqueue(msg)

	return vp
}

func (v *Viewporter) Dispatch(msg *wire.MessageBuffer) error {
	return wire.UnknownOpError{Interface: ViewporterInterface, Op: msg.Op()}
}

// Viewport is the wp_viewport crop/scale state of one surface. Both
// the source rectangle and the destination size are double-buffered
// and applied on commit.
type Viewport struct {
	object
}

func (vp *Viewport) Interface() string { return ViewportInterface }

func (vp *Viewport) Destroy() {
	msg := wire.NewMessage(vp, 0)
	msg.Method = "destroy"
	vp.client.Enqueue(msg)
}

// SetSource selects the rectangle of the buffer to display. Passing
// -1 for all values unsets the source rectangle.
func (vp *Viewport) SetSource(x, y, width, height wire.Fixed) {
	msg := wire.NewMessage(vp, 1)
	msg.Method = "set_source"
	msg.Args = []any{x, y, width, height}
	msg.WriteFixed(x)
	msg.WriteFixed(y)
	msg.WriteFixed(width)
	msg.WriteFixed(height)
	vp.client.Enqueue(msg)
}

// UnsetSource resets the source rectangle to the whole buffer.
func (vp *Viewport) UnsetSource() {
	vp.SetSource(wire.FixedInt(-1), wire.FixedInt(-1), wire.FixedInt(-1), wire.FixedInt(-1))
}

// SetDestination sets the size the (possibly cropped) content is
// scaled to, in surface coordinates. Passing -1 for both unsets it.
func (vp *Viewport) SetDestination(width, height int32) {
	msg := wire.NewMessage(vp, 2)
	msg.Method = "set_destination"
	msg.Args = []any{width, height}
	msg.WriteInt(width)
	msg.WriteInt(height)
	vp.client.Enqueue(msg)
}

func (vp *Viewport) Dispatch(msg *wire.MessageBuffer) error {
	return wire.UnknownOpError{Interface: ViewportInterface, Op: msg.Op()}
}

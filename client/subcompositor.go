package wl

import "deedles.dev/wlsink/wire"

const (
	SubcompositorInterface = "wl_subcompositor"
	subcompositorVersion   = 1

	SubsurfaceInterface = "wl_subsurface"
)

// Subcompositor is the wl_subcompositor global, the factory for
// subsurface roles.
type Subcompositor struct {
	object
}

func BindSubcompositor(c *Client, r *Registry, name, version uint32) *Subcompositor {
	sub := &Subcompositor{}
	sub.setup(c, min(version, subcompositorVersion), sub)
	r.Bind(name, SubcompositorInterface, sub.version, sub)
	return sub
}

func (sc *Subcompositor) Interface() string { return SubcompositorInterface }

func (sc *Subcompositor) Destroy() {
	msg := wire.NewMessage(sc, 0)
	msg.Method = "destroy"
	sc.client.Enqueue(msg)
}

// GetSubsurface gives surface a subsurface role, composited within
// parent.
func (sc *Subcompositor) GetSubsurface(surface, parent *Surface) *Subsurface {
	ss := &Subsurface{surface: surface}
	ss.setup(sc.client, sc.version, ss)

	msg := wire.NewMessage(sc, 1)
	msg.Method = "get_subsurface"
	msg.Args = []any{ss.id, surface, parent}
	msg.WriteUint(ss.id)
	msg.WriteObject(surface)
	msg.WriteObject(parent)
	sc.client.Enqueue(msg)

	return ss
}

func (sc *Subcompositor) Dispatch(msg *wire.MessageBuffer) error {
	return wire.UnknownOpError{Interface: SubcompositorInterface, Op: msg.Op()}
}

// Subsurface is the wl_subsurface role object for a surface nested
// within a parent surface.
type Subsurface struct {
	object
	surface *Surface
}

func (ss *Subsurface) Interface() string { return SubsurfaceInterface }

// Surface returns the surface holding this role.
func (ss *Subsurface) Surface() *Surface { return ss.surface }

func (ss *Subsurface) Destroy() {
	msg := wire.NewMessage(ss, 0)
	msg.Method = "destroy"
	ss.client.Enqueue(msg)
}

// SetPosition schedules a move relative to the parent's origin. It
// takes effect on the parent's next commit.
func (ss *Subsurface) SetPosition(x, y int32) {
	msg := wire.NewMessage(ss, 1)
	msg.Method = "set_position"
	msg.Args = []any{x, y}
	msg.WriteInt(x)
	msg.WriteInt(y)
	ss.client.Enqueue(msg)
}

func (ss *Subsurface) PlaceAbove(sibling *Surface) {
	msg := wire.NewMessage(ss, 2)
	msg.Method = "place_above"
	msg.Args = []any{sibling}
	msg.WriteObject(sibling)
	ss.client.Enqueue(msg)
}

func (ss *Subsurface) PlaceBelow(sibling *Surface) {
	msg := wire.NewMessage(ss, 3)
	msg.Method = "place_below"
	msg.Args = []any{sibling}
	msg.WriteObject(sibling)
	ss.client.Enqueue(msg)
}

// SetSync ties the subsurface's state application to the parent's
// commits.
func (ss *Subsurface) SetSync() {
	msg := wire.NewMessage(ss, 4)
	msg.Method = "set_sync"
	ss.client.Enqueue(msg)
}

// SetDesync lets the subsurface's own commits apply immediately.
func (ss *Subsurface) SetDesync() {
	msg := wire.NewMessage(ss, 5)
	msg.Method = "set_desync"
	ss.client.Enqueue(msg)
}

func (ss *Subsurface) Dispatch(msg *wire.MessageBuffer) error {
	return wire.UnknownOpError{Interface: SubsurfaceInterface, Op: msg.Op()}
}

package wl

import "deedles.dev/wlsink/wire"

// object is the proxy state embedded in every protocol object type.
type object struct {
	client  *Client
	id      uint32
	version uint32
	dead    bool
}

func (o *object) ID() uint32 { return o.id }

func (o *object) SetID(id uint32) { o.id = id }

// Version is the protocol version the object was created with.
// Objects created by another object inherit its version.
func (o *object) Version() uint32 { return o.version }

func (o *object) Delete() { o.dead = true }

// Dead reports whether the compositor has confirmed the object's
// destruction via wl_display.delete_id.
func (o *object) Dead() bool { return o.dead }

// Client returns the client the object belongs to.
func (o *object) Client() *Client { return o.client }

// setup initializes the proxy and registers it, assigning an ID.
func (o *object) setup(c *Client, version uint32, self wire.Object) {
	o.client = c
	o.version = version
	c.Add(self)
}

// lookup resolves an object-ID event argument to a typed proxy. It
// returns the zero value when the ID is unknown or of another type,
// which the protocol allows to happen around object destruction.
func lookup[T wire.Object](c *Client, id uint32) T {
	var zero T
	if id == 0 {
		return zero
	}
	obj, ok := c.Get(id).(T)
	if !ok {
		return zero
	}
	return obj
}

// Package xdg implements the client side of the xdg-shell protocol,
// which assigns desktop window roles to surfaces.
package xdg

import (
	wl "deedles.dev/wlsink/client"
	"deedles.dev/wlsink/wire"
)

// object is the proxy state embedded in every object type of this
// package.
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

// setup initializes the proxy and registers it, assigning an ID.
func (o *object) setup(c *wl.Client, version uint32, self wire.Object) {
	o.client = c
	o.version = version
	c.Add(self)
}

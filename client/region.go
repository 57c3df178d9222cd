package wl

import "deedles.dev/wlsink/wire"

const RegionInterface = "wl_region"

// Region is a wl_region: a set of rectangles used for opaque and
// input region declarations.
type Region struct {
	object
}

func (r *Region) Interface() string { return RegionInterface }

func (r *Region) Destroy() {
	msg := wire.NewMessage(r, 0)
	msg.Method = "destroy"
	r.client.Enqueue(msg)
}

func (r *Region) Add(x, y, width, height int32) {
	msg := wire.NewMessage(r, 1)
	msg.Method = "add"
	msg.Args = []any{x, y, width, height}
	msg.WriteInt(x)
	msg.WriteInt(y)
	msg.WriteInt(width)
	msg.WriteInt(height)
	r.client.Enqueue(msg)
}

func (r *Region) Subtract(x, y, width, height int32) {
	msg := wire.NewMessage(r, 2)
	msg.Method = "subtract"
	msg.Args = []any{x, y, width, height}
	msg.WriteInt(x)
	msg.WriteInt(y)
	msg.WriteInt(width)
	msg.WriteInt(height)
	r.client.Enqueue(msg)
}

func (r *Region) Dispatch(msg *wire.MessageBuffer) error {
	return wire.UnknownOpError{Interface: RegionInterface, Op: msg.Op()}
}

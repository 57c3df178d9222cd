package wl

import "deedles.dev/wlsink/wire"

const (
	SeatInterface = "wl_seat"
	seatVersion   = 5
)

// SeatCapability is the bitmask of input devices a seat offers.
type SeatCapability uint32

const (
	SeatCapabilityPointer SeatCapability = 1 << iota
	SeatCapabilityKeyboard
	SeatCapabilityTouch
)

func (c SeatCapability) Has(want SeatCapability) bool {
	return c&want != 0
}

type SeatListener interface {
	Capabilities(caps SeatCapability)
	Name(name string)
}

// Seat is a wl_seat global: one user's collection of input devices.
type Seat struct {
	object
	Listener SeatListener
}

func BindSeat(c *Client, r *Registry, name, version uint32) *Seat {
	s := &Seat{}
	s.setup(c, min(version, seatVersion), s)
	r.Bind(name, SeatInterface, s.version, s)
	return s
}

func (s *Seat) Interface() string { return SeatInterface }

// GetPointer creates the pointer device. Only valid while the seat
// advertises the pointer capability.
func (s *Seat) GetPointer() *Pointer {
	p := &Pointer{}
	p.setup(s.client, s.version, p)

	msg := wire.NewMessage(s, 0)
	msg.Method = "get_pointer"
	msg.Args = []any{p.id}
	msg.WriteUint(p.id)
	s.client.Enqueue(msg)

	return p
}

// GetTouch creates the touch device. Only valid while the seat
// advertises the touch capability.
func (s *Seat) GetTouch() *Touch {
	t := &Touch{}
	t.setup(s.client, s.version, t)

	msg := wire.NewMessage(s, 2)
	msg.Method = "get_touch"
	msg.Args = []any{t.id}
	msg.WriteUint(t.id)
	s.client.Enqueue(msg)

	return t
}

func (s *Seat) Release() {
	msg := wire.NewMessage(s, 3)
	msg.Method = "release"
	s.client.Enqueue(msg)
}

func (s *Seat) Dispatch(msg *wire.MessageBuffer) error {
	switch msg.Op() {
	case 0: // capabilities
		caps := msg.ReadUint()
		if err := msg.Err(); err != nil {
			return err
		}
		if s.Listener != nil {
			s.Listener.Capabilities(SeatCapability(caps))
		}
		return nil

	case 1: // name
		name := msg.ReadString()
		if err := msg.Err(); err != nil {
			return err
		}
		if s.Listener != nil {
			s.Listener.Name(name)
		}
		return nil
	}

	return wire.UnknownOpError{Interface: SeatInterface, Op: msg.Op()}
}

func (s *Seat) EventName(op uint16) string {
	switch op {
	case 0:
		return "capabilities"
	case 1:
		return "name"
	}
	return "unknown"
}

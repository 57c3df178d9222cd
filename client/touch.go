package wl

import "deedles.dev/wlsink/wire"

const TouchInterface = "wl_touch"

type TouchListener interface {
	Down(serial, time uint32, surface *Surface, id int32, x, y wire.Fixed)
	Up(serial, time uint32, id int32)
	Motion(time uint32, id int32, x, y wire.Fixed)
	Frame()
	Cancel()
}

// Touch is a wl_touch device.
type Touch struct {
	object
	Listener TouchListener
}

func (t *Touch) Interface() string { return TouchInterface }

func (t *Touch) Release() {
	msg := wire.NewMessage(t, 0)
	msg.Method = "release"
	t.client.Enqueue(msg)
}

func (t *Touch) Dispatch(msg *wire.MessageBuffer) error {
	switch msg.Op() {
	case 0: // down
		serial := msg.ReadUint()
		time := msg.ReadUint()
		surface := msg.ReadUint()
		id := msg.ReadInt()
		x := msg.ReadFixed()
		y := msg.ReadFixed()
		if err := msg.Err(); err != nil {
			return err
		}
		if t.Listener != nil {
			t.Listener.Down(serial, time, lookup[*Surface](t.client, surface), id, x, y)
		}
		return nil

	case 1: // up
		serial := msg.ReadUint()
		time := msg.ReadUint()
		id := msg.ReadInt()
		if err := msg.Err(); err != nil {
			return err
		}
		if t.Listener != nil {
			t.Listener.Up(serial, time, id)
		}
		return nil

	case 2: // motion
		time := msg.ReadUint()
		id := msg.ReadInt()
		x := msg.ReadFixed()
		y := msg.ReadFixed()
		if err := msg.Err(); err != nil {
			return err
		}
		if t.Listener != nil {
			t.Listener.Motion(time, id, x, y)
		}
		return nil

	case 3: // frame
		if err := msg.Err(); err != nil {
			return err
		}
		if t.Listener != nil {
			t.Listener.Frame()
		}
		return nil

	case 4: // cancel
		if err := msg.Err(); err != nil {
			return err
		}
		if t.Listener != nil {
			t.Listener.Cancel()
		}
		return nil
	}

	return wire.UnknownOpError{Interface: TouchInterface, Op: msg.Op()}
}

func (t *Touch) EventName(op uint16) string {
	switch op {
	case 0:
		return "down"
	case 1:
		return "up"
	case 2:
		return "motion"
	case 3:
		return "frame"
	case 4:
		return "cancel"
	}
	return "unknown"
}

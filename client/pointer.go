package wl

import "deedles.dev/wlsink/wire"

const PointerInterface = "wl_pointer"

type PointerButtonState uint32

const (
	PointerButtonStateReleased PointerButtonState = iota
	PointerButtonStatePressed
)

type PointerAxis uint32

const (
	PointerAxisVerticalScroll PointerAxis = iota
	PointerAxisHorizontalScroll
)

type PointerAxisSource uint32

const (
	PointerAxisSourceWheel PointerAxisSource = iota
	PointerAxisSourceFinger
	PointerAxisSourceContinuous
	PointerAxisSourceWheelTilt
)

type PointerListener interface {
	Enter(serial uint32, surface *Surface, surfaceX, surfaceY wire.Fixed)
	Leave(serial uint32, surface *Surface)
	Motion(time uint32, surfaceX, surfaceY wire.Fixed)
	Button(serial, time, button uint32, state PointerButtonState)
	Axis(time uint32, axis PointerAxis, value wire.Fixed)
	Frame()
	AxisSource(source PointerAxisSource)
	AxisStop(time uint32, axis PointerAxis)
	AxisDiscrete(axis PointerAxis, discrete int32)
}

// Pointer is a wl_pointer device.
type Pointer struct {
	object
	Listener PointerListener
}

func (p *Pointer) Interface() string { return PointerInterface }

// SetCursor sets the cursor image to surface, or hides the cursor if
// surface is nil. serial must be the serial of the latest enter.
func (p *Pointer) SetCursor(serial uint32, surface *Surface, hotspotX, hotspotY int32) {
	msg := wire.NewMessage(p, 0)
	msg.Method = "set_cursor"
	msg.Args = []any{serial, surface, hotspotX, hotspotY}
	msg.WriteUint(serial)
	msg.WriteObject(surface)
	msg.WriteInt(hotspotX)
	msg.WriteInt(hotspotY)
	p.client.Enqueue(msg)
}

func (p *Pointer) Release() {
	msg := wire.NewMessage(p, 1)
	msg.Method = "release"
	p.client.Enqueue(msg)
}

func (p *Pointer) Dispatch(msg *wire.MessageBuffer) error {
	switch msg.Op() {
	case 0: // enter
		serial := msg.ReadUint()
		surface := msg.ReadUint()
		sx := msg.ReadFixed()
		sy := msg.ReadFixed()
		if err := msg.Err(); err != nil {
			return err
		}
		if p.Listener != nil {
			p.Listener.Enter(serial, lookup[*Surface](p.client, surface), sx, sy)
		}
		return nil

	case 1: // leave
		serial := msg.ReadUint()
		surface := msg.ReadUint()
		if err := msg.Err(); err != nil {
			return err
		}
		if p.Listener != nil {
			p.Listener.Leave(serial, lookup[*Surface](p.client, surface))
		}
		return nil

	case 2: // motion
		time := msg.ReadUint()
		sx := msg.ReadFixed()
		sy := msg.ReadFixed()
		if err := msg.Err(); err != nil {
			return err
		}
		if p.Listener != nil {
			p.Listener.Motion(time, sx, sy)
		}
		return nil

	case 3: // button
		serial := msg.ReadUint()
		time := msg.ReadUint()
		button := msg.ReadUint()
		state := msg.ReadUint()
		if err := msg.Err(); err != nil {
			return err
		}
		if p.Listener != nil {
			p.Listener.Button(serial, time, button, PointerButtonState(state))
		}
		return nil

	case 4: // axis
		time := msg.ReadUint()
		axis := msg.ReadUint()
		value := msg.ReadFixed()
		if err := msg.Err(); err != nil {
			return err
		}
		if p.Listener != nil {
			p.Listener.Axis(time, PointerAxis(axis), value)
		}
		return nil

	case 5: // frame
		if err := msg.Err(); err != nil {
			return err
		}
		if p.Listener != nil {
			p.Listener.Frame()
		}
		return nil

	case 6: // axis_source
		source := msg.ReadUint()
		if err := msg.Err(); err != nil {
			return err
		}
		if p.Listener != nil {
			p.Listener.AxisSource(PointerAxisSource(source))
		}
		return nil

	case 7: // axis_stop
		time := msg.ReadUint()
		axis := msg.ReadUint()
		if err := msg.Err(); err != nil {
			return err
		}
		if p.Listener != nil {
			p.Listener.AxisStop(time, PointerAxis(axis))
		}
		return nil

	case 8: // axis_discrete
		axis := msg.ReadUint()
		discrete := msg.ReadInt()
		if err := msg.Err(); err != nil {
			return err
		}
		if p.Listener != nil {
			p.Listener.AxisDiscrete(PointerAxis(axis), discrete)
		}
		return nil
	}

	return wire.UnknownOpError{Interface: PointerInterface, Op: msg.Op()}
}

func (p *Pointer) EventName(op uint16) string {
	switch op {
	case 0:
		return "enter"
	case 1:
		return "leave"
	case 2:
		return "motion"
	case 3:
		return "button"
	case 4:
		return "axis"
	case 5:
		return "frame"
	case 6:
		return "axis_source"
	case 7:
		return "axis_stop"
	case 8:
		return "axis_discrete"
	}
	return "unknown"
}

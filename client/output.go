package wl

import "deedles.dev/wlsink/wire"

const (
	OutputInterface = "wl_output"
	outputVersion   = 2
)

// OutputTransform is a rotation/flip applied to output or buffer
// content.
type OutputTransform int32

const (
	OutputTransformNormal OutputTransform = iota
	OutputTransform90
	OutputTransform180
	OutputTransform270
	OutputTransformFlipped
	OutputTransformFlipped90
	OutputTransformFlipped180
	OutputTransformFlipped270
)

// Swapped reports whether the transform exchanges width and height.
func (t OutputTransform) Swapped() bool {
	switch t {
	case OutputTransform90, OutputTransform270, OutputTransformFlipped90, OutputTransformFlipped270:
		return true
	}
	return false
}

func (t OutputTransform) String() string {
	switch t {
	case OutputTransformNormal:
		return "normal"
	case OutputTransform90:
		return "90"
	case OutputTransform180:
		return "180"
	case OutputTransform270:
		return "270"
	case OutputTransformFlipped:
		return "flipped"
	case OutputTransformFlipped90:
		return "flipped-90"
	case OutputTransformFlipped180:
		return "flipped-180"
	case OutputTransformFlipped270:
		return "flipped-270"
	}
	return "unknown"
}

// OutputMode flags describe a wl_output.mode event.
type OutputMode uint32

const (
	OutputModeCurrent   OutputMode = 0x1
	OutputModePreferred OutputMode = 0x2
)

type OutputListener interface {
	Geometry(x, y, physicalWidth, physicalHeight, subpixel int32, make, model string, transform OutputTransform)
	Mode(flags OutputMode, width, height, refresh int32)
	Done()
	Scale(factor int32)
}

// Output is a wl_output global describing one connected display.
type Output struct {
	object
	Listener OutputListener
}

func BindOutput(c *Client, r *Registry, name, version uint32) *Output {
	o := &Output{}
	o.setup(c, min(version, outputVersion), o)
	r.Bind(name, OutputInterface, o.version, o)
	return o
}

func (o *Output) Interface() string { return OutputInterface }

func (o *Output) Dispatch(msg *wire.MessageBuffer) error {
	switch msg.Op() {
	case 0: // geometry
		x := msg.ReadInt()
		y := msg.ReadInt()
		physicalWidth := msg.ReadInt()
		physicalHeight := msg.ReadInt()
		subpixel := msg.ReadInt()
		mk := msg.ReadString()
		model := msg.ReadString()
		transform := msg.ReadInt()
		if err := msg.Err(); err != nil {
			return err
		}
		if o.Listener != nil {
			o.Listener.Geometry(x, y, physicalWidth, physicalHeight, subpixel, mk, model, OutputTransform(transform))
		}
		return nil

	case 1: // mode
		flags := msg.ReadUint()
		width := msg.ReadInt()
		height := msg.ReadInt()
		refresh := msg.ReadInt()
		if err := msg.Err(); err != nil {
			return err
		}
		if o.Listener != nil {
			o.Listener.Mode(OutputMode(flags), width, height, refresh)
		}
		return nil

	case 2: // done
		if err := msg.Err(); err != nil {
			return err
		}
		if o.Listener != nil {
			o.Listener.Done()
		}
		return nil

	case 3: // scale
		factor := msg.ReadInt()
		if err := msg.Err(); err != nil {
			return err
		}
		if o.Listener != nil {
			o.Listener.Scale(factor)
		}
		return nil
	}

	return wire.UnknownOpError{Interface: OutputInterface, Op: msg.Op()}
}

func (o *Output) EventName(op uint16) string {
	switch op {
	case 0:
		return "geometry"
	case 1:
		return "mode"
	case 2:
		return "done"
	case 3:
		return "scale"
	}
	return "unknown"
}

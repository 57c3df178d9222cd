package wl

import "deedles.dev/wlsink/wire"

const SurfaceInterface = "wl_surface"

type SurfaceListener interface {
	// Enter signals that the surface became visible on output.
	Enter(output *Output)
	// Leave signals that the surface left output.
	Leave(output *Output)
}

// Surface is a wl_surface: a rectangle of pixels composited onto an
// output. Its double-buffered state (buffer, damage, regions,
// transform, scale) is applied by Commit.
type Surface struct {
	object
	Listener SurfaceListener
}

func (s *Surface) Interface() string { return SurfaceInterface }

// Destroy requests destruction. The proxy stays registered until the
// compositor confirms with wl_display.delete_id.
func (s *Surface) Destroy() {
	msg := wire.NewMessage(s, 0)
	msg.Method = "destroy"
	s.client.Enqueue(msg)
}

// Attach sets the pending buffer. A nil buffer detaches the content,
// making the surface invisible on the next commit.
func (s *Surface) Attach(buf *Buffer, x, y int32) {
	msg := wire.NewMessage(s, 1)
	msg.Method = "attach"
	msg.Args = []any{buf, x, y}
	msg.WriteObject(buf)
	msg.WriteInt(x)
	msg.WriteInt(y)
	s.client.Enqueue(msg)
}

// Damage marks a region as needing repaint, in surface coordinates.
func (s *Surface) Damage(x, y, width, height int32) {
	msg := wire.NewMessage(s, 2)
	msg.Method = "damage"
	msg.Args = []any{x, y, width, height}
	msg.WriteInt(x)
	msg.WriteInt(y)
	msg.WriteInt(width)
	msg.WriteInt(height)
	s.client.Enqueue(msg)
}

// Frame requests a callback that fires when it is a good time to
// draw the next frame.
func (s *Surface) Frame() *Callback {
	cb := &Callback{}
	cb.setup(s.client, 1, cb)

	msg := wire.NewMessage(s, 3)
	msg.Method = "frame"
	msg.Args = []any{cb.id}
	msg.WriteUint(cb.id)
	s.client.Enqueue(msg)

	return cb
}

// SetOpaqueRegion declares the region the compositor may treat as
// fully opaque. A nil region marks the whole surface transparent.
func (s *Surface) SetOpaqueRegion(region *Region) {
	msg := wire.NewMessage(s, 4)
	msg.Method = "set_opaque_region"
	msg.Args = []any{region}
	msg.WriteObject(region)
	s.client.Enqueue(msg)
}

// SetInputRegion declares where the surface accepts input. An empty
// region makes the surface input-transparent.
func (s *Surface) SetInputRegion(region *Region) {
	msg := wire.NewMessage(s, 5)
	msg.Method = "set_input_region"
	msg.Args = []any{region}
	msg.WriteObject(region)
	s.client.Enqueue(msg)
}

// Commit atomically applies the pending state.
func (s *Surface) Commit() {
	msg := wire.NewMessage(s, 6)
	msg.Method = "commit"
	s.client.Enqueue(msg)
}

// SetBufferTransform declares that the attached buffer's content is
// already transformed by the given output transform.
func (s *Surface) SetBufferTransform(transform OutputTransform) {
	msg := wire.NewMessage(s, 7)
	msg.Method = "set_buffer_transform"
	msg.Args = []any{transform}
	msg.WriteInt(int32(transform))
	s.client.Enqueue(msg)
}

// SetBufferScale declares the integer scale of the attached buffer.
func (s *Surface) SetBufferScale(scale int32) {
	msg := wire.NewMessage(s, 8)
	msg.Method = "set_buffer_scale"
	msg.Args = []any{scale}
	msg.WriteInt(scale)
	s.client.Enqueue(msg)
}

// DamageBuffer is Damage in buffer coordinates. Requires version 4;
// callers on older compositors must use Damage.
func (s *Surface) DamageBuffer(x, y, width, height int32) {
	msg := wire.NewMessage(s, 9)
	msg.Method = "damage_buffer"
	msg.Args = []any{x, y, width, height}
	msg.WriteInt(x)
	msg.WriteInt(y)
	msg.WriteInt(width)
	msg.WriteInt(height)
	s.client.Enqueue(msg)
}

func (s *Surface) Dispatch(msg *wire.MessageBuffer) error {
	switch msg.Op() {
	case 0: // enter
		output := msg.ReadUint()
		if err := msg.Err(); err != nil {
			return err
		}
		if s.Listener != nil {
			s.Listener.Enter(lookup[*Output](s.client, output))
		}
		return nil

	case 1: // leave
		output := msg.ReadUint()
		if err := msg.Err(); err != nil {
			return err
		}
		if s.Listener != nil {
			s.Listener.Leave(lookup[*Output](s.client, output))
		}
		return nil
	}

	return wire.UnknownOpError{Interface: SurfaceInterface, Op: msg.Op()}
}

func (s *Surface) EventName(op uint16) string {
	switch op {
	case 0:
		return "enter"
	case 1:
		return "leave"
	}
	return "unknown"
}

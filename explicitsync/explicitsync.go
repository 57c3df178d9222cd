// Package explicitsync implements the client side of
// zwp_linux_explicit_synchronization_v1. Instead of the implicit
// wl_buffer.release event, buffer reuse is gated by per-commit
// release objects whose events may carry a GPU release fence.
package explicitsync

import (
	wl "deedles.dev/wlsink/client"
	"deedles.dev/wlsink/wire"
)

const (
	SyncInterface = "zwp_linux_explicit_synchronization_v1"
	syncVersion   = 2

	SurfaceSyncInterface   = "zwp_linux_surface_synchronization_v1"
	BufferReleaseInterface = "zwp_linux_buffer_release_v1"
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

// Sync is the zwp_linux_explicit_synchronization_v1 global.
type Sync struct {
	object
}

func BindSync(c *wl.Client, r *wl.Registry, name, version uint32) *Sync {
	s := &Sync{}
	s.setup(c, min(version, syncVersion), s)
	r.Bind(name, SyncInterface, s.version, s)
	return s
}

func (s *Sync) Interface() string { return SyncInterface }

func (s *Sync) Destroy() {
	msg := wire.NewMessage(s, 0)
	msg.Method = "destroy"
	s.client.Enqueue(msg)
}

// GetSynchronization extends surface with explicit synchronization
// state. At most one synchronization object may exist per surface.
func (s *Sync) GetSynchronization(surface *wl.Surface) *SurfaceSync {
	ss := &SurfaceSync{}
	ss.setup(s.client, s.version, ss)

	msg := wire.NewMessage(s, 1)
	msg.Method = "get_synchronization"
	msg.Args = []any{ss.id, surface}
	msg.WriteUint(ss.id)
	msg.WriteObject(surface)
	s.client.Enqueue(msg)

	return ss
}

func (s *Sync) Dispatch(msg *wire.MessageBuffer) error {
	return wire.UnknownOpError{Interface: SyncInterface, Op: msg.Op()}
}

// SurfaceSync is the per-surface synchronization state.
type SurfaceSync struct {
	object
}

func (ss *SurfaceSync) Interface() string { return SurfaceSyncInterface }

func (ss *SurfaceSync) Destroy() {
	msg := wire.NewMessage(ss, 0)
	msg.Method = "destroy"
	ss.client.Enqueue(msg)
}

// GetRelease creates the release object for the buffer of the next
// commit. Its event fires at most once, when the compositor is done
// with that buffer.
func (ss *SurfaceSync) GetRelease() *BufferRelease {
	br := &BufferRelease{}
	br.setup(ss.client, ss.version, br)

	msg := wire.NewMessage(ss, 2)
	msg.Method = "get_release"
	msg.Args = []any{br.id}
	msg.WriteUint(br.id)
	ss.client.Enqueue(msg)

	return br
}

func (ss *SurfaceSync) Dispatch(msg *wire.MessageBuffer) error {
	return wire.UnknownOpError{Interface: SurfaceSyncInterface, Op: msg.Op()}
}

type BufferReleaseListener interface {
	// FencedRelease hands over a fence fd; the buffer may be reused
	// once the fence signals. The receiver owns the fd.
	FencedRelease(fence int)
	// ImmediateRelease signals that the buffer may be reused right
	// away.
	ImmediateRelease()
}

// BufferRelease is a one-shot release notification for the buffer of
// one particular commit. The object is defunct after its event.
type BufferRelease struct {
	object
	Listener BufferReleaseListener
}

func (br *BufferRelease) Interface() string { return BufferReleaseInterface }

func (br *BufferRelease) Dispatch(msg *wire.MessageBuffer) error {
	switch msg.Op() {
	case 0: // fenced_release
		fence := msg.ReadFD()
		if err := msg.Err(); err != nil {
			return err
		}
		if br.Listener != nil {
			br.Listener.FencedRelease(fence)
		}
		return nil

	case 1: // immediate_release
		if err := msg.Err(); err != nil {
			return err
		}
		if br.Listener != nil {
			br.Listener.ImmediateRelease()
		}
		return nil
	}

	return wire.UnknownOpError{Interface: BufferReleaseInterface, Op: msg.Op()}
}

func (br *BufferRelease) EventName(op uint16) string {
	switch op {
	case 0:
		return "fenced_release"
	case 1:
		return "immediate_release"
	}
	return "unknown"
}

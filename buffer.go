package wlsink

import (
	"sync"

	wl "deedles.dev/wlsink/client"
	"deedles.dev/wlsink/explicitsync"
	"golang.org/x/sys/unix"
)

// Buffer pairs a frame with its compositor-side wl_buffer and tracks
// whether the compositor currently holds it. It takes one frame
// reference per attach and returns it on release, so a frame never
// goes back to its pool while the compositor may still read it.
type Buffer struct {
	display *Display
	frame   *Frame
	wlbuf   *wl.Buffer

	mu               sync.Mutex
	usedByCompositor bool
	release          *explicitsync.BufferRelease
}

func newBuffer(d *Display, f *Frame, wlbuf *wl.Buffer) *Buffer {
	b := &Buffer{
		display: d,
		frame:   f,
		wlbuf:   wlbuf,
	}
	wlbuf.Listener = b
	d.registerBuffer(b)
	return b
}

// Frame returns the frame the buffer wraps.
func (b *Buffer) Frame() *Frame { return b.frame }

// UsedByCompositor reports whether the compositor holds the buffer.
func (b *Buffer) UsedByCompositor() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.usedByCompositor
}

// attach attaches the buffer to surface and, unless the compositor
// already holds it, takes the compositor's frame reference.
func (b *Buffer) attach(s *wl.Surface) {
	b.mu.Lock()
	if !b.usedByCompositor {
		b.frame.Ref()
		b.usedByCompositor = true
	}
	b.mu.Unlock()

	s.Attach(b.wlbuf, 0, 0)
}

// setupRelease arms an explicit-sync release object for the next
// commit of the buffer. No-op if the compositor already holds it.
func (b *Buffer) setupRelease(sync *explicitsync.SurfaceSync) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.usedByCompositor || b.release != nil {
		return
	}
	rel := sync.GetRelease()
	rel.Listener = b
	b.release = rel
}

// markReleased hands the compositor's frame reference back. It is
// idempotent: only the first call after an attach drops the
// reference.
func (b *Buffer) markReleased() {
	b.mu.Lock()
	if !b.usedByCompositor {
		b.mu.Unlock()
		return
	}
	b.usedByCompositor = false
	b.release = nil
	b.mu.Unlock()

	b.frame.Unref()
}

// Release handles wl_buffer.release. Under explicit sync the
// compositor signals through the release object instead and this
// never fires for video commits; border buffers still depend on it.
func (b *Buffer) Release() {
	b.display.log.Debug("wl_buffer.release", "buffer", b.wlbuf.ID())
	b.markReleased()
}

// FencedRelease handles zwp_linux_buffer_release_v1.fenced_release.
// The buffer may only be reused once the fence signals, so the frame
// reference is held across the fence wait. This runs on the display
// dispatch goroutine, off the streaming thread.
func (b *Buffer) FencedRelease(fence int) {
	b.mu.Lock()
	if !b.usedByCompositor {
		// Already force released.
		b.mu.Unlock()
		if fence >= 0 {
			unix.Close(fence)
		}
		return
	}
	b.usedByCompositor = false
	b.release = nil
	b.mu.Unlock()

	b.display.log.Debug("fenced_release", "buffer", b.wlbuf.ID(), "fence", fence)

	if fence >= 0 {
		if err := waitFence(fence); err != nil {
			b.display.log.Error("wait on release fence", "fence", fence, "err", err)
		}
		unix.Close(fence)
	}
	b.frame.Unref()
}

// ImmediateRelease handles zwp_linux_buffer_release_v1.immediate_release.
func (b *Buffer) ImmediateRelease() {
	b.mu.Lock()
	if !b.usedByCompositor {
		b.mu.Unlock()
		return
	}
	b.usedByCompositor = false
	b.release = nil
	b.mu.Unlock()

	b.display.log.Debug("immediate_release", "buffer", b.wlbuf.ID())

	b.frame.Unref()
}

// forceRelease drops the compositor's hold without waiting for any
// event. Used when the display connection goes away so pipeline
// frames are not leaked.
func (b *Buffer) forceRelease() {
	b.markReleased()
}

// waitFence blocks until the fence fd signals.
func waitFence(fd int) error {
	pfd := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN | unix.POLLOUT}}
	for {
		_, err := unix.Poll(pfd, -1)
		if err == unix.EINTR {
			continue
		}
		return err
	}
}

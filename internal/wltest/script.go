package wltest

import (
	"os"

	wl "deedles.dev/wlsink/client"
	"deedles.dev/wlsink/wire"
)

// PendingFrames reports how many frame callbacks are waiting for
// CompleteFrame.
func (c *Compositor) PendingFrames() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames)
}

// CompleteFrame answers the oldest outstanding frame callback. It
// reports false when none is pending.
func (c *Compositor) CompleteFrame() bool {
	c.mu.Lock()
	if len(c.frames) == 0 {
		c.mu.Unlock()
		return false
	}
	f := c.frames[0]
	c.frames = c.frames[1:]
	delete(c.iface, f.callback)
	c.mu.Unlock()

	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	c.serial++
	c.send(f.callback, wl.CallbackInterface, 0, func(mb *wire.MessageBuilder) {
		mb.WriteUint(c.serial)
	})
	c.send(1, wl.DisplayInterface, 1, func(mb *wire.MessageBuilder) {
		mb.WriteUint(f.callback)
	})
	return true
}

// ReleaseBuffer sends wl_buffer.release for the given buffer.
func (c *Compositor) ReleaseBuffer(buffer uint32) {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	c.send(buffer, wl.BufferInterface, 0, nil)
}

// ImmediateRelease answers the oldest explicit-sync release object
// with an immediate release. It reports false when none is pending.
func (c *Compositor) ImmediateRelease() bool {
	id, ok := c.popRelease()
	if !ok {
		return false
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	c.send(id, "zwp_linux_buffer_release_v1", 1, nil)
	return true
}

// FencedRelease answers the oldest explicit-sync release object with
// a fence that has not signalled yet, and returns a function that
// signals it. It reports false when no release is pending.
func (c *Compositor) FencedRelease() (signal func(), ok bool) {
	id, ok := c.popRelease()
	if !ok {
		return nil, false
	}

	r, w, err := os.Pipe()
	if err != nil {
		c.fail(err)
		return nil, false
	}
	defer r.Close()

	c.sendMu.Lock()
	c.send(id, "zwp_linux_buffer_release_v1", 0, func(mb *wire.MessageBuilder) {
		mb.WriteFile(r)
	})
	c.sendMu.Unlock()

	return func() {
		w.Write([]byte{1})
		w.Close()
	}, true
}

func (c *Compositor) popRelease() (uint32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.releases) == 0 {
		return 0, false
	}
	id := c.releases[0]
	c.releases = c.releases[1:]
	delete(c.iface, id)
	return id, true
}

// Configure sends a configure sequence for the client's toplevel
// with the given size. A zero size lets the client pick its own.
func (c *Compositor) Configure(width, height int32) {
	c.mu.Lock()
	toplevel := c.toplevel
	xdgSurface := c.roleOwner[toplevel]
	c.mu.Unlock()
	if xdgSurface == 0 {
		return
	}
	c.configure(toplevel, xdgSurface, width, height)
}

// CloseWindow asks the client's toplevel to close.
func (c *Compositor) CloseWindow() {
	c.mu.Lock()
	toplevel := c.toplevel
	c.mu.Unlock()
	if toplevel == 0 {
		return
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	c.send(toplevel, "xdg_toplevel", 1, nil)
}

// ConfigureLegacy sends a wl_shell_surface.configure with the given
// size.
func (c *Compositor) ConfigureLegacy(width, height int32) {
	id := c.findOne(wl.ShellSurfaceInterface)
	if id == 0 {
		return
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	c.send(id, wl.ShellSurfaceInterface, 1, func(mb *wire.MessageBuilder) {
		mb.WriteUint(0)
		mb.WriteInt(width)
		mb.WriteInt(height)
	})
}

// Ping sends an xdg_wm_base.ping and returns the serial it used.
func (c *Compositor) Ping() uint32 {
	id := c.findOne("xdg_wm_base")
	if id == 0 {
		return 0
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	c.serial++
	serial := c.serial
	c.send(id, "xdg_wm_base", 0, func(mb *wire.MessageBuilder) {
		mb.WriteUint(serial)
	})
	return serial
}

// PingLegacy sends a wl_shell_surface.ping and returns the serial it
// used.
func (c *Compositor) PingLegacy() uint32 {
	id := c.findOne(wl.ShellSurfaceInterface)
	if id == 0 {
		return 0
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	c.serial++
	serial := c.serial
	c.send(id, wl.ShellSurfaceInterface, 0, func(mb *wire.MessageBuilder) {
		mb.WriteUint(serial)
	})
	return serial
}

// PointerEnter moves the seat's pointer onto surface at the given
// surface-local coordinates.
func (c *Compositor) PointerEnter(surface uint32, x, y int32) {
	c.mu.Lock()
	pointer := c.pointer
	c.mu.Unlock()
	if pointer == 0 {
		return
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	c.serial++
	c.send(pointer, wl.PointerInterface, 0, func(mb *wire.MessageBuilder) {
		mb.WriteUint(c.serial)
		mb.WriteUint(surface)
		mb.WriteFixed(wire.FixedInt(int(x)))
		mb.WriteFixed(wire.FixedInt(int(y)))
	})
}

// PointerMotion moves the pointer within the entered surface.
func (c *Compositor) PointerMotion(x, y int32) {
	c.mu.Lock()
	pointer := c.pointer
	c.mu.Unlock()
	if pointer == 0 {
		return
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	c.serial++
	c.send(pointer, wl.PointerInterface, 2, func(mb *wire.MessageBuilder) {
		mb.WriteUint(c.serial)
		mb.WriteFixed(wire.FixedInt(int(x)))
		mb.WriteFixed(wire.FixedInt(int(y)))
	})
}

// PointerButton presses or releases a pointer button.
func (c *Compositor) PointerButton(button uint32, state wl.PointerButtonState) {
	c.mu.Lock()
	pointer := c.pointer
	c.mu.Unlock()
	if pointer == 0 {
		return
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	c.serial++
	c.send(pointer, wl.PointerInterface, 3, func(mb *wire.MessageBuilder) {
		mb.WriteUint(c.serial)
		mb.WriteUint(c.serial)
		mb.WriteUint(button)
		mb.WriteUint(uint32(state))
	})
}

// TouchDown starts a touch point on surface.
func (c *Compositor) TouchDown(surface uint32, x, y int32) {
	c.mu.Lock()
	touch := c.touch
	c.mu.Unlock()
	if touch == 0 {
		return
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	c.serial++
	c.send(touch, wl.TouchInterface, 0, func(mb *wire.MessageBuilder) {
		mb.WriteUint(c.serial)
		mb.WriteUint(c.serial)
		mb.WriteUint(surface)
		mb.WriteInt(0)
		mb.WriteFixed(wire.FixedInt(int(x)))
		mb.WriteFixed(wire.FixedInt(int(y)))
	})
}

func (c *Compositor) findOne(iface string) uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, name := range c.iface {
		if name == iface {
			return id
		}
	}
	return 0
}

// Commits returns how many times the given surface has been
// committed.
func (c *Compositor) Commits(surface uint32) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s := c.surfaces[surface]; s != nil {
		return s.commits
	}
	return 0
}

// Attached returns the buffer currently attached to surface, or 0
// after a nil attach.
func (c *Compositor) Attached(surface uint32) uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s := c.surfaces[surface]; s != nil {
		return s.attached
	}
	return 0
}

// BufferScale returns the buffer scale the client last set on
// surface, or 0 if it never set one.
func (c *Compositor) BufferScale(surface uint32) int32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s := c.surfaces[surface]; s != nil {
		return s.scale
	}
	return 0
}

// Buffers returns the number of live wl_buffers.
func (c *Compositor) Buffers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.buffers)
}

// Moves returns how many interactive moves the client has started.
func (c *Compositor) Moves() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.moves
}

// Resizes returns how many interactive resizes the client has
// started.
func (c *Compositor) Resizes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resizes
}

// Acked returns the configure serials the client has acknowledged.
func (c *Compositor) Acked() []uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]uint32(nil), c.acks...)
}

// Pongs returns the serials the client has answered pings with.
func (c *Compositor) Pongs() []uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]uint32(nil), c.pongs...)
}

// AppID returns the application ID the client set on its toplevel.
func (c *Compositor) AppID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.appID
}

// Alpha returns the last alpha value set through the blending
// extension.
func (c *Compositor) Alpha() wire.Fixed {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.alpha
}

// Presented reports whether the client presented a surface through
// the fullscreen shell.
func (c *Compositor) Presented() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.presented
}

// Destination returns the size the client set on the viewport of the
// given surface, if any.
func (c *Compositor) Destination(surface uint32) ([2]int32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for vp, owner := range c.viewOwner {
		if owner == surface {
			d, ok := c.dests[vp]
			return d, ok
		}
	}
	return [2]int32{}, false
}

// Source returns the source rectangle the client set on the viewport
// of the given surface, if any.
func (c *Compositor) Source(surface uint32) ([4]wire.Fixed, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for vp, owner := range c.viewOwner {
		if owner == surface {
			s, ok := c.srcs[vp]
			return s, ok
		}
	}
	return [4]wire.Fixed{}, false
}

// Fullscreens returns how many times the client asked for
// fullscreen.
func (c *Compositor) Fullscreens() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fulls
}

// Unfullscreens returns how many times the client left fullscreen.
func (c *Compositor) Unfullscreens() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.unfulls
}

// Cursors returns how many times the client set a pointer cursor.
func (c *Compositor) Cursors() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cursors
}

// CursorSurface returns the surface from the last set_cursor
// request, or zero when the cursor was hidden or never set.
func (c *Compositor) CursorSurface() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cursor
}

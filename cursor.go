package wlsink

import (
	"fmt"
	"image"
	"image/draw"
	"math"

	wl "deedles.dev/wlsink/client"
)

// SetCursor gives the seat's pointer a cursor to show over the
// display's windows. Compositors leave the cursor undefined over
// surfaces whose client never provides one, so a player that wants an
// arrow has to bring its own; cmd/wlplay shows loading one from the
// system theme. hotX and hotY are the hotspot in image coordinates. A
// nil image removes the cursor again.
//
// The cursor takes effect the next time the pointer enters one of the
// display's windows.
func (d *Display) SetCursor(img image.Image, hotX, hotY int32) error {
	if img == nil {
		d.inputMu.Lock()
		old := d.cursorSurface
		d.cursorSurface = nil
		d.inputMu.Unlock()
		if old != nil {
			old.Destroy()
		}
		return nil
	}

	bounds := img.Bounds()
	info := VideoInfo{
		Format: wl.ShmFormatArgb8888,
		Width:  int32(bounds.Dx()),
		Height: int32(bounds.Dy()),
	}
	pool, err := d.NewPool(info, 1)
	if err != nil {
		return fmt.Errorf("allocate cursor buffer: %w", err)
	}
	frame, err := pool.Acquire()
	if err != nil {
		pool.Destroy()
		return fmt.Errorf("allocate cursor buffer: %w", err)
	}

	dst := frame.Image()
	draw.Draw(dst, dst.Bounds(), img, bounds.Min, draw.Src)

	// Same arrangement as the window borders: attaching leaves the
	// compositor holding the buffer, and destroying the pool reclaims
	// the memory once wl_buffer.release comes back.
	surface := d.compositor.CreateSurface()
	frame.buffer().attach(surface)
	surface.DamageBuffer(0, 0, math.MaxInt32, math.MaxInt32)
	surface.Commit()
	frame.Unref()
	pool.Destroy()

	d.inputMu.Lock()
	old := d.cursorSurface
	d.cursorSurface = surface
	d.cursorHotX = hotX
	d.cursorHotY = hotY
	d.inputMu.Unlock()
	if old != nil {
		old.Destroy()
	}
	return nil
}

// enterCursor applies the configured cursor for the pointer enter
// identified by serial. It runs on the dispatch goroutine.
func (d *Display) enterCursor(serial uint32) {
	d.inputMu.Lock()
	surface := d.cursorSurface
	x, y := d.cursorHotX, d.cursorHotY
	p := d.pointer
	d.inputMu.Unlock()

	if surface == nil || p == nil {
		return
	}
	p.SetCursor(serial, surface, x, y)
}

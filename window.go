package wlsink

import (
	"log/slog"
	"math"
	"sync"
	"sync/atomic"

	"deedles.dev/wlsink/blending"
	wl "deedles.dev/wlsink/client"
	"deedles.dev/wlsink/explicitsync"
	"deedles.dev/wlsink/viewporter"
	"deedles.dev/wlsink/wire"
)

// Window presents video frames on a pair of Wayland surfaces: an
// area surface that covers the whole render rectangle and a video
// subsurface centered inside it. Frames enter through render and
// reach the compositor at most one per display refresh; a newer
// frame arriving while one is still on its way replaces the waiting
// one.
type Window struct {
	display *Display
	log     *slog.Logger

	area          *wl.Surface
	video         *wl.Surface
	videoSub      *wl.Subsurface
	areaSub       *wl.Subsurface
	areaViewport  *viewporter.Viewport
	videoViewport *viewporter.Viewport
	surfaceSync   *explicitsync.SurfaceSync
	blend         *blending.Blending

	// shell is the window's role on its own toplevel surface. It is
	// nil for windows embedded in an application surface.
	shell shellRole
	input *windowInput

	configured   atomic.Bool
	configuredCh chan struct{}

	// mu guards the frame slots below. redrawWait sleeps renderers
	// while a frame callback is outstanding.
	mu            sync.Mutex
	redrawWait    sync.Cond
	redrawPending bool
	next          *Buffer
	nextOwned     bool
	staged        *Buffer
	clearWindow   bool
	pendingInfo   *VideoInfo
	dead          bool

	// commitMu serializes commits against geometry changes and
	// guards the geometry state below.
	commitMu        sync.Mutex
	renderRectangle Rect
	videoRectangle  Rect
	videoWidth      int32
	videoHeight     int32
	scaledWidth     int32
	transform       wl.OutputTransform
	scale           int32
	srcX, srcY      int32
	srcW, srcH      int32
	fullscreenW     int32
	fullscreenH     int32
	mapped          bool
	onMapped        func()
	onClosed        func()
}

// newWindow builds the surface tree shared by every window mode. It
// must run on the display's dispatch goroutine.
func newWindow(d *Display) *Window {
	w := Window{
		display:      d,
		log:          d.base.With("component", "window"),
		configuredCh: make(chan struct{}),
		scale:        1,
		srcW:         -1,
		fullscreenW:  -1,
		fullscreenH:  -1,
	}
	w.redrawWait.L = &w.mu
	w.configured.Store(true)

	w.area = d.compositor.CreateSurface()
	w.video = d.compositor.CreateSurface()
	w.videoSub = d.subcompositor.GetSubsurface(w.video, w.area)
	w.videoSub.SetDesync()

	if d.viewporter != nil {
		w.areaViewport = d.viewporter.GetViewport(w.area)
		w.videoViewport = d.viewporter.GetViewport(w.video)
	}
	if d.alpha != nil {
		w.blend = d.alpha.GetBlending(w.area)
	}
	if d.explicitSync != nil {
		w.surfaceSync = d.explicitSync.GetSynchronization(w.video)
	}

	// The video surface must never take input away from whatever is
	// underneath it.
	clearInputRegion(d, w.video)

	if state, ok := loadSurfaceState(d); ok {
		w.fullscreenW = state.width
		w.fullscreenH = state.height
		w.scale = state.scale
	} else {
		width, height := d.OutputSize()
		w.fullscreenW = width
		w.fullscreenH = height - panelHeight
		w.log.Warn("no desktop configuration found, sizing fullscreen from the output",
			"width", w.fullscreenW, "height", w.fullscreenH)
	}

	d.registerWindow(&w)
	return &w
}

func clearInputRegion(d *Display, s *wl.Surface) {
	region := d.compositor.CreateRegion()
	s.SetInputRegion(region)
	region.Destroy()
}

// NewWindow creates a stand-alone window for presenting frames of
// the given format, using the best shell the compositor offers. With
// fullscreen set the window covers its output; otherwise it is sized
// from preferredWidth and preferredHeight when both are positive and
// from the video and desktop dimensions when not.
func NewWindow(d *Display, info VideoInfo, fullscreen bool, preferredWidth, preferredHeight int32) (*Window, error) {
	var w *Window
	var err error
	if runErr := d.Run(func() { w, err = newToplevel(d, fullscreen) }); runErr != nil {
		return nil, runErr
	}
	if err != nil {
		return nil, err
	}

	// Rendering before the compositor has configured the surface is
	// a protocol violation under xdg_shell, so give it a moment.
	w.waitConfigure()

	_, xdg := w.shell.(*xdgRole)
	if !(xdg && fullscreen) {
		width, height := preferredWidth, preferredHeight
		if width <= 0 || height <= 0 {
			if w.fullscreenW <= 0 {
				width, height = info.ScaledWidth(), info.Height
			} else {
				width, height = w.fullscreenW, w.fullscreenH
			}
		}
		w.SetRenderRectangle(0, 0, width, height)
	}

	return w, nil
}

// NewWindowIn creates a window embedded in an application-provided
// surface. The window renders desynchronized from the parent, so
// video keeps updating without the application committing anything.
// The caller positions it with SetRenderRectangle.
func NewWindowIn(d *Display, parent *wl.Surface) (*Window, error) {
	var w *Window
	err := d.Run(func() {
		w = newWindow(d)

		// The parent still owns input over the embedded region.
		clearInputRegion(d, w.area)
		w.areaSub = d.subcompositor.GetSubsurface(w.area, parent)
		w.areaSub.SetDesync()

		parent.Commit()
	})
	if err != nil {
		return nil, err
	}
	return w, nil
}

// OnMapped sets f to be called, on the dispatch goroutine, when the
// window first becomes visible. Set it before the first render.
func (w *Window) OnMapped(f func()) {
	w.commitMu.Lock()
	defer w.commitMu.Unlock()
	w.onMapped = f
}

// OnClosed sets f to be called, on the dispatch goroutine, when the
// user or compositor asks the window to close.
func (w *Window) OnClosed(f func()) {
	w.commitMu.Lock()
	defer w.commitMu.Unlock()
	w.onClosed = f
}

func (w *Window) emitClosed() {
	w.commitMu.Lock()
	f := w.onClosed
	w.commitMu.Unlock()
	if f != nil {
		f()
	}
}

// Toplevel reports whether the window manages its own toplevel
// surface, as opposed to being embedded in an application surface or
// presented through the fullscreen shell.
func (w *Window) Toplevel() bool {
	switch w.shell.(type) {
	case *xdgRole, *legacyRole:
		return true
	}
	return false
}

// RenderRectangle returns the window's current position and size.
func (w *Window) RenderRectangle() Rect {
	w.commitMu.Lock()
	defer w.commitMu.Unlock()
	return w.renderRectangle
}

// busy reports whether a presented frame is still waiting for its
// frame callback, meaning a render call would block right now.
func (w *Window) busy() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.redrawPending
}

func (w *Window) markConfigured() {
	if w.configured.CompareAndSwap(false, true) {
		close(w.configuredCh)
	}
}

// render hands buf to the commit machinery for presentation, or
// clears the window when buf is nil. info, when non-nil, describes a
// format or size change that takes effect with this frame. render
// blocks while a committed frame's completion callback is
// outstanding. A frame that arrives while the previous one is still
// queued for commit is staged behind it, and a newer arrival
// replaces the staged frame. It reports false when it dropped a
// staged frame that way or when the window can no longer present.
func (w *Window) render(buf *Buffer, info *VideoInfo) bool {
	if buf != nil {
		buf.Frame().Ref()
	}

	ok := true

	w.mu.Lock()
	if info != nil {
		v := *info
		w.pendingInfo = &v
	}

	for w.redrawPending && !w.dead {
		w.redrawWait.Wait()
	}
	if w.dead {
		w.mu.Unlock()
		if buf != nil {
			buf.Frame().Unref()
		}
		return false
	}

	if w.next != nil && w.staged != nil {
		w.log.Debug("staged frame replaced before presentation")
		w.staged.Frame().Unref()
		ok = false
	}

	if w.next == nil {
		w.next = buf
		w.nextOwned = buf != nil
		if err := w.display.Sync(w.commitNext); err != nil {
			// The display went away since the liveness check above.
			w.next = nil
			w.nextOwned = false
			w.dead = true
			w.mu.Unlock()
			if buf != nil {
				buf.Frame().Unref()
			}
			return false
		}
	} else {
		w.staged = buf
	}
	if buf == nil {
		w.clearWindow = true
	}
	w.mu.Unlock()

	return ok
}

// commitNext runs as a wl_display.sync callback, after the
// compositor has seen everything queued before the render that
// scheduled it.
func (w *Window) commitNext() {
	w.mu.Lock()
	buf := w.next
	dead := w.dead
	w.mu.Unlock()
	if dead {
		return
	}

	w.commitBuffer(buf)
	w.releaseSlot(buf)
}

// frameDone runs when the compositor signals the video surface's
// frame callback. It promotes the staged frame, if any, and wakes
// renderers blocked behind the completed one.
func (w *Window) frameDone() {
	w.mu.Lock()
	if w.dead {
		w.mu.Unlock()
		return
	}
	buf := w.staged
	w.next = buf
	w.staged = nil
	w.nextOwned = buf != nil
	w.redrawPending = false
	clearing := w.clearWindow
	w.redrawWait.Broadcast()
	w.mu.Unlock()

	if buf != nil || clearing {
		w.commitBuffer(buf)
	}
	w.releaseSlot(buf)
}

// releaseSlot drops the reference the next slot held on buf. The
// compositor's own reference, taken at attach, is what keeps the
// frame alive from here on.
func (w *Window) releaseSlot(buf *Buffer) {
	if buf == nil {
		return
	}

	w.mu.Lock()
	owned := w.nextOwned && w.next == buf
	if owned {
		w.nextOwned = false
	}
	w.mu.Unlock()
	if owned {
		buf.Frame().Unref()
	}
}

// commitBuffer pushes buf to the video surface, or unmaps the
// window when buf is nil. It only ever runs on the dispatch
// goroutine, via commitNext or frameDone.
func (w *Window) commitBuffer(buf *Buffer) {
	w.mu.Lock()
	info := w.pendingInfo
	w.pendingInfo = nil
	w.mu.Unlock()

	var mappedNow bool

	w.commitMu.Lock()

	if info != nil {
		w.scaledWidth = info.ScaledWidth()
		w.videoWidth = info.Width
		w.videoHeight = info.Height

		// Resizing must land atomically with the new frame.
		w.videoSub.SetSync()
		w.resizeVideoSurface(false)
		w.setOpaque(*info)
	}

	if buf != nil {
		if w.surfaceSync != nil {
			buf.setupRelease(w.surfaceSync)
		}

		w.mu.Lock()
		w.redrawPending = true
		w.mu.Unlock()
		w.video.Frame().Then(func(uint32) { w.frameDone() })
		buf.attach(w.video)
		w.video.SetBufferScale(w.scale)
		w.video.DamageBuffer(0, 0, math.MaxInt32, math.MaxInt32)
		w.video.Commit()

		if !w.mapped {
			w.updateBorders()
			w.area.Commit()
			w.mapped = true
			mappedNow = true
		}
	} else {
		w.video.Attach(nil, 0, 0)
		w.video.SetBufferScale(w.scale)
		w.video.Commit()
		w.area.Attach(nil, 0, 0)
		w.area.Commit()
		w.mapped = false

		// No frame callback was requested, so the redraw cycle
		// ends here.
		w.mu.Lock()
		w.clearWindow = false
		w.mu.Unlock()
	}

	if info != nil {
		w.area.Commit()
		w.videoSub.SetDesync()
	}

	if buf != nil && w.surfaceSync == nil {
		// Shm frames are fully read by the time the commit returns
		// to the compositor, so the frame can go back to its pool
		// without waiting for wl_buffer.release.
		buf.markReleased()
	}

	onMapped := w.onMapped
	w.commitMu.Unlock()

	if mappedNow && onMapped != nil {
		onMapped()
	}
}

// resizeVideoSurface recenters the video inside the render rectangle
// for the current size, crop, scale and rotation. commitMu must be
// held.
func (w *Window) resizeVideoSurface(commit bool) {
	var src, dst, crop Rect
	crop.X = w.srcX / w.scale
	crop.Y = w.srcY / w.scale
	cropped := w.srcW >= 0

	switch w.transform {
	case wl.OutputTransform90, wl.OutputTransform270,
		wl.OutputTransformFlipped90, wl.OutputTransformFlipped270:
		crop.W = w.srcH / w.scale
		crop.H = w.srcW / w.scale
		src.W = w.videoHeight
		src.H = w.scaledWidth
	default:
		crop.W = w.srcW / w.scale
		crop.H = w.srcH / w.scale
		src.W = w.scaledWidth
		src.H = w.videoHeight
	}

	dst.W = w.renderRectangle.W
	dst.H = w.renderRectangle.H

	var res Rect
	if w.videoViewport != nil {
		res = centerRect(src, dst, true)
		w.videoViewport.SetDestination(res.W, res.H)
		if cropped {
			w.videoViewport.SetSource(
				wire.FixedInt(int(crop.X)), wire.FixedInt(int(crop.Y)),
				wire.FixedInt(int(crop.W)), wire.FixedInt(int(crop.H)),
			)
		} else {
			w.videoViewport.UnsetSource()
		}
	} else {
		res = centerRect(src, dst, false)
	}

	w.videoSub.SetPosition(res.X, res.Y)
	w.video.SetBufferTransform(w.transform)

	if commit {
		w.video.Commit()
	}

	w.videoRectangle = res
}

// setOpaque marks the whole video surface opaque for formats without
// an alpha channel, letting the compositor skip blending it.
// commitMu must be held.
func (w *Window) setOpaque(info VideoInfo) {
	if HasAlpha(info.Format) {
		return
	}

	region := w.display.compositor.CreateRegion()
	region.Add(0, 0, math.MaxInt32, math.MaxInt32)
	w.video.SetOpaqueRegion(region)
	region.Destroy()
}

// updateBorders gives the area surface black content at the size of
// the render rectangle. With a viewporter a cached 1x1 buffer is
// stretched server-side; without one a full-size buffer is allocated
// for every size change. commitMu must be held.
func (w *Window) updateBorders() {
	if w.areaViewport != nil {
		w.areaViewport.SetDestination(w.renderRectangle.W, w.renderRectangle.H)
		if w.mapped {
			// Already showing a buffer; the viewport resize is all
			// that is needed.
			return
		}
	}

	width, height := w.renderRectangle.W, w.renderRectangle.H
	if w.areaViewport != nil {
		width, height = 1, 1
	}

	pool, err := w.display.NewPool(VideoInfo{Format: wl.ShmFormatXrgb8888, Width: width, Height: height}, 1)
	if err != nil {
		w.log.Error("allocate border buffer", "err", err)
		return
	}
	frame, err := pool.Acquire()
	if err != nil {
		pool.Destroy()
		w.log.Error("allocate border buffer", "err", err)
		return
	}

	// Fresh shm memory is zero-filled, which in xrgb8888 is opaque
	// black. Attaching adds the compositor's reference; dropping
	// ours afterwards leaves wl_buffer.release in charge of the
	// buffer's lifetime, and destroying the pool reclaims the memory
	// once that arrives.
	frame.buffer().attach(w.area)
	w.area.DamageBuffer(0, 0, math.MaxInt32, math.MaxInt32)
	frame.Unref()
	pool.Destroy()
}

// updateGeometry pushes the current geometry out: the position
// inside a parent surface, the border size, and the video viewport.
// commitMu must be held.
func (w *Window) updateGeometry() {
	if w.areaSub != nil {
		// Takes effect on the parent's next commit.
		w.areaSub.SetPosition(w.renderRectangle.X, w.renderRectangle.Y)
	}

	if w.mapped {
		w.updateBorders()
	}

	if !w.configured.Load() {
		return
	}

	if w.scaledWidth != 0 {
		w.videoSub.SetSync()
		w.resizeVideoSurface(true)
	}

	w.area.Commit()

	if w.scaledWidth != 0 {
		w.videoSub.SetDesync()
	}
}

// SetRenderRectangle positions and sizes the window's presentation
// area. Setting the same rectangle again is a no-op.
func (w *Window) SetRenderRectangle(x, y, width, height int32) {
	w.commitMu.Lock()
	defer w.commitMu.Unlock()

	r := Rect{X: x, Y: y, W: width, H: height}
	if w.renderRectangle == r {
		return
	}

	w.renderRectangle = r
	w.updateGeometry()
}

// SetRotation selects the transform the compositor applies to frame
// content before display.
func (w *Window) SetRotation(transform wl.OutputTransform) {
	w.commitMu.Lock()
	defer w.commitMu.Unlock()

	if w.transform == transform {
		return
	}

	w.transform = transform
	w.updateGeometry()
}

// SetScale sets the output scale frames are sized for, overriding
// the value probed from the desktop configuration at creation. Crop
// rectangles are interpreted in scaled pixels.
func (w *Window) SetScale(scale int32) {
	w.commitMu.Lock()
	defer w.commitMu.Unlock()

	if scale < 1 || w.scale == scale {
		return
	}

	w.scale = scale
	w.updateGeometry()
}

// SetSourceCrop restricts presentation to a region of subsequent
// frames, given in buffer coordinates. A zero-size rectangle removes
// the crop. The change is applied together with the next frame or
// geometry change.
func (w *Window) SetSourceCrop(r Rect) {
	w.commitMu.Lock()
	defer w.commitMu.Unlock()

	if r.W <= 0 || r.H <= 0 {
		w.srcW = -1
		return
	}
	w.srcX, w.srcY, w.srcW, w.srcH = r.X, r.Y, r.W, r.H
}

// SetAlpha controls the opacity of the window's background, the
// part the video does not cover, on compositors with the
// alpha-compositing extension. It is a no-op elsewhere.
func (w *Window) SetAlpha(alpha float64) {
	if w.blend == nil {
		return
	}

	w.blend.SetAlpha(wire.FixedFloat(alpha))
	if alpha < 1.0 {
		w.blend.SetBlending(blending.EquationFromSource)
	} else {
		w.blend.SetBlending(blending.EquationPremultiplied)
	}
}

// SetFullscreen asks the window's shell to make it cover its output,
// or to return to normal. Embedded windows ignore it.
func (w *Window) SetFullscreen(fullscreen bool) {
	if w.shell == nil {
		return
	}
	w.shell.setFullscreen(fullscreen)
}

// connectionLost wakes everything blocked on the window after the
// display connection is gone. Frame references stay held until
// Destroy.
func (w *Window) connectionLost() {
	w.mu.Lock()
	w.dead = true
	w.redrawPending = false
	w.redrawWait.Broadcast()
	w.mu.Unlock()

	w.markConfigured()
}

// Destroy releases the window's frames and protocol objects. The
// window must not be rendered to afterwards. Destroy is idempotent.
func (w *Window) Destroy() {
	w.mu.Lock()
	if w.dead {
		w.mu.Unlock()
		return
	}
	w.dead = true
	w.redrawPending = false
	w.redrawWait.Broadcast()
	staged := w.staged
	w.staged = nil
	var next *Buffer
	if w.nextOwned {
		next = w.next
		w.nextOwned = false
	}
	w.next = nil
	w.mu.Unlock()

	if staged != nil {
		staged.Frame().Unref()
	}
	if next != nil {
		next.Frame().Unref()
	}

	w.markConfigured()
	w.display.unregisterWindow(w)

	// If the display is already gone, so is the compositor's side of
	// these objects, and Run just reports that.
	w.display.Run(func() {
		if w.input != nil {
			if p := w.display.Pointer(); p != nil && p.Listener == wl.PointerListener(w.input) {
				p.Listener = nil
			}
			if t := w.display.Touch(); t != nil && t.Listener == wl.TouchListener((*windowTouch)(w.input)) {
				t.Listener = nil
			}
		}

		if w.shell != nil {
			w.shell.destroy()
		}
		if w.videoViewport != nil {
			w.videoViewport.Destroy()
		}
		if w.surfaceSync != nil {
			w.surfaceSync.Destroy()
		}
		if w.blend != nil {
			w.blend.Destroy()
		}
		w.videoSub.Destroy()
		w.video.Destroy()
		if w.areaSub != nil {
			w.areaSub.Destroy()
		}
		if w.areaViewport != nil {
			w.areaViewport.Destroy()
		}
		w.area.Destroy()
	})
}

package wlsink

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	wl "deedles.dev/wlsink/client"
	fshell "deedles.dev/wlsink/fullscreen"
	"deedles.dev/wlsink/pointer"
	"deedles.dev/wlsink/wire"
	"deedles.dev/wlsink/xdg"
)

const (
	// resizeMargin is the size in surface coordinates of the
	// bottom-right corner region that starts an interactive resize
	// instead of a move.
	resizeMargin = 20

	// configureTimeout bounds the wait for the compositor's first
	// configure event on a new toplevel.
	configureTimeout = 100 * time.Millisecond
)

// shellRole is a window's binding to whichever shell protocol it was
// created under.
type shellRole interface {
	setFullscreen(on bool)
	destroy()
}

// newToplevel creates a window and gives it a toplevel role under
// the best shell the compositor offers: xdg_shell, then the
// deprecated wl_shell, then the fullscreen shell. It must run on the
// display's dispatch goroutine.
func newToplevel(d *Display, fullscreen bool) (*Window, error) {
	if d.wmBase == nil && d.legacyShell == nil && d.fullscreenShell == nil {
		return nil, errors.New("compositor offers no shell to create a window with")
	}

	w := newWindow(d)

	switch {
	case d.wmBase != nil:
		w.shell = newXdgRole(w, fullscreen)
	case d.legacyShell != nil:
		w.shell = newLegacyRole(w, fullscreen)
	default:
		d.fullscreenShell.PresentSurface(w.area, fshell.PresentMethodZoom, nil)
		w.shell = fullscreenRole{}
	}

	if w.Toplevel() {
		w.input = &windowInput{w: w}
		if p := d.Pointer(); p != nil {
			p.Listener = w.input
		}
		if t := d.Touch(); t != nil {
			t.Listener = (*windowTouch)(w.input)
		}
	}

	return w, nil
}

// waitConfigure blocks until the compositor's first configure event,
// which xdg_shell requires before content may be attached.
// Compositors are not obligated to configure a surface that is not
// yet visible, so the wait gives up after a bound.
func (w *Window) waitConfigure() {
	if w.configured.Load() {
		return
	}

	t := time.NewTimer(configureTimeout)
	defer t.Stop()

	select {
	case <-w.configuredCh:
	case <-t.C:
		w.log.Warn("compositor did not send the initial configure in time")
	case <-w.display.Closed():
	}
}

func appID() string {
	if len(os.Args) > 0 && os.Args[0] != "" {
		return filepath.Base(os.Args[0])
	}
	return "dev.deedles.wlsink"
}

// xdgRole binds a window to xdg_shell. It receives the xdg_surface
// events itself; the toplevel's go to an xdgToplevelEvents because
// both objects name an event "configure".
type xdgRole struct {
	w        *Window
	surface  *xdg.Surface
	toplevel *xdg.Toplevel
}

func newXdgRole(w *Window, fullscreen bool) *xdgRole {
	r := xdgRole{w: w}
	r.surface = w.display.wmBase.GetXdgSurface(w.area)
	r.surface.Listener = &r
	r.toplevel = r.surface.GetToplevel()
	r.toplevel.Listener = (*xdgToplevelEvents)(&r)
	r.toplevel.SetAppID(appID())
	r.setFullscreen(fullscreen)

	// Attaching a buffer before the first configure is acknowledged
	// is a protocol error, so rendering holds off until then.
	w.configured.Store(false)
	w.area.Commit()

	return &r
}

func (r *xdgRole) setFullscreen(on bool) {
	if on {
		r.toplevel.SetFullscreen(nil)
	} else {
		r.toplevel.UnsetFullscreen()
	}
}

func (r *xdgRole) destroy() {
	r.toplevel.Destroy()
	r.surface.Destroy()
}

func (r *xdgRole) Configure(serial uint32) {
	r.surface.AckConfigure(serial)
	r.w.markConfigured()
}

type xdgToplevelEvents xdgRole

func (r *xdgToplevelEvents) Configure(width, height int32, states []xdg.ToplevelState) {
	// Sizes this small leave no room inside the resize margins.
	if width <= 2*resizeMargin || height <= 2*resizeMargin {
		return
	}
	r.w.SetRenderRectangle(0, 0, width, height)
}

func (r *xdgToplevelEvents) Close() {
	r.w.emitClosed()
}

func (r *xdgToplevelEvents) ConfigureBounds(width, height int32) {}

// legacyRole binds a window to the deprecated wl_shell, for
// compositors that predate xdg_shell.
type legacyRole struct {
	w  *Window
	ss *wl.ShellSurface
}

func newLegacyRole(w *Window, fullscreen bool) *legacyRole {
	r := legacyRole{w: w}
	r.ss = w.display.legacyShell.GetShellSurface(w.area)
	r.ss.Listener = &r
	r.setFullscreen(fullscreen)
	return &r
}

func (r *legacyRole) setFullscreen(on bool) {
	if on {
		r.ss.SetFullscreen(wl.ShellSurfaceFullscreenMethodScale, 0, nil)
	} else {
		r.ss.SetToplevel()
	}
}

func (r *legacyRole) destroy() {
	// wl_shell_surface has no destructor request; the role dies with
	// its wl_surface.
}

func (r *legacyRole) Ping(serial uint32) {
	r.ss.Pong(serial)
}

func (r *legacyRole) Configure(edges wl.ShellSurfaceResize, width, height int32) {
	if width == 0 || height == 0 {
		return
	}
	r.w.SetRenderRectangle(0, 0, width, height)
}

func (r *legacyRole) PopupDone() {}

// fullscreenRole is the degenerate role under the fullscreen shell:
// the surface is presented once at creation and there is nothing to
// manage afterwards.
type fullscreenRole struct{}

func (fullscreenRole) setFullscreen(bool) {}
func (fullscreenRole) destroy()           {}

// windowInput drives interactive move and resize from the seat's
// pointer. Dragging in the window body moves it; dragging in the
// bottom-right corner resizes it. Touch events arrive through a
// windowTouch because wl_pointer and wl_touch disagree on the
// signature of "motion".
type windowInput struct {
	w *Window

	pointerX int32
	pointerY int32
}

func (in *windowInput) Enter(serial uint32, surface *wl.Surface, x, y wire.Fixed) {
	in.pointerX = int32(x.Int())
	in.pointerY = int32(y.Int())
	in.w.display.enterCursor(serial)
}

func (in *windowInput) Motion(time uint32, x, y wire.Fixed) {
	in.pointerX = int32(x.Int())
	in.pointerY = int32(y.Int())
}

func (in *windowInput) Button(serial, time, button uint32, state wl.PointerButtonState) {
	if pointer.Button(button) != pointer.ButtonLeft || state != wl.PointerButtonStatePressed {
		return
	}
	in.w.startInteraction(serial, in.pointerX, in.pointerY)
}

func (in *windowInput) Leave(serial uint32, surface *wl.Surface)            {}
func (in *windowInput) Axis(time uint32, axis wl.PointerAxis, v wire.Fixed) {}
func (in *windowInput) Frame()                                              {}
func (in *windowInput) AxisSource(source wl.PointerAxisSource)              {}
func (in *windowInput) AxisStop(time uint32, axis wl.PointerAxis)           {}
func (in *windowInput) AxisDiscrete(axis wl.PointerAxis, discrete int32)    {}

type windowTouch windowInput

func (in *windowTouch) Down(serial, time uint32, surface *wl.Surface, id int32, x, y wire.Fixed) {
	// Touch has no hover position to judge a resize corner from, so
	// a touch drag always moves.
	in.w.startMove(serial)
}

func (in *windowTouch) Up(serial, time uint32, id int32)              {}
func (in *windowTouch) Motion(time uint32, id int32, x, y wire.Fixed) {}
func (in *windowTouch) Frame()                                        {}
func (in *windowTouch) Cancel()                                       {}

// startInteraction hands the implicit grab identified by serial to
// the compositor as a move or, from the resize corner, a resize.
func (w *Window) startInteraction(serial uint32, x, y int32) {
	seat := w.display.Seat()
	if seat == nil {
		return
	}

	rect := w.RenderRectangle()
	if pointer.EdgeAt(x, y, rect.W, rect.H, resizeMargin) != pointer.EdgeBottomRight {
		w.startMoveWith(seat, serial)
		return
	}

	switch role := w.shell.(type) {
	case *xdgRole:
		role.toplevel.Resize(seat, serial, xdg.ToplevelResizeEdgeBottomRight)
	case *legacyRole:
		role.ss.Resize(seat, serial, wl.ShellSurfaceResizeBottomRight)
	}
}

func (w *Window) startMove(serial uint32) {
	seat := w.display.Seat()
	if seat == nil {
		return
	}
	w.startMoveWith(seat, serial)
}

func (w *Window) startMoveWith(seat *wl.Seat, serial uint32) {
	switch role := w.shell.(type) {
	case *xdgRole:
		role.toplevel.Move(seat, serial)
	case *legacyRole:
		role.ss.Move(seat, serial)
	}
}

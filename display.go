package wlsink

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"deedles.dev/wlsink/blending"
	wl "deedles.dev/wlsink/client"
	"deedles.dev/wlsink/explicitsync"
	"deedles.dev/wlsink/fullscreen"
	"deedles.dev/wlsink/internal/set"
	"deedles.dev/wlsink/viewporter"
	"deedles.dev/wlsink/wire"
	"deedles.dev/wlsink/xdg"
	"golang.org/x/exp/maps"
)

// ErrDisplayClosed is returned by operations on a Display whose
// connection has been torn down, whether by Close or by a failure.
var ErrDisplayClosed = errors.New("display closed")

// Display is a connection to a compositor together with the globals
// bound from its registry. It owns the single goroutine that
// dispatches events for the whole connection; all listeners run on
// that goroutine.
//
// The capability accessors report what the compositor advertised
// when the connection was established and do not change afterwards.
type Display struct {
	log    *slog.Logger
	base   *slog.Logger
	client *wl.Client
	owned  bool

	registry *wl.Registry
	sealed   bool

	compositor      *wl.Compositor
	subcompositor   *wl.Subcompositor
	shm             *wl.Shm
	viewporter      *viewporter.Viewporter
	wmBase          *xdg.WmBase
	legacyShell     *wl.Shell
	fullscreenShell *fullscreen.Shell
	explicitSync    *explicitsync.Sync
	alpha           *blending.Compositing

	shmFormats set.Set[wl.ShmFormat]

	inputMu       sync.Mutex
	seat          *wl.Seat
	pointer       *wl.Pointer
	touch         *wl.Touch
	cursorSurface *wl.Surface
	cursorHotX    int32
	cursorHotY    int32

	outMu   sync.Mutex
	outputs []*output

	bufMu   sync.Mutex
	buffers map[*Buffer]struct{}

	winMu   sync.Mutex
	windows map[*Window]struct{}

	done    chan struct{}
	closing sync.Once
}

// Connect establishes a connection to the compositor named by name,
// or to the one indicated by the environment when name is empty. It
// does not return until the registry has been enumerated, so the
// capability accessors and advertised formats are valid immediately.
// A nil log falls back to slog.Default.
func Connect(name string, log *slog.Logger) (*Display, error) {
	conn, err := wire.DialName(name)
	if err != nil {
		return nil, fmt.Errorf("connect to compositor: %w", err)
	}
	return setup(wl.NewClient(conn), true, log)
}

// FromClient builds a Display on top of an existing client
// connection, for embedding video into an application's own
// surfaces. The Display takes over event dispatch for the whole
// client, so the application must not drain the client's queue
// itself; its listeners run on the Display's dispatch goroutine.
// Closing the Display stops dispatch but leaves the client open.
func FromClient(c *wl.Client, log *slog.Logger) (*Display, error) {
	return setup(c, false, log)
}

func setup(c *wl.Client, owned bool, log *slog.Logger) (*Display, error) {
	if log == nil {
		log = slog.Default()
	}

	d := Display{
		log:        log.With("component", "display"),
		base:       log,
		client:     c,
		owned:      owned,
		shmFormats: set.New[wl.ShmFormat](),
		buffers:    make(map[*Buffer]struct{}),
		windows:    make(map[*Window]struct{}),
		done:       make(chan struct{}),
	}

	events := displayEvents{d: &d}
	c.Display().Listener = events
	d.registry = c.Display().GetRegistry()
	d.registry.Listener = events

	// The first round trip enumerates the globals, queueing a bind
	// for each supported one. The second delivers the initial events
	// of the bound globals: shm formats, output modes, seat
	// capabilities.
	for range 2 {
		if err := c.RoundTrip(); err != nil {
			if owned {
				c.Close()
			}
			return nil, fmt.Errorf("enumerate globals: %w", err)
		}
	}

	var missing []string
	if d.compositor == nil {
		missing = append(missing, wl.CompositorInterface)
	}
	if d.subcompositor == nil {
		missing = append(missing, wl.SubcompositorInterface)
	}
	if d.shm == nil {
		missing = append(missing, wl.ShmInterface)
	}
	if len(missing) > 0 {
		if owned {
			c.Close()
		}
		return nil, fmt.Errorf("compositor does not support %v", strings.Join(missing, ", "))
	}

	d.sealed = true
	go d.dispatch()

	return &d, nil
}

func (d *Display) dispatch() {
	events := d.client.Events()

	for {
		select {
		case <-d.done:
			return

		case <-d.client.Closed():
			// No more events are coming. Deliver what is already
			// queued, then tear down.
			if err := d.client.Flush(); err != nil {
				d.dispatchError(err)
			}
			d.log.Error("connection to compositor lost")
			d.Close()
			return

		case evs, ok := <-events:
			if !ok {
				return
			}
			if err := evs.Flush(); err != nil && d.dispatchError(err) {
				d.Close()
				return
			}
		}
	}
}

// dispatchError logs err and reports whether it is fatal to the
// connection. Events for unknown objects or opcodes are version skew
// at worst and are survivable; anything else means the socket is in
// an unusable state.
func (d *Display) dispatchError(err error) (fatal bool) {
	var unknownOp wire.UnknownOpError
	var unknownSender wire.UnknownSenderIDError
	if errors.As(err, &unknownOp) || errors.As(err, &unknownSender) {
		d.log.Debug("ignoring unexpected event", "err", err)
		return false
	}

	d.log.Error("event dispatch failed", "err", err)
	return true
}

// Sync schedules f to run on the dispatch goroutine once the
// compositor has processed every request issued before the call.
func (d *Display) Sync(f func()) error {
	select {
	case <-d.done:
		return ErrDisplayClosed
	default:
	}

	d.client.Display().SyncFunc(func(uint32) { f() })
	return nil
}

// RoundTrip blocks until the compositor has processed every request
// issued before the call and all resulting events have been
// delivered.
func (d *Display) RoundTrip() error {
	done := make(chan struct{})
	if err := d.Sync(func() { close(done) }); err != nil {
		return err
	}

	select {
	case <-done:
		return nil
	case <-d.done:
		return ErrDisplayClosed
	}
}

// Run executes f on the dispatch goroutine, serialized with event
// delivery, and waits for it to return. It exists so that code
// running elsewhere can touch listener fields without racing the
// dispatcher. It must not be called from the dispatch goroutine
// itself; listeners already run there and can do their work
// directly.
func (d *Display) Run(f func()) error {
	select {
	case <-d.done:
		return ErrDisplayClosed
	default:
	}

	done := make(chan struct{})
	d.client.Post(func() {
		defer close(done)
		f()
	})

	select {
	case <-done:
		return nil
	case <-d.done:
		return ErrDisplayClosed
	}
}

// Close tears the connection down. Windows stop rendering, buffers
// the compositor still holds are released, and, if the Display owns
// the client, the socket is closed. Close is idempotent.
func (d *Display) Close() error {
	d.closing.Do(func() {
		close(d.done)

		d.winMu.Lock()
		windows := maps.Keys(d.windows)
		d.winMu.Unlock()
		for _, w := range windows {
			w.connectionLost()
		}

		d.bufMu.Lock()
		buffers := maps.Keys(d.buffers)
		d.bufMu.Unlock()
		for _, b := range buffers {
			b.forceRelease()
		}
	})

	if d.owned {
		return d.client.Close()
	}
	return nil
}

// Closed returns a channel that is closed when the display shuts
// down.
func (d *Display) Closed() <-chan struct{} {
	return d.done
}

// Client returns the underlying protocol client, for callers that
// need to create their own objects on the same connection. Remember
// that the Display's dispatch goroutine owns the event queue.
func (d *Display) Client() *wl.Client {
	return d.client
}

// SupportsFormat reports whether the compositor accepts shm buffers
// with the given pixel format.
func (d *Display) SupportsFormat(format wl.ShmFormat) bool {
	return d.shmFormats.Has(format)
}

// Formats returns the advertised shm formats whose memory layout
// this package understands, sorted by fourcc value.
func (d *Display) Formats() []wl.ShmFormat {
	out := make([]wl.ShmFormat, 0, d.shmFormats.Len())
	for _, f := range KnownFormats() {
		if d.shmFormats.Has(f) {
			out = append(out, f)
		}
	}
	return out
}

// HasViewporter reports whether the compositor can crop and scale
// surface content server-side.
func (d *Display) HasViewporter() bool { return d.viewporter != nil }

// HasXdgShell reports whether xdg_wm_base is available.
func (d *Display) HasXdgShell() bool { return d.wmBase != nil }

// HasLegacyShell reports whether the deprecated wl_shell is
// available.
func (d *Display) HasLegacyShell() bool { return d.legacyShell != nil }

// HasFullscreenShell reports whether zwp_fullscreen_shell_v1 is
// available.
func (d *Display) HasFullscreenShell() bool { return d.fullscreenShell != nil }

// HasExplicitSync reports whether the compositor supports explicit
// buffer release fences.
func (d *Display) HasExplicitSync() bool { return d.explicitSync != nil }

// HasAlphaCompositing reports whether the compositor supports
// per-surface blending control.
func (d *Display) HasAlphaCompositing() bool { return d.alpha != nil }

// Seat returns the first seat the compositor advertised, or nil.
func (d *Display) Seat() *wl.Seat {
	d.inputMu.Lock()
	defer d.inputMu.Unlock()
	return d.seat
}

// Pointer returns the seat's pointer device, or nil if the seat has
// none.
func (d *Display) Pointer() *wl.Pointer {
	d.inputMu.Lock()
	defer d.inputMu.Unlock()
	return d.pointer
}

// Touch returns the seat's touch device, or nil if the seat has
// none.
func (d *Display) Touch() *wl.Touch {
	d.inputMu.Lock()
	defer d.inputMu.Unlock()
	return d.touch
}

// OutputInfo is a snapshot of one output's identity and current
// mode.
type OutputInfo struct {
	Make, Model   string
	Width, Height int32
	Refresh       int32
	Scale         int32
	Transform     wl.OutputTransform
}

// Outputs returns a snapshot of the known outputs.
func (d *Display) Outputs() []OutputInfo {
	d.outMu.Lock()
	defer d.outMu.Unlock()

	out := make([]OutputInfo, 0, len(d.outputs))
	for _, o := range d.outputs {
		out = append(out, o.info)
	}
	return out
}

// OutputSize returns the pixel size of the first output's current
// mode, or -1, -1 if no mode is known.
func (d *Display) OutputSize() (width, height int32) {
	d.outMu.Lock()
	defer d.outMu.Unlock()

	if len(d.outputs) == 0 || d.outputs[0].info.Width == 0 {
		return -1, -1
	}
	return d.outputs[0].info.Width, d.outputs[0].info.Height
}

func (d *Display) registerBuffer(b *Buffer) {
	d.bufMu.Lock()
	defer d.bufMu.Unlock()
	d.buffers[b] = struct{}{}
}

func (d *Display) unregisterBuffer(b *Buffer) {
	d.bufMu.Lock()
	defer d.bufMu.Unlock()
	delete(d.buffers, b)
}

func (d *Display) registerWindow(w *Window) {
	d.winMu.Lock()
	defer d.winMu.Unlock()
	d.windows[w] = struct{}{}
}

func (d *Display) unregisterWindow(w *Window) {
	d.winMu.Lock()
	defer d.winMu.Unlock()
	delete(d.windows, w)
}

// displayEvents receives the connection-scope events on behalf of a
// Display.
type displayEvents struct {
	d *Display
}

func (e displayEvents) Error(objectID, code uint32, message string) {
	// The compositor will hang up after this; dispatch notices and
	// tears the display down.
	e.d.log.Error("fatal protocol error", "object", objectID, "code", code, "message", message)
}

func (e displayEvents) Global(name uint32, iface string, version uint32) {
	d := e.d

	// Globals that appear after setup would race every reader of the
	// capability fields, and a video sink has no use for a mid-stream
	// wl_shm or shell anyway. Outputs and seats still come and go.
	switch iface {
	case wl.OutputInterface:
		o := &output{d: d, name: name, info: OutputInfo{Scale: 1}}
		o.wl = wl.BindOutput(d.client, d.registry, name, version)
		o.wl.Listener = o
		d.outMu.Lock()
		d.outputs = append(d.outputs, o)
		d.outMu.Unlock()
		return

	case wl.SeatInterface:
		d.inputMu.Lock()
		defer d.inputMu.Unlock()
		if d.seat == nil {
			d.seat = wl.BindSeat(d.client, d.registry, name, version)
			d.seat.Listener = e
		}
		return
	}

	if d.sealed {
		d.log.Debug("ignoring late global", "interface", iface)
		return
	}

	switch iface {
	case wl.CompositorInterface:
		d.compositor = wl.BindCompositor(d.client, d.registry, name, version)
	case wl.SubcompositorInterface:
		d.subcompositor = wl.BindSubcompositor(d.client, d.registry, name, version)
	case wl.ShmInterface:
		d.shm = wl.BindShm(d.client, d.registry, name, version)
		d.shm.Listener = e
	case viewporter.ViewporterInterface:
		d.viewporter = viewporter.BindViewporter(d.client, d.registry, name, version)
	case xdg.WmBaseInterface:
		d.wmBase = xdg.BindWmBase(d.client, d.registry, name, version)
		d.wmBase.Listener = e
	case wl.ShellInterface:
		d.legacyShell = wl.BindShell(d.client, d.registry, name, version)
	case fullscreen.ShellInterface:
		d.fullscreenShell = fullscreen.BindShell(d.client, d.registry, name, version)
	case explicitsync.SyncInterface:
		d.explicitSync = explicitsync.BindSync(d.client, d.registry, name, version)
	case blending.CompositingInterface:
		d.alpha = blending.BindCompositing(d.client, d.registry, name, version)
	default:
		return
	}

	d.log.Debug("bound global", "interface", iface, "version", version)
}

func (e displayEvents) GlobalRemove(name uint32) {
	d := e.d

	d.outMu.Lock()
	defer d.outMu.Unlock()
	for i, o := range d.outputs {
		if o.name == name {
			d.outputs = slices.Delete(d.outputs, i, i+1)
			return
		}
	}
}

func (e displayEvents) Format(format wl.ShmFormat) {
	e.d.shmFormats.Add(format)
}

func (e displayEvents) Capabilities(caps wl.SeatCapability) {
	d := e.d

	d.inputMu.Lock()
	defer d.inputMu.Unlock()
	if caps.Has(wl.SeatCapabilityPointer) && d.pointer == nil {
		d.pointer = d.seat.GetPointer()
	}
	if caps.Has(wl.SeatCapabilityTouch) && d.touch == nil {
		d.touch = d.seat.GetTouch()
	}
}

func (e displayEvents) Name(name string) {
	e.d.log.Debug("seat", "name", name)
}

func (e displayEvents) Ping(serial uint32) {
	e.d.wmBase.Pong(serial)
}

// output tracks one wl_output global.
type output struct {
	d    *Display
	wl   *wl.Output
	name uint32

	info OutputInfo
}

func (o *output) Geometry(x, y, physicalWidth, physicalHeight, subpixel int32, mk, model string, transform wl.OutputTransform) {
	o.d.outMu.Lock()
	defer o.d.outMu.Unlock()
	o.info.Make = mk
	o.info.Model = model
	o.info.Transform = transform
}

func (o *output) Mode(flags wl.OutputMode, width, height, refresh int32) {
	if flags&wl.OutputModeCurrent == 0 {
		return
	}

	o.d.outMu.Lock()
	defer o.d.outMu.Unlock()
	o.info.Width = width
	o.info.Height = height
	o.info.Refresh = refresh
}

func (o *output) Done() {}

func (o *output) Scale(factor int32) {
	o.d.outMu.Lock()
	defer o.d.outMu.Unlock()
	o.info.Scale = factor
}

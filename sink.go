package wlsink

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	wl "deedles.dev/wlsink/client"
)

// ErrNoWindowSize is returned by Render when the window has no size
// to present into. It only happens with an embedded window whose
// application has not called SetRenderRectangle yet.
var ErrNoWindowSize = errors.New("window has no size set")

// ErrNotStarted is returned by operations that need a display
// connection before Start has established one.
var ErrNotStarted = errors.New("sink not started")

type sinkState int

const (
	stateNull sinkState = iota
	stateReady
	statePlaying
	stateStopped
)

// Sink presents a stream of video frames on a Wayland display. It
// connects on Start, creates its window when the first frame
// arrives, and hands frames to the window with a newest-wins policy:
// Render never queues more than one frame beyond the one on screen.
//
// Frames from the sink's own display's pools are presented zero-copy.
// Anything else is copied into an internal pool first.
//
// All methods are safe for concurrent use, but Render is meant to be
// called from a single streaming goroutine. The Mapped and Closed
// callbacks run on the display's dispatch goroutine and must not
// call back into the Sink; hand off to another goroutine instead.
type Sink struct {
	log *slog.Logger

	mu           sync.Mutex
	state        sinkState
	display      *Display
	ownDisplay   bool
	displayName  string
	window       *Window
	pool         *Pool
	info         VideoInfo
	haveInfo     bool
	infoChanged  bool
	lastFrame    *Frame
	renderRect   Rect
	haveRect     bool
	fullscreen   bool
	alpha        float64
	rotation     wl.OutputTransform
	haveRotation bool
	scale        int32
	preferredW   int32
	preferredH   int32
	onMapped     func()
	onClosed     func()

	started time.Time
	shown   uint64
	dropped uint64
}

// An Option configures a Sink at creation.
type Option func(*Sink)

// WithLogger sets the logger the sink and everything it creates log
// through. The default is slog.Default.
func WithLogger(log *slog.Logger) Option {
	return func(s *Sink) { s.log = log }
}

// WithDisplay hands the sink an existing display connection instead
// of letting it connect on its own. The sink will not close it.
// Required for SetSurface, which only makes sense on the connection
// that owns the parent surface.
func WithDisplay(d *Display) Option {
	return func(s *Sink) { s.display = d }
}

// WithDisplayName selects the compositor socket to connect to,
// overriding the environment.
func WithDisplayName(name string) Option {
	return func(s *Sink) { s.displayName = name }
}

// WithFullscreen makes the sink's window cover its output.
func WithFullscreen(fullscreen bool) Option {
	return func(s *Sink) { s.fullscreen = fullscreen }
}

// WithAlpha sets the opacity of the window background around the
// video. The default of 1 keeps it opaque black.
func WithAlpha(alpha float64) Option {
	return func(s *Sink) { s.alpha = alpha }
}

// WithPreferredSize sets the initial window size used when the sink
// is not fullscreen. Without it the window takes the desktop size,
// or the video size when the desktop's is unknown.
func WithPreferredSize(width, height int32) Option {
	return func(s *Sink) {
		s.preferredW = width
		s.preferredH = height
	}
}

// New creates a Sink. Nothing happens until Start.
func New(opts ...Option) *Sink {
	s := Sink{alpha: 1}
	for _, opt := range opts {
		opt(&s)
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	s.log = s.log.With("component", "sink")
	return &s
}

// OnMapped sets f to run when the sink's window first becomes
// visible. It must be set before the window exists, that is before
// the first Render or SetSurface call.
func (s *Sink) OnMapped(f func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onMapped = f
}

// OnClosed sets f to run when the user or compositor closes the
// sink's window. Without a callback the closure is only logged;
// frames rendered afterwards still reach a window that is no longer
// shown, so callers usually want to stop the stream here. Like
// OnMapped, it must be set before the window exists.
func (s *Sink) OnClosed(f func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onClosed = f
}

// Start acquires the display connection. It is a no-op if the sink
// is already started.
func (s *Sink) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == stateStopped {
		return errors.New("sink cannot be restarted")
	}
	if s.state != stateNull {
		return nil
	}

	if s.display == nil {
		d, err := Connect(s.displayName, s.log)
		if err != nil {
			return fmt.Errorf("initialise wayland output: %w", err)
		}
		s.display = d
		s.ownDisplay = true
	}

	s.state = stateReady
	return nil
}

// Formats returns the pixel formats the compositor accepts, for
// format negotiation before the first frame.
func (s *Sink) Formats() ([]wl.ShmFormat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.display == nil {
		return nil, ErrNotStarted
	}
	return s.display.Formats(), nil
}

// Display returns the sink's display connection, or nil before
// Start.
func (s *Sink) Display() *Display {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.display
}

// Render presents frame. The first call creates the window. Render
// blocks until the compositor is ready for a new frame, except when
// one is already waiting; then the waiting frame is replaced and
// counted as dropped. Presenting the same frame twice in a row is a
// no-op.
func (s *Sink) Render(frame *Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	info := frame.Info()
	crop, _ := frame.Crop()
	if frame.Pool().display == s.display {
		return s.render(frame, info, nil, crop)
	}

	// A frame from some other connection's pool; treat its memory
	// as foreign and copy.
	return s.render(nil, info, frame.Bytes(), crop)
}

// RenderBytes presents one frame's worth of raw pixel data, copying
// it into the sink's internal pool.
func (s *Sink) RenderBytes(data []byte, info VideoInfo) error {
	if err := info.validate(); err != nil {
		return err
	}
	if len(data) < int(info.Size()) {
		return fmt.Errorf("frame data is %v bytes, want %v for %v", len(data), info.Size(), info)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.render(nil, info, data, Rect{})
}

// render is the common presentation path. Exactly one of frame and
// data is set; a zero crop means none. Callers hold s.mu.
func (s *Sink) render(frame *Frame, info VideoInfo, data []byte, crop Rect) error {
	if s.state == stateNull || s.display == nil {
		return ErrNotStarted
	}

	if !s.haveInfo || s.info != info {
		s.info = info
		s.haveInfo = true
		s.infoChanged = true
	}

	if s.window == nil {
		w, err := NewWindow(s.display, s.info, s.fullscreen, s.preferredW, s.preferredH)
		if err != nil {
			return fmt.Errorf("create window: %w", err)
		}
		s.adoptWindow(w)
	}
	if s.state == stateReady {
		s.state = statePlaying
		s.started = time.Now()
	}

	if s.window.RenderRectangle().W == 0 {
		return ErrNoWindowSize
	}

	s.window.SetSourceCrop(crop)

	if frame == nil {
		copied, err := s.copyToPool(data)
		if err != nil {
			// The compositor is sitting on every internal frame;
			// drop this one rather than stall the stream.
			s.log.Warn("no free frame to copy into, dropping", "err", err)
			s.dropped++
			s.shown++
			return nil
		}
		defer copied.Unref()
		frame = copied
	}

	if frame == s.lastFrame {
		s.shown++
		return nil
	}

	frame.Ref()
	if s.lastFrame != nil {
		s.lastFrame.Unref()
	}
	s.lastFrame = frame

	var pending *VideoInfo
	if s.infoChanged {
		pending = &s.info
		s.infoChanged = false
	}

	if !s.window.render(frame.buffer(), pending) {
		select {
		case <-s.display.Closed():
			return ErrDisplayClosed
		default:
		}
		s.dropped++
	}
	s.shown++
	return nil
}

// copyToPool copies raw frame data into a frame of the sink's
// internal pool, growing or reshaping the pool when the format
// changed. Callers hold s.mu.
func (s *Sink) copyToPool(data []byte) (*Frame, error) {
	if s.pool != nil && s.pool.Info() != s.info {
		s.pool.Destroy()
		s.pool = nil
	}
	if s.pool == nil {
		// Two slots: one on screen, one to fill.
		pool, err := s.display.NewPool(s.info, 2)
		if err != nil {
			return nil, err
		}
		s.pool = pool
	}

	frame, err := s.pool.Acquire()
	if err != nil {
		return nil, err
	}
	copy(frame.Bytes(), data)
	return frame, nil
}

// adoptWindow wires callbacks and pending settings into a newly
// created window. Callers hold s.mu. The callbacks are captured here
// rather than read through s.mu because they run on the dispatch
// goroutine, which rendering blocks on while holding s.mu.
func (s *Sink) adoptWindow(w *Window) {
	if f := s.onMapped; f != nil {
		w.OnMapped(f)
	}
	closed := s.onClosed
	log := s.log
	w.OnClosed(func() {
		log.Error("output window was closed")
		if closed != nil {
			closed()
		}
	})

	w.SetAlpha(s.alpha)
	if s.haveRotation {
		w.SetRotation(s.rotation)
	}
	if s.scale != 0 {
		w.SetScale(s.scale)
	}
	if s.haveRect {
		w.SetRenderRectangle(s.renderRect.X, s.renderRect.Y, s.renderRect.W, s.renderRect.H)
	}

	s.window = w
}

// SetSurface embeds the sink's video in an application surface
// instead of a window of its own. The sink must have been started
// with WithDisplay on the connection that owns parent, and the
// window must then be given a size with SetRenderRectangle. It
// cannot be called once a window exists.
func (s *Sink) SetSurface(parent *wl.Surface) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == stateNull || s.display == nil {
		return ErrNotStarted
	}
	if s.window != nil {
		return errors.New("changing the window surface is not supported")
	}

	w, err := NewWindowIn(s.display, parent)
	if err != nil {
		return fmt.Errorf("embed in surface: %w", err)
	}
	s.adoptWindow(w)
	return nil
}

// SetRenderRectangle positions and sizes the video area. Before a
// window exists the rectangle is remembered and applied on
// creation.
func (s *Sink) SetRenderRectangle(x, y, width, height int32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.renderRect = Rect{X: x, Y: y, W: width, H: height}
	s.haveRect = true
	if s.window != nil {
		s.window.SetRenderRectangle(x, y, width, height)
	}
}

// SetFullscreen switches the sink's window in or out of fullscreen.
func (s *Sink) SetFullscreen(fullscreen bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fullscreen == fullscreen {
		return
	}
	s.fullscreen = fullscreen
	if s.window != nil {
		s.window.SetFullscreen(fullscreen)
	}
}

// SetRotation sets the transform applied to frames before display.
func (s *Sink) SetRotation(transform wl.OutputTransform) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rotation = transform
	s.haveRotation = true
	if s.window != nil {
		s.window.SetRotation(transform)
	}
}

// SetScale sets the output scale frames are sized for, overriding
// the value the window probes from the desktop configuration.
func (s *Sink) SetScale(scale int32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if scale < 1 {
		return
	}
	s.scale = scale
	if s.window != nil {
		s.window.SetScale(scale)
	}
}

// SetAlpha adjusts the opacity of the window background around the
// video, where the compositor supports it.
func (s *Sink) SetAlpha(alpha float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.alpha = alpha
	if s.window != nil {
		s.window.SetAlpha(alpha)
	}
}

// Expose re-presents the last frame, picking up geometry changes
// without waiting for the stream to deliver a new one. It does
// nothing while a frame is already on its way to the screen.
func (s *Sink) Expose() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.window == nil || s.lastFrame == nil || s.window.busy() {
		return
	}
	s.window.render(s.lastFrame.buffer(), nil)
}

// FramesShown returns the number of frames accepted for
// presentation since Start, dropped ones included.
func (s *Sink) FramesShown() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shown
}

// FramesDropped returns the number of frames that were replaced by a
// newer one before reaching the screen.
func (s *Sink) FramesDropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Stop tears the sink down: the window is destroyed, the internal
// pool released, and a display the sink connected itself is closed.
// A display supplied with WithDisplay stays open. Stop is
// idempotent; the sink cannot be restarted.
func (s *Sink) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == stateNull || s.state == stateStopped {
		return
	}

	if s.lastFrame != nil {
		s.lastFrame.Unref()
		s.lastFrame = nil
	}

	if s.window != nil {
		s.window.Destroy()
		s.window = nil
		// Let the destruction requests reach the compositor before
		// any of the objects below go away with the connection.
		s.display.RoundTrip()
	}

	if s.pool != nil {
		s.pool.Destroy()
		s.pool = nil
	}

	if s.ownDisplay {
		s.display.Close()
	}
	s.display = nil
	s.state = stateStopped

	if s.shown > 0 {
		elapsed := time.Since(s.started)
		s.log.Info("stopped",
			"frames_shown", s.shown,
			"frames_dropped", s.dropped,
			"elapsed", elapsed,
			"fps", float64(s.shown)/elapsed.Seconds(),
		)
	}
}

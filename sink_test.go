package wlsink

import (
	"errors"
	"slices"
	"testing"

	wl "deedles.dev/wlsink/client"
	"deedles.dev/wlsink/internal/wltest"
	"deedles.dev/wlsink/wire"
)

// testSink builds a started sink on a scripted compositor. The
// display is owned by the test, so Stop leaves it usable.
func testSink(t *testing.T, sinkOpts []Option, compOpts ...wltest.Option) (*Sink, *Display, *wltest.Compositor) {
	t.Helper()

	fakeWestonINI(t, "")
	d, comp := testDisplay(t, compOpts...)

	opts := append([]Option{
		WithDisplay(d),
		WithLogger(testLogger()),
		WithPreferredSize(640, 480),
	}, sinkOpts...)
	s := New(opts...)
	if err := s.Start(); err != nil {
		t.Fatalf("start sink: %v", err)
	}
	t.Cleanup(s.Stop)
	return s, d, comp
}

// sinkWindow digs out the sink's window for protocol-level asserts.
func sinkWindow(t *testing.T, s *Sink) *Window {
	t.Helper()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.window == nil {
		t.Fatalf("sink has no window")
	}
	return s.window
}

func TestSinkLifecycle(t *testing.T) {
	fakeWestonINI(t, "")
	d, comp := testDisplay(t)

	s := New(WithDisplay(d), WithLogger(testLogger()), WithPreferredSize(640, 480))
	t.Cleanup(s.Stop)

	pool, err := d.NewPool(testInfo, 2)
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}
	f, err := pool.Acquire()
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}

	if err := s.Render(f); !errors.Is(err, ErrNotStarted) {
		t.Errorf("render before start = %v, want ErrNotStarted", err)
	}
	if _, err := New().Formats(); !errors.Is(err, ErrNotStarted) {
		t.Errorf("formats without a display = %v, want ErrNotStarted", err)
	}

	// An injected display answers format queries before Start.
	if _, err := s.Formats(); err != nil {
		t.Errorf("formats with an injected display: %v", err)
	}

	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.Start(); err != nil {
		t.Errorf("second start: %v", err)
	}

	formats, err := s.Formats()
	if err != nil {
		t.Fatalf("formats: %v", err)
	}
	if !slices.Contains(formats, wl.ShmFormatXrgb8888) {
		t.Errorf("formats = %v, want to contain xrgb8888", formats)
	}

	if err := s.Render(f); err != nil {
		t.Fatalf("render: %v", err)
	}
	if got := s.FramesShown(); got != 1 {
		t.Errorf("frames shown = %d, want 1", got)
	}
	settle(t, d)

	w := sinkWindow(t, s)
	if got := comp.Attached(w.video.ID()); got == 0 {
		t.Errorf("no buffer attached after render")
	}

	s.Stop()
	if err := s.Render(f); !errors.Is(err, ErrNotStarted) {
		t.Errorf("render after stop = %v, want ErrNotStarted", err)
	}
	s.Stop()
	if err := s.Start(); err == nil {
		t.Errorf("a stopped sink restarted")
	}

	// The display was supplied by the test and must survive Stop.
	if err := d.RoundTrip(); err != nil {
		t.Errorf("display dead after sink stop: %v", err)
	}
}

func TestSinkRenderZeroCopy(t *testing.T) {
	s, d, comp := testSink(t, nil)

	pool, err := d.NewPool(testInfo, 2)
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}
	f, err := pool.Acquire()
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}

	if err := s.Render(f); err != nil {
		t.Fatalf("render: %v", err)
	}
	settle(t, d)

	// A frame from the sink's own display is attached as is, no
	// copy: the attached buffer is the frame's own.
	w := sinkWindow(t, s)
	if got := comp.Attached(w.video.ID()); got != f.buffer().wlbuf.ID() {
		t.Errorf("attached buffer = %d, want the frame's own %d", got, f.buffer().wlbuf.ID())
	}

	// The sink keeps the frame as its last, on top of the caller's
	// reference.
	if refs := f.Refs(); refs != 2 {
		t.Errorf("frame refs = %d, want 2", refs)
	}

	s.Stop()
	if refs := f.Refs(); refs != 1 {
		t.Errorf("frame refs after stop = %d, want the caller's 1", refs)
	}
}

func TestSinkDedupe(t *testing.T) {
	s, d, comp := testSink(t, nil)

	pool, err := d.NewPool(testInfo, 2)
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}
	f, err := pool.Acquire()
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}

	if err := s.Render(f); err != nil {
		t.Fatalf("render: %v", err)
	}
	settle(t, d)

	// Presenting the same frame again must not hit the compositor.
	if err := s.Render(f); err != nil {
		t.Fatalf("repeat render: %v", err)
	}
	if got := s.FramesShown(); got != 2 {
		t.Errorf("frames shown = %d, want 2", got)
	}
	if got := s.FramesDropped(); got != 0 {
		t.Errorf("frames dropped = %d, want 0", got)
	}
	if got := comp.PendingFrames(); got != 1 {
		t.Errorf("pending frame callbacks = %d, want only the first render's", got)
	}
}

func TestSinkRenderBytes(t *testing.T) {
	s, d, comp := testSink(t, nil)

	data := make([]byte, testInfo.Size())
	if err := s.RenderBytes(data, testInfo); err != nil {
		t.Fatalf("render bytes: %v", err)
	}
	settle(t, d)

	w := sinkWindow(t, s)
	if got := comp.Attached(w.video.ID()); got == 0 {
		t.Errorf("no buffer attached after a copied render")
	}
	if got := s.FramesShown(); got != 1 {
		t.Errorf("frames shown = %d, want 1", got)
	}

	if err := s.RenderBytes(data[:16], testInfo); err == nil {
		t.Errorf("rendered a short buffer")
	}
}

// TestSinkPoolExhaustion checks that a copied render with every
// internal frame still held by the compositor drops the frame
// instead of stalling the stream.
func TestSinkPoolExhaustion(t *testing.T) {
	s, d, comp := testSink(t, nil, wltest.WithGlobal("zwp_linux_explicit_synchronization_v1", 2))

	data := make([]byte, testInfo.Size())
	render := func() error {
		err := s.RenderBytes(data, testInfo)
		settle(t, d)
		comp.CompleteFrame()
		settle(t, d)
		return err
	}

	// Two renders fill the internal pool; under explicit sync the
	// compositor holds both until it answers the release objects.
	if err := render(); err != nil {
		t.Fatalf("first render: %v", err)
	}
	if err := render(); err != nil {
		t.Fatalf("second render: %v", err)
	}

	if err := render(); err != nil {
		t.Fatalf("render with the pool exhausted: %v", err)
	}
	if got := s.FramesDropped(); got != 1 {
		t.Errorf("frames dropped = %d, want the undeliverable one", got)
	}
	if got := s.FramesShown(); got != 3 {
		t.Errorf("frames shown = %d, want all three counted", got)
	}

	// A release frees a frame for the next copy.
	if !comp.ImmediateRelease() {
		t.Fatalf("no release object armed")
	}
	settle(t, d)
	if err := render(); err != nil {
		t.Fatalf("render after a release: %v", err)
	}
	if got := s.FramesDropped(); got != 1 {
		t.Errorf("frames dropped = %d, want no new drops", got)
	}
}

func TestSinkForeignPoolCopy(t *testing.T) {
	s, d, comp := testSink(t, nil)

	other, _ := testDisplay(t)
	pool, err := other.NewPool(testInfo, 1)
	if err != nil {
		t.Fatalf("create foreign pool: %v", err)
	}
	f, err := pool.Acquire()
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}

	if err := s.Render(f); err != nil {
		t.Fatalf("render foreign frame: %v", err)
	}
	settle(t, d)

	w := sinkWindow(t, s)
	if got := comp.Attached(w.video.ID()); got == 0 {
		t.Errorf("no buffer attached after a foreign render")
	}
	// The foreign frame itself was only read, never retained.
	if refs := f.Refs(); refs != 1 {
		t.Errorf("foreign frame refs = %d, want 1", refs)
	}
}

func TestSinkSetSurface(t *testing.T) {
	s, d, comp := testSink(t, nil)

	parent := d.compositor.CreateSurface()
	if err := s.SetSurface(parent); err != nil {
		t.Fatalf("set surface: %v", err)
	}

	pool, err := d.NewPool(testInfo, 2)
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}
	f, err := pool.Acquire()
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}

	// An embedded window has no size until the application gives it
	// one.
	if err := s.Render(f); !errors.Is(err, ErrNoWindowSize) {
		t.Errorf("render without a rectangle = %v, want ErrNoWindowSize", err)
	}

	s.SetRenderRectangle(0, 0, 320, 240)
	if err := s.Render(f); err != nil {
		t.Fatalf("render: %v", err)
	}
	settle(t, d)

	w := sinkWindow(t, s)
	if got := comp.Attached(w.video.ID()); got != f.buffer().wlbuf.ID() {
		t.Errorf("attached buffer = %d, want %d", got, f.buffer().wlbuf.ID())
	}

	if err := s.SetSurface(parent); err == nil {
		t.Errorf("replaced the window surface after creation")
	}
}

func TestSinkSetSurfaceBeforeStart(t *testing.T) {
	fakeWestonINI(t, "")
	d, _ := testDisplay(t)

	s := New(WithDisplay(d), WithLogger(testLogger()))
	parent := d.compositor.CreateSurface()
	if err := s.SetSurface(parent); !errors.Is(err, ErrNotStarted) {
		t.Errorf("set surface before start = %v, want ErrNotStarted", err)
	}
}

func TestSinkExpose(t *testing.T) {
	s, d, comp := testSink(t, nil)

	pool, err := d.NewPool(testInfo, 2)
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}
	f, err := pool.Acquire()
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}

	if err := s.Render(f); err != nil {
		t.Fatalf("render: %v", err)
	}
	settle(t, d)

	// With a frame already on its way to the screen Expose does
	// nothing.
	s.Expose()
	settle(t, d)
	if got := comp.PendingFrames(); got != 1 {
		t.Errorf("pending frame callbacks = %d, want 1", got)
	}

	comp.CompleteFrame()
	settle(t, d)

	s.Expose()
	settle(t, d)
	if got := comp.PendingFrames(); got != 1 {
		t.Errorf("pending frame callbacks after expose = %d, want the re-presented frame's", got)
	}
	// Expose re-presents, it does not consume stream frames.
	if got := s.FramesShown(); got != 1 {
		t.Errorf("frames shown = %d, want 1", got)
	}
}

func TestSinkCallbacks(t *testing.T) {
	s, d, comp := testSink(t, nil)

	mapped := make(chan struct{})
	closed := make(chan struct{})
	s.OnMapped(func() { close(mapped) })
	s.OnClosed(func() { close(closed) })

	pool, err := d.NewPool(testInfo, 2)
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}
	f, err := pool.Acquire()
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if err := s.Render(f); err != nil {
		t.Fatalf("render: %v", err)
	}
	settle(t, d)

	select {
	case <-mapped:
	default:
		t.Errorf("mapped callback did not fire")
	}

	comp.CloseWindow()
	settle(t, d)
	select {
	case <-closed:
	default:
		t.Errorf("closed callback did not fire")
	}
}

func TestSinkAlpha(t *testing.T) {
	s, d, comp := testSink(t,
		[]Option{WithAlpha(0.25)},
		wltest.WithGlobal("zwp_alpha_compositing_v1", 1),
	)

	data := make([]byte, testInfo.Size())
	if err := s.RenderBytes(data, testInfo); err != nil {
		t.Fatalf("render: %v", err)
	}
	settle(t, d)

	if got := comp.Alpha(); got != wire.FixedFloat(0.25) {
		t.Errorf("alpha = %v, want %v", got, wire.FixedFloat(0.25))
	}
}

func TestSinkFullscreen(t *testing.T) {
	s, d, comp := testSink(t, []Option{WithFullscreen(true)})

	pool, err := d.NewPool(testInfo, 2)
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}
	f, err := pool.Acquire()
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}

	// The window exists and asked for fullscreen, but has no size
	// until the compositor answers with one.
	if err := s.Render(f); !errors.Is(err, ErrNoWindowSize) {
		t.Errorf("render before the compositor sized the window = %v, want ErrNoWindowSize", err)
	}
	settle(t, d)
	if got := comp.Fullscreens(); got != 1 {
		t.Errorf("fullscreen requests = %d, want 1", got)
	}

	comp.Configure(1920, 1080)
	settle(t, d)
	if err := s.Render(f); err != nil {
		t.Fatalf("render after configure: %v", err)
	}

	s.SetFullscreen(false)
	settle(t, d)
	if comp.Unfullscreens() == 0 {
		t.Errorf("leaving fullscreen sent no request")
	}
}

func TestSinkRotation(t *testing.T) {
	s, d, comp := testSink(t, nil)

	s.SetRotation(wl.OutputTransform90)

	data := make([]byte, testInfo.Size())
	if err := s.RenderBytes(data, testInfo); err != nil {
		t.Fatalf("render: %v", err)
	}
	settle(t, d)

	w := sinkWindow(t, s)
	if dst, ok := comp.Destination(w.video.ID()); !ok || dst != [2]int32{360, 480} {
		t.Errorf("rotated video destination = %v (%v), want 360x480", dst, ok)
	}
}

func TestSinkScale(t *testing.T) {
	s, d, comp := testSink(t, nil)

	s.SetScale(2)

	data := make([]byte, testInfo.Size())
	if err := s.RenderBytes(data, testInfo); err != nil {
		t.Fatalf("render: %v", err)
	}
	settle(t, d)

	w := sinkWindow(t, s)
	if got := comp.BufferScale(w.video.ID()); got != 2 {
		t.Errorf("buffer scale = %d, want 2", got)
	}
}

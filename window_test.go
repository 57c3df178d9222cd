package wlsink

import (
	"image"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	wl "deedles.dev/wlsink/client"
	"deedles.dev/wlsink/internal/wltest"
	"deedles.dev/wlsink/pointer"
	"deedles.dev/wlsink/wire"
)

var testInfo = VideoInfo{Format: wl.ShmFormatXrgb8888, Width: 320, Height: 240}

// fakeWestonINI points desktop-size discovery at a private path so
// tests do not pick up the host's desktop configuration, optionally
// writing a configuration of their own there.
func fakeWestonINI(t *testing.T, contents string) {
	t.Helper()

	old := westonINIPath
	westonINIPath = filepath.Join(t.TempDir(), "weston.ini")
	t.Cleanup(func() { westonINIPath = old })

	if contents != "" {
		if err := os.WriteFile(westonINIPath, []byte(contents), 0o644); err != nil {
			t.Fatalf("write weston.ini: %v", err)
		}
	}
}

// testWindow creates a 640x480 toplevel on a scripted compositor,
// along with a pool to render from.
func testWindow(t *testing.T, opts ...wltest.Option) (*Display, *wltest.Compositor, *Window, *Pool) {
	t.Helper()

	fakeWestonINI(t, "")
	d, comp := testDisplay(t, opts...)

	w, err := NewWindow(d, testInfo, false, 640, 480)
	if err != nil {
		t.Fatalf("create window: %v", err)
	}
	t.Cleanup(w.Destroy)

	pool, err := d.NewPool(testInfo, 3)
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}
	return d, comp, w, pool
}

func acquireFrame(t *testing.T, pool *Pool) *Frame {
	t.Helper()

	f, err := pool.Acquire()
	if err != nil {
		t.Fatalf("acquire frame: %v", err)
	}
	return f
}

// stallDispatch parks the display's dispatch goroutine until the
// returned function is called, so a test can issue several renders
// before any of them reaches the compositor.
func stallDispatch(t *testing.T, d *Display) (release func()) {
	t.Helper()

	started := make(chan struct{})
	releaseCh := make(chan struct{})
	d.Client().Post(func() {
		close(started)
		<-releaseCh
	})
	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatalf("dispatch goroutine never picked up the stall")
	}
	return func() { close(releaseCh) }
}

// waitFor polls cond until it holds or a deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestNewWindow(t *testing.T) {
	d, comp, w, _ := testWindow(t)

	if !w.Toplevel() {
		t.Errorf("window does not consider itself a toplevel")
	}
	if r := w.RenderRectangle(); r != (Rect{W: 640, H: 480}) {
		t.Errorf("render rectangle = %+v, want 640x480 at the origin", r)
	}

	settle(t, d)

	if acks := comp.Acked(); len(acks) != 1 {
		t.Errorf("configure acks = %v, want exactly the initial one", acks)
	}
	if want := filepath.Base(os.Args[0]); comp.AppID() != want {
		t.Errorf("app id = %q, want %q", comp.AppID(), want)
	}
	if err := comp.Err(); err != nil {
		t.Errorf("compositor: %v", err)
	}
}

func TestNewWindowNoShell(t *testing.T) {
	fakeWestonINI(t, "")
	d, _ := testDisplay(t, wltest.WithoutGlobal("xdg_wm_base"))

	_, err := NewWindow(d, testInfo, false, 640, 480)
	if err == nil {
		t.Fatalf("created a window on a compositor with no shell")
	}
	if !strings.Contains(err.Error(), "no shell") {
		t.Errorf("error %q does not explain the missing shell", err)
	}
}

func TestNewWindowSizing(t *testing.T) {
	newSized := func(t *testing.T, d *Display) *Window {
		t.Helper()
		w, err := NewWindow(d, testInfo, false, 0, 0)
		if err != nil {
			t.Fatalf("create window: %v", err)
		}
		t.Cleanup(w.Destroy)
		return w
	}

	t.Run("desktop configuration", func(t *testing.T) {
		fakeWestonINI(t, "[shell]\nsize=960x540\n")
		d, _ := testDisplay(t)
		w := newSized(t, d)

		// 960x540 against a 1920x1080 output means scale 2, and the
		// desktop panel is subtracted from the height.
		if r := w.RenderRectangle(); r != (Rect{W: 960, H: 540 - panelHeight}) {
			t.Errorf("render rectangle = %+v, want the desktop size minus the panel", r)
		}
	})

	t.Run("matching output", func(t *testing.T) {
		fakeWestonINI(t, "[shell]\nsize=1024x768\n")
		d, _ := testDisplay(t, wltest.WithOutputSize(1024, 768))
		w := newSized(t, d)

		// The output matches the desktop size exactly, scale 1.
		if r := w.RenderRectangle(); r != (Rect{W: 1024, H: 768 - panelHeight}) {
			t.Errorf("render rectangle = %+v, want the desktop size minus the panel", r)
		}
	})

	t.Run("scale mismatch", func(t *testing.T) {
		fakeWestonINI(t, "[shell]\nsize=1280x720\n")
		d, _ := testDisplay(t)
		w := newSized(t, d)

		// 1920/1280 is not an integer scale, so the configuration is
		// ignored in favor of the raw output size.
		if r := w.RenderRectangle(); r != (Rect{W: 1920, H: 1080 - panelHeight}) {
			t.Errorf("render rectangle = %+v, want the output size minus the panel", r)
		}
	})

	t.Run("output fallback", func(t *testing.T) {
		fakeWestonINI(t, "")
		d, _ := testDisplay(t)
		w := newSized(t, d)

		if r := w.RenderRectangle(); r != (Rect{W: 1920, H: 1080 - panelHeight}) {
			t.Errorf("render rectangle = %+v, want the output size minus the panel", r)
		}
	})

	t.Run("video fallback", func(t *testing.T) {
		fakeWestonINI(t, "")
		d, _ := testDisplay(t, wltest.WithoutGlobal("wl_output"))
		w := newSized(t, d)

		if r := w.RenderRectangle(); r != (Rect{W: 320, H: 240}) {
			t.Errorf("render rectangle = %+v, want the video size", r)
		}
	})
}

func TestWindowFirstRender(t *testing.T) {
	d, comp, w, pool := testWindow(t)

	var mapped atomic.Int32
	w.OnMapped(func() { mapped.Add(1) })

	f := acquireFrame(t, pool)
	buf := f.buffer()
	if !w.render(buf, &testInfo) {
		t.Fatalf("render reported failure")
	}
	settle(t, d)

	video, area := w.video.ID(), w.area.ID()
	if got := comp.Attached(video); got != buf.wlbuf.ID() {
		t.Errorf("attached buffer = %d, want %d", got, buf.wlbuf.ID())
	}
	if comp.PendingFrames() != 1 {
		t.Errorf("pending frame callbacks = %d, want 1", comp.PendingFrames())
	}
	if dst, ok := comp.Destination(video); !ok || dst != [2]int32{640, 480} {
		t.Errorf("video destination = %v (%v), want 640x480", dst, ok)
	}
	if dst, ok := comp.Destination(area); !ok || dst != [2]int32{640, 480} {
		t.Errorf("area destination = %v (%v), want 640x480", dst, ok)
	}
	unset := [4]wire.Fixed{wire.FixedInt(-1), wire.FixedInt(-1), wire.FixedInt(-1), wire.FixedInt(-1)}
	if src, ok := comp.Source(video); !ok || src != unset {
		t.Errorf("video source = %v (%v), want unset", src, ok)
	}
	if comp.Attached(area) == 0 {
		t.Errorf("no border buffer attached to the area surface")
	}
	if mapped.Load() != 1 {
		t.Errorf("mapped callbacks = %d, want 1", mapped.Load())
	}

	// The commit took the compositor's reference and the shm
	// contents were consumed by it, leaving only the caller's.
	if refs := f.Refs(); refs != 1 {
		t.Errorf("frame refs after presentation = %d, want 1", refs)
	}
	if err := comp.Err(); err != nil {
		t.Errorf("compositor: %v", err)
	}
}

// TestWindowRenderPacing checks that render blocks while a frame
// callback is outstanding and wakes when the compositor answers it.
func TestWindowRenderPacing(t *testing.T) {
	d, comp, w, pool := testWindow(t)

	f1, f2 := acquireFrame(t, pool), acquireFrame(t, pool)
	b1, b2 := f1.buffer(), f2.buffer()

	if !w.render(b1, &testInfo) {
		t.Fatalf("first render reported failure")
	}
	settle(t, d)
	if !w.busy() {
		t.Errorf("window not busy with a frame callback outstanding")
	}

	done := make(chan bool, 1)
	go func() { done <- w.render(b2, nil) }()

	select {
	case ok := <-done:
		t.Fatalf("render returned %v before the frame in flight completed", ok)
	case <-time.After(50 * time.Millisecond):
	}

	if !comp.CompleteFrame() {
		t.Fatalf("no frame callback to complete")
	}
	var ok bool
	select {
	case ok = <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("render still blocked after the frame completed")
	}
	if !ok {
		t.Errorf("woken render reported failure")
	}

	settle(t, d)
	if got := comp.Attached(w.video.ID()); got != b2.wlbuf.ID() {
		t.Errorf("attached buffer = %d, want the second frame's %d", got, b2.wlbuf.ID())
	}

	comp.CompleteFrame()
	settle(t, d)
	if w.busy() {
		t.Errorf("window busy with no frame in flight")
	}
}

// TestWindowNewestWins checks the drop policy: of three frames
// submitted while the first is still on its way to the screen, the
// middle one is dropped and the newest takes its place.
func TestWindowNewestWins(t *testing.T) {
	d, comp, w, pool := testWindow(t)

	f1, f2, f3 := acquireFrame(t, pool), acquireFrame(t, pool), acquireFrame(t, pool)
	b1, b2, b3 := f1.buffer(), f2.buffer(), f3.buffer()

	release := stallDispatch(t, d)
	ok1 := w.render(b1, &testInfo)
	ok2 := w.render(b2, nil)
	ok3 := w.render(b3, nil)

	if !ok1 || !ok2 {
		t.Errorf("first two renders = %v, %v, want both true", ok1, ok2)
	}
	if ok3 {
		t.Errorf("render reported success while replacing the staged frame")
	}
	if refs := f2.Refs(); refs != 1 {
		t.Errorf("replaced frame refs = %d, want 1", refs)
	}

	release()
	settle(t, d)

	if got := comp.Attached(w.video.ID()); got != b1.wlbuf.ID() {
		t.Errorf("attached buffer = %d, want the first frame's %d", got, b1.wlbuf.ID())
	}

	if !comp.CompleteFrame() {
		t.Fatalf("no frame callback to complete")
	}
	settle(t, d)

	if got := comp.Attached(w.video.ID()); got != b3.wlbuf.ID() {
		t.Errorf("attached buffer = %d, want the newest frame's %d", got, b3.wlbuf.ID())
	}
	if f1.Refs() != 1 || f3.Refs() != 1 {
		t.Errorf("presented frame refs = %d, %d, want 1, 1", f1.Refs(), f3.Refs())
	}

	comp.CompleteFrame()
	settle(t, d)
	if n := comp.PendingFrames(); n != 0 {
		t.Errorf("pending frame callbacks = %d, want none", n)
	}
}

func TestWindowClear(t *testing.T) {
	d, comp, w, pool := testWindow(t)

	var mapped atomic.Int32
	w.OnMapped(func() { mapped.Add(1) })

	f := acquireFrame(t, pool)
	b := f.buffer()
	if !w.render(b, &testInfo) {
		t.Fatalf("render reported failure")
	}
	settle(t, d)
	comp.CompleteFrame()
	settle(t, d)

	if !w.render(nil, nil) {
		t.Fatalf("clear reported failure")
	}
	settle(t, d)

	if got := comp.Attached(w.video.ID()); got != 0 {
		t.Errorf("video buffer after clear = %d, want none", got)
	}
	if got := comp.Attached(w.area.ID()); got != 0 {
		t.Errorf("area buffer after clear = %d, want none", got)
	}
	if n := comp.PendingFrames(); n != 0 {
		t.Errorf("pending frame callbacks after clear = %d, want none", n)
	}
	if w.busy() {
		t.Errorf("window busy after clear")
	}

	// Rendering again remaps the window.
	if !w.render(b, nil) {
		t.Fatalf("render after clear reported failure")
	}
	settle(t, d)
	if got := comp.Attached(w.video.ID()); got != b.wlbuf.ID() {
		t.Errorf("attached buffer after remap = %d, want %d", got, b.wlbuf.ID())
	}
	if mapped.Load() != 2 {
		t.Errorf("mapped callbacks = %d, want one per map", mapped.Load())
	}
}

// TestWindowClearBehindFrame checks that a clear submitted while a
// frame is on its way to the screen is applied after that frame
// completes instead of being lost.
func TestWindowClearBehindFrame(t *testing.T) {
	d, comp, w, pool := testWindow(t)

	f := acquireFrame(t, pool)
	b := f.buffer()

	release := stallDispatch(t, d)
	okFrame := w.render(b, &testInfo)
	okClear := w.render(nil, nil)
	release()

	if !okFrame || !okClear {
		t.Errorf("renders = %v, %v, want both true", okFrame, okClear)
	}

	settle(t, d)
	if got := comp.Attached(w.video.ID()); got != b.wlbuf.ID() {
		t.Errorf("attached buffer = %d, want the frame to show before the clear", got)
	}

	comp.CompleteFrame()
	settle(t, d)
	if got := comp.Attached(w.video.ID()); got != 0 {
		t.Errorf("video buffer = %d, want the queued clear applied", got)
	}
}

func TestWindowDestroy(t *testing.T) {
	d, comp, w, pool := testWindow(t)

	f1, f2 := acquireFrame(t, pool), acquireFrame(t, pool)
	b1, b2 := f1.buffer(), f2.buffer()

	release := stallDispatch(t, d)
	w.render(b1, &testInfo)
	w.render(b2, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Destroy()
	}()

	// The slot sweep happens before Destroy waits on the dispatch
	// goroutine, so the frames come back while it is still parked.
	waitFor(t, "pending frames to be released", func() bool {
		return f1.Refs() == 1 && f2.Refs() == 1
	})

	release()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("Destroy did not return")
	}

	if w.render(b1, nil) {
		t.Errorf("render reported success on a destroyed window")
	}
	w.Destroy()

	settle(t, d)
	if err := comp.Err(); err != nil {
		t.Errorf("compositor: %v", err)
	}
}

// TestWindowDestroyWakesRender checks that a renderer blocked on an
// unanswered frame callback is woken, with a failure, by Destroy.
func TestWindowDestroyWakesRender(t *testing.T) {
	d, _, w, pool := testWindow(t)

	f1, f2 := acquireFrame(t, pool), acquireFrame(t, pool)
	b1, b2 := f1.buffer(), f2.buffer()

	if !w.render(b1, &testInfo) {
		t.Fatalf("render reported failure")
	}
	settle(t, d)

	done := make(chan bool, 1)
	go func() { done <- w.render(b2, nil) }()
	select {
	case ok := <-done:
		t.Fatalf("render returned %v with the frame callback unanswered", ok)
	case <-time.After(50 * time.Millisecond):
	}

	w.Destroy()

	var ok bool
	select {
	case ok = <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("render still blocked after Destroy")
	}
	if ok {
		t.Errorf("render reported success after Destroy")
	}
	if refs := f2.Refs(); refs != 1 {
		t.Errorf("undelivered frame refs = %d, want 1", refs)
	}
}

func TestWindowConnectionLost(t *testing.T) {
	d, comp, w, pool := testWindow(t)

	f1, f2 := acquireFrame(t, pool), acquireFrame(t, pool)
	b1, b2 := f1.buffer(), f2.buffer()

	if !w.render(b1, &testInfo) {
		t.Fatalf("render reported failure")
	}
	settle(t, d)

	done := make(chan bool, 1)
	go func() { done <- w.render(b2, nil) }()
	select {
	case ok := <-done:
		t.Fatalf("render returned %v with the frame callback unanswered", ok)
	case <-time.After(50 * time.Millisecond):
	}

	comp.Close()

	var ok bool
	select {
	case ok = <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("render still blocked after the connection dropped")
	}
	if ok {
		t.Errorf("render reported success on a dead connection")
	}
	if w.render(b1, nil) {
		t.Errorf("render reported success on a dead connection")
	}
}

func TestWindowRenderRectangleIdempotent(t *testing.T) {
	d, comp, w, pool := testWindow(t)

	f := acquireFrame(t, pool)
	w.render(f.buffer(), &testInfo)
	settle(t, d)
	comp.CompleteFrame()
	settle(t, d)

	area := w.area.ID()
	before := comp.Commits(area)

	w.SetRenderRectangle(0, 0, 640, 480)
	settle(t, d)
	if got := comp.Commits(area); got != before {
		t.Errorf("unchanged rectangle caused %d commits", got-before)
	}

	w.SetRenderRectangle(0, 0, 800, 600)
	settle(t, d)
	if got := comp.Commits(area); got <= before {
		t.Errorf("new rectangle did not reach the compositor")
	}
	if dst, ok := comp.Destination(area); !ok || dst != [2]int32{800, 600} {
		t.Errorf("area destination = %v (%v), want 800x600", dst, ok)
	}
	if dst, ok := comp.Destination(w.video.ID()); !ok || dst != [2]int32{800, 600} {
		t.Errorf("video destination = %v (%v), want 800x600", dst, ok)
	}
}

func TestWindowRotation(t *testing.T) {
	d, comp, w, pool := testWindow(t)

	w.SetRotation(wl.OutputTransform90)

	f := acquireFrame(t, pool)
	w.render(f.buffer(), &testInfo)
	settle(t, d)

	// Rotated 90 degrees, 320x240 video presents as 240x320 and is
	// height-limited inside 640x480.
	if dst, ok := comp.Destination(w.video.ID()); !ok || dst != [2]int32{360, 480} {
		t.Errorf("rotated video destination = %v (%v), want 360x480", dst, ok)
	}
}

func TestWindowScale(t *testing.T) {
	d, comp, w, pool := testWindow(t)

	f := acquireFrame(t, pool)
	w.render(f.buffer(), &testInfo)
	settle(t, d)

	video := w.video.ID()
	if got := comp.BufferScale(video); got != 1 {
		t.Errorf("initial buffer scale = %d, want 1", got)
	}

	comp.CompleteFrame()
	settle(t, d)

	area := w.area.ID()
	before := comp.Commits(area)

	w.SetScale(1)
	settle(t, d)
	if got := comp.Commits(area); got != before {
		t.Errorf("unchanged scale caused %d commits", got-before)
	}

	w.SetScale(2)
	settle(t, d)
	if got := comp.Commits(area); got <= before {
		t.Errorf("new scale did not reach the compositor")
	}

	// The scale itself travels with the next frame, and crop
	// coordinates are now interpreted in scaled pixels.
	w.SetSourceCrop(Rect{X: 20, Y: 40, W: 200, H: 100})
	w.render(f.buffer(), &testInfo)
	settle(t, d)

	if got := comp.BufferScale(video); got != 2 {
		t.Errorf("buffer scale after the change = %d, want 2", got)
	}
	want := [4]wire.Fixed{wire.FixedInt(10), wire.FixedInt(20), wire.FixedInt(100), wire.FixedInt(50)}
	if src, ok := comp.Source(video); !ok || src != want {
		t.Errorf("video source = %v (%v), want the crop halved", src, ok)
	}
}

func TestWindowSourceCrop(t *testing.T) {
	d, comp, w, pool := testWindow(t)

	w.SetSourceCrop(Rect{X: 10, Y: 20, W: 100, H: 50})

	f := acquireFrame(t, pool)
	b := f.buffer()
	w.render(b, &testInfo)
	settle(t, d)

	want := [4]wire.Fixed{wire.FixedInt(10), wire.FixedInt(20), wire.FixedInt(100), wire.FixedInt(50)}
	if src, ok := comp.Source(w.video.ID()); !ok || src != want {
		t.Errorf("video source = %v (%v), want the crop rectangle", src, ok)
	}

	comp.CompleteFrame()
	settle(t, d)

	w.SetSourceCrop(Rect{})
	w.render(b, &testInfo)
	settle(t, d)

	unset := [4]wire.Fixed{wire.FixedInt(-1), wire.FixedInt(-1), wire.FixedInt(-1), wire.FixedInt(-1)}
	if src, ok := comp.Source(w.video.ID()); !ok || src != unset {
		t.Errorf("video source = %v (%v), want unset after the crop was removed", src, ok)
	}
}

func TestWindowAlpha(t *testing.T) {
	d, comp, w, _ := testWindow(t, wltest.WithGlobal("zwp_alpha_compositing_v1", 1))

	w.SetAlpha(0.5)
	settle(t, d)

	if got := comp.Alpha(); got != wire.FixedFloat(0.5) {
		t.Errorf("alpha = %v, want %v", got, wire.FixedFloat(0.5))
	}
}

// TestWindowExplicitSync checks that under explicit synchronization
// the frame stays referenced until the compositor sends a release
// through the per-commit release object.
func TestWindowExplicitSync(t *testing.T) {
	d, comp, w, pool := testWindow(t, wltest.WithGlobal("zwp_linux_explicit_synchronization_v1", 2))

	f := acquireFrame(t, pool)
	w.render(f.buffer(), &testInfo)
	settle(t, d)

	if refs := f.Refs(); refs != 2 {
		t.Errorf("frame refs with the compositor holding = %d, want 2", refs)
	}

	if !comp.ImmediateRelease() {
		t.Fatalf("no release object armed for the commit")
	}
	settle(t, d)

	if refs := f.Refs(); refs != 1 {
		t.Errorf("frame refs after release = %d, want 1", refs)
	}
}

func TestWindowFencedRelease(t *testing.T) {
	d, comp, w, pool := testWindow(t, wltest.WithGlobal("zwp_linux_explicit_synchronization_v1", 2))

	f := acquireFrame(t, pool)
	w.render(f.buffer(), &testInfo)
	settle(t, d)

	signal, ok := comp.FencedRelease()
	if !ok {
		t.Fatalf("no release object armed for the commit")
	}

	// The release is fenced, so the frame reference must survive
	// until the fence signals.
	time.Sleep(30 * time.Millisecond)
	if refs := f.Refs(); refs != 2 {
		t.Errorf("frame refs before the fence signalled = %d, want 2", refs)
	}

	signal()
	waitFor(t, "the fenced release to drop the frame", func() bool {
		return f.Refs() == 1
	})
}

// TestWindowBorderRelease checks that the border buffer's memory is
// handed back once the compositor releases it: its pool is destroyed
// right after the attach, so the release is the last reference and
// the wl_buffer goes away with it.
func TestWindowBorderRelease(t *testing.T) {
	d, comp, w, pool := testWindow(t)

	f := acquireFrame(t, pool)
	w.render(f.buffer(), &testInfo)
	settle(t, d)

	border := comp.Attached(w.area.ID())
	if border == 0 {
		t.Fatalf("no border buffer attached")
	}
	before := comp.Buffers()

	comp.ReleaseBuffer(border)
	settle(t, d)

	if got := comp.Buffers(); got != before-1 {
		t.Errorf("live buffers after the border release = %d, want %d", got, before-1)
	}
}

func TestWindowPointerMoveResize(t *testing.T) {
	d, comp, w, _ := testWindow(t)

	comp.PointerEnter(w.area.ID(), 320, 240)
	comp.PointerButton(uint32(pointer.ButtonLeft), wl.PointerButtonStatePressed)
	settle(t, d)
	if got := comp.Moves(); got != 1 {
		t.Errorf("moves after a press in the body = %d, want 1", got)
	}

	comp.PointerMotion(630, 470)
	comp.PointerButton(uint32(pointer.ButtonLeft), wl.PointerButtonStatePressed)
	settle(t, d)
	if got := comp.Resizes(); got != 1 {
		t.Errorf("resizes after a press in the corner = %d, want 1", got)
	}

	// Releases and other buttons start nothing.
	comp.PointerButton(uint32(pointer.ButtonLeft), wl.PointerButtonStateReleased)
	comp.PointerButton(uint32(pointer.ButtonRight), wl.PointerButtonStatePressed)
	settle(t, d)
	if comp.Moves() != 1 || comp.Resizes() != 1 {
		t.Errorf("moves, resizes = %d, %d after ignored buttons, want 1, 1",
			comp.Moves(), comp.Resizes())
	}
}

func TestWindowTouchMove(t *testing.T) {
	d, comp, w, _ := testWindow(t)

	comp.TouchDown(w.area.ID(), 600, 400)
	settle(t, d)

	// Touch has no resize corner; any drag moves.
	if got := comp.Moves(); got != 1 {
		t.Errorf("moves after a touch down = %d, want 1", got)
	}
	if got := comp.Resizes(); got != 0 {
		t.Errorf("resizes after a touch down = %d, want none", got)
	}
}

func TestWindowCursor(t *testing.T) {
	d, comp, w, _ := testWindow(t)

	if err := d.SetCursor(image.NewRGBA(image.Rect(0, 0, 16, 16)), 3, 5); err != nil {
		t.Fatalf("set cursor: %v", err)
	}
	settle(t, d)
	if got := comp.Cursors(); got != 0 {
		t.Errorf("cursor set before the pointer entered")
	}

	comp.PointerEnter(w.area.ID(), 100, 100)
	settle(t, d)
	if got := comp.Cursors(); got != 1 {
		t.Errorf("set_cursor requests after an enter = %d, want 1", got)
	}
	if comp.CursorSurface() == 0 {
		t.Errorf("cursor set with a null surface")
	}

	if err := d.SetCursor(nil, 0, 0); err != nil {
		t.Fatalf("clear cursor: %v", err)
	}
	comp.PointerEnter(w.area.ID(), 100, 100)
	settle(t, d)
	if got := comp.Cursors(); got != 1 {
		t.Errorf("set_cursor requests after clearing = %d, want 1", got)
	}
}

func TestWindowCloseEvent(t *testing.T) {
	d, comp, w, _ := testWindow(t)

	closed := make(chan struct{})
	w.OnClosed(func() { close(closed) })

	comp.CloseWindow()
	settle(t, d)

	select {
	case <-closed:
	default:
		t.Errorf("close event did not reach the handler")
	}
}

func TestWindowConfigure(t *testing.T) {
	d, comp, w, _ := testWindow(t)

	comp.Configure(800, 600)
	settle(t, d)

	if r := w.RenderRectangle(); r != (Rect{W: 800, H: 600}) {
		t.Errorf("render rectangle = %+v, want the configured 800x600", r)
	}
	if acks := comp.Acked(); len(acks) != 2 {
		t.Errorf("configure acks = %v, want the initial one and ours", acks)
	}

	// Sizes that leave no room inside the resize margins are
	// ignored, but still acknowledged.
	comp.Configure(30, 30)
	settle(t, d)

	if r := w.RenderRectangle(); r != (Rect{W: 800, H: 600}) {
		t.Errorf("render rectangle = %+v after a degenerate configure, want 800x600", r)
	}
	if acks := comp.Acked(); len(acks) != 3 {
		t.Errorf("configure acks = %v, want every configure acknowledged", acks)
	}
}

func TestWindowLegacyShell(t *testing.T) {
	d, comp, w, pool := testWindow(t,
		wltest.WithoutGlobal("xdg_wm_base"),
		wltest.WithGlobal("wl_shell", 1),
	)

	if !w.Toplevel() {
		t.Errorf("window does not consider itself a toplevel")
	}
	if r := w.RenderRectangle(); r != (Rect{W: 640, H: 480}) {
		t.Errorf("render rectangle = %+v, want 640x480", r)
	}

	serial := comp.PingLegacy()
	settle(t, d)
	if pongs := comp.Pongs(); !slices.Contains(pongs, serial) {
		t.Errorf("pongs = %v, want to contain %d", pongs, serial)
	}

	comp.ConfigureLegacy(300, 200)
	settle(t, d)
	if r := w.RenderRectangle(); r != (Rect{W: 300, H: 200}) {
		t.Errorf("render rectangle = %+v, want the configured 300x200", r)
	}

	f := acquireFrame(t, pool)
	b := f.buffer()
	if !w.render(b, &testInfo) {
		t.Fatalf("render reported failure")
	}
	settle(t, d)
	if got := comp.Attached(w.video.ID()); got != b.wlbuf.ID() {
		t.Errorf("attached buffer = %d, want %d", got, b.wlbuf.ID())
	}
}

func TestWindowFullscreenShell(t *testing.T) {
	d, comp, w, pool := testWindow(t,
		wltest.WithoutGlobal("xdg_wm_base"),
		wltest.WithGlobal("zwp_fullscreen_shell_v1", 1),
	)

	if w.Toplevel() {
		t.Errorf("fullscreen-shell window considers itself a toplevel")
	}

	settle(t, d)
	if !comp.Presented() {
		t.Errorf("surface was not presented through the fullscreen shell")
	}

	f := acquireFrame(t, pool)
	b := f.buffer()
	if !w.render(b, &testInfo) {
		t.Fatalf("render reported failure")
	}
	settle(t, d)
	if got := comp.Attached(w.video.ID()); got != b.wlbuf.ID() {
		t.Errorf("attached buffer = %d, want %d", got, b.wlbuf.ID())
	}
}

func TestWindowFullscreen(t *testing.T) {
	fakeWestonINI(t, "")
	d, comp := testDisplay(t)

	w, err := NewWindow(d, testInfo, true, 0, 0)
	if err != nil {
		t.Fatalf("create window: %v", err)
	}
	t.Cleanup(w.Destroy)

	// A fullscreen toplevel waits for the compositor to size it.
	if r := w.RenderRectangle(); r != (Rect{}) {
		t.Errorf("render rectangle = %+v before the compositor answered, want zero", r)
	}

	settle(t, d)
	if got := comp.Fullscreens(); got != 1 {
		t.Errorf("fullscreen requests = %d, want 1", got)
	}

	comp.Configure(1920, 1080)
	settle(t, d)
	if r := w.RenderRectangle(); r != (Rect{W: 1920, H: 1080}) {
		t.Errorf("render rectangle = %+v, want the configured 1920x1080", r)
	}

	w.SetFullscreen(false)
	settle(t, d)
	if comp.Unfullscreens() == 0 {
		t.Errorf("leaving fullscreen sent no request")
	}
}

func TestWindowConfigureTimeout(t *testing.T) {
	fakeWestonINI(t, "")
	d, comp := testDisplay(t, wltest.WithoutAutoConfigure())

	start := time.Now()
	w, err := NewWindow(d, testInfo, false, 640, 480)
	elapsed := time.Since(start)
	if err != nil {
		t.Fatalf("create window: %v", err)
	}
	t.Cleanup(w.Destroy)

	if elapsed < configureTimeout {
		t.Errorf("window creation returned after %v, before the %v configure grace", elapsed, configureTimeout)
	}
	if w.configured.Load() {
		t.Errorf("window believes itself configured without a configure event")
	}

	settle(t, d)
	if got := comp.Commits(w.area.ID()); got != 1 {
		t.Errorf("area commits before configure = %d, want only the role setup", got)
	}

	comp.Configure(500, 400)
	settle(t, d)
	if !w.configured.Load() {
		t.Errorf("window still unconfigured after a configure event")
	}
	if r := w.RenderRectangle(); r != (Rect{W: 500, H: 400}) {
		t.Errorf("render rectangle = %+v, want the configured 500x400", r)
	}
}

func TestNewWindowIn(t *testing.T) {
	fakeWestonINI(t, "")
	d, comp := testDisplay(t)

	parent := d.compositor.CreateSurface()
	w, err := NewWindowIn(d, parent)
	if err != nil {
		t.Fatalf("embed window: %v", err)
	}
	t.Cleanup(w.Destroy)

	if w.Toplevel() {
		t.Errorf("embedded window considers itself a toplevel")
	}

	settle(t, d)
	if comp.Commits(parent.ID()) == 0 {
		t.Errorf("parent surface was not committed to anchor the subsurface")
	}

	w.SetRenderRectangle(10, 20, 200, 100)

	pool, err := d.NewPool(testInfo, 1)
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}
	f := acquireFrame(t, pool)
	b := f.buffer()
	if !w.render(b, &testInfo) {
		t.Fatalf("render reported failure")
	}
	settle(t, d)

	if got := comp.Attached(w.video.ID()); got != b.wlbuf.ID() {
		t.Errorf("attached buffer = %d, want %d", got, b.wlbuf.ID())
	}
	if dst, ok := comp.Destination(w.area.ID()); !ok || dst != [2]int32{200, 100} {
		t.Errorf("area destination = %v (%v), want the render rectangle's 200x100", dst, ok)
	}
	if dst, ok := comp.Destination(w.video.ID()); !ok || dst != [2]int32{133, 100} {
		t.Errorf("video destination = %v (%v), want 133x100 inside 200x100", dst, ok)
	}
}

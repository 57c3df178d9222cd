package wlsink

import (
	"errors"
	"image"
	"testing"

	wl "deedles.dev/wlsink/client"
	"deedles.dev/wlsink/internal/wltest"
)

func TestNewPool(t *testing.T) {
	d, _ := testDisplay(t)

	pool, err := d.NewPool(testInfo, 2)
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}
	if pool.Info() != testInfo {
		t.Errorf("pool info = %+v, want %+v", pool.Info(), testInfo)
	}

	f1, err := pool.Acquire()
	if err != nil {
		t.Fatalf("acquire first frame: %v", err)
	}
	f2, err := pool.Acquire()
	if err != nil {
		t.Fatalf("acquire second frame: %v", err)
	}
	if f1 == f2 {
		t.Errorf("both acquires returned the same frame")
	}
	if got, want := len(f1.Bytes()), int(testInfo.Size()); got != want {
		t.Errorf("frame length = %d, want %d", got, want)
	}

	if _, err := pool.Acquire(); !errors.Is(err, ErrPoolExhausted) {
		t.Errorf("acquire beyond capacity = %v, want ErrPoolExhausted", err)
	}

	f1.Unref()
	if _, err := pool.Acquire(); err != nil {
		t.Errorf("acquire after a frame came back: %v", err)
	}
}

func TestNewPoolSingleFrameMinimum(t *testing.T) {
	d, _ := testDisplay(t)

	pool, err := d.NewPool(testInfo, 0)
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}
	if _, err := pool.Acquire(); err != nil {
		t.Errorf("acquire from a clamped pool: %v", err)
	}
	if _, err := pool.Acquire(); !errors.Is(err, ErrPoolExhausted) {
		t.Errorf("clamped pool held more than one frame: %v", err)
	}
}

func TestNewPoolUnsupportedFormat(t *testing.T) {
	d, _ := testDisplay(t)

	nv12 := VideoInfo{Format: wl.ShmFormatNv12, Width: 320, Height: 240}
	if _, err := d.NewPool(nv12, 1); !errors.Is(err, ErrFormatUnsupported) {
		t.Errorf("pool for an unadvertised format = %v, want ErrFormatUnsupported", err)
	}

	if _, err := d.NewPool(VideoInfo{Format: wl.ShmFormatXrgb8888}, 1); err == nil {
		t.Errorf("pool for a zero-sized format created")
	}
}

func TestNewPoolPlanarFormat(t *testing.T) {
	d, _ := testDisplay(t, wltest.WithShmFormats(wl.ShmFormatXrgb8888, wl.ShmFormatNv12))

	nv12 := VideoInfo{Format: wl.ShmFormatNv12, Width: 4, Height: 4}
	pool, err := d.NewPool(nv12, 1)
	if err != nil {
		t.Fatalf("create nv12 pool: %v", err)
	}
	f, err := pool.Acquire()
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if got, want := len(f.Bytes()), int(nv12.Size()); got != want {
		t.Errorf("frame length = %d, want %d", got, want)
	}
}

func TestFrameRefs(t *testing.T) {
	d, _ := testDisplay(t)

	pool, err := d.NewPool(testInfo, 1)
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}
	f, err := pool.Acquire()
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}

	if f.Refs() != 1 {
		t.Errorf("refs after acquire = %d, want 1", f.Refs())
	}
	f.Ref()
	if f.Refs() != 2 {
		t.Errorf("refs after Ref = %d, want 2", f.Refs())
	}
	f.Unref()
	f.Unref()
	if f.Refs() != 0 {
		t.Errorf("refs after release = %d, want 0", f.Refs())
	}
}

func TestFrameCrop(t *testing.T) {
	d, _ := testDisplay(t)

	pool, err := d.NewPool(testInfo, 1)
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}
	f, err := pool.Acquire()
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}

	if _, ok := f.Crop(); ok {
		t.Errorf("fresh frame has a crop")
	}

	want := Rect{X: 8, Y: 8, W: 100, H: 50}
	f.SetCrop(want)
	if got, ok := f.Crop(); !ok || got != want {
		t.Errorf("crop = %+v (%v), want %+v", got, ok, want)
	}

	f.ClearCrop()
	if _, ok := f.Crop(); ok {
		t.Errorf("crop survived ClearCrop")
	}

	// A crop must not leak into the frame's next use.
	f.SetCrop(want)
	f.Unref()
	f2, err := pool.Acquire()
	if err != nil {
		t.Fatalf("reacquire: %v", err)
	}
	if _, ok := f2.Crop(); ok {
		t.Errorf("crop survived the frame's reuse")
	}
}

func TestFrameImage(t *testing.T) {
	d, _ := testDisplay(t)

	pool, err := d.NewPool(testInfo, 1)
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}
	f, err := pool.Acquire()
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}

	img := f.Image()
	if got, want := img.Bounds(), image.Rect(0, 0, 320, 240); got != want {
		t.Errorf("image bounds = %v, want %v", got, want)
	}
}

func TestPoolDestroy(t *testing.T) {
	d, _ := testDisplay(t)

	pool, err := d.NewPool(testInfo, 2)
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}
	f, err := pool.Acquire()
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}

	pool.Destroy()
	pool.Destroy()

	if _, err := pool.Acquire(); err == nil {
		t.Errorf("acquired a frame from a destroyed pool")
	}

	// The held frame's memory stays mapped until its last reference
	// drops.
	f.Bytes()[0] = 0xff
	f.Unref()
}

package wlsink

import (
	"errors"
	"io"
	"log/slog"
	"slices"
	"strings"
	"testing"
	"time"

	wl "deedles.dev/wlsink/client"
	"deedles.dev/wlsink/internal/wltest"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testDisplay builds a Display on a scripted compositor. The
// compositor's cleanup closes the connection, which shuts the
// display down with it.
func testDisplay(t *testing.T, opts ...wltest.Option) (*Display, *wltest.Compositor) {
	t.Helper()

	comp, client := wltest.New(t, opts...)
	d, err := FromClient(client, testLogger())
	if err != nil {
		t.Fatalf("connect to test compositor: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d, comp
}

// settle waits until the compositor has seen everything the client
// is going to send. The first round trip covers requests issued
// before the call; the second covers requests that listeners queued
// while the first was dispatching.
func settle(t *testing.T, d *Display) {
	t.Helper()

	for range 2 {
		if err := d.RoundTrip(); err != nil {
			t.Fatalf("round trip: %v", err)
		}
	}
}

func TestConnect(t *testing.T) {
	d, comp := testDisplay(t)

	if !d.HasViewporter() {
		t.Errorf("viewporter not bound")
	}
	if !d.HasXdgShell() {
		t.Errorf("xdg_wm_base not bound")
	}
	if d.HasLegacyShell() {
		t.Errorf("wl_shell bound but never advertised")
	}
	if d.HasFullscreenShell() {
		t.Errorf("fullscreen shell bound but never advertised")
	}
	if d.HasExplicitSync() {
		t.Errorf("explicit sync bound but never advertised")
	}
	if d.HasAlphaCompositing() {
		t.Errorf("alpha compositing bound but never advertised")
	}

	for _, format := range []wl.ShmFormat{wl.ShmFormatArgb8888, wl.ShmFormatXrgb8888} {
		if !d.SupportsFormat(format) {
			t.Errorf("advertised format %v not supported", format)
		}
		if !slices.Contains(d.Formats(), format) {
			t.Errorf("Formats() missing %v", format)
		}
	}
	if d.SupportsFormat(wl.ShmFormatNv12) {
		t.Errorf("nv12 supported but never advertised")
	}

	if w, h := d.OutputSize(); w != 1920 || h != 1080 {
		t.Errorf("OutputSize() = %dx%d, want 1920x1080", w, h)
	}

	if d.Seat() == nil {
		t.Errorf("no seat bound")
	}
	if d.Pointer() == nil {
		t.Errorf("no pointer for a seat with the pointer capability")
	}
	if d.Touch() == nil {
		t.Errorf("no touch for a seat with the touch capability")
	}

	if err := comp.Err(); err != nil {
		t.Errorf("compositor: %v", err)
	}
}

func TestConnectMissingGlobals(t *testing.T) {
	_, client := wltest.New(t, wltest.WithoutGlobal("wl_subcompositor"))

	_, err := FromClient(client, testLogger())
	if err == nil {
		t.Fatalf("connected without a subcompositor")
	}
	if !strings.Contains(err.Error(), "wl_subcompositor") {
		t.Errorf("error %q does not name the missing global", err)
	}
}

func TestConnectOptionalGlobals(t *testing.T) {
	d, _ := testDisplay(t,
		wltest.WithGlobal("wl_shell", 1),
		wltest.WithGlobal("zwp_fullscreen_shell_v1", 1),
		wltest.WithGlobal("zwp_linux_explicit_synchronization_v1", 2),
		wltest.WithGlobal("zwp_alpha_compositing_v1", 1),
	)

	if !d.HasLegacyShell() {
		t.Errorf("wl_shell not bound")
	}
	if !d.HasFullscreenShell() {
		t.Errorf("fullscreen shell not bound")
	}
	if !d.HasExplicitSync() {
		t.Errorf("explicit sync not bound")
	}
	if !d.HasAlphaCompositing() {
		t.Errorf("alpha compositing not bound")
	}
}

func TestOutputSizeUnknown(t *testing.T) {
	d, _ := testDisplay(t, wltest.WithoutGlobal("wl_output"))

	if w, h := d.OutputSize(); w != -1 || h != -1 {
		t.Errorf("OutputSize() with no outputs = %dx%d, want -1x-1", w, h)
	}
	if outputs := d.Outputs(); len(outputs) != 0 {
		t.Errorf("Outputs() = %v, want none", outputs)
	}
}

func TestRun(t *testing.T) {
	d, _ := testDisplay(t)

	ran := false
	if err := d.Run(func() { ran = true }); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !ran {
		t.Errorf("Run returned before the function ran")
	}
}

func TestCloseIdempotent(t *testing.T) {
	d, _ := testDisplay(t)

	if err := d.Close(); err != nil {
		t.Errorf("first Close: %v", err)
	}
	if err := d.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}

	select {
	case <-d.Closed():
	default:
		t.Errorf("Closed() still open after Close")
	}

	if err := d.Sync(func() {}); !errors.Is(err, ErrDisplayClosed) {
		t.Errorf("Sync after Close = %v, want ErrDisplayClosed", err)
	}
	if err := d.Run(func() {}); !errors.Is(err, ErrDisplayClosed) {
		t.Errorf("Run after Close = %v, want ErrDisplayClosed", err)
	}
	if err := d.RoundTrip(); !errors.Is(err, ErrDisplayClosed) {
		t.Errorf("RoundTrip after Close = %v, want ErrDisplayClosed", err)
	}
}

func TestPing(t *testing.T) {
	d, comp := testDisplay(t)

	serial := comp.Ping()
	settle(t, d)

	if pongs := comp.Pongs(); !slices.Contains(pongs, serial) {
		t.Errorf("pongs = %v, want to contain %d", pongs, serial)
	}
}

// TestConnectionLoss checks that the display notices the compositor
// going away and shuts itself down.
func TestConnectionLoss(t *testing.T) {
	d, comp := testDisplay(t)

	comp.Close()

	select {
	case <-d.Closed():
	case <-time.After(5 * time.Second):
		t.Fatalf("display still open after the connection dropped")
	}
}

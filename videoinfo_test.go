package wlsink

import (
	"errors"
	"slices"
	"testing"

	wl "deedles.dev/wlsink/client"
)

func TestScaledWidth(t *testing.T) {
	tests := []struct {
		name string
		info VideoInfo
		want int32
	}{
		{"square pixels", VideoInfo{Width: 640, ParN: 1, ParD: 1}, 640},
		{"par unset", VideoInfo{Width: 640}, 640},
		{"anamorphic wide", VideoInfo{Width: 720, ParN: 16, ParD: 11}, 1047},
		{"narrow", VideoInfo{Width: 720, ParN: 8, ParD: 9}, 640},
		{"rounds to nearest", VideoInfo{Width: 3, ParN: 1, ParD: 2}, 2},
	}

	for _, tt := range tests {
		if got := tt.info.ScaledWidth(); got != tt.want {
			t.Errorf("%v: ScaledWidth() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestFrameSize(t *testing.T) {
	tests := []struct {
		name string
		info VideoInfo
		want int32
	}{
		{"xrgb", VideoInfo{Format: wl.ShmFormatXrgb8888, Width: 4, Height: 4}, 64},
		{"rgb565", VideoInfo{Format: wl.ShmFormatRgb565, Width: 10, Height: 2}, 40},
		{"nv12", VideoInfo{Format: wl.ShmFormatNv12, Width: 4, Height: 4}, 24},
		{"nv12 odd height", VideoInfo{Format: wl.ShmFormatNv12, Width: 4, Height: 5}, 32},
		{"nv16", VideoInfo{Format: wl.ShmFormatNv16, Width: 4, Height: 4}, 32},
		{"yuv420", VideoInfo{Format: wl.ShmFormatYuv420, Width: 4, Height: 4}, 24},
		{"yuv420 odd", VideoInfo{Format: wl.ShmFormatYuv420, Width: 5, Height: 5}, 43},
	}

	for _, tt := range tests {
		if got := tt.info.Size(); got != tt.want {
			t.Errorf("%v: Size() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestValidate(t *testing.T) {
	good := VideoInfo{Format: wl.ShmFormatXrgb8888, Width: 640, Height: 480}
	if err := good.validate(); err != nil {
		t.Errorf("valid info rejected: %v", err)
	}

	bad := VideoInfo{Format: wl.ShmFormat(0xdeadbeef), Width: 640, Height: 480}
	if err := bad.validate(); !errors.Is(err, ErrFormatUnsupported) {
		t.Errorf("unknown format: got %v, want ErrFormatUnsupported", err)
	}

	empty := VideoInfo{Format: wl.ShmFormatXrgb8888, Width: 0, Height: 480}
	if err := empty.validate(); err == nil {
		t.Error("zero width accepted")
	}
}

func TestHasAlpha(t *testing.T) {
	if !HasAlpha(wl.ShmFormatArgb8888) {
		t.Error("argb8888 should have alpha")
	}
	if HasAlpha(wl.ShmFormatXrgb8888) {
		t.Error("xrgb8888 should not have alpha")
	}
	if HasAlpha(wl.ShmFormat(0xdeadbeef)) {
		t.Error("unknown format should not have alpha")
	}
}

func TestKnownFormatsSorted(t *testing.T) {
	kf := KnownFormats()
	if len(kf) == 0 {
		t.Fatal("no known formats")
	}
	if !slices.IsSorted(kf) {
		t.Errorf("formats not sorted: %v", kf)
	}
	if !slices.Contains(kf, wl.ShmFormatXrgb8888) {
		t.Error("xrgb8888 missing from known formats")
	}
}

func TestCenterRectScaled(t *testing.T) {
	tests := []struct {
		name     string
		src, dst Rect
		want     Rect
	}{
		{
			name: "wide source letterboxed",
			src:  Rect{W: 200, H: 100},
			dst:  Rect{W: 100, H: 100},
			want: Rect{X: 0, Y: 25, W: 100, H: 50},
		},
		{
			name: "tall source pillarboxed",
			src:  Rect{W: 100, H: 200},
			dst:  Rect{W: 100, H: 100},
			want: Rect{X: 25, Y: 0, W: 50, H: 100},
		},
		{
			name: "same aspect fills",
			src:  Rect{W: 320, H: 240},
			dst:  Rect{W: 640, H: 480},
			want: Rect{W: 640, H: 480},
		},
		{
			name: "dst offset carried through",
			src:  Rect{W: 100, H: 100},
			dst:  Rect{X: 10, Y: 20, W: 50, H: 80},
			want: Rect{X: 10, Y: 35, W: 50, H: 50},
		},
	}

	for _, tt := range tests {
		if got := centerRect(tt.src, tt.dst, true); got != tt.want {
			t.Errorf("%v: centerRect = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestCenterRectUnscaled(t *testing.T) {
	tests := []struct {
		name     string
		src, dst Rect
		want     Rect
	}{
		{
			name: "small source centered",
			src:  Rect{W: 40, H: 20},
			dst:  Rect{W: 100, H: 100},
			want: Rect{X: 30, Y: 40, W: 40, H: 20},
		},
		{
			name: "large source clipped",
			src:  Rect{W: 400, H: 300},
			dst:  Rect{W: 100, H: 100},
			want: Rect{W: 100, H: 100},
		},
	}

	for _, tt := range tests {
		if got := centerRect(tt.src, tt.dst, false); got != tt.want {
			t.Errorf("%v: centerRect = %v, want %v", tt.name, got, tt.want)
		}
	}
}

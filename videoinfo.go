package wlsink

import (
	"errors"
	"fmt"
	"slices"

	wl "deedles.dev/wlsink/client"
)

// ErrFormatUnsupported indicates a pixel format that either has no
// known memory layout or is not advertised by the compositor.
var ErrFormatUnsupported = errors.New("pixel format not supported")

// formatInfo describes the memory layout of a wl_shm pixel format.
// bpp is the byte width of one plane-0 pixel.
type formatInfo struct {
	bpp   int32
	alpha bool
}

var formats = map[wl.ShmFormat]formatInfo{
	wl.ShmFormatArgb8888: {bpp: 4, alpha: true},
	wl.ShmFormatXrgb8888: {bpp: 4},
	wl.ShmFormatXbgr8888: {bpp: 4},
	wl.ShmFormatRgbx8888: {bpp: 4},
	wl.ShmFormatBgrx8888: {bpp: 4},
	wl.ShmFormatAbgr8888: {bpp: 4, alpha: true},
	wl.ShmFormatRgba8888: {bpp: 4, alpha: true},
	wl.ShmFormatBgra8888: {bpp: 4, alpha: true},
	wl.ShmFormatRgb888:   {bpp: 3},
	wl.ShmFormatBgr888:   {bpp: 3},
	wl.ShmFormatRgb565:   {bpp: 2},
	wl.ShmFormatBgr565:   {bpp: 2},
	wl.ShmFormatYuyv:     {bpp: 2},
	wl.ShmFormatYvyu:     {bpp: 2},
	wl.ShmFormatUyvy:     {bpp: 2},
	wl.ShmFormatAyuv:     {bpp: 4},
	wl.ShmFormatNv12:     {bpp: 1},
	wl.ShmFormatNv21:     {bpp: 1},
	wl.ShmFormatNv16:     {bpp: 1},
	wl.ShmFormatYuv420:   {bpp: 1},
	wl.ShmFormatYvu420:   {bpp: 1},
}

// KnownFormats lists the pixel formats whose memory layout this
// package understands, sorted by fourcc value.
func KnownFormats() []wl.ShmFormat {
	out := make([]wl.ShmFormat, 0, len(formats))
	for f := range formats {
		out = append(out, f)
	}
	slices.Sort(out)
	return out
}

// HasAlpha reports whether f carries an alpha channel.
func HasAlpha(f wl.ShmFormat) bool {
	return formats[f].alpha
}

// VideoInfo describes the geometry and pixel format of the frames a
// stream delivers.
type VideoInfo struct {
	Format wl.ShmFormat
	Width  int32
	Height int32

	// ParN and ParD give the pixel aspect ratio as a fraction.
	// Zero values mean square pixels.
	ParN, ParD int32
}

func (info VideoInfo) par() (n, d int32) {
	if info.ParN <= 0 || info.ParD <= 0 {
		return 1, 1
	}
	return info.ParN, info.ParD
}

// ScaledWidth is the display width of a frame after pixel aspect
// ratio correction.
func (info VideoInfo) ScaledWidth() int32 {
	n, d := info.par()
	return scaleRound(info.Width, n, d)
}

// Stride is the byte stride of the first plane.
func (info VideoInfo) Stride() int32 {
	return info.Width * formats[info.Format].bpp
}

// Size is the total byte size of one frame, chroma planes included.
func (info VideoInfo) Size() int32 {
	stride, height := info.Stride(), info.Height
	switch info.Format {
	case wl.ShmFormatNv12, wl.ShmFormatNv21:
		return stride*height + stride*((height+1)/2)
	case wl.ShmFormatNv16:
		return 2 * stride * height
	case wl.ShmFormatYuv420, wl.ShmFormatYvu420:
		cstride := (stride + 1) / 2
		return stride*height + 2*cstride*((height+1)/2)
	}
	return stride * height
}

func (info VideoInfo) validate() error {
	if _, ok := formats[info.Format]; !ok {
		return fmt.Errorf("%v: %w", info.Format, ErrFormatUnsupported)
	}
	if info.Width <= 0 || info.Height <= 0 {
		return fmt.Errorf("invalid frame size %vx%v", info.Width, info.Height)
	}
	return nil
}

func (info VideoInfo) String() string {
	return fmt.Sprintf("%vx%v %v", info.Width, info.Height, info.Format)
}

// Rect is a rectangle in surface coordinates.
type Rect struct {
	X, Y, W, H int32
}

func (r Rect) String() string {
	return fmt.Sprintf("(%v, %v) %vx%v", r.X, r.Y, r.W, r.H)
}

// scaleRound computes v*num/den rounded to nearest.
func scaleRound(v, num, den int32) int32 {
	if num == den {
		return v
	}
	return int32((int64(v)*int64(num) + int64(den)/2) / int64(den))
}

// centerRect fits src into dst. With scale set the source aspect
// ratio is preserved and the result fills dst along one axis;
// without it the source is clipped to dst at 1:1. The result is
// centered either way.
func centerRect(src, dst Rect, scale bool) Rect {
	var res Rect

	if !scale {
		res.W = min(src.W, dst.W)
		res.H = min(src.H, dst.H)
		res.X = dst.X + (dst.W-res.W)/2
		res.Y = dst.Y + (dst.H-res.H)/2
		return res
	}

	// Cross-multiplied aspect comparison keeps this exact.
	srcAspect := int64(src.W) * int64(dst.H)
	dstAspect := int64(dst.W) * int64(src.H)
	switch {
	case srcAspect > dstAspect:
		res.W = dst.W
		res.H = int32(int64(dst.W) * int64(src.H) / int64(src.W))
		res.X = dst.X
		res.Y = dst.Y + (dst.H-res.H)/2
	case srcAspect < dstAspect:
		res.W = int32(int64(dst.H) * int64(src.W) / int64(src.H))
		res.H = dst.H
		res.X = dst.X + (dst.W-res.W)/2
		res.Y = dst.Y
	default:
		res = dst
	}
	return res
}

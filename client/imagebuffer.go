package wl

import (
	"fmt"
	"image"
	"image/draw"
	"os"

	"deedles.dev/wlsink/shm"
	"deedles.dev/ximage"
	"golang.org/x/sys/unix"
)

// ImageBuffer is a CPU-drawable wl_buffer backed by its own
// shared-memory pool, in ARGB8888. It can be resized, reusing the
// existing pool while the new size fits.
type ImageBuffer struct {
	w, h int32
	shm  *Shm
	pool *ShmPool
	buf  *Buffer
	file *os.File
	mmap shm.Mmap
}

func NewImageBuffer(s *Shm, w, h int32) (buf *ImageBuffer, err error) {
	defer func() {
		if err != nil {
			buf.Destroy()
		}
	}()

	buf = &ImageBuffer{
		w:   w,
		h:   h,
		shm: s,
	}
	size := buf.Stride() * buf.h

	file, err := shm.Create()
	if err != nil {
		return buf, fmt.Errorf("create SHM file: %w", err)
	}
	buf.file = file
	if err := buf.file.Truncate(int64(size)); err != nil {
		return buf, fmt.Errorf("truncate SHM file: %w", err)
	}

	mmap, err := shm.MapShared(file, int(size), unix.PROT_READ|unix.PROT_WRITE)
	if err != nil {
		return buf, fmt.Errorf("mmap SHM file: %w", err)
	}
	buf.mmap = mmap

	buf.pool = buf.shm.CreatePool(file, int32(len(buf.mmap)))
	buf.buf = buf.pool.CreateBuffer(0, w, h, buf.Stride(), ShmFormatArgb8888)

	return buf, nil
}

func (b *ImageBuffer) Destroy() {
	if b.mmap != nil {
		b.mmap.Unmap()
	}
	if b.file != nil {
		b.file.Close()
	}
	if b.buf != nil {
		b.buf.Destroy()
	}
	if b.pool != nil {
		b.pool.Destroy()
	}
}

// Buffer returns the protocol buffer for attaching.
func (b *ImageBuffer) Buffer() *Buffer { return b.buf }

func (b *ImageBuffer) Stride() int32 { return b.w * 4 }

func (b *ImageBuffer) Len() int32 { return b.Stride() * b.h }

func (b *ImageBuffer) Cap() int32 { return int32(cap(b.mmap)) }

func (b *ImageBuffer) Bounds() image.Rectangle {
	return image.Rect(0, 0, int(b.w), int(b.h))
}

// Resize adjusts the buffer to w×h, growing the underlying pool if
// necessary. The old protocol buffer is destroyed and replaced.
func (b *ImageBuffer) Resize(w, h int32) error {
	if (w == b.w) && (h == b.h) {
		return nil
	}

	b.w = w
	b.h = h
	if b.Len() <= b.Cap() {
		b.mmap = b.mmap[:b.Len()]
		b.buf.Destroy()
		b.buf = b.pool.CreateBuffer(0, b.w, b.h, b.Stride(), ShmFormatArgb8888)
		return nil
	}

	if err := b.file.Truncate(int64(b.Len())); err != nil {
		return fmt.Errorf("truncate: %w", err)
	}

	err := b.mmap.Unmap()
	if err != nil {
		return fmt.Errorf("unmap: %w", err)
	}
	mmap, err := shm.MapShared(b.file, int(b.Len()), unix.PROT_READ|unix.PROT_WRITE)
	if err != nil {
		return fmt.Errorf("mmap: %w", err)
	}
	b.mmap = mmap

	b.buf.Destroy()
	b.pool.Resize(b.Len())
	b.buf = b.pool.CreateBuffer(0, b.w, b.h, b.Stride(), ShmFormatArgb8888)

	return nil
}

// Image exposes the pixels as a drawable image. The data is live;
// anything drawn is visible to the compositor after the next attach
// and commit.
func (b *ImageBuffer) Image() draw.Image {
	return &ximage.FormatImage{
		Format: ximage.ARGB8888,
		Rect:   b.Bounds(),
		Pix:    b.mmap,
	}
}

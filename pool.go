package wlsink

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	"sync"

	wl "deedles.dev/wlsink/client"
	"deedles.dev/wlsink/shm"
	"deedles.dev/ximage"
	"golang.org/x/sys/unix"
)

// ErrPoolExhausted indicates that every frame of a pool is still
// referenced, typically because the compositor has not released them
// yet.
var ErrPoolExhausted = errors.New("all pool frames are in use")

// Pool carves one shared-memory file into equally sized frame slots
// and shares it with the compositor as a wl_shm_pool.
type Pool struct {
	display *Display
	info    VideoInfo
	size    int32

	mu        sync.Mutex
	mem       shm.Mmap
	wlpool    *wl.ShmPool
	frames    []*Frame
	destroyed bool
}

// NewPool allocates shared memory for n frames of the given geometry.
// The format must be advertised by the compositor.
func (d *Display) NewPool(info VideoInfo, n int) (*Pool, error) {
	if err := info.validate(); err != nil {
		return nil, err
	}
	if !d.SupportsFormat(info.Format) {
		return nil, fmt.Errorf("%v: %w", info.Format, ErrFormatUnsupported)
	}
	if n < 1 {
		n = 1
	}

	size := info.Size()
	total := int64(size) * int64(n)

	file, err := shm.Create()
	if err != nil {
		return nil, fmt.Errorf("create pool memory: %w", err)
	}
	defer file.Close()
	if err := file.Truncate(total); err != nil {
		return nil, fmt.Errorf("grow pool memory: %w", err)
	}
	mem, err := shm.MapShared(file, int(total), unix.PROT_READ|unix.PROT_WRITE)
	if err != nil {
		return nil, fmt.Errorf("map pool memory: %w", err)
	}

	p := &Pool{
		display: d,
		info:    info,
		size:    size,
		mem:     mem,
		wlpool:  d.shm.CreatePool(file, int32(total)),
	}
	p.frames = make([]*Frame, n)
	for i := range p.frames {
		p.frames[i] = &Frame{pool: p, offset: size * int32(i)}
	}
	return p, nil
}

// Info returns the frame geometry the pool was created for.
func (p *Pool) Info() VideoInfo { return p.info }

// Acquire hands out a free frame with one reference held by the
// caller, or ErrPoolExhausted if every slot is in use.
func (p *Pool) Acquire() (*Frame, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.destroyed {
		return nil, errors.New("pool is destroyed")
	}
	for _, f := range p.frames {
		if f.refs == 0 {
			f.refs = 1
			f.crop = nil
			return f, nil
		}
	}
	return nil, ErrPoolExhausted
}

// Destroy releases the compositor side of the pool. The backing
// memory stays mapped until the last frame reference drops, so
// buffers the compositor still reads remain valid.
func (p *Pool) Destroy() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.destroyed {
		return
	}
	p.destroyed = true
	p.wlpool.Destroy()
	p.reclaimLocked()
}

func (p *Pool) reclaimLocked() {
	if !p.destroyed || p.mem == nil {
		return
	}
	for _, f := range p.frames {
		if f.refs != 0 {
			return
		}
	}
	for _, f := range p.frames {
		if f.wlbuf != nil {
			f.wlbuf.Destroy()
			f.wlbuf = nil
			p.display.unregisterBuffer(f.wrapper)
			f.wrapper = nil
		}
	}
	if err := p.mem.Unmap(); err != nil {
		p.display.log.Debug("unmap pool", "err", err)
	}
	p.mem = nil
}

// Frame is one slot of a Pool. Frames are reference counted; the
// slot is free for Acquire again once the count drops to zero.
type Frame struct {
	pool   *Pool
	offset int32

	// guarded by pool.mu
	refs    int
	crop    *Rect
	wlbuf   *wl.Buffer
	wrapper *Buffer
}

// Pool returns the pool the frame belongs to.
func (f *Frame) Pool() *Pool { return f.pool }

// Info returns the frame's geometry.
func (f *Frame) Info() VideoInfo { return f.pool.info }

// Ref adds a reference to the frame.
func (f *Frame) Ref() {
	p := f.pool
	p.mu.Lock()
	f.refs++
	p.mu.Unlock()
}

// Unref drops one reference. The caller must not touch the frame
// afterwards unless it holds another reference.
func (f *Frame) Unref() {
	p := f.pool
	p.mu.Lock()
	f.refs--
	if f.refs < 0 {
		panic("wlsink: frame reference count below zero")
	}
	if f.refs == 0 {
		p.reclaimLocked()
	}
	p.mu.Unlock()
}

// Refs returns the current reference count.
func (f *Frame) Refs() int {
	p := f.pool
	p.mu.Lock()
	defer p.mu.Unlock()
	return f.refs
}

// Bytes is the frame's backing memory.
func (f *Frame) Bytes() []byte {
	return f.pool.mem[f.offset : f.offset+f.pool.size]
}

// Image wraps the frame memory as a drawable image. It is only
// meaningful for the 32-bit RGB formats.
func (f *Frame) Image() draw.Image {
	info := f.pool.info
	return &ximage.FormatImage{
		Format: ximage.ARGB8888,
		Rect:   image.Rect(0, 0, int(info.Width), int(info.Height)),
		Pix:    f.Bytes(),
	}
}

// SetCrop attaches source-crop metadata to the frame. It takes
// effect when the frame is next presented.
func (f *Frame) SetCrop(r Rect) {
	p := f.pool
	p.mu.Lock()
	f.crop = &r
	p.mu.Unlock()
}

// ClearCrop removes the frame's crop metadata.
func (f *Frame) ClearCrop() {
	p := f.pool
	p.mu.Lock()
	f.crop = nil
	p.mu.Unlock()
}

// Crop returns the frame's crop metadata, if any.
func (f *Frame) Crop() (Rect, bool) {
	p := f.pool
	p.mu.Lock()
	defer p.mu.Unlock()
	if f.crop == nil {
		return Rect{}, false
	}
	return *f.crop, true
}

// buffer returns the frame's presented-buffer wrapper, creating the
// compositor-side wl_buffer on first presentation. The handle is
// cached per slot since it identifies the backing memory.
func (f *Frame) buffer() *Buffer {
	p := f.pool
	p.mu.Lock()
	defer p.mu.Unlock()

	if f.wrapper == nil {
		info := p.info
		f.wlbuf = p.wlpool.CreateBuffer(f.offset, info.Width, info.Height, info.Stride(), info.Format)
		f.wrapper = newBuffer(p.display, f, f.wlbuf)
	}
	return f.wrapper
}

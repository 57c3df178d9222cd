package wl

import (
	"os"

	"deedles.dev/wlsink/wire"
)

const (
	ShmInterface = "wl_shm"
	shmVersion   = 1

	ShmPoolInterface = "wl_shm_pool"
)

// ShmFormat identifies a pixel format in wl_shm terms: 0 and 1 for
// the two mandatory formats, the DRM fourcc code for all others.
type ShmFormat uint32

const (
	ShmFormatArgb8888 ShmFormat = 0
	ShmFormatXrgb8888 ShmFormat = 1
	ShmFormatXbgr8888 ShmFormat = 0x34324258 // XB24
	ShmFormatRgbx8888 ShmFormat = 0x34325852 // RX24
	ShmFormatBgrx8888 ShmFormat = 0x34325842 // BX24
	ShmFormatAbgr8888 ShmFormat = 0x34324241 // AB24
	ShmFormatRgba8888 ShmFormat = 0x34324152 // RA24
	ShmFormatBgra8888 ShmFormat = 0x34324142 // BA24
	ShmFormatRgb888   ShmFormat = 0x34324752 // RG24
	ShmFormatBgr888   ShmFormat = 0x34324742 // BG24
	ShmFormatRgb565   ShmFormat = 0x36314752 // RG16
	ShmFormatBgr565   ShmFormat = 0x36314742 // BG16
	ShmFormatYuyv     ShmFormat = 0x56595559 // YUYV
	ShmFormatYvyu     ShmFormat = 0x55595659 // YVYU
	ShmFormatUyvy     ShmFormat = 0x59565955 // UYVY
	ShmFormatAyuv     ShmFormat = 0x56555941 // AYUV
	ShmFormatNv12     ShmFormat = 0x3231564e // NV12
	ShmFormatNv21     ShmFormat = 0x3132564e // NV21
	ShmFormatNv16     ShmFormat = 0x3631564e // NV16
	ShmFormatYuv420   ShmFormat = 0x32315559 // YU12
	ShmFormatYvu420   ShmFormat = 0x32315659 // YV12
)

func (f ShmFormat) String() string {
	switch f {
	case ShmFormatArgb8888:
		return "ARGB8888"
	case ShmFormatXrgb8888:
		return "XRGB8888"
	}
	// Everything else is a printable fourcc.
	return string([]byte{byte(f), byte(f >> 8), byte(f >> 16), byte(f >> 24)})
}

type ShmListener interface {
	// Format advertises one pixel format the compositor accepts for
	// shm buffers.
	Format(format ShmFormat)
}

// Shm is the wl_shm global, the factory for shared-memory pools.
type Shm struct {
	object
	Listener ShmListener
}

func BindShm(c *Client, r *Registry, name, version uint32) *Shm {
	s := &Shm{}
	s.setup(c, min(version, shmVersion), s)
	r.Bind(name, ShmInterface, s.version, s)
	return s
}

func (s *Shm) Interface() string { return ShmInterface }

// CreatePool shares size bytes of file with the compositor. The file
// may be closed once the request is flushed; the descriptor is
// duplicated immediately.
func (s *Shm) CreatePool(file *os.File, size int32) *ShmPool {
	pool := &ShmPool{}
	pool.setup(s.client, s.version, pool)

	msg := wire.NewMessage(s, 0)
	msg.Method = "create_pool"
	msg.Args = []any{pool.id, file, size}
	msg.WriteUint(pool.id)
	msg.WriteFile(file)
	msg.WriteInt(size)
	s.client.Enqueue(msg)

	return pool
}

func (s *Shm) Dispatch(msg *wire.MessageBuffer) error {
	switch msg.Op() {
	case 0: // format
		format := msg.ReadUint()
		if err := msg.Err(); err != nil {
			return err
		}
		if s.Listener != nil {
			s.Listener.Format(ShmFormat(format))
		}
		return nil
	}

	return wire.UnknownOpError{Interface: ShmInterface, Op: msg.Op()}
}

func (s *Shm) EventName(op uint16) string {
	if op == 0 {
		return "format"
	}
	return "unknown"
}

// ShmPool is a wl_shm_pool: a shared-memory area buffers are carved
// out of.
type ShmPool struct {
	object
}

func (p *ShmPool) Interface() string { return ShmPoolInterface }

// CreateBuffer creates a buffer of the given geometry at offset
// bytes into the pool.
func (p *ShmPool) CreateBuffer(offset, width, height, stride int32, format ShmFormat) *Buffer {
	buf := &Buffer{}
	buf.setup(p.client, 1, buf)

	msg := wire.NewMessage(p, 0)
	msg.Method = "create_buffer"
	msg.Args = []any{buf.id, offset, width, height, stride, format}
	msg.WriteUint(buf.id)
	msg.WriteInt(offset)
	msg.WriteInt(width)
	msg.WriteInt(height)
	msg.WriteInt(stride)
	msg.WriteUint(uint32(format))
	p.client.Enqueue(msg)

	return buf
}

func (p *ShmPool) Destroy() {
	msg := wire.NewMessage(p, 1)
	msg.Method = "destroy"
	p.client.Enqueue(msg)
}

// Resize grows the pool. Shrinking is a protocol violation.
func (p *ShmPool) Resize(size int32) {
	msg := wire.NewMessage(p, 2)
	msg.Method = "resize"
	msg.Args = []any{size}
	msg.WriteInt(size)
	p.client.Enqueue(msg)
}

func (p *ShmPool) Dispatch(msg *wire.MessageBuffer) error {
	return wire.UnknownOpError{Interface: ShmPoolInterface, Op: msg.Op()}
}

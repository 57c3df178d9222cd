// Package wltest runs a scripted compositor on an in-process socket
// pair, so the client side of the module can be exercised without a
// Wayland session. The compositor understands just enough of the
// protocol to keep a client going: it advertises a configurable set
// of globals, answers every wl_display.sync immediately, and tracks
// the objects, surfaces and buffers the client creates. Frame
// completion, buffer release and window configuration stay under the
// test's explicit control.
package wltest

import (
	"errors"
	"io"
	"net"
	"sync"
	"testing"

	wl "deedles.dev/wlsink/client"
	"deedles.dev/wlsink/wire"
	"golang.org/x/sys/unix"
)

// Global is one registry entry the compositor advertises.
type Global struct {
	Name      uint32
	Interface string
	Version   uint32
}

// Compositor is the scripted compositor side of the pair. All of its
// methods are safe to call from the test goroutine while the client
// runs.
type Compositor struct {
	conn  *wire.Conn
	done  chan struct{}
	close sync.Once

	globals  []Global
	formats  []wl.ShmFormat
	outputW  int32
	outputH  int32
	seatCaps wl.SeatCapability
	autoCfg  bool

	// sendMu serializes event writes from the read loop and the test
	// goroutine. serial is the shared event serial counter.
	sendMu sync.Mutex
	serial uint32

	mu        sync.Mutex
	err       error
	iface     map[uint32]string
	registry  uint32
	pointer   uint32
	touch     uint32
	surfaces  map[uint32]*surfaceState
	buffers   map[uint32]bool
	frames    []frameRequest
	toplevel  uint32
	xdgOwner  map[uint32]uint32 // xdg_surface -> wl_surface
	roleOwner map[uint32]uint32 // xdg_toplevel -> xdg_surface
	syncOwner map[uint32]uint32 // surface sync -> wl_surface
	releases  []uint32          // buffer-release objects, oldest first
	appID     string
	acks      []uint32
	pongs     []uint32
	moves     int
	resizes   int
	fulls     int
	unfulls   int
	cursor    uint32
	cursors   int
	presented bool
	alpha     wire.Fixed
	dests     map[uint32][2]int32      // viewport -> set_destination size
	srcs      map[uint32][4]wire.Fixed // viewport -> set_source rect
	viewOwner map[uint32]uint32        // viewport -> wl_surface
}

type surfaceState struct {
	commits    int
	attached   uint32
	scale      int32
	toplevel   bool
	configured bool
	xdgSurface uint32
	pendingRel uint32
}

type frameRequest struct {
	callback uint32
	surface  uint32
}

// An Option adjusts the compositor before it starts serving.
type Option func(*Compositor)

// WithGlobal adds a global to the advertised set.
func WithGlobal(iface string, version uint32) Option {
	return func(c *Compositor) {
		c.globals = append(c.globals, Global{
			Name:      uint32(len(c.globals) + 1),
			Interface: iface,
			Version:   version,
		})
	}
}

// WithoutGlobal removes a global from the default set.
func WithoutGlobal(iface string) Option {
	return func(c *Compositor) {
		kept := c.globals[:0]
		for _, g := range c.globals {
			if g.Interface != iface {
				kept = append(kept, g)
			}
		}
		c.globals = kept
	}
}

// WithShmFormats replaces the advertised pixel formats.
func WithShmFormats(formats ...wl.ShmFormat) Option {
	return func(c *Compositor) { c.formats = formats }
}

// WithOutputSize sets the mode the advertised output reports.
func WithOutputSize(width, height int32) Option {
	return func(c *Compositor) {
		c.outputW = width
		c.outputH = height
	}
}

// WithoutAutoConfigure stops the compositor from configuring xdg
// surfaces on their first commit, leaving the client waiting.
func WithoutAutoConfigure() Option {
	return func(c *Compositor) { c.autoCfg = false }
}

// New starts a compositor and returns it along with a connected
// client. Both ends shut down with the test.
func New(tb testing.TB, opts ...Option) (*Compositor, *wl.Client) {
	server, client, err := wire.Pair()
	if err != nil {
		tb.Fatalf("socket pair: %v", err)
	}

	c := Compositor{
		conn:    server,
		done:    make(chan struct{}),
		formats: []wl.ShmFormat{wl.ShmFormatArgb8888, wl.ShmFormatXrgb8888},
		outputW: 1920,
		outputH: 1080,
		seatCaps: wl.SeatCapabilityPointer |
			wl.SeatCapabilityTouch,
		autoCfg:   true,
		iface:     map[uint32]string{1: wl.DisplayInterface},
		surfaces:  make(map[uint32]*surfaceState),
		buffers:   make(map[uint32]bool),
		xdgOwner:  make(map[uint32]uint32),
		roleOwner: make(map[uint32]uint32),
		syncOwner: make(map[uint32]uint32),
		dests:     make(map[uint32][2]int32),
		srcs:      make(map[uint32][4]wire.Fixed),
		viewOwner: make(map[uint32]uint32),
	}
	for _, g := range []Global{
		{Interface: "wl_compositor", Version: 4},
		{Interface: "wl_subcompositor", Version: 1},
		{Interface: "wl_shm", Version: 1},
		{Interface: "wp_viewporter", Version: 1},
		{Interface: "xdg_wm_base", Version: 2},
		{Interface: "wl_seat", Version: 5},
		{Interface: "wl_output", Version: 2},
	} {
		g.Name = uint32(len(c.globals) + 1)
		c.globals = append(c.globals, g)
	}
	for _, opt := range opts {
		opt(&c)
	}

	go c.serve()
	tb.Cleanup(c.Close)

	wlc := wl.NewClient(client)
	tb.Cleanup(func() { wlc.Close() })

	return &c, wlc
}

// Close shuts the compositor's end of the connection down.
func (c *Compositor) Close() {
	c.close.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// Err returns the first protocol-level problem the compositor ran
// into, if any.
func (c *Compositor) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Compositor) fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err == nil {
		c.err = err
	}
}

func (c *Compositor) serve() {
	for {
		msg, err := wire.ReadMessage(c.conn)
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				select {
				case <-c.done:
				default:
					c.fail(err)
				}
			}
			return
		}
		c.handle(msg)
	}
}

func (c *Compositor) interfaceOf(id uint32) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.iface[id]
}

func (c *Compositor) register(id uint32, iface string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.iface[id] = iface
}

func (c *Compositor) handle(msg *wire.MessageBuffer) {
	switch c.interfaceOf(msg.Sender()) {
	case wl.DisplayInterface:
		c.handleDisplay(msg)
	case wl.RegistryInterface:
		c.handleRegistry(msg)
	case wl.CompositorInterface:
		c.handleCompositor(msg)
	case wl.SurfaceInterface:
		c.handleSurface(msg)
	case wl.ShmInterface:
		c.handleShm(msg)
	case wl.ShmPoolInterface:
		c.handleShmPool(msg)
	case wl.BufferInterface:
		c.handleBuffer(msg)
	case wl.SubcompositorInterface:
		c.handleSubcompositor(msg)
	case "wp_viewporter":
		c.handleViewporter(msg)
	case "wp_viewport":
		c.handleViewport(msg)
	case "xdg_wm_base":
		c.handleWmBase(msg)
	case "xdg_surface":
		c.handleXdgSurface(msg)
	case "xdg_toplevel":
		c.handleToplevel(msg)
	case wl.SeatInterface:
		c.handleSeat(msg)
	case wl.PointerInterface:
		c.handlePointer(msg)
	case wl.ShellInterface:
		c.handleShell(msg)
	case wl.ShellSurfaceInterface:
		c.handleShellSurface(msg)
	case "zwp_fullscreen_shell_v1":
		c.handleFullscreenShell(msg)
	case "zwp_linux_explicit_synchronization_v1":
		c.handleExplicitSync(msg)
	case "zwp_linux_surface_synchronization_v1":
		c.handleSurfaceSync(msg)
	case "zwp_alpha_compositing_v1":
		c.handleAlpha(msg)
	case "zwp_blending_v1":
		c.handleBlending(msg)
	}
}

func (c *Compositor) handleDisplay(msg *wire.MessageBuffer) {
	switch msg.Op() {
	case 0: // sync
		cb := msg.ReadUint()
		if msg.Err() != nil {
			return
		}
		c.register(cb, wl.CallbackInterface)
		c.sendMu.Lock()
		c.serial++
		c.send(cb, wl.CallbackInterface, 0, func(mb *wire.MessageBuilder) {
			mb.WriteUint(c.serial)
		})
		c.send(1, wl.DisplayInterface, 1, func(mb *wire.MessageBuilder) {
			mb.WriteUint(cb)
		})
		c.sendMu.Unlock()

	case 1: // get_registry
		id := msg.ReadUint()
		if msg.Err() != nil {
			return
		}
		c.register(id, wl.RegistryInterface)
		c.mu.Lock()
		c.registry = id
		globals := c.globals
		c.mu.Unlock()

		c.sendMu.Lock()
		for _, g := range globals {
			c.send(id, wl.RegistryInterface, 0, func(mb *wire.MessageBuilder) {
				mb.WriteUint(g.Name)
				mb.WriteString(g.Interface)
				mb.WriteUint(g.Version)
			})
		}
		c.sendMu.Unlock()
	}
}

func (c *Compositor) handleRegistry(msg *wire.MessageBuffer) {
	if msg.Op() != 0 { // bind
		return
	}
	msg.ReadUint() // global name
	id := msg.ReadNewID()
	if msg.Err() != nil {
		return
	}
	c.register(id.ID, id.Interface)

	switch id.Interface {
	case wl.ShmInterface:
		c.sendMu.Lock()
		for _, f := range c.formats {
			c.send(id.ID, wl.ShmInterface, 0, func(mb *wire.MessageBuilder) {
				mb.WriteUint(uint32(f))
			})
		}
		c.sendMu.Unlock()

	case wl.SeatInterface:
		c.sendMu.Lock()
		c.send(id.ID, wl.SeatInterface, 0, func(mb *wire.MessageBuilder) {
			mb.WriteUint(uint32(c.seatCaps))
		})
		c.sendMu.Unlock()

	case wl.OutputInterface:
		c.sendMu.Lock()
		c.send(id.ID, wl.OutputInterface, 1, func(mb *wire.MessageBuilder) {
			mb.WriteUint(uint32(wl.OutputModeCurrent))
			mb.WriteInt(c.outputW)
			mb.WriteInt(c.outputH)
			mb.WriteInt(60000)
		})
		c.send(id.ID, wl.OutputInterface, 2, nil) // done
		c.sendMu.Unlock()
	}
}

func (c *Compositor) handleCompositor(msg *wire.MessageBuffer) {
	id := msg.ReadUint()
	if msg.Err() != nil {
		return
	}

	switch msg.Op() {
	case 0: // create_surface
		c.mu.Lock()
		c.iface[id] = wl.SurfaceInterface
		c.surfaces[id] = &surfaceState{}
		c.mu.Unlock()
	case 1: // create_region
		c.register(id, wl.RegionInterface)
	}
}

func (c *Compositor) handleSurface(msg *wire.MessageBuffer) {
	surface := msg.Sender()

	switch msg.Op() {
	case 0: // destroy
		c.mu.Lock()
		delete(c.surfaces, surface)
		delete(c.iface, surface)
		c.mu.Unlock()

	case 1: // attach
		buffer := msg.ReadUint()
		if msg.Err() != nil {
			return
		}
		c.mu.Lock()
		if s := c.surfaces[surface]; s != nil {
			s.attached = buffer
		}
		c.mu.Unlock()

	case 3: // frame
		cb := msg.ReadUint()
		if msg.Err() != nil {
			return
		}
		c.mu.Lock()
		c.iface[cb] = wl.CallbackInterface
		c.frames = append(c.frames, frameRequest{callback: cb, surface: surface})
		c.mu.Unlock()

	case 6: // commit
		c.commitSurface(surface)

	case 8: // set_buffer_scale
		scale := msg.ReadInt()
		if msg.Err() != nil {
			return
		}
		c.mu.Lock()
		if s := c.surfaces[surface]; s != nil {
			s.scale = scale
		}
		c.mu.Unlock()
	}
}

// commitSurface applies the surface's pending state the way the
// client model expects: the attached buffer becomes current, a
// pending buffer-release object binds to it, and the first commit of
// a toplevel surface triggers the configure handshake.
func (c *Compositor) commitSurface(surface uint32) {
	c.mu.Lock()
	s := c.surfaces[surface]
	if s == nil {
		c.mu.Unlock()
		return
	}
	s.commits++
	if s.pendingRel != 0 {
		c.releases = append(c.releases, s.pendingRel)
		s.pendingRel = 0
	}
	configure := c.autoCfg && s.toplevel && !s.configured
	if configure {
		s.configured = true
	}
	xdgSurface := s.xdgSurface
	var toplevel uint32
	for t, xs := range c.roleOwner {
		if xs == xdgSurface {
			toplevel = t
		}
	}
	c.mu.Unlock()

	if configure {
		c.configure(toplevel, xdgSurface, 0, 0)
	}
}

func (c *Compositor) configure(toplevel, xdgSurface uint32, width, height int32) {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if toplevel != 0 {
		c.send(toplevel, "xdg_toplevel", 0, func(mb *wire.MessageBuilder) {
			mb.WriteInt(width)
			mb.WriteInt(height)
			mb.WriteArray(nil)
		})
	}
	c.serial++
	c.send(xdgSurface, "xdg_surface", 0, func(mb *wire.MessageBuilder) {
		mb.WriteUint(c.serial)
	})
}

func (c *Compositor) handleShm(msg *wire.MessageBuffer) {
	if msg.Op() != 0 { // create_pool
		return
	}
	id := msg.ReadUint()
	fd := msg.ReadFD()
	msg.ReadInt() // size
	if msg.Err() != nil {
		return
	}
	unix.Close(fd)
	c.register(id, wl.ShmPoolInterface)
}

func (c *Compositor) handleShmPool(msg *wire.MessageBuffer) {
	switch msg.Op() {
	case 0: // create_buffer
		id := msg.ReadUint()
		if msg.Err() != nil {
			return
		}
		c.mu.Lock()
		c.iface[id] = wl.BufferInterface
		c.buffers[id] = true
		c.mu.Unlock()
	case 1: // destroy
		c.mu.Lock()
		delete(c.iface, msg.Sender())
		c.mu.Unlock()
	}
}

func (c *Compositor) handleBuffer(msg *wire.MessageBuffer) {
	if msg.Op() != 0 { // destroy
		return
	}
	c.mu.Lock()
	delete(c.buffers, msg.Sender())
	delete(c.iface, msg.Sender())
	c.mu.Unlock()
}

func (c *Compositor) handleSubcompositor(msg *wire.MessageBuffer) {
	if msg.Op() != 1 { // get_subsurface
		return
	}
	id := msg.ReadUint()
	if msg.Err() != nil {
		return
	}
	c.register(id, wl.SubsurfaceInterface)
}

func (c *Compositor) handleViewporter(msg *wire.MessageBuffer) {
	if msg.Op() != 1 { // get_viewport
		return
	}
	id := msg.ReadUint()
	surface := msg.ReadUint()
	if msg.Err() != nil {
		return
	}
	c.mu.Lock()
	c.iface[id] = "wp_viewport"
	c.viewOwner[id] = surface
	c.mu.Unlock()
}

func (c *Compositor) handleViewport(msg *wire.MessageBuffer) {
	switch msg.Op() {
	case 0: // destroy
		c.mu.Lock()
		delete(c.iface, msg.Sender())
		delete(c.viewOwner, msg.Sender())
		c.mu.Unlock()
	case 1: // set_source
		x := msg.ReadFixed()
		y := msg.ReadFixed()
		w := msg.ReadFixed()
		h := msg.ReadFixed()
		if msg.Err() != nil {
			return
		}
		c.mu.Lock()
		c.srcs[msg.Sender()] = [4]wire.Fixed{x, y, w, h}
		c.mu.Unlock()
	case 2: // set_destination
		w := msg.ReadInt()
		h := msg.ReadInt()
		if msg.Err() != nil {
			return
		}
		c.mu.Lock()
		c.dests[msg.Sender()] = [2]int32{w, h}
		c.mu.Unlock()
	}
}

func (c *Compositor) handleWmBase(msg *wire.MessageBuffer) {
	switch msg.Op() {
	case 2: // get_xdg_surface
		id := msg.ReadUint()
		surface := msg.ReadUint()
		if msg.Err() != nil {
			return
		}
		c.mu.Lock()
		c.iface[id] = "xdg_surface"
		c.xdgOwner[id] = surface
		if s := c.surfaces[surface]; s != nil {
			s.xdgSurface = id
		}
		c.mu.Unlock()

	case 3: // pong
		serial := msg.ReadUint()
		if msg.Err() != nil {
			return
		}
		c.mu.Lock()
		c.pongs = append(c.pongs, serial)
		c.mu.Unlock()
	}
}

func (c *Compositor) handleXdgSurface(msg *wire.MessageBuffer) {
	switch msg.Op() {
	case 0: // destroy
		c.mu.Lock()
		delete(c.iface, msg.Sender())
		c.mu.Unlock()

	case 1: // get_toplevel
		id := msg.ReadUint()
		if msg.Err() != nil {
			return
		}
		c.mu.Lock()
		c.iface[id] = "xdg_toplevel"
		c.roleOwner[id] = msg.Sender()
		c.toplevel = id
		if s := c.surfaces[c.xdgOwner[msg.Sender()]]; s != nil {
			s.toplevel = true
		}
		c.mu.Unlock()

	case 4: // ack_configure
		serial := msg.ReadUint()
		if msg.Err() != nil {
			return
		}
		c.mu.Lock()
		c.acks = append(c.acks, serial)
		c.mu.Unlock()
	}
}

func (c *Compositor) handleToplevel(msg *wire.MessageBuffer) {
	switch msg.Op() {
	case 0: // destroy
		c.mu.Lock()
		delete(c.iface, msg.Sender())
		delete(c.roleOwner, msg.Sender())
		c.mu.Unlock()
	case 3: // set_app_id
		id := msg.ReadString()
		if msg.Err() != nil {
			return
		}
		c.mu.Lock()
		c.appID = id
		c.mu.Unlock()
	case 5: // move
		c.mu.Lock()
		c.moves++
		c.mu.Unlock()
	case 6: // resize
		c.mu.Lock()
		c.resizes++
		c.mu.Unlock()
	case 11: // set_fullscreen
		c.mu.Lock()
		c.fulls++
		c.mu.Unlock()
	case 12: // unset_fullscreen
		c.mu.Lock()
		c.unfulls++
		c.mu.Unlock()
	}
}

func (c *Compositor) handleSeat(msg *wire.MessageBuffer) {
	id := msg.ReadUint()
	if msg.Err() != nil {
		return
	}

	switch msg.Op() {
	case 0: // get_pointer
		c.mu.Lock()
		c.iface[id] = wl.PointerInterface
		c.pointer = id
		c.mu.Unlock()
	case 2: // get_touch
		c.mu.Lock()
		c.iface[id] = wl.TouchInterface
		c.touch = id
		c.mu.Unlock()
	}
}

func (c *Compositor) handlePointer(msg *wire.MessageBuffer) {
	if msg.Op() != 0 { // set_cursor
		return
	}
	msg.ReadUint() // serial
	surface := msg.ReadUint()
	if msg.Err() != nil {
		return
	}
	c.mu.Lock()
	c.cursor = surface
	c.cursors++
	c.mu.Unlock()
}

func (c *Compositor) handleShell(msg *wire.MessageBuffer) {
	if msg.Op() != 0 { // get_shell_surface
		return
	}
	id := msg.ReadUint()
	if msg.Err() != nil {
		return
	}
	c.register(id, wl.ShellSurfaceInterface)
}

func (c *Compositor) handleShellSurface(msg *wire.MessageBuffer) {
	switch msg.Op() {
	case 0: // pong
		serial := msg.ReadUint()
		if msg.Err() != nil {
			return
		}
		c.mu.Lock()
		c.pongs = append(c.pongs, serial)
		c.mu.Unlock()
	case 1: // move
		c.mu.Lock()
		c.moves++
		c.mu.Unlock()
	case 2: // resize
		c.mu.Lock()
		c.resizes++
		c.mu.Unlock()
	}
}

func (c *Compositor) handleFullscreenShell(msg *wire.MessageBuffer) {
	if msg.Op() != 1 { // present_surface
		return
	}
	c.mu.Lock()
	c.presented = true
	c.mu.Unlock()
}

func (c *Compositor) handleExplicitSync(msg *wire.MessageBuffer) {
	if msg.Op() != 1 { // get_synchronization
		return
	}
	id := msg.ReadUint()
	surface := msg.ReadUint()
	if msg.Err() != nil {
		return
	}
	c.mu.Lock()
	c.iface[id] = "zwp_linux_surface_synchronization_v1"
	c.syncOwner[id] = surface
	c.mu.Unlock()
}

func (c *Compositor) handleSurfaceSync(msg *wire.MessageBuffer) {
	if msg.Op() != 2 { // get_release
		return
	}
	id := msg.ReadUint()
	if msg.Err() != nil {
		return
	}
	c.mu.Lock()
	c.iface[id] = "zwp_linux_buffer_release_v1"
	if s := c.surfaces[c.syncOwner[msg.Sender()]]; s != nil {
		s.pendingRel = id
	}
	c.mu.Unlock()
}

func (c *Compositor) handleAlpha(msg *wire.MessageBuffer) {
	if msg.Op() != 1 { // get_blending
		return
	}
	id := msg.ReadUint()
	if msg.Err() != nil {
		return
	}
	c.register(id, "zwp_blending_v1")
}

func (c *Compositor) handleBlending(msg *wire.MessageBuffer) {
	if msg.Op() != 2 { // set_alpha
		return
	}
	alpha := msg.ReadFixed()
	if msg.Err() != nil {
		return
	}
	c.mu.Lock()
	c.alpha = alpha
	c.mu.Unlock()
}

// send writes one event. Callers hold sendMu.
func (c *Compositor) send(id uint32, iface string, op uint16, args func(*wire.MessageBuilder)) {
	mb := wire.NewMessage(eventSender{id: id, iface: iface}, op)
	if args != nil {
		args(mb)
	}
	if err := mb.Build(c.conn); err != nil && !errors.Is(err, net.ErrClosed) {
		select {
		case <-c.done:
		default:
			c.fail(err)
		}
	}
}

// eventSender satisfies just enough of wire.Object to address an
// outgoing event.
type eventSender struct {
	id    uint32
	iface string
}

func (s eventSender) ID() uint32                         { return s.id }
func (s eventSender) SetID(uint32)                       {}
func (s eventSender) Interface() string                  { return s.iface }
func (s eventSender) Dispatch(*wire.MessageBuffer) error { return nil }
func (s eventSender) Delete()                            {}

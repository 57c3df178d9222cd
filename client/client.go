// Package wl implements the client side of the core Wayland
// protocol. Proxies for protocol objects send requests through a
// Client and deliver events to per-object Listener interfaces.
//
// All protocol work, for both directions, funnels through the
// Client's internal queue: outgoing requests and decoded incoming
// events are queued as closures, and whichever goroutine drains the
// queue (via Flush, RoundTrip, or a loop over Events) is the single
// place where protocol activity happens. Listeners are therefore
// always invoked serially.
package wl

import (
	"errors"
	"net"
	"sync"

	"deedles.dev/wlsink/internal/debug"
	"deedles.dev/wlsink/internal/ev"
	"deedles.dev/wlsink/internal/objstore"
	"deedles.dev/wlsink/wire"
)

// ErrClosed is returned by operations that cannot complete because
// the connection has shut down, whether by Close or a socket error.
var ErrClosed = errors.New("client connection closed")

// Client is a connection to a Wayland compositor together with the
// set of live protocol objects.
type Client struct {
	done     chan struct{}
	readDone chan struct{}
	close    sync.Once
	conn     *wire.Conn
	queue    *ev.Queue
	display  *Display

	mu    sync.Mutex
	store *objstore.Store
}

// Dial connects to the compositor indicated by the environment.
func Dial() (*Client, error) {
	c, err := wire.Dial()
	if err != nil {
		return nil, err
	}
	return NewClient(c), nil
}

// NewClient wraps an established connection. The wl_display object
// exists implicitly with ID 1.
func NewClient(conn *wire.Conn) *Client {
	c := Client{
		done:     make(chan struct{}),
		readDone: make(chan struct{}),
		conn:     conn,
		store:    objstore.New(1),
		queue:    ev.NewQueue(),
	}

	c.display = &Display{}
	c.display.client = &c
	c.Add(c.display)

	go c.listen()

	return &c
}

func (c *Client) listen() {
	defer close(c.readDone)

	for {
		msg, err := wire.ReadMessage(c.conn)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}

			// A read error on a stream socket is terminal; deliver it
			// and stop reading.
			select {
			case <-c.done:
			case c.queue.Add() <- func() error { return err }:
			}
			return
		}

		select {
		case <-c.done:
			return
		case c.queue.Add() <- func() error { return c.dispatch(msg) }:
		}
	}
}

func (c *Client) dispatch(msg *wire.MessageBuffer) error {
	obj := c.Get(msg.Sender())
	if obj == nil {
		return wire.UnknownSenderIDError{Msg: msg}
	}

	err := obj.Dispatch(msg)
	debug.Printf("%v", msg.Debug(obj))
	return err
}

// Display returns the wl_display singleton.
func (c *Client) Display() *Display {
	return c.display
}

// Close shuts the connection down. Queued work is abandoned.
func (c *Client) Close() error {
	c.close.Do(func() { close(c.done) })
	c.queue.Stop()
	return c.conn.Close()
}

// Add registers obj with the client, assigning it an ID if it does
// not have one. It is exported for the protocol extension packages;
// applications do not normally call it.
func (c *Client) Add(obj wire.Object) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store.Add(obj)
}

// Get returns the registered object with the given ID, or nil.
func (c *Client) Get(id uint32) wire.Object {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Get(id)
}

// Delete drops the object with the given ID. It is normally driven
// by wl_display.delete_id, not called directly.
func (c *Client) Delete(id uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store.Delete(id)
}

// Enqueue schedules msg to be sent on the next queue drain.
func (c *Client) Enqueue(msg *wire.MessageBuilder) {
	select {
	case <-c.done:
	case c.queue.Add() <- func() error {
		debug.Printf(" -> %v", msg)
		return msg.Build(c.conn)
	}:
	}
}

// Post schedules f on the queue, ordered with requests and events,
// so that it runs on the queue-draining goroutine. If the client is
// closed, before or after the call, f may never run.
func (c *Client) Post(f func()) {
	select {
	case <-c.done:
	case c.queue.Add() <- func() error {
		f()
		return nil
	}:
	}
}

// Events exposes the queue for callers that drain it in a loop of
// their own. Each received batch must be flushed.
func (c *Client) Events() <-chan *ev.Events {
	return c.queue.Get()
}

// Closed returns a channel that is closed once the read side of the
// connection has shut down, whether from Close or a socket error. No
// events arrive after it closes, though some may still be queued.
func (c *Client) Closed() <-chan struct{} {
	return c.readDone
}

// Flush drains the queue once without blocking.
func (c *Client) Flush() error {
	select {
	case queue := <-c.queue.Get():
		return queue.Flush()
	default:
		return nil
	}
}

// RoundTrip sends a wl_display.sync and drains the queue until the
// compositor answers it, guaranteeing that every event caused by
// earlier requests has been delivered. It must not be mixed with a
// concurrent Events loop; one goroutine owns the queue.
func (c *Client) RoundTrip() error {
	get := c.queue.Get()
	done := make(chan struct{})
	c.display.Sync().Then(func(uint32) {
		close(done)
		get = nil
	})

	var errs []error

	for {
		select {
		case <-done:
			return errors.Join(errs...)

		case <-c.readDone:
			// No more events are coming. Drain whatever made it into
			// the queue before the read loop died; that final batch
			// may still contain the sync's done.
			if err := c.Flush(); err != nil {
				errs = append(errs, err)
			}
			select {
			case <-done:
				return errors.Join(errs...)
			default:
				return errors.Join(append(errs, ErrClosed)...)
			}

		case queue := <-get:
			if err := queue.Flush(); err != nil {
				errs = append(errs, err)
			}
		}
	}
}

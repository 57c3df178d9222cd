package wl

import "deedles.dev/wlsink/wire"

const DisplayInterface = "wl_display"

// DisplayListener receives wl_display events. Deletion bookkeeping
// for wl_display.delete_id is handled by the Client itself; the
// listener only sees fatal protocol errors.
type DisplayListener interface {
	Error(objectID, code uint32, message string)
}

// Display is the wl_display singleton, ID 1 on every connection.
type Display struct {
	object
	Listener DisplayListener
}

func (d *Display) Interface() string { return DisplayInterface }

// Sync asks the compositor to answer with a wl_callback.done once
// all prior requests have been processed.
func (d *Display) Sync() *Callback {
	return d.SyncFunc(nil)
}

// SyncFunc is Sync with f already attached as the listener when the
// request is issued. Callers running outside the queue-draining
// goroutine must use it; setting a listener via Then after Sync
// returns can lose the done event to a faster dispatch.
func (d *Display) SyncFunc(f func(uint32)) *Callback {
	cb := &Callback{}
	if f != nil {
		cb.Listener = callbackFunc(f)
	}
	cb.setup(d.client, 1, cb)

	msg := wire.NewMessage(d, 0)
	msg.Method = "sync"
	msg.Args = []any{cb.id}
	msg.WriteUint(cb.id)
	d.client.Enqueue(msg)

	return cb
}

// GetRegistry creates the global registry object. The compositor
// responds with a wl_registry.global event per advertised global.
func (d *Display) GetRegistry() *Registry {
	r := &Registry{globals: make(map[uint32]Global)}
	r.setup(d.client, 1, r)

	msg := wire.NewMessage(d, 1)
	msg.Method = "get_registry"
	msg.Args = []any{r.id}
	msg.WriteUint(r.id)
	d.client.Enqueue(msg)

	return r
}

func (d *Display) Dispatch(msg *wire.MessageBuffer) error {
	switch msg.Op() {
	case 0: // error
		objectID := msg.ReadUint()
		code := msg.ReadUint()
		message := msg.ReadString()
		if err := msg.Err(); err != nil {
			return err
		}
		if d.Listener != nil {
			d.Listener.Error(objectID, code, message)
		}
		return nil

	case 1: // delete_id
		id := msg.ReadUint()
		if err := msg.Err(); err != nil {
			return err
		}
		d.client.Delete(id)
		return nil
	}

	return wire.UnknownOpError{Interface: DisplayInterface, Op: msg.Op()}
}

func (d *Display) EventName(op uint16) string {
	switch op {
	case 0:
		return "error"
	case 1:
		return "delete_id"
	}
	return "unknown"
}

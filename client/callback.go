package wl

import "deedles.dev/wlsink/wire"

const CallbackInterface = "wl_callback"

// Callback is a wl_callback: a one-shot done notification carrying
// an event-specific datum, such as a timestamp for frame callbacks.
type Callback struct {
	object
	Listener CallbackListener
}

type CallbackListener interface {
	Done(data uint32)
}

// Then sets a plain function as the callback's listener.
func (cb *Callback) Then(f func(uint32)) {
	cb.Listener = callbackFunc(f)
}

type callbackFunc func(uint32)

func (f callbackFunc) Done(data uint32) { f(data) }

func (cb *Callback) Interface() string { return CallbackInterface }

func (cb *Callback) Dispatch(msg *wire.MessageBuffer) error {
	switch msg.Op() {
	case 0: // done
		data := msg.ReadUint()
		if err := msg.Err(); err != nil {
			return err
		}
		if cb.Listener != nil {
			cb.Listener.Done(data)
		}
		return nil
	}

	return wire.UnknownOpError{Interface: CallbackInterface, Op: msg.Op()}
}

func (cb *Callback) EventName(op uint16) string {
	if op == 0 {
		return "done"
	}
	return "unknown"
}

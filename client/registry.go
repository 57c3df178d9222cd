package wl

import (
	"deedles.dev/wlsink/wire"
	"golang.org/x/exp/maps"
)

const RegistryInterface = "wl_registry"

// Global describes one entry advertised by the registry.
type Global struct {
	Interface string
	Version   uint32
}

type RegistryListener interface {
	Global(name uint32, iface string, version uint32)
	GlobalRemove(name uint32)
}

// Registry is the wl_registry global listing. It records the
// advertised globals itself in addition to forwarding them to the
// Listener, so late readers can snapshot them via Globals.
type Registry struct {
	object
	Listener RegistryListener

	globals map[uint32]Global
}

func (r *Registry) Interface() string { return RegistryInterface }

// Globals returns a snapshot of the currently advertised globals,
// keyed by registry name.
func (r *Registry) Globals() map[uint32]Global {
	return maps.Clone(r.globals)
}

// Bind binds the global with the given registry name to obj,
// registering obj with the client. Use the typed BindX helpers
// instead where one exists.
func (r *Registry) Bind(name uint32, iface string, version uint32, obj wire.Object) {
	msg := wire.NewMessage(r, 0)
	msg.Method = "bind"
	msg.Args = []any{name, iface, version, obj.ID()}
	msg.WriteUint(name)
	msg.WriteNewID(wire.NewID{Interface: iface, Version: version, ID: obj.ID()})
	r.client.Enqueue(msg)
}

func (r *Registry) Dispatch(msg *wire.MessageBuffer) error {
	switch msg.Op() {
	case 0: // global
		name := msg.ReadUint()
		iface := msg.ReadString()
		version := msg.ReadUint()
		if err := msg.Err(); err != nil {
			return err
		}
		r.globals[name] = Global{Interface: iface, Version: version}
		if r.Listener != nil {
			r.Listener.Global(name, iface, version)
		}
		return nil

	case 1: // global_remove
		name := msg.ReadUint()
		if err := msg.Err(); err != nil {
			return err
		}
		delete(r.globals, name)
		if r.Listener != nil {
			r.Listener.GlobalRemove(name)
		}
		return nil
	}

	return wire.UnknownOpError{Interface: RegistryInterface, Op: msg.Op()}
}

func (r *Registry) EventName(op uint16) string {
	switch op {
	case 0:
		return "global"
	case 1:
		return "global_remove"
	}
	return "unknown"
}

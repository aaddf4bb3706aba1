// Package registry maintains the bijection between the daemon's volatile
// object paths and the stable identifiers handed out to callers. Once a
// path is unregistered its identifier is dead for the rest of the session;
// re-registering the same path mints a fresh identifier.
package registry

import (
	"fmt"

	"github.com/cornelk/hashmap"
	"github.com/godbus/dbus/v5"
	"go.uber.org/atomic"
)

// Kind classifies what a registered path points at.
type Kind uint8

const (
	KindAdapter Kind = iota + 1
	KindDevice
	KindService
	KindCharacteristic
	KindDescriptor
)

func (k Kind) String() string {
	switch k {
	case KindAdapter:
		return "adapter"
	case KindDevice:
		return "device"
	case KindService:
		return "service"
	case KindCharacteristic:
		return "characteristic"
	case KindDescriptor:
		return "descriptor"
	default:
		return "unknown"
	}
}

// ID is an opaque stable identifier, e.g. "device-12". The embedded
// sequence number is globally monotonic, so identifiers are never reused
// even when the daemon reuses a path.
type ID string

// Registry is safe for concurrent resolves from many goroutines while a
// single topology-update goroutine registers and unregisters paths.
type Registry struct {
	byPath *hashmap.Map[string, ID]
	byID   *hashmap.Map[ID, entry]
	seq    atomic.Uint64
}

type entry struct {
	path dbus.ObjectPath
	kind Kind
}

func New() *Registry {
	return &Registry{
		byPath: hashmap.New[string, ID](),
		byID:   hashmap.New[ID, entry](),
	}
}

// Register returns the identifier for path, minting one on first sight.
// Re-registering a currently known path returns the same identifier.
func (r *Registry) Register(path dbus.ObjectPath, kind Kind) ID {
	if id, ok := r.byPath.Get(string(path)); ok {
		return id
	}
	id := ID(fmt.Sprintf("%s-%d", kind, r.seq.Inc()))
	r.byID.Set(id, entry{path: path, kind: kind})
	r.byPath.Set(string(path), id)
	return id
}

// Resolve maps an identifier back to its path. It fails for identifiers
// that were never issued or whose path has since been unregistered.
func (r *Registry) Resolve(id ID) (dbus.ObjectPath, bool) {
	e, ok := r.byID.Get(id)
	if !ok {
		return "", false
	}
	return e.path, true
}

// KindOf reports the kind an identifier was registered with.
func (r *Registry) KindOf(id ID) (Kind, bool) {
	e, ok := r.byID.Get(id)
	if !ok {
		return 0, false
	}
	return e.kind, true
}

// Lookup returns the identifier currently bound to path, if any.
func (r *Registry) Lookup(path dbus.ObjectPath) (ID, bool) {
	return r.byPath.Get(string(path))
}

// Unregister permanently invalidates the identifier bound to path.
func (r *Registry) Unregister(path dbus.ObjectPath) {
	if id, ok := r.byPath.Get(string(path)); ok {
		r.byID.Del(id)
		r.byPath.Del(string(path))
	}
}

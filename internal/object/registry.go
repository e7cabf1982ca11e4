package object

import (
	"fmt"
	"sync"
)

// Factory constructs an empty instance of a persisted type, used by the
// reader to allocate ghosts for records and reference stubs.
type Factory func() Object

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// RegisterType associates a type tag with its factory. Domain packages call
// this from init; registering the same tag twice panics.
func RegisterType(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[name]; dup {
		panic(fmt.Sprintf("object: type %q registered twice", name))
	}
	registry[name] = f
}

// New allocates an empty instance of the named type.
func New(name string) (Object, error) {
	registryMu.RLock()
	f, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("object: unregistered type %q", name)
	}
	return f(), nil
}

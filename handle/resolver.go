package handle

import "github.com/wippyai/polyglot-native/errors"

// Space resolves handles of one range.
type Space interface {
	Get(h Handle) (any, error)
}

// Resolver routes a handle to the space owning its range.
type Resolver struct {
	Scoped     Space
	Persistent Space
}

// Resolve returns the object behind h. Null resolves to (nil, nil).
func (r Resolver) Resolve(h Handle) (any, error) {
	switch h.Kind() {
	case KindNull:
		return nil, nil
	case KindScoped:
		if r.Scoped == nil {
			return nil, errors.InvalidHandle(errors.PhaseHandle, uint64(h), "no scoped handle space on this thread")
		}
		return r.Scoped.Get(h)
	case KindPersistent:
		if r.Persistent == nil {
			return nil, errors.InvalidHandle(errors.PhaseHandle, uint64(h), "no persistent handle space")
		}
		return r.Persistent.Get(h)
	default:
		return nil, errors.InvalidHandle(errors.PhaseHandle, uint64(h), "handle outside every valid range")
	}
}

package gateways

import (
	"fmt"
	"sort"

	"github.com/angelmondragon/shopcore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopcore-backend/pkg/errors"
	"github.com/angelmondragon/shopcore-backend/pkg/logger"
)

// TestModeEnabled reports whether signature checks may be relaxed. The flag
// is ignored in production builds.
func TestModeEnabled(flag bool) bool {
	return flag && testModeCompiled
}

// Registry dispatches to adapters by provider name.
type Registry struct {
	adapters map[enums.PaymentMethod]Adapter
}

// NewRegistry indexes adapters by Name. Duplicate or offline names are rejected.
func NewRegistry(adapters ...Adapter) (*Registry, error) {
	r := &Registry{adapters: make(map[enums.PaymentMethod]Adapter, len(adapters))}
	for _, adapter := range adapters {
		if adapter == nil {
			continue
		}
		name := adapter.Name()
		if !name.IsOnline() {
			return nil, fmt.Errorf("gateway %q is not an online payment method", name)
		}
		if _, exists := r.adapters[name]; exists {
			return nil, fmt.Errorf("gateway %q registered twice", name)
		}
		r.adapters[name] = adapter
	}
	return r, nil
}

// Get returns the adapter for name.
func (r *Registry) Get(name enums.PaymentMethod) (Adapter, error) {
	if r != nil {
		if adapter, ok := r.adapters[name]; ok {
			return adapter, nil
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment gateway is not available").
		WithDetails(map[string]any{"gateway": name})
}

// Supports reports whether an adapter is registered for name.
func (r *Registry) Supports(name enums.PaymentMethod) bool {
	if r == nil {
		return false
	}
	_, ok := r.adapters[name]
	return ok
}

// Names lists the registered providers in a stable order.
func (r *Registry) Names() []enums.PaymentMethod {
	if r == nil {
		return nil
	}
	names := make([]enums.PaymentMethod, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// Options are shared by every adapter constructor.
type Options struct {
	// TestMode accepts callbacks whose signature does not verify. See TestModeEnabled.
	TestMode bool
	Logger   *logger.Logger
}

func (o Options) testMode() bool {
	return TestModeEnabled(o.TestMode)
}

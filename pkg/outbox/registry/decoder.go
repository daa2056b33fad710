package registry

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/angelmondragon/shopcore-backend/pkg/enums"
)

type decoderFunc func(payload json.RawMessage) (any, error)

type decoderKey struct {
	eventType enums.OutboxEventType
	version   int
}

// DecoderRegistry is the consumer side of the catalog: envelope data in,
// payload value out, keyed by event type and envelope version.
type DecoderRegistry struct {
	mu       sync.RWMutex
	decoders map[decoderKey]decoderFunc
}

func NewDecoderRegistry() *DecoderRegistry {
	return &DecoderRegistry{decoders: make(map[decoderKey]decoderFunc)}
}

// NewPayloadDecoders knows every cataloged event at version 1.
func NewPayloadDecoders() *DecoderRegistry {
	reg := NewDecoderRegistry()
	for _, e := range catalog {
		reg.Register(e.eventType, 1, e.decode)
	}
	return reg
}

func (r *DecoderRegistry) Register(eventType enums.OutboxEventType, version int, decode decoderFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decoders[decoderKey{eventType, version}] = decode
}

// Decode fails for an unknown version so a consumer can leave the message for
// a newer deployment.
func (r *DecoderRegistry) Decode(eventType enums.OutboxEventType, version int, payload json.RawMessage) (any, error) {
	r.mu.RLock()
	decode, ok := r.decoders[decoderKey{eventType, version}]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("decoder not registered for %s@v%d", eventType, version)
	}
	return decode(payload)
}

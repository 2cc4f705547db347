// Copyright 2026 The Sensorlink Authors
// SPDX-License-Identifier: Apache-2.0

package record

import (
	"fmt"
	"slices"
	"sync"
)

// Registry maps topic names to codecs. A producer registers the topics
// it serves; the transaction stub looks them up by the name a client
// sends.
type Registry struct {
	mu     sync.RWMutex
	codecs map[string]Codec
}

func NewRegistry() *Registry {
	return &Registry{codecs: make(map[string]Codec)}
}

// Register adds codecs. Registering the same name again with the same
// schema pair is a no-op; a different schema pair under an existing
// name is an error and nothing from this call is registered.
func (r *Registry) Register(codecs ...Codec) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range codecs {
		if existing, ok := r.codecs[c.Name()]; ok && existing.Fingerprint() != c.Fingerprint() {
			return fmt.Errorf("topic %q already registered with schema %s, refusing %s",
				c.Name(), existing.Fingerprint(), c.Fingerprint())
		}
	}
	for _, c := range codecs {
		r.codecs[c.Name()] = c
	}
	return nil
}

// Lookup returns the codec registered under name.
func (r *Registry) Lookup(name string) (Codec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.codecs[name]
	return c, ok
}

// Names returns the registered topic names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.codecs))
	for name := range r.codecs {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

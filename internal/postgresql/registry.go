/*
Copyright 2025.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package postgresql

import (
	"context"
	"errors"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/tjo-space/tjo-cloud-console/internal/config"
	operrors "github.com/tjo-space/tjo-cloud-console/internal/errors"
)

// Connector opens one backend
type Connector func(ctx context.Context, backend config.Backend) (Backend, error)

// Registry maps backend keys to connected backends. It is built once at startup and
// never modified afterwards, so readers need no locking.
type Registry struct {
	backends map[string]Backend
}

// NewRegistry indexes backends by name
func NewRegistry(backends ...Backend) *Registry {
	r := &Registry{backends: make(map[string]Backend, len(backends))}
	for _, b := range backends {
		r.backends[b.Name()] = b
	}
	return r
}

// ConnectAll connects every configured backend in parallel. If any backend fails, the
// ones already connected are closed again.
func ConnectAll(ctx context.Context, backends []config.Backend, connect Connector) (*Registry, error) {
	connected := make([]Backend, len(backends))

	g, gctx := errgroup.WithContext(ctx)
	for i, backend := range backends {
		g.Go(func() error {
			b, err := connect(gctx, backend)
			if err != nil {
				return err
			}
			connected[i] = b
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		for _, b := range connected {
			if b != nil {
				_ = b.Close()
			}
		}
		return nil, err
	}

	return NewRegistry(connected...), nil
}

// Get returns the backend registered under key
func (r *Registry) Get(key string) (Backend, error) {
	b, ok := r.backends[key]
	if !ok {
		return nil, operrors.ErrUnknownBackend.WithDetail("%q", key)
	}
	return b, nil
}

// Keys lists the registered backend keys in order
func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.backends))
	for k := range r.backends {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of registered backends
func (r *Registry) Len() int {
	return len(r.backends)
}

// Close closes every backend and returns the joined errors
func (r *Registry) Close() error {
	var errs []error
	for _, k := range r.Keys() {
		if err := r.backends[k].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

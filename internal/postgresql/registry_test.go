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
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tjo-space/tjo-cloud-console/internal/config"
	operrors "github.com/tjo-space/tjo-cloud-console/internal/errors"
)

type fakeBackend struct {
	name string

	mu       sync.Mutex
	pingErrs []error
	closed   bool
}

func (f *fakeBackend) Execute(context.Context, string, ...any) (int64, error) { return 0, nil }
func (f *fakeBackend) Name() string                                          { return f.name }
func (f *fakeBackend) Host() string                                          { return f.name + ".internal" }
func (f *fakeBackend) Port() string                                          { return "5432" }

func (f *fakeBackend) Ping(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.pingErrs) == 0 {
		return nil
	}
	err := f.pingErrs[0]
	f.pingErrs = f.pingErrs[1:]
	return err
}

func (f *fakeBackend) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func TestRegistry_Get(t *testing.T) {
	primary := &fakeBackend{name: "primary"}
	registry := NewRegistry(primary, &fakeBackend{name: "analytics"})

	b, err := registry.Get("primary")
	require.NoError(t, err)
	assert.Same(t, primary, b)

	_, err = registry.Get("missing")
	assert.ErrorIs(t, err, operrors.ErrUnknownBackend)
	assert.Contains(t, err.Error(), "missing")

	assert.Equal(t, []string{"analytics", "primary"}, registry.Keys())
	assert.Equal(t, 2, registry.Len())
}

func TestRegistry_Close(t *testing.T) {
	a := &fakeBackend{name: "a"}
	b := &fakeBackend{name: "b"}

	require.NoError(t, NewRegistry(a, b).Close())
	assert.True(t, a.closed)
	assert.True(t, b.closed)
}

func TestConnectAll(t *testing.T) {
	backends := []config.Backend{{Name: "a"}, {Name: "b"}, {Name: "c"}}

	t.Run("all backends connect", func(t *testing.T) {
		registry, err := ConnectAll(context.Background(), backends,
			func(_ context.Context, backend config.Backend) (Backend, error) {
				return &fakeBackend{name: backend.Name}, nil
			})

		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b", "c"}, registry.Keys())
	})

	t.Run("one failure closes the others", func(t *testing.T) {
		var mu sync.Mutex
		opened := map[string]*fakeBackend{}

		_, err := ConnectAll(context.Background(), backends,
			func(_ context.Context, backend config.Backend) (Backend, error) {
				if backend.Name == "b" {
					return nil, operrors.ErrPostgresqlConnectionFailed.WithDetail("backend b")
				}
				fb := &fakeBackend{name: backend.Name}
				mu.Lock()
				opened[backend.Name] = fb
				mu.Unlock()
				return fb, nil
			})

		assert.ErrorIs(t, err, operrors.ErrPostgresqlConnectionFailed)
		for name, fb := range opened {
			assert.True(t, fb.closed, "backend %s left open", name)
		}
	})

	t.Run("no backends", func(t *testing.T) {
		registry, err := ConnectAll(context.Background(), nil,
			func(context.Context, config.Backend) (Backend, error) {
				return nil, errors.New("unexpected")
			})

		require.NoError(t, err)
		assert.Empty(t, registry.Keys())
	})
}

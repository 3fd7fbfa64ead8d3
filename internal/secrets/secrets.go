// Package secrets resolves named secrets for outbound integrations.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"golang.org/x/sync/singleflight"
)

// ErrNotFound is returned when a secret name has no value.
var ErrNotFound = errors.New("secret not found")

// Provider resolves a secret by name.
type Provider interface {
	Get(ctx context.Context, name string) (string, error)
}

// EnvProvider reads secrets from environment variables.
type EnvProvider struct {
	Getenv func(string) string
}

// NewEnvProvider creates a provider backed by the process environment.
func NewEnvProvider() *EnvProvider {
	return &EnvProvider{Getenv: os.Getenv}
}

// Get returns the variable's value, or ErrNotFound when it is unset or empty.
func (p *EnvProvider) Get(_ context.Context, name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("empty secret name: %w", ErrNotFound)
	}
	v := p.Getenv(name)
	if v == "" {
		return "", fmt.Errorf("secret %s: %w", name, ErrNotFound)
	}
	return v, nil
}

// Cache memoises successful lookups for the process lifetime. Concurrent
// lookups of the same name share one call to the underlying provider.
// Failures are not cached.
type Cache struct {
	provider Provider
	group    singleflight.Group

	mu     sync.RWMutex
	values map[string]string
}

// NewCache wraps a provider.
func NewCache(provider Provider) *Cache {
	return &Cache{provider: provider, values: make(map[string]string)}
}

// Get returns the cached value or resolves it through the provider.
func (c *Cache) Get(ctx context.Context, name string) (string, error) {
	c.mu.RLock()
	v, ok := c.values[name]
	c.mu.RUnlock()
	if ok {
		return v, nil
	}

	result, err, _ := c.group.Do(name, func() (any, error) {
		v, err := c.provider.Get(ctx, name)
		if err != nil {
			return "", err
		}
		c.mu.Lock()
		c.values[name] = v
		c.mu.Unlock()
		return v, nil
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

// Optional resolves a secret that may legitimately be absent.
func Optional(ctx context.Context, p Provider, name string) (string, error) {
	if name == "" {
		return "", nil
	}
	v, err := p.Get(ctx, name)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	return v, err
}

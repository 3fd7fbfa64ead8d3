package secrets

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingProvider struct {
	calls  atomic.Int32
	values map[string]string
	err    error
}

func (p *countingProvider) Get(_ context.Context, name string) (string, error) {
	p.calls.Add(1)
	if p.err != nil {
		return "", p.err
	}
	v, ok := p.values[name]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func TestEnvProvider(t *testing.T) {
	p := &EnvProvider{Getenv: func(k string) string {
		if k == "STRIPE_SECRET_KEY" {
			return "sk_test_123"
		}
		return ""
	}}

	v, err := p.Get(context.Background(), "STRIPE_SECRET_KEY")
	require.NoError(t, err)
	assert.Equal(t, "sk_test_123", v)

	_, err = p.Get(context.Background(), "MISSING")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCache_MemoisesSuccess(t *testing.T) {
	p := &countingProvider{values: map[string]string{"k": "v"}}
	c := NewCache(p)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := c.Get(context.Background(), "k")
			assert.NoError(t, err)
			assert.Equal(t, "v", v)
		}()
	}
	wg.Wait()

	_, err := c.Get(context.Background(), "k")
	require.NoError(t, err)

	// concurrent first lookups may each start a flight before the value is stored,
	// but once cached the provider is never consulted again
	before := p.calls.Load()
	_, _ = c.Get(context.Background(), "k")
	assert.Equal(t, before, p.calls.Load())
}

func TestCache_DoesNotCacheFailures(t *testing.T) {
	p := &countingProvider{err: errors.New("vault down")}
	c := NewCache(p)

	_, err := c.Get(context.Background(), "k")
	require.Error(t, err)
	_, err = c.Get(context.Background(), "k")
	require.Error(t, err)

	assert.Equal(t, int32(2), p.calls.Load())
}

func TestOptional(t *testing.T) {
	p := &countingProvider{values: map[string]string{"present": "x"}}

	v, err := Optional(context.Background(), p, "present")
	require.NoError(t, err)
	assert.Equal(t, "x", v)

	v, err = Optional(context.Background(), p, "absent")
	require.NoError(t, err)
	assert.Empty(t, v)

	v, err = Optional(context.Background(), p, "")
	require.NoError(t, err)
	assert.Empty(t, v)
}

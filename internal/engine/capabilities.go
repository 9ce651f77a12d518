package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// AlternateLoader produces the alternate engine, possibly slowly.
type AlternateLoader func(ctx context.Context) (Alternate, error)

// LiveLoader produces the live engine, possibly slowly.
type LiveLoader func(ctx context.Context) (Live, error)

// Capabilities records which engines are available. Each engine is
// published at most once; readers see either nothing or the final value.
// A failed load is terminal for the lifetime of the Capabilities value.
type Capabilities struct {
	mu        sync.RWMutex
	alternate Alternate
	live      Live
	errs      []error
}

// NewCapabilities returns a registry with no engines loaded.
func NewCapabilities() *Capabilities {
	return &Capabilities{}
}

// Alternate returns the alternate engine if it has been published.
func (c *Capabilities) Alternate() (Alternate, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.alternate, c.alternate != nil
}

// Live returns the live engine if it has been published.
func (c *Capabilities) Live() (Live, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.live, c.live != nil
}

// SetAlternate publishes a. It reports false if an engine was already set.
func (c *Capabilities) SetAlternate(a Alternate) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.alternate != nil || a == nil {
		return false
	}
	c.alternate = a
	return true
}

// SetLive publishes l. It reports false if an engine was already set.
func (c *Capabilities) SetLive(l Live) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.live != nil || l == nil {
		return false
	}
	c.live = l
	return true
}

// Err returns the joined loader failures, if any.
func (c *Capabilities) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return errors.Join(c.errs...)
}

func (c *Capabilities) fail(name string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errs = append(c.errs, fmt.Errorf("loading %s engine: %w", name, err))
}

// Load runs the given loaders concurrently and publishes whatever they
// return. Nil loaders are skipped. The returned channel is closed once every
// loader has finished; callers that need an engine wait on it, everybody
// else reads the registry and falls back while it is still empty.
func (c *Capabilities) Load(ctx context.Context, alt AlternateLoader, live LiveLoader) <-chan struct{} {
	done := make(chan struct{})
	var wg sync.WaitGroup

	if alt != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a, err := alt(ctx)
			if err != nil {
				c.fail("alternate", err)
				return
			}
			c.SetAlternate(a)
		}()
	}
	if live != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l, err := live(ctx)
			if err != nil {
				c.fail("live", err)
				return
			}
			c.SetLive(l)
		}()
	}

	go func() {
		wg.Wait()
		close(done)
	}()
	return done
}

// Wait blocks until done is closed or ctx ends.
func Wait(ctx context.Context, done <-chan struct{}) error {
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

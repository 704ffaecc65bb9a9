// Package launchcache stores staged launch data across the OIDC round
// trip, keyed by the lti_message_hint. Entries expire after their TTL;
// a miss is lti1p3.ErrLaunchDataNotFound.
package launchcache

import (
	"context"
	"sync"
	"time"

	"github.com/openlms/lticore/pkg/lti1p3"
)

type memEntry struct {
	data     lti1p3.LaunchData
	deadline time.Time
}

// Memory is an in-process LaunchDataStore for single-node deployments
// and tests.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]memEntry

	// Now overrides the clock (tests).
	Now func() time.Time
}

func NewMemory() *Memory {
	return &Memory{entries: map[string]memEntry{}}
}

func (m *Memory) Put(_ context.Context, key string, data lti1p3.LaunchData, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = memEntry{data: data, deadline: m.now().Add(ttl)}
	return nil
}

func (m *Memory) Get(_ context.Context, key string) (lti1p3.LaunchData, error) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok || m.now().After(e.deadline) {
		if ok {
			m.mu.Lock()
			delete(m.entries, key)
			m.mu.Unlock()
		}
		return lti1p3.LaunchData{}, lti1p3.ErrLaunchDataNotFound
	}
	return e.data, nil
}

func (m *Memory) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now().UTC()
}

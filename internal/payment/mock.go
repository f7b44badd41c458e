package payment

import (
	"context"
	"sync"
)

// Mock implements Authorizer in memory for tests and local development. It
// records the last update per authorization id, mirroring the
// overwrite-until-captured semantics of the real processor.
type Mock struct {
	mu      sync.Mutex
	Err     error
	updates map[string]AuthorizationUpdate
	calls   int
}

// UpdateAuthorization stores the update, or returns the configured error.
func (m *Mock) UpdateAuthorization(_ context.Context, upd AuthorizationUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.Err != nil {
		return m.Err
	}
	if m.updates == nil {
		m.updates = make(map[string]AuthorizationUpdate)
	}
	m.updates[upd.AuthorizationID] = upd
	return nil
}

// Last returns the most recent update recorded for an authorization.
func (m *Mock) Last(authorizationID string) (AuthorizationUpdate, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	upd, ok := m.updates[authorizationID]
	return upd, ok
}

// Calls reports how many updates were attempted.
func (m *Mock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

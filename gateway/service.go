package gateway

import (
	"sort"
	"sync"
)

// Service holds the configured clients of a running deployment, one per
// backend kind. It is safe for concurrent use.
type Service struct {
	mu          sync.RWMutex
	clients     map[string]*Client
	defaultKind string
}

// NewService creates an empty service.
func NewService() *Service {
	return &Service{clients: make(map[string]*Client)}
}

// Configure builds and stores a client for the given backend kind. A second
// call for the same kind replaces the previous configuration. The first
// configured backend becomes the default.
func (s *Service) Configure(kind string, options map[string]string) error {
	client, err := New(kind, options)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[kind] = client
	if s.defaultKind == "" {
		s.defaultKind = kind
	}
	return nil
}

// SetDefault marks a configured backend as the one used when callers do not
// name one.
func (s *Service) SetDefault(kind string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[kind]; !ok {
		return configErrorf(kind, "backend is not configured")
	}
	s.defaultKind = kind
	return nil
}

// Client returns the configured client for a kind; an empty kind selects the
// default backend.
func (s *Service) Client(kind string) (*Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if kind == "" {
		kind = s.defaultKind
	}
	client, ok := s.clients[kind]
	if !ok {
		return nil, configErrorf(kind, "backend is not configured")
	}
	return client, nil
}

// Remove drops a configured backend.
func (s *Service) Remove(kind string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.clients, kind)
	if s.defaultKind == kind {
		s.defaultKind = ""
		for k := range s.clients {
			s.defaultKind = k
			break
		}
	}
}

// Configured returns the kinds with a live client, sorted.
func (s *Service) Configured() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	kinds := make([]string, 0, len(s.clients))
	for kind := range s.clients {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}

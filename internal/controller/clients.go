package controller

import (
	"context"
	"sync"
)

// clientSet tracks open websocket clients. The http server does not wait for hijacked
// connections, so shutdown goes through here to flush them.
type clientSet struct {
	mu      sync.Mutex
	clients map[*client]struct{}
	closing bool
	wg      sync.WaitGroup
}

func newClientSet() *clientSet {
	return &clientSet{
		clients: make(map[*client]struct{}),
	}
}

func (s *clientSet) isClosing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.closing
}

// add reports false once closeAll has started.
func (s *clientSet) add(cl *client) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closing {
		return false
	}

	s.clients[cl] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *clientSet) remove(cl *client) {
	s.mu.Lock()
	_, ok := s.clients[cl]
	delete(s.clients, cl)
	s.mu.Unlock()

	if ok {
		s.wg.Done()
	}
}

func (s *clientSet) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.clients)
}

// closeAll closes every client after its queued messages are written and waits until
// all of them are removed or ctx is done.
func (s *clientSet) closeAll(ctx context.Context) error {
	s.mu.Lock()
	s.closing = true
	clients := make([]*client, 0, len(s.clients))
	for cl := range s.clients {
		clients = append(clients, cl)
	}
	s.mu.Unlock()

	for _, cl := range clients {
		cl.Close()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

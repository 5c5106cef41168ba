package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/aretw0/playbook/pkg/domain"
)

// StreamManager fans session diffs out to SSE subscribers, keyed by run key.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan<- string]struct{}
}

// NewStreamManager returns a manager with no subscribers.
func NewStreamManager() *StreamManager {
	return &StreamManager{
		subscribers: make(map[string]map[chan<- string]struct{}),
	}
}

// Subscribe returns a buffered channel of JSON diffs for key and a cancel func.
func (sm *StreamManager) Subscribe(key string) (chan string, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan string, 10)
	if _, ok := sm.subscribers[key]; !ok {
		sm.subscribers[key] = make(map[chan<- string]struct{})
	}
	sm.subscribers[key][ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			sm.mu.Lock()
			defer sm.mu.Unlock()
			if subs, ok := sm.subscribers[key]; ok {
				delete(subs, ch)
				close(ch)
				if len(subs) == 0 {
					delete(sm.subscribers, key)
				}
			}
		})
	}
}

// Subscribers counts the open streams of key.
func (sm *StreamManager) Subscribers(key string) int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.subscribers[key])
}

// Broadcast delivers msg to every subscriber of key. Slow clients drop messages.
func (sm *StreamManager) Broadcast(key string, msg string) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for ch := range sm.subscribers[key] {
		select {
		case ch <- msg:
		default:
			slog.Warn("SSE: Client buffer full, dropping message", "key", key)
		}
	}
}

// Observe is a session.Observer that broadcasts the diff between old and new.
// Register it on the engine with playbook.WithObserver.
func (sm *StreamManager) Observe(_ context.Context, old, new *domain.Session) {
	diff := domain.Diff(old, new)
	if diff == nil {
		return
	}
	data, err := json.Marshal(diff)
	if err != nil {
		slog.Error("SSE: failed to encode diff", "key", diff.Key, "error", err)
		return
	}
	sm.Broadcast(diff.Key, string(data))
}

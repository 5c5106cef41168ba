package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/aretw0/playbook/internal/logging"
	"github.com/aretw0/playbook/internal/runtime"
	"github.com/aretw0/playbook/pkg/domain"
	"github.com/aretw0/playbook/pkg/ports"
)

// DefaultLockTTL bounds how long a distributed lock survives a crashed holder.
const DefaultLockTTL = 30 * time.Second

// Observer is notified after every change to a live session.
type Observer func(ctx context.Context, old, new *domain.Session)

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager orchestrates live runs on top of the engine.
// It uses reference counting to garbage collect unused locks.
type Manager struct {
	engine *runtime.Engine
	store  ports.ProgressStore

	mu       sync.Mutex
	locks    map[string]*lockEntry
	sessions map[string]*domain.Session

	locker    ports.DistributedLocker
	lockTTL   time.Duration
	observers []Observer
	logger    *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL overrides DefaultLockTTL.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.lockTTL = ttl
		}
	}
}

// WithObserver registers a change observer. Observers run synchronously.
func WithObserver(obs Observer) Option {
	return func(m *Manager) {
		if obs != nil {
			m.observers = append(m.observers, obs)
		}
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewManager creates a Manager driving engine. store must be the engine's store.
func NewManager(engine *runtime.Engine, store ports.ProgressStore, opts ...Option) *Manager {
	m := &Manager{
		engine:   engine,
		store:    store,
		locks:    make(map[string]*lockEntry),
		sessions: make(map[string]*domain.Session),
		lockTTL:  DefaultLockTTL,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Engine returns the engine behind the manager.
func (m *Manager) Engine() *runtime.Engine {
	return m.engine
}

// Store returns the underlying progress store.
func (m *Manager) Store() ports.ProgressStore {
	return m.store
}

// Start opens (or reopens) the run for workflow and incident and keeps it live.
// A session that failed to load is returned but not kept.
func (m *Manager) Start(ctx context.Context, workflow, incident string) (*domain.Session, error) {
	key := domain.SnapshotKey(workflow, incident)
	var s *domain.Session
	err := m.WithLock(ctx, key, func(ctx context.Context) error {
		var err error
		s, err = m.start(ctx, workflow, incident)
		return err
	})
	return s, err
}

// Get returns a copy of the live session, if any.
func (m *Manager) Get(workflow, incident string) (*domain.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[domain.SnapshotKey(workflow, incident)]
	return s.Clone(), ok
}

// Live returns the keys of every live session in lexical order.
func (m *Manager) Live() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.sessions))
	for k := range m.sessions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Current returns the live session (starting it if needed) and its current node.
func (m *Manager) Current(ctx context.Context, workflow, incident string) (*domain.Session, domain.QuestionNode, error) {
	s, err := m.ensure(ctx, workflow, incident)
	if err != nil {
		return s, domain.QuestionNode{}, err
	}
	node, err := m.engine.CurrentNode(ctx, s)
	return s, node, err
}

// Answer submits input for the current node of the run. A run that is not live
// yet is started first, so callers can resume by key alone.
func (m *Manager) Answer(ctx context.Context, workflow, incident string, in domain.AnswerInput) (*domain.Session, error) {
	return m.submit(ctx, workflow, incident, func(ctx context.Context, s *domain.Session) (*domain.Session, error) {
		return m.engine.Answer(ctx, s, in)
	})
}

// Skip skips the current node of the run.
func (m *Manager) Skip(ctx context.Context, workflow, incident string) (*domain.Session, error) {
	return m.submit(ctx, workflow, incident, m.engine.Skip)
}

// List returns every run key known to the store.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

// Delete forgets the run both in memory and in the store. The remote record is untouched.
func (m *Manager) Delete(ctx context.Context, workflow, incident string) error {
	key := domain.SnapshotKey(workflow, incident)
	return m.WithLock(ctx, key, func(ctx context.Context) error {
		m.mu.Lock()
		delete(m.sessions, key)
		m.mu.Unlock()
		return m.store.Delete(ctx, workflow, incident)
	})
}

func (m *Manager) ensure(ctx context.Context, workflow, incident string) (*domain.Session, error) {
	if s, ok := m.Get(workflow, incident); ok {
		return s, nil
	}
	return m.Start(ctx, workflow, incident)
}

func (m *Manager) submit(ctx context.Context, workflow, incident string, fn func(context.Context, *domain.Session) (*domain.Session, error)) (*domain.Session, error) {
	key := domain.SnapshotKey(workflow, incident)

	entry := m.acquire(key)
	if !entry.mu.TryLock() {
		m.release(key)
		return nil, domain.ErrSubmissionInFlight
	}
	defer func() {
		entry.mu.Unlock()
		m.release(key)
	}()

	unlock, err := m.lockDistributed(ctx, key)
	if err != nil {
		return nil, err
	}
	defer unlock()

	s, ok := m.Get(workflow, incident)
	if !ok {
		if s, err = m.start(ctx, workflow, incident); err != nil {
			return s, err
		}
	}

	next, err := fn(ctx, s)
	if next != nil && next != s {
		m.put(ctx, s, next)
	}
	return next.Clone(), err
}

func (m *Manager) start(ctx context.Context, workflow, incident string) (*domain.Session, error) {
	m.mu.Lock()
	old := m.sessions[domain.SnapshotKey(workflow, incident)]
	m.mu.Unlock()

	s, err := m.engine.Start(ctx, workflow, incident)
	if err != nil {
		m.logger.Warn("failed to start run", "workflow", workflow, "incident", incident, "err", err)
		return s, err
	}
	m.put(ctx, old, s)
	return s.Clone(), nil
}

func (m *Manager) put(ctx context.Context, old, next *domain.Session) {
	m.mu.Lock()
	m.sessions[next.Key()] = next
	m.mu.Unlock()
	for _, obs := range m.observers {
		obs(ctx, old, next)
	}
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST lock entry.mu, and then call release(key) after unlocking.
func (m *Manager) acquire(key string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[key]
	if !exists {
		entry = &lockEntry{}
		m.locks[key] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[key]
	if !exists {
		return
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, key)
	}
}

// WithLock executes fn while holding the local and, if configured, distributed
// lock for key.
func (m *Manager) WithLock(ctx context.Context, key string, fn func(context.Context) error) error {
	entry := m.acquire(key)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(key)
	}()

	unlock, err := m.lockDistributed(ctx, key)
	if err != nil {
		return err
	}
	defer unlock()

	return fn(ctx)
}

func (m *Manager) lockDistributed(ctx context.Context, key string) (func(), error) {
	if m.locker == nil {
		return func() {}, nil
	}
	unlock, err := m.locker.Lock(ctx, key, m.lockTTL)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to acquire distributed lock: %w", err)
	}
	return func() {
		// Released on a fresh context: the caller's may already be done.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := unlock(releaseCtx); err != nil {
			m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
				"key", key,
				"err", err,
			)
		}
	}, nil
}

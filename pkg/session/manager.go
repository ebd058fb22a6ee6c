package session

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/internal/runtime"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/google/uuid"
)

// Factory creates the machine for a new instance ID.
type Factory func(id string) (*runtime.Machine, error)

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager orchestrates machine access, ensuring safe concurrent operations.
// It uses Reference Counting to garbage collect unused locks.
type Manager struct {
	factory Factory

	mu       sync.Mutex                  // Global lock for the maps
	locks    map[string]*lockEntry       // Map of active locks
	machines map[string]*runtime.Machine // Live machines by instance ID

	locker  ports.DistributedLocker // Optional distributed locker
	lockTTL time.Duration
	logger  *slog.Logger // Logger for internal events (like deferred errors)
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL sets how long a distributed lock survives a crashed holder (default 30s).
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.lockTTL = ttl
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

// NewManager creates a new Manager that builds machines with factory.
func NewManager(factory Factory, opts ...Option) *Manager {
	m := &Manager{
		factory:  factory,
		locks:    make(map[string]*lockEntry),
		machines: make(map[string]*runtime.Machine),
		lockTTL:  30 * time.Second,
		logger:   logging.NewNop(), // Default to no-op
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(id) after unlocking.
func (m *Manager) acquire(id string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[id]
	if !exists {
		entry = &lockEntry{}
		m.locks[id] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[id]
	if !exists {
		return // Should not happen if paired correctly
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, id)
	}
}

// Create builds and registers a machine. An empty id gets a random UUID.
func (m *Manager) Create(ctx context.Context, id string) (*runtime.Machine, error) {
	if id == "" {
		id = uuid.NewString()
	}
	var machine *runtime.Machine
	err := m.withEntry(ctx, id, func(ctx context.Context) error {
		m.mu.Lock()
		_, exists := m.machines[id]
		m.mu.Unlock()
		if exists {
			return fmt.Errorf("%w: %s", domain.ErrMachineExists, id)
		}

		created, err := m.factory(id)
		if err != nil {
			return fmt.Errorf("failed to create machine %s: %w", id, err)
		}
		m.mu.Lock()
		m.machines[id] = created
		m.mu.Unlock()
		machine = created
		return nil
	})
	if err == nil {
		m.logger.Debug("machine created", "machine_id", id)
	}
	return machine, err
}

// Get returns the machine registered under id without locking it.
// Use WithLock to drive it.
func (m *Manager) Get(id string) (*runtime.Machine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	machine, ok := m.machines[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrMachineNotFound, id)
	}
	return machine, nil
}

// List returns the registered instance IDs in lexical order.
func (m *Manager) List() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.machines))
	for id := range m.machines {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// WithLock executes fn with exclusive access to the machine registered under id.
func (m *Manager) WithLock(ctx context.Context, id string, fn func(context.Context, *runtime.Machine) error) error {
	return m.withEntry(ctx, id, func(ctx context.Context) error {
		machine, err := m.Get(id)
		if err != nil {
			return err
		}
		return fn(ctx, machine)
	})
}

// Dispose disposes the machine registered under id and forgets it.
func (m *Manager) Dispose(ctx context.Context, id string) error {
	return m.WithLock(ctx, id, func(_ context.Context, machine *runtime.Machine) error {
		m.mu.Lock()
		delete(m.machines, id)
		m.mu.Unlock()
		m.logger.Debug("machine disposed", "machine_id", id)
		return machine.Dispose()
	})
}

// Close disposes every registered machine.
func (m *Manager) Close(ctx context.Context) error {
	var firstErr error
	for _, id := range m.List() {
		if err := m.Dispose(ctx, id); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (m *Manager) withEntry(ctx context.Context, id string, fn func(context.Context) error) error {
	entry := m.acquire(id)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(id)
	}()

	// Distributed Locking
	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, id, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"machine_id", id,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}

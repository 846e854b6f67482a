package mcpconn

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Manager coordinates connections to several MCP servers. Each server gets
// its own fully independent Connection; the manager only adds bookkeeping
// and concurrent connect/disconnect on top.
type Manager struct {
	mu     sync.RWMutex
	conns  map[string]*Connection
	logger Logger
}

// NewManager creates an empty manager.
func NewManager(logger Logger) *Manager {
	if logger == nil {
		logger = NewNullLogger()
	}
	return &Manager{
		conns:  make(map[string]*Connection),
		logger: logger,
	}
}

// AddServer registers a server and returns its connection. The config's
// ServerID must be unique within the manager.
func (m *Manager) AddServer(config ConnectionConfig) (*Connection, error) {
	if config.ServerID == "" {
		return nil, fmt.Errorf("server ID is required")
	}
	if config.Logger == nil {
		config.Logger = m.logger
	}

	conn, err := NewConnection(config)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.conns[config.ServerID]; exists {
		return nil, fmt.Errorf("server %s is already registered", config.ServerID)
	}
	m.conns[config.ServerID] = conn
	return conn, nil
}

// RemoveServer disconnects and forgets a server.
func (m *Manager) RemoveServer(serverID string) error {
	m.mu.Lock()
	conn, exists := m.conns[serverID]
	delete(m.conns, serverID)
	m.mu.Unlock()

	if !exists {
		return fmt.Errorf("server %s is not registered", serverID)
	}
	return conn.Disconnect()
}

// GetConnection returns the connection for a server id.
func (m *Manager) GetConnection(serverID string) (*Connection, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	conn, ok := m.conns[serverID]
	return conn, ok
}

// ConnectAll connects every registered server concurrently. The first error
// is returned, but every connection still gets its attempt.
func (m *Manager) ConnectAll(ctx context.Context) error {
	m.mu.RLock()
	conns := make([]*Connection, 0, len(m.conns))
	for _, conn := range m.conns {
		conns = append(conns, conn)
	}
	m.mu.RUnlock()

	// Deliberately not errgroup.WithContext: one server failing must not
	// cancel its siblings' negotiations.
	var g errgroup.Group
	for _, conn := range conns {
		conn := conn
		g.Go(func() error {
			if err := conn.Connect(ctx); err != nil {
				return fmt.Errorf("server %s: %w", conn.config.ServerID, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// DisconnectAll tears down every registered connection.
func (m *Manager) DisconnectAll() {
	m.mu.RLock()
	conns := make([]*Connection, 0, len(m.conns))
	for _, conn := range m.conns {
		conns = append(conns, conn)
	}
	m.mu.RUnlock()

	for _, conn := range conns {
		if err := conn.Disconnect(); err != nil {
			m.logger.WithErr(err).Warn("disconnect failed")
		}
	}
}

// Statuses returns a snapshot of every connection's status, ordered by
// server id.
func (m *Manager) Statuses() []ServerStatus {
	m.mu.RLock()
	statuses := make([]ServerStatus, 0, len(m.conns))
	for _, conn := range m.conns {
		statuses = append(statuses, conn.GetStatus())
	}
	m.mu.RUnlock()

	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].ServerID < statuses[j].ServerID
	})
	return statuses
}

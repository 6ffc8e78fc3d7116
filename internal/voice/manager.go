package voice

import (
	"log"
	"sync"
)

// Manager owns one Handler per guild of interest and routes gateway
// voice events to them. It is the higher-level interface most callers
// want; Handlers can still be driven directly in standalone setups.
type Manager struct {
	mu       sync.Mutex
	userID   string
	sink     Sink
	spawn    SpawnFunc
	handlers map[string]*Handler
}

// NewManager creates a Manager publishing through sink. The user id may
// be empty at construction and supplied later via SetUserID, once the
// gateway READY event names the current user.
func NewManager(userID string, sink Sink, spawn SpawnFunc) *Manager {
	return &Manager{
		userID:   userID,
		sink:     sink,
		spawn:    spawn,
		handlers: make(map[string]*Handler),
	}
}

// SetUserID records the current user's id. Handlers created before this
// point would filter every state event, so set it before joining.
func (m *Manager) SetUserID(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.userID = userID
}

// Handler returns the guild's handler, creating one if needed.
func (m *Manager) Handler(guildID string) *Handler {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.handler(guildID)
}

func (m *Manager) handler(guildID string) *Handler {
	if h, ok := m.handlers[guildID]; ok {
		return h
	}

	h := New(guildID, m.userID, m.sink, m.spawn)
	m.handlers[guildID] = h
	return h
}

// Get returns the guild's handler without creating one.
func (m *Manager) Get(guildID string) (*Handler, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	h, ok := m.handlers[guildID]
	return h, ok
}

// Join joins the given voice channel and returns the guild's handler.
func (m *Manager) Join(guildID, channelID string) *Handler {
	m.mu.Lock()
	h := m.handler(guildID)
	m.mu.Unlock()

	h.Join(channelID)
	return h
}

// Leave leaves the guild's voice channel, if one is joined. The handler
// is kept around with its settings intact.
func (m *Manager) Leave(guildID string) {
	if h, ok := m.Get(guildID); ok {
		h.Leave()
	}
}

// Remove leaves the guild's voice channel and drops its handler.
func (m *Manager) Remove(guildID string) {
	m.mu.Lock()
	h, ok := m.handlers[guildID]
	delete(m.handlers, guildID)
	m.mu.Unlock()

	if ok {
		if err := h.Close(); err != nil {
			log.Printf("[Voice] Guild %s: handler close failed: %v", guildID, err)
		}
	}
}

// ServerUpdate routes a gateway voice-server-update event to the guild's
// handler. Events for guilds with no handler are dropped; a handler only
// exists for guilds someone asked to join.
func (m *Manager) ServerUpdate(guildID, endpoint, token string) {
	if h, ok := m.Get(guildID); ok {
		h.UpdateServer(endpoint, token)
	}
}

// StateUpdate routes a gateway voice-state-update event to the guild's
// handler. The handler filters out other users' events itself.
func (m *Manager) StateUpdate(guildID string, st StateUpdate) {
	if h, ok := m.Get(guildID); ok {
		h.UpdateState(st)
	}
}

// Close disconnects and drops every handler.
func (m *Manager) Close() {
	m.mu.Lock()
	handlers := m.handlers
	m.handlers = make(map[string]*Handler)
	m.mu.Unlock()

	for guildID, h := range handlers {
		if err := h.Close(); err != nil {
			log.Printf("[Voice] Guild %s: handler close failed: %v", guildID, err)
		}
	}
}

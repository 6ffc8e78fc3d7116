// Package gateway adapts a raw gateway websocket into the voice package's
// Sink, for running the voice coordinator without a full Discord library
// around it.
package gateway

import (
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"voicegate/internal/voice"
)

// The gateway allows 120 outbound events per 60 seconds per connection.
const (
	gatewayEventLimit  = 120
	gatewayEventWindow = 60 * time.Second
)

// Sink writes voice state envelopes to a gateway websocket. Writes are
// serialized and kept under the gateway's send budget; an over-budget
// update fails fast, which the handler treats as a dropped best-effort
// publish.
type Sink struct {
	mu      sync.Mutex
	conn    *websocket.Conn
	limiter *rate.Limiter
}

// NewSink wraps an already-authenticated gateway connection.
func NewSink(conn *websocket.Conn) *Sink {
	return &Sink{
		conn:    conn,
		limiter: rate.NewLimiter(rate.Every(gatewayEventWindow/gatewayEventLimit), gatewayEventLimit),
	}
}

// SendStateUpdate implements voice.Sink.
func (s *Sink) SendStateUpdate(env voice.StateEnvelope) error {
	if !s.limiter.Allow() {
		return fmt.Errorf("gateway send budget exhausted")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.conn.WriteJSON(env); err != nil {
		return fmt.Errorf("gateway write failed: %w", err)
	}
	return nil
}

package dispatch

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/example/ridepool/internal/models"
)

var ErrNoSession = errors.New("no websocket session for driver")

// WSSession is one connected driver. Writes are serialized; gorilla
// connections do not allow concurrent writers.
type WSSession struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *WSSession) Send(offer models.MatchOffer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(offer)
}

// WSRegistry holds live driver sessions keyed by driver ID. It is the
// injected pub/sub collaborator: handlers add sessions, the matcher offers
// through it.
type WSRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*WSSession
	logger   *slog.Logger
}

func NewWSRegistry(logger *slog.Logger) *WSRegistry {
	return &WSRegistry{sessions: make(map[string]*WSSession), logger: logger}
}

func (r *WSRegistry) Add(driverID string, conn *websocket.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[driverID] = &WSSession{conn: conn}
}

// Remove closes and forgets the driver's session. Safe to call for drivers
// with no session.
func (r *WSRegistry) Remove(driverID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[driverID]; ok {
		_ = s.conn.Close()
		delete(r.sessions, driverID)
	}
}

func (r *WSRegistry) Offer(driverID string, offer models.MatchOffer) error {
	r.mu.RLock()
	s, ok := r.sessions[driverID]
	r.mu.RUnlock()
	if !ok {
		return ErrNoSession
	}
	if err := s.Send(offer); err != nil {
		// a failed write means a dead connection; drop it so the next
		// offer falls through to the push path immediately
		r.Remove(driverID)
		if r.logger != nil {
			r.logger.Warn("ws offer send failed", "driver_id", driverID, "error", err)
		}
		return err
	}
	return nil
}

package storage

import (
	"errors"
	"sync"
	"time"

	"github.com/example/ridepool/internal/models"
)

var (
	ErrNotFound = errors.New("ride not found")
	// ErrConflict is returned when a lifecycle transition races another
	// passenger or targets a ride no longer in the required status.
	ErrConflict = errors.New("ride not in required status")
)

// RideStore defines persistence for the ride lifecycle. Matching reads ride
// snapshots from the geo index, not from here; the store owns the state
// transitions.
type RideStore interface {
	SaveRide(r *models.Ride) error
	UpdateRide(r *models.Ride) error
	GetRide(id string) (*models.Ride, error)
	// AcceptPassenger moves an active, unclaimed ride to pending. The
	// transition is idempotent for the same passenger and conflicts for
	// anyone else once claimed.
	AcceptPassenger(rideID, passengerID string) error
	ListByDriver(driverID string, statuses ...string) ([]*models.Ride, error)
}

type MemoryStore struct {
	mu    sync.RWMutex
	rides map[string]*models.Ride
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rides: make(map[string]*models.Ride)}
}

func (m *MemoryStore) SaveRide(r *models.Ride) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	m.rides[r.ID] = &cp
	return nil
}

func (m *MemoryStore) UpdateRide(r *models.Ride) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rides[r.ID]; !ok {
		return ErrNotFound
	}
	cp := *r
	cp.UpdatedAt = time.Now()
	m.rides[r.ID] = &cp
	return nil
}

func (m *MemoryStore) GetRide(id string) (*models.Ride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rides[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *MemoryStore) AcceptPassenger(rideID, passengerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rides[rideID]
	if !ok {
		return ErrNotFound
	}
	if r.PassengerID == passengerID && r.Status == models.StatusPending {
		return nil // idempotent repeat
	}
	if r.Status != models.StatusActive || r.PassengerID != "" {
		return ErrConflict
	}
	r.PassengerID = passengerID
	r.Status = models.StatusPending
	r.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryStore) ListByDriver(driverID string, statuses ...string) ([]*models.Ride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.Ride
	for _, r := range m.rides {
		if r.DriverID != driverID {
			continue
		}
		if len(statuses) > 0 && !contains(statuses, r.Status) {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	return out, nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

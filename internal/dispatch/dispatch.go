package dispatch

import "github.com/example/ridepool/internal/models"

// Dispatcher delivers a match offer to the ride's driver. Delivery is
// best-effort: a failed offer never fails the passenger's request.
type Dispatcher interface {
	Offer(driverID string, offer models.MatchOffer) error
}

// Nop discards offers; used when no delivery channel is configured.
type Nop struct{}

func (Nop) Offer(driverID string, offer models.MatchOffer) error { return nil }

// Chain tries each dispatcher in order and stops at the first delivery.
// The last failure is returned when none succeed.
type Chain []Dispatcher

func (c Chain) Offer(driverID string, offer models.MatchOffer) error {
	err := ErrNoSession
	for _, d := range c {
		if err = d.Offer(driverID, offer); err == nil {
			return nil
		}
	}
	return err
}

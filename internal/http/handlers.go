package httpapi

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/ridepool/internal/models"
	"github.com/example/ridepool/internal/observability"
	"github.com/example/ridepool/internal/storage"
	"github.com/example/ridepool/internal/tour"
)

func (s *Server) routes() {
	s.mux.HandleFunc("/api/v1/rides", s.handleCreateRide).Methods("POST")
	s.mux.HandleFunc("/api/v1/rides/find", s.handleFindRides).Methods("POST")
	s.mux.HandleFunc("/api/v1/rides/{ride_id}", s.handleGetRide).Methods("GET")
	s.mux.HandleFunc("/api/v1/rides/{ride_id}/accept", s.handleAcceptRide).Methods("POST")
	s.mux.HandleFunc("/api/v1/rides/{ride_id}/complete", s.handleCompleteRide).Methods("POST")
	s.mux.HandleFunc("/api/v1/rides/{ride_id}/cancel", s.handleCancelRide).Methods("POST")
	s.mux.HandleFunc("/api/v1/optimize/route", s.handleOptimizeRoute).Methods("POST")
	s.mux.HandleFunc("/api/v1/optimize/multi-ride", s.handleOptimizeMultiRide).Methods("POST")
	s.mux.HandleFunc("/api/v1/pricing/estimate", s.handlePricingEstimate).Methods("POST")
	s.mux.HandleFunc("/internal/driver/locations", s.handleDriverLocation).Methods("POST")
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) }).Methods("GET")
	s.mux.Handle("/metrics", promhttp.Handler())
	s.mux.HandleFunc("/ws/{driver_id}", s.handleWS)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

type createRideRequest struct {
	DriverID string       `json:"driver_id"`
	Pickup   models.Coord `json:"pickup"`
	Dropoff  models.Coord `json:"dropoff"`
	Seats    int          `json:"seats"`
}

func (s *Server) handleCreateRide(w http.ResponseWriter, r *http.Request) {
	var req createRideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.DriverID == "" {
		http.Error(w, "driver_id required", http.StatusBadRequest)
		return
	}
	if err := req.Pickup.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := req.Dropoff.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	seats := req.Seats
	if seats <= 0 {
		seats = 1
	}
	now := time.Now()
	ride := &models.Ride{
		ID:        uuid.NewString(),
		DriverID:  req.DriverID,
		Pickup:    req.Pickup,
		Dropoff:   req.Dropoff,
		Status:    models.StatusActive,
		Seats:     seats,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Store.SaveRide(ride); err != nil {
		s.logger.Error("save ride failed", "error", err)
		http.Error(w, "could not save ride", http.StatusInternalServerError)
		return
	}
	snapshot := models.CandidateRide{
		ID:       ride.ID,
		DriverID: ride.DriverID,
		Pickup:   ride.Pickup,
		Dropoff:  ride.Dropoff,
		Status:   ride.Status,
	}
	if p, err := s.Profiles.GetProfile(r.Context(), ride.DriverID); err == nil {
		snapshot.Profile = &p
	}
	if err := s.GeoW.Upsert(r.Context(), snapshot); err != nil {
		s.logger.Error("geo upsert failed", "ride_id", ride.ID, "error", err)
	}
	writeJSON(w, http.StatusCreated, map[string]any{"ride_id": ride.ID, "status": ride.Status})
}

func (s *Server) handleGetRide(w http.ResponseWriter, r *http.Request) {
	ride, err := s.Store.GetRide(mux.Vars(r)["ride_id"])
	if errors.Is(err, storage.ErrNotFound) {
		http.Error(w, "ride not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "lookup failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, ride)
}

type rankedCandidate struct {
	RideID        string  `json:"ride_id"`
	DriverID      string  `json:"driver_id"`
	DetourSeconds float64 `json:"detour_seconds"`
	DistanceKm    float64 `json:"distance_km"`
	Score         float64 `json:"score"`
	Approximate   bool    `json:"approximate,omitempty"`
}

func (s *Server) handleFindRides(w http.ResponseWriter, r *http.Request) {
	var req models.MatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	ranked, err := s.Matcher.Find(r.Context(), req)
	if err != nil {
		if errors.Is(err, models.ErrInvalidCoordinates) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.logger.Error("match failed", "error", err)
		http.Error(w, "match failed", http.StatusInternalServerError)
		return
	}
	out := make([]rankedCandidate, 0, len(ranked))
	for _, sc := range ranked {
		out = append(out, rankedCandidate{
			RideID:        sc.Ride.ID,
			DriverID:      sc.Ride.DriverID,
			DetourSeconds: sc.DetourSeconds,
			DistanceKm:    sc.DistanceKm,
			Score:         sc.Score,
			Approximate:   sc.Approximate,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"candidates": out})
}

type acceptRequest struct {
	PassengerID string `json:"passenger_id"`
	Currency    string `json:"currency"`
}

func (s *Server) handleAcceptRide(w http.ResponseWriter, r *http.Request) {
	rideID := mux.Vars(r)["ride_id"]
	var req acceptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.PassengerID == "" {
		http.Error(w, "passenger_id required", http.StatusBadRequest)
		return
	}
	if err := s.Store.AcceptPassenger(rideID, req.PassengerID); err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			http.Error(w, "ride not found", http.StatusNotFound)
		case errors.Is(err, storage.ErrConflict):
			http.Error(w, "ride already claimed", http.StatusConflict)
		default:
			http.Error(w, "accept failed", http.StatusInternalServerError)
		}
		return
	}
	ride, err := s.Store.GetRide(rideID)
	if err != nil {
		http.Error(w, "lookup failed", http.StatusInternalServerError)
		return
	}

	// hold the estimated fare; payment settlement itself happens at completion
	if s.Payments != nil {
		currency := req.Currency
		if currency == "" {
			currency = "gbp"
		}
		if est, err := s.Pricing.Estimate(r.Context(), ride.Pickup, ride.Dropoff, "standard"); err == nil {
			amount := int64(math.Round(est.FinalPrice * 100))
			if pid, err := s.Payments.Hold(r.Context(), amount, currency, req.PassengerID); err == nil {
				ride.PaymentID = pid
				if err := s.Store.UpdateRide(ride); err != nil {
					s.logger.Error("payment id persist failed", "ride_id", rideID, "error", err)
				}
			} else {
				s.logger.Warn("payment hold failed", "ride_id", rideID, "error", err)
			}
		}
	}

	// matched ride leaves the candidate pool
	if err := s.GeoW.Remove(r.Context(), rideID); err != nil {
		s.logger.Error("geo remove failed", "ride_id", rideID, "error", err)
	}

	offer := models.MatchOffer{
		RideID:      rideID,
		DriverID:    ride.DriverID,
		PassengerID: req.PassengerID,
	}
	if err := s.Dispatch.Offer(ride.DriverID, offer); err != nil {
		s.logger.Info("offer not delivered", "driver_id", ride.DriverID, "error", err)
	}
	writeJSON(w, http.StatusOK, map[string]any{"ride_id": rideID, "status": ride.Status})
}

func (s *Server) handleCompleteRide(w http.ResponseWriter, r *http.Request) {
	s.finishRide(w, r, models.StatusCompleted)
}

func (s *Server) handleCancelRide(w http.ResponseWriter, r *http.Request) {
	s.finishRide(w, r, models.StatusCancelled)
}

func (s *Server) finishRide(w http.ResponseWriter, r *http.Request, status string) {
	rideID := mux.Vars(r)["ride_id"]
	ride, err := s.Store.GetRide(rideID)
	if errors.Is(err, storage.ErrNotFound) {
		http.Error(w, "ride not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "lookup failed", http.StatusInternalServerError)
		return
	}
	if ride.PaymentID != "" && s.Payments != nil {
		if status == models.StatusCompleted {
			err = s.Payments.Capture(r.Context(), ride.PaymentID)
		} else {
			err = s.Payments.Cancel(r.Context(), ride.PaymentID)
		}
		if err != nil {
			s.logger.Warn("payment settle failed", "ride_id", rideID, "error", err)
		}
	}
	ride.Status = status
	if err := s.Store.UpdateRide(ride); err != nil {
		http.Error(w, "update failed", http.StatusInternalServerError)
		return
	}
	if err := s.GeoW.Remove(r.Context(), rideID); err != nil {
		s.logger.Error("geo remove failed", "ride_id", rideID, "error", err)
	}
	writeJSON(w, http.StatusOK, map[string]any{"ride_id": rideID, "status": status})
}

type optimizeRouteRequest struct {
	Stops                []models.Stop `json:"stops"`
	Criteria             string        `json:"criteria"`
	FuelEfficiencyKmPerL float64       `json:"fuel_efficiency_km_per_l"`
}

func (s *Server) handleOptimizeRoute(w http.ResponseWriter, r *http.Request) {
	var req optimizeRouteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	plan, err := s.Tour.Optimize(r.Context(), tour.Request{
		Stops:                req.Stops,
		Criteria:             req.Criteria,
		FuelEfficiencyKmPerL: req.FuelEfficiencyKmPerL,
	})
	if err != nil {
		if errors.Is(err, models.ErrInvalidCoordinates) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

type multiRideRequest struct {
	DriverID        string        `json:"driver_id"`
	RideIDs         []string      `json:"ride_ids"`
	CurrentLocation *models.Coord `json:"current_location,omitempty"`
	Criteria        string        `json:"criteria"`
}

func (s *Server) handleOptimizeMultiRide(w http.ResponseWriter, r *http.Request) {
	var req multiRideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.DriverID == "" || len(req.RideIDs) == 0 {
		http.Error(w, "driver_id and ride_ids required", http.StatusBadRequest)
		return
	}
	stops := []models.Stop{}
	if req.CurrentLocation != nil {
		stops = append(stops, models.Stop{Type: models.StopCurrentLocation, Coord: *req.CurrentLocation})
	}
	for _, id := range req.RideIDs {
		ride, err := s.Store.GetRide(id)
		if errors.Is(err, storage.ErrNotFound) {
			http.Error(w, "ride not found: "+id, http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, "lookup failed", http.StatusInternalServerError)
			return
		}
		if ride.DriverID != req.DriverID {
			http.Error(w, "ride not owned by driver: "+id, http.StatusForbidden)
			return
		}
		stops = append(stops,
			models.Stop{Type: models.StopPickup, Coord: ride.Pickup, RideID: ride.ID},
			models.Stop{Type: models.StopDropoff, Coord: ride.Dropoff, RideID: ride.ID},
		)
	}
	plan, err := s.Tour.Optimize(r.Context(), tour.Request{Stops: stops, Criteria: req.Criteria})
	if err != nil {
		if errors.Is(err, models.ErrInvalidCoordinates) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

type pricingRequest struct {
	Pickup   models.Coord `json:"pickup"`
	Dropoff  models.Coord `json:"dropoff"`
	RideType string       `json:"ride_type"`
}

func (s *Server) handlePricingEstimate(w http.ResponseWriter, r *http.Request) {
	var req pricingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.RideType == "" {
		req.RideType = "standard"
	}
	est, err := s.Pricing.Estimate(r.Context(), req.Pickup, req.Dropoff, req.RideType)
	if err != nil {
		if errors.Is(err, models.ErrInvalidCoordinates) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, "estimate failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, est)
}

func (s *Server) handleDriverLocation(w http.ResponseWriter, r *http.Request) {
	var d models.Driver
	if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := d.Loc.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	d.Online = true
	d.Updated = time.Now()
	if s.Kafka != nil {
		if err := s.Kafka.PublishLocation(d); err != nil {
			s.logger.Warn("beacon publish failed", "driver_id", d.ID, "error", err)
		}
	}
	observability.DriversOnline.Inc()
	w.WriteHeader(http.StatusNoContent)
}

var upgrader = websocket.Upgrader{}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["driver_id"]
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		http.Error(w, "upgrade failed", http.StatusBadRequest)
		return
	}
	s.WSReg.Add(id, conn)
	// drain the connection; the read error on disconnect retires the session
	go func() {
		defer s.WSReg.Remove(id)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

package storage

import (
	"database/sql"
	"time"

	"github.com/lib/pq"

	"github.com/example/ridepool/internal/models"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (p *PostgresStore) SaveRide(r *models.Ride) error {
	_, err := p.db.Exec(`INSERT INTO rides(id, driver_id, passenger_id, pickup_lat, pickup_lon, dropoff_lat, dropoff_lon, status, seats, payment_id, created_at, updated_at)
		VALUES($1,$2,NULLIF($3,''),$4,$5,$6,$7,$8,$9,NULLIF($10,''),$11,$12)`,
		r.ID, r.DriverID, r.PassengerID, r.Pickup.Lat, r.Pickup.Lon, r.Dropoff.Lat, r.Dropoff.Lon, r.Status, r.Seats, r.PaymentID, r.CreatedAt, r.UpdatedAt)
	return err
}

func (p *PostgresStore) UpdateRide(r *models.Ride) error {
	res, err := p.db.Exec(`UPDATE rides SET passenger_id=NULLIF($1,''), status=$2, payment_id=NULLIF($3,''), updated_at=$4 WHERE id=$5`,
		r.PassengerID, r.Status, r.PaymentID, time.Now(), r.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresStore) GetRide(id string) (*models.Ride, error) {
	row := p.db.QueryRow(`SELECT id, driver_id, COALESCE(passenger_id,''), pickup_lat, pickup_lon, dropoff_lat, dropoff_lon, status, seats, COALESCE(payment_id,''), created_at, updated_at FROM rides WHERE id=$1`, id)
	return scanRide(row)
}

func (p *PostgresStore) AcceptPassenger(rideID, passengerID string) error {
	// single guarded update keeps the transition atomic under concurrency
	res, err := p.db.Exec(`UPDATE rides SET passenger_id=$1, status=$2, updated_at=$3
		WHERE id=$4 AND ((status=$5 AND passenger_id IS NULL) OR (status=$2 AND passenger_id=$1))`,
		passengerID, models.StatusPending, time.Now(), rideID, models.StatusActive)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := p.GetRide(rideID); err != nil {
			return err
		}
		return ErrConflict
	}
	return nil
}

func (p *PostgresStore) ListByDriver(driverID string, statuses ...string) ([]*models.Ride, error) {
	query := `SELECT id, driver_id, COALESCE(passenger_id,''), pickup_lat, pickup_lon, dropoff_lat, dropoff_lon, status, seats, COALESCE(payment_id,''), created_at, updated_at FROM rides WHERE driver_id=$1`
	args := []interface{}{driverID}
	if len(statuses) > 0 {
		query += ` AND status = ANY($2)`
		args = append(args, pq.Array(statuses))
	}
	rows, err := p.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.Ride
	for rows.Next() {
		r, err := scanRide(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRide(row rowScanner) (*models.Ride, error) {
	var r models.Ride
	err := row.Scan(&r.ID, &r.DriverID, &r.PassengerID, &r.Pickup.Lat, &r.Pickup.Lon,
		&r.Dropoff.Lat, &r.Dropoff.Lon, &r.Status, &r.Seats, &r.PaymentID, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

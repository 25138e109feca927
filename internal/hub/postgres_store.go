package hub

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/EternisAI/probe-relay/internal/iothub"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

const (
	createDeviceSQL = `
INSERT INTO devices (id, primary_key, secondary_key, status)
VALUES ($1, $2, $3, $4)
RETURNING created_at`

	getDeviceSQL = `
SELECT id, primary_key, secondary_key, status, created_at, last_seen_at
FROM devices
WHERE id = $1`

	listDevicesSQL = `
SELECT id, primary_key, secondary_key, status, created_at, last_seen_at
FROM devices
ORDER BY created_at, id`

	insertEventSQL = `
WITH seen AS (
	UPDATE devices SET last_seen_at = now() WHERE id = $1 RETURNING id
)
INSERT INTO probe_events (device_id, mac_address, ssid, random_mac)
SELECT id, $2::text, $3::bytea, $4::boolean FROM seen
RETURNING id, received_at`

	listEventsSQL = `
SELECT id, device_id, mac_address, ssid, random_mac, received_at
FROM probe_events
WHERE device_id = $1
ORDER BY received_at DESC, id DESC
LIMIT $2`

	statsSQL = `
SELECT
	(SELECT count(*) FROM devices),
	count(*),
	count(*) FILTER (WHERE random_mac)
FROM probe_events`
)

// PostgresStore is a Store backed by a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) CreateDevice(ctx context.Context, device Device) (*Device, error) {
	err := s.pool.QueryRow(ctx, createDeviceSQL,
		device.ID, device.PrimaryKey, device.SecondaryKey, string(device.Status),
	).Scan(&device.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, ErrDeviceExists
		}
		return nil, fmt.Errorf("create device: %w", err)
	}
	device.LastSeenAt = nil
	return &device, nil
}

func (s *PostgresStore) GetDevice(ctx context.Context, id string) (*Device, error) {
	device, err := scanDevice(s.pool.QueryRow(ctx, getDeviceSQL, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("get device: %w", err)
	}
	return device, nil
}

func (s *PostgresStore) ListDevices(ctx context.Context) ([]Device, error) {
	rows, err := s.pool.Query(ctx, listDevicesSQL)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	defer rows.Close()

	result := []Device{}
	for rows.Next() {
		device, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scan device: %w", err)
		}
		result = append(result, *device)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	return result, nil
}

// InsertEvent stores the event and bumps the device's last_seen_at in one
// statement.
func (s *PostgresStore) InsertEvent(ctx context.Context, event Event) (*Event, error) {
	err := s.pool.QueryRow(ctx, insertEventSQL,
		event.DeviceID, event.MACAddress, []byte(event.SSID), event.RandomMAC,
	).Scan(&event.ID, &event.ReceivedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.Is(err, pgx.ErrNoRows) || (errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("insert event: %w", err)
	}
	return &event, nil
}

func (s *PostgresStore) ListEvents(ctx context.Context, deviceID string, limit int) ([]Event, error) {
	if _, err := s.GetDevice(ctx, deviceID); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, listEventsSQL, deviceID, ClampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	result := []Event{}
	for rows.Next() {
		var e Event
		var ssid []byte
		if err := rows.Scan(&e.ID, &e.DeviceID, &e.MACAddress, &ssid, &e.RandomMAC, &e.ReceivedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.SSID = string(ssid)
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return result, nil
}

func (s *PostgresStore) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	if err := s.pool.QueryRow(ctx, statsSQL).Scan(&stats.Devices, &stats.Events, &stats.RandomEvents); err != nil {
		return Stats{}, fmt.Errorf("stats: %w", err)
	}
	return stats, nil
}

func scanDevice(row pgx.Row) (*Device, error) {
	var d Device
	var status string
	var lastSeen *time.Time
	if err := row.Scan(&d.ID, &d.PrimaryKey, &d.SecondaryKey, &status, &d.CreatedAt, &lastSeen); err != nil {
		return nil, err
	}
	d.Status = iothub.DeviceStatus(status)
	d.LastSeenAt = lastSeen
	return &d, nil
}

package device

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/primisapp/primis-backend/internal/infrastructure/database"
)

// DefaultDataLimit is the page size used when a caller does not supply a
// positive limit. Callers may override it with any positive value.
const DefaultDataLimit = 100

// Repository defines the interface for device persistence.
type Repository interface {
	// List returns all devices, newest first.
	List(ctx context.Context) ([]Device, error)

	// GetByIMEI retrieves a device by its IMEI.
	// Returns ErrDeviceNotFound if no such device exists.
	GetByIMEI(ctx context.Context, imei string) (*Device, error)

	// Create inserts a new device.
	// Returns ErrDeviceExists if the IMEI is already registered.
	Create(ctx context.Context, imei string, status Status) (*Device, error)

	// CreateIfAbsent returns the device for imei, creating it with the given
	// status if it does not exist yet. Safe under concurrent callers: exactly
	// one row per IMEI ever exists.
	CreateIfAbsent(ctx context.Context, imei string, status Status) (*Device, error)

	// UpdateStatus sets the device status and returns the updated device.
	// Returns ErrDeviceNotFound if the IMEI is unknown.
	UpdateStatus(ctx context.Context, imei string, status Status) (*Device, error)

	// Delete removes a device and, via cascade, its data records.
	// Returns ErrDeviceNotFound if the ID is unknown.
	Delete(ctx context.Context, id int64) error

	// AppendData stores one data record against the device with the given
	// IMEI. Returns ErrDeviceNotFound if the device does not exist.
	AppendData(ctx context.Context, imei, topic string, payload Payload) (*DataRecord, error)

	// DataByIMEI returns up to limit data records for a device, newest
	// first. Non-positive limits fall back to DefaultDataLimit. An unknown
	// IMEI yields an empty slice, not an error.
	DataByIMEI(ctx context.Context, imei string, limit int) ([]DataRecord, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *database.DB
}

// NewSQLiteRepository creates a new SQLite-backed device repository.
func NewSQLiteRepository(db *database.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// List returns all devices ordered newest first.
func (r *SQLiteRepository) List(ctx context.Context) ([]Device, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, imei, status, created_at
		FROM devices
		ORDER BY created_at DESC, id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	defer rows.Close() //nolint:errcheck // read-only rows

	devices := []Device{}
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		devices = append(devices, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate devices: %w", err)
	}

	return devices, nil
}

// GetByIMEI retrieves a device by IMEI.
func (r *SQLiteRepository) GetByIMEI(ctx context.Context, imei string) (*Device, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, imei, status, created_at
		FROM devices
		WHERE imei = ?
	`, imei)

	d, err := scanDevice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: imei %q", ErrDeviceNotFound, imei)
	}
	if err != nil {
		return nil, err
	}

	return d, nil
}

// Create inserts a new device row.
func (r *SQLiteRepository) Create(ctx context.Context, imei string, status Status) (*Device, error) {
	if imei == "" {
		return nil, ErrInvalidIMEI
	}
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	now := time.Now().UTC().Format(time.RFC3339)

	result, err := r.db.ExecContext(ctx, `
		INSERT INTO devices (imei, status, created_at)
		VALUES (?, ?, ?)
	`, imei, string(status), now)
	if err != nil {
		if isUniqueConstraintError(err) {
			return nil, fmt.Errorf("%w: imei %q", ErrDeviceExists, imei)
		}
		return nil, fmt.Errorf("failed to create device: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get device id: %w", err)
	}

	createdAt, _ := time.Parse(time.RFC3339, now)

	return &Device{
		ID:        id,
		IMEI:      imei,
		Status:    status,
		CreatedAt: createdAt,
	}, nil
}

// CreateIfAbsent looks up or provisions the device for imei.
//
// The insert uses ON CONFLICT DO NOTHING so that two callers racing on the
// same unseen IMEI both succeed; the UNIQUE index guarantees a single row,
// and the follow-up read returns it to whichever caller lost the race.
func (r *SQLiteRepository) CreateIfAbsent(ctx context.Context, imei string, status Status) (*Device, error) {
	if imei == "" {
		return nil, ErrInvalidIMEI
	}
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	now := time.Now().UTC().Format(time.RFC3339)

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO devices (imei, status, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(imei) DO NOTHING
	`, imei, string(status), now)
	if err != nil {
		return nil, fmt.Errorf("failed to provision device: %w", err)
	}

	return r.GetByIMEI(ctx, imei)
}

// UpdateStatus sets the status of the device with the given IMEI.
func (r *SQLiteRepository) UpdateStatus(ctx context.Context, imei string, status Status) (*Device, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE devices SET status = ? WHERE imei = ?
	`, string(status), imei)
	if err != nil {
		return nil, fmt.Errorf("failed to update device status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return nil, fmt.Errorf("%w: imei %q", ErrDeviceNotFound, imei)
	}

	return r.GetByIMEI(ctx, imei)
}

// Delete removes a device by ID. Data records go with it (cascade).
func (r *SQLiteRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM devices WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete device: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: id %d", ErrDeviceNotFound, id)
	}

	return nil
}

// AppendData stores one record in the device's message log.
func (r *SQLiteRepository) AppendData(ctx context.Context, imei, topic string, payload Payload) (*DataRecord, error) {
	d, err := r.GetByIMEI(ctx, imei)
	if err != nil {
		return nil, err
	}

	if payload == nil {
		payload = Payload{}
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)

	result, err := r.db.ExecContext(ctx, `
		INSERT INTO device_data (device_id, topic, payload, created_at)
		VALUES (?, ?, ?, ?)
	`, d.ID, topic, string(payloadJSON), now)
	if err != nil {
		return nil, fmt.Errorf("failed to append device data: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get data record id: %w", err)
	}

	createdAt, _ := time.Parse(time.RFC3339, now)

	return &DataRecord{
		ID:        id,
		DeviceID:  d.ID,
		Topic:     topic,
		Payload:   payload,
		CreatedAt: createdAt,
	}, nil
}

// DataByIMEI returns the most recent data records for a device.
//
// A zero or negative limit falls back to DefaultDataLimit; any positive
// limit is honoured as given. An IMEI with no device (or no data) yields
// an empty slice.
func (r *SQLiteRepository) DataByIMEI(ctx context.Context, imei string, limit int) ([]DataRecord, error) {
	if limit <= 0 {
		limit = DefaultDataLimit
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT dd.id, dd.device_id, dd.topic, dd.payload, dd.created_at
		FROM device_data dd
		JOIN devices d ON d.id = dd.device_id
		WHERE d.imei = ?
		ORDER BY dd.created_at DESC, dd.id DESC
		LIMIT ?
	`, imei, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query device data: %w", err)
	}
	defer rows.Close() //nolint:errcheck // read-only rows

	records := []DataRecord{}
	for rows.Next() {
		var (
			rec         DataRecord
			payloadJSON string
			createdAt   string
		)
		if err := rows.Scan(&rec.ID, &rec.DeviceID, &rec.Topic, &payloadJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan data record: %w", err)
		}
		if err := json.Unmarshal([]byte(payloadJSON), &rec.Payload); err != nil {
			// A corrupt payload should not poison the whole page; surface
			// the raw text instead.
			rec.Payload = Payload{"message": payloadJSON}
		}
		rec.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate data records: %w", err)
	}

	return records, nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for shared scan logic.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanDevice(row rowScanner) (*Device, error) {
	var (
		d         Device
		status    string
		createdAt string
	)
	if err := row.Scan(&d.ID, &d.IMEI, &status, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan device: %w", err)
	}

	d.Status = Status(status)
	d.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)

	return &d, nil
}

// isUniqueConstraintError detects SQLite unique constraint violations.
func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

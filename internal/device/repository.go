package device

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository defines the interface for device persistence operations.
// This abstraction allows for different implementations (SQLite, mock)
// and enables unit testing without database dependencies.
type Repository interface {
	// GetByID retrieves a device by its UUID.
	// Returns ErrNotFound if the device does not exist.
	GetByID(ctx context.Context, id string) (*Record, error)

	// GetByMAC retrieves a device by its normalised MAC.
	// Returns ErrNotFound if the device does not exist.
	GetByMAC(ctx context.Context, mac string) (*Record, error)

	// List retrieves all adopted devices ordered by name.
	List(ctx context.Context) ([]*Record, error)

	// Create inserts a new device.
	// Returns ErrExists if the MAC is already adopted.
	Create(ctx context.Context, rec *Record) error

	// Update modifies an existing device.
	// Returns ErrNotFound if the device does not exist.
	Update(ctx context.Context, rec *Record) error

	// Delete removes a device by UUID.
	// Returns ErrNotFound if the device does not exist.
	Delete(ctx context.Context, id string) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// The db parameter should be an open SQLite connection.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const recordColumns = `id, mac, name, topic_up, topic_down, config_id,
	broker_host, broker_port, broker_username, broker_password, client_id,
	report_interval, created_at, updated_at`

// GetByID retrieves a device by its UUID.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Record, error) {
	query := `SELECT ` + recordColumns + ` FROM devices WHERE id = ?`

	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying device by id: %w", err)
	}
	return rec, nil
}

// GetByMAC retrieves a device by its normalised MAC.
func (r *SQLiteRepository) GetByMAC(ctx context.Context, mac string) (*Record, error) {
	query := `SELECT ` + recordColumns + ` FROM devices WHERE mac = ?`

	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, mac))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying device by mac: %w", err)
	}
	return rec, nil
}

// List retrieves all adopted devices ordered by name.
func (r *SQLiteRepository) List(ctx context.Context) ([]*Record, error) {
	query := `SELECT ` + recordColumns + ` FROM devices ORDER BY name`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing devices: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}
	return records, nil
}

// Create inserts a new device.
func (r *SQLiteRepository) Create(ctx context.Context, rec *Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO devices (` + recordColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		rec.ID, rec.MAC, rec.Name, rec.TopicUp, rec.TopicDown, rec.ConfigID,
		rec.Broker.Host, rec.Broker.Port, rec.Broker.Username, rec.Broker.Password, rec.Broker.ClientID,
		rec.ReportInterval,
		rec.CreatedAt.UTC().Format(time.RFC3339),
		rec.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrExists
		}
		return fmt.Errorf("inserting device: %w", err)
	}
	return nil
}

// Update modifies an existing device.
func (r *SQLiteRepository) Update(ctx context.Context, rec *Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	rec.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE devices SET
			mac = ?, name = ?, topic_up = ?, topic_down = ?, config_id = ?,
			broker_host = ?, broker_port = ?, broker_username = ?,
			broker_password = ?, client_id = ?, report_interval = ?,
			updated_at = ?
		WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		rec.MAC, rec.Name, rec.TopicUp, rec.TopicDown, rec.ConfigID,
		rec.Broker.Host, rec.Broker.Port, rec.Broker.Username,
		rec.Broker.Password, rec.Broker.ClientID, rec.ReportInterval,
		rec.UpdatedAt.Format(time.RFC3339),
		rec.ID,
	)
	if err != nil {
		return fmt.Errorf("updating device: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking update result: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a device by UUID.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM devices WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting device: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete result: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// rowScanner abstracts sql.Row and sql.Rows for scanRecord.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanRecord scans a device row into a Record.
func scanRecord(row rowScanner) (*Record, error) {
	var rec Record
	var createdAt, updatedAt string

	err := row.Scan(
		&rec.ID, &rec.MAC, &rec.Name, &rec.TopicUp, &rec.TopicDown, &rec.ConfigID,
		&rec.Broker.Host, &rec.Broker.Port, &rec.Broker.Username,
		&rec.Broker.Password, &rec.Broker.ClientID,
		&rec.ReportInterval, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	// Timestamps are written by us in RFC3339; parse errors leave zero values
	rec.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // Format is controlled
	rec.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // Format is controlled

	return &rec, nil
}

// isUniqueViolation reports whether the error is a SQLite unique
// constraint failure.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

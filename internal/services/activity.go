package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/HerbHall/devicepulse/internal/store"
	"github.com/HerbHall/devicepulse/pkg/models"
)

// Activity is the most recent sign of life recorded for a device.
type Activity struct {
	TenantID     models.TenantID `json:"tenant_id"`
	DeviceID     models.DeviceID `json:"device_id"`
	LastActivity time.Time       `json:"last_activity"`
}

// ActivityRepository stores one last-activity timestamp per device. Older
// timestamps never overwrite newer ones, so out-of-order heartbeats are safe.
type ActivityRepository interface {
	// Touch records activity for a device at the given time.
	Touch(ctx context.Context, tenantID models.TenantID, deviceID models.DeviceID, at time.Time) error

	// Get returns the recorded activity, or ErrNotFound if none was recorded.
	Get(ctx context.Context, tenantID models.TenantID, deviceID models.DeviceID) (*Activity, error)
}

// Compile-time interface guard.
var _ ActivityRepository = (*SQLiteActivityRepository)(nil)

// SQLiteActivityRepository implements ActivityRepository on the
// device_activity table.
type SQLiteActivityRepository struct {
	db *sql.DB
}

var activityMigrations = []store.Migration{
	{
		Version:     1,
		Description: "create device_activity table",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`CREATE TABLE device_activity (
				tenant_id     TEXT    NOT NULL,
				device_id     TEXT    NOT NULL,
				last_activity INTEGER NOT NULL,
				PRIMARY KEY (tenant_id, device_id)
			)`)
			return err
		},
	},
}

// NewSQLiteActivityRepository runs the activity migrations and returns an
// ActivityRepository over st.
func NewSQLiteActivityRepository(ctx context.Context, st *store.SQLiteStore) (*SQLiteActivityRepository, error) {
	if err := st.Migrate(ctx, "activity", activityMigrations); err != nil {
		return nil, fmt.Errorf("activity migrations: %w", err)
	}
	return &SQLiteActivityRepository{db: st.DB()}, nil
}

func (r *SQLiteActivityRepository) Touch(ctx context.Context, tenantID models.TenantID, deviceID models.DeviceID, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO device_activity (tenant_id, device_id, last_activity)
		VALUES (?, ?, ?)
		ON CONFLICT (tenant_id, device_id)
		DO UPDATE SET last_activity = MAX(last_activity, excluded.last_activity)`,
		tenantID.String(), deviceID.String(), at.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("touch device %s: %w", deviceID, err)
	}
	return nil
}

func (r *SQLiteActivityRepository) Get(ctx context.Context, tenantID models.TenantID, deviceID models.DeviceID) (*Activity, error) {
	var ms int64
	err := r.db.QueryRowContext(ctx,
		`SELECT last_activity FROM device_activity WHERE tenant_id = ? AND device_id = ?`,
		tenantID.String(), deviceID.String(),
	).Scan(&ms)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get activity %s: %w", deviceID, err)
	}
	return &Activity{
		TenantID:     tenantID,
		DeviceID:     deviceID,
		LastActivity: time.UnixMilli(ms).UTC(),
	}, nil
}

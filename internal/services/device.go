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

// DeviceRepository provides tenant-scoped access to registered devices.
type DeviceRepository interface {
	// Get returns the device with the given ID owned by tenantID.
	// A device owned by another tenant yields ErrNotFound.
	Get(ctx context.Context, tenantID models.TenantID, deviceID models.DeviceID) (*models.Device, error)

	// Create inserts a device. A zero ID is replaced with a random one and a
	// zero CreatedTime with the current time.
	Create(ctx context.Context, device *models.Device) error
}

// Compile-time interface guard.
var _ DeviceRepository = (*SQLiteDeviceRepository)(nil)

// SQLiteDeviceRepository implements DeviceRepository on the devices table.
type SQLiteDeviceRepository struct {
	db *sql.DB
}

var deviceMigrations = []store.Migration{
	{
		Version:     1,
		Description: "create devices table",
		Up: func(tx *sql.Tx) error {
			stmts := []string{
				`CREATE TABLE devices (
					id           TEXT    PRIMARY KEY,
					tenant_id    TEXT    NOT NULL,
					customer_id  TEXT    NOT NULL DEFAULT '',
					name         TEXT    NOT NULL,
					type         TEXT    NOT NULL DEFAULT 'default',
					label        TEXT    NOT NULL DEFAULT '',
					created_time INTEGER NOT NULL
				)`,
				`CREATE INDEX idx_devices_tenant ON devices(tenant_id)`,
			}
			for _, stmt := range stmts {
				if _, err := tx.Exec(stmt); err != nil {
					return err
				}
			}
			return nil
		},
	},
}

// NewSQLiteDeviceRepository runs the registry migrations and returns a
// DeviceRepository over st.
func NewSQLiteDeviceRepository(ctx context.Context, st *store.SQLiteStore) (*SQLiteDeviceRepository, error) {
	if err := st.Migrate(ctx, "registry", deviceMigrations); err != nil {
		return nil, fmt.Errorf("registry migrations: %w", err)
	}
	return &SQLiteDeviceRepository{db: st.DB()}, nil
}

func (r *SQLiteDeviceRepository) Get(ctx context.Context, tenantID models.TenantID, deviceID models.DeviceID) (*models.Device, error) {
	var (
		d                    models.Device
		id, tenant, customer string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, customer_id, name, type, label, created_time
		FROM devices WHERE id = ? AND tenant_id = ?`,
		deviceID.String(), tenantID.String(),
	).Scan(&id, &tenant, &customer, &d.Name, &d.Type, &d.Label, &d.CreatedTime)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get device %s: %w", deviceID, err)
	}

	if d.ID, err = models.ParseDeviceID(id); err != nil {
		return nil, fmt.Errorf("get device %s: %w", deviceID, err)
	}
	if d.TenantID, err = models.ParseTenantID(tenant); err != nil {
		return nil, fmt.Errorf("get device %s: %w", deviceID, err)
	}
	if d.CustomerID, err = models.ParseCustomerID(customer); err != nil {
		return nil, fmt.Errorf("get device %s: %w", deviceID, err)
	}
	return &d, nil
}

func (r *SQLiteDeviceRepository) Create(ctx context.Context, device *models.Device) error {
	if device.ID == (models.DeviceID{}) {
		device.ID = models.NewDeviceID()
	}
	if device.CreatedTime == 0 {
		device.CreatedTime = time.Now().UnixMilli()
	}
	if device.Type == "" {
		device.Type = "default"
	}

	customer := ""
	if !device.CustomerID.IsZero() {
		customer = device.CustomerID.String()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO devices (id, tenant_id, customer_id, name, type, label, created_time)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		device.ID.String(), device.TenantID.String(), customer,
		device.Name, device.Type, device.Label, device.CreatedTime,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("create device: %w", err)
	}
	return nil
}

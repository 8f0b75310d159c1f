package testutil

import (
	"time"

	"github.com/HerbHall/devicepulse/pkg/models"
)

// NewDevice returns a Device owned by a fresh tenant and created at the
// default Clock time. Override fields with the With* options.
func NewDevice(opts ...func(*models.Device)) models.Device {
	d := models.Device{
		ID:          models.NewDeviceID(),
		TenantID:    models.NewTenantID(),
		Name:        "test-device",
		Type:        "default",
		CreatedTime: Epoch.UnixMilli(),
	}
	for _, opt := range opts {
		opt(&d)
	}
	return d
}

// WithTenant sets the owning tenant.
func WithTenant(id models.TenantID) func(*models.Device) {
	return func(d *models.Device) { d.TenantID = id }
}

// WithCustomer assigns the device to a customer.
func WithCustomer(id models.CustomerID) func(*models.Device) {
	return func(d *models.Device) { d.CustomerID = id }
}

// WithName sets the device name.
func WithName(name string) func(*models.Device) {
	return func(d *models.Device) { d.Name = name }
}

// WithCreatedAt sets CreatedTime from t.
func WithCreatedAt(t time.Time) func(*models.Device) {
	return func(d *models.Device) { d.CreatedTime = t.UnixMilli() }
}

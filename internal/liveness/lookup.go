package liveness

import (
	"context"
	"errors"

	"github.com/HerbHall/devicepulse/internal/services"
	"github.com/HerbHall/devicepulse/pkg/models"
	"go.uber.org/zap"
)

// Registry is the read side of the device registry that the lookup needs.
// services.DeviceRepository satisfies it.
type Registry interface {
	Get(ctx context.Context, tenantID models.TenantID, deviceID models.DeviceID) (*models.Device, error)
}

// LookupKind classifies the outcome of a DeviceLookup.
type LookupKind int

const (
	// LookupFound means Device holds the tenant's record.
	LookupFound LookupKind = iota
	// LookupNotFound means the tenant has no such device.
	LookupNotFound
	// LookupFault means the registry failed; Err holds the cause.
	LookupFault
)

func (k LookupKind) String() string {
	switch k {
	case LookupFound:
		return "found"
	case LookupNotFound:
		return "not_found"
	case LookupFault:
		return "fault"
	default:
		return "unknown"
	}
}

// LookupResult is the outcome of resolving a (tenant, device) pair.
// Device is non-nil only for LookupFound; Err is non-nil only for LookupFault.
type LookupResult struct {
	Kind   LookupKind
	Device *models.Device
	Err    error
}

// DeviceLookup resolves devices against the registry. It never hands a
// registry error to its caller as a record: faults come back as LookupFault
// and are logged here.
type DeviceLookup struct {
	registry Registry
	logger   *zap.Logger
}

// NewDeviceLookup creates a DeviceLookup over registry.
func NewDeviceLookup(registry Registry, logger *zap.Logger) *DeviceLookup {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DeviceLookup{registry: registry, logger: logger}
}

// Resolve returns the device identified by deviceID within tenantID.
// A record belonging to another tenant is reported as not found.
func (l *DeviceLookup) Resolve(ctx context.Context, tenantID models.TenantID, deviceID models.DeviceID) LookupResult {
	d, err := l.registry.Get(ctx, tenantID, deviceID)
	switch {
	case errors.Is(err, services.ErrNotFound):
		return LookupResult{Kind: LookupNotFound}
	case err != nil:
		l.logger.Warn("device lookup failed",
			zap.String("tenant_id", tenantID.String()),
			zap.String("device_id", deviceID.String()),
			zap.Error(err),
		)
		return LookupResult{Kind: LookupFault, Err: err}
	case d == nil:
		return LookupResult{Kind: LookupNotFound}
	case d.TenantID != tenantID:
		l.logger.Warn("registry returned device of another tenant",
			zap.String("tenant_id", tenantID.String()),
			zap.String("device_id", deviceID.String()),
		)
		return LookupResult{Kind: LookupNotFound}
	}
	return LookupResult{Kind: LookupFound, Device: d}
}

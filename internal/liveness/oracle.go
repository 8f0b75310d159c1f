package liveness

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/HerbHall/devicepulse/internal/services"
	"github.com/HerbHall/devicepulse/pkg/models"
)

// ErrNoActivity is returned by an ActivityOracle that has no usable
// timestamp for a device.
var ErrNoActivity = errors.New("no activity timestamp")

// ActivityOracle reports when a resolved device was last active. It is the
// seam for replacing the registration-time heuristic with real connectivity
// state.
type ActivityOracle interface {
	LastActivity(ctx context.Context, d models.Device) (time.Time, error)
}

// Activity source names accepted by NewOracle.
const (
	SourceCreatedTime = "created_time"
	SourceHeartbeat   = "heartbeat"
)

// CreatedTimeOracle treats the registration time as the last activity.
// It is a placeholder: a freshly registered device looks online for one
// window and offline afterwards, regardless of actual connectivity.
type CreatedTimeOracle struct{}

func (CreatedTimeOracle) LastActivity(_ context.Context, d models.Device) (time.Time, error) {
	if d.CreatedTime <= 0 {
		return time.Time{}, fmt.Errorf("device %s: %w", d.ID, ErrNoActivity)
	}
	return d.CreatedAt(), nil
}

// RecordedActivityOracle reads heartbeat timestamps from the activity
// repository. Devices that never reported fall back to their registration
// time.
type RecordedActivityOracle struct {
	activity services.ActivityRepository
	fallback CreatedTimeOracle
}

// NewRecordedActivityOracle creates an oracle over repo.
func NewRecordedActivityOracle(repo services.ActivityRepository) *RecordedActivityOracle {
	return &RecordedActivityOracle{activity: repo}
}

func (o *RecordedActivityOracle) LastActivity(ctx context.Context, d models.Device) (time.Time, error) {
	a, err := o.activity.Get(ctx, d.TenantID, d.ID)
	if errors.Is(err, services.ErrNotFound) {
		return o.fallback.LastActivity(ctx, d)
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("read activity: %w", err)
	}
	return a.LastActivity, nil
}

// NewOracle returns the oracle named by source. An empty source selects
// SourceCreatedTime; SourceHeartbeat requires repo.
func NewOracle(source string, repo services.ActivityRepository) (ActivityOracle, error) {
	switch source {
	case "", SourceCreatedTime:
		return CreatedTimeOracle{}, nil
	case SourceHeartbeat:
		if repo == nil {
			return nil, errors.New("heartbeat activity source needs an activity repository")
		}
		return NewRecordedActivityOracle(repo), nil
	default:
		return nil, fmt.Errorf("unknown activity source %q", source)
	}
}

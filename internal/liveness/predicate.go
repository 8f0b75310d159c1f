package liveness

import (
	"time"

	"github.com/HerbHall/devicepulse/pkg/models"
)

// IsOnline reports whether activity at lastSeen is recent enough at now.
// The device stays online up to and including the window boundary; a
// lastSeen in the future (clock skew) also counts as online. A nil lastSeen
// is offline. A non-positive window falls back to DefaultWindow.
func IsOnline(lastSeen *time.Time, now time.Time, window time.Duration) bool {
	if lastSeen == nil {
		return false
	}
	if window <= 0 {
		window = DefaultWindow
	}
	age := now.UnixMilli() - lastSeen.UnixMilli()
	return age <= window.Milliseconds()
}

// IsDeviceOnline applies IsOnline to the device's CreatedTime, the default
// stand-in for last activity. A nil device is offline.
func IsDeviceOnline(d *models.Device, now time.Time, window time.Duration) bool {
	if d == nil {
		return false
	}
	created := d.CreatedAt()
	return IsOnline(&created, now, window)
}

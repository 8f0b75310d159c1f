package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/HerbHall/devicepulse/pkg/models"
	"go.uber.org/zap"
)

func TestLogger_DebugEnabled(t *testing.T) {
	l := Logger(t)
	if !l.Core().Enabled(zap.DebugLevel) {
		t.Error("expected debug level enabled")
	}
	l.Debug("attached to test output")
}

func TestNewStore_Usable(t *testing.T) {
	db := NewStore(t)
	if db == nil {
		t.Fatal("expected non-nil store")
	}
	if err := db.DB().PingContext(context.Background()); err != nil {
		t.Fatalf("PingContext: %v", err)
	}
}

func TestClock_DefaultsToEpoch(t *testing.T) {
	c := NewClock()
	if !c.Now().Equal(Epoch) {
		t.Errorf("Now = %v, want %v", c.Now(), Epoch)
	}
	if c.NowMillis() != 1735689600000 {
		t.Errorf("NowMillis = %d, want 1735689600000", c.NowMillis())
	}
}

func TestClock_MillisecondResolution(t *testing.T) {
	c := NewClock(Epoch.Add(1500 * time.Microsecond))
	if got := c.NowMillis() - Epoch.UnixMilli(); got != 1 {
		t.Errorf("sub-millisecond part kept: offset = %dms, want 1", got)
	}
	// Round-trips through epoch millis unchanged.
	if !time.UnixMilli(c.NowMillis()).Equal(c.Now()) {
		t.Error("Now does not match NowMillis")
	}
}

func TestClock_Advance(t *testing.T) {
	c := NewClock()
	start := c.Now()
	c.Advance(5 * time.Minute)
	if got := c.Now().Sub(start); got != 5*time.Minute {
		t.Errorf("Advance: elapsed = %v, want 5m", got)
	}
}

func TestClock_Set(t *testing.T) {
	c := NewClock()
	target := time.Date(2030, 6, 15, 12, 0, 0, 0, time.UTC)
	c.Set(target)
	if !c.Now().Equal(target) {
		t.Errorf("Set: got %v, want %v", c.Now(), target)
	}
}

func TestNewDevice_Defaults(t *testing.T) {
	d := NewDevice()
	if d.ID == (models.DeviceID{}) {
		t.Error("expected non-zero ID")
	}
	if d.TenantID == (models.TenantID{}) {
		t.Error("expected non-zero TenantID")
	}
	if want := Epoch.UnixMilli(); d.CreatedTime != want {
		t.Errorf("CreatedTime = %d, want %d", d.CreatedTime, want)
	}
}

func TestNewDevice_WithOptions(t *testing.T) {
	tenant := models.NewTenantID()
	created := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

	d := NewDevice(
		WithTenant(tenant),
		WithName("boiler"),
		WithCreatedAt(created),
	)
	if d.TenantID != tenant {
		t.Errorf("TenantID = %s, want %s", d.TenantID, tenant)
	}
	if d.Name != "boiler" {
		t.Errorf("Name = %q, want boiler", d.Name)
	}
	if d.CreatedTime != created.UnixMilli() {
		t.Errorf("CreatedTime = %d, want %d", d.CreatedTime, created.UnixMilli())
	}
}

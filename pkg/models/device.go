package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TenantID identifies the tenant that owns a device. Devices are never
// visible across tenants.
type TenantID uuid.UUID

// DeviceID identifies a device within its tenant.
type DeviceID uuid.UUID

// CustomerID identifies the customer a device is assigned to. The zero value
// means the device is not assigned to any customer.
type CustomerID uuid.UUID

// NewTenantID returns a random TenantID.
func NewTenantID() TenantID { return TenantID(uuid.New()) }

// NewDeviceID returns a random DeviceID.
func NewDeviceID() DeviceID { return DeviceID(uuid.New()) }

// NewCustomerID returns a random CustomerID.
func NewCustomerID() CustomerID { return CustomerID(uuid.New()) }

// ParseTenantID parses the string form of a TenantID.
func ParseTenantID(s string) (TenantID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return TenantID{}, fmt.Errorf("invalid tenant id %q: %w", s, err)
	}
	return TenantID(u), nil
}

// ParseDeviceID parses the string form of a DeviceID.
func ParseDeviceID(s string) (DeviceID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return DeviceID{}, fmt.Errorf("invalid device id %q: %w", s, err)
	}
	return DeviceID(u), nil
}

// ParseCustomerID parses the string form of a CustomerID. An empty string
// yields the zero CustomerID.
func ParseCustomerID(s string) (CustomerID, error) {
	if s == "" {
		return CustomerID{}, nil
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return CustomerID{}, fmt.Errorf("invalid customer id %q: %w", s, err)
	}
	return CustomerID(u), nil
}

func (id TenantID) String() string   { return uuid.UUID(id).String() }
func (id DeviceID) String() string   { return uuid.UUID(id).String() }
func (id CustomerID) String() string { return uuid.UUID(id).String() }

// IsZero reports whether the customer id is unset.
func (id CustomerID) IsZero() bool { return uuid.UUID(id) == uuid.Nil }

func (id TenantID) MarshalText() ([]byte, error)   { return uuid.UUID(id).MarshalText() }
func (id DeviceID) MarshalText() ([]byte, error)   { return uuid.UUID(id).MarshalText() }
func (id CustomerID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }

func (id *TenantID) UnmarshalText(b []byte) error   { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *DeviceID) UnmarshalText(b []byte) error   { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *CustomerID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }

// Device is a registered device as stored by the device registry.
type Device struct {
	ID         DeviceID   `json:"id"`
	TenantID   TenantID   `json:"tenant_id"`
	CustomerID CustomerID `json:"customer_id"`
	Name       string     `json:"name"`
	Type       string     `json:"type"`
	Label      string     `json:"label,omitempty"`
	// CreatedTime is the registration time in epoch milliseconds.
	CreatedTime int64 `json:"created_time"`
}

// CreatedAt returns CreatedTime as a time.Time.
func (d Device) CreatedAt() time.Time {
	return time.UnixMilli(d.CreatedTime).UTC()
}

package models

import (
	"time"
)

// Device types inferred from the inventory role column
const (
	DeviceTypeRouter  = "router"
	DeviceTypeServer  = "server"
	DeviceTypePrinter = "printer"
	DeviceTypeUnknown = "unknown"
)

// Device statuses derived from inventory notes
const (
	DeviceStatusActive   = "active"
	DeviceStatusWarning  = "warning"
	DeviceStatusCritical = "critical"
)

type Device struct {
	Hostname   string `gorm:"primaryKey"` // Natural key, uniqueness enforced at the store
	IPAddress  string `gorm:"not null;index:idx_device_ip"`
	DeviceType string `gorm:"not null;index:idx_device_type"`
	Status     string `gorm:"not null;default:active"`
	OS         string
	Notes      string `gorm:"type:text"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (Device) TableName() string {
	return "devices"
}

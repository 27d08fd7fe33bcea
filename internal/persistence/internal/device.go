package internal

import "time"

// Device is the slice of the device registry the ingestion pipeline reads.
type Device struct {
	ID         string    `json:"id" gorm:"primaryKey"`
	HardwareID string    `json:"hardware_id"`
	CreatedAt  time.Time `json:"created_at"`
}

func (Device) TableName() string {
	return "devices"
}

package domain

import "time"

type BookingStatus string

const (
	BookingStatusConfirmed BookingStatus = "confirmed"
)

type BookingRequest struct {
	ResourceID   string `json:"resource_id" validate:"required,max=128"`
	ResourceName string `json:"resource_name" validate:"required,max=256"`
	TimeSlot     string `json:"time_slot" validate:"required,max=64"`
	UserID       string `json:"user_id" validate:"required,max=128"`
	UserName     string `json:"user_name"`
}

type Booking struct {
	ID           string        `json:"id"`
	ResourceID   string        `json:"resource_id"`
	ResourceName string        `json:"resource_name"`
	TimeSlot     string        `json:"time_slot"`
	UserID       string        `json:"user_id"`
	UserName     string        `json:"user_name"`
	Status       BookingStatus `json:"status"`
	BookedAt     time.Time     `json:"booked_at"`
}

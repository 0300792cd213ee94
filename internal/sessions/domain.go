package sessions

import "time"

// DeviceType classifies the form factor of a signed-in device.
type DeviceType string

// Device types.
const (
	DeviceMobile  DeviceType = "mobile"
	DeviceTablet  DeviceType = "tablet"
	DeviceDesktop DeviceType = "desktop"
)

// DeviceInfo is the device snapshot captured at sign-in.
type DeviceInfo struct {
	Type             DeviceType `json:"type" validate:"required,oneof=mobile tablet desktop"`
	Browser          string     `json:"browser" validate:"max=64"`
	OS               string     `json:"os" validate:"max=64"`
	ScreenResolution string     `json:"screen_resolution,omitempty" validate:"omitempty,max=32"`
}

// Location is the coarse origin of a sign-in.
type Location struct {
	Country string `json:"country,omitempty" validate:"omitempty,len=2,alpha"`
}

// Record is one live device session of one actor.
type Record struct {
	ID           string     `json:"id"`
	UserID       string     `json:"user_id"`
	UserEmail    string     `json:"user_email"`
	Device       DeviceInfo `json:"device_info"`
	Location     Location   `json:"location"`
	CreatedAt    time.Time  `json:"created_at"`
	LastActivity time.Time  `json:"last_activity"`
}

// ExpiresAt returns the instant the record lapses for the inactivity window.
func (r Record) ExpiresAt(window time.Duration) time.Time {
	return r.LastActivity.Add(window)
}

// Actor identifies the authenticated owner of session records.
type Actor struct {
	UserID string
	Email  string
}

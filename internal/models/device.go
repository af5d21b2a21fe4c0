package models

import "time"

type RegistrationStatus string

const (
	RegistrationIdle                 RegistrationStatus = "Idle"
	RegistrationRequestingPermission RegistrationStatus = "RequestingPermission"
	RegistrationPermissionDenied     RegistrationStatus = "PermissionDenied"
	RegistrationTokenUnavailable     RegistrationStatus = "TokenUnavailable"
	RegistrationBackendRegistering   RegistrationStatus = "BackendRegistering"
	RegistrationRegistered           RegistrationStatus = "Registered"
	RegistrationBackendRejected      RegistrationStatus = "BackendRejected"
	RegistrationError                RegistrationStatus = "Error"
)

// IsTerminal reports whether a registration run ends in this status.
func (s RegistrationStatus) IsTerminal() bool {
	switch s {
	case RegistrationPermissionDenied, RegistrationTokenUnavailable,
		RegistrationRegistered, RegistrationBackendRejected, RegistrationError:
		return true
	}
	return false
}

type PermissionStatus string

const (
	PermissionGranted      PermissionStatus = "granted"
	PermissionDenied       PermissionStatus = "denied"
	PermissionUndetermined PermissionStatus = "undetermined"
)

// DeviceRegistration is the last known state of push registration for this
// device. Token is the last token the backend accepted, empty otherwise.
type DeviceRegistration struct {
	Token     string             `json:"token,omitempty"`
	Platform  string             `json:"platform"`
	Status    RegistrationStatus `json:"status"`
	Message   string             `json:"message,omitempty"`
	Attempts  int                `json:"attempts"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

type DeviceTokenRequest struct {
	Token    string `json:"token"`
	Platform string `json:"platform"`
}

// Package adapter defines the event-bus boundary for device notifications.
//
// The service publishes a DeviceEvent whenever the USB link changes state
// or a long-running operation (update, backup, restore, factory reset)
// reaches a milestone. Adapters deliver them to downstream systems.
package adapter

import "context"

// ContractVersion is the DeviceEvent payload version.
const ContractVersion = "1.0.0"

// Event types.
const (
	EventUSBConfigured    = "usb_configured"
	EventUSBReconfigured  = "usb_reconfigured"
	EventUSBDisconnected  = "usb_disconnected"
	EventUpdateProgress   = "update_progress"
	EventUpdateError      = "update_error"
	EventUpdateCompleted  = "update_completed"
	EventBackupCreated    = "backup_created"
	EventRestoreStarted   = "restore_started"
	EventFactoryReset     = "factory_reset"
	EventSessionCompleted = "session_completed"
)

// DeviceEvent is the payload published for every notification.
type DeviceEvent struct {
	ContractVersion string `json:"contract_version"`
	EventType       string `json:"event_type"`
	Device          string `json:"device"`
	SessionID       string `json:"session_id"`
	Timestamp       string `json:"timestamp"` // RFC 3339
	// Code is a machine-readable status, e.g. an update error code name.
	Code    string         `json:"code,omitempty"`
	Message string         `json:"message,omitempty"`
	Fields  map[string]any `json:"fields,omitempty"`
}

// Adapter publishes device events to a downstream system.
type Adapter interface {
	// Publish sends one event. Must respect context cancellation and
	// deadlines.
	Publish(ctx context.Context, event *DeviceEvent) error

	// Close releases adapter resources.
	Close() error
}

package domain

import "time"

// Project status values.
const (
	ProjectStatusCreated     = "created"
	ProjectStatusInitialized = "initialized"
	ProjectStatusConfigured  = "configured"
)

// Project describes one local Supabase instance.
type Project struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ProjectEnvVar stores one encrypted configuration value.
type ProjectEnvVar struct {
	ProjectID string
	Key       string
	Value     []byte
	UpdatedAt time.Time
}

// ConfigEvent notifies subscribers that a project configuration changed.
// It carries variable names only.
type ConfigEvent struct {
	ProjectID string    `json:"project_id"`
	Event     string    `json:"event"`
	Keys      []string  `json:"keys"`
	At        time.Time `json:"at"`
}

package domain

import "time"

type SessionID string

// Connection is the bookkeeping record of one live transport session.
type Connection struct {
	ID          SessionID `json:"id"`
	Role        Role      `json:"role"`
	ProjectID   ProjectID `json:"projectId,omitempty"`
	Client      string    `json:"client,omitempty"`
	ConnectedAt time.Time `json:"connectedAt"`
}

// InRoom reports whether the connection currently belongs to a project room.
func (c Connection) InRoom() bool { return c.ProjectID != "" }

package domain

import (
	"encoding/json"
	"time"
)

// Inbound request types.
const (
	ReqCreateProject     = "create-project"
	ReqGetProjects       = "get-projects"
	ReqGetProject        = "get-project"
	ReqJoinProject       = "join-project"
	ReqLeaveProject      = "leave-project"
	ReqEditProject       = "edit-project"
	ReqDeleteProject     = "delete-project"
	ReqUpdateSettings    = "update-project-settings"
	ReqUpdateText        = "update-text"
	ReqStartScrolling    = "start-scrolling"
	ReqStopScrolling     = "stop-scrolling"
	ReqStartCountdown    = "start-countdown"
	ReqSetScrollPosition = "set-scroll-position"
	ReqPing              = "ping"
)

// Outbound notification types.
const (
	EvtProjectsList         = "projects-list"
	EvtProjectCreated       = "project-created"
	EvtProjectUpdated       = "project-updated"
	EvtProjectDeleted       = "project-deleted"
	EvtProjectDeleteConfirm = "project-delete-confirmed"
	EvtProjectData          = "project-data"
	EvtClientJoined         = "client-joined"
	EvtClientLeft           = "client-left"
	EvtConnectionCount      = "connection-count"
	EvtViewerCount          = "viewer-count"
	EvtTextUpdated          = "text-updated"
	EvtSettingsUpdated      = "project-settings-updated"
	EvtScrollingStarted     = "scrolling-started"
	EvtScrollingStopped     = "scrolling-stopped"
	EvtCountdownStarted     = "countdown-started"
	EvtCountdownFinished    = "countdown-finished"
	EvtSetScrollPosition    = "set-scroll-position"
	EvtPong                 = "pong"
	EvtError                = "error"
)

// Envelope is an inbound frame before its payload is decoded.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Message is an outbound frame.
type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

type ProjectRef struct {
	ProjectID ProjectID `json:"projectId"`
}

type ClientEvent struct {
	ProjectID ProjectID `json:"projectId"`
	ClientID  SessionID `json:"clientId"`
	Role      Role      `json:"role"`
}

type ViewerCount struct {
	ProjectID ProjectID `json:"projectId"`
	Count     int       `json:"count"`
}

type TextUpdated struct {
	ProjectID ProjectID `json:"projectId"`
	Text      string    `json:"text"`
}

type SettingsUpdated struct {
	ProjectID ProjectID `json:"projectId"`
	Settings  Patch     `json:"settings"`
}

type CountdownStarted struct {
	ProjectID ProjectID `json:"projectId"`
	Countdown
}

type ScrollPosition struct {
	ProjectID ProjectID `json:"projectId"`
	Position  float64   `json:"position"`
}

type Pong struct {
	Timestamp  int64 `json:"timestamp,omitempty"`
	ServerTime int64 `json:"serverTime"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Request string `json:"request,omitempty"`
}

// NewPong echoes the client timestamp with the server clock in milliseconds.
func NewPong(timestamp int64, now time.Time) Pong {
	return Pong{Timestamp: timestamp, ServerTime: now.UnixMilli()}
}

package orch

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dkeye/Prompter/internal/domain"
)

type createProjectRequest struct {
	Name string  `json:"name"`
	Text *string `json:"text"`
}

type projectIDRequest struct {
	ProjectID domain.ProjectID `json:"projectId"`
}

type joinRequest struct {
	ProjectID domain.ProjectID `json:"projectId"`
	Role      string           `json:"role"`
}

type editProjectRequest struct {
	ProjectID domain.ProjectID `json:"projectId"`
	Name      *string          `json:"name"`
	Text      *string          `json:"text"`
}

type settingsRequest struct {
	ProjectID domain.ProjectID `json:"projectId"`
	Settings  json.RawMessage  `json:"settings"`
}

type updateTextRequest struct {
	ProjectID domain.ProjectID `json:"projectId"`
	Text      *string          `json:"text"`
}

type countdownRequest struct {
	ProjectID domain.ProjectID `json:"projectId"`
	Seconds   *int             `json:"seconds"`
}

type positionRequest struct {
	ProjectID domain.ProjectID `json:"projectId"`
	Position  *float64         `json:"position"`
}

type pingRequest struct {
	Timestamp int64 `json:"timestamp"`
}

func decode(raw json.RawMessage, v any) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return fmt.Errorf("%w: payload missing", domain.ErrInvalidPayload)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}
	return nil
}

// isBareString reports whether raw is a JSON string, the shorthand some
// clients use for single-id requests.
func isBareString(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '"'
}

func requireProjectID(pid domain.ProjectID) (domain.ProjectID, error) {
	pid = domain.ProjectID(strings.TrimSpace(string(pid)))
	if pid == "" {
		return "", fmt.Errorf("%w: projectId required", domain.ErrInvalidPayload)
	}
	return pid, nil
}

// decodeProjectID accepts "id" or {"projectId": "id"}.
func decodeProjectID(raw json.RawMessage) (domain.ProjectID, error) {
	if isBareString(raw) {
		var id string
		if err := decode(raw, &id); err != nil {
			return "", err
		}
		return requireProjectID(domain.ProjectID(id))
	}
	var req projectIDRequest
	if err := decode(raw, &req); err != nil {
		return "", err
	}
	return requireProjectID(req.ProjectID)
}

func decodeJoin(raw json.RawMessage) (joinRequest, error) {
	var req joinRequest
	if isBareString(raw) {
		var id string
		if err := decode(raw, &id); err != nil {
			return req, err
		}
		req.ProjectID = domain.ProjectID(id)
	} else if err := decode(raw, &req); err != nil {
		return req, err
	}
	pid, err := requireProjectID(req.ProjectID)
	req.ProjectID = pid
	return req, err
}

// decodePing tolerates a missing payload or a bare timestamp.
func decodePing(raw json.RawMessage) pingRequest {
	var req pingRequest
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return req
	}
	if err := json.Unmarshal(raw, &req); err != nil {
		_ = json.Unmarshal(raw, &req.Timestamp)
	}
	return req
}

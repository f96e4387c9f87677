package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
)

// Patch is a partial update of a project. Nil fields are left untouched.
// It doubles as the "changed fields" payload of project-settings-updated.
type Patch struct {
	Name *string `json:"name,omitempty"`
	Text *string `json:"text,omitempty"`

	FontSize        *float64 `json:"fontSize,omitempty"`
	FontFamily      *string  `json:"fontFamily,omitempty"`
	TextColor       *string  `json:"textColor,omitempty"`
	BackgroundColor *string  `json:"backgroundColor,omitempty"`
	TextAlign       *string  `json:"textAlign,omitempty"`
	IsMirrored      *bool    `json:"isMirrored,omitempty"`
	LineHeight      *float64 `json:"lineHeight,omitempty"`
	PrompterWidth   *float64 `json:"prompterWidth,omitempty"`
	PrompterHeight  *float64 `json:"prompterHeight,omitempty"`

	ScrollSpeed   *float64 `json:"scrollSpeed,omitempty"`
	StartPosition *float64 `json:"startPosition,omitempty"`
	UseStartDelay *bool    `json:"useStartDelay,omitempty"`
	StartDelay    *int     `json:"startDelay,omitempty"`
}

// Fields owned by the scroll controller, the room broadcaster or the store.
var readOnlyFields = map[string]struct{}{
	"id":               {},
	"isScrolling":      {},
	"scrollState":      {},
	"countdown":        {},
	"connectedClients": {},
	"clientCount":      {},
	"viewerCount":      {},
	"createdAt":        {},
	"updatedAt":        {},
}

// DecodePatch parses a settings object. Unknown keys are ignored; read-only
// keys are refused.
func DecodePatch(raw json.RawMessage) (Patch, error) {
	var p Patch
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return p, fmt.Errorf("%w: settings missing", ErrInvalidPayload)
	}

	var keys map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &keys); err != nil {
		return p, fmt.Errorf("%w: settings must be an object", ErrInvalidPayload)
	}
	var refused []string
	for k := range keys {
		if _, ro := readOnlyFields[k]; ro {
			refused = append(refused, k)
		}
	}
	if len(refused) > 0 {
		sort.Strings(refused)
		return p, fmt.Errorf("%w: %v", ErrReadOnlyField, refused)
	}

	if err := json.Unmarshal(trimmed, &p); err != nil {
		return p, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return p, nil
}

func (p Patch) Empty() bool { return p == Patch{} }

// Validate checks the scroll settings and the name. Display settings are
// not interpreted.
func (p Patch) Validate() error {
	if p.Name != nil {
		if _, err := NormalizeProjectName(*p.Name); err != nil {
			return err
		}
	}
	if p.ScrollSpeed != nil && (*p.ScrollSpeed < 0 || math.IsNaN(*p.ScrollSpeed) || math.IsInf(*p.ScrollSpeed, 0)) {
		return fmt.Errorf("%w: scrollSpeed must be >= 0", ErrInvalidPayload)
	}
	if p.StartPosition != nil {
		if err := ValidatePosition(*p.StartPosition); err != nil {
			return err
		}
	}
	if p.StartDelay != nil && (*p.StartDelay < 0 || *p.StartDelay > MaxStartDelay) {
		return fmt.Errorf("%w: startDelay must be within [0, %d]", ErrInvalidPayload, MaxStartDelay)
	}
	return nil
}

// ValidatePosition checks a scroll position on the 0-100 scale.
func ValidatePosition(pos float64) error {
	if pos < 0 || pos > 100 || math.IsNaN(pos) {
		return fmt.Errorf("%w: position must be within [0, 100]", ErrInvalidPayload)
	}
	return nil
}

// ApplyTo copies every set field onto proj.
func (p Patch) ApplyTo(proj *Project) {
	if p.Name != nil {
		name, _ := NormalizeProjectName(*p.Name)
		proj.Name = name
	}
	setString(&proj.Text, p.Text)

	s := &proj.Settings
	setFloat(&s.FontSize, p.FontSize)
	setString(&s.FontFamily, p.FontFamily)
	setString(&s.TextColor, p.TextColor)
	setString(&s.BackgroundColor, p.BackgroundColor)
	setString(&s.TextAlign, p.TextAlign)
	setBool(&s.IsMirrored, p.IsMirrored)
	setFloat(&s.LineHeight, p.LineHeight)
	setFloat(&s.PrompterWidth, p.PrompterWidth)
	setFloat(&s.PrompterHeight, p.PrompterHeight)
	setFloat(&s.ScrollSpeed, p.ScrollSpeed)
	setFloat(&s.StartPosition, p.StartPosition)
	setBool(&s.UseStartDelay, p.UseStartDelay)
	if p.StartDelay != nil {
		s.StartDelay = *p.StartDelay
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

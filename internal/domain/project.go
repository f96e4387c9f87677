// Package domain contains entities and wire messages without transport logic.
package domain

import (
	"fmt"
	"strings"
	"time"
)

type ProjectID string

const (
	MaxProjectNameLen = 128
	MaxStartDelay     = 3600
	DefaultText       = "Default teleprompter text..."
)

// Settings holds the display and scroll settings of a project. Display
// fields are opaque to the server and passed through verbatim.
type Settings struct {
	FontSize        float64 `json:"fontSize"`
	FontFamily      string  `json:"fontFamily"`
	TextColor       string  `json:"textColor"`
	BackgroundColor string  `json:"backgroundColor"`
	TextAlign       string  `json:"textAlign"`
	IsMirrored      bool    `json:"isMirrored"`
	LineHeight      float64 `json:"lineHeight"`
	PrompterWidth   float64 `json:"prompterWidth"`
	PrompterHeight  float64 `json:"prompterHeight"`

	ScrollSpeed   float64 `json:"scrollSpeed"`
	StartPosition float64 `json:"startPosition"`
	UseStartDelay bool    `json:"useStartDelay"`
	StartDelay    int     `json:"startDelay"`
}

func DefaultSettings() Settings {
	return Settings{
		FontSize:        36,
		FontFamily:      `"Vazirmatn", sans-serif`,
		TextColor:       "#ffffff",
		BackgroundColor: "#000000",
		TextAlign:       "right",
		LineHeight:      1.8,
		PrompterWidth:   100,
		PrompterHeight:  100,
		ScrollSpeed:     1,
		StartDelay:      3,
	}
}

// Project is a value snapshot of the shared script state.
// IsScrolling, ScrollState and Countdown are projections of the scroll
// session; ClientCount and ViewerCount are projections of room membership.
type Project struct {
	ID        ProjectID `json:"id"`
	Name      string    `json:"name"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Settings

	IsScrolling bool        `json:"isScrolling"`
	ScrollState ScrollState `json:"scrollState"`
	Countdown   *Countdown  `json:"countdown,omitempty"`
	ClientCount int         `json:"clientCount"`
	ViewerCount int         `json:"viewerCount"`
}

// NewProject builds an idle project with default settings.
func NewProject(id ProjectID, name, text string, now time.Time) Project {
	return Project{
		ID:          id,
		Name:        name,
		Text:        text,
		CreatedAt:   now,
		UpdatedAt:   now,
		Settings:    DefaultSettings(),
		ScrollState: ScrollIdle,
	}
}

// NormalizeProjectName trims the name and checks its bounds.
func NormalizeProjectName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrProjectNameEmpty
	}
	if len(name) > MaxProjectNameLen {
		return "", fmt.Errorf("%w: %d > %d", ErrProjectNameTooLong, len(name), MaxProjectNameLen)
	}
	return name, nil
}

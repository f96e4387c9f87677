package domain_test

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/dkeye/Prompter/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodePatch_KnownAndUnknownKeys(t *testing.T) {
	p, err := domain.DecodePatch(json.RawMessage(`{"fontSize": 48, "isMirrored": true, "sparkles": 3}`))
	require.NoError(t, err)
	require.NotNil(t, p.FontSize)
	require.NotNil(t, p.IsMirrored)
	assert.Equal(t, 48.0, *p.FontSize)
	assert.True(t, *p.IsMirrored)
	assert.Nil(t, p.ScrollSpeed)
}

func TestDecodePatch_RefusesReadOnlyFields(t *testing.T) {
	_, err := domain.DecodePatch(json.RawMessage(`{"isScrolling": true, "id": "x", "fontSize": 10}`))
	require.ErrorIs(t, err, domain.ErrReadOnlyField)
	assert.Contains(t, err.Error(), "[id isScrolling]")
}

func TestDecodePatch_Malformed(t *testing.T) {
	for _, raw := range []string{``, `null`, `[]`, `"text"`, `{"fontSize": "big"}`} {
		_, err := domain.DecodePatch(json.RawMessage(raw))
		require.ErrorIs(t, err, domain.ErrInvalidPayload, "payload %q", raw)
	}
}

func TestPatch_Validate(t *testing.T) {
	neg := -1.0
	tooFar := 101.0
	delay := domain.MaxStartDelay + 1
	blank := "   "
	long := strings.Repeat("n", domain.MaxProjectNameLen+1)

	require.ErrorIs(t, domain.Patch{ScrollSpeed: &neg}.Validate(), domain.ErrInvalidPayload)
	require.ErrorIs(t, domain.Patch{StartPosition: &tooFar}.Validate(), domain.ErrInvalidPayload)
	require.ErrorIs(t, domain.Patch{StartDelay: &delay}.Validate(), domain.ErrInvalidPayload)
	require.ErrorIs(t, domain.Patch{Name: &blank}.Validate(), domain.ErrProjectNameEmpty)
	require.ErrorIs(t, domain.Patch{Name: &long}.Validate(), domain.ErrProjectNameTooLong)

	zero := 0.0
	require.NoError(t, domain.Patch{ScrollSpeed: &zero, StartPosition: &zero}.Validate())
}

func TestPatch_ApplyToLeavesUnsetFields(t *testing.T) {
	proj := domain.NewProject("p1", "Talk", "hello", time.Unix(0, 0))
	name := "  Keynote  "
	speed := 2.5
	domain.Patch{Name: &name, ScrollSpeed: &speed}.ApplyTo(&proj)

	assert.Equal(t, "Keynote", proj.Name)
	assert.Equal(t, 2.5, proj.ScrollSpeed)
	assert.Equal(t, "hello", proj.Text)
	assert.Equal(t, domain.DefaultSettings().FontSize, proj.FontSize)
}

func TestPatch_Empty(t *testing.T) {
	assert.True(t, domain.Patch{}.Empty())
	v := false
	assert.False(t, domain.Patch{IsMirrored: &v}.Empty())
}

func TestProject_JSONShape(t *testing.T) {
	proj := domain.NewProject("p1", "Talk", "hello", time.Unix(0, 0).UTC())
	raw, err := json.Marshal(proj)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	assert.Equal(t, "p1", m["id"])
	assert.Equal(t, false, m["isScrolling"])
	assert.Equal(t, "idle", m["scrollState"])
	assert.Equal(t, 36.0, m["fontSize"])
	assert.NotContains(t, m, "countdown")
	assert.NotContains(t, m, "Settings")
}

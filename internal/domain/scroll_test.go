package domain_test

import (
	"testing"
	"time"

	"github.com/dkeye/Prompter/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestCountdown_Remaining(t *testing.T) {
	start := time.Unix(1000, 0)
	cd := domain.NewCountdown(3, start)

	assert.Equal(t, start.Add(3*time.Second), cd.EndsAt)
	assert.Equal(t, 3, cd.Remaining(start))
	assert.Equal(t, 3, cd.Remaining(start.Add(100*time.Millisecond)))
	assert.Equal(t, 1, cd.Remaining(start.Add(2500*time.Millisecond)))
	assert.Equal(t, 0, cd.Remaining(start.Add(3*time.Second)))
	assert.Equal(t, 0, cd.Remaining(start.Add(time.Minute)))
}

func TestNewCountdown_StartsFull(t *testing.T) {
	cd := domain.NewCountdown(5, time.Unix(0, 0))
	assert.Equal(t, 5, cd.Left)
	assert.Equal(t, 5, cd.Seconds)
}

package domain

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
)

func TestSetClock(t *testing.T) {
	frozen := time.Date(2026, time.August, 25, 6, 0, 0, 0, time.UTC)
	SetClock(clockwork.NewFakeClockAt(frozen))
	defer SetClock(nil)

	assert.Equal(t, frozen, Clock().Now())

	SetClock(nil)
	assert.WithinDuration(t, time.Now(), Clock().Now(), time.Minute)
}

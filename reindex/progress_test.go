package reindex

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProgressTracker_KnownTotal(t *testing.T) {
	var out bytes.Buffer
	tracker := NewProgressTracker(&out, 10, 5)
	tracker.Start()

	tracker.Increment(3)
	assert.Empty(t, out.String(), "below report interval, nothing written")

	tracker.Increment(3)
	assert.Contains(t, out.String(), "6/10")

	tracker.Finish()
	assert.Contains(t, out.String(), "10/10 (100.0%)")
	assert.Equal(t, 10, tracker.Processed())
}

func TestProgressTracker_UnknownTotal(t *testing.T) {
	var out bytes.Buffer
	tracker := NewProgressTracker(&out, 0, 2)
	tracker.Start()

	tracker.Increment(2)
	assert.Contains(t, out.String(), "2 chunks")
	assert.NotContains(t, out.String(), "%")

	tracker.Increment(5)
	tracker.Finish()
	assert.Equal(t, 7, tracker.Processed())
}

func TestProgressTracker_NotStarted(t *testing.T) {
	var out bytes.Buffer
	tracker := NewProgressTracker(&out, 10, 1)

	tracker.Increment(5)
	tracker.Finish()
	assert.Empty(t, out.String())
	assert.Zero(t, tracker.Elapsed())
}

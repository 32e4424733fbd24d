package schedule

import (
	"testing"
	"time"

	"salonbook/internal/models"

	"github.com/stretchr/testify/assert"
)

func span(startHour, startMin, minutes int) models.Interval {
	start := time.Date(2025, 6, 1, startHour, startMin, 0, 0, time.UTC)
	return models.Interval{Start: start, End: start.Add(time.Duration(minutes) * time.Minute)}
}

func TestOverlaps(t *testing.T) {
	tests := []struct {
		name string
		a, b models.Interval
		want bool
	}{
		{"identical", span(10, 0, 60), span(10, 0, 60), true},
		{"half hour later", span(10, 0, 60), span(10, 30, 60), true},
		{"contained", span(10, 0, 60), span(10, 15, 15), true},
		{"containing", span(10, 15, 15), span(9, 0, 180), true},
		{"touching after", span(10, 0, 60), span(11, 0, 60), false},
		{"touching before", span(10, 0, 60), span(9, 0, 60), false},
		{"disjoint", span(10, 0, 60), span(14, 0, 60), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Overlaps(tt.a, tt.b))
			assert.Equal(t, tt.want, Overlaps(tt.b, tt.a), "overlap must be commutative")
		})
	}
}

func TestHasOverlap(t *testing.T) {
	candidate := span(10, 0, 60)

	assert.False(t, HasOverlap(candidate, nil))
	assert.False(t, HasOverlap(candidate, []models.Interval{}))
	assert.False(t, HasOverlap(candidate, []models.Interval{span(9, 0, 60), span(11, 0, 60)}))
	assert.True(t, HasOverlap(candidate, []models.Interval{span(8, 0, 60), span(10, 59, 30)}))
}

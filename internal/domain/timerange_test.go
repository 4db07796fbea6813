package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRangeString(t *testing.T) {
	tests := []struct {
		name       string
		start, end time.Time
		want       string
	}{
		{
			name:  "same day drops end date",
			start: time.Date(2026, 10, 17, 11, 59, 0, 0, time.UTC),
			end:   time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC),
			want:  "Oct 17, 11:59:00 ... 12:00:00",
		},
		{
			name:  "across midnight keeps both dates",
			start: time.Date(2026, 10, 16, 23, 30, 0, 0, time.UTC),
			end:   time.Date(2026, 10, 17, 0, 30, 0, 0, time.UTC),
			want:  "Oct 16, 23:30:00 ... Oct 17, 00:30:00",
		},
		{
			name:  "across new year carries the year",
			start: time.Date(2025, 12, 31, 23, 0, 0, 0, time.UTC),
			end:   time.Date(2026, 1, 1, 1, 0, 0, 0, time.UTC),
			want:  "Dec 31 2025, 23:00:00 ... Jan 1 2026, 01:00:00",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RangeString(tt.start, tt.end))
		})
	}
}

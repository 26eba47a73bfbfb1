package thumbnail

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSeekOffset(t *testing.T) {
	tests := []struct {
		name     string
		duration time.Duration
		want     time.Duration
	}{
		{"short clip uses ten percent", 5 * time.Second, 500 * time.Millisecond},
		{"long video capped at one second", 3 * time.Minute, time.Second},
		{"exactly ten seconds hits the cap boundary", 10 * time.Second, time.Second},
		{"unknown duration seeks half a second in", 0, 500 * time.Millisecond},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SeekOffset(tt.duration))
		})
	}
}

func TestDisabledGenerator(t *testing.T) {
	_, err := Disabled{}.Generate(context.Background(), "/tmp/v.mp4")
	assert.Error(t, err)
}

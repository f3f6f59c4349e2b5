package server

import (
	"testing"
	"time"
)

func TestRequestTimeout_TracksBatchTimeout(t *testing.T) {
	tests := []struct {
		name  string
		batch time.Duration
		want  time.Duration
	}{
		{"default batch window", 60 * time.Second, 90 * time.Second},
		{"long batch window", 5 * time.Minute, 5*time.Minute + 30*time.Second},
		{"tiny batch window keeps the floor", 10 * time.Second, 60 * time.Second},
		{"zero keeps the floor", 0, 60 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := requestTimeout(tt.batch); got != tt.want {
				t.Fatalf("requestTimeout(%v) = %v, want %v", tt.batch, got, tt.want)
			}
		})
	}
}

package order

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to string
		want     bool
	}{
		{StatusPending, StatusProcessing, true},
		{StatusPending, StatusCompleted, true},
		{StatusPending, StatusCancelled, true},
		{StatusProcessing, StatusCompleted, true},
		{StatusProcessing, StatusCancelled, true},
		{StatusProcessing, StatusPending, false},
		{StatusCompleted, StatusProcessing, false},
		{StatusCancelled, StatusPending, false},
		{"UNKNOWN", StatusPending, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CanTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestCanAdvanceTracking(t *testing.T) {
	tests := []struct {
		from, to string
		want     bool
	}{
		{TrackPreparing, TrackShippingOut, true},
		{TrackShippingOut, TrackInTransit, true},
		{TrackInTransit, TrackArriving, true},
		{TrackArriving, TrackDelivered, true},
		// 不允许跳步或回退
		{TrackPreparing, TrackInTransit, false},
		{TrackInTransit, TrackShippingOut, false},
		// 取消仅限到达前
		{TrackPreparing, TrackCancelled, true},
		{TrackShippingOut, TrackCancelled, true},
		{TrackInTransit, TrackCancelled, true},
		{TrackArriving, TrackCancelled, false},
		{TrackDelivered, TrackCancelled, false},
		{TrackCancelled, TrackPreparing, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CanAdvanceTracking(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestAppendTracking(t *testing.T) {
	o := &Order{}
	t0 := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	o.AppendTracking(TrackPreparing, "system", t0)
	o.AppendTracking(TrackShippingOut, "ops", t0.Add(time.Hour))

	assert.Equal(t, TrackShippingOut, o.TrackingStatus)
	assert.Len(t, o.TrackingHistory, 2)
	assert.Equal(t, "system", o.TrackingHistory[0].By)
	assert.Equal(t, TrackShippingOut, o.TrackingHistory[1].Status)
}

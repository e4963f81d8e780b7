package share

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tildaslashalef/driveshare/internal/loggy"
)

func TestCountersValidate(t *testing.T) {
	logger := loggy.NewNoopLogger()

	tests := []struct {
		name     string
		in       Counters
		want     Counters
		repaired bool
	}{
		{
			name:     "valid counters untouched",
			in:       Counters{Total: 10, Processed: 5, Successful: 3, Failed: 1, Errors: 1, ActiveWorkers: 2, WorkerCount: 4},
			want:     Counters{Total: 10, Processed: 5, Successful: 3, Failed: 1, Errors: 1, ActiveWorkers: 2, WorkerCount: 4},
			repaired: false,
		},
		{
			name:     "processed clamped to total",
			in:       Counters{Total: 5, Processed: 10},
			want:     Counters{Total: 5, Processed: 5},
			repaired: true,
		},
		{
			name:     "negative counters zeroed",
			in:       Counters{Total: -1, Processed: -2, Successful: -3, Failed: -4, Errors: -5},
			want:     Counters{},
			repaired: true,
		},
		{
			name:     "successful and failed scaled down proportionally",
			in:       Counters{Total: 10, Processed: 4, Successful: 6, Failed: 2},
			want:     Counters{Total: 10, Processed: 4, Successful: 3, Failed: 1},
			repaired: true,
		},
		{
			name:     "active workers clamped to worker count",
			in:       Counters{Total: 1, Processed: 0, ActiveWorkers: 9, WorkerCount: 4},
			want:     Counters{Total: 1, Processed: 0, ActiveWorkers: 4, WorkerCount: 4},
			repaired: true,
		},
		{
			name:     "negative active workers zeroed",
			in:       Counters{Total: 1, ActiveWorkers: -3, WorkerCount: 4},
			want:     Counters{Total: 1, ActiveWorkers: 0, WorkerCount: 4},
			repaired: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := tt.in
			repaired := c.Validate(logger)
			assert.Equal(t, tt.repaired, repaired)
			assert.Equal(t, tt.want, c)
			assert.True(t, c.Valid())
		})
	}
}

func TestCountersValid(t *testing.T) {
	assert.True(t, (&Counters{Total: 2, Processed: 2, Successful: 1, Failed: 1}).Valid())
	assert.False(t, (&Counters{Total: 5, Processed: 10}).Valid())
	assert.False(t, (&Counters{Total: 5, Processed: 2, Successful: 2, Failed: 1}).Valid())
	assert.False(t, (&Counters{Total: 5, Processed: -1}).Valid())
}

func TestCountersDerived(t *testing.T) {
	c := Counters{Total: 8, Processed: 2}
	assert.Equal(t, 6, c.Remaining())
	assert.Equal(t, 25, c.Percent())

	zero := Counters{}
	assert.Equal(t, 0, zero.Percent())
	assert.Equal(t, 0, zero.Remaining())
}

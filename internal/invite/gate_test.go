package invite

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecordCanConsume(t *testing.T) {
	tests := []struct {
		name   string
		record Record
		want   bool
	}{
		{
			name:   "budget remaining",
			record: Record{Code: "alpha", MaxUses: 10, UsedCount: 3, Active: true},
			want:   true,
		},
		{
			name:   "last use remaining",
			record: Record{Code: "alpha", MaxUses: 10, UsedCount: 9, Active: true},
			want:   true,
		},
		{
			name:   "quota exhausted",
			record: Record{Code: "alpha", MaxUses: 10, UsedCount: 10, Active: true},
			want:   false,
		},
		{
			name:   "over-consumed record",
			record: Record{Code: "alpha", MaxUses: 10, UsedCount: 11, Active: true},
			want:   false,
		},
		{
			name:   "inactive code",
			record: Record{Code: "alpha", MaxUses: 10, UsedCount: 0, Active: false},
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.record.CanConsume())
		})
	}
}

func TestRecordCanReadSurvivesExhaustion(t *testing.T) {
	exhausted := Record{Code: "alpha", MaxUses: 10, UsedCount: 10, Active: true}

	assert.False(t, exhausted.CanConsume())
	assert.True(t, exhausted.CanRead(), "reads must still pass after the quota runs out")

	inactive := Record{Code: "beta", MaxUses: 10, UsedCount: 0, Active: false}
	assert.False(t, inactive.CanRead())
}

func TestGateDisabledPassesEverything(t *testing.T) {
	gate := NewGate(nil, Config{Required: false}, nil)

	code, err := gate.Consume(t.Context(), "anything")
	assert.NoError(t, err)
	assert.Empty(t, code)

	code, err = gate.Authorize(t.Context(), "")
	assert.NoError(t, err)
	assert.Empty(t, code)
}

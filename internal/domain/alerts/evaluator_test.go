package alerts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateDefaultRule(t *testing.T) {
	ev, err := NewEvaluator()
	require.NoError(t, err)

	tests := []struct {
		name  string
		in    Input
		fired bool
	}{
		{"above minimum", Input{OnHand: 10, MinStock: 5}, false},
		{"at minimum", Input{OnHand: 5, MinStock: 5}, true},
		{"below minimum", Input{OnHand: 2, MinStock: 5}, true},
		{"negative on hand", Input{OnHand: -1, MinStock: 0}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fired, err := ev.Evaluate("", tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.fired, fired)
		})
	}
}

func TestEvaluateCustomRule(t *testing.T) {
	ev, err := NewEvaluator()
	require.NoError(t, err)

	// Incoming stock counts against the threshold.
	rule := "on_hand + on_order <= min_stock"

	fired, err := ev.Evaluate(rule, Input{OnHand: 3, OnOrder: 10, MinStock: 5})
	require.NoError(t, err)
	assert.False(t, fired)

	fired, err = ev.Evaluate(rule, Input{OnHand: 3, OnOrder: 1, MinStock: 5})
	require.NoError(t, err)
	assert.True(t, fired)
}

func TestEvaluateInvalidRule(t *testing.T) {
	ev, err := NewEvaluator()
	require.NoError(t, err)

	_, err = ev.Evaluate("on_hand <=", Input{})
	assert.Error(t, err)

	_, err = ev.Evaluate("on_hand + min_stock", Input{})
	assert.Error(t, err, "non-boolean result must be rejected")
}

func TestEvaluateCachesPrograms(t *testing.T) {
	ev, err := NewEvaluator()
	require.NoError(t, err)

	rule := "on_hand < min_stock"
	_, err = ev.Evaluate(rule, Input{OnHand: 1, MinStock: 2})
	require.NoError(t, err)

	ev.mu.RLock()
	_, cached := ev.programs[rule]
	ev.mu.RUnlock()
	assert.True(t, cached)
}

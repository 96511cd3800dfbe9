// internal/genai/budget_test.go
package genai

import (
	"strings"
	"testing"
	"time"

	"carepath/internal/common/logger"

	"github.com/stretchr/testify/assert"
)

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{"empty", "", 0},
		{"one char", "a", 1},
		{"exactly four", "abcd", 1},
		{"five chars rounds up", "abcde", 2},
		{"eight chars", "abcdefgh", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EstimateTokens(tt.text))
		})
	}
}

func TestTokenBudgetCanAfford(t *testing.T) {
	budget := NewTokenBudget(100, time.Minute, logger.NewNoOpLogger())

	assert.True(t, budget.CanAfford(99))
	assert.False(t, budget.CanAfford(100))
	assert.False(t, budget.CanAfford(150))
}

func TestTokenBudgetRecordAccumulates(t *testing.T) {
	budget := NewTokenBudget(1000, time.Minute, logger.NewNoOpLogger())

	budget.Record(strings.Repeat("a", 40), strings.Repeat("b", 40))
	assert.Equal(t, 20, budget.Used())

	budget.Record(strings.Repeat("a", 4), "")
	assert.Equal(t, 21, budget.Used())
}

func TestTokenBudgetRejectsWhenSpent(t *testing.T) {
	budget := NewTokenBudget(20, time.Minute, logger.NewNoOpLogger())

	budget.Record(strings.Repeat("a", 40), strings.Repeat("b", 40))
	assert.False(t, budget.CanAfford(1))
}

func TestTokenBudgetLazyWindowReset(t *testing.T) {
	budget := NewTokenBudget(20, time.Minute, logger.NewNoOpLogger())

	current := time.Now()
	budget.now = func() time.Time { return current }
	budget.lastReset = current

	budget.Record(strings.Repeat("a", 80), "")
	assert.False(t, budget.CanAfford(1))

	// Next touch after the window elapses zeroes the counter.
	current = current.Add(61 * time.Second)
	assert.True(t, budget.CanAfford(19))
	assert.Equal(t, 0, budget.Used())
}

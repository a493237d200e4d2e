package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBacktestError_Is_MatchesCategory(t *testing.T) {
	err := New(ErrorCategoryInsufficientFunds, "executor", "buy", "no cash").WithSymbol("btcusd")

	assert.True(t, stderrors.Is(err, ErrInsufficientFunds))
	assert.False(t, stderrors.Is(err, ErrDataUnavailable))
}

func TestBacktestError_Is_ThroughWrapping(t *testing.T) {
	inner := New(ErrorCategoryDataOrdering, "loader", "validate", "duplicate timestamp")
	wrapped := fmt.Errorf("loading ethusd: %w", inner)

	assert.True(t, stderrors.Is(wrapped, ErrDataOrdering))
	category, ok := CategoryOf(wrapped)
	require.True(t, ok)
	assert.Equal(t, ErrorCategoryDataOrdering, category)
}

func TestBacktestError_Error_Format(t *testing.T) {
	err := Wrap(fmt.Errorf("boom"), ErrorCategoryDataUnavailable, "csv", "fetch").WithSymbol("adausd")

	assert.Equal(t, "[DATA_UNAVAILABLE:csv] fetch adausd: boom", err.Error())
	assert.Equal(t, "boom", stderrors.Unwrap(err).Error())
}

func TestWrap_Nil(t *testing.T) {
	assert.Nil(t, Wrap(nil, ErrorCategoryExecution, "executor", "close"))
}

func TestIsRecoverable(t *testing.T) {
	assert.True(t, IsRecoverable(ErrInsufficientFunds))
	assert.True(t, IsRecoverable(ErrDataUnavailable))
	assert.True(t, IsRecoverable(ErrDataOrdering))
	assert.False(t, IsRecoverable(ErrConfig))
	assert.False(t, IsRecoverable(fmt.Errorf("plain")))
}

func TestGetRecoveryAction(t *testing.T) {
	assert.Equal(t, RecoveryActionSkipBar, GetRecoveryAction(ErrInsufficientFunds))
	assert.Equal(t, RecoveryActionSkipBar, GetRecoveryAction(ErrIndicatorNotReady))
	assert.Equal(t, RecoveryActionDropAsset, GetRecoveryAction(ErrDataOrdering))
	assert.Equal(t, RecoveryActionDropAsset, GetRecoveryAction(ErrDataUnavailable))
	assert.Equal(t, RecoveryActionStop, GetRecoveryAction(ErrConfig))
}

func TestErrorStats_RecordError(t *testing.T) {
	stats := NewErrorStats(2)

	stats.RecordError(ErrInsufficientFunds)
	stats.RecordError(ErrInsufficientFunds)
	stats.RecordError(ErrDataUnavailable)
	stats.RecordError(fmt.Errorf("plain"))
	stats.RecordError(nil)

	assert.Equal(t, 4, stats.TotalErrors)
	assert.Equal(t, 2, stats.Count(ErrorCategoryInsufficientFunds))
	assert.Equal(t, 1, stats.Count(ErrorCategoryDataUnavailable))
	assert.Equal(t, 1, stats.Count("UNCATEGORIZED"))
	assert.Len(t, stats.RecentErrors, 2)
}

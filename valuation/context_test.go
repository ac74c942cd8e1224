package valuation_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/meenmo/quantcore/valuation"
)

func TestContext(t *testing.T) {
	t.Parallel()

	vc := valuation.NewContext(time.Date(2025, 3, 14, 15, 30, 0, 0, time.UTC))
	assert.NoError(t, vc.Validate())
	assert.Equal(t, 0, vc.EvaluationDate.Hour())

	assert.True(t, vc.HasOccurred(vc.EvaluationDate))
	vc.IncludeReferenceDateEvents = true
	assert.False(t, vc.HasOccurred(vc.EvaluationDate))
	assert.True(t, vc.HasOccurred(vc.EvaluationDate.AddDate(0, 0, -1)))

	assert.Error(t, valuation.Context{}.Validate())
}

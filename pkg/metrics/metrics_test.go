package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveOperation(t *testing.T) {
	before := testutil.ToFloat64(OperationsTotal.WithLabelValues("metrics-test", "search", StatusSuccess))
	beforeErr := testutil.ToFloat64(OperationsTotal.WithLabelValues("metrics-test", "search", StatusError))

	ObserveOperation("metrics-test", "search", nil, 5*time.Millisecond)
	ObserveOperation("metrics-test", "search", errors.New("boom"), time.Millisecond)

	assert.Equal(t, before+1, testutil.ToFloat64(OperationsTotal.WithLabelValues("metrics-test", "search", StatusSuccess)))
	assert.Equal(t, beforeErr+1, testutil.ToFloat64(OperationsTotal.WithLabelValues("metrics-test", "search", StatusError)))
}

func TestTimer(t *testing.T) {
	timer := NewTimer("create")
	time.Sleep(2 * time.Millisecond)

	assert.Equal(t, "create", timer.Name())
	assert.GreaterOrEqual(t, timer.Stop(), 2*time.Millisecond)
}

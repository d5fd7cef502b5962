package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordTransition(t *testing.T) {
	counter := transitions.WithLabelValues("request", "DUPLICATE_REQUEST")
	before := testutil.ToFloat64(counter)

	RecordTransition("request", "DUPLICATE_REQUEST")
	RecordTransition("request", "DUPLICATE_REQUEST")

	assert.Equal(t, before+2, testutil.ToFloat64(counter))
}

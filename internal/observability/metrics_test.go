package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func TestCountersIncrement(t *testing.T) {
	before := testutil.ToFloat64(loginAttempts.WithLabelValues("no_match"))
	RecordLogin("no_match")
	after := testutil.ToFloat64(loginAttempts.WithLabelValues("no_match"))
	require.InDelta(t, before+1, after, 0.0001)

	before = testutil.ToFloat64(linkRejections.WithLabelValues("BLOCKED_IP"))
	RecordLinkRejection("BLOCKED_IP")
	after = testutil.ToFloat64(linkRejections.WithLabelValues("BLOCKED_IP"))
	require.InDelta(t, before+1, after, 0.0001)

	before = testutil.ToFloat64(proofScored.WithLabelValues("heuristic"))
	RecordProofScored("heuristic")
	after = testutil.ToFloat64(proofScored.WithLabelValues("heuristic"))
	require.InDelta(t, before+1, after, 0.0001)

	before = testutil.ToFloat64(progressConflicts)
	RecordProgressConflict()
	after = testutil.ToFloat64(progressConflicts)
	require.InDelta(t, before+1, after, 0.0001)
}

func TestProbeHistogramObserves(t *testing.T) {
	before := probeSampleCount(t)
	ObserveProbe(120 * time.Millisecond)
	after := probeSampleCount(t)
	require.Greater(t, after, before)
}

func probeSampleCount(t *testing.T) uint64 {
	t.Helper()

	metric := &dto.Metric{}
	require.NoError(t, probeDuration.Write(metric))
	hist := metric.GetHistogram()
	require.NotNil(t, hist)
	return hist.GetSampleCount()
}

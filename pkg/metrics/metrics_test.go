package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorsRegistered(t *testing.T) {
	for _, c := range []prometheus.Collector{
		SnapshotsReceived, EntriesDecoded, EntriesDropped, DecodeFailures,
		RejectsReceived, SendFailures, SessionState, FirstDataWait,
		SinkQueueDepth, SinkDropped, SinkErrors,
	} {
		err := prometheus.Register(c)
		var already prometheus.AlreadyRegisteredError
		require.ErrorAs(t, err, &already)
	}
}

func TestSendFailures(t *testing.T) {
	before := testutil.ToFloat64(SendFailures.WithLabelValues("unsubscribe"))
	SendFailures.WithLabelValues("unsubscribe").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(SendFailures.WithLabelValues("unsubscribe")))
}

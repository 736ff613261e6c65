package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordCatalogStats(t *testing.T) {
	RecordCatalogStats(2, 5, 9, 3)
	assert.Equal(t, 2.0, testutil.ToFloat64(catalogMachines))
	assert.Equal(t, 5.0, testutil.ToFloat64(catalogNodes))
	assert.Equal(t, 9.0, testutil.ToFloat64(catalogChannels))
	assert.Equal(t, 3.0, testutil.ToFloat64(catalogConnections))
}

func TestRecordRequest(t *testing.T) {
	RecordRequest("addM", "ok", 0.001)
	count := testutil.ToFloat64(requestsTotal.WithLabelValues("addM", "ok"))
	assert.Greater(t, count, 0.0)
}

func TestSessionOpenedClosed(t *testing.T) {
	SessionOpened()
	before := testutil.ToFloat64(sessionsActive)
	SessionClosed("normal")
	after := testutil.ToFloat64(sessionsActive)
	assert.Equal(t, before-1, after)

	count := testutil.ToFloat64(sessionsTotal.WithLabelValues("normal"))
	assert.Greater(t, count, 0.0)
}

func TestRecordStatusEvent(t *testing.T) {
	RecordStatusEvent("node-added")
	count := testutil.ToFloat64(statusEventsPublished.WithLabelValues("node-added"))
	assert.Greater(t, count, 0.0)
}

func TestNoopLoggerDoesNotPanic(t *testing.T) {
	l := NoopLogger()
	l.Debug("x")
	l.Info("x")
	l.Warn("x")
	l.Error("x")
}

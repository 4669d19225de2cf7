package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlerExposesCollectors(t *testing.T) {
	RequestsQueued.Inc()
	Emails.WithLabelValues("smtp", "sent").Inc()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "mail_relay_requests_queued_total")
	assert.Contains(t, string(body), `mail_relay_emails_total{outcome="sent",transport="smtp"}`)
}

func TestCollectorsAreRegistered(t *testing.T) {
	before := testutil.ToFloat64(RequestsRejected.WithLabelValues("validation"))
	RequestsRejected.WithLabelValues("validation").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(RequestsRejected.WithLabelValues("validation")))
}

package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"wablast/internal/metrics"
	"wablast/internal/tracing"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newInstrumentedRouter(logger *logrus.Logger, handler http.HandlerFunc) *mux.Router {
	router := mux.NewRouter()
	router.Use(Observability(logger))
	router.HandleFunc("/api/session/status/{tenantId}", handler).Methods(http.MethodGet)
	return router
}

func TestObservability_LogsAndPropagatesContext(t *testing.T) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetFormatter(&logrus.JSONFormatter{})

	var seenRequestID string
	router := newInstrumentedRouter(logger, func(w http.ResponseWriter, r *http.Request) {
		seenRequestID = tracing.GetRequestID(r.Context())
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"state":"ready"}`))
	})

	req := httptest.NewRequest(http.MethodGet, "/api/session/status/acme", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, seenRequestID, "handler should see the seeded request ID")

	var logged map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &logged))
	assert.Equal(t, "Request handled", logged["msg"])
	assert.Equal(t, "/api/session/status/acme", logged["path"])
	assert.Equal(t, float64(http.StatusOK), logged["status"])
	assert.Equal(t, seenRequestID, logged["request_id"])
}

func TestObservability_ErrorStatusLogsAsError(t *testing.T) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetFormatter(&logrus.JSONFormatter{})

	router := newInstrumentedRouter(logger, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/session/status/acme", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var logged map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &logged))
	assert.Equal(t, "Request failed", logged["msg"])
	assert.Equal(t, "error", logged["level"])
}

func TestObservability_RecordsMetricsWithRouteTemplate(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{})

	router := newInstrumentedRouter(logger, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/session/status/acme", nil)
	router.ServeHTTP(httptest.NewRecorder(), req)

	counters := metrics.GetAllMetrics()["counters"].(map[string]*metrics.Metric)
	var found bool
	for key := range counters {
		if key == "http_requests_total_method:GET_path:/api/session/status/{tenantId}_status:200" {
			found = true
		}
	}
	assert.True(t, found, "expected a counter keyed by the route template")
}

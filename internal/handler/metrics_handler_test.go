package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-enrollment-api/internal/service"
)

func TestReadyReportsFailingDependency(t *testing.T) {
	h := NewMetricsHandler(service.NewMetricsService(), map[string]Pinger{
		"postgres": PingFunc(func(context.Context) error { return nil }),
		"redis":    PingFunc(func(context.Context) error { return errors.New("connection refused") }),
	})

	c, w := jsonContext(http.MethodGet, "/ready", "")
	h.Ready(c)

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"postgres":"ok"`)
	assert.Contains(t, w.Body.String(), "connection refused")
}

func TestReadyWithHealthyDependencies(t *testing.T) {
	h := NewMetricsHandler(service.NewMetricsService(), map[string]Pinger{
		"postgres": PingFunc(func(context.Context) error { return nil }),
	})

	c, w := jsonContext(http.MethodGet, "/ready", "")
	h.Ready(c)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestPrometheusExposesDomainCounters(t *testing.T) {
	metrics := service.NewMetricsService()
	metrics.RecordCapture("OK")
	h := NewMetricsHandler(metrics, nil)

	c, w := jsonContext(http.MethodGet, "/metrics", "")
	h.Prometheus(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "payment_captures_total")
}

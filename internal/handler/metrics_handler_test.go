package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/boardinghub/boardinghub-api/internal/service"
)

func TestMetricsHandlerHealth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewMetricsHandler(nil)

	router := gin.New()
	router.GET("/health", h.Health)

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/health", nil))

	if recorder.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", recorder.Code)
	}
	if !strings.Contains(recorder.Body.String(), `"status":"ok"`) {
		t.Fatalf("unexpected body: %s", recorder.Body.String())
	}
}

func TestMetricsHandlerPrometheusUnavailableWithoutService(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewMetricsHandler(nil)

	router := gin.New()
	router.GET("/metrics", h.Prometheus)

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if recorder.Code != http.StatusServiceUnavailable {
		t.Fatalf("unexpected status: %d", recorder.Code)
	}
}

func TestMetricsHandlerPrometheusExposition(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := service.NewMetricsService()
	metrics.CountResponse()
	h := NewMetricsHandler(metrics)

	router := gin.New()
	router.GET("/metrics", h.Prometheus)

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if recorder.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", recorder.Code)
	}
	if !strings.Contains(recorder.Body.String(), "survey_responses_total") {
		t.Fatalf("expected response counter in exposition, got: %s", recorder.Body.String())
	}
}

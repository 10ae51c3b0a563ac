package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zephyr-router/internal/config"
	"zephyr-router/internal/engine"
	"zephyr-router/internal/health"
	"zephyr-router/internal/idempotency"
	"zephyr-router/internal/processor"
	"zephyr-router/internal/routing"
	"zephyr-router/internal/types"
)

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	cfg := config.Config{
		HealthThreshold:   0.60,
		DegradedThreshold: 0.80,
		WindowSize:        100,
		ProbeInterval:     10,
		Seed:              1,
	}
	fleet := processor.DefaultFleet()
	ids := make([]string, 0, len(fleet))
	for _, proc := range fleet {
		ids = append(ids, proc.ID)
	}
	registry := health.NewRegistry(ids, cfg.WindowSize, cfg.HealthThreshold, cfg.DegradedThreshold)
	rng := processor.NewLockedRand(cfg.Seed)
	router, err := routing.New(fleet, registry, rng, cfg.ProbeInterval)
	require.NoError(t, err)
	h := &Handlers{Engine: engine.New(cfg, fleet, registry, router, idempotency.NewMemoryStore(), rng)}

	app := fiber.New()
	app.Post("/transactions", h.TransactionHandler)
	app.Get("/health", h.HealthHandler)
	app.Post("/simulate/outage/:id", h.SimulateOutageHandler)
	app.Post("/simulate/recover/:id", h.SimulateRecoverHandler)
	app.Post("/simulate/reset", h.SimulateResetHandler)
	return app
}

func postJSON(t *testing.T, app *fiber.App, path, body string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out T
	require.NoError(t, json.Unmarshal(body, &out))
	return out
}

func TestTransactionHandlerApprovedFlow(t *testing.T) {
	app := newTestApp(t)

	resp := postJSON(t, app, "/transactions", `{"amount": 100, "currency": "COP"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	result := decode[types.TransactionResult](t, resp)
	assert.NotEmpty(t, result.TransactionID)
	assert.Equal(t, "COP", result.Currency)
	assert.Equal(t, 100.0, result.Amount)
	assert.Equal(t, "processor_c", result.ProcessorID)
	assert.Contains(t, []types.TransactionStatus{types.StatusApproved, types.StatusDeclined}, result.Status)
	assert.Nil(t, result.RequestID)
}

func TestTransactionHandlerRejectsMalformedInput(t *testing.T) {
	app := newTestApp(t)

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{"amount": `},
		{"missing amount", `{"currency": "COP"}`},
		{"negative amount", `{"amount": -5, "currency": "COP"}`},
		{"zero amount", `{"amount": 0, "currency": "COP"}`},
		{"unknown currency", `{"amount": 100, "currency": "USD"}`},
		{"missing currency", `{"amount": 100}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postJSON(t, app, "/transactions", tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}

	// Rejected requests leave no health side effects behind.
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	report := decode[types.HealthReport](t, resp)
	for _, proc := range report.Processors {
		assert.Equal(t, 0, proc.TotalAttempts)
	}
}

func TestTransactionHandlerEchoesRequestID(t *testing.T) {
	app := newTestApp(t)

	resp := postJSON(t, app, "/transactions", `{"amount": 500, "currency": "PEN", "request_id": "trace-abc-123"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	result := decode[types.TransactionResult](t, resp)
	require.NotNil(t, result.RequestID)
	assert.Equal(t, "trace-abc-123", *result.RequestID)
}

func TestTransactionHandlerIdempotentReplay(t *testing.T) {
	app := newTestApp(t)
	body := `{"amount": 100, "currency": "COP", "idempotency_key": "key-123"}`

	first := decode[types.TransactionResult](t, postJSON(t, app, "/transactions", body))
	second := decode[types.TransactionResult](t, postJSON(t, app, "/transactions", body))

	assert.Equal(t, first.TransactionID, second.TransactionID)
	assert.Equal(t, first.Timestamp, second.Timestamp)
}

func TestHealthHandlerReportsAllProcessors(t *testing.T) {
	app := newTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	report := decode[types.HealthReport](t, resp)
	assert.Equal(t, 0.60, report.HealthThreshold)
	require.Len(t, report.Processors, 3)
	for _, proc := range report.Processors {
		assert.Equal(t, "healthy", proc.Status)
		assert.Equal(t, 1.0, proc.SuccessRate)
		assert.True(t, proc.IsRoutingEnabled)
	}
}

func TestSimulateOutageHandler(t *testing.T) {
	app := newTestApp(t)

	resp := postJSON(t, app, "/simulate/outage/processor_a", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	response := decode[types.SimulationResponse](t, resp)
	assert.Equal(t, "processor_a", response.ProcessorID)
	assert.Equal(t, 0.10, response.SuccessRate)

	resp = postJSON(t, app, "/simulate/recover/processor_a", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	response = decode[types.SimulationResponse](t, resp)
	assert.Equal(t, 0.85, response.SuccessRate)
}

func TestSimulateOutageHandlerCustomRate(t *testing.T) {
	app := newTestApp(t)

	resp := postJSON(t, app, "/simulate/outage/processor_b", `{"success_rate": 0.25}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	response := decode[types.SimulationResponse](t, resp)
	assert.Equal(t, 0.25, response.SuccessRate)
}

func TestSimulateHandlersUnknownProcessor(t *testing.T) {
	app := newTestApp(t)

	resp := postJSON(t, app, "/simulate/outage/nope", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = postJSON(t, app, "/simulate/recover/nope", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSimulateResetHandler(t *testing.T) {
	app := newTestApp(t)

	body := `{"amount": 100, "currency": "COP", "idempotency_key": "reset-test"}`
	first := decode[types.TransactionResult](t, postJSON(t, app, "/transactions", body))

	resp := postJSON(t, app, "/simulate/reset", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	second := decode[types.TransactionResult](t, postJSON(t, app, "/transactions", body))
	assert.NotEqual(t, first.TransactionID, second.TransactionID)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	healthResp, err := app.Test(req)
	require.NoError(t, err)
	report := decode[types.HealthReport](t, healthResp)
	for _, proc := range report.Processors {
		if proc.ProcessorID == "processor_c" {
			assert.Equal(t, 1, proc.TotalAttempts)
		} else {
			assert.Equal(t, 0, proc.TotalAttempts)
		}
	}
}

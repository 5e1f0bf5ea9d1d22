package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type probeBody struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    struct {
		Status  string            `json:"status"`
		Version string            `json:"version"`
		Checks  map[string]string `json:"checks"`
	} `json:"data"`
	Error struct {
		Code string `json:"code"`
	} `json:"error"`
}

func probe(t *testing.T, h *HealthHandler, path string) (int, probeBody) {
	t.Helper()
	app := fiber.New()
	app.Get("/health", h.Health)
	app.Get("/ready", h.Ready)

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, path, nil))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var body probeBody
	require.NoError(t, json.Unmarshal(raw, &body))
	return resp.StatusCode, body
}

func TestHealthHandler(t *testing.T) {
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }
	logger := log.New(io.Discard, "", 0)

	t.Run("health ignores dependencies", func(t *testing.T) {
		h := NewHealthHandler("1.2.0", time.Second, map[string]Checker{"database": down}, logger)
		status, body := probe(t, h, "/health")
		assert.Equal(t, fiber.StatusOK, status)
		assert.True(t, body.Success)
		assert.Equal(t, "ok", body.Data.Status)
		assert.Equal(t, "1.2.0", body.Data.Version)
	})

	t.Run("ready when every check passes", func(t *testing.T) {
		h := NewHealthHandler("1.2.0", time.Second, map[string]Checker{"database": ok, "cache": ok}, logger)
		status, body := probe(t, h, "/ready")
		assert.Equal(t, fiber.StatusOK, status)
		assert.Equal(t, "ready", body.Data.Status)
		assert.Equal(t, map[string]string{"database": "ok", "cache": "ok"}, body.Data.Checks)
	})

	t.Run("not ready when a check fails", func(t *testing.T) {
		h := NewHealthHandler("1.2.0", time.Second, map[string]Checker{"database": ok, "cache": down}, logger)
		status, body := probe(t, h, "/ready")
		assert.Equal(t, fiber.StatusServiceUnavailable, status)
		assert.False(t, body.Success)
		assert.Equal(t, "not_ready", body.Data.Status)
		assert.Equal(t, "unavailable", body.Data.Checks["cache"])
		assert.Equal(t, "SERVICE_NOT_READY", body.Error.Code)
	})

	t.Run("checks share the probe timeout", func(t *testing.T) {
		slow := func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		}
		h := NewHealthHandler("1.2.0", 20*time.Millisecond, map[string]Checker{"database": slow}, logger)
		status, _ := probe(t, h, "/ready")
		assert.Equal(t, fiber.StatusServiceUnavailable, status)
	})
}

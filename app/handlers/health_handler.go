// Package handlers contains HTTP request handlers for the ops endpoints
package handlers

import (
	"context"
	"log"
	"sort"
	"time"

	"github.com/amirphl/fuel-pricing-config/app/dto"
	"github.com/amirphl/fuel-pricing-config/utils"
	"github.com/gofiber/fiber/v3"
)

// Checker probes one dependency
type Checker func(ctx context.Context) error

// HealthHandlerInterface defines the liveness and readiness probes
type HealthHandlerInterface interface {
	Health(c fiber.Ctx) error
	Ready(c fiber.Ctx) error
}

// HealthHandler answers the probes. Readiness runs every registered checker.
type HealthHandler struct {
	version  string
	timeout  time.Duration
	checkers map[string]Checker
	logger   *log.Logger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(version string, timeout time.Duration, checkers map[string]Checker, logger *log.Logger) *HealthHandler {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	if logger == nil {
		logger = log.Default()
	}
	return &HealthHandler{version: version, timeout: timeout, checkers: checkers, logger: logger}
}

// Health reports that the process is up
func (h *HealthHandler) Health(c fiber.Ctx) error {
	return c.JSON(dto.APIResponse{
		Success: true,
		Message: "Service is healthy",
		Data: dto.HealthResponse{
			Status:    "ok",
			Version:   h.version,
			Timestamp: utils.UTCNow().Format(time.RFC3339),
		},
	})
}

// Ready reports whether the database and cache answer
func (h *HealthHandler) Ready(c fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), h.timeout)
	defer cancel()

	names := make([]string, 0, len(h.checkers))
	for name := range h.checkers {
		names = append(names, name)
	}
	sort.Strings(names)

	checks := make(map[string]string, len(names))
	ready := true
	for _, name := range names {
		if err := h.checkers[name](ctx); err != nil {
			h.logger.Printf("readiness: %s check failed: %v", name, err)
			checks[name] = "unavailable"
			ready = false
			continue
		}
		checks[name] = "ok"
	}

	resp := dto.HealthResponse{
		Status:    "ready",
		Version:   h.version,
		Timestamp: utils.UTCNow().Format(time.RFC3339),
		Checks:    checks,
	}
	if !ready {
		resp.Status = "not_ready"
		return c.Status(fiber.StatusServiceUnavailable).JSON(dto.APIResponse{
			Success: false,
			Message: "Service is not ready",
			Data:    resp,
			Error:   dto.ErrorDetail{Code: "SERVICE_NOT_READY"},
		})
	}
	return c.JSON(dto.APIResponse{
		Success: true,
		Message: "Service is ready",
		Data:    resp,
	})
}

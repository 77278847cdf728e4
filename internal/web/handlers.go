package web

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"monitord/internal/engine"
	"monitord/internal/models"
	"monitord/internal/rules"
)

func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.engine.Status())
}

func (s *Server) handleMetrics(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"metrics":   s.engine.LatestSnapshot(c.UserContext()),
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) handleAlerts(c *fiber.Ctx) error {
	out := fiber.Map{"summary": s.engine.Summary()}
	if c.Query("history") != "" {
		n := c.QueryInt("history", 0)
		if n < 0 {
			return fiber.NewError(fiber.StatusBadRequest, "history must be >= 0")
		}
		out["history"] = s.engine.History(n)
	}
	return c.JSON(out)
}

func (s *Server) handleRules(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"rules": s.engine.Rules()})
}

type intervalRequest struct {
	IntervalSeconds int `json:"interval_seconds"`
}

func (s *Server) parseInterval(c *fiber.Ctx) (time.Duration, error) {
	var req intervalRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return 0, fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
	}
	if req.IntervalSeconds < 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "interval_seconds must be positive")
	}
	if req.IntervalSeconds == 0 {
		return s.interval, nil
	}
	return time.Duration(req.IntervalSeconds) * time.Second, nil
}

func (s *Server) handleStart(c *fiber.Ctx) error {
	interval, err := s.parseInterval(c)
	if err != nil {
		return err
	}
	if err := s.engine.Launch(s.base, interval); err != nil {
		if errors.Is(err, engine.ErrAlreadyRunning) {
			return fiber.NewError(fiber.StatusConflict, "Monitoring is already running")
		}
		return err
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"status": "started", "interval_seconds": interval.Seconds()})
}

func (s *Server) handleStop(c *fiber.Ctx) error {
	if err := s.engine.Stop(); err != nil {
		if errors.Is(err, engine.ErrNotRunning) {
			return fiber.NewError(fiber.StatusConflict, "Monitoring is not running")
		}
		return err
	}
	return c.JSON(fiber.Map{"status": "stopped"})
}

func (s *Server) handleRestart(c *fiber.Ctx) error {
	interval, err := s.parseInterval(c)
	if err != nil {
		return err
	}
	go func() {
		if err := s.engine.Restart(s.base, interval); err != nil {
			s.log.Error("restart monitoring", "err", err)
		}
	}()
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"status": "restarting", "interval_seconds": interval.Seconds()})
}

type toggleRequest struct {
	Enabled *bool `json:"enabled"`
}

func (s *Server) handleToggleRule(c *fiber.Ctx) error {
	var req toggleRequest
	if err := c.BodyParser(&req); err != nil || req.Enabled == nil {
		return fiber.NewError(fiber.StatusBadRequest, "enabled is required")
	}
	name := c.Params("name")
	if err := s.engine.SetRuleEnabled(name, *req.Enabled); err != nil {
		if errors.Is(err, rules.ErrRuleNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "Rule not found")
		}
		return err
	}
	return c.JSON(fiber.Map{"name": name, "enabled": *req.Enabled})
}

func (s *Server) handleResolve(c *fiber.Ctx) error {
	id := c.Params("id")
	if !s.engine.ResolveAlert(c.UserContext(), id) {
		return fiber.NewError(fiber.StatusNotFound, "Alert not found or already resolved")
	}
	return c.JSON(fiber.Map{"id": id, "resolved": true})
}

type testAlertRequest struct {
	Channels []models.Channel `json:"channels"`
	Severity models.Severity  `json:"severity"`
}

func (s *Server) handleTestAlert(c *fiber.Ctx) error {
	var req testAlertRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body: "+err.Error())
		}
	}
	a, results := s.engine.SendTestAlert(c.UserContext(), req.Channels, req.Severity)
	return c.JSON(fiber.Map{"alert": a, "results": results})
}

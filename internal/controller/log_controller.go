package controller

import (
	"errors"
	"strconv"

	"survey-assistant-be/internal/pkg/logger"
	"survey-assistant-be/internal/pkg/serverutils"
	"survey-assistant-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type ILogController interface {
	RegisterRoutes(r fiber.Router)
	GetLogs(ctx *fiber.Ctx) error
	GetLogDetail(ctx *fiber.Ctx) error
}

type logController struct {
	service    service.ILogService
	adminToken string
}

// NewLogController serves the admin log reader. With an empty admin token the routes are
// not registered.
func NewLogController(service service.ILogService, adminToken string) ILogController {
	return &logController{service: service, adminToken: adminToken}
}

func (c *logController) RegisterRoutes(r fiber.Router) {
	if c.adminToken == "" {
		return
	}
	h := r.Group("/admin", c.requireAdmin)
	h.Get("/logs", c.GetLogs)
	h.Get("/logs/:id", c.GetLogDetail)
}

func (c *logController) requireAdmin(ctx *fiber.Ctx) error {
	if ctx.Get("X-Admin-Token") != c.adminToken {
		return ctx.Status(fiber.StatusUnauthorized).JSON(serverutils.ErrorResponse(fiber.StatusUnauthorized, "Invalid admin token"))
	}
	return ctx.Next()
}

func (c *logController) GetLogs(ctx *fiber.Ctx) error {
	page, _ := strconv.Atoi(ctx.Query("page", "1"))
	limit, _ := strconv.Atoi(ctx.Query("limit", "10"))
	level := ctx.Query("level", "")

	logs, err := c.service.GetSystemLogs(ctx.Context(), page, limit, level)
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(serverutils.ErrorResponse(500, err.Error()))
	}
	return ctx.JSON(serverutils.SuccessResponse("System logs", logs))
}

func (c *logController) GetLogDetail(ctx *fiber.Ctx) error {
	l, err := c.service.GetLogDetail(ctx.Context(), ctx.Params("id"))
	if errors.Is(err, logger.ErrLogNotFound) {
		return ctx.Status(fiber.StatusNotFound).JSON(serverutils.ErrorResponse(404, "Log not found"))
	}
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(serverutils.ErrorResponse(500, err.Error()))
	}
	return ctx.JSON(serverutils.SuccessResponse("Log detail", l))
}

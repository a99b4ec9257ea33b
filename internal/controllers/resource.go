package controllers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"clan-backend/internal/authz"
	"clan-backend/internal/services"
	"clan-backend/pkg/api"
	apperrors "clan-backend/pkg/errors"
	"clan-backend/pkg/utils"
)

// ResourceController: общие CRUD-эндпоинты для всех ресурсов реестра.
type ResourceController struct {
	resourceService services.ResourceServiceInterface
	logger          *zap.Logger
}

func NewResourceController(resourceService services.ResourceServiceInterface, logger *zap.Logger) *ResourceController {
	return &ResourceController{
		resourceService: resourceService,
		logger:          logger,
	}
}

func resourceParam(ctx echo.Context) authz.ResourceType {
	return authz.ResourceType(ctx.Param("type"))
}

func parseIDParam(ctx echo.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(ctx.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, apperrors.NewBadRequestError("Некорректный ID")
	}
	return id, nil
}

// bindRecord читает только тело запроса: параметры пути в запись попасть не должны.
func bindRecord(ctx echo.Context) (authz.Record, error) {
	payload := authz.Record{}
	if err := (&echo.DefaultBinder{}).BindBody(ctx, &payload); err != nil {
		return nil, apperrors.NewBadRequestError("Неверный формат данных")
	}
	return payload, nil
}

func (c *ResourceController) List(ctx echo.Context) error {
	resource := resourceParam(ctx)
	params := utils.ParseQuery(ctx.QueryParams())

	rows, total, err := c.resourceService.List(ctx.Request().Context(), resource, params)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return api.SuccessList(ctx, "Список успешно получен", rows, total, int(params.Page), int(params.Limit))
}

func (c *ResourceController) Find(ctx echo.Context) error {
	id, err := parseIDParam(ctx, "id")
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	row, err := c.resourceService.Get(ctx.Request().Context(), resourceParam(ctx), id)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return api.SuccessOne(ctx, http.StatusOK, "Запись успешно найдена", row)
}

func (c *ResourceController) Create(ctx echo.Context) error {
	payload, err := bindRecord(ctx)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	row, err := c.resourceService.Create(ctx.Request().Context(), resourceParam(ctx), payload)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return api.SuccessOne(ctx, http.StatusCreated, "Запись успешно создана", row)
}

// Update обслуживает и PUT, и PATCH: изменяются только переданные поля.
func (c *ResourceController) Update(ctx echo.Context) error {
	id, err := parseIDParam(ctx, "id")
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	payload, err := bindRecord(ctx)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	row, err := c.resourceService.Update(ctx.Request().Context(), resourceParam(ctx), id, payload)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return api.SuccessOne(ctx, http.StatusOK, "Запись успешно обновлена", row)
}

func (c *ResourceController) Delete(ctx echo.Context) error {
	id, err := parseIDParam(ctx, "id")
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	if err := c.resourceService.Delete(ctx.Request().Context(), resourceParam(ctx), id); err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return api.NoContent(ctx, "Запись успешно удалена")
}

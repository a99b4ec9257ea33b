package controllers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"clan-backend/internal/dto"
	"clan-backend/internal/services"
	"clan-backend/pkg/api"
	apperrors "clan-backend/pkg/errors"
	"clan-backend/pkg/utils"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type AccessController struct {
	matrixService services.AccessMatrixServiceInterface
	adminService  services.AccessAdminServiceInterface
	logger        *zap.Logger
}

func NewAccessController(
	matrixService services.AccessMatrixServiceInterface,
	adminService services.AccessAdminServiceInterface,
	logger *zap.Logger,
) *AccessController {
	return &AccessController{
		matrixService: matrixService,
		adminService:  adminService,
		logger:        logger,
	}
}

func (c *AccessController) Me(ctx echo.Context) error {
	overview, err := c.matrixService.Overview(ctx.Request().Context())
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return api.SuccessOne(ctx, http.StatusOK, "Права доступа получены", overview)
}

func (c *AccessController) Matrix(ctx echo.Context) error {
	buf, err := c.matrixService.ExportXLSX(ctx.Request().Context())
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	fileName := fmt.Sprintf("access_%s.xlsx", time.Now().Format("2006-01-02"))
	ctx.Response().Header().Set("Content-Disposition", "attachment; filename="+fileName)
	return ctx.Blob(http.StatusOK, xlsxContentType, buf.Bytes())
}

func (c *AccessController) GrantUserPermission(ctx echo.Context) error {
	var payload dto.UserPermissionDTO
	if err := ctx.Bind(&payload); err != nil {
		return utils.ErrorResponse(ctx, apperrors.NewBadRequestError("Неверный формат данных"), c.logger)
	}
	if err := ctx.Validate(&payload); err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	if err := c.adminService.GrantUserPermission(ctx.Request().Context(), payload); err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return api.NoContent(ctx, "Право выдано")
}

func (c *AccessController) RevokeUserPermission(ctx echo.Context) error {
	userID, err := parseIDParam(ctx, "user_id")
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	permissionID, err := parseIDParam(ctx, "permission_id")
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	payload := dto.UserPermissionDTO{UserID: userID, PermissionID: permissionID}
	if err := c.adminService.RevokeUserPermission(ctx.Request().Context(), payload); err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return api.NoContent(ctx, "Право отозвано")
}

func (c *AccessController) AttachRolePermission(ctx echo.Context) error {
	var payload dto.RolePermissionDTO
	if err := ctx.Bind(&payload); err != nil {
		return utils.ErrorResponse(ctx, apperrors.NewBadRequestError("Неверный формат данных"), c.logger)
	}
	if err := ctx.Validate(&payload); err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	if err := c.adminService.AttachRolePermission(ctx.Request().Context(), payload); err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return api.NoContent(ctx, "Право добавлено в роль")
}

func (c *AccessController) DetachRolePermission(ctx echo.Context) error {
	roleID, err := parseIDParam(ctx, "role_id")
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	permissionID, err := parseIDParam(ctx, "permission_id")
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	payload := dto.RolePermissionDTO{RoleID: roleID, PermissionID: permissionID}
	if err := c.adminService.DetachRolePermission(ctx.Request().Context(), payload); err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return api.NoContent(ctx, "Право убрано из роли")
}

func (c *AccessController) AssignBranches(ctx echo.Context) error {
	var payload dto.AssignBranchesDTO
	if err := ctx.Bind(&payload); err != nil {
		return utils.ErrorResponse(ctx, apperrors.NewBadRequestError("Неверный формат данных"), c.logger)
	}
	if err := ctx.Validate(&payload); err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	assignment, err := c.adminService.AssignBranches(ctx.Request().Context(), payload)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return api.SuccessOne(ctx, http.StatusOK, "Назначение филиалов обновлено", assignment)
}

package routes

import (
	"github.com/labstack/echo/v4"

	"clan-backend/internal/controllers"
)

func runAccessRouter(secureGroup *echo.Group, ctrl *controllers.AccessController) {
	access := secureGroup.Group("/access")

	access.GET("/me", ctrl.Me)
	access.GET("/me/matrix.xlsx", ctrl.Matrix)

	access.POST("/user-permissions", ctrl.GrantUserPermission)
	access.DELETE("/user-permissions/:user_id/:permission_id", ctrl.RevokeUserPermission)
	access.POST("/role-permissions", ctrl.AttachRolePermission)
	access.DELETE("/role-permissions/:role_id/:permission_id", ctrl.DetachRolePermission)
	access.PUT("/assigned-branches", ctrl.AssignBranches)
}

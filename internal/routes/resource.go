package routes

import (
	"github.com/labstack/echo/v4"

	"clan-backend/internal/controllers"
)

// Проверка доступа выполняется в сервисе: глагол, область и поля зависят от :type.
func runResourceRouter(secureGroup *echo.Group, ctrl *controllers.ResourceController) {
	resources := secureGroup.Group("/resources/:type")

	resources.GET("", ctrl.List)
	resources.POST("", ctrl.Create)
	resources.GET("/:id", ctrl.Find)
	resources.PUT("/:id", ctrl.Update)
	resources.PATCH("/:id", ctrl.Update)
	resources.DELETE("/:id", ctrl.Delete)
}

package routes

import (
	"github.com/labstack/echo/v4"

	"clan-backend/internal/controllers"
)

func runAuthRouter(api *echo.Group, authCtrl *controllers.AuthController) {
	auth := api.Group("/auth")
	auth.POST("/login", authCtrl.Login)
	auth.POST("/refresh", authCtrl.RefreshToken)
}

package http

import (
	"github.com/gin-gonic/gin"

	"paperbrain/internal/bootstrap"
	"paperbrain/internal/transport/http/handler"
	"paperbrain/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(middleware.RequestLogger(app.Logger), middleware.Recovery(app.Logger))
	router.MaxMultipartMemory = app.Config.MaxUploadBytes()

	healthHandler := handler.NewHealthHandler(app)
	router.GET("/healthz", healthHandler.Check)

	authHandler := handler.NewAuthHandler(app.Auth)
	documentHandler := handler.NewDocumentHandler(app.Core.Documents, app.Uploads, app.Config.MaxUploadBytes())
	sessionHandler := handler.NewSessionHandler(app.Core.Sessions)
	messageHandler := handler.NewMessageHandler(app.Orchestrator, app.Core.Log)

	v1 := router.Group("/api/v1")
	v1.Use(middleware.AuthOwner(app.Auth))

	v1.GET("/auth/me", authHandler.Me)

	v1.POST("/documents", documentHandler.Upload)
	v1.GET("/documents", documentHandler.List)
	v1.GET("/documents/:id", documentHandler.Get)
	v1.DELETE("/documents/:id", documentHandler.Delete)

	v1.POST("/documents/:id/sessions", sessionHandler.Create)
	v1.GET("/documents/:id/sessions", sessionHandler.List)
	v1.GET("/sessions/:id", sessionHandler.Get)
	v1.DELETE("/sessions/:id", sessionHandler.Delete)

	v1.POST("/sessions/:id/messages", messageHandler.Post)
	v1.GET("/sessions/:id/messages", messageHandler.List)

	return router
}

package server

import (
	"time"

	"github.com/gin-gonic/gin"

	"happyd/internal/auth"
	"happyd/internal/handler"
	"happyd/internal/middleware"
	"happyd/internal/store"
)

type Deps struct {
	Store       *store.Store
	TokenConfig auth.TokenConfig
}

func NewRouter(deps Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})

	tokenLimiter := middleware.NewRateLimiter(10, time.Minute)
	authHandler := &handler.AuthHandler{TokenConfig: deps.TokenConfig}
	r.POST("/v1/auth/token", tokenLimiter.Limit(), authHandler.Token)

	protected := r.Group("/v1")
	protected.Use(middleware.RequireAuth(deps.TokenConfig))

	sessionHandler := &handler.SessionHandler{Store: deps.Store}
	protected.GET("/sessions", sessionHandler.List)
	protected.POST("/sessions", sessionHandler.GetOrCreate)
	protected.GET("/sessions/:id", sessionHandler.Get)
	protected.DELETE("/sessions/:id", sessionHandler.Delete)
	protected.POST("/sessions/:id/metadata", sessionHandler.UpdateMetadata)
	protected.POST("/sessions/:id/agent-state", sessionHandler.UpdateAgentState)
	protected.POST("/sessions/:id/todos", sessionHandler.SetTodos)
	protected.GET("/sessions/:id/messages", sessionHandler.Messages)
	protected.POST("/sessions/:id/messages", sessionHandler.AddMessage)

	machineHandler := &handler.MachineHandler{Store: deps.Store}
	protected.GET("/machines", machineHandler.List)
	protected.POST("/machines", machineHandler.GetOrCreate)
	protected.GET("/machines/:id", machineHandler.Get)
	protected.POST("/machines/:id/metadata", machineHandler.UpdateMetadata)
	protected.POST("/machines/:id/daemon-state", machineHandler.UpdateDaemonState)

	userHandler := &handler.UserHandler{Store: deps.Store}
	protected.POST("/users", userHandler.Add)
	protected.GET("/users/:platform", userHandler.ListByPlatform)
	protected.DELETE("/users/:platform/:platformUserId", userHandler.Remove)

	pushHandler := &handler.PushHandler{Store: deps.Store}
	protected.POST("/push/subscriptions", pushHandler.Subscribe)
	protected.DELETE("/push/subscriptions", pushHandler.Unsubscribe)
	protected.GET("/push/subscriptions", pushHandler.List)

	return r
}

package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter wires every route onto a fresh gin engine.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(h.log))

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")
	api.GET("/token", h.GetTokenLink)
	api.GET("/users/:address", h.GetUser)
	api.GET("/posts/count", h.PostCount)
	api.GET("/posts/:id", h.GetPost)

	authed := api.Group("", h.Auth.RequireCaller())
	authed.POST("/register", h.Register)
	authed.POST("/posts", h.CreatePost)
	authed.POST("/unblock-requests", h.RequestUnblock)

	admin := api.Group("/admin", h.Auth.RequireCaller())
	admin.POST("/users/:address/unblock", h.AnalyzeAndUnblockUser)
	admin.POST("/users/:address/reject", h.RejectUnblockRequest)
	admin.GET("/users/:address/posts", h.requireOwner, h.PostsByAuthor)
	admin.GET("/blocked", h.requireOwner, h.ListBlocked)
	admin.GET("/unblock-requests", h.requireOwner, h.ListPendingUnblock)
	admin.GET("/stats", h.requireOwner, h.Stats)
	admin.GET("/dashboard", h.requireOwner, h.Dashboard)

	r.GET("/ws/events", h.Auth.RequireCaller(), h.requireOwner, h.ServeWebSocket)
	return r
}

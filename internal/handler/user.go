package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"happyd/internal/middleware"
	"happyd/internal/model"
	"happyd/internal/store"
)

type UserHandler struct {
	Store *store.Store
}

type addUserBody struct {
	Platform       string `json:"platform"`
	PlatformUserID string `json:"platformUserId"`
}

func userJSON(u model.User) gin.H {
	return gin.H{
		"id":             u.ID,
		"platform":       u.Platform,
		"platformUserId": u.PlatformUserID,
		"createdAt":      u.CreatedAt,
	}
}

func (h *UserHandler) Add(c *gin.Context) {
	namespace, ok := middleware.NamespaceFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
		return
	}

	var body addUserBody
	if err := c.ShouldBindJSON(&body); err != nil || body.Platform == "" || body.PlatformUserID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	u, err := h.Store.AddUser(body.Platform, body.PlatformUserID, namespace)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not register user"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": userJSON(u)})
}

func (h *UserHandler) ListByPlatform(c *gin.Context) {
	namespace, ok := middleware.NamespaceFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
		return
	}

	platform := c.Param("platform")
	users, err := h.Store.GetUsersByPlatformAndNamespace(platform, namespace)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not list users"})
		return
	}

	resp := make([]gin.H, 0, len(users))
	for _, u := range users {
		resp = append(resp, userJSON(u))
	}
	c.JSON(http.StatusOK, gin.H{"users": resp})
}

func (h *UserHandler) Remove(c *gin.Context) {
	if _, ok := middleware.NamespaceFromContext(c); !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
		return
	}

	removed, err := h.Store.RemoveUser(c.Param("platform"), c.Param("platformUserId"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not remove user"})
		return
	}
	if !removed {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"happyd/internal/auth"
)

type AuthHandler struct {
	TokenConfig auth.TokenConfig
}

type tokenBody struct {
	Namespace string `json:"namespace"`
}

// Token mints a bearer token for a namespace. Rate limited at the router;
// real deployments put this behind their own identity layer.
func (h *AuthHandler) Token(c *gin.Context) {
	var body tokenBody
	if err := c.ShouldBindJSON(&body); err != nil || body.Namespace == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	token, err := auth.CreateToken(body.Namespace, h.TokenConfig)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not create token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

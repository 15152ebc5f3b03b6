package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"happyd/internal/middleware"
	"happyd/internal/store"
)

type PushHandler struct {
	Store *store.Store
}

type pushSubscriptionBody struct {
	Endpoint string `json:"endpoint"`
	P256dh   string `json:"p256dh"`
	Auth     string `json:"auth"`
}

func (h *PushHandler) Subscribe(c *gin.Context) {
	namespace, ok := middleware.NamespaceFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
		return
	}

	var body pushSubscriptionBody
	if err := c.ShouldBindJSON(&body); err != nil || body.Endpoint == "" || body.P256dh == "" || body.Auth == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	err := h.Store.AddPushSubscription(namespace, store.PushSubscriptionInput{
		Endpoint: body.Endpoint,
		P256dh:   body.P256dh,
		Auth:     body.Auth,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not save subscription"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *PushHandler) Unsubscribe(c *gin.Context) {
	namespace, ok := middleware.NamespaceFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
		return
	}

	var body struct {
		Endpoint string `json:"endpoint"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.Endpoint == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	removed, err := h.Store.RemovePushSubscription(namespace, body.Endpoint)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not remove subscription"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": removed})
}

func (h *PushHandler) List(c *gin.Context) {
	namespace, ok := middleware.NamespaceFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
		return
	}

	subs, err := h.Store.GetPushSubscriptionsByNamespace(namespace)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not list subscriptions"})
		return
	}

	resp := make([]gin.H, 0, len(subs))
	for _, sub := range subs {
		resp = append(resp, gin.H{
			"id":        sub.ID,
			"endpoint":  sub.Endpoint,
			"createdAt": sub.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"subscriptions": resp})
}

package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"happyd/internal/middleware"
	"happyd/internal/store"
)

type SessionHandler struct {
	Store *store.Store
}

type createSessionBody struct {
	Tag        string `json:"tag"`
	Metadata   any    `json:"metadata"`
	AgentState any    `json:"agentState"`
}

func (h *SessionHandler) GetOrCreate(c *gin.Context) {
	namespace, ok := middleware.NamespaceFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
		return
	}

	var body createSessionBody
	if err := c.ShouldBindJSON(&body); err != nil || body.Tag == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	sess, err := h.Store.GetOrCreateSession(body.Tag, body.Metadata, body.AgentState, namespace)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not create session"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": sessionJSON(sess)})
}

func (h *SessionHandler) List(c *gin.Context) {
	namespace, ok := middleware.NamespaceFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
		return
	}

	sessions, err := h.Store.GetSessionsByNamespace(namespace)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not list sessions"})
		return
	}

	resp := make([]gin.H, 0, len(sessions))
	for _, sess := range sessions {
		resp = append(resp, sessionJSON(sess))
	}
	c.JSON(http.StatusOK, gin.H{"sessions": resp})
}

func (h *SessionHandler) Get(c *gin.Context) {
	namespace, ok := middleware.NamespaceFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
		return
	}

	sess, err := h.Store.GetSessionByNamespace(c.Param("id"), namespace)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not load session"})
		return
	}
	if sess == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": sessionJSON(*sess)})
}

func (h *SessionHandler) Delete(c *gin.Context) {
	namespace, ok := middleware.NamespaceFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
		return
	}

	removed, err := h.Store.DeleteSession(c.Param("id"), namespace)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not delete session"})
		return
	}
	if !removed {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type updateMetadataBody struct {
	Metadata        any   `json:"metadata"`
	ExpectedVersion int64 `json:"expectedVersion"`
	TouchUpdatedAt  *bool `json:"touchUpdatedAt"`
}

func (h *SessionHandler) UpdateMetadata(c *gin.Context) {
	namespace, ok := middleware.NamespaceFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
		return
	}

	var body updateMetadataBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	touch := body.TouchUpdatedAt == nil || *body.TouchUpdatedAt
	res := h.Store.UpdateSessionMetadata(c.Param("id"), body.Metadata, body.ExpectedVersion, namespace, touch)
	renderUpdateResult(c, res)
}

type updateAgentStateBody struct {
	AgentState      any   `json:"agentState"`
	ExpectedVersion int64 `json:"expectedVersion"`
}

func (h *SessionHandler) UpdateAgentState(c *gin.Context) {
	namespace, ok := middleware.NamespaceFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
		return
	}

	var body updateAgentStateBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	res := h.Store.UpdateSessionAgentState(c.Param("id"), body.AgentState, body.ExpectedVersion, namespace)
	renderUpdateResult(c, res)
}

type setTodosBody struct {
	Todos          any   `json:"todos"`
	TodosUpdatedAt int64 `json:"todosUpdatedAt"`
}

func (h *SessionHandler) SetTodos(c *gin.Context) {
	namespace, ok := middleware.NamespaceFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
		return
	}

	var body setTodosBody
	if err := c.ShouldBindJSON(&body); err != nil || body.TodosUpdatedAt <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	applied := h.Store.SetSessionTodos(c.Param("id"), body.Todos, body.TodosUpdatedAt, namespace)
	c.JSON(http.StatusOK, gin.H{"applied": applied})
}

type addMessageBody struct {
	Content any    `json:"content"`
	LocalID string `json:"localId"`
}

func (h *SessionHandler) AddMessage(c *gin.Context) {
	namespace, ok := middleware.NamespaceFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
		return
	}

	sess, err := h.Store.GetSessionByNamespace(c.Param("id"), namespace)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not load session"})
		return
	}
	if sess == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}

	var body addMessageBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	msg, err := h.Store.AddMessage(sess.ID, body.Content, body.LocalID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not append message"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": messageJSON(msg)})
}

// Messages serves both pagination directions: afterSeq for forward
// catch-up reads, beforeSeq (or nothing) for backward pages from the tip.
func (h *SessionHandler) Messages(c *gin.Context) {
	namespace, ok := middleware.NamespaceFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
		return
	}

	sess, err := h.Store.GetSessionByNamespace(c.Param("id"), namespace)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not load session"})
		return
	}
	if sess == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}

	limit := intQuery(c, "limit", 0)
	if raw, present := c.GetQuery("afterSeq"); present {
		afterSeq, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid afterSeq"})
			return
		}
		msgs, err := h.Store.GetMessagesAfter(sess.ID, afterSeq, limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not list messages"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"messages": messagesJSON(msgs)})
		return
	}

	beforeSeq := int64(intQuery(c, "beforeSeq", 0))
	msgs, err := h.Store.GetMessages(sess.ID, limit, beforeSeq)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not list messages"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messagesJSON(msgs)})
}

package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"happyd/internal/model"
	"happyd/internal/store"
)

func sessionJSON(sess model.Session) gin.H {
	return gin.H{
		"id":                sess.ID,
		"tag":               sess.Tag,
		"machineId":         sess.MachineID,
		"createdAt":         sess.CreatedAt,
		"updatedAt":         sess.UpdatedAt,
		"metadata":          sess.Metadata,
		"metadataVersion":   sess.MetadataVersion,
		"agentState":        sess.AgentState,
		"agentStateVersion": sess.AgentStateVersion,
		"todos":             sess.Todos,
		"todosUpdatedAt":    sess.TodosUpdatedAt,
		"active":            sess.Active,
		"activeAt":          sess.ActiveAt,
		"seq":               sess.Seq,
	}
}

func machineJSON(m model.Machine) gin.H {
	return gin.H{
		"id":                 m.ID,
		"createdAt":          m.CreatedAt,
		"updatedAt":          m.UpdatedAt,
		"metadata":           m.Metadata,
		"metadataVersion":    m.MetadataVersion,
		"daemonState":        m.DaemonState,
		"daemonStateVersion": m.DaemonStateVersion,
		"active":             m.Active,
		"activeAt":           m.ActiveAt,
		"seq":                m.Seq,
	}
}

func messageJSON(msg model.Message) gin.H {
	return gin.H{
		"id":        msg.ID,
		"sessionId": msg.SessionID,
		"content":   msg.Content,
		"createdAt": msg.CreatedAt,
		"seq":       msg.Seq,
		"localId":   msg.LocalID,
	}
}

func messagesJSON(msgs []model.Message) []gin.H {
	resp := make([]gin.H, 0, len(msgs))
	for _, msg := range msgs {
		resp = append(resp, messageJSON(msg))
	}
	return resp
}

// renderUpdateResult maps versioned-update outcomes onto the wire: a lost
// race is still a 200 (the body tells the caller to refetch and retry),
// only a missing row is a 404.
func renderUpdateResult(c *gin.Context, res store.UpdateResult) {
	body := gin.H{
		"result":  string(res.Status),
		"version": res.Version,
		"value":   res.Value,
	}
	if res.Status == store.UpdateNotFound {
		c.JSON(http.StatusNotFound, body)
		return
	}
	c.JSON(http.StatusOK, body)
}

func intQuery(c *gin.Context, name string, fallback int) int {
	raw, present := c.GetQuery(name)
	if !present {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

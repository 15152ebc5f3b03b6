package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"happyd/internal/middleware"
	"happyd/internal/store"
)

type MachineHandler struct {
	Store *store.Store
}

type createMachineBody struct {
	ID          string `json:"id"`
	Metadata    any    `json:"metadata"`
	DaemonState any    `json:"daemonState"`
}

func (h *MachineHandler) GetOrCreate(c *gin.Context) {
	namespace, ok := middleware.NamespaceFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
		return
	}

	var body createMachineBody
	if err := c.ShouldBindJSON(&body); err != nil || body.ID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	m, err := h.Store.GetOrCreateMachine(body.ID, body.Metadata, body.DaemonState, namespace)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not create machine"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"machine": machineJSON(m)})
}

func (h *MachineHandler) List(c *gin.Context) {
	namespace, ok := middleware.NamespaceFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
		return
	}

	machines, err := h.Store.GetMachinesByNamespace(namespace)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not list machines"})
		return
	}

	resp := make([]gin.H, 0, len(machines))
	for _, m := range machines {
		resp = append(resp, machineJSON(m))
	}
	c.JSON(http.StatusOK, gin.H{"machines": resp})
}

func (h *MachineHandler) Get(c *gin.Context) {
	namespace, ok := middleware.NamespaceFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
		return
	}

	m, err := h.Store.GetMachineByNamespace(c.Param("id"), namespace)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not load machine"})
		return
	}
	if m == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Machine not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"machine": machineJSON(*m)})
}

func (h *MachineHandler) UpdateMetadata(c *gin.Context) {
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

	res := h.Store.UpdateMachineMetadata(c.Param("id"), body.Metadata, body.ExpectedVersion, namespace)
	renderUpdateResult(c, res)
}

type updateDaemonStateBody struct {
	DaemonState     any   `json:"daemonState"`
	ExpectedVersion int64 `json:"expectedVersion"`
}

func (h *MachineHandler) UpdateDaemonState(c *gin.Context) {
	namespace, ok := middleware.NamespaceFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
		return
	}

	var body updateDaemonStateBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	res := h.Store.UpdateMachineDaemonState(c.Param("id"), body.DaemonState, body.ExpectedVersion, namespace)
	renderUpdateResult(c, res)
}

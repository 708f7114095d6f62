package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"coffee-machine-backend/internal/model"
	"coffee-machine-backend/internal/parse"
	"coffee-machine-backend/internal/store"
)

type createMachineRequest struct {
	Name     string   `json:"name" binding:"required"`
	Location string   `json:"location"`
	Water    int      `json:"water"`
	Cups     int      `json:"cups"`
	Beans    int      `json:"beans"`
	Powered  bool     `json:"powered"`
	Types    []string `json:"types"`
}

type powerRequest struct {
	On *bool `json:"on" binding:"required"`
}

// machineID parses the :id path parameter, answering 400 when it is malformed.
func machineID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		abortWithError(c, http.StatusBadRequest, "invalid_request", "Invalid machine ID", c.Param("id"))
		return 0, false
	}
	return id, true
}

// storeError maps store failures onto HTTP responses.
func (h *Handler) storeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrMachineNotFound):
		abortWithError(c, http.StatusNotFound, "not_found", "Machine not found", nil)
	case errors.Is(err, store.ErrInvalidMachine), errors.Is(err, store.ErrInvalidRefill):
		abortWithError(c, http.StatusBadRequest, "invalid_request", err.Error(), nil)
	default:
		h.log.Error("Store operation failed", zap.String("path", c.FullPath()), zap.Error(err))
		abortWithError(c, http.StatusInternalServerError, "internal", "Internal server error", nil)
	}
}

// ListMachines handles GET /api/machines.
func (h *Handler) ListMachines(c *gin.Context) {
	machines, err := h.store.ListMachines(c.Request.Context())
	if err != nil {
		h.storeError(c, err)
		return
	}
	if machines == nil {
		machines = []model.Machine{}
	}
	c.JSON(http.StatusOK, machines)
}

// GetMachine handles GET /api/machines/:id.
func (h *Handler) GetMachine(c *gin.Context) {
	id, ok := machineID(c)
	if !ok {
		return
	}
	m, err := h.store.GetMachine(c.Request.Context(), id)
	if err != nil {
		h.storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// CreateMachine handles POST /api/machines.
func (h *Handler) CreateMachine(c *gin.Context) {
	var req createMachineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "invalid_request", "Invalid request body", err.Error())
		return
	}

	types, err := parse.CoffeeTypes(req.Types)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "unknown_type", err.Error(), nil)
		return
	}

	m := model.Machine{
		Name:           req.Name,
		Location:       req.Location,
		Water:          req.Water,
		Cups:           req.Cups,
		Beans:          req.Beans,
		Powered:        req.Powered,
		SupportedTypes: make([]string, 0, len(types)),
	}
	for _, t := range types {
		m.SupportedTypes = append(m.SupportedTypes, string(t))
	}

	if err := h.store.CreateMachine(c.Request.Context(), &m); err != nil {
		h.storeError(c, err)
		return
	}
	h.log.Info("Machine registered", zap.Int64("machine_id", m.ID), zap.String("name", m.Name))
	c.JSON(http.StatusCreated, m)
}

// RefillMachine handles POST /api/machines/:id/refill.
func (h *Handler) RefillMachine(c *gin.Context) {
	id, ok := machineID(c)
	if !ok {
		return
	}
	var req store.RefillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "invalid_request", "Invalid request body", err.Error())
		return
	}

	m, err := h.store.Refill(c.Request.Context(), id, req)
	if err != nil {
		h.storeError(c, err)
		return
	}
	h.log.Info("Machine refilled",
		zap.Int64("machine_id", id),
		zap.Int("water", m.Water),
		zap.Int("cups", m.Cups),
		zap.Int("beans", m.Beans))
	c.JSON(http.StatusOK, m)
}

// SetPower handles PUT /api/machines/:id/power.
func (h *Handler) SetPower(c *gin.Context) {
	id, ok := machineID(c)
	if !ok {
		return
	}
	var req powerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "invalid_request", "Invalid request body", err.Error())
		return
	}

	m, err := h.store.SetPower(c.Request.Context(), id, *req.On)
	if err != nil {
		h.storeError(c, err)
		return
	}
	if !m.Powered {
		h.alert(id)
	}
	c.JSON(http.StatusOK, m)
}

// ListBrews handles GET /api/machines/:id/brews.
func (h *Handler) ListBrews(c *gin.Context) {
	id, ok := machineID(c)
	if !ok {
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 || limit > 200 {
		abortWithError(c, http.StatusBadRequest, "invalid_request", "limit must be between 1 and 200", c.Query("limit"))
		return
	}

	if _, err := h.store.GetMachine(c.Request.Context(), id); err != nil {
		h.storeError(c, err)
		return
	}
	logs, err := h.store.RecentBrews(c.Request.Context(), id, limit)
	if err != nil {
		h.storeError(c, err)
		return
	}
	if logs == nil {
		logs = []model.BrewLog{}
	}
	c.JSON(http.StatusOK, logs)
}

package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"coffee-machine-backend/internal/brew"
	"coffee-machine-backend/internal/model"
	"coffee-machine-backend/internal/parse"
)

type brewRequest struct {
	Type  string `json:"type" binding:"required"`
	Count *int   `json:"count" binding:"required"`
}

// BrewResponse is returned when every requested cup was brewed.
type BrewResponse struct {
	BrewID    string        `json:"brewId"`
	Completed int           `json:"completed"`
	Machine   model.Machine `json:"machine"`
}

// brewFailure is the error detail of a rejected brew.
type brewFailure struct {
	BrewID    string `json:"brewId"`
	Unit      int    `json:"unit"`
	Completed int    `json:"completed"`
}

// Brew handles POST /api/machines/:id/brew.
func (h *Handler) Brew(c *gin.Context) {
	id, ok := machineID(c)
	if !ok {
		return
	}
	var req brewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "invalid_request", "Invalid request body", err.Error())
		return
	}

	coffee, err := parse.CoffeeType(req.Type)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "unknown_type", err.Error(), nil)
		return
	}

	result, err := h.store.Brew(c.Request.Context(), id, brew.Request{Type: coffee, Count: *req.Count})
	if result.Depleted {
		h.alert(id)
	}

	switch {
	case err == nil:
		h.log.Info("Brew completed",
			zap.Int64("machine_id", id),
			zap.String("type", string(coffee)),
			zap.Int("count", result.Completed))
		c.JSON(http.StatusOK, BrewResponse{
			BrewID:    result.Log.ID,
			Completed: result.Completed,
			Machine:   result.Machine,
		})
	case errors.Is(err, brew.ErrInvalidCount):
		abortWithError(c, http.StatusBadRequest, brew.Code(err), err.Error(), nil)
	case brew.IsPrecondition(err):
		h.log.Info("Brew rejected",
			zap.Int64("machine_id", id),
			zap.String("type", string(coffee)),
			zap.Int("completed", result.Completed),
			zap.Error(err))
		abortWithError(c, http.StatusConflict, brew.Code(err), err.Error(), brewFailure{
			BrewID:    result.Log.ID,
			Unit:      result.Log.FailedUnit,
			Completed: result.Completed,
		})
	default:
		h.storeError(c, err)
	}
}

package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"helmet-guard-go/internal/logging"
	"helmet-guard-go/internal/models"
)

type ViolationHandler struct {
	log ViolationReader
}

func NewViolationHandler(log ViolationReader) *ViolationHandler {
	return &ViolationHandler{log: log}
}

type ViolationListResponse struct {
	Columns []string                 `json:"columns"`
	Records []models.ViolationRecord `json:"records"`
	Count   int                      `json:"count"`
}

// ListViolations godoc
// @Summary Read the violation log
// @Description Rows in append order; limit keeps only the most recent rows
// @Tags violations
// @Produce json
// @Param limit query int false "Return the last N rows"
// @Success 200 {object} ViolationListResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /violations [get]
func (h *ViolationHandler) ListViolations(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "limit must be a non-negative integer"})
			return
		}
		limit = n
	}

	records, err := h.log.Records(c.Request.Context())
	if err != nil {
		logging.Error(c).Err(err).Msg("Failed to read violation log")
		abortWithError(c, http.StatusInternalServerError, err)
		return
	}
	if limit > 0 && len(records) > limit {
		records = records[len(records)-limit:]
	}
	if records == nil {
		records = []models.ViolationRecord{}
	}

	c.JSON(http.StatusOK, ViolationListResponse{
		Columns: models.LogColumns,
		Records: records,
		Count:   len(records),
	})
}

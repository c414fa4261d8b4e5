package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "finwave/internal/errors"
	"finwave/internal/services"
)

// StatsHandler handles balance and forecast aggregation requests.
type StatsHandler struct {
	statsService services.StatsServicer
}

// NewStatsHandler creates a new StatsHandler.
func NewStatsHandler(statsService services.StatsServicer) *StatsHandler {
	return &StatsHandler{statsService: statsService}
}

// BalanceRequest represents the query parameters for a balance lookup.
// The date defaults to today when omitted.
type BalanceRequest struct {
	Kind string     `form:"kind" binding:"required,oneof=account category"`
	ID   string     `form:"id" binding:"required,uuid"`
	Date *time.Time `form:"date" time_format:"2006-01-02"`
}

// MonthlySeriesRequest represents the query window for the monthly balance
// series.
type MonthlySeriesRequest struct {
	Kind string    `form:"kind" binding:"required,oneof=account category"`
	ID   string    `form:"id" binding:"required,uuid"`
	From time.Time `form:"from" time_format:"2006-01" binding:"required"`
	To   time.Time `form:"to" time_format:"2006-01" binding:"required"`
}

func (r BalanceRequest) date() time.Time {
	if r.Date != nil {
		return *r.Date
	}
	return time.Now()
}

// GetActualBalance returns the booked balance of an account or category as of
// a date.
func (h *StatsHandler) GetActualBalance(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req BalanceRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	balance, err := h.statsService.ActualBalance(userID, services.BalanceKind(req.Kind), req.ID, req.date())
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"balance": balance})
}

// GetProjectedBalance returns the booked balance plus planned amounts up to a
// future date.
func (h *StatsHandler) GetProjectedBalance(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req BalanceRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	balance, err := h.statsService.ProjectedBalance(userID, services.BalanceKind(req.Kind), req.ID, req.date())
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"balance": balance})
}

// GetMonthlySeries returns one balance point per month in the window,
// including forecast occurrences for future months.
func (h *StatsHandler) GetMonthlySeries(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req MonthlySeriesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	series, err := h.statsService.MonthlySeries(userID, services.BalanceKind(req.Kind), req.ID, req.From, req.To)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"series": series})
}

package handlers

import (
	"net/http"
	"strconv"

	"github.com/coinbox-app/coinbox-api/internal/services"
	"github.com/coinbox-app/coinbox-api/internal/views"
	"github.com/coinbox-app/coinbox-api/pkg"
	"github.com/coinbox-app/coinbox-api/pkg/period"
	"github.com/coinbox-app/coinbox-api/pkg/utils"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	listLimitDefault = 50
	listLimitMax     = 200
)

type LedgerHandler struct {
	logger  *zap.Logger
	service services.LedgerService
}

func NewLedgerHandler(logger *zap.Logger, svc services.LedgerService) *LedgerHandler {
	return &LedgerHandler{logger: logger, service: svc}
}

// RegisterRoutes registers ledger routes on the provided group. writeGuards
// (e.g. the rate limiter) apply to the mutating endpoints only.
func (h *LedgerHandler) RegisterRoutes(r *gin.RouterGroup, writeGuards ...gin.HandlerFunc) {
	guarded := func(fn gin.HandlerFunc) []gin.HandlerFunc {
		chain := make([]gin.HandlerFunc, 0, len(writeGuards)+1)
		chain = append(chain, writeGuards...)
		return append(chain, fn)
	}
	r.POST("/transactions", guarded(h.CreateTransaction)...)
	r.POST("/initial-balance", guarded(h.CreateInitialBalance)...)
	r.DELETE("/transactions", guarded(h.ResetTransactions)...)
	r.GET("/transactions", h.ListTransactions)
	r.GET("/summary", h.GetSummary)
	r.GET("/meta", h.GetMeta)
}

func (h *LedgerHandler) CreateTransaction(c *gin.Context) {
	h.createEntry(c, pkg.TxKindNormal)
}

func (h *LedgerHandler) CreateInitialBalance(c *gin.Context) {
	h.createEntry(c, pkg.TxKindInit)
}

func (h *LedgerHandler) createEntry(c *gin.Context, kind pkg.TxKind) {
	traceID, userID, ok := h.identity(c)
	if !ok {
		return
	}

	var req views.WriteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body", err)
		return
	}
	// Timestamps are server-generated; an old client sending one should fail
	// loudly rather than have its value silently dropped.
	if req.Ts != nil || req.OccurredAt != nil {
		h.badRequest(c, "ts is server-generated; do not send ts", nil)
		return
	}

	out, err := h.service.Append(c.Request.Context(), traceID, userID, kind, req.Amount, req.Memo)
	if err != nil {
		h.fail(c, traceID, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

func (h *LedgerHandler) GetSummary(c *gin.Context) {
	traceID, userID, ok := h.identity(c)
	if !ok {
		return
	}

	from := c.Query("from")
	to := c.Query("to")
	granularity := period.Granularity(c.DefaultQuery("granularity", string(period.Auto)))

	out, err := h.service.Summary(c.Request.Context(), traceID, userID, from, to, granularity)
	if err != nil {
		h.fail(c, traceID, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *LedgerHandler) ListTransactions(c *gin.Context) {
	traceID, userID, ok := h.identity(c)
	if !ok {
		return
	}

	q := views.ListQuery{Limit: parseLimit(c.Query("limit"))}

	if from := c.Query("from"); from != "" {
		if _, err := period.ParseDate(from); err != nil {
			h.badRequest(c, "from must be YYYY-MM-DD", err)
			return
		}
		q.From = &from
	}
	if to := c.Query("to"); to != "" {
		if _, err := period.ParseDate(to); err != nil {
			h.badRequest(c, "to must be YYYY-MM-DD", err)
			return
		}
		q.To = &to
	}
	if raw := c.Query("cursor"); raw != "" {
		cursor, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || cursor <= 0 {
			h.badRequest(c, "cursor must be a positive integer", err)
			return
		}
		q.Cursor = &cursor
	}

	out, err := h.service.List(c.Request.Context(), traceID, userID, q)
	if err != nil {
		h.fail(c, traceID, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *LedgerHandler) GetMeta(c *gin.Context) {
	traceID, userID, ok := h.identity(c)
	if !ok {
		return
	}

	out, err := h.service.Meta(c.Request.Context(), traceID, userID)
	if err != nil {
		h.fail(c, traceID, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *LedgerHandler) ResetTransactions(c *gin.Context) {
	traceID, userID, ok := h.identity(c)
	if !ok {
		return
	}

	out, err := h.service.Reset(c.Request.Context(), traceID, userID)
	if err != nil {
		h.fail(c, traceID, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// parseLimit clamps the page size to [1, 200]; anything unparseable or below 1
// falls back to the default, values above the cap are capped, never rejected.
func parseLimit(raw string) int {
	if raw == "" {
		return listLimitDefault
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		return listLimitDefault
	}
	if limit > listLimitMax {
		return listLimitMax
	}
	return limit
}

func (h *LedgerHandler) identity(c *gin.Context) (traceID string, userID int64, ok bool) {
	traceID, err := utils.GetTraceID(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, pkg.ErrorResponse{
			Code:    pkg.ErrServerCode.Code,
			Message: pkg.ErrServerCode.Message,
		})
		return "", 0, false
	}
	userID, err = utils.GetUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, pkg.ErrorResponse{
			Code:    pkg.ErrUnauthorizedCode.Code,
			Message: pkg.ErrUnauthorizedCode.Message,
		})
		return "", 0, false
	}
	return traceID, userID, true
}

func (h *LedgerHandler) badRequest(c *gin.Context, msg string, err error) {
	resp := pkg.ErrorResponse{
		Code:    pkg.ErrInvalidInputCode.Code,
		Message: msg,
	}
	if err != nil && pkg.ExposeErrorDetails {
		resp.Details = err.Error()
	}
	c.JSON(http.StatusBadRequest, resp)
}

func (h *LedgerHandler) fail(c *gin.Context, traceID string, err error) {
	resp := pkg.ToErrorResponse(h.logger, traceID, err)
	c.JSON(resp.Status, resp)
}

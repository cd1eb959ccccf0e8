package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mikey/mail-ledger/internal/core"
	"github.com/mikey/mail-ledger/internal/pagination"
	"go.uber.org/zap"
)

type transactionResponse struct {
	ID              string  `json:"id"`
	Date            string  `json:"date"`
	Value           string  `json:"value"`
	Currency        string  `json:"currency"`
	Business        string  `json:"business"`
	BusinessType    *string `json:"business_type"`
	Bank            string  `json:"bank"`
	ExpensePriority *string `json:"expense_priority"`
	ExpenseType     *string `json:"expense_type"`
	Body            string  `json:"body,omitempty"`
}

type listResponse struct {
	Data       []transactionResponse `json:"data"`
	Pagination pagination.Meta       `json:"pagination"`
}

type updateRequest struct {
	ExpensePriority *string `json:"expense_priority"`
	ExpenseType     *string `json:"expense_type"`
}

type refreshRequest struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	DaysAgo   *int   `json:"days_ago"`
}

type refreshResponse struct {
	Start   string             `json:"start"`
	End     string             `json:"end"`
	Summary *core.BatchSummary `json:"summary"`
	Error   string             `json:"error,omitempty"`
}

func toResponse(tx *core.Transaction, withBody bool) transactionResponse {
	resp := transactionResponse{
		ID:           tx.ID,
		Date:         tx.Date.UTC().Format(time.RFC3339),
		Value:        tx.Value.StringFixed(2),
		Currency:     tx.Currency,
		Business:     tx.Business,
		BusinessType: tx.BusinessType,
		Bank:         string(tx.Bank),
	}
	if tx.ExpensePriority != nil {
		p := string(*tx.ExpensePriority)
		resp.ExpensePriority = &p
	}
	if tx.ExpenseType != nil {
		t := string(*tx.ExpenseType)
		resp.ExpenseType = &t
	}
	if withBody {
		resp.Body = tx.Body
	}
	return resp
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// parseDay accepts a calendar date or a full RFC 3339 timestamp
func parseDay(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(time.DateOnly, value); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, value)
}

func (s *Server) handleList(c *gin.Context) {
	var cursor pagination.Cursor
	if raw := c.Query("cursor"); raw != "" {
		var err error
		if cursor, err = pagination.Decode(raw); err != nil {
			badRequest(c, err.Error())
			return
		}
	} else {
		size := 0
		if raw := c.Query("page_size"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				badRequest(c, "page_size must be a positive integer")
				return
			}
			size = n
		}
		cursor = pagination.First(size)
	}

	query := core.TransactionQuery{
		Offset: cursor.Offset(),
		Limit:  cursor.PageSize + 1,
	}

	if raw := c.Query("start_date"); raw != "" {
		t, err := parseDay(raw)
		if err != nil {
			badRequest(c, "invalid start_date (use YYYY-MM-DD)")
			return
		}
		start := core.StartOfDay(t)
		query.Start = &start
	}
	if raw := c.Query("end_date"); raw != "" {
		t, err := parseDay(raw)
		if err != nil {
			badRequest(c, "invalid end_date (use YYYY-MM-DD)")
			return
		}
		end := core.EndOfDay(t)
		query.End = &end
	}
	if query.Start != nil && query.End != nil && query.Start.After(*query.End) {
		badRequest(c, core.ErrDateRangeInverted.Error())
		return
	}
	if raw := c.Query("bank"); raw != "" {
		bank, ok := core.ParseBank(raw)
		if !ok {
			badRequest(c, fmt.Sprintf("unknown bank %q", raw))
			return
		}
		query.Bank = &bank
	}

	txs, err := s.repo.List(c.Request.Context(), query)
	if err != nil {
		s.logger.Error("Failed to list transactions", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list transactions"})
		return
	}

	hasMore := len(txs) > cursor.PageSize
	if hasMore {
		txs = txs[:cursor.PageSize]
	}

	resp := listResponse{
		Data:       make([]transactionResponse, 0, len(txs)),
		Pagination: cursor.MetaFor(hasMore),
	}
	for _, tx := range txs {
		resp.Data = append(resp.Data, toResponse(tx, false))
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleGet(c *gin.Context) {
	tx, err := s.repo.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeRepoError(c, err)
		return
	}
	c.JSON(http.StatusOK, toResponse(tx, true))
}

func (s *Server) handleUpdate(c *gin.Context) {
	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if req.ExpensePriority == nil && req.ExpenseType == nil {
		badRequest(c, "expense_priority or expense_type is required")
		return
	}

	var priority *core.ExpensePriority
	if req.ExpensePriority != nil {
		p, ok := core.ParseExpensePriority(*req.ExpensePriority)
		if !ok {
			badRequest(c, fmt.Sprintf("unknown expense_priority %q", *req.ExpensePriority))
			return
		}
		priority = &p
	}
	var expenseType *core.ExpenseType
	if req.ExpenseType != nil {
		t, ok := core.ParseExpenseType(*req.ExpenseType)
		if !ok {
			badRequest(c, fmt.Sprintf("unknown expense_type %q", *req.ExpenseType))
			return
		}
		expenseType = &t
	}

	ctx := c.Request.Context()
	id := c.Param("id")
	if err := s.repo.UpdateClassification(ctx, id, priority, expenseType); err != nil {
		s.writeRepoError(c, err)
		return
	}

	tx, err := s.repo.Get(ctx, id)
	if err != nil {
		s.writeRepoError(c, err)
		return
	}
	c.JSON(http.StatusOK, toResponse(tx, false))
}

func (s *Server) handleDelete(c *gin.Context) {
	if err := s.repo.Delete(c.Request.Context(), c.Param("id")); err != nil {
		s.writeRepoError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleRefresh(c *gin.Context) {
	var req refreshRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request body")
			return
		}
	}

	now := s.now()
	opts := core.DateRangeOptions{DaysAgo: req.DaysAgo}
	if req.StartDate != "" {
		start, err := parseDay(req.StartDate)
		if err != nil {
			badRequest(c, "invalid start_date (use YYYY-MM-DD)")
			return
		}
		if core.StartOfDay(start).After(now) {
			badRequest(c, "start_date is in the future")
			return
		}
		opts.Start = &start
	}
	if req.EndDate != "" {
		end, err := parseDay(req.EndDate)
		if err != nil {
			badRequest(c, "invalid end_date (use YYYY-MM-DD)")
			return
		}
		if end.After(now) {
			end = now
		}
		opts.End = &end
	} else if opts.Start != nil {
		opts.End = &now
	}

	window, err := core.NewDateRange(opts, now)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.opts.RefreshTimeout)
	defer cancel()

	s.logger.Info("Refresh requested", zap.Stringer("window", window))
	summary, err := s.refresher.Refresh(ctx, window)
	resp := refreshResponse{
		Start:   window.Start.Format(time.RFC3339),
		End:     window.End.Format(time.RFC3339),
		Summary: summary,
	}
	if err != nil {
		s.logger.Error("Refresh failed", zap.Error(err))
		resp.Error = err.Error()
		c.JSON(http.StatusBadGateway, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) writeRepoError(c *gin.Context, err error) {
	if errors.Is(err, core.ErrTransactionNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "transaction not found"})
		return
	}
	s.logger.Error("Repository error", zap.String("id", c.Param("id")), zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

package handler

import (
	"strconv"

	"advisorledger/internal/model"
	"advisorledger/internal/service"
	"advisorledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// Services groups the ledger services the HTTP layer calls into.
type Services struct {
	Clients       *service.ClientService
	Transactions  *service.TransactionService
	Reports       *service.ReportService
	Stats         *service.StatsService
	Notifications *service.NotificationService
	Movements     *service.MovementService
}

type Handler struct {
	clientService       *service.ClientService
	transactionService  *service.TransactionService
	reportService       *service.ReportService
	statsService        *service.StatsService
	notificationService *service.NotificationService
	movementService     *service.MovementService
}

func NewHandler(s Services) *Handler {
	return &Handler{
		clientService:       s.Clients,
		transactionService:  s.Transactions,
		reportService:       s.Reports,
		statsService:        s.Stats,
		notificationService: s.Notifications,
		movementService:     s.Movements,
	}
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		response.ParamError(c, name+" must be a positive integer")
		return 0, false
	}
	return id, true
}

// authorizePlan loads the plan and checks that a client caller owns it.
// It writes the error response itself and reports whether the handler may continue.
func (h *Handler) authorizePlan(c *gin.Context, planID int64) (*model.Plan, bool) {
	plan, err := h.clientService.GetPlan(c.Request.Context(), planID)
	if err != nil {
		response.FromError(c, err)
		return nil, false
	}
	if !isAdmin(c) && plan.UserID != callerID(c) {
		response.Forbidden(c, "plan belongs to another client")
		return nil, false
	}
	return plan, true
}

// ============================================================
// Clients and plans
// ============================================================

// POST /api/v1/admin/clients
func (h *Handler) CreateClient(c *gin.Context) {
	var req service.CreateClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid body: "+err.Error())
		return
	}
	user, err := h.clientService.CreateClient(c.Request.Context(), &req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Created(c, user)
}

type SetActiveRequest struct {
	Active *bool `json:"active" binding:"required"`
}

// PUT /api/v1/admin/clients/:id/active
func (h *Handler) SetClientActive(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req SetActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid body: "+err.Error())
		return
	}
	if err := h.clientService.SetUserActive(c.Request.Context(), id, *req.Active); err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, gin.H{"user_id": id, "active": *req.Active})
}

// POST /api/v1/admin/plans
func (h *Handler) CreatePlan(c *gin.Context) {
	var req service.CreatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid body: "+err.Error())
		return
	}
	plan, err := h.clientService.CreatePlan(c.Request.Context(), &req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Created(c, plan)
}

// GET /api/v1/plans/current
// Clients get their own plan; admins pass ?user_id=.
func (h *Handler) GetCurrentPlan(c *gin.Context) {
	userID := callerID(c)
	if isAdmin(c) {
		id, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
		if err != nil {
			response.ParamError(c, "user_id is required")
			return
		}
		userID = id
	}
	plan, err := h.clientService.GetCurrentPlan(c.Request.Context(), userID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, plan)
}

// GET /api/v1/plans/:id
func (h *Handler) GetPlan(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	plan, ok := h.authorizePlan(c, id)
	if !ok {
		return
	}
	response.Success(c, plan)
}

// ============================================================
// Reports
// ============================================================

// POST /api/v1/admin/reports
func (h *Handler) CreateReport(c *gin.Context) {
	var req service.CreateReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid body: "+err.Error())
		return
	}
	report, err := h.reportService.CreateReport(c.Request.Context(), &req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Created(c, report)
}

// DELETE /api/v1/admin/reports/:id
func (h *Handler) DeleteReport(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.reportService.DeleteReport(c.Request.Context(), id); err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, gin.H{"deleted": id})
}

// GET /api/v1/reports/:id
func (h *Handler) GetReport(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	report, err := h.reportService.GetReport(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	if _, ok := h.authorizePlan(c, report.PlanID); !ok {
		return
	}
	response.Success(c, report)
}

// GET /api/v1/plans/:id/reports
func (h *Handler) ListReports(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if _, ok := h.authorizePlan(c, id); !ok {
		return
	}
	reports, err := h.reportService.ListReports(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, reports)
}

// ============================================================
// Transactions
// ============================================================

// POST /api/v1/transactions
func (h *Handler) RequestTransaction(c *gin.Context) {
	var req service.RequestTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid body: "+err.Error())
		return
	}
	if _, ok := h.authorizePlan(c, req.PlanID); !ok {
		return
	}
	trans, err := h.transactionService.RequestTransaction(c.Request.Context(), &req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Created(c, trans)
}

type ResolveRequest struct {
	Status string `json:"status" binding:"required"`
}

// PUT /api/v1/admin/transactions/:id/resolve
func (h *Handler) ResolveTransaction(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid body: "+err.Error())
		return
	}
	trans, err := h.transactionService.ResolveTransaction(c.Request.Context(), id, req.Status)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, trans)
}

// PUT /api/v1/transactions/:id/cancel
// A client may withdraw its own pending request.
func (h *Handler) CancelTransaction(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if !h.authorizeTransaction(c, id) {
		return
	}
	trans, err := h.transactionService.CancelTransaction(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, trans)
}

// DELETE /api/v1/admin/transactions/:id
func (h *Handler) DeleteTransaction(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.transactionService.DeleteTransaction(c.Request.Context(), id); err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, gin.H{"deleted": id})
}

// GET /api/v1/transactions/:id
func (h *Handler) GetTransaction(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	trans, err := h.transactionService.GetTransaction(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	if !isAdmin(c) && trans.UserID != callerID(c) {
		response.Forbidden(c, "transaction belongs to another client")
		return
	}
	response.Success(c, trans)
}

func (h *Handler) authorizeTransaction(c *gin.Context, id int64) bool {
	if isAdmin(c) {
		return true
	}
	trans, err := h.transactionService.GetTransaction(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err)
		return false
	}
	if trans.UserID != callerID(c) {
		response.Forbidden(c, "transaction belongs to another client")
		return false
	}
	return true
}

// GET /api/v1/plans/:id/transactions
func (h *Handler) ListTransactions(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if _, ok := h.authorizePlan(c, id); !ok {
		return
	}
	list, err := h.transactionService.ListTransactions(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, list)
}

// ============================================================
// Statistics
// ============================================================

// GET /api/v1/stats/monthly?plan_id=&months=&end=YYYY-MM-DD
// Clients must name one of their plans; admins may omit plan_id for the whole book.
func (h *Handler) GetMonthlyStats(c *gin.Context) {
	var q service.StatsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.ParamError(c, "invalid query: "+err.Error())
		return
	}
	if q.PlanID == 0 && !isAdmin(c) {
		response.ParamError(c, "plan_id is required")
		return
	}
	if q.PlanID != 0 {
		if _, ok := h.authorizePlan(c, q.PlanID); !ok {
			return
		}
	}
	stats, err := h.statsService.GetMonthlyStats(c.Request.Context(), q)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, stats)
}

// GET /api/v1/plans/:id/stats
func (h *Handler) GetPlanStats(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if _, ok := h.authorizePlan(c, id); !ok {
		return
	}
	stats, err := h.statsService.GetPlanStats(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, stats)
}

// GET /api/v1/admin/stats/overview
func (h *Handler) GetOverview(c *gin.Context) {
	ov, err := h.statsService.GetOverview(c.Request.Context())
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, ov)
}

// GET /api/v1/admin/plans/:id/reconcile
func (h *Handler) ReconcilePlan(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	rec, err := h.statsService.ReconcilePlan(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, rec)
}

// ============================================================
// Notifications
// ============================================================

// GET /api/v1/notifications
func (h *Handler) ListNotifications(c *gin.Context) {
	list, err := h.notificationService.ListUnread(c.Request.Context(), callerID(c))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, list)
}

type MarkReadRequest struct {
	IDs []int64 `json:"ids" binding:"required,min=1"`
}

// PUT /api/v1/notifications/read
func (h *Handler) MarkNotificationsRead(c *gin.Context) {
	var req MarkReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid body: "+err.Error())
		return
	}
	n, err := h.notificationService.MarkRead(c.Request.Context(), callerID(c), req.IDs)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, gin.H{"updated": n})
}

// ============================================================
// Movements
// ============================================================

// POST /api/v1/admin/movements
func (h *Handler) ImportMovements(c *gin.Context) {
	var items []*model.MovementItem
	if err := c.ShouldBindJSON(&items); err != nil {
		response.ParamError(c, "invalid body: "+err.Error())
		return
	}
	imported, err := h.movementService.ImportMovements(c.Request.Context(), items)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Created(c, imported)
}

// GET /api/v1/admin/movements/unattached?account=
func (h *Handler) ListUnattachedMovements(c *gin.Context) {
	items, err := h.movementService.ListUnattached(c.Request.Context(), c.Query("account"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, items)
}

// POST /api/v1/admin/movement-reports
func (h *Handler) CreateMovementReport(c *gin.Context) {
	var req service.CreateMovementReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid body: "+err.Error())
		return
	}
	report, err := h.movementService.CreateMovementReport(c.Request.Context(), &req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Created(c, report)
}

// DELETE /api/v1/admin/movement-reports/:id
func (h *Handler) DeleteMovementReport(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.movementService.DeleteMovementReport(c.Request.Context(), id); err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, gin.H{"deleted": id})
}

// GET /api/v1/movement-reports/:id
func (h *Handler) GetMovementReport(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	report, err := h.movementService.GetMovementReport(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	if !isAdmin(c) && report.UserID != callerID(c) {
		response.Forbidden(c, "movement report belongs to another client")
		return
	}
	response.Success(c, report)
}

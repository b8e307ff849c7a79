package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/approvalflow/engine/internal/application/service"
	"github.com/approvalflow/engine/internal/domain/identity"
	"github.com/approvalflow/engine/internal/domain/workflow"
)

// Header names carrying the caller identity, set by the fronting gateway
const (
	headerUserID   = "X-User-ID"
	headerTenantID = "X-Tenant-ID"
)

const (
	ctxUserID   = "userID"
	ctxTenantID = "tenantID"
)

// callerContext extracts the caller identity headers and rejects requests
// without them
func callerContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader(headerUserID)
		tenantID := c.GetHeader(headerTenantID)
		if userID == "" || tenantID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, Response{
				Success: false,
				Error:   "missing caller identity headers",
			})
			return
		}
		c.Set(ctxUserID, userID)
		c.Set(ctxTenantID, tenantID)
		c.Next()
	}
}

// Handlers contains all HTTP request handlers
type Handlers struct {
	definitionService service.DefinitionService
	workflowService   service.WorkflowService
	userService       service.UserService
	logger            Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(definitionService service.DefinitionService, workflowService service.WorkflowService, userService service.UserService, logger Logger) *Handlers {
	return &Handlers{
		definitionService: definitionService,
		workflowService:   workflowService,
		userService:       userService,
		logger:            logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// GraphRequest is the wire shape of a definition graph
type GraphRequest struct {
	Steps       []workflow.StepSpec       `json:"steps" binding:"required"`
	Transitions []workflow.TransitionSpec `json:"transitions"`
}

func (g GraphRequest) toGraph() *workflow.Graph {
	return workflow.NewGraph(g.Steps, g.Transitions)
}

// DefinitionRequest is the body of create/update definition calls
type DefinitionRequest struct {
	Name        string       `json:"name" binding:"required"`
	Description string       `json:"description"`
	Graph       GraphRequest `json:"graph" binding:"required"`
}

// ValidationResponse reports editor-time validation results
type ValidationResponse struct {
	Valid  bool                       `json:"valid"`
	Errors []workflow.ValidationError `json:"errors,omitempty"`
}

// CreateInstanceRequest is the body of instance creation
type CreateInstanceRequest struct {
	DefinitionID string                 `json:"definition_id" binding:"required"`
	Title        string                 `json:"title" binding:"required"`
	FormData     map[string]interface{} `json:"form_data"`
}

// ActionRequest is the shared body of all instance action calls. Every action
// carries the version the caller last saw; a stale value yields 409.
type ActionRequest struct {
	ExpectedVersion int64                  `json:"expected_version" binding:"min=1"`
	StepID          string                 `json:"step_id"`
	Comment         string                 `json:"comment"`
	Reason          string                 `json:"reason"`
	Assignments     map[string]string      `json:"assignments"`
	FormData        map[string]interface{} `json:"form_data"`
}

// RegisterUserRequest is the body of user registration
type RegisterUserRequest struct {
	Name  string `json:"name" binding:"required"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type listQuery struct {
	Status string `form:"status"`
	Limit  int    `form:"limit"`
	Offset int    `form:"offset"`
}

func (q *listQuery) normalize() {
	if q.Limit <= 0 || q.Limit > 100 {
		q.Limit = 20
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: HealthResponse{
			Status:    "healthy",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Version:   "1.0.0",
		},
	})
}

// CreateDefinition handles POST /api/v1/definitions
func (h *Handlers) CreateDefinition(c *gin.Context) {
	var req DefinitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	def, err := h.definitionService.Create(c.Request.Context(),
		c.GetString(ctxTenantID), c.GetString(ctxUserID), req.Name, req.Description, req.Graph.toGraph())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: def})
}

// ListDefinitions handles GET /api/v1/definitions
func (h *Handlers) ListDefinitions(c *gin.Context) {
	var q listQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.badRequest(c, err)
		return
	}
	q.normalize()

	defs, err := h.definitionService.List(c.Request.Context(),
		c.GetString(ctxTenantID), workflow.DefinitionStatus(q.Status), q.Limit, q.Offset)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: defs})
}

// GetDefinition handles GET /api/v1/definitions/:id
func (h *Handlers) GetDefinition(c *gin.Context) {
	def, err := h.definitionService.Get(c.Request.Context(), c.GetString(ctxTenantID), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: def})
}

// UpdateDefinition handles PUT /api/v1/definitions/:id
func (h *Handlers) UpdateDefinition(c *gin.Context) {
	var req DefinitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	def, err := h.definitionService.Update(c.Request.Context(),
		c.GetString(ctxTenantID), c.Param("id"), req.Name, req.Description, req.Graph.toGraph())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: def})
}

// ValidateDefinition handles POST /api/v1/definitions/:id/validate
func (h *Handlers) ValidateDefinition(c *gin.Context) {
	verrs, err := h.definitionService.Validate(c.Request.Context(), c.GetString(ctxTenantID), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: ValidationResponse{
		Valid:  len(verrs) == 0,
		Errors: verrs,
	}})
}

// PublishDefinition handles POST /api/v1/definitions/:id/publish. An invalid
// graph yields 400 with the full error list.
func (h *Handlers) PublishDefinition(c *gin.Context) {
	def, verrs, err := h.definitionService.Publish(c.Request.Context(), c.GetString(ctxTenantID), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if len(verrs) > 0 {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "definition graph is invalid",
			Data:    ValidationResponse{Valid: false, Errors: verrs},
		})
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: def})
}

// ArchiveDefinition handles POST /api/v1/definitions/:id/archive
func (h *Handlers) ArchiveDefinition(c *gin.Context) {
	def, err := h.definitionService.Archive(c.Request.Context(), c.GetString(ctxTenantID), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: def})
}

// CreateInstance handles POST /api/v1/instances
func (h *Handlers) CreateInstance(c *gin.Context) {
	var req CreateInstanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	instance, err := h.workflowService.CreateInstance(c.Request.Context(),
		c.GetString(ctxTenantID), c.GetString(ctxUserID), req.DefinitionID, req.Title, req.FormData)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: instance})
}

// ListInstances handles GET /api/v1/instances
func (h *Handlers) ListInstances(c *gin.Context) {
	var q listQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.badRequest(c, err)
		return
	}
	q.normalize()

	instances, err := h.workflowService.ListInstances(c.Request.Context(),
		c.GetString(ctxTenantID), workflow.InstanceStatus(q.Status), q.Limit, q.Offset)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: instances})
}

// GetInstance handles GET /api/v1/instances/:id
func (h *Handlers) GetInstance(c *gin.Context) {
	instance, err := h.workflowService.GetInstance(c.Request.Context(), c.GetString(ctxTenantID), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: instance})
}

// InstanceHistory handles GET /api/v1/instances/:id/history
func (h *Handlers) InstanceHistory(c *gin.Context) {
	var q listQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.badRequest(c, err)
		return
	}
	q.normalize()

	records, err := h.workflowService.InstanceHistory(c.Request.Context(),
		c.GetString(ctxTenantID), c.Param("id"), q.Limit, q.Offset)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: records})
}

// SubmitInstance handles POST /api/v1/instances/:id/submit
func (h *Handlers) SubmitInstance(c *gin.Context) {
	h.executeAction(c, func(req ActionRequest) workflow.Action {
		return workflow.Submit{Assignments: req.Assignments}
	})
}

// ApproveStep handles POST /api/v1/instances/:id/approve
func (h *Handlers) ApproveStep(c *gin.Context) {
	h.executeAction(c, func(req ActionRequest) workflow.Action {
		return workflow.Approve{StepID: req.StepID, Comment: req.Comment}
	})
}

// RejectStep handles POST /api/v1/instances/:id/reject
func (h *Handlers) RejectStep(c *gin.Context) {
	h.executeAction(c, func(req ActionRequest) workflow.Action {
		return workflow.Reject{StepID: req.StepID, Comment: req.Comment}
	})
}

// RequestChanges handles POST /api/v1/instances/:id/request-changes
func (h *Handlers) RequestChanges(c *gin.Context) {
	h.executeAction(c, func(req ActionRequest) workflow.Action {
		return workflow.RequestChanges{StepID: req.StepID, Comment: req.Comment}
	})
}

// CancelInstance handles POST /api/v1/instances/:id/cancel
func (h *Handlers) CancelInstance(c *gin.Context) {
	h.executeAction(c, func(req ActionRequest) workflow.Action {
		return workflow.Cancel{Reason: req.Reason}
	})
}

// ResubmitInstance handles POST /api/v1/instances/:id/resubmit
func (h *Handlers) ResubmitInstance(c *gin.Context) {
	h.executeAction(c, func(req ActionRequest) workflow.Action {
		return workflow.Resubmit{FormData: req.FormData}
	})
}

// RegisterUser handles POST /api/v1/users
func (h *Handlers) RegisterUser(c *gin.Context) {
	var req RegisterUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	user, err := h.userService.Register(c.Request.Context(),
		c.GetString(ctxTenantID), req.Name, req.Email, identity.Role(req.Role))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: user})
}

// GetUser handles GET /api/v1/users/:id
func (h *Handlers) GetUser(c *gin.Context) {
	user, err := h.userService.Get(c.Request.Context(), c.GetString(ctxTenantID), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: user})
}

// executeAction parses the shared action body and runs the action through the
// optimistic-concurrency path
func (h *Handlers) executeAction(c *gin.Context, build func(ActionRequest) workflow.Action) {
	var req ActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	instance, err := h.workflowService.ExecuteAction(c.Request.Context(),
		c.GetString(ctxTenantID), c.Param("id"), c.GetString(ctxUserID), build(req), req.ExpectedVersion)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: instance})
}

func (h *Handlers) badRequest(c *gin.Context, err error) {
	h.logger.Error("Invalid request", "error", err, "path", c.Request.URL.Path)
	c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request: " + err.Error()})
}

// respondError maps service and domain errors to HTTP status codes: missing
// resources to 404, version conflicts to 409, state machine refusals to 422,
// anything unexpected to 500.
func (h *Handlers) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: err.Error()})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, Response{Success: false, Error: "not found"})
	case errors.Is(err, service.ErrConflict):
		c.JSON(http.StatusConflict, Response{Success: false, Error: "version conflict, reload and retry"})
	case errors.Is(err, service.ErrDefinitionNotPublished),
		errors.Is(err, workflow.ErrDefinitionNotDraft),
		errors.Is(err, workflow.ErrDefinitionNotPublishable):
		c.JSON(http.StatusUnprocessableEntity, Response{Success: false, Error: err.Error()})
	default:
		if se, ok := workflow.AsStateError(err); ok {
			c.JSON(http.StatusUnprocessableEntity, Response{Success: false, Error: se.Error()})
			return
		}
		h.logger.Error("Request failed", "error", err, "path", c.Request.URL.Path)
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "internal error"})
	}
}

package admin

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"invoiceapi/internal/auth"
	"invoiceapi/internal/httputils"
	"invoiceapi/internal/observability/logging"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
)

const (
	defaultTenantLimit = 100
	defaultUserLimit   = 200
	maxLimit           = 500
	maxBodyBytes       = 64 << 10
)

// Provisioned tenant ids are stricter than the ids accepted at authentication
var tenantIDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,62}[a-z0-9]$`)

// CreateTenantRequest is the body of POST /tenants.
type CreateTenantRequest struct {
	TenantID    string  `json:"tenant_id" validate:"required,min=2,max=64"`
	DisplayName *string `json:"display_name" validate:"omitempty,max=128"`
}

// CreateUserRequest is the body of POST /users.
type CreateUserRequest struct {
	TenantID string  `json:"tenant_id" validate:"required,min=2,max=64"`
	UserID   string  `json:"user_id" validate:"required,min=2,max=64"`
	Role     string  `json:"role" validate:"required,min=2,max=32"`
	Email    *string `json:"email" validate:"omitempty,max=254,email"`
	FullName *string `json:"full_name" validate:"omitempty,max=128"`
}

// Handler serves the admin routes.
type Handler struct {
	store    Store
	validate *validator.Validate
	logger   *logging.Logger
	now      func() time.Time
}

// NewHandler creates the admin HTTP handler
func NewHandler(store Store, logger *logging.Logger) *Handler {
	return &Handler{
		store:    store,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger.WithModule("admin"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Register mounts the routes on r, which is expected to be the /v1/admin
// subrouter.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/tenants", h.createTenant).Methods(http.MethodPost)
	r.HandleFunc("/tenants", h.listTenants).Methods(http.MethodGet)
	r.HandleFunc("/users", h.createUser).Methods(http.MethodPost)
	r.HandleFunc("/users", h.listUsers).Methods(http.MethodGet)
}

func (h *Handler) createTenant(w http.ResponseWriter, r *http.Request) {
	var req CreateTenantRequest
	if !h.decode(w, r, &req) {
		return
	}
	if !tenantIDPattern.MatchString(req.TenantID) {
		h.writeError(w, r, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Invalid tenant_id format",
			map[string]any{"tenant_id": req.TenantID})
		return
	}

	t := Tenant{
		TenantID:    req.TenantID,
		DisplayName: req.DisplayName,
		Status:      statusActive,
		CreatedAt:   h.now(),
	}
	if err := h.store.CreateTenant(r.Context(), t); err != nil {
		if errors.Is(err, ErrTenantExists) {
			h.writeError(w, r, http.StatusConflict, "TENANT_ALREADY_EXISTS", "Tenant already exists",
				map[string]any{"tenant_id": req.TenantID})
			return
		}
		h.internalError(w, r, err)
		return
	}

	logging.FromContextOr(r.Context(), h.logger).Info("Tenant created", "created_tenant", t.TenantID)
	_ = httputils.WriteJSON(w, http.StatusCreated, t)
}

func (h *Handler) listTenants(w http.ResponseWriter, r *http.Request) {
	limit, ok := h.limit(w, r, defaultTenantLimit)
	if !ok {
		return
	}
	tenants, err := h.store.ListTenants(r.Context(), limit)
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	_ = httputils.WriteJSON(w, http.StatusOK, tenants)
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if !h.decode(w, r, &req) {
		return
	}

	u := User{
		TenantID:  req.TenantID,
		UserID:    req.UserID,
		Role:      req.Role,
		Email:     req.Email,
		FullName:  req.FullName,
		Status:    statusActive,
		CreatedAt: h.now(),
	}
	if err := h.store.CreateUser(r.Context(), u); err != nil {
		switch {
		case errors.Is(err, ErrTenantNotFound):
			h.writeError(w, r, http.StatusNotFound, "TENANT_NOT_FOUND", "Tenant not found",
				map[string]any{"tenant_id": req.TenantID})
		case errors.Is(err, ErrUserExists):
			h.writeError(w, r, http.StatusConflict, "USER_ALREADY_EXISTS", "User already exists for tenant",
				map[string]any{"tenant_id": req.TenantID, "user_id": req.UserID})
		default:
			h.internalError(w, r, err)
		}
		return
	}

	logging.FromContextOr(r.Context(), h.logger).Info("User created",
		"user_tenant", u.TenantID,
		"user_id", u.UserID,
	)
	_ = httputils.WriteJSON(w, http.StatusCreated, u)
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	tenantID := strings.TrimSpace(r.URL.Query().Get("tenant_id"))
	if !tenantIDPattern.MatchString(tenantID) {
		h.writeError(w, r, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Invalid tenant_id format",
			map[string]any{"tenant_id": tenantID})
		return
	}
	limit, ok := h.limit(w, r, defaultUserLimit)
	if !ok {
		return
	}

	users, err := h.store.ListUsers(r.Context(), tenantID, limit)
	if err != nil {
		if errors.Is(err, ErrTenantNotFound) {
			h.writeError(w, r, http.StatusNotFound, "TENANT_NOT_FOUND", "Tenant not found",
				map[string]any{"tenant_id": tenantID})
			return
		}
		h.internalError(w, r, err)
		return
	}
	_ = httputils.WriteJSON(w, http.StatusOK, users)
}

// decode reads and validates a JSON body into dst.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		h.writeError(w, r, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Malformed request body", nil)
		return false
	}

	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		details := map[string]any{}
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				details[jsonName(fe.Field())] = fe.Tag()
			}
		}
		h.writeError(w, r, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Invalid request body", details)
		return false
	}
	return true
}

func (h *Handler) limit(w http.ResponseWriter, r *http.Request, def int) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > maxLimit {
		h.writeError(w, r, http.StatusUnprocessableEntity, "VALIDATION_ERROR",
			fmt.Sprintf("limit must be between 1 and %d", maxLimit), map[string]any{"limit": raw})
		return 0, false
	}
	return n, true
}

func (h *Handler) internalError(w http.ResponseWriter, r *http.Request, err error) {
	logging.FromContextOr(r.Context(), h.logger).Error("Admin operation failed", logging.Err(err))
	h.writeError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error", nil)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, status int, code, message string, details map[string]any) {
	_ = httputils.WriteError(w, status, code, message, auth.CorrelationID(r.Context()), details)
}

// jsonName converts a Go field name like TenantID to tenant_id.
func jsonName(field string) string {
	var b strings.Builder
	runes := []rune(field)
	for i, c := range runes {
		isUpper := c >= 'A' && c <= 'Z'
		if isUpper && i > 0 {
			prevLower := runes[i-1] >= 'a' && runes[i-1] <= 'z'
			nextLower := i+1 < len(runes) && runes[i+1] >= 'a' && runes[i+1] <= 'z'
			if prevLower || nextLower {
				b.WriteByte('_')
			}
		}
		if isUpper {
			c += 'a' - 'A'
		}
		b.WriteRune(c)
	}
	return b.String()
}

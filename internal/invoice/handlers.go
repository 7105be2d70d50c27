package invoice

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"invoiceapi/internal/auth"
	"invoiceapi/internal/httputils"
	"invoiceapi/internal/observability/logging"

	"github.com/gorilla/mux"
)

const (
	// MaxUploadBytes bounds the size of an upload request body.
	MaxUploadBytes = 25 << 20

	idempotencyHeader = "X-Idempotency-Key"
	multipartMemory   = 8 << 20
	maxPatchBytes     = 64 << 10
)

// Handler exposes the invoice service over HTTP. Routes require an
// authenticated principal; the tenant always comes from it.
type Handler struct {
	svc    *Service
	logger *logging.Logger
}

// NewHandler creates the invoice HTTP handler
func NewHandler(svc *Service, logger *logging.Logger) *Handler {
	return &Handler{svc: svc, logger: logger.WithModule("invoice.http")}
}

// Register mounts the routes on r, which is expected to be the /v1/invoices
// subrouter.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("", h.list).Methods(http.MethodGet)
	r.HandleFunc("/", h.list).Methods(http.MethodGet)
	r.HandleFunc("/upload", h.upload).Methods(http.MethodPost)
	r.HandleFunc("/{invoice_id}", h.get).Methods(http.MethodGet)
	r.HandleFunc("/{invoice_id}", h.patch).Methods(http.MethodPatch)
	r.HandleFunc("/{invoice_id}/download", h.download).Methods(http.MethodGet)
}

type listResponse struct {
	Count int       `json:"count"`
	Items []Invoice `json:"items"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenant(w, r)
	if !ok {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxListLimit {
			h.writeError(w, r, http.StatusBadRequest, "INVALID_LIMIT",
				fmt.Sprintf("limit must be between 1 and %d", maxListLimit), nil)
			return
		}
		limit = n
	}

	items, err := h.svc.List(r.Context(), tenantID, limit)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	_ = httputils.WriteJSON(w, http.StatusOK, listResponse{Count: len(items), Items: items})
}

func (h *Handler) upload(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenant(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(w, r, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Upload is too large", nil)
			return
		}
		h.writeError(w, r, http.StatusBadRequest, "INVALID_UPLOAD", "Expected a multipart form with a file field", nil)
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, "INVALID_UPLOAD", "Missing file field", nil)
		return
	}
	defer file.Close()

	inv, created, err := h.svc.Upload(r.Context(), tenantID, Upload{
		Filename:       header.Filename,
		ContentType:    header.Header.Get("Content-Type"),
		IdempotencyKey: r.Header.Get(idempotencyHeader),
	}, file)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	status := http.StatusCreated
	if !created {
		status = http.StatusOK
	}
	_ = httputils.WriteJSON(w, status, inv)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenant(w, r)
	if !ok {
		return
	}
	inv, err := h.svc.Get(r.Context(), tenantID, mux.Vars(r)["invoice_id"])
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	_ = httputils.WriteJSON(w, http.StatusOK, inv)
}

func (h *Handler) download(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenant(w, r)
	if !ok {
		return
	}
	invoiceID := mux.Vars(r)["invoice_id"]

	inv, body, err := h.svc.Open(r.Context(), tenantID, invoiceID)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	defer body.Close()

	filename := SafeFilename(inv.OriginalFilename)
	if filename == "" {
		filename = inv.InvoiceID + ".pdf"
	}
	filename = strings.NewReplacer(`"`, "", "\r", "", "\n", "").Replace(filename)

	w.Header().Set("Content-Type", pdfContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	if inv.Bytes > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(inv.Bytes, 10))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		logging.FromContextOr(r.Context(), h.logger).Warn("Invoice download interrupted",
			"invoice_id", invoiceID, logging.Err(err))
	}
}

func (h *Handler) patch(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenant(w, r)
	if !ok {
		return
	}

	var patch Patch
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxPatchBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&patch); err != nil {
		h.writeError(w, r, http.StatusUnprocessableEntity, "INVALID_BODY", "Request body is not a valid invoice patch", nil)
		return
	}

	inv, err := h.svc.Update(r.Context(), tenantID, mux.Vars(r)["invoice_id"], patch)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	_ = httputils.WriteJSON(w, http.StatusOK, inv)
}

// tenant returns the tenant of the authenticated principal.
func (h *Handler) tenant(w http.ResponseWriter, r *http.Request) (string, bool) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		h.writeError(w, r, auth.MissingCredential.HTTPStatus(), auth.MissingCredential.Code(),
			auth.MissingCredential.Message(), nil)
		return "", false
	}
	return principal.TenantID(), true
}

func (h *Handler) serviceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrInvalidID):
		h.writeError(w, r, http.StatusBadRequest, "INVALID_INVOICE_ID", "Invalid invoice id format", nil)
	case errors.Is(err, ErrNotFound):
		h.writeError(w, r, http.StatusNotFound, "INVOICE_NOT_FOUND", "Invoice not found", nil)
	case errors.Is(err, ErrUnsupportedMediaType):
		h.writeError(w, r, http.StatusUnsupportedMediaType, "UNSUPPORTED_MEDIA_TYPE", "Only PDF invoices are supported", nil)
	case errors.Is(err, ErrInvalidTransition):
		h.writeError(w, r, http.StatusConflict, "INVALID_STATUS_TRANSITION", "Status transition not allowed", nil)
	case errors.Is(err, ErrInvalidPatch):
		h.writeError(w, r, http.StatusUnprocessableEntity, "INVALID_BODY", "Request body is not a valid invoice patch",
			map[string]any{"reason": err.Error()})
	default:
		logging.FromContextOr(r.Context(), h.logger).Error("Invoice operation failed", logging.Err(err))
		h.writeError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error", nil)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, status int, code, message string, details map[string]any) {
	_ = httputils.WriteError(w, status, code, message, auth.CorrelationID(r.Context()), details)
}

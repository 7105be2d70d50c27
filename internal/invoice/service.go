package invoice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"invoiceapi/internal/observability/logging"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

const (
	pdfContentType    = "application/pdf"
	maxFilenameLength = 200
	defaultListLimit  = 50
	maxListLimit      = 500
)

// Service implements the invoice operations on top of the two stores.
type Service struct {
	docs     DocumentStore
	blobs    BlobStore
	validate *validator.Validate
	logger   *logging.Logger
	now      func() time.Time
	newID    func() string
}

// NewService creates an invoice service
func NewService(docs DocumentStore, blobs BlobStore, logger *logging.Logger) *Service {
	return &Service{
		docs:     docs,
		blobs:    blobs,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger.WithModule("invoice"),
		now:      func() time.Time { return time.Now().UTC() },
		newID:    func() string { return strings.ReplaceAll(uuid.NewString(), "-", "") },
	}
}

// SafeFilename reduces a client supplied name to its base name, at most 200
// characters. It returns "" when nothing usable remains.
func SafeFilename(name string) string {
	name = strings.TrimSpace(strings.ReplaceAll(name, "\\", "/"))
	if name == "" {
		return ""
	}
	base := path.Base(name)
	if base == "." || base == "/" || base == ".." {
		return ""
	}
	if r := []rune(base); len(r) > maxFilenameLength {
		base = string(r[:maxFilenameLength])
	}
	return base
}

// IsPDF reports whether an upload is accepted as a PDF, by content type or
// by extension.
func IsPDF(contentType, filename string) bool {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	if ct == pdfContentType || ct == "application/x-pdf" {
		return true
	}
	return strings.HasSuffix(strings.ToLower(filename), ".pdf")
}

// Upload stores a PDF for tenantID. When the idempotency key matches an
// earlier upload of the same tenant, that invoice is returned and created is
// false.
func (s *Service) Upload(ctx context.Context, tenantID string, up Upload, body io.Reader) (inv Invoice, created bool, err error) {
	filename := SafeFilename(up.Filename)
	if !IsPDF(up.ContentType, filename) {
		return Invoice{}, false, ErrUnsupportedMediaType
	}
	key := strings.TrimSpace(up.IdempotencyKey)

	if key != "" {
		existing, found, err := s.docs.FindByIdempotencyKey(ctx, tenantID, key)
		if err != nil {
			return Invoice{}, false, fmt.Errorf("looking up idempotency key: %w", err)
		}
		if found {
			return existing, false, nil
		}
	}

	invoiceID := s.newID()
	objectName := ObjectName(tenantID, invoiceID)
	size, err := s.blobs.Put(ctx, objectName, pdfContentType, body)
	if err != nil {
		return Invoice{}, false, fmt.Errorf("storing invoice object: %w", err)
	}

	now := s.now()
	inv = Invoice{
		TenantID:         tenantID,
		InvoiceID:        invoiceID,
		OriginalFilename: filename,
		ContentType:      pdfContentType,
		Bytes:            size,
		Status:           StatusUploaded,
		IdempotencyKey:   key,
		ObjectName:       objectName,
		UploadedAt:       now,
		UpdatedAt:        now,
	}

	stored, created, err := s.docs.Create(ctx, inv)
	if err != nil || !created {
		// A concurrent upload with the same key won, or the write failed
		if delErr := s.blobs.Delete(context.WithoutCancel(ctx), objectName); delErr != nil {
			s.logger.Warn("Failed to remove orphaned invoice object", "object", objectName, logging.Err(delErr))
		}
	}
	if err != nil {
		return Invoice{}, false, fmt.Errorf("storing invoice metadata: %w", err)
	}
	if created {
		logging.FromContextOr(ctx, s.logger).Info("Invoice uploaded",
			"invoice_id", invoiceID,
			"bytes", size,
		)
	}
	return stored, created, nil
}

// List returns the tenant's invoices, newest first. A limit outside 1..500
// falls back to the default of 50.
func (s *Service) List(ctx context.Context, tenantID string, limit int) ([]Invoice, error) {
	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}
	items, err := s.docs.List(ctx, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing invoices: %w", err)
	}
	return items, nil
}

// Get returns one invoice of the tenant.
func (s *Service) Get(ctx context.Context, tenantID, invoiceID string) (Invoice, error) {
	if !ValidID(invoiceID) {
		return Invoice{}, ErrInvalidID
	}
	return s.docs.Get(ctx, tenantID, invoiceID)
}

// Open returns the invoice metadata and its PDF content. The caller closes
// the reader.
func (s *Service) Open(ctx context.Context, tenantID, invoiceID string) (Invoice, io.ReadCloser, error) {
	inv, err := s.Get(ctx, tenantID, invoiceID)
	if err != nil {
		return Invoice{}, nil, err
	}
	rc, err := s.blobs.Open(ctx, inv.ObjectName)
	if err != nil {
		return Invoice{}, nil, err
	}
	return inv, rc, nil
}

// Update applies a metadata patch. Status changes must follow the workflow;
// setting the current status again is a no-op.
func (s *Service) Update(ctx context.Context, tenantID, invoiceID string, patch Patch) (Invoice, error) {
	if err := s.validate.Struct(patch); err != nil {
		return Invoice{}, fmt.Errorf("%w: %v", ErrInvalidPatch, err)
	}
	if patch.Empty() {
		return Invoice{}, fmt.Errorf("%w: no fields to update", ErrInvalidPatch)
	}

	inv, err := s.Get(ctx, tenantID, invoiceID)
	if err != nil {
		return Invoice{}, err
	}

	now := s.now()
	if patch.Status != nil {
		next := Status(*patch.Status)
		if next != inv.Status {
			if !inv.Status.CanTransition(next) {
				return Invoice{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, inv.Status, next)
			}
			inv.Status = next
			if next == StatusParsed {
				inv.ParsedAt = &now
			}
		}
	}
	if patch.Supplier != nil {
		inv.Supplier = patch.Supplier
	}
	if patch.Amount != nil {
		inv.Amount = patch.Amount
	}
	if patch.Currency != nil {
		currency := strings.ToUpper(*patch.Currency)
		inv.Currency = &currency
	}
	if patch.DueDate != nil {
		inv.DueDate = patch.DueDate
	}
	if patch.Note != nil {
		inv.Note = patch.Note
	}
	inv.UpdatedAt = now

	if err := s.docs.Update(ctx, inv); err != nil {
		if errors.Is(err, ErrNotFound) {
			return Invoice{}, err
		}
		return Invoice{}, fmt.Errorf("updating invoice: %w", err)
	}
	return inv, nil
}

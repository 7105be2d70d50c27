// Package invoice stores tenant invoices: PDF objects in a BlobStore and
// their metadata in a DocumentStore. Every operation is scoped by a tenant
// id the caller obtained from the authenticated principal.
package invoice

import (
	"errors"
	"fmt"
	"regexp"
	"time"
)

// Status is the processing state of an invoice.
type Status string

const (
	StatusUploaded   Status = "uploaded"
	StatusProcessing Status = "processing"
	StatusParsed     Status = "parsed"
	StatusFailed     Status = "failed"
)

// transitions is the workflow. Parsed and failed are terminal.
var transitions = map[Status][]Status{
	StatusUploaded:   {StatusProcessing},
	StatusProcessing: {StatusParsed, StatusFailed},
	StatusParsed:     nil,
	StatusFailed:     nil,
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// CanTransition reports whether the workflow allows moving from s to next.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Errors returned by the service. Handlers map them to status codes.
var (
	ErrNotFound             = errors.New("invoice not found")
	ErrInvalidID            = errors.New("invalid invoice id")
	ErrUnsupportedMediaType = errors.New("only PDF invoices are supported")
	ErrInvalidTransition    = errors.New("invalid status transition")
	ErrInvalidPatch         = errors.New("invalid invoice patch")
	ErrDuplicate            = errors.New("invoice already exists")
)

var invoiceIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{8,128}$`)

// ValidID reports whether id is an acceptable invoice id.
func ValidID(id string) bool {
	return invoiceIDPattern.MatchString(id)
}

// ObjectName returns the blob name of an invoice PDF.
func ObjectName(tenantID, invoiceID string) string {
	return fmt.Sprintf("tenants/%s/invoices/%s.pdf", tenantID, invoiceID)
}

// Invoice is the stored metadata of one uploaded invoice.
type Invoice struct {
	TenantID         string     `json:"tenant_id"`
	InvoiceID        string     `json:"invoice_id"`
	OriginalFilename string     `json:"original_filename,omitempty"`
	ContentType      string     `json:"content_type"`
	Bytes            int64      `json:"bytes"`
	Status           Status     `json:"status"`
	Supplier         *string    `json:"supplier,omitempty"`
	Amount           *float64   `json:"amount,omitempty"`
	Currency         *string    `json:"currency,omitempty"`
	DueDate          *string    `json:"due_date,omitempty"`
	Note             *string    `json:"note,omitempty"`
	IdempotencyKey   string     `json:"-"`
	ObjectName       string     `json:"object_name"`
	UploadedAt       time.Time  `json:"uploaded_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	ParsedAt         *time.Time `json:"parsed_at,omitempty"`
}

// Patch is an edit of invoice metadata. Nil fields are left unchanged.
type Patch struct {
	Status   *string  `json:"status" validate:"omitempty,oneof=uploaded processing parsed failed"`
	Supplier *string  `json:"supplier" validate:"omitempty,max=200"`
	Amount   *float64 `json:"amount" validate:"omitempty,gte=0"`
	Currency *string  `json:"currency" validate:"omitempty,len=3,alpha"`
	DueDate  *string  `json:"due_date" validate:"omitempty,datetime=2006-01-02"`
	Note     *string  `json:"note" validate:"omitempty,max=2000"`
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Status == nil && p.Supplier == nil && p.Amount == nil &&
		p.Currency == nil && p.DueDate == nil && p.Note == nil
}

// Upload describes one incoming PDF.
type Upload struct {
	Filename       string
	ContentType    string
	IdempotencyKey string
}

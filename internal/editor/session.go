// Package editor holds the state of one invoice edit session: a PDF being
// reviewed, the extracted or hand-entered fields, and whether a record exists yet.
package editor

import (
	"context"
	"errors"
	"fmt"

	"invoicedesk/internal/models"
)

// State is the position of a session in its lifecycle.
type State int

const (
	StateEmpty State = iota
	StateExtracted
	StateEdited
	StateSaved
	StateDeleted
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateExtracted:
		return "extracted"
	case StateEdited:
		return "edited"
	case StateSaved:
		return "saved"
	case StateDeleted:
		return "deleted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var (
	ErrSessionDeleted = errors.New("edit session: record was deleted")
	ErrNoIdentity     = errors.New("edit session: record has not been saved")
	ErrLineItemIndex  = errors.New("edit session: line item index out of range")
	ErrInvalid        = errors.New("edit session: invalid invoice")
)

// Store persists records. Both the invoice service and the REST client satisfy it.
type Store interface {
	Create(ctx context.Context, payload models.InvoicePayload) (*models.InvoiceRecord, error)
	Update(ctx context.Context, id string, payload models.InvoicePayload) (*models.InvoiceRecord, error)
	Delete(ctx context.Context, id string) error
}

// Session is not safe for concurrent use.
type Session struct {
	state     State
	id        string
	fileID    string
	fileName  string
	vendor    models.Vendor
	details   models.InvoiceDetails
	lineItems []models.LineItem
}

// NewSession starts an empty session for a freshly uploaded file.
func NewSession(fileID, fileName string) *Session {
	return &Session{
		state:     StateEmpty,
		fileID:    fileID,
		fileName:  fileName,
		lineItems: []models.LineItem{},
	}
}

// Load opens an existing record for editing.
func Load(rec models.InvoiceRecord) *Session {
	items := make([]models.LineItem, len(rec.LineItems))
	copy(items, rec.LineItems)
	var id string
	if !rec.ID.IsZero() {
		id = rec.ID.Hex()
	}
	return &Session{
		state:     StateSaved,
		id:        id,
		fileID:    rec.FileID,
		fileName:  rec.FileName,
		vendor:    rec.Vendor,
		details:   rec.InvoiceDetails,
		lineItems: items,
	}
}

func (s *Session) State() State { return s.state }
func (s *Session) ID() string { return s.id }
func (s *Session) HasIdentity() bool { return s.id != "" }
func (s *Session) FileID() string { return s.fileID }
func (s *Session) FileName() string { return s.fileName }
func (s *Session) Vendor() models.Vendor { return s.vendor }

func (s *Session) Details() models.InvoiceDetails { return s.details }

// LineItems returns a copy of the current rows.
func (s *Session) LineItems() []models.LineItem {
	out := make([]models.LineItem, len(s.lineItems))
	copy(out, s.lineItems)
	return out
}

// ApplyExtraction replaces vendor, header fields and line items with the extraction result.
// Unsaved manual edits to those fields are discarded. The record identity is kept.
func (s *Session) ApplyExtraction(n models.NormalizedInvoice) error {
	if s.state == StateDeleted {
		return ErrSessionDeleted
	}
	s.vendor = n.Vendor
	s.details = n.Invoice.InvoiceDetails
	s.lineItems = make([]models.LineItem, len(n.Invoice.LineItems))
	copy(s.lineItems, n.Invoice.LineItems)
	s.state = StateExtracted
	return nil
}

// SetFileName changes the display name stored with the record.
func (s *Session) SetFileName(name string) error {
	return s.edit(func() { s.fileName = name })
}

// EditVendor applies fn to the vendor fields.
func (s *Session) EditVendor(fn func(*models.Vendor)) error {
	return s.edit(func() { fn(&s.vendor) })
}

// EditDetails applies fn to the invoice header fields.
func (s *Session) EditDetails(fn func(*models.InvoiceDetails)) error {
	return s.edit(func() { fn(&s.details) })
}

// AddLineItem appends a blank row with quantity 1 and returns its index.
func (s *Session) AddLineItem() (int, error) {
	err := s.edit(func() {
		s.lineItems = append(s.lineItems, models.LineItem{Quantity: 1})
	})
	if err != nil {
		return -1, err
	}
	return len(s.lineItems) - 1, nil
}

// RemoveLineItem deletes row i, keeping the order of the rest.
func (s *Session) RemoveLineItem(i int) error {
	return s.editItem(i, func(*models.LineItem) {
		s.lineItems = append(s.lineItems[:i], s.lineItems[i+1:]...)
	})
}

func (s *Session) SetDescription(i int, description string) error {
	return s.editItem(i, func(li *models.LineItem) { li.Description = description })
}

// SetUnitPrice updates the unit price and recomputes the row total.
func (s *Session) SetUnitPrice(i int, price float64) error {
	return s.editItem(i, func(li *models.LineItem) {
		li.UnitPrice = price
		li.RecomputeTotal()
	})
}

// SetQuantity updates the quantity and recomputes the row total.
func (s *Session) SetQuantity(i int, qty float64) error {
	return s.editItem(i, func(li *models.LineItem) {
		li.Quantity = qty
		li.RecomputeTotal()
	})
}

// SetLineTotal overrides the row total. Unit price and quantity are left alone.
func (s *Session) SetLineTotal(i int, total float64) error {
	return s.editItem(i, func(li *models.LineItem) { li.Total = total })
}

// Payload is the full body sent on create and update.
func (s *Session) Payload() models.InvoicePayload {
	vendor := s.vendor
	details := s.details
	return models.InvoicePayload{
		FileID:         s.fileID,
		FileName:       s.fileName,
		Vendor:         &vendor,
		InvoiceDetails: &details,
		LineItems:      s.LineItems(),
	}
}

// Validate reports the required fields that are still empty.
func (s *Session) Validate() error {
	if err := s.Payload().Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

// Save creates the record on first save and replaces it afterwards.
func (s *Session) Save(ctx context.Context, store Store) (*models.InvoiceRecord, error) {
	if s.state == StateDeleted {
		return nil, ErrSessionDeleted
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}

	var (
		rec *models.InvoiceRecord
		err error
	)
	if s.HasIdentity() {
		rec, err = store.Update(ctx, s.id, s.Payload())
	} else {
		rec, err = store.Create(ctx, s.Payload())
	}
	if err != nil {
		return nil, err
	}

	s.id = rec.ID.Hex()
	s.state = StateSaved
	return rec, nil
}

// Delete removes the saved record. The session cannot be used afterwards.
func (s *Session) Delete(ctx context.Context, store Store) error {
	if s.state == StateDeleted {
		return ErrSessionDeleted
	}
	if !s.HasIdentity() {
		return ErrNoIdentity
	}
	if err := store.Delete(ctx, s.id); err != nil {
		return err
	}
	s.state = StateDeleted
	return nil
}

func (s *Session) edit(fn func()) error {
	if s.state == StateDeleted {
		return ErrSessionDeleted
	}
	fn()
	s.state = StateEdited
	return nil
}

func (s *Session) editItem(i int, fn func(*models.LineItem)) error {
	if s.state == StateDeleted {
		return ErrSessionDeleted
	}
	if i < 0 || i >= len(s.lineItems) {
		return fmt.Errorf("%w: %d of %d", ErrLineItemIndex, i, len(s.lineItems))
	}
	fn(&s.lineItems[i])
	s.state = StateEdited
	return nil
}

package models

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultCurrency is stored when a record arrives without a currency.
const DefaultCurrency = "USD"

// Vendor identifies who issued the invoice.
type Vendor struct {
	Name    string `bson:"name" json:"name"`
	Address string `bson:"address" json:"address"`
	TaxID   string `bson:"taxId" json:"taxId"`
}

// InvoiceDetails holds the header fields of an invoice. Date and PoDate are ISO calendar dates.
type InvoiceDetails struct {
	Number     string  `bson:"number" json:"number"`
	Date       string  `bson:"date" json:"date"`
	Currency   string  `bson:"currency" json:"currency"`
	Subtotal   float64 `bson:"subtotal" json:"subtotal"`
	TaxPercent float64 `bson:"taxPercent" json:"taxPercent"`
	Total      float64 `bson:"total" json:"total"`
	PoNumber   string  `bson:"poNumber" json:"poNumber"`
	PoDate     string  `bson:"poDate" json:"poDate"`
}

// LineItem is one billed row. Total is user-overridable and not forced to equal UnitPrice*Quantity.
type LineItem struct {
	Description string  `bson:"description" json:"description"`
	UnitPrice   float64 `bson:"unitPrice" json:"unitPrice"`
	Quantity    float64 `bson:"quantity" json:"quantity"`
	Total       float64 `bson:"total" json:"total"`
}

// RecomputeTotal sets Total to UnitPrice * Quantity using exact decimal arithmetic.
func (li *LineItem) RecomputeTotal() {
	product := decimal.NewFromFloat(li.UnitPrice).Mul(decimal.NewFromFloat(li.Quantity))
	li.Total, _ = product.Float64()
}

// InvoiceRecord is the persisted invoice. FileID points into the blob store but is not enforced.
type InvoiceRecord struct {
	Base           `bson:",inline"`
	FileID         string         `bson:"fileId" json:"fileId"`
	FileName       string         `bson:"fileName" json:"fileName"`
	Vendor         Vendor         `bson:"vendor" json:"vendor"`
	InvoiceDetails InvoiceDetails `bson:"invoiceDetails" json:"invoiceDetails"`
	LineItems      []LineItem     `bson:"lineItems" json:"lineItems"`
}

// InvoicePayload is the body accepted by create and update. Pointers make the
// top-level presence check explicit.
type InvoicePayload struct {
	FileID         string          `json:"fileId" binding:"required"`
	FileName       string          `json:"fileName" binding:"required"`
	Vendor         *Vendor         `json:"vendor" binding:"required"`
	InvoiceDetails *InvoiceDetails `json:"invoiceDetails" binding:"required"`
	LineItems      []LineItem      `json:"lineItems"`
}

// Validate enforces the non-empty vendor name, invoice number and invoice date invariant.
func (p InvoicePayload) Validate() error {
	var missing []string
	if p.Vendor == nil || strings.TrimSpace(p.Vendor.Name) == "" {
		missing = append(missing, "vendor.name")
	}
	if p.InvoiceDetails == nil || strings.TrimSpace(p.InvoiceDetails.Number) == "" {
		missing = append(missing, "invoiceDetails.number")
	}
	if p.InvoiceDetails == nil || strings.TrimSpace(p.InvoiceDetails.Date) == "" {
		missing = append(missing, "invoiceDetails.date")
	}
	if len(missing) > 0 {
		return errors.New("required fields are empty: " + strings.Join(missing, ", "))
	}
	return nil
}

// ToRecord copies the payload into a record without identity or timestamps.
func (p InvoicePayload) ToRecord() InvoiceRecord {
	rec := InvoiceRecord{
		FileID:    p.FileID,
		FileName:  p.FileName,
		LineItems: p.LineItems,
	}
	if p.Vendor != nil {
		rec.Vendor = *p.Vendor
	}
	if p.InvoiceDetails != nil {
		rec.InvoiceDetails = *p.InvoiceDetails
	}
	if rec.LineItems == nil {
		rec.LineItems = []LineItem{}
	}
	if rec.InvoiceDetails.Currency == "" {
		rec.InvoiceDetails.Currency = DefaultCurrency
	}
	return rec
}

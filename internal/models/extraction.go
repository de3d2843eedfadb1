package models

// ExtractedInvoice is the invoice half of a normalized extraction, including its line items.
type ExtractedInvoice struct {
	InvoiceDetails
	LineItems []LineItem `json:"lineItems"`
}

// NormalizedInvoice is the fixed-schema output every extraction backend produces.
type NormalizedInvoice struct {
	Vendor  Vendor           `json:"vendor"`
	Invoice ExtractedInvoice `json:"invoice"`
}

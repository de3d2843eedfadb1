package extract

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"invoicedesk/internal/models"
)

// Normalize maps any decoded object onto the fixed invoice schema. It is total: missing or
// mistyped text becomes "", numbers become 0 (line-item quantity becomes 1) and a
// non-array lineItems becomes an empty slice.
func Normalize(raw map[string]any) models.NormalizedInvoice {
	vendor := asObject(raw["vendor"])
	invoice := asObject(firstPresent(raw, "invoice", "invoiceDetails"))

	items, ok := invoice["lineItems"].([]any)
	if !ok {
		items, _ = raw["lineItems"].([]any)
	}

	out := models.NormalizedInvoice{
		Vendor: models.Vendor{
			Name:    asText(vendor["name"]),
			Address: asText(vendor["address"]),
			TaxID:   asText(vendor["taxId"]),
		},
		Invoice: models.ExtractedInvoice{
			InvoiceDetails: models.InvoiceDetails{
				Number:     asText(invoice["number"]),
				Date:       asText(invoice["date"]),
				Currency:   asText(invoice["currency"]),
				Subtotal:   asNumber(invoice["subtotal"], 0),
				TaxPercent: asNumber(invoice["taxPercent"], 0),
				Total:      asNumber(invoice["total"], 0),
				PoNumber:   asText(invoice["poNumber"]),
				PoDate:     asText(invoice["poDate"]),
			},
			LineItems: make([]models.LineItem, 0, len(items)),
		},
	}
	for _, it := range items {
		li := asObject(it)
		out.Invoice.LineItems = append(out.Invoice.LineItems, models.LineItem{
			Description: asText(li["description"]),
			UnitPrice:   asNumber(li["unitPrice"], 0),
			Quantity:    asNumber(li["quantity"], 1),
			Total:       asNumber(li["total"], 0),
		})
	}
	return out
}

func firstPresent(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func asObject(v any) map[string]any {
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

func asText(v any) string {
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}

// asNumber accepts JSON numbers and numeric strings such as "1,234.50", "$12" or "15%".
func asNumber(v any, fallback float64) float64 {
	switch t := v.(type) {
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return fallback
		}
		return t
	case string:
		if d, ok := parseAmount(t); ok {
			f, _ := d.Float64()
			return f
		}
	}
	return fallback
}

func parseAmount(s string) (decimal.Decimal, bool) {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9', r == '.', r == '-':
			return r
		default:
			return -1
		}
	}, s)
	if cleaned == "" || !strings.ContainsAny(cleaned, "0123456789") {
		return decimal.Zero, false
	}
	// reject strings that are mostly words with a stray digit
	if letters := strings.IndexFunc(s, func(r rune) bool {
		return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
	}); letters >= 0 && !isCurrencyWord(s) {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// isCurrencyWord allows an ISO code alongside the amount, e.g. "EUR 12.00" or "12 USD".
func isCurrencyWord(s string) bool {
	for _, f := range strings.Fields(s) {
		hasLetter := strings.IndexFunc(f, func(r rune) bool {
			return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
		}) >= 0
		if hasLetter && (len(f) != 3 || strings.ToUpper(f) != f) {
			return false
		}
	}
	return true
}

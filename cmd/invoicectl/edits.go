package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"invoicedesk/internal/editor"
	"invoicedesk/internal/models"
)

// edits collects field overrides given on the command line.
type edits struct {
	cmd *cobra.Command

	fileName      string
	vendorName    string
	vendorAddress string
	taxID         string
	number        string
	date          string
	currency      string
	poNumber      string
	poDate        string
	total         float64

	addItems    []string
	removeItems []int
	prices      []string
	quantities  []string
	lineTotals  []string
}

func (e *edits) register(cmd *cobra.Command) {
	e.cmd = cmd
	f := cmd.Flags()
	f.StringVar(&e.fileName, "file-name", "", "display name of the file")
	f.StringVar(&e.vendorName, "vendor", "", "vendor name")
	f.StringVar(&e.vendorAddress, "vendor-address", "", "vendor address")
	f.StringVar(&e.taxID, "tax-id", "", "vendor tax id")
	f.StringVar(&e.number, "number", "", "invoice number")
	f.StringVar(&e.date, "date", "", "invoice date (YYYY-MM-DD)")
	f.StringVar(&e.currency, "currency", "", "currency code")
	f.StringVar(&e.poNumber, "po-number", "", "purchase order number")
	f.StringVar(&e.poDate, "po-date", "", "purchase order date (YYYY-MM-DD)")
	f.Float64Var(&e.total, "total", 0, "invoice total")
	f.StringArrayVar(&e.addItems, "add-item", nil, `append a line item "description,unitPrice,quantity" (repeatable)`)
	f.IntSliceVar(&e.removeItems, "remove-item", nil, "remove line items by index")
	f.StringArrayVar(&e.prices, "price", nil, `set a unit price "index=value" and recompute the row total`)
	f.StringArrayVar(&e.quantities, "qty", nil, `set a quantity "index=value" and recompute the row total`)
	f.StringArrayVar(&e.lineTotals, "line-total", nil, `override a row total "index=value"`)
}

func (e *edits) changed(name string) bool {
	return e.cmd != nil && e.cmd.Flags().Changed(name)
}

// apply runs the overrides in a fixed order: header fields, row updates, removals, then additions.
func (e *edits) apply(s *editor.Session) error {
	if e.changed("file-name") {
		if err := s.SetFileName(e.fileName); err != nil {
			return err
		}
	}
	if e.changed("vendor") || e.changed("vendor-address") || e.changed("tax-id") {
		err := s.EditVendor(func(v *models.Vendor) {
			if e.changed("vendor") {
				v.Name = e.vendorName
			}
			if e.changed("vendor-address") {
				v.Address = e.vendorAddress
			}
			if e.changed("tax-id") {
				v.TaxID = e.taxID
			}
		})
		if err != nil {
			return err
		}
	}
	if e.changed("number") || e.changed("date") || e.changed("currency") ||
		e.changed("po-number") || e.changed("po-date") || e.changed("total") {
		err := s.EditDetails(func(d *models.InvoiceDetails) {
			if e.changed("number") {
				d.Number = e.number
			}
			if e.changed("date") {
				d.Date = e.date
			}
			if e.changed("currency") {
				d.Currency = strings.ToUpper(e.currency)
			}
			if e.changed("po-number") {
				d.PoNumber = e.poNumber
			}
			if e.changed("po-date") {
				d.PoDate = e.poDate
			}
			if e.changed("total") {
				d.Total = e.total
			}
		})
		if err != nil {
			return err
		}
	}

	for _, set := range []struct {
		values []string
		fn     func(int, float64) error
	}{
		{e.prices, s.SetUnitPrice},
		{e.quantities, s.SetQuantity},
		{e.lineTotals, s.SetLineTotal},
	} {
		for _, raw := range set.values {
			i, v, err := parseIndexed(raw)
			if err != nil {
				return err
			}
			if err := set.fn(i, v); err != nil {
				return err
			}
		}
	}

	// highest index first so earlier removals do not shift later ones
	removals := append([]int(nil), e.removeItems...)
	sort.Sort(sort.Reverse(sort.IntSlice(removals)))
	for _, i := range removals {
		if err := s.RemoveLineItem(i); err != nil {
			return err
		}
	}

	for _, raw := range e.addItems {
		desc, price, qty, err := parseItem(raw)
		if err != nil {
			return err
		}
		i, err := s.AddLineItem()
		if err != nil {
			return err
		}
		if err := s.SetDescription(i, desc); err != nil {
			return err
		}
		if err := s.SetUnitPrice(i, price); err != nil {
			return err
		}
		if err := s.SetQuantity(i, qty); err != nil {
			return err
		}
	}
	return nil
}

func parseIndexed(raw string) (int, float64, error) {
	idx, val, ok := strings.Cut(raw, "=")
	if !ok {
		return 0, 0, fmt.Errorf("expected index=value, got %q", raw)
	}
	i, err := strconv.Atoi(strings.TrimSpace(idx))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid index in %q: %w", raw, err)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid value in %q: %w", raw, err)
	}
	return i, v, nil
}

// parseItem reads "description,unitPrice,quantity". The description may itself contain commas.
func parseItem(raw string) (string, float64, float64, error) {
	parts := strings.Split(raw, ",")
	if len(parts) < 3 {
		return "", 0, 0, fmt.Errorf("expected description,unitPrice,quantity, got %q", raw)
	}
	n := len(parts)
	price, err := strconv.ParseFloat(strings.TrimSpace(parts[n-2]), 64)
	if err != nil {
		return "", 0, 0, fmt.Errorf("invalid unit price in %q: %w", raw, err)
	}
	qty, err := strconv.ParseFloat(strings.TrimSpace(parts[n-1]), 64)
	if err != nil {
		return "", 0, 0, fmt.Errorf("invalid quantity in %q: %w", raw, err)
	}
	return strings.TrimSpace(strings.Join(parts[:n-2], ",")), price, qty, nil
}

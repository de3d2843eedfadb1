package extract

const instructionPrompt = `You extract structured data from invoices.
Return ONLY a JSON object, with no commentary and no code fences, in exactly this shape:
{
  "vendor": {"name": "", "address": "", "taxId": ""},
  "invoice": {
    "number": "",
    "date": "YYYY-MM-DD",
    "currency": "ISO 4217 code, e.g. USD",
    "subtotal": 0,
    "taxPercent": 0,
    "total": 0,
    "poNumber": "",
    "poDate": "YYYY-MM-DD",
    "lineItems": [{"description": "", "unitPrice": 0, "quantity": 1, "total": 0}]
  }
}
Rules:
- Numbers are plain JSON numbers without currency symbols or thousands separators.
- taxPercent is a percentage, e.g. 7.5 for 7.5%.
- Use "" for unknown text fields and 0 for unknown amounts.
- Keep line items in the order they appear on the invoice.`

// maxPromptChars bounds the invoice text sent to text-only models.
const maxPromptChars = 24000

func textPrompt(invoiceText string) string {
	if r := []rune(invoiceText); len(r) > maxPromptChars {
		invoiceText = string(r[:maxPromptChars])
	}
	return "Invoice text:\n\n" + invoiceText
}

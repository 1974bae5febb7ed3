package scanning

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg" // Register JPEG decoder
	"image/png"
	"strings"

	"github.com/zombor/billed/internal/bill"
)

// receiptScanPrompt is the shared prompt used by all LLM providers for scanning receipts
var receiptScanPrompt = `You are reading a receipt or invoice attached to an employee expense report. Carefully read all text in the image and extract:

1. **Expense type**: pick the closest category from this list, spelled exactly as shown: ` + strings.Join(bill.ExpenseTypes, ", ") + `.

2. **Name**: a short label for the expense starting with the merchant name, e.g. "SNCF - Paris Lyon" or "Hôtel Ibis - séminaire".

3. **Date**: the transaction or invoice date, converted to ISO 8601 (YYYY-MM-DD).

4. **Total amount**: the final total including taxes, as a number (e.g. 42.75 for 42,75 €).

Return ONLY valid JSON in this exact format:
{
  "type": "Transports",
  "name": "Merchant - Description",
  "date": "YYYY-MM-DD",
  "amount": 0.00
}

Important:
- If you cannot find a field, use null for that field
- Do not include any text before or after the JSON
- Do not use markdown code blocks`

// imageToPNG re-encodes a JPEG or PNG receipt as PNG
func imageToPNG(imageData []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		if strings.Contains(err.Error(), "unknown format") {
			return nil, fmt.Errorf("unsupported image format. Supported formats: JPEG, PNG. Error: %w", err)
		}
		return nil, fmt.Errorf("decoding image: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// prepareImageData returns the receipt as PNG, converting when the content
// type says it is anything else. The bool reports whether it converted.
func prepareImageData(imageData []byte, contentType string) ([]byte, bool, error) {
	mimeType := strings.ToLower(strings.TrimSpace(contentType))
	if mimeType == "image/png" {
		return imageData, false, nil
	}

	pngData, err := imageToPNG(imageData)
	if err != nil {
		return nil, false, fmt.Errorf("converting image to PNG: %w", err)
	}
	return pngData, true, nil
}

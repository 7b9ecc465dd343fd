package models

import "strings"

// NormalizeImageURI coerces an image payload into a form the multimodal
// LLM accepts: raw base64 gets a data-URI prefix, anything that is already
// a URL or URI passes through unchanged.
func NormalizeImageURI(img string) string {
	if strings.HasPrefix(img, "http") ||
		strings.HasPrefix(img, "file://") ||
		strings.HasPrefix(img, "data:") {
		return img
	}
	return "data:image/png;base64," + img
}

// RawBase64 strips any data-URI prefix, leaving the bare base64 payload.
// Payloads without a prefix are returned as-is, so both forms decode to
// identical bytes.
func RawBase64(img string) string {
	if i := strings.LastIndex(img, ","); i >= 0 {
		return img[i+1:]
	}
	return img
}

package constants

import "strings"

// Document formats accepted for compliance checks.
const (
	DOCX = "DOCX"
	PDF  = "PDF"
	TXT  = "TXT"
)

// AllowedExtensions holds the document extensions the extractor understands.
var AllowedExtensions = map[string]struct{}{
	"docx": {},
	"pdf":  {},
	"txt":  {},
	"md":   {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MapExtToFormat returns the document format for an extension, or "" if unsupported.
func MapExtToFormat(ext string) string {
	switch NormalizeExt(ext) {
	case "docx":
		return DOCX
	case "pdf":
		return PDF
	case "txt", "md":
		return TXT
	default:
		return ""
	}
}

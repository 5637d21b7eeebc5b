package constants

import "strings"

// SourceKind identifies where a run reads its input from.
type SourceKind string

const (
	SourceDoc      SourceKind = "doc"       // Google Docs document id
	SourcePDF      SourceKind = "pdf"       // local PDF path
	SourceDrivePDF SourceKind = "drive-pdf" // PDF file name on Google Drive
	SourceSheet    SourceKind = "sheet"     // Google Sheets spreadsheet name
	SourceXLSX     SourceKind = "xlsx"      // local workbook path
	SourceText     SourceKind = "text"      // local UTF-8 text file
)

var allSourceKinds = []SourceKind{SourceDoc, SourcePDF, SourceDrivePDF, SourceSheet, SourceXLSX, SourceText}

// SinkKind identifies where a run writes its table to.
type SinkKind string

const (
	SinkSheet SinkKind = "sheet"
	SinkXLSX  SinkKind = "xlsx"
)

// IsTextual reports whether the source produces raw text that needs extraction.
func (k SourceKind) IsTextual() bool {
	switch k {
	case SourceDoc, SourcePDF, SourceDrivePDF, SourceText:
		return true
	}
	return false
}

// ParseSourceKind accepts the canonical names plus a few file extensions.
func ParseSourceKind(s string) (SourceKind, bool) {
	s = NormalizeExt(strings.TrimSpace(s))
	switch s {
	case "txt":
		return SourceText, true
	case "gdoc", "document":
		return SourceDoc, true
	case "gsheet", "spreadsheet":
		return SourceSheet, true
	}
	for _, k := range allSourceKinds {
		if s == string(k) {
			return k, true
		}
	}
	return "", false
}

// ParseSinkKind maps a flag/request value to a SinkKind. Empty means SinkSheet.
func ParseSinkKind(s string) (SinkKind, bool) {
	switch NormalizeExt(strings.TrimSpace(s)) {
	case "", "sheet", "gsheet", "spreadsheet":
		return SinkSheet, true
	case "xlsx":
		return SinkXLSX, true
	}
	return "", false
}

// SourceKindForPath guesses a local source kind from a file extension.
func SourceKindForPath(path string) SourceKind {
	i := strings.LastIndex(path, ".")
	if i < 0 {
		return ""
	}
	switch NormalizeExt(path[i:]) {
	case "pdf":
		return SourcePDF
	case "xlsx":
		return SourceXLSX
	case "txt", "text":
		return SourceText
	}
	return ""
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// AllSourceKinds returns every canonical source kind.
func AllSourceKinds() []SourceKind {
	out := make([]SourceKind, len(allSourceKinds))
	copy(out, allSourceKinds)
	return out
}

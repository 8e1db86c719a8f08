package constants

import (
	"strings"
)

// DocType is the label attached to an analyzed document.
type DocType string

const (
	DocPrescription DocType = "prescription"
	DocLabReport    DocType = "lab_report"
	DocUnknown      DocType = "unknown"

	// DocAuto is only valid as a request hint.
	DocAuto DocType = "auto"
)

var hintTypes = []DocType{
	DocPrescription,
	DocLabReport,
	DocAuto,
}

// HintTypes returns the values accepted as a document_type hint.
func HintTypes() []string {
	result := make([]string, len(hintTypes))
	for i, t := range hintTypes {
		result[i] = string(t)
	}
	return result
}

// ParseHint canonicalizes a caller supplied document_type. Empty input maps
// to the lab report default.
func ParseHint(input string) (DocType, bool) {
	normalized := strings.ToLower(strings.TrimSpace(input))
	if normalized == "" {
		return DocLabReport, true
	}

	synonyms := map[string]DocType{
		"rx":         DocPrescription,
		"lab":        DocLabReport,
		"lab report": DocLabReport,
		"labreport":  DocLabReport,
	}
	if t, ok := synonyms[normalized]; ok {
		return t, true
	}

	for _, t := range hintTypes {
		if normalized == string(t) {
			return t, true
		}
	}
	return "", false
}

// HasSchema reports whether structured extraction applies to t.
func (t DocType) HasSchema() bool {
	return t == DocPrescription || t == DocLabReport
}

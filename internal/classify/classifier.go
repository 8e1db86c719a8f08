// Package classify labels free text as a prescription, a lab report, or unknown.
package classify

import (
	"regexp"
	"strings"

	"github.com/joseph-ayodele/medilink/constants"
)

// Score is the outcome of a classification.
type Score struct {
	Prescription int
	Lab          int
	Label        constants.DocType
}

type keyword struct {
	term   string
	weight int
}

// Strong terms weigh 2, the rest 1. Matching is a case-insensitive substring test.
var prescriptionVocab = vocab(
	[]string{"prescription", "rx", "prescribed", "dosage", "pharmacy"},
	[]string{
		"rx#", "take", "medicine", "medication", "refill", "tablets", "capsules",
		"oral", "topical", "mg", "mcg", "ml", "once daily", "twice daily",
		"three times daily", "physician", "dr.", "doctor", "dispense", "substitution",
	},
)

var labVocab = vocab(
	[]string{"laboratory", "lab report", "test results", "reference range"},
	[]string{
		"specimen", "blood test", "urine test", "cholesterol", "glucose", "wbc",
		"rbc", "hgb", "hemoglobin", "hba1c", "creatinine", "normal range", "reference",
		"panel", "hematology", "chemistry", "lipid", "thyroid", "abnormal", "elevated",
		"complete blood count", "metabolic panel",
	},
)

const boost = 3

var (
	reDosage     = regexp.MustCompile(`take\s+\d+\s+tablet|\d+\s+times?\s+daily`)
	reRangeValue = regexp.MustCompile(`\b\d+\s*[-–]\s*\d+\s*[a-zA-Z/]+\b`)
)

func vocab(strong, regular []string) []keyword {
	out := make([]keyword, 0, len(strong)+len(regular))
	for _, s := range strong {
		out = append(out, keyword{term: s, weight: 2})
	}
	for _, s := range regular {
		out = append(out, keyword{term: s, weight: 1})
	}
	return out
}

// Classify scores text against both vocabularies. It is a pure function.
func Classify(text string) Score {
	lower := strings.ToLower(text)

	var s Score
	s.Prescription = tally(lower, prescriptionVocab)
	s.Lab = tally(lower, labVocab)

	if reDosage.MatchString(lower) {
		s.Prescription += boost
	}
	if reRangeValue.MatchString(lower) || strings.Contains(lower, "reference range") {
		s.Lab += boost
	}
	s.Label = Resolve(s.Prescription, s.Lab)
	return s
}

// Resolve turns two scores into a label; ties are unknown.
func Resolve(prescription, lab int) constants.DocType {
	switch {
	case prescription > lab:
		return constants.DocPrescription
	case lab > prescription:
		return constants.DocLabReport
	default:
		return constants.DocUnknown
	}
}

// ResolveType honours an explicit prescription/lab_report hint and falls back
// to classification for auto.
func ResolveType(hint constants.DocType, text string) constants.DocType {
	switch hint {
	case constants.DocPrescription, constants.DocLabReport:
		return hint
	default:
		return Classify(text).Label
	}
}

func tally(lower string, kws []keyword) int {
	total := 0
	for _, kw := range kws {
		if strings.Contains(lower, kw.term) {
			total += kw.weight
		}
	}
	return total
}

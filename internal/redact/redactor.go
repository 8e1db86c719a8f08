// Package redact scrubs personally identifying substrings from extracted text.
//
// Rules run in a fixed order (phone, email, SSN, date of birth, street address)
// and each replaces its matches with a bracketed placeholder. Placeholders
// carry no digits or '@', so no rule can re-match output of an earlier pass
// and Redact is idempotent.
package redact

import (
	"fmt"
	"regexp"
	"strings"
)

// Kind names a class of identifying data.
type Kind string

const (
	KindPhone   Kind = "phone"
	KindEmail   Kind = "email"
	KindSSN     Kind = "ssn"
	KindDOB     Kind = "dob"
	KindAddress Kind = "address"
)

// Placeholders substituted for each kind.
const (
	PhonePlaceholder   = "[PHONE REDACTED]"
	EmailPlaceholder   = "[EMAIL REDACTED]"
	SSNPlaceholder     = "[SSN REDACTED]"
	DOBPlaceholder     = "[DOB REDACTED]"
	AddressPlaceholder = "[ADDRESS REDACTED]"
)

// AddressPolicy tunes the precision/recall of the street address rule.
type AddressPolicy int

const (
	// AddressStrict matches a house number, one to four capitalized tokens on
	// the same line and a street suffix.
	AddressStrict AddressPolicy = iota
	// AddressBroad matches any run of words between a house number and a
	// street suffix, across lines, plus trailing words. It over-matches.
	AddressBroad
	// AddressOff disables the address rule.
	AddressOff
)

// ParseAddressPolicy maps "strict", "broad" or "off" to a policy.
func ParseAddressPolicy(s string) (AddressPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "strict":
		return AddressStrict, nil
	case "broad":
		return AddressBroad, nil
	case "off", "none":
		return AddressOff, nil
	default:
		return AddressStrict, fmt.Errorf("unknown address policy %q", s)
	}
}

func (p AddressPolicy) String() string {
	switch p {
	case AddressBroad:
		return "broad"
	case AddressOff:
		return "off"
	default:
		return "strict"
	}
}

const streetSuffix = `(?:Avenue|Ave|Boulevard|Blvd|Street|St|Road|Rd|Lane|Ln|Drive|Dr|Court|Ct|Place|Pl|Terrace|Ter)`

var (
	rePhone = regexp.MustCompile(`(?:\+?1[-. ]?)?(?:\(\d{3}\)|\b\d{3})[-. ]?\d{3}[-. ]?\d{4}\b`)
	reEmail = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	reSSN   = regexp.MustCompile(`\b\d{3}[-. ]?\d{2}[-. ]?\d{4}\b`)

	reDOBNumeric = regexp.MustCompile(`(?i)\b(?:DOB|Date of Birth|Birth Date)\s*[:;]\s*\d{1,2}[-/.]\d{1,2}[-/.]\d{2,4}\b`)
	reDOBWords   = regexp.MustCompile(`(?i)\b(?:DOB|Date of Birth|Birth Date)\s*[:;]\s*[A-Za-z]+\.? \d{1,2},? \d{4}\b`)

	reAddressStrict = regexp.MustCompile(`\b\d{1,5}(?:[ \t]+(?:[A-Z0-9][A-Za-z0-9'#-]*|[A-Za-z]\.)){1,4}[ \t]+(?i:` + streetSuffix + `)\b\.?`)
	reAddressBroad  = regexp.MustCompile(`(?i)\b\d{1,5}\s+[A-Za-z0-9\s,.]+` + streetSuffix + `(?:\s+[A-Za-z0-9\s,.]*)?\b`)
)

type rule struct {
	kind        Kind
	re          *regexp.Regexp
	placeholder string
}

// Redactor applies the ordered rule set. It is safe for concurrent use.
type Redactor struct {
	rules  []rule
	policy AddressPolicy
}

// New builds a Redactor with the given address policy.
func New(policy AddressPolicy) *Redactor {
	rules := []rule{
		{KindPhone, rePhone, PhonePlaceholder},
		{KindEmail, reEmail, EmailPlaceholder},
		{KindSSN, reSSN, SSNPlaceholder},
		{KindDOB, reDOBNumeric, DOBPlaceholder},
		{KindDOB, reDOBWords, DOBPlaceholder},
	}
	switch policy {
	case AddressStrict:
		rules = append(rules, rule{KindAddress, reAddressStrict, AddressPlaceholder})
	case AddressBroad:
		rules = append(rules, rule{KindAddress, reAddressBroad, AddressPlaceholder})
	}
	return &Redactor{rules: rules, policy: policy}
}

// Policy returns the address policy in effect.
func (r *Redactor) Policy() AddressPolicy { return r.policy }

// Redact returns text with every rule applied once, in order.
func (r *Redactor) Redact(text string) string {
	out, _ := r.Apply(text)
	return out
}

// Apply is Redact plus per-kind match counts, suitable for logging.
func (r *Redactor) Apply(text string) (string, map[Kind]int) {
	counts := map[Kind]int{}
	for _, ru := range r.rules {
		n := len(ru.re.FindAllStringIndex(text, -1))
		if n == 0 {
			continue
		}
		counts[ru.kind] += n
		text = ru.re.ReplaceAllLiteralString(text, ru.placeholder)
	}
	return text, counts
}

package redact

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedactRules(t *testing.T) {
	r := New(AddressStrict)

	tests := []struct {
		name    string
		in      string
		want    string
		absent  []string
		present []string
	}{
		{
			name: "dashed phone",
			in:   "Call 555-123-4567 to refill",
			want: "Call [PHONE REDACTED] to refill",
		},
		{
			name: "parenthesized phone with country code",
			in:   "Office: +1 (555) 123 4567.",
			want: "Office: [PHONE REDACTED].",
		},
		{
			name: "email",
			in:   "Contact jane.doe+rx@clinic-mail.example.org today",
			want: "Contact [EMAIL REDACTED] today",
		},
		{
			name: "ssn variants",
			in:   "SSN 123-45-6789 alt 123 45 6789",
			want: "SSN [SSN REDACTED] alt [SSN REDACTED]",
		},
		{
			name:    "dob numeric",
			in:      "Patient DOB: 01/02/1990 seen today",
			present: []string{DOBPlaceholder},
			absent:  []string{"01/02/1990", "1990"},
		},
		{
			name: "dob month name",
			in:   "Date of Birth: January 2, 1990",
			want: "[DOB REDACTED]",
		},
		{
			name: "street address",
			in:   "Lives at 123 Main Street, Springfield",
			want: "Lives at [ADDRESS REDACTED], Springfield",
		},
		{
			name: "address with initial",
			in:   "Ship to 42 N. Elm Ave.",
			want: "Ship to [ADDRESS REDACTED]",
		},
		{
			name: "dosage text survives",
			in:   "take 2 tablets twice daily with food",
			want: "take 2 tablets twice daily with food",
		},
		{
			name: "reference range survives",
			in:   "Glucose 95 mg/dL (70-100 mg/dL)",
			want: "Glucose 95 mg/dL (70-100 mg/dL)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.Redact(tt.in)
			if tt.want != "" {
				assert.Equal(t, tt.want, got)
			}
			for _, s := range tt.present {
				assert.Contains(t, got, s)
			}
			for _, s := range tt.absent {
				assert.NotContains(t, got, s)
			}
		})
	}
}

func TestRedactIdempotent(t *testing.T) {
	inputs := []string{
		"",
		"no identifiers here at all",
		"Call 555-123-4567 or mail a@b.co; SSN 123-45-6789; DOB: 1/2/90",
		"DOB: March 3, 1981 at 9 Oak Rd\n12 Pine Ct and (212) 555-0100",
		"123 Main St 555 123 4567 123456789 x@y.io",
		"[PHONE REDACTED] [ADDRESS REDACTED] 10 Downing St",
	}
	for _, policy := range []AddressPolicy{AddressStrict, AddressBroad, AddressOff} {
		r := New(policy)
		for _, in := range inputs {
			once := r.Redact(in)
			assert.Equal(t, once, r.Redact(once), "policy=%s input=%q", policy, in)
		}
	}
}

func TestAddressPolicy(t *testing.T) {
	in := "Take 1 tablet\n5 times and see 100 Lakeview Terrace"

	strict := New(AddressStrict).Redact(in)
	assert.Contains(t, strict, "Take 1 tablet\n5 times")
	assert.Contains(t, strict, AddressPlaceholder)

	broad := New(AddressBroad).Redact(in)
	assert.NotContains(t, broad, "tablet", "broad policy spans lines")

	off := New(AddressOff).Redact(in)
	assert.Equal(t, in, off)
}

func TestApplyCounts(t *testing.T) {
	out, counts := New(AddressStrict).Apply("a@b.io c@d.io 555-123-4567")
	assert.Equal(t, "[EMAIL REDACTED] [EMAIL REDACTED] [PHONE REDACTED]", out)
	assert.Equal(t, 2, counts[KindEmail])
	assert.Equal(t, 1, counts[KindPhone])
	assert.Zero(t, counts[KindSSN])
}

func TestParseAddressPolicy(t *testing.T) {
	p, err := ParseAddressPolicy("BROAD")
	require.NoError(t, err)
	assert.Equal(t, AddressBroad, p)

	p, err = ParseAddressPolicy("")
	require.NoError(t, err)
	assert.Equal(t, AddressStrict, p)

	_, err = ParseAddressPolicy("fuzzy")
	assert.Error(t, err)
}

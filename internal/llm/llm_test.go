package llm

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/medilink/constants"
)

func TestRecoverJSON(t *testing.T) {
	tests := []struct {
		name    string
		content string
		method  Method
		ok      bool
		summary string
	}{
		{"strict", `{"summary":"a","medications":[]}`, MethodStrict, true, "a"},
		{"fenced", "Here you go:\n```json\n{\"summary\":\"b\"}\n```\nThanks", MethodFenced, true, "b"},
		{"bare fence", "```\n{\"summary\":\"c\"}\n```", MethodFenced, true, "c"},
		{"balanced", `Result: {"summary":"d {not a brace}","x":{"y":1}} trailing`, MethodBalanced, true, "d {not a brace}"},
		{"escaped quote", `note {"summary":"say \"hi\" }"} end`, MethodBalanced, true, `say "hi" }`},
		{"lenient", "The answer is {\"summary\": “e”, \"tags\": [1, 2,],} done", MethodLenient, true, "e"},
		{"array only", `[1,2,3]`, MethodNone, false, ""},
		{"prose", `I could not read this document.`, MethodNone, false, ""},
		{"empty", "   ", MethodNone, false, ""},
		{"unbalanced", `{"summary": "x"`, MethodNone, false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, method, ok := RecoverJSON(tt.content)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.method, method)
			if !tt.ok {
				assert.Nil(t, raw)
				return
			}
			var m map[string]any
			require.NoError(t, json.Unmarshal(raw, &m))
			assert.Equal(t, tt.summary, m["summary"])
		})
	}
}

func TestSchemaFor(t *testing.T) {
	rx, ok := SchemaFor(constants.DocPrescription)
	require.True(t, ok)
	assert.Equal(t, []string{"summary", "medications"}, RequiredFields(rx))

	lab, ok := SchemaFor(constants.DocLabReport)
	require.True(t, ok)
	assert.Equal(t, []string{"summary", "test_results"}, RequiredFields(lab))

	_, ok = SchemaFor(constants.DocUnknown)
	assert.False(t, ok)
}

func TestValidatorFor(t *testing.T) {
	rx, ok := ValidatorFor(constants.DocPrescription)
	require.True(t, ok)
	lab, ok := ValidatorFor(constants.DocLabReport)
	require.True(t, ok)
	_, ok = ValidatorFor(constants.DocUnknown)
	assert.False(t, ok)

	again, _ := ValidatorFor(constants.DocPrescription)
	assert.Same(t, rx, again, "schemas compile once")

	good := `{
		"summary": "Antibiotic course",
		"medications": [{"name": "Amoxicillin", "dosage": "500mg", "frequency": "twice daily"}],
		"lifestyle_recommendations": [{"category": "DIET", "recommendations": ["Take with food"]}]
	}`
	require.NoError(t, rx.Validate([]byte(good)))

	missing := `{"summary": "x"}`
	assert.Error(t, rx.Validate([]byte(missing)))

	badEnum := `{
		"summary": "Labs",
		"test_results": [{"test_name": "Hb", "status": "PURPLE"}]
	}`
	err := lab.Validate([]byte(badEnum))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lab_report reply does not match schema")

	labGood := `{
		"summary": "Mild anemia",
		"test_results": [{"test_name": "Hemoglobin", "value": "10.1 g/dL", "status": "LOW"}],
		"abnormal_values": [{"test_name": "Hemoglobin", "status": "LOW", "severity": "MILD"}],
		"recommended_supplements": [{"name": "Iron", "is_prescription": false, "reason": "low Hb"}]
	}`
	assert.NoError(t, lab.Validate([]byte(labGood)))

	assert.Error(t, lab.Validate([]byte("nope")))
}

func TestCompileSchemaRejectsInvalidSchema(t *testing.T) {
	_, err := CompileSchema(constants.DocPrescription, map[string]any{"type": 5})
	assert.Error(t, err)
}

func TestSanitizeOptionalFields(t *testing.T) {
	raw := `{
		"summary": "  Course  ",
		"medications": [{"name": "Amoxicillin", "dosage": null, "form": "", "duration": "null"}],
		"warnings": [],
		"prescription_details": {"date": null, "refills": "2"},
		"doctor_questions": null
	}`
	out, dropped, err := SanitizeOptionalFields([]byte(raw), PrescriptionSchema(), nil)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"doctor_questions",
		"medications[0].dosage",
		"medications[0].duration",
		"medications[0].form",
		"prescription_details.date",
		"warnings",
	}, dropped)

	var m map[string]any
	require.NoError(t, json.Unmarshal(out, &m))
	assert.Equal(t, "Course", m["summary"])
	assert.Equal(t, map[string]any{"refills": "2"}, m["prescription_details"])
	rx, _ := ValidatorFor(constants.DocPrescription)
	assert.NoError(t, rx.Validate(out))
}

func TestSanitizeKeepsRequiredNulls(t *testing.T) {
	out, dropped, err := SanitizeOptionalFields([]byte(`{"summary": null, "medications": []}`), PrescriptionSchema(), nil)
	require.NoError(t, err)
	assert.Empty(t, dropped)
	assert.JSONEq(t, `{"summary": null, "medications": []}`, string(out))
}

func TestAnalysisPrompt(t *testing.T) {
	msgs, sampling := AnalysisPrompt(constants.DocPrescription, "take 2 tablets")
	require.Len(t, msgs, 2)
	assert.Equal(t, RoleSystem, msgs[0].Role)
	assert.Contains(t, msgs[0].Content, "interpreting prescriptions")
	assert.Equal(t, RoleUser, msgs[1].Role)
	assert.True(t, strings.HasPrefix(msgs[1].Content, "Extract information from this prescription according to the schema. Use strict JSON format.\n\nSCHEMA: {"))
	assert.True(t, strings.HasSuffix(msgs[1].Content, "\n\nPRESCRIPTION TEXT: take 2 tablets"))
	assert.Equal(t, StructuredSampling, sampling)

	msgs, _ = AnalysisPrompt(constants.DocLabReport, "Hb 10")
	assert.Contains(t, msgs[0].Content, "laboratory reports")
	assert.True(t, strings.HasSuffix(msgs[1].Content, "LAB REPORT TEXT: Hb 10"))

	msgs, sampling = AnalysisPrompt(constants.DocUnknown, "some text")
	assert.Contains(t, msgs[0].Content, "## TASK")
	assert.Equal(t, "Here is the text extracted from a medical document. Please analyze it according to the instructions:\n\nsome text", msgs[1].Content)
	assert.Equal(t, FreeformSampling, sampling)
}

func TestChatSamplingFor(t *testing.T) {
	assert.Equal(t, ChatStructuredSampling, ChatSamplingFor(constants.DocLabReport, "Please LIST the abnormal values"))
	assert.Equal(t, ChatSampling, ChatSamplingFor(constants.DocLabReport, "what does this mean?"))
	assert.Equal(t, ChatSampling, ChatSamplingFor(constants.DocUnknown, "summarize it"))
	assert.Equal(t, "Question about the medical document: why?", ChatUserContent("why?"))
}

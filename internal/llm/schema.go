package llm

import (
	"encoding/json"

	"github.com/joseph-ayodele/medilink/constants"
)

// SchemaFor returns the structured-output schema for t, if it has one.
func SchemaFor(t constants.DocType) (map[string]any, bool) {
	switch t {
	case constants.DocPrescription:
		return PrescriptionSchema(), true
	case constants.DocLabReport:
		return LabReportSchema(), true
	default:
		return nil, false
	}
}

// SchemaText renders a schema the way it is embedded in prompts.
func SchemaText(schema map[string]any) string {
	b, _ := json.MarshalIndent(schema, "", "  ")
	return string(b)
}

// RequiredFields lists the top-level required keys of schema.
func RequiredFields(schema map[string]any) []string {
	req, _ := schema["required"].([]string)
	return req
}

// LabReportSchema returns a JSON-Schema for lab report extraction as a generic map.
func LabReportSchema() map[string]any {
	return object(map[string]any{
		"summary": str("Brief overview of the lab report findings in human-friendly language"),
		"test_results": array(object(map[string]any{
			"test_name":       str("Name of the test"),
			"value":           str("Measured value with units"),
			"reference_range": str("Normal/reference range for this test"),
			"status":          enum("Status of the result compared to reference range", "NORMAL", "HIGH", "LOW", "UNKNOWN"),
			"interpretation":  str("Brief interpretation of this result"),
		}, "test_name", "status")),
		"abnormal_values": array(object(map[string]any{
			"test_name":       str("Name of the test with abnormal value"),
			"value":           str("Abnormal value with units"),
			"reference_range": str("Normal/reference range for this test"),
			"status":          enum("Whether the value is high or low", "HIGH", "LOW"),
			"severity":        enum("Severity of the abnormal finding", "MILD", "MODERATE", "SEVERE"),
			"concerns":        str("Potential health concerns related to this abnormal value"),
		}, "test_name", "status", "severity")),
		"interpretation": str("Overall interpretation of lab results in plain language"),
		"recommended_supplements": array(object(map[string]any{
			"name":            str("Name of recommended supplement or medicine"),
			"dosage":          str("Recommended dosage (e.g., 1000mg daily)"),
			"is_prescription": map[string]any{"type": "boolean", "description": "Whether this requires a prescription (true) or is over-the-counter (false)"},
			"reason":          str("Why this supplement is recommended"),
			"warnings":        str("Any warnings or side effects to be aware of"),
		}, "name", "is_prescription", "reason")),
		"lifestyle_recommendations": lifestyleProp(),
		"follow_up_tests": array(object(map[string]any{
			"test_name": str("Name of recommended follow-up test"),
			"timeline":  str("When this test should be done (e.g., '3 months', 'After medication course')"),
			"reason":    str("Why this follow-up test is recommended"),
		}, "test_name", "timeline")),
		"doctor_questions": questionsProp("Question to ask doctor based on these results", "Which test or finding this question relates to"),
		"report_tags":      tagsProp("Tag name for categorizing this report", "Category this tag belongs to (e.g., Specialty, Test Type)"),
	}, "summary", "test_results")
}

// PrescriptionSchema returns a JSON-Schema for prescription extraction as a generic map.
func PrescriptionSchema() map[string]any {
	return object(map[string]any{
		"summary": str("Brief overview of the prescription in human-friendly language"),
		"medications": array(object(map[string]any{
			"name":         str("Name of the medication"),
			"dosage":       str("Dosage amount and units (e.g., 10mg, 5ml)"),
			"form":         str("Form of the medication (e.g., tablet, capsule, liquid)"),
			"frequency":    str("How often to take (e.g., twice daily, every 8 hours)"),
			"duration":     str("How long to take the medication (e.g., for 10 days, until finished)"),
			"instructions": str("Special instructions for taking this medication"),
		}, "name")),
		"general_instructions": array(str("General instructions for all medications")),
		"warnings":             array(str("Warnings or precautions")),
		"prescription_details": object(map[string]any{
			"date":          str("Date the prescription was written"),
			"prescribed_by": str("Name or identifier of prescriber (no personal details)"),
			"refills":       str("Number of refills allowed"),
		}),
		"lifestyle_recommendations": lifestyleProp(),
		"doctor_questions":          questionsProp("Question to ask doctor related to this prescription", "Which medication or condition this question relates to"),
		"report_tags":               tagsProp("Tag name for categorizing this prescription", "Category this tag belongs to (e.g., Medication Type, Condition)"),
	}, "summary", "medications")
}

func lifestyleProp() map[string]any {
	return array(object(map[string]any{
		"category":        enum("Category of lifestyle recommendation", "DIET", "EXERCISE", "SLEEP", "OTHER"),
		"recommendations": array(str("Specific recommendation within this category")),
	}, "category", "recommendations"))
}

func questionsProp(question, relatedTo string) map[string]any {
	return array(object(map[string]any{
		"question":   str(question),
		"related_to": str(relatedTo),
	}, "question"))
}

func tagsProp(name, category string) map[string]any {
	return array(object(map[string]any{
		"name":     str(name),
		"category": str(category),
	}, "name"))
}

func str(desc string) map[string]any {
	return map[string]any{"type": "string", "description": desc}
}

func enum(desc string, values ...string) map[string]any {
	return map[string]any{"type": "string", "enum": values, "description": desc}
}

func array(items map[string]any) map[string]any {
	return map[string]any{"type": "array", "items": items}
}

func object(props map[string]any, required ...string) map[string]any {
	m := map[string]any{"type": "object", "properties": props}
	if len(required) > 0 {
		m["required"] = required
	}
	return m
}

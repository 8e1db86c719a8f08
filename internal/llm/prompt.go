package llm

import (
	"strings"

	"github.com/joseph-ayodele/medilink/constants"
)

// ChatPrefix is prepended to every follow-up question.
const ChatPrefix = "Question about the medical document: "

const prescriptionSystemPrompt = `You are a medical assistant AI specialized in interpreting prescriptions. Analyze the provided prescription text and extract the information according to the specified JSON schema.

IMPORTANT GUIDELINES:
- Create a human-friendly summary that explains the prescription's purpose
- NEVER include any personal information like patient names, addresses, or contact details
- Add lifestyle recommendations based on common advice for patients on these medications
- Suggest doctor questions the patient should ask about this prescription
- Add relevant tags to categorize this prescription
- If information is unclear or missing, use null values rather than guessing
- Provide warnings about medication interactions or side effects where relevant`

const labReportSystemPrompt = `You are a medical assistant AI specialized in interpreting laboratory reports. Analyze the provided lab report text and extract the information according to the specified JSON schema.

IMPORTANT GUIDELINES:
- Create a human-friendly executive summary that explains key findings in plain language
- Categorize abnormal values with severity levels (MILD, MODERATE, SEVERE)
- Suggest appropriate supplements or medications based on test results
- Provide lifestyle and diet recommendations specific to these lab results
- Recommend follow-up tests that would complement these findings
- Generate questions the patient should ask their doctor
- Add relevant tags to categorize this report
- NEVER include any personal information like patient names, addresses, or contact details
- If information is unclear or missing, use null values rather than guessing`

const genericSystemPrompt = `You are a medical assistant AI specialized in interpreting medical documents. Analyze the provided medical document text and extract key information:

## TASK
Identify the document type first, then extract and organize relevant medical information:
1. DOCUMENT TYPE: Determine what kind of medical document this is
2. KEY INFORMATION: Extract the most important medical details
3. MEDICAL TERMS: Explain any specialized medical terminology
4. SUMMARY: Provide a concise, plain-language overview

## IMPORTANT GUIDELINES
- NEVER include any personal information like patient names, addresses, or contact details
- Organize information in a logical, easy-to-understand format
- Highlight important medical findings or recommendations
- If information is unclear or missing, indicate this rather than guessing
- Use formatting to improve readability`

// SystemPrompt returns the system instruction for a document type.
func SystemPrompt(t constants.DocType) string {
	switch t {
	case constants.DocPrescription:
		return prescriptionSystemPrompt
	case constants.DocLabReport:
		return labReportSystemPrompt
	default:
		return genericSystemPrompt
	}
}

// AnalysisPrompt builds the opening [system, user] pair for a redacted
// document, along with the sampling preset it should be sent with.
func AnalysisPrompt(t constants.DocType, text string) ([]Message, Sampling) {
	system := Message{Role: RoleSystem, Content: SystemPrompt(t)}

	schema, ok := SchemaFor(t)
	if !ok {
		user := "Here is the text extracted from a medical document. Please analyze it according to the instructions:\n\n" + text
		return []Message{system, {Role: RoleUser, Content: user}}, FreeformSampling
	}

	label, heading := "prescription", "PRESCRIPTION TEXT"
	if t == constants.DocLabReport {
		label, heading = "lab report", "LAB REPORT TEXT"
	}
	var b strings.Builder
	b.WriteString("Extract information from this ")
	b.WriteString(label)
	b.WriteString(" according to the schema. Use strict JSON format.\n\nSCHEMA: ")
	b.WriteString(SchemaText(schema))
	b.WriteString("\n\n")
	b.WriteString(heading)
	b.WriteString(": ")
	b.WriteString(text)
	return []Message{system, {Role: RoleUser, Content: b.String()}}, StructuredSampling
}

// ChatUserContent is the user turn stored and sent for a follow-up question.
func ChatUserContent(msg string) string {
	return ChatPrefix + msg
}

var structuredVerbs = []string{"extract", "summarize", "list"}

// WantsStructured reports whether a follow-up asks for a listing that should
// be answered in JSON mode. Only document types with a schema qualify.
func WantsStructured(t constants.DocType, msg string) bool {
	if _, ok := SchemaFor(t); !ok {
		return false
	}
	lower := strings.ToLower(msg)
	for _, v := range structuredVerbs {
		if strings.Contains(lower, v) {
			return true
		}
	}
	return false
}

// ChatSamplingFor picks the sampling preset for a follow-up question.
func ChatSamplingFor(t constants.DocType, msg string) Sampling {
	if WantsStructured(t, msg) {
		return ChatStructuredSampling
	}
	return ChatSampling
}

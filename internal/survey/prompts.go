package survey

import (
	"fmt"
	"strings"

	"github.com/sitewise-ai/sitewise/internal/store"
)

const componentPromptTemplate = `Analyze this industrial/manufacturing equipment image for a site survey inspection.

Additional context: %s

Please identify:
1. What type of equipment/component is shown
2. Visible condition of bolts, fasteners, connections
3. Any signs of wear, damage, corrosion, or misalignment
4. Overall component condition assessment
5. Any safety concerns or anomalies

Provide a structured analysis with specific observations.`

func componentPrompt(textNotes string) string {
	notes := textNotes
	if notes == "" {
		notes = "No additional notes provided."
	}
	return fmt.Sprintf(componentPromptTemplate, notes)
}

const reportPromptTemplate = `Based on the component analysis and historical survey data, generate a comprehensive site survey report.

CURRENT SURVEY ANALYSIS:
%s

ADDITIONAL NOTES:
%s

HISTORICAL CONTEXT - PASSING SURVEYS:
%s

HISTORICAL CONTEXT - FAILING SURVEYS:
%s

Generate a report that includes:
1. Executive Summary (Pass/Fail determination)
2. Component-by-Component Analysis
3. Comparison to Historical Standards
4. Specific Issues Found (if any)
5. Recommendations
6. Confidence Level

Format as a professional inspection report.`

// precedentContextLimit bounds how many retrieved precedents per category are
// folded into the report prompt.
const precedentContextLimit = 2

func reportPrompt(st *State) string {
	analyses := make([]string, len(st.ComponentAnalyses))
	for i, ca := range st.ComponentAnalyses {
		analyses[i] = ca.Analysis
	}

	notes := st.TextNotes
	if notes == "" {
		notes = "None provided"
	}

	return fmt.Sprintf(reportPromptTemplate,
		strings.Join(analyses, "\n\n"),
		notes,
		precedentContext("Similar passing survey", st.SimilarSurveys.PassingExamples, "No similar passing surveys found"),
		precedentContext("Similar failing survey", st.SimilarSurveys.FailingExamples, "No similar failing surveys found"),
	)
}

// precedentContext renders up to precedentContextLimit precedents as one
// block, or the placeholder when the category is empty. The placeholder is
// never omitted silently.
func precedentContext(label string, examples []store.Result, placeholder string) string {
	if len(examples) == 0 {
		return placeholder
	}
	if len(examples) > precedentContextLimit {
		examples = examples[:precedentContextLimit]
	}
	lines := make([]string, len(examples))
	for i, ex := range examples {
		lines[i] = fmt.Sprintf("%s: %s", label, ex.Analysis)
	}
	return strings.Join(lines, "\n")
}

const validationPromptTemplate = `Based on this inspection report, provide:
1. Overall status: "PASS" or "FAIL"
2. Confidence score: 0.0 to 1.0
3. Brief justification

Report:
%s

Response format:
STATUS: [PASS/FAIL]
CONFIDENCE: [0.0-1.0]
JUSTIFICATION: [brief explanation]`

func validationPrompt(report string) string {
	return fmt.Sprintf(validationPromptTemplate, report)
}

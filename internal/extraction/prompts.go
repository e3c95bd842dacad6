package extraction

import (
	"fmt"
	"strings"
)

// SingleRequestSuggestion is used for whole-document runs whose reply carries
// no suggestion text.
const SingleRequestSuggestion = "Recommend comprehensive functional testing covering all business flows and exception scenarios."

const caseFieldGuide = `Each test case is an object with these fields:
- "title": test case title (required)
- "group_name": group path, levels separated by "|", e.g. "Web|Home|My Tasks"
- "maintainer": owner name
- "precondition": what must hold before the test runs
- "step_description": steps numbered 【1】, 【2】, 【3】..., one step per line
- "expected_result": expected outcome per step, numbered like the steps
- "case_level": one of High, Medium, Low (default Medium)
- "case_type": one of Functional, Performance, Security, Compatibility (default Functional)
- "test_suggestions": concrete advice for this case: test data, caveats, related tests`

const importRules = `Rules (Teambition test case import template):
- Only "title" is required; fill the other fields as completely as possible.
- Cover every feature point, business scenario, boundary condition and error path in the text.
- Include normal flows, error flows, boundary values, data validation and permission checks.
- Rate core business flows High, main features Medium, peripheral features Low.
- Write the field values in the same language as the document.`

// DocumentPrompt asks for a bare list of cases covering the whole document.
func DocumentPrompt(text string) string {
	var b strings.Builder
	b.WriteString("Analyze the following product requirement document and generate complete, detailed test cases.\n\n")
	b.WriteString("Document:\n")
	b.WriteString(text)
	b.WriteString("\n\nReturn a JSON array of test cases.\n\n")
	b.WriteString(caseFieldGuide)
	b.WriteString("\n\n")
	b.WriteString(importRules)
	b.WriteString("\n\nReturn only the JSON array with no other text. Make sure it is valid JSON.")
	return b.String()
}

// ChunkPrompt asks for cases and section-specific suggestions for part index
// of total (1-based).
func ChunkPrompt(text string, index, total int) string {
	var b strings.Builder
	b.WriteString("Analyze the following fragment of a product requirement document and generate complete, detailed test cases ")
	b.WriteString("plus testing advice specific to this fragment.\n\n")
	fmt.Fprintf(&b, "This is part %d of %d. Focus on the functional requirements, business logic and implementation details in this part.\n\n", index, total)
	b.WriteString("Document fragment:\n")
	b.WriteString(text)
	b.WriteString("\n\nReturn a JSON object of the form:\n")
	b.WriteString("{\"test_cases\": [ ... ], \"analysis_suggestions\": \"...\"}\n\n")
	b.WriteString(caseFieldGuide)
	b.WriteString("\n\n")
	b.WriteString(importRules)
	b.WriteString("\n\n")
	b.WriteString(`"analysis_suggestions" must analyze this fragment specifically: its technical traits and business logic, `)
	b.WriteString("risk points and hard-to-test areas, recommended methods and tools, dependencies on other modules, ")
	b.WriteString("test data preparation, and performance and security concerns. It must not be empty or generic.\n\n")
	b.WriteString("Return only the JSON object with no other text. Make sure it is valid JSON.")
	return b.String()
}

func chunkProgress(index, total int) string {
	return fmt.Sprintf("part %d/%d", index, total)
}

func failedProgress(err error) string {
	return fmt.Sprintf(progressFailedFmt, err)
}

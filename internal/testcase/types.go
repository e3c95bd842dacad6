// Package testcase defines the extracted test-case record and the rules that
// turn loosely shaped model output into records.
package testcase

type Level string

const (
	LevelHigh   Level = "High"
	LevelMedium Level = "Medium"
	LevelLow    Level = "Low"
)

type Type string

const (
	TypeFunctional    Type = "Functional"
	TypePerformance   Type = "Performance"
	TypeSecurity      Type = "Security"
	TypeCompatibility Type = "Compatibility"
)

// Defaults applied to blank optional fields.
const (
	DefaultGroupName       = "Default Group"
	DefaultMaintainer      = "Tester"
	DefaultPrecondition    = "None"
	DefaultStepDescription = "Please add test steps"
	DefaultExpectedResult  = "Please add expected result"
	DefaultCaseLevel       = LevelMedium
	DefaultCaseType        = TypeFunctional
	DefaultTestSuggestions = ""
)

// Field names as they appear in model replies.
const (
	FieldTitle           = "title"
	FieldGroupName       = "group_name"
	FieldMaintainer      = "maintainer"
	FieldPrecondition    = "precondition"
	FieldStepDescription = "step_description"
	FieldExpectedResult  = "expected_result"
	FieldCaseLevel       = "case_level"
	FieldCaseType        = "case_type"
	FieldTestSuggestions = "test_suggestions"
)

// Record is one normalized test case. Only Normalize produces records from
// model output.
type Record struct {
	Title           string `json:"title"`
	GroupName       string `json:"group_name"`
	Maintainer      string `json:"maintainer"`
	Precondition    string `json:"precondition"`
	StepDescription string `json:"step_description"`
	ExpectedResult  string `json:"expected_result"`
	CaseLevel       Level  `json:"case_level"`
	CaseType        Type   `json:"case_type"`
	TestSuggestions string `json:"test_suggestions"`
	// OriginOrder is the arrival sequence across the whole run.
	OriginOrder int `json:"origin_order"`
}

// Draft holds the optional fields of one unvalidated case as read from a reply.
// An empty string means the field was absent or blank.
type Draft struct {
	Title           string
	GroupName       string
	Maintainer      string
	Precondition    string
	StepDescription string
	ExpectedResult  string
	CaseLevel       string
	CaseType        string
	TestSuggestions string
}

// Result is the outcome of one extraction run.
type Result struct {
	Records     []Record `json:"records"`
	Suggestions string   `json:"suggestions"`
}

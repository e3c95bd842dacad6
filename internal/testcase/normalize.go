package testcase

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// fieldAliases lists accepted spellings per field, canonical name first.
var fieldAliases = map[string][]string{
	FieldTitle:           {FieldTitle, "Title"},
	FieldGroupName:       {FieldGroupName, "groupName", "group"},
	FieldMaintainer:      {FieldMaintainer},
	FieldPrecondition:    {FieldPrecondition, "preconditions", "pre_condition"},
	FieldStepDescription: {FieldStepDescription, "stepDescription", "steps"},
	FieldExpectedResult:  {FieldExpectedResult, "expectedResult", "expected_results"},
	FieldCaseLevel:       {FieldCaseLevel, "caseLevel", "level", "priority"},
	FieldCaseType:        {FieldCaseType, "caseType", "type"},
	FieldTestSuggestions: {FieldTestSuggestions, "testSuggestions", "suggestions"},
}

// DraftFromMap reads a raw field map. Unknown keys are ignored. Non-string
// values are rendered as text: lists of scalars one per line, anything else
// as compact JSON.
func DraftFromMap(m map[string]any) Draft {
	get := func(field string) string {
		for _, k := range fieldAliases[field] {
			if v, ok := m[k]; ok && v != nil {
				if s := strings.TrimSpace(stringify(v)); s != "" {
					return s
				}
			}
		}
		return ""
	}
	return Draft{
		Title:           get(FieldTitle),
		GroupName:       get(FieldGroupName),
		Maintainer:      get(FieldMaintainer),
		Precondition:    get(FieldPrecondition),
		StepDescription: get(FieldStepDescription),
		ExpectedResult:  get(FieldExpectedResult),
		CaseLevel:       get(FieldCaseLevel),
		CaseType:        get(FieldCaseType),
		TestSuggestions: get(FieldTestSuggestions),
	}
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case json.Number:
		return t.String()
	case []any:
		lines := make([]string, 0, len(t))
		for _, item := range t {
			switch item.(type) {
			case map[string]any, []any:
				b, _ := json.Marshal(t)
				return string(b)
			}
			if s := strings.TrimSpace(stringify(item)); s != "" {
				lines = append(lines, s)
			}
		}
		return strings.Join(lines, "\n")
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}

// Normalize converts a raw field map into a Record. It reports false when the
// trimmed title is empty.
func Normalize(m map[string]any, order int) (Record, bool) {
	return NormalizeDraft(DraftFromMap(m), order)
}

// NormalizeDraft applies trim-then-default to every optional field.
func NormalizeDraft(d Draft, order int) (Record, bool) {
	title := strings.TrimSpace(d.Title)
	if title == "" {
		return Record{}, false
	}
	return Record{
		Title:           title,
		GroupName:       orDefault(d.GroupName, DefaultGroupName),
		Maintainer:      orDefault(d.Maintainer, DefaultMaintainer),
		Precondition:    orDefault(d.Precondition, DefaultPrecondition),
		StepDescription: orDefault(d.StepDescription, DefaultStepDescription),
		ExpectedResult:  orDefault(d.ExpectedResult, DefaultExpectedResult),
		CaseLevel:       Level(orDefault(d.CaseLevel, string(DefaultCaseLevel))),
		CaseType:        Type(orDefault(d.CaseType, string(DefaultCaseType))),
		TestSuggestions: orDefault(d.TestSuggestions, DefaultTestSuggestions),
		OriginOrder:     order,
	}, true
}

func orDefault(v, def string) string {
	if s := strings.TrimSpace(v); s != "" {
		return s
	}
	return def
}

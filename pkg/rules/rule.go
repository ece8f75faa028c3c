package rules

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"aidr-hq/bastion/pkg/verdict"
)

// LanguageAgnostic is the language tag of rules that apply to any text.
const LanguageAgnostic = "language_agnostic"

// Rule is one loaded detection rule. A rule-source record with N patterns
// expands into N rules sharing the record's id, name, details and action.
// Rules are immutable once loaded.
type Rule struct {
	ID       string
	Name     string
	Details  string
	Language string

	// Body is the match expression (a regex pattern or an analyzer pattern reference).
	Body string

	Action verdict.Action

	// Source is the file the rule was loaded from.
	Source string
}

// Record is the on-disk shape of one rule-source document.
//
// Example:
//
//	uuid: 6c1f...
//	name: SQL drop table
//	details: Attempts to drop a database table
//	response: block
//	detection:
//	  language: language_agnostic
//	  pattern:
//	    - "(?i)drop\\s+table"
type Record struct {
	UUID      string     `yaml:"uuid"`
	Name      string     `yaml:"name"`
	Details   *string    `yaml:"details"`
	Response  string     `yaml:"response"`
	Detection *Detection `yaml:"detection"`
}

// Detection is the match block of a record.
type Detection struct {
	Language string   `yaml:"language"`
	Pattern  Patterns `yaml:"pattern"`
}

// Patterns accepts either a single YAML string or a sequence of strings.
type Patterns []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (p *Patterns) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var s string
		if err := node.Decode(&s); err != nil {
			return err
		}
		*p = Patterns{s}
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return err
		}
		*p = list
		return nil
	default:
		return fmt.Errorf("line %d: pattern must be a string or a list of strings", node.Line)
	}
}

// Expand turns a validated record into one rule per pattern.
func (r *Record) Expand(source string) []Rule {
	action := verdict.ParseAction(r.Response)
	out := make([]Rule, 0, len(r.Detection.Pattern))
	for _, pattern := range r.Detection.Pattern {
		out = append(out, Rule{
			ID:       r.UUID,
			Name:     r.Name,
			Details:  *r.Details,
			Language: r.Detection.Language,
			Body:     pattern,
			Action:   action,
			Source:   source,
		})
	}
	return out
}

// Validate checks that the record carries every mandatory field.
// It returns the dotted path of the first missing field in a ValidationError.
func (r *Record) Validate() error {
	switch {
	case r.UUID == "":
		return &ValidationError{Field: "uuid", Message: "is required"}
	case r.Name == "":
		return &ValidationError{RuleID: r.UUID, Field: "name", Message: "is required"}
	case r.Details == nil:
		return &ValidationError{RuleID: r.UUID, Field: "details", Message: "is required"}
	case r.Detection == nil:
		return &ValidationError{RuleID: r.UUID, Field: "detection", Message: "is required"}
	case r.Detection.Language == "":
		return &ValidationError{RuleID: r.UUID, Field: "detection.language", Message: "is required"}
	case len(r.Detection.Pattern) == 0:
		return &ValidationError{RuleID: r.UUID, Field: "detection.pattern", Message: "must contain at least one pattern"}
	}
	for i, p := range r.Detection.Pattern {
		if p == "" {
			return &ValidationError{
				RuleID:  r.UUID,
				Field:   fmt.Sprintf("detection.pattern[%d]", i),
				Message: "must not be empty",
			}
		}
	}
	return nil
}

package codeanalysis

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Language is the scan configuration of one supported language.
type Language struct {
	// Name is the language tag sent by callers (e.g. "python").
	Name string

	// Ruleset is the registry ruleset passed to the scanner (e.g. "p/python").
	Ruleset string

	// Extension is the file suffix the snippet is written with.
	Extension string

	// LocalRules is an optional directory of extra rules for this language.
	LocalRules string
}

// builtin maps language tags to their registry ruleset and extension.
// C++ and Hack reuse the C and PHP rulesets.
var builtin = map[string]Language{
	"c":          {Name: "c", Ruleset: "p/c", Extension: ".c"},
	"cpp":        {Name: "cpp", Ruleset: "p/c", Extension: ".c"},
	"csharp":     {Name: "csharp", Ruleset: "p/csharp", Extension: ".cs"},
	"hack":       {Name: "hack", Ruleset: "p/php", Extension: ".php"},
	"java":       {Name: "java", Ruleset: "p/java", Extension: ".java"},
	"javascript": {Name: "javascript", Ruleset: "p/javascript", Extension: ".js"},
	"kotlin":     {Name: "kotlin", Ruleset: "p/kotlin", Extension: ".kt"},
	"php":        {Name: "php", Ruleset: "p/php", Extension: ".php"},
	"python":     {Name: "python", Ruleset: "p/python", Extension: ".py"},
	"ruby":       {Name: "ruby", Ruleset: "p/ruby", Extension: ".rb"},
	"rust":       {Name: "rust", Ruleset: "p/rust", Extension: ".rs"},
	"swift":      {Name: "swift", Ruleset: "p/swift", Extension: ".swift"},
}

// Languages returns the supported language tags, sorted.
func Languages() []string {
	out := make([]string, 0, len(builtin))
	for name := range builtin {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// resolve returns the scan configuration for tag. LocalRules is set when
// rulesDir/<tag> exists.
func resolve(tag, rulesDir string) (Language, bool) {
	lang, ok := builtin[strings.ToLower(strings.TrimSpace(tag))]
	if !ok {
		return Language{}, false
	}
	if rulesDir != "" {
		dir := filepath.Join(rulesDir, lang.Name)
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			lang.LocalRules = dir
		}
	}
	return lang, true
}

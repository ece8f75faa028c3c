package rules

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// PatternValidator checks a single pattern. Stores that compile patterns
// (e.g. the regex detector) use it to reject records whose patterns do not compile.
type PatternValidator func(pattern string) error

// LoaderConfig contains configuration for the rule loader.
type LoaderConfig struct {
	// MaxFileSize is the maximum rule file size in bytes (default: 10MB)
	MaxFileSize int64

	// Extensions is the list of rule file extensions (default: [".yml", ".yaml"])
	Extensions []string

	// SkipHidden skips files and directories whose name starts with "." (default: true)
	SkipHidden bool

	// ValidatePattern is an optional per-pattern validation hook.
	ValidatePattern PatternValidator
}

// DefaultLoaderConfig returns the default loader configuration.
func DefaultLoaderConfig() *LoaderConfig {
	return &LoaderConfig{
		MaxFileSize: 10 * 1024 * 1024,
		Extensions:  []string{".yml", ".yaml"},
		SkipHidden:  true,
	}
}

// Report summarizes a load.
type Report struct {
	Dir     string
	Files   int
	Records int
	Rules   int
	Skipped int

	// Errors holds every non-fatal error (unreadable files, parse errors, invalid records).
	Errors ErrorList
}

// Loader discovers rule-source files under a directory and parses them into rules.
type Loader struct {
	config *LoaderConfig
	logger *slog.Logger
}

// NewLoader creates a loader. A nil config uses DefaultLoaderConfig.
func NewLoader(config *LoaderConfig, logger *slog.Logger) *Loader {
	if config == nil {
		config = DefaultLoaderConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{config: config, logger: logger.With("component", "rules.loader")}
}

// LoadDir loads every rule file under dir, recursively.
//
// Only a missing or unreadable dir is returned as an error. Per-file and
// per-record problems are logged, recorded in the report and skipped, so a
// single bad file never aborts the load. Files are visited in lexical order
// which keeps the resulting rule order stable across loads.
func (l *Loader) LoadDir(dir string) ([]Rule, *Report, error) {
	report := &Report{Dir: dir}

	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, report, &LoadError{FilePath: dir, Message: "directory not found", Cause: err}
		}
		return nil, report, &LoadError{FilePath: dir, Message: "failed to access directory", Cause: err}
	}
	if !info.IsDir() {
		return nil, report, &LoadError{FilePath: dir, Message: "not a directory"}
	}

	files, err := l.collectFiles(dir)
	if err != nil {
		return nil, report, &LoadError{FilePath: dir, Message: "failed to walk directory", Cause: err}
	}

	var out []Rule
	seen := make(map[string]string)
	for _, path := range files {
		report.Files++
		rules := l.loadFile(path, seen, report)
		out = append(out, rules...)
	}
	report.Rules = len(out)

	l.logger.Info("rules loaded",
		"dir", dir,
		"files", report.Files,
		"records", report.Records,
		"rules", report.Rules,
		"skipped", report.Skipped,
	)
	return out, report, nil
}

// collectFiles returns rule file paths under dir in lexical order.
func (l *Loader) collectFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if l.config.SkipHidden && strings.HasPrefix(d.Name(), ".") && path != dir {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if l.hasValidExtension(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

func (l *Loader) hasValidExtension(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, valid := range l.config.Extensions {
		if ext == strings.ToLower(valid) {
			return true
		}
	}
	return false
}

// loadFile parses one multi-document YAML file. Rules from documents that
// precede a syntax error are kept.
func (l *Loader) loadFile(path string, seen map[string]string, report *Report) []Rule {
	data, err := l.readFile(path)
	if err != nil {
		report.Errors.Add(err)
		l.logger.Warn("skipping rule file", "file", path, "error", err)
		return nil
	}

	var out []Rule
	dec := yaml.NewDecoder(bytes.NewReader(data))
	for doc := 1; ; doc++ {
		var node yaml.Node
		if err := dec.Decode(&node); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			perr := &ParseError{FilePath: path, Document: doc, Cause: err}
			report.Errors.Add(perr)
			l.logger.Warn("rule file parse failed", "file", path, "document", doc, "error", err)
			break
		}
		if isEmptyDocument(&node) {
			continue
		}

		report.Records++
		rec, err := l.decodeRecord(&node, path)
		if err == nil {
			if prev, dup := seen[rec.UUID]; dup {
				err = &ValidationError{
					FilePath: path,
					RuleID:   rec.UUID,
					Field:    "uuid",
					Message:  fmt.Sprintf("duplicate id, first defined in %q", prev),
				}
			}
		}
		if err != nil {
			report.Skipped++
			report.Errors.Add(err)
			l.logger.Warn("invalid rule skipped", "file", path, "document", doc, "error", err)
			continue
		}

		seen[rec.UUID] = path
		out = append(out, rec.Expand(path)...)
	}
	return out
}

func (l *Loader) decodeRecord(node *yaml.Node, path string) (*Record, error) {
	var rec Record
	if err := node.Decode(&rec); err != nil {
		return nil, &ValidationError{FilePath: path, Message: "malformed record", Cause: err}
	}
	if err := rec.Validate(); err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			verr.FilePath = path
		}
		return nil, err
	}
	if l.config.ValidatePattern != nil {
		for i, p := range rec.Detection.Pattern {
			if err := l.config.ValidatePattern(p); err != nil {
				return nil, &ValidationError{
					FilePath: path,
					RuleID:   rec.UUID,
					Field:    fmt.Sprintf("detection.pattern[%d]", i),
					Message:  "invalid pattern",
					Cause:    err,
				}
			}
		}
	}
	return &rec, nil
}

// readFile reads a rule file, enforcing the size limit. Content that is not
// valid UTF-8 is decoded as Latin-1 so legacy rule packs still load.
func (l *Loader) readFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &LoadError{FilePath: path, Message: "failed to access file", Cause: err}
	}
	if !info.Mode().IsRegular() {
		return nil, &LoadError{FilePath: path, Message: "not a regular file"}
	}
	if l.config.MaxFileSize > 0 && info.Size() > l.config.MaxFileSize {
		return nil, &LoadError{
			FilePath: path,
			Message:  fmt.Sprintf("file size %d bytes exceeds maximum %d bytes", info.Size(), l.config.MaxFileSize),
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{FilePath: path, Message: "failed to read file", Cause: err}
	}
	if !utf8.Valid(data) {
		data = latin1ToUTF8(data)
	}
	return data, nil
}

func latin1ToUTF8(data []byte) []byte {
	buf := make([]rune, len(data))
	for i, b := range data {
		buf[i] = rune(b)
	}
	return []byte(string(buf))
}

func isEmptyDocument(node *yaml.Node) bool {
	if node.Kind == 0 {
		return true
	}
	if node.Kind == yaml.DocumentNode && len(node.Content) == 0 {
		return true
	}
	if node.Kind == yaml.DocumentNode && len(node.Content) == 1 {
		c := node.Content[0]
		return c.Kind == yaml.ScalarNode && c.Tag == "!!null"
	}
	return false
}

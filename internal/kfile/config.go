// Package kfile loads project descriptors from Kfile.toml files.
//
// A Kfile has a single [project] table. Sub-tables keyed by an expression,
// such as [project."platform == 'windows'"], are merged into it when the
// expression is true, and strings may embed {{ expressions }}.
package kfile

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"slices"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/pelletier/go-toml/v2"
	"github.com/qobs-build/kfile/internal/project"
	"go.trai.ch/zerr"
)

// Filename is the name of the project file looked up in a project directory.
const Filename = "Kfile.toml"

const sectionProject = "project"

// projectSection defines the [project(.*)] tables
type projectSection struct {
	Name        string   `toml:"name"`
	Lib         bool     `toml:"lib"`
	Cmd         bool     `toml:"cmd"`
	DebugDir    string   `toml:"debug-dir"`
	Defines     []string `toml:"defines"`
	Excludes    []string `toml:"excludes"`
	Files       []string `toml:"files"`
	IncludeDirs []string `toml:"include-dirs"`
	Libs        []string `toml:"libs"`
}

// merge folds a matched conditional table into s: lists are appended,
// switches are OR-ed and non-empty scalars override.
func (s *projectSection) merge(o projectSection) {
	if o.Name != "" {
		s.Name = o.Name
	}
	if o.DebugDir != "" {
		s.DebugDir = o.DebugDir
	}
	s.Lib = s.Lib || o.Lib
	s.Cmd = s.Cmd || o.Cmd
	s.Defines = append(s.Defines, o.Defines...)
	s.Excludes = append(s.Excludes, o.Excludes...)
	s.Files = append(s.Files, o.Files...)
	s.IncludeDirs = append(s.IncludeDirs, o.IncludeDirs...)
	s.Libs = append(s.Libs, o.Libs...)
}

// apply replays the section onto a fresh descriptor in host-script order
func (s projectSection) apply() (*project.Project, error) {
	p, err := project.New(s.Name)
	if err != nil {
		return nil, zerr.Wrap(err, "[project] name")
	}

	if s.Lib {
		p.SetLibrary()
	}
	if s.Cmd {
		p.SetCommandLineMode()
	}
	if s.DebugDir != "" {
		p.SetDebugDir(s.DebugDir)
	}
	for _, d := range s.Defines {
		p.AddDefine(d)
	}
	for _, pat := range s.Excludes {
		p.AddExclude(pat)
	}
	for _, pat := range s.Files {
		p.AddFile(pat)
	}
	for _, dir := range s.IncludeDirs {
		p.AddIncludeDir(dir)
	}
	for _, lib := range s.Libs {
		p.AddLibrary(lib)
	}

	return p, nil
}

// decodeStrict re-encodes a raw TOML value and decodes it into dst, rejecting unknown keys
func decodeStrict(data any, dst any) error {
	b, err := toml.Marshal(data)
	if err != nil {
		return err
	}
	dec := toml.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var serr *toml.StrictMissingError
		if errors.As(err, &serr) {
			return zerr.New(serr.String())
		}
		return err
	}
	return nil
}

func compileCondition(expression string, env Env) bool {
	_, err := expr.Compile(expression, expr.Env(env))
	return err == nil
}

// unmarshalConditionalSection parses a table, evaluates its conditional
// sub-tables and merges the matching ones in lexicographic order of their expression
func unmarshalConditionalSection(table map[string]any, name string, env Env) (projectSection, error) {
	var sec projectSection

	baseFields := make(map[string]any)
	conditionalFields := make(map[string]map[string]any)

	for key, val := range table {
		if subMap, ok := val.(map[string]any); ok && compileCondition(key, env) {
			conditionalFields[key] = subMap
		} else {
			baseFields[key] = val
		}
	}

	if _, err := processExpressions(baseFields, env); err != nil {
		return sec, zerr.Wrap(err, fmt.Sprintf("error processing expressions in [%s]", name))
	}
	if err := decodeStrict(baseFields, &sec); err != nil {
		return sec, zerr.Wrap(err, fmt.Sprintf("failed to parse [%s] section", name))
	}

	expressions := make([]string, 0, len(conditionalFields))
	for expression := range conditionalFields {
		expressions = append(expressions, expression)
	}
	slices.Sort(expressions)

	for _, expression := range expressions {
		ref := fmt.Sprintf("[%s.%q]", name, expression)
		program, err := expr.Compile(expression, expr.Env(env))
		if err != nil {
			return sec, zerr.Wrap(err, "failed to compile expression for "+ref)
		}

		result, err := expr.Run(program, env)
		if err != nil {
			return sec, zerr.Wrap(err, "failed to run expression for "+ref)
		}

		matched, ok := result.(bool)
		if !ok {
			return sec, zerr.With(zerr.Wrap(ErrConditionNotBool, fmt.Sprintf("%s returned %T", ref, result)), "condition", expression)
		}
		if !matched {
			continue
		}

		// templates of a table only run once its condition holds
		fields := conditionalFields[expression]
		if _, err := processExpressions(fields, env); err != nil {
			return sec, zerr.Wrap(err, "error processing expressions in "+ref)
		}
		var condSection projectSection
		if err := decodeStrict(fields, &condSection); err != nil {
			return sec, zerr.Wrap(err, "failed to parse conditional section "+ref)
		}
		sec.merge(condSection)
	}

	return sec, nil
}

var exprRegex = regexp.MustCompile(`\{\{(.+?)\}\}`)

func runExpression(expression string, env Env) (any, error) {
	expression = strings.TrimSpace(expression)
	program, err := expr.Compile(expression, expr.Env(env))
	if err != nil {
		return nil, zerr.Wrap(err, fmt.Sprintf("failed to compile expression %q", expression))
	}

	result, err := expr.Run(program, env)
	if err != nil {
		return nil, zerr.Wrap(err, fmt.Sprintf("failed to run expression %q", expression))
	}
	return result, nil
}

// evaluateString finds and evaluates all {{...}} expressions in a string.
// A string that is exactly one expression yields the raw result, so
// `lib = "{{library}}"` decodes as a bool.
func evaluateString(s string, env Env) (any, error) {
	matches := exprRegex.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return s, nil
	}

	if len(matches) == 1 && matches[0][0] == 0 && matches[0][1] == len(s) {
		return runExpression(s[matches[0][2]:matches[0][3]], env)
	}

	var sb strings.Builder
	lastIndex := 0

	for _, m := range matches {
		sb.WriteString(s[lastIndex:m[0]])

		result, err := runExpression(s[m[2]:m[3]], env)
		if err != nil {
			return nil, err
		}

		fmt.Fprintf(&sb, "%v", result)
		lastIndex = m[1]
	}

	sb.WriteString(s[lastIndex:])

	return sb.String(), nil
}

// processExpressions recursively walks the parsed TOML data and evaluates expressions in strings
func processExpressions(data any, env Env) (any, error) {
	switch v := data.(type) {
	case map[string]any:
		for key, val := range v {
			processedVal, err := processExpressions(val, env)
			if err != nil {
				return nil, err
			}
			v[key] = processedVal
		}
		return v, nil
	case []any:
		for i, item := range v {
			processedItem, err := processExpressions(item, env)
			if err != nil {
				return nil, err
			}
			v[i] = processedItem
		}
		return v, nil
	case string:
		return evaluateString(v, env)
	default:
		return data, nil
	}
}

// Parse reads a Kfile and returns the populated, not yet frozen, project.
func Parse(rdr io.Reader, env Env) (*project.Project, error) {
	var rawConfig map[string]any
	if err := toml.NewDecoder(rdr).Decode(&rawConfig); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			return nil, zerr.New(derr.String())
		}
		return nil, err
	}

	for key := range rawConfig {
		if key != sectionProject {
			return nil, zerr.With(zerr.Wrap(ErrUnknownSection, "["+key+"]"), "section", key)
		}
	}

	data, ok := rawConfig[sectionProject]
	if !ok {
		return nil, ErrMissingProject
	}
	table, ok := data.(map[string]any)
	if !ok {
		return nil, zerr.New("invalid [" + sectionProject + "] section format: expected a table")
	}

	sec, err := unmarshalConditionalSection(table, sectionProject, env)
	if err != nil {
		return nil, err
	}

	return sec.apply()
}

// ParseFile parses the Kfile at path.
func ParseFile(path string, env Env) (*project.Project, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return Parse(bufio.NewReader(f), env)
}

// Package scenario defines suites, scenarios and steps and loads them from
// YAML files.
package scenario

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Suite is one YAML file of scenarios.
type Suite struct {
	// Name identifies the suite in reports.
	Name string `yaml:"suite"`

	// Group labels the suite's scenarios. When Serial is set the scenarios
	// form one serial group named Group (or Name when Group is empty).
	Group string `yaml:"group,omitempty"`

	// Serial runs the scenarios one after another, in declared order, on a
	// single worker.
	Serial bool `yaml:"serial,omitempty"`

	// BeforeEach runs ahead of every scenario's own setup.
	BeforeEach []Step `yaml:"beforeEach,omitempty"`

	// AfterEach runs after every scenario's own teardown, whatever the outcome.
	AfterEach []Step `yaml:"afterEach,omitempty"`

	Scenarios []Scenario `yaml:"scenarios"`

	// Path is the file the suite was loaded from.
	Path string `yaml:"-"`
}

// GroupName returns the label used for grouping in reports and scheduling.
func (s *Suite) GroupName() string {
	if s.Group != "" {
		return s.Group
	}
	return s.Name
}

// Scenario is an ordered list of steps run in a fresh browser session.
type Scenario struct {
	Name     string `yaml:"name"`
	Setup    []Step `yaml:"setup,omitempty"`
	Steps    []Step `yaml:"steps"`
	Teardown []Step `yaml:"teardown,omitempty"`
	// TimeoutMs overrides the per-wait-point timeout for this scenario.
	TimeoutMs int `yaml:"timeoutMs,omitempty"`
}

// Timeout returns the scenario's wait-point timeout, or fallback.
func (s *Scenario) Timeout(fallback time.Duration) time.Duration {
	if s.TimeoutMs > 0 {
		return time.Duration(s.TimeoutMs) * time.Millisecond
	}
	return fallback
}

// ValidationError collects every problem found in a suite.
type ValidationError struct {
	Path   string
	Errors []string
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "invalid suite %s:", e.Path)
	for _, msg := range e.Errors {
		b.WriteString("\n  - ")
		b.WriteString(msg)
	}
	return b.String()
}

// Parse decodes a suite strictly: unknown fields are rejected.
func Parse(data []byte, path string) (*Suite, error) {
	var suite Suite
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&suite); err != nil {
		return nil, fmt.Errorf("failed to parse suite %s: %w", path, err)
	}
	suite.Path = path

	if err := Validate(&suite); err != nil {
		return nil, err
	}
	return &suite, nil
}

// Load reads and parses one suite file.
func Load(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read suite file: %w", err)
	}
	return Parse(data, path)
}

// LoadAll loads every suite named by paths. Directories are searched
// recursively for *.yaml and *.yml files, in lexical order.
func LoadAll(paths []string) ([]*Suite, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read suite path: %w", err)
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		var found []string
		err = filepath.WalkDir(p, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			switch filepath.Ext(path) {
			case ".yaml", ".yml":
				found = append(found, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", p, err)
		}
		sort.Strings(found)
		files = append(files, found...)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no suite files found in %s", strings.Join(paths, ", "))
	}

	suites := make([]*Suite, 0, len(files))
	names := map[string]string{}
	for _, f := range files {
		s, err := Load(f)
		if err != nil {
			return nil, err
		}
		if prev, dup := names[s.Name]; dup {
			return nil, fmt.Errorf("suite name %q is used by both %s and %s", s.Name, prev, f)
		}
		names[s.Name] = f
		suites = append(suites, s)
	}
	return suites, nil
}

// Validate checks the suite for problems the decoder cannot see.
func Validate(s *Suite) error {
	var errs []string
	add := func(format string, args ...interface{}) {
		errs = append(errs, fmt.Sprintf(format, args...))
	}

	if strings.TrimSpace(s.Name) == "" {
		add("suite: name is required")
	}
	if len(s.Scenarios) == 0 {
		add("scenarios: list is required and must be non-empty")
	}

	seen := map[string]int{}
	for i, sc := range s.Scenarios {
		if strings.TrimSpace(sc.Name) == "" {
			add("scenarios[%d]: name is required", i)
		} else if j, dup := seen[sc.Name]; dup {
			add("scenarios[%d]: name %q duplicates scenarios[%d]", i, sc.Name, j)
		} else {
			seen[sc.Name] = i
		}
		if len(sc.Steps) == 0 {
			add("scenarios[%d]: steps list is required and must be non-empty", i)
		}
		if sc.TimeoutMs < 0 {
			add("scenarios[%d]: timeoutMs must be positive", i)
		}
		for j, st := range sc.Steps {
			if st.Kind == "" {
				add("scenarios[%d].steps[%d]: empty step", i, j)
			}
		}
	}

	if len(errs) > 0 {
		return &ValidationError{Path: s.Path, Errors: errs}
	}
	return nil
}

// Filter returns the scenarios whose name matches the glob pattern. An empty
// pattern keeps everything.
func (s *Suite) Filter(pattern string) ([]Scenario, error) {
	if pattern == "" {
		return s.Scenarios, nil
	}
	var out []Scenario
	for _, sc := range s.Scenarios {
		ok, err := filepath.Match(pattern, sc.Name)
		if err != nil {
			return nil, fmt.Errorf("invalid --grep pattern %q: %w", pattern, err)
		}
		if ok {
			out = append(out, sc)
		}
	}
	return out, nil
}

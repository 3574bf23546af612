package vm

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Functional test protocol markers emitted by the guest on its serial
// console.
const (
	funcTestsStart    = "FUNC_TESTS_START"
	funcTestsComplete = "FUNC_TESTS_COMPLETE"
	funcTestPrefix    = "FUNC_TEST:"
)

// TestStatus is a functional test outcome.
type TestStatus string

const (
	StatusPass TestStatus = "PASS"
	StatusFail TestStatus = "FAIL"
	StatusSkip TestStatus = "SKIP"
)

// TestResult is one guest-reported test.
type TestResult struct {
	Name   string
	Status TestStatus
	Reason string
}

// Report is the parsed functional test run.
type Report struct {
	Started   bool
	Completed bool
	Results   []TestResult
}

// Passed reports overall success: the run completed and nothing failed.
func (r *Report) Passed() bool {
	if !r.Started || !r.Completed {
		return false
	}
	for _, t := range r.Results {
		if t.Status == StatusFail {
			return false
		}
	}
	return true
}

// Counts returns pass/fail/skip totals.
func (r *Report) Counts() (passed, failed, skipped int) {
	for _, t := range r.Results {
		switch t.Status {
		case StatusPass:
			passed++
		case StatusFail:
			failed++
		case StatusSkip:
			skipped++
		}
	}
	return
}

// ParseFuncTests extracts the functional test protocol from serial console
// output. Lines are matched anywhere in the text: the guest interleaves
// them with ordinary logging. Malformed FUNC_TEST lines are ignored.
func ParseFuncTests(console string) *Report {
	report := &Report{}
	for _, line := range strings.Split(console, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.Contains(line, funcTestsStart):
			report.Started = true
		case strings.Contains(line, funcTestsComplete):
			report.Completed = true
		case strings.Contains(line, funcTestPrefix):
			if result, ok := parseTestLine(line); ok {
				report.Results = append(report.Results, result)
			}
		}
	}
	return report
}

// parseTestLine handles FUNC_TEST:<name>:PASS, FUNC_TEST:<name>:FAIL:<reason>
// and FUNC_TEST:<name>:SKIP.
func parseTestLine(line string) (TestResult, bool) {
	idx := strings.Index(line, funcTestPrefix)
	parts := strings.SplitN(line[idx+len(funcTestPrefix):], ":", 3)
	if len(parts) < 2 || parts[0] == "" {
		return TestResult{}, false
	}
	result := TestResult{Name: parts[0]}
	switch TestStatus(parts[1]) {
	case StatusPass, StatusSkip:
		result.Status = TestStatus(parts[1])
	case StatusFail:
		result.Status = StatusFail
		if len(parts) == 3 {
			result.Reason = parts[2]
		}
	default:
		return TestResult{}, false
	}
	return result, true
}

// Scenario declares what a functional test run must cover.
type Scenario struct {
	Name string `yaml:"name"`
	// TimeoutSeconds overrides the default watch timeout.
	TimeoutSeconds int `yaml:"timeout_seconds"`
	// Expect lists test names that must appear and not fail.
	Expect []string `yaml:"expect"`
}

// LoadScenario reads a YAML scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario: %w", err)
	}
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing scenario %s: %w", path, err)
	}
	return &s, nil
}

// Missing returns the expected test names the report never mentioned.
func (r *Report) Missing(expect []string) []string {
	seen := map[string]bool{}
	for _, t := range r.Results {
		seen[t.Name] = true
	}
	var missing []string
	for _, name := range expect {
		if !seen[name] {
			missing = append(missing, name)
		}
	}
	return missing
}

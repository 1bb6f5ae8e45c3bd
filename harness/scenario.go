package harness

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tesseradb/modkit/auth"
)

// Scenario is a scripted sequence of reducer calls, loaded from YAML.
// Scenarios drive a module through a flow and check which calls commit
// and which fail, without writing Go test code.
type Scenario struct {
	// Name identifies the scenario in output.
	Name string `yaml:"name"`

	// Description explains what the scenario exercises.
	Description string `yaml:"description,omitempty"`

	// Token is an optional JWT. When set, every call runs as the
	// identity the token carries instead of the harness default.
	Token string `yaml:"token,omitempty"`

	// Connect opens a client connection before the steps and closes
	// it after, firing the connect/disconnect lifecycle reducers.
	Connect bool `yaml:"connect,omitempty"`

	// Steps are executed in order. A step that fails does not stop
	// the run; each call is its own transaction.
	Steps []ScenarioStep `yaml:"steps"`
}

// ScenarioStep is one reducer invocation.
type ScenarioStep struct {
	Reducer string `yaml:"reducer"`

	// Args are positional reducer arguments. YAML scalars are
	// converted to the reducer's parameter types.
	Args []any `yaml:"args,omitempty"`

	// ExpectError, when set, inverts the check: the call must fail
	// and the error text must contain this substring.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// StepResult reports how one step went.
type StepResult struct {
	Step    int    `json:"step"`
	Reducer string `json:"reducer"`
	OK      bool   `json:"ok"`
	Detail  string `json:"detail,omitempty"`
}

// LoadScenario reads and parses a scenario file. Unknown YAML fields
// are rejected so typos surface as load errors.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var sc Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&sc); err != nil {
		return nil, fmt.Errorf("parsing scenario: %w", err)
	}
	if err := validateScenario(&sc); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &sc, nil
}

func validateScenario(sc *Scenario) error {
	if sc.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(sc.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	for i, st := range sc.Steps {
		if st.Reducer == "" {
			return fmt.Errorf("steps[%d]: reducer is required", i)
		}
	}
	return nil
}

// RunScenario executes the scenario against the host. It returns one
// result per step; a step whose outcome does not match its expectation
// has OK false. The returned error covers setup failures only, never
// step outcomes.
func (h *Host) RunScenario(sc *Scenario) ([]StepResult, error) {
	if err := h.Init(); err != nil {
		return nil, fmt.Errorf("running init: %w", err)
	}

	var conn auth.ConnectionID
	if sc.Connect {
		var err error
		if sc.Token != "" {
			conn, err = h.ConnectAs(sc.Token)
		} else {
			conn, err = h.Connect()
		}
		if err != nil {
			return nil, fmt.Errorf("opening connection: %w", err)
		}
		defer h.Disconnect(conn)
	}

	results := make([]StepResult, 0, len(sc.Steps))
	for i, st := range sc.Steps {
		var err error
		switch {
		case sc.Connect:
			err = h.CallOn(conn, st.Reducer, st.Args...)
		case sc.Token != "":
			err = h.CallAs(sc.Token, st.Reducer, st.Args...)
		default:
			err = h.Call(st.Reducer, st.Args...)
		}
		results = append(results, judgeStep(i, st, err))
	}
	return results, nil
}

func judgeStep(i int, st ScenarioStep, err error) StepResult {
	res := StepResult{Step: i, Reducer: st.Reducer}
	switch {
	case st.ExpectError == "" && err == nil:
		res.OK = true
	case st.ExpectError == "":
		res.Detail = err.Error()
	case err == nil:
		res.Detail = fmt.Sprintf("expected error containing %q, call committed", st.ExpectError)
	case strings.Contains(err.Error(), st.ExpectError):
		res.OK = true
		res.Detail = fmt.Sprintf("failed as expected: %s", err)
	default:
		res.Detail = fmt.Sprintf("expected error containing %q, got: %s", st.ExpectError, err)
	}
	return res
}

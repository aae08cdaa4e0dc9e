// Package tool defines the closed set of agent tools, their results and the
// dashboard widget payload produced by the dashboard tool.
package tool

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Kind enumerates the tools the agent can call.
type Kind int

const (
	KindUnknown Kind = iota
	KindKPISummary
	KindPaybackProjection
	KindOccupancySummary
	KindUpdateDashboard
)

// Tool names as exposed to the model.
const (
	NameKPISummary        = "get_kpi_summary"
	NamePaybackProjection = "get_payback_projection"
	NameOccupancySummary  = "get_occupancy_summary"
	NameUpdateDashboard   = "update_dashboard_view"
)

var kindNames = map[Kind]string{
	KindKPISummary:        NameKPISummary,
	KindPaybackProjection: NamePaybackProjection,
	KindOccupancySummary:  NameOccupancySummary,
	KindUpdateDashboard:   NameUpdateDashboard,
}

// Kinds returns every known (non-unknown) kind in declaration order.
func Kinds() []Kind {
	return []Kind{KindKPISummary, KindPaybackProjection, KindOccupancySummary, KindUpdateDashboard}
}

// ParseKind maps a model-supplied tool name to its Kind.
func ParseKind(name string) Kind {
	for k, n := range kindNames {
		if n == name {
			return k
		}
	}
	return KindUnknown
}

// String returns the tool name, or "unknown".
func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return "unknown"
}

// BusinessScoped reports whether the tool reads data for a single business.
func (k Kind) BusinessScoped() bool {
	switch k {
	case KindKPISummary, KindPaybackProjection, KindOccupancySummary:
		return true
	}
	return false
}

// Result is the outcome of one tool invocation.
type Result struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// OK builds a successful Result.
func OK(data any) Result { return Result{Success: true, Data: data} }

// Fail builds a failed Result.
func Fail(format string, args ...any) Result {
	return Result{Success: false, Error: fmt.Sprintf(format, args...)}
}

// UnknownTool is the failure returned for names outside the registry.
func UnknownTool(name string) Result { return Fail("Unknown tool: %s", name) }

// Content serializes the result as the content of a tool message:
// the data on success, {"error": "..."} on failure.
func (r Result) Content() string {
	var v any = map[string]string{"error": r.Error}
	if r.Success {
		v = r.Data
	}
	b, err := json.Marshal(v)
	if err != nil {
		b, _ = json.Marshal(map[string]string{"error": "unserializable tool result: " + err.Error()})
	}
	return string(b)
}

// ArgParsePolicy decides what happens when a tool call's arguments are not valid JSON.
type ArgParsePolicy string

const (
	// UseEmptyArgs substitutes an empty argument set and runs the tool anyway.
	UseEmptyArgs ArgParsePolicy = "use_empty_args"
	// FailOnMalformedArgs returns a failed Result without running the tool.
	FailOnMalformedArgs ArgParsePolicy = "fail"
)

// ParseArgParsePolicy parses a config value, defaulting to UseEmptyArgs.
func ParseArgParsePolicy(s string) (ArgParsePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(UseEmptyArgs):
		return UseEmptyArgs, nil
	case string(FailOnMalformedArgs):
		return FailOnMalformedArgs, nil
	}
	return "", fmt.Errorf("unknown arg parse policy %q", s)
}

// Args is a decoded tool argument object.
type Args map[string]any

// ParseArgs decodes raw into Args. Empty input yields empty Args and no error.
func ParseArgs(raw string) (Args, error) {
	args := Args{}
	if strings.TrimSpace(raw) == "" {
		return args, nil
	}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return Args{}, fmt.Errorf("parse tool arguments: %w", err)
	}
	if args == nil {
		args = Args{}
	}
	return args, nil
}

// String returns the string value for key, or "" when absent or not a string.
func (a Args) String(key string) string {
	s, _ := a[key].(string)
	return s
}

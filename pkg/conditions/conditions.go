// Package conditions evaluates condition nodes against a run context.
//
// Supported condition types: comparison (dotted-path field against a literal),
// time-window (wall-clock band plus optional day-of-week set), switch (ordered
// value cases selecting a target node) and expression (expr-lang). A missing
// comparison field evaluates to false for every operator except exists and
// not-exists; it is never an error.
package conditions

import (
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/flowgrid/flowgrid/pkg/models"
)

// Result is the outcome of evaluating a condition node. For if-style
// conditions only Matched is meaningful; for switch-style conditions Branch
// names the single downstream node to follow.
type Result struct {
	Matched bool
	Branch  string
}

// Evaluator evaluates condition nodes. It is stateless apart from the
// compiled-expression cache and safe for concurrent use.
type Evaluator struct {
	exprs *exprCache
	now   func() time.Time
}

// NewEvaluator creates an Evaluator using wall-clock time.
func NewEvaluator() *Evaluator {
	return &Evaluator{
		exprs: newExprCache(),
		now:   time.Now,
	}
}

// NewEvaluatorAt creates an Evaluator with an injected clock, for tests of
// time-window conditions.
func NewEvaluatorAt(now func() time.Time) *Evaluator {
	return &Evaluator{
		exprs: newExprCache(),
		now:   now,
	}
}

// Evaluate dispatches on the node's condition_type config key. The default
// type is comparison.
func (e *Evaluator) Evaluate(node *models.WorkflowNode, runCtx *models.RunContext) (Result, error) {
	conditionType := node.ConfigString("condition_type", "comparison")

	switch conditionType {
	case "comparison":
		return e.evaluateComparison(node, runCtx)
	case "time_window":
		return e.evaluateTimeWindow(node)
	case "switch":
		return e.evaluateSwitch(node, runCtx)
	case "expression":
		return e.evaluateExpression(node, runCtx)
	default:
		return Result{}, fmt.Errorf("unknown condition type %q on node %s", conditionType, node.ID)
	}
}

func (e *Evaluator) evaluateComparison(node *models.WorkflowNode, runCtx *models.RunContext) (Result, error) {
	field := node.ConfigString("field", "")
	operator := node.ConfigString("operator", "equals")
	operand := node.Config["value"]

	value, present := runCtx.Lookup(field)

	switch operator {
	case "exists":
		return Result{Matched: present}, nil
	case "not_exists":
		return Result{Matched: !present}, nil
	}

	// A missing field matches nothing else, regardless of operator.
	if !present {
		return Result{Matched: false}, nil
	}

	matched, err := compare(operator, value, operand)
	if err != nil {
		return Result{}, fmt.Errorf("condition node %s: %w", node.ID, err)
	}

	return Result{Matched: matched}, nil
}

func compare(operator string, value, operand any) (bool, error) {
	switch operator {
	case "equals":
		return looseEqual(value, operand), nil
	case "not_equals":
		return !looseEqual(value, operand), nil
	case "greater_than", "greater_or_equal", "less_than", "less_or_equal":
		left, leftOK := toFloat(value)
		right, rightOK := toFloat(operand)

		if !leftOK || !rightOK {
			return false, nil
		}

		switch operator {
		case "greater_than":
			return left > right, nil
		case "greater_or_equal":
			return left >= right, nil
		case "less_than":
			return left < right, nil
		default:
			return left <= right, nil
		}
	case "contains":
		return strings.Contains(toString(value), toString(operand)), nil
	case "matches":
		re, err := regexp.Compile(toString(operand))
		if err != nil {
			return false, fmt.Errorf("invalid pattern %q: %w", toString(operand), err)
		}

		return re.MatchString(toString(value)), nil
	case "in", "not_in":
		member := isMember(value, operand)
		if operator == "not_in" {
			return !member, nil
		}

		return member, nil
	default:
		return false, fmt.Errorf("unknown comparison operator %q", operator)
	}
}

func (e *Evaluator) evaluateTimeWindow(node *models.WorkflowNode) (Result, error) {
	start := node.ConfigString("start", "")
	end := node.ConfigString("end", "")

	startMinute, err := parseClock(start)
	if err != nil {
		return Result{}, fmt.Errorf("condition node %s: invalid start %q: %w", node.ID, start, err)
	}

	endMinute, err := parseClock(end)
	if err != nil {
		return Result{}, fmt.Errorf("condition node %s: invalid end %q: %w", node.ID, end, err)
	}

	now := e.now()

	if days, ok := node.Config["days"].([]any); ok && len(days) > 0 {
		if !dayMatches(now.Weekday(), days) {
			return Result{Matched: false}, nil
		}
	}

	minute := now.Hour()*60 + now.Minute()

	// [start,end) band; a band crossing midnight wraps.
	var inside bool
	if startMinute <= endMinute {
		inside = minute >= startMinute && minute < endMinute
	} else {
		inside = minute >= startMinute || minute < endMinute
	}

	return Result{Matched: inside}, nil
}

func (e *Evaluator) evaluateSwitch(node *models.WorkflowNode, runCtx *models.RunContext) (Result, error) {
	field := node.ConfigString("field", "")
	value, _ := runCtx.Lookup(field)

	cases, _ := node.Config["cases"].([]any)
	for _, raw := range cases {
		entry, ok := raw.(map[string]any)
		if !ok {
			continue
		}

		target, _ := entry["target"].(string)
		if target == "" {
			continue
		}

		if looseEqual(value, entry["value"]) {
			return Result{Matched: true, Branch: target}, nil
		}
	}

	if fallback := node.ConfigString("default", ""); fallback != "" {
		return Result{Matched: true, Branch: fallback}, nil
	}

	return Result{Matched: false}, nil
}

// parseClock parses "HH:MM" into minutes since midnight.
func parseClock(value string) (int, error) {
	parts := strings.SplitN(value, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("expected HH:MM")
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("hour out of range")
	}

	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("minute out of range")
	}

	return hour*60 + minute, nil
}

func dayMatches(day time.Weekday, days []any) bool {
	name := strings.ToLower(day.String())
	short := name[:3]

	for _, raw := range days {
		switch v := raw.(type) {
		case string:
			lowered := strings.ToLower(v)
			if lowered == name || lowered == short {
				return true
			}
		case float64:
			if int(v) == int(day) {
				return true
			}
		case int:
			if v == int(day) {
				return true
			}
		}
	}

	return false
}

// looseEqual compares values after numeric normalization, so 85 (int) equals
// 85.0 (float64 from JSON decoding).
func looseEqual(a, b any) bool {
	if af, ok := toFloat(a); ok {
		if bf, ok := toFloat(b); ok {
			return af == bf
		}
	}

	if reflect.DeepEqual(a, b) {
		return true
	}

	aStr, aIsStr := a.(string)
	bStr, bIsStr := b.(string)

	return aIsStr && bIsStr && aStr == bStr
}

func isMember(value, set any) bool {
	items, ok := set.([]any)
	if !ok {
		return false
	}

	for _, item := range items {
		if looseEqual(value, item) {
			return true
		}
	}

	return false
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	case string:
		f, err := strconv.ParseFloat(v, 64)

		return f, err == nil
	default:
		return 0, false
	}
}

func toString(value any) string {
	if s, ok := value.(string); ok {
		return s
	}

	return fmt.Sprintf("%v", value)
}

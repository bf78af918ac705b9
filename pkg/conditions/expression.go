package conditions

import (
	"fmt"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/flowgrid/flowgrid/pkg/models"
)

// exprCache caches compiled expr programs keyed by source text. Compiled
// programs are reusable across goroutines.
type exprCache struct {
	mu       sync.RWMutex
	programs map[string]*vm.Program
}

func newExprCache() *exprCache {
	return &exprCache{programs: make(map[string]*vm.Program)}
}

func (c *exprCache) getOrCompile(source string) (*vm.Program, error) {
	c.mu.RLock()
	program, ok := c.programs[source]
	c.mu.RUnlock()

	if ok {
		return program, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if program, ok := c.programs[source]; ok {
		return program, nil
	}

	program, err := expr.Compile(source, expr.AllowUndefinedVariables())
	if err != nil {
		return nil, fmt.Errorf("compile expression %q: %w", source, err)
	}

	c.programs[source] = program

	return program, nil
}

// evaluateExpression runs an expr-lang expression with the run context values
// as the environment. Any non-false, non-nil result counts as a match.
func (e *Evaluator) evaluateExpression(node *models.WorkflowNode, runCtx *models.RunContext) (Result, error) {
	source := node.ConfigString("expression", "")
	if source == "" {
		return Result{}, fmt.Errorf("condition node %s: empty expression", node.ID)
	}

	program, err := e.exprs.getOrCompile(source)
	if err != nil {
		return Result{}, fmt.Errorf("condition node %s: %w", node.ID, err)
	}

	env := runCtx.Values
	if env == nil {
		env = map[string]any{}
	}

	out, err := vm.Run(program, env)
	if err != nil {
		return Result{}, fmt.Errorf("condition node %s: evaluate %q: %w", node.ID, source, err)
	}

	switch v := out.(type) {
	case bool:
		return Result{Matched: v}, nil
	case nil:
		return Result{Matched: false}, nil
	default:
		return Result{Matched: true}, nil
	}
}

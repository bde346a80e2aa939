package expression

import (
	"context"
	"fmt"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/kalite/kalite/pkg/regex"
)

type CompiledExpression struct {
	Program *vm.Program
	Text    string
}

// File is the environment ignore expressions are evaluated against.
type File struct {
	Name         string
	Ext          string
	Dir          string
	Kind         string
	Size         int64
	ModifiedTime time.Time
}

type evalContext struct {
	File

	ctx context.Context
}

// AgeHours is the time since the file was last modified.
func (e *evalContext) AgeHours() float64 {
	return time.Since(e.ModifiedTime).Hours()
}

func (e *evalContext) RegexMatch(pattern string) bool {
	p, err := regex.Compile(pattern)
	if err != nil {
		return false
	}

	match, err := regex.Check(e.Name, p)
	if err != nil {
		return false
	}
	return match
}

func Compile(expressions []string) ([]CompiledExpression, error) {
	compiled := make([]CompiledExpression, 0, len(expressions))

	for _, text := range expressions {
		program, err := expr.Compile(text, expr.Env(&evalContext{}), expr.AsBool())
		if err != nil {
			return nil, fmt.Errorf("compile expression %q: %w", text, err)
		}

		compiled = append(compiled, CompiledExpression{
			Program: program,
			Text:    text,
		})
	}

	return compiled, nil
}

// CheckFileSingleMatchWithReason reports the text of the first expression that matched.
func CheckFileSingleMatchWithReason(ctx context.Context, f File, expressions []CompiledExpression) (bool, string, error) {
	env := &evalContext{File: f, ctx: ctx}

	for _, expression := range expressions {
		result, err := expr.Run(expression.Program, env)
		if err != nil {
			return false, "", fmt.Errorf("check expression: %w", err)
		}

		expResult, ok := result.(bool)
		if !ok {
			return false, "", fmt.Errorf("type assert expression result: %T", result)
		}

		if expResult {
			return true, expression.Text, nil
		}
	}

	return false, "", nil
}

package toolkit

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// calculatorArgs is the argument shape for the bundled custom_calculator
// tool, used to derive its JSON Schema via GenerateSchema.
type calculatorArgs struct {
	Expr string `json:"expr" jsonschema:"required,description=A simple arithmetic expression such as '2+2'"`
}

// NewCalculatorDescriptor builds the descriptor+impl pair for the demo
// calculator tool exercised by the end-to-end "cold agent" scenario.
// It supports only single binary operations (+, -, *, /) over integers or
// floats, which is sufficient for the documented scenarios and tests.
func NewCalculatorDescriptor() (*Descriptor, Callable) {
	schema, err := GenerateSchema[calculatorArgs]()
	if err != nil {
		schema = nil
	}
	descriptor := &Descriptor{
		Name:        "custom_calculator",
		Description: "Evaluates a simple arithmetic expression like '2+2'.",
		Category:    "math",
		Version:     "1.0.0",
		Author:      "builtin",
		Schema:      schema,
	}
	return descriptor, CallableFunc(func(_ context.Context, args map[string]any) (any, error) {
		expr, _ := args["expr"].(string)
		result, err := evalSimpleExpr(expr)
		if err != nil {
			return nil, err
		}
		return map[string]any{"expr": expr, "result": result}, nil
	})
}

func evalSimpleExpr(expr string) (string, error) {
	expr = strings.TrimSpace(expr)
	for _, op := range []byte{'+', '-', '*', '/'} {
		idx := strings.IndexByte(expr, op)
		if idx <= 0 {
			continue
		}
		left, err := strconv.ParseFloat(strings.TrimSpace(expr[:idx]), 64)
		if err != nil {
			continue
		}
		right, err := strconv.ParseFloat(strings.TrimSpace(expr[idx+1:]), 64)
		if err != nil {
			continue
		}
		var result float64
		switch op {
		case '+':
			result = left + right
		case '-':
			result = left - right
		case '*':
			result = left * right
		case '/':
			if right == 0 {
				return "", fmt.Errorf("toolkit: division by zero in expression %q", expr)
			}
			result = left / right
		}
		return formatNumber(result), nil
	}
	return "", fmt.Errorf("toolkit: could not parse expression %q", expr)
}

func formatNumber(f float64) string {
	if f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// textAnalyzerArgs is the argument shape for the bundled text_analyzer tool.
type textAnalyzerArgs struct {
	Text string `json:"text" jsonschema:"required,description=Text to analyze"`
}

// NewTextAnalyzerDescriptor builds the descriptor+impl pair for the demo
// text analyzer tool exercised by the dynamic-tool-attach scenario.
func NewTextAnalyzerDescriptor() (*Descriptor, Callable) {
	schema, err := GenerateSchema[textAnalyzerArgs]()
	if err != nil {
		schema = nil
	}
	descriptor := &Descriptor{
		Name:        "text_analyzer",
		Description: "Reports word and character counts for the given text.",
		Category:    "text",
		Version:     "1.0.0",
		Author:      "builtin",
		Schema:      schema,
	}
	return descriptor, CallableFunc(func(_ context.Context, args map[string]any) (any, error) {
		text, _ := args["text"].(string)
		words := len(strings.Fields(text))
		return map[string]any{
			"characters": len(text),
			"words":      words,
		}, nil
	})
}

// RegisterBuiltins registers the bundled demo tools into r. Intended for use
// by cmd/orcctl and tests that want a non-empty registry without wiring a
// real tool implementation.
func RegisterBuiltins(r *Registry) error {
	calcDesc, calcImpl := NewCalculatorDescriptor()
	if err := r.Register(calcDesc, calcImpl); err != nil {
		return err
	}
	analyzerDesc, analyzerImpl := NewTextAnalyzerDescriptor()
	return r.Register(analyzerDesc, analyzerImpl)
}

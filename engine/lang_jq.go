package engine

import (
	"context"
	stderrors "errors"
	"fmt"
	"math"
	"math/big"
	"time"

	"github.com/itchyny/gojq"
)

// LanguageJQ is the id of the jq language.
const LanguageJQ = "jq"

func init() {
	register(Language{ID: LanguageJQ, Name: "jq", Version: "1.7"}, func(c *Context) (evaluator, error) {
		return &jqEvaluator{}, nil
	})
}

// jqEvaluator runs jq programs with gojq. The input of a program is the
// plain form of the jq bindings; call(name; args...) invokes an executable
// binding.
type jqEvaluator struct{}

const jqMaxCallArity = 9

func (e *jqEvaluator) eval(ctx context.Context, c *Context, src Source) (any, error) {
	query, err := gojq.Parse(src.Code)
	if err != nil {
		return nil, jqException(err, src, true)
	}

	code, err := gojq.Compile(query,
		gojq.WithFunction("call", 1, jqMaxCallArity, func(_ any, args []any) any {
			return e.call(ctx, c, args)
		}),
	)
	if err != nil {
		return nil, jqException(err, src, false)
	}

	if raw, ok := c.Option(OptionJQTimeout); ok {
		d, _ := time.ParseDuration(raw)
		if d > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, d)
			defer cancel()
		}
	}

	var input any = map[string]any{}
	if obj := c.languageBindings(LanguageJQ); obj != nil {
		input = toJQ(obj)
	}

	var results []any
	iter := code.RunWithContext(ctx, input)
	for {
		if err := Poll(ctx); err != nil {
			return nil, err
		}
		v, ok := iter.Next()
		if !ok {
			break
		}
		if err, isErr := v.(error); isErr {
			return nil, jqRuntimeError(err, src)
		}
		n, err := fromJQ(v)
		if err != nil {
			return nil, err
		}
		results = append(results, n)
	}

	switch len(results) {
	case 0:
		return nil, nil
	case 1:
		return results[0], nil
	default:
		return NewArray(results...), nil
	}
}

func (e *jqEvaluator) call(ctx context.Context, c *Context, args []any) any {
	name, ok := args[0].(string)
	if !ok {
		return fmt.Errorf("call: function name must be a string, got %T", args[0])
	}
	target, ok := c.lookupBinding(LanguageJQ, name)
	if !ok {
		return fmt.Errorf("call: %q is not bound", name)
	}
	fn, ok := target.(Executable)
	if !ok {
		return fmt.Errorf("call: %q is not executable", name)
	}

	callArgs := make([]*Value, 0, len(args)-1)
	for _, a := range args[1:] {
		n, err := fromJQ(a)
		if err != nil {
			return err
		}
		callArgs = append(callArgs, &Value{ctx: c, v: n})
	}

	res, err := (&Value{ctx: c, v: fn}).Execute(ctx, callArgs...)
	if err != nil {
		return err
	}
	return toJQ(res.v)
}

func (e *jqEvaluator) close() error { return nil }

func jqException(err error, src Source, syntax bool) *Exception {
	var perr *gojq.ParseError
	return &Exception{
		Message:     err.Error(),
		SyntaxError: syntax || stderrors.As(err, &perr),
		Frames:      []StackFrame{{Language: LanguageJQ, Name: "<program>", Source: src.Name}},
		Cause:       err,
	}
}

func jqRuntimeError(err error, src Source) error {
	var ex *Exception
	if stderrors.As(err, &ex) {
		return err
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return err
	}
	out := &Exception{
		Message: err.Error(),
		Frames:  []StackFrame{{Language: LanguageJQ, Name: "<program>", Source: src.Name}},
		Cause:   err,
	}
	var verr gojq.ValueError
	if stderrors.As(err, &verr) {
		if n, nerr := fromJQ(verr.Value()); nerr == nil && n != nil {
			out.Guest = &Value{v: n}
		}
	}
	return out
}

// toJQ converts an engine value into the data model gojq operates on.
// Executables have no jq representation and become null.
func toJQ(x any) any {
	switch t := x.(type) {
	case int64:
		if t >= math.MinInt && t <= math.MaxInt {
			return int(t)
		}
		return new(big.Int).SetInt64(t)
	case *Array:
		items := t.Items()
		out := make([]any, len(items))
		for i, item := range items {
			out[i] = toJQ(item)
		}
		return out
	case *Object:
		out := make(map[string]any, t.Len())
		for _, k := range t.Keys() {
			m, _ := t.Get(k)
			out[k] = toJQ(m)
		}
		return out
	case Executable:
		return nil
	default:
		return t
	}
}

func fromJQ(x any) (any, error) {
	switch t := x.(type) {
	case float64:
		if t == math.Trunc(t) && math.Abs(t) < 1<<53 && !(t == 0 && math.Signbit(t)) {
			return int64(t), nil
		}
		return t, nil
	default:
		return normalize(t)
	}
}

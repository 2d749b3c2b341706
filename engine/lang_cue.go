package engine

import (
	"context"
	"strconv"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/parser"
)

// LanguageCUE is the id of the CUE language.
const LanguageCUE = "cue"

func init() {
	register(Language{ID: LanguageCUE, Name: "CUE", Version: "v0.15"}, func(c *Context) (evaluator, error) {
		return &cueEvaluator{cctx: cuecontext.New()}, nil
	})
}

// cueEvaluator parses, unifies and exports CUE documents. Members of the
// cue bindings are unified into the document as top-level fields.
type cueEvaluator struct {
	cctx *cue.Context
}

func (e *cueEvaluator) eval(ctx context.Context, c *Context, src Source) (any, error) {
	f, err := parser.ParseFile(src.Name, src.Code)
	if err != nil {
		return nil, cueException(err, src, true)
	}
	if err := Poll(ctx); err != nil {
		return nil, err
	}

	v := e.cctx.BuildFile(f)
	if obj := c.languageBindings(LanguageCUE); obj != nil {
		for _, k := range obj.Keys() {
			m, _ := obj.Get(k)
			if _, ok := m.(Executable); ok {
				continue
			}
			v = v.FillPath(cue.MakePath(cue.Str(k)), plain(m))
		}
	}
	if err := v.Err(); err != nil {
		return nil, cueException(err, src, false)
	}

	concrete := true
	if raw, ok := c.Option(OptionCUEConcrete); ok {
		concrete, _ = strconv.ParseBool(raw)
	}
	if err := v.Validate(cue.Concrete(concrete)); err != nil {
		return nil, cueException(err, src, false)
	}
	if err := Poll(ctx); err != nil {
		return nil, err
	}

	var out any
	if err := v.Decode(&out); err != nil {
		return nil, cueException(err, src, false)
	}
	return out, nil
}

func cueException(err error, src Source, syntax bool) *Exception {
	frames := []StackFrame{{Language: LanguageCUE, Name: "<document>", Source: src.Name}}
	for _, e := range cueerrors.Errors(err) {
		pos := e.Position()
		if !pos.IsValid() {
			continue
		}
		frames = append([]StackFrame{{
			Language: LanguageCUE,
			Name:     "<value>",
			Source:   pos.Filename(),
			Line:     pos.Line(),
		}}, frames...)
		break
	}
	return &Exception{
		Message:     cueerrors.Details(err, nil),
		SyntaxError: syntax,
		Frames:      frames,
		Cause:       err,
	}
}

func (e *cueEvaluator) close() error { return nil }

// Package engine provides the managed execution engine driven through the
// native boundary.
//
// # Architecture
//
//	Engine         - Hosts installed languages and tracks its contexts
//	Context        - Isolated execution environment with bindings
//	Value          - Guest value owned by a context
//	Exception      - Guest or host failure raised during execution
//
// Four languages are installed:
//
//	jq    - gojq programs; call(name; args...) invokes executable bindings
//	wasm  - WebAssembly modules on wazero; evaluation yields the exports
//	sql   - SQLite statements on a per-context database
//	cue   - CUE documents unified with the cue bindings and exported
//
// # Values
//
// Values are normalized to nil, bool, int64, float64, string, *Array,
// *Object or an Executable. Accessors report shape mismatches with the
// narrow error kinds of the errors package (errors.KindArrayExpected and
// friends) so the boundary can surface them as dedicated statuses.
//
// # Safepoints
//
// Guest code polls Poll(ctx) between steps. The boundary installs a
// Safepoint through WithSafepoint to run recurring callbacks on the
// evaluating thread; an error from the safepoint aborts the evaluation.
//
// # Usage
//
//	ctx, err := engine.NewContext()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer ctx.Close(true)
//
//	v, err := ctx.Eval(context.Background(), engine.Source{
//	    Language: "jq",
//	    Code:     "[1, 2, 3] | map(. * 2)",
//	})
package engine

package nativeapi

import (
	"github.com/wippyai/polyglot-native/engine"
	"github.com/wippyai/polyglot-native/handle"
)

// CreateContextBuilder starts a context builder restricted to the
// permitted languages.
func CreateContextBuilder(t *Thread, permitted []string, result *handle.Handle) Status {
	return t.call("create_context_builder", func() error {
		if err := out(result, "result"); err != nil {
			return err
		}
		return t.store(engine.NewContextBuilder(permitted...), result)
	})
}

// ContextBuilderEngine makes contexts of the builder share eng.
func ContextBuilderEngine(t *Thread, builder, eng handle.Handle) Status {
	return t.call("context_builder_engine", func() error {
		b, err := fetch[*engine.ContextBuilder](t, builder, "context_builder")
		if err != nil {
			return err
		}
		e, err := fetch[*engine.Engine](t, eng, "engine")
		if err != nil {
			return err
		}
		b.Engine(e)
		return nil
	})
}

// ContextBuilderOption sets a context option.
func ContextBuilderOption(t *Thread, builder handle.Handle, key, value string) Status {
	return t.call("context_builder_option", func() error {
		b, err := fetch[*engine.ContextBuilder](t, builder, "context_builder")
		if err != nil {
			return err
		}
		b.Option(key, value)
		return nil
	})
}

func builderFlag(t *Thread, op string, builder handle.Handle, set func(*engine.ContextBuilder)) Status {
	return t.call(op, func() error {
		b, err := fetch[*engine.ContextBuilder](t, builder, "context_builder")
		if err != nil {
			return err
		}
		set(b)
		return nil
	})
}

func ContextBuilderAllowAllAccess(t *Thread, builder handle.Handle, allow bool) Status {
	return builderFlag(t, "context_builder_allow_all_access", builder, func(b *engine.ContextBuilder) { b.AllowAllAccess(allow) })
}

func ContextBuilderAllowIO(t *Thread, builder handle.Handle, allow bool) Status {
	return builderFlag(t, "context_builder_allow_io", builder, func(b *engine.ContextBuilder) { b.AllowIO(allow) })
}

func ContextBuilderAllowNativeAccess(t *Thread, builder handle.Handle, allow bool) Status {
	return builderFlag(t, "context_builder_allow_native_access", builder, func(b *engine.ContextBuilder) { b.AllowNativeAccess(allow) })
}

func ContextBuilderAllowPolyglotAccess(t *Thread, builder handle.Handle, allow bool) Status {
	return builderFlag(t, "context_builder_allow_polyglot_access", builder, func(b *engine.ContextBuilder) { b.AllowPolyglotAccess(allow) })
}

func ContextBuilderAllowCreateThread(t *Thread, builder handle.Handle, allow bool) Status {
	return builderFlag(t, "context_builder_allow_create_thread", builder, func(b *engine.ContextBuilder) { b.AllowCreateThread(allow) })
}

func ContextBuilderAllowExperimentalOptions(t *Thread, builder handle.Handle, allow bool) Status {
	return builderFlag(t, "context_builder_allow_experimental_options", builder, func(b *engine.ContextBuilder) { b.AllowExperimentalOptions(allow) })
}

// ContextBuilderBuild builds a context. A builder can build many contexts.
func ContextBuilderBuild(t *Thread, builder handle.Handle, result *handle.Handle) Status {
	return t.call("context_builder_build", func() error {
		b, err := fetch[*engine.ContextBuilder](t, builder, "context_builder")
		if err != nil {
			return err
		}
		if err := out(result, "result"); err != nil {
			return err
		}
		c, err := b.Build()
		if err != nil {
			return err
		}
		return t.store(c, result)
	})
}

// CreateContext creates a context on a private engine.
func CreateContext(t *Thread, permitted []string, result *handle.Handle) Status {
	return t.call("create_context", func() error {
		if err := out(result, "result"); err != nil {
			return err
		}
		c, err := engine.NewContext(permitted...)
		if err != nil {
			return err
		}
		return t.store(c, result)
	})
}

// ContextClose closes a context. Without cancelIfExecuting it fails while
// the context is running guest code.
func ContextClose(t *Thread, context handle.Handle, cancelIfExecuting bool) Status {
	return t.call("context_close", func() error {
		c, err := fetch[*engine.Context](t, context, "context")
		if err != nil {
			return err
		}
		return c.Close(cancelIfExecuting)
	})
}

// ContextCloseAsync cancels and closes a context in the background.
// Isolate.Close waits for it.
func ContextCloseAsync(t *Thread, context handle.Handle) Status {
	return t.call("context_close_async", func() error {
		c, err := fetch[*engine.Context](t, context, "context")
		if err != nil {
			return err
		}
		t.iso.closeAsync(c)
		return nil
	})
}

// ContextEval evaluates source in the language. result may be nil when
// the caller does not need the value.
func ContextEval(t *Thread, context handle.Handle, language, name, source string, result *handle.Handle) Status {
	return t.call("context_eval", func() error {
		c, err := fetch[*engine.Context](t, context, "context")
		if err != nil {
			return err
		}
		v, err := c.Eval(t.evalContext(), engine.Source{Language: language, Name: name, Code: source})
		if err != nil {
			return err
		}
		if result == nil {
			return nil
		}
		return t.store(v, result)
	})
}

// ContextGetEngine returns the engine of a context.
func ContextGetEngine(t *Thread, context handle.Handle, result *handle.Handle) Status {
	return t.call("context_get_engine", func() error {
		c, err := fetch[*engine.Context](t, context, "context")
		if err != nil {
			return err
		}
		if err := out(result, "result"); err != nil {
			return err
		}
		return t.store(c.Engine(), result)
	})
}

// ContextGetBindings returns the top-level bindings of a language.
func ContextGetBindings(t *Thread, context handle.Handle, language string, result *handle.Handle) Status {
	return t.call("context_get_bindings", func() error {
		c, err := fetch[*engine.Context](t, context, "context")
		if err != nil {
			return err
		}
		if err := out(result, "result"); err != nil {
			return err
		}
		v, err := c.Bindings(language)
		if err != nil {
			return err
		}
		return t.store(v, result)
	})
}

// ContextGetPolyglotBindings returns the bindings shared by all languages.
func ContextGetPolyglotBindings(t *Thread, context handle.Handle, result *handle.Handle) Status {
	return t.call("context_get_polyglot_bindings", func() error {
		c, err := fetch[*engine.Context](t, context, "context")
		if err != nil {
			return err
		}
		if err := out(result, "result"); err != nil {
			return err
		}
		v, err := c.PolyglotBindings()
		if err != nil {
			return err
		}
		return t.store(v, result)
	})
}

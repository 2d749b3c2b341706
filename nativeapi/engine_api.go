package nativeapi

import (
	"github.com/wippyai/polyglot-native/engine"
	"github.com/wippyai/polyglot-native/handle"
)

// CreateEngineBuilder starts an engine builder restricted to the permitted
// languages. No languages means all of them.
func CreateEngineBuilder(t *Thread, permitted []string, result *handle.Handle) Status {
	return t.call("create_engine_builder", func() error {
		if err := out(result, "result"); err != nil {
			return err
		}
		return t.store(engine.NewEngineBuilder(permitted...), result)
	})
}

// EngineBuilderOption sets an option applied to every engine the builder
// produces.
func EngineBuilderOption(t *Thread, builder handle.Handle, key, value string) Status {
	return t.call("engine_builder_option", func() error {
		b, err := fetch[*engine.EngineBuilder](t, builder, "engine_builder")
		if err != nil {
			return err
		}
		b.Option(key, value)
		return nil
	})
}

// EngineBuilderBuild builds an engine. A builder can build many engines.
func EngineBuilderBuild(t *Thread, builder handle.Handle, result *handle.Handle) Status {
	return t.call("engine_builder_build", func() error {
		b, err := fetch[*engine.EngineBuilder](t, builder, "engine_builder")
		if err != nil {
			return err
		}
		if err := out(result, "result"); err != nil {
			return err
		}
		e, err := b.Build()
		if err != nil {
			return err
		}
		return t.store(e, result)
	})
}

// CreateEngine creates an engine with every language and default options.
func CreateEngine(t *Thread, result *handle.Handle) Status {
	return t.call("create_engine", func() error {
		if err := out(result, "result"); err != nil {
			return err
		}
		e, err := engine.NewEngineBuilder().Build()
		if err != nil {
			return err
		}
		return t.store(e, result)
	})
}

// EngineClose closes an engine and its contexts.
func EngineClose(t *Thread, eng handle.Handle, cancelIfExecuting bool) Status {
	return t.call("engine_close", func() error {
		e, err := fetch[*engine.Engine](t, eng, "engine")
		if err != nil {
			return err
		}
		return e.Close(cancelIfExecuting)
	})
}

// EngineGetLanguages lists the engine languages sorted by id. With a nil
// languages slice only the count is stored in size; otherwise up to
// len(languages) language handles are written and size holds the count.
func EngineGetLanguages(t *Thread, eng handle.Handle, languages []handle.Handle, size *uint64) Status {
	return t.call("engine_get_languages", func() error {
		e, err := fetch[*engine.Engine](t, eng, "engine")
		if err != nil {
			return err
		}
		if err := out(size, "size"); err != nil {
			return err
		}
		langs := e.Languages()
		*size = uint64(len(langs))
		for i := 0; i < len(langs) && i < len(languages); i++ {
			h, err := t.newHandle(langs[i])
			if err != nil {
				return err
			}
			languages[i] = h
		}
		return nil
	})
}

// LanguageGetID copies the id of a language using the two-pass
// convention.
func LanguageGetID(t *Thread, language handle.Handle, buf []byte, result *uint64) Status {
	return t.call("language_get_id", func() error {
		l, err := fetch[engine.Language](t, language, "language")
		if err != nil {
			return err
		}
		return writeString(l.ID, buf, result)
	})
}

// store puts obj in the top frame and writes its handle.
func (t *Thread) store(obj any, result *handle.Handle) error {
	h, err := t.newHandle(obj)
	if err != nil {
		return err
	}
	*result = h
	return nil
}

package engine

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/wippyai/polyglot-native/errors"
)

// Language describes an installed guest language.
type Language struct {
	ID      string
	Name    string
	Version string
}

// evaluator runs source code of one language inside one context.
type evaluator interface {
	eval(ctx context.Context, c *Context, src Source) (any, error)
	close() error
}

type languageImpl struct {
	info Language
	open func(c *Context) (evaluator, error)
}

var (
	registryMu sync.RWMutex
	registry   = map[string]languageImpl{}
)

func register(info Language, open func(c *Context) (evaluator, error)) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[info.ID] = languageImpl{info: info, open: open}
}

func lookupLanguage(id string) (languageImpl, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	impl, ok := registry[id]
	return impl, ok
}

// Option keys understood by engines and contexts.
const (
	OptionWasmMemoryLimitPages = "wasm.MemoryLimitPages"
	OptionJQTimeout            = "jq.Timeout"
	OptionSQLDSN               = "sql.DSN"
	OptionCUEConcrete          = "cue.Concrete"
)

var optionValidators = map[string]func(string) error{
	OptionWasmMemoryLimitPages: func(v string) error {
		n, err := strconv.ParseUint(v, 10, 32)
		if err == nil && (n == 0 || n > 65536) {
			err = strconv.ErrRange
		}
		return err
	},
	OptionJQTimeout: func(v string) error {
		_, err := time.ParseDuration(v)
		return err
	},
	OptionSQLDSN: func(v string) error {
		if v == "" {
			return strconv.ErrSyntax
		}
		return nil
	},
	OptionCUEConcrete: func(v string) error {
		_, err := strconv.ParseBool(v)
		return err
	},
}

const experimentalPrefix = "x."

func validateOption(key, value string, experimental bool) error {
	if strings.HasPrefix(key, experimentalPrefix) {
		if !experimental {
			return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
				Path(key).
				Detail("option %s is experimental and must be enabled with allow_experimental_options", key).
				Build()
		}
		return nil
	}
	validate, ok := optionValidators[key]
	if !ok {
		return errors.NotFound(errors.PhaseConfig, "option", key)
	}
	if err := validate(value); err != nil {
		return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Path(key).
			Value(value).
			Cause(err).
			Detail("invalid value %q for option %s", value, key).
			Build()
	}
	return nil
}

// Engine hosts the installed languages and the contexts created on it.
type Engine struct {
	id        uuid.UUID
	permitted []string
	options   map[string]string
	logger    *zap.Logger

	mu       sync.Mutex
	contexts map[*Context]struct{}
	closed   bool
}

// EngineBuilder configures an Engine.
type EngineBuilder struct {
	permitted []string
	options   map[string]string
}

// NewEngineBuilder starts an engine restricted to the permitted languages.
// No languages means every installed language.
func NewEngineBuilder(permitted ...string) *EngineBuilder {
	return &EngineBuilder{
		permitted: permitted,
		options:   make(map[string]string),
	}
}

// Option sets an engine option. It is validated by Build.
func (b *EngineBuilder) Option(key, value string) *EngineBuilder {
	b.options[key] = value
	return b
}

// Build validates the configuration and creates the engine.
func (b *EngineBuilder) Build() (*Engine, error) {
	for _, id := range b.permitted {
		if _, ok := lookupLanguage(id); !ok {
			return nil, errors.NotFound(errors.PhaseEngine, "language", id)
		}
	}
	for k, v := range b.options {
		if err := validateOption(k, v, false); err != nil {
			return nil, err
		}
	}

	e := &Engine{
		id:        uuid.New(),
		permitted: append([]string(nil), b.permitted...),
		options:   make(map[string]string, len(b.options)),
		contexts:  make(map[*Context]struct{}),
	}
	for k, v := range b.options {
		e.options[k] = v
	}
	e.logger = Logger().With(zap.String("engine", e.id.String()))
	e.logger.Debug("engine created", zap.Strings("languages", e.permitted))
	return e, nil
}

// NewEngine creates an engine with every installed language and no options.
func NewEngine() *Engine {
	e, err := NewEngineBuilder().Build()
	if err != nil {
		panic(err)
	}
	return e
}

// ID returns the engine identifier.
func (e *Engine) ID() string { return e.id.String() }

// Option returns an engine option and whether it is set.
func (e *Engine) Option(key string) (string, bool) {
	v, ok := e.options[key]
	return v, ok
}

// Languages returns the languages available on this engine, sorted by id.
func (e *Engine) Languages() []Language {
	registryMu.RLock()
	defer registryMu.RUnlock()

	var out []Language
	if len(e.permitted) == 0 {
		for _, impl := range registry {
			out = append(out, impl.info)
		}
	} else {
		for _, id := range e.permitted {
			out = append(out, registry[id].info)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (e *Engine) permits(id string) bool {
	if len(e.permitted) == 0 {
		_, ok := lookupLanguage(id)
		return ok
	}
	for _, p := range e.permitted {
		if p == id {
			return true
		}
	}
	return false
}

func (e *Engine) attach(c *Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return errors.Closed(errors.PhaseEngine, "engine")
	}
	e.contexts[c] = struct{}{}
	return nil
}

func (e *Engine) detach(c *Context) {
	e.mu.Lock()
	delete(e.contexts, c)
	e.mu.Unlock()
}

// Close closes the engine and every context still open on it. Without
// cancelIfExecuting, closing fails while any of those contexts is running.
func (e *Engine) Close(cancelIfExecuting bool) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	contexts := make([]*Context, 0, len(e.contexts))
	for c := range e.contexts {
		if !cancelIfExecuting && c.Executing() {
			e.mu.Unlock()
			return errors.IllegalState(errors.PhaseEngine, "engine has an executing context")
		}
		contexts = append(contexts, c)
	}
	e.closed = true
	e.mu.Unlock()

	var err error
	for _, c := range contexts {
		err = multierr.Append(err, c.Close(cancelIfExecuting))
	}
	e.logger.Debug("engine closed", zap.Int("contexts", len(contexts)), zap.Error(err))
	return err
}

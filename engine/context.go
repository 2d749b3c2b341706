package engine

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/wippyai/polyglot-native/errors"
)

// Source is a unit of guest code.
type Source struct {
	Language string
	Name     string
	Code     string
}

// Access holds the privileges granted to a context.
type Access struct {
	All                 bool
	IO                  bool
	NativeAccess        bool
	PolyglotAccess      bool
	CreateThread        bool
	ExperimentalOptions bool
}

func (a Access) io() bool       { return a.All || a.IO }
func (a Access) polyglot() bool { return a.All || a.PolyglotAccess }

// ContextBuilder configures a Context.
type ContextBuilder struct {
	permitted []string
	engine    *Engine
	options   map[string]string
	access    Access
}

// NewContextBuilder starts a context restricted to the permitted languages.
// No languages means every language of the engine.
func NewContextBuilder(permitted ...string) *ContextBuilder {
	return &ContextBuilder{
		permitted: permitted,
		options:   make(map[string]string),
	}
}

// Engine shares an explicit engine. Without one the context owns a private
// engine that is closed with it.
func (b *ContextBuilder) Engine(e *Engine) *ContextBuilder {
	b.engine = e
	return b
}

// Option sets a context option. It is validated by Build.
func (b *ContextBuilder) Option(key, value string) *ContextBuilder {
	b.options[key] = value
	return b
}

// AllowAllAccess grants every privilege.
func (b *ContextBuilder) AllowAllAccess(allow bool) *ContextBuilder {
	b.access.All = allow
	return b
}

// AllowIO lets guest code reach the file system.
func (b *ContextBuilder) AllowIO(allow bool) *ContextBuilder {
	b.access.IO = allow
	return b
}

// AllowNativeAccess lets guest code load native code.
func (b *ContextBuilder) AllowNativeAccess(allow bool) *ContextBuilder {
	b.access.NativeAccess = allow
	return b
}

// AllowPolyglotAccess lets guest code reach the polyglot bindings.
func (b *ContextBuilder) AllowPolyglotAccess(allow bool) *ContextBuilder {
	b.access.PolyglotAccess = allow
	return b
}

// AllowCreateThread lets guest code start threads.
func (b *ContextBuilder) AllowCreateThread(allow bool) *ContextBuilder {
	b.access.CreateThread = allow
	return b
}

// AllowExperimentalOptions accepts options under the "x." prefix.
func (b *ContextBuilder) AllowExperimentalOptions(allow bool) *ContextBuilder {
	b.access.ExperimentalOptions = allow
	return b
}

// Build validates the configuration and creates the context.
func (b *ContextBuilder) Build() (*Context, error) {
	eng := b.engine
	owns := false
	if eng == nil {
		var err error
		eng, err = NewEngineBuilder(b.permitted...).Build()
		if err != nil {
			return nil, err
		}
		owns = true
	}
	fail := func(err error) (*Context, error) {
		if owns {
			eng.Close(true)
		}
		return nil, err
	}

	for _, id := range b.permitted {
		if !eng.permits(id) {
			return fail(errors.New(errors.PhaseContext, errors.KindInvalidInput).
				Path(id).
				Detail("language %q is not available on the engine", id).
				Build())
		}
	}
	for k, v := range b.options {
		if err := validateOption(k, v, b.access.ExperimentalOptions || b.access.All); err != nil {
			return fail(err)
		}
	}

	c := &Context{
		id:         uuid.New(),
		engine:     eng,
		ownsEngine: owns,
		permitted:  append([]string(nil), b.permitted...),
		options:    make(map[string]string),
		access:     b.access,
		evaluators: make(map[string]evaluator),
		bindings:   make(map[string]*Object),
		polyglot:   NewObject(),
	}
	for k, v := range eng.options {
		c.options[k] = v
	}
	for k, v := range b.options {
		c.options[k] = v
	}
	c.base, c.cancel = context.WithCancel(context.Background())
	c.logger = eng.logger.With(zap.String("context", c.id.String()))

	if err := eng.attach(c); err != nil {
		c.cancel()
		return fail(err)
	}
	c.logger.Debug("context created")
	return c, nil
}

// NewContext creates a context on a private engine.
func NewContext(permitted ...string) (*Context, error) {
	return NewContextBuilder(permitted...).Build()
}

// Context is an isolated guest execution environment.
type Context struct {
	id         uuid.UUID
	engine     *Engine
	ownsEngine bool
	permitted  []string
	options    map[string]string
	access     Access
	logger     *zap.Logger

	mu         sync.Mutex
	evaluators map[string]evaluator
	bindings   map[string]*Object
	polyglot   *Object

	base    context.Context
	cancel  context.CancelFunc
	active  atomic.Int32
	closed  atomic.Bool
	closeMu sync.Mutex
}

// ID returns the context identifier.
func (c *Context) ID() string { return c.id.String() }

// Engine returns the engine the context runs on.
func (c *Context) Engine() *Engine { return c.engine }

// Access returns the granted privileges.
func (c *Context) Access() Access { return c.access }

// Option returns the effective value of an option.
func (c *Context) Option(key string) (string, bool) {
	v, ok := c.options[key]
	return v, ok
}

// Executing reports whether an evaluation is in progress.
func (c *Context) Executing() bool { return c.active.Load() > 0 }

// Closed reports whether the context has been closed.
func (c *Context) Closed() bool { return c.closed.Load() }

func (c *Context) permits(id string) bool {
	if !c.engine.permits(id) {
		return false
	}
	if len(c.permitted) == 0 {
		return true
	}
	for _, p := range c.permitted {
		if p == id {
			return true
		}
	}
	return false
}

func (c *Context) checkLanguage(id string) error {
	if c.closed.Load() {
		return errors.Closed(errors.PhaseContext, "context")
	}
	if _, ok := lookupLanguage(id); !ok {
		return errors.NotFound(errors.PhaseContext, "language", id)
	}
	if !c.permits(id) {
		return errors.New(errors.PhaseContext, errors.KindInvalidInput).
			Path(id).
			Detail("language %q is not permitted in this context", id).
			Build()
	}
	return nil
}

func (c *Context) evaluator(id string) (evaluator, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ev, ok := c.evaluators[id]; ok {
		return ev, nil
	}
	impl, _ := lookupLanguage(id)
	ev, err := impl.open(c)
	if err != nil {
		return nil, err
	}
	c.evaluators[id] = ev
	return ev, nil
}

// Eval runs src. Guest failures are returned as *Exception; misuse of the
// context (closed, unknown language) as *errors.Error.
func (c *Context) Eval(ctx context.Context, src Source) (*Value, error) {
	if err := c.checkLanguage(src.Language); err != nil {
		return nil, err
	}
	ev, err := c.evaluator(src.Language)
	if err != nil {
		return nil, err
	}

	c.active.Add(1)
	defer c.active.Add(-1)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(c.base, cancel)
	defer stop()

	out, err := c.run(runCtx, ev, src)
	if c.base.Err() != nil {
		return nil, &Exception{Message: "context was closed during execution", Cancelled: true, Cause: err}
	}
	if err != nil {
		return nil, asException(err, src.Language, "<eval>")
	}
	norm, err := normalize(out)
	if err != nil {
		return nil, err
	}
	return &Value{ctx: c, v: norm}, nil
}

func (c *Context) run(ctx context.Context, ev evaluator, src Source) (out any, err error) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("evaluator panicked", zap.String("language", src.Language), zap.Any("panic", r))
			out, err = nil, &Exception{Message: "internal error: " + errors.Panic(errors.PhaseContext, r, "").Detail, InternalError: true}
		}
	}()
	if err := Poll(ctx); err != nil {
		return nil, err
	}
	return ev.eval(ctx, c, src)
}

// AsValue converts a Go value into a value of this context.
func (c *Context) AsValue(x any) (*Value, error) {
	if c.closed.Load() {
		return nil, errors.Closed(errors.PhaseContext, "context")
	}
	n, err := normalize(x)
	if err != nil {
		return nil, err
	}
	return &Value{ctx: c, v: n}, nil
}

// Bindings returns the top-level scope object of a language.
func (c *Context) Bindings(lang string) (*Value, error) {
	if err := c.checkLanguage(lang); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	obj, ok := c.bindings[lang]
	if !ok {
		obj = NewObject()
		c.bindings[lang] = obj
	}
	return &Value{ctx: c, v: obj}, nil
}

// PolyglotBindings returns the object shared by every language of the context.
func (c *Context) PolyglotBindings() (*Value, error) {
	if c.closed.Load() {
		return nil, errors.Closed(errors.PhaseContext, "context")
	}
	return &Value{ctx: c, v: c.polyglot}, nil
}

// lookupBinding finds a name in the language bindings, then, with polyglot
// access, in the polyglot bindings.
func (c *Context) lookupBinding(lang, name string) (any, bool) {
	c.mu.Lock()
	obj := c.bindings[lang]
	c.mu.Unlock()
	if obj != nil {
		if v, ok := obj.Get(name); ok {
			return v, true
		}
	}
	if c.access.polyglot() {
		return c.polyglot.Get(name)
	}
	return nil, false
}

func (c *Context) languageBindings(lang string) *Object {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bindings[lang]
}

// Close closes the context. Without cancelIfExecuting it fails while an
// evaluation is in progress; with it, running evaluations are cancelled.
// Closing twice is a no-op.
func (c *Context) Close(cancelIfExecuting bool) error {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()

	if c.closed.Load() {
		return nil
	}
	if c.Executing() && !cancelIfExecuting {
		return errors.IllegalState(errors.PhaseContext, "context is executing")
	}
	c.closed.Store(true)
	c.cancel()

	c.mu.Lock()
	evaluators := c.evaluators
	c.evaluators = map[string]evaluator{}
	c.mu.Unlock()

	var err error
	for _, ev := range evaluators {
		err = multierr.Append(err, ev.close())
	}
	c.engine.detach(c)
	if c.ownsEngine {
		err = multierr.Append(err, c.engine.Close(true))
	}
	c.logger.Debug("context closed", zap.Error(err))
	return err
}

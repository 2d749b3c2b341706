package engine

import (
	"context"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/wippyai/polyglot-native/errors"
)

// Meta-object names reported by Value.MetaObject.
const (
	MetaNull     = "Null"
	MetaBoolean  = "Boolean"
	MetaNumber   = "Number"
	MetaString   = "String"
	MetaArray    = "Array"
	MetaObject   = "Object"
	MetaFunction = "Function"
)

// Array is a mutable guest array.
type Array struct {
	mu    sync.RWMutex
	items []any
}

// NewArray creates an array holding items. Items must already be normalized.
func NewArray(items ...any) *Array {
	return &Array{items: items}
}

// Len returns the number of elements.
func (a *Array) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.items)
}

// Items returns a copy of the elements.
func (a *Array) Items() []any {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]any(nil), a.items...)
}

// Object is a guest object with insertion-ordered members.
type Object struct {
	mu      sync.RWMutex
	keys    []string
	members map[string]any
}

// NewObject creates an empty object.
func NewObject() *Object {
	return &Object{members: make(map[string]any)}
}

// Get returns a member.
func (o *Object) Get(key string) (any, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	v, ok := o.members[key]
	return v, ok
}

// Put sets a member, keeping the position of existing keys.
func (o *Object) Put(key string, v any) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.members[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.members[key] = v
}

// Keys returns the member names in insertion order.
func (o *Object) Keys() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return append([]string(nil), o.keys...)
}

// Len returns the number of members.
func (o *Object) Len() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.keys)
}

// Executable is implemented by guest and host functions.
type Executable interface {
	Name() string
	Call(ctx context.Context, args []*Value) (any, error)
}

// Function adapts a Go function to Executable.
type Function struct {
	lang string
	name string
	fn   func(ctx context.Context, args []*Value) (any, error)
}

// NewFunction creates a host function backed by fn.
func NewFunction(name string, fn func(ctx context.Context, args []*Value) (any, error)) *Function {
	return &Function{name: name, fn: fn}
}

func newGuestFunction(lang, name string, fn func(ctx context.Context, args []*Value) (any, error)) *Function {
	return &Function{lang: lang, name: name, fn: fn}
}

// Name returns the function name.
func (f *Function) Name() string { return f.name }

// Language returns the implementing language, empty for host functions.
func (f *Function) Language() string { return f.lang }

// Call invokes the function.
func (f *Function) Call(ctx context.Context, args []*Value) (any, error) {
	return f.fn(ctx, args)
}

// Value is a guest value bound to the context that produced it.
// The zero Value is null.
type Value struct {
	ctx *Context
	v   any
}

// Context returns the owning context, nil for context-free values.
func (v *Value) Context() *Context { return v.ctx }

// Raw returns the normalized representation.
func (v *Value) Raw() any { return v.v }

func (v *Value) checkOpen() error {
	if v.ctx != nil && v.ctx.closed.Load() {
		return errors.Closed(errors.PhaseValue, "context")
	}
	return nil
}

func (v *Value) wrap(x any) *Value {
	return &Value{ctx: v.ctx, v: x}
}

// MetaObject returns the name of the value's type.
func (v *Value) MetaObject() string {
	return metaOf(v.v)
}

func metaOf(x any) string {
	switch x.(type) {
	case nil:
		return MetaNull
	case bool:
		return MetaBoolean
	case int64, float64:
		return MetaNumber
	case string:
		return MetaString
	case *Array:
		return MetaArray
	case *Object:
		return MetaObject
	case Executable:
		return MetaFunction
	default:
		return "Unknown"
	}
}

// IsNull reports whether the value is null.
func (v *Value) IsNull() bool { return v.v == nil }

// IsBoolean reports whether the value is a boolean.
func (v *Value) IsBoolean() bool {
	_, ok := v.v.(bool)
	return ok
}

// IsString reports whether the value is a string.
func (v *Value) IsString() bool {
	_, ok := v.v.(string)
	return ok
}

// IsNumber reports whether the value is a number.
func (v *Value) IsNumber() bool {
	switch v.v.(type) {
	case int64, float64:
		return true
	}
	return false
}

// HasArrayElements reports whether the value is an array.
func (v *Value) HasArrayElements() bool {
	_, ok := v.v.(*Array)
	return ok
}

// HasMembers reports whether the value is an object.
func (v *Value) HasMembers() bool {
	_, ok := v.v.(*Object)
	return ok
}

// CanExecute reports whether the value is executable.
func (v *Value) CanExecute() bool {
	_, ok := v.v.(Executable)
	return ok
}

// integral returns the value as an exact integer when it is one.
func (v *Value) integral() (int64, bool) {
	switch n := v.v.(type) {
	case int64:
		return n, true
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) || n < math.MinInt64 || n >= math.MaxInt64 {
			return 0, false
		}
		if n == 0 && math.Signbit(n) {
			return 0, false
		}
		return int64(n), true
	}
	return 0, false
}

func (v *Value) fitsRange(lo, hi int64) bool {
	n, ok := v.integral()
	return ok && n >= lo && n <= hi
}

// FitsInInt8 reports whether the value is an integer in int8 range.
func (v *Value) FitsInInt8() bool { return v.fitsRange(math.MinInt8, math.MaxInt8) }

// FitsInInt16 reports whether the value is an integer in int16 range.
func (v *Value) FitsInInt16() bool { return v.fitsRange(math.MinInt16, math.MaxInt16) }

// FitsInInt32 reports whether the value is an integer in int32 range.
func (v *Value) FitsInInt32() bool { return v.fitsRange(math.MinInt32, math.MaxInt32) }

// FitsInInt64 reports whether the value is an integer in int64 range.
func (v *Value) FitsInInt64() bool {
	_, ok := v.integral()
	return ok
}

// FitsInUint8 reports whether the value is an integer in uint8 range.
func (v *Value) FitsInUint8() bool { return v.fitsRange(0, math.MaxUint8) }

// FitsInUint16 reports whether the value is an integer in uint16 range.
func (v *Value) FitsInUint16() bool { return v.fitsRange(0, math.MaxUint16) }

// FitsInUint32 reports whether the value is an integer in uint32 range.
func (v *Value) FitsInUint32() bool { return v.fitsRange(0, math.MaxUint32) }

// FitsInFloat reports whether the value converts to float32 without loss.
func (v *Value) FitsInFloat() bool {
	switch n := v.v.(type) {
	case int64:
		return exactDouble(n) && float64(float32(n)) == float64(n)
	case float64:
		return math.IsNaN(n) || math.IsInf(n, 0) || float64(float32(n)) == n
	}
	return false
}

func exactDouble(n int64) bool {
	f := float64(n)
	return f < math.MaxInt64 && int64(f) == n
}

// FitsInDouble reports whether the value converts to float64 without loss.
func (v *Value) FitsInDouble() bool {
	switch n := v.v.(type) {
	case int64:
		return exactDouble(n)
	case float64:
		return true
	}
	return false
}

// AsBool returns the boolean value.
func (v *Value) AsBool() (bool, error) {
	b, ok := v.v.(bool)
	if !ok {
		return false, errors.Expected(errors.KindBooleanExpected, v.MetaObject())
	}
	return b, nil
}

// AsString returns the string value.
func (v *Value) AsString() (string, error) {
	s, ok := v.v.(string)
	if !ok {
		return "", errors.Expected(errors.KindStringExpected, v.MetaObject())
	}
	return s, nil
}

func (v *Value) asIntegral(lo, hi int64, target string) (int64, error) {
	if !v.IsNumber() {
		return 0, errors.Expected(errors.KindNumberExpected, v.MetaObject())
	}
	n, ok := v.integral()
	if !ok || n < lo || n > hi {
		return 0, errors.Overflow(errors.PhaseValue, v.String(), target)
	}
	return n, nil
}

// AsInt8 returns the value as int8.
func (v *Value) AsInt8() (int8, error) {
	n, err := v.asIntegral(math.MinInt8, math.MaxInt8, "int8")
	return int8(n), err
}

// AsInt16 returns the value as int16.
func (v *Value) AsInt16() (int16, error) {
	n, err := v.asIntegral(math.MinInt16, math.MaxInt16, "int16")
	return int16(n), err
}

// AsInt32 returns the value as int32.
func (v *Value) AsInt32() (int32, error) {
	n, err := v.asIntegral(math.MinInt32, math.MaxInt32, "int32")
	return int32(n), err
}

// AsInt64 returns the value as int64.
func (v *Value) AsInt64() (int64, error) {
	return v.asIntegral(math.MinInt64, math.MaxInt64, "int64")
}

// AsUint8 returns the value as uint8.
func (v *Value) AsUint8() (uint8, error) {
	n, err := v.asIntegral(0, math.MaxUint8, "uint8")
	return uint8(n), err
}

// AsUint16 returns the value as uint16.
func (v *Value) AsUint16() (uint16, error) {
	n, err := v.asIntegral(0, math.MaxUint16, "uint16")
	return uint16(n), err
}

// AsUint32 returns the value as uint32.
func (v *Value) AsUint32() (uint32, error) {
	n, err := v.asIntegral(0, math.MaxUint32, "uint32")
	return uint32(n), err
}

// AsFloat32 returns the value as float32.
func (v *Value) AsFloat32() (float32, error) {
	if !v.IsNumber() {
		return 0, errors.Expected(errors.KindNumberExpected, v.MetaObject())
	}
	if !v.FitsInFloat() {
		return 0, errors.Overflow(errors.PhaseValue, v.String(), "float")
	}
	switch n := v.v.(type) {
	case int64:
		return float32(n), nil
	default:
		return float32(n.(float64)), nil
	}
}

// AsFloat64 returns the value as float64.
func (v *Value) AsFloat64() (float64, error) {
	switch n := v.v.(type) {
	case float64:
		return n, nil
	case int64:
		if !v.FitsInDouble() {
			return 0, errors.Overflow(errors.PhaseValue, v.String(), "double")
		}
		return float64(n), nil
	}
	return 0, errors.Expected(errors.KindNumberExpected, v.MetaObject())
}

func (v *Value) array() (*Array, error) {
	if err := v.checkOpen(); err != nil {
		return nil, err
	}
	a, ok := v.v.(*Array)
	if !ok {
		return nil, errors.Expected(errors.KindArrayExpected, v.MetaObject())
	}
	return a, nil
}

// ArraySize returns the number of array elements.
func (v *Value) ArraySize() (int64, error) {
	a, err := v.array()
	if err != nil {
		return 0, err
	}
	return int64(a.Len()), nil
}

// ArrayElement returns the element at index.
func (v *Value) ArrayElement(index int64) (*Value, error) {
	a, err := v.array()
	if err != nil {
		return nil, err
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	if index < 0 || index >= int64(len(a.items)) {
		return nil, errors.OutOfBounds(errors.PhaseValue, nil, index, int64(len(a.items)))
	}
	return v.wrap(a.items[index]), nil
}

// SetArrayElement stores elem at index. Writing at index == size appends.
func (v *Value) SetArrayElement(index int64, elem *Value) error {
	a, err := v.array()
	if err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	switch {
	case index >= 0 && index < int64(len(a.items)):
		a.items[index] = elem.Raw()
	case index == int64(len(a.items)):
		a.items = append(a.items, elem.Raw())
	default:
		return errors.OutOfBounds(errors.PhaseValue, nil, index, int64(len(a.items)))
	}
	return nil
}

// RemoveArrayElement removes the element at index, shifting the tail down.
func (v *Value) RemoveArrayElement(index int64) (bool, error) {
	a, err := v.array()
	if err != nil {
		return false, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if index < 0 || index >= int64(len(a.items)) {
		return false, errors.OutOfBounds(errors.PhaseValue, nil, index, int64(len(a.items)))
	}
	a.items = append(a.items[:index], a.items[index+1:]...)
	return true, nil
}

func (v *Value) object(member string) (*Object, error) {
	if err := v.checkOpen(); err != nil {
		return nil, err
	}
	o, ok := v.v.(*Object)
	if !ok {
		return nil, errors.New(errors.PhaseValue, errors.KindTypeMismatch).
			Path(member).
			MetaType(v.MetaObject()).
			Detail("Object expected but got %s", v.MetaObject()).
			Build()
	}
	return o, nil
}

// Member returns a member. A missing member yields (nil, nil).
func (v *Value) Member(key string) (*Value, error) {
	o, err := v.object(key)
	if err != nil {
		return nil, err
	}
	x, ok := o.Get(key)
	if !ok {
		return nil, nil
	}
	return v.wrap(x), nil
}

// PutMember sets a member.
func (v *Value) PutMember(key string, member *Value) error {
	o, err := v.object(key)
	if err != nil {
		return err
	}
	o.Put(key, member.Raw())
	return nil
}

// HasMember reports whether the value is an object with member key.
func (v *Value) HasMember(key string) bool {
	o, ok := v.v.(*Object)
	if !ok {
		return false
	}
	_, ok = o.Get(key)
	return ok
}

// MemberKeys returns the member names of an object, nil otherwise.
func (v *Value) MemberKeys() []string {
	if o, ok := v.v.(*Object); ok {
		return o.Keys()
	}
	return nil
}

// Execute calls an executable value. Failures come back as *Exception.
func (v *Value) Execute(ctx context.Context, args ...*Value) (*Value, error) {
	if err := v.checkOpen(); err != nil {
		return nil, err
	}
	fn, ok := v.v.(Executable)
	if !ok {
		return nil, errors.New(errors.PhaseValue, errors.KindTypeMismatch).
			MetaType(v.MetaObject()).
			Detail("%s is not executable", v.MetaObject()).
			Build()
	}
	lang := ""
	if l, ok := fn.(interface{ Language() string }); ok {
		lang = l.Language()
	}
	if err := Poll(ctx); err != nil {
		return nil, asException(err, lang, fn.Name())
	}
	out, err := fn.Call(ctx, args)
	if err != nil {
		return nil, asException(err, lang, fn.Name())
	}
	norm, err := normalize(out)
	if err != nil {
		return nil, err
	}
	return v.wrap(norm), nil
}

// String renders the value the way a guest would print it.
func (v *Value) String() string {
	var b strings.Builder
	format(&b, v.v, 0)
	return b.String()
}

func format(b *strings.Builder, x any, depth int) {
	if depth > 8 {
		b.WriteString("...")
		return
	}
	switch t := x.(type) {
	case nil:
		b.WriteString("null")
	case bool:
		b.WriteString(strconv.FormatBool(t))
	case int64:
		b.WriteString(strconv.FormatInt(t, 10))
	case float64:
		b.WriteString(strconv.FormatFloat(t, 'g', -1, 64))
	case string:
		if depth == 0 {
			b.WriteString(t)
		} else {
			b.WriteString(strconv.Quote(t))
		}
	case *Array:
		b.WriteByte('[')
		for i, item := range t.Items() {
			if i > 0 {
				b.WriteString(", ")
			}
			format(b, item, depth+1)
		}
		b.WriteByte(']')
	case *Object:
		b.WriteByte('{')
		for i, k := range t.Keys() {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(k)
			b.WriteString(": ")
			m, _ := t.Get(k)
			format(b, m, depth+1)
		}
		b.WriteByte('}')
	case Executable:
		b.WriteString("function ")
		b.WriteString(t.Name())
		b.WriteString("()")
	default:
		b.WriteString("<unknown>")
	}
}

// sortedKeys returns map keys in a stable order for conversions from
// unordered Go maps.
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

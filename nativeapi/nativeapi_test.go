package nativeapi

import (
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	polyglot "github.com/wippyai/polyglot-native"
	"github.com/wippyai/polyglot-native/engine"
	"github.com/wippyai/polyglot-native/handle"
)

func newTestIsolate(t *testing.T, mutate ...func(*Config)) (*Isolate, *polyglot.HeapAllocator) {
	t.Helper()
	cfg := DefaultConfig()
	for _, m := range mutate {
		m(&cfg)
	}
	alloc := polyglot.NewHeapAllocator()
	iso, err := NewIsolate(cfg, WithAllocator(alloc), WithLogger(zap.NewNop()))
	if err != nil {
		t.Fatalf("NewIsolate failed: %v", err)
	}
	t.Cleanup(func() { iso.Close() })
	return iso, alloc
}

func attach(t *testing.T, iso *Isolate) *Thread {
	t.Helper()
	th, err := iso.AttachThread()
	if err != nil {
		t.Fatalf("AttachThread failed: %v", err)
	}
	t.Cleanup(th.Detach)
	return th
}

func expect(t *testing.T, th *Thread, got, want Status, op string) {
	t.Helper()
	if got == want {
		return
	}
	var info *ErrorInfo
	GetLastErrorInfo(th, &info)
	t.Fatalf("%s = %s, want %s (%s)", op, got, want, info.Message())
}

func newContext(t *testing.T, th *Thread, permitted ...string) handle.Handle {
	t.Helper()
	var c handle.Handle
	expect(t, th, CreateContext(th, permitted, &c), StatusOK, "CreateContext")
	return c
}

func lastMessage(t *testing.T, th *Thread) string {
	t.Helper()
	var info *ErrorInfo
	if st := GetLastErrorInfo(th, &info); st != StatusOK {
		t.Fatalf("GetLastErrorInfo = %s", st)
	}
	if info == nil {
		t.Fatal("no error info after a failure")
	}
	return info.Message()
}

func readText(t *testing.T, th *Thread, fn func(buf []byte, size *uint64) Status) string {
	t.Helper()
	var size uint64
	expect(t, th, fn(nil, &size), StatusOK, "size query")
	buf := make([]byte, size)
	expect(t, th, fn(buf, &size), StatusOK, "read")
	return string(buf[:size])
}

func TestStatusString(t *testing.T) {
	tests := map[Status]string{
		StatusOK:               "ok",
		StatusStringExpected:   "string_expected",
		StatusNumberExpected:   "number_expected",
		StatusBooleanExpected:  "boolean_expected",
		StatusArrayExpected:    "array_expected",
		StatusGenericFailure:   "generic_failure",
		StatusPendingException: "pending_exception",
		Status(99):             "unknown",
	}
	for s, want := range tests {
		if s.String() != want {
			t.Errorf("Status(%d).String() = %q, want %q", int32(s), s.String(), want)
		}
	}
}

func TestNilThread(t *testing.T) {
	var h handle.Handle
	if st := CreateEngine(nil, &h); st != StatusGenericFailure {
		t.Fatalf("CreateEngine(nil) = %s", st)
	}
	var info *ErrorInfo
	if st := GetLastErrorInfo(nil, &info); st != StatusGenericFailure {
		t.Fatalf("GetLastErrorInfo(nil) = %s", st)
	}
}

func TestHandleScopes_LIFO(t *testing.T) {
	iso, _ := newTestIsolate(t)
	th := attach(t, iso)
	ctx := newContext(t, th)

	expect(t, th, OpenHandleScope(th), StatusOK, "OpenHandleScope")
	var outer handle.Handle
	expect(t, th, CreateInt32(th, ctx, 1, &outer), StatusOK, "CreateInt32")

	expect(t, th, OpenHandleScope(th), StatusOK, "OpenHandleScope")
	var inner handle.Handle
	expect(t, th, CreateInt32(th, ctx, 2, &inner), StatusOK, "CreateInt32")

	var n int32
	expect(t, th, ValueAsInt32(th, inner, &n), StatusOK, "ValueAsInt32(inner)")
	expect(t, th, ValueAsInt32(th, outer, &n), StatusOK, "ValueAsInt32(outer)")

	expect(t, th, CloseHandleScope(th), StatusOK, "CloseHandleScope")
	if st := ValueAsInt32(th, inner, &n); st != StatusGenericFailure {
		t.Fatalf("inner after close = %s", st)
	}
	if msg := lastMessage(t, th); !strings.Contains(msg, "closed") {
		t.Errorf("message = %q", msg)
	}
	expect(t, th, ValueAsInt32(th, outer, &n), StatusOK, "ValueAsInt32(outer)")
	if n != 1 {
		t.Fatalf("outer = %d", n)
	}

	expect(t, th, CloseHandleScope(th), StatusOK, "CloseHandleScope")
	if st := ValueAsInt32(th, outer, &n); st != StatusGenericFailure {
		t.Fatalf("outer after close = %s", st)
	}
	expect(t, th, ValueIsNull(th, ctx, new(bool)), StatusGenericFailure, "context handle is not a value")
}

func TestHandleScopes_StaleSlot(t *testing.T) {
	iso, _ := newTestIsolate(t)
	th := attach(t, iso)
	ctx := newContext(t, th)

	expect(t, th, OpenHandleScope(th), StatusOK, "OpenHandleScope")
	var old handle.Handle
	expect(t, th, CreateInt32(th, ctx, 1, &old), StatusOK, "CreateInt32")
	expect(t, th, CloseHandleScope(th), StatusOK, "CloseHandleScope")

	expect(t, th, OpenHandleScope(th), StatusOK, "OpenHandleScope")
	var fresh handle.Handle
	expect(t, th, CreateInt32(th, ctx, 2, &fresh), StatusOK, "CreateInt32")
	if fresh.Index() != old.Index() {
		t.Fatalf("slot not reused: %v vs %v", fresh, old)
	}
	var n int32
	if st := ValueAsInt32(th, old, &n); st != StatusGenericFailure {
		t.Fatalf("stale handle resolved: %s, %d", st, n)
	}
}

func TestReference_SurvivesScope(t *testing.T) {
	iso, _ := newTestIsolate(t)
	th := attach(t, iso)
	ctx := newContext(t, th)

	expect(t, th, OpenHandleScope(th), StatusOK, "OpenHandleScope")
	var s, ref handle.Handle
	expect(t, th, CreateStringUTF8(th, ctx, []byte("kept"), AutoLength, &s), StatusOK, "CreateStringUTF8")
	expect(t, th, CreateReference(th, s, &ref), StatusOK, "CreateReference")
	expect(t, th, CloseHandleScope(th), StatusOK, "CloseHandleScope")

	if ref.Kind() != handle.KindPersistent {
		t.Fatalf("reference kind = %s", ref.Kind())
	}
	got := readText(t, th, func(buf []byte, size *uint64) Status { return ValueAsStringUTF8(th, ref, buf, size) })
	if got != "kept" {
		t.Fatalf("reference value = %q", got)
	}

	var again handle.Handle
	expect(t, th, CreateReference(th, ref, &again), StatusOK, "CreateReference(ref)")
	if again == ref {
		t.Fatal("promoting a reference must create a new one")
	}
	if iso.References() != 2 {
		t.Fatalf("References = %d", iso.References())
	}

	expect(t, th, DeleteReference(th, ref), StatusOK, "DeleteReference")
	if st := DeleteReference(th, ref); st != StatusGenericFailure {
		t.Fatalf("second delete = %s", st)
	}
	if msg := lastMessage(t, th); !strings.Contains(msg, "already deleted") {
		t.Errorf("message = %q", msg)
	}
	if st := ValueAsStringUTF8(th, ref, nil, new(uint64)); st != StatusGenericFailure {
		t.Fatalf("use after delete = %s", st)
	}
	expect(t, th, DeleteReference(th, again), StatusOK, "DeleteReference")

	if st := CreateReference(th, handle.Null, new(handle.Handle)); st != StatusGenericFailure {
		t.Fatalf("reference to null = %s", st)
	}
	if st := DeleteReference(th, s); st != StatusGenericFailure {
		t.Fatalf("deleting a scoped handle = %s", st)
	}
}

func TestErrorInfo_OneShot(t *testing.T) {
	iso, alloc := newTestIsolate(t)
	th := attach(t, iso)
	ctx := newContext(t, th)

	var info *ErrorInfo
	expect(t, th, GetLastErrorInfo(th, &info), StatusOK, "GetLastErrorInfo")
	if info != nil {
		t.Fatal("error info without a failure")
	}

	var s handle.Handle
	expect(t, th, CreateStringUTF8(th, ctx, []byte("x"), AutoLength, &s), StatusOK, "CreateStringUTF8")
	var f float64
	if st := ValueAsDouble(th, s, &f); st != StatusNumberExpected {
		t.Fatalf("ValueAsDouble(string) = %s", st)
	}

	expect(t, th, GetLastErrorInfo(th, &info), StatusOK, "GetLastErrorInfo")
	if info == nil {
		t.Fatal("first retrieval returned nil")
	}
	if info.Code != StatusNumberExpected {
		t.Errorf("Code = %s", info.Code)
	}
	if !strings.HasPrefix(info.Message(), "Number expected but got String") {
		t.Errorf("Message = %q", info.Message())
	}
	if !strings.Contains(info.Message(), "The full stack trace is:") {
		t.Errorf("Message has no trace: %q", info.Message())
	}
	if b := info.Block(); b[len(b)-1] != 0 {
		t.Error("block is not NUL terminated")
	}
	if alloc.Live() != 1 {
		t.Fatalf("live blocks = %d", alloc.Live())
	}

	var second *ErrorInfo
	expect(t, th, GetLastErrorInfo(th, &second), StatusOK, "GetLastErrorInfo")
	if second != nil {
		t.Fatal("second retrieval must return nil")
	}
	if alloc.Live() != 1 {
		t.Fatal("block freed while still readable")
	}

	// The next call supersedes the block.
	expect(t, th, ValueIsString(th, s, new(bool)), StatusOK, "ValueIsString")
	if alloc.Live() != 0 || alloc.Frees() != 1 {
		t.Fatalf("live = %d, frees = %d after reset", alloc.Live(), alloc.Frees())
	}
}

func TestErrorInfo_Panic(t *testing.T) {
	iso, _ := newTestIsolate(t)
	th := attach(t, iso)

	st := th.call("explode", func() error { panic("boom") })
	if st != StatusGenericFailure {
		t.Fatalf("panic status = %s", st)
	}
	msg := lastMessage(t, th)
	if !strings.HasPrefix(msg, "panic: boom") || !strings.Contains(msg, "goroutine") {
		t.Fatalf("message = %q", msg)
	}
}

func TestCreateString_TwoPass(t *testing.T) {
	iso, _ := newTestIsolate(t)
	th := attach(t, iso)
	ctx := newContext(t, th)

	var s handle.Handle
	expect(t, th, CreateStringUTF8(th, ctx, []byte("héllo\x00ignored"), AutoLength, &s), StatusOK, "CreateStringUTF8")

	var size uint64
	expect(t, th, ValueAsStringUTF8(th, s, nil, &size), StatusOK, "size query")
	if size != 6 {
		t.Fatalf("required size = %d, want 6", size)
	}
	buf := make([]byte, 6)
	expect(t, th, ValueAsStringUTF8(th, s, buf, &size), StatusOK, "read")
	if size != 6 || string(buf) != "héllo" {
		t.Fatalf("read %d bytes %q", size, buf)
	}

	big := []byte("##########")
	expect(t, th, ValueAsStringUTF8(th, s, big, &size), StatusOK, "read")
	if size != 6 || big[6] != 0 || big[7] != '#' {
		t.Fatalf("large buffer = %q (%d)", big, size)
	}

	small := make([]byte, 3)
	expect(t, th, ValueAsStringUTF8(th, s, small, &size), StatusOK, "read")
	if size != 3 || string(small) != "hé" {
		t.Fatalf("truncated read = %q (%d)", small, size)
	}

	expect(t, th, CreateStringUTF8(th, ctx, []byte("héllo"), 1, &s), StatusOK, "CreateStringUTF8")
	if got := readText(t, th, func(b []byte, n *uint64) Status { return ValueAsStringUTF8(th, s, b, n) }); got != "h" {
		t.Fatalf("explicit length = %q", got)
	}
	if st := CreateStringUTF8(th, ctx, []byte("ab"), 5, &s); st != StatusGenericFailure {
		t.Fatalf("length past the input = %s", st)
	}
}

func TestArrayExpected_NoWrite(t *testing.T) {
	iso, _ := newTestIsolate(t)
	th := attach(t, iso)
	ctx := newContext(t, th)

	var n handle.Handle
	expect(t, th, CreateInt32(th, ctx, 7, &n), StatusOK, "CreateInt32")

	sentinel := handle.Handle(0xABCDEF)
	result := sentinel
	if st := ValueGetArrayElement(th, n, 0, &result); st != StatusArrayExpected {
		t.Fatalf("ValueGetArrayElement(number) = %s", st)
	}
	if result != sentinel {
		t.Fatalf("result written: %v", result)
	}
	if msg := lastMessage(t, th); !strings.HasPrefix(msg, "Array expected but got Number") {
		t.Errorf("message = %q", msg)
	}

	var size int64 = -1
	if st := ValueGetArraySize(th, n, &size); st != StatusArrayExpected || size != -1 {
		t.Fatalf("ValueGetArraySize(number) = %s, %d", st, size)
	}
}

func TestValues(t *testing.T) {
	iso, _ := newTestIsolate(t)
	th := attach(t, iso)
	ctx := newContext(t, th)

	var one, two, arr handle.Handle
	expect(t, th, CreateInt8(th, ctx, 1, &one), StatusOK, "CreateInt8")
	expect(t, th, CreateDouble(th, ctx, 2, &two), StatusOK, "CreateDouble")
	expect(t, th, CreateArray(th, ctx, []handle.Handle{one, two, handle.Null}, &arr), StatusOK, "CreateArray")

	var size int64
	expect(t, th, ValueGetArraySize(th, arr, &size), StatusOK, "ValueGetArraySize")
	if size != 3 {
		t.Fatalf("size = %d", size)
	}
	text := readText(t, th, func(b []byte, n *uint64) Status { return ValueToStringUTF8(th, arr, b, n) })
	if text != "[1, 2, null]" {
		t.Fatalf("ToString = %q", text)
	}

	var removed bool
	expect(t, th, ValueRemoveArrayElement(th, arr, 2, &removed), StatusOK, "ValueRemoveArrayElement")
	var c handle.Handle
	expect(t, th, CreateCharacter(th, ctx, 'é', &c), StatusOK, "CreateCharacter")
	expect(t, th, ValueSetArrayElement(th, arr, 0, c), StatusOK, "ValueSetArrayElement")
	if st := ValueSetArrayElement(th, arr, 9, c); st != StatusGenericFailure {
		t.Fatalf("set out of bounds = %s", st)
	}

	var elem handle.Handle
	expect(t, th, ValueGetArrayElement(th, arr, 0, &elem), StatusOK, "ValueGetArrayElement")
	if got := readText(t, th, func(b []byte, n *uint64) Status { return ValueAsStringUTF8(th, elem, b, n) }); got != "é" {
		t.Fatalf("element 0 = %q", got)
	}

	var i8 int8
	var big handle.Handle
	expect(t, th, CreateInt64(th, ctx, 300, &big), StatusOK, "CreateInt64")
	if st := ValueAsInt8(th, big, &i8); st != StatusGenericFailure {
		t.Fatalf("ValueAsInt8(300) = %s", st)
	}
	var fits bool
	expect(t, th, ValueFitsInInt16(th, big, &fits), StatusOK, "ValueFitsInInt16")
	if !fits {
		t.Error("300 fits in int16")
	}
	var u16 uint16
	expect(t, th, ValueAsUint16(th, big, &u16), StatusOK, "ValueAsUint16")
	if u16 != 300 {
		t.Errorf("uint16 = %d", u16)
	}

	var b bool
	if st := ValueAsBoolean(th, big, &b); st != StatusBooleanExpected {
		t.Fatalf("ValueAsBoolean(number) = %s", st)
	}
	if st := ValueAsStringUTF8(th, big, nil, new(uint64)); st != StatusStringExpected {
		t.Fatalf("ValueAsStringUTF8(number) = %s", st)
	}
	var tr handle.Handle
	expect(t, th, CreateBoolean(th, ctx, true, &tr), StatusOK, "CreateBoolean")
	expect(t, th, ValueAsBoolean(th, tr, &b), StatusOK, "ValueAsBoolean")
	if !b {
		t.Error("boolean lost")
	}
	var f32 float32
	var half handle.Handle
	expect(t, th, CreateFloat(th, ctx, 0.5, &half), StatusOK, "CreateFloat")
	expect(t, th, ValueAsFloat(th, half, &f32), StatusOK, "ValueAsFloat")
	if f32 != 0.5 {
		t.Errorf("float = %v", f32)
	}

	var null handle.Handle
	expect(t, th, CreateNull(th, ctx, &null), StatusOK, "CreateNull")
	var isNull bool
	expect(t, th, ValueIsNull(th, null, &isNull), StatusOK, "ValueIsNull")
	if !isNull {
		t.Error("null is not null")
	}
}

func TestMembers(t *testing.T) {
	iso, _ := newTestIsolate(t)
	th := attach(t, iso)
	ctx := newContext(t, th)

	var obj, v handle.Handle
	expect(t, th, CreateObject(th, ctx, &obj), StatusOK, "CreateObject")
	expect(t, th, CreateUint32(th, ctx, 42, &v), StatusOK, "CreateUint32")
	expect(t, th, ValuePutMember(th, obj, "answer", v), StatusOK, "ValuePutMember")

	var has bool
	expect(t, th, ValueHasMember(th, obj, "answer", &has), StatusOK, "ValueHasMember")
	if !has {
		t.Fatal("member missing")
	}
	var m handle.Handle
	expect(t, th, ValueGetMember(th, obj, "answer", &m), StatusOK, "ValueGetMember")
	var u uint32
	expect(t, th, ValueAsUint32(th, m, &u), StatusOK, "ValueAsUint32")
	if u != 42 {
		t.Fatalf("answer = %d", u)
	}

	missing := handle.Handle(1)
	expect(t, th, ValueGetMember(th, obj, "nope", &missing), StatusOK, "ValueGetMember")
	if !missing.IsNull() {
		t.Fatalf("missing member = %v", missing)
	}
	if st := ValueGetMember(th, v, "x", &m); st != StatusGenericFailure {
		t.Fatalf("member of a number = %s", st)
	}
}

func TestEngineAndBuilders(t *testing.T) {
	iso, _ := newTestIsolate(t)
	th := attach(t, iso)

	var eb, eng handle.Handle
	expect(t, th, CreateEngineBuilder(th, []string{"sql", "jq"}, &eb), StatusOK, "CreateEngineBuilder")
	expect(t, th, EngineBuilderOption(th, eb, engine.OptionJQTimeout, "1s"), StatusOK, "EngineBuilderOption")
	expect(t, th, EngineBuilderBuild(th, eb, &eng), StatusOK, "EngineBuilderBuild")

	var count uint64
	expect(t, th, EngineGetLanguages(th, eng, nil, &count), StatusOK, "EngineGetLanguages")
	if count != 2 {
		t.Fatalf("language count = %d", count)
	}
	langs := make([]handle.Handle, count)
	expect(t, th, EngineGetLanguages(th, eng, langs, &count), StatusOK, "EngineGetLanguages")
	var ids []string
	for _, l := range langs {
		ids = append(ids, readText(t, th, func(b []byte, n *uint64) Status { return LanguageGetID(th, l, b, n) }))
	}
	if strings.Join(ids, ",") != "jq,sql" {
		t.Fatalf("languages = %v", ids)
	}

	var cb, ctx, got handle.Handle
	expect(t, th, CreateContextBuilder(th, []string{"jq"}, &cb), StatusOK, "CreateContextBuilder")
	expect(t, th, ContextBuilderEngine(th, cb, eng), StatusOK, "ContextBuilderEngine")
	expect(t, th, ContextBuilderAllowAllAccess(th, cb, false), StatusOK, "AllowAllAccess")
	expect(t, th, ContextBuilderAllowIO(th, cb, false), StatusOK, "AllowIO")
	expect(t, th, ContextBuilderAllowNativeAccess(th, cb, false), StatusOK, "AllowNativeAccess")
	expect(t, th, ContextBuilderAllowCreateThread(th, cb, false), StatusOK, "AllowCreateThread")
	expect(t, th, ContextBuilderAllowPolyglotAccess(th, cb, true), StatusOK, "AllowPolyglotAccess")
	expect(t, th, ContextBuilderAllowExperimentalOptions(th, cb, true), StatusOK, "AllowExperimentalOptions")
	expect(t, th, ContextBuilderOption(th, cb, "x.Trace", "on"), StatusOK, "ContextBuilderOption")
	expect(t, th, ContextBuilderBuild(th, cb, &ctx), StatusOK, "ContextBuilderBuild")
	expect(t, th, ContextGetEngine(th, ctx, &got), StatusOK, "ContextGetEngine")

	gotEngine, _ := th.resolve(got)
	wantEngine, _ := th.resolve(eng)
	if gotEngine != wantEngine {
		t.Fatal("context is not on the built engine")
	}

	var v handle.Handle
	expect(t, th, ContextEval(th, ctx, "jq", "sum", "[1, 2, 3] | add", &v), StatusOK, "ContextEval")
	var n int64
	expect(t, th, ValueAsInt64(th, v, &n), StatusOK, "ValueAsInt64")
	if n != 6 {
		t.Fatalf("sum = %d", n)
	}
	expect(t, th, ContextEval(th, ctx, "jq", "discard", "1", nil), StatusOK, "ContextEval without result")
	if st := ContextEval(th, ctx, "sql", "q", "SELECT 1", &v); st != StatusGenericFailure {
		t.Fatalf("eval of a non-permitted language = %s", st)
	}

	var pb handle.Handle
	expect(t, th, ContextGetPolyglotBindings(th, ctx, &pb), StatusOK, "ContextGetPolyglotBindings")
	expect(t, th, ContextGetBindings(th, ctx, "jq", &pb), StatusOK, "ContextGetBindings")

	if st := EngineBuilderOption(th, eb, "no.such", "1"); st != StatusOK {
		t.Fatalf("options are validated at build: %s", st)
	}
	if st := EngineBuilderBuild(th, eb, new(handle.Handle)); st != StatusGenericFailure {
		t.Fatalf("build with an unknown option = %s", st)
	}

	expect(t, th, EngineClose(th, eng, false), StatusOK, "EngineClose")
	if st := ContextEval(th, ctx, "jq", "q", "1", &v); st != StatusGenericFailure {
		t.Fatalf("eval after engine close = %s", st)
	}

	var def handle.Handle
	expect(t, th, CreateEngine(th, &def), StatusOK, "CreateEngine")
	expect(t, th, EngineClose(th, def, true), StatusOK, "EngineClose")
	if st := CreateEngine(th, nil); st != StatusGenericFailure {
		t.Fatalf("nil result = %s", st)
	}
}

func TestPendingException(t *testing.T) {
	iso, _ := newTestIsolate(t)
	th := attach(t, iso)
	ctx := newContext(t, th)

	var v handle.Handle
	if st := ContextEval(th, ctx, "jq", "broken", "[1,", &v); st != StatusPendingException {
		t.Fatalf("syntax error status = %s", st)
	}

	var ex handle.Handle
	expect(t, th, GetLastException(th, &ex), StatusOK, "GetLastException")
	if ex.IsNull() {
		t.Fatal("no pending exception")
	}
	var again handle.Handle
	expect(t, th, GetLastException(th, &again), StatusOK, "GetLastException")
	if !again.IsNull() {
		t.Fatal("exception retrieved twice")
	}

	var flag bool
	expect(t, th, ExceptionIsSyntaxError(th, ex, &flag), StatusOK, "ExceptionIsSyntaxError")
	if !flag {
		t.Error("not a syntax error")
	}
	expect(t, th, ExceptionIsCancelled(th, ex, &flag), StatusOK, "ExceptionIsCancelled")
	if flag {
		t.Error("cancelled")
	}
	expect(t, th, ExceptionIsInternalError(th, ex, &flag), StatusOK, "ExceptionIsInternalError")
	if flag {
		t.Error("internal error")
	}
	expect(t, th, ExceptionHasObject(th, ex, &flag), StatusOK, "ExceptionHasObject")
	if flag {
		t.Error("syntax error carries no guest object")
	}
	if st := ExceptionGetObject(th, ex, new(handle.Handle)); st != StatusGenericFailure {
		t.Fatalf("ExceptionGetObject without object = %s", st)
	}

	msg := readText(t, th, func(b []byte, n *uint64) Status { return ExceptionGetMessage(th, ex, b, n) })
	if msg == "" {
		t.Error("empty message")
	}
	trace := readText(t, th, func(b []byte, n *uint64) Status { return ExceptionGetStackTrace(th, ex, b, n) })
	if !strings.Contains(trace, "at ") {
		t.Errorf("stack trace = %q", trace)
	}
	readText(t, th, func(b []byte, n *uint64) Status { return ExceptionGetGuestStackTrace(th, ex, b, n) })

	if st := ValueIsNull(th, handle.Null, &flag); st != StatusGenericFailure {
		t.Fatalf("null value = %s", st)
	}
	expect(t, th, GetLastException(th, &ex), StatusOK, "GetLastException")
	if !ex.IsNull() {
		t.Fatal("generic failure must not leave an exception")
	}
}

func TestPendingException_GuestObject(t *testing.T) {
	iso, _ := newTestIsolate(t)
	th := attach(t, iso)
	ctx := newContext(t, th)

	if st := ContextEval(th, ctx, "jq", "raise", `error({"code": 7})`, nil); st != StatusPendingException {
		t.Fatalf("status = %s", st)
	}
	var ex, obj, code handle.Handle
	expect(t, th, GetLastException(th, &ex), StatusOK, "GetLastException")
	expect(t, th, ExceptionGetObject(th, ex, &obj), StatusOK, "ExceptionGetObject")
	expect(t, th, ValueGetMember(th, obj, "code", &code), StatusOK, "ValueGetMember")
	var n int32
	expect(t, th, ValueAsInt32(th, code, &n), StatusOK, "ValueAsInt32")
	if n != 7 {
		t.Fatalf("code = %d", n)
	}
}

// sumCallback adds its integer arguments and returns the total.
func sumCallback(ctx handle.Handle) Callback {
	return func(th *Thread, info handle.Handle) handle.Handle {
		args := make([]handle.Handle, 8)
		argc := len(args)
		var data any
		if GetCallbackInfo(th, info, &argc, args, &data) != StatusOK {
			return handle.Null
		}
		var total int64
		for _, a := range args[:argc] {
			var n int64
			if ValueAsInt64(th, a, &n) != StatusOK {
				ThrowException(th, "argument is not an integer")
				return handle.Null
			}
			total += n
		}
		if scale, ok := data.(int64); ok {
			total *= scale
		}
		var res handle.Handle
		CreateInt64(th, ctx, total, &res)
		return res
	}
}

func TestCallback_Funnel(t *testing.T) {
	iso, _ := newTestIsolate(t)
	th := attach(t, iso)
	ctx := newContext(t, th)

	var fn, bindings, v handle.Handle
	expect(t, th, CreateFunction(th, ctx, sumCallback(ctx), int64(10), &fn), StatusOK, "CreateFunction")
	expect(t, th, ContextGetBindings(th, ctx, "jq", &bindings), StatusOK, "ContextGetBindings")
	expect(t, th, ValuePutMember(th, bindings, "sum", fn), StatusOK, "ValuePutMember")

	var exec bool
	expect(t, th, ValueCanExecute(th, fn, &exec), StatusOK, "ValueCanExecute")
	if !exec {
		t.Fatal("function is not executable")
	}

	depth := th.Depth()
	before := iso.PerfSnapshot()[PerfCallbacks]
	expect(t, th, ContextEval(th, ctx, "jq", "call", `call("sum"; 2; 3)`, &v), StatusOK, "ContextEval")
	var n int64
	expect(t, th, ValueAsInt64(th, v, &n), StatusOK, "ValueAsInt64")
	if n != 50 {
		t.Fatalf("sum = %d", n)
	}
	if th.Depth() != depth {
		t.Fatalf("depth = %d after callback, want %d", th.Depth(), depth)
	}
	if iso.PerfSnapshot()[PerfCallbacks] != before+1 {
		t.Error("callback not counted")
	}

	var a, b handle.Handle
	expect(t, th, CreateInt32(th, ctx, 4, &a), StatusOK, "CreateInt32")
	expect(t, th, CreateInt32(th, ctx, 5, &b), StatusOK, "CreateInt32")
	expect(t, th, ValueExecute(th, fn, []handle.Handle{a, b}, &v), StatusOK, "ValueExecute")
	expect(t, th, ValueAsInt64(th, v, &n), StatusOK, "ValueAsInt64")
	if n != 90 {
		t.Fatalf("execute = %d", n)
	}

	var s handle.Handle
	expect(t, th, CreateStringUTF8(th, ctx, []byte("x"), AutoLength, &s), StatusOK, "CreateStringUTF8")
	if st := ValueExecute(th, fn, []handle.Handle{s}, &v); st != StatusPendingException {
		t.Fatalf("throwing callback = %s", st)
	}
	var ex handle.Handle
	expect(t, th, GetLastException(th, &ex), StatusOK, "GetLastException")
	if msg := readText(t, th, func(b []byte, n *uint64) Status { return ExceptionGetMessage(th, ex, b, n) }); msg != "argument is not an integer" {
		t.Fatalf("exception message = %q", msg)
	}
}

func TestCallback_LeakedScopesClosed(t *testing.T) {
	iso, _ := newTestIsolate(t)
	th := attach(t, iso)
	ctx := newContext(t, th)

	var leaked handle.Handle
	cb := func(th *Thread, info handle.Handle) handle.Handle {
		OpenHandleScope(th)
		OpenHandleScope(th)
		CreateInt32(th, ctx, 1, &leaked)
		return handle.Null
	}
	var fn, v handle.Handle
	expect(t, th, CreateFunction(th, ctx, cb, nil, &fn), StatusOK, "CreateFunction")

	depth := th.Depth()
	expect(t, th, ValueExecute(th, fn, nil, &v), StatusOK, "ValueExecute")
	if th.Depth() != depth {
		t.Fatalf("depth = %d, want %d", th.Depth(), depth)
	}
	var null bool
	expect(t, th, ValueIsNull(th, v, &null), StatusOK, "ValueIsNull")
	if !null {
		t.Fatal("null callback result")
	}
	if st := ValueAsInt32(th, leaked, new(int32)); st != StatusGenericFailure {
		t.Fatalf("handle from a closed callback scope = %s", st)
	}
}

func TestCallback_LastThrowWins(t *testing.T) {
	iso, _ := newTestIsolate(t)
	th := attach(t, iso)
	ctx := newContext(t, th)

	cb := func(th *Thread, info handle.Handle) handle.Handle {
		ThrowException(th, "first")
		ThrowException(th, "second")
		return handle.Null
	}
	var fn handle.Handle
	expect(t, th, CreateFunction(th, ctx, cb, nil, &fn), StatusOK, "CreateFunction")
	if st := ValueExecute(th, fn, nil, nil); st != StatusPendingException {
		t.Fatalf("status = %s", st)
	}
	var ex handle.Handle
	expect(t, th, GetLastException(th, &ex), StatusOK, "GetLastException")
	if msg := readText(t, th, func(b []byte, n *uint64) Status { return ExceptionGetMessage(th, ex, b, n) }); msg != "second" {
		t.Fatalf("message = %q", msg)
	}

	// Throw requests made outside a callback do not leak into the next one.
	expect(t, th, ThrowException(th, "stray"), StatusOK, "ThrowException")
	ok := func(th *Thread, info handle.Handle) handle.Handle { return handle.Null }
	expect(t, th, CreateFunction(th, ctx, ok, nil, &fn), StatusOK, "CreateFunction")
	expect(t, th, ValueExecute(th, fn, nil, nil), StatusOK, "ValueExecute")
}

func TestCallback_NestedKeepsOuterThrow(t *testing.T) {
	iso, _ := newTestIsolate(t)
	th := attach(t, iso)
	ctx := newContext(t, th)

	var inner, outer handle.Handle
	quiet := func(th *Thread, info handle.Handle) handle.Handle { return handle.Null }
	expect(t, th, CreateFunction(th, ctx, quiet, nil, &inner), StatusOK, "CreateFunction")

	var innerStatus Status
	cb := func(th *Thread, info handle.Handle) handle.Handle {
		ThrowException(th, "outer")
		innerStatus = ValueExecute(th, inner, nil, nil)
		return handle.Null
	}
	expect(t, th, CreateFunction(th, ctx, cb, nil, &outer), StatusOK, "CreateFunction")

	if st := ValueExecute(th, outer, nil, nil); st != StatusPendingException {
		t.Fatalf("status = %s", st)
	}
	if innerStatus != StatusOK {
		t.Fatalf("inner status = %s", innerStatus)
	}
	var ex handle.Handle
	expect(t, th, GetLastException(th, &ex), StatusOK, "GetLastException")
	if msg := readText(t, th, func(b []byte, n *uint64) Status { return ExceptionGetMessage(th, ex, b, n) }); msg != "outer" {
		t.Fatalf("message = %q", msg)
	}

	// The outer request does not outlive the outer callback.
	expect(t, th, ValueExecute(th, inner, nil, nil), StatusOK, "ValueExecute")
}

func TestCallback_InfoCapacity(t *testing.T) {
	iso, _ := newTestIsolate(t)
	th := attach(t, iso)
	ctx := newContext(t, th)

	var seen int
	cb := func(th *Thread, info handle.Handle) handle.Handle {
		argv := make([]handle.Handle, 1)
		argc := 1
		GetCallbackInfo(th, info, &argc, argv, nil)
		seen = argc
		return argv[0]
	}
	var fn, a, b, v handle.Handle
	expect(t, th, CreateFunction(th, ctx, cb, nil, &fn), StatusOK, "CreateFunction")
	expect(t, th, CreateInt32(th, ctx, 1, &a), StatusOK, "CreateInt32")
	expect(t, th, CreateInt32(th, ctx, 2, &b), StatusOK, "CreateInt32")
	expect(t, th, ValueExecute(th, fn, []handle.Handle{a, b}, &v), StatusOK, "ValueExecute")
	if seen != 1 {
		t.Fatalf("argc = %d, want capacity 1", seen)
	}
	var n int32
	expect(t, th, ValueAsInt32(th, v, &n), StatusOK, "ValueAsInt32")
	if n != 1 {
		t.Fatalf("echoed argument = %d", n)
	}
}

func TestRecurring_ThrowOnThirdFiring(t *testing.T) {
	iso, _ := newTestIsolate(t)
	th := attach(t, iso)
	ctx := newContext(t, th)

	firings := 0
	cb := func(th *Thread, info handle.Handle) handle.Handle {
		firings++
		if firings == 3 {
			ThrowException(th, "third firing")
		}
		return handle.Null
	}
	expect(t, th, RegisterRecurringCallback(th, time.Hour, cb, nil), StatusOK, "RegisterRecurringCallback")

	var v handle.Handle
	for i := 1; i <= 2; i++ {
		th.recurring.due.Store(true)
		expect(t, th, ContextEval(th, ctx, "jq", "tick", "1", &v), StatusOK, "ContextEval")
	}
	th.recurring.due.Store(true)
	if st := ContextEval(th, ctx, "jq", "tick", "1", &v); st != StatusPendingException {
		t.Fatalf("third firing status = %s", st)
	}
	if firings != 3 {
		t.Fatalf("firings = %d", firings)
	}

	var ex handle.Handle
	expect(t, th, GetLastException(th, &ex), StatusOK, "GetLastException")
	if msg := readText(t, th, func(b []byte, n *uint64) Status { return ExceptionGetMessage(th, ex, b, n) }); msg != "third firing" {
		t.Fatalf("message = %q", msg)
	}
	expect(t, th, GetLastException(th, &ex), StatusOK, "GetLastException")
	if !ex.IsNull() {
		t.Fatal("exception retrieved twice")
	}

	// Without a due tick nothing fires.
	expect(t, th, ContextEval(th, ctx, "jq", "tick", "1", &v), StatusOK, "ContextEval")
	if firings != 3 {
		t.Fatalf("fired without a tick: %d", firings)
	}

	expect(t, th, RegisterRecurringCallback(th, 0, nil, nil), StatusOK, "unregister")
	if th.recurring != nil {
		t.Fatal("still registered")
	}
}

func TestRecurring_Timer(t *testing.T) {
	iso, _ := newTestIsolate(t)
	th := attach(t, iso)
	ctx := newContext(t, th)

	firings := 0
	cb := func(th *Thread, info handle.Handle) handle.Handle {
		firings++
		if firings == 3 {
			ThrowException(th, "stop")
		}
		return handle.Null
	}
	expect(t, th, RegisterRecurringCallback(th, time.Millisecond, cb, nil), StatusOK, "RegisterRecurringCallback")

	deadline := time.Now().Add(5 * time.Second)
	for {
		st := ContextEval(th, ctx, "jq", "tick", "1", nil)
		if st == StatusPendingException {
			break
		}
		if st != StatusOK {
			t.Fatalf("eval = %s", st)
		}
		if time.Now().After(deadline) {
			t.Fatalf("recurring callback never threw, firings = %d", firings)
		}
		time.Sleep(2 * time.Millisecond)
	}
	if firings != 3 {
		t.Fatalf("firings = %d", firings)
	}
}

func TestRecurring_Disabled(t *testing.T) {
	iso, _ := newTestIsolate(t, func(c *Config) { c.RecurringCallbacks = false })
	th := attach(t, iso)

	cb := func(th *Thread, info handle.Handle) handle.Handle { return handle.Null }
	if st := RegisterRecurringCallback(th, time.Second, cb, nil); st != StatusGenericFailure {
		t.Fatalf("status = %s", st)
	}
}

func TestRecurring_PausedDuringReset(t *testing.T) {
	iso, _ := newTestIsolate(t)
	th := attach(t, iso)

	fired := false
	cb := func(th *Thread, info handle.Handle) handle.Handle {
		fired = true
		return handle.Null
	}
	expect(t, th, RegisterRecurringCallback(th, time.Hour, cb, nil), StatusOK, "RegisterRecurringCallback")
	th.recurring.due.Store(true)

	th.pauseRecurring()
	if err := th.safepoint(th.evalContext()); err != nil || fired {
		t.Fatalf("fired while paused: %v", err)
	}
	th.resumeRecurring()
	if err := th.safepoint(th.evalContext()); err != nil || !fired {
		t.Fatalf("did not fire after resume: %v", err)
	}
}

func TestConcurrentThreads(t *testing.T) {
	iso, _ := newTestIsolate(t)

	const workers = 8
	const cycles = 10000

	var published, shared [workers]handle.Handle
	var ready, checked, done sync.WaitGroup
	ready.Add(workers)
	checked.Add(workers)
	done.Add(workers)
	var failures atomic.Int32

	for w := 0; w < workers; w++ {
		go func(w int) {
			defer done.Done()
			release := sync.OnceFunc(checked.Done)
			defer release()
			th, err := iso.AttachThread()
			if err != nil {
				failures.Add(1)
				ready.Done()
				return
			}
			defer th.Detach()

			var ctx handle.Handle
			if CreateContext(th, []string{"jq"}, &ctx) != StatusOK {
				failures.Add(1)
				ready.Done()
				return
			}
			defer ContextClose(th, ctx, true)

			var mine handle.Handle
			CreateInt32(th, ctx, int32(w), &mine)
			published[w] = mine
			if CreateReference(th, mine, &shared[w]) != StatusOK {
				failures.Add(1)
			}
			ready.Done()

			for i := 0; i < cycles; i++ {
				var h, ref handle.Handle
				var n int32
				if OpenHandleScope(th) != StatusOK ||
					CreateInt32(th, ctx, int32(i), &h) != StatusOK ||
					ValueAsInt32(th, h, &n) != StatusOK || n != int32(i) {
					failures.Add(1)
					return
				}
				if i%10 == 0 && CreateReference(th, h, &ref) != StatusOK {
					failures.Add(1)
					return
				}
				if CloseHandleScope(th) != StatusOK {
					failures.Add(1)
					return
				}
				if i%10 == 0 {
					var got int32
					if ValueAsInt32(th, ref, &got) != StatusOK || got != int32(i) ||
						DeleteReference(th, ref) != StatusOK {
						failures.Add(1)
						return
					}
				}
			}

			ready.Wait()
			for other := range workers {
				if other == w {
					continue
				}
				var n int32
				if ValueAsInt32(th, published[other], &n) == StatusOK {
					failures.Add(1)
				}
				if ValueAsInt32(th, shared[other], &n) != StatusOK || n != int32(other) {
					failures.Add(1)
				}
			}
			release()
			checked.Wait()
			if DeleteReference(th, shared[w]) != StatusOK {
				failures.Add(1)
			}
		}(w)
	}
	done.Wait()

	if n := failures.Load(); n != 0 {
		t.Fatalf("%d workers observed a violation", n)
	}
	if iso.References() != 0 {
		t.Fatalf("references leaked: %d", iso.References())
	}
	snap := iso.PerfSnapshot()
	if snap[PerfReferencesLive] != 0 {
		t.Fatalf("live reference counter = %d", snap[PerfReferencesLive])
	}
	if snap[PerfCalls] < workers*cycles*4 {
		t.Fatalf("calls = %d", snap[PerfCalls])
	}
}

func TestPerfData(t *testing.T) {
	iso, _ := newTestIsolate(t)
	th := attach(t, iso)
	ctx := newContext(t, th)

	var live *int64
	expect(t, th, PerfDataGetAddressOfInt64(th, PerfReferencesLive, &live), StatusOK, "PerfDataGetAddressOfInt64")
	var v, ref handle.Handle
	expect(t, th, CreateNull(th, ctx, &v), StatusOK, "CreateNull")
	expect(t, th, CreateReference(th, v, &ref), StatusOK, "CreateReference")
	if atomic.LoadInt64(live) != 1 {
		t.Fatalf("live references = %d", atomic.LoadInt64(live))
	}
	expect(t, th, DeleteReference(th, ref), StatusOK, "DeleteReference")
	if atomic.LoadInt64(live) != 0 {
		t.Fatalf("live references = %d", atomic.LoadInt64(live))
	}

	var calls *int64
	expect(t, th, PerfDataGetAddressOfInt64(th, PerfCalls, &calls), StatusOK, "PerfDataGetAddressOfInt64")
	before := atomic.LoadInt64(calls)
	expect(t, th, OpenHandleScope(th), StatusOK, "OpenHandleScope")
	if atomic.LoadInt64(calls) != before+1 {
		t.Error("calls counter did not move")
	}

	var failures *int64
	expect(t, th, PerfDataGetAddressOfInt64(th, PerfFailures, &failures), StatusOK, "PerfDataGetAddressOfInt64")
	var p *int64
	if st := PerfDataGetAddressOfInt64(th, "polyglot.bogus", &p); st != StatusGenericFailure {
		t.Fatalf("unknown key = %s", st)
	}
	if atomic.LoadInt64(failures) == 0 {
		t.Error("failure not counted")
	}
	if msg := lastMessage(t, th); !strings.Contains(msg, "polyglot.bogus is not a valid performance data entry key") {
		t.Errorf("message = %q", msg)
	}
}

func TestContextCloseAsync(t *testing.T) {
	iso, _ := newTestIsolate(t)
	th := attach(t, iso)
	ctx := newContext(t, th)

	obj, err := th.resolve(ctx)
	if err != nil {
		t.Fatal(err)
	}
	c := obj.(*engine.Context)

	expect(t, th, ContextCloseAsync(th, ctx), StatusOK, "ContextCloseAsync")
	if err := iso.Close(); err != nil {
		t.Fatalf("Isolate.Close: %v", err)
	}
	if !c.Closed() {
		t.Fatal("context still open after the isolate drained")
	}
	if _, err := iso.AttachThread(); err == nil {
		t.Fatal("attached to a closed isolate")
	}
	if st := OpenHandleScope(th); st != StatusGenericFailure {
		t.Fatalf("call after isolate close = %s", st)
	}
}

func TestIsolateClose_AttachedThreads(t *testing.T) {
	iso, _ := newTestIsolate(t)
	th, err := iso.AttachThread()
	if err != nil {
		t.Fatal(err)
	}

	noop := func(th *Thread, info handle.Handle) handle.Handle { return handle.Null }
	expect(t, th, RegisterRecurringCallback(th, time.Millisecond, noop, nil), StatusOK, "RegisterRecurringCallback")
	expect(t, th, OpenHandleScope(th), StatusOK, "OpenHandleScope")
	r := th.recurring

	if err := iso.Close(); err != nil {
		t.Fatalf("Isolate.Close: %v", err)
	}
	select {
	case <-r.done:
	case <-time.After(5 * time.Second):
		t.Fatal("recurring timer still running after close")
	}
	if th.detached || th.Depth() != 2 {
		t.Fatalf("close touched the thread: detached=%v depth=%d", th.detached, th.Depth())
	}

	expect(t, th, CloseHandleScope(th), StatusGenericFailure, "CloseHandleScope")
	if msg := lastMessage(t, th); !strings.Contains(msg, "isolate is closed") {
		t.Fatalf("message = %q", msg)
	}

	th.Detach()
	if !th.detached || th.recurring != nil {
		t.Fatal("detach after close did not release the thread")
	}
}

func TestContextClose(t *testing.T) {
	iso, _ := newTestIsolate(t)
	th := attach(t, iso)
	ctx := newContext(t, th)

	expect(t, th, ContextClose(th, ctx, false), StatusOK, "ContextClose")
	var v handle.Handle
	if st := ContextEval(th, ctx, "jq", "q", "1", &v); st != StatusGenericFailure {
		t.Fatalf("eval on closed context = %s", st)
	}
	if st := CreateInt32(th, ctx, 1, &v); st != StatusGenericFailure {
		t.Fatalf("create on closed context = %s", st)
	}
}

func TestNoOpenScope(t *testing.T) {
	iso, _ := newTestIsolate(t)
	th := attach(t, iso)

	expect(t, th, CloseHandleScope(th), StatusOK, "close base scope")
	if st := CloseHandleScope(th); st != StatusGenericFailure {
		t.Fatalf("close with no scope = %s", st)
	}
	var ctx handle.Handle
	if st := CreateContext(th, nil, &ctx); st != StatusGenericFailure {
		t.Fatalf("create with no scope = %s", st)
	}
	expect(t, th, OpenHandleScope(th), StatusOK, "OpenHandleScope")
}

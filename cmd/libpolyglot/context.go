package main

/*
#include "polyglot.h"
*/
import "C"

import (
	"github.com/wippyai/polyglot-native/handle"
	"github.com/wippyai/polyglot-native/nativeapi"
)

//export poly_create_engine_builder
func poly_create_engine_builder(thread C.poly_thread, permitted **C.char, length C.size_t, result *C.poly_handle) C.poly_status {
	return status(nativeapi.CreateEngineBuilder(threadOf(thread), stringsIn(permitted, length), handleOut(result)))
}

//export poly_engine_builder_option
func poly_engine_builder_option(thread C.poly_thread, builder C.poly_handle, key, value *C.char) C.poly_status {
	return status(nativeapi.EngineBuilderOption(threadOf(thread), handleIn(builder), C.GoString(key), C.GoString(value)))
}

//export poly_engine_builder_build
func poly_engine_builder_build(thread C.poly_thread, builder C.poly_handle, result *C.poly_handle) C.poly_status {
	return status(nativeapi.EngineBuilderBuild(threadOf(thread), handleIn(builder), handleOut(result)))
}

//export poly_create_engine
func poly_create_engine(thread C.poly_thread, result *C.poly_handle) C.poly_status {
	return status(nativeapi.CreateEngine(threadOf(thread), handleOut(result)))
}

//export poly_engine_close
func poly_engine_close(thread C.poly_thread, engine C.poly_handle, cancelIfExecuting C.bool) C.poly_status {
	return status(nativeapi.EngineClose(threadOf(thread), handleIn(engine), bool(cancelIfExecuting)))
}

// poly_engine_get_languages stores the number of languages in size when
// languages is NULL; otherwise it fills up to *size entries.
//
//export poly_engine_get_languages
func poly_engine_get_languages(thread C.poly_thread, engine C.poly_handle, languages *C.poly_handle, size *C.size_t) C.poly_status {
	var buf []handle.Handle
	if size != nil {
		buf = handlesIn(languages, *size)
	}
	return status(nativeapi.EngineGetLanguages(threadOf(thread), handleIn(engine), buf, sizeOut(size)))
}

//export poly_language_get_id
func poly_language_get_id(thread C.poly_thread, language C.poly_handle, buf *C.char, size C.size_t, result *C.size_t) C.poly_status {
	return status(nativeapi.LanguageGetID(threadOf(thread), handleIn(language), bufferOut(buf, size), sizeOut(result)))
}

//export poly_create_context_builder
func poly_create_context_builder(thread C.poly_thread, permitted **C.char, length C.size_t, result *C.poly_handle) C.poly_status {
	return status(nativeapi.CreateContextBuilder(threadOf(thread), stringsIn(permitted, length), handleOut(result)))
}

//export poly_context_builder_engine
func poly_context_builder_engine(thread C.poly_thread, builder, engine C.poly_handle) C.poly_status {
	return status(nativeapi.ContextBuilderEngine(threadOf(thread), handleIn(builder), handleIn(engine)))
}

//export poly_context_builder_option
func poly_context_builder_option(thread C.poly_thread, builder C.poly_handle, key, value *C.char) C.poly_status {
	return status(nativeapi.ContextBuilderOption(threadOf(thread), handleIn(builder), C.GoString(key), C.GoString(value)))
}

//export poly_context_builder_allow_all_access
func poly_context_builder_allow_all_access(thread C.poly_thread, builder C.poly_handle, allow C.bool) C.poly_status {
	return status(nativeapi.ContextBuilderAllowAllAccess(threadOf(thread), handleIn(builder), bool(allow)))
}

//export poly_context_builder_allow_io
func poly_context_builder_allow_io(thread C.poly_thread, builder C.poly_handle, allow C.bool) C.poly_status {
	return status(nativeapi.ContextBuilderAllowIO(threadOf(thread), handleIn(builder), bool(allow)))
}

//export poly_context_builder_allow_native_access
func poly_context_builder_allow_native_access(thread C.poly_thread, builder C.poly_handle, allow C.bool) C.poly_status {
	return status(nativeapi.ContextBuilderAllowNativeAccess(threadOf(thread), handleIn(builder), bool(allow)))
}

//export poly_context_builder_allow_polyglot_access
func poly_context_builder_allow_polyglot_access(thread C.poly_thread, builder C.poly_handle, allow C.bool) C.poly_status {
	return status(nativeapi.ContextBuilderAllowPolyglotAccess(threadOf(thread), handleIn(builder), bool(allow)))
}

//export poly_context_builder_allow_create_thread
func poly_context_builder_allow_create_thread(thread C.poly_thread, builder C.poly_handle, allow C.bool) C.poly_status {
	return status(nativeapi.ContextBuilderAllowCreateThread(threadOf(thread), handleIn(builder), bool(allow)))
}

//export poly_context_builder_allow_experimental_options
func poly_context_builder_allow_experimental_options(thread C.poly_thread, builder C.poly_handle, allow C.bool) C.poly_status {
	return status(nativeapi.ContextBuilderAllowExperimentalOptions(threadOf(thread), handleIn(builder), bool(allow)))
}

//export poly_context_builder_build
func poly_context_builder_build(thread C.poly_thread, builder C.poly_handle, result *C.poly_handle) C.poly_status {
	return status(nativeapi.ContextBuilderBuild(threadOf(thread), handleIn(builder), handleOut(result)))
}

//export poly_create_context
func poly_create_context(thread C.poly_thread, permitted **C.char, length C.size_t, result *C.poly_handle) C.poly_status {
	return status(nativeapi.CreateContext(threadOf(thread), stringsIn(permitted, length), handleOut(result)))
}

//export poly_context_close
func poly_context_close(thread C.poly_thread, context C.poly_handle, cancelIfExecuting C.bool) C.poly_status {
	return status(nativeapi.ContextClose(threadOf(thread), handleIn(context), bool(cancelIfExecuting)))
}

//export poly_context_close_async
func poly_context_close_async(thread C.poly_thread, context C.poly_handle) C.poly_status {
	return status(nativeapi.ContextCloseAsync(threadOf(thread), handleIn(context)))
}

// poly_context_eval evaluates source in the language. result may be NULL.
//
//export poly_context_eval
func poly_context_eval(thread C.poly_thread, context C.poly_handle, languageID, name, source *C.char, result *C.poly_handle) C.poly_status {
	return status(nativeapi.ContextEval(threadOf(thread), handleIn(context),
		C.GoString(languageID), C.GoString(name), C.GoString(source), handleOut(result)))
}

//export poly_context_get_engine
func poly_context_get_engine(thread C.poly_thread, context C.poly_handle, result *C.poly_handle) C.poly_status {
	return status(nativeapi.ContextGetEngine(threadOf(thread), handleIn(context), handleOut(result)))
}

//export poly_context_get_bindings
func poly_context_get_bindings(thread C.poly_thread, context C.poly_handle, languageID *C.char, result *C.poly_handle) C.poly_status {
	return status(nativeapi.ContextGetBindings(threadOf(thread), handleIn(context), C.GoString(languageID), handleOut(result)))
}

//export poly_context_get_polyglot_bindings
func poly_context_get_polyglot_bindings(thread C.poly_thread, context C.poly_handle, result *C.poly_handle) C.poly_status {
	return status(nativeapi.ContextGetPolyglotBindings(threadOf(thread), handleIn(context), handleOut(result)))
}

package main

/*
#include "polyglot.h"
*/
import "C"

import (
	"github.com/wippyai/polyglot-native/nativeapi"
)

//export poly_value_can_execute
func poly_value_can_execute(thread C.poly_thread, value C.poly_handle, result *C.bool) C.poly_status {
	return status(nativeapi.ValueCanExecute(threadOf(thread), handleIn(value), boolOut(result)))
}

// poly_value_execute calls value with argc arguments. result may be NULL.
//
//export poly_value_execute
func poly_value_execute(thread C.poly_thread, value C.poly_handle, args *C.poly_handle, argc C.size_t, result *C.poly_handle) C.poly_status {
	return status(nativeapi.ValueExecute(threadOf(thread), handleIn(value), handlesIn(args, argc), handleOut(result)))
}

//export poly_value_get_member
func poly_value_get_member(thread C.poly_thread, value C.poly_handle, identifier *C.char, result *C.poly_handle) C.poly_status {
	return status(nativeapi.ValueGetMember(threadOf(thread), handleIn(value), C.GoString(identifier), handleOut(result)))
}

//export poly_value_put_member
func poly_value_put_member(thread C.poly_thread, value C.poly_handle, identifier *C.char, member C.poly_handle) C.poly_status {
	return status(nativeapi.ValuePutMember(threadOf(thread), handleIn(value), C.GoString(identifier), handleIn(member)))
}

//export poly_value_has_member
func poly_value_has_member(thread C.poly_thread, value C.poly_handle, identifier *C.char, result *C.bool) C.poly_status {
	return status(nativeapi.ValueHasMember(threadOf(thread), handleIn(value), C.GoString(identifier), boolOut(result)))
}

//export poly_create_boolean
func poly_create_boolean(thread C.poly_thread, context C.poly_handle, value C.bool, result *C.poly_handle) C.poly_status {
	return status(nativeapi.CreateBoolean(threadOf(thread), handleIn(context), bool(value), handleOut(result)))
}

//export poly_create_int8
func poly_create_int8(thread C.poly_thread, context C.poly_handle, value C.int8_t, result *C.poly_handle) C.poly_status {
	return status(nativeapi.CreateInt8(threadOf(thread), handleIn(context), int8(value), handleOut(result)))
}

//export poly_create_int16
func poly_create_int16(thread C.poly_thread, context C.poly_handle, value C.int16_t, result *C.poly_handle) C.poly_status {
	return status(nativeapi.CreateInt16(threadOf(thread), handleIn(context), int16(value), handleOut(result)))
}

//export poly_create_int32
func poly_create_int32(thread C.poly_thread, context C.poly_handle, value C.int32_t, result *C.poly_handle) C.poly_status {
	return status(nativeapi.CreateInt32(threadOf(thread), handleIn(context), int32(value), handleOut(result)))
}

//export poly_create_int64
func poly_create_int64(thread C.poly_thread, context C.poly_handle, value C.int64_t, result *C.poly_handle) C.poly_status {
	return status(nativeapi.CreateInt64(threadOf(thread), handleIn(context), int64(value), handleOut(result)))
}

//export poly_create_uint8
func poly_create_uint8(thread C.poly_thread, context C.poly_handle, value C.uint8_t, result *C.poly_handle) C.poly_status {
	return status(nativeapi.CreateUint8(threadOf(thread), handleIn(context), uint8(value), handleOut(result)))
}

//export poly_create_uint16
func poly_create_uint16(thread C.poly_thread, context C.poly_handle, value C.uint16_t, result *C.poly_handle) C.poly_status {
	return status(nativeapi.CreateUint16(threadOf(thread), handleIn(context), uint16(value), handleOut(result)))
}

//export poly_create_uint32
func poly_create_uint32(thread C.poly_thread, context C.poly_handle, value C.uint32_t, result *C.poly_handle) C.poly_status {
	return status(nativeapi.CreateUint32(threadOf(thread), handleIn(context), uint32(value), handleOut(result)))
}

//export poly_create_float
func poly_create_float(thread C.poly_thread, context C.poly_handle, value C.float, result *C.poly_handle) C.poly_status {
	return status(nativeapi.CreateFloat(threadOf(thread), handleIn(context), float32(value), handleOut(result)))
}

//export poly_create_double
func poly_create_double(thread C.poly_thread, context C.poly_handle, value C.double, result *C.poly_handle) C.poly_status {
	return status(nativeapi.CreateDouble(threadOf(thread), handleIn(context), float64(value), handleOut(result)))
}

// poly_create_character creates a one-character string from a Unicode
// code point.
//
//export poly_create_character
func poly_create_character(thread C.poly_thread, context C.poly_handle, character C.uint32_t, result *C.poly_handle) C.poly_status {
	return status(nativeapi.CreateCharacter(threadOf(thread), handleIn(context), rune(character), handleOut(result)))
}

//export poly_create_string_utf8
func poly_create_string_utf8(thread C.poly_thread, context C.poly_handle, str *C.char, length C.size_t, result *C.poly_handle) C.poly_status {
	s, n := stringIn(str, length)
	return status(nativeapi.CreateStringUTF8(threadOf(thread), handleIn(context), s, n, handleOut(result)))
}

//export poly_create_null
func poly_create_null(thread C.poly_thread, context C.poly_handle, result *C.poly_handle) C.poly_status {
	return status(nativeapi.CreateNull(threadOf(thread), handleIn(context), handleOut(result)))
}

//export poly_create_object
func poly_create_object(thread C.poly_thread, context C.poly_handle, result *C.poly_handle) C.poly_status {
	return status(nativeapi.CreateObject(threadOf(thread), handleIn(context), handleOut(result)))
}

//export poly_create_array
func poly_create_array(thread C.poly_thread, context C.poly_handle, values *C.poly_handle, size C.size_t, result *C.poly_handle) C.poly_status {
	return status(nativeapi.CreateArray(threadOf(thread), handleIn(context), handlesIn(values, size), handleOut(result)))
}

//export poly_value_has_array_elements
func poly_value_has_array_elements(thread C.poly_thread, value C.poly_handle, result *C.bool) C.poly_status {
	return status(nativeapi.ValueHasArrayElements(threadOf(thread), handleIn(value), boolOut(result)))
}

//export poly_value_get_array_element
func poly_value_get_array_element(thread C.poly_thread, value C.poly_handle, index C.int64_t, result *C.poly_handle) C.poly_status {
	return status(nativeapi.ValueGetArrayElement(threadOf(thread), handleIn(value), int64(index), handleOut(result)))
}

//export poly_value_set_array_element
func poly_value_set_array_element(thread C.poly_thread, value C.poly_handle, index C.int64_t, element C.poly_handle) C.poly_status {
	return status(nativeapi.ValueSetArrayElement(threadOf(thread), handleIn(value), int64(index), handleIn(element)))
}

//export poly_value_remove_array_element
func poly_value_remove_array_element(thread C.poly_thread, value C.poly_handle, index C.int64_t, result *C.bool) C.poly_status {
	return status(nativeapi.ValueRemoveArrayElement(threadOf(thread), handleIn(value), int64(index), boolOut(result)))
}

//export poly_value_get_array_size
func poly_value_get_array_size(thread C.poly_thread, value C.poly_handle, result *C.int64_t) C.poly_status {
	return status(nativeapi.ValueGetArraySize(threadOf(thread), handleIn(value), cast[int64](result)))
}

//export poly_value_is_null
func poly_value_is_null(thread C.poly_thread, value C.poly_handle, result *C.bool) C.poly_status {
	return status(nativeapi.ValueIsNull(threadOf(thread), handleIn(value), boolOut(result)))
}

//export poly_value_is_boolean
func poly_value_is_boolean(thread C.poly_thread, value C.poly_handle, result *C.bool) C.poly_status {
	return status(nativeapi.ValueIsBoolean(threadOf(thread), handleIn(value), boolOut(result)))
}

//export poly_value_is_string
func poly_value_is_string(thread C.poly_thread, value C.poly_handle, result *C.bool) C.poly_status {
	return status(nativeapi.ValueIsString(threadOf(thread), handleIn(value), boolOut(result)))
}

//export poly_value_is_number
func poly_value_is_number(thread C.poly_thread, value C.poly_handle, result *C.bool) C.poly_status {
	return status(nativeapi.ValueIsNumber(threadOf(thread), handleIn(value), boolOut(result)))
}

//export poly_value_fits_in_float
func poly_value_fits_in_float(thread C.poly_thread, value C.poly_handle, result *C.bool) C.poly_status {
	return status(nativeapi.ValueFitsInFloat(threadOf(thread), handleIn(value), boolOut(result)))
}

//export poly_value_fits_in_double
func poly_value_fits_in_double(thread C.poly_thread, value C.poly_handle, result *C.bool) C.poly_status {
	return status(nativeapi.ValueFitsInDouble(threadOf(thread), handleIn(value), boolOut(result)))
}

//export poly_value_fits_in_int8
func poly_value_fits_in_int8(thread C.poly_thread, value C.poly_handle, result *C.bool) C.poly_status {
	return status(nativeapi.ValueFitsInInt8(threadOf(thread), handleIn(value), boolOut(result)))
}

//export poly_value_fits_in_int16
func poly_value_fits_in_int16(thread C.poly_thread, value C.poly_handle, result *C.bool) C.poly_status {
	return status(nativeapi.ValueFitsInInt16(threadOf(thread), handleIn(value), boolOut(result)))
}

//export poly_value_fits_in_int32
func poly_value_fits_in_int32(thread C.poly_thread, value C.poly_handle, result *C.bool) C.poly_status {
	return status(nativeapi.ValueFitsInInt32(threadOf(thread), handleIn(value), boolOut(result)))
}

//export poly_value_fits_in_int64
func poly_value_fits_in_int64(thread C.poly_thread, value C.poly_handle, result *C.bool) C.poly_status {
	return status(nativeapi.ValueFitsInInt64(threadOf(thread), handleIn(value), boolOut(result)))
}

//export poly_value_fits_in_uint8
func poly_value_fits_in_uint8(thread C.poly_thread, value C.poly_handle, result *C.bool) C.poly_status {
	return status(nativeapi.ValueFitsInUint8(threadOf(thread), handleIn(value), boolOut(result)))
}

//export poly_value_fits_in_uint16
func poly_value_fits_in_uint16(thread C.poly_thread, value C.poly_handle, result *C.bool) C.poly_status {
	return status(nativeapi.ValueFitsInUint16(threadOf(thread), handleIn(value), boolOut(result)))
}

//export poly_value_fits_in_uint32
func poly_value_fits_in_uint32(thread C.poly_thread, value C.poly_handle, result *C.bool) C.poly_status {
	return status(nativeapi.ValueFitsInUint32(threadOf(thread), handleIn(value), boolOut(result)))
}

//export poly_value_as_string_utf8
func poly_value_as_string_utf8(thread C.poly_thread, value C.poly_handle, buf *C.char, size C.size_t, result *C.size_t) C.poly_status {
	return status(nativeapi.ValueAsStringUTF8(threadOf(thread), handleIn(value), bufferOut(buf, size), sizeOut(result)))
}

//export poly_value_to_string_utf8
func poly_value_to_string_utf8(thread C.poly_thread, value C.poly_handle, buf *C.char, size C.size_t, result *C.size_t) C.poly_status {
	return status(nativeapi.ValueToStringUTF8(threadOf(thread), handleIn(value), bufferOut(buf, size), sizeOut(result)))
}

//export poly_value_as_boolean
func poly_value_as_boolean(thread C.poly_thread, value C.poly_handle, result *C.bool) C.poly_status {
	return status(nativeapi.ValueAsBoolean(threadOf(thread), handleIn(value), boolOut(result)))
}

//export poly_value_as_int8
func poly_value_as_int8(thread C.poly_thread, value C.poly_handle, result *C.int8_t) C.poly_status {
	return status(nativeapi.ValueAsInt8(threadOf(thread), handleIn(value), cast[int8](result)))
}

//export poly_value_as_int16
func poly_value_as_int16(thread C.poly_thread, value C.poly_handle, result *C.int16_t) C.poly_status {
	return status(nativeapi.ValueAsInt16(threadOf(thread), handleIn(value), cast[int16](result)))
}

//export poly_value_as_int32
func poly_value_as_int32(thread C.poly_thread, value C.poly_handle, result *C.int32_t) C.poly_status {
	return status(nativeapi.ValueAsInt32(threadOf(thread), handleIn(value), cast[int32](result)))
}

//export poly_value_as_int64
func poly_value_as_int64(thread C.poly_thread, value C.poly_handle, result *C.int64_t) C.poly_status {
	return status(nativeapi.ValueAsInt64(threadOf(thread), handleIn(value), cast[int64](result)))
}

//export poly_value_as_uint8
func poly_value_as_uint8(thread C.poly_thread, value C.poly_handle, result *C.uint8_t) C.poly_status {
	return status(nativeapi.ValueAsUint8(threadOf(thread), handleIn(value), cast[uint8](result)))
}

//export poly_value_as_uint16
func poly_value_as_uint16(thread C.poly_thread, value C.poly_handle, result *C.uint16_t) C.poly_status {
	return status(nativeapi.ValueAsUint16(threadOf(thread), handleIn(value), cast[uint16](result)))
}

//export poly_value_as_uint32
func poly_value_as_uint32(thread C.poly_thread, value C.poly_handle, result *C.uint32_t) C.poly_status {
	return status(nativeapi.ValueAsUint32(threadOf(thread), handleIn(value), cast[uint32](result)))
}

//export poly_value_as_float
func poly_value_as_float(thread C.poly_thread, value C.poly_handle, result *C.float) C.poly_status {
	return status(nativeapi.ValueAsFloat(threadOf(thread), handleIn(value), cast[float32](result)))
}

//export poly_value_as_double
func poly_value_as_double(thread C.poly_thread, value C.poly_handle, result *C.double) C.poly_status {
	return status(nativeapi.ValueAsDouble(threadOf(thread), handleIn(value), cast[float64](result)))
}

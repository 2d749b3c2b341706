package nativeapi

import (
	"github.com/wippyai/polyglot-native/engine"
	"github.com/wippyai/polyglot-native/handle"
)

// valueArg resolves a value argument. The null handle stands for the null
// value of owner's context.
func (t *Thread) valueArg(h handle.Handle, name string, owner *engine.Value) (*engine.Value, error) {
	if h.IsNull() {
		if owner != nil && owner.Context() != nil {
			return owner.Context().AsValue(nil)
		}
		return engine.NewValue(nil)
	}
	return fetch[*engine.Value](t, h, name)
}

func ValueCanExecute(t *Thread, value handle.Handle, result *bool) Status {
	return predicate(t, "value_can_execute", value, result, (*engine.Value).CanExecute)
}

// ValueExecute calls an executable value with args. result may be nil.
func ValueExecute(t *Thread, value handle.Handle, args []handle.Handle, result *handle.Handle) Status {
	return t.call("value_execute", func() error {
		fn, err := fetch[*engine.Value](t, value, "value")
		if err != nil {
			return err
		}
		vals := make([]*engine.Value, len(args))
		for i, a := range args {
			if vals[i], err = t.valueArg(a, "args", fn); err != nil {
				return err
			}
		}
		res, err := fn.Execute(t.evalContext(), vals...)
		if err != nil {
			return err
		}
		if result == nil {
			return nil
		}
		return t.store(res, result)
	})
}

// ValueGetMember reads a member. A missing member yields handle.Null.
func ValueGetMember(t *Thread, value handle.Handle, identifier string, result *handle.Handle) Status {
	return t.call("value_get_member", func() error {
		v, err := fetch[*engine.Value](t, value, "value")
		if err != nil {
			return err
		}
		if err := out(result, "result"); err != nil {
			return err
		}
		m, err := v.Member(identifier)
		if err != nil {
			return err
		}
		if m == nil {
			*result = handle.Null
			return nil
		}
		return t.store(m, result)
	})
}

func ValuePutMember(t *Thread, value handle.Handle, identifier string, member handle.Handle) Status {
	return t.call("value_put_member", func() error {
		v, err := fetch[*engine.Value](t, value, "value")
		if err != nil {
			return err
		}
		m, err := t.valueArg(member, "member", v)
		if err != nil {
			return err
		}
		return v.PutMember(identifier, m)
	})
}

func ValueHasMember(t *Thread, value handle.Handle, identifier string, result *bool) Status {
	return predicate(t, "value_has_member", value, result, func(v *engine.Value) bool { return v.HasMember(identifier) })
}

// create converts x into a value of context and stores its handle.
func create(t *Thread, op string, context handle.Handle, x any, result *handle.Handle) Status {
	return t.call(op, func() error {
		c, err := fetch[*engine.Context](t, context, "context")
		if err != nil {
			return err
		}
		if err := out(result, "result"); err != nil {
			return err
		}
		v, err := c.AsValue(x)
		if err != nil {
			return err
		}
		return t.store(v, result)
	})
}

func CreateBoolean(t *Thread, context handle.Handle, value bool, result *handle.Handle) Status {
	return create(t, "create_boolean", context, value, result)
}

func CreateInt8(t *Thread, context handle.Handle, value int8, result *handle.Handle) Status {
	return create(t, "create_int8", context, value, result)
}

func CreateInt16(t *Thread, context handle.Handle, value int16, result *handle.Handle) Status {
	return create(t, "create_int16", context, value, result)
}

func CreateInt32(t *Thread, context handle.Handle, value int32, result *handle.Handle) Status {
	return create(t, "create_int32", context, value, result)
}

func CreateInt64(t *Thread, context handle.Handle, value int64, result *handle.Handle) Status {
	return create(t, "create_int64", context, value, result)
}

func CreateUint8(t *Thread, context handle.Handle, value uint8, result *handle.Handle) Status {
	return create(t, "create_uint8", context, value, result)
}

func CreateUint16(t *Thread, context handle.Handle, value uint16, result *handle.Handle) Status {
	return create(t, "create_uint16", context, value, result)
}

func CreateUint32(t *Thread, context handle.Handle, value uint32, result *handle.Handle) Status {
	return create(t, "create_uint32", context, value, result)
}

func CreateFloat(t *Thread, context handle.Handle, value float32, result *handle.Handle) Status {
	return create(t, "create_float", context, value, result)
}

func CreateDouble(t *Thread, context handle.Handle, value float64, result *handle.Handle) Status {
	return create(t, "create_double", context, value, result)
}

// CreateCharacter creates a one-character string.
func CreateCharacter(t *Thread, context handle.Handle, value rune, result *handle.Handle) Status {
	return create(t, "create_character", context, string(value), result)
}

// CreateStringUTF8 creates a string from length bytes of s, or from s up
// to its first NUL when length is AutoLength.
func CreateStringUTF8(t *Thread, context handle.Handle, s []byte, length uint64, result *handle.Handle) Status {
	str, err := readString(s, length)
	if err != nil {
		return t.call("create_string_utf8", func() error { return err })
	}
	return create(t, "create_string_utf8", context, str, result)
}

func CreateNull(t *Thread, context handle.Handle, result *handle.Handle) Status {
	return create(t, "create_null", context, nil, result)
}

// CreateObject creates an object with no members.
func CreateObject(t *Thread, context handle.Handle, result *handle.Handle) Status {
	return create(t, "create_object", context, engine.NewObject(), result)
}

// CreateArray creates an array holding the given values.
func CreateArray(t *Thread, context handle.Handle, values []handle.Handle, result *handle.Handle) Status {
	return t.call("create_array", func() error {
		c, err := fetch[*engine.Context](t, context, "context")
		if err != nil {
			return err
		}
		if err := out(result, "result"); err != nil {
			return err
		}
		items := make([]any, len(values))
		for i, h := range values {
			if h.IsNull() {
				continue
			}
			v, err := fetch[*engine.Value](t, h, "value_array")
			if err != nil {
				return err
			}
			items[i] = v.Raw()
		}
		v, err := c.AsValue(engine.NewArray(items...))
		if err != nil {
			return err
		}
		return t.store(v, result)
	})
}

func ValueHasArrayElements(t *Thread, value handle.Handle, result *bool) Status {
	return predicate(t, "value_has_array_elements", value, result, (*engine.Value).HasArrayElements)
}

// ValueGetArrayElement reads element index. A value without array
// elements fails with StatusArrayExpected and leaves result untouched.
func ValueGetArrayElement(t *Thread, value handle.Handle, index int64, result *handle.Handle) Status {
	return t.call("value_get_array_element", func() error {
		v, err := fetch[*engine.Value](t, value, "value")
		if err != nil {
			return err
		}
		e, err := v.ArrayElement(index)
		if err != nil {
			return err
		}
		if err := out(result, "result"); err != nil {
			return err
		}
		return t.store(e, result)
	})
}

func ValueSetArrayElement(t *Thread, value handle.Handle, index int64, element handle.Handle) Status {
	return t.call("value_set_array_element", func() error {
		v, err := fetch[*engine.Value](t, value, "value")
		if err != nil {
			return err
		}
		e, err := t.valueArg(element, "element", v)
		if err != nil {
			return err
		}
		return v.SetArrayElement(index, e)
	})
}

func ValueRemoveArrayElement(t *Thread, value handle.Handle, index int64, result *bool) Status {
	return t.call("value_remove_array_element", func() error {
		v, err := fetch[*engine.Value](t, value, "value")
		if err != nil {
			return err
		}
		if err := out(result, "result"); err != nil {
			return err
		}
		ok, err := v.RemoveArrayElement(index)
		if err != nil {
			return err
		}
		*result = ok
		return nil
	})
}

func ValueGetArraySize(t *Thread, value handle.Handle, result *int64) Status {
	return as(t, "value_get_array_size", value, result, (*engine.Value).ArraySize)
}

// predicate runs a boolean query on a value.
func predicate(t *Thread, op string, value handle.Handle, result *bool, fn func(*engine.Value) bool) Status {
	return t.call(op, func() error {
		v, err := fetch[*engine.Value](t, value, "value")
		if err != nil {
			return err
		}
		if err := out(result, "result"); err != nil {
			return err
		}
		*result = fn(v)
		return nil
	})
}

// as runs a conversion on a value and writes the result only on success.
func as[T any](t *Thread, op string, value handle.Handle, result *T, fn func(*engine.Value) (T, error)) Status {
	return t.call(op, func() error {
		v, err := fetch[*engine.Value](t, value, "value")
		if err != nil {
			return err
		}
		if err := out(result, "result"); err != nil {
			return err
		}
		x, err := fn(v)
		if err != nil {
			return err
		}
		*result = x
		return nil
	})
}

func ValueIsNull(t *Thread, value handle.Handle, result *bool) Status {
	return predicate(t, "value_is_null", value, result, (*engine.Value).IsNull)
}

func ValueIsBoolean(t *Thread, value handle.Handle, result *bool) Status {
	return predicate(t, "value_is_boolean", value, result, (*engine.Value).IsBoolean)
}

func ValueIsString(t *Thread, value handle.Handle, result *bool) Status {
	return predicate(t, "value_is_string", value, result, (*engine.Value).IsString)
}

func ValueIsNumber(t *Thread, value handle.Handle, result *bool) Status {
	return predicate(t, "value_is_number", value, result, (*engine.Value).IsNumber)
}

func ValueFitsInFloat(t *Thread, value handle.Handle, result *bool) Status {
	return predicate(t, "value_fits_in_float", value, result, (*engine.Value).FitsInFloat)
}

func ValueFitsInDouble(t *Thread, value handle.Handle, result *bool) Status {
	return predicate(t, "value_fits_in_double", value, result, (*engine.Value).FitsInDouble)
}

func ValueFitsInInt8(t *Thread, value handle.Handle, result *bool) Status {
	return predicate(t, "value_fits_in_int8", value, result, (*engine.Value).FitsInInt8)
}

func ValueFitsInInt16(t *Thread, value handle.Handle, result *bool) Status {
	return predicate(t, "value_fits_in_int16", value, result, (*engine.Value).FitsInInt16)
}

func ValueFitsInInt32(t *Thread, value handle.Handle, result *bool) Status {
	return predicate(t, "value_fits_in_int32", value, result, (*engine.Value).FitsInInt32)
}

func ValueFitsInInt64(t *Thread, value handle.Handle, result *bool) Status {
	return predicate(t, "value_fits_in_int64", value, result, (*engine.Value).FitsInInt64)
}

func ValueFitsInUint8(t *Thread, value handle.Handle, result *bool) Status {
	return predicate(t, "value_fits_in_uint8", value, result, (*engine.Value).FitsInUint8)
}

func ValueFitsInUint16(t *Thread, value handle.Handle, result *bool) Status {
	return predicate(t, "value_fits_in_uint16", value, result, (*engine.Value).FitsInUint16)
}

func ValueFitsInUint32(t *Thread, value handle.Handle, result *bool) Status {
	return predicate(t, "value_fits_in_uint32", value, result, (*engine.Value).FitsInUint32)
}

// ValueAsStringUTF8 copies a string value using the two-pass convention.
// Non-strings fail with StatusStringExpected.
func ValueAsStringUTF8(t *Thread, value handle.Handle, buf []byte, result *uint64) Status {
	return t.call("value_as_string_utf8", func() error {
		v, err := fetch[*engine.Value](t, value, "value")
		if err != nil {
			return err
		}
		s, err := v.AsString()
		if err != nil {
			return err
		}
		return writeString(s, buf, result)
	})
}

// ValueToStringUTF8 copies the printed form of any value using the
// two-pass convention.
func ValueToStringUTF8(t *Thread, value handle.Handle, buf []byte, result *uint64) Status {
	return t.call("value_to_string_utf8", func() error {
		v, err := fetch[*engine.Value](t, value, "value")
		if err != nil {
			return err
		}
		return writeString(v.String(), buf, result)
	})
}

func ValueAsBoolean(t *Thread, value handle.Handle, result *bool) Status {
	return as(t, "value_as_boolean", value, result, (*engine.Value).AsBool)
}

func ValueAsInt8(t *Thread, value handle.Handle, result *int8) Status {
	return as(t, "value_as_int8", value, result, (*engine.Value).AsInt8)
}

func ValueAsInt16(t *Thread, value handle.Handle, result *int16) Status {
	return as(t, "value_as_int16", value, result, (*engine.Value).AsInt16)
}

func ValueAsInt32(t *Thread, value handle.Handle, result *int32) Status {
	return as(t, "value_as_int32", value, result, (*engine.Value).AsInt32)
}

func ValueAsInt64(t *Thread, value handle.Handle, result *int64) Status {
	return as(t, "value_as_int64", value, result, (*engine.Value).AsInt64)
}

func ValueAsUint8(t *Thread, value handle.Handle, result *uint8) Status {
	return as(t, "value_as_uint8", value, result, (*engine.Value).AsUint8)
}

func ValueAsUint16(t *Thread, value handle.Handle, result *uint16) Status {
	return as(t, "value_as_uint16", value, result, (*engine.Value).AsUint16)
}

func ValueAsUint32(t *Thread, value handle.Handle, result *uint32) Status {
	return as(t, "value_as_uint32", value, result, (*engine.Value).AsUint32)
}

func ValueAsFloat(t *Thread, value handle.Handle, result *float32) Status {
	return as(t, "value_as_float", value, result, (*engine.Value).AsFloat32)
}

// ValueAsDouble fails with StatusNumberExpected for non-numbers.
func ValueAsDouble(t *Thread, value handle.Handle, result *float64) Status {
	return as(t, "value_as_double", value, result, (*engine.Value).AsFloat64)
}

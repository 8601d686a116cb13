/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package entity

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/spf13/cast"
)

// Cast coerces value according to rule. A nil value is returned as nil when
// the rule is nullable and rejected with NullAttributeError otherwise.
// Casting an already-cast value returns it unchanged.
func Cast(entityName string, value interface{}, rule CastRule) (interface{}, error) {
	if isNil(value) {
		if rule.Nullable {
			return nil, nil
		}
		return nil, &NullAttributeError{Entity: entityName, Attribute: rule.Attribute}
	}

	var (
		out interface{}
		err error
	)
	switch rule.Target.Kind {
	case KindInt:
		out, err = toInt64(indirect(value))
	case KindFloat:
		out, err = cast.ToFloat64E(indirect(value))
	case KindBool:
		out, err = cast.ToBoolE(indirect(value))
	case KindString:
		out, err = cast.ToStringE(indirect(value))
	case KindConstructible:
		if rule.Target.Construct == nil {
			return value, nil
		}
		out, err = rule.Target.Construct(value)
	default:
		return value, nil
	}
	if err != nil {
		return nil, &CastError{Attribute: rule.Attribute, Target: rule.Target.Name, Err: err}
	}
	return out, nil
}

// toInt64 reads strings as base 10 so "010" is 10, not octal. Strings with a
// fraction are truncated toward zero.
func toInt64(v interface{}) (int64, error) {
	var s string
	switch t := v.(type) {
	case string:
		s = t
	case []byte:
		s = string(t)
	default:
		return cast.ToInt64E(v)
	}
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f > math.MaxInt64 || f < math.MinInt64 {
		return 0, fmt.Errorf("unable to cast %q to int64", s)
	}
	return int64(f), nil
}

func isNil(v interface{}) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

func indirect(v interface{}) interface{} {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	return rv.Interface()
}

// assign stores v into the struct field fv. Nil zeroes the field, pointer
// fields are allocated, and numeric, string and bool values convert only
// within their own family.
func assign(fv reflect.Value, v interface{}) error {
	if isNil(v) {
		fv.Set(reflect.Zero(fv.Type()))
		return nil
	}
	rv := reflect.ValueOf(v)
	ft := fv.Type()

	if rv.Type().AssignableTo(ft) {
		fv.Set(rv)
		return nil
	}
	if ft.Kind() == reflect.Ptr {
		if rv.Kind() == reflect.Ptr {
			return assign(fv, rv.Elem().Interface())
		}
		elem := reflect.New(ft.Elem())
		if err := assign(elem.Elem(), v); err != nil {
			return err
		}
		fv.Set(elem)
		return nil
	}
	if rv.Kind() == reflect.Ptr {
		return assign(fv, rv.Elem().Interface())
	}
	if ft.Kind() == reflect.Interface && rv.Type().Implements(ft) {
		fv.Set(rv)
		return nil
	}
	if convertible(rv.Type(), ft) {
		fv.Set(rv.Convert(ft))
		return nil
	}
	return fmt.Errorf("cannot assign %T to a field of type %s", v, ft)
}

func convertible(from, to reflect.Type) bool {
	if !from.ConvertibleTo(to) {
		return false
	}
	switch {
	case isNumber(from.Kind()) && isNumber(to.Kind()):
		return true
	case from.Kind() == reflect.String && to.Kind() == reflect.String:
		return true
	case from.Kind() == reflect.Bool && to.Kind() == reflect.Bool:
		return true
	case isBytes(from) && to.Kind() == reflect.String:
		return true
	case from.Kind() == to.Kind() && (from.Kind() == reflect.Map || from.Kind() == reflect.Slice || from.Kind() == reflect.Struct):
		return true
	}
	return false
}

func isNumber(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func isBytes(t reflect.Type) bool {
	return t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8
}

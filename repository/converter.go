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

package repository

import (
	"context"
	"reflect"

	"github.com/tomoncle/entrepo/entity"
)

// convert turns a store result into entities. Nil, booleans and integers are
// returned unchanged; ordered and keyed collections are converted element by
// element; anything else is read as a single record.
func (r *Repository[T]) convert(result interface{}) (interface{}, error) {
	switch v := result.(type) {
	case nil:
		return nil, nil
	case bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return v, nil
	case *T:
		if v == nil {
			return nil, nil
		}
		return v, nil
	case RawRecord:
		if v == nil {
			return nil, nil
		}
		return entity.BuildFromSource[T](r.marshaller, v)
	case map[string]interface{}:
		if v == nil {
			return nil, nil
		}
		return entity.BuildFromSource[T](r.marshaller, v)
	case []RawRecord:
		out := make([]*T, 0, len(v))
		for _, rec := range v {
			e, err := r.convertRecord(rec)
			if err != nil {
				return nil, err
			}
			out = append(out, e)
		}
		return out, nil
	}

	rv := reflect.ValueOf(result)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return nil, nil
		}
	case reflect.Slice, reflect.Array:
		return r.convertOrdered(rv)
	case reflect.Map:
		if isKeyedCollection(rv.Type()) {
			return r.convertKeyed(rv)
		}
	}
	return entity.BuildFromSource[T](r.marshaller, result)
}

func (r *Repository[T]) convertRecord(rec RawRecord) (*T, error) {
	if rec == nil {
		return nil, nil
	}
	return entity.BuildFromSource[T](r.marshaller, rec)
}

func (r *Repository[T]) convertOrdered(rv reflect.Value) (interface{}, error) {
	items := make([]interface{}, rv.Len())
	allEntities := true
	for i := range items {
		v, err := r.convert(rv.Index(i).Interface())
		if err != nil {
			return nil, err
		}
		if _, ok := v.(*T); !ok {
			allEntities = false
		}
		items[i] = v
	}
	if !allEntities {
		return items, nil
	}
	out := make([]*T, len(items))
	for i, v := range items {
		out[i] = v.(*T)
	}
	return out, nil
}

func (r *Repository[T]) convertKeyed(rv reflect.Value) (interface{}, error) {
	items := make(map[interface{}]interface{}, rv.Len())
	allEntities := rv.Type().Key().Kind() == reflect.String
	iter := rv.MapRange()
	for iter.Next() {
		v, err := r.convert(iter.Value().Interface())
		if err != nil {
			return nil, err
		}
		if _, ok := v.(*T); !ok {
			allEntities = false
		}
		items[iter.Key().Interface()] = v
	}
	if !allEntities {
		return items, nil
	}
	out := make(map[string]*T, len(items))
	for k, v := range items {
		out[reflect.ValueOf(k).String()] = v.(*T)
	}
	return out, nil
}

// isKeyedCollection reports whether a map holds records rather than being a
// record itself.
func isKeyedCollection(mt reflect.Type) bool {
	if mt.Key().Kind() != reflect.String {
		return true
	}
	switch mt.Elem().Kind() {
	case reflect.Map, reflect.Struct, reflect.Ptr, reflect.Slice:
		return mt.Elem() != reflect.TypeOf([]byte(nil))
	}
	return false
}

// validateResult is the post-processor of the OrFail extension.
func (r *Repository[T]) validateResult(_ context.Context, result interface{}, _ string) (interface{}, error) {
	if result == nil {
		return nil, EmptyResult(r.name)
	}
	rv := reflect.ValueOf(result)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return nil, EmptyResult(r.name)
		}
	case reflect.Map:
		if rv.IsNil() {
			return nil, EmptyResult(r.name)
		}
		if rv.Len() == 0 {
			return nil, EmptyResultSet(r.name)
		}
	case reflect.Slice:
		if rv.Len() == 0 {
			return nil, EmptyResultSet(r.name)
		}
	}
	return result, nil
}

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
	"reflect"
)

// AttributeSource is implemented by values that expose attributes by name.
type AttributeSource interface {
	Attribute(name string) (interface{}, bool)
}

// Marshaller builds entities from attribute maps and source objects.
type Marshaller struct {
	registry *Registry
}

// NewMarshaller returns a marshaller resolving schemas from reg, or from the
// default registry when reg is nil.
func NewMarshaller(reg *Registry) *Marshaller {
	if reg == nil {
		reg = defaultRegistry
	}
	return &Marshaller{registry: reg}
}

// DefaultMarshaller returns a marshaller over the default registry.
func DefaultMarshaller() *Marshaller {
	return NewMarshaller(nil)
}

func (m *Marshaller) Registry() *Registry {
	return m.registry
}

// Build returns a new T filled with attrs, casts applied.
func Build[T any](m *Marshaller, attrs map[string]interface{}) (*T, error) {
	e := new(T)
	if err := m.Fill(e, attrs, true); err != nil {
		return nil, err
	}
	return e, nil
}

// BuildFromSource returns a new T whose static attributes are read off src and
// whose dynamic attributes come from the schema's getters.
func BuildFromSource[T any](m *Marshaller, src interface{}) (*T, error) {
	e := new(T)
	if err := m.FillFromSource(e, src); err != nil {
		return nil, err
	}
	return e, nil
}

// FillFromSource reads every declared attribute off src (missing attributes
// read as nil), fills e with them, then runs the getters in declaration order
// on the filled entity and fills their results over the static values.
func (m *Marshaller) FillFromSource(e interface{}, src interface{}) error {
	s, _, err := m.target(e)
	if err != nil {
		return err
	}
	read, err := sourceReader(src)
	if err != nil {
		return fmt.Errorf("entity %s: %w", s.Name, err)
	}

	static := make(map[string]interface{}, len(s.fields))
	for _, f := range s.fields {
		v, _ := read(f.name)
		static[f.name] = v
	}
	if err := m.fill(s, e, static, true); err != nil {
		return err
	}
	if len(s.getters) == 0 {
		return nil
	}

	dynamic := make(map[string]interface{}, len(s.getters))
	for _, g := range s.getters {
		v, err := g.fn(e)
		if err != nil {
			return fmt.Errorf("entity %s: get %s: %w", s.Name, g.field, err)
		}
		dynamic[g.field] = v
	}
	return m.fill(s, e, dynamic, true)
}

// Fill applies attrs to the entity pointed to by e in field declaration order.
// For each attribute the setter accessor runs first, then the cast rule (when
// applyCasts is set) on the value the setter left on the entity.
func (m *Marshaller) Fill(e interface{}, attrs map[string]interface{}, applyCasts bool) error {
	s, _, err := m.target(e)
	if err != nil {
		return err
	}
	return m.fill(s, e, attrs, applyCasts)
}

func (m *Marshaller) fill(s *Schema, e interface{}, attrs map[string]interface{}, applyCasts bool) error {
	for name := range attrs {
		if !s.Has(name) {
			return &UnknownAttributeError{Entity: s.Name, Attribute: name}
		}
	}
	ev := reflect.ValueOf(e).Elem()
	for _, f := range s.fields {
		value, ok := attrs[f.name]
		if !ok {
			continue
		}
		fv := ev.FieldByIndex(f.index)

		if set, ok := s.setters[f.name]; ok {
			if err := set(e, value); err != nil {
				return fmt.Errorf("entity %s: set %s: %w", s.Name, f.name, err)
			}
			value = current(fv)
		}
		if rule, ok := s.rules[f.name]; ok && applyCasts {
			if s.hasAccessor(f.name) {
				rule.Nullable = true
			}
			cast, err := Cast(s.Name, value, rule)
			if err != nil {
				return err
			}
			value = cast
		}
		if err := assign(fv, value); err != nil {
			return &CastError{Attribute: f.name, Target: f.typ.String(), Err: err}
		}
	}
	return nil
}

// current reads a field's value, dereferencing pointers and mapping nil ones
// to nil.
func current(fv reflect.Value) interface{} {
	if fv.Kind() == reflect.Ptr {
		if fv.IsNil() {
			return nil
		}
		return fv.Elem().Interface()
	}
	return fv.Interface()
}

// Attributes returns every declared attribute of e keyed by name.
func (m *Marshaller) Attributes(e interface{}) (map[string]interface{}, error) {
	s, ev, err := m.target(e)
	if err != nil {
		return nil, err
	}
	out := make(map[string]interface{}, len(s.fields))
	for _, f := range s.fields {
		out[f.name] = current(ev.FieldByIndex(f.index))
	}
	return out, nil
}

// KeyValue returns the primary-key value of e.
func (m *Marshaller) KeyValue(e interface{}) (interface{}, error) {
	s, ev, err := m.target(e)
	if err != nil {
		return nil, err
	}
	f, ok := s.field(s.Key)
	if !ok {
		return nil, &SchemaError{Entity: s.Name, Attribute: s.Key, Reason: "primary key is not a declared field"}
	}
	return current(ev.FieldByIndex(f.index)), nil
}

// Schema resolves the schema of the entity pointed to by e.
func (m *Marshaller) Schema(e interface{}) (*Schema, error) {
	s, _, err := m.target(e)
	return s, err
}

func (m *Marshaller) target(e interface{}) (*Schema, reflect.Value, error) {
	rv := reflect.ValueOf(e)
	if rv.Kind() != reflect.Ptr || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return nil, reflect.Value{}, fmt.Errorf("entity: expected a non-nil struct pointer, got %T", e)
	}
	s, err := m.registry.Resolve(rv.Type())
	if err != nil {
		return nil, reflect.Value{}, err
	}
	return s, rv.Elem(), nil
}

// sourceReader returns a lookup over an attribute source: an AttributeSource,
// a string-keyed map, or a struct (or pointer to one).
func sourceReader(src interface{}) (func(name string) (interface{}, bool), error) {
	if as, ok := src.(AttributeSource); ok {
		return as.Attribute, nil
	}
	if m, ok := src.(map[string]interface{}); ok {
		return func(name string) (interface{}, bool) {
			v, ok := m[name]
			return v, ok
		}, nil
	}

	rv := reflect.ValueOf(src)
	for rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, fmt.Errorf("nil source %T", src)
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, fmt.Errorf("unsupported source %T", src)
		}
		keyType := rv.Type().Key()
		return func(name string) (interface{}, bool) {
			v := rv.MapIndex(reflect.ValueOf(name).Convert(keyType))
			if !v.IsValid() {
				return nil, false
			}
			return v.Interface(), true
		}, nil
	case reflect.Struct:
		byName := map[string][]int{}
		for _, f := range declaredFields(rv.Type()) {
			byName[f.name] = f.index
		}
		return func(name string) (interface{}, bool) {
			index, ok := byName[name]
			if !ok {
				return nil, false
			}
			return current(rv.FieldByIndex(index)), true
		}, nil
	default:
		return nil, fmt.Errorf("unsupported source %T", src)
	}
}

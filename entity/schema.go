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
	"reflect"
	"strings"
)

const defaultKey = "id"

type getterFunc func(e interface{}) (interface{}, error)

type setterFunc func(e interface{}, value interface{}) error

type getter struct {
	field string
	fn    getterFunc
}

// Definition is the declared, unresolved schema of one entity type.
type Definition struct {
	typ         reflect.Type
	name        string
	key         string
	annotations map[string]string
	casts       map[string]CastRule
	getters     []getter
	setters     map[string]setterFunc
}

func newDefinition(rt reflect.Type) *Definition {
	return &Definition{
		typ:         rt,
		annotations: map[string]string{},
		casts:       map[string]CastRule{},
		setters:     map[string]setterFunc{},
	}
}

// Type returns the entity struct type the definition describes.
func (d *Definition) Type() reflect.Type { return d.typ }

// Builder declares the schema of entity type T.
//
//	entity.Define[User]().
//		Key("id").
//		Type("id", "int").
//		Type("email", "string|null").
//		Setter("name", func(u *User, v any) error { ... }).
//		Register(registry)
type Builder[T any] struct {
	def *Definition
}

// Define starts a schema declaration for T. T must be a struct type.
func Define[T any]() *Builder[T] {
	return &Builder[T]{def: newDefinition(reflect.TypeOf((*T)(nil)).Elem())}
}

// Name sets the entity name used in errors, logs and schema overlays.
func (b *Builder[T]) Name(name string) *Builder[T] {
	b.def.name = name
	return b
}

// Key sets the primary-key attribute, "id" when not called.
func (b *Builder[T]) Key(attribute string) *Builder[T] {
	b.def.key = attribute
	return b
}

// Type annotates an attribute with a type declaration such as "int",
// "string|null", "?float" or "uuid". Annotations are parsed on resolution.
func (b *Builder[T]) Type(attribute, annotation string) *Builder[T] {
	delete(b.def.casts, attribute)
	b.def.annotations[attribute] = annotation
	return b
}

// Cast declares an attribute's cast rule directly.
func (b *Builder[T]) Cast(attribute string, target Target, nullable bool) *Builder[T] {
	delete(b.def.annotations, attribute)
	b.def.casts[attribute] = CastRule{Attribute: attribute, Target: target, Nullable: nullable}
	return b
}

// Getter adds a dynamic attribute computed from the entity after its static
// attributes are filled. Getters run in declaration order.
func (b *Builder[T]) Getter(attribute string, fn func(e *T) (interface{}, error)) *Builder[T] {
	b.def.getters = append(b.def.getters, getter{
		field: attribute,
		fn:    func(e interface{}) (interface{}, error) { return fn(e.(*T)) },
	})
	return b
}

// Setter adds an accessor that receives the raw value for an attribute and is
// responsible for storing it on the entity. The stored value is then cast.
func (b *Builder[T]) Setter(attribute string, fn func(e *T, value interface{}) error) *Builder[T] {
	b.def.setters[attribute] = func(e interface{}, value interface{}) error { return fn(e.(*T), value) }
	return b
}

// Definition returns the declaration built so far.
func (b *Builder[T]) Definition() *Definition { return b.def }

// Register adds the declaration to reg, or to the default registry when reg is nil.
func (b *Builder[T]) Register(reg *Registry) error {
	if reg == nil {
		reg = defaultRegistry
	}
	return reg.Register(b.def)
}

// Schema is the resolved schema of an entity type. It is immutable once built.
type Schema struct {
	Type    reflect.Type
	Name    string
	Key     string
	fields  []field
	byName  map[string]int
	rules   map[string]CastRule
	getters []getter
	setters map[string]setterFunc
}

// Fields returns the declared attribute names in declaration order.
func (s *Schema) Fields() []string {
	names := make([]string, len(s.fields))
	for i, f := range s.fields {
		names[i] = f.name
	}
	return names
}

// Has reports whether the attribute is declared.
func (s *Schema) Has(attribute string) bool {
	_, ok := s.byName[attribute]
	return ok
}

// Rule returns the cast rule of an attribute, if any.
func (s *Schema) Rule(attribute string) (CastRule, bool) {
	r, ok := s.rules[attribute]
	return r, ok
}

// Rules returns a copy of every cast rule keyed by attribute.
func (s *Schema) Rules() map[string]CastRule {
	out := make(map[string]CastRule, len(s.rules))
	for k, v := range s.rules {
		out[k] = v
	}
	return out
}

// Getters returns the attributes with getter accessors in call order.
func (s *Schema) Getters() []string {
	names := make([]string, len(s.getters))
	for i, g := range s.getters {
		names[i] = g.field
	}
	return names
}

// HasSetter reports whether the attribute has a setter accessor.
func (s *Schema) HasSetter(attribute string) bool {
	_, ok := s.setters[attribute]
	return ok
}

func (s *Schema) hasAccessor(attribute string) bool {
	if s.HasSetter(attribute) {
		return true
	}
	for _, g := range s.getters {
		if g.field == attribute {
			return true
		}
	}
	return false
}

func (s *Schema) field(attribute string) (field, bool) {
	i, ok := s.byName[attribute]
	if !ok {
		return field{}, false
	}
	return s.fields[i], true
}

// parseAnnotation turns "A", "A|null", "null|A" or "?A" into a cast rule.
// It returns a nil rule for empty, "any" and "mixed" annotations.
func parseAnnotation(entityName, attribute, annotation string, targets map[string]Target) (*CastRule, error) {
	annotation = strings.TrimSpace(annotation)
	if annotation == "" {
		return nil, nil
	}
	nullable := false
	if strings.HasPrefix(annotation, "?") {
		nullable = true
		annotation = annotation[1:]
	}

	var branches []string
	for _, part := range strings.Split(annotation, "|") {
		part = strings.TrimSpace(part)
		switch strings.ToLower(part) {
		case "":
			continue
		case "null":
			nullable = true
		default:
			branches = append(branches, part)
		}
	}

	switch len(branches) {
	case 0:
		return nil, &SchemaError{Entity: entityName, Attribute: attribute, Reason: "type declaration has no non-null type"}
	case 1:
	default:
		return nil, &SchemaError{
			Entity:    entityName,
			Attribute: attribute,
			Reason:    "ambiguous cast target " + strings.Join(branches, "|"),
		}
	}

	name := strings.ToLower(branches[0])
	if name == "any" || name == "mixed" {
		return nil, nil
	}
	target, ok := targets[name]
	if !ok {
		target = Target{Name: branches[0], Kind: KindUnsupported}
	}
	return &CastRule{Attribute: attribute, Target: target, Nullable: nullable}, nil
}

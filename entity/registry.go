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
	"io"
	"reflect"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
	"gopkg.in/yaml.v3"

	"github.com/tomoncle/entrepo/utils"
)

var defaultRegistry = NewRegistry()

// DefaultRegistry returns the process-wide registry used by Register and
// DefaultMarshaller.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// Register adds def to the default registry.
func Register(def *Definition) error {
	return defaultRegistry.Register(def)
}

type overlay struct {
	Key    string            `yaml:"key"`
	Fields map[string]string `yaml:"fields"`
}

type schemaFile struct {
	Entities map[string]overlay `yaml:"entities"`
}

// Registry holds entity declarations and the schemas resolved from them.
// A schema is computed at most once per type; concurrent first lookups of the
// same type share one computation.
type Registry struct {
	mu          sync.RWMutex
	definitions map[reflect.Type]*Definition
	overlays    map[string]overlay
	targets     map[string]Target
	schemas     map[reflect.Type]*Schema
	generation  uint64
	group       singleflight.Group
	logger      *logrus.Logger
}

// NewRegistry returns an empty registry that knows the built-in cast targets.
func NewRegistry() *Registry {
	return &Registry{
		definitions: map[reflect.Type]*Definition{},
		overlays:    map[string]overlay{},
		targets:     builtinTargets(),
		schemas:     map[reflect.Type]*Schema{},
		logger:      utils.NewLogger("ENTITY"),
	}
}

// Reset drops every declaration, overlay, custom target and cached schema.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.definitions = map[reflect.Type]*Definition{}
	r.overlays = map[string]overlay{}
	r.targets = builtinTargets()
	r.invalidateLocked()
}

// RegisterType makes a constructible cast target available to annotations.
func (r *Registry) RegisterType(name string, ctor Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.targets[strings.ToLower(name)] = Constructible(name, ctor)
	r.invalidateLocked()
}

// Register adds or replaces the declaration of one entity type.
func (r *Registry) Register(def *Definition) error {
	if def == nil || def.typ == nil {
		return fmt.Errorf("entity: nil definition")
	}
	if def.typ.Kind() != reflect.Struct {
		return &SchemaError{Entity: def.typ.String(), Reason: "entity type must be a struct"}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.definitions[def.typ] = def
	r.invalidateLocked()
	return nil
}

// LoadSchemaYAML reads field annotations and key names keyed by entity name:
//
//	entities:
//	  User:
//	    key: id
//	    fields:
//	      id: int
//	      email: string|null
//
// Entries override builder declarations of the same attribute.
func (r *Registry) LoadSchemaYAML(in io.Reader) error {
	var file schemaFile
	if err := yaml.NewDecoder(in).Decode(&file); err != nil && err != io.EOF {
		return fmt.Errorf("decode entity schema: %w", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, o := range file.Entities {
		r.overlays[strings.ToLower(name)] = o
	}
	r.invalidateLocked()
	return nil
}

func (r *Registry) invalidateLocked() {
	r.schemas = map[reflect.Type]*Schema{}
	r.generation++
}

// Resolve returns the schema of rt, computing and caching it on first use.
// Pointer types resolve to their element type.
func (r *Registry) Resolve(rt reflect.Type) (*Schema, error) {
	for rt != nil && rt.Kind() == reflect.Ptr {
		rt = rt.Elem()
	}
	if rt == nil || rt.Kind() != reflect.Struct {
		return nil, &SchemaError{Entity: fmt.Sprint(rt), Reason: "entity type must be a struct"}
	}

	r.mu.RLock()
	s, ok := r.schemas[rt]
	r.mu.RUnlock()
	if ok {
		return s, nil
	}

	v, err, _ := r.group.Do(rt.PkgPath()+"."+rt.String(), func() (interface{}, error) {
		r.mu.RLock()
		if s, ok := r.schemas[rt]; ok {
			r.mu.RUnlock()
			return s, nil
		}
		def := r.definitions[rt]
		generation := r.generation
		targets := r.targets
		var o *overlay
		if found, ok := r.overlays[strings.ToLower(entityName(rt, def))]; ok {
			o = &found
		}
		s, err := r.build(rt, def, o, targets)
		r.mu.RUnlock()
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		if r.generation == generation {
			r.schemas[rt] = s
		}
		r.mu.Unlock()
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Schema), nil
}

// EntityName returns the name rt is known by in errors and overlays.
func (r *Registry) EntityName(rt reflect.Type) string {
	for rt != nil && rt.Kind() == reflect.Ptr {
		rt = rt.Elem()
	}
	if rt == nil {
		return ""
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return entityName(rt, r.definitions[rt])
}

func entityName(rt reflect.Type, def *Definition) string {
	if def != nil && def.name != "" {
		return def.name
	}
	return rt.Name()
}

// build is called with r.mu read-locked.
func (r *Registry) build(rt reflect.Type, def *Definition, o *overlay, targets map[string]Target) (*Schema, error) {
	name := entityName(rt, def)
	fields := declaredFields(rt)
	s := &Schema{
		Type:    rt,
		Name:    name,
		Key:     defaultKey,
		fields:  fields,
		byName:  make(map[string]int, len(fields)),
		rules:   map[string]CastRule{},
		setters: map[string]setterFunc{},
	}
	for i, f := range fields {
		s.byName[f.name] = i
	}

	explicitKey := false
	annotations := map[string]string{}
	if def != nil {
		if def.key != "" {
			s.Key, explicitKey = def.key, true
		}
		for attr, ann := range def.annotations {
			annotations[attr] = ann
		}
		for attr, rule := range def.casts {
			if !s.Has(attr) {
				return nil, &SchemaError{Entity: name, Attribute: attr, Reason: "cast declared for an undeclared field"}
			}
			s.rules[attr] = rule
		}
		for _, g := range def.getters {
			if !s.Has(g.field) {
				return nil, &SchemaError{Entity: name, Attribute: g.field, Reason: "getter declared for an undeclared field"}
			}
		}
		s.getters = append(s.getters, def.getters...)
		for attr, fn := range def.setters {
			if !s.Has(attr) {
				return nil, &SchemaError{Entity: name, Attribute: attr, Reason: "setter declared for an undeclared field"}
			}
			s.setters[attr] = fn
		}
	}
	if o != nil {
		if o.Key != "" {
			s.Key, explicitKey = o.Key, true
		}
		for attr, ann := range o.Fields {
			delete(s.rules, attr)
			annotations[attr] = ann
		}
	}
	if explicitKey && !s.Has(s.Key) {
		return nil, &SchemaError{Entity: name, Attribute: s.Key, Reason: "primary key is not a declared field"}
	}

	for attr, ann := range annotations {
		if !s.Has(attr) {
			return nil, &SchemaError{Entity: name, Attribute: attr, Reason: "type declared for an undeclared field"}
		}
		rule, err := parseAnnotation(name, attr, ann, targets)
		if err != nil {
			return nil, err
		}
		if rule == nil {
			continue
		}
		if rule.Target.Kind == KindUnsupported {
			r.logger.Warnf("entity %s: attribute %s has unsupported type %q, values pass through uncast", name, attr, rule.Target.Name)
		}
		s.rules[attr] = *rule
	}
	return s, nil
}

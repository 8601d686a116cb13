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
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cast"
	"github.com/tomoncle/entrepo/types"
)

// Kind classifies the target of a cast rule.
type Kind int

const (
	// KindUnsupported targets are passed through unchanged (structured
	// containers such as "array" or "map" are not coerced).
	KindUnsupported Kind = iota
	KindInt
	KindFloat
	KindBool
	KindString
	// KindConstructible targets are built from the value by a Constructor.
	KindConstructible
)

var _ types.BaseEnum = KindInt

var kindNames = map[Kind]string{
	KindUnsupported:   "unsupported",
	KindInt:           "int",
	KindFloat:         "float",
	KindBool:          "bool",
	KindString:        "string",
	KindConstructible: "constructible",
}

var kindDescs = map[Kind]string{
	KindUnsupported:   "value passed through unchanged",
	KindInt:           "64-bit signed integer",
	KindFloat:         "64-bit float",
	KindBool:          "boolean",
	KindString:        "string",
	KindConstructible: "built by a single-argument constructor",
}

func (k Kind) IsValid() bool {
	_, ok := kindNames[k]
	return ok
}

func (k Kind) Number() int {
	if !k.IsValid() {
		return types.IllegalValue
	}
	return int(k)
}

func (k Kind) Name() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return types.IllegalName
}

func (k Kind) Desc() string {
	if d, ok := kindDescs[k]; ok {
		return d
	}
	return types.IllegalDesc
}

func (k Kind) String() string { return k.Name() }

// IsScalar reports whether values are coerced with scalar conversion rules.
func (k Kind) IsScalar() bool {
	return k == KindInt || k == KindFloat || k == KindBool || k == KindString
}

// Constructor builds a value of a constructible target type from a single
// non-nil argument. Constructors must accept values already of their own type
// and return them unchanged.
type Constructor func(value interface{}) (interface{}, error)

// Target is the type a cast rule coerces to.
type Target struct {
	Name      string
	Kind      Kind
	Construct Constructor
}

// CastRule is the resolved cast for a single attribute.
type CastRule struct {
	Attribute string
	Target    Target
	Nullable  bool
}

func (r CastRule) String() string {
	if r.Nullable {
		return fmt.Sprintf("%s:%s|null", r.Attribute, r.Target.Name)
	}
	return fmt.Sprintf("%s:%s", r.Attribute, r.Target.Name)
}

// Scalar targets usable with Builder.Cast.
var (
	Int    = Target{Name: "int", Kind: KindInt}
	Float  = Target{Name: "float", Kind: KindFloat}
	Bool   = Target{Name: "bool", Kind: KindBool}
	String = Target{Name: "string", Kind: KindString}
)

// Constructible returns a constructible target with the given name.
func Constructible(name string, ctor Constructor) Target {
	return Target{Name: name, Kind: KindConstructible, Construct: ctor}
}

func builtinTargets() map[string]Target {
	return map[string]Target{
		"int":       Int,
		"integer":   Int,
		"float":     Float,
		"double":    Float,
		"bool":      Bool,
		"boolean":   Bool,
		"string":    String,
		"time":      Constructible("time", constructTime),
		"datetime":  Constructible("datetime", constructTime),
		"uuid":      Constructible("uuid", constructUUID),
		"json":      Constructible("json", constructJsonObject),
		"jsonarray": Constructible("jsonarray", constructJsonArray),
	}
}

func constructTime(value interface{}) (interface{}, error) {
	if t, ok := value.(time.Time); ok {
		return t, nil
	}
	return cast.ToTimeE(value)
}

func constructUUID(value interface{}) (interface{}, error) {
	switch v := value.(type) {
	case uuid.UUID:
		return v, nil
	case string:
		return uuid.Parse(v)
	case []byte:
		if len(v) == 16 {
			return uuid.FromBytes(v)
		}
		return uuid.ParseBytes(v)
	default:
		return nil, fmt.Errorf("cannot build a uuid from %T", value)
	}
}

func constructJsonObject(value interface{}) (interface{}, error) {
	return types.NewJsonObject(value)
}

func constructJsonArray(value interface{}) (interface{}, error) {
	return types.NewJsonArray(value)
}

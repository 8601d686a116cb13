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

	"github.com/tomoncle/entrepo/utils"
)

// field is a declared attribute of an entity struct.
type field struct {
	name  string
	index []int
	typ   reflect.Type
}

// declaredFields lists the attributes of a struct type in declaration order.
// The attribute name comes from the `entity` tag, then the `bun` tag, then the
// snake_case Go field name. Anonymous struct fields without a name tag are
// flattened, which covers embedded Timestamps and bun.BaseModel.
func declaredFields(rt reflect.Type) []field {
	var out []field
	seen := map[string]bool{}
	collectFields(rt, nil, &out, seen)
	return out
}

func collectFields(rt reflect.Type, parent []int, out *[]field, seen map[string]bool) {
	for i := 0; i < rt.NumField(); i++ {
		sf := rt.Field(i)
		index := append(append([]int(nil), parent...), i)

		name, skip := tagName(sf)
		if skip {
			continue
		}
		if sf.Anonymous && name == "" && sf.Type.Kind() == reflect.Struct {
			collectFields(sf.Type, index, out, seen)
			continue
		}
		if !sf.IsExported() {
			continue
		}
		if name == "" {
			name = utils.SnakeCase(sf.Name)
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		*out = append(*out, field{name: name, index: index, typ: sf.Type})
	}
}

func tagName(sf reflect.StructField) (name string, skip bool) {
	if tag, ok := sf.Tag.Lookup("entity"); ok {
		name = strings.TrimSpace(strings.Split(tag, ",")[0])
		return name, name == "-"
	}
	if tag, ok := sf.Tag.Lookup("bun"); ok {
		first := strings.TrimSpace(strings.Split(tag, ",")[0])
		if first == "-" {
			return "", true
		}
		// "table:users,alias:u" on bun.BaseModel is not a column name
		if !strings.Contains(first, ":") {
			name = first
		}
	}
	return name, false
}

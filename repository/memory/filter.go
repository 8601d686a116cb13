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

package memory

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/spf13/cast"

	"github.com/tomoncle/entrepo/repository"
	"github.com/tomoncle/entrepo/types"
)

var (
	andSplitter   = regexp.MustCompile(`(?i)\s+and\s+`)
	conditionExpr = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_.]*)\s*(=|!=|<>|>=|<=|>|<)\s*\?$`)
	nullExpr      = regexp.MustCompile(`(?i)^([A-Za-z_][A-Za-z0-9_.]*)\s+is\s+(not\s+)?null$`)
)

type predicate func(rec repository.RawRecord) bool

// compile turns a conjunction of simple comparisons such as
// "(status = ?) AND (age >= ?)" or "deleted_at IS NULL" into a predicate.
func compile(filter *types.QueryFilter) (predicate, error) {
	if filter == nil || strings.TrimSpace(filter.Schema) == "" {
		return func(repository.RawRecord) bool { return true }, nil
	}
	var (
		preds []predicate
		next  int
	)
	for _, part := range andSplitter.Split(filter.Schema, -1) {
		part = strings.TrimSpace(strings.Trim(strings.TrimSpace(part), "()"))
		if m := nullExpr.FindStringSubmatch(part); m != nil {
			col, negate := column(m[1]), m[2] != ""
			preds = append(preds, func(rec repository.RawRecord) bool {
				return (rec[col] == nil) != negate
			})
			continue
		}
		m := conditionExpr.FindStringSubmatch(part)
		if m == nil {
			return nil, fmt.Errorf("memory: unsupported filter %q", part)
		}
		if next >= len(filter.Args) {
			return nil, fmt.Errorf("memory: filter %q has more placeholders than arguments", filter.Schema)
		}
		col, op, arg := column(m[1]), m[2], filter.Args[next]
		next++
		preds = append(preds, func(rec repository.RawRecord) bool {
			c := compare(rec[col], arg)
			switch op {
			case "=":
				return c == 0
			case "!=", "<>":
				return c != 0
			case ">":
				return c > 0
			case ">=":
				return c >= 0
			case "<":
				return c < 0
			default:
				return c <= 0
			}
		})
	}
	if next != len(filter.Args) {
		return nil, fmt.Errorf("memory: filter %q has %d arguments for %d placeholders", filter.Schema, len(filter.Args), next)
	}
	return func(rec repository.RawRecord) bool {
		for _, p := range preds {
			if !p(rec) {
				return false
			}
		}
		return true
	}, nil
}

// column strips a table alias: "u.name" -> "name".
func column(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i+1:]
	}
	return name
}

// compare orders two values numerically when both are numbers and by their
// string form otherwise. Nil sorts first.
func compare(a, b interface{}) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	if isNumeric(a) && isNumeric(b) {
		x, y := cast.ToFloat64(a), cast.ToFloat64(b)
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
		return 0
	}
	return strings.Compare(cast.ToString(a), cast.ToString(b))
}

func isNumeric(v interface{}) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return true
	}
	return false
}

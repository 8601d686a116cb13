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

package types

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
)

// JsonObject is a convenience type for JSON columns mapped to objects.
type JsonObject map[string]interface{}

// JsonArray is a convenience type for JSON columns mapped to arrays.
type JsonArray []JsonObject

// NewJsonObject builds a JsonObject from a decoded map, a JSON document held
// in a string or []byte, or an existing JsonObject.
func NewJsonObject(value interface{}) (JsonObject, error) {
	switch v := value.(type) {
	case JsonObject:
		return v, nil
	case map[string]interface{}:
		return JsonObject(v), nil
	case string:
		return decodeJsonObject([]byte(v))
	case []byte:
		return decodeJsonObject(v)
	default:
		return nil, fmt.Errorf("cannot build a json object from %T", value)
	}
}

// NewJsonArray builds a JsonArray from a JSON document, a JsonArray or a
// slice of objects.
func NewJsonArray(value interface{}) (JsonArray, error) {
	switch v := value.(type) {
	case JsonArray:
		return v, nil
	case []map[string]interface{}:
		out := make(JsonArray, len(v))
		for i, o := range v {
			out[i] = o
		}
		return out, nil
	case []interface{}:
		out := make(JsonArray, 0, len(v))
		for _, item := range v {
			o, err := NewJsonObject(item)
			if err != nil {
				return nil, err
			}
			out = append(out, o)
		}
		return out, nil
	case string:
		return decodeJsonArray([]byte(v))
	case []byte:
		return decodeJsonArray(v)
	default:
		return nil, fmt.Errorf("cannot build a json array from %T", value)
	}
}

func decodeJsonObject(b []byte) (JsonObject, error) {
	var o JsonObject
	if err := json.Unmarshal(b, &o); err != nil {
		return nil, fmt.Errorf("decode json object: %w", err)
	}
	return o, nil
}

func decodeJsonArray(b []byte) (JsonArray, error) {
	var a JsonArray
	if err := json.Unmarshal(b, &a); err != nil {
		return nil, fmt.Errorf("decode json array: %w", err)
	}
	return a, nil
}

// Value implements driver.Valuer for JsonObject.
func (j JsonObject) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan implements sql.Scanner for JsonObject.
func (j *JsonObject) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*j = make(JsonObject)
		return nil
	case []byte:
		return json.Unmarshal(v, j)
	case string:
		return json.Unmarshal([]byte(v), j)
	default:
		return errors.New("type assertion must be []byte or string")
	}
}

// Value implements driver.Valuer for JsonArray.
func (j JsonArray) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan implements sql.Scanner for JsonArray.
func (j *JsonArray) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*j = make(JsonArray, 0)
		return nil
	case []byte:
		return json.Unmarshal(v, j)
	case string:
		return json.Unmarshal([]byte(v), j)
	default:
		return errors.New("type assertion must be []byte or string")
	}
}

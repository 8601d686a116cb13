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

import "fmt"

// SchemaError reports an invalid entity declaration, for example a field
// annotated with more than one non-null type.
type SchemaError struct {
	Entity    string
	Attribute string
	Reason    string
}

func (e *SchemaError) Error() string {
	if e.Attribute == "" {
		return fmt.Sprintf("entity %s: %s", e.Entity, e.Reason)
	}
	return fmt.Sprintf("entity %s: attribute %s: %s", e.Entity, e.Attribute, e.Reason)
}

// NullAttributeError reports a nil value for a non-nullable attribute.
type NullAttributeError struct {
	Entity    string
	Attribute string
}

func (e *NullAttributeError) Error() string {
	return fmt.Sprintf("Entity attribute value %s cannot be null.", e.Attribute)
}

// UnknownAttributeError reports an attribute the entity does not declare.
type UnknownAttributeError struct {
	Entity    string
	Attribute string
}

func (e *UnknownAttributeError) Error() string {
	return fmt.Sprintf("entity %s has no attribute %s", e.Entity, e.Attribute)
}

// CastError reports a value that could not be coerced or assigned.
type CastError struct {
	Attribute string
	Target    string
	Err       error
}

func (e *CastError) Error() string {
	return fmt.Sprintf("cast attribute %s to %s: %v", e.Attribute, e.Target, e.Err)
}

func (e *CastError) Unwrap() error { return e.Err }

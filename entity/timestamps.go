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

import "time"

// Timestamps is embedded by entities whose records carry creation and update
// times. Declare both attributes with TimestampTypes.
type Timestamps struct {
	CreatedAt *time.Time `entity:"created_at" bun:"created_at"`
	UpdatedAt *time.Time `entity:"updated_at" bun:"updated_at"`
}

// TimestampTypes annotates the Timestamps attributes as nullable times.
func TimestampTypes[T any](b *Builder[T]) *Builder[T] {
	return b.Type("created_at", "time|null").Type("updated_at", "time|null")
}

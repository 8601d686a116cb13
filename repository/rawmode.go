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

import "context"

type rawModeKey struct{}

// WithRawMode returns a context one raw-mode level deeper than ctx. Read
// operations called with a raw context return store records unconverted and
// skip result validation. Leaving raw mode is returning to the parent context.
func WithRawMode(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, rawModeKey{}, RawDepth(ctx)+1)
}

// RawDepth reports how many raw-mode levels ctx is nested in.
func RawDepth(ctx context.Context) int {
	if ctx == nil {
		return 0
	}
	depth, _ := ctx.Value(rawModeKey{}).(int)
	return depth
}

// IsRawMode reports whether ctx is inside at least one raw-mode level.
func IsRawMode(ctx context.Context) bool {
	return RawDepth(ctx) > 0
}

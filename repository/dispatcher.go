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

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Operation is a named repository operation.
type Operation func(ctx context.Context, args ...interface{}) (interface{}, error)

// PostProcessor transforms the result of the base operation of an extended
// call. base is the operation name with the suffix removed.
type PostProcessor func(ctx context.Context, result interface{}, base string) (interface{}, error)

// FallbackFunc handles operation names the dispatcher has no entry for.
type FallbackFunc func(ctx context.Context, name string, args ...interface{}) (interface{}, error)

type extension struct {
	suffix string
	post   PostProcessor
}

// Dispatcher resolves operation names to registered operations. A name with
// no direct entry that ends in a registered suffix runs the operation named
// by the rest of it, then the suffix's post-processor on its result.
// Resolutions that end at a registered operation are memoised per name
// until the registry changes.
type Dispatcher struct {
	mu         sync.RWMutex
	operations map[string]Operation
	extensions []extension
	fallback   FallbackFunc
	resolved   map[string]Operation
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		operations: map[string]Operation{},
		resolved:   map[string]Operation{},
	}
}

// Handle registers op under name, replacing any previous entry.
func (d *Dispatcher) Handle(name string, op Operation) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.operations[name] = op
	d.resolved = map[string]Operation{}
}

// Extend registers a suffix. Suffixes are matched in registration order.
func (d *Dispatcher) Extend(suffix string, post PostProcessor) error {
	if err := checkExtension(suffix, post); err != nil {
		return err
	}
	d.extend(suffix, post)
	return nil
}

func checkExtension(suffix string, post PostProcessor) error {
	if suffix == "" {
		return fmt.Errorf("dispatcher: empty extension suffix")
	}
	if post == nil {
		return fmt.Errorf("dispatcher: nil post-processor for suffix %s", suffix)
	}
	return nil
}

func (d *Dispatcher) extend(suffix string, post PostProcessor) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.resolved = map[string]Operation{}
	for i, ext := range d.extensions {
		if ext.suffix == suffix {
			d.extensions[i].post = post
			return
		}
	}
	d.extensions = append(d.extensions, extension{suffix: suffix, post: post})
}

// Fallback sets the handler for names that are neither registered nor
// extended, and for extended names whose base is not registered.
func (d *Dispatcher) Fallback(fn FallbackFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fallback = fn
	d.resolved = map[string]Operation{}
}

// Has reports whether name is registered directly.
func (d *Dispatcher) Has(name string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.operations[name]
	return ok
}

// Suffixes returns the registered extension suffixes in match order.
func (d *Dispatcher) Suffixes() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]string, len(d.extensions))
	for i, ext := range d.extensions {
		out[i] = ext.suffix
	}
	return out
}

// Resolve returns the operation name dispatches to.
func (d *Dispatcher) Resolve(name string) (Operation, error) {
	d.mu.RLock()
	op, ok := d.resolved[name]
	d.mu.RUnlock()
	if ok {
		return op, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if op, ok := d.resolved[name]; ok {
		return op, nil
	}
	op, registered, err := d.resolveLocked(name)
	if err != nil {
		return nil, err
	}
	// fallback resolutions are not kept; their names come from callers
	if registered {
		d.resolved[name] = op
	}
	return op, nil
}

// resolveLocked reports whether the resolution ended at a registered
// operation rather than the fallback.
func (d *Dispatcher) resolveLocked(name string) (Operation, bool, error) {
	if op, ok := d.operations[name]; ok {
		return op, true, nil
	}
	for _, ext := range d.extensions {
		if name == ext.suffix || !strings.HasSuffix(name, ext.suffix) {
			continue
		}
		base := strings.TrimSuffix(name, ext.suffix)
		for _, other := range d.extensions {
			if base != other.suffix && strings.HasSuffix(base, other.suffix) {
				return nil, false, &ExtensionLoopError{Name: name, Base: base, Suffix: other.suffix}
			}
		}
		inner, registered, err := d.baseLocked(name, base)
		if err != nil {
			return nil, false, err
		}
		post := ext.post
		return func(ctx context.Context, args ...interface{}) (interface{}, error) {
			result, err := inner(ctx, args...)
			if err != nil {
				return nil, err
			}
			return post(ctx, result, base)
		}, registered, nil
	}
	return d.baseLocked(name, name)
}

// baseLocked resolves base without suffix matching; name is the name that
// was called and is reported when nothing handles base.
func (d *Dispatcher) baseLocked(name, base string) (Operation, bool, error) {
	if op, ok := d.operations[base]; ok {
		return op, true, nil
	}
	if d.fallback == nil {
		return nil, false, &MethodNotFound{Name: name}
	}
	fallback := d.fallback
	return func(ctx context.Context, args ...interface{}) (interface{}, error) {
		return fallback(ctx, base, args...)
	}, false, nil
}

// Call resolves name and runs it.
func (d *Dispatcher) Call(ctx context.Context, name string, args ...interface{}) (interface{}, error) {
	op, err := d.Resolve(name)
	if err != nil {
		return nil, err
	}
	return op(ctx, args...)
}

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
	"errors"
	"fmt"
	"reflect"

	"github.com/tomoncle/entrepo/entity"
	"github.com/tomoncle/entrepo/types"
)

// Option configures a Repository.
type Option func(*options)

type options struct {
	marshaller *entity.Marshaller
	logger     Logger
	observer   Observer
	extensions []extension
}

// WithMarshaller sets the marshaller, and with it the schema registry.
func WithMarshaller(m *entity.Marshaller) Option {
	return func(o *options) { o.marshaller = m }
}

func WithLogger(l Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithObserver reports pipeline actions and extension calls to obs.
func WithObserver(obs Observer) Option {
	return func(o *options) { o.observer = obs }
}

// WithExtension registers an extension suffix after the built-in OrFail.
func WithExtension(suffix string, post PostProcessor) Option {
	return func(o *options) { o.extensions = append(o.extensions, extension{suffix: suffix, post: post}) }
}

// Repository decorates a Store for entity type T. Reads return entities
// unless called in raw mode, mutations run through the action pipeline, and
// operation names are dispatched with suffix extensions ("findOrFail").
type Repository[T any] struct {
	store      Store
	marshaller *entity.Marshaller
	dispatcher *Dispatcher
	filter     *types.QueryFilter
	name       string
	logger     Logger
	observer   Observer
	extensions []extension
}

var _ EntityRepository[struct{}] = (*Repository[struct{}])(nil)

// New returns a repository of T over store.
func New[T any](store Store, opts ...Option) (*Repository[T], error) {
	if store == nil {
		return nil, fmt.Errorf("repository: nil store")
	}
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.marshaller == nil {
		o.marshaller = entity.DefaultMarshaller()
	}
	if o.logger == nil {
		o.logger = defaultLogger
	}
	if o.observer == nil {
		o.observer = nopObserver{}
	}

	for _, ext := range o.extensions {
		if err := checkExtension(ext.suffix, ext.post); err != nil {
			return nil, err
		}
	}

	rt := reflect.TypeOf((*T)(nil)).Elem()
	if _, err := o.marshaller.Registry().Resolve(rt); err != nil {
		return nil, err
	}
	r := &Repository[T]{
		store:      store,
		marshaller: o.marshaller,
		name:       o.marshaller.Registry().EntityName(rt),
		logger:     o.logger,
		observer:   o.observer,
		extensions: o.extensions,
	}
	r.wire()
	return r, nil
}

// wire builds the dispatcher bound to r. Extensions are checked by New.
func (r *Repository[T]) wire() {
	d := NewDispatcher()
	d.Handle("find", r.execute(r.find))
	d.Handle("get", r.execute(r.get))
	d.Handle("first", r.execute(r.first))
	d.Handle("count", r.execute(r.count))
	d.Handle("deleteAll", r.execute(r.deleteAll))
	d.Handle("create", r.create)
	d.Handle("update", r.update)
	d.Handle("delete", r.delete)

	d.extend("OrFail", r.observed("OrFail", r.validateResult))
	for _, ext := range r.extensions {
		d.extend(ext.suffix, r.observed(ext.suffix, ext.post))
	}
	if caller, ok := r.store.(Caller); ok {
		d.Fallback(func(ctx context.Context, name string, args ...interface{}) (interface{}, error) {
			return r.execute(func(ctx context.Context, args ...interface{}) (interface{}, error) {
				result, err := caller.Call(ctx, name, r.filter, args...)
				if errors.Is(err, ErrUnknownMethod) {
					return nil, &MethodNotFound{Name: name}
				}
				return result, err
			})(ctx, args...)
		})
	}
	r.dispatcher = d
}

func (r *Repository[T]) observed(suffix string, post PostProcessor) PostProcessor {
	return func(ctx context.Context, result interface{}, base string) (interface{}, error) {
		out, err := post(ctx, result, base)
		r.observer.ObserveExtension(r.name, suffix, err)
		return out, err
	}
}

// execute wraps a read operation so its result is converted to entities
// unless ctx is in raw mode.
func (r *Repository[T]) execute(op Operation) Operation {
	return func(ctx context.Context, args ...interface{}) (interface{}, error) {
		result, err := op(ctx, args...)
		if err != nil {
			return nil, err
		}
		if IsRawMode(ctx) {
			return result, nil
		}
		return r.convert(result)
	}
}

// Name returns the entity name used in errors and logs.
func (r *Repository[T]) Name() string { return r.name }

// Store returns the decorated store.
func (r *Repository[T]) Store() Store { return r.store }

// Where returns a copy of the repository whose reads, counts and bulk
// deletes are restricted by filter, combined with any existing scope.
func (r *Repository[T]) Where(filter *types.QueryFilter) *Repository[T] {
	scoped := r.clone(r.store)
	scoped.filter = r.filter.And(filter)
	return scoped
}

// WithStore returns a copy of the repository over another store, such as a
// transaction-bound one.
func (r *Repository[T]) WithStore(store Store) *Repository[T] {
	return r.clone(store)
}

func (r *Repository[T]) clone(store Store) *Repository[T] {
	c := &Repository[T]{
		store:      store,
		marshaller: r.marshaller,
		filter:     r.filter,
		name:       r.name,
		logger:     r.logger,
		observer:   r.observer,
		extensions: r.extensions,
	}
	c.wire()
	return c
}

// Call dispatches an operation by name. Unknown names go to the store when
// it implements Caller.
func (r *Repository[T]) Call(ctx context.Context, name string, args ...interface{}) (interface{}, error) {
	return r.dispatcher.Call(ctx, name, args...)
}

func (r *Repository[T]) Find(ctx context.Context, id interface{}) (*T, error) {
	return one[T](r.Call(ctx, "find", id))
}

func (r *Repository[T]) FindOrFail(ctx context.Context, id interface{}) (*T, error) {
	return one[T](r.Call(ctx, "findOrFail", id))
}

func (r *Repository[T]) Get(ctx context.Context, columns ...string) ([]*T, error) {
	return many[T](r.Call(ctx, "get", stringArgs(columns)...))
}

func (r *Repository[T]) GetOrFail(ctx context.Context, columns ...string) ([]*T, error) {
	return many[T](r.Call(ctx, "getOrFail", stringArgs(columns)...))
}

func (r *Repository[T]) First(ctx context.Context) (*T, error) {
	return one[T](r.Call(ctx, "first"))
}

func (r *Repository[T]) FirstOrFail(ctx context.Context) (*T, error) {
	return one[T](r.Call(ctx, "firstOrFail"))
}

// Create stores attributes, a map or a *T, and returns the stored entity as
// read back from the store.
func (r *Repository[T]) Create(ctx context.Context, attributes interface{}) (*T, error) {
	return one[T](r.Call(ctx, "create", attributes))
}

// Update changes the record with the given id, a key value or a *T. With a
// *T and no attributes, the entity's own attributes are written.
func (r *Repository[T]) Update(ctx context.Context, id interface{}, attributes map[string]interface{}) (*T, error) {
	return one[T](r.Call(ctx, "update", id, attributes))
}

func (r *Repository[T]) Delete(ctx context.Context, id interface{}) (bool, error) {
	result, err := r.Call(ctx, "delete", id)
	if err != nil {
		return false, err
	}
	ok, _ := result.(bool)
	return ok, nil
}

// DeleteAll deletes every record in scope and returns how many were removed.
func (r *Repository[T]) DeleteAll(ctx context.Context) (int64, error) {
	return integer(r.Call(ctx, "deleteAll"))
}

func (r *Repository[T]) Count(ctx context.Context) (int64, error) {
	return integer(r.Call(ctx, "count"))
}

// Page returns one page of entities in scope.
func (r *Repository[T]) Page(ctx context.Context, req *types.PageRequest) (*types.Pagination[T], error) {
	filter := r.filter.And(req.GetFilter())
	pagination := types.NewDefaultPagination[T](req.GetPage(), req.GetPageSize())
	total, err := r.store.Count(ctx, filter)
	if err != nil || total == 0 {
		return pagination, err
	}
	records, err := r.store.QueryAll(ctx, &Query{
		Filter: filter,
		Orders: req.GetOrders(),
		Offset: req.GetOffset(),
		Limit:  req.GetPageSize(),
	})
	if err != nil {
		return nil, err
	}
	items, err := many[T](r.convert(records))
	if err != nil {
		return nil, err
	}
	pagination.Total = int(total)
	pagination.Items = items
	return pagination, nil
}

func (r *Repository[T]) find(ctx context.Context, args ...interface{}) (interface{}, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("find %s: expected one id, got %d arguments", r.name, len(args))
	}
	id, err := r.normalizeID(args[0])
	if err != nil {
		return nil, err
	}
	if r.filter == nil {
		return r.store.FindByID(ctx, id)
	}
	records, err := r.store.QueryAll(ctx, &Query{
		Filter: r.filter.And(types.NewQueryFilter(r.store.KeyName()+" = ?", id)),
		Limit:  1,
	})
	if err != nil || len(records) == 0 {
		return RawRecord(nil), err
	}
	return records[0], nil
}

func (r *Repository[T]) get(ctx context.Context, args ...interface{}) (interface{}, error) {
	columns := make([]string, 0, len(args))
	for _, a := range args {
		c, ok := a.(string)
		if !ok {
			return nil, fmt.Errorf("get %s: column names must be strings, got %T", r.name, a)
		}
		columns = append(columns, c)
	}
	return r.store.QueryAll(ctx, &Query{Columns: columns, Filter: r.filter})
}

func (r *Repository[T]) first(ctx context.Context, _ ...interface{}) (interface{}, error) {
	records, err := r.store.QueryAll(ctx, &Query{Filter: r.filter, Limit: 1})
	if err != nil || len(records) == 0 {
		return RawRecord(nil), err
	}
	return records[0], nil
}

func (r *Repository[T]) count(ctx context.Context, _ ...interface{}) (interface{}, error) {
	return r.store.Count(ctx, r.filter)
}

func (r *Repository[T]) deleteAll(ctx context.Context, _ ...interface{}) (interface{}, error) {
	n, err := r.store.DeleteAll(ctx, r.filter)
	if err != nil {
		return nil, err
	}
	r.logger.Info("records deleted", "entity", r.name, "count", n)
	return n, nil
}

func (r *Repository[T]) create(ctx context.Context, args ...interface{}) (interface{}, error) {
	attributes := map[string]interface{}{}
	if len(args) > 0 {
		var err error
		if attributes, err = r.attributesOf(args[0], true); err != nil {
			return nil, err
		}
	}
	return r.performAction(ctx, ActionCreate, func(ctx context.Context) (ActionOutcome, error) {
		return r.store.CreateRaw(ctx, attributes)
	})
}

func (r *Repository[T]) update(ctx context.Context, args ...interface{}) (interface{}, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("update %s: missing id", r.name)
	}
	instance, err := r.rawRecord(ctx, args[0])
	if err != nil {
		return nil, err
	}
	var attributes map[string]interface{}
	if len(args) > 1 && args[1] != nil {
		if attributes, err = r.attributesOf(args[1], false); err != nil {
			return nil, err
		}
	}
	if e, ok := args[0].(*T); ok && len(attributes) == 0 {
		if attributes, err = r.attributesOf(e, true); err != nil {
			return nil, err
		}
	}
	return r.performAction(ctx, ActionUpdate, func(ctx context.Context) (ActionOutcome, error) {
		return r.store.UpdateRaw(ctx, instance, attributes)
	})
}

func (r *Repository[T]) delete(ctx context.Context, args ...interface{}) (interface{}, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("delete %s: missing id", r.name)
	}
	instance, err := r.rawRecord(ctx, args[0])
	if err != nil {
		return nil, err
	}
	return r.performAction(ctx, ActionDelete, func(ctx context.Context) (ActionOutcome, error) {
		ok, err := r.store.DeleteRaw(ctx, instance)
		return Deleted(ok), err
	})
}

// rawRecord looks the record of id up without conversion.
func (r *Repository[T]) rawRecord(ctx context.Context, id interface{}) (RawRecord, error) {
	result, err := r.dispatcher.Call(WithRawMode(ctx), "find", id)
	if err != nil {
		return nil, err
	}
	rec, _ := result.(RawRecord)
	if rec == nil {
		return nil, EmptyResult(r.name)
	}
	return rec, nil
}

// normalizeID accepts string and integer keys, and entities of T whose key
// is one.
func (r *Repository[T]) normalizeID(id interface{}) (interface{}, error) {
	if e, ok := id.(*T); ok {
		key, err := r.marshaller.KeyValue(e)
		if err != nil {
			return nil, err
		}
		id = key
	}
	switch id.(type) {
	case string, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return id, nil
	}
	return nil, &InvalidIDError{ID: id}
}

// attributesOf reads an attribute map off a map or a *T. With dropZeroKey,
// a zero primary key is left out so the store can assign one.
func (r *Repository[T]) attributesOf(v interface{}, dropZeroKey bool) (map[string]interface{}, error) {
	switch a := v.(type) {
	case map[string]interface{}:
		return a, nil
	case RawRecord:
		return a, nil
	case *T:
		attrs, err := r.marshaller.Attributes(a)
		if err != nil {
			return nil, err
		}
		key := r.store.KeyName()
		if dropZeroKey {
			if k, ok := attrs[key]; !ok || k == nil || reflect.ValueOf(k).IsZero() {
				delete(attrs, key)
			}
		} else {
			delete(attrs, key)
		}
		return attrs, nil
	}
	return nil, fmt.Errorf("%s: unsupported attributes %T", r.name, v)
}

func one[T any](result interface{}, err error) (*T, error) {
	if err != nil || result == nil {
		return nil, err
	}
	e, ok := result.(*T)
	if !ok {
		return nil, fmt.Errorf("unexpected %T result, want %T", result, (*T)(nil))
	}
	return e, nil
}

func many[T any](result interface{}, err error) ([]*T, error) {
	if err != nil || result == nil {
		return nil, err
	}
	items, ok := result.([]*T)
	if !ok {
		return nil, fmt.Errorf("unexpected %T result, want %T", result, []*T(nil))
	}
	return items, nil
}

func integer(result interface{}, err error) (int64, error) {
	if err != nil {
		return 0, err
	}
	switch n := result.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	}
	return 0, fmt.Errorf("unexpected %T result, want int64", result)
}

func stringArgs(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

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

// Package memory provides an in-process repository.Store.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/spf13/cast"

	"github.com/tomoncle/entrepo/repository"
	"github.com/tomoncle/entrepo/types"
)

// Option configures a Store.
type Option func(*Store)

// WithKey sets the primary-key attribute, "id" by default.
func WithKey(name string) Option {
	return func(s *Store) { s.key = name }
}

// WithDefaults sets attribute values applied to records missing them on
// create. Like database column defaults, they are not part of the create
// outcome and only show up when the record is read back.
func WithDefaults(defaults map[string]interface{}) Option {
	return func(s *Store) { s.defaults = defaults }
}

// Store keeps records in memory, keyed by the string form of their primary
// key, in insertion order. Integer keys are assigned on create when missing.
type Store struct {
	mu       sync.RWMutex
	key      string
	defaults map[string]interface{}
	records  map[string]repository.RawRecord
	order    []string
	nextID   int64
}

var (
	_ repository.Store  = (*Store)(nil)
	_ repository.Caller = (*Store)(nil)
)

func New(opts ...Option) *Store {
	s := &Store{
		key:     "id",
		records: map[string]repository.RawRecord{},
		nextID:  1,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) KeyName() string { return s.key }

func (s *Store) FindByID(_ context.Context, id interface{}) (repository.RawRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[fmt.Sprint(id)]
	if !ok {
		return nil, nil
	}
	return copyRecord(rec), nil
}

func (s *Store) CreateRaw(_ context.Context, attributes map[string]interface{}) (repository.ActionOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	created := make(repository.RawRecord, len(attributes)+1)
	for k, v := range attributes {
		created[k] = v
	}
	id, ok := created[s.key]
	if !ok || id == nil {
		id = s.nextID
		created[s.key] = id
	}
	if n, err := cast.ToInt64E(id); err == nil && n >= s.nextID {
		s.nextID = n + 1
	}
	k := fmt.Sprint(id)
	if _, exists := s.records[k]; exists {
		return repository.Created(false, nil), fmt.Errorf("memory: duplicate key %s = %v", s.key, id)
	}

	stored := copyRecord(created)
	for name, v := range s.defaults {
		if _, ok := stored[name]; !ok {
			stored[name] = v
		}
	}
	s.records[k] = stored
	s.order = append(s.order, k)
	return repository.Created(true, created), nil
}

func (s *Store) UpdateRaw(_ context.Context, instance repository.RawRecord, attributes map[string]interface{}) (repository.ActionOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := fmt.Sprint(instance[s.key])
	rec, ok := s.records[k]
	if !ok {
		return repository.Updated(false, nil), nil
	}
	if id, ok := attributes[s.key]; ok && fmt.Sprint(id) != k {
		return repository.Updated(false, copyRecord(rec)), fmt.Errorf("memory: cannot change %s from %s to %v", s.key, k, id)
	}
	for name, v := range attributes {
		rec[name] = v
	}
	return repository.Updated(true, copyRecord(rec)), nil
}

func (s *Store) DeleteRaw(_ context.Context, instance repository.RawRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeLocked(fmt.Sprint(instance[s.key])), nil
}

func (s *Store) removeLocked(k string) bool {
	if _, ok := s.records[k]; !ok {
		return false
	}
	delete(s.records, k)
	for i, o := range s.order {
		if o == k {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

func (s *Store) QueryAll(_ context.Context, query *repository.Query) ([]repository.RawRecord, error) {
	if query == nil {
		query = &repository.Query{}
	}
	s.mu.RLock()
	matched, err := s.matchLocked(query.Filter)
	s.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	if len(query.Orders) > 0 {
		if err := sortRecords(matched, query.Orders); err != nil {
			return nil, err
		}
	}
	if query.Offset > 0 {
		if query.Offset >= len(matched) {
			matched = matched[:0]
		} else {
			matched = matched[query.Offset:]
		}
	}
	if query.Limit > 0 && query.Limit < len(matched) {
		matched = matched[:query.Limit]
	}
	if len(query.Columns) > 0 {
		for i, rec := range matched {
			projected := make(repository.RawRecord, len(query.Columns))
			for _, c := range query.Columns {
				if c == "*" {
					projected = rec
					break
				}
				projected[c] = rec[c]
			}
			matched[i] = projected
		}
	}
	return matched, nil
}

// matchLocked returns copies of the records matching filter in insertion order.
func (s *Store) matchLocked(filter *types.QueryFilter) ([]repository.RawRecord, error) {
	match, err := compile(filter)
	if err != nil {
		return nil, err
	}
	out := make([]repository.RawRecord, 0, len(s.order))
	for _, k := range s.order {
		if rec := s.records[k]; match(rec) {
			out = append(out, copyRecord(rec))
		}
	}
	return out, nil
}

func (s *Store) DeleteAll(_ context.Context, filter *types.QueryFilter) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	matched, err := s.matchLocked(filter)
	if err != nil {
		return 0, err
	}
	var n int64
	for _, rec := range matched {
		if s.removeLocked(fmt.Sprint(rec[s.key])) {
			n++
		}
	}
	return n, nil
}

func (s *Store) Count(_ context.Context, filter *types.QueryFilter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	matched, err := s.matchLocked(filter)
	if err != nil {
		return 0, err
	}
	return int64(len(matched)), nil
}

// Call supports "exists", "firstWhere" and "getWhere" (column, value), all
// restricted by filter.
func (s *Store) Call(ctx context.Context, method string, filter *types.QueryFilter, args ...interface{}) (interface{}, error) {
	switch method {
	case "exists":
		n, err := s.Count(ctx, filter)
		return n > 0, err
	case "firstWhere", "getWhere":
		if len(args) != 2 {
			return nil, fmt.Errorf("memory: %s expects a column and a value", method)
		}
		where := filter.And(types.NewQueryFilter(cast.ToString(args[0])+" = ?", args[1]))
		query := &repository.Query{Filter: where}
		if method == "firstWhere" {
			query.Limit = 1
		}
		records, err := s.QueryAll(ctx, query)
		if err != nil {
			return nil, err
		}
		if method == "getWhere" {
			return records, nil
		}
		if len(records) == 0 {
			return repository.RawRecord(nil), nil
		}
		return records[0], nil
	}
	return nil, repository.ErrUnknownMethod
}

func sortRecords(records []repository.RawRecord, orders []string) error {
	type key struct {
		column string
		desc   bool
	}
	keys := make([]key, 0, len(orders))
	for _, o := range orders {
		fields := strings.Fields(o)
		if len(fields) == 0 || len(fields) > 2 {
			return fmt.Errorf("memory: unsupported order %q", o)
		}
		k := key{column: column(fields[0])}
		if len(fields) == 2 {
			switch strings.ToUpper(fields[1]) {
			case "ASC":
			case "DESC":
				k.desc = true
			default:
				return fmt.Errorf("memory: unsupported order %q", o)
			}
		}
		keys = append(keys, k)
	}
	sort.SliceStable(records, func(i, j int) bool {
		for _, k := range keys {
			c := compare(records[i][k.column], records[j][k.column])
			if c == 0 {
				continue
			}
			if k.desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
	return nil
}

func copyRecord(rec repository.RawRecord) repository.RawRecord {
	if rec == nil {
		return nil
	}
	out := make(repository.RawRecord, len(rec))
	for k, v := range rec {
		out[k] = v
	}
	return out
}

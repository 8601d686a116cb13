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

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cast"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/feature"

	"github.com/tomoncle/entrepo/repository"
	"github.com/tomoncle/entrepo/types"
)

// TableStoreOption configures a TableStore.
type TableStoreOption func(*TableStore)

// WithKeyColumn sets the primary-key column, "id" by default.
func WithKeyColumn(name string) TableStoreOption {
	return func(s *TableStore) { s.key = name }
}

// WithStoreLogger overrides the logger failed statements are reported to.
func WithStoreLogger(logger Logger) TableStoreOption {
	return func(s *TableStore) { s.logger = logger }
}

// TableStore is a repository.Store over one SQL table. Records are read and
// written as column maps, so no bun model is needed for the table.
type TableStore struct {
	db     bun.IDB
	table  string
	key    string
	logger Logger
}

var (
	_ repository.Store  = (*TableStore)(nil)
	_ repository.Caller = (*TableStore)(nil)
)

func NewTableStore(db bun.IDB, table string, opts ...TableStoreOption) *TableStore {
	s := &TableStore{db: db, table: table, key: "id", logger: GetLogger()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Table returns a store over table on the global database. The key column
// comes from Config.Tables when InitDB was given one.
func Table(table string, opts ...TableStoreOption) *TableStore {
	globalMu.RLock()
	cfg := globalConfig
	globalMu.RUnlock()
	opts = append([]TableStoreOption{WithKeyColumn(cfg.KeyFor(table))}, opts...)
	return NewTableStore(GetDB(), table, opts...)
}

// WithTx returns a copy of the store that runs its statements in tx.
func (s *TableStore) WithTx(tx bun.Tx) *TableStore {
	c := *s
	c.db = tx
	return &c
}

// RunInTx calls fn with a transactional copy of the store, committing when
// fn returns nil.
func (s *TableStore) RunInTx(ctx context.Context, fn func(ctx context.Context, store *TableStore) error) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, s.WithTx(tx))
	})
}

func (s *TableStore) TableName() string { return s.table }

func (s *TableStore) KeyName() string { return s.key }

func (s *TableStore) FindByID(ctx context.Context, id interface{}) (repository.RawRecord, error) {
	rec := map[string]interface{}{}
	err := s.selectQuery().
		Where("? = ?", bun.Ident(s.key), id).
		Limit(1).
		Scan(ctx, &rec)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, s.fail("find", err)
	}
	return normalize(rec), nil
}

func (s *TableStore) CreateRaw(ctx context.Context, attributes map[string]interface{}) (repository.ActionOutcome, error) {
	values := make(map[string]interface{}, len(attributes))
	for k, v := range attributes {
		values[k] = v
	}
	q := s.db.NewInsert().Model(&values).TableExpr("?", bun.Ident(s.table))

	created := repository.RawRecord(values)
	if id, ok := values[s.key]; ok && id != nil {
		if _, err := q.Exec(ctx); err != nil {
			return repository.Created(false, nil), s.fail("create", err)
		}
		return repository.Created(true, copyRecord(created)), nil
	}

	var id int64
	if s.db.Dialect().Features().Has(feature.InsertReturning) {
		if _, err := q.Returning("?", bun.Ident(s.key)).Exec(ctx, &id); err != nil {
			return repository.Created(false, nil), s.fail("create", err)
		}
	} else {
		res, err := q.Exec(ctx)
		if err != nil {
			return repository.Created(false, nil), s.fail("create", err)
		}
		if id, err = res.LastInsertId(); err != nil {
			return repository.Created(false, nil), s.fail("create", err)
		}
	}
	created = copyRecord(created)
	created[s.key] = id
	return repository.Created(true, created), nil
}

func (s *TableStore) UpdateRaw(ctx context.Context, instance repository.RawRecord, attributes map[string]interface{}) (repository.ActionOutcome, error) {
	id, ok := instance[s.key]
	if !ok || id == nil {
		return repository.Updated(false, nil), fmt.Errorf("update %s: instance has no %s", s.table, s.key)
	}
	if len(attributes) == 0 {
		return repository.Updated(true, instance), nil
	}
	if v, ok := attributes[s.key]; ok && fmt.Sprint(v) != fmt.Sprint(id) {
		return repository.Updated(false, nil), fmt.Errorf("update %s: cannot change %s", s.table, s.key)
	}

	values := make(map[string]interface{}, len(attributes))
	for k, v := range attributes {
		if k != s.key {
			values[k] = v
		}
	}
	res, err := s.db.NewUpdate().
		Model(&values).
		TableExpr("?", bun.Ident(s.table)).
		Where("? = ?", bun.Ident(s.key), id).
		Exec(ctx)
	if err != nil {
		return repository.Updated(false, nil), s.fail("update", err)
	}
	if n, err := res.RowsAffected(); err != nil || n == 0 {
		return repository.Updated(false, nil), nil
	}

	rec, err := s.FindByID(ctx, id)
	if err != nil {
		return repository.Updated(false, nil), err
	}
	return repository.Updated(rec != nil, rec), nil
}

func (s *TableStore) DeleteRaw(ctx context.Context, instance repository.RawRecord) (bool, error) {
	id, ok := instance[s.key]
	if !ok || id == nil {
		return false, fmt.Errorf("delete %s: instance has no %s", s.table, s.key)
	}
	res, err := s.db.NewDelete().
		TableExpr("?", bun.Ident(s.table)).
		Where("? = ?", bun.Ident(s.key), id).
		Exec(ctx)
	if err != nil {
		return false, s.fail("delete", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, s.fail("delete", err)
	}
	return n > 0, nil
}

func (s *TableStore) QueryAll(ctx context.Context, query *repository.Query) ([]repository.RawRecord, error) {
	if query == nil {
		query = &repository.Query{}
	}
	q := s.selectQuery()
	for _, c := range query.Columns {
		if c == "*" {
			continue
		}
		q = q.Column(c)
	}
	q = where(q, query.Filter)
	for _, o := range query.Orders {
		q = q.OrderExpr(o)
	}
	if query.Offset > 0 {
		q = q.Offset(query.Offset)
	}
	if query.Limit > 0 {
		q = q.Limit(query.Limit)
	}

	var rows []map[string]interface{}
	if err := q.Scan(ctx, &rows); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, s.fail("query", err)
	}
	records := make([]repository.RawRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, normalize(row))
	}
	return records, nil
}

func (s *TableStore) DeleteAll(ctx context.Context, filter *types.QueryFilter) (int64, error) {
	q := s.db.NewDelete().TableExpr("?", bun.Ident(s.table))
	if filter != nil && filter.Schema != "" {
		q = q.Where(filter.Schema, filter.Args...)
	} else {
		q = q.Where("1 = 1")
	}
	res, err := q.Exec(ctx)
	if err != nil {
		return 0, s.fail("delete all", err)
	}
	return res.RowsAffected()
}

func (s *TableStore) Count(ctx context.Context, filter *types.QueryFilter) (int64, error) {
	n, err := where(s.selectQuery(), filter).Count(ctx)
	if err != nil {
		return 0, s.fail("count", err)
	}
	return int64(n), nil
}

// Call runs the table operations that have no typed method: "exists",
// "firstWhere" and "getWhere". The last two take a column and a value.
func (s *TableStore) Call(ctx context.Context, method string, filter *types.QueryFilter, args ...interface{}) (interface{}, error) {
	switch method {
	case "exists":
		exists, err := where(s.selectQuery(), filter).Exists(ctx)
		if err != nil {
			return nil, s.fail(method, err)
		}
		return exists, nil
	case "firstWhere", "getWhere":
		if len(args) != 2 {
			return nil, fmt.Errorf("%s expects a column and a value", method)
		}
		col := cast.ToString(args[0])
		if col == "" || strings.ContainsAny(col, " ;'\"()") {
			return nil, fmt.Errorf("%s: invalid column %q", method, col)
		}
		query := &repository.Query{Filter: filter.And(types.NewQueryFilter("? = ?", bun.Ident(col), args[1]))}
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

func (s *TableStore) selectQuery() *bun.SelectQuery {
	return s.db.NewSelect().TableExpr("?", bun.Ident(s.table))
}

func (s *TableStore) fail(op string, err error) error {
	_, kind := IsSqlError(err)
	s.logger.Error("Table statement failed", "table", s.table, "op", op, "kind", kind, "error", err)
	return fmt.Errorf("%s %s: %w", op, s.table, err)
}

func where(q *bun.SelectQuery, filter *types.QueryFilter) *bun.SelectQuery {
	if filter == nil || filter.Schema == "" {
		return q
	}
	return q.Where(filter.Schema, filter.Args...)
}

// normalize turns driver byte slices into strings so records read the same
// from every dialect.
func normalize(row map[string]interface{}) repository.RawRecord {
	rec := make(repository.RawRecord, len(row))
	for k, v := range row {
		if b, ok := v.([]byte); ok {
			v = string(b)
		}
		rec[k] = v
	}
	return rec
}

func copyRecord(r repository.RawRecord) repository.RawRecord {
	out := make(repository.RawRecord, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

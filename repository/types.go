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

	"github.com/tomoncle/entrepo/types"
)

// RawRecord is an untyped record as returned by a Store.
type RawRecord map[string]interface{}

// Action names a mutating store primitive.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// ActionOutcome is the result of a mutating store primitive. A false Success
// never carries a usable record.
type ActionOutcome struct {
	Action        Action
	Success       bool
	Record        RawRecord
	HasRecordSlot bool
}

// Created builds the outcome of a create primitive.
func Created(success bool, record RawRecord) ActionOutcome {
	return ActionOutcome{Action: ActionCreate, Success: success, Record: record, HasRecordSlot: true}
}

// Updated builds the outcome of an update primitive.
func Updated(success bool, record RawRecord) ActionOutcome {
	return ActionOutcome{Action: ActionUpdate, Success: success, Record: record, HasRecordSlot: true}
}

// Deleted builds the outcome of a delete primitive. It has no record slot.
func Deleted(success bool) ActionOutcome {
	return ActionOutcome{Action: ActionDelete, Success: success}
}

// Query selects records from a Store. A nil Filter matches every record and
// empty Columns selects all of them.
type Query struct {
	Columns []string
	Filter  *types.QueryFilter
	Orders  []string
	Offset  int
	Limit   int
}

// RecordFinder looks records up by primary key.
type RecordFinder interface {
	// KeyName is the primary-key attribute of the stored records.
	KeyName() string
	// FindByID returns nil, nil when no record has the key.
	FindByID(ctx context.Context, id interface{}) (RawRecord, error)
}

// ActionStore holds the mutating primitives wrapped by the action pipeline.
type ActionStore interface {
	CreateRaw(ctx context.Context, attributes map[string]interface{}) (ActionOutcome, error)
	UpdateRaw(ctx context.Context, instance RawRecord, attributes map[string]interface{}) (ActionOutcome, error)
	DeleteRaw(ctx context.Context, instance RawRecord) (bool, error)
}

// QueryStore runs filtered reads and bulk operations.
type QueryStore interface {
	QueryAll(ctx context.Context, query *Query) ([]RawRecord, error)
	DeleteAll(ctx context.Context, filter *types.QueryFilter) (int64, error)
	Count(ctx context.Context, filter *types.QueryFilter) (int64, error)
}

// Store is the storage collaborator a Repository decorates.
type Store interface {
	RecordFinder
	ActionStore
	QueryStore
}

// Caller is implemented by stores that expose operations beyond Store. The
// repository forwards unknown operation names to it and returns
// ErrUnknownMethod when the store does not know the name either.
type Caller interface {
	Call(ctx context.Context, method string, filter *types.QueryFilter, args ...interface{}) (interface{}, error)
}

// CrudRepository is the typed create, read, update and delete surface.
type CrudRepository[T any] interface {
	Find(ctx context.Context, id interface{}) (*T, error)
	FindOrFail(ctx context.Context, id interface{}) (*T, error)
	Get(ctx context.Context, columns ...string) ([]*T, error)
	GetOrFail(ctx context.Context, columns ...string) ([]*T, error)
	First(ctx context.Context) (*T, error)
	FirstOrFail(ctx context.Context) (*T, error)
	Create(ctx context.Context, attributes interface{}) (*T, error)
	Update(ctx context.Context, id interface{}, attributes map[string]interface{}) (*T, error)
	Delete(ctx context.Context, id interface{}) (bool, error)
}

// BulkRepository operates on every record the repository scope matches.
type BulkRepository interface {
	DeleteAll(ctx context.Context) (int64, error)
	Count(ctx context.Context) (int64, error)
}

// PageQueryRepository defines pagination functionality for listing entities.
type PageQueryRepository[T any] interface {
	Page(ctx context.Context, page *types.PageRequest) (*types.Pagination[T], error)
}

// DynamicRepository dispatches operations by name, including suffix
// extensions such as "findOrFail" or "firstWhereOrFail".
type DynamicRepository interface {
	Call(ctx context.Context, name string, args ...interface{}) (interface{}, error)
}

// EntityRepository combines the typed, bulk, paging and dynamic surfaces.
type EntityRepository[T any] interface {
	CrudRepository[T]
	BulkRepository
	PageQueryRepository[T]
	DynamicRepository
}

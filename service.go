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

package entrepo

import (
	"context"
	"fmt"
	"sync"

	"github.com/tomoncle/entrepo/database"
	"github.com/tomoncle/entrepo/repository"
	"github.com/tomoncle/entrepo/types"
)

type Service[T any] interface {
	// Repository returns the repository decorating the service table.
	Repository() (*repository.Repository[T], error)

	// Get returns the entity with the given key, or a NoRecordsFound error.
	Get(ctx context.Context, id any) (*T, error)

	// All returns every entity in the table.
	All(ctx context.Context) ([]*T, error)

	// List returns entities that match the provided filter.
	List(ctx context.Context, filter *types.QueryFilter) ([]*T, error)

	// Page returns a paginated list of entities.
	Page(ctx context.Context, page *types.PageRequest) (*types.Pagination[T], error)

	// Save creates an entity from an attribute map or an entity and returns
	// it as stored.
	Save(ctx context.Context, attributes any) (*T, error)

	// Update applies attributes to the entity with the given key.
	Update(ctx context.Context, id any, attributes map[string]any) (*T, error)

	// Delete removes the entity with the given key.
	Delete(ctx context.Context, id any) error

	// WithTx runs fn against a service bound to one transaction.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Service[T]) error) error
}

type baseServiceImpl[T any] struct {
	table string
	opts  []repository.Option

	mu    sync.Mutex
	store *database.TableStore
	repo  *repository.Repository[T]
}

// NewService returns a service over table on the global database. The
// repository is built on first use, so the service may be declared before
// database.InitDB runs.
func NewService[T any](table string, opts ...repository.Option) Service[T] {
	return &baseServiceImpl[T]{table: table, opts: opts}
}

func (s *baseServiceImpl[T]) Repository() (*repository.Repository[T], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.repo != nil {
		return s.repo, nil
	}
	if database.GetDB() == nil {
		return nil, fmt.Errorf("service %s: database not initialized", s.table)
	}
	store := database.Table(s.table)
	repo, err := repository.New[T](store, s.opts...)
	if err != nil {
		return nil, fmt.Errorf("service %s: %w", s.table, err)
	}
	s.store, s.repo = store, repo
	return repo, nil
}

func (s *baseServiceImpl[T]) Get(ctx context.Context, id any) (*T, error) {
	repo, err := s.Repository()
	if err != nil {
		return nil, err
	}
	return repo.FindOrFail(ctx, id)
}

func (s *baseServiceImpl[T]) All(ctx context.Context) ([]*T, error) {
	repo, err := s.Repository()
	if err != nil {
		return nil, err
	}
	return repo.Get(ctx)
}

func (s *baseServiceImpl[T]) List(ctx context.Context, filter *types.QueryFilter) ([]*T, error) {
	repo, err := s.Repository()
	if err != nil {
		return nil, err
	}
	return repo.Where(filter).Get(ctx)
}

func (s *baseServiceImpl[T]) Page(ctx context.Context, page *types.PageRequest) (*types.Pagination[T], error) {
	repo, err := s.Repository()
	if err != nil {
		return nil, err
	}
	return repo.Page(ctx, page)
}

func (s *baseServiceImpl[T]) Save(ctx context.Context, attributes any) (*T, error) {
	repo, err := s.Repository()
	if err != nil {
		return nil, err
	}
	return repo.Create(ctx, attributes)
}

func (s *baseServiceImpl[T]) Update(ctx context.Context, id any, attributes map[string]any) (*T, error) {
	repo, err := s.Repository()
	if err != nil {
		return nil, err
	}
	return repo.Update(ctx, id, attributes)
}

func (s *baseServiceImpl[T]) Delete(ctx context.Context, id any) error {
	repo, err := s.Repository()
	if err != nil {
		return err
	}
	_, err = repo.Delete(ctx, id)
	return err
}

func (s *baseServiceImpl[T]) WithTx(ctx context.Context, fn func(ctx context.Context, tx Service[T]) error) error {
	repo, err := s.Repository()
	if err != nil {
		return err
	}
	return s.store.RunInTx(ctx, func(ctx context.Context, store *database.TableStore) error {
		return fn(ctx, &baseServiceImpl[T]{
			table: s.table,
			opts:  s.opts,
			store: store,
			repo:  repo.WithStore(store),
		})
	})
}

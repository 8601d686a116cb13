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

package repository_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomoncle/entrepo/entity"
	"github.com/tomoncle/entrepo/repository"
	"github.com/tomoncle/entrepo/repository/memory"
	"github.com/tomoncle/entrepo/types"
)

type User struct {
	ID    int64
	Name  string
	Email string
}

type Member struct {
	ID     int64
	Name   string
	Status string
	Score  int
}

func newUsers(t *testing.T, store *memory.Store) *repository.Repository[User] {
	t.Helper()
	users, err := repository.New[User](store, repository.WithMarshaller(entity.NewMarshaller(entity.NewRegistry())))
	require.NoError(t, err)
	return users
}

func TestUserLifecycle(t *testing.T) {
	ctx := context.Background()
	users := newUsers(t, memory.New())

	created, err := users.Create(ctx, map[string]interface{}{"name": "Ada", "email": "a@x.com"})
	require.NoError(t, err)
	assert.Equal(t, &User{ID: 1, Name: "Ada", Email: "a@x.com"}, created)

	updated, err := users.Update(ctx, 1, map[string]interface{}{"name": "Grace"})
	require.NoError(t, err)
	assert.Equal(t, &User{ID: 1, Name: "Grace", Email: "a@x.com"}, updated)

	deleted, err := users.Delete(ctx, 1)
	require.NoError(t, err)
	assert.True(t, deleted)

	_, err = users.FindOrFail(ctx, 1)
	var nrf *repository.NoRecordsFound
	require.True(t, errors.As(err, &nrf))
	assert.Equal(t, "User", nrf.Entity)
}

func TestCreateMatchesFind(t *testing.T) {
	ctx := context.Background()
	reg := entity.NewRegistry()
	require.NoError(t, entity.Define[Member]().Type("score", "int").Register(reg))
	store := memory.New(memory.WithDefaults(map[string]interface{}{"status": "pending", "score": "10"}))
	members, err := repository.New[Member](store, repository.WithMarshaller(entity.NewMarshaller(reg)))
	require.NoError(t, err)

	created, err := members.Create(ctx, map[string]interface{}{"name": "Alan"})
	require.NoError(t, err)
	assert.Equal(t, "pending", created.Status)
	assert.Equal(t, 10, created.Score)

	found, err := members.Find(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, found, created)
}

func TestCreateAndUpdateFromEntity(t *testing.T) {
	ctx := context.Background()
	users := newUsers(t, memory.New())

	created, err := users.Create(ctx, &User{Name: "Edsger", Email: "e@x.com"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), created.ID)

	created.Email = "dijkstra@x.com"
	updated, err := users.Update(ctx, created, nil)
	require.NoError(t, err)
	assert.Equal(t, "dijkstra@x.com", updated.Email)

	updated, err = users.Update(ctx, created, map[string]interface{}{"name": "E. W. Dijkstra"})
	require.NoError(t, err)
	assert.Equal(t, "E. W. Dijkstra", updated.Name)
	assert.Equal(t, "dijkstra@x.com", updated.Email)
}

func TestDeleteAll(t *testing.T) {
	ctx := context.Background()
	users := newUsers(t, memory.New())

	n, err := users.DeleteAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	for _, name := range []string{"a", "b", "c"} {
		_, err := users.Create(ctx, map[string]interface{}{"name": name})
		require.NoError(t, err)
	}
	n, err = users.DeleteAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	count, err := users.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestScopedRepository(t *testing.T) {
	ctx := context.Background()
	users := newUsers(t, memory.New())
	for _, u := range []map[string]interface{}{
		{"name": "Ada", "email": "ada@a.org"},
		{"name": "Ada", "email": "ada@b.org"},
		{"name": "Alan", "email": "alan@a.org"},
	} {
		_, err := users.Create(ctx, u)
		require.NoError(t, err)
	}

	adas := users.Where(types.NewQueryFilter("name = ?", "Ada"))
	count, err := adas.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	found, err := adas.Find(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "ada@a.org", found.Email)

	found, err = adas.Find(ctx, 3)
	require.NoError(t, err)
	assert.Nil(t, found)

	n, err := adas.Where(types.NewQueryFilter("email = ?", "ada@b.org")).DeleteAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	count, err = users.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestOrFail(t *testing.T) {
	ctx := context.Background()
	users := newUsers(t, memory.New())

	_, err := users.GetOrFail(ctx)
	assert.Equal(t, "The query returned an empty set of records.", err.Error())
	_, err = users.FirstOrFail(ctx)
	assert.Equal(t, "No record found.", err.Error())

	_, err = users.Create(ctx, map[string]interface{}{"name": "Ada"})
	require.NoError(t, err)

	all, err := users.GetOrFail(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	first, err := users.FirstOrFail(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Ada", first.Name)

	names, err := users.Get(ctx, "id", "name")
	require.NoError(t, err)
	assert.Equal(t, []*User{{ID: 1, Name: "Ada"}}, names)
}

func TestStoreFallbackAndExtensions(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	obs := &countingObserver{}
	users, err := repository.New[User](store,
		repository.WithMarshaller(entity.NewMarshaller(entity.NewRegistry())),
		repository.WithObserver(obs),
		repository.WithExtension("Exists", func(_ context.Context, result interface{}, _ string) (interface{}, error) {
			return result != nil, nil
		}),
	)
	require.NoError(t, err)
	_, err = users.Create(ctx, map[string]interface{}{"name": "Ada", "email": "a@x.com"})
	require.NoError(t, err)

	v, err := users.Call(ctx, "firstWhere", "email", "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, &User{ID: 1, Name: "Ada", Email: "a@x.com"}, v)

	_, err = users.Call(ctx, "firstWhereOrFail", "email", "b@x.com")
	assert.True(t, repository.IsNoRecordsFound(err))

	v, err = users.Call(ctx, "getWhere", "name", "Ada")
	require.NoError(t, err)
	assert.Len(t, v, 1)

	v, err = users.Call(ctx, "exists")
	require.NoError(t, err)
	assert.Equal(t, true, v)

	v, err = users.Call(ctx, "findExists", 1)
	require.NoError(t, err)
	assert.Equal(t, true, v)

	_, err = users.Call(ctx, "explode")
	assert.True(t, repository.IsMethodNotFound(err))

	_, err = users.Call(ctx, "findOrFailOrFail", 1)
	var loop *repository.ExtensionLoopError
	assert.True(t, errors.As(err, &loop))

	assert.Equal(t, 1, obs.actions)
	assert.Equal(t, 2, obs.extensions)
}

func TestRawModeReturnsRecords(t *testing.T) {
	ctx := context.Background()
	users := newUsers(t, memory.New())
	_, err := users.Create(ctx, map[string]interface{}{"name": "Ada"})
	require.NoError(t, err)

	raw, err := users.Call(repository.WithRawMode(ctx), "find", 1)
	require.NoError(t, err)
	assert.Equal(t, repository.RawRecord{"id": int64(1), "name": "Ada"}, raw)

	records, err := users.Call(repository.WithRawMode(ctx), "get")
	require.NoError(t, err)
	assert.IsType(t, []repository.RawRecord{}, records)

	converted, err := users.Call(ctx, "find", 1)
	require.NoError(t, err)
	assert.IsType(t, &User{}, converted)
}

func TestPage(t *testing.T) {
	ctx := context.Background()
	users := newUsers(t, memory.New())
	for _, name := range []string{"e", "d", "c", "b", "a"} {
		_, err := users.Create(ctx, map[string]interface{}{"name": name})
		require.NoError(t, err)
	}

	page, err := users.Page(ctx, types.NewPageRequestWithOrders(2, 2, []string{"name ASC"}))
	require.NoError(t, err)
	assert.Equal(t, 5, page.Total)
	assert.Equal(t, 3, page.Pages())
	require.Len(t, page.Items, 2)
	assert.Equal(t, "c", page.Items[0].Name)
	assert.Equal(t, "d", page.Items[1].Name)

	empty, err := users.Where(types.NewQueryFilter("name = ?", "z")).Page(ctx, types.NewDefaultPageRequest(1, 10))
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Total)
	assert.Empty(t, empty.Items)
}

func TestNullableCastsThroughFacade(t *testing.T) {
	ctx := context.Background()
	reg := entity.NewRegistry()
	require.NoError(t, entity.Define[User]().Type("email", "string").Register(reg))
	users, err := repository.New[User](memory.New(), repository.WithMarshaller(entity.NewMarshaller(reg)))
	require.NoError(t, err)

	_, err = users.Create(ctx, map[string]interface{}{"name": "Ada"})
	var null *entity.NullAttributeError
	require.True(t, errors.As(err, &null))
	assert.Equal(t, "email", null.Attribute)
}

func TestExtensionsAreCheckedOnceAndSurviveScoping(t *testing.T) {
	ctx := context.Background()
	marshaller := repository.WithMarshaller(entity.NewMarshaller(entity.NewRegistry()))

	_, err := repository.New[User](memory.New(), marshaller, repository.WithExtension("", func(_ context.Context, r interface{}, _ string) (interface{}, error) {
		return r, nil
	}))
	assert.Error(t, err)
	_, err = repository.New[User](memory.New(), marshaller, repository.WithExtension("Exists", nil))
	assert.Error(t, err)

	users, err := repository.New[User](memory.New(), marshaller,
		repository.WithExtension("Exists", func(_ context.Context, result interface{}, _ string) (interface{}, error) {
			return result != nil, nil
		}),
	)
	require.NoError(t, err)
	_, err = users.Create(ctx, map[string]interface{}{"name": "Ada"})
	require.NoError(t, err)

	scoped := users.Where(types.NewQueryFilter("name = ?", "Grace"))
	v, err := scoped.Call(ctx, "firstExists")
	require.NoError(t, err)
	assert.Equal(t, false, v)

	v, err = users.WithStore(users.Store()).Call(ctx, "firstExists")
	require.NoError(t, err)
	assert.Equal(t, true, v)
}

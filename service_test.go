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

package entrepo_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomoncle/entrepo"
	"github.com/tomoncle/entrepo/database"
	"github.com/tomoncle/entrepo/entity"
	"github.com/tomoncle/entrepo/repository"
	"github.com/tomoncle/entrepo/types"
)

type Product struct {
	ID    int64
	Name  string
	Price float64
	Stock int
}

func TestServiceBeforeInit(t *testing.T) {
	products := entrepo.NewService[Product]("products")
	_, err := products.All(context.Background())
	assert.Error(t, err)
}

func TestServiceOverTable(t *testing.T) {
	ctx := context.Background()
	db, err := database.InitDB(&database.Config{
		ConnectionConfig: database.ConnectionConfig{Type: "sqlite", DBName: ":memory:"},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.CloseDB() })
	_, err = db.ExecContext(ctx, `CREATE TABLE products (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		price REAL NOT NULL DEFAULT 0,
		stock INTEGER NOT NULL DEFAULT 0
	)`)
	require.NoError(t, err)

	reg := entity.NewRegistry()
	require.NoError(t, entity.Define[Product]().Type("price", "float").Type("stock", "int").Register(reg))
	products := entrepo.NewService[Product]("products", repository.WithMarshaller(entity.NewMarshaller(reg)))

	lamp, err := products.Save(ctx, map[string]any{"name": "lamp", "price": "12.5"})
	require.NoError(t, err)
	assert.Equal(t, &Product{ID: 1, Name: "lamp", Price: 12.5}, lamp)

	_, err = products.Save(ctx, &Product{Name: "desk", Price: 80, Stock: 2})
	require.NoError(t, err)

	lamp, err = products.Update(ctx, lamp.ID, map[string]any{"stock": 4})
	require.NoError(t, err)
	assert.Equal(t, 4, lamp.Stock)

	inStock, err := products.List(ctx, types.NewQueryFilter("stock > ?", 0))
	require.NoError(t, err)
	assert.Len(t, inStock, 2)

	page, err := products.Page(ctx, types.NewPageRequestWithOrders(1, 1, []string{"price DESC"}))
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
	assert.Equal(t, "desk", page.Items[0].Name)

	boom := errors.New("boom")
	err = products.WithTx(ctx, func(ctx context.Context, tx entrepo.Service[Product]) error {
		if err := tx.Delete(ctx, lamp.ID); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := products.Get(ctx, lamp.ID)
	require.NoError(t, err)
	assert.Equal(t, lamp, got)

	require.NoError(t, products.Delete(ctx, lamp.ID))
	_, err = products.Get(ctx, lamp.ID)
	assert.True(t, repository.IsNoRecordsFound(err))

	all, err := products.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

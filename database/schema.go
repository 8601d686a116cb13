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
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/uptrace/bun"
)

// TableModel is a bun model whose table is created on startup. Lower
// priorities are created first, so referenced tables go before the tables
// that reference them.
type TableModel struct {
	Instance interface{}
	Priority int
}

var (
	modelsMu sync.RWMutex
	models   []TableModel
)

// RegisterModel adds a struct pointer such as (*User)(nil) to the models
// created by EnsureTables.
func RegisterModel(instance interface{}, priority int) {
	modelsMu.Lock()
	defer modelsMu.Unlock()
	models = append(models, TableModel{Instance: instance, Priority: priority})
}

// RegisteredModels returns the registered models in ascending priority,
// keeping registration order for equal priorities.
func RegisteredModels() []TableModel {
	modelsMu.RLock()
	defer modelsMu.RUnlock()
	out := make([]TableModel, len(models))
	copy(out, models)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	return out
}

func resetModels() {
	modelsMu.Lock()
	defer modelsMu.Unlock()
	models = nil
}

// EnsureTables creates every missing table for list inside one transaction.
// Statements are not echoed by the query hooks unless BUNDEBUG_MIGRATION
// is set.
func EnsureTables(ctx context.Context, db *bun.DB, list []TableModel, logger Logger) error {
	if db == nil {
		return fmt.Errorf("database not initialized")
	}
	if logger == nil {
		logger = GetLogger()
	}
	if _, ok := os.LookupEnv("BUNDEBUG_MIGRATION"); !ok {
		EnableBunSqlSilent(true)
		defer EnableBunSqlSilent(false)
	}

	return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, m := range list {
			q := tx.NewCreateTable().Model(m.Instance).IfNotExists()
			if _, err := q.Exec(ctx); err != nil {
				if is, kind := IsSqlError(err); is && kind == ExistTableErr {
					continue
				}
				return fmt.Errorf("create table %s: %w", q.GetTableName(), err)
			}
			logger.Debug("Table ensured", "table", q.GetTableName(), "priority", m.Priority)
		}
		return nil
	})
}

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

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomoncle/entrepo/entity"
)

const sample = `
log:
  level: debug
  format: json
schema: %s
database:
  create_tables_on_startup: true
  connection:
    type: postgres
    host: db.internal
    port: 5432
    dbname: shop
    slow_query_time: 500ms
  tables:
    orders:
      key: order_id
`

const schemaYAML = `
entities:
  Invoice:
    key: number
    fields:
      amount: float
`

type Invoice struct {
	Number string
	Amount float64
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Database.ConnectionConfig.Type)
	assert.Equal(t, ":memory:", cfg.Database.ConnectionConfig.DBName)
	assert.Equal(t, 10*time.Second, cfg.Database.ConnectionConfig.ConnectTimeout)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "id", cfg.Database.KeyFor("anything"))
}

func TestLoadFileAndEnv(t *testing.T) {
	schema := writeFile(t, "schema.yaml", schemaYAML)
	path := writeFile(t, "entrepo.yaml", fmt.Sprintf(sample, schema))
	t.Setenv("ENTREPO_DATABASE_CONNECTION_HOST", "db.override")

	cfg, err := Load(path)
	require.NoError(t, err)
	conn := cfg.ConfigLoader().ConnectionConfig
	assert.Equal(t, "postgres", conn.Type)
	assert.Equal(t, "db.override", conn.Host)
	assert.Equal(t, 5432, conn.Port)
	assert.Equal(t, 500*time.Millisecond, conn.SlowQueryTime)
	assert.Equal(t, 100, conn.MaxOpenConns)
	assert.True(t, cfg.Database.CreateTablesOnStartup)
	assert.Equal(t, "order_id", cfg.Database.KeyFor("orders"))
	assert.Equal(t, "json", cfg.Log.Format)

	reg := entity.NewRegistry()
	require.NoError(t, cfg.Apply(reg))
	t.Cleanup(func() {
		cfg.Log = LogConfig{Level: "info", Format: "text"}
		_ = cfg.Apply(reg)
	})

	schemaOf, err := reg.Resolve(reflect.TypeOf(Invoice{}))
	require.NoError(t, err)
	assert.Equal(t, "number", schemaOf.Key)
	rule, ok := schemaOf.Rule("amount")
	require.True(t, ok)
	assert.Equal(t, entity.KindFloat, rule.Target.Kind)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)

	cfg := &Config{Schema: filepath.Join(t.TempDir(), "absent.yaml")}
	assert.Error(t, cfg.Apply(entity.NewRegistry()))
}

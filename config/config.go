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

// Package config loads database, logging and entity schema settings from a
// YAML file and ENTREPO_* environment variables.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/tomoncle/entrepo/database"
	"github.com/tomoncle/entrepo/entity"
	"github.com/tomoncle/entrepo/utils"
)

const envPrefix = "ENTREPO"

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type Config struct {
	Database database.Config `mapstructure:"database"`
	Log      LogConfig       `mapstructure:"log"`
	// Schema is a YAML file of entity key and cast overlays.
	Schema string `mapstructure:"schema"`
}

var _ database.AbstractDatabaseConfigProvider = (*Config)(nil)

func (c *Config) ConfigLoader() *database.Config {
	return &c.Database
}

// Load reads path, when given, over the built-in defaults. Every key can be
// overridden from the environment, e.g. ENTREPO_DATABASE_CONNECTION_HOST.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := database.DefaultConnectionConfig()
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("schema", "")
	v.SetDefault("database.create_tables_on_startup", false)
	v.SetDefault("database.connection.type", "sqlite")
	v.SetDefault("database.connection.host", "")
	v.SetDefault("database.connection.port", 0)
	v.SetDefault("database.connection.username", "")
	v.SetDefault("database.connection.password", "")
	v.SetDefault("database.connection.dbname", ":memory:")
	v.SetDefault("database.connection.sslmode", "")
	v.SetDefault("database.connection.charset", "")
	v.SetDefault("database.connection.max_idle_conns", d.MaxIdleConns)
	v.SetDefault("database.connection.max_open_conns", d.MaxOpenConns)
	v.SetDefault("database.connection.conn_max_lifetime", d.ConnMaxLifetime)
	v.SetDefault("database.connection.conn_max_idle_time", d.ConnMaxIdleTime)
	v.SetDefault("database.connection.connect_timeout", d.ConnectTimeout)
	v.SetDefault("database.connection.read_timeout", d.ReadTimeout)
	v.SetDefault("database.connection.write_timeout", d.WriteTimeout)
	v.SetDefault("database.connection.enable_reconnect", d.EnableReconnect)
	v.SetDefault("database.connection.reconnect_interval", d.ReconnectInterval)
	v.SetDefault("database.connection.max_reconnect_tries", d.MaxReconnectTries)
	v.SetDefault("database.connection.health_check_interval", d.HealthCheckInterval)
	v.SetDefault("database.connection.enable_query_log", false)
	v.SetDefault("database.connection.query_log_verbose", false)
	v.SetDefault("database.connection.query_log_env", "ENTREPO_SQL_LOG")
	v.SetDefault("database.connection.debug_queries", false)
	v.SetDefault("database.connection.slow_query_time", d.SlowQueryTime)
}

// Apply configures the loggers and loads the schema file, if any, into reg.
// A nil reg means the default entity registry.
func (c *Config) Apply(reg *entity.Registry) error {
	utils.ConfigureLogLevel(c.Log.Level)
	utils.ConfigureLogFormat(c.Log.Format)

	if c.Schema == "" {
		return nil
	}
	if reg == nil {
		reg = entity.DefaultRegistry()
	}
	f, err := os.Open(c.Schema)
	if err != nil {
		return fmt.Errorf("open schema: %w", err)
	}
	defer f.Close()
	return reg.LoadSchemaYAML(f)
}

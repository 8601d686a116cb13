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
	"io"
	"os"
	"reflect"
	"sync/atomic"
	"time"

	"github.com/fatih/color"
	"github.com/uptrace/bun"
)

var silent atomic.Bool

// EnableBunSqlSilent mutes both query hooks, e.g. while tables are created.
func EnableBunSqlSilent(b bool) {
	silent.Store(b)
}

var operationColors = map[string]*color.Color{
	"SELECT": color.New(color.FgGreen),
	"INSERT": color.New(color.FgBlue),
	"UPDATE": color.New(color.FgYellow),
	"DELETE": color.New(color.FgMagenta),
}

var operationBackgrounds = map[string]*color.Color{
	"SELECT": color.New(color.BgGreen, color.FgHiWhite),
	"INSERT": color.New(color.BgBlue, color.FgHiWhite),
	"UPDATE": color.New(color.BgYellow, color.FgHiWhite),
	"DELETE": color.New(color.BgMagenta, color.FgHiWhite),
}

func colorize(palette map[string]*color.Color, fallback *color.Color, event *bun.QueryEvent) string {
	c, ok := palette[event.Operation()]
	if !ok {
		c = fallback
	}
	return c.Sprint(event.Query)
}

// QueryHook prints executed statements, colored by operation. The envName
// variable overrides the configured switches: "0" or empty disables, "2"
// also prints successful statements.
type QueryHook struct {
	envName string
	enabled bool
	verbose bool
	writer  io.Writer
}

var _ bun.QueryHook = (*QueryHook)(nil)

type QueryHookOption func(*QueryHook)

func WithQueryHookEnv(name string) QueryHookOption {
	return func(h *QueryHook) { h.envName = name }
}

func WithQueryHookVerbose(verbose bool) QueryHookOption {
	return func(h *QueryHook) { h.verbose = verbose }
}

func WithQueryHookWriter(w io.Writer) QueryHookOption {
	return func(h *QueryHook) { h.writer = w }
}

func NewQueryHook(opts ...QueryHookOption) *QueryHook {
	h := &QueryHook{envName: "ENTREPO_SQL_LOG", enabled: true, writer: os.Stdout}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *QueryHook) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (h *QueryHook) AfterQuery(_ context.Context, event *bun.QueryEvent) {
	if silent.Load() {
		return
	}
	enabled, verbose := h.enabled, h.verbose
	if env, ok := os.LookupEnv(h.envName); ok {
		enabled = env != "" && env != "0"
		verbose = env == "2"
	}
	if !enabled {
		return
	}
	if !verbose {
		switch {
		case event.Err == nil, errors.Is(event.Err, sql.ErrNoRows), errors.Is(event.Err, sql.ErrTxDone):
			return
		}
	}

	now := time.Now()
	args := []interface{}{
		now.Format("2006-01-02 15:04:05.000"),
		color.CyanString("%10s", "[BUN]"),
		fmt.Sprintf("%17s", now.Sub(event.StartTime).Round(time.Microsecond)),
		" ", colorize(operationColors, color.New(color.FgRed), event),
	}
	if event.Err != nil {
		typ := reflect.TypeOf(event.Err).String()
		args = append(args, "\t", color.New(color.BgRed).Sprintf(" %s: %s ", typ, event.Err.Error()))
	}
	_, _ = fmt.Fprintln(h.writer, args...)
}

// SlowQueryHook reports successful statements slower than slowTime.
type SlowQueryHook struct {
	slowTime time.Duration
	logger   Logger
	writer   io.Writer
}

var _ bun.QueryHook = (*SlowQueryHook)(nil)

// NewSlowQueryHook logs through logger when it is set and prints to writer
// otherwise.
func NewSlowQueryHook(slowTime time.Duration, logger Logger, writer io.Writer) *SlowQueryHook {
	if writer == nil {
		writer = os.Stdout
	}
	return &SlowQueryHook{slowTime: slowTime, logger: logger, writer: writer}
}

func (h *SlowQueryHook) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (h *SlowQueryHook) AfterQuery(_ context.Context, event *bun.QueryEvent) {
	if silent.Load() || event.Err != nil {
		return
	}
	duration := time.Since(event.StartTime)
	if duration <= h.slowTime {
		return
	}
	if h.logger != nil {
		h.logger.Warn("Database slow query detected",
			"duration", duration,
			"slow_threshold", h.slowTime,
			"query", event.Query,
		)
		return
	}
	_, _ = fmt.Fprintln(h.writer,
		time.Now().Format("2006-01-02 15:04:05.000"),
		color.YellowString("%10s", "[BUN_SLOW]"),
		fmt.Sprintf("%17s", duration.Round(time.Microsecond)),
		" ", colorize(operationBackgrounds, color.New(color.BgRed, color.FgHiWhite), event),
	)
}

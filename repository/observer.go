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
	"time"

	"github.com/tomoncle/entrepo/utils"
)

// Logger is the key/value logging facade used by repositories:
// Info("message", "key", value, ...).
type Logger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
}

var defaultLogger Logger = utils.NewFieldLogger("REPOSITORY")

// Observer receives the outcome of every pipeline action and extension call.
type Observer interface {
	ObserveAction(entity string, action Action, elapsed time.Duration, err error)
	ObserveExtension(entity string, suffix string, err error)
}

type nopObserver struct{}

func (nopObserver) ObserveAction(string, Action, time.Duration, error) {}

func (nopObserver) ObserveExtension(string, string, error) {}

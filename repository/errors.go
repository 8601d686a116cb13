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
	"errors"
	"fmt"

	"github.com/tomoncle/entrepo/utils"
)

// ErrUnknownMethod is returned by a Caller that has no operation of the
// requested name.
var ErrUnknownMethod = errors.New("unknown method")

const (
	msgNoRecord       = "No record found."
	msgEmptyResultSet = "The query returned an empty set of records."
)

// ActionFailed reports a mutating primitive that returned Success false.
type ActionFailed struct {
	Action Action
}

func (e *ActionFailed) Error() string {
	return utils.TitleCase(string(e.Action)) + " action failed."
}

// NoRecordsFound reports a missing record or an empty result set.
type NoRecordsFound struct {
	Entity  string
	Message string
}

func (e *NoRecordsFound) Error() string {
	if e.Message == "" {
		return msgNoRecord
	}
	return e.Message
}

// EmptyResult is the NoRecordsFound of a missing single record.
func EmptyResult(entity string) *NoRecordsFound {
	return &NoRecordsFound{Entity: entity, Message: msgNoRecord}
}

// EmptyResultSet is the NoRecordsFound of an empty collection.
func EmptyResultSet(entity string) *NoRecordsFound {
	return &NoRecordsFound{Entity: entity, Message: msgEmptyResultSet}
}

// MethodNotFound reports an operation that is neither registered, extended
// nor known to the store.
type MethodNotFound struct {
	Name string
}

func (e *MethodNotFound) Error() string {
	return fmt.Sprintf("method %s does not exist", e.Name)
}

// ExtensionLoopError reports an extended name whose base operation itself
// carries a registered suffix, such as "findOrFailOrFail".
type ExtensionLoopError struct {
	Name   string
	Base   string
	Suffix string
}

func (e *ExtensionLoopError) Error() string {
	return fmt.Sprintf("method %s: base %s is itself extended by suffix %s", e.Name, e.Base, e.Suffix)
}

// InvalidIDError reports a key that is neither a string nor an integer.
type InvalidIDError struct {
	ID interface{}
}

func (e *InvalidIDError) Error() string {
	return fmt.Sprintf("invalid id %v (%T): ids must be strings or integers", e.ID, e.ID)
}

// IsNoRecordsFound reports whether err is or wraps a NoRecordsFound.
func IsNoRecordsFound(err error) bool {
	var target *NoRecordsFound
	return errors.As(err, &target)
}

// IsActionFailed reports whether err is or wraps an ActionFailed.
func IsActionFailed(err error) bool {
	var target *ActionFailed
	return errors.As(err, &target)
}

// IsMethodNotFound reports whether err is or wraps a MethodNotFound.
func IsMethodNotFound(err error) bool {
	var target *MethodNotFound
	return errors.As(err, &target)
}

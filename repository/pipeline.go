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
	"fmt"
	"time"
)

// performAction runs a mutating primitive in raw mode, freshens created
// records from the store, validates and extracts the outcome and converts the
// extracted value. Steps run strictly in that order.
func (r *Repository[T]) performAction(ctx context.Context, action Action, invoke func(ctx context.Context) (ActionOutcome, error)) (interface{}, error) {
	start := time.Now()
	result, err := r.runAction(ctx, action, invoke)
	r.observer.ObserveAction(r.name, action, time.Since(start), err)
	if err != nil {
		r.logger.Warn("action failed", "entity", r.name, "action", string(action), "error", err)
		return nil, err
	}
	r.logger.Debug("action performed", "entity", r.name, "action", string(action), "elapsed", time.Since(start))
	return result, nil
}

func (r *Repository[T]) runAction(ctx context.Context, action Action, invoke func(ctx context.Context) (ActionOutcome, error)) (interface{}, error) {
	raw := WithRawMode(ctx)
	outcome, err := invoke(raw)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", action, r.name, err)
	}
	if action == ActionCreate {
		if outcome, err = r.freshen(raw, outcome); err != nil {
			return nil, err
		}
	}

	if err := r.validateActionResult(outcome); err != nil {
		return nil, err
	}
	return r.convert(extractActionResult(outcome))
}

// freshen replaces the outcome record by the store's copy of it, which
// carries defaults and computed columns the create primitive did not return.
func (r *Repository[T]) freshen(raw context.Context, outcome ActionOutcome) (ActionOutcome, error) {
	if outcome.Record == nil {
		return outcome, nil
	}
	key, ok := outcome.Record[r.store.KeyName()]
	if !ok || key == nil {
		outcome.Record = nil
		return outcome, nil
	}
	fresh, err := r.dispatcher.Call(raw, "find", key)
	if err != nil {
		return outcome, fmt.Errorf("freshen %s %v: %w", r.name, key, err)
	}
	outcome.Record, _ = fresh.(RawRecord)
	return outcome, nil
}

func (r *Repository[T]) validateActionResult(outcome ActionOutcome) error {
	if outcome.HasRecordSlot && outcome.Record == nil {
		return EmptyResult(r.name)
	}
	if !outcome.Success {
		return &ActionFailed{Action: outcome.Action}
	}
	return nil
}

func extractActionResult(outcome ActionOutcome) interface{} {
	if outcome.Action == ActionDelete {
		return outcome.Success
	}
	return outcome.Record
}

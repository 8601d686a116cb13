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
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomoncle/entrepo/entity"
	"github.com/tomoncle/entrepo/types"
)

type widget struct {
	ID    int64
	Name  string
	Color string
}

// scriptedStore returns canned outcomes and records the raw depth each
// primitive was called with.
type scriptedStore struct {
	records   map[string]RawRecord
	create    ActionOutcome
	update    ActionOutcome
	deleted   bool
	err       error
	depths    map[string]int
	findCalls int
}

func newScriptedStore() *scriptedStore {
	return &scriptedStore{records: map[string]RawRecord{}, depths: map[string]int{}}
}

func (s *scriptedStore) KeyName() string { return "id" }

func (s *scriptedStore) FindByID(ctx context.Context, id interface{}) (RawRecord, error) {
	s.findCalls++
	s.depths["find"] = RawDepth(ctx)
	return s.records[fmt.Sprint(id)], nil
}

func (s *scriptedStore) CreateRaw(ctx context.Context, _ map[string]interface{}) (ActionOutcome, error) {
	s.depths["create"] = RawDepth(ctx)
	return s.create, s.err
}

func (s *scriptedStore) UpdateRaw(ctx context.Context, _ RawRecord, _ map[string]interface{}) (ActionOutcome, error) {
	s.depths["update"] = RawDepth(ctx)
	return s.update, s.err
}

func (s *scriptedStore) DeleteRaw(ctx context.Context, _ RawRecord) (bool, error) {
	s.depths["delete"] = RawDepth(ctx)
	return s.deleted, s.err
}

func (s *scriptedStore) QueryAll(context.Context, *Query) ([]RawRecord, error) {
	return nil, nil
}

func (s *scriptedStore) DeleteAll(context.Context, *types.QueryFilter) (int64, error) {
	return 0, nil
}

func (s *scriptedStore) Count(context.Context, *types.QueryFilter) (int64, error) {
	return 0, nil
}

type recordingObserver struct {
	actions    []string
	extensions []string
}

func (o *recordingObserver) ObserveAction(entity string, action Action, _ time.Duration, err error) {
	o.actions = append(o.actions, fmt.Sprintf("%s.%s:%v", entity, action, err == nil))
}

func (o *recordingObserver) ObserveExtension(entity string, suffix string, err error) {
	o.extensions = append(o.extensions, fmt.Sprintf("%s.%s:%v", entity, suffix, err == nil))
}

func newWidgetRepository(t *testing.T, store Store, opts ...Option) *Repository[widget] {
	t.Helper()
	opts = append([]Option{WithMarshaller(entity.NewMarshaller(entity.NewRegistry()))}, opts...)
	r, err := New[widget](store, opts...)
	require.NoError(t, err)
	return r
}

func TestCreateFreshensInRawMode(t *testing.T) {
	store := newScriptedStore()
	store.create = Created(true, RawRecord{"id": int64(4), "name": "bolt"})
	store.records["4"] = RawRecord{"id": int64(4), "name": "bolt", "color": "grey"}
	obs := &recordingObserver{}
	r := newWidgetRepository(t, store, WithObserver(obs))

	w, err := r.Create(context.Background(), map[string]interface{}{"name": "bolt"})
	require.NoError(t, err)
	assert.Equal(t, &widget{ID: 4, Name: "bolt", Color: "grey"}, w)
	assert.Equal(t, 1, store.depths["create"])
	assert.Equal(t, 1, store.depths["find"])
	assert.Equal(t, []string{"widget.create:true"}, obs.actions)
}

func TestCreateFreshenMissingRecord(t *testing.T) {
	store := newScriptedStore()
	store.create = Created(true, RawRecord{"id": int64(4)})
	r := newWidgetRepository(t, store)

	_, err := r.Create(context.Background(), map[string]interface{}{})
	var nrf *NoRecordsFound
	require.True(t, errors.As(err, &nrf))
	assert.Equal(t, "No record found.", nrf.Error())
	assert.Equal(t, "widget", nrf.Entity)
}

func TestActionValidationOrder(t *testing.T) {
	store := newScriptedStore()
	store.records["1"] = RawRecord{"id": int64(1), "name": "nut"}
	r := newWidgetRepository(t, store)
	ctx := context.Background()

	store.update = Updated(false, nil)
	_, err := r.Update(ctx, 1, map[string]interface{}{"name": "x"})
	assert.True(t, IsNoRecordsFound(err), "record slot checked before success: %v", err)
	assert.Equal(t, 1, store.depths["update"])

	store.update = Updated(false, RawRecord{"id": int64(1)})
	_, err = r.Update(ctx, 1, map[string]interface{}{"name": "x"})
	var af *ActionFailed
	require.True(t, errors.As(err, &af))
	assert.Equal(t, "Update action failed.", af.Error())

	store.deleted = false
	_, err = r.Delete(ctx, 1)
	require.True(t, errors.As(err, &af))
	assert.Equal(t, "Delete action failed.", af.Error())

	store.deleted = true
	ok, err := r.Delete(ctx, 1)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestActionStoreErrorSurfaces(t *testing.T) {
	store := newScriptedStore()
	store.err = errors.New("disk full")
	r := newWidgetRepository(t, store)

	_, err := r.Create(context.Background(), map[string]interface{}{"name": "a"})
	require.Error(t, err)
	assert.ErrorIs(t, err, store.err)
	assert.Equal(t, 0, store.findCalls)
}

func TestUpdateMissingInstance(t *testing.T) {
	store := newScriptedStore()
	r := newWidgetRepository(t, store)

	_, err := r.Update(context.Background(), 9, map[string]interface{}{"name": "a"})
	assert.True(t, IsNoRecordsFound(err))
	_, hit := store.depths["update"]
	assert.False(t, hit)
}

func TestInvalidID(t *testing.T) {
	r := newWidgetRepository(t, newScriptedStore())
	_, err := r.Find(context.Background(), 1.5)
	var invalid *InvalidIDError
	assert.True(t, errors.As(err, &invalid))

	_, err = r.Delete(context.Background(), []int{1})
	assert.True(t, errors.As(err, &invalid))
}

func TestConvert(t *testing.T) {
	r := newWidgetRepository(t, newScriptedStore())

	for _, v := range []interface{}{nil, true, 3, int64(7), uint8(1)} {
		out, err := r.convert(v)
		require.NoError(t, err)
		assert.Equal(t, v, out)
	}

	out, err := r.convert(RawRecord(nil))
	require.NoError(t, err)
	assert.Nil(t, out)

	out, err = r.convert(RawRecord{"id": int64(1), "name": "a"})
	require.NoError(t, err)
	assert.Equal(t, &widget{ID: 1, Name: "a"}, out)

	out, err = r.convert([]RawRecord{{"id": int64(1)}, {"id": int64(2)}})
	require.NoError(t, err)
	assert.Equal(t, []*widget{{ID: 1}, {ID: 2}}, out)

	out, err = r.convert([]interface{}{RawRecord{"id": int64(1)}, int64(5)})
	require.NoError(t, err)
	assert.Equal(t, []interface{}{&widget{ID: 1}, int64(5)}, out)

	out, err = r.convert(map[string]RawRecord{"a": {"id": int64(1)}})
	require.NoError(t, err)
	assert.Equal(t, map[string]*widget{"a": {ID: 1}}, out)

	out, err = r.convert(map[int64]RawRecord{3: {"id": int64(3)}})
	require.NoError(t, err)
	assert.Equal(t, map[interface{}]interface{}{int64(3): &widget{ID: 3}}, out)

	out, err = r.convert(struct {
		ID   int64
		Name string
	}{ID: 2, Name: "b"})
	require.NoError(t, err)
	assert.Equal(t, &widget{ID: 2, Name: "b"}, out)

	_, err = r.convert("not a record")
	assert.Error(t, err)
}

func TestValidateResult(t *testing.T) {
	r := newWidgetRepository(t, newScriptedStore())
	ctx := context.Background()

	_, err := r.validateResult(ctx, nil, "find")
	assert.Equal(t, "No record found.", err.Error())

	_, err = r.validateResult(ctx, (*widget)(nil), "find")
	assert.True(t, IsNoRecordsFound(err))

	_, err = r.validateResult(ctx, []*widget{}, "get")
	assert.Equal(t, "The query returned an empty set of records.", err.Error())

	v, err := r.validateResult(ctx, int64(0), "count")
	require.NoError(t, err)
	assert.Equal(t, int64(0), v)

	w := &widget{ID: 1}
	v, err = r.validateResult(ctx, w, "find")
	require.NoError(t, err)
	assert.Same(t, w, v)
}

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

package entity

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type product struct {
	ID     int64
	Name   string
	Price  float64
	Stock  int
	OnSale bool
	Label  *string
}

type person struct {
	ID       int64
	First    string
	Last     string
	FullName string
	Ref      uuid.UUID
}

type personRow struct {
	ID    int64
	First string
	Last  string
}

func productMarshaller(t *testing.T) *Marshaller {
	t.Helper()
	reg := NewRegistry()
	require.NoError(t, Define[product]().
		Type("id", "int").
		Type("name", "string").
		Type("price", "float").
		Type("stock", "int").
		Type("on_sale", "bool").
		Type("label", "string|null").
		Register(reg))
	return NewMarshaller(reg)
}

func TestBuildRoundTrip(t *testing.T) {
	m := productMarshaller(t)
	record := map[string]interface{}{
		"id": int64(7), "name": "pen", "price": 1.5, "stock": 12, "on_sale": true, "label": "blue",
	}
	p, err := Build[product](m, record)
	require.NoError(t, err)
	assert.Equal(t, int64(7), p.ID)
	assert.Equal(t, "pen", p.Name)
	assert.Equal(t, 1.5, p.Price)
	assert.Equal(t, 12, p.Stock)
	assert.True(t, p.OnSale)
	require.NotNil(t, p.Label)
	assert.Equal(t, "blue", *p.Label)

	attrs, err := m.Attributes(p)
	require.NoError(t, err)
	assert.Equal(t, "blue", attrs["label"])
	again, err := Build[product](m, attrs)
	require.NoError(t, err)
	assert.Equal(t, p, again)
}

func TestBuildCoercesScalars(t *testing.T) {
	m := productMarshaller(t)
	p, err := Build[product](m, map[string]interface{}{
		"id": "7", "name": 42, "price": "2.25", "stock": "3", "on_sale": "true", "label": nil,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), p.ID)
	assert.Equal(t, "42", p.Name)
	assert.Equal(t, 2.25, p.Price)
	assert.Equal(t, 3, p.Stock)
	assert.True(t, p.OnSale)
	assert.Nil(t, p.Label)
}

func TestBuildNullHandling(t *testing.T) {
	m := productMarshaller(t)

	_, err := Build[product](m, map[string]interface{}{"name": nil})
	var ne *NullAttributeError
	require.True(t, errors.As(err, &ne))
	assert.Equal(t, "name", ne.Attribute)
	assert.Equal(t, "Entity attribute value name cannot be null.", err.Error())

	p, err := Build[product](m, map[string]interface{}{"label": nil})
	require.NoError(t, err)
	assert.Nil(t, p.Label)
}

func TestBuildRejectsUnknownAttribute(t *testing.T) {
	m := productMarshaller(t)
	_, err := Build[product](m, map[string]interface{}{"colour": "red"})
	var ue *UnknownAttributeError
	assert.True(t, errors.As(err, &ue))
}

func TestBuildCastFailure(t *testing.T) {
	m := productMarshaller(t)
	_, err := Build[product](m, map[string]interface{}{"stock": "many"})
	var ce *CastError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "stock", ce.Attribute)
}

func TestCastIsIdempotent(t *testing.T) {
	rules := []CastRule{
		{Attribute: "a", Target: Int},
		{Attribute: "a", Target: Float},
		{Attribute: "a", Target: Bool},
		{Attribute: "a", Target: String},
		{Attribute: "a", Target: builtinTargets()["uuid"]},
		{Attribute: "a", Target: builtinTargets()["time"]},
	}
	inputs := []interface{}{"1", "1", "1", 1, "6ba7b810-9dad-11d1-80b4-00c04fd430c8", "2024-01-02T03:04:05Z"}
	for i, rule := range rules {
		once, err := Cast("T", inputs[i], rule)
		require.NoError(t, err, rule.String())
		twice, err := Cast("T", once, rule)
		require.NoError(t, err, rule.String())
		assert.Equal(t, once, twice, rule.String())
	}
}

func TestCastUnsupportedPassesThrough(t *testing.T) {
	v := []int{1, 2}
	out, err := Cast("T", v, CastRule{Attribute: "a", Target: Target{Name: "array"}})
	require.NoError(t, err)
	assert.Equal(t, v, out)
}

func TestCastIntReadsDecimalStrings(t *testing.T) {
	rule := CastRule{Attribute: "code", Target: Int}
	cases := []struct {
		in   interface{}
		want int64
	}{
		{"010", 10},
		{"08", 8},
		{" 42", 42},
		{"-7\n", -7},
		{"3.9", 3},
		{[]byte("0012"), 12},
		{int32(5), 5},
		{9.0, 9},
	}
	for _, c := range cases {
		out, err := Cast("T", c.in, rule)
		require.NoError(t, err, "%v", c.in)
		assert.Equal(t, c.want, out, "%v", c.in)
	}

	for _, bad := range []string{"0x1A", "abc", "", "NaN"} {
		_, err := Cast("T", bad, rule)
		var castErr *CastError
		assert.True(t, errors.As(err, &castErr), "%q", bad)
	}
}

func TestSetterRunsBeforeCast(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, Define[person]().
		Type("first", "string").
		Type("ref", "uuid").
		Setter("first", func(p *person, v interface{}) error {
			p.First = strings.TrimSpace(strings.ToUpper(v.(string)))
			return nil
		}).
		Register(reg))
	m := NewMarshaller(reg)

	p, err := Build[person](m, map[string]interface{}{
		"first": "  ada ", "ref": "6ba7b810-9dad-11d1-80b4-00c04fd430c8",
	})
	require.NoError(t, err)
	assert.Equal(t, "ADA", p.First)
	assert.Equal(t, uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8"), p.Ref)
}

func TestSetterMakesFieldNullable(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, Define[person]().
		Type("last", "string").
		Setter("last", func(p *person, v interface{}) error {
			if v != nil {
				p.Last = v.(string)
			}
			return nil
		}).
		Register(reg))

	p, err := Build[person](NewMarshaller(reg), map[string]interface{}{"last": nil})
	require.NoError(t, err)
	assert.Equal(t, "", p.Last)
}

func TestBuildFromSourceWithGetters(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, Define[person]().
		Getter("full_name", func(p *person) (interface{}, error) {
			return p.First + " " + p.Last, nil
		}).
		Register(reg))
	m := NewMarshaller(reg)

	p, err := BuildFromSource[person](m, personRow{ID: 3, First: "Grace", Last: "Hopper"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), p.ID)
	assert.Equal(t, "Grace Hopper", p.FullName)

	p, err = BuildFromSource[person](m, map[string]interface{}{"first": "Ada", "last": "Lovelace", "full_name": "ignored"})
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", p.FullName)
	assert.Equal(t, int64(0), p.ID)
}

func TestBuildFromSourceTypedMap(t *testing.T) {
	m := NewMarshaller(NewRegistry())
	p, err := BuildFromSource[personRow](m, map[string]string{"first": "Alan"})
	require.NoError(t, err)
	assert.Equal(t, "Alan", p.First)

	_, err = BuildFromSource[personRow](m, 12)
	assert.Error(t, err)
}

func TestKeyValue(t *testing.T) {
	reg := NewRegistry()
	m := NewMarshaller(reg)
	key, err := m.KeyValue(&product{ID: 9})
	require.NoError(t, err)
	assert.Equal(t, int64(9), key)

	require.NoError(t, Define[personRow]().Key("first").Register(reg))
	key, err = m.KeyValue(&personRow{First: "Alan"})
	require.NoError(t, err)
	assert.Equal(t, "Alan", key)
}

func TestTimestampsAreFilled(t *testing.T) {
	type post struct {
		ID    int64
		Title string
		Timestamps
	}
	reg := NewRegistry()
	require.NoError(t, TimestampTypes(Define[post]()).Register(reg))

	p, err := Build[post](NewMarshaller(reg), map[string]interface{}{
		"title": "hello", "created_at": "2024-05-01T10:00:00Z", "updated_at": nil,
	})
	require.NoError(t, err)
	require.NotNil(t, p.CreatedAt)
	assert.True(t, p.CreatedAt.Equal(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)))
	assert.Nil(t, p.UpdatedAt)
}

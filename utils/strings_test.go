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

package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSnakeCase(t *testing.T) {
	cases := map[string]string{
		"ID":         "id",
		"Name":       "name",
		"CreatedAt":  "created_at",
		"UserID":     "user_id",
		"HTTPStatus": "http_status",
		"Address2":   "address2",
		"already":    "already",
	}
	for in, want := range cases {
		assert.Equal(t, want, SnakeCase(in), in)
	}
}

func TestTitleCase(t *testing.T) {
	assert.Equal(t, "Create", TitleCase("create"))
	assert.Equal(t, "Delete All", TitleCase("delete_all"))
	assert.Equal(t, "", TitleCase(""))
	assert.Equal(t, "FirstWhere", TitleCase("firstWhere"))
	assert.Equal(t, "Éclair Update", TitleCase("éclair-update"))
}

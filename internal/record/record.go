// Copyright 2025 SirSeer, LLC
//
// Licensed under the Business Source License 1.1 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://mariadb.com/bsl11
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package record reads fields out of decoded JSON nodes. Upstream schemas
// are full of optional fields and union types, so every accessor tolerates
// missing keys, nulls and unexpected types and reports absence instead of
// panicking.
package record

import "strconv"

// Node is one decoded GraphQL or REST object.
type Node = map[string]interface{}

// Get walks path through nested objects. The second result is false when
// any step is missing, null or not an object.
func Get(n Node, path ...string) (interface{}, bool) {
	var cur interface{} = n
	for _, key := range path {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		cur, ok = m[key]
		if !ok || cur == nil {
			return nil, false
		}
	}
	return cur, cur != nil
}

// String returns the string at path, or nil.
func String(n Node, path ...string) *string {
	v, ok := Get(n, path...)
	if !ok {
		return nil
	}
	switch t := v.(type) {
	case string:
		return &t
	case float64:
		s := strconv.FormatFloat(t, 'f', -1, 64)
		return &s
	case bool:
		s := strconv.FormatBool(t)
		return &s
	}
	return nil
}

// StringOr returns the string at path, or def when absent.
func StringOr(n Node, def string, path ...string) string {
	if s := String(n, path...); s != nil {
		return *s
	}
	return def
}

// Float returns the number at path, or nil.
func Float(n Node, path ...string) *float64 {
	v, ok := Get(n, path...)
	if !ok {
		return nil
	}
	switch t := v.(type) {
	case float64:
		return &t
	case string:
		if f, err := strconv.ParseFloat(t, 64); err == nil {
			return &f
		}
	}
	return nil
}

// Bool returns the boolean at path; absent reads as false.
func Bool(n Node, path ...string) bool {
	v, ok := Get(n, path...)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// Map returns the object at path, or nil.
func Map(n Node, path ...string) Node {
	v, ok := Get(n, path...)
	if !ok {
		return nil
	}
	m, _ := v.(map[string]interface{})
	return m
}

// Slice returns the array at path, or nil.
func Slice(n Node, path ...string) []interface{} {
	v, ok := Get(n, path...)
	if !ok {
		return nil
	}
	s, _ := v.([]interface{})
	return s
}

// Nodes returns the objects in the array at path, skipping anything that
// is not an object.
func Nodes(n Node, path ...string) []Node {
	raw := Slice(n, path...)
	out := make([]Node, 0, len(raw))
	for _, item := range raw {
		if m, ok := item.(map[string]interface{}); ok {
			out = append(out, m)
		}
	}
	return out
}

// Missing counts how many of the given paths are absent from n.
func Missing(n Node, paths ...[]string) int {
	count := 0
	for _, p := range paths {
		if _, ok := Get(n, p...); !ok {
			count++
		}
	}
	return count
}

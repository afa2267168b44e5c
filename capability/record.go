// Copyright 2025 AxonFlow
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package capability

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// Record exposes named fields of a domain record.
type Record interface {
	// Field returns the value stored under name and whether it exists.
	Field(name string) (any, bool)
}

// Fields is a map-backed Record.
type Fields map[string]any

// Field implements Record.
func (f Fields) Field(name string) (any, bool) {
	v, ok := f[name]
	return v, ok
}

// StructRecord exposes the exported fields of a struct. A field is found by
// its ai tag, then its json tag name, then its Go name (case-insensitive).
type StructRecord struct {
	value reflect.Value
}

// FromStruct wraps a struct or a non-nil pointer to one.
func FromStruct(v any) (*StructRecord, error) {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, errors.New("record pointer is nil")
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil, fmt.Errorf("record must be a struct, got %s", rv.Kind())
	}
	return &StructRecord{value: rv}, nil
}

// Field implements Record.
func (r *StructRecord) Field(name string) (any, bool) {
	t := r.value.Type()
	fallback := -1
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		if tagName(sf.Tag.Get("ai")) == name || tagName(sf.Tag.Get("json")) == name {
			return r.value.Field(i).Interface(), true
		}
		if fallback < 0 && strings.EqualFold(sf.Name, name) {
			fallback = i
		}
	}
	if fallback >= 0 {
		return r.value.Field(fallback).Interface(), true
	}
	return nil, false
}

func tagName(tag string) string {
	name, _, _ := strings.Cut(tag, ",")
	if name == "-" {
		return ""
	}
	return name
}

// Text returns the field as trimmed text. Absent, nil and blank values
// yield "".
func Text(r Record, name string) string {
	v, ok := r.Field(name)
	if !ok {
		return ""
	}
	var s string
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		s = t
	case *string:
		if t == nil {
			return ""
		}
		s = *t
	case []byte:
		s = string(t)
	case fmt.Stringer:
		s = t.String()
	default:
		s = fmt.Sprint(t)
	}
	return strings.TrimSpace(s)
}

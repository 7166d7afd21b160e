// Copyright 2026 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package canonical produces the stable JSON form of parameter and input
// values that identities are hashed from.
//
// Struct fields are written in declaration order, so reordering the fields of
// a type changes the bytes (and therefore every identity derived from them).
// Floats are written as their shortest decimal text with negative zero folded
// into zero, and non-finite floats become strings instead of failing. Those
// strings do not decode back into a float field, so a record holding NaN or
// an infinity cannot be reloaded from its parameter file.
//
// Marshalers with pointer receivers are honored on every value, including the
// top-level one.
package canonical

import (
	"bytes"
	"encoding"
	"encoding/json"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

var (
	jsonMarshalerType = reflect.TypeOf((*json.Marshaler)(nil)).Elem()
	textMarshalerType = reflect.TypeOf((*encoding.TextMarshaler)(nil)).Elem()
)

// Marshal returns the canonical JSON encoding of v.
func Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := encode(&buf, addressable(reflect.ValueOf(v))); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MustMarshal is Marshal for values known to be serializable. It panics on
// kinds that have no JSON form (channels, funcs, complex numbers).
func MustMarshal(v any) []byte {
	b, err := Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

// Indent returns the canonical encoding of v indented with two spaces and
// terminated by a newline, the form written to parameter files.
func Indent(v any) ([]byte, error) {
	raw, err := Marshal(v)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return nil, errors.Wrap(err, "indenting canonical json")
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// addressable copies v so that it and everything reachable from it can be
// addressed.
func addressable(v reflect.Value) reflect.Value {
	if !v.IsValid() || v.CanAddr() {
		return v
	}
	c := reflect.New(v.Type()).Elem()
	c.Set(v)
	return c
}

func encode(buf *bytes.Buffer, v reflect.Value) error {
	if !v.IsValid() {
		buf.WriteString("null")
		return nil
	}

	if v.Kind() != reflect.Pointer && v.Kind() != reflect.Interface {
		if done, err := encodeMarshaler(buf, v); done || err != nil {
			return err
		}
	}

	switch v.Kind() {
	case reflect.Pointer, reflect.Interface:
		if v.IsNil() {
			buf.WriteString("null")
			return nil
		}
		if done, err := encodeMarshaler(buf, v); done || err != nil {
			return err
		}
		return encode(buf, v.Elem())
	case reflect.Bool:
		buf.WriteString(strconv.FormatBool(v.Bool()))
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		buf.WriteString(strconv.FormatInt(v.Int(), 10))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		buf.WriteString(strconv.FormatUint(v.Uint(), 10))
	case reflect.Float32:
		writeFloat(buf, v.Float(), 32)
	case reflect.Float64:
		writeFloat(buf, v.Float(), 64)
	case reflect.String:
		writeString(buf, v.String())
	case reflect.Struct:
		return encodeStruct(buf, v)
	case reflect.Map:
		return encodeMap(buf, v)
	case reflect.Slice:
		if v.IsNil() {
			buf.WriteString("null")
			return nil
		}
		fallthrough
	case reflect.Array:
		buf.WriteByte('[')
		for i := 0; i < v.Len(); i++ {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encode(buf, v.Index(i)); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	default:
		return errors.Errorf("canonical: unsupported kind %s", v.Kind())
	}
	return nil
}

// encodeMarshaler handles values that define their own JSON or text form.
func encodeMarshaler(buf *bytes.Buffer, v reflect.Value) (bool, error) {
	if !v.CanInterface() {
		return false, nil
	}
	t := v.Type()
	if v.Kind() != reflect.Pointer && v.CanAddr() {
		pt := reflect.PointerTo(t)
		if !t.Implements(jsonMarshalerType) && !t.Implements(textMarshalerType) &&
			(pt.Implements(jsonMarshalerType) || pt.Implements(textMarshalerType)) {
			v, t = v.Addr(), pt
		}
	}
	switch {
	case t.Implements(jsonMarshalerType):
		raw, err := v.Interface().(json.Marshaler).MarshalJSON()
		if err != nil {
			return true, errors.Wrapf(err, "canonical: marshaling %s", t)
		}
		var compact bytes.Buffer
		if err := json.Compact(&compact, raw); err != nil {
			return true, errors.Wrapf(err, "canonical: invalid json from %s", t)
		}
		buf.Write(compact.Bytes())
		return true, nil
	case t.Implements(textMarshalerType):
		text, err := v.Interface().(encoding.TextMarshaler).MarshalText()
		if err != nil {
			return true, errors.Wrapf(err, "canonical: marshaling %s", t)
		}
		writeString(buf, string(text))
		return true, nil
	}
	return false, nil
}

func writeFloat(buf *bytes.Buffer, f float64, bits int) {
	switch {
	case math.IsNaN(f):
		buf.WriteString(`"NaN"`)
		return
	case math.IsInf(f, 1):
		buf.WriteString(`"+Inf"`)
		return
	case math.IsInf(f, -1):
		buf.WriteString(`"-Inf"`)
		return
	case f == 0:
		// folds -0 into 0
		buf.WriteByte('0')
		return
	}

	// Same shape as encoding/json: plain decimal unless the exponent is extreme.
	abs := math.Abs(f)
	format := byte('f')
	if abs < 1e-6 || abs >= 1e21 {
		format = 'e'
	}
	b := strconv.AppendFloat(nil, f, format, -1, bits)
	if format == 'e' {
		// clean up e-09 to e-9
		n := len(b)
		if n >= 4 && b[n-4] == 'e' && b[n-3] == '-' && b[n-2] == '0' {
			b[n-2] = b[n-1]
			b = b[:n-1]
		}
	}
	buf.Write(b)
}

func writeString(buf *bytes.Buffer, s string) {
	// encoding/json string escaping cannot fail.
	b, _ := json.Marshal(s)
	buf.Write(b)
}

type field struct {
	name      string
	index     []int
	omitEmpty bool
}

func structFields(t reflect.Type) []field {
	var fields []field
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		tag := sf.Tag.Get("json")
		if tag == "-" {
			continue
		}
		name, opts, _ := strings.Cut(tag, ",")

		if sf.Anonymous && name == "" {
			ft := sf.Type
			if ft.Kind() == reflect.Pointer {
				ft = ft.Elem()
			}
			if ft.Kind() == reflect.Struct {
				for _, inner := range structFields(ft) {
					inner.index = append([]int{i}, inner.index...)
					fields = append(fields, inner)
				}
				continue
			}
		}
		if !sf.IsExported() {
			continue
		}
		if name == "" {
			name = sf.Name
		}
		fields = append(fields, field{
			name:      name,
			index:     []int{i},
			omitEmpty: strings.Contains(","+opts+",", ",omitempty,"),
		})
	}
	return fields
}

func encodeStruct(buf *bytes.Buffer, v reflect.Value) error {
	buf.WriteByte('{')
	first := true
	for _, f := range structFields(v.Type()) {
		fv, ok := fieldByIndex(v, f.index)
		if !ok {
			continue
		}
		if f.omitEmpty && isEmpty(fv) {
			continue
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		writeString(buf, f.name)
		buf.WriteByte(':')
		if err := encode(buf, fv); err != nil {
			return errors.Wrapf(err, "field %q", f.name)
		}
	}
	buf.WriteByte('}')
	return nil
}

// fieldByIndex walks embedded pointers, reporting false for nil ones.
func fieldByIndex(v reflect.Value, index []int) (reflect.Value, bool) {
	for i, x := range index {
		if i > 0 && v.Kind() == reflect.Pointer {
			if v.IsNil() {
				return reflect.Value{}, false
			}
			v = v.Elem()
		}
		v = v.Field(x)
	}
	return v, true
}

func encodeMap(buf *bytes.Buffer, v reflect.Value) error {
	if v.IsNil() {
		buf.WriteString("null")
		return nil
	}
	type entry struct {
		key string
		val reflect.Value
	}
	entries := make([]entry, 0, v.Len())
	iter := v.MapRange()
	for iter.Next() {
		k, err := mapKey(iter.Key())
		if err != nil {
			return err
		}
		entries = append(entries, entry{key: k, val: iter.Value()})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].key < entries[j].key })

	buf.WriteByte('{')
	for i, e := range entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		writeString(buf, e.key)
		buf.WriteByte(':')
		if err := encode(buf, e.val); err != nil {
			return errors.Wrapf(err, "map key %q", e.key)
		}
	}
	buf.WriteByte('}')
	return nil
}

func mapKey(k reflect.Value) (string, error) {
	if k.Kind() == reflect.String {
		return k.String(), nil
	}
	if tm, ok := k.Interface().(encoding.TextMarshaler); ok {
		b, err := tm.MarshalText()
		return string(b), err
	}
	switch k.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(k.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(k.Uint(), 10), nil
	}
	return "", errors.Errorf("canonical: unsupported map key kind %s", k.Kind())
}

func isEmpty(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Array, reflect.Map, reflect.Slice, reflect.String:
		return v.Len() == 0
	case reflect.Bool:
		return !v.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return v.Uint() == 0
	case reflect.Float32, reflect.Float64:
		return v.Float() == 0
	case reflect.Interface, reflect.Pointer:
		return v.IsNil()
	}
	return false
}

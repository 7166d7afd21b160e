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

// Package args maps the fields of experiment records onto command-line flags
// and positional arguments.
//
// A Schema is read once from struct tags:
//
//	type Params struct {
//		Epsilon float64 `json:"epsilon" arg:"epsilon" help:"Parameter epsilon"`
//		Index   uint64  `json:"index" arg:"index,positional"`
//		Scale   float64 `arg:"tw-scale,value=S"`
//		Verbose bool    `arg:"verbose,toggle"`
//		Ignored int     `arg:"-"`
//	}
//
// Register declares the flags on a pflag.FlagSet, and Apply copies the values
// the user actually supplied back into a struct. A toggle flag flips its bool
// field instead of setting it.
package args

import (
	"encoding"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"unicode"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
)

// ErrPositional is returned when the number of positional arguments does not
// match the schema.
var ErrPositional = errors.New("wrong number of positional arguments")

var textUnmarshalerType = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()

// Chooser is implemented by enum types that list their accepted values.
type Chooser interface {
	Choices() []string
}

// Field describes one struct field bound to a flag or positional argument.
type Field struct {
	Name       string
	GoName     string
	Index      []int
	Type       reflect.Type
	Positional bool
	Usage      string
	ValueName  string
	Choices    []string
	Toggle     bool
}

// Schema is the ordered field table of one record type.
type Schema struct {
	// Kind labels the record in error messages, e.g. "parameter".
	Kind   string
	Type   reflect.Type
	Fields []Field
}

// SchemaOf reads the field table of the struct (or pointer to struct) v.
func SchemaOf(kind string, v any) (*Schema, error) {
	t := reflect.TypeOf(v)
	if t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return nil, errors.Errorf("%s record must be a struct, got %v", kind, t)
	}

	s := &Schema{Kind: kind, Type: t}
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		tag := sf.Tag.Get("arg")
		if tag == "-" || !sf.IsExported() {
			continue
		}
		f := Field{
			GoName: sf.Name,
			Index:  sf.Index,
			Type:   sf.Type,
			Usage:  sf.Tag.Get("help"),
		}
		parts := strings.Split(tag, ",")
		f.Name = parts[0]
		for _, opt := range parts[1:] {
			switch {
			case opt == "positional":
				f.Positional = true
			case opt == "toggle":
				f.Toggle = true
			case strings.HasPrefix(opt, "value="):
				f.ValueName = strings.TrimPrefix(opt, "value=")
			default:
				return nil, errors.Errorf("%s field %s: unknown arg option %q", kind, sf.Name, opt)
			}
		}
		if f.Name == "" {
			f.Name = kebab(sf.Name)
		}
		if !supported(sf.Type) {
			return nil, errors.Errorf("%s field %s: unsupported type %s", kind, sf.Name, sf.Type)
		}
		if f.Toggle && (f.Positional || sf.Type.Kind() != reflect.Bool) {
			return nil, errors.Errorf("%s field %s: toggle needs a bool flag", kind, sf.Name)
		}
		if f.ValueName == "" {
			f.ValueName = defaultValueName(sf.Type)
		}
		base := sf.Type
		for base.Kind() == reflect.Pointer {
			base = base.Elem()
		}
		if c, ok := reflect.New(base).Interface().(Chooser); ok {
			f.Choices = c.Choices()
		}
		s.Fields = append(s.Fields, f)
	}
	return s, nil
}

// Positional returns the positional fields in declaration order.
func (s *Schema) Positional() []Field {
	var out []Field
	for _, f := range s.Fields {
		if f.Positional {
			out = append(out, f)
		}
	}
	return out
}

// Register declares a flag for every non-positional field on fs, showing the
// values of defaults (a struct or pointer to struct of the schema's type).
func (s *Schema) Register(fs *pflag.FlagSet, defaults any) {
	dv := reflect.Indirect(reflect.ValueOf(defaults))
	for _, f := range s.Fields {
		if f.Positional {
			continue
		}
		usage := f.Usage
		if len(f.Choices) > 0 {
			usage = strings.TrimSpace(fmt.Sprintf("%s (one of: %s)", usage, strings.Join(f.Choices, ", ")))
		}
		var def reflect.Value
		if dv.IsValid() {
			def = dv.FieldByIndex(f.Index)
		}
		if f.Toggle {
			fs.Bool(f.Name, false, strings.TrimSpace(usage+" (flips the default)"))
			continue
		}
		if f.Type.Kind() == reflect.Bool {
			fs.Bool(f.Name, def.IsValid() && def.Bool(), usage)
			continue
		}
		text := ""
		if def.IsValid() {
			text = formatValue(def)
		}
		fs.Var(&textValue{text: text, typ: f.ValueName}, f.Name, usage)
	}
}

// Apply parses positional into the positional fields of dst and copies every
// flag of fs that was explicitly set into the matching field. dst must be a
// pointer to a struct of the schema's type.
func (s *Schema) Apply(fs *pflag.FlagSet, positional []string, dst any) error {
	dv := reflect.ValueOf(dst)
	if dv.Kind() != reflect.Pointer || dv.Elem().Type() != s.Type {
		return errors.Errorf("%s destination must be *%s, got %T", s.Kind, s.Type, dst)
	}
	dv = dv.Elem()

	pos := s.Positional()
	if len(positional) != len(pos) {
		names := make([]string, len(pos))
		for i, f := range pos {
			names[i] = strings.ToUpper(f.Name)
		}
		return errors.Wrapf(ErrPositional, "expected %d (%s), got %d",
			len(pos), strings.Join(names, " "), len(positional))
	}
	for i, f := range pos {
		if err := s.set(dv, f, positional[i]); err != nil {
			return err
		}
	}

	for _, f := range s.Fields {
		if f.Positional {
			continue
		}
		flag := fs.Lookup(f.Name)
		if flag == nil || !flag.Changed {
			continue
		}
		if f.Toggle {
			if flag.Value.String() == "true" {
				v := dv.FieldByIndex(f.Index)
				v.SetBool(!v.Bool())
			}
			continue
		}
		if err := s.set(dv, f, flag.Value.String()); err != nil {
			return err
		}
	}
	return nil
}

func (s *Schema) set(dv reflect.Value, f Field, text string) error {
	if err := setValue(dv.FieldByIndex(f.Index), text); err != nil {
		if len(f.Choices) > 0 {
			if hint := Suggest(text, f.Choices); hint != "" {
				err = errors.Errorf("%v (did you mean %q?)", err, hint)
			}
		}
		return errors.Wrapf(err, "%s %q", s.Kind, f.Name)
	}
	return nil
}

func setValue(v reflect.Value, text string) error {
	if v.Kind() == reflect.Pointer {
		elem := reflect.New(v.Type().Elem())
		if err := setValue(elem.Elem(), text); err != nil {
			return err
		}
		v.Set(elem)
		return nil
	}
	if v.CanAddr() && v.Addr().Type().Implements(textUnmarshalerType) {
		return v.Addr().Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(text))
	}

	switch v.Kind() {
	case reflect.String:
		v.SetString(text)
	case reflect.Bool:
		b, err := strconv.ParseBool(text)
		if err != nil {
			return err
		}
		v.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(text, 10, v.Type().Bits())
		if err != nil {
			return err
		}
		v.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(text, 10, v.Type().Bits())
		if err != nil {
			return err
		}
		v.SetUint(n)
	case reflect.Float32, reflect.Float64:
		x, err := strconv.ParseFloat(text, v.Type().Bits())
		if err != nil {
			return err
		}
		v.SetFloat(x)
	default:
		return errors.Errorf("unsupported type %s", v.Type())
	}
	return nil
}

func formatValue(v reflect.Value) string {
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return ""
		}
		return formatValue(v.Elem())
	}
	if v.CanInterface() {
		if tm, ok := v.Interface().(encoding.TextMarshaler); ok {
			b, err := tm.MarshalText()
			if err == nil {
				return string(b)
			}
		}
	}
	switch v.Kind() {
	case reflect.String:
		return v.String()
	case reflect.Bool:
		return strconv.FormatBool(v.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(v.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(v.Uint(), 10)
	case reflect.Float32, reflect.Float64:
		return strconv.FormatFloat(v.Float(), 'g', -1, v.Type().Bits())
	}
	return fmt.Sprint(v.Interface())
}

func supported(t reflect.Type) bool {
	if reflect.PointerTo(t).Implements(textUnmarshalerType) || t.Implements(textUnmarshalerType) {
		return true
	}
	if t.Kind() == reflect.Pointer {
		return supported(t.Elem())
	}
	switch t.Kind() {
	case reflect.String, reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func defaultValueName(t reflect.Type) string {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if reflect.PointerTo(t).Implements(textUnmarshalerType) {
		return "choice"
	}
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "N"
	case reflect.Float32, reflect.Float64:
		return "X"
	}
	return "string"
}

// kebab turns a Go field name into a flag name: TwScale -> tw-scale.
func kebab(name string) string {
	runes := []rune(name)
	var b strings.Builder
	for i, r := range runes {
		if unicode.IsUpper(r) && i > 0 {
			prevLower := unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1])
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if prevLower || (unicode.IsUpper(runes[i-1]) && nextLower) {
				b.WriteByte('-')
			}
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// textValue holds the raw text of a flag; conversion happens in Apply so
// errors can name the field.
type textValue struct {
	text string
	typ  string
}

func (v *textValue) Set(s string) error { v.text = s; return nil }
func (v *textValue) String() string     { return v.text }
func (v *textValue) Type() string       { return v.typ }

package commands

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"
)

// Options structs declare their flags with struct tags:
//
//	type rmOptions struct {
//		Recursive bool `flag:"-r,--recursive,-R" help:"remove directories and their contents"`
//		Lines     int  `flag:"-n,--lines"`
//	}
//
// bool fields are switches; string, int and []string fields take a value
// (repeatable for []string). Combined short switches (-rf), attached values
// (-n5, --lines=5) and "--" to end option parsing are accepted. Options may
// appear anywhere among the operands.

// FlagSpec is one declared flag.
type FlagSpec struct {
	Name       string
	Names      []string
	Help       string
	TakesValue bool
	field      int
	kind       reflect.Kind
}

// Schema is the parsed flag declaration of an options struct.
type Schema struct {
	Specs  []FlagSpec
	byName map[string]int
	typ    reflect.Type
}

var schemaCache sync.Map // reflect.Type -> *Schema

// SchemaFor builds the schema of the struct type O.
func SchemaFor[O any]() (*Schema, error) {
	return schemaOf(reflect.TypeOf((*O)(nil)).Elem())
}

func schemaOf(t reflect.Type) (*Schema, error) {
	if cached, ok := schemaCache.Load(t); ok {
		return cached.(*Schema), nil
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("options must be a struct, got %s", t)
	}
	s := &Schema{byName: make(map[string]int), typ: t}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag, ok := f.Tag.Lookup("flag")
		if !ok {
			continue
		}
		spec := FlagSpec{Name: strings.ToLower(f.Name), Help: f.Tag.Get("help"), field: i, kind: f.Type.Kind()}
		switch {
		case f.Type.Kind() == reflect.Bool:
		case f.Type.Kind() == reflect.String, f.Type.Kind() == reflect.Int:
			spec.TakesValue = true
		case f.Type.Kind() == reflect.Slice && f.Type.Elem().Kind() == reflect.String:
			spec.TakesValue = true
		default:
			return nil, fmt.Errorf("flag field %s: unsupported type %s", f.Name, f.Type)
		}
		for _, name := range strings.Split(tag, ",") {
			name = strings.TrimSpace(name)
			short := len(name) == 2 && name[0] == '-' && name[1] != '-'
			long := len(name) > 2 && strings.HasPrefix(name, "--")
			if !short && !long {
				return nil, fmt.Errorf("flag field %s: malformed name %q", f.Name, name)
			}
			if _, dup := s.byName[name]; dup {
				return nil, fmt.Errorf("flag field %s: duplicate name %q", f.Name, name)
			}
			s.byName[name] = len(s.Specs)
			spec.Names = append(spec.Names, name)
		}
		s.Specs = append(s.Specs, spec)
	}
	actual, _ := schemaCache.LoadOrStore(t, s)
	return actual.(*Schema), nil
}

// Parse fills dst, a pointer to the schema's struct, from args and returns the
// remaining operands in order.
func (s *Schema) Parse(args []string, dst any) ([]string, error) {
	v := reflect.ValueOf(dst)
	if v.Kind() != reflect.Pointer || v.Elem().Type() != s.typ {
		return nil, fmt.Errorf("parse flags: destination must be *%s", s.typ)
	}
	v = v.Elem()

	var rest []string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--":
			return append(rest, args[i+1:]...), nil

		case strings.HasPrefix(arg, "--"):
			name, value, hasValue := strings.Cut(arg, "=")
			idx, ok := s.byName[name]
			if !ok {
				return nil, fmt.Errorf("unrecognized option '%s'", name)
			}
			spec := s.Specs[idx]
			if !spec.TakesValue {
				if hasValue {
					return nil, fmt.Errorf("option '%s' doesn't allow an argument", name)
				}
				v.Field(spec.field).SetBool(true)
				continue
			}
			if !hasValue {
				if i+1 >= len(args) {
					return nil, fmt.Errorf("option '%s' requires an argument", name)
				}
				i++
				value = args[i]
			}
			if err := s.set(v, spec, name, value); err != nil {
				return nil, err
			}

		case len(arg) > 1 && arg[0] == '-' && !s.isOperand(arg):
			for j := 1; j < len(arg); j++ {
				name := "-" + arg[j:j+1]
				idx, ok := s.byName[name]
				if !ok {
					return nil, fmt.Errorf("invalid option -- '%c'", arg[j])
				}
				spec := s.Specs[idx]
				if !spec.TakesValue {
					v.Field(spec.field).SetBool(true)
					continue
				}
				value := arg[j+1:]
				if value == "" {
					if i+1 >= len(args) {
						return nil, fmt.Errorf("option requires an argument -- '%c'", arg[j])
					}
					i++
					value = args[i]
				}
				if err := s.set(v, spec, name, value); err != nil {
					return nil, err
				}
				break
			}

		default:
			rest = append(rest, arg)
		}
	}
	return rest, nil
}

// isOperand treats negative numbers as operands unless a digit flag exists.
func (s *Schema) isOperand(arg string) bool {
	if _, err := strconv.Atoi(arg); err != nil {
		return false
	}
	_, isFlag := s.byName[arg[:2]]
	return !isFlag
}

func (s *Schema) set(v reflect.Value, spec FlagSpec, name, value string) error {
	field := v.Field(spec.field)
	switch spec.kind {
	case reflect.String:
		field.SetString(value)
	case reflect.Int:
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value '%s' for option '%s'", value, name)
		}
		field.SetInt(int64(n))
	case reflect.Slice:
		field.Set(reflect.Append(field, reflect.ValueOf(value)))
	}
	return nil
}

// Usage renders the flag list for help output.
func (s *Schema) Usage() string {
	var b strings.Builder
	for _, spec := range s.Specs {
		names := strings.Join(spec.Names, ", ")
		if spec.TakesValue {
			names += " <" + spec.Name + ">"
		}
		fmt.Fprintf(&b, "  %-28s %s\n", names, spec.Help)
	}
	return strings.TrimRight(b.String(), "\n")
}

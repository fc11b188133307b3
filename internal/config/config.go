package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// EnvPrefix is prepended to every `env` struct tag.
const EnvPrefix = "MEDIADEVICE_"

var durationType = reflect.TypeOf(time.Duration(0))

// optionField is one settable field of an options struct with the names it
// can be configured under.
type optionField struct {
	value reflect.Value
	name  string
	flag  string
	toml  string
	env   string
}

// LoadConfig fills opts from the TOML file named by its Config field and from
// MEDIADEVICE_ environment variables. Precedence is CLI flag > environment >
// file > default: fields whose flag was set on cmd are left alone.
//
// A missing file is not an error. A file that does not parse is, and nothing
// is applied from it. Values of the wrong type are skipped and reported
// together in the returned error; the remaining fields are still applied.
func LoadConfig(opts any, cmd *cobra.Command) error {
	fields, configPath := optionFields(opts)

	changed := make(map[string]bool)
	if cmd != nil {
		cmd.Flags().VisitAll(func(f *pflag.Flag) {
			if f.Changed {
				changed[f.Name] = true
			}
		})
	}

	file, err := readTOML(configPath)
	if err != nil {
		return err
	}

	var errs []error
	for _, f := range fields {
		if changed[f.flag] {
			continue
		}
		if f.toml != "" && file != nil {
			if raw := getNestedValue(file, f.toml); raw != nil {
				if err := assign(f.value, raw); err != nil {
					errs = append(errs, fmt.Errorf("%s (%s): %w", f.toml, configPath, err))
				}
			}
		}
		if f.env != "" {
			if raw, ok := os.LookupEnv(EnvPrefix + f.env); ok && raw != "" {
				if err := assign(f.value, raw); err != nil {
					errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, f.env, err))
				}
			}
		}
	}
	return errors.Join(errs...)
}

func optionFields(opts any) ([]optionField, string) {
	v := reflect.ValueOf(opts).Elem()
	t := v.Type()

	var configPath string
	fields := make([]optionField, 0, t.NumField())
	for i := range t.NumField() {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		if sf.Name == "Config" && sf.Type.Kind() == reflect.String {
			configPath = v.Field(i).String()
			continue
		}
		fields = append(fields, optionField{
			value: v.Field(i),
			name:  sf.Name,
			flag:  fieldNameToFlag(sf.Name),
			toml:  sf.Tag.Get("toml"),
			env:   sf.Tag.Get("env"),
		})
	}
	return fields, configPath
}

func readTOML(path string) (map[string]any, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	var file map[string]any
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse TOML config: %w", err)
	}
	return file, nil
}

// fieldNameToFlag converts a struct field name to a CLI flag name, keeping
// acronyms together the way humacli does.
// Example: "LoggingLevel" -> "logging-level", "CORSOrigin" -> "cors-origin".
func fieldNameToFlag(fieldName string) string {
	runes := []rune(fieldName)
	var result []rune
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prevLower := unicode.IsLower(runes[i-1])
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if prevLower || (nextLower && unicode.IsUpper(runes[i-1])) {
				result = append(result, '-')
			}
		}
		result = append(result, unicode.ToLower(r))
	}
	return string(result)
}

// getNestedValue looks up a dotted path ("logging.level") in decoded TOML.
func getNestedValue(data map[string]any, path string) any {
	current := data
	parts := strings.Split(path, ".")
	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part].(map[string]any)
		if !ok {
			return nil
		}
		current = next
	}
	return current[parts[len(parts)-1]]
}

// assign stores raw in field. raw is either a decoded TOML value or a string
// from the environment; strings are parsed for non-string fields. Bare TOML
// integers in duration fields are milliseconds. Comma-separated strings fill
// string slices. The field is unchanged on error.
func assign(field reflect.Value, raw any) error {
	if !field.CanSet() {
		return nil
	}

	if field.Type() == durationType {
		switch v := raw.(type) {
		case string:
			d, err := time.ParseDuration(strings.TrimSpace(v))
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		case int64:
			field.SetInt(v * int64(time.Millisecond))
		default:
			return typeError("duration", raw)
		}
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		s, ok := raw.(string)
		if !ok {
			return typeError("string", raw)
		}
		field.SetString(s)

	case reflect.Bool:
		switch v := raw.(type) {
		case bool:
			field.SetBool(v)
		case string:
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				return err
			}
			field.SetBool(b)
		default:
			return typeError("bool", raw)
		}

	case reflect.Int, reflect.Int64, reflect.Int32:
		switch v := raw.(type) {
		case int64:
			field.SetInt(v)
		case string:
			i, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(i)
		default:
			return typeError("integer", raw)
		}

	case reflect.Float32, reflect.Float64:
		switch v := raw.(type) {
		case float64:
			field.SetFloat(v)
		case int64:
			field.SetFloat(float64(v))
		case string:
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				return err
			}
			field.SetFloat(f)
		default:
			return typeError("number", raw)
		}

	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported field type %s", field.Type())
		}
		var items []string
		switch v := raw.(type) {
		case []any:
			for _, item := range v {
				s, ok := item.(string)
				if !ok {
					return typeError("string", item)
				}
				items = append(items, s)
			}
		case string:
			for _, part := range strings.Split(v, ",") {
				items = append(items, strings.TrimSpace(part))
			}
		default:
			return typeError("list of strings", raw)
		}
		field.Set(reflect.ValueOf(items))

	default:
		return fmt.Errorf("unsupported field type %s", field.Type())
	}
	return nil
}

func typeError(want string, got any) error {
	return fmt.Errorf("expected %s, got %T", want, got)
}

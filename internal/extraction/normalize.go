package extraction

import (
	"math"
	"strconv"
	"strings"

	"github.com/supplier-intake/intake-pipeline/internal/store/model"
)

// CategoryField is the key of the extracted data holding the product category.
const CategoryField = "category"

// Normalized is an extraction result ready to be stored on the submission.
type Normalized struct {
	Data        map[string]any
	Confidence  *float64
	FieldErrors []string
	Category    *string
}

// Normalize trims strings, drops empty values and coerces the fields the template declares as
// number, integer or boolean. Values that cannot be coerced are kept as they are so scoring can flag them.
func Normalize(raw *Result, fields []model.FieldSpec) Normalized {
	out := Normalized{
		Data:        map[string]any{},
		FieldErrors: []string{},
	}
	if raw == nil {
		return out
	}

	types := make(map[string]model.FieldType, len(fields))
	for _, f := range fields {
		types[f.Name] = f.Type
	}

	for k, v := range raw.Data {
		key := strings.TrimSpace(k)
		if key == "" {
			continue
		}
		v = clean(v)
		if v == nil {
			continue
		}
		out.Data[key] = coerce(v, types[key])
	}

	if raw.Confidence != nil && !math.IsNaN(*raw.Confidence) {
		c := math.Max(0, math.Min(100, *raw.Confidence))
		out.Confidence = &c
	}

	for _, e := range raw.FieldErrors {
		if e = strings.TrimSpace(e); e != "" {
			out.FieldErrors = append(out.FieldErrors, e)
		}
	}

	if c, ok := out.Data[CategoryField].(string); ok {
		c = NormalizeCategory(c)
		out.Data[CategoryField] = c
		out.Category = &c
	}

	return out
}

// NormalizeCategory lowercases the category and collapses separators to a single underscore.
func NormalizeCategory(c string) string {
	fields := strings.FieldsFunc(strings.ToLower(c), func(r rune) bool {
		return r == ' ' || r == '-' || r == '_' || r == '/'
	})
	return strings.Join(fields, "_")
}

func clean(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return nil
		}
		return s
	case []any:
		items := make([]any, 0, len(t))
		for _, item := range t {
			if item = clean(item); item != nil {
				items = append(items, item)
			}
		}
		if len(items) == 0 {
			return nil
		}
		return items
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, item := range t {
			if item = clean(item); item != nil {
				m[k] = item
			}
		}
		if len(m) == 0 {
			return nil
		}
		return m
	}
	return v
}

func coerce(v any, t model.FieldType) any {
	switch t {
	case model.FieldTypeNumber:
		if f, ok := toFloat(v); ok {
			return f
		}
	case model.FieldTypeInteger:
		if f, ok := toFloat(v); ok && f == math.Trunc(f) {
			return int64(f)
		}
	case model.FieldTypeBoolean:
		if b, ok := toBool(v); ok {
			return b
		}
	}
	return v
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case string:
		s := strings.NewReplacer(",", "", " ", "").Replace(t)
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

func toBool(v any) (bool, bool) {
	switch t := v.(type) {
	case bool:
		return t, true
	case float64:
		return t != 0, t == 0 || t == 1
	case string:
		switch strings.ToLower(t) {
		case "true", "yes", "y", "1":
			return true, true
		case "false", "no", "n", "0":
			return false, true
		}
	}
	return false, false
}

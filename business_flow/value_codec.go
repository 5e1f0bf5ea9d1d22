package businessflow

import (
	"encoding/json"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/amirphl/fuel-pricing-config/models"
	"github.com/amirphl/fuel-pricing-config/utils"
)

// Constraints are the per-row validation rules applied to a raw value.
type Constraints struct {
	AllowedValues []string
	MinValue      *float64
	MaxValue      *float64
	RegexPattern  *string
	IsRequired    bool
}

// ConstraintsOf extracts validation rules from a configuration row.
func ConstraintsOf(c *models.Configuration) Constraints {
	return Constraints{
		AllowedValues: c.AllowedValues,
		MinValue:      c.MinValue,
		MaxValue:      c.MaxValue,
		RegexPattern:  c.RegexPattern,
		IsRequired:    c.IsRequired,
	}
}

// ValueKind parses, validates and serializes values of one data type.
// The set of kinds is closed; use KindOf to obtain one.
type ValueKind interface {
	DataType() models.DataType
	Parse(raw string) (any, error)
	Validate(raw string, c Constraints) error
	Serialize(v any) (string, error)
	sealed()
}

type (
	StringKind    struct{}
	NumberKind    struct{}
	BooleanKind   struct{}
	JSONKind      struct{}
	ArrayKind     struct{}
	DateKind      struct{}
	EncryptedKind struct{}
)

var kinds = map[models.DataType]ValueKind{
	models.DataTypeString:    StringKind{},
	models.DataTypeNumber:    NumberKind{},
	models.DataTypeBoolean:   BooleanKind{},
	models.DataTypeJSON:      JSONKind{},
	models.DataTypeArray:     ArrayKind{},
	models.DataTypeDate:      DateKind{},
	models.DataTypeEncrypted: EncryptedKind{},
}

// KindOf returns the codec for dt.
func KindOf(dt models.DataType) (ValueKind, error) {
	k, ok := kinds[dt]
	if !ok {
		return nil, fmt.Errorf("%q: %w", dt, ErrInvalidDataType)
	}
	return k, nil
}

// ValidateValue applies the required check and then the kind's own rules.
// An empty value that is not required is accepted.
func ValidateValue(kind ValueKind, raw *string, c Constraints) error {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		if c.IsRequired {
			return ErrValueRequired
		}
		return nil
	}
	return kind.Validate(*raw, c)
}

func (StringKind) sealed() {}

func (StringKind) DataType() models.DataType { return models.DataTypeString }

func (StringKind) Parse(raw string) (any, error) {
	return raw, nil
}

func (StringKind) Validate(raw string, c Constraints) error {
	if len(c.AllowedValues) > 0 && !slices.Contains(c.AllowedValues, raw) {
		return fmt.Errorf("%q: %w", raw, ErrValueNotAllowed)
	}
	if c.RegexPattern != nil && *c.RegexPattern != "" {
		re, err := compilePattern(*c.RegexPattern)
		if err != nil {
			return fmt.Errorf("invalid pattern %q: %w", *c.RegexPattern, ErrValidationFailed)
		}
		if !re.MatchString(raw) {
			return ErrPatternMismatch
		}
	}
	return nil
}

func (StringKind) Serialize(v any) (string, error) {
	return fmt.Sprint(v), nil
}

func (NumberKind) sealed() {}

func (NumberKind) DataType() models.DataType { return models.DataTypeNumber }

func (NumberKind) Parse(raw string) (any, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return nil, fmt.Errorf("%q: %w", raw, ErrInvalidNumber)
	}
	return f, nil
}

func (k NumberKind) Validate(raw string, c Constraints) error {
	v, err := k.Parse(raw)
	if err != nil {
		return err
	}
	f := v.(float64)
	if c.MinValue != nil && f < *c.MinValue {
		return fmt.Errorf("%v below minimum %v: %w", f, *c.MinValue, ErrNumberOutOfRange)
	}
	if c.MaxValue != nil && f > *c.MaxValue {
		return fmt.Errorf("%v above maximum %v: %w", f, *c.MaxValue, ErrNumberOutOfRange)
	}
	return nil
}

func (NumberKind) Serialize(v any) (string, error) {
	switch n := v.(type) {
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64), nil
	case float32:
		return strconv.FormatFloat(float64(n), 'f', -1, 32), nil
	case int:
		return strconv.Itoa(n), nil
	case int64:
		return strconv.FormatInt(n, 10), nil
	case string:
		if _, err := strconv.ParseFloat(n, 64); err != nil {
			return "", fmt.Errorf("%q: %w", n, ErrInvalidNumber)
		}
		return n, nil
	default:
		return "", fmt.Errorf("%T: %w", v, ErrInvalidNumber)
	}
}

func (BooleanKind) sealed() {}

func (BooleanKind) DataType() models.DataType { return models.DataTypeBoolean }

func (BooleanKind) Parse(raw string) (any, error) {
	return strings.EqualFold(strings.TrimSpace(raw), "true"), nil
}

func (BooleanKind) Validate(raw string, _ Constraints) error {
	if !strings.EqualFold(raw, "true") && !strings.EqualFold(raw, "false") {
		return fmt.Errorf("%q: %w", raw, ErrInvalidBoolean)
	}
	return nil
}

func (BooleanKind) Serialize(v any) (string, error) {
	switch b := v.(type) {
	case bool:
		return strconv.FormatBool(b), nil
	case string:
		if strings.EqualFold(b, "true") || strings.EqualFold(b, "false") {
			return strings.ToLower(b), nil
		}
	}
	return "", fmt.Errorf("%v: %w", v, ErrInvalidBoolean)
}

func (JSONKind) sealed() {}

func (JSONKind) DataType() models.DataType { return models.DataTypeJSON }

func (JSONKind) Parse(raw string) (any, error) {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrInvalidJSON)
	}
	return v, nil
}

func (k JSONKind) Validate(raw string, _ Constraints) error {
	_, err := k.Parse(raw)
	return err
}

func (JSONKind) Serialize(v any) (string, error) {
	if s, ok := v.(string); ok && json.Valid([]byte(s)) {
		return s, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("%v: %w", err, ErrInvalidJSON)
	}
	return string(b), nil
}

func (ArrayKind) sealed() {}

func (ArrayKind) DataType() models.DataType { return models.DataTypeArray }

// Parse accepts a JSON array or a comma separated list.
func (ArrayKind) Parse(raw string) (any, error) {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "[") {
		var items []any
		if err := json.Unmarshal([]byte(trimmed), &items); err != nil {
			return nil, fmt.Errorf("%v: %w", err, ErrInvalidArray)
		}
		return items, nil
	}
	if trimmed == "" {
		return []any{}, nil
	}
	parts := strings.Split(trimmed, ",")
	items := make([]any, 0, len(parts))
	for _, p := range parts {
		items = append(items, strings.TrimSpace(p))
	}
	return items, nil
}

func (ArrayKind) Validate(string, Constraints) error { return nil }

func (ArrayKind) Serialize(v any) (string, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("%v: %w", err, ErrInvalidArray)
	}
	return string(b), nil
}

func (DateKind) sealed() {}

func (DateKind) DataType() models.DataType { return models.DataTypeDate }

func (DateKind) Parse(raw string) (any, error) {
	trimmed := strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339, trimmed); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(utils.DateLayout, trimmed)
	if err != nil {
		return nil, fmt.Errorf("%q: %w", raw, ErrInvalidDate)
	}
	return t, nil
}

func (DateKind) Validate(string, Constraints) error { return nil }

func (DateKind) Serialize(v any) (string, error) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC().Format(time.RFC3339), nil
	case string:
		return t, nil
	default:
		return "", fmt.Errorf("%T: %w", v, ErrInvalidDate)
	}
}

func (EncryptedKind) sealed() {}

func (EncryptedKind) DataType() models.DataType { return models.DataTypeEncrypted }

func (EncryptedKind) Parse(raw string) (any, error) {
	return raw, nil
}

func (EncryptedKind) Validate(string, Constraints) error { return nil }

func (EncryptedKind) Serialize(v any) (string, error) {
	return fmt.Sprint(v), nil
}

var patternCache sync.Map

func compilePattern(pattern string) (*regexp.Regexp, error) {
	if re, ok := patternCache.Load(pattern); ok {
		return re.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	patternCache.Store(pattern, re)
	return re, nil
}

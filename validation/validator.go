// Package validation sanitizes and validates untrusted payloads against a
// Schema of typed field rules.
package validation

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// defaultEmailMaxLength is the RFC 5321 path limit.
const defaultEmailMaxLength = 254

var (
	validate = validator.New()

	phoneSeparators = strings.NewReplacer(" ", "", "-", "", ".", "", "(", "", ")", "")
)

// FieldResult is the outcome of validating a single value.
type FieldResult struct {
	IsValid        bool
	Errors         []string
	SanitizedValue interface{}
}

// Result is the outcome of validating a payload. SanitizedData holds every
// schema field that passed and is populated even when IsValid is false;
// callers must not use it unless IsValid is true.
type Result struct {
	IsValid          bool
	Errors           []string
	SanitizedData    map[string]interface{}
	UnexpectedFields []string
}

// Validator applies rules to untrusted input.
type Validator struct {
	logger *zap.Logger
}

// NewValidator creates a Validator. Dropped unexpected fields are reported on logger.
func NewValidator(logger *zap.Logger) *Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Validator{logger: logger}
}

// ValidateData validates data against schema. Fields absent from the schema
// never reach SanitizedData; they are listed in UnexpectedFields and logged.
func (v *Validator) ValidateData(data map[string]interface{}, schema Schema) Result {
	result := v.validateData(data, schema, "")
	if len(result.UnexpectedFields) > 0 {
		v.logger.Warn("unexpected fields dropped from payload",
			zap.Strings("fields", result.UnexpectedFields),
		)
	}
	return result
}

func (v *Validator) validateData(data map[string]interface{}, schema Schema, prefix string) Result {
	result := Result{
		IsValid:       true,
		SanitizedData: make(map[string]interface{}, len(schema)),
	}

	fields := make([]string, 0, len(schema))
	for field := range schema {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	for _, field := range fields {
		name := prefix + field
		fr := v.validateField(data[field], schema[field], name, &result.UnexpectedFields)
		if !fr.IsValid {
			result.IsValid = false
			result.Errors = append(result.Errors, fr.Errors...)
			continue
		}
		if fr.SanitizedValue != nil {
			result.SanitizedData[field] = fr.SanitizedValue
		}
	}

	for key := range data {
		if _, ok := schema[key]; !ok {
			result.UnexpectedFields = append(result.UnexpectedFields, prefix+key)
		}
	}
	sort.Strings(result.UnexpectedFields)

	return result
}

// ValidateField checks one value against rule. name is used in error messages.
// An optional empty value is valid with a nil SanitizedValue.
func (v *Validator) ValidateField(value interface{}, rule Rule, name string) FieldResult {
	var unexpected []string
	fr := v.validateField(value, rule, name, &unexpected)
	if len(unexpected) > 0 {
		v.logger.Warn("unexpected fields dropped from payload",
			zap.String("field", name),
			zap.Strings("fields", unexpected),
		)
	}
	return fr
}

func (v *Validator) validateField(value interface{}, rule Rule, name string, unexpected *[]string) FieldResult {
	if rule == nil {
		return invalid("%s has no validation rule", name)
	}
	if isEmpty(value) {
		if rule.IsRequired() {
			return invalid("%s is required", name)
		}
		return FieldResult{IsValid: true}
	}

	sanitized := SanitizeValue(value)

	switch r := rule.(type) {
	case StringRule:
		return checkString(sanitized, r, name)
	case EmailRule:
		return checkEmail(sanitized, r, name)
	case URLRule:
		return checkFormat(sanitized, r, name, "http_url", "a valid http(s) URL")
	case UUIDRule:
		return checkFormat(sanitized, r, name, "uuid", "a valid UUID")
	case PhoneRule:
		return checkPhone(sanitized, r, name)
	case NumberRule:
		return checkNumber(sanitized, r, name)
	case BooleanRule:
		return checkBoolean(sanitized, name)
	case EnumRule:
		return checkEnum(sanitized, r, name)
	case ArrayRule:
		return v.checkArray(sanitized, r, name, unexpected)
	case ObjectRule:
		return v.checkObject(sanitized, r, name, unexpected)
	case DateRule:
		return checkDate(sanitized, r, name)
	default:
		return invalid("%s has an unsupported rule type %T", name, rule)
	}
}

func checkString(value interface{}, r StringRule, name string) FieldResult {
	s, res, ok := stringValue(value, r, name)
	if !ok {
		return res
	}

	var errs []string
	length := utf8.RuneCountInString(s)
	if r.MinLength > 0 && length < r.MinLength {
		errs = append(errs, fmt.Sprintf("%s must be at least %d characters", name, r.MinLength))
	}
	if r.MaxLength > 0 && length > r.MaxLength {
		errs = append(errs, fmt.Sprintf("%s must be at most %d characters", name, r.MaxLength))
	}
	if r.Pattern != nil && !r.Pattern.MatchString(s) {
		errs = append(errs, fmt.Sprintf("%s has an invalid format", name))
	}
	if len(errs) > 0 {
		return FieldResult{Errors: errs}
	}
	return valid(s)
}

func checkEmail(value interface{}, r EmailRule, name string) FieldResult {
	s, res, ok := stringValue(value, r, name)
	if !ok {
		return res
	}
	maxLength := r.MaxLength
	if maxLength <= 0 {
		maxLength = defaultEmailMaxLength
	}
	if len(s) > maxLength {
		return invalid("%s must be at most %d characters", name, maxLength)
	}
	if err := validate.Var(s, "email"); err != nil {
		return invalid("%s must be a valid email address", name)
	}
	return valid(s)
}

func checkFormat(value interface{}, r Rule, name, tag, description string) FieldResult {
	s, res, ok := stringValue(value, r, name)
	if !ok {
		return res
	}
	if err := validate.Var(s, tag); err != nil {
		return invalid("%s must be %s", name, description)
	}
	return valid(s)
}

func checkPhone(value interface{}, r PhoneRule, name string) FieldResult {
	s, res, ok := stringValue(value, r, name)
	if !ok {
		return res
	}
	s = phoneSeparators.Replace(s)
	if err := validate.Var(s, "e164"); err != nil {
		return invalid("%s must be a valid E.164 phone number", name)
	}
	return valid(s)
}

func checkNumber(value interface{}, r NumberRule, name string) FieldResult {
	n, ok := toFloat(value)
	if !ok || math.IsNaN(n) || math.IsInf(n, 0) {
		return invalid("%s must be a number", name)
	}
	// float64(math.MaxInt64) rounds up to 2^63, so the upper bound is exclusive.
	if r.Integer && (n != math.Trunc(n) || n < math.MinInt64 || n >= math.MaxInt64) {
		return invalid("%s must be an integer", name)
	}
	if r.Min != nil && n < *r.Min {
		return invalid("%s must be at least %v", name, *r.Min)
	}
	if r.Max != nil && n > *r.Max {
		return invalid("%s must be at most %v", name, *r.Max)
	}
	if r.Integer {
		return valid(int64(n))
	}
	return valid(n)
}

func checkBoolean(value interface{}, name string) FieldResult {
	switch b := value.(type) {
	case bool:
		return valid(b)
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(b))
		if err == nil {
			return valid(parsed)
		}
	}
	return invalid("%s must be a boolean", name)
}

func checkEnum(value interface{}, r EnumRule, name string) FieldResult {
	s, res, ok := stringValue(value, r, name)
	if !ok {
		return res
	}
	for _, allowed := range r.Values {
		if s == allowed {
			return valid(s)
		}
	}
	return invalid("%s must be one of: %s", name, strings.Join(r.Values, ", "))
}

func (v *Validator) checkArray(value interface{}, r ArrayRule, name string, unexpected *[]string) FieldResult {
	items, ok := value.([]interface{})
	if !ok {
		return invalid("%s must be an array", name)
	}
	if r.MinItems > 0 && len(items) < r.MinItems {
		return invalid("%s must contain at least %d items", name, r.MinItems)
	}
	if r.MaxItems > 0 && len(items) > r.MaxItems {
		return invalid("%s must contain at most %d items", name, r.MaxItems)
	}
	if r.Items == nil {
		return valid(items)
	}

	out := make([]interface{}, 0, len(items))
	var errs []string
	for i, item := range items {
		fr := v.validateField(item, r.Items, fmt.Sprintf("%s[%d]", name, i), unexpected)
		if !fr.IsValid {
			errs = append(errs, fr.Errors...)
			continue
		}
		out = append(out, fr.SanitizedValue)
	}
	if len(errs) > 0 {
		return FieldResult{Errors: errs}
	}
	return valid(out)
}

func (v *Validator) checkObject(value interface{}, r ObjectRule, name string, unexpected *[]string) FieldResult {
	obj, ok := value.(map[string]interface{})
	if !ok {
		return invalid("%s must be an object", name)
	}
	if r.Schema == nil {
		return valid(obj)
	}
	nested := v.validateData(obj, r.Schema, name+".")
	*unexpected = append(*unexpected, nested.UnexpectedFields...)
	if !nested.IsValid {
		return FieldResult{Errors: nested.Errors}
	}
	return valid(nested.SanitizedData)
}

func checkDate(value interface{}, r DateRule, name string) FieldResult {
	s, res, ok := stringValue(value, r, name)
	if !ok {
		return res
	}
	if _, err := time.Parse(r.layout(), s); err != nil {
		return invalid("%s must be a date in %s format", name, r.layout())
	}
	return valid(s)
}

// stringValue unwraps a sanitized string. A string that sanitizes to nothing
// counts as empty for the required check.
func stringValue(value interface{}, rule Rule, name string) (string, FieldResult, bool) {
	s, ok := value.(string)
	if !ok {
		return "", invalid("%s must be a string", name), false
	}
	if s == "" {
		if rule.IsRequired() {
			return "", invalid("%s is required", name), false
		}
		return "", FieldResult{IsValid: true}, false
	}
	return s, FieldResult{}, true
}

func toFloat(value interface{}) (float64, bool) {
	switch n := value.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func isEmpty(value interface{}) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	default:
		return false
	}
}

func valid(value interface{}) FieldResult {
	return FieldResult{IsValid: true, SanitizedValue: value}
}

func invalid(format string, args ...interface{}) FieldResult {
	return FieldResult{Errors: []string{fmt.Sprintf(format, args...)}}
}

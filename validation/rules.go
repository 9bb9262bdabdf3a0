package validation

import (
	"regexp"
	"time"
)

// Kind names a rule type in error messages and logs.
type Kind string

const (
	KindString  Kind = "string"
	KindEmail   Kind = "email"
	KindURL     Kind = "url"
	KindUUID    Kind = "uuid"
	KindPhone   Kind = "phone"
	KindNumber  Kind = "number"
	KindBoolean Kind = "boolean"
	KindEnum    Kind = "enum"
	KindArray   Kind = "array"
	KindObject  Kind = "object"
	KindDate    Kind = "date"
)

// Rule is one field's constraint set. The set of rule types is closed: only
// the types declared in this file implement it.
type Rule interface {
	Kind() Kind
	IsRequired() bool
	sealed()
}

// Schema maps a field name to its rule. Only schema fields are ever copied
// into sanitized output.
type Schema map[string]Rule

// StringRule accepts free text. Lengths are counted in runes; zero means unbounded.
type StringRule struct {
	Required  bool
	MinLength int
	MaxLength int
	Pattern   *regexp.Regexp
}

// EmailRule accepts an RFC 5322 address.
type EmailRule struct {
	Required  bool
	MaxLength int
}

// URLRule accepts an absolute http or https URL.
type URLRule struct {
	Required bool
}

// UUIDRule accepts a canonical UUID string.
type UUIDRule struct {
	Required bool
}

// PhoneRule accepts an E.164 number. Spaces, dots, dashes and parentheses
// are removed before the check.
type PhoneRule struct {
	Required bool
}

// NumberRule accepts JSON numbers and numeric strings; the sanitized value is
// a float64, or an int64 when Integer is set.
type NumberRule struct {
	Required bool
	Min      *float64
	Max      *float64
	Integer  bool
}

// BooleanRule accepts booleans and strconv.ParseBool strings.
type BooleanRule struct {
	Required bool
}

// EnumRule accepts one of Values.
type EnumRule struct {
	Required bool
	Values   []string
}

// ArrayRule accepts a JSON array. Items, when set, is applied to every element.
type ArrayRule struct {
	Required bool
	MinItems int
	MaxItems int
	Items    Rule
}

// ObjectRule accepts a JSON object. With a Schema the object is validated as
// a nested payload; without one it is only sanitized.
type ObjectRule struct {
	Required bool
	Schema   Schema
}

// DateRule accepts a timestamp in Layout (time.RFC3339 when empty).
type DateRule struct {
	Required bool
	Layout   string
}

func (StringRule) Kind() Kind  { return KindString }
func (EmailRule) Kind() Kind   { return KindEmail }
func (URLRule) Kind() Kind     { return KindURL }
func (UUIDRule) Kind() Kind    { return KindUUID }
func (PhoneRule) Kind() Kind   { return KindPhone }
func (NumberRule) Kind() Kind  { return KindNumber }
func (BooleanRule) Kind() Kind { return KindBoolean }
func (EnumRule) Kind() Kind    { return KindEnum }
func (ArrayRule) Kind() Kind   { return KindArray }
func (ObjectRule) Kind() Kind  { return KindObject }
func (DateRule) Kind() Kind    { return KindDate }

func (r StringRule) IsRequired() bool  { return r.Required }
func (r EmailRule) IsRequired() bool   { return r.Required }
func (r URLRule) IsRequired() bool     { return r.Required }
func (r UUIDRule) IsRequired() bool    { return r.Required }
func (r PhoneRule) IsRequired() bool   { return r.Required }
func (r NumberRule) IsRequired() bool  { return r.Required }
func (r BooleanRule) IsRequired() bool { return r.Required }
func (r EnumRule) IsRequired() bool    { return r.Required }
func (r ArrayRule) IsRequired() bool   { return r.Required }
func (r ObjectRule) IsRequired() bool  { return r.Required }
func (r DateRule) IsRequired() bool    { return r.Required }

func (StringRule) sealed()  {}
func (EmailRule) sealed()   {}
func (URLRule) sealed()     {}
func (UUIDRule) sealed()    {}
func (PhoneRule) sealed()   {}
func (NumberRule) sealed()  {}
func (BooleanRule) sealed() {}
func (EnumRule) sealed()    {}
func (ArrayRule) sealed()   {}
func (ObjectRule) sealed()  {}
func (DateRule) sealed()    {}

// Bound returns a pointer to v, for NumberRule limits.
func Bound(v float64) *float64 {
	return &v
}

func (r DateRule) layout() string {
	if r.Layout == "" {
		return time.RFC3339
	}
	return r.Layout
}

package resource

import (
	"fmt"
	"time"

	"fjacquet/payledger/internal/currencyutils"
	"fjacquet/payledger/internal/dateutils"
	"fjacquet/payledger/internal/transport"

	"github.com/shopspring/decimal"
)

type fieldState uint8

const (
	unset fieldState = iota
	null
	present
)

// Field is a tri-state value: unset (omitted from requests), explicitly null
// (sent as JSON null) or holding a value. The zero Field is unset.
type Field[T any] struct {
	state fieldState
	value T
}

// Set returns a Field holding v.
func Set[T any](v T) Field[T] {
	return Field[T]{state: present, value: v}
}

// Null returns an explicitly null Field.
func Null[T any]() Field[T] {
	return Field[T]{state: null}
}

// Optional returns an unset Field for the empty string and a set one otherwise.
func Optional(v string) Field[string] {
	if v == "" {
		return Field[string]{}
	}
	return Set(v)
}

func (f Field[T]) IsUnset() bool  { return f.state == unset }
func (f Field[T]) IsNull() bool   { return f.state == null }
func (f Field[T]) HasValue() bool { return f.state == present }

// Get returns the value and whether one is held.
func (f Field[T]) Get() (T, bool) {
	return f.value, f.state == present
}

// Or returns the value, or def when unset or null.
func (f Field[T]) Or(def T) T {
	if f.state == present {
		return f.value
	}
	return def
}

func (f Field[T]) String() string {
	switch f.state {
	case null:
		return "null"
	case present:
		return fmt.Sprint(f.value)
	default:
		return "<unset>"
	}
}

// Put writes f into s under key. Unset fields are skipped, null fields are
// written as nil. encode converts the value to its wire form; nil keeps it as is.
func Put[T any](s transport.Snapshot, key string, f Field[T], encode func(T) any) {
	switch f.state {
	case null:
		s[key] = nil
	case present:
		if encode != nil {
			s[key] = encode(f.value)
		} else {
			s[key] = f.value
		}
	}
}

// EncodeAmount renders a decimal the way the gateway exchanges amounts.
func EncodeAmount(d decimal.Decimal) any {
	return currencyutils.WireAmount(d)
}

// EncodeDate renders a time the way the gateway exchanges dates.
func EncodeDate(t time.Time) any {
	return dateutils.FormatWireDate(t)
}

// StringField reads key from s.
func StringField(s transport.Snapshot, key string) Field[string] {
	if s.IsNull(key) {
		return Null[string]()
	}
	if v, ok := s.String(key); ok {
		return Set(v)
	}
	return Field[string]{}
}

// BoolField reads key from s.
func BoolField(s transport.Snapshot, key string) Field[bool] {
	if s.IsNull(key) {
		return Null[bool]()
	}
	if v, ok := s.Bool(key); ok {
		return Set(v)
	}
	return Field[bool]{}
}

// DecimalField reads key from s.
func DecimalField(s transport.Snapshot, key string) (Field[decimal.Decimal], error) {
	if s.IsNull(key) {
		return Null[decimal.Decimal](), nil
	}
	d, ok, err := s.Decimal(key)
	if err != nil {
		return Field[decimal.Decimal]{}, err
	}
	if !ok {
		return Field[decimal.Decimal]{}, nil
	}
	return Set(d), nil
}

// DateField reads key from s. An empty string counts as null.
func DateField(s transport.Snapshot, key string) (Field[time.Time], error) {
	if s.IsNull(key) {
		return Null[time.Time](), nil
	}
	raw, ok := s.String(key)
	if !ok {
		return Field[time.Time]{}, nil
	}
	if raw == "" {
		return Null[time.Time](), nil
	}
	t, err := dateutils.ParseWireDate(raw)
	if err != nil {
		return Field[time.Time]{}, err
	}
	return Set(t), nil
}

// Merge returns next unless it is unset, in which case prev is kept. Snapshots
// that omit a field leave the local value alone.
func Merge[T any](prev, next Field[T]) Field[T] {
	if next.IsUnset() {
		return prev
	}
	return next
}

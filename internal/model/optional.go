package model

import "encoding/json"

// Optional is a JSON field that remembers whether the client sent it.
//
// THREE STATES:
// A plain *string cannot tell "field omitted" apart from "field: null";
// both decode to nil. Partial updates need that distinction, so Optional
// tracks it explicitly:
//
//	{}                 → Set=false             (leave the record alone)
//	{"image_url":null} → Set=true,  Valid=false (clear the value)
//	{"image_url":"x"}  → Set=true,  Valid=true, Value="x"
//
// encoding/json only calls UnmarshalJSON for keys that are present in the
// payload, which is exactly what makes Set reliable.
type Optional[T any] struct {
	Set   bool
	Valid bool
	Value T
}

// Some returns an Optional carrying v.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Valid: true, Value: v}
}

// Null returns an Optional that was explicitly set to null.
func Null[T any]() Optional[T] {
	return Optional[T]{Set: true}
}

// UnmarshalJSON implements json.Unmarshaler.
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if string(data) == "null" {
		var zero T
		o.Valid = false
		o.Value = zero
		return nil
	}
	if err := json.Unmarshal(data, &o.Value); err != nil {
		return err
	}
	o.Valid = true
	return nil
}

// MarshalJSON implements json.Marshaler. Unset and null both encode as null.
func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}

// IsNull reports whether the field was sent as an explicit null.
func (o Optional[T]) IsNull() bool {
	return o.Set && !o.Valid
}

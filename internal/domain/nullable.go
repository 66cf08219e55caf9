package domain

import (
	"bytes"
	"encoding/json"
)

// Nullable is a patch field that tells an absent key apart from an explicit
// null. Set is true whenever the key was present; a nil Value clears the
// column.
type Nullable[T any] struct {
	Set   bool
	Value *T
}

// Some returns a Nullable that sets the field to v.
func Some[T any](v T) Nullable[T] {
	return Nullable[T]{Set: true, Value: &v}
}

// Null returns a Nullable that clears the field.
func Null[T any]() Nullable[T] {
	return Nullable[T]{Set: true}
}

func (n *Nullable[T]) UnmarshalJSON(data []byte) error {
	n.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		n.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	n.Value = &v
	return nil
}

func (n Nullable[T]) MarshalJSON() ([]byte, error) {
	if n.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*n.Value)
}

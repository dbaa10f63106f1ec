// Package domain contains pure, dependency-free types shared by every
// layer of the operator-graph engine: the Record data model, typed keys,
// and the error taxonomy. Nothing in this package imports outside the
// standard library.
package domain

import (
	"fmt"
	"maps"
	"reflect"
	"sort"
)

// Key is a type-safe handle for reading and writing a value in a Record.
// The type parameter T is carried only at compile time; at runtime a Key
// is identified by its Name.
type Key[T any] struct{ Name string }

// NewKey creates a Key with the given name and value type.
func NewKey[T any](name string) Key[T] { return Key[T]{Name: name} }

// deepCopyValue returns an independent copy of value so that Records
// remain immutable even when callers retain references to slices, maps,
// or pointers they passed in.
func deepCopyValue(value any) any {
	if value == nil {
		return nil
	}

	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Slice:
		if v.IsNil() {
			return value
		}
		newSlice := reflect.MakeSlice(v.Type(), v.Len(), v.Cap())
		for i := 0; i < v.Len(); i++ {
			newSlice.Index(i).Set(reflect.ValueOf(deepCopyValue(v.Index(i).Interface())))
		}
		return newSlice.Interface()

	case reflect.Map:
		if v.IsNil() {
			return value
		}
		newMap := reflect.MakeMapWithSize(v.Type(), v.Len())
		for _, key := range v.MapKeys() {
			newMap.SetMapIndex(key, reflect.ValueOf(deepCopyValue(v.MapIndex(key).Interface())))
		}
		return newMap.Interface()

	case reflect.Ptr:
		if v.IsNil() {
			return value
		}
		newPtr := reflect.New(v.Elem().Type())
		newPtr.Elem().Set(reflect.ValueOf(deepCopyValue(v.Elem().Interface())))
		return newPtr.Interface()

	default:
		// Primitives, strings, structs without pointer/slice/map fields, and
		// anything we don't specifically know how to copy are returned as-is;
		// Go copies them by value when assigned.
		return value
	}
}

// Record is an immutable, string-keyed bag of values that flows between
// operators. Every mutation method returns a new Record under
// copy-on-write semantics; the receiver is left untouched, making Record
// safe to share across goroutines without synchronization.
type Record struct {
	data map[string]any
}

// NewRecord returns an empty Record.
func NewRecord() Record { return Record{data: make(map[string]any)} }

// RecordOf builds a Record from a plain map, taking a defensive deep copy
// of every value.
func RecordOf(values map[string]any) Record {
	r := NewRecord()
	for k, v := range values {
		r.data[k] = deepCopyValue(v)
	}
	return r
}

// Get reads a typed value out of the Record. The second return value is
// false when the key is absent or stores a value of a different type.
func Get[T any](r Record, key Key[T]) (T, bool) {
	var zero T
	raw, ok := r.data[key.Name]
	if !ok {
		return zero, false
	}
	val, ok := deepCopyValue(raw).(T)
	return val, ok
}

// GetRaw reads a value by string key without type narrowing.
func (r Record) GetRaw(name string) (any, bool) {
	raw, ok := r.data[name]
	if !ok {
		return nil, false
	}
	return deepCopyValue(raw), true
}

// With returns a new Record with key set to value, leaving r unmodified.
func With[T any](r Record, key Key[T], value T) Record {
	newData := maps.Clone(r.data)
	if newData == nil {
		newData = make(map[string]any, 1)
	}
	newData[key.Name] = deepCopyValue(value)
	return Record{data: newData}
}

// WithRaw returns a new Record with name set to value.
func (r Record) WithRaw(name string, value any) Record {
	newData := maps.Clone(r.data)
	if newData == nil {
		newData = make(map[string]any, 1)
	}
	newData[name] = deepCopyValue(value)
	return Record{data: newData}
}

// Merge returns a new Record containing r's entries overlaid with other's
// entries; keys present in both take other's value (right-biased merge,
// per spec.md's "merging is right-biased").
func (r Record) Merge(other Record) Record {
	newData := maps.Clone(r.data)
	if newData == nil {
		newData = make(map[string]any, len(other.data))
	}
	for k, v := range other.data {
		newData[k] = deepCopyValue(v)
	}
	return Record{data: newData}
}

// Keys returns the set of keys present in the Record, sorted for
// deterministic iteration (fingerprinting and tests rely on this).
func (r Record) Keys() []string {
	keys := make([]string, 0, len(r.data))
	for k := range r.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of entries in the Record.
func (r Record) Len() int { return len(r.data) }

// String renders the Record for debugging and log output.
func (r Record) String() string { return fmt.Sprintf("Record%v", r.data) }

// ShapeSignature returns a deterministic, content-free description of the
// Record's structure: its key set paired with a type tag per value. It
// never includes value content, which is what makes it safe to use as
// part of a JIT fingerprint (spec.md §3, "input_shape_signature").
func (r Record) ShapeSignature() string {
	keys := r.Keys()
	sig := make([]byte, 0, 32*len(keys))
	for _, k := range keys {
		sig = append(sig, k...)
		sig = append(sig, ':')
		sig = append(sig, typeTag(r.data[k])...)
		sig = append(sig, ';')
	}
	return string(sig)
}

func typeTag(v any) string {
	if v == nil {
		return "nil"
	}
	return reflect.TypeOf(v).String()
}

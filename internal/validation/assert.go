// Package validation provides helpers for contract enforcement in
// constructors.
package validation

import (
	"fmt"
	"reflect"
)

// AssertNotNil panics if v is nil, including a nil pointer, map, func or
// channel stored in an interface. It is meant for mandatory dependencies
// wired at startup, where a nil is a programmer error.
//
// Usage:
//
//	validation.AssertNotNil(engine, "rule engine")
func AssertNotNil(v any, name string) {
	if isNil(v) {
		panic(fmt.Sprintf("critical error: %s cannot be nil", name))
	}
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Func, reflect.Chan, reflect.Interface, reflect.Slice:
		return rv.IsNil()
	default:
		return false
	}
}

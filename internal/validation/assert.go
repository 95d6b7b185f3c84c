// Package validation holds fail-fast assertions for constructor arguments.
package validation

import (
	"fmt"
	"reflect"
)

// AssertNotNil panics if ptr is nil.
//
//	validation.AssertNotNil(httpClient, "http client")
func AssertNotNil[T any](ptr *T, name string) {
	if ptr == nil {
		panic(fmt.Sprintf("togglr: %s cannot be nil", name))
	}
}

// AssertNotNilInterface panics if v is nil or an interface holding a nil pointer.
func AssertNotNilInterface(v any, name string) {
	if v == nil {
		panic(fmt.Sprintf("togglr: %s cannot be nil", name))
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Func, reflect.Slice, reflect.Chan, reflect.Interface:
		if rv.IsNil() {
			panic(fmt.Sprintf("togglr: %s cannot be a typed nil", name))
		}
	}
}

// These panics flag programmer errors at wiring time. Runtime failures such as
// an unreachable server are returned as errors instead.

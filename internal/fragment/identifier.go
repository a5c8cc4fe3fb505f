package fragment

import (
	"fmt"
	"math"
	"reflect"
)

// IDFrom converts a loosely typed value into an identifier for Load.
//
// Falsy values (nil, nil pointers, false, numeric zero, NaN and the empty
// string) map to the empty identifier, which clears the target. Anything else
// is passed through in its fmt string form without validation.
func IDFrom(v any) string {
	if v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case bool:
		if !t {
			return ""
		}
		return "true"
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if rv.Int() == 0 {
			return ""
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		if rv.Uint() == 0 {
			return ""
		}
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if f == 0 || math.IsNaN(f) {
			return ""
		}
	case reflect.String:
		return rv.String()
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		if rv.IsNil() {
			return ""
		}
	}
	return fmt.Sprint(v)
}

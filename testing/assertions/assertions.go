// Package assertions holds the shared implementation behind the assert and
// require test helper packages.
package assertions

import (
	"fmt"
	"reflect"
	"strings"
)

// AssertionTestingTB exposes enough of testing.TB for assertions.
type AssertionTestingTB interface {
	Errorf(format string, args ...interface{})
	Fatalf(format string, args ...interface{})
}

// TBFn is either tb.Errorf (assert) or tb.Fatalf (require).
type TBFn func(format string, args ...interface{})

// Equal compares values using the == operator.
func Equal(fn TBFn, expected, actual interface{}, msg ...interface{}) {
	if expected != actual {
		errMsg := parseMsg("Values are not equal", msg...)
		fn("%s, want: %[2]v (%[2]T), got: %[3]v (%[3]T)", errMsg, expected, actual)
	}
}

// NotEqual compares values using the != operator.
func NotEqual(fn TBFn, expected, actual interface{}, msg ...interface{}) {
	if expected == actual {
		errMsg := parseMsg("Values are equal", msg...)
		fn("%s, both values are: %v", errMsg, expected)
	}
}

// DeepEqual compares values using reflect.DeepEqual.
func DeepEqual(fn TBFn, expected, actual interface{}, msg ...interface{}) {
	if !reflect.DeepEqual(expected, actual) {
		errMsg := parseMsg("Values are not deep equal", msg...)
		fn("%s, want: %v, got: %v", errMsg, expected, actual)
	}
}

// NoError asserts that the error is nil.
func NoError(fn TBFn, err error, msg ...interface{}) {
	if err != nil {
		errMsg := parseMsg("Unexpected error", msg...)
		fn("%s: %v", errMsg, err)
	}
}

// ErrorContains asserts that the error message contains the wanted substring.
func ErrorContains(fn TBFn, want string, err error, msg ...interface{}) {
	if err == nil || !strings.Contains(err.Error(), want) {
		errMsg := parseMsg("Expected error not returned", msg...)
		fn("%s, got: %v, want: %s", errMsg, err, want)
	}
}

// NotNil asserts that the passed value is not nil.
func NotNil(fn TBFn, obj interface{}, msg ...interface{}) {
	if isNil(obj) {
		errMsg := parseMsg("Unexpected nil value", msg...)
		fn("%s", errMsg)
	}
}

func isNil(obj interface{}) bool {
	if obj == nil {
		return true
	}
	value := reflect.ValueOf(obj)
	switch value.Kind() {
	case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map, reflect.Ptr, reflect.Slice:
		return value.IsNil()
	}
	return false
}

func parseMsg(defaultMsg string, msg ...interface{}) string {
	if len(msg) >= 1 {
		msgFormat, ok := msg[0].(string)
		if !ok {
			return defaultMsg
		}
		return fmt.Sprintf(msgFormat, msg[1:]...)
	}
	return defaultMsg
}

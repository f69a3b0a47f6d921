// Package require wraps github.com/stretchr/testify/require with a couple
// of project-specific helpers, mirroring the layer the teacher project
// keeps between its tests and testify so call sites read the same way
// across every package's _test.go files.
package require

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestingT re-exports testify's require.TestingT interface. The assertion
// helpers below take a testing.TB and CapturePanic takes no test value at
// all, so none of them uses this alias.
type TestingT = require.TestingT

func NoError(t testing.TB, err error, msgAndArgs ...interface{}) {
	t.Helper()
	require.NoError(t, err, msgAndArgs...)
}

func Error(t testing.TB, err error, msgAndArgs ...interface{}) {
	t.Helper()
	require.Error(t, err, msgAndArgs...)
}

func ErrorContains(t testing.TB, err error, contains string, msgAndArgs ...interface{}) {
	t.Helper()
	require.Error(t, err, msgAndArgs...)
	assert.Contains(t, err.Error(), contains, msgAndArgs...)
}

func Equal(t testing.TB, expected, actual interface{}, msgAndArgs ...interface{}) {
	t.Helper()
	require.Equal(t, expected, actual, msgAndArgs...)
}

func NotEqual(t testing.TB, expected, actual interface{}, msgAndArgs ...interface{}) {
	t.Helper()
	require.NotEqual(t, expected, actual, msgAndArgs...)
}

func True(t testing.TB, value bool, msgAndArgs ...interface{}) {
	t.Helper()
	require.True(t, value, msgAndArgs...)
}

func False(t testing.TB, value bool, msgAndArgs ...interface{}) {
	t.Helper()
	require.False(t, value, msgAndArgs...)
}

func Nil(t testing.TB, object interface{}, msgAndArgs ...interface{}) {
	t.Helper()
	require.Nil(t, object, msgAndArgs...)
}

func NotNil(t testing.TB, object interface{}, msgAndArgs ...interface{}) {
	t.Helper()
	require.NotNil(t, object, msgAndArgs...)
}

func Zero(t testing.TB, object interface{}, msgAndArgs ...interface{}) {
	t.Helper()
	require.Zero(t, object, msgAndArgs...)
}

func Len(t testing.TB, object interface{}, length int, msgAndArgs ...interface{}) {
	t.Helper()
	require.Len(t, object, length, msgAndArgs...)
}

func Contains(t testing.TB, s, contains interface{}, msgAndArgs ...interface{}) {
	t.Helper()
	require.Contains(t, s, contains, msgAndArgs...)
}

// CapturePanic runs fn and converts any panic into an error, or nil if fn
// returned normally. Used to assert on trap/panic boundaries without
// aborting the test binary.
func CapturePanic(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = e
			} else {
				err = fmt.Errorf("%v", r)
			}
		}
	}()
	fn()
	return
}

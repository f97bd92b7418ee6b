// Package testutil provides fakes and assertions shared by the bridge tests.
package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// AssertJSONEqual compares two JSON documents, ignoring formatting and key order.
func AssertJSONEqual(t testing.TB, expected, actual string, msgAndArgs ...any) bool {
	t.Helper()
	return assert.JSONEq(t, expected, actual, msgAndArgs...)
}

// AssertDurationWithin asserts that actual is no further than tolerance from expected.
func AssertDurationWithin(t testing.TB, expected, actual, tolerance time.Duration, msgAndArgs ...any) bool {
	t.Helper()
	return assert.InDelta(t, float64(expected), float64(actual), float64(tolerance), msgAndArgs...)
}

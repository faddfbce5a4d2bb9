package foundation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOkResult(t *testing.T) {
	r := Ok[int, error](42)

	assert.True(t, r.IsOk())
	assert.False(t, r.IsErr())
	assert.Equal(t, 42, r.Unwrap())

	v, err := r.ToTuple()
	assert.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestErrResult(t *testing.T) {
	boom := errors.New("boom")
	r := Err[int](boom)

	assert.True(t, r.IsErr())
	assert.Equal(t, boom, r.UnwrapErr())
	assert.Panics(t, func() { r.Unwrap() })
}

func TestMatch(t *testing.T) {
	var got int
	Ok[int, error](7).Match(func(v int) { got = v }, func(error) { t.Fatal("unexpected err branch") })
	assert.Equal(t, 7, got)
}

func TestFromTuple(t *testing.T) {
	assert.True(t, FromTuple[int, error](1, nil).IsOk())
	assert.True(t, FromTuple[int](0, errors.New("x")).IsErr())
}

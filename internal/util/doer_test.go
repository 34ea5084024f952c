package util

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoerRunsEverythingOnSuccess(t *testing.T) {
	var doer Doer
	count := 0
	doer.
		Do(func() error { count++; return nil }).
		Do(func() error { count++; return nil }).
		Do(func() error { count++; return nil })
	require.NoError(t, doer.Err())
	assert.Equal(t, 3, count)
}

func TestDoerShortCircuitsAfterFirstError(t *testing.T) {
	var doer Doer
	boom := errors.New("boom")
	count := 0
	doer.
		Do(func() error { count++; return nil }).
		Do(func() error { count++; return boom }).
		Do(func() error { count++; return nil })
	assert.ErrorIs(t, doer.Err(), boom)
	assert.Equal(t, 2, count)
}

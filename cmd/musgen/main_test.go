package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	bs, err := generate()
	require.NoError(t, err)

	assert.NotEmpty(t, bs)
	assert.Contains(t, string(bs), "package core")
}

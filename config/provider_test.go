package config

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type setMaxSize int

func (s setMaxSize) Transform(cfg map[string]interface{}) error {
	cfg["maxFileSize"] = float64(s)
	return nil
}

type failingTransform struct{}

func (failingTransform) Transform(map[string]interface{}) error {
	return errors.New("vault sealed")
}

type badTypeTransform struct{}

func (badTypeTransform) Transform(cfg map[string]interface{}) error {
	cfg["maxFileSize"] = 42 // int is not JSON compatible
	return nil
}

func TestApplyTransforms(t *testing.T) {
	Register("test-max-size", setMaxSize(1024))
	Register("test-failing", failingTransform{})
	Register("test-bad-type", badTypeTransform{})

	names := Names()
	assert.Contains(t, names, "test-max-size")
	assert.IsNonDecreasing(t, names)
	assert.Panics(t, func() { Register("test-max-size", setMaxSize(1)) })

	cfg := map[string]interface{}{}
	require.NoError(t, applyTransforms([]string{"test-max-size"}, cfg))
	assert.Equal(t, float64(1024), cfg["maxFileSize"])

	err := applyTransforms([]string{"test-max-size", "test-failing"}, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config transformation: test-failing failed")

	err = applyTransforms([]string{"no-such-transform"}, cfg)
	assert.EqualError(t, err, "unknown config transformation: no-such-transform")

	assert.Panics(t, func() {
		_ = applyTransforms([]string{"test-bad-type"}, map[string]interface{}{})
	})
}

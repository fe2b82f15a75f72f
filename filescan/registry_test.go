package filescan

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegisterReservedName(t *testing.T) {
	assert.Panics(t, func() {
		Register("disabled", testFactory{})
	})
}

func TestRegisterDuplicate(t *testing.T) {
	assert.Panics(t, func() {
		Register("test", testFactory{})
	})
}

func TestProvidersReturnsCopy(t *testing.T) {
	p := Providers()
	assert.Contains(t, p, "test")
	delete(p, "test")
	assert.Contains(t, Providers(), "test")
}

package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistry_Register(t *testing.T) {
	registry := NewRegistry()
	registry.Register("test-backend", func() Gateway { return nil })

	factory, err := registry.Resolve("test-backend")
	assert.NoError(t, err)
	assert.NotNil(t, factory)
}

func TestRegistry_Resolve_Unknown(t *testing.T) {
	registry := NewRegistry()

	factory, err := registry.Resolve("nope")
	assert.Nil(t, factory)
	assert.Error(t, err)

	var confErr *ConfigurationError
	assert.ErrorAs(t, err, &confErr)
	assert.Contains(t, err.Error(), "unknown payment backend")
}

func TestRegistry_Kinds(t *testing.T) {
	registry := NewRegistry()
	assert.Empty(t, registry.Kinds())

	registry.Register("one", func() Gateway { return nil })
	registry.Register("two", func() Gateway { return nil })

	kinds := registry.Kinds()
	assert.Len(t, kinds, 2)
	assert.Contains(t, kinds, "one")
	assert.Contains(t, kinds, "two")
}

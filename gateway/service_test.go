package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serviceWithFake(t *testing.T, kind string) *Service {
	t.Helper()
	Register(kind, func() Gateway { return &fakeAdapter{desc: Descriptor{Kind: kind}} })
	service := NewService()
	require.NoError(t, service.Configure(kind, map[string]string{}))
	return service
}

func TestService_Configure(t *testing.T) {
	service := serviceWithFake(t, "svc-test-a")

	client, err := service.Client("svc-test-a")
	assert.NoError(t, err)
	assert.Equal(t, "svc-test-a", client.Kind())

	// the first configured backend is the default
	client, err = service.Client("")
	assert.NoError(t, err)
	assert.Equal(t, "svc-test-a", client.Kind())
}

func TestService_Client_NotConfigured(t *testing.T) {
	service := NewService()
	_, err := service.Client("nope")
	var confErr *ConfigurationError
	assert.ErrorAs(t, err, &confErr)
}

func TestService_SetDefault(t *testing.T) {
	service := serviceWithFake(t, "svc-test-b")
	assert.Error(t, service.SetDefault("unconfigured"))
	assert.NoError(t, service.SetDefault("svc-test-b"))
}

func TestService_Remove(t *testing.T) {
	service := serviceWithFake(t, "svc-test-c")
	service.Remove("svc-test-c")

	_, err := service.Client("svc-test-c")
	assert.Error(t, err)
	assert.Empty(t, service.Configured())
}

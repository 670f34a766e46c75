package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var testDescriptor = Descriptor{
	Kind:    "test",
	Caption: "Test backend",
	Parameters: []ParameterSpec{
		{Key: "merchant_id", Caption: "Merchant", Type: "string", Required: true, Pattern: `^\d{8}$`},
		{Key: "mode", Caption: "Mode", Type: "string", Default: "test", Choices: []string{"test", "prod"}},
		{Key: "debug", Caption: "Debug", Type: "boolean"},
		{Key: "label", Caption: "Label", Type: "string", MaxLength: 10},
		{Key: "capture_day", Caption: "Capture day", Type: "number"},
		{Key: "return_url", Caption: "Return URL", Type: "url"},
		{Key: "contact", Caption: "Contact", Type: "email"},
	},
	Deprecations: map[string]string{
		"merchant": "merchant_id",
	},
}

func TestCleanOptions_DefaultsAndRequired(t *testing.T) {
	cleaned, err := CleanOptions(testDescriptor, map[string]string{
		"merchant_id": "12345678",
	})
	assert.NoError(t, err)
	assert.Equal(t, "12345678", cleaned["merchant_id"])
	assert.Equal(t, "test", cleaned["mode"])

	_, err = CleanOptions(testDescriptor, map[string]string{})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "merchant_id")
}

func TestCleanOptions_UnknownOption(t *testing.T) {
	_, err := CleanOptions(testDescriptor, map[string]string{
		"merchant_id": "12345678",
		"surprise":    "1",
	})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown option 'surprise'")
}

func TestCleanOptions_DeprecatedMigration(t *testing.T) {
	cleaned, err := CleanOptions(testDescriptor, map[string]string{
		"merchant": "12345678",
	})
	assert.NoError(t, err)
	assert.Equal(t, "12345678", cleaned["merchant_id"])
	_, present := cleaned["merchant"]
	assert.False(t, present)
}

func TestCleanOptions_Validation(t *testing.T) {
	tests := []struct {
		name    string
		options map[string]string
		errPart string
	}{
		{"bad pattern", map[string]string{"merchant_id": "abc"}, "pattern"},
		{"bad choice", map[string]string{"merchant_id": "12345678", "mode": "staging"}, "must be one of"},
		{"bad boolean", map[string]string{"merchant_id": "12345678", "debug": "yes"}, "'true' or 'false'"},
		{"too long", map[string]string{"merchant_id": "12345678", "label": "12345678901"}, "exceed"},
		{"bad number", map[string]string{"merchant_id": "12345678", "capture_day": "abc"}, "must be a number"},
		{"bad url", map[string]string{"merchant_id": "12345678", "return_url": "not a url"}, "absolute URL"},
		{"relative url", map[string]string{"merchant_id": "12345678", "return_url": "/return"}, "absolute URL"},
		{"bad email", map[string]string{"merchant_id": "12345678", "contact": "nobody"}, "email address"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CleanOptions(testDescriptor, tt.options)
			assert.Error(t, err)
			assert.Contains(t, err.Error(), tt.errPart)
		})
	}
}

func TestCleanOptions_TypedValuesAccepted(t *testing.T) {
	cleaned, err := CleanOptions(testDescriptor, map[string]string{
		"merchant_id": "12345678",
		"capture_day": "3",
		"return_url":  "https://shop.example.com/return",
		"contact":     "ops@example.com",
	})
	assert.NoError(t, err)
	assert.Equal(t, "3", cleaned["capture_day"])
}

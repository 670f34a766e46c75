package gateway

import (
	"net/mail"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/teyzer/paykit/infra/logger"
)

// CleanOptions validates caller-supplied options against the descriptor and
// returns the effective option set with defaults applied. Deprecated keys
// are migrated to their replacement with a warning; unknown keys are
// rejected here, at configuration time, never at request time.
func CleanOptions(desc Descriptor, options map[string]string) (map[string]string, error) {
	cleaned := make(map[string]string, len(options))

	for key, value := range options {
		if replacement, ok := desc.Deprecations[key]; ok {
			logger.Warn("deprecated backend option", logger.LogContext{
				Backend: desc.Kind,
				Fields: map[string]any{
					"option":      key,
					"replacement": replacement,
				},
			})
			key = replacement
		}
		if _, ok := desc.Parameter(key); !ok {
			return nil, configErrorf(desc.Kind, "unknown option '%s'", key)
		}
		cleaned[key] = value
	}

	for _, param := range desc.Parameters {
		value, supplied := cleaned[param.Key]
		if !supplied || strings.TrimSpace(value) == "" {
			if param.Default != "" {
				cleaned[param.Key] = param.Default
				continue
			}
			if param.Required {
				return nil, configErrorf(desc.Kind, "required option '%s' is missing", param.Key)
			}
			continue
		}
		if err := validateOption(desc.Kind, param, value); err != nil {
			return nil, err
		}
	}

	return cleaned, nil
}

func validateOption(backend string, param ParameterSpec, value string) error {
	switch param.Type {
	case "boolean":
		if value != "true" && value != "false" {
			return configErrorf(backend, "option '%s' must be 'true' or 'false'", param.Key)
		}
	case "number":
		if _, err := strconv.Atoi(value); err != nil {
			return configErrorf(backend, "option '%s' must be a number", param.Key)
		}
	case "url":
		parsed, err := url.Parse(value)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return configErrorf(backend, "option '%s' must be an absolute URL", param.Key)
		}
	case "email":
		if _, err := mail.ParseAddress(value); err != nil {
			return configErrorf(backend, "option '%s' must be an email address", param.Key)
		}
	}

	if len(param.Choices) > 0 {
		found := false
		for _, choice := range param.Choices {
			if value == choice {
				found = true
				break
			}
		}
		if !found {
			return configErrorf(backend, "option '%s' must be one of: %s",
				param.Key, strings.Join(param.Choices, ", "))
		}
	}

	if param.Pattern != "" {
		matched, err := regexp.MatchString(param.Pattern, value)
		if err != nil {
			return configErrorf(backend, "invalid pattern for option '%s': %v", param.Key, err)
		}
		if !matched {
			return configErrorf(backend, "option '%s' does not match required pattern", param.Key)
		}
	}

	if param.MaxLength > 0 && len(value) > param.MaxLength {
		return configErrorf(backend, "option '%s' must not exceed %d characters", param.Key, param.MaxLength)
	}

	return nil
}

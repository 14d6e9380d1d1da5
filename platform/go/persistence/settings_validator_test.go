package persistence

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSettingsValidator(t *testing.T) {
	t.Parallel()

	validator, err := NewSettingsValidator()
	require.NoError(t, err)

	require.NoError(t, validator.Validate(nil))
	require.NoError(t, validator.Validate(map[string]any{}))
	require.NoError(t, validator.Validate(map[string]any{
		"timezone": "Europe/Madrid",
		"locale":   "es-ES",
		"features": map[string]any{"scheduling": true},
		"branding": map[string]any{
			"displayName": "Riverside Care",
			"accentColor": "#3366FF",
		},
		"notifications": map[string]any{
			"invitationEmails": true,
			"digestFrequency":  "weekly",
		},
	}))

	for name, settings := range map[string]map[string]any{
		"bad locale":           {"locale": "Spanish"},
		"bad accent color":     {"branding": map[string]any{"accentColor": "blue"}},
		"non-boolean feature":  {"features": map[string]any{"scheduling": "yes"}},
		"unknown notification": {"notifications": map[string]any{"smsAlerts": true}},
		"bad digest frequency": {"notifications": map[string]any{"digestFrequency": "hourly"}},
	} {
		require.Error(t, validator.Validate(settings), name)
	}
}

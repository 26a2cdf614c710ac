package logger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScopedHelpersAttachFields(t *testing.T) {
	log, err := NewLogger(LoggingConfig{Level: "debug", Format: "json"})
	require.NoError(t, err)

	scoped := log.WithSessionID("s-1").WithTenantID("t-1").WithError(errors.New("boom"))

	keys := make([]string, 0, len(scoped.fields))
	for _, f := range scoped.fields {
		keys = append(keys, f.Key)
	}
	assert.Contains(t, keys, "session_id")
	assert.Contains(t, keys, "tenant_id")
	assert.Contains(t, keys, "error")

	// the original logger is untouched
	assert.Empty(t, log.fields)
}

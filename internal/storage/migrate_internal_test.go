package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNotifyFunctionFallsBackToKey(t *testing.T) {
	sql := notifyFunctionSQL()

	assert.Contains(t, sql, "octet_length(payload) >= 7900")
	assert.Contains(t, sql, "'key', to_jsonb(NEW) ->> TG_ARGV[0]")
	assert.Contains(t, sql, "pg_notify('crimewatch_changes', payload)")
	assert.NotContains(t, sql, "%!")
}

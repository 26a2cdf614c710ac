package dialect

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsPostgres(t *testing.T) {
	assert.True(t, IsPostgres(PGX))
	assert.False(t, IsPostgres(SQLite3))
}

func TestBoolToInt(t *testing.T) {
	assert.Equal(t, 1, BoolToInt(true))
	assert.Equal(t, 0, BoolToInt(false))
}

func TestUpsert(t *testing.T) {
	got := Upsert("tenant_id, session_id", "node_id = excluded.node_id")
	assert.Equal(t, " ON CONFLICT(tenant_id, session_id) DO UPDATE SET node_id = excluded.node_id", got)
}

func TestInsertIgnore(t *testing.T) {
	got := InsertIgnore("session_id, trigger_event")
	assert.Equal(t, " ON CONFLICT(session_id, trigger_event) DO NOTHING", got)
}

func TestLike(t *testing.T) {
	assert.Equal(t, "LIKE", Like(SQLite3))
	assert.Equal(t, "ILIKE", Like(PGX))
}

// Package dialect provides SQL fragment helpers for SQLite/PostgreSQL portability.
package dialect

const (
	SQLite3 = "sqlite3"
	PGX     = "pgx"
)

// IsPostgres returns true if the driver is PostgreSQL (pgx).
func IsPostgres(driver string) bool {
	return driver == PGX
}

// BoolToInt converts a boolean to an integer for SQL storage.
func BoolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

// Upsert returns the conflict clause for an insert-or-update on the given
// key columns. Both SQLite and PostgreSQL accept the standard ON CONFLICT
// syntax, so this is shared; it exists as a helper so call sites document
// their unique key explicitly.
func Upsert(keyCols string, setClause string) string {
	return " ON CONFLICT(" + keyCols + ") DO UPDATE SET " + setClause
}

// InsertIgnore returns the conflict clause for an insert-if-absent on the
// given key columns.
func InsertIgnore(keyCols string) string {
	return " ON CONFLICT(" + keyCols + ") DO NOTHING"
}

package store

import "strings"

// SQLite reports lock contention either as SQLITE_BUSY or as a plain
// "database is locked" message depending on where in the statement
// lifecycle it hits. Both mean the transaction is worth retrying; the
// driver exposes no typed error, so this matches on the message.
func isSQLiteConflict(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

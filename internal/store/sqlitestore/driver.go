package sqlitestore

import (
	"database/sql"

	sqlite3 "github.com/mutecomm/go-sqlcipher/v4"
)

// DriverName is the SQLCipher driver registered for the note store.
const DriverName = "sqlite3_notes"

func init() {
	sql.Register(DriverName, &sqlite3.SQLiteDriver{})
}

//go:build !sqlite

package storage

import (
	"errors"

	logx "telewatch/pkg/logx"
)

// Stub used when the binary is built without the sqlite tag. Keeps the
// file driver usable without pulling in the sqlite dependency.
func openSQLite(Config, logx.Logger) (Store, error) {
	return nil, errors.New("sqlite storage not built: rebuild with -tags sqlite")
}

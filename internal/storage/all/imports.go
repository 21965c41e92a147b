// Package all wires every built-in export backend into the storage factory.
//
// Importing it (usually as a blank import from a main package) runs the init
// functions of each backend, which register their factories and DDL
// bootstrappers. After that the storage kinds "postgres" and "sqlite" are
// available through storage.New and storage.EnsureTable.
package all

import (
	_ "rowscan/internal/storage/postgres"
	_ "rowscan/internal/storage/sqlite"
)

// Package all wires every built-in storage backend into the storage factory.
// Import it for side effects:
//
//	import _ "salesetl/internal/storage/all"
//
// after which storage.New accepts kinds "memory", "mssql", "mysql",
// "postgres" and "sqlite".
package all

import (
	_ "salesetl/internal/storage/memory"
	_ "salesetl/internal/storage/mssql"
	_ "salesetl/internal/storage/mysql"
	_ "salesetl/internal/storage/postgres"
	_ "salesetl/internal/storage/sqlite"
)

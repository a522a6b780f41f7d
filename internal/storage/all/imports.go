// Package all wires every built-in table sink backend into the storage
// factory. Import it for side effects:
//
//	import _ "topicetl/internal/storage/all"
//
// after which storage.New accepts "postgres", "sqlite", "mysql" and "mssql".
package all

import (
	_ "topicetl/internal/storage/mssql"
	_ "topicetl/internal/storage/mysql"
	_ "topicetl/internal/storage/postgres"
	_ "topicetl/internal/storage/sqlite"
)

// Package all wires all built-in storage backends into the storage factory.
//
// This package exists purely for side effects: importing it (even as a blank
// import) runs the init functions of each concrete backend, which register
// their factories with the storage package. It makes the following kinds
// available at runtime:
//
//   - "postgres" (natto/internal/storage/postgres)
//   - "sqlite"   (natto/internal/storage/sqlite)
//   - "mssql"    (natto/internal/storage/mssql)
//   - "mysql"    (natto/internal/storage/mysql)
//
// A binary that needs only some backends can import those packages directly
// instead.
package all

import (
	_ "natto/internal/storage/mssql"
	_ "natto/internal/storage/mysql"
	_ "natto/internal/storage/postgres"
	_ "natto/internal/storage/sqlite"
)

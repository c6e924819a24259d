package db

const (
	// DialectMySQL is the production dialect.
	DialectMySQL = "mysql"
	// DialectPostgres is supported for hosted deployments.
	DialectPostgres = "postgres"
	// DialectSQLite backs local development and tests.
	DialectSQLite = "sqlite"
)

package driver

import (
	"context"
	"fmt"
)

var usersTable = map[string]string{
	DriverSQLite: `CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	username VARCHAR(50) NOT NULL UNIQUE,
	password_hash VARCHAR(100) NOT NULL,
	progress TEXT NOT NULL DEFAULT '[]'
)`,
	DriverMySQL: `CREATE TABLE IF NOT EXISTS users (
	id INT AUTO_INCREMENT PRIMARY KEY,
	username VARCHAR(50) NOT NULL UNIQUE,
	password_hash VARCHAR(100) NOT NULL,
	progress TEXT NOT NULL
)`,
	DriverPostgres: `CREATE TABLE IF NOT EXISTS users (
	id SERIAL PRIMARY KEY,
	username VARCHAR(50) NOT NULL UNIQUE,
	password_hash VARCHAR(100) NOT NULL,
	progress TEXT NOT NULL DEFAULT '[]'
)`,
}

// Migrate create the tables the application needs if they are missing
func Migrate(ctx context.Context, conn ITransactionalDB, driver string) error {
	ddl, ok := usersTable[driver]
	if !ok {
		return fmt.Errorf("no schema for driver: %s", driver)
	}
	if _, err := conn.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create users table: %w", err)
	}
	return nil
}

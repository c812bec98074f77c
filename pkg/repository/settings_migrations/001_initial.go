package settings_migrations

import (
	"database/sql"

	"github.com/pressly/goose/v3"
)

const schemaVersion = "1"

func init() {
	goose.AddMigration(upInitial, downInitial)
}

func upInitial(tx *sql.Tx) error {
	createStatements := []string{
		`CREATE TABLE IF NOT EXISTS app_settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,

		// Registered local project folders
		`CREATE TABLE IF NOT EXISTS folders (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			path TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			last_used INTEGER NOT NULL
		);`,

		// Authenticated remote accounts
		`CREATE TABLE IF NOT EXISTS remote_connections (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			account_id TEXT NOT NULL UNIQUE,
			api_token TEXT NOT NULL,
			last_used INTEGER NOT NULL
		);`,

		`CREATE INDEX IF NOT EXISTS idx_folders_last_used ON folders(last_used DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_remote_connections_last_used ON remote_connections(last_used DESC);`,
	}

	for _, stmt := range createStatements {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}

	_, err := tx.Exec(
		`INSERT INTO app_settings (key, value) VALUES ('schema_version', ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		schemaVersion,
	)
	return err
}

func downInitial(tx *sql.Tx) error {
	dropStatements := []string{
		`DROP TABLE IF EXISTS remote_connections;`,
		`DROP TABLE IF EXISTS folders;`,
		`DROP TABLE IF EXISTS app_settings;`,
	}

	for _, stmt := range dropStatements {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

package repository

import (
	"database/sql"
	"fmt"
	"log"

	_ "modernc.org/sqlite" // Pure Go SQLite driver - no CGO required
)

// SQLiteStore is the development/single-node Store backend.
type SQLiteStore struct {
	sqlStore
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		user_id TEXT PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		latitude REAL,
		longitude REAL
	)`,
	`CREATE TABLE IF NOT EXISTS instances (
		instance_id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		pokemon_id INTEGER NOT NULL,
		nickname TEXT,
		cp INTEGER,
		attack_iv INTEGER,
		defense_iv INTEGER,
		stamina_iv INTEGER,
		shiny BOOLEAN NOT NULL DEFAULT 0,
		costume_id INTEGER,
		lucky BOOLEAN NOT NULL DEFAULT 0,
		shadow BOOLEAN NOT NULL DEFAULT 0,
		purified BOOLEAN NOT NULL DEFAULT 0,
		fast_move_id INTEGER,
		charged_move1_id INTEGER,
		charged_move2_id INTEGER,
		weight REAL,
		height REAL,
		gender TEXT,
		mirror BOOLEAN NOT NULL DEFAULT 0,
		pref_lucky BOOLEAN NOT NULL DEFAULT 0,
		registered BOOLEAN NOT NULL DEFAULT 0,
		favorite BOOLEAN NOT NULL DEFAULT 0,
		location_card TEXT,
		location_caught TEXT,
		friendship_level INTEGER,
		date_caught DATETIME,
		date_added DATETIME NOT NULL,
		last_update INTEGER NOT NULL DEFAULT 0,
		is_unowned BOOLEAN NOT NULL DEFAULT 0,
		is_owned BOOLEAN NOT NULL DEFAULT 0,
		is_for_trade BOOLEAN NOT NULL DEFAULT 0,
		is_wanted BOOLEAN NOT NULL DEFAULT 0,
		not_trade_list TEXT NOT NULL,
		not_wanted_list TEXT NOT NULL,
		wanted_filters TEXT NOT NULL,
		trade_filters TEXT NOT NULL,
		trace_id TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_instances_user ON instances(user_id)`,
	`CREATE TABLE IF NOT EXISTS trades (
		trade_id TEXT PRIMARY KEY,
		user_id_proposed TEXT NOT NULL DEFAULT '',
		username_proposed TEXT NOT NULL DEFAULT '',
		user_id_accepting TEXT NOT NULL DEFAULT '',
		username_accepting TEXT NOT NULL DEFAULT '',
		pokemon_instance_id_user_proposed TEXT NOT NULL DEFAULT '',
		pokemon_instance_id_user_accepting TEXT NOT NULL DEFAULT '',
		trade_status TEXT NOT NULL DEFAULT 'proposed',
		trade_proposal_date DATETIME,
		trade_accepted_date DATETIME,
		trade_completed_date DATETIME,
		trade_cancelled_date DATETIME,
		trade_cancelled_by TEXT,
		is_special_trade BOOLEAN NOT NULL DEFAULT 0,
		is_registered_trade BOOLEAN NOT NULL DEFAULT 0,
		is_lucky_trade BOOLEAN NOT NULL DEFAULT 0,
		trade_dust_cost INTEGER,
		trade_friendship_level TEXT NOT NULL DEFAULT 'Good',
		user_1_trade_satisfaction INTEGER,
		user_2_trade_satisfaction INTEGER,
		trace_id TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_trades_proposed ON trades(user_id_proposed)`,
	`CREATE INDEX IF NOT EXISTS idx_trades_accepting ON trades(user_id_accepting)`,
}

// NewSQLiteStore opens the SQLite backend and ensures the schema exists.
// dbPath is the path to the database file (e.g. "./data/pokesync.db").
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite: %w", err)
	}

	// SQLite only supports 1 writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, stmt := range sqliteSchema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create tables: %w", err)
		}
	}

	log.Printf("[SQLiteStore] Initialized with database: %s", dbPath)
	return &SQLiteStore{sqlStore{db: db, d: dialect{name: "sqlite", insertIgnore: "INSERT OR IGNORE"}}}, nil
}

// Ensure SQLiteStore implements Store
var _ Store = (*SQLiteStore)(nil)

package repository

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLStore is the production Store backend.
type MySQLStore struct {
	sqlStore
}

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		user_id VARCHAR(64) PRIMARY KEY,
		username VARCHAR(128) NOT NULL UNIQUE,
		latitude DOUBLE NULL,
		longitude DOUBLE NULL
	)`,
	`CREATE TABLE IF NOT EXISTS instances (
		instance_id VARCHAR(64) PRIMARY KEY,
		user_id VARCHAR(64) NOT NULL,
		pokemon_id INT NOT NULL,
		nickname VARCHAR(255) NULL,
		cp INT NULL,
		attack_iv INT NULL,
		defense_iv INT NULL,
		stamina_iv INT NULL,
		shiny BOOLEAN NOT NULL DEFAULT FALSE,
		costume_id INT NULL,
		lucky BOOLEAN NOT NULL DEFAULT FALSE,
		shadow BOOLEAN NOT NULL DEFAULT FALSE,
		purified BOOLEAN NOT NULL DEFAULT FALSE,
		fast_move_id INT NULL,
		charged_move1_id INT NULL,
		charged_move2_id INT NULL,
		weight DOUBLE NULL,
		height DOUBLE NULL,
		gender VARCHAR(16) NULL,
		mirror BOOLEAN NOT NULL DEFAULT FALSE,
		pref_lucky BOOLEAN NOT NULL DEFAULT FALSE,
		registered BOOLEAN NOT NULL DEFAULT FALSE,
		favorite BOOLEAN NOT NULL DEFAULT FALSE,
		location_card VARCHAR(255) NULL,
		location_caught VARCHAR(255) NULL,
		friendship_level INT NULL,
		date_caught DATETIME NULL,
		date_added DATETIME NOT NULL,
		last_update BIGINT NOT NULL DEFAULT 0,
		is_unowned BOOLEAN NOT NULL DEFAULT FALSE,
		is_owned BOOLEAN NOT NULL DEFAULT FALSE,
		is_for_trade BOOLEAN NOT NULL DEFAULT FALSE,
		is_wanted BOOLEAN NOT NULL DEFAULT FALSE,
		not_trade_list TEXT NOT NULL,
		not_wanted_list TEXT NOT NULL,
		wanted_filters TEXT NOT NULL,
		trade_filters TEXT NOT NULL,
		trace_id VARCHAR(64) NULL,
		KEY idx_instances_user (user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS trades (
		trade_id VARCHAR(64) PRIMARY KEY,
		user_id_proposed VARCHAR(64) NOT NULL DEFAULT '',
		username_proposed VARCHAR(128) NOT NULL DEFAULT '',
		user_id_accepting VARCHAR(64) NOT NULL DEFAULT '',
		username_accepting VARCHAR(128) NOT NULL DEFAULT '',
		pokemon_instance_id_user_proposed VARCHAR(64) NOT NULL DEFAULT '',
		pokemon_instance_id_user_accepting VARCHAR(64) NOT NULL DEFAULT '',
		trade_status VARCHAR(16) NOT NULL DEFAULT 'proposed',
		trade_proposal_date DATETIME NULL,
		trade_accepted_date DATETIME NULL,
		trade_completed_date DATETIME NULL,
		trade_cancelled_date DATETIME NULL,
		trade_cancelled_by VARCHAR(128) NULL,
		is_special_trade BOOLEAN NOT NULL DEFAULT FALSE,
		is_registered_trade BOOLEAN NOT NULL DEFAULT FALSE,
		is_lucky_trade BOOLEAN NOT NULL DEFAULT FALSE,
		trade_dust_cost INT NULL,
		trade_friendship_level VARCHAR(8) NOT NULL DEFAULT 'Good',
		user_1_trade_satisfaction INT NULL,
		user_2_trade_satisfaction INT NULL,
		trace_id VARCHAR(64) NULL,
		KEY idx_trades_proposed (user_id_proposed),
		KEY idx_trades_accepting (user_id_accepting)
	)`,
}

// NewMySQLStore opens the MySQL backend and ensures the schema exists.
func NewMySQLStore(dsn string) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	for _, stmt := range mysqlSchema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create tables: %w", err)
		}
	}

	log.Printf("[MySQLStore] Initialized")
	return &MySQLStore{sqlStore{db: db, d: dialect{name: "mysql", insertIgnore: "INSERT IGNORE"}}}, nil
}

// Ensure MySQLStore implements Store
var _ Store = (*MySQLStore)(nil)

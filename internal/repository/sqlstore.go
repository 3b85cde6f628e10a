package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/AdamWentworth/pokesync/internal/model"
)

// dialect captures the few SQL differences between the MySQL and SQLite
// backends. Everything else is shared.
type dialect struct {
	name string
	// insertIgnore is the statement prefix that turns a duplicate-key
	// insert into a no-op ("INSERT IGNORE" / "INSERT OR IGNORE").
	insertIgnore string
}

// sqlStore implements Store over database/sql for both backends.
type sqlStore struct {
	db *sql.DB
	d  dialect
}

const instanceColumns = `instance_id, user_id, pokemon_id, nickname, cp, attack_iv, defense_iv, stamina_iv,
	shiny, costume_id, lucky, shadow, purified, fast_move_id, charged_move1_id, charged_move2_id,
	weight, height, gender, mirror, pref_lucky, registered, favorite,
	location_card, location_caught, friendship_level, date_caught, date_added, last_update,
	is_unowned, is_owned, is_for_trade, is_wanted,
	not_trade_list, not_wanted_list, wanted_filters, trade_filters, trace_id`

const tradeColumns = `trade_id, user_id_proposed, username_proposed, user_id_accepting, username_accepting,
	pokemon_instance_id_user_proposed, pokemon_instance_id_user_accepting,
	trade_status, trade_proposal_date, trade_accepted_date, trade_completed_date, trade_cancelled_date,
	trade_cancelled_by, is_special_trade, is_registered_trade, is_lucky_trade,
	trade_dust_cost, trade_friendship_level, user_1_trade_satisfaction, user_2_trade_satisfaction, trace_id`

func (s *sqlStore) GetUser(ctx context.Context, userID string) (*model.User, error) {
	query := `SELECT user_id, username, latitude, longitude FROM users WHERE user_id = ?`

	var u model.User
	err := s.db.QueryRowContext(ctx, query, userID).Scan(&u.UserID, &u.Username, &u.Latitude, &u.Longitude)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user %s: %w", userID, err)
	}
	return &u, nil
}

func (s *sqlStore) CreateUser(ctx context.Context, u *model.User) error {
	query := `INSERT INTO users (user_id, username, latitude, longitude) VALUES (?, ?, ?, ?)`

	if _, err := s.db.ExecContext(ctx, query, u.UserID, u.Username, u.Latitude, u.Longitude); err != nil {
		return fmt.Errorf("failed to create user %s: %w", u.UserID, err)
	}
	return nil
}

func (s *sqlStore) UpdateUserLocation(ctx context.Context, userID string, lat, lng *float64) error {
	query := `UPDATE users SET latitude = ?, longitude = ? WHERE user_id = ?`

	if _, err := s.db.ExecContext(ctx, query, lat, lng, userID); err != nil {
		return fmt.Errorf("failed to update location for user %s: %w", userID, err)
	}
	return nil
}

func (s *sqlStore) UserIDByUsername(ctx context.Context, username string) (string, error) {
	query := `SELECT user_id FROM users WHERE username = ?`

	var id string
	err := s.db.QueryRowContext(ctx, query, username).Scan(&id)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", fmt.Errorf("failed to resolve username %s: %w", username, err)
	}
	return id, nil
}

// UpsertInstance is a two-step compare-and-set: a conditional UPDATE
// guarded by last_update, then an insert-if-absent. Losing a race on
// either step resolves to OutcomeStale, which replay treats as success.
func (s *sqlStore) UpsertInstance(ctx context.Context, inst *model.PokemonInstance) (UpsertOutcome, error) {
	if updated, err := s.updateInstanceIfNewer(ctx, inst); err != nil {
		return OutcomeStale, err
	} else if updated {
		return OutcomeUpdated, nil
	}

	insert := s.d.insertIgnore + ` INTO instances (` + instanceColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	res, err := s.db.ExecContext(ctx, insert,
		inst.InstanceID, inst.UserID, inst.PokemonID, inst.Nickname, inst.CP, inst.AttackIV, inst.DefenseIV, inst.StaminaIV,
		inst.Shiny, inst.CostumeID, inst.Lucky, inst.Shadow, inst.Purified, inst.FastMoveID, inst.ChargedMove1ID, inst.ChargedMove2ID,
		inst.Weight, inst.Height, inst.Gender, inst.Mirror, inst.PrefLucky, inst.Registered, inst.Favorite,
		inst.LocationCard, inst.LocationCaught, inst.FriendshipLevel, inst.DateCaught, inst.DateAdded, inst.LastUpdate,
		inst.IsUnowned, inst.IsOwned, inst.IsForTrade, inst.IsWanted,
		inst.NotTradeList, inst.NotWantedList, inst.WantedFilters, inst.TradeFilters, inst.TraceID)
	if err != nil {
		return OutcomeStale, fmt.Errorf("failed to insert instance %s: %w", inst.InstanceID, err)
	}
	if rows, _ := res.RowsAffected(); rows > 0 {
		return OutcomeCreated, nil
	}

	// A concurrent writer inserted the row between our two statements;
	// the incoming record may still be newer, so retry the update once.
	if updated, err := s.updateInstanceIfNewer(ctx, inst); err != nil {
		return OutcomeStale, err
	} else if updated {
		return OutcomeUpdated, nil
	}
	return OutcomeStale, nil
}

func (s *sqlStore) updateInstanceIfNewer(ctx context.Context, inst *model.PokemonInstance) (bool, error) {
	query := `UPDATE instances SET
		user_id = ?, pokemon_id = ?, nickname = ?, cp = ?, attack_iv = ?, defense_iv = ?, stamina_iv = ?,
		shiny = ?, costume_id = ?, lucky = ?, shadow = ?, purified = ?,
		fast_move_id = ?, charged_move1_id = ?, charged_move2_id = ?,
		weight = ?, height = ?, gender = ?, mirror = ?, pref_lucky = ?, registered = ?, favorite = ?,
		location_card = ?, location_caught = ?, friendship_level = ?, date_caught = ?, last_update = ?,
		is_unowned = ?, is_owned = ?, is_for_trade = ?, is_wanted = ?,
		not_trade_list = ?, not_wanted_list = ?, wanted_filters = ?, trade_filters = ?, trace_id = ?
		WHERE instance_id = ? AND last_update < ?`

	res, err := s.db.ExecContext(ctx, query,
		inst.UserID, inst.PokemonID, inst.Nickname, inst.CP, inst.AttackIV, inst.DefenseIV, inst.StaminaIV,
		inst.Shiny, inst.CostumeID, inst.Lucky, inst.Shadow, inst.Purified,
		inst.FastMoveID, inst.ChargedMove1ID, inst.ChargedMove2ID,
		inst.Weight, inst.Height, inst.Gender, inst.Mirror, inst.PrefLucky, inst.Registered, inst.Favorite,
		inst.LocationCard, inst.LocationCaught, inst.FriendshipLevel, inst.DateCaught, inst.LastUpdate,
		inst.IsUnowned, inst.IsOwned, inst.IsForTrade, inst.IsWanted,
		inst.NotTradeList, inst.NotWantedList, inst.WantedFilters, inst.TradeFilters, inst.TraceID,
		inst.InstanceID, inst.LastUpdate)
	if err != nil {
		return false, fmt.Errorf("failed to update instance %s: %w", inst.InstanceID, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func (s *sqlStore) DeleteInstance(ctx context.Context, instanceID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM instances WHERE instance_id = ?`, instanceID)
	if err != nil {
		return false, fmt.Errorf("failed to delete instance %s: %w", instanceID, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// UpsertTrade uses REPLACE, which both backends support, so the
// overwrite is a single atomic statement.
func (s *sqlStore) UpsertTrade(ctx context.Context, t *model.Trade) error {
	query := `REPLACE INTO trades (` + tradeColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		t.TradeID, t.UserIDProposed, t.UsernameProposed, t.UserIDAccepting, t.UsernameAccepting,
		t.InstanceIDProposed, t.InstanceIDAccepting,
		t.Status, t.ProposalDate, t.AcceptedDate, t.CompletedDate, t.CancelledDate,
		t.CancelledBy, t.IsSpecialTrade, t.IsRegisteredTrade, t.IsLuckyTrade,
		t.DustCost, t.FriendshipLevel, t.ProposedSatisfaction, t.AcceptingSatisfaction, t.TraceID)
	if err != nil {
		return fmt.Errorf("failed to upsert trade %s: %w", t.TradeID, err)
	}
	return nil
}

func (s *sqlStore) ListInstancesByUser(ctx context.Context, userID string) ([]model.PokemonInstance, error) {
	query := `SELECT ` + instanceColumns + ` FROM instances WHERE user_id = ?`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list instances for user %s: %w", userID, err)
	}
	defer rows.Close()

	var out []model.PokemonInstance
	for rows.Next() {
		var inst model.PokemonInstance
		if err := rows.Scan(
			&inst.InstanceID, &inst.UserID, &inst.PokemonID, &inst.Nickname, &inst.CP, &inst.AttackIV, &inst.DefenseIV, &inst.StaminaIV,
			&inst.Shiny, &inst.CostumeID, &inst.Lucky, &inst.Shadow, &inst.Purified, &inst.FastMoveID, &inst.ChargedMove1ID, &inst.ChargedMove2ID,
			&inst.Weight, &inst.Height, &inst.Gender, &inst.Mirror, &inst.PrefLucky, &inst.Registered, &inst.Favorite,
			&inst.LocationCard, &inst.LocationCaught, &inst.FriendshipLevel, &inst.DateCaught, &inst.DateAdded, &inst.LastUpdate,
			&inst.IsUnowned, &inst.IsOwned, &inst.IsForTrade, &inst.IsWanted,
			&inst.NotTradeList, &inst.NotWantedList, &inst.WantedFilters, &inst.TradeFilters, &inst.TraceID,
		); err != nil {
			return nil, fmt.Errorf("failed to scan instance row: %w", err)
		}
		out = append(out, inst)
	}
	return out, rows.Err()
}

func (s *sqlStore) ListTradesByUser(ctx context.Context, userID string) ([]model.Trade, error) {
	query := `SELECT ` + tradeColumns + ` FROM trades WHERE user_id_proposed = ? OR user_id_accepting = ?`

	rows, err := s.db.QueryContext(ctx, query, userID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list trades for user %s: %w", userID, err)
	}
	defer rows.Close()

	var out []model.Trade
	for rows.Next() {
		var t model.Trade
		if err := rows.Scan(
			&t.TradeID, &t.UserIDProposed, &t.UsernameProposed, &t.UserIDAccepting, &t.UsernameAccepting,
			&t.InstanceIDProposed, &t.InstanceIDAccepting,
			&t.Status, &t.ProposalDate, &t.AcceptedDate, &t.CompletedDate, &t.CancelledDate,
			&t.CancelledBy, &t.IsSpecialTrade, &t.IsRegisteredTrade, &t.IsLuckyTrade,
			&t.DustCost, &t.FriendshipLevel, &t.ProposedSatisfaction, &t.AcceptingSatisfaction, &t.TraceID,
		); err != nil {
			return nil, fmt.Errorf("failed to scan trade row: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *sqlStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}

package model

import "time"

// PokemonInstance is one captured instance in a user's collection.
// LastUpdate is the client-supplied logical clock used for conflict
// resolution; a record is only replaced by one carrying a strictly
// greater value. UserID and TraceID are internal bookkeeping and are
// not exposed through the query surface.
type PokemonInstance struct {
	InstanceID string `json:"instance_id"`
	UserID     string `json:"-"`
	PokemonID  int    `json:"pokemon_id"`

	Nickname       *string  `json:"nickname,omitempty"`
	CP             *int     `json:"cp,omitempty"`
	AttackIV       *int     `json:"attack_iv,omitempty"`
	DefenseIV      *int     `json:"defense_iv,omitempty"`
	StaminaIV      *int     `json:"stamina_iv,omitempty"`
	Shiny          bool     `json:"shiny"`
	CostumeID      *int     `json:"costume_id,omitempty"`
	Lucky          bool     `json:"lucky"`
	Shadow         bool     `json:"shadow"`
	Purified       bool     `json:"purified"`
	FastMoveID     *int     `json:"fast_move_id,omitempty"`
	ChargedMove1ID *int     `json:"charged_move1_id,omitempty"`
	ChargedMove2ID *int     `json:"charged_move2_id,omitempty"`
	Weight         *float64 `json:"weight,omitempty"`
	Height         *float64 `json:"height,omitempty"`
	Gender         *string  `json:"gender,omitempty"`

	Mirror     bool `json:"mirror"`
	PrefLucky  bool `json:"pref_lucky"`
	Registered bool `json:"registered"`
	Favorite   bool `json:"favorite"`

	LocationCard    *string    `json:"location_card,omitempty"`
	LocationCaught  *string    `json:"location_caught,omitempty"`
	FriendshipLevel *int       `json:"friendship_level,omitempty"`
	DateCaught      *time.Time `json:"date_caught,omitempty"`
	DateAdded       time.Time  `json:"date_added"`

	LastUpdate int64 `json:"last_update"`

	IsUnowned  bool `json:"is_unowned"`
	IsOwned    bool `json:"is_owned"`
	IsForTrade bool `json:"is_for_trade"`
	IsWanted   bool `json:"is_wanted"`

	// Sparse boolean sets stored as JSON text, reduced to the keys whose
	// incoming value was literally true. Always at least "{}".
	NotTradeList  string `json:"not_trade_list"`
	NotWantedList string `json:"not_wanted_list"`
	WantedFilters string `json:"wanted_filters"`
	TradeFilters  string `json:"trade_filters"`

	TraceID *string `json:"-"`
}

// DeleteRequested reports whether the state-flag combination marks this
// record for hard deletion: unowned and nothing else. Deletion bypasses
// the last_update comparison entirely.
func (p *PokemonInstance) DeleteRequested() bool {
	return p.IsUnowned && !p.IsOwned && !p.IsWanted && !p.IsForTrade
}

// Package envelope decodes the compressed wire envelopes published by the
// ingestion gateway into typed update batches.
package envelope

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"

	"github.com/AdamWentworth/pokesync/pkg/uid"
)

// DecodeError marks an envelope that can never be processed: corrupt
// compression, malformed JSON, or a missing user_id. Redelivering such a
// payload cannot self-heal, so callers skip rather than retry it.
type DecodeError struct {
	Stage string
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode envelope: %s: %v", e.Stage, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Location is the user's last-known position.
type Location struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// Batch is one decoded unit of work: a user's batched collection and
// trade updates. Raw holds the decompressed JSON body so a failed batch
// can be spilled verbatim to the failure queue.
type Batch struct {
	TraceID  string          `json:"trace_id"`
	UserID   string          `json:"user_id"`
	Username string          `json:"username"`
	Location *Location       `json:"location"`
	Pokemon  []PokemonUpdate `json:"pokemonUpdates"`
	Trades   []TradeUpdate   `json:"tradeUpdates"`

	Raw []byte `json:"-"`
}

// PokemonUpdate is one incoming collection-instance record.
type PokemonUpdate struct {
	InstanceID string `json:"instance_id"`
	PokemonID  OptInt `json:"pokemon_id"`

	Nickname       string   `json:"nickname"`
	CP             OptInt   `json:"cp"`
	AttackIV       OptInt   `json:"attack_iv"`
	DefenseIV      OptInt   `json:"defense_iv"`
	StaminaIV      OptInt   `json:"stamina_iv"`
	Shiny          Flag     `json:"shiny"`
	CostumeID      OptInt   `json:"costume_id"`
	Lucky          Flag     `json:"lucky"`
	Shadow         Flag     `json:"shadow"`
	Purified       Flag     `json:"purified"`
	FastMoveID     OptInt   `json:"fast_move_id"`
	ChargedMove1ID OptInt   `json:"charged_move1_id"`
	ChargedMove2ID OptInt   `json:"charged_move2_id"`
	Weight         OptFloat `json:"weight"`
	Height         OptFloat `json:"height"`
	Gender         string   `json:"gender"`

	Mirror     Flag `json:"mirror"`
	PrefLucky  Flag `json:"pref_lucky"`
	Registered Flag `json:"registered"`
	Favorite   Flag `json:"favorite"`

	LocationCard    string `json:"location_card"`
	LocationCaught  string `json:"location_caught"`
	FriendshipLevel OptInt `json:"friendship_level"`
	DateCaught      string `json:"date_caught"`
	DateAdded       string `json:"date_added"`

	LastUpdate OptInt `json:"last_update"`

	IsUnowned  Flag `json:"is_unowned"`
	IsOwned    Flag `json:"is_owned"`
	IsForTrade Flag `json:"is_for_trade"`
	IsWanted   Flag `json:"is_wanted"`

	NotTradeList  FilterSet `json:"not_trade_list"`
	NotWantedList FilterSet `json:"not_wanted_list"`
	WantedFilters FilterSet `json:"wanted_filters"`
	TradeFilters  FilterSet `json:"trade_filters"`
}

// TradeUpdate is one incoming trade record. Key is the client-side map
// key and serves as the trade id when tradeData carries none.
type TradeUpdate struct {
	Key  string    `json:"key"`
	Data TradeData `json:"tradeData"`
}

// TradeData carries the trade fields proper.
type TradeData struct {
	TradeID string `json:"trade_id"`

	UsernameProposed    string `json:"username_proposed"`
	UsernameAccepting   string `json:"username_accepting"`
	InstanceIDProposed  string `json:"pokemon_instance_id_user_proposed"`
	InstanceIDAccepting string `json:"pokemon_instance_id_user_accepting"`

	Status        string `json:"trade_status"`
	ProposalDate  string `json:"trade_proposal_date"`
	AcceptedDate  string `json:"trade_accepted_date"`
	CompletedDate string `json:"trade_completed_date"`
	CancelledDate string `json:"trade_cancelled_date"`
	CancelledBy   string `json:"trade_cancelled_by"`

	IsSpecialTrade    Flag `json:"is_special_trade"`
	IsRegisteredTrade Flag `json:"is_registered_trade"`
	IsLuckyTrade      Flag `json:"is_lucky_trade"`

	DustCost        OptInt `json:"trade_dust_cost"`
	FriendshipLevel string `json:"trade_friendship_level"`

	ProposedSatisfaction  OptInt `json:"user_1_trade_satisfaction"`
	AcceptingSatisfaction OptInt `json:"user_2_trade_satisfaction"`
}

// Decode decompresses and deserializes a raw broker payload. It is a
// pure transformation; all failures surface as *DecodeError.
func Decode(raw []byte) (*Batch, error) {
	r, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, &DecodeError{Stage: "decompress", Err: err}
	}
	defer r.Close()

	body, err := io.ReadAll(r)
	if err != nil {
		return nil, &DecodeError{Stage: "decompress", Err: err}
	}

	return DecodeJSON(body)
}

// DecodeJSON deserializes an already-decompressed envelope body. The
// failure queue stores bodies in this form, so replay enters here.
func DecodeJSON(body []byte) (*Batch, error) {
	var b Batch
	if err := json.Unmarshal(body, &b); err != nil {
		return nil, &DecodeError{Stage: "unmarshal", Err: err}
	}
	if b.UserID == "" {
		return nil, &DecodeError{Stage: "validate", Err: fmt.Errorf("missing user_id")}
	}
	if b.TraceID == "" {
		b.TraceID = uid.New()
	}
	b.Raw = body
	return &b, nil
}

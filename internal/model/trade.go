package model

import "time"

// Trade statuses. Trades are never deleted by this service; terminal
// states are represented as status transitions.
const (
	TradeStatusProposed  = "proposed"
	TradeStatusAccepted  = "accepted"
	TradeStatusDenied    = "denied"
	TradeStatusPending   = "pending"
	TradeStatusCompleted = "completed"
	TradeStatusCancelled = "cancelled"
)

// TradeFriendshipLevels are the accepted trade_friendship_level values.
// Anything else is coerced to "Good".
var TradeFriendshipLevels = []string{"Good", "Great", "Ultra", "Best"}

// Trade is a proposed or completed exchange between two users. The owner
// references are resolved from usernames at reconciliation time; an
// unresolved username leaves the corresponding user id empty.
type Trade struct {
	TradeID string `json:"trade_id"`

	UserIDProposed      string `json:"user_id_proposed"`
	UsernameProposed    string `json:"username_proposed"`
	UserIDAccepting     string `json:"user_id_accepting"`
	UsernameAccepting   string `json:"username_accepting"`
	InstanceIDProposed  string `json:"pokemon_instance_id_user_proposed"`
	InstanceIDAccepting string `json:"pokemon_instance_id_user_accepting"`

	Status        string     `json:"trade_status"`
	ProposalDate  *time.Time `json:"trade_proposal_date,omitempty"`
	AcceptedDate  *time.Time `json:"trade_accepted_date,omitempty"`
	CompletedDate *time.Time `json:"trade_completed_date,omitempty"`
	CancelledDate *time.Time `json:"trade_cancelled_date,omitempty"`
	CancelledBy   *string    `json:"trade_cancelled_by,omitempty"`

	IsSpecialTrade    bool `json:"is_special_trade"`
	IsRegisteredTrade bool `json:"is_registered_trade"`
	IsLuckyTrade      bool `json:"is_lucky_trade"`

	DustCost        *int   `json:"trade_dust_cost,omitempty"`
	FriendshipLevel string `json:"trade_friendship_level"`

	ProposedSatisfaction  *int `json:"user_1_trade_satisfaction,omitempty"`
	AcceptingSatisfaction *int `json:"user_2_trade_satisfaction,omitempty"`

	TraceID *string `json:"-"`
}

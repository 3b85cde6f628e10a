package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/AdamWentworth/pokesync/internal/cache"
	"github.com/AdamWentworth/pokesync/internal/envelope"
	"github.com/AdamWentworth/pokesync/internal/model"
	"github.com/AdamWentworth/pokesync/internal/repository"
)

// Result aggregates per-batch reconciliation counts for observability.
type Result struct {
	Created         int
	Updated         int
	Deleted         int
	TradesProcessed int
}

// Reconciler merges decoded update batches into the store. Entity-level
// failures are logged and skipped so the rest of the batch still lands;
// the batch as a whole is then reported failed so the caller can spill
// it for replay. Re-applying a batch is idempotent: instance writes are
// guarded by last_update inside the SQL, trade writes are full
// overwrites, deletes of absent rows are no-ops.
type Reconciler struct {
	store    repository.Store
	lookups  cache.Cache
	cacheTTL time.Duration
}

// NewReconciler creates a reconciler using the given store and
// username-lookup cache.
func NewReconciler(store repository.Store, lookups cache.Cache, cacheTTL time.Duration) *Reconciler {
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &Reconciler{store: store, lookups: lookups, cacheTTL: cacheTTL}
}

// Reconcile applies one batch. A non-nil error means the batch must be
// preserved for replay; a *IdentityMismatchError additionally means no
// entity writes were attempted.
func (r *Reconciler) Reconcile(ctx context.Context, b *envelope.Batch) (Result, error) {
	var res Result

	if err := r.upsertUser(ctx, b); err != nil {
		return res, err
	}

	var firstErr error
	fail := func(err error) {
		if firstErr == nil {
			firstErr = err
		}
	}

	for i := range b.Pokemon {
		outcome, err := r.applyInstance(ctx, b, &b.Pokemon[i])
		if err != nil {
			log.Printf("[Reconciler] trace_id %s - instance %s: %v", b.TraceID, b.Pokemon[i].InstanceID, err)
			fail(err)
			continue
		}
		switch outcome {
		case instanceCreated:
			res.Created++
		case instanceUpdated:
			res.Updated++
		case instanceDeleted:
			res.Deleted++
		}
	}

	for i := range b.Trades {
		processed, err := r.applyTrade(ctx, b, &b.Trades[i])
		if err != nil {
			log.Printf("[Reconciler] trace_id %s - trade: %v", b.TraceID, err)
			fail(err)
			continue
		}
		if processed {
			res.TradesProcessed++
		}
	}

	log.Printf("[Reconciler] trace_id %s - user %s %s", b.TraceID, b.Username, res.summary())

	if firstErr != nil {
		return res, fmt.Errorf("batch partially applied: %w", firstErr)
	}
	return res, nil
}

// upsertUser creates or refreshes the owning user, enforcing the
// user_id/username binding: a mismatch rejects the whole batch before
// any entity is touched.
func (r *Reconciler) upsertUser(ctx context.Context, b *envelope.Batch) error {
	existing, err := r.store.GetUser(ctx, b.UserID)
	if err != nil {
		return err
	}

	var lat, lng *float64
	if b.Location != nil {
		lat, lng = b.Location.Latitude, b.Location.Longitude
	}

	if existing == nil {
		return r.store.CreateUser(ctx, &model.User{
			UserID:    b.UserID,
			Username:  b.Username,
			Latitude:  lat,
			Longitude: lng,
		})
	}

	if existing.Username != b.Username {
		return &IdentityMismatchError{UserID: b.UserID, Stored: existing.Username, Incoming: b.Username}
	}

	if b.Location != nil {
		if err := r.store.UpdateUserLocation(ctx, b.UserID, lat, lng); err != nil {
			return err
		}
	}
	return nil
}

type instanceOutcome int

const (
	instanceSkipped instanceOutcome = iota
	instanceCreated
	instanceUpdated
	instanceDeleted
)

func (r *Reconciler) applyInstance(ctx context.Context, b *envelope.Batch, pu *envelope.PokemonUpdate) (instanceOutcome, error) {
	if pu.InstanceID == "" {
		log.Printf("[Reconciler] trace_id %s - skipping instance update with empty instance_id", b.TraceID)
		return instanceSkipped, nil
	}

	inst := model.PokemonInstance{
		InstanceID: pu.InstanceID,
		UserID:     b.UserID,
		IsUnowned:  pu.IsUnowned.Bool(),
		IsOwned:    pu.IsOwned.Bool(),
		IsForTrade: pu.IsForTrade.Bool(),
		IsWanted:   pu.IsWanted.Bool(),
	}

	// Deletion bypasses the last_update comparison entirely: once the
	// unowned-and-nothing-else combination is observed, the row goes.
	if inst.DeleteRequested() {
		deleted, err := r.store.DeleteInstance(ctx, pu.InstanceID)
		if err != nil {
			return instanceSkipped, err
		}
		if !deleted {
			return instanceSkipped, nil
		}
		log.Printf("[Reconciler] trace_id %s - instance deleted for user %s: %s", b.TraceID, b.UserID, pu.InstanceID)
		return instanceDeleted, nil
	}

	if !pu.PokemonID.Valid {
		log.Printf("[Reconciler] trace_id %s - invalid or missing pokemon_id for instance %s; skipping", b.TraceID, pu.InstanceID)
		return instanceSkipped, nil
	}

	inst.PokemonID = int(pu.PokemonID.Value)
	inst.Nickname = envelope.NullableString(pu.Nickname)
	inst.CP = pu.CP.IntPtr()
	inst.AttackIV = pu.AttackIV.IntPtr()
	inst.DefenseIV = pu.DefenseIV.IntPtr()
	inst.StaminaIV = pu.StaminaIV.IntPtr()
	inst.Shiny = pu.Shiny.Bool()
	inst.CostumeID = pu.CostumeID.IntPtr()
	inst.Lucky = pu.Lucky.Bool()
	inst.Shadow = pu.Shadow.Bool()
	inst.Purified = pu.Purified.Bool()
	inst.FastMoveID = pu.FastMoveID.IntPtr()
	inst.ChargedMove1ID = pu.ChargedMove1ID.IntPtr()
	inst.ChargedMove2ID = pu.ChargedMove2ID.IntPtr()
	inst.Weight = pu.Weight.FloatPtr()
	inst.Height = pu.Height.FloatPtr()
	inst.Gender = envelope.NullableString(pu.Gender)
	inst.Mirror = pu.Mirror.Bool()
	inst.PrefLucky = pu.PrefLucky.Bool()
	inst.Registered = pu.Registered.Bool()
	inst.Favorite = pu.Favorite.Bool()
	inst.LocationCard = envelope.NullableString(pu.LocationCard)
	inst.LocationCaught = envelope.NullableString(pu.LocationCaught)
	inst.FriendshipLevel = pu.FriendshipLevel.IntPtr()
	inst.DateCaught = envelope.ParseCaptureDate(pu.DateCaught)
	inst.DateAdded = time.Now().UTC()
	inst.LastUpdate = pu.LastUpdate.Int64Or(0)
	inst.NotTradeList = pu.NotTradeList.JSON()
	inst.NotWantedList = pu.NotWantedList.JSON()
	inst.WantedFilters = pu.WantedFilters.JSON()
	inst.TradeFilters = pu.TradeFilters.JSON()
	inst.TraceID = envelope.NullableString(b.TraceID)

	outcome, err := r.store.UpsertInstance(ctx, &inst)
	if err != nil {
		return instanceSkipped, err
	}
	switch outcome {
	case repository.OutcomeCreated:
		return instanceCreated, nil
	case repository.OutcomeUpdated:
		return instanceUpdated, nil
	default:
		log.Printf("[Reconciler] trace_id %s - ignored older or same update for instance %s", b.TraceID, pu.InstanceID)
		return instanceSkipped, nil
	}
}

func (r *Reconciler) applyTrade(ctx context.Context, b *envelope.Batch, tu *envelope.TradeUpdate) (bool, error) {
	tradeID := tu.Data.TradeID
	if tradeID == "" {
		tradeID = tu.Key
	}
	if tradeID == "" {
		log.Printf("[Reconciler] trace_id %s - skipping trade update with no trade_id", b.TraceID)
		return false, nil
	}

	proposedID, err := r.resolveUsername(ctx, tu.Data.UsernameProposed)
	if err != nil {
		return false, err
	}
	acceptingID, err := r.resolveUsername(ctx, tu.Data.UsernameAccepting)
	if err != nil {
		return false, err
	}

	status := tu.Data.Status
	if status == "" {
		status = model.TradeStatusProposed
	}

	friendship := tu.Data.FriendshipLevel
	if !validFriendshipLevel(friendship) {
		if friendship != "" {
			log.Printf("[Reconciler] trace_id %s - invalid friendship level for trade %s: %s; defaulting to Good", b.TraceID, tradeID, friendship)
		}
		friendship = "Good"
	}

	t := model.Trade{
		TradeID:               tradeID,
		UserIDProposed:        proposedID,
		UsernameProposed:      tu.Data.UsernameProposed,
		UserIDAccepting:       acceptingID,
		UsernameAccepting:     tu.Data.UsernameAccepting,
		InstanceIDProposed:    tu.Data.InstanceIDProposed,
		InstanceIDAccepting:   tu.Data.InstanceIDAccepting,
		Status:                status,
		ProposalDate:          envelope.ParseTradeTime(tu.Data.ProposalDate),
		AcceptedDate:          envelope.ParseTradeTime(tu.Data.AcceptedDate),
		CompletedDate:         envelope.ParseTradeTime(tu.Data.CompletedDate),
		CancelledDate:         envelope.ParseTradeTime(tu.Data.CancelledDate),
		CancelledBy:           envelope.NullableString(tu.Data.CancelledBy),
		IsSpecialTrade:        tu.Data.IsSpecialTrade.Bool(),
		IsRegisteredTrade:     tu.Data.IsRegisteredTrade.Bool(),
		IsLuckyTrade:          tu.Data.IsLuckyTrade.Bool(),
		DustCost:              tu.Data.DustCost.IntPtr(),
		FriendshipLevel:       friendship,
		ProposedSatisfaction:  tu.Data.ProposedSatisfaction.IntPtr(),
		AcceptingSatisfaction: tu.Data.AcceptingSatisfaction.IntPtr(),
		TraceID:               envelope.NullableString(b.TraceID),
	}

	if err := r.store.UpsertTrade(ctx, &t); err != nil {
		return false, err
	}
	return true, nil
}

// resolveUsername maps a trade party's display name to a user id via the
// lookup cache. An unknown username degrades to an empty owner reference
// rather than failing the trade. Empty resolutions are never cached, so
// a party registered moments later resolves on the next lookup instead
// of after the TTL.
func (r *Reconciler) resolveUsername(ctx context.Context, username string) (string, error) {
	if strings.TrimSpace(username) == "" {
		return "", nil
	}

	key := "username:" + username
	if v, err := r.lookups.Get(ctx, key); err == nil {
		return string(v), nil
	}

	id, err := r.store.UserIDByUsername(ctx, username)
	if err != nil {
		return "", err
	}
	if id == "" {
		log.Printf("[Reconciler] no user found for username %q, storing empty user_id", username)
		return "", nil
	}

	if err := r.lookups.Set(ctx, key, []byte(id), r.cacheTTL); err != nil {
		log.Printf("[Reconciler] failed to cache lookup for username %q: %v", username, err)
	}
	return id, nil
}

func validFriendshipLevel(level string) bool {
	for _, l := range model.TradeFriendshipLevels {
		if level == l {
			return true
		}
	}
	return false
}

func (res Result) summary() string {
	parts := []string{}
	if res.Created > 0 {
		parts = append(parts, fmt.Sprintf("created %d", res.Created))
	}
	if res.Updated > 0 {
		parts = append(parts, fmt.Sprintf("updated %d", res.Updated))
	}
	if res.Deleted > 0 {
		parts = append(parts, fmt.Sprintf("dropped %d", res.Deleted))
	}
	if res.TradesProcessed > 0 {
		parts = append(parts, fmt.Sprintf("tradeProcessed %d", res.TradesProcessed))
	}
	if len(parts) == 0 {
		return "no changes"
	}
	return strings.Join(parts, ", ")
}

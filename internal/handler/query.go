package handler

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/AdamWentworth/pokesync/internal/model"
	"github.com/AdamWentworth/pokesync/internal/repository"
	"github.com/AdamWentworth/pokesync/pkg/apierror"
	"github.com/AdamWentworth/pokesync/pkg/response"
)

// QueryHandler serves read-only views of reconciled state. Reads are
// point-in-time row scans; no locking against the consumer's writes.
type QueryHandler struct {
	store repository.Store
}

// NewQueryHandler creates a query handler backed by the given store.
func NewQueryHandler(store repository.Store) *QueryHandler {
	return &QueryHandler{store: store}
}

// GetPokemon handles GET /api/v1/users/{user_id}/pokemon. The collection
// is keyed by instance_id, matching the shape clients sync against.
func (h *QueryHandler) GetPokemon(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")
	if userID == "" {
		response.Error(w, apierror.BadRequest("user_id is required"))
		return
	}

	u, err := h.store.GetUser(r.Context(), userID)
	if err != nil {
		log.Printf("[Query] Failed to load user %s: %v", userID, err)
		response.Error(w, apierror.InternalError(""))
		return
	}
	if u == nil {
		response.Error(w, apierror.NotFound("user not found"))
		return
	}

	instances, err := h.store.ListInstancesByUser(r.Context(), userID)
	if err != nil {
		log.Printf("[Query] Failed to list instances for user %s: %v", userID, err)
		response.Error(w, apierror.InternalError(""))
		return
	}

	collection := make(map[string]model.PokemonInstance, len(instances))
	for _, inst := range instances {
		collection[inst.InstanceID] = inst
	}

	response.OK(w, collection)
}

// GetTrades handles GET /api/v1/users/{user_id}/trades, returning trades
// where the user is either party.
func (h *QueryHandler) GetTrades(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")
	if userID == "" {
		response.Error(w, apierror.BadRequest("user_id is required"))
		return
	}

	u, err := h.store.GetUser(r.Context(), userID)
	if err != nil {
		log.Printf("[Query] Failed to load user %s: %v", userID, err)
		response.Error(w, apierror.InternalError(""))
		return
	}
	if u == nil {
		response.Error(w, apierror.NotFound("user not found"))
		return
	}

	trades, err := h.store.ListTradesByUser(r.Context(), userID)
	if err != nil {
		log.Printf("[Query] Failed to list trades for user %s: %v", userID, err)
		response.Error(w, apierror.InternalError(""))
		return
	}
	if trades == nil {
		trades = []model.Trade{}
	}

	response.OK(w, trades)
}

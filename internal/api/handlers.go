package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"stock-sync-service/internal/store"
	"stock-sync-service/internal/sync"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

type createProductRequest struct {
	ID            string         `json:"id" validate:"max=64"`
	SKU           string         `json:"sku" validate:"required,max=64"`
	Name          string         `json:"name" validate:"required,max=255"`
	Unit          string         `json:"unit" validate:"max=32"`
	InternalStock int            `json:"internal_stock" validate:"gte=0"`
	ChannelStock  map[string]int `json:"channel_stock" validate:"dive,keys,oneof=shopee tokopedia blibli website,endkeys,gte=0"`
}

type stockRequest struct {
	Quantity *int `json:"quantity" validate:"required,gte=0"`
}

type autoSyncRequest struct {
	Enabled         *bool `json:"enabled"`
	IntervalMinutes *int  `json:"interval_minutes" validate:"omitempty,gte=1"`
}

type syncStatusResponse struct {
	Summary  sync.StatusSummary       `json:"summary"`
	LastSync *time.Time               `json:"last_sync"`
	Status   string                   `json:"status"`
	Breakers map[store.Channel]string `json:"breakers,omitempty"`
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.syncManager.Products(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if products == nil {
		products = []*store.Product{}
	}
	writeJSON(w, http.StatusOK, products)
}

func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.syncManager.Product(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req createProductRequest
	if !decode(w, r, &req) {
		return
	}

	p := &store.Product{
		ID:            req.ID,
		SKU:           req.SKU,
		Name:          req.Name,
		Unit:          req.Unit,
		InternalStock: req.InternalStock,
		ChannelStock:  make(map[store.Channel]int, len(req.ChannelStock)),
	}
	for name, qty := range req.ChannelStock {
		p.ChannelStock[store.Channel(name)] = qty
	}

	created, err := h.syncManager.AddProduct(r.Context(), p)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) SetInternalStock(w http.ResponseWriter, r *http.Request) {
	var req stockRequest
	if !decode(w, r, &req) {
		return
	}
	p, err := h.syncManager.SetInternalStock(r.Context(), chi.URLParam(r, "id"), *req.Quantity)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) SetChannelStock(w http.ResponseWriter, r *http.Request) {
	ch, err := store.ParseChannel(chi.URLParam(r, "channel"))
	if err != nil {
		writeError(w, err)
		return
	}
	var req stockRequest
	if !decode(w, r, &req) {
		return
	}
	p, err := h.syncManager.SetChannelStock(r.Context(), chi.URLParam(r, "id"), ch, *req.Quantity)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// ReconcileOne syncs one product, optionally restricted with ?channel=.
func (h *Handler) ReconcileOne(w http.ResponseWriter, r *http.Request) {
	var channels []store.Channel
	for _, name := range r.URL.Query()["channel"] {
		ch, err := store.ParseChannel(name)
		if err != nil {
			writeError(w, err)
			return
		}
		channels = append(channels, ch)
	}

	out, err := h.syncManager.ReconcileOne(r.Context(), chi.URLParam(r, "id"), channels...)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) ReconcileAll(w http.ResponseWriter, r *http.Request) {
	result, err := h.syncManager.ReconcileAll(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) AutoSync(w http.ResponseWriter, r *http.Request) {
	result, err := h.syncManager.AutoSync(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) GetSyncStatus(w http.ResponseWriter, r *http.Request) {
	summary, err := h.syncManager.GetSyncStatus(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	last, err := h.syncManager.GetLastSyncTime(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	resp := syncStatusResponse{
		Summary:  summary,
		LastSync: last,
		Status:   h.syncManager.GetStatus(),
	}
	if h.breakers != nil {
		resp.Breakers = h.breakers.BreakerStates()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) ListHistory(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(w, r, "limit", defaultHistoryLimit)
	if !ok {
		return
	}
	offset, ok := queryInt(w, r, "offset", 0)
	if !ok {
		return
	}
	if limit < 1 || limit > maxHistoryLimit || offset < 0 {
		writeDetail(w, http.StatusBadRequest, "limit must be 1-500 and offset non-negative")
		return
	}

	history, err := h.syncManager.History(r.Context(), limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func (h *Handler) GetAutoSync(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.syncManager.AutoSyncConfig(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (h *Handler) UpdateAutoSync(w http.ResponseWriter, r *http.Request) {
	var req autoSyncRequest
	if !decode(w, r, &req) {
		return
	}

	cfg, err := h.syncManager.UpdateAutoSync(r.Context(), req.Enabled, req.IntervalMinutes)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func queryInt(w http.ResponseWriter, r *http.Request, key string, def int) (int, bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, key+" must be an integer")
		return 0, false
	}
	return n, true
}

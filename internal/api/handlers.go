package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"veridraws/internal/draw"
	"veridraws/internal/logger"
	"veridraws/internal/tracker"
)

// Service is what the handlers need from the tracker.
type Service interface {
	Snapshot() *draw.Snapshot
	IsLoading() bool
	LastError() string
	SyncWallet(ctx context.Context) (*draw.Snapshot, error)
	CreateDraw(ctx context.Context, request tracker.CreateDrawRequest) (*tracker.CreateDrawResult, error)
	JoinDraw(ctx context.Context, address solana.PublicKey) (solana.Signature, error)
	PickWinner(ctx context.Context, address solana.PublicKey) (solana.Signature, error)
}

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

type drawResponse struct {
	Address             string   `json:"address"`
	ShortAddress        string   `json:"shortAddress"`
	Creator             string   `json:"creator"`
	Name                string   `json:"name"`
	Description         string   `json:"description"`
	TicketPrice         string   `json:"ticketPrice"`
	TicketPriceLamports uint64   `json:"ticketPriceLamports"`
	MaxParticipants     uint32   `json:"maxParticipants"`
	Capacity            string   `json:"capacity"`
	Participants        []string `json:"participants"`
	Winner              *string  `json:"winner"`
	IsActive            bool     `json:"isActive"`
	IsFull              bool     `json:"isFull"`
	CanJoin             bool     `json:"canJoin"`
	CanPickWinner       bool     `json:"canPickWinner"`
	CreatedAt           int64    `json:"createdAt"`
}

type drawsResponse struct {
	Identity  string         `json:"identity,omitempty"`
	Source    string         `json:"source,omitempty"`
	SyncedAt  *time.Time     `json:"syncedAt,omitempty"`
	Skipped   int            `json:"skipped"`
	Mine      []drawResponse `json:"mine"`
	Joined    []drawResponse `json:"joined"`
	Available []drawResponse `json:"available"`
	Loading   bool           `json:"loading"`
	Error     string         `json:"error,omitempty"`
}

type createDrawRequest struct {
	Name            string          `json:"name"`
	Description     string          `json:"description"`
	TicketPrice     decimal.Decimal `json:"ticketPrice"`
	MaxParticipants uint32          `json:"maxParticipants"`
}

type signatureResponse struct {
	Signature   string `json:"signature"`
	DrawAddress string `json:"drawAddress,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func (h *Handler) handleListDraws(w http.ResponseWriter, r *http.Request) {
	snapshot := h.service.Snapshot()

	if raw := r.URL.Query().Get("viewer"); raw != "" {
		viewer, err := solana.PublicKeyFromBase58(raw)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "invalid viewer address", string(tracker.KindInvalid))
			return
		}
		if snapshot != nil {
			snapshot = snapshot.For(viewer)
		}
	}

	respondWithJSON(w, http.StatusOK, h.drawsResponse(snapshot))
}

func (h *Handler) handleSync(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.service.SyncWallet(r.Context())
	if err != nil {
		respondWithTrackerError(w, err)
		return
	}
	if snapshot == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	respondWithJSON(w, http.StatusOK, h.drawsResponse(snapshot))
}

func (h *Handler) handleCreateDraw(w http.ResponseWriter, r *http.Request) {
	var body createDrawRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body", string(tracker.KindInvalid))
		return
	}

	result, err := h.service.CreateDraw(r.Context(), tracker.CreateDrawRequest{
		Name:            body.Name,
		Description:     body.Description,
		TicketPrice:     body.TicketPrice,
		MaxParticipants: body.MaxParticipants,
	})
	if err != nil {
		respondWithTrackerError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, signatureResponse{
		Signature:   result.Signature.String(),
		DrawAddress: result.DrawAddress.String(),
	})
}

func (h *Handler) handleJoinDraw(w http.ResponseWriter, r *http.Request) {
	h.handleDrawAction(w, r, h.service.JoinDraw)
}

func (h *Handler) handlePickWinner(w http.ResponseWriter, r *http.Request) {
	h.handleDrawAction(w, r, h.service.PickWinner)
}

func (h *Handler) handleDrawAction(w http.ResponseWriter, r *http.Request, action func(context.Context, solana.PublicKey) (solana.Signature, error)) {
	address, err := solana.PublicKeyFromBase58(chi.URLParam(r, "address"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid draw address", string(tracker.KindInvalid))
		return
	}

	signature, err := action(r.Context(), address)
	if err != nil {
		respondWithTrackerError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, signatureResponse{Signature: signature.String()})
}

func (h *Handler) drawsResponse(snapshot *draw.Snapshot) drawsResponse {
	response := drawsResponse{
		Mine:      []drawResponse{},
		Joined:    []drawResponse{},
		Available: []drawResponse{},
		Loading:   h.service.IsLoading(),
		Error:     h.service.LastError(),
	}
	if snapshot == nil {
		return response
	}

	syncedAt := snapshot.SyncedAt.UTC()
	response.Identity = snapshot.Identity.String()
	response.Source = string(snapshot.Source)
	response.SyncedAt = &syncedAt
	response.Skipped = snapshot.Skipped
	response.Mine = toDrawResponses(snapshot.Mine, snapshot.Identity)
	response.Joined = toDrawResponses(snapshot.Joined, snapshot.Identity)
	response.Available = toDrawResponses(snapshot.Available, snapshot.Identity)
	return response
}

func toDrawResponses(records []draw.Record, viewer solana.PublicKey) []drawResponse {
	out := make([]drawResponse, len(records))
	for i, record := range records {
		participants := make([]string, len(record.Participants))
		for j, participant := range record.Participants {
			participants[j] = participant.String()
		}

		var winner *string
		if record.Winner != nil {
			encoded := record.Winner.String()
			winner = &encoded
		}

		out[i] = drawResponse{
			Address:             record.Address.String(),
			ShortAddress:        draw.ShortAddress(record.Address),
			Creator:             record.Creator.String(),
			Name:                record.Name,
			Description:         record.Description,
			TicketPrice:         record.TicketPriceSOL().String(),
			TicketPriceLamports: record.TicketPrice,
			MaxParticipants:     record.MaxParticipants,
			Capacity:            record.CapacityLabel(),
			Participants:        participants,
			Winner:              winner,
			IsActive:            record.IsActive,
			IsFull:              record.IsFull(),
			CanJoin:             record.CanJoin(viewer),
			CanPickWinner:       record.CanPickWinner(viewer),
			CreatedAt:           record.CreatedAt,
		}
	}
	return out
}

func statusFor(kind tracker.ErrorKind) int {
	switch kind {
	case tracker.KindNotConnected:
		return http.StatusPreconditionFailed
	case tracker.KindBusy:
		return http.StatusConflict
	case tracker.KindTimeout:
		return http.StatusGatewayTimeout
	case tracker.KindNetwork, tracker.KindSubmission, tracker.KindDecode:
		return http.StatusBadGateway
	case tracker.KindInvalid:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func respondWithTrackerError(w http.ResponseWriter, err error) {
	kind := tracker.KindOf(err)
	status := statusFor(kind)
	if status >= http.StatusInternalServerError {
		logger.Error("api: request failed", zap.String("kind", string(kind)), zap.Error(err))
	}

	var trackerErr *tracker.Error
	message := err.Error()
	if errors.As(err, &trackerErr) && trackerErr.Err != nil {
		message = trackerErr.Err.Error()
	}
	respondWithError(w, status, message, string(kind))
}

func respondWithError(w http.ResponseWriter, status int, message, kind string) {
	respondWithJSON(w, status, errorResponse{Error: message, Kind: kind})
}

func respondWithJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Warn("api: cannot encode response", zap.Error(err))
	}
}

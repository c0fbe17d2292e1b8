package http

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/robertarktes/appointment-bookings-and-orders/internal/bookings"
	"github.com/robertarktes/appointment-bookings-and-orders/internal/domain"
	"github.com/robertarktes/appointment-bookings-and-orders/internal/orders"
	"github.com/robertarktes/appointment-bookings-and-orders/internal/payments"
	"github.com/robertarktes/appointment-bookings-and-orders/internal/slots"
)

const signatureHeader = "Gateway-Signature"

type Handlers struct {
	slots    *slots.Service
	bookings *bookings.Service
	orders   *orders.Service
	payments *payments.Service
}

func NewHandlers(slotSvc *slots.Service, bookingSvc *bookings.Service, orderSvc *orders.Service, paymentSvc *payments.Service) *Handlers {
	return &Handlers{
		slots:    slotSvc,
		bookings: bookingSvc,
		orders:   orderSvc,
		payments: paymentSvc,
	}
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, domain.ErrConflict):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, domain.ErrSerializationFailure):
		http.Error(w, "conflict, try again", http.StatusConflict)
	case errors.Is(err, domain.ErrGateway):
		http.Error(w, err.Error(), http.StatusBadGateway)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func parseID(r *http.Request, param string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		return uuid.Nil, domain.ErrInvalidInput
	}
	return id, nil
}

func queryID(r *http.Request, key string) (uuid.UUID, error) {
	id, err := uuid.Parse(r.URL.Query().Get(key))
	if err != nil {
		return uuid.Nil, domain.ErrInvalidInput
	}
	return id, nil
}

func queryTimeRange(r *http.Request) (time.Time, time.Time) {
	from, errFrom := time.Parse(time.RFC3339, r.URL.Query().Get("from"))
	to, errTo := time.Parse(time.RFC3339, r.URL.Query().Get("to"))
	now := time.Now().UTC()
	if errFrom != nil {
		from = now.AddDate(0, -1, 0)
	}
	if errTo != nil {
		to = now.AddDate(0, 3, 0)
	}
	return from, to
}

func queryPaging(r *http.Request) (int, int) {
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	return offset, limit
}

func (h *Handlers) CreateSlot(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OwnerID   uuid.UUID `json:"owner_id"`
		Start     time.Time `json:"start"`
		End       time.Time `json:"end"`
		Price     float64   `json:"price"`
		Reduction *float64  `json:"reduction"`
		Type      string    `json:"type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	slot, err := h.slots.AddSlot(r.Context(), domain.SlotSpec{
		Start:     req.Start,
		End:       req.End,
		Price:     req.Price,
		Reduction: req.Reduction,
		Type:      req.Type,
	}, req.OwnerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSlotResponse(slot))
}

func (h *Handlers) UpdateSlot(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var req struct {
		OwnerID   uuid.UUID  `json:"owner_id"`
		Start     *time.Time `json:"start"`
		End       *time.Time `json:"end"`
		Price     *float64   `json:"price"`
		Reduction *float64   `json:"reduction"`
		Type      *string    `json:"type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	slot, err := h.slots.UpdateSlot(r.Context(), id, req.OwnerID, domain.SlotPatch{
		Start:     req.Start,
		End:       req.End,
		Price:     req.Price,
		Reduction: req.Reduction,
		Type:      req.Type,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSlotResponse(slot))
}

func (h *Handlers) DeleteSlot(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	ownerID, err := queryID(r, "owner_id")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.slots.DeleteSlot(r.Context(), id, ownerID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) ListSlotsByOwner(w http.ResponseWriter, r *http.Request) {
	ownerID, err := queryID(r, "owner_id")
	if err != nil {
		writeError(w, err)
		return
	}
	from, to := queryTimeRange(r)
	found, err := h.slots.FindByOwner(r.Context(), ownerID, from, to)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSlotResponses(found))
}

func (h *Handlers) ListAvailableSlots(w http.ResponseWriter, r *http.Request) {
	consumerID, err := queryID(r, "consumer_id")
	if err != nil {
		writeError(w, err)
		return
	}
	from, to := queryTimeRange(r)
	found, err := h.slots.FindAvailableOrOwnedByConsumer(r.Context(), consumerID, from, to)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSlotResponses(found))
}

func (h *Handlers) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SlotID      uuid.UUID `json:"slot_id"`
		ConsumerID  uuid.UUID `json:"consumer_id"`
		Subject     string    `json:"subject"`
		Description string    `json:"description"`
		Category    string    `json:"category"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	booked, err := h.bookings.BookSlot(r.Context(), req.SlotID, req.ConsumerID, domain.BookingDetails{
		Subject:     req.Subject,
		Description: req.Description,
		Category:    req.Category,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	status := http.StatusCreated
	message := "reservation accepted"
	if !booked {
		status = http.StatusConflict
		message = "slot is not available"
	}
	writeJSON(w, status, map[string]interface{}{"booked": booked, "message": message})
}

func (h *Handlers) CancelBookingByConsumer(w http.ResponseWriter, r *http.Request) {
	slotID, err := parseID(r, "slotId")
	if err != nil {
		writeError(w, err)
		return
	}
	consumerID, err := queryID(r, "consumer_id")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.bookings.CancelByConsumer(r.Context(), slotID, consumerID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) CancelBookingByOwner(w http.ResponseWriter, r *http.Request) {
	slotID, err := parseID(r, "slotId")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.bookings.CancelByOwner(r.Context(), slotID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func bookingFilterFromQuery(r *http.Request) domain.BookingFilter {
	filter := domain.BookingFilter{
		Search: r.URL.Query().Get("search"),
		SortBy: r.URL.Query().Get("sort"),
	}
	if from, err := time.Parse(time.RFC3339, r.URL.Query().Get("from")); err == nil {
		filter.From = &from
	}
	if to, err := time.Parse(time.RFC3339, r.URL.Query().Get("to")); err == nil {
		filter.To = &to
	}
	if cid, err := uuid.Parse(r.URL.Query().Get("consumer_id")); err == nil {
		filter.ConsumerID = &cid
	}
	filter.Offset, filter.Limit = queryPaging(r)
	return filter
}

func (h *Handlers) ListBookingsForOwner(w http.ResponseWriter, r *http.Request) {
	total, views, err := h.bookings.ListForOwner(r.Context(), bookingFilterFromQuery(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pageResponse{Total: total, Items: toBookingResponses(views)})
}

func (h *Handlers) ListBookingsForConsumer(w http.ResponseWriter, r *http.Request) {
	consumerID, err := queryID(r, "consumer_id")
	if err != nil {
		writeError(w, err)
		return
	}
	total, views, err := h.bookings.ListForConsumer(r.Context(), bookingFilterFromQuery(r), consumerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pageResponse{Total: total, Items: toBookingResponses(views)})
}

func (h *Handlers) SetTaxRate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Rate      float64   `json:"rate"`
		ValidFrom time.Time `json:"valid_from"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.ValidFrom.IsZero() {
		req.ValidFrom = time.Now().UTC()
	}

	tr, err := h.orders.SetTaxRate(r.Context(), req.Rate, req.ValidFrom)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"id":         tr.ID.String(),
		"rate":       tr.Rate,
		"valid_from": tr.ValidFrom.Format(time.RFC3339),
	})
}

func (h *Handlers) GetCurrentOrder(w http.ResponseWriter, r *http.Request) {
	consumerID, err := queryID(r, "consumer_id")
	if err != nil {
		writeError(w, err)
		return
	}
	order, err := h.orders.GetOrCreateCurrentOrder(r.Context(), consumerID)
	if err != nil {
		writeError(w, err)
		return
	}
	total, err := h.orders.Total(r.Context(), order.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	resp := struct {
		orderResponse
		Total float64 `json:"total"`
	}{toOrderResponse(order), total}
	writeJSON(w, http.StatusOK, resp)
}

func orderFilterFromQuery(r *http.Request) domain.OrderFilter {
	filter := domain.OrderFilter{
		Status: r.URL.Query().Get("status"),
		Search: r.URL.Query().Get("search"),
		SortBy: r.URL.Query().Get("sort"),
	}
	if from, err := time.Parse(time.RFC3339, r.URL.Query().Get("from")); err == nil {
		filter.From = &from
	}
	if to, err := time.Parse(time.RFC3339, r.URL.Query().Get("to")); err == nil {
		filter.To = &to
	}
	filter.Offset, filter.Limit = queryPaging(r)
	return filter
}

func (h *Handlers) ListOrders(w http.ResponseWriter, r *http.Request) {
	filter := orderFilterFromQuery(r)

	var (
		total int
		found []domain.Order
		err   error
	)
	if raw := r.URL.Query().Get("consumer_id"); raw != "" {
		consumerID, parseErr := uuid.Parse(raw)
		if parseErr != nil {
			writeError(w, domain.ErrInvalidInput)
			return
		}
		total, found, err = h.orders.ListForConsumer(r.Context(), filter, consumerID)
	} else {
		total, found, err = h.orders.ListForOwner(r.Context(), filter)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pageResponse{Total: total, Items: toOrderResponses(found)})
}

func (h *Handlers) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	orderID, err := parseID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var req struct {
		ConsumerID uuid.UUID `json:"consumer_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	session, err := h.payments.CreateCheckout(r.Context(), orderID, req.ConsumerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"session_id": session.ID,
		"url":        session.URL,
		"expires_at": session.ExpiresAt.Format(time.RFC3339),
	})
}

// PaymentWebhook receives signed gateway events. The body is read raw; the
// signature covers the exact bytes on the wire.
func (h *Handlers) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "unreadable body", http.StatusBadRequest)
		return
	}

	_, err = h.payments.HandleWebhook(r.Context(), payload, r.Header.Get(signatureHeader))
	if err != nil {
		if errors.Is(err, domain.ErrGateway) || errors.Is(err, domain.ErrInvalidInput) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *Handlers) Readyz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Ready"))
}

package http

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robertarktes/appointment-bookings-and-orders/internal/observability"
	"github.com/robertarktes/appointment-bookings-and-orders/internal/rateLimit"
)

func SetupRouter(h *Handlers, logger observability.Logger, rl *rateLimit.RateLimiter) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(LoggerMiddleware(logger))
	r.Use(TracingMiddleware)
	r.Use(MetricsMiddleware)
	r.Use(RateLimitMiddleware(rl))

	r.Post("/v1/slots", h.CreateSlot)
	r.Patch("/v1/slots/{id}", h.UpdateSlot)
	r.Delete("/v1/slots/{id}", h.DeleteSlot)
	r.Get("/v1/slots", h.ListSlotsByOwner)
	r.Get("/v1/slots/available", h.ListAvailableSlots)

	r.Post("/v1/bookings", h.CreateBooking)
	r.Delete("/v1/bookings/slot/{slotId}", h.CancelBookingByConsumer)
	r.Delete("/v1/bookings/slot/{slotId}/force", h.CancelBookingByOwner)
	r.Get("/v1/bookings", h.ListBookingsForOwner)
	r.Get("/v1/bookings/consumer", h.ListBookingsForConsumer)

	r.Post("/v1/tax-rates", h.SetTaxRate)

	r.Get("/v1/orders/current", h.GetCurrentOrder)
	r.Get("/v1/orders", h.ListOrders)
	r.Post("/v1/orders/{id}/checkout", h.CreateCheckout)

	r.Post("/v1/payments/webhook", h.PaymentWebhook)

	r.Get("/v1/healthz", h.Healthz)
	r.Get("/v1/readyz", h.Readyz)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	return r
}

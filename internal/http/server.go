package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type Server struct {
	Router *chi.Mux
}

func NewServer(handler *Handler) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)
	r.Use(cors)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/checkout", func(r chi.Router) {
		r.Post("/", handler.Checkout)
		r.Get("/{sessionId}", handler.GetSession)
		r.Post("/{sessionId}/invoices/{invoiceId}/pay", handler.PayInvoice)
		r.Post("/{sessionId}/payall", handler.PayAll)
	})

	r.Route("/orders", func(r chi.Router) {
		r.Get("/{orderId}", handler.GetOrder)
		r.Post("/{orderId}/status", handler.UpdateOrderStatus)
		r.Post("/{orderId}/ship", handler.MarkShipped)
	})

	return &Server{Router: r}
}

package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type Handlers struct {
	Session  *SessionHandler
	Tabs     *TabHandler
	Checkout *CheckoutHandler
	Catalog  *CatalogHandler
	Sales    *SalesHandler
}

func NewRouter(hs Handlers, tokens TokenValidator, requestTimeout time.Duration) chi.Router {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestIDMiddleware)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(middleware.Compress(5))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(AuthMiddleware(tokens))
		r.Use(RequireTill)

		r.Route("/session", func(r chi.Router) {
			r.Get("/", hs.Session.GetSession)
			r.Post("/payment-method", hs.Session.SelectPaymentMethod)
			r.Post("/price-type", hs.Session.SelectPriceType)
			r.Get("/customer", hs.Session.GetCustomerDraft)
			r.Put("/customer", hs.Session.SaveCustomerDraft)
		})

		r.Route("/tabs", func(r chi.Router) {
			r.Post("/", hs.Tabs.CreateTab)
			r.Route("/{tab_id}", func(r chi.Router) {
				r.Delete("/", hs.Tabs.CloseTab)
				r.Post("/activate", hs.Tabs.ActivateTab)
				r.Post("/items", hs.Tabs.AddItem)
				r.Put("/items/{product_id}", hs.Tabs.UpdateQuantity)
				r.Delete("/items/{product_id}", hs.Tabs.RemoveItem)
				r.Put("/discount", hs.Tabs.SetDiscount)
				r.Post("/clear", hs.Tabs.ClearTab)
				r.Get("/totals", hs.Tabs.Totals)
				r.Post("/checkout", hs.Checkout.InitiateCheckout)
				r.Delete("/checkout", hs.Checkout.CancelCheckout)
				r.Post("/settle", hs.Checkout.Settle)
			})
		})

		r.Get("/products", hs.Catalog.ListProducts)
		r.Get("/categories", hs.Catalog.ListCategories)

		r.Route("/sales", func(r chi.Router) {
			r.Get("/", hs.Sales.ListSales)
			r.Get("/daily", hs.Sales.DailyTotals)
			r.Get("/{sale_id}/receipt", hs.Sales.ReceiptHTML)
			r.Get("/{sale_id}/receipt.pdf", hs.Sales.ReceiptPDF)
		})
	})

	return r
}

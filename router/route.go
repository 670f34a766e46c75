// Package router wires the HTTP surface. Importing it pulls in every backend
// adapter so each registers itself with the gateway registry.
package router

import (
	"github.com/go-chi/chi/v5"

	"github.com/teyzer/paykit/handler"

	_ "github.com/teyzer/paykit/gateway/dummy"
	_ "github.com/teyzer/paykit/gateway/keyware"
	_ "github.com/teyzer/paykit/gateway/mollie"
	_ "github.com/teyzer/paykit/gateway/paybox"
	_ "github.com/teyzer/paykit/gateway/payfip"
	_ "github.com/teyzer/paykit/gateway/saga"
	_ "github.com/teyzer/paykit/gateway/sips"
	_ "github.com/teyzer/paykit/gateway/stripe"
	_ "github.com/teyzer/paykit/gateway/systempay"
	_ "github.com/teyzer/paykit/gateway/tipi"
)

// Routes mounts the API routes
func Routes(r chi.Router, payments *handler.PaymentHandler, backends *handler.BackendHandler) {
	r.Route("/backends", func(r chi.Router) {
		r.Get("/", backends.ListBackends)
		r.Post("/{backend}", backends.ConfigureBackend)
		r.Delete("/{backend}", backends.RemoveBackend)
	})

	r.Route("/payments", func(r chi.Router) {
		r.Post("/", payments.CreatePayment)
		r.Post("/{backend}", payments.CreatePayment)
		r.Get("/{backend}/{handle}", payments.PaymentStatus)
		r.Post("/{backend}/cancel", payments.CancelPayment)
		r.Post("/{backend}/validate", payments.ValidatePayment)
	})
}

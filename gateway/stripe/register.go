package stripe

import "github.com/teyzer/paykit/gateway"

// Register the Stripe backend with the gateway registry
func init() {
	gateway.Register("stripe", New)
}

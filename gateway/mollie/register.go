package mollie

import "github.com/teyzer/paykit/gateway"

// Register the Mollie backend with the gateway registry
func init() {
	gateway.Register("mollie", New)
}

package payfip

import "github.com/teyzer/paykit/gateway"

// Register the PayFiP backend with the gateway registry
func init() {
	gateway.Register("payfip", New)
}

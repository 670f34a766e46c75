package paybox

import "github.com/teyzer/paykit/gateway"

// Register the Paybox backend with the gateway registry
func init() {
	gateway.Register("paybox", New)
}

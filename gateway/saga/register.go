package saga

import "github.com/teyzer/paykit/gateway"

// Register the SAGA backend with the gateway registry
func init() {
	gateway.Register("saga", New)
}

package tipi

import "github.com/teyzer/paykit/gateway"

// Register the TIPI backend with the gateway registry
func init() {
	gateway.Register("tipi", New)
}

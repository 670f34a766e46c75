package keyware

import "github.com/teyzer/paykit/gateway"

// Register the Keyware backend with the gateway registry
func init() {
	gateway.Register("keyware", New)
}

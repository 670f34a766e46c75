package sips

import "github.com/teyzer/paykit/gateway"

// Register the SIPS backend with the gateway registry
func init() {
	gateway.Register("sips", New)
}

package dummy

import "github.com/teyzer/paykit/gateway"

// Register the dummy backend with the gateway registry
func init() {
	gateway.Register("dummy", New)
}

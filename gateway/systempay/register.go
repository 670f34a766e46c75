package systempay

import "github.com/teyzer/paykit/gateway"

// Register the SystemPay backend with the gateway registry
func init() {
	gateway.Register("systempay", New)
}

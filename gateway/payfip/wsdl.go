package payfip

import (
	_ "embed"
	"encoding/xml"
	"os"
	"strings"

	"github.com/teyzer/paykit/gateway"
)

// A cached copy of the PayFiP WSDL ships with the package so the default
// endpoint resolves without any network fetch. The wsdl_url option may point
// to a local file or an http(s) URL to override it.
//
//go:embed payfip.wsdl
var embeddedWSDL []byte

type wsdlDocument struct {
	XMLName  xml.Name `xml:"definitions"`
	Services []struct {
		Name  string `xml:"name,attr"`
		Ports []struct {
			Address struct {
				Location string `xml:"location,attr"`
			} `xml:"address"`
		} `xml:"port"`
	} `xml:"service"`
}

// resolveEndpoint extracts the soap:address location of the first service
// port from a WSDL document.
func resolveEndpoint(wsdl []byte) (string, error) {
	var doc wsdlDocument
	if err := xml.Unmarshal(wsdl, &doc); err != nil {
		return "", &gateway.ConfigurationError{Backend: "payfip", Message: "malformed WSDL: " + err.Error()}
	}
	for _, service := range doc.Services {
		for _, port := range service.Ports {
			if port.Address.Location != "" {
				return port.Address.Location, nil
			}
		}
	}
	return "", &gateway.ConfigurationError{Backend: "payfip", Message: "no soap:address found in WSDL"}
}

// loadWSDL returns the WSDL bytes for the given reference: empty means the
// embedded copy, a file path or file:// reference reads from disk.
func loadWSDL(ref string) ([]byte, error) {
	if ref == "" {
		return embeddedWSDL, nil
	}
	path := strings.TrimPrefix(ref, "file://")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &gateway.ConfigurationError{Backend: "payfip", Message: "cannot read WSDL file: " + err.Error()}
	}
	return data, nil
}

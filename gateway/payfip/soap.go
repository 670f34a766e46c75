package payfip

import (
	"context"
	"encoding/xml"

	"github.com/teyzer/paykit/gateway"
)

// The PayFiP web service speaks document/literal SOAP 1.1. The envelope is
// small enough that typed structs beat a WSDL code generator.

const serviceNamespace = "http://securite.service.tipi.budget.minefi.gouv.fr/services/securite"

type soapEnvelope struct {
	XMLName xml.Name `xml:"soapenv:Envelope"`
	NSEnv   string   `xml:"xmlns:soapenv,attr"`
	NSSer   string   `xml:"xmlns:ser,attr"`
	Body    soapBody `xml:"soapenv:Body"`
}

type soapBody struct {
	Content any
}

type creerPaiementSecurise struct {
	XMLName xml.Name  `xml:"ser:creerPaiementSecurise"`
	Arg0    creerArgs `xml:"arg0"`
}

type creerArgs struct {
	Exer        string `xml:"exer"`
	Mel         string `xml:"mel"`
	Montant     string `xml:"montant"`
	Numcli      string `xml:"numcli"`
	Objet       string `xml:"objet,omitempty"`
	Refdet      string `xml:"refdet"`
	Saisie      string `xml:"saisie"`
	URLNotif    string `xml:"urlnotif"`
	URLRedirect string `xml:"urlredirect"`
}

type creerResponse struct {
	XMLName xml.Name `xml:"creerPaiementSecuriseResponse"`
	Return  struct {
		IdOp string `xml:"idOp"`
	} `xml:"return"`
}

type recupererDetail struct {
	XMLName xml.Name `xml:"ser:recupererDetailPaiementSecurise"`
	Arg0    struct {
		IdOp string `xml:"idOp"`
	} `xml:"arg0"`
}

type detailResponse struct {
	XMLName xml.Name `xml:"recupererDetailPaiementSecuriseResponse"`
	Return  struct {
		Dattrans   string `xml:"dattrans"`
		Exer       string `xml:"exer"`
		Heurtrans  string `xml:"heurtrans"`
		IdOp       string `xml:"idOp"`
		Mel        string `xml:"mel"`
		Montant    string `xml:"montant"`
		Numauto    string `xml:"numauto"`
		Numcli     string `xml:"numcli"`
		Objet      string `xml:"objet"`
		Refdet     string `xml:"refdet"`
		Resultrans string `xml:"resultrans"`
		Saisie     string `xml:"saisie"`
	} `xml:"return"`
}

type soapFault struct {
	Code   string `xml:"faultcode"`
	String string `xml:"faultstring"`
	Detail struct {
		Fonctionnelle struct {
			Code       string `xml:"code"`
			Libelle    string `xml:"libelle"`
			Descriptif string `xml:"descriptif"`
		} `xml:"FonctionnelleErreur"`
	} `xml:"detail"`
}

type responseEnvelope struct {
	XMLName xml.Name `xml:"Envelope"`
	Body    struct {
		Fault *soapFault `xml:"Fault"`
		Inner []byte     `xml:",innerxml"`
	} `xml:"Body"`
}

// call posts one SOAP operation and decodes the body into result. A SOAP
// fault is returned as (fault, nil) so the caller can translate functional
// faults; transport errors come back as ProtocolError.
func call(ctx context.Context, client *gateway.HTTPClient, endpoint string, content, result any) (*soapFault, error) {
	envelope := soapEnvelope{
		NSEnv: "http://schemas.xmlsoap.org/soap/envelope/",
		NSSer: serviceNamespace,
		Body:  soapBody{Content: content},
	}
	payload, err := xml.Marshal(envelope)
	if err != nil {
		return nil, &gateway.ProtocolError{Backend: "payfip", Method: "POST", Endpoint: endpoint, Message: "cannot marshal SOAP request", Err: err}
	}

	resp, err := client.SendXML(ctx, &gateway.HTTPRequest{
		Method:   "POST",
		Endpoint: endpoint,
		Headers:  map[string]string{"SOAPAction": ""},
		Body:     append([]byte(xml.Header), payload...),
	})
	// a SOAP fault travels as HTTP 500 with a parsable body
	if err != nil && (resp == nil || len(resp.Body) == 0) {
		return nil, err
	}

	var decoded responseEnvelope
	if err := xml.Unmarshal(resp.Body, &decoded); err != nil {
		return nil, &gateway.ProtocolError{Backend: "payfip", Method: "POST", Endpoint: endpoint, Message: "malformed SOAP response", Err: err}
	}
	if decoded.Body.Fault != nil {
		return decoded.Body.Fault, nil
	}
	if err := xml.Unmarshal(decoded.Body.Inner, result); err != nil {
		return nil, &gateway.ProtocolError{Backend: "payfip", Method: "POST", Endpoint: endpoint, Message: "malformed SOAP body", Err: err}
	}
	return nil, nil
}

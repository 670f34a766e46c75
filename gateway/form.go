package gateway

import (
	"html/template"
	"strings"
)

var formTemplate = template.Must(template.New("payment-form").Parse(
	`<form method="{{.Method}}" action="{{.URL}}" id="payment-form">
{{- range .Fields}}
  <input type="hidden" name="{{.Name}}" value="{{.Value}}"/>
{{- end}}
  <input type="submit" value="Pay"/>
</form>
`))

// RenderHTML renders the order as a self-contained HTML form with hidden
// inputs, preserving field order. Redirect orders render as an empty string.
func (o *PaymentOrder) RenderHTML() (string, error) {
	if o.Kind == KindRedirect {
		return "", nil
	}
	var buf strings.Builder
	if err := formTemplate.Execute(&buf, o); err != nil {
		return "", err
	}
	return buf.String(), nil
}

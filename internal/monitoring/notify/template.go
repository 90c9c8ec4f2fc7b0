package notify

import (
	"bytes"
	"errors"
	"strings"
	"text/template"

	monitoring "gateway-monitor/internal/monitoring/domain"
)

const DefaultTemplate = `{{.StatusEmoji}} Gateway: {{.GatewayName}}
ID: {{.GatewayID}}
Status: {{.StatusText}}
Last data point: {{.LastSeen}}
{{- if .Offline}}
⚠️ Gateway has not reported data in over {{.Threshold}} minutes!
{{- end}}
{{- if .DERs}}

DER Information:
{{- range .DERs}}
• Name: {{.Name}}
{{- if .Make}}
• Make: {{.Make}}
{{- end}}
{{- if .NominalPower}}
• Nominal Power: {{.NominalPower}}
{{- end}}
{{- if .CurrentPower}}
• Current Power: {{.CurrentPower}}
{{- end}}
{{- end}}
{{- end}}`

// templateData provides fields for rendering one transition.
type templateData struct {
	StatusEmoji string
	StatusText  string
	GatewayName string
	GatewayID   string
	LastSeen    string
	Threshold   int
	Offline     bool
	DERs        []templateDER
}

type templateDER struct {
	Name         string
	Make         string
	NominalPower string
	CurrentPower string
}

// PowerFormatter renders watt values for display.
type PowerFormatter func(watts float64) string

// Template renders transition events into one message per recipient batch.
type Template struct {
	tpl    *template.Template
	format PowerFormatter
}

// NewTemplate parses a notification template, falling back to DefaultTemplate.
func NewTemplate(tpl string, format PowerFormatter) (*Template, error) {
	if tpl == "" {
		tpl = DefaultTemplate
	}
	if format == nil {
		return nil, errors.New("notify template: nil power formatter")
	}
	parsed, err := template.New("gateway-notification").Parse(tpl)
	if err != nil {
		return nil, err
	}
	return &Template{tpl: parsed, format: format}, nil
}

// Render joins the rendered sections of a user's events, in the order given,
// into one message.
func (t *Template) Render(events []monitoring.TransitionEvent) (string, error) {
	if t == nil || t.tpl == nil {
		return "", errors.New("notify template: nil")
	}
	if len(events) == 0 {
		return "", errors.New("notify template: no events")
	}
	sections := make([]string, 0, len(events))
	for _, event := range events {
		var buf bytes.Buffer
		if err := t.tpl.Execute(&buf, t.data(event)); err != nil {
			return "", err
		}
		sections = append(sections, buf.String())
	}
	return strings.Join(sections, "\n\n"), nil
}

func (t *Template) data(event monitoring.TransitionEvent) templateData {
	eval := event.Evaluation
	data := templateData{
		StatusEmoji: "🟢",
		StatusText:  "ONLINE",
		GatewayName: eval.Gateway.Name,
		GatewayID:   eval.Gateway.ID,
		LastSeen:    eval.LastSeenText,
		Threshold:   eval.ThresholdMinutes,
	}
	if data.GatewayName == "" {
		data.GatewayName = event.GatewayID
	}
	if data.GatewayID == "" {
		data.GatewayID = event.GatewayID
	}
	if event.Current == monitoring.StatusOffline {
		data.StatusEmoji = "🔴"
		data.StatusText = "OFFLINE"
		data.Offline = true
	}
	for _, der := range eval.Gateway.DERs {
		item := templateDER{Name: der.Name, Make: der.Make}
		if item.Name == "" {
			item.Name = der.Serial
		}
		if der.NominalPower > 0 {
			item.NominalPower = t.format(float64(der.NominalPower))
		}
		if der.LatestPower > 0 {
			item.CurrentPower = t.format(der.LatestPower)
		}
		data.DERs = append(data.DERs, item)
	}
	return data
}

// Package templates renders the plain-text emails sent to candidates.
package templates

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

// Kinds of message, one per consumed event type.
const (
	KindBookingConfirmed = "booking_confirmed"
	KindBookingCancelled = "booking_cancelled"
)

// Data is the view handed to the templates.
type Data struct {
	CandidateName string
	CompanyName   string
	Date          string
	StartTime     string
	EndTime       string
	InterviewType string
	Reason        string
	Released      int
}

type Message struct {
	Subject string
	Body    string
}

type entry struct {
	subject *template.Template
	body    *template.Template
}

var registry = map[string]entry{
	KindBookingConfirmed: {
		subject: template.Must(template.New("confirmed.subject").Parse(
			`Interview confirmed with {{.CompanyName}} on {{.Date}}`)),
		body: template.Must(template.New("confirmed.body").Parse(`Hello {{.CandidateName}},

Your {{.InterviewType}} interview with {{.CompanyName}} is confirmed for {{.Date}}, {{.StartTime}}-{{.EndTime}}.
{{- if eq .InterviewType "onsite"}}

Your other slots on that day are on hold until this interview is done or cancelled.
{{- end}}

Good luck!
`)),
	},
	KindBookingCancelled: {
		subject: template.Must(template.New("cancelled.subject").Parse(
			`Interview with {{.CompanyName}} on {{.Date}} cancelled`)),
		body: template.Must(template.New("cancelled.body").Parse(`Hello {{.CandidateName}},

Your {{.InterviewType}} interview with {{.CompanyName}} on {{.Date}}, {{.StartTime}}-{{.EndTime}} has been cancelled.
{{- if .Reason}}
Reason: {{.Reason}}
{{- end}}
{{- if .Released}}

{{.Released}} other slot(s) on that day are open for booking again.
{{- end}}
`)),
	},
}

// Render builds the message for kind.
func Render(kind string, data Data) (Message, error) {
	e, ok := registry[kind]
	if !ok {
		return Message{}, fmt.Errorf("unknown template %q", kind)
	}
	if strings.TrimSpace(data.CandidateName) == "" {
		data.CandidateName = "there"
	}
	var subject, body bytes.Buffer
	if err := e.subject.Execute(&subject, data); err != nil {
		return Message{}, fmt.Errorf("render %s subject: %w", kind, err)
	}
	if err := e.body.Execute(&body, data); err != nil {
		return Message{}, fmt.Errorf("render %s body: %w", kind, err)
	}
	return Message{
		Subject: strings.TrimSpace(subject.String()),
		Body:    body.String(),
	}, nil
}

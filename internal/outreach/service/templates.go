package service

import (
	"bytes"
	"fmt"
	"text/template"
)

// TemplateData is what the sequence templates can reference.
type TemplateData struct {
	FirstName   string
	CompanyName string
}

type messageTemplate struct {
	subject *template.Template
	body    *template.Template
}

// sequenceTemplates holds one message per sequence step. A sequence longer
// than the template set reuses the final follow-up.
var sequenceTemplates = mustTemplates([]struct{ subject, body string }{
	{
		"Quick question about hiring at {{.CompanyName}}",
		"Hi {{.FirstName}},\n\n" +
			"I noticed {{.CompanyName}} has several roles open at the moment. " +
			"When teams grow that fast, finding the right people tends to become " +
			"the bottleneck.\n\n" +
			"We help companies like yours fill technical roles in weeks instead " +
			"of months. Would you be open to a short call to see if we can help?\n\n" +
			"Best regards",
	},
	{
		"Re: hiring at {{.CompanyName}}",
		"Hi {{.FirstName}},\n\n" +
			"Just floating my previous note back to the top of your inbox. " +
			"I understand things get busy, especially while you are hiring.\n\n" +
			"If finding candidates is taking longer than you would like, I would " +
			"be happy to share how we approach it. Fifteen minutes is all I need.\n\n" +
			"Best regards",
	},
	{
		"A thought for {{.CompanyName}}",
		"Hi {{.FirstName}},\n\n" +
			"Most teams we work with were losing three to four weeks per hire " +
			"before we stepped in. That adds up quickly across multiple roles.\n\n" +
			"If that sounds familiar, let me know and I will send over a couple " +
			"of concrete examples of how we shortened that.\n\n" +
			"Best regards",
	},
	{
		"Closing the loop",
		"Hi {{.FirstName}},\n\n" +
			"I will stop nudging after this one. If hiring support ever becomes " +
			"relevant for {{.CompanyName}}, my inbox is open.\n\n" +
			"Wishing you and the team all the best.\n\n" +
			"Best regards",
	},
})

func mustTemplates(raw []struct{ subject, body string }) []messageTemplate {
	parsed := make([]messageTemplate, 0, len(raw))
	for i, r := range raw {
		parsed = append(parsed, messageTemplate{
			subject: template.Must(template.New(fmt.Sprintf("subject_%d", i+1)).Parse(r.subject)),
			body:    template.Must(template.New(fmt.Sprintf("body_%d", i+1)).Parse(r.body)),
		})
	}
	return parsed
}

// renderStep renders the subject and body for a 1-based sequence step.
func renderStep(step int, data TemplateData) (string, string, error) {
	idx := step - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sequenceTemplates) {
		idx = len(sequenceTemplates) - 1
	}
	tmpl := sequenceTemplates[idx]

	var subject, body bytes.Buffer
	if err := tmpl.subject.Execute(&subject, data); err != nil {
		return "", "", fmt.Errorf("render subject for step %d: %w", step, err)
	}
	if err := tmpl.body.Execute(&body, data); err != nil {
		return "", "", fmt.Errorf("render body for step %d: %w", step, err)
	}
	return subject.String(), body.String(), nil
}

// internal/workers/demande/notify-demande-status/templates.go
package notifydemandestatus

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	texttemplate "text/template"

	"github.com/ellaouzi/fos-app-sub002/internal/models"
)

var defaultTemplates = []models.NotificationTemplate{
	{
		Statut:  models.StatutSoumise,
		Subject: "Demande n°{{.DemandeID}} reçue",
		Body:    "Bonjour {{.Agent}},\n\nVotre demande{{with .Prestation}} « {{.}} »{{end}} a bien été enregistrée sous le numéro {{.DemandeID}}.",
	},
	{
		Statut:  models.StatutEnCours,
		Subject: "Demande n°{{.DemandeID}} en cours de traitement",
		Body:    "Bonjour {{.Agent}},\n\nVotre demande{{with .Prestation}} « {{.}} »{{end}} est en cours de traitement.",
	},
	{
		Statut:  models.StatutAcceptee,
		Subject: "Demande n°{{.DemandeID}} acceptée",
		Body:    "Bonjour {{.Agent}},\n\nVotre demande{{with .Prestation}} « {{.}} »{{end}} a été acceptée.{{with .Commentaire}}\n\n{{.}}{{end}}",
	},
	{
		Statut:  models.StatutRefusee,
		Subject: "Demande n°{{.DemandeID}} refusée",
		Body:    "Bonjour {{.Agent}},\n\nVotre demande{{with .Prestation}} « {{.}} »{{end}} n'a pas été retenue.{{with .Commentaire}}\n\nMotif : {{.}}{{end}}",
	},
	{
		Statut:  models.StatutTerminee,
		Subject: "Demande n°{{.DemandeID}} clôturée",
		Body:    "Bonjour {{.Agent}},\n\nVotre demande{{with .Prestation}} « {{.}} »{{end}} est clôturée.",
	},
}

var htmlBody = template.Must(template.New("body").Parse(
	`<html><body>{{range .}}<p>{{.}}</p>{{end}}</body></html>`))

type templateData struct {
	DemandeID   int64
	Agent       string
	Prestation  string
	Commentaire string
}

type compiled struct {
	subject *texttemplate.Template
	body    *texttemplate.Template
}

type templateSet map[string]compiled

func compileTemplates(defs []models.NotificationTemplate) (templateSet, error) {
	set := make(templateSet, len(defs))
	for _, d := range defs {
		subject, err := texttemplate.New(d.Statut + ".subject").Parse(d.Subject)
		if err != nil {
			return nil, fmt.Errorf("template %s subject: %w", d.Statut, err)
		}
		body, err := texttemplate.New(d.Statut + ".body").Parse(d.Body)
		if err != nil {
			return nil, fmt.Errorf("template %s body: %w", d.Statut, err)
		}
		set[d.Statut] = compiled{subject: subject, body: body}
	}
	return set, nil
}

type message struct {
	Subject string
	Text    string
	HTML    string
}

func (s templateSet) render(statut string, data templateData) (*message, error) {
	c, ok := s[statut]
	if !ok {
		return nil, fmt.Errorf("no notification template for %s", statut)
	}
	var subject, text, html bytes.Buffer
	if err := c.subject.Execute(&subject, data); err != nil {
		return nil, err
	}
	if err := c.body.Execute(&text, data); err != nil {
		return nil, err
	}
	if err := htmlBody.Execute(&html, strings.Split(text.String(), "\n\n")); err != nil {
		return nil, err
	}
	return &message{Subject: subject.String(), Text: text.String(), HTML: html.String()}, nil
}

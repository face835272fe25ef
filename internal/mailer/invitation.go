package mailer

import (
	"fmt"
	"html/template"
	"strings"
)

// invitationTemplate is the survey invitation body: a greeting, a CTA button,
// and a plain-text fallback of the same link for clients that strip buttons.
var invitationTemplate = template.Must(template.New("invitation").Parse(`<!DOCTYPE html>
<html>
  <body style="font-family: Arial, sans-serif; line-height: 1.6; max-width: 600px; margin: 0 auto; padding: 20px;">
    <div style="background-color: #f8f9fa; padding: 20px; border-radius: 5px;">
      <h2 style="color: #2c3e50; margin-bottom: 20px;">Your Opinion Matters</h2>
      {{if .FirstName}}<p>Hi {{.FirstName}},</p>{{else}}<p>Hello,</p>{{end}}
      <p>We'd love to hear your thoughts in our latest survey: <strong>{{.Title}}</strong></p>
      <div style="margin: 30px 0;">
        <a href="{{.URL}}"
           style="background-color: #3498db; color: white; padding: 12px 25px; text-decoration: none; border-radius: 5px; display: inline-block;">
          Take the Survey
        </a>
      </div>
      <p>Thank you for your valuable feedback!</p>
      <hr style="border: 1px solid #eee; margin: 20px 0;">
      <p style="color: #7f8c8d; font-size: 12px;">
        If you're having trouble with the button above, copy and paste this link into your browser:
        <br>{{.URL}}
      </p>
    </div>
  </body>
</html>`))

// Invitation renders the invitation HTML. firstName may be empty, in which
// case a neutral greeting is used.
func Invitation(firstName, title, url string) (string, error) {
	var sb strings.Builder
	data := struct {
		FirstName string
		Title     string
		URL       string
	}{firstName, title, url}
	if err := invitationTemplate.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("executing invitation template: %w", err)
	}
	return sb.String(), nil
}

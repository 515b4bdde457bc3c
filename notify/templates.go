package notify

import (
	htmltemplate "html/template"
	texttemplate "text/template"
)

// Welcome is the data rendered into the welcome templates.
type Welcome struct {
	AppName      string
	Name         string
	DocsURL      string
	CommunityURL string
	DashboardURL string
}

var welcomeText = texttemplate.Must(texttemplate.New("welcome.txt").Parse(`Welcome to {{.AppName}}, {{.Name}}!

Thank you for joining us! We're excited to have you on board.
{{if .DocsURL}}
To help you get started, check out our getting started guide:
{{.DocsURL}}
{{end}}{{if .CommunityURL}}
Have questions or want to connect with other users? Join our community:
{{.CommunityURL}}
{{end}}{{if .DashboardURL}}
Ready to begin? Head to your dashboard:
{{.DashboardURL}}
{{end}}
We're looking forward to helping you achieve your goals!

Best regards,
The {{.AppName}} Team
`))

var welcomeHTML = htmltemplate.Must(htmltemplate.New("welcome.html").Parse(`<html>
<head>
<style>
  body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
  .container { max-width: 600px; margin: 0 auto; padding: 20px; }
  h1 { color: #353535; }
  .cta-button { display: inline-block; padding: 10px 20px; background-color: #007bff;
    color: #ffffff !important; text-decoration: none; border-radius: 5px; margin: 10px 0; }
</style>
</head>
<body>
<div class="container">
  <h1>Welcome to {{.AppName}}, {{.Name}}!</h1>
  <p>Thank you for joining us! We're excited to have you on board.</p>
  {{- if .DocsURL}}
  <p>To help you get started, check out our getting started guide:</p>
  <p><a href="{{.DocsURL}}" class="cta-button">View Documentation</a></p>
  {{- end}}
  {{- if .CommunityURL}}
  <p>Have questions or want to connect with other users? Join our community:</p>
  <p><a href="{{.CommunityURL}}" class="cta-button">Join Our Community</a></p>
  {{- end}}
  {{- if .DashboardURL}}
  <p>Ready to begin? Head to your dashboard:</p>
  <p><a href="{{.DashboardURL}}" class="cta-button">Go to Dashboard</a></p>
  {{- end}}
  <p>We're looking forward to helping you achieve your goals!</p>
  <p>Best regards,<br>The {{.AppName}} Team</p>
</div>
</body>
</html>
`))

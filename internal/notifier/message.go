package notifier

import (
	"strings"
	"text/template"

	"user-tracker/pkg/models"
)

var linesTmpl = template.Must(template.New("lines").Parse(
	`{{range .Items}}* {{$.BaseURL}}{{.ID}}  {{.Tags}}
{{end}}`))

var bodyTmpl = template.Must(template.New("body").Parse(`The following {{.Alert.Objects}} related to user {{.Alert.User}}
were found to have activity since UTC {{.Alert.SinceUTC}}:

{{.Lines}}
`))

// Lines renders one "* <url><id>  <tags>" line per alert item
func Lines(alert models.Alert) (string, error) {
	var b strings.Builder
	if err := linesTmpl.Execute(&b, alert); err != nil {
		return "", err
	}
	return b.String(), nil
}

// Subject names the tracker and the user
func Subject(alert models.Alert) string {
	return alert.Display + " User Tracking Results - " + alert.User
}

// Body renders the email text for an alert
func Body(alert models.Alert) (string, error) {
	lines, err := Lines(alert)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	err = bodyTmpl.Execute(&b, struct {
		Alert models.Alert
		Lines string
	}{alert, lines})
	if err != nil {
		return "", err
	}
	return b.String(), nil
}

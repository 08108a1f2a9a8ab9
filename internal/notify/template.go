package notify

import (
	"html"
	"net/url"
	"strconv"
	"strings"

	"github.com/mic-havock/ridb-backend/internal/model"
)

// Body is the rendered content of one email
type Body struct {
	Text string
	HTML string
}

// Template is a subject plus text and HTML bodies with {placeholder} fields
type Template struct {
	Subject string
	Text    string
	HTML    string
}

// Success is sent when a watched campsite becomes reservable
var Success = Template{
	Subject: "{campsite_name} {campsite_number} is Available for Your Dates! 🏕️",
	Text: `Great news! The campsite you're interested in is now available!

Campsite Details:
- Campground: {campsite_name}
- Campsite: {campsite_number}
- Dates Available: {start_date} through {end_date}

Book now at: https://www.recreation.gov/camping/campsites/{campsite_id}

Don't wait - available campsites can be booked quickly!

Happy Camping! 🏕️

---
To stop receiving these alerts, click here:
{base_url}/api/reservations/disable-monitoring/{reservation_id}/{email_address}`,
	HTML: `<!DOCTYPE html>
<html lang="en">
<body style="font-family: Arial, sans-serif; color: #333; max-width: 600px; margin: 0 auto;">
  <h2 style="color: #2c7744;">Great news! {campsite_name} {campsite_number} is available!</h2>
  <ul>
    <li>Campground: {campsite_name}</li>
    <li>Campsite: {campsite_number}</li>
    <li>Dates Available: {start_date} through {end_date}</li>
  </ul>
  <p><a href="https://www.recreation.gov/camping/campsites/{campsite_id}">Book campsite {campsite_id} on recreation.gov</a></p>
  <p>Don't wait - available campsites can be booked quickly!</p>
  <hr>
  <p style="font-size: 12px;"><a href="{base_url}/api/reservations/disable-monitoring/{reservation_id}/{email_address}">Stop receiving these alerts</a></p>
</body>
</html>`,
}

// Fields returns the placeholder values for a watch. The email address is
// path-escaped because it only ever appears inside the disable link.
func Fields(w model.Watch, baseURL string) map[string]string {
	return map[string]string{
		"campsite_name":   w.CampsiteName,
		"campsite_number": w.CampsiteNumber,
		"campsite_id":     w.CampsiteID,
		"start_date":      model.FormatDate(w.StartDate),
		"end_date":        model.FormatDate(w.EndDate),
		"base_url":        strings.TrimRight(baseURL, "/"),
		"reservation_id":  strconv.FormatInt(w.ID, 10),
		"email_address":   url.PathEscape(w.EmailAddress),
	}
}

// Render substitutes every occurrence of every {key} in the template.
// Values placed in the HTML body are HTML-escaped.
func (t Template) Render(fields map[string]string) (subject string, body Body) {
	plain := replacer(fields, func(s string) string { return s })
	escaped := replacer(fields, html.EscapeString)

	return plain.Replace(t.Subject), Body{
		Text: plain.Replace(t.Text),
		HTML: escaped.Replace(t.HTML),
	}
}

func replacer(fields map[string]string, escape func(string) string) *strings.Replacer {
	pairs := make([]string, 0, len(fields)*2)
	for k, v := range fields {
		pairs = append(pairs, "{"+k+"}", escape(v))
	}
	return strings.NewReplacer(pairs...)
}

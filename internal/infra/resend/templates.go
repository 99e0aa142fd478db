package resend

import (
	"fmt"
	"html"
	"strings"

	"github.com/makerlink/sourcing-bfa-go/internal/domain"
)

func welcomeHTML(name string) string {
	return fmt.Sprintf(`<h2>Welcome, %s!</h2>
<p>Your Makerlink account is ready. You can track your sourcing requests,
message our sourcing team and manage your company profile from your dashboard.</p>
<p>— The Makerlink team</p>`, html.EscapeString(name))
}

func confirmationHTML(name string, rfi *domain.RFI) string {
	return fmt.Sprintf(`<h2>Thanks, %s — we received your request</h2>
<p>Your sourcing request for <strong>%s</strong> has been submitted. Our team
will review it and reach out with any follow-up questions.</p>
%s
<p>You can follow progress and message us from your dashboard.</p>
<p>— The Makerlink team</p>`,
		html.EscapeString(name),
		html.EscapeString(rfi.ProductName),
		rfiTableHTML(rfi),
	)
}

func notificationHTML(rfi *domain.RFI, companyName string) string {
	return fmt.Sprintf(`<h2>New RFI submitted</h2>
<p><strong>%s</strong> submitted a new sourcing request.</p>
%s
<p>RFI ID: %s</p>`,
		html.EscapeString(companyName),
		rfiTableHTML(rfi),
		html.EscapeString(rfi.ID),
	)
}

func rfiTableHTML(rfi *domain.RFI) string {
	rows := [][2]string{
		{"Product", rfi.ProductName},
		{"Requirements", rfi.Requirements},
		{"Estimated volume", strings.TrimSpace(rfi.EstimatedVolume + " " + rfi.VolumeUnit)},
		{"Guidance price", rfi.GuidancePrice},
		{"Timeline", rfi.Timeline},
		{"Destination markets", strings.Join(rfi.DestinationMarkets, ", ")},
	}

	var b strings.Builder
	b.WriteString(`<table cellpadding="4">`)
	for _, row := range rows {
		value := row[1]
		if value == "" {
			value = "Not specified"
		}
		fmt.Fprintf(&b, "<tr><td><strong>%s</strong></td><td>%s</td></tr>",
			html.EscapeString(row[0]), html.EscapeString(value))
	}
	b.WriteString("</table>")
	return b.String()
}

package digest

import (
	"fmt"
	"strings"
	"time"

	"github.com/TGO0427/synercore-import-schedule-sub009/internal/models"
)

var eventTitles = map[string]string{
	models.EventArrival:          "Arrivals",
	models.EventInspectionPassed: "Inspections passed",
	models.EventInspectionFailed: "Inspections failed",
	models.EventCapacityWarning:  "Capacity warnings",
	models.EventDelayed:          "Delays",
	models.EventStored:           "Stored in warehouse",
}

func eventTitle(eventType string) string {
	if t, ok := eventTitles[eventType]; ok {
		return t
	}
	return eventType
}

func renderDigest(period string, groups []eventGroup, top []*models.Shipment, now time.Time) (subject, htmlBody, textBody string) {
	total := 0
	for _, g := range groups {
		total += g.Count
	}

	label := "Daily"
	if period == PeriodWeekly {
		label = "Weekly"
	}
	subject = fmt.Sprintf("%s import schedule digest: %d update(s)", label, total)

	var html strings.Builder
	var text strings.Builder

	html.WriteString(fmt.Sprintf("<h2>%s digest for %s</h2>", label, now.Format("2 Jan 2006")))
	html.WriteString("<ul>")
	text.WriteString(fmt.Sprintf("%s digest for %s\n\n", label, now.Format("2 Jan 2006")))
	for _, g := range groups {
		html.WriteString(fmt.Sprintf("<li><strong>%s</strong>: %d</li>", eventTitle(g.EventType), g.Count))
		text.WriteString(fmt.Sprintf("- %s: %d\n", eventTitle(g.EventType), g.Count))
	}
	html.WriteString("</ul>")

	if len(top) > 0 {
		html.WriteString("<h3>Most active shipments</h3><ul>")
		text.WriteString("\nMost active shipments:\n")
		for _, sh := range top {
			html.WriteString(fmt.Sprintf("<li>%s / %s (%s)</li>", sh.OrderRef, sh.Supplier, sh.Status))
			text.WriteString(fmt.Sprintf("- %s / %s (%s)\n", sh.OrderRef, sh.Supplier, sh.Status))
		}
		html.WriteString("</ul>")
	}

	return subject, html.String(), text.String()
}

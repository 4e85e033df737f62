package render

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"releasedigest/internal/contracts"
	"releasedigest/internal/release"
)

// Options bounds the rendered window. Now is injectable so the header and
// footer stamps are deterministic under test.
type Options struct {
	LookbackDays int
	Now          func() time.Time
}

// Page renders the final record set as the full digest page body. The
// records are expected in the reducer's order (newest first); grouping by
// app and the lexicographic app order are applied here.
func Page(records []release.Record, options Options) string {
	lookbackDays := options.LookbackDays
	if lookbackDays <= 0 {
		lookbackDays = contracts.DefaultLookbackDays
	}
	now := time.Now
	if options.Now != nil {
		now = options.Now
	}

	current := now().UTC()
	windowStart := current.AddDate(0, 0, -lookbackDays)

	var page strings.Builder
	fmt.Fprintf(&page, "# Mobile Releases - Last %d Days\n\n", lookbackDays)
	fmt.Fprintf(&page, "## Releases for %s - %s\n\n",
		windowStart.Format("2 January"), current.Format("2 January 2006"))

	if len(records) == 0 {
		fmt.Fprintf(&page, "_No releases found in the last %d days._\n\n", lookbackDays)
	} else {
		renderApps(&page, records)
	}

	page.WriteString(rolloutProcessSection)
	fmt.Fprintf(&page, "\n---\n\n*Updated automatically: %s*\n",
		current.Format("2 January 2006 at 15:04 UTC"))
	return page.String()
}

func renderApps(page *strings.Builder, records []release.Record) {
	byApp := make(map[string][]release.Record)
	for _, record := range records {
		byApp[record.App] = append(byApp[record.App], record)
	}

	apps := make([]string, 0, len(byApp))
	for app := range byApp {
		apps = append(apps, app)
	}
	sort.Strings(apps)

	for index, app := range apps {
		appRecords := byApp[app]
		latest := appRecords[0]

		fmt.Fprintf(page, "### %d. %s\n\n", index+1, app)
		fmt.Fprintf(page, "- **Version:** %s\n", valueOrDash(latest.Version))
		if latest.Build != "" {
			fmt.Fprintf(page, "- **Build:** %s\n", latest.Build)
		}
		if latest.Platform != "" {
			fmt.Fprintf(page, "- **Platform:** %s\n", latest.Platform)
		}
		if latest.Published != "" {
			fmt.Fprintf(page, "- **Published:** %s\n", latest.Published)
		}
		fmt.Fprintf(page, "- **Rollout:** %s\n", valueOrDash(latest.Rollout))
		fmt.Fprintf(page, "- **Status:** %s\n", valueOrDash(latest.Status))

		if len(latest.KeyChanges) > 0 {
			page.WriteString("\n**Key changes:**\n")
			capped := latest.KeyChanges
			if len(capped) > contracts.DefaultKeyChangeRenderCap {
				capped = capped[:contracts.DefaultKeyChangeRenderCap]
			}
			for _, change := range capped {
				fmt.Fprintf(page, "- %s\n", change)
			}
		}

		renderTimeline(page, latest, appRecords)
		page.WriteString("\n---\n\n")
	}
}

// renderTimeline merges the latest record's in-thread events with the app's
// other known records, newest first.
func renderTimeline(page *strings.Builder, latest release.Record, appRecords []release.Record) {
	if len(latest.Timeline) == 0 && len(appRecords) < 2 {
		return
	}

	page.WriteString("\n**Timeline:**\n")
	for _, event := range latest.Timeline {
		fmt.Fprintf(page, "- %s\n", event)
	}
	if len(appRecords) > 1 {
		for _, record := range appRecords[1:] {
			fmt.Fprintf(page, "- %s: %s %s (%s)\n",
				valueOrDash(record.Published), valueOrDash(record.Version),
				valueOrDash(record.Status), valueOrDash(record.Rollout))
		}
	}
}

func valueOrDash(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}

const rolloutProcessSection = `## Rollout process

All releases go through the following stages:

1. Internal testing
2. Team review (SDK, Product, Monetization)
3. Initial 10% rollout
4. Metrics check (crash rates, ARPU, impressions)
5. Increase to 20% when metrics look good
6. Gradual rollout to 100%
`

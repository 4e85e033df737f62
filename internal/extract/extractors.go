package extract

import (
	"fmt"
	"regexp"
	"strings"

	"releasedigest/internal/contracts"
	"releasedigest/internal/release"
)

var (
	announcementPattern = regexp.MustCompile(
		`(?i)latest\s+version\s+of\s+(.+?)\s*\((\d+\.\d+\.\d+)\)\s+is\s+ready\s+for\s+rollout\s+to\s+(\d+)%\s+of\s+(?:the\s+)?users(?:\s+on\s+([A-Za-z]+))?`)
	inlineNameVersionPattern = regexp.MustCompile(`(?i)^(.+?)\s*[-–—:|]\s*version:\s*(\d+\.\d+\.\d+)\s*$`)

	kvVersionPattern  = regexp.MustCompile(`(?i)^version:\s*(.+)$`)
	kvBuildPattern    = regexp.MustCompile(`(?i)^build:\s*(.+)$`)
	kvPlatformPattern = regexp.MustCompile(`(?i)^platform:\s*(.+)$`)
	kvStatusPattern   = regexp.MustCompile(`(?i)^(?:current\s+)?status:\s*(.+)$`)
	kvRolloutPattern  = regexp.MustCompile(`(?i)^(?:current\s+)?rollout:\s*(.+)$`)

	changeHeaderPattern = regexp.MustCompile(`(?i)^(recent changes|key changes)\b`)
	bulletPattern       = regexp.MustCompile(`^[•\-*]\s*(.+)$`)
)

// Extractor assembles a partial release record from one message. The field
// matchers run in a fixed precedence order and a field, once set, is frozen
// for the rest of the pass; only the reply merger may override it later.
type Extractor struct {
	rules           Rules
	resolver        *AppNameResolver
	platformPattern *regexp.Regexp
}

func NewExtractor(rules Rules) *Extractor {
	return &Extractor{
		rules:           rules,
		resolver:        NewAppNameResolver(rules),
		platformPattern: regexp.MustCompile(`(?i)\bon\s+(` + rules.platformAlternation() + `)\b`),
	}
}

func (e *Extractor) Resolver() *AppNameResolver {
	return e.resolver
}

// BuildRecord runs the extractors against one message and returns the
// assembled partial record. Empty or noisy input yields a mostly empty
// record; nothing here ever fails.
func (e *Extractor) BuildRecord(msg release.Message) release.Record {
	record := release.Record{
		Timestamp: msg.TS,
		Published: release.PublishedStamp(msg.TS),
	}

	text := Normalize(msg.Text)
	if text == "" {
		return record
	}

	// 1. A full announcement sentence is authoritative and self-contained:
	// no further extractor runs for the message.
	if match := announcementPattern.FindStringSubmatch(text); match != nil {
		if app, ok := e.resolver.Resolve(match[1]); ok {
			record.App = app
		} else {
			record.App = strings.TrimSpace(match[1])
		}
		record.Version = match[2]
		record.Rollout = RolloutPhrase(match[3])
		record.Status = "Ready for rollout"
		if platform, ok := e.rules.CanonicalPlatform(match[4]); ok {
			record.Platform = platform
		}
		return record
	}

	lines := strings.Split(text, "\n")

	// 2. Inline "{name} - Version: {x.y.z}" line.
	for _, line := range lines {
		match := inlineNameVersionPattern.FindStringSubmatch(line)
		if match == nil {
			continue
		}
		if app, ok := e.resolver.Resolve(match[1]); ok {
			setIfEmpty(&record.App, app)
		}
		setIfEmpty(&record.Version, match[2])
		break
	}

	// 3. Key-value lines, plus bullet collection under a change header.
	e.scanKeyValueLines(lines, &record)

	// 4. Platform from an "on Android" style phrase.
	if record.Platform == "" {
		if match := e.platformPattern.FindStringSubmatch(text); match != nil {
			if platform, ok := e.rules.CanonicalPlatform(match[1]); ok {
				record.Platform = platform
			}
		}
	}

	// 5. App from context: the line above the first "Version:" line, else
	// the first line of the message.
	if record.App == "" {
		if candidate := lineBeforeVersion(lines); candidate != "" {
			if app, ok := e.resolver.Resolve(candidate); ok {
				record.App = app
			}
		}
	}
	if record.App == "" {
		if first := firstNonEmptyLine(lines); first != "" {
			if app, ok := e.resolver.Resolve(first); ok {
				record.App = app
			}
		}
	}

	// 6. Status heuristic by substring priority.
	setIfEmpty(&record.Status, statusFromText(text))

	// 7. App from the hint dictionary.
	if record.App == "" {
		if app, ok := e.rules.HintMatch(text); ok {
			record.App = app
		}
	}

	// 8. First version occurring anywhere.
	setIfEmpty(&record.Version, contracts.VersionPattern.FindString(text))

	return record
}

func (e *Extractor) scanKeyValueLines(lines []string, record *release.Record) {
	collecting := false
	for _, line := range lines {
		if line == "" {
			collecting = false
			continue
		}

		if changeHeaderPattern.MatchString(line) {
			if len(record.KeyChanges) == 0 {
				collecting = true
			}
			continue
		}
		if collecting {
			if bullet := bulletPattern.FindStringSubmatch(line); bullet != nil {
				record.KeyChanges = append(record.KeyChanges, strings.TrimSpace(bullet[1]))
				continue
			}
			collecting = false
		}

		if match := kvVersionPattern.FindStringSubmatch(line); match != nil {
			setIfEmpty(&record.Version, versionFromValue(match[1]))
			continue
		}
		if match := kvBuildPattern.FindStringSubmatch(line); match != nil {
			setIfEmpty(&record.Build, strings.TrimSpace(match[1]))
			continue
		}
		if match := kvPlatformPattern.FindStringSubmatch(line); match != nil {
			value := strings.TrimSpace(match[1])
			if platform, ok := e.rules.CanonicalPlatform(value); ok {
				value = platform
			}
			setIfEmpty(&record.Platform, value)
			continue
		}
		if match := kvStatusPattern.FindStringSubmatch(line); match != nil {
			setIfEmpty(&record.Status, strings.TrimSpace(match[1]))
			continue
		}
		if match := kvRolloutPattern.FindStringSubmatch(line); match != nil {
			setIfEmpty(&record.Rollout, strings.TrimSpace(match[1]))
			continue
		}
	}
}

// statusFromText classifies lifecycle status by substring presence, most
// specific phrase first. Returns "Unknown" when nothing matches; the
// acceptance filter treats that as no status at all.
func statusFromText(text string) string {
	lowered := strings.ToLower(text)
	switch {
	case strings.Contains(lowered, "being rolled back") || strings.Contains(lowered, "roll back"):
		return "Being rolled back"
	case strings.Contains(lowered, "production"):
		return "In production"
	case strings.Contains(lowered, "internal testing"):
		return "Internal testing"
	case strings.Contains(lowered, "rollout") || strings.Contains(lowered, "rolled out"):
		return "Staged rollout"
	case strings.Contains(lowered, "ready"):
		return "Ready for rollout"
	default:
		return "Unknown"
	}
}

func versionFromValue(value string) string {
	if version := contracts.VersionPattern.FindString(value); version != "" {
		return version
	}
	return strings.TrimSpace(value)
}

func lineBeforeVersion(lines []string) string {
	previous := ""
	for _, line := range lines {
		if kvVersionPattern.MatchString(line) {
			return previous
		}
		if line != "" {
			previous = line
		}
	}
	return ""
}

func firstNonEmptyLine(lines []string) string {
	for _, line := range lines {
		if line != "" {
			return line
		}
	}
	return ""
}

func setIfEmpty(field *string, value string) {
	if *field != "" || value == "" {
		return
	}
	*field = value
}

// RolloutPhrase renders a percentage as the canonical staged-rollout
// description used by the announcement and reply matchers.
func RolloutPhrase(percent string) string {
	return fmt.Sprintf("%s%% staged rollout", percent)
}

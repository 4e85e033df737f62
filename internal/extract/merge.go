package extract

import (
	"regexp"
	"strings"

	"releasedigest/internal/contracts"
	"releasedigest/internal/release"
)

var (
	appMarkerPattern  = regexp.MustCompile(`(?i)\bapp:\s*([^\n]+)`)
	thisIsPattern     = regexp.MustCompile(`(?i)\bthis is ([\pL\pN'&+\- ]+)`)
	rolloutEmojiCode  = regexp.MustCompile(`:(?:rollout|release)[-_](\d+):`)
	trailingRollout   = regexp.MustCompile(`(?i)\b(\d+)%\s+rolled\s+out\s*!?\s*$`)
	versionRolledOut  = regexp.MustCompile(`(?i)\bversion\s+(\d+\.\d+\.\d+)\b.*?\brolled\s+out\s+to\s+(\d+)%`)
	greenLightPattern = regexp.MustCompile(`(?i)\b(green[- ]?light(?:ed)?|approved)\b`)
	qaCheckedPattern  = regexp.MustCompile(`(?i)\bchecked\b`)
	submissionPattern = regexp.MustCompile(`(?i)\bready for submission\b`)

	buildCardVersion = regexp.MustCompile(`(?i)^build version:?\s*(.+)$`)
	buildCardNumber  = regexp.MustCompile(`(?i)^build number:?\s*(\S+)`)
)

// ReplyMerger enriches a thread root's record from its reply sequence.
// Replies carry later and usually more specific information, so explicit
// status/rollout lines in replies override the root unconditionally, and
// the thread is expected to converge on clarifying the app late: the last
// explicit app candidate wins.
type ReplyMerger struct {
	rules            Rules
	resolver         *AppNameResolver
	platformRollout  *regexp.Regexp
	platformLive     *regexp.Regexp
	platformBracket  *regexp.Regexp
	explicitStatusKV *regexp.Regexp
	explicitRollKV   *regexp.Regexp
}

func NewReplyMerger(rules Rules) *ReplyMerger {
	alt := rules.platformAlternation()
	return &ReplyMerger{
		rules:            rules,
		resolver:         NewAppNameResolver(rules),
		platformRollout:  regexp.MustCompile(`(?i)\b(` + alt + `)\s+(\d+\.\d+\.\d+)\b.*?\brolled\s+out\s+to\s+(\d+)%`),
		platformLive:     regexp.MustCompile(`(?i)\b(` + alt + `)\s+(\d+\.\d+\.\d+)\b.*?\bis\s+(?:now\s+)?live\b`),
		platformBracket:  regexp.MustCompile(`(?i)\[(` + alt + `)\]`),
		explicitStatusKV: kvStatusPattern,
		explicitRollKV:   kvRolloutPattern,
	}
}

// Merge mutates base in place using the thread's replies in chronological
// order, then applies the end-of-thread fallbacks for app and version.
func (m *ReplyMerger) Merge(base *release.Record, replies []release.Message) {
	if base == nil || len(replies) == 0 {
		return
	}

	latestApp := ""
	firstApp := ""
	var allReplyText strings.Builder

	for _, reply := range replies {
		text := Normalize(reply.Text)
		if text != "" {
			allReplyText.WriteString(text)
			allReplyText.WriteString("\n")
		}

		if candidate, ok := m.explicitAppCandidate(text); ok {
			latestApp = candidate
			if firstApp == "" {
				firstApp = candidate
			}
		}

		m.mergeRolloutPhrases(base, text, reply.Text)
		m.mergeBuildCard(base, text)
		m.mergeTimelineEvents(base, text)
		m.mergeExplicitOverrides(base, text)

		if base.Platform == "" {
			if match := m.platformBracket.FindStringSubmatch(text); match != nil {
				if platform, ok := m.rules.CanonicalPlatform(match[1]); ok {
					base.Platform = platform
				}
			}
		}
	}

	combined := allReplyText.String()

	if base.App == "" || m.resolver.IsGeneric(base.App) {
		switch {
		case latestApp != "":
			base.App = latestApp
		default:
			if app, ok := m.rules.HintMatch(combined); ok {
				base.App = app
			} else if firstApp != "" {
				base.App = firstApp
			}
		}
	}

	if base.Version == "" {
		base.Version = contracts.VersionPattern.FindString(combined)
	}
}

// explicitAppCandidate looks for "app: X" and "this is X" markers; a reply
// that is one single line is itself treated as a candidate, since threads
// often answer "which app?" with just the name. A line that already reads
// as a progress fact is never a name: one line carries one fact.
func (m *ReplyMerger) explicitAppCandidate(text string) (string, bool) {
	if text == "" {
		return "", false
	}

	if match := appMarkerPattern.FindStringSubmatch(text); match != nil {
		if app, ok := m.resolver.Resolve(match[1]); ok {
			return app, true
		}
	}
	if match := thisIsPattern.FindStringSubmatch(text); match != nil {
		if app, ok := m.resolver.Resolve(match[1]); ok {
			return app, true
		}
	}
	if !strings.Contains(text, "\n") && !m.isProgressFact(text) {
		if app, ok := m.resolver.Resolve(text); ok {
			return app, true
		}
	}
	return "", false
}

// isProgressFact reports whether a reply line matches one of the merger's
// own fact patterns (rollout phrase, status/rollout KV, build card line,
// timeline event).
func (m *ReplyMerger) isProgressFact(text string) bool {
	if m.explicitStatusKV.MatchString(text) || m.explicitRollKV.MatchString(text) {
		return true
	}
	if m.platformRollout.MatchString(text) || m.platformLive.MatchString(text) {
		return true
	}
	if trailingRollout.MatchString(text) || versionRolledOut.MatchString(text) {
		return true
	}
	if buildCardVersion.MatchString(text) || buildCardNumber.MatchString(text) {
		return true
	}
	return qaCheckedPattern.MatchString(text) ||
		greenLightPattern.MatchString(text) ||
		submissionPattern.MatchString(text)
}

func (m *ReplyMerger) mergeRolloutPhrases(base *release.Record, text string, raw string) {
	if match := m.platformRollout.FindStringSubmatch(text); match != nil {
		if platform, ok := m.rules.CanonicalPlatform(match[1]); ok {
			base.Platform = platform
		}
		setIfEmpty(&base.Version, match[2])
		base.Rollout = RolloutPhrase(match[3])
	}

	if match := m.platformLive.FindStringSubmatch(text); match != nil {
		if platform, ok := m.rules.CanonicalPlatform(match[1]); ok {
			base.Platform = platform
		}
		setIfEmpty(&base.Version, match[2])
		base.Status = "In production"
		base.AppendTimeline("Live")
	}

	if match := versionRolledOut.FindStringSubmatch(text); match != nil {
		setIfEmpty(&base.Version, match[1])
		base.Rollout = RolloutPhrase(match[2])
	}

	if match := trailingRollout.FindStringSubmatch(text); match != nil {
		base.Rollout = RolloutPhrase(match[1])
		base.AppendTimeline("Rollout increased to " + match[1] + "%")
	}

	// Emoji rollout codes are matched against the raw reply body: the
	// normalizer strips emoji tokens before anything else sees them.
	if match := rolloutEmojiCode.FindStringSubmatch(raw); match != nil {
		base.Rollout = RolloutPhrase(match[1])
		base.AppendTimeline("Rollout increased to " + match[1] + "%")
	}
}

// mergeBuildCard fills version/build/key changes from an app-store build
// card pasted into the thread, only where the root left them unset.
func (m *ReplyMerger) mergeBuildCard(base *release.Record, text string) {
	lines := strings.Split(text, "\n")
	collecting := false
	for _, line := range lines {
		if line == "" {
			collecting = false
			continue
		}

		if changeHeaderPattern.MatchString(line) {
			if len(base.KeyChanges) == 0 {
				collecting = true
			}
			continue
		}
		if collecting {
			if bullet := bulletPattern.FindStringSubmatch(line); bullet != nil {
				base.KeyChanges = append(base.KeyChanges, strings.TrimSpace(bullet[1]))
				continue
			}
			collecting = false
		}

		if match := buildCardVersion.FindStringSubmatch(line); match != nil {
			setIfEmpty(&base.Version, versionFromValue(match[1]))
			continue
		}
		if match := buildCardNumber.FindStringSubmatch(line); match != nil {
			setIfEmpty(&base.Build, match[1])
		}
	}
}

func (m *ReplyMerger) mergeTimelineEvents(base *release.Record, text string) {
	if text == "" {
		return
	}

	if qaCheckedPattern.MatchString(text) {
		base.AppendTimeline("QA checked")
	}
	if greenLightPattern.MatchString(text) {
		base.AppendTimeline("Approved for rollout")
		setIfEmpty(&base.Status, "Ready for rollout")
	}
	if submissionPattern.MatchString(text) {
		base.AppendTimeline("Ready for submission")
		setIfEmpty(&base.Status, "Ready for submission")
	}
}

// mergeExplicitOverrides applies "Status:"/"Rollout:" lines from replies.
// Replies are more authoritative than the root for these two fields, so
// they overwrite unconditionally.
func (m *ReplyMerger) mergeExplicitOverrides(base *release.Record, text string) {
	for _, line := range strings.Split(text, "\n") {
		if match := m.explicitStatusKV.FindStringSubmatch(line); match != nil {
			base.Status = strings.TrimSpace(match[1])
			continue
		}
		if match := m.explicitRollKV.FindStringSubmatch(line); match != nil {
			base.Rollout = strings.TrimSpace(match[1])
		}
	}
}

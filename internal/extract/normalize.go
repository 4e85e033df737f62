package extract

import (
	"regexp"
	"strings"
)

var (
	linkLabelPattern = regexp.MustCompile(`<(https?://[^|>]*)\|([^>]*)>`)
	bareLinkPattern  = regexp.MustCompile(`<(https?://[^>]+)>`)
	broadcastPattern = regexp.MustCompile(`<!(?:subteam\^[^>]+|here[^>]*|channel[^>]*|everyone[^>]*)>`)
	mentionPattern   = regexp.MustCompile(`<@[A-Z0-9]+(?:\|[^>]*)?>`)
	emojiPattern     = regexp.MustCompile(`:[a-z0-9_+\-]*[a-z_][a-z0-9_+\-]*:`)
	hashtagPattern   = regexp.MustCompile(`(?:^|\s)#[\w-]+`)
	spaceRunPattern  = regexp.MustCompile(`[ \t]+`)
)

// Normalize strips Slack markup noise from a raw message body, leaving
// clean prose for the pattern matchers. Link markup is resolved before the
// generic token stripping so labels survive. Newlines are preserved: the
// extractors are line oriented. Total function; empty input yields "".
func Normalize(text string) string {
	if text == "" {
		return ""
	}

	text = linkLabelPattern.ReplaceAllString(text, "$2")
	text = bareLinkPattern.ReplaceAllString(text, "$1")
	text = broadcastPattern.ReplaceAllString(text, "")
	text = mentionPattern.ReplaceAllString(text, "")
	text = emojiPattern.ReplaceAllString(text, "")
	text = hashtagPattern.ReplaceAllString(text, " ")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(spaceRunPattern.ReplaceAllString(line, " "))
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

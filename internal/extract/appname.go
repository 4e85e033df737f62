package extract

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	bracketTagPattern    = regexp.MustCompile(`\s*\[([^\]]+)\]\s*$`)
	parentheticalPattern = regexp.MustCompile(`^(.*\pL.*?)\s*\(([A-Z]{2,5})\)$`)
	suffixWordPattern    = regexp.MustCompile(`(?i)\s+(app|application|game)$`)
)

const nameTrimCutset = " \t\"'()[]{}<>*_~.,:;!?-"

// AppNameResolver normalizes raw application-name candidates and rejects
// the ones that are really conversation, not product names. The rejection
// of generic thread openers is the main guard against misclassifying "Hi
// team, new build is ready!" as an app.
type AppNameResolver struct {
	rules Rules
}

func NewAppNameResolver(rules Rules) *AppNameResolver {
	return &AppNameResolver{rules: rules}
}

// Resolve returns the canonical app name for a raw candidate, or ok=false
// when the candidate is empty, generic, or otherwise implausible.
func (r *AppNameResolver) Resolve(candidate string) (string, bool) {
	name := strings.TrimSpace(candidate)
	if name == "" {
		return "", false
	}

	// A trailing "[Platform]" tag marks the platform, not the name.
	if tag := bracketTagPattern.FindStringSubmatch(name); tag != nil {
		if _, known := r.rules.CanonicalPlatform(tag[1]); known {
			name = strings.TrimSpace(bracketTagPattern.ReplaceAllString(name, ""))
		}
	}

	name = strings.Trim(name, nameTrimCutset)
	if name == "" {
		return "", false
	}

	if canonical, ok := r.rules.abbreviations[strings.ToUpper(name)]; ok {
		return canonical, true
	}

	// "Klondike Solitaire (KSL)" keeps the head when the head already looks
	// like a name.
	if match := parentheticalPattern.FindStringSubmatch(name); match != nil {
		head := strings.TrimSpace(match[1])
		if alphaCount(head) >= 2 {
			name = head
		}
	}

	name = strings.TrimSpace(suffixWordPattern.ReplaceAllString(name, ""))

	if canonical, ok := r.rules.canonical[strings.ToLower(name)]; ok {
		return canonical, true
	}

	if alphaCount(name) < 2 {
		return "", false
	}
	if _, stop := r.rules.stopwords[strings.ToLower(name)]; stop {
		return "", false
	}
	if r.IsGeneric(name) {
		return "", false
	}

	return name, true
}

// IsGeneric reports whether text matches the generic-title pattern set:
// conversational openers that lead threads but never denote an application.
func (r *AppNameResolver) IsGeneric(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	for _, pattern := range r.rules.genericTitles {
		if pattern.MatchString(text) {
			return true
		}
	}
	return false
}

func alphaCount(value string) int {
	count := 0
	for _, r := range value {
		if unicode.IsLetter(r) {
			count++
		}
	}
	return count
}

package extract

import (
	"fmt"
	"regexp"
	"strings"
)

// RulesSpec is the serializable form of the matching tables. The zero value
// of any field falls back to the compiled-in default, so a config file can
// override one table without restating the rest.
type RulesSpec struct {
	// Abbreviations maps short codes (case-insensitive exact match) to
	// canonical app names.
	Abbreviations map[string]string `koanf:"abbreviations"`
	// Hints are scanned in order against free text when no explicit app
	// marker matched; the first hit wins.
	Hints []HintSpec `koanf:"hints"`
	// Stopwords are single words that never denote an application.
	Stopwords []string `koanf:"stopwords"`
	// GenericTitles are regular expressions for conversational openers that
	// frequently lead a thread but never name a product.
	GenericTitles []string `koanf:"generic_titles"`
	// Platforms is the open set of recognized platform names, canonical
	// casing included.
	Platforms []string `koanf:"platforms"`
}

type HintSpec struct {
	Canonical string   `koanf:"canonical"`
	Aliases   []string `koanf:"aliases"`
}

// Rules is the compiled, immutable table set injected into the extractors
// and the app-name resolver.
type Rules struct {
	abbreviations map[string]string
	canonical     map[string]string
	stopwords     map[string]struct{}
	genericTitles []*regexp.Regexp
	hints         []hint
	platforms     []string
	platformAlt   string
}

type hint struct {
	canonical string
	pattern   *regexp.Regexp
}

// DefaultSpec returns the built-in tables. These track the apps announced
// in the release channel; deployments with a different catalogue override
// them from the config file.
func DefaultSpec() RulesSpec {
	return RulesSpec{
		Abbreviations: map[string]string{
			"DMN": "Dominoes",
			"SPD": "Spades",
			"KSL": "Klondike Solitaire",
			"BTK": "Block Tok",
			"GRM": "Gin Rummy",
		},
		Hints: []HintSpec{
			{Canonical: "Klondike Solitaire", Aliases: []string{"klondike solitaire", "klondike", "ksl"}},
			{Canonical: "Block Tok", Aliases: []string{"block tok", "blocktok", "btk"}},
			{Canonical: "Gin Rummy", Aliases: []string{"gin rummy", "grm"}},
			{Canonical: "Dominoes", Aliases: []string{"dominoes", "dmn"}},
			{Canonical: "Spades", Aliases: []string{"spades", "spd"}},
		},
		Stopwords: []string{
			"thanks", "thank you", "ok", "okay", "team", "ready", "build",
			"rollout", "release", "update", "hi", "hello", "hey", "all",
			"everyone", "done", "fyi", "status", "version",
		},
		GenericTitles: []string{
			`^(hi|hello|hey)\b`,
			`^good (morning|afternoon|evening)\b`,
			`^team\b`,
			`^(new )?build is ready`,
			`^new version is ready`,
			`^please\b`,
			`^ready for (rollout|review|submission)`,
			`^fyi\b`,
			`^update[:\s]`,
			`^reminder\b`,
			`^\d+%`,
		},
		Platforms: []string{"Android", "iOS", "iPadOS"},
	}
}

// Compile validates the spec and builds the matcher tables. Empty fields
// inherit the defaults.
func (spec RulesSpec) Compile() (Rules, error) {
	defaults := DefaultSpec()
	if len(spec.Abbreviations) == 0 {
		spec.Abbreviations = defaults.Abbreviations
	}
	if len(spec.Hints) == 0 {
		spec.Hints = defaults.Hints
	}
	if len(spec.Stopwords) == 0 {
		spec.Stopwords = defaults.Stopwords
	}
	if len(spec.GenericTitles) == 0 {
		spec.GenericTitles = defaults.GenericTitles
	}
	if len(spec.Platforms) == 0 {
		spec.Platforms = defaults.Platforms
	}

	rules := Rules{
		abbreviations: make(map[string]string, len(spec.Abbreviations)),
		canonical:     make(map[string]string),
		stopwords:     make(map[string]struct{}, len(spec.Stopwords)),
		platforms:     append([]string(nil), spec.Platforms...),
	}

	for code, name := range spec.Abbreviations {
		code = strings.ToUpper(strings.TrimSpace(code))
		name = strings.TrimSpace(name)
		if code == "" || name == "" {
			return Rules{}, fmt.Errorf("invalid abbreviation mapping %q -> %q", code, name)
		}
		rules.abbreviations[code] = name
		rules.canonical[strings.ToLower(name)] = name
	}

	for _, spec := range spec.Hints {
		canonical := strings.TrimSpace(spec.Canonical)
		if canonical == "" {
			return Rules{}, fmt.Errorf("hint with empty canonical name")
		}
		rules.canonical[strings.ToLower(canonical)] = canonical

		alternatives := make([]string, 0, len(spec.Aliases))
		for _, alias := range spec.Aliases {
			alias = strings.TrimSpace(alias)
			if alias == "" {
				continue
			}
			alternatives = append(alternatives, regexp.QuoteMeta(alias))
		}
		if len(alternatives) == 0 {
			return Rules{}, fmt.Errorf("hint %q has no aliases", canonical)
		}
		pattern, err := regexp.Compile(`(?i)\b(` + strings.Join(alternatives, "|") + `)\b`)
		if err != nil {
			return Rules{}, fmt.Errorf("hint %q: %w", canonical, err)
		}
		rules.hints = append(rules.hints, hint{canonical: canonical, pattern: pattern})
	}

	for _, word := range spec.Stopwords {
		word = strings.ToLower(strings.TrimSpace(word))
		if word == "" {
			continue
		}
		rules.stopwords[word] = struct{}{}
	}

	for _, expr := range spec.GenericTitles {
		pattern, err := regexp.Compile(`(?i)` + expr)
		if err != nil {
			return Rules{}, fmt.Errorf("generic title pattern %q: %w", expr, err)
		}
		rules.genericTitles = append(rules.genericTitles, pattern)
	}

	alternatives := make([]string, 0, len(rules.platforms))
	for _, platform := range rules.platforms {
		alternatives = append(alternatives, regexp.QuoteMeta(platform))
	}
	rules.platformAlt = strings.Join(alternatives, "|")

	return rules, nil
}

// DefaultRules compiles the built-in tables. The defaults are static data,
// so compilation cannot fail.
func DefaultRules() Rules {
	rules, err := DefaultSpec().Compile()
	if err != nil {
		panic(err)
	}
	return rules
}

// IsZero reports whether the rules were never compiled.
func (r Rules) IsZero() bool {
	return r.abbreviations == nil && r.hints == nil
}

// CanonicalPlatform maps a case-insensitive platform mention to its
// canonical casing, or returns false when the name is not in the table.
func (r Rules) CanonicalPlatform(name string) (string, bool) {
	name = strings.TrimSpace(name)
	for _, platform := range r.platforms {
		if strings.EqualFold(platform, name) {
			return platform, true
		}
	}
	return "", false
}

// HintMatch scans text against the hint table and returns the first
// canonical name whose alias pattern matches.
func (r Rules) HintMatch(text string) (string, bool) {
	if text == "" {
		return "", false
	}
	for _, h := range r.hints {
		if h.pattern.MatchString(text) {
			return h.canonical, true
		}
	}
	return "", false
}

func (r Rules) platformAlternation() string {
	return r.platformAlt
}

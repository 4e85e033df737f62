// Package config resolves the digest run configuration from flags,
// environment variables, an optional YAML file, and built-in defaults,
// in that precedence order.
package config

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"releasedigest/internal/contracts"
	"releasedigest/internal/extract"
)

const maxConfigFileSize = 1024 * 1024

// EnvPrefix namespaces the settings environment variables, e.g.
// DIGEST_LOOKBACK_DAYS and DIGEST_CHANNEL.
const EnvPrefix = "DIGEST_"

// Credential environment variables. These are env-only: they never appear
// in the YAML file or on the command line.
const (
	EnvSlackToken        = "SLACK_TOKEN"
	EnvAtlassianEmail    = "ATLASSIAN_EMAIL"
	EnvAtlassianAPIToken = "ATLASSIAN_API_TOKEN"
	EnvAtlassianCloudID  = "ATLASSIAN_CLOUD_ID"
	EnvConfluencePageID  = "CONFLUENCE_PAGE_ID"
)

// Settings are the file- and env-configurable knobs.
type Settings struct {
	LookbackDays int               `koanf:"lookback_days"`
	Channel      string            `koanf:"channel"`
	PageID       string            `koanf:"page_id"`
	PageLimit    int               `koanf:"page_limit"`
	LogLevel     string            `koanf:"log_level"`
	Rules        extract.RulesSpec `koanf:"rules"`
}

// Credentials are read from the environment only.
type Credentials struct {
	SlackToken        string
	AtlassianEmail    string
	AtlassianAPIToken string
	AtlassianCloudID  string
}

// Overrides carries the command-line flag values. Zero values mean "not
// set on the command line".
type Overrides struct {
	ConfigPath   string
	Channel      string
	LookbackDays int
	PageID       string
}

// Resolved is the fully merged configuration for one run.
type Resolved struct {
	Settings
	Credentials Credentials
	Rules       extract.Rules
}

// LookupFunc matches os.LookupEnv; injectable for tests.
type LookupFunc func(key string) (string, bool)

// Resolve merges configuration sources. Precedence, highest first: flags,
// environment, YAML file, defaults. A missing config file is only an error
// when the path was given explicitly.
func Resolve(overrides Overrides, lookup LookupFunc) (Resolved, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	k := koanf.New(".")

	if overrides.ConfigPath != "" {
		content, err := readConfigFile(overrides.ConfigPath)
		if err != nil {
			return Resolved{}, err
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return Resolved{}, &Error{
				Code:    ErrorCodeParseFailed,
				Message: fmt.Sprintf("failed to parse config file %s", overrides.ConfigPath),
				Err:     err,
			}
		}
	}

	// DIGEST_LOOKBACK_DAYS -> lookback_days. CONFLUENCE_PAGE_ID is a
	// credential-adjacent alias kept from the original deployment.
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil); err != nil {
		return Resolved{}, &Error{
			Code:    ErrorCodeParseFailed,
			Message: "failed to load environment variables",
			Err:     err,
		}
	}
	if pageID, ok := lookup(EnvConfluencePageID); ok && strings.TrimSpace(pageID) != "" {
		if err := k.Set("page_id", strings.TrimSpace(pageID)); err != nil {
			return Resolved{}, &Error{
				Code:    ErrorCodeParseFailed,
				Message: "failed to apply " + EnvConfluencePageID,
				Err:     err,
			}
		}
	}

	var settings Settings
	if err := k.Unmarshal("", &settings); err != nil {
		return Resolved{}, &Error{
			Code:    ErrorCodeParseFailed,
			Message: "failed to unmarshal configuration",
			Err:     err,
		}
	}

	applyOverrides(&settings, overrides)
	applyDefaults(&settings)
	if err := validate(settings); err != nil {
		return Resolved{}, err
	}

	rules, err := settings.Rules.Compile()
	if err != nil {
		return Resolved{}, &Error{
			Code:    ErrorCodeInvalidValue,
			Message: "invalid extraction rules",
			Err:     err,
		}
	}

	return Resolved{
		Settings:    settings,
		Credentials: readCredentials(lookup),
		Rules:       rules,
	}, nil
}

func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &Error{
			Code:    ErrorCodeFileReadFailed,
			Message: fmt.Sprintf("failed to open config file %s", path),
			Err:     err,
		}
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, &Error{
			Code:    ErrorCodeFileReadFailed,
			Message: fmt.Sprintf("failed to stat config file %s", path),
			Err:     err,
		}
	}
	if info.Size() > maxConfigFileSize {
		return nil, &Error{
			Code:    ErrorCodeFileReadFailed,
			Message: fmt.Sprintf("config file %s too large: %d bytes", path, info.Size()),
		}
	}

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, &Error{
			Code:    ErrorCodeFileReadFailed,
			Message: fmt.Sprintf("failed to read config file %s", path),
			Err:     err,
		}
	}
	return content, nil
}

func applyOverrides(settings *Settings, overrides Overrides) {
	if overrides.Channel != "" {
		settings.Channel = overrides.Channel
	}
	if overrides.LookbackDays != 0 {
		settings.LookbackDays = overrides.LookbackDays
	}
	if overrides.PageID != "" {
		settings.PageID = overrides.PageID
	}
}

func applyDefaults(settings *Settings) {
	if settings.LookbackDays == 0 {
		settings.LookbackDays = contracts.DefaultLookbackDays
	}
	if settings.Channel == "" {
		settings.Channel = contracts.DefaultChannelID
	}
	if settings.PageLimit == 0 {
		settings.PageLimit = contracts.DefaultHistoryPageLimit
	}
	if settings.LogLevel == "" {
		settings.LogLevel = "info"
	}
}

func validate(settings Settings) error {
	if settings.LookbackDays < 1 {
		return &Error{
			Code:    ErrorCodeInvalidValue,
			Message: fmt.Sprintf("lookback_days must be positive, got %d", settings.LookbackDays),
		}
	}
	if settings.PageLimit < 1 {
		return &Error{
			Code:    ErrorCodeInvalidValue,
			Message: fmt.Sprintf("page_limit must be positive, got %d", settings.PageLimit),
		}
	}
	return nil
}

func readCredentials(lookup LookupFunc) Credentials {
	read := func(key string) string {
		value, _ := lookup(key)
		return strings.TrimSpace(value)
	}
	return Credentials{
		SlackToken:        read(EnvSlackToken),
		AtlassianEmail:    read(EnvAtlassianEmail),
		AtlassianAPIToken: read(EnvAtlassianAPIToken),
		AtlassianCloudID:  read(EnvAtlassianCloudID),
	}
}

// ValidateForPreview checks the credentials a read-only run needs.
func (c Credentials) ValidateForPreview() error {
	if c.SlackToken == "" {
		return &Error{
			Code:    ErrorCodeMissingCredential,
			Message: EnvSlackToken + " must be set",
		}
	}
	return nil
}

// ValidateForSync checks the credentials a publishing run needs, plus the
// destination page.
func (c Credentials) ValidateForSync(pageID string) error {
	if err := c.ValidateForPreview(); err != nil {
		return err
	}

	missing := make([]string, 0, 4)
	if c.AtlassianEmail == "" {
		missing = append(missing, EnvAtlassianEmail)
	}
	if c.AtlassianAPIToken == "" {
		missing = append(missing, EnvAtlassianAPIToken)
	}
	if c.AtlassianCloudID == "" {
		missing = append(missing, EnvAtlassianCloudID)
	}
	if len(missing) > 0 {
		return &Error{
			Code:    ErrorCodeMissingCredential,
			Message: strings.Join(missing, ", ") + " must be set",
		}
	}
	if strings.TrimSpace(pageID) == "" {
		return &Error{
			Code:    ErrorCodeInvalidValue,
			Message: "page id must be set via --page-id, page_id, or " + EnvConfluencePageID,
		}
	}
	return nil
}

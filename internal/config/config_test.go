package config

import (
	"os"
	"path/filepath"
	"testing"

	"releasedigest/internal/contracts"
)

func noEnv(string) (string, bool) {
	return "", false
}

func envMap(values map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestResolveAppliesDefaults(t *testing.T) {
	resolved, err := Resolve(Overrides{}, noEnv)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if resolved.LookbackDays != contracts.DefaultLookbackDays {
		t.Fatalf("expected default lookback, got %d", resolved.LookbackDays)
	}
	if resolved.Channel != contracts.DefaultChannelID {
		t.Fatalf("expected default channel, got %q", resolved.Channel)
	}
	if resolved.PageLimit != contracts.DefaultHistoryPageLimit {
		t.Fatalf("expected default page limit, got %d", resolved.PageLimit)
	}
	if resolved.LogLevel != "info" {
		t.Fatalf("expected default log level, got %q", resolved.LogLevel)
	}
	if resolved.Rules.IsZero() {
		t.Fatal("expected compiled default rules")
	}
}

func TestResolveReadsYAMLFile(t *testing.T) {
	path := writeConfigFile(t, `
lookback_days: 14
channel: C999
page_id: "777"
page_limit: 50
log_level: debug
`)

	resolved, err := Resolve(Overrides{ConfigPath: path}, noEnv)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if resolved.LookbackDays != 14 || resolved.Channel != "C999" {
		t.Fatalf("unexpected settings %+v", resolved.Settings)
	}
	if resolved.PageID != "777" || resolved.PageLimit != 50 || resolved.LogLevel != "debug" {
		t.Fatalf("unexpected settings %+v", resolved.Settings)
	}
}

func TestResolveFailsOnExplicitMissingFile(t *testing.T) {
	_, err := Resolve(Overrides{ConfigPath: filepath.Join(t.TempDir(), "absent.yaml")}, noEnv)
	if err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
	if !IsErrorCode(err, ErrorCodeFileReadFailed) {
		t.Fatalf("expected file_read_failed code, got %v", err)
	}
}

func TestResolveEnvironmentOverridesFile(t *testing.T) {
	path := writeConfigFile(t, "lookback_days: 14\nchannel: C999\n")

	t.Setenv("DIGEST_LOOKBACK_DAYS", "3")
	resolved, err := Resolve(Overrides{ConfigPath: path}, noEnv)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if resolved.LookbackDays != 3 {
		t.Fatalf("expected env to override file, got %d", resolved.LookbackDays)
	}
	if resolved.Channel != "C999" {
		t.Fatalf("expected file channel to survive, got %q", resolved.Channel)
	}
}

func TestResolveFlagsOverrideEnvironment(t *testing.T) {
	t.Setenv("DIGEST_CHANNEL", "CENV")

	resolved, err := Resolve(Overrides{Channel: "CFLAG", LookbackDays: 2, PageID: "42"}, noEnv)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if resolved.Channel != "CFLAG" {
		t.Fatalf("expected flag to win, got %q", resolved.Channel)
	}
	if resolved.LookbackDays != 2 || resolved.PageID != "42" {
		t.Fatalf("unexpected settings %+v", resolved.Settings)
	}
}

func TestResolveReadsPageIDFromConfluenceEnv(t *testing.T) {
	resolved, err := Resolve(Overrides{}, envMap(map[string]string{
		EnvConfluencePageID: " 12345 ",
	}))
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if resolved.PageID != "12345" {
		t.Fatalf("expected page id from env, got %q", resolved.PageID)
	}
}

func TestResolveRejectsInvalidValues(t *testing.T) {
	path := writeConfigFile(t, "lookback_days: -1\n")

	_, err := Resolve(Overrides{ConfigPath: path}, noEnv)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !IsErrorCode(err, ErrorCodeInvalidValue) {
		t.Fatalf("expected invalid_value code, got %v", err)
	}
}

func TestResolveCompilesRulesOverrides(t *testing.T) {
	path := writeConfigFile(t, `
rules:
  abbreviations:
    ZZZ: Zebra Zoo
`)

	resolved, err := Resolve(Overrides{ConfigPath: path}, noEnv)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if resolved.Rules.IsZero() {
		t.Fatal("expected compiled rules")
	}
}

func TestCredentialsValidateForSync(t *testing.T) {
	complete := Credentials{
		SlackToken:        "xoxb-1",
		AtlassianEmail:    "bot@example.com",
		AtlassianAPIToken: "token",
		AtlassianCloudID:  "cloud-1",
	}
	if err := complete.ValidateForSync("12345"); err != nil {
		t.Fatalf("expected complete credentials to validate, got %v", err)
	}

	missingSlack := complete
	missingSlack.SlackToken = ""
	if err := missingSlack.ValidateForSync("12345"); !IsErrorCode(err, ErrorCodeMissingCredential) {
		t.Fatalf("expected missing_credential for slack token, got %v", err)
	}

	missingAtlassian := complete
	missingAtlassian.AtlassianAPIToken = ""
	if err := missingAtlassian.ValidateForSync("12345"); !IsErrorCode(err, ErrorCodeMissingCredential) {
		t.Fatalf("expected missing_credential for atlassian token, got %v", err)
	}

	if err := complete.ValidateForSync(""); !IsErrorCode(err, ErrorCodeInvalidValue) {
		t.Fatalf("expected invalid_value for empty page id, got %v", err)
	}
}

func TestCredentialsValidateForPreview(t *testing.T) {
	if err := (Credentials{SlackToken: "xoxb-1"}).ValidateForPreview(); err != nil {
		t.Fatalf("expected preview credentials to validate, got %v", err)
	}
	if err := (Credentials{}).ValidateForPreview(); !IsErrorCode(err, ErrorCodeMissingCredential) {
		t.Fatalf("expected missing_credential, got %v", err)
	}
}

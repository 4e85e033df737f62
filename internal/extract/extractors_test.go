package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"releasedigest/internal/release"
)

func buildRecord(t *testing.T, text string) release.Record {
	t.Helper()
	return NewExtractor(DefaultRules()).BuildRecord(release.Message{Text: text, TS: 1700000100.0001})
}

func TestBuildRecordFromKeyValueBlock(t *testing.T) {
	record := buildRecord(t, `Spades - Version: 2.5.3
Build: 481
Platform: Android
Current status: In production
Current rollout: 100%
Recent changes:
• Fixed crash on launch
• New table themes`)

	assert.Equal(t, "Spades", record.App)
	assert.Equal(t, "2.5.3", record.Version)
	assert.Equal(t, "481", record.Build)
	assert.Equal(t, "Android", record.Platform)
	assert.Equal(t, "In production", record.Status)
	assert.Equal(t, "100%", record.Rollout)
	assert.Equal(t, []string{"Fixed crash on launch", "New table themes"}, record.KeyChanges)
	assert.Equal(t, 1700000100.0001, record.Timestamp)
	assert.NotEmpty(t, record.Published)
}

func TestBuildRecordFromAnnouncementSentence(t *testing.T) {
	record := buildRecord(t, "Latest version of Klondike Solitaire (5.0.1) is ready for rollout to 10% of users on Android")

	assert.Equal(t, "Klondike Solitaire", record.App)
	assert.Equal(t, "5.0.1", record.Version)
	assert.Equal(t, "10% staged rollout", record.Rollout)
	assert.Equal(t, "Ready for rollout", record.Status)
	assert.Equal(t, "Android", record.Platform)
	assert.Empty(t, record.Build)
	assert.Empty(t, record.KeyChanges)
}

func TestAnnouncementShortCircuitsOtherExtractors(t *testing.T) {
	record := buildRecord(t, `Latest version of Spades (2.6.0) is ready for rollout to 20% of the users
Build: 500
Status: In production`)

	// The announcement is authoritative; the trailing key-value lines never run.
	assert.Equal(t, "Spades", record.App)
	assert.Equal(t, "2.6.0", record.Version)
	assert.Equal(t, "Ready for rollout", record.Status)
	assert.Equal(t, "20% staged rollout", record.Rollout)
	assert.Empty(t, record.Build)
}

func TestBuildRecordRejectsGenericOpener(t *testing.T) {
	record := buildRecord(t, "Hi team, new build is ready!")

	assert.Empty(t, record.App)
	require.False(t, Accept(record, NewExtractor(DefaultRules()).Resolver()))
}

func TestBuildRecordAppFromLineBeforeVersion(t *testing.T) {
	record := buildRecord(t, "Dominoes\nVersion: 1.4.2")

	assert.Equal(t, "Dominoes", record.App)
	assert.Equal(t, "1.4.2", record.Version)
}

func TestBuildRecordAbbreviationAsFirstLine(t *testing.T) {
	record := buildRecord(t, "DMN\nVersion: 1.4.2")

	assert.Equal(t, "Dominoes", record.App)
}

func TestBuildRecordPlatformFromPhrase(t *testing.T) {
	record := buildRecord(t, "Spades 2.5.3 is being tested on iOS")

	assert.Equal(t, "iOS", record.Platform)
}

func TestBuildRecordAppFromHintWhenContextFails(t *testing.T) {
	record := buildRecord(t, "please check the klondike build before rollout, version 5.0.2")

	assert.Equal(t, "Klondike Solitaire", record.App)
	assert.Equal(t, "5.0.2", record.Version)
}

func TestBuildRecordVersionFromAnywhere(t *testing.T) {
	record := buildRecord(t, "Spades\nwe shipped 2.5.4 to the store")

	assert.Equal(t, "Spades", record.App)
	assert.Equal(t, "2.5.4", record.Version)
}

func TestBuildRecordFieldsAreSetOnce(t *testing.T) {
	record := buildRecord(t, `Spades - Version: 2.5.3
Version: 9.9.9
Build: 481
Build: 999`)

	assert.Equal(t, "2.5.3", record.Version)
	assert.Equal(t, "481", record.Build)
}

func TestBuildRecordEmptyMessage(t *testing.T) {
	record := buildRecord(t, "")

	assert.Empty(t, record.App)
	assert.Empty(t, record.Version)
	assert.Equal(t, 1700000100.0001, record.Timestamp)
}

func TestStatusFromTextPriorities(t *testing.T) {
	cases := map[string]string{
		"we will roll back the release":            "Being rolled back",
		"now in production":                        "In production",
		"still in internal testing":                "Internal testing",
		"rollout continues":                        "Staged rollout",
		"ready when you are":                       "Ready for rollout",
		"nothing interesting":                      "Unknown",
		"production rollout complete, ready to go": "In production",
	}
	for text, want := range cases {
		assert.Equal(t, want, statusFromText(text), "text %q", text)
	}
}

func TestRolloutPhrase(t *testing.T) {
	assert.Equal(t, "10% staged rollout", RolloutPhrase("10"))
}

package contracts

import "errors"

const JSONEnvelopeVersionV1 = "1"

type OutputMode string

const (
	OutputModeHuman OutputMode = "human"
	OutputModeJSON  OutputMode = "json"
)

type StreamContract struct {
	StdoutRule string
	StderrRule string
}

var OutputStreamContracts = map[OutputMode]StreamContract{
	OutputModeJSON: {
		StdoutRule: "stdout MUST contain exactly one JSON envelope object and no extra prose",
		StderrRule: "stderr MAY contain diagnostics/logs and MUST NOT contain envelope fragments",
	},
	OutputModeHuman: {
		StdoutRule: "stdout SHOULD contain human-readable primary output",
		StderrRule: "stderr SHOULD contain warnings/errors/diagnostics",
	},
}

type ExitCode int

const (
	ExitCodeSuccess ExitCode = 0
	ExitCodeFatal   ExitCode = 1
)

// ExitCodeMeaning freezes the CLI matrix semantics. Extraction ambiguity is
// not an error, so there is no partial-success code: a run either publishes
// (or previews) or it fails whole.
var ExitCodeMeaning = map[ExitCode]string{
	ExitCodeSuccess: "run completed; the page reflects the current window",
	ExitCodeFatal:   "fatal run failure (setup/config/auth/lock/transport/page conflict)",
}

type CommandEnvelope struct {
	EnvelopeVersion string          `json:"envelope_version"`
	Command         CommandMeta     `json:"command"`
	Counts          RunCounts       `json:"counts"`
	Records         []RecordSummary `json:"records,omitempty"`
	PageVersion     int             `json:"page_version,omitempty"`
	Markup          string          `json:"markup,omitempty"`
}

type CommandMeta struct {
	Name       string `json:"name"`
	DurationMS int64  `json:"duration_ms"`
	DryRun     bool   `json:"dry_run"`
}

type RunCounts struct {
	Messages int `json:"messages"`
	Threads  int `json:"threads"`
	Records  int `json:"records"`
	Dropped  int `json:"dropped"`
}

// RecordSummary is the per-record line of the run report.
type RecordSummary struct {
	App       string `json:"app"`
	Version   string `json:"version,omitempty"`
	Status    string `json:"status,omitempty"`
	Rollout   string `json:"rollout,omitempty"`
	Published string `json:"published,omitempty"`
}

func ValidateEnvelopeBasics(env CommandEnvelope) error {
	if env.EnvelopeVersion != JSONEnvelopeVersionV1 {
		return errors.New("unsupported envelope_version")
	}
	if env.Command.Name == "" {
		return errors.New("command name is required")
	}
	return nil
}

func ResolveExitCode(fatalErr bool) ExitCode {
	if fatalErr {
		return ExitCodeFatal
	}
	return ExitCodeSuccess
}

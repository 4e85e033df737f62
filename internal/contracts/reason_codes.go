package contracts

// ReasonCode is a stable machine-readable code attached to run diagnostics.
type ReasonCode string

const (
	ReasonCodeValidationFailed  ReasonCode = "validation_failed"
	ReasonCodeAuthFailed        ReasonCode = "auth_failed"
	ReasonCodeTransportError    ReasonCode = "transport_error"
	ReasonCodeVersionConflict   ReasonCode = "version_conflict"
	ReasonCodeLockAcquireFailed ReasonCode = "lock_acquire_failed"
	ReasonCodeDryRunNoWrite     ReasonCode = "dry_run_no_write"
)

// StableReasonCodes freezes the contract taxonomy and ordering.
var StableReasonCodes = []ReasonCode{
	ReasonCodeValidationFailed,
	ReasonCodeAuthFailed,
	ReasonCodeTransportError,
	ReasonCodeVersionConflict,
	ReasonCodeLockAcquireFailed,
	ReasonCodeDryRunNoWrite,
}

func IsStableReasonCode(code ReasonCode) bool {
	for _, candidate := range StableReasonCodes {
		if candidate == code {
			return true
		}
	}
	return false
}

package domain

// Factor identifies a second-factor method a member can present during
// login or step-up. The set is closed; dispatch in the verifier switches
// over it exhaustively.
type Factor string

const (
	FactorTOTP     Factor = "totp"
	FactorBackup   Factor = "backup"
	FactorEmail    Factor = "email"
	FactorWhatsApp Factor = "whatsapp"
	FactorPasskey  Factor = "passkey"
)

// Valid reports whether f is one of the supported factors.
func (f Factor) Valid() bool {
	switch f {
	case FactorTOTP, FactorBackup, FactorEmail, FactorWhatsApp, FactorPasskey:
		return true
	}
	return false
}

// OutOfBand reports whether the factor's code is generated and delivered by
// an external channel rather than derived from enrolled material.
func (f Factor) OutOfBand() bool {
	return f == FactorEmail || f == FactorWhatsApp
}

// Method is an enrollment tag accumulated on a member's MFA record the first
// time a method verifies successfully.
type Method string

const (
	MethodTOTP    Method = "TOTP"
	MethodEmail   Method = "EMAIL"
	MethodPasskey Method = "PASSKEY"
)

// EnrollmentMethod maps a verified factor to the method tag it proves.
// Backup codes prove possession of the TOTP enrollment they were issued with.
func (f Factor) EnrollmentMethod() (Method, bool) {
	switch f {
	case FactorTOTP, FactorBackup:
		return MethodTOTP, true
	case FactorEmail, FactorWhatsApp:
		return MethodEmail, true
	case FactorPasskey:
		return MethodPasskey, true
	}
	return "", false
}

// FailureReason is the closed set of verification failure kinds. The verifier
// never reports anything finer grained, so a caller cannot be used as an
// oracle for which part of a check failed.
type FailureReason string

const (
	ReasonInvalidCode          FailureReason = "invalid_code"
	ReasonInvalidBackupCode    FailureReason = "invalid_backup_code"
	ReasonInvalidOutOfBandCode FailureReason = "invalid_out_of_band_code"
	ReasonAssertionFailed      FailureReason = "assertion_failed"
	ReasonNotEnrolled          FailureReason = "not_enrolled"
)

// Audit action tags recorded for terminal verification outcomes.
const (
	AuditMFASuccess       = "MFA_SUCCESS"
	AuditMFABackupSuccess = "MFA_BACKUP_SUCCESS"
	AuditMFAFailed        = "MFA_FAILED"
	AuditMFARateLimited   = "MFA_RATE_LIMITED"
)

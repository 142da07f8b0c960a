package verify

import (
	"net/http"

	"github.com/ikimina/sacco-auth/internal/mfa/domain"
	"github.com/ikimina/sacco-auth/pkg/cryptox"
)

// verifyBackup checks the submitted code against the member's unused backup
// code hashes. A match removes exactly that hash in the returned delta;
// single-use removal is the replay defense for this factor, there is no step
// concept.
func (v *Verifier) verifyBackup(req domain.VerifyRequest) domain.Outcome {
	if len(req.State.BackupHashes) == 0 {
		return failure(domain.ReasonNotEnrolled, http.StatusBadRequest)
	}

	next, ok := cryptox.ConsumeBackupCode(req.Token, req.State.BackupHashes)
	if !ok {
		return failure(domain.ReasonInvalidBackupCode, http.StatusUnauthorized)
	}

	return domain.Outcome{
		OK:         true,
		UsedBackup: true,
		Delta:      domain.StateDelta{NextBackupHashes: next},
		AuditDetails: map[string]any{
			"backup_remaining": len(next),
		},
	}
}

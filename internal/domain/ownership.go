package domain

import domainerrors "github.com/nolancloud/ncp/internal/domain/errors"

// VerifyOwner compares a requester against the persisted owner of a
// resource. Denial must short-circuit before any runtime or store
// mutation is attempted.
func VerifyOwner(requesterID, ownerID string) error {
	if requesterID == "" || requesterID != ownerID {
		return domainerrors.PermissionDeniedError{Reason: "access denied"}
	}
	return nil
}

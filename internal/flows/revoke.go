package flows

import "context"

// RevokeDeps captures bulk revocation dependencies.
type RevokeDeps struct {
	Sessions Sessions
}

// RunRevokeAll deletes every session of userID and commits. Zero sessions is
// not an error.
func RunRevokeAll(ctx context.Context, userID string, unit Unit, deps RevokeDeps) (int, error) {
	st, err := unit.Store(ctx)
	if err != nil {
		return 0, err
	}
	n, err := deps.Sessions.DeleteAllForUser(ctx, st, userID)
	if err != nil {
		return 0, err
	}
	if err := unit.Commit(ctx); err != nil {
		return 0, err
	}
	return n, nil
}

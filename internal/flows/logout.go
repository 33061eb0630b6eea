package flows

import "context"

// LogoutDeps captures single-session removal dependencies.
type LogoutDeps struct {
	Sessions Sessions
}

// RunLogout deletes one session and commits. It reports whether the session
// still existed; a missing session is not an error.
func RunLogout(ctx context.Context, sessionID string, unit Unit, deps LogoutDeps) (bool, error) {
	st, err := unit.Store(ctx)
	if err != nil {
		return false, err
	}
	removed, err := deps.Sessions.Delete(ctx, st, sessionID)
	if err != nil {
		return false, err
	}
	if err := unit.Commit(ctx); err != nil {
		return false, err
	}
	return removed, nil
}

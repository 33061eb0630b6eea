package flows

import "context"

// Service is the flow runner built once by the root engine.
type Service struct {
	deps Deps
}

// New returns a flow service with immutable dependency wiring.
func New(deps Deps) Service {
	return Service{deps: deps}
}

// Initialized reports whether the service has been wired with flow deps.
func (s Service) Initialized() bool {
	return s.deps.Resolve.Sessions != nil && s.deps.Resolve.ExtractSessionID != nil
}

func (s Service) Resolve(ctx context.Context, token string, unit Unit) ResolveResult {
	return RunResolve(ctx, token, unit, s.deps.Resolve)
}

func (s Service) Login(ctx context.Context, username, password string, unit Unit) LoginResult {
	return RunLogin(ctx, username, password, unit, s.deps.Login)
}

func (s Service) Logout(ctx context.Context, sessionID string, unit Unit) (bool, error) {
	return RunLogout(ctx, sessionID, unit, s.deps.Logout)
}

func (s Service) RevokeAll(ctx context.Context, userID string, unit Unit) (int, error) {
	return RunRevokeAll(ctx, userID, unit, s.deps.Revoke)
}

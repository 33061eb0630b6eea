package sessionauth

import (
	"context"

	"github.com/MrEthical07/sessionauth/session"
)

// Request is the scope of one inbound request. It owns the unit of work
// shared by identity resolution, revocation and the account flows, and the
// authorization cache. Create one per request with [Engine.NewRequest]; a
// Request is not safe for concurrent use and must not be reused.
type Request struct {
	engine *Engine
	token  string
	unit   *unitOfWork

	identity *IdentityResolver
	authz    *AuthorizationContext
	revoker  *AccessRevoker

	issuedToken string
	clearToken  bool
}

// NewRequest opens a request scope for the presented token, which may be empty.
func (e *Engine) NewRequest(token string) *Request {
	r := &Request{
		engine: e,
		token:  token,
		unit:   &unitOfWork{backend: e.backend},
	}
	r.identity = &IdentityResolver{req: r}
	r.authz = &AuthorizationContext{req: r}
	r.revoker = &AccessRevoker{req: r}
	return r
}

// Token returns the token presented with the request.
func (r *Request) Token() string { return r.token }

func (r *Request) Identity() *IdentityResolver { return r.identity }

func (r *Request) Authorization() *AuthorizationContext { return r.authz }

func (r *Request) Revoker() *AccessRevoker { return r.revoker }

// IssuedToken returns a token the transport must deliver to the client: a
// renewal produced while resolving or a fresh login.
func (r *Request) IssuedToken() (string, bool) {
	return r.issuedToken, r.issuedToken != ""
}

// TokenCleared reports whether the transport must remove the client's token.
func (r *Request) TokenCleared() bool { return r.clearToken }

// Close rolls back a unit of work left open by a failed operation.
func (r *Request) Close(ctx context.Context) error {
	return r.unit.Rollback(ctx)
}

func (r *Request) setIssued(token string) {
	r.issuedToken = token
	r.clearToken = false
}

func (r *Request) setCleared() {
	r.issuedToken = ""
	r.clearToken = true
}

// unitOfWork begins a session transaction on first use. Commit and Rollback
// end it; the next Store call begins a new one.
type unitOfWork struct {
	backend session.Backend
	tx      session.Tx
}

func (u *unitOfWork) Store(ctx context.Context) (session.Store, error) {
	if u.tx != nil {
		return u.tx, nil
	}
	tx, err := u.backend.Begin(ctx)
	if err != nil {
		return nil, err
	}
	u.tx = tx
	return tx, nil
}

func (u *unitOfWork) Commit(ctx context.Context) error {
	if u.tx == nil {
		return nil
	}
	tx := u.tx
	u.tx = nil
	if err := tx.Flush(ctx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return nil
}

func (u *unitOfWork) Rollback(ctx context.Context) error {
	if u.tx == nil {
		return nil
	}
	tx := u.tx
	u.tx = nil
	return tx.Rollback(ctx)
}

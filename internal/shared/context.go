package shared

import "context"

type sessionContextKey struct{}

// ContextWithSession stores the session in context.
func ContextWithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

// SessionFromContext extracts the session from context.
func SessionFromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(sessionContextKey{}).(*Session)
	return sess
}

// Actor describes the authenticated caller as seen by authorization
// checks: identity, home establishment and role names.
type Actor struct {
	UserID          int64
	EstablishmentID int64
	Roles           []string
}

// ActorFromContext builds the Actor from the session stored in context.
// Returns false when no authenticated session is present.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	sess := SessionFromContext(ctx)
	if sess == nil || sess.UserID == 0 {
		return Actor{}, false
	}
	return Actor{
		UserID:          sess.UserID,
		EstablishmentID: sess.EstablishmentID,
		Roles:           sess.Roles,
	}, true
}

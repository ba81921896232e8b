package tokengate

import (
	"context"
	"errors"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/jmhart-dev/tokengate/session"
	"github.com/jmhart-dev/tokengate/token"
)

// Engine defines a public type used by tokengate APIs.
//
// Engine instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Engine struct {
	config    Config
	codec     *token.Codec
	issuer    *token.Issuer
	store     session.Store
	verifier  CredentialVerifier
	directory PrincipalDirectory
	audit     *auditDispatcher
	metrics   *Metrics
	logger    *zap.Logger
}

// Close describes the close operation and its observable behavior.
//
// Close does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped describes the auditdropped operation and its observable behavior.
//
// AuditDropped does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
//
// MetricsSnapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) emitAudit(ctx context.Context, eventType string, success bool, principalID, sessionID string, failure error, metadata func() map[string]string) {
	if e == nil || e.audit == nil {
		return
	}

	event := AuditEvent{
		Timestamp:   time.Now(),
		EventType:   eventType,
		PrincipalID: principalID,
		SessionID:   sessionID,
		Success:     success,
	}
	if failure != nil {
		event.Error = failure.Error()
	}
	if metadata != nil {
		event.Metadata = metadata()
	}

	e.audit.Emit(ctx, event)
}

// storeCtx bounds a store operation with the configured timeout.
func (e *Engine) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.config.Session.StoreTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, e.config.Session.StoreTimeout)
}

// mapStoreErr folds transport and deadline failures from custom store
// implementations into ErrStoreUnavailable; the built-in backends already
// wrap theirs.
func mapStoreErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, session.ErrNotFound),
		errors.Is(err, session.ErrAlreadyRevoked),
		errors.Is(err, session.ErrDuplicate),
		errors.Is(err, session.ErrUnavailable):
		return err
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return errors.Join(ErrStoreUnavailable, err)
	default:
		return errors.Join(ErrStoreUnavailable, err)
	}
}

// Login describes the login operation and its observable behavior.
//
// Login may return an error when input validation, dependency calls, or security checks fail.
// Login does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	if e == nil || e.verifier == nil || e.directory == nil {
		return nil, ErrEngineNotReady
	}
	if email == "" || password == "" {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, "", "", ErrInvalidCredentials, func() map[string]string {
			return map[string]string{
				"reason": "empty_credentials",
			}
		})
		return nil, ErrInvalidCredentials
	}

	principal, err := e.directory.FindByEmail(ctx, email)
	if err != nil {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, "", "", ErrInvalidCredentials, func() map[string]string {
			return map[string]string{
				"reason": "principal_not_found",
			}
		})
		return nil, ErrInvalidCredentials
	}

	ok, err := e.verifier.Verify(ctx, email, password)
	if err != nil || !ok {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, principal.ID, "", ErrInvalidCredentials, func() map[string]string {
			return map[string]string{
				"reason": "password_mismatch",
			}
		})
		return nil, ErrInvalidCredentials
	}
	password = ""

	// Suspension is collapsed into the generic credential failure so callers
	// cannot probe account status.
	if principal.Status != PrincipalActive {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, principal.ID, "", ErrInvalidCredentials, func() map[string]string {
			return map[string]string{
				"reason": "principal_status",
			}
		})
		return nil, ErrInvalidCredentials
	}

	access, err := e.issuer.IssueAccess(principal.ID, principal.Role, principal.Email)
	if err != nil {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, principal.ID, "", err, nil)
		return nil, err
	}

	refresh, sessionID, expiresAt, err := e.issuer.IssueRefresh(principal.ID, principal.Role, principal.Email)
	if err != nil {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, principal.ID, "", err, nil)
		return nil, err
	}

	sctx, cancel := e.storeCtx(ctx)
	defer cancel()

	err = e.store.Create(sctx, &session.Session{
		SessionID:   sessionID,
		PrincipalID: principal.ID,
		CreatedAt:   time.Now(),
		ExpiresAt:   expiresAt,
	})
	if err != nil {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, principal.ID, sessionID, err, func() map[string]string {
			return map[string]string{
				"reason": "session_create_failed",
			}
		})
		e.logger.Error("session create failed during login",
			zap.String("principal_id", principal.ID),
			zap.Error(err),
		)
		return nil, mapStoreErr(err)
	}

	e.metricInc(MetricSessionCreated)
	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, principal.ID, sessionID, nil, nil)

	return &LoginResult{
		Principal:    principal,
		AccessToken:  access,
		RefreshToken: refresh,
	}, nil
}

// AuthenticateAccess describes the authenticateaccess operation and its observable behavior.
//
// AuthenticateAccess may return an error when input validation, dependency calls, or security checks fail.
// AuthenticateAccess does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) AuthenticateAccess(ctx context.Context, tokenStr string) (*Claims, error) {
	if e == nil || e.codec == nil {
		return nil, ErrEngineNotReady
	}
	if e.metrics != nil && e.metrics.LatencyEnabled() {
		start := time.Now()
		defer e.metrics.Observe(MetricAuthenticateLatency, time.Since(start))
	}

	claims, err := e.codec.Decode(tokenStr)
	if err != nil {
		return nil, err
	}
	if e.codec.Expired(claims) {
		return nil, ErrTokenExpired
	}
	if claims.TokenType != token.TypeAccess {
		return nil, ErrWrongTokenType
	}

	return claims, nil
}

// Refresh describes the refresh operation and its observable behavior.
//
// Refresh may return an error when input validation, dependency calls, or security checks fail.
// Refresh does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if e == nil || e.codec == nil || e.store == nil {
		return nil, ErrEngineNotReady
	}

	claims, err := e.codec.Decode(refreshToken)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshFailed, false, "", "", err, func() map[string]string {
			return map[string]string{
				"reason": "decode_failed",
			}
		})
		return nil, err
	}
	if claims.TokenType != token.TypeRefresh {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshFailed, false, claims.Subject, "", ErrWrongTokenType, nil)
		return nil, ErrWrongTokenType
	}

	sessionID := claims.SessionID
	now := time.Now()

	sctx, cancel := e.storeCtx(ctx)
	defer cancel()

	sess, err := e.store.Find(sctx, sessionID)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshFailed, false, claims.Subject, sessionID, err, func() map[string]string {
			return map[string]string{
				"reason": "session_lookup",
			}
		})
		if errors.Is(err, session.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, mapStoreErr(err)
	}

	// The persisted row is the source of truth; the token is only a
	// capability pointer into it.
	if sess.Revoked() {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshFailed, false, claims.Subject, sessionID, ErrSessionRevoked, nil)
		return nil, ErrSessionRevoked
	}
	if sess.ExpiredAt(now) {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshFailed, false, claims.Subject, sessionID, ErrSessionExpired, nil)
		return nil, ErrSessionExpired
	}

	err = e.store.Revoke(sctx, sessionID, now)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrAlreadyRevoked):
			// A concurrent rotation consumed this session between Find and
			// Revoke: strict one-time use means this presentation is a replay.
			e.metricInc(MetricReuseDetected)
			e.metricInc(MetricRefreshFailure)
			e.emitAudit(ctx, auditEventReuseDetected, false, claims.Subject, sessionID, ErrTokenReuseDetected, nil)
			e.logger.Warn("refresh token reuse detected",
				zap.String("principal_id", claims.Subject),
				zap.String("session_id", sessionID),
			)
			return nil, ErrTokenReuseDetected
		case errors.Is(err, session.ErrNotFound):
			e.metricInc(MetricRefreshFailure)
			e.emitAudit(ctx, auditEventRefreshFailed, false, claims.Subject, sessionID, ErrSessionNotFound, nil)
			return nil, ErrSessionNotFound
		default:
			e.metricInc(MetricRefreshFailure)
			e.emitAudit(ctx, auditEventRefreshFailed, false, claims.Subject, sessionID, err, func() map[string]string {
				return map[string]string{
					"reason": "revoke_failed",
				}
			})
			return nil, mapStoreErr(err)
		}
	}
	e.metricInc(MetricSessionRevoked)

	// The new pair is minted from the verified refresh claims; the signed
	// token already carries the principal fields and bulk revocation covers
	// status changes.
	access, err := e.issuer.IssueAccess(claims.Subject, claims.Role, claims.Email)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshFailed, false, claims.Subject, sessionID, err, nil)
		return nil, err
	}

	refresh, newSessionID, expiresAt, err := e.issuer.IssueRefresh(claims.Subject, claims.Role, claims.Email)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshFailed, false, claims.Subject, sessionID, err, nil)
		return nil, err
	}

	err = e.store.Create(sctx, &session.Session{
		SessionID:   newSessionID,
		PrincipalID: claims.Subject,
		CreatedAt:   now,
		ExpiresAt:   expiresAt,
	})
	if err != nil {
		// The old session is already consumed. Reporting a clear failure here
		// is equivalent to an expired session: the caller must re-authenticate.
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshFailed, false, claims.Subject, sessionID, err, func() map[string]string {
			return map[string]string{
				"reason": "session_create_failed",
			}
		})
		e.logger.Error("session create failed after rotation, caller must re-authenticate",
			zap.String("principal_id", claims.Subject),
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
		return nil, mapStoreErr(err)
	}

	e.metricInc(MetricSessionCreated)
	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRefreshOK, true, claims.Subject, newSessionID, nil, func() map[string]string {
		return map[string]string{
			"rotated_from": sessionID,
		}
	})

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
	}, nil
}

// Logout describes the logout operation and its observable behavior.
//
// Logout may return an error when input validation, dependency calls, or security checks fail.
// Logout does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Logout(ctx context.Context, refreshToken string) error {
	if e == nil || e.codec == nil || e.store == nil {
		return ErrEngineNotReady
	}

	claims, err := e.codec.Decode(refreshToken)
	if err != nil {
		e.emitAudit(ctx, auditEventLogout, false, "", "", err, func() map[string]string {
			return map[string]string{
				"reason": "decode_failed",
			}
		})
		return err
	}
	if claims.TokenType != token.TypeRefresh {
		e.emitAudit(ctx, auditEventLogout, false, claims.Subject, "", ErrWrongTokenType, nil)
		return ErrWrongTokenType
	}

	sctx, cancel := e.storeCtx(ctx)
	defer cancel()

	err = e.store.Revoke(sctx, claims.SessionID, time.Now())
	switch {
	case err == nil:
		e.metricInc(MetricSessionRevoked)
	case errors.Is(err, session.ErrAlreadyRevoked):
		// The net effect, an unusable session, already holds.
		err = nil
	case errors.Is(err, session.ErrNotFound):
		e.emitAudit(ctx, auditEventLogout, false, claims.Subject, claims.SessionID, ErrSessionNotFound, nil)
		return ErrSessionNotFound
	default:
		e.emitAudit(ctx, auditEventLogout, false, claims.Subject, claims.SessionID, err, nil)
		return mapStoreErr(err)
	}

	e.metricInc(MetricLogout)
	e.emitAudit(ctx, auditEventLogout, true, claims.Subject, claims.SessionID, nil, nil)
	return nil
}

// RevokeAllSessions describes the revokeallsessions operation and its observable behavior.
//
// RevokeAllSessions may return an error when input validation, dependency calls, or security checks fail.
// RevokeAllSessions does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) RevokeAllSessions(ctx context.Context, principalID string) (int64, error) {
	if e == nil || e.store == nil {
		return 0, ErrEngineNotReady
	}

	sctx, cancel := e.storeCtx(ctx)
	defer cancel()

	count, err := e.store.RevokeAll(sctx, principalID, time.Now())
	if err != nil {
		e.emitAudit(ctx, auditEventRevokeAll, false, principalID, "", err, nil)
		return 0, mapStoreErr(err)
	}

	e.metricInc(MetricRevokeAll)
	e.emitAudit(ctx, auditEventRevokeAll, true, principalID, "", nil, func() map[string]string {
		return map[string]string{
			"revoked": strconv.FormatInt(count, 10),
		}
	})
	return count, nil
}

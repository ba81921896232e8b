package tokengate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/jmhart-dev/tokengate/token"
)

var testSigningKey = []byte("0123456789abcdef0123456789abcdef")

type fakeVerifier struct {
	passwords map[string]string
	err       error
}

func (v *fakeVerifier) Verify(_ context.Context, email, password string) (bool, error) {
	if v.err != nil {
		return false, v.err
	}
	want, ok := v.passwords[email]
	return ok && want == password, nil
}

type fakeDirectory struct {
	byEmail map[string]Principal
}

func (d *fakeDirectory) FindByEmail(_ context.Context, email string) (Principal, error) {
	p, ok := d.byEmail[email]
	if !ok {
		return Principal{}, errors.New("no such principal")
	}
	return p, nil
}

func (d *fakeDirectory) FindByID(_ context.Context, id string) (Principal, error) {
	for _, p := range d.byEmail {
		if p.ID == id {
			return p, nil
		}
	}
	return Principal{}, errors.New("no such principal")
}

func testConfig() Config {
	cfg := defaultConfig()
	cfg.Token.SigningMethod = "hs256"
	cfg.Token.PrivateKey = testSigningKey
	cfg.Token.Issuer = "tokengate-test"
	cfg.Token.Audience = "api-test"
	cfg.Metrics.Enabled = true
	return cfg
}

type testEnv struct {
	engine *Engine
	codec  *token.Codec
	mr     *miniredis.Miniredis
}

func newTestEnv(t *testing.T, cfg Config, sink AuditSink) *testEnv {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	verifier := &fakeVerifier{passwords: map[string]string{
		"a@x.com": "hunter2",
		"s@x.com": "hunter2",
	}}
	directory := &fakeDirectory{byEmail: map[string]Principal{
		"a@x.com": {ID: "u1", Role: "user", Email: "a@x.com", Status: PrincipalActive},
		"s@x.com": {ID: "u2", Role: "user", Email: "s@x.com", Status: PrincipalSuspended},
	}}

	builder := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithCredentialVerifier(verifier).
		WithDirectory(directory)
	if sink != nil {
		builder = builder.WithAuditSink(sink)
	}

	engine, err := builder.Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)

	// Out-of-band codec with the same key, for crafting tokens the engine
	// did not issue.
	codec, err := token.NewCodec(token.Config{
		SigningMethod: token.MethodHS256,
		PrivateKey:    testSigningKey,
		Issuer:        cfg.Token.Issuer,
		Audience:      cfg.Token.Audience,
		Leeway:        cfg.Token.Leeway,
	})
	require.NoError(t, err)

	return &testEnv{engine: engine, codec: codec, mr: mr}
}

func newEngineTest(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnv(t, testConfig(), nil)
}

func (env *testEnv) craftToken(t *testing.T, tokenType token.Type, sessionID string, issuedAt time.Time, ttl time.Duration) string {
	t.Helper()

	claims := &token.Claims{
		Role:      "user",
		Email:     "a@x.com",
		TokenType: tokenType,
		SessionID: sessionID,
	}
	claims.Subject = "u1"
	claims.Issuer = "tokengate-test"
	claims.Audience = []string{"api-test"}
	claims.IssuedAt = jwt.NewNumericDate(issuedAt)
	claims.NotBefore = jwt.NewNumericDate(issuedAt)
	claims.ExpiresAt = jwt.NewNumericDate(issuedAt.Add(ttl))

	tokenStr, err := env.codec.Encode(claims)
	require.NoError(t, err)
	return tokenStr
}

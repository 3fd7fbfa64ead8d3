package wire

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/example/intake/internal/adapters/email"
	"github.com/example/intake/internal/adapters/events"
	"github.com/example/intake/internal/adapters/verification"
	"github.com/example/intake/internal/config"
	"github.com/example/intake/internal/db"
	"github.com/example/intake/internal/ports/primary"
	"github.com/example/intake/internal/secrets"
)

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Database.Path = db.MemoryPath
	return cfg
}

func envWith(values map[string]string) secrets.Provider {
	return &secrets.EnvProvider{Getenv: func(name string) string { return values[name] }}
}

func TestBuild_Minimal(t *testing.T) {
	a, err := Build(context.Background(), testConfig(), zap.NewNop(), envWith(nil))
	require.NoError(t, err)
	defer a.Close()

	require.NotNil(t, a.Instructions)
	require.NotNil(t, a.Payments)
	require.NotNil(t, a.Outbox)
	require.NotNil(t, a.Worker)
	require.NotNil(t, a.Server)

	// no stripe key: payments answer unavailable
	_, err = a.Payments.CreatePaymentIntent(context.Background(), primary.CreatePaymentIntentRequest{
		InstructionRef: "HLX-1-a",
		Amount:         10,
	})
	assert.ErrorIs(t, err, primary.ErrGatewayUnavailable)

	rec := httptest.NewRecorder()
	a.Server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBuild_SubmitAndShowThroughAdapters(t *testing.T) {
	a, err := Build(context.Background(), testConfig(), zap.NewNop(), envWith(nil))
	require.NoError(t, err)
	defer a.Close()

	_, err = a.Instructions.SubmitInstruction(context.Background(), primary.SubmitInstructionRequest{
		InstructionRef: "HLX-99-abc",
		Fields:         map[string]any{"firstName": "jane", "lastName": "doe"},
	})
	require.NoError(t, err)

	var out bytes.Buffer
	_, err = a.InstructionAdapter(&out).Show(context.Background(), "HLX-99-abc")
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Client:      Jane Doe")

	out.Reset()
	require.NoError(t, a.OutboxAdapter(&out).List(context.Background(), "", "", 0))
	assert.True(t, strings.Contains(out.String(), "No tasks found"))
}

func TestBuild_BadDatabasePath(t *testing.T) {
	cfg := testConfig()
	cfg.Database.Path = "/dev/null/intake.db"

	_, err := Build(context.Background(), cfg, zap.NewNop(), envWith(nil))
	assert.Error(t, err)
}

func TestBuild_UnreachableNATS(t *testing.T) {
	cfg := testConfig()
	cfg.NATS.URL = "nats://127.0.0.1:1"

	_, err := Build(context.Background(), cfg, zap.NewNop(), envWith(nil))
	assert.ErrorContains(t, err, "failed to connect to nats")
}

func TestBuildGateway(t *testing.T) {
	cfg := testConfig()
	sec := secrets.NewCache(envWith(map[string]string{"STRIPE_SECRET_KEY": "sk_test_1"}))

	gw, err := buildGateway(context.Background(), cfg, sec, zap.NewNop())
	require.NoError(t, err)
	assert.NotNil(t, gw)

	gw, err = buildGateway(context.Background(), cfg, secrets.NewCache(envWith(nil)), zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, gw)
}

func TestBuildVerifier(t *testing.T) {
	cfg := testConfig()
	v, err := buildVerifier(context.Background(), cfg, secrets.NewCache(envWith(nil)), zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, verification.Disabled{}, v)

	cfg.Verification.BaseURL = "https://verify.example"
	cfg.Verification.TokenURL = "https://verify.example/oauth/token"
	cfg.Verification.ClientID = "intake"
	v, err = buildVerifier(context.Background(), cfg, secrets.NewCache(envWith(nil)), zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &verification.Client{}, v)
}

func TestBuildMailer(t *testing.T) {
	sec := secrets.NewCache(envWith(map[string]string{"GRAPH_CLIENT_SECRET": "g", "SMTP_PASSWORD": "p"}))

	tests := []struct {
		name      string
		configure func(*config.EmailConfig)
		transport string
	}{
		{name: "debug flag", configure: func(c *config.EmailConfig) { c.Debug = true; c.SMTP.Host = "smtp.example" }, transport: "debug"},
		{name: "nothing configured", configure: func(c *config.EmailConfig) {}, transport: "debug"},
		{name: "smtp only", configure: func(c *config.EmailConfig) { c.SMTP.Host = "smtp.example" }, transport: "smtp"},
		{name: "graph only", configure: func(c *config.EmailConfig) { c.Graph.TenantID = "t"; c.Graph.ClientID = "c" }, transport: "graph"},
		{name: "graph with smtp fallback", configure: func(c *config.EmailConfig) {
			c.Graph.TenantID = "t"
			c.Graph.ClientID = "c"
			c.SMTP.Host = "smtp.example"
		}, transport: "graph+smtp"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.configure(&cfg.Email)

			m, err := buildMailer(context.Background(), cfg, sec, zap.NewNop())
			require.NoError(t, err)
			assert.Equal(t, tt.transport, m.Transport())
		})
	}

	cfg := testConfig()
	cfg.Email.SMTP.Host = "smtp.example"
	cfg.Email.Graph.TenantID = "t"
	m, _ := buildMailer(context.Background(), cfg, sec, zap.NewNop())
	assert.IsType(t, &email.FallbackMailer{}, m)
}

func TestBuildPublisher_Noop(t *testing.T) {
	a := &App{}
	p, err := a.buildPublisher(testConfig(), zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, events.Noop{}, p)
	assert.Empty(t, a.closers)
}

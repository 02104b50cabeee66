package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ConflictingTheories/meme-citadel-sub000/internal/cache"
	"github.com/ConflictingTheories/meme-citadel-sub000/internal/domain"
	"github.com/ConflictingTheories/meme-citadel-sub000/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestOpenMemoryRuntime(t *testing.T) {
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("SCORE_CACHE", "none")
	t.Setenv("ARCHIVE_PATH", "")
	t.Setenv("POLICY_PATH", "")

	rt, err := Open(context.Background(), zap.NewNop())
	require.NoError(t, err)
	defer func() { assert.NoError(t, rt.Close()) }()

	assert.Nil(t, rt.Pool)
	assert.NoError(t, rt.HealthCheck(context.Background()))

	// The archive is wired through to evidence content.
	ctx := context.Background()
	author, err := rt.Engine.DeriveIdentity(ctx, signature())
	require.NoError(t, err)
	claimID, err := rt.Engine.CreateClaim(ctx, service.ClaimInput{Title: "Lighthouse automated in 1983"}, author.PublicID)
	require.NoError(t, err)

	att, err := rt.Engine.AttachEvidence(ctx, claimID, service.EvidenceInput{
		Kind:    "text",
		Title:   "Coast guard log",
		Content: []byte("log entry 1983-04-02"),
	}, "supports", author.PublicID)
	require.NoError(t, err)
	require.NotNil(t, att.Archive)

	check, err := rt.Engine.Graph.VerifyArchive(ctx, att.NodeID)
	require.NoError(t, err)
	assert.True(t, check.Intact)
}

func TestOpenRejectsUnknownSettings(t *testing.T) {
	t.Setenv("STORE_BACKEND", "cassandra")
	_, err := Open(context.Background(), zap.NewNop())
	assert.ErrorContains(t, err, "STORE_BACKEND")

	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("SCORE_CACHE", "memcached")
	_, err = Open(context.Background(), zap.NewNop())
	assert.ErrorContains(t, err, "SCORE_CACHE")
}

func TestOpenAppliesPolicyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("scoring:\n  dispute_factor: 2.0\n"), 0o600))

	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("SCORE_CACHE", "memory")
	t.Setenv("POLICY_PATH", path)

	rt, err := Open(context.Background(), zap.NewNop())
	require.NoError(t, err)
	defer rt.Close()

	assert.Equal(t, 2.0, rt.Policy.Scoring.DisputeFactor)
	assert.Equal(t, 2.0, rt.Engine.Scoring.Policy().DisputeFactor)
}

func TestCacheNoneIsNoop(t *testing.T) {
	t.Setenv("SCORE_CACHE", "none")
	rt := &Runtime{logger: zap.NewNop()}
	c, err := rt.openCache(context.Background())
	require.NoError(t, err)
	assert.IsType(t, cache.Noop{}, c)
}

func signature() domain.Signature {
	return domain.Signature{
		UserAgent:           "Mozilla/5.0 (Windows NT 10.0) Chrome/126.0",
		Platform:            "Win32",
		Language:            "fr-CA",
		Timezone:            "America/Montreal",
		ScreenResolution:    "1366x768",
		ColorDepth:          24,
		HardwareConcurrency: 4,
		IPAddress:           "198.51.100.61",
	}
}

package middleware_test

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/playbook/pkg/adapters/memory"
	"github.com/aretw0/playbook/pkg/domain"
	"github.com/aretw0/playbook/pkg/persistence/middleware"
	"github.com/aretw0/playbook/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateKey(t *testing.T) []byte {
	k := make([]byte, 32)
	_, err := io.ReadFull(rand.Reader, k)
	require.NoError(t, err)
	return k
}

func secretSnapshot() *domain.ProgressSnapshot {
	return &domain.ProgressSnapshot{
		WorkflowID:           3,
		WorkflowName:         "breach",
		IncidentNumber:       "INC-7",
		LastFilledQuestionID: domain.IntPtr(1),
		CompletedQuestionIDs: []int{1},
		CompletedAnswers: map[int]domain.CompletedAnswer{
			1: {Answer: "attacker used admin@example.com", Source: domain.SourceLocal},
		},
		TerminalQuestionID: 4,
		Timestamp:          time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestEncryptionMiddleware_Contract(t *testing.T) {
	mw := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	ports.RunProgressStoreContract(t, mw(memory.NewStore()))
}

func TestEncryptionMiddleware_Roundtrip(t *testing.T) {
	underlying := memory.NewStore()
	secure := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})(underlying)
	ctx := context.Background()

	require.NoError(t, secure.Save(ctx, secretSnapshot()))

	stored, err := underlying.Load(ctx, "breach", "INC-7")
	require.NoError(t, err)
	assert.NotEmpty(t, stored.Sealed)
	assert.Empty(t, stored.CompletedAnswers, "answers must not be stored in clear text")
	assert.False(t, strings.Contains(stored.Sealed, "admin@example.com"))

	loaded, err := secure.Load(ctx, "breach", "INC-7")
	require.NoError(t, err)
	assert.Equal(t, "attacker used admin@example.com", loaded.CompletedAnswers[1].Answer)
	assert.Equal(t, 4, loaded.TerminalQuestionID)
	assert.Empty(t, loaded.Sealed)
}

func TestEncryptionMiddleware_KeyRotation(t *testing.T) {
	underlying := memory.NewStore()
	oldKey, newKey := generateKey(t), generateKey(t)
	ctx := context.Background()

	oldStore := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: oldKey})(underlying)
	require.NoError(t, oldStore.Save(ctx, secretSnapshot()))

	newStore := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
		ActiveKey:    newKey,
		FallbackKeys: [][]byte{oldKey},
	})(underlying)

	loaded, err := newStore.Load(ctx, "breach", "INC-7")
	require.NoError(t, err, "fallback key decrypts old records")

	require.NoError(t, newStore.Save(ctx, loaded))
	_, err = oldStore.Load(ctx, "breach", "INC-7")
	assert.ErrorIs(t, err, domain.ErrSnapshotCorrupt, "old key alone can not read records sealed with the new key")
}

func TestEncryptionMiddleware_RejectsClearText(t *testing.T) {
	underlying := memory.NewStore()
	ctx := context.Background()
	require.NoError(t, underlying.Save(ctx, secretSnapshot()))

	secure := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})(underlying)
	_, err := secure.Load(ctx, "breach", "INC-7")
	assert.ErrorIs(t, err, domain.ErrSnapshotCorrupt)
}

func TestEncryptionMiddleware_InvalidKey(t *testing.T) {
	assert.Panics(t, func() {
		middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: []byte("short-key")})
	})
}

func TestParseKey(t *testing.T) {
	raw := generateKey(t)

	k, err := middleware.ParseKey(hex.EncodeToString(raw))
	require.NoError(t, err)
	assert.Equal(t, raw, k)

	_, err = middleware.ParseKey("too-short")
	assert.Error(t, err)
}

package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/malla-ucn/malla-estudiante/internal/domain/shared"
	"github.com/malla-ucn/malla-estudiante/internal/domain/student"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func testStudent() *student.Student {
	return &student.Student{
		Rut:     "12345678-9",
		Email:   "ana@alumnos.ucn.cl",
		Careers: []student.Career{{Code: "8606", Name: "ICCI", Catalog: "201610"}},
	}
}

func TestManager_IssueAndVerify(t *testing.T) {
	now := time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC)
	m, err := NewManager(testSecret, "malla", 8*time.Hour, WithClock(func() time.Time { return now }))
	require.NoError(t, err)

	tok, err := m.Issue(testStudent())
	require.NoError(t, err)
	assert.Equal(t, now.Add(8*time.Hour), tok.ExpiresAt)

	sess, err := m.Verify(tok.Value)
	require.NoError(t, err)
	assert.Equal(t, testStudent(), sess.Student)
	assert.True(t, sess.ExpiresAt.Equal(tok.ExpiresAt))
}

func TestManager_VerifyRejects(t *testing.T) {
	now := time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC)
	clock := now
	m, err := NewManager(testSecret, "malla", time.Hour, WithClock(func() time.Time { return clock }))
	require.NoError(t, err)
	tok, err := m.Issue(testStudent())
	require.NoError(t, err)

	other, err := NewManager([]byte("another-secret-another-secret-xx"), "malla", time.Hour, WithClock(func() time.Time { return clock }))
	require.NoError(t, err)
	foreignIssuer, err := NewManager(testSecret, "someone-else", time.Hour, WithClock(func() time.Time { return clock }))
	require.NoError(t, err)

	tests := []struct {
		name  string
		m     *Manager
		token string
		at    time.Time
	}{
		{"empty", m, "", now},
		{"garbage", m, "not.a.token", now},
		{"wrong secret", other, tok.Value, now},
		{"wrong issuer", foreignIssuer, tok.Value, now},
		{"expired", m, tok.Value, now.Add(2 * time.Hour)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock = tt.at
			_, err := tt.m.Verify(tt.token)
			assert.True(t, shared.IsUnauthorized(err))
		})
	}
}

func TestNewManager_Validation(t *testing.T) {
	_, err := NewManager(nil, "malla", time.Hour)
	assert.Error(t, err)
	_, err = NewManager(testSecret, "malla", 0)
	assert.Error(t, err)
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", BearerToken("Bearer abc"))
	assert.Equal(t, "abc", BearerToken("bearer  abc "))
	assert.Empty(t, BearerToken("Basic abc"))
	assert.Empty(t, BearerToken("abc"))
}

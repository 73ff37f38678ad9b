package maintenance

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	iauth "github.com/leadvault/leadvault/internal/auth"
	"github.com/leadvault/leadvault/internal/database/testutil"
	"github.com/leadvault/leadvault/internal/models"
)

func TestCleanerRunOnce(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	user := &models.User{Email: "agent@example.com"}
	require.NoError(t, db.Create(user).Error)

	past := time.Now().Add(-48 * time.Hour)
	sessions, err := iauth.NewSessionService(db, iauth.SessionConfig{
		TTL:   time.Hour,
		Clock: func() time.Time { return past },
	})
	require.NoError(t, err)
	verifications, err := iauth.NewVerificationService(db, nil,
		iauth.WithVerificationExpiry(time.Hour),
		iauth.WithVerificationClock(func() time.Time { return past }))
	require.NoError(t, err)

	_, err = sessions.Create(context.Background(), user.ID)
	require.NoError(t, err)
	_, _, err = verifications.CreateToken(context.Background(), "agent@example.com", "")
	require.NoError(t, err)

	// Fresh services see the rows as long expired.
	liveSessions, err := iauth.NewSessionService(db, iauth.SessionConfig{TTL: time.Hour})
	require.NoError(t, err)
	liveVerifications, err := iauth.NewVerificationService(db, nil)
	require.NoError(t, err)

	cleaner := NewCleaner(liveSessions, liveVerifications)
	require.NoError(t, cleaner.RunOnce(context.Background()))

	var sessionCount, tokenCount int64
	require.NoError(t, db.Model(&models.Session{}).Count(&sessionCount).Error)
	require.NoError(t, db.Model(&models.VerificationToken{}).Count(&tokenCount).Error)
	require.Equal(t, int64(0), sessionCount)
	require.Equal(t, int64(0), tokenCount)
}

func TestCleanerStartAndStop(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	sessions, err := iauth.NewSessionService(db, iauth.SessionConfig{})
	require.NoError(t, err)
	verifications, err := iauth.NewVerificationService(db, nil)
	require.NoError(t, err)

	cleaner := NewCleaner(sessions, verifications)
	require.NoError(t, cleaner.Start())

	done := cleaner.Stop()
	select {
	case <-done.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("cleaner did not stop in time")
	}
}

func TestCleanerNilDependenciesAreSkipped(t *testing.T) {
	cleaner := NewCleaner(nil, nil)
	require.NoError(t, cleaner.Start())
	require.NoError(t, cleaner.RunOnce(context.Background()))
}

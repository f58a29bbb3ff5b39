package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Semhkaramn/msharleyrandy/internal/models"
	"github.com/Semhkaramn/msharleyrandy/internal/repository"
)

const (
	testGroup   = int64(-100200)
	testCreator = int64(7)
)

func publishTestRaffle(t *testing.T, env *testEnv, winners int, req models.RequirementType, required int) *models.Raffle {
	t.Helper()
	ctx := context.Background()

	_, err := env.svc.EnsureDraft(ctx, testCreator, testGroup)
	require.NoError(t, err)

	title := "Giveaway"
	message := "Press the button to enter!"
	_, err = env.svc.UpdateDraft(ctx, testCreator, testGroup, repository.DraftUpdate{
		Title: &title, Message: &message,
		WinnerCount: &winners, Requirement: &req, RequiredCount: &required,
	})
	require.NoError(t, err)

	res, err := env.svc.Publish(ctx, testCreator, testGroup, time.Now())
	require.NoError(t, err)
	require.Equal(t, PublishOK, res.Status)
	return res.Raffle
}

func TestPublish(t *testing.T) {
	ctx := context.Background()

	t.Run("no draft", func(t *testing.T) {
		env := newTestEnv(time.Minute)
		res, err := env.svc.Publish(ctx, testCreator, testGroup, time.Now())
		require.NoError(t, err)
		assert.Equal(t, PublishNoDraft, res.Status)
	})

	t.Run("incomplete draft", func(t *testing.T) {
		env := newTestEnv(time.Minute)
		_, err := env.svc.EnsureDraft(ctx, testCreator, testGroup)
		require.NoError(t, err)

		res, err := env.svc.Publish(ctx, testCreator, testGroup, time.Now())
		require.NoError(t, err)
		assert.Equal(t, PublishDraftIncomplete, res.Status)
	})

	t.Run("one active raffle per group", func(t *testing.T) {
		env := newTestEnv(time.Minute)
		publishTestRaffle(t, env, 1, models.RequirementNone, 0)

		res, err := env.svc.Publish(ctx, testCreator, testGroup, time.Now())
		require.NoError(t, err)
		assert.Equal(t, PublishAlreadyActive, res.Status)
	})

	t.Run("draft survives publish as a template", func(t *testing.T) {
		env := newTestEnv(time.Minute)
		raffle := publishTestRaffle(t, env, 1, models.RequirementNone, 0)

		draft, err := env.svc.Drafts.GetByCreator(ctx, testCreator, testGroup)
		require.NoError(t, err)
		require.NotNil(t, draft)
		assert.Equal(t, raffle.Title, draft.Title)

		// After the raffle ends the same draft publishes again.
		_, err = env.svc.Finish(ctx, raffle.ID, 0, time.Now())
		require.NoError(t, err)

		res, err := env.svc.Publish(ctx, testCreator, testGroup, time.Now())
		require.NoError(t, err)
		assert.Equal(t, PublishOK, res.Status)
	})

	t.Run("channels are copied, not moved", func(t *testing.T) {
		env := newTestEnv(time.Minute)
		draft, err := env.svc.EnsureDraft(ctx, testCreator, testGroup)
		require.NoError(t, err)

		_, err = env.svc.Drafts.AddChannel(ctx, draft.ID, &models.RaffleChannel{ChannelID: -555, Username: "news"})
		require.NoError(t, err)

		raffle := publishTestRaffle(t, env, 1, models.RequirementNone, 0)

		raffleChannels, err := env.svc.Raffles.ListChannels(ctx, raffle.ID)
		require.NoError(t, err)
		require.Len(t, raffleChannels, 1)

		draftChannels, err := env.svc.Drafts.ListChannels(ctx, draft.ID)
		require.NoError(t, err)
		assert.Len(t, draftChannels, 1)
	})
}

func TestJoin_Gates(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	t.Run("unknown raffle", func(t *testing.T) {
		env := newTestEnv(time.Minute)
		res, err := env.svc.Join(ctx, 999, 1, "alice", "Alice", now)
		require.NoError(t, err)
		assert.Equal(t, JoinRaffleNotFound, res.Status)
	})

	t.Run("ended raffle rejects joins", func(t *testing.T) {
		env := newTestEnv(time.Minute)
		raffle := publishTestRaffle(t, env, 1, models.RequirementNone, 0)
		_, err := env.svc.Finish(ctx, raffle.ID, 0, now)
		require.NoError(t, err)

		res, err := env.svc.Join(ctx, raffle.ID, 1, "alice", "Alice", now)
		require.NoError(t, err)
		assert.Equal(t, JoinRaffleNotActive, res.Status)
	})

	t.Run("missing channel blocks with channel names", func(t *testing.T) {
		env := newTestEnv(time.Minute)
		draft, err := env.svc.EnsureDraft(ctx, testCreator, testGroup)
		require.NoError(t, err)
		_, err = env.svc.Drafts.AddChannel(ctx, draft.ID, &models.RaffleChannel{ChannelID: -555, Username: "news"})
		require.NoError(t, err)
		raffle := publishTestRaffle(t, env, 1, models.RequirementNone, 0)

		res, err := env.svc.Join(ctx, raffle.ID, 1, "alice", "Alice", now)
		require.NoError(t, err)
		assert.Equal(t, JoinNotChannelMember, res.Status)
		assert.Equal(t, []string{"@news"}, res.MissingChannels)

		// Subscribing clears the gate.
		env.oracle.set(-555, 1, MemberStatusMember)
		res, err = env.svc.Join(ctx, raffle.ID, 1, "alice", "Alice", now)
		require.NoError(t, err)
		assert.Equal(t, JoinOK, res.Status)
	})

	t.Run("oracle failure counts as not a member", func(t *testing.T) {
		env := newTestEnv(time.Minute)
		draft, err := env.svc.EnsureDraft(ctx, testCreator, testGroup)
		require.NoError(t, err)
		_, err = env.svc.Drafts.AddChannel(ctx, draft.ID, &models.RaffleChannel{ChannelID: -555, Username: "news"})
		require.NoError(t, err)
		raffle := publishTestRaffle(t, env, 1, models.RequirementNone, 0)

		env.oracle.err = errors.New("api down")
		res, err := env.svc.Join(ctx, raffle.ID, 1, "alice", "Alice", now)
		require.NoError(t, err)
		assert.Equal(t, JoinNotChannelMember, res.Status)
	})

	t.Run("window requirement unmet reports required vs current", func(t *testing.T) {
		env := newTestEnv(time.Minute)
		raffle := publishTestRaffle(t, env, 1, models.RequirementDaily, 5)

		for i := 0; i < 3; i++ {
			_, err := env.svc.RecordMessage(ctx, testGroup, 1, "alice", "Alice", "", now)
			require.NoError(t, err)
		}

		res, err := env.svc.Join(ctx, raffle.ID, 1, "alice", "Alice", now)
		require.NoError(t, err)
		assert.Equal(t, JoinRequirementUnmet, res.Status)
		assert.Equal(t, 5, res.Required)
		assert.Equal(t, 3, res.Current)
	})

	t.Run("post-publish requirement uses the participant counter", func(t *testing.T) {
		env := newTestEnv(time.Minute)
		raffle := publishTestRaffle(t, env, 1, models.RequirementPostPublish, 2)

		res, err := env.svc.Join(ctx, raffle.ID, 1, "alice", "Alice", now)
		require.NoError(t, err)
		assert.Equal(t, JoinPostPublishUnmet, res.Status)
		assert.Equal(t, 0, res.Current)

		// Chatting accumulates before any join attempt.
		require.NoError(t, env.svc.TrackPostPublish(ctx, testGroup, 1, "alice", "Alice"))
		require.NoError(t, env.svc.TrackPostPublish(ctx, testGroup, 1, "alice", "Alice"))

		res, err = env.svc.Join(ctx, raffle.ID, 1, "alice", "Alice", now)
		require.NoError(t, err)
		assert.Equal(t, JoinOK, res.Status)
	})

	t.Run("second join is rejected", func(t *testing.T) {
		env := newTestEnv(time.Minute)
		raffle := publishTestRaffle(t, env, 1, models.RequirementNone, 0)

		res, err := env.svc.Join(ctx, raffle.ID, 1, "alice", "Alice", now)
		require.NoError(t, err)
		require.Equal(t, JoinOK, res.Status)

		res, err = env.svc.Join(ctx, raffle.ID, 1, "alice", "Alice", now)
		require.NoError(t, err)
		assert.Equal(t, JoinAlreadyEntered, res.Status)
	})
}

func TestJoin_ConcurrentDuplicates(t *testing.T) {
	env := newTestEnv(time.Minute)
	ctx := context.Background()
	raffle := publishTestRaffle(t, env, 1, models.RequirementNone, 0)

	const attempts = 20
	var wg sync.WaitGroup
	results := make([]JoinStatus, attempts)
	errs := make([]error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := env.svc.Join(ctx, raffle.ID, 1, "alice", "Alice", time.Now())
			results[i], errs[i] = res.Status, err
		}(i)
	}
	wg.Wait()

	ok := 0
	for i, status := range results {
		require.NoError(t, errs[i])
		if status == JoinOK {
			ok++
		} else {
			assert.Equal(t, JoinAlreadyEntered, status)
		}
	}
	assert.Equal(t, 1, ok, "exactly one join must win")

	entrants, err := env.svc.Participants.CountEntrants(ctx, raffle.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, entrants)
}

func TestFinish(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	joinAll := func(t *testing.T, env *testEnv, raffleID int64, n int) {
		t.Helper()
		for i := 1; i <= n; i++ {
			res, err := env.svc.Join(ctx, raffleID, int64(i), "", "User", now)
			require.NoError(t, err)
			require.Equal(t, JoinOK, res.Status)
		}
	}

	t.Run("draws winners without replacement", func(t *testing.T) {
		env := newTestEnv(time.Minute)
		raffle := publishTestRaffle(t, env, 3, models.RequirementNone, 0)
		joinAll(t, env, raffle.ID, 10)

		res, err := env.svc.Finish(ctx, raffle.ID, 0, now)
		require.NoError(t, err)
		assert.Equal(t, FinishOK, res.Status)
		assert.Len(t, res.Winners, 3)
		assert.Equal(t, 10, res.Entrants)

		seen := make(map[int64]bool)
		for _, w := range res.Winners {
			assert.False(t, seen[w.UserID], "user %d won twice", w.UserID)
			seen[w.UserID] = true
		}
	})

	t.Run("fewer entrants than prizes makes everyone win", func(t *testing.T) {
		env := newTestEnv(time.Minute)
		raffle := publishTestRaffle(t, env, 5, models.RequirementNone, 0)
		joinAll(t, env, raffle.ID, 2)

		res, err := env.svc.Finish(ctx, raffle.ID, 0, now)
		require.NoError(t, err)
		assert.Equal(t, FinishEveryoneWins, res.Status)
		assert.Len(t, res.Winners, 2)
	})

	t.Run("no entrants", func(t *testing.T) {
		env := newTestEnv(time.Minute)
		raffle := publishTestRaffle(t, env, 3, models.RequirementNone, 0)

		res, err := env.svc.Finish(ctx, raffle.ID, 0, now)
		require.NoError(t, err)
		assert.Equal(t, FinishNoEntrants, res.Status)
		assert.Empty(t, res.Winners)
	})

	t.Run("tracking rows never win", func(t *testing.T) {
		env := newTestEnv(time.Minute)
		raffle := publishTestRaffle(t, env, 10, models.RequirementPostPublish, 100)
		require.NoError(t, env.svc.TrackPostPublish(ctx, testGroup, 1, "lurker", "Lurker"))

		res, err := env.svc.Finish(ctx, raffle.ID, 0, now)
		require.NoError(t, err)
		assert.Equal(t, FinishNoEntrants, res.Status)
	})

	t.Run("finishing twice is a reported no-op", func(t *testing.T) {
		env := newTestEnv(time.Minute)
		raffle := publishTestRaffle(t, env, 1, models.RequirementNone, 0)
		joinAll(t, env, raffle.ID, 3)

		res, err := env.svc.Finish(ctx, raffle.ID, 0, now)
		require.NoError(t, err)
		require.Equal(t, FinishOK, res.Status)

		res, err = env.svc.Finish(ctx, raffle.ID, 0, now)
		require.NoError(t, err)
		assert.Equal(t, FinishAlreadyEnded, res.Status)
		assert.Empty(t, res.Winners)
	})

	t.Run("explicit count overrides the stored one", func(t *testing.T) {
		env := newTestEnv(time.Minute)
		raffle := publishTestRaffle(t, env, 1, models.RequirementNone, 0)
		joinAll(t, env, raffle.ID, 5)

		res, err := env.svc.Finish(ctx, raffle.ID, 2, now)
		require.NoError(t, err)
		assert.Len(t, res.Winners, 2)
	})
}

func TestUpdateWinnerCount(t *testing.T) {
	env := newTestEnv(time.Minute)
	ctx := context.Background()
	raffle := publishTestRaffle(t, env, 1, models.RequirementNone, 0)

	ok, err := env.svc.UpdateWinnerCount(ctx, raffle.ID, 4)
	require.NoError(t, err)
	assert.True(t, ok)

	updated, err := env.svc.Raffles.GetByID(ctx, raffle.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, updated.WinnerCount)

	_, err = env.svc.Finish(ctx, raffle.ID, 0, time.Now())
	require.NoError(t, err)

	ok, err = env.svc.UpdateWinnerCount(ctx, raffle.ID, 2)
	require.NoError(t, err)
	assert.False(t, ok, "ended raffle must not be updatable")
}

func TestTrackPostPublish_OnlyForPostPublishRaffles(t *testing.T) {
	env := newTestEnv(time.Minute)
	ctx := context.Background()
	raffle := publishTestRaffle(t, env, 1, models.RequirementDaily, 5)

	require.NoError(t, env.svc.TrackPostPublish(ctx, testGroup, 1, "alice", "Alice"))

	p, err := env.svc.Participants.Get(ctx, raffle.ID, 1)
	require.NoError(t, err)
	assert.Nil(t, p, "no tracking row without a post_publish raffle")
}

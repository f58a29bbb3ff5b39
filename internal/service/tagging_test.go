package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tagGroup = int64(-100700)

func seedRoster(t *testing.T, env *testEnv, n int) {
	t.Helper()
	now := time.Now()
	for i := 1; i <= n; i++ {
		_, err := env.svc.RecordMessage(context.Background(), tagGroup, int64(i), "", "User", "", now)
		require.NoError(t, err)
	}
}

// collectingSender records every outbound message and can block mid-run so
// tests can observe and cancel an in-flight broadcast.
type collectingSender struct {
	mu    sync.Mutex
	sent  []string
	gate  chan struct{}
	first chan struct{}
	once  sync.Once
}

func newCollectingSender(blocking bool) *collectingSender {
	s := &collectingSender{first: make(chan struct{})}
	if blocking {
		s.gate = make(chan struct{})
	}
	return s
}

func (s *collectingSender) send(chatID int64, text string) error {
	s.once.Do(func() { close(s.first) })
	if s.gate != nil {
		<-s.gate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, text)
	return nil
}

func (s *collectingSender) messages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.sent))
	copy(out, s.sent)
	return out
}

func waitForTaggingDone(t *testing.T, env *testEnv, groupID int64) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, running := env.svc.TaggingKind(groupID); !running {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("tagging run never finished")
}

func TestStartTagging_BatchesOfFive(t *testing.T) {
	env := newTestEnv(time.Minute)
	seedRoster(t, env, 12)
	sender := newCollectingSender(false)

	started, err := env.svc.StartTagging(context.Background(), tagGroup, TagBatch, "Everyone in!", sender.send)
	require.NoError(t, err)
	require.True(t, started)
	waitForTaggingDone(t, env, tagGroup)

	msgs := sender.messages()
	require.Len(t, msgs, 3, "12 users mention in batches of 5")
	for _, msg := range msgs {
		assert.True(t, strings.HasPrefix(msg, "Everyone in!"))
		assert.Contains(t, msg, "tg://user?id=")
	}
	assert.Equal(t, 5, strings.Count(msgs[0], "tg://user?id="))
	assert.Equal(t, 2, strings.Count(msgs[2], "tg://user?id="))
}

func TestStartTagging_GreetsOneByOne(t *testing.T) {
	env := newTestEnv(time.Minute)
	seedRoster(t, env, 4)
	sender := newCollectingSender(false)

	started, err := env.svc.StartTagging(context.Background(), tagGroup, TagGreet, "", sender.send)
	require.NoError(t, err)
	require.True(t, started)
	waitForTaggingDone(t, env, tagGroup)

	msgs := sender.messages()
	require.Len(t, msgs, 4)
	for _, msg := range msgs {
		assert.Equal(t, 1, strings.Count(msg, "tg://user?id="))
	}
}

func TestStartTagging_EmptyRoster(t *testing.T) {
	env := newTestEnv(time.Minute)
	sender := newCollectingSender(false)

	started, err := env.svc.StartTagging(context.Background(), tagGroup, TagBatch, "hi", sender.send)
	require.NoError(t, err)
	assert.False(t, started)
	_, running := env.svc.TaggingKind(tagGroup)
	assert.False(t, running)
}

func TestStartTagging_SingleFlight(t *testing.T) {
	env := newTestEnv(time.Minute)
	seedRoster(t, env, 10)
	sender := newCollectingSender(true)

	started, err := env.svc.StartTagging(context.Background(), tagGroup, TagBatch, "hi", sender.send)
	require.NoError(t, err)
	require.True(t, started)
	<-sender.first

	kind, running := env.svc.TaggingKind(tagGroup)
	require.True(t, running)
	assert.Equal(t, TagBatch, kind)

	// A second broadcast in the same group is rejected while one runs.
	started, err = env.svc.StartTagging(context.Background(), tagGroup, TagGreet, "", sender.send)
	require.NoError(t, err)
	assert.False(t, started)

	close(sender.gate)
	waitForTaggingDone(t, env, tagGroup)
}

func TestStopTagging_CancelsBetweenSends(t *testing.T) {
	env := newTestEnv(time.Minute)
	seedRoster(t, env, 50)
	sender := newCollectingSender(true)

	started, err := env.svc.StartTagging(context.Background(), tagGroup, TagGreet, "", sender.send)
	require.NoError(t, err)
	require.True(t, started)
	<-sender.first

	assert.True(t, env.svc.StopTagging(tagGroup))
	close(sender.gate)
	waitForTaggingDone(t, env, tagGroup)

	// The first send was already in flight; the cancellation check stops
	// the run before it works through the rest of the roster.
	assert.Less(t, len(sender.messages()), 50)

	// Stopping again reports nothing to stop.
	assert.False(t, env.svc.StopTagging(tagGroup))
}

func TestStartTagging_RegistryClearsAfterCompletion(t *testing.T) {
	env := newTestEnv(time.Minute)
	seedRoster(t, env, 3)
	sender := newCollectingSender(false)

	started, err := env.svc.StartTagging(context.Background(), tagGroup, TagBatch, "hi", sender.send)
	require.NoError(t, err)
	require.True(t, started)
	waitForTaggingDone(t, env, tagGroup)

	// The slot is free for the next broadcast.
	started, err = env.svc.StartTagging(context.Background(), tagGroup, TagGreet, "", sender.send)
	require.NoError(t, err)
	assert.True(t, started)
	waitForTaggingDone(t, env, tagGroup)
}

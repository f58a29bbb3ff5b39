package service

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Semhkaramn/msharleyrandy/internal/models"
	"github.com/Semhkaramn/msharleyrandy/internal/repository"
)

// In-memory fakes of the repository interfaces. They reproduce the
// conditional-write semantics the postgres statements have (counter window
// resets, one-way participant promotion, conditional finish flip) so the
// service tests exercise the same contracts.

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// fakeOracle answers membership checks from a fixed map and counts calls.
type fakeOracle struct {
	mu       sync.Mutex
	statuses map[[2]int64]MembershipStatus
	err      error
	calls    int
}

func newFakeOracle() *fakeOracle {
	return &fakeOracle{statuses: make(map[[2]int64]MembershipStatus)}
}

func (o *fakeOracle) set(chatID, userID int64, status MembershipStatus) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.statuses[[2]int64{chatID, userID}] = status
}

func (o *fakeOracle) GetMembership(ctx context.Context, chatID, userID int64) (MembershipStatus, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls++
	if o.err != nil {
		return "", o.err
	}
	if status, ok := o.statuses[[2]int64{chatID, userID}]; ok {
		return status, nil
	}
	return MemberStatusLeft, nil
}

func (o *fakeOracle) callCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.calls
}

// fakeGroupRepo stores groups keyed by chat id.
type fakeGroupRepo struct {
	mu     sync.Mutex
	nextID int64
	groups map[int64]*models.Group
}

func newFakeGroupRepo() *fakeGroupRepo {
	return &fakeGroupRepo{groups: make(map[int64]*models.Group)}
}

func (r *fakeGroupRepo) Upsert(ctx context.Context, chatID int64, title string) (*models.Group, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if g, ok := r.groups[chatID]; ok {
		g.Title = title
		g.IsActive = true
		return g, nil
	}
	r.nextID++
	g := &models.Group{ID: r.nextID, ChatID: chatID, Title: title, IsActive: true}
	r.groups[chatID] = g
	return g, nil
}

func (r *fakeGroupRepo) GetByChatID(ctx context.Context, chatID int64) (*models.Group, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.groups[chatID], nil
}

func (r *fakeGroupRepo) Deactivate(ctx context.Context, chatID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if g, ok := r.groups[chatID]; ok {
		g.IsActive = false
	}
	return nil
}

func (r *fakeGroupRepo) ListAdminGroups(ctx context.Context, userID int64) ([]*models.Group, error) {
	return nil, nil
}

// fakeAdminRepo records admin materializations.
type fakeAdminRepo struct {
	mu      sync.Mutex
	upserts int
}

func (r *fakeAdminRepo) Upsert(ctx context.Context, groupChatID, userID int64, isAdmin bool, verifiedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.upserts++
	return nil
}

// fakeCounterRepo mirrors the conditional window-reset upsert.
type fakeCounterRepo struct {
	mu       sync.Mutex
	nextID   int64
	counters map[[2]int64]*models.MessageCounter
}

func newFakeCounterRepo() *fakeCounterRepo {
	return &fakeCounterRepo{counters: make(map[[2]int64]*models.MessageCounter)}
}

func (r *fakeCounterRepo) Apply(ctx context.Context, u repository.CounterUpdate) (*models.MessageCounter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := [2]int64{u.GroupID, u.UserID}
	c, ok := r.counters[key]
	if !ok {
		r.nextID++
		c = &models.MessageCounter{
			ID: r.nextID, GroupID: u.GroupID, UserID: u.UserID,
			Username: u.Username, FirstName: u.FirstName, LastName: u.LastName,
			TotalCount: 1, DailyCount: 1, WeeklyCount: 1, MonthlyCount: 1,
			LastMessageAt: u.Now, LastDailyReset: u.Now,
			LastWeeklyReset: u.Now, LastMonthlyReset: u.Now,
			CreatedAt: u.Now, UpdatedAt: u.Now,
		}
		r.counters[key] = c
		out := *c
		return &out, nil
	}
	if u.Username != "" {
		c.Username = u.Username
	}
	if u.FirstName != "" {
		c.FirstName = u.FirstName
	}
	c.LastName = u.LastName
	c.TotalCount++
	if c.LastDailyReset.Before(u.DayStart) {
		c.DailyCount = 1
		c.LastDailyReset = u.Now
	} else {
		c.DailyCount++
	}
	if c.LastWeeklyReset.Before(u.WeekStart) {
		c.WeeklyCount = 1
		c.LastWeeklyReset = u.Now
	} else {
		c.WeeklyCount++
	}
	if c.LastMonthlyReset.Before(u.MonthStart) {
		c.MonthlyCount = 1
		c.LastMonthlyReset = u.Now
	} else {
		c.MonthlyCount++
	}
	c.LastMessageAt = u.Now
	c.UpdatedAt = u.Now
	out := *c
	return &out, nil
}

func (r *fakeCounterRepo) Get(ctx context.Context, groupID, userID int64) (*models.MessageCounter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.counters[[2]int64{groupID, userID}]
	if !ok {
		return nil, nil
	}
	out := *c
	return &out, nil
}

func (r *fakeCounterRepo) ListByGroup(ctx context.Context, groupID int64) ([]*models.MessageCounter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.MessageCounter
	for _, c := range r.counters {
		if c.GroupID == groupID {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TotalCount > out[j].TotalCount })
	return out, nil
}

// fakeDraftRepo stores drafts keyed by (creator, group).
type fakeDraftRepo struct {
	mu       sync.Mutex
	nextID   int64
	drafts   map[[2]int64]*models.RaffleDraft
	channels map[int64][]*models.RaffleChannel
}

func newFakeDraftRepo() *fakeDraftRepo {
	return &fakeDraftRepo{
		drafts:   make(map[[2]int64]*models.RaffleDraft),
		channels: make(map[int64][]*models.RaffleChannel),
	}
}

func (r *fakeDraftRepo) GetByCreator(ctx context.Context, creatorID, groupID int64) (*models.RaffleDraft, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.drafts[[2]int64{creatorID, groupID}]
	if !ok {
		return nil, nil
	}
	out := *d
	return &out, nil
}

func (r *fakeDraftRepo) Create(ctx context.Context, creatorID, groupID int64) (*models.RaffleDraft, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := [2]int64{creatorID, groupID}
	d, ok := r.drafts[key]
	if !ok {
		r.nextID++
		d = &models.RaffleDraft{ID: r.nextID, CreatorID: creatorID, GroupID: groupID}
		r.drafts[key] = d
	}
	d.Title = ""
	d.Message = ""
	d.MediaType = models.MediaNone
	d.MediaFileID = ""
	d.Requirement = models.RequirementNone
	d.RequiredCount = 0
	d.WinnerCount = 1
	d.PinMessage = false
	out := *d
	return &out, nil
}

func (r *fakeDraftRepo) Update(ctx context.Context, draftID int64, u repository.DraftUpdate) (*models.RaffleDraft, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.drafts {
		if d.ID != draftID {
			continue
		}
		if u.Title != nil {
			d.Title = *u.Title
		}
		if u.Message != nil {
			d.Message = *u.Message
		}
		if u.MediaType != nil {
			d.MediaType = *u.MediaType
		}
		if u.MediaFileID != nil {
			d.MediaFileID = *u.MediaFileID
		}
		if u.Requirement != nil {
			d.Requirement = *u.Requirement
		}
		if u.RequiredCount != nil {
			d.RequiredCount = *u.RequiredCount
		}
		if u.WinnerCount != nil {
			d.WinnerCount = *u.WinnerCount
		}
		if u.PinMessage != nil {
			d.PinMessage = *u.PinMessage
		}
		out := *d
		return &out, nil
	}
	return nil, nil
}

func (r *fakeDraftRepo) AddChannel(ctx context.Context, draftID int64, ch *models.RaffleChannel) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.channels[draftID] {
		if existing.ChannelID == ch.ChannelID {
			return false, nil
		}
	}
	cp := *ch
	cp.DraftID = &draftID
	r.channels[draftID] = append(r.channels[draftID], &cp)
	return true, nil
}

func (r *fakeDraftRepo) RemoveChannel(ctx context.Context, draftID, channelID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.channels[draftID][:0]
	for _, ch := range r.channels[draftID] {
		if ch.ChannelID != channelID {
			kept = append(kept, ch)
		}
	}
	r.channels[draftID] = kept
	return nil
}

func (r *fakeDraftRepo) ListChannels(ctx context.Context, draftID int64) ([]*models.RaffleChannel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*models.RaffleChannel(nil), r.channels[draftID]...), nil
}

func (r *fakeDraftRepo) ClearChannels(ctx context.Context, draftID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.channels, draftID)
	return nil
}

// fakeRaffleRepo enforces one-active-per-group and the conditional finish
// flip.
type fakeRaffleRepo struct {
	mu       sync.Mutex
	nextID   int64
	raffles  map[int64]*models.Raffle
	channels map[int64][]*models.RaffleChannel
	winners  map[int64][]models.RaffleWinner
	drafts   *fakeDraftRepo
}

func newFakeRaffleRepo(drafts *fakeDraftRepo) *fakeRaffleRepo {
	return &fakeRaffleRepo{
		raffles:  make(map[int64]*models.Raffle),
		channels: make(map[int64][]*models.RaffleChannel),
		winners:  make(map[int64][]models.RaffleWinner),
		drafts:   drafts,
	}
}

func (r *fakeRaffleRepo) Publish(ctx context.Context, draft *models.RaffleDraft, now time.Time) (*models.Raffle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, raffle := range r.raffles {
		if raffle.GroupID == draft.GroupID && raffle.Status == models.RaffleStatusActive {
			return nil, repository.ErrAlreadyExists
		}
	}
	r.nextID++
	started := now
	raffle := &models.Raffle{
		ID: r.nextID, GroupID: draft.GroupID, CreatorID: draft.CreatorID,
		Title: draft.Title, Message: draft.Message,
		MediaType: draft.MediaType, MediaFileID: draft.MediaFileID,
		Requirement: draft.Requirement, RequiredCount: draft.RequiredCount,
		WinnerCount: draft.WinnerCount, Status: models.RaffleStatusActive,
		PinMessage: draft.PinMessage, StartedAt: &started, CreatedAt: now,
	}
	r.raffles[raffle.ID] = raffle

	// Copy, not move: the draft keeps its channel list.
	if r.drafts != nil {
		for _, ch := range r.drafts.channels[draft.ID] {
			cp := *ch
			cp.DraftID = nil
			cp.RaffleID = &raffle.ID
			r.channels[raffle.ID] = append(r.channels[raffle.ID], &cp)
		}
	}
	out := *raffle
	return &out, nil
}

func (r *fakeRaffleRepo) GetByID(ctx context.Context, raffleID int64) (*models.Raffle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	raffle, ok := r.raffles[raffleID]
	if !ok {
		return nil, nil
	}
	out := *raffle
	return &out, nil
}

func (r *fakeRaffleRepo) GetActiveByGroup(ctx context.Context, groupID int64) (*models.Raffle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, raffle := range r.raffles {
		if raffle.GroupID == groupID && raffle.Status == models.RaffleStatusActive {
			out := *raffle
			return &out, nil
		}
	}
	return nil, nil
}

func (r *fakeRaffleRepo) GetActivePostPublish(ctx context.Context, groupID int64) (*models.Raffle, error) {
	raffle, err := r.GetActiveByGroup(ctx, groupID)
	if err != nil || raffle == nil || raffle.Requirement != models.RequirementPostPublish {
		return nil, err
	}
	return raffle, nil
}

func (r *fakeRaffleRepo) SetMessageRef(ctx context.Context, raffleID, messageID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if raffle, ok := r.raffles[raffleID]; ok {
		raffle.MessageID = &messageID
	}
	return nil
}

func (r *fakeRaffleRepo) UpdateWinnerCount(ctx context.Context, raffleID int64, count int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if raffle, ok := r.raffles[raffleID]; ok {
		raffle.WinnerCount = count
	}
	return nil
}

func (r *fakeRaffleRepo) Finish(ctx context.Context, raffleID int64, winners []models.RaffleWinner, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	raffle, ok := r.raffles[raffleID]
	if !ok || raffle.Status != models.RaffleStatusActive {
		return false, nil
	}
	raffle.Status = models.RaffleStatusEnded
	raffle.EndedAt = &now
	r.winners[raffleID] = append([]models.RaffleWinner(nil), winners...)
	return true, nil
}

func (r *fakeRaffleRepo) ListChannels(ctx context.Context, raffleID int64) ([]*models.RaffleChannel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*models.RaffleChannel(nil), r.channels[raffleID]...), nil
}

// fakeParticipantRepo reproduces the one-way promotion semantics.
type fakeParticipantRepo struct {
	mu           sync.Mutex
	nextID       int64
	participants map[[2]int64]*models.RaffleParticipant
}

func newFakeParticipantRepo() *fakeParticipantRepo {
	return &fakeParticipantRepo{participants: make(map[[2]int64]*models.RaffleParticipant)}
}

func (r *fakeParticipantRepo) Get(ctx context.Context, raffleID, userID int64) (*models.RaffleParticipant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.participants[[2]int64{raffleID, userID}]
	if !ok {
		return nil, nil
	}
	out := *p
	return &out, nil
}

func (r *fakeParticipantRepo) Promote(ctx context.Context, raffleID, userID int64, username, firstName string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := [2]int64{raffleID, userID}
	p, ok := r.participants[key]
	if !ok {
		r.nextID++
		joined := now
		r.participants[key] = &models.RaffleParticipant{
			ID: r.nextID, RaffleID: raffleID, UserID: userID,
			State: models.ParticipantEntrant, Username: username,
			FirstName: firstName, JoinedAt: &joined, CreatedAt: now,
		}
		return true, nil
	}
	if p.State == models.ParticipantEntrant {
		return false, nil
	}
	joined := now
	p.State = models.ParticipantEntrant
	p.Username = username
	p.FirstName = firstName
	p.JoinedAt = &joined
	return true, nil
}

func (r *fakeParticipantRepo) TrackPostPublish(ctx context.Context, raffleID, userID int64, username, firstName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := [2]int64{raffleID, userID}
	p, ok := r.participants[key]
	if !ok {
		r.nextID++
		r.participants[key] = &models.RaffleParticipant{
			ID: r.nextID, RaffleID: raffleID, UserID: userID,
			State: models.ParticipantTracking, Username: username,
			FirstName: firstName, PostPublishCount: 1,
		}
		return nil
	}
	p.PostPublishCount++
	return nil
}

func (r *fakeParticipantRepo) ListEntrants(ctx context.Context, raffleID int64) ([]*models.RaffleParticipant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.RaffleParticipant
	for _, p := range r.participants {
		if p.RaffleID == raffleID && p.State == models.ParticipantEntrant {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeParticipantRepo) CountEntrants(ctx context.Context, raffleID int64) (int, error) {
	entrants, _ := r.ListEntrants(ctx, raffleID)
	return len(entrants), nil
}

// fakeRollRepo holds one in-memory session per group behind a mutex, the
// way the postgres implementation holds the advisory lock.
type fakeRollRepo struct {
	mu     sync.Mutex
	groups map[int64]*rollState
}

type rollState struct {
	session *models.RollSession
	steps   []*fakeStep
	nextID  int64
}

type fakeStep struct {
	step  models.RollStep
	users map[int64]*models.RollStepUser
}

func newFakeRollRepo() *fakeRollRepo {
	return &fakeRollRepo{groups: make(map[int64]*rollState)}
}

func (r *fakeRollRepo) WithSession(ctx context.Context, groupID int64, fn func(tx repository.RollTx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	state, ok := r.groups[groupID]
	if !ok {
		state = &rollState{}
		r.groups[groupID] = state
	}
	return fn(&fakeRollTx{groupID: groupID, state: state})
}

type fakeRollTx struct {
	groupID int64
	state   *rollState
}

func (t *fakeRollTx) Session() *models.RollSession {
	return t.state.session
}

func (t *fakeRollTx) Reset(duration int) (*models.RollSession, error) {
	if duration < 1 {
		duration = 1
	}
	t.state.nextID++
	t.state.session = &models.RollSession{
		ID: t.state.nextID, GroupID: t.groupID,
		Status: models.RollActive, Duration: duration, CurrentStep: 1,
	}
	t.state.steps = nil
	t.openStep(1)
	return t.state.session, nil
}

func (t *fakeRollTx) SetStatus(status models.RollStatus, previous *models.RollStatus) error {
	t.state.session.Status = status
	t.state.session.PreviousStatus = previous
	return nil
}

func (t *fakeRollTx) openStep(number int) {
	t.state.nextID++
	t.state.steps = append(t.state.steps, &fakeStep{
		step:  models.RollStep{ID: t.state.nextID, SessionID: t.state.session.ID, StepNumber: number, IsActive: true},
		users: make(map[int64]*models.RollStepUser),
	})
}

func (t *fakeRollTx) OpenStep(number int) error {
	for _, s := range t.state.steps {
		s.step.IsActive = false
	}
	t.openStep(number)
	t.state.session.CurrentStep = number
	return nil
}

func (t *fakeRollTx) CloseOpenStep() error {
	for _, s := range t.state.steps {
		s.step.IsActive = false
	}
	return nil
}

func (t *fakeRollTx) ActiveStep() (*models.RollStep, error) {
	for _, s := range t.state.steps {
		if s.step.IsActive {
			out := s.step
			return &out, nil
		}
	}
	return nil, nil
}

func (t *fakeRollTx) findStep(stepID int64) *fakeStep {
	for _, s := range t.state.steps {
		if s.step.ID == stepID {
			return s
		}
	}
	return nil
}

func (t *fakeRollTx) UpsertUser(stepID, userID int64, name string, now time.Time) error {
	s := t.findStep(stepID)
	if s == nil {
		return nil
	}
	if u, ok := s.users[userID]; ok {
		u.MessageCount++
		u.LastActive = now
		u.Name = name
		return nil
	}
	t.state.nextID++
	s.users[userID] = &models.RollStepUser{
		ID: t.state.nextID, StepID: stepID, UserID: userID,
		Name: name, MessageCount: 1, LastActive: now,
	}
	return nil
}

func (t *fakeRollTx) TouchUser(stepID, userID int64, name string, now time.Time) error {
	s := t.findStep(stepID)
	if s == nil {
		return nil
	}
	if u, ok := s.users[userID]; ok {
		u.MessageCount++
		u.LastActive = now
		u.Name = name
	}
	return nil
}

func (t *fakeRollTx) RefreshAll(now time.Time) error {
	for _, s := range t.state.steps {
		for _, u := range s.users {
			u.LastActive = now
		}
	}
	return nil
}

func (t *fakeRollTx) DeleteInactive(cutoff time.Time) (int, error) {
	evicted := 0
	for _, s := range t.state.steps {
		for id, u := range s.users {
			if u.LastActive.Before(cutoff) {
				delete(s.users, id)
				evicted++
			}
		}
	}
	kept := t.state.steps[:0]
	for _, s := range t.state.steps {
		if s.step.IsActive || len(s.users) > 0 {
			kept = append(kept, s)
		}
	}
	t.state.steps = kept
	return evicted, nil
}

func (t *fakeRollTx) CountStepUsers(stepID int64) (int, error) {
	s := t.findStep(stepID)
	if s == nil {
		return 0, nil
	}
	return len(s.users), nil
}

func (t *fakeRollTx) Steps() ([]*models.RollStep, error) {
	var out []*models.RollStep
	for _, s := range t.state.steps {
		step := s.step
		for _, u := range s.users {
			step.Users = append(step.Users, *u)
		}
		sort.Slice(step.Users, func(i, j int) bool {
			return step.Users[i].MessageCount > step.Users[j].MessageCount
		})
		out = append(out, &step)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StepNumber < out[j].StepNumber })
	return out, nil
}

// testEnv bundles a Service wired to fakes.
type testEnv struct {
	svc          *Service
	oracle       *fakeOracle
	groups       *fakeGroupRepo
	admins       *fakeAdminRepo
	counters     *fakeCounterRepo
	drafts       *fakeDraftRepo
	raffles      *fakeRaffleRepo
	participants *fakeParticipantRepo
	rolls        *fakeRollRepo
}

func newTestEnv(adminTTL time.Duration) *testEnv {
	env := &testEnv{
		oracle:       newFakeOracle(),
		groups:       newFakeGroupRepo(),
		admins:       &fakeAdminRepo{},
		counters:     newFakeCounterRepo(),
		drafts:       newFakeDraftRepo(),
		participants: newFakeParticipantRepo(),
		rolls:        newFakeRollRepo(),
	}
	env.raffles = newFakeRaffleRepo(env.drafts)
	env.svc = New(nil, testLogger(), time.FixedZone("test", 3*3600), adminTTL,
		env.oracle,
		env.groups, env.admins, env.counters,
		env.drafts, env.raffles, env.participants, env.rolls,
	)
	return env
}

package application_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danakj/fizz/internal/application"
	"github.com/danakj/fizz/internal/domain/model"
	"github.com/danakj/fizz/internal/domain/port/driven"
)

// --- Fakes ---

type fakeGitHubClient struct {
	prs    []model.PullRequest
	issues []model.Issue
	prErr  error

	fetchCalls int
}

func (f *fakeGitHubClient) FetchOpenPullRequests(context.Context, string, string) ([]model.PullRequest, error) {
	f.fetchCalls++
	if f.prErr != nil {
		return nil, f.prErr
	}
	return f.prs, nil
}

func (f *fakeGitHubClient) FetchOpenIssues(context.Context, string, string) ([]model.Issue, error) {
	f.fetchCalls++
	return f.issues, nil
}

// memConfigStore keeps the document in memory. Save clones, so later registry
// mutations cannot reach back into a stored snapshot.
type memConfigStore struct {
	cfg *model.Config
}

func (s *memConfigStore) Load(context.Context) (*model.Config, error) {
	if s.cfg == nil {
		return nil, driven.ErrConfigNotFound
	}
	return s.cfg.Clone(), nil
}

func (s *memConfigStore) Save(_ context.Context, cfg *model.Config) error {
	s.cfg = cfg.Clone()
	return nil
}

// --- Fixture ---

const (
	fixtureGuild = model.GuildID("guild-1")
	fixtureUser  = model.UserID("100")
)

// fixtureConfig has one guild with a single lead member in New York working
// Monday through Friday with a 09:00 report time.
func fixtureConfig() *model.Config {
	member := model.NewMemberConfig("casey")
	member.GitHubLogins = []string{"casey-gh"}
	member.Lead = true
	member.Timezone = "America/New_York"
	member.ReportTimes = []model.TimeOfDay{{Hour: 9}}

	cfg := model.NewConfig()
	cfg.Guilds[fixtureGuild] = &model.GuildConfig{
		RepoOwner:       "acme",
		RepoName:        "widgets",
		ReportChannelID: testChannel,
		Members:         map[model.UserID]*model.MemberConfig{fixtureUser: member},
	}
	return cfg
}

func fixturePR() model.PullRequest {
	return model.PullRequest{
		Number:             7,
		Title:              "Fix the frobnicator",
		Author:             "riley-gh",
		URL:                "https://github.com/acme/widgets/pull/7",
		RequestedReviewers: []string{"casey-gh"},
	}
}

type watchFixture struct {
	registry *application.Registry
	github   *fakeGitHubClient
	chat     *fakeChatClient
	watch    *application.WatchService
}

func newWatchFixture(t *testing.T, cfg *model.Config) *watchFixture {
	t.Helper()
	store := &memConfigStore{cfg: cfg}
	registry, err := application.NewRegistry(context.Background(), store)
	require.NoError(t, err)

	github := &fakeGitHubClient{}
	chat := newFakeChatClient()
	watch := application.NewWatchService(registry, github, application.NewNotifyService(chat), time.Minute)
	return &watchFixture{registry: registry, github: github, chat: chat, watch: watch}
}

// 08:59 -> 09:01 local on Monday 2026-03-02; EST is UTC-5.
var (
	beforeNine = time.Date(2026, 3, 2, 13, 59, 0, 0, time.UTC)
	afterNine  = time.Date(2026, 3, 2, 14, 1, 0, 0, time.UTC)
)

// --- Tests ---

func TestRunCycleDeliversDueAlerts(t *testing.T) {
	f := newWatchFixture(t, fixtureConfig())
	f.github.prs = []model.PullRequest{fixturePR()}

	err := f.watch.RunCycle(context.Background(), beforeNine, afterNine, "")
	require.NoError(t, err)

	var prMsg string
	for _, msg := range f.chat.sends {
		if strings.HasPrefix(msg, ":notepad_spiral:") {
			prMsg = msg
		}
	}
	require.NotEmpty(t, prMsg, "expected a pull-request alert")
	assert.Contains(t, prMsg, "<@100>")
	assert.Contains(t, prMsg, "[PR #7]")
}

func TestRunCycleSkipsMemberOutsideWindow(t *testing.T) {
	f := newWatchFixture(t, fixtureConfig())
	f.github.prs = []model.PullRequest{fixturePR()}

	// 09:02 -> 09:04 local: the 09:00 instant is outside the window.
	lastRun := afterNine.Add(time.Minute)
	now := afterNine.Add(3 * time.Minute)
	err := f.watch.RunCycle(context.Background(), lastRun, now, "")
	require.NoError(t, err)

	assert.Empty(t, f.chat.sends)
}

func TestRunCycleWakeBypassesWindows(t *testing.T) {
	f := newWatchFixture(t, fixtureConfig())
	f.github.prs = []model.PullRequest{fixturePR()}

	lastRun := afterNine.Add(time.Minute)
	now := afterNine.Add(3 * time.Minute)
	err := f.watch.RunCycle(context.Background(), lastRun, now, fixtureGuild)
	require.NoError(t, err)

	require.NotEmpty(t, f.chat.sends)
	assert.Contains(t, f.chat.sends[0], "[PR #7]")
}

func TestRunCycleWakeKeepsWeeklyThrottle(t *testing.T) {
	cfg := fixtureConfig()
	twoDaysAgo := afterNine.Add(-48 * time.Hour)
	cfg.Guilds[fixtureGuild].Members[fixtureUser].LastWeeklyReport = &twoDaysAgo

	f := newWatchFixture(t, cfg)
	f.github.issues = []model.Issue{{
		Number: 5,
		Title:  "Long tail cleanup",
		URL:    "https://github.com/acme/widgets/issues/5",
		Labels: []string{"leads question", "long term issue"},
	}}

	err := f.watch.RunCycle(context.Background(), beforeNine, afterNine, fixtureGuild)
	require.NoError(t, err)

	for _, msg := range f.chat.sends {
		assert.NotContains(t, msg, ":chipmunk:", "weekly summary delivered despite the throttle")
	}
}

func TestRunCycleDeliversAndStampsWeekly(t *testing.T) {
	f := newWatchFixture(t, fixtureConfig())
	f.github.issues = []model.Issue{{
		Number: 5,
		Title:  "Long tail cleanup",
		URL:    "https://github.com/acme/widgets/issues/5",
		Labels: []string{"leads question"},
	}}

	err := f.watch.RunCycle(context.Background(), beforeNine, afterNine, "")
	require.NoError(t, err)

	var weekly string
	for _, msg := range f.chat.sends {
		if strings.HasPrefix(msg, ":chipmunk:") {
			weekly = msg
		}
	}
	require.NotEmpty(t, weekly, "expected a weekly summary")
	assert.Contains(t, weekly, "[Issue #5]")

	guilds := f.registry.SnapshotGuilds()
	stamp := guilds[fixtureGuild].Members[fixtureUser].LastWeeklyReport
	require.NotNil(t, stamp)
	assert.True(t, stamp.Equal(afterNine), "throttle stamped with the cycle instant")
}

func TestRunCycleWeeklyFailureLeavesThrottleUnset(t *testing.T) {
	f := newWatchFixture(t, fixtureConfig())
	f.github.issues = []model.Issue{{
		Number: 5,
		Title:  "Long tail cleanup",
		URL:    "https://github.com/acme/widgets/issues/5",
		Labels: []string{"leads question"},
	}}
	f.chat.sendErr = fmt.Errorf("discord unavailable")

	err := f.watch.RunCycle(context.Background(), beforeNine, afterNine, "")
	require.Error(t, err)

	var cerr *application.CycleError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, application.PhaseDeliver, cerr.Phase)

	// The throttle is stamped only after the member's delivery succeeded; a
	// failed weekly stays owed to the retried watermark.
	guilds := f.registry.SnapshotGuilds()
	assert.Nil(t, guilds[fixtureGuild].Members[fixtureUser].LastWeeklyReport)
}

func TestRunCycleFetchFailureDeliversNothing(t *testing.T) {
	f := newWatchFixture(t, fixtureConfig())
	f.github.prErr = fmt.Errorf("github unavailable")

	err := f.watch.RunCycle(context.Background(), beforeNine, afterNine, "")
	require.Error(t, err)

	var cerr *application.CycleError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, application.PhaseFetch, cerr.Phase)
	assert.Equal(t, fixtureGuild, cerr.Guild)
	assert.Empty(t, f.chat.sends)
}

func TestRunCycleDeliverFailureReportsPhase(t *testing.T) {
	f := newWatchFixture(t, fixtureConfig())
	f.github.prs = []model.PullRequest{fixturePR()}
	f.chat.sendErr = fmt.Errorf("discord unavailable")

	err := f.watch.RunCycle(context.Background(), beforeNine, afterNine, "")
	require.Error(t, err)

	var cerr *application.CycleError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, application.PhaseDeliver, cerr.Phase)
}

func TestRunCycleRetrySameWatermark(t *testing.T) {
	f := newWatchFixture(t, fixtureConfig())
	f.github.prs = []model.PullRequest{fixturePR()}
	f.github.prErr = fmt.Errorf("github unavailable")

	// First attempt fails; the loop would keep lastRun and retry the same
	// window after the backoff.
	err := f.watch.RunCycle(context.Background(), beforeNine, afterNine, "")
	require.Error(t, err)
	require.Empty(t, f.chat.sends)

	// The retry with the unchanged watermark still sees the 09:00 instant and
	// delivers the alert that the failed cycle owed.
	f.github.prErr = nil
	err = f.watch.RunCycle(context.Background(), beforeNine, afterNine, "")
	require.NoError(t, err)
	require.NotEmpty(t, f.chat.sends)
	assert.Contains(t, f.chat.sends[0], "[PR #7]")
}

func TestRunCycleSkipsGuildWithoutChannel(t *testing.T) {
	cfg := fixtureConfig()
	cfg.Guilds[fixtureGuild].ReportChannelID = ""

	f := newWatchFixture(t, cfg)
	err := f.watch.RunCycle(context.Background(), beforeNine, afterNine, "")
	require.NoError(t, err)

	assert.Zero(t, f.github.fetchCalls)
	assert.Empty(t, f.chat.sends)
}

func TestWakeRejectsWhenQueueFull(t *testing.T) {
	f := newWatchFixture(t, fixtureConfig())

	var err error
	for range 64 {
		if err = f.watch.Wake(fixtureGuild); err != nil {
			break
		}
	}
	assert.ErrorIs(t, err, application.ErrWakeUnavailable)
}

func TestRegistryUpdateMemberCreatesDefaults(t *testing.T) {
	store := &memConfigStore{}
	registry, err := application.NewRegistry(context.Background(), store)
	require.NoError(t, err)

	err = registry.UpdateMember(context.Background(), fixtureGuild, fixtureUser, "casey", func(m *model.MemberConfig) error {
		m.Lead = true
		return nil
	})
	require.NoError(t, err)

	guilds := registry.SnapshotGuilds()
	m := guilds[fixtureGuild].Members[fixtureUser]
	require.NotNil(t, m)
	assert.Equal(t, "casey", m.FriendlyName)
	assert.True(t, m.Lead)
	assert.Len(t, m.Workdays, 5)
	assert.Len(t, m.ReportTimes, 2)

	// The mutated document was persisted.
	require.NotNil(t, store.cfg)
	assert.True(t, store.cfg.Guilds[fixtureGuild].Members[fixtureUser].Lead)
}

func TestRegistrySnapshotIsDetached(t *testing.T) {
	store := &memConfigStore{cfg: fixtureConfig()}
	registry, err := application.NewRegistry(context.Background(), store)
	require.NoError(t, err)

	snap := registry.SnapshotGuilds()
	snap[fixtureGuild].Members[fixtureUser].FriendlyName = "mutated"

	fresh := registry.SnapshotGuilds()
	assert.Equal(t, "casey", fresh[fixtureGuild].Members[fixtureUser].FriendlyName)
}

func TestRegistryRemoveMember(t *testing.T) {
	store := &memConfigStore{cfg: fixtureConfig()}
	registry, err := application.NewRegistry(context.Background(), store)
	require.NoError(t, err)

	require.NoError(t, registry.RemoveMember(context.Background(), fixtureGuild, fixtureUser))
	assert.Empty(t, registry.SnapshotGuilds()[fixtureGuild].Members)

	// Unknown members are a no-op, not an error.
	require.NoError(t, registry.RemoveMember(context.Background(), fixtureGuild, "999"))
}

func TestRegistryMarkWeeklyReportedUnknownMember(t *testing.T) {
	store := &memConfigStore{cfg: fixtureConfig()}
	registry, err := application.NewRegistry(context.Background(), store)
	require.NoError(t, err)

	require.NoError(t, registry.MarkWeeklyReported(context.Background(), "other-guild", fixtureUser, time.Now()))
	require.NoError(t, registry.MarkWeeklyReported(context.Background(), fixtureGuild, "999", time.Now()))
}

package application

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/danakj/fizz/internal/domain/model"
	"github.com/danakj/fizz/internal/domain/port/driven"
)

const (
	// wakeQueueSize bounds pending manual wake requests. A busy loop drains
	// them at the next dispatch point; an in-flight cycle is never preempted.
	wakeQueueSize = 16
	// cycleBackoff is how long the loop waits after a failed cycle before
	// retrying the same watermark.
	cycleBackoff = 3 * time.Second
)

// WatchService owns the report loop: it wakes on a fixed interval or on a
// manual request, assembles alerts for every guild, and hands them to the
// deliverer. The last-success watermark only advances when a whole cycle
// succeeds, so a failed cycle's due notifications are retried rather than
// skipped; the deliverer's resync keeps those retries idempotent.
type WatchService struct {
	registry *Registry
	github   driven.GitHubClient
	notify   *NotifyService
	interval time.Duration
	backoff  time.Duration
	wakeCh   chan model.GuildID
	now      func() time.Time
}

// NewWatchService creates the watch service. Exactly one instance runs per
// process; the wake channel is created here so Wake works from the moment of
// construction, with no process-wide shared handle.
func NewWatchService(registry *Registry, github driven.GitHubClient, notify *NotifyService, interval time.Duration) *WatchService {
	return &WatchService{
		registry: registry,
		github:   github,
		notify:   notify,
		interval: interval,
		backoff:  cycleBackoff,
		wakeCh:   make(chan model.GuildID, wakeQueueSize),
		now:      time.Now,
	}
}

// Wake queues an immediate report for one guild, bypassing every member's
// time window (the weekly throttle still applies). It never blocks; when the
// queue is full it returns ErrWakeUnavailable and the caller should retry.
func (s *WatchService) Wake(guildID model.GuildID) error {
	select {
	case s.wakeCh <- guildID:
		return nil
	default:
		return ErrWakeUnavailable
	}
}

// Start runs the report loop until ctx is canceled. On each pass it waits for
// the interval tick or a wake request, runs one cycle against the current
// watermark, and advances the watermark only on success.
func (s *WatchService) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	lastRun := s.now()
	slog.Info("watch service started", "interval", s.interval)

	for {
		var wakeGuild model.GuildID
		select {
		case <-ctx.Done():
			slog.Info("watch service stopped")
			return
		case wakeGuild = <-s.wakeCh:
			slog.Info("manual wake received", "guild", wakeGuild)
		case <-ticker.C:
		}

		now := s.now()
		if err := s.RunCycle(ctx, lastRun, now, wakeGuild); err != nil {
			logCycleError(err)
			select {
			case <-ctx.Done():
				slog.Info("watch service stopped")
				return
			case <-time.After(s.backoff):
			}
			continue
		}
		lastRun = now
	}
}

// guildAlerts is one guild's assembled work for a cycle: per-member timed
// alerts and weekly summaries, all filtered and ready to deliver.
type guildAlerts struct {
	guildID model.GuildID
	channel model.ChannelID
	timed   []memberAlerts
	weekly  []memberWeekly
}

type memberAlerts struct {
	member  model.UserID
	prs     []model.ReviewPR
	blocked []model.LeadsIssue
}

type memberWeekly struct {
	member model.UserID
	issues []model.LeadsIssue
}

// RunCycle evaluates and delivers one cycle over the (lastRun, now] window.
// A non-empty wakeGuild makes every member of that guild due regardless of
// their window. All guilds are fetched and evaluated before any delivery
// starts, so a fetch failure aborts the cycle before anything is posted.
func (s *WatchService) RunCycle(ctx context.Context, lastRun, now time.Time, wakeGuild model.GuildID) error {
	guilds := s.registry.SnapshotGuilds()

	ids := make([]model.GuildID, 0, len(guilds))
	for id := range guilds {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var assembled []guildAlerts
	for _, guildID := range ids {
		guild := guilds[guildID]
		if guild.ReportChannelID == "" {
			continue
		}
		ga, err := s.assembleGuild(ctx, guildID, guild, lastRun, now, wakeGuild == guildID)
		if err != nil {
			return err
		}
		assembled = append(assembled, ga)
	}

	// Weekly summaries first, stamping each member's throttle only after
	// their delivery succeeded; then the timed alerts.
	for _, ga := range assembled {
		for _, w := range ga.weekly {
			if err := s.notify.DeliverWeeklyAlerts(ctx, ga.channel, w.member, w.issues); err != nil {
				return &CycleError{Phase: PhaseDeliver, Guild: ga.guildID, Err: err}
			}
			if err := s.registry.MarkWeeklyReported(ctx, ga.guildID, w.member, now); err != nil {
				return &CycleError{Phase: PhaseConfig, Guild: ga.guildID, Err: err}
			}
		}
	}
	for _, ga := range assembled {
		for _, a := range ga.timed {
			if err := s.notify.DeliverNowAlerts(ctx, ga.channel, a.member, a.prs, a.blocked); err != nil {
				return &CycleError{Phase: PhaseDeliver, Guild: ga.guildID, Err: err}
			}
		}
	}
	return nil
}

// assembleGuild fetches the guild's open review work and groups it per due
// member. The guild snapshot is caller-owned, so holding no lock across the
// fetches is safe.
func (s *WatchService) assembleGuild(ctx context.Context, guildID model.GuildID, guild *model.GuildConfig, lastRun, now time.Time, ignoreWindows bool) (guildAlerts, error) {
	prs, err := s.github.FetchOpenPullRequests(ctx, guild.RepoOwner, guild.RepoName)
	if err != nil {
		return guildAlerts{}, &CycleError{Phase: PhaseFetch, Guild: guildID, Err: err}
	}
	issues, err := s.github.FetchOpenIssues(ctx, guild.RepoOwner, guild.RepoName)
	if err != nil {
		return guildAlerts{}, &CycleError{Phase: PhaseFetch, Guild: guildID, Err: err}
	}

	reviewPRs := ResolveReviewers(prs, guild)
	leadsIssues := ClassifyLeadsIssues(issues, guild)

	ga := guildAlerts{guildID: guildID, channel: guild.ReportChannelID}
	for _, userID := range sortedMemberIDs(guild) {
		member := guild.Members[userID]
		if !ignoreWindows && !MemberDue(member, lastRun, now) {
			continue
		}
		ga.timed = append(ga.timed, memberAlerts{
			member:  userID,
			prs:     prsAwaitingReview(reviewPRs, userID),
			blocked: blockedIssuesFor(leadsIssues, userID),
		})
		if WeeklyReportDue(member, now) {
			ga.weekly = append(ga.weekly, memberWeekly{
				member: userID,
				issues: weeklyIssuesFor(leadsIssues, userID),
			})
		}
	}
	return ga, nil
}

func logCycleError(err error) {
	var cerr *CycleError
	if errors.As(err, &cerr) {
		slog.Error("report cycle failed", "phase", string(cerr.Phase), "guild", string(cerr.Guild), "error", cerr.Err)
		return
	}
	slog.Error("report cycle failed", "error", err)
}

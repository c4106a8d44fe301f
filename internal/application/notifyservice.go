package application

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/danakj/fizz/internal/domain/model"
	"github.com/danakj/fizz/internal/domain/port/driven"
)

// Fixed alert headers. Each posted message starts with one of these followed
// by the member's mention; the resync pass recognizes earlier alerts by that
// exact prefix.
const (
	prHeader            = ":notepad_spiral: PRs for review "
	blockedIssuesHeader = ":fire_engine: Open leads issues (blocking) "
	weeklyIssuesHeader  = ":chipmunk: Open leads issues (non-blocking) "
)

// maxMessageBytes is the chat platform's hard cap on message content.
const maxMessageBytes = 2000

// NotifyService renders alerts into size-bounded messages and keeps the
// report channel's message list in sync: for each (member, category) it
// deletes the bot's earlier alert messages, then posts the fresh set. The
// delete-then-post pattern makes redelivery after a retried cycle idempotent.
type NotifyService struct {
	chat driven.ChatClient
}

// NewNotifyService creates a NotifyService posting through the given client.
func NewNotifyService(chat driven.ChatClient) *NotifyService {
	return &NotifyService{chat: chat}
}

// DeliverNowAlerts replaces the member's pull-request and blocked-issue
// alerts in the channel. Empty item lists still run the resync, which alone
// clears any stale content.
func (s *NotifyService) DeliverNowAlerts(ctx context.Context, channel model.ChannelID, member model.UserID, prs []model.ReviewPR, blocked []model.LeadsIssue) error {
	prHdr := prHeader + member.Mention()
	issueHdr := blockedIssuesHeader + member.Mention()

	if err := s.resync(ctx, channel, prHdr); err != nil {
		return err
	}
	if err := s.resync(ctx, channel, issueHdr); err != nil {
		return err
	}

	prLines := make([]string, 0, len(prs))
	for _, pr := range prs {
		prLines = append(prLines, formatPR(pr))
	}
	if err := s.post(ctx, channel, prHdr, prLines); err != nil {
		return err
	}
	return s.post(ctx, channel, issueHdr, issueLines(blocked))
}

// DeliverWeeklyAlerts replaces the member's non-blocking issue summary in the
// channel.
func (s *NotifyService) DeliverWeeklyAlerts(ctx context.Context, channel model.ChannelID, member model.UserID, issues []model.LeadsIssue) error {
	hdr := weeklyIssuesHeader + member.Mention()
	if err := s.resync(ctx, channel, hdr); err != nil {
		return err
	}
	return s.post(ctx, channel, hdr, issueLines(issues))
}

// resync deletes every non-ephemeral message in the channel that the bot
// authored and that starts with the tagged header. The list/delete pass
// repeats until it deletes nothing, so alerts beyond the first page of a
// paged message list are swept too.
func (s *NotifyService) resync(ctx context.Context, channel model.ChannelID, header string) error {
	botID, err := s.chat.CurrentUserID(ctx)
	if err != nil {
		return fmt.Errorf("resolving bot identity: %w", err)
	}

	for {
		msgs, err := s.chat.ListChannelMessages(ctx, channel)
		if err != nil {
			return fmt.Errorf("listing channel messages: %w", err)
		}

		deleted := false
		for _, m := range msgs {
			if m.Ephemeral || m.AuthorID != botID || !strings.HasPrefix(m.Content, header) {
				continue
			}
			if err := s.chat.DeleteMessage(ctx, channel, m.ID); err != nil {
				return fmt.Errorf("deleting stale alert: %w", err)
			}
			deleted = true
		}
		if !deleted {
			return nil
		}
	}
}

// post packs the lines into as few messages as fit under the byte cap and
// sends them in order. No lines means nothing is sent.
func (s *NotifyService) post(ctx context.Context, channel model.ChannelID, header string, lines []string) error {
	for _, msg := range packMessages(header, lines) {
		if err := s.chat.SendMessage(ctx, channel, msg); err != nil {
			return fmt.Errorf("sending alert: %w", err)
		}
	}
	return nil
}

// packMessages greedily packs "\n* "-prefixed lines under the header, capping
// each message at maxMessageBytes and starting a new one whenever the next
// line would overflow. Every emitted message carries the header, so a header
// is never separated from its body lines. A single line that alone exceeds
// the cap is truncated to fit rather than stalling the report.
func packMessages(header string, lines []string) []string {
	var msgs []string
	var body strings.Builder

	flush := func() {
		if body.Len() > 0 {
			msgs = append(msgs, header+body.String())
			body.Reset()
		}
	}

	for _, line := range lines {
		entry := "\n* " + line
		if len(header)+len(entry) > maxMessageBytes {
			// Truncation can chop a closing backtick and reopen an inline-code
			// span; leave a byte of room and re-close.
			entry = truncateToValidUTF8(entry, maxMessageBytes-len(header)-1)
			entry += closeUnbalancedCode(entry)
		}
		if len(header)+body.Len()+len(entry) > maxMessageBytes {
			flush()
		}
		body.WriteString(entry)
	}
	flush()
	return msgs
}

func truncateToValidUTF8(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	s = s[:n]
	for len(s) > 0 && !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}

// formatPR renders one pull request line: link, author in bold, then the
// title indented on its own line.
func formatPR(pr model.ReviewPR) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[PR #%d](<%s>)", pr.Number, pr.URL)
	if pr.Author != "" {
		fmt.Fprintf(&b, " **%s**", pr.Author)
	}
	if pr.Title != "" {
		fmt.Fprintf(&b, "\n    %s", pr.Title)
		b.WriteString(closeUnbalancedCode(pr.Title))
	}
	return b.String()
}

// formatIssue renders one issue line: link followed by the title.
func formatIssue(issue model.LeadsIssue) string {
	return fmt.Sprintf("[Issue #%d](<%s>) %s%s", issue.Number, issue.URL, issue.Title, closeUnbalancedCode(issue.Title))
}

// closeUnbalancedCode returns a closing backtick when s leaves an inline-code
// span open, so formatting never leaks past it.
func closeUnbalancedCode(s string) string {
	if strings.Count(s, "`")%2 == 1 {
		return "`"
	}
	return ""
}

func issueLines(issues []model.LeadsIssue) []string {
	lines := make([]string, 0, len(issues))
	for _, issue := range issues {
		lines = append(lines, formatIssue(issue))
	}
	return lines
}

package application

import (
	"sort"

	"github.com/danakj/fizz/internal/domain/model"
)

// Labels on the source repository that drive issue routing.
const (
	labelLeadsIssue = "leads question"
	labelBlocked    = "blocking work"
	labelBackground = "long term issue"
)

// ResolveReviewers maps each pull request's requested reviewers to guild
// members via their linked GitHub logins.
func ResolveReviewers(prs []model.PullRequest, guild *model.GuildConfig) []model.ReviewPR {
	ids := sortedMemberIDs(guild)
	out := make([]model.ReviewPR, 0, len(prs))
	for _, pr := range prs {
		rpr := model.ReviewPR{PullRequest: pr}
		for _, id := range ids {
			m := guild.Members[id]
			for _, login := range pr.RequestedReviewers {
				if hasLogin(m, login) {
					rpr.MemberIDs = append(rpr.MemberIDs, id)
					break
				}
			}
		}
		out = append(out, rpr)
	}
	return out
}

func hasLogin(m *model.MemberConfig, login string) bool {
	for _, l := range m.GitHubLogins {
		if l == login {
			return true
		}
	}
	return false
}

// ClassifyLeadsIssues keeps only lead-relevant issues, classifies their
// urgency, and attaches every lead in the guild (leads issues concern all
// leads, not just assignees). Blocked takes precedence over background.
func ClassifyLeadsIssues(issues []model.Issue, guild *model.GuildConfig) []model.LeadsIssue {
	var leads []model.UserID
	for _, id := range sortedMemberIDs(guild) {
		if guild.Members[id].Lead {
			leads = append(leads, id)
		}
	}

	var out []model.LeadsIssue
	for _, issue := range issues {
		isLeads := false
		urgency := model.UrgencyNormal
		for _, label := range issue.Labels {
			switch label {
			case labelLeadsIssue:
				isLeads = true
			case labelBlocked:
				urgency = model.UrgencyBlocked
			case labelBackground:
				if urgency != model.UrgencyBlocked {
					urgency = model.UrgencyBackground
				}
			}
		}
		if !isLeads {
			continue
		}
		out = append(out, model.LeadsIssue{
			Issue:   issue,
			Urgency: urgency,
			LeadIDs: append([]model.UserID(nil), leads...),
		})
	}
	return out
}

// prsAwaitingReview returns the pull requests waiting on the member.
func prsAwaitingReview(prs []model.ReviewPR, id model.UserID) []model.ReviewPR {
	var out []model.ReviewPR
	for _, pr := range prs {
		if pr.RelevantTo(id) {
			out = append(out, pr)
		}
	}
	return out
}

// blockedIssuesFor returns the blocked leads issues relevant to the member.
func blockedIssuesFor(issues []model.LeadsIssue, id model.UserID) []model.LeadsIssue {
	var out []model.LeadsIssue
	for _, issue := range issues {
		if issue.Urgency == model.UrgencyBlocked && issue.RelevantTo(id) {
			out = append(out, issue)
		}
	}
	return out
}

// weeklyIssuesFor returns the non-blocking leads issues relevant to the
// member: both normal and background urgency ride the weekly path.
func weeklyIssuesFor(issues []model.LeadsIssue, id model.UserID) []model.LeadsIssue {
	var out []model.LeadsIssue
	for _, issue := range issues {
		if issue.Urgency != model.UrgencyBlocked && issue.RelevantTo(id) {
			out = append(out, issue)
		}
	}
	return out
}

// sortedMemberIDs returns the guild's member ids in a stable order, so
// resolution and delivery are deterministic across cycles.
func sortedMemberIDs(guild *model.GuildConfig) []model.UserID {
	ids := make([]model.UserID, 0, len(guild.Members))
	for id := range guild.Members {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

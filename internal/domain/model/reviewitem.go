package model

// Urgency classifies a leads issue for alert routing. Blocked issues ride the
// timed "now" path; normal and background issues ride the weekly path.
type Urgency string

const (
	UrgencyBlocked    Urgency = "blocked"
	UrgencyNormal     Urgency = "normal"
	UrgencyBackground Urgency = "background"
)

// PullRequest is an open pull request as fetched from the source repository.
type PullRequest struct {
	Number             int
	Title              string
	Author             string
	URL                string
	RequestedReviewers []string // GitHub logins.
}

// Issue is an open issue as fetched from the source repository.
type Issue struct {
	Number int
	Title  string
	URL    string
	Labels []string
}

// ReviewPR is a pull request resolved against one guild: MemberIDs are the
// members whose linked GitHub logins appear among the requested reviewers.
type ReviewPR struct {
	PullRequest
	MemberIDs []UserID
}

// RelevantTo reports whether the pull request awaits review from the member.
func (pr ReviewPR) RelevantTo(id UserID) bool {
	for _, m := range pr.MemberIDs {
		if m == id {
			return true
		}
	}
	return false
}

// LeadsIssue is a lead-relevant issue resolved against one guild: LeadIDs are
// every member flagged as a lead, regardless of assignment.
type LeadsIssue struct {
	Issue
	Urgency Urgency
	LeadIDs []UserID
}

// RelevantTo reports whether the issue concerns the member as a lead.
func (i LeadsIssue) RelevantTo(id UserID) bool {
	for _, l := range i.LeadIDs {
		if l == id {
			return true
		}
	}
	return false
}

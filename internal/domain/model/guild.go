// Package model contains the domain types for guild review notifications.
package model

import "time"

// ConfigVersion is the schema version of the persisted configuration this
// build understands. The store rejects documents with any other version.
const ConfigVersion = 1

// GuildID is a stable chat guild (server) identifier.
type GuildID string

// UserID is a stable chat user identifier.
type UserID string

// Mention renders the user as a chat mention.
func (id UserID) Mention() string { return "<@" + string(id) + ">" }

// ChannelID is a stable channel identifier within a guild.
type ChannelID string

// Config is the whole persisted configuration document: one GuildConfig per
// guild the bot reports into.
type Config struct {
	Version int
	Guilds  map[GuildID]*GuildConfig
}

// NewConfig returns an empty configuration at the current schema version.
func NewConfig() *Config {
	return &Config{
		Version: ConfigVersion,
		Guilds:  map[GuildID]*GuildConfig{},
	}
}

// Clone returns a deep copy. Used to hand snapshots across the registry lock
// boundary without sharing mutable state.
func (c *Config) Clone() *Config {
	out := &Config{
		Version: c.Version,
		Guilds:  make(map[GuildID]*GuildConfig, len(c.Guilds)),
	}
	for id, g := range c.Guilds {
		out.Guilds[id] = g.Clone()
	}
	return out
}

// GuildConfig binds one guild to a source repository and a report channel,
// and holds the per-member notification settings.
type GuildConfig struct {
	RepoOwner string
	RepoName  string
	// ReportChannelID is where alerts are posted. Empty means reporting is
	// not set up for the guild and it is skipped entirely.
	ReportChannelID ChannelID
	// ReportChannelName is the channel's friendly name when it was configured.
	// It may go stale if the channel is renamed.
	ReportChannelName string
	Members           map[UserID]*MemberConfig
}

// Clone returns a deep copy.
func (g *GuildConfig) Clone() *GuildConfig {
	out := &GuildConfig{
		RepoOwner:         g.RepoOwner,
		RepoName:          g.RepoName,
		ReportChannelID:   g.ReportChannelID,
		ReportChannelName: g.ReportChannelName,
		Members:           make(map[UserID]*MemberConfig, len(g.Members)),
	}
	for id, m := range g.Members {
		out.Members[id] = m.Clone()
	}
	return out
}

// MemberConfig holds one member's notification settings and the weekly-report
// throttle state.
type MemberConfig struct {
	// FriendlyName is the member's display name when first seen. May go stale.
	FriendlyName string
	// GitHubLogins links the member to review requests on the source repo.
	GitHubLogins []string
	// Lead marks the member as a recipient of leads-issue alerts.
	Lead bool
	// Timezone is an IANA zone name. Empty or unknown zones fall back to UTC.
	Timezone string
	// Workdays are the weekdays on which the member receives timed reports.
	Workdays []time.Weekday
	// ReportTimes are the member's local times of day for timed reports.
	ReportTimes []TimeOfDay
	// AwayUntil suppresses reports up to and including this local date.
	AwayUntil *Date
	// LastWeeklyReport is when the member last received the non-blocking
	// issue summary. Nil means never.
	LastWeeklyReport *time.Time
}

// NewMemberConfig returns settings for a newly seen member: Monday through
// Friday workdays with reports at 09:00 and 12:00 local time.
func NewMemberConfig(friendlyName string) *MemberConfig {
	return &MemberConfig{
		FriendlyName: friendlyName,
		Workdays: []time.Weekday{
			time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday,
		},
		ReportTimes: []TimeOfDay{
			{Hour: 9},
			{Hour: 12},
		},
	}
}

// Location resolves the member's timezone, falling back to UTC when the zone
// is empty or unknown.
func (m *MemberConfig) Location() *time.Location {
	if m.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(m.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// WorksOn reports whether the weekday is one of the member's workdays.
func (m *MemberConfig) WorksOn(day time.Weekday) bool {
	for _, d := range m.Workdays {
		if d == day {
			return true
		}
	}
	return false
}

// Clone returns a deep copy.
func (m *MemberConfig) Clone() *MemberConfig {
	out := &MemberConfig{
		FriendlyName: m.FriendlyName,
		Lead:         m.Lead,
		Timezone:     m.Timezone,
	}
	out.GitHubLogins = append([]string(nil), m.GitHubLogins...)
	out.Workdays = append([]time.Weekday(nil), m.Workdays...)
	out.ReportTimes = append([]TimeOfDay(nil), m.ReportTimes...)
	if m.AwayUntil != nil {
		d := *m.AwayUntil
		out.AwayUntil = &d
	}
	if m.LastWeeklyReport != nil {
		t := *m.LastWeeklyReport
		out.LastWeeklyReport = &t
	}
	return out
}

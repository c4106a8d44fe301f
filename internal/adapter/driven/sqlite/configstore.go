package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/danakj/fizz/internal/domain/model"
	"github.com/danakj/fizz/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.ConfigStore = (*ConfigStore)(nil)

const versionKey = "version"

// ConfigStore is the SQLite implementation of the ConfigStore port. The
// configuration is one document; Save rewrites it transactionally and Load
// reassembles it, checking the schema version recorded alongside.
type ConfigStore struct {
	db *DB
}

// NewConfigStore creates a ConfigStore backed by the given DB.
func NewConfigStore(db *DB) *ConfigStore {
	return &ConfigStore{db: db}
}

// Load reads the whole configuration document. It returns
// driven.ErrConfigNotFound when nothing has ever been saved, and an error for
// a document written by an unknown schema version.
func (s *ConfigStore) Load(ctx context.Context) (*model.Config, error) {
	var versionText string
	err := s.db.Reader.QueryRowContext(ctx,
		`SELECT value FROM config_meta WHERE key = ?`, versionKey,
	).Scan(&versionText)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, driven.ErrConfigNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read config version: %w", err)
	}
	version, err := strconv.Atoi(versionText)
	if err != nil {
		return nil, fmt.Errorf("parse config version %q: %w", versionText, err)
	}
	if version != model.ConfigVersion {
		return nil, fmt.Errorf("unsupported config version %d (supported: %d)", version, model.ConfigVersion)
	}

	cfg := model.NewConfig()

	rows, err := s.db.Reader.QueryContext(ctx,
		`SELECT id, repo_owner, repo_name, report_channel_id, report_channel_name FROM guilds ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list guilds: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		g := &model.GuildConfig{Members: map[model.UserID]*model.MemberConfig{}}
		var channelID string
		if err := rows.Scan(&id, &g.RepoOwner, &g.RepoName, &channelID, &g.ReportChannelName); err != nil {
			return nil, fmt.Errorf("scan guild: %w", err)
		}
		g.ReportChannelID = model.ChannelID(channelID)
		cfg.Guilds[model.GuildID(id)] = g
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate guilds: %w", err)
	}

	memberRows, err := s.db.Reader.QueryContext(ctx,
		`SELECT guild_id, user_id, friendly_name, github_logins, lead, timezone,
		        workdays, report_times, away_until, last_weekly_report
		 FROM members ORDER BY guild_id, user_id`)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer memberRows.Close()
	for memberRows.Next() {
		var (
			guildID, userID  string
			m                model.MemberConfig
			logins, workdays string
			reportTimes      string
			awayUntil        sql.NullString
			lastWeekly       sql.NullString
		)
		if err := memberRows.Scan(&guildID, &userID, &m.FriendlyName, &logins, &m.Lead, &m.Timezone,
			&workdays, &reportTimes, &awayUntil, &lastWeekly); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		if logins != "" {
			m.GitHubLogins = strings.Split(logins, ",")
		}
		if m.Workdays, err = parseWorkdays(workdays); err != nil {
			return nil, fmt.Errorf("member %s/%s: %w", guildID, userID, err)
		}
		if m.ReportTimes, err = parseReportTimes(reportTimes); err != nil {
			return nil, fmt.Errorf("member %s/%s: %w", guildID, userID, err)
		}
		if awayUntil.Valid {
			d, err := model.ParseDate(awayUntil.String)
			if err != nil {
				return nil, fmt.Errorf("member %s/%s: %w", guildID, userID, err)
			}
			m.AwayUntil = &d
		}
		if lastWeekly.Valid {
			t, err := time.Parse(time.RFC3339Nano, lastWeekly.String)
			if err != nil {
				return nil, fmt.Errorf("member %s/%s last weekly report: %w", guildID, userID, err)
			}
			m.LastWeeklyReport = &t
		}

		g, ok := cfg.Guilds[model.GuildID(guildID)]
		if !ok {
			return nil, fmt.Errorf("member %s/%s references unknown guild", guildID, userID)
		}
		g.Members[model.UserID(userID)] = &m
	}
	if err := memberRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate members: %w", err)
	}

	return cfg, nil
}

// Save rewrites the whole configuration document in one transaction.
func (s *ConfigStore) Save(ctx context.Context, cfg *model.Config) error {
	tx, err := s.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM members`); err != nil {
		return fmt.Errorf("clear members: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM guilds`); err != nil {
		return fmt.Errorf("clear guilds: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO config_meta (key, value) VALUES (?, ?)`,
		versionKey, strconv.Itoa(cfg.Version)); err != nil {
		return fmt.Errorf("write config version: %w", err)
	}

	for guildID, g := range cfg.Guilds {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO guilds (id, repo_owner, repo_name, report_channel_id, report_channel_name)
			 VALUES (?, ?, ?, ?, ?)`,
			string(guildID), g.RepoOwner, g.RepoName, string(g.ReportChannelID), g.ReportChannelName); err != nil {
			return fmt.Errorf("insert guild %s: %w", guildID, err)
		}
		for userID, m := range g.Members {
			var awayUntil, lastWeekly any
			if m.AwayUntil != nil {
				awayUntil = m.AwayUntil.String()
			}
			if m.LastWeeklyReport != nil {
				lastWeekly = m.LastWeeklyReport.UTC().Format(time.RFC3339Nano)
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO members (guild_id, user_id, friendly_name, github_logins, lead, timezone,
				                      workdays, report_times, away_until, last_weekly_report)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				string(guildID), string(userID), m.FriendlyName, strings.Join(m.GitHubLogins, ","), m.Lead,
				m.Timezone, formatWorkdays(m.Workdays), formatReportTimes(m.ReportTimes),
				awayUntil, lastWeekly); err != nil {
				return fmt.Errorf("insert member %s/%s: %w", guildID, userID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}
	return nil
}

func formatWorkdays(days []time.Weekday) string {
	parts := make([]string, 0, len(days))
	for _, d := range days {
		parts = append(parts, strconv.Itoa(int(d)))
	}
	return strings.Join(parts, ",")
}

func parseWorkdays(s string) ([]time.Weekday, error) {
	if s == "" {
		return nil, nil
	}
	var out []time.Weekday
	for _, part := range strings.Split(s, ",") {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 || n > 6 {
			return nil, fmt.Errorf("invalid workday %q", part)
		}
		out = append(out, time.Weekday(n))
	}
	return out, nil
}

func formatReportTimes(times []model.TimeOfDay) string {
	parts := make([]string, 0, len(times))
	for _, t := range times {
		parts = append(parts, t.String())
	}
	return strings.Join(parts, ",")
}

func parseReportTimes(s string) ([]model.TimeOfDay, error) {
	if s == "" {
		return nil, nil
	}
	var out []model.TimeOfDay
	for _, part := range strings.Split(s, ",") {
		t, err := model.ParseTimeOfDay(part)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

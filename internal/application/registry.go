package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/danakj/fizz/internal/domain/model"
	"github.com/danakj/fizz/internal/domain/port/driven"
)

// Registry is the single mutually-exclusive region around the configuration.
// Every read copies data out under the lock; no upstream network call ever
// runs while it is held. The watch loop and the command layer share one
// Registry instance.
type Registry struct {
	mu    sync.Mutex
	store driven.ConfigStore
	cfg   *model.Config
}

// NewRegistry loads the persisted configuration, starting from an empty
// document when none exists yet.
func NewRegistry(ctx context.Context, store driven.ConfigStore) (*Registry, error) {
	cfg, err := store.Load(ctx)
	if errors.Is(err, driven.ErrConfigNotFound) {
		cfg = model.NewConfig()
	} else if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	return &Registry{store: store, cfg: cfg}, nil
}

// SnapshotGuilds returns a deep copy of all guild configurations. The caller
// owns the result and may use it across network calls freely.
func (r *Registry) SnapshotGuilds() map[model.GuildID]*model.GuildConfig {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cfg.Clone().Guilds
}

// UpdateGuild applies fn to the guild's configuration (creating it on first
// touch) and persists the document. This is the mutation surface the command
// layer uses for guild-level settings.
func (r *Registry) UpdateGuild(ctx context.Context, id model.GuildID, fn func(*model.GuildConfig) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, ok := r.cfg.Guilds[id]
	if !ok {
		g = &model.GuildConfig{Members: map[model.UserID]*model.MemberConfig{}}
		r.cfg.Guilds[id] = g
	}
	if err := fn(g); err != nil {
		return err
	}
	return r.save(ctx)
}

// UpdateMember applies fn to one member's configuration (created with default
// settings on first touch, recording friendlyName) and persists the document.
func (r *Registry) UpdateMember(ctx context.Context, guildID model.GuildID, userID model.UserID, friendlyName string, fn func(*model.MemberConfig) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, ok := r.cfg.Guilds[guildID]
	if !ok {
		g = &model.GuildConfig{Members: map[model.UserID]*model.MemberConfig{}}
		r.cfg.Guilds[guildID] = g
	}
	m, ok := g.Members[userID]
	if !ok {
		m = model.NewMemberConfig(friendlyName)
		g.Members[userID] = m
	}
	if err := fn(m); err != nil {
		return err
	}
	return r.save(ctx)
}

// RemoveMember deletes a member's configuration and persists the document.
// Removing an unknown member is a no-op.
func (r *Registry) RemoveMember(ctx context.Context, guildID model.GuildID, userID model.UserID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, ok := r.cfg.Guilds[guildID]
	if !ok {
		return nil
	}
	if _, ok := g.Members[userID]; !ok {
		return nil
	}
	delete(g.Members, userID)
	return r.save(ctx)
}

// MarkWeeklyReported records that the member received their weekly summary at
// the given instant. Called by the deliverer only after the delivery
// succeeded, under a fresh short-lived acquisition.
func (r *Registry) MarkWeeklyReported(ctx context.Context, guildID model.GuildID, userID model.UserID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, ok := r.cfg.Guilds[guildID]
	if !ok {
		return nil
	}
	m, ok := g.Members[userID]
	if !ok {
		return nil
	}
	t := at.UTC()
	m.LastWeeklyReport = &t
	return r.save(ctx)
}

// save persists the current document. Callers must hold mu.
func (r *Registry) save(ctx context.Context) error {
	if err := r.store.Save(ctx, r.cfg); err != nil {
		return fmt.Errorf("saving configuration: %w", err)
	}
	return nil
}

// Package profile resolves and maintains user profile documents, with
// get-or-create semantics and the avatar fallback chain thread views
// depend on.
package profile

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"chatline/internal/bus"
	"chatline/internal/store"
)

// DefaultAvatar is the placeholder shown when no avatar source is set.
const DefaultAvatar = "/files/default-avatar.png"

// DefaultAbout is the about line every synthesized profile starts with.
const DefaultAbout = "¡Hola! Estoy usando WhatsApp"

// AvatarSource looks up the most recently uploaded avatar blob for a
// phone key, returning "" when none exists. Satisfied by the blob store.
type AvatarSource interface {
	LatestAvatar(phoneKey string) string
}

// Update is a partial profile write. Empty fields are left untouched,
// never cleared.
type Update struct {
	Name   string `json:"name,omitempty"`
	Avatar string `json:"avatar,omitempty"`
	About  string `json:"about,omitempty"`
}

// Resolver serves profile reads and writes.
type Resolver struct {
	db      *store.DB
	bus     *bus.Bus
	avatars AvatarSource
	logger  *zap.Logger
}

// NewResolver creates a resolver. avatars may be nil, in which case the
// blob tier of the fallback chain is skipped.
func NewResolver(db *store.DB, b *bus.Bus, avatars AvatarSource, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{db: db, bus: b, avatars: avatars, logger: logger}
}

// Resolve returns the profile for phoneKey, creating and persisting a
// default one on first sight. Concurrent callers for a new key all get
// the same single profile.
func (r *Resolver) Resolve(phoneKey string) (*store.Profile, error) {
	p, err := r.db.GetProfile(phoneKey)
	if err != nil {
		return nil, fmt.Errorf("resolve profile %s: %w", phoneKey, err)
	}
	if p != nil {
		return p, nil
	}

	created, err := r.db.CreateProfileIfAbsent(&store.Profile{
		PhoneKey: phoneKey,
		Name:     phoneKey,
		Avatar:   DefaultAvatar,
		About:    DefaultAbout,
	})
	if err != nil {
		return nil, fmt.Errorf("create profile %s: %w", phoneKey, err)
	}
	if created {
		r.publish(phoneKey)
	}

	// Re-read: a concurrent creator may have won the insert.
	p, err = r.db.GetProfile(phoneKey)
	if err != nil {
		return nil, fmt.Errorf("resolve profile %s: %w", phoneKey, err)
	}
	if p == nil {
		return nil, fmt.Errorf("profile %s missing after create", phoneKey)
	}
	return p, nil
}

// Apply writes the non-empty fields of u onto the profile, then mirrors
// them onto the thread document so list views stay in sync. The mirror
// is best-effort: a missing thread or a mirror failure never fails the
// profile write.
func (r *Resolver) Apply(phoneKey string, u Update) error {
	if _, err := r.Resolve(phoneKey); err != nil {
		return err
	}
	if err := r.db.UpdateProfileFields(phoneKey, u.Name, u.Avatar, u.About); err != nil {
		return fmt.Errorf("update profile %s: %w", phoneKey, err)
	}
	r.publish(phoneKey)

	mirrored, err := r.db.MirrorProfile(phoneKey, u.Name, u.Avatar, u.About)
	if err != nil {
		r.logger.Warn("profile mirror failed", zap.Error(err), zap.String("phone_key", phoneKey))
		return nil
	}
	if mirrored && r.bus != nil {
		r.bus.Publish(bus.Event{Kind: bus.ThreadTopic(phoneKey), Timestamp: time.Now()})
	}
	return nil
}

// AvatarFor resolves the avatar to render for a thread, trying each
// source in fixed priority order and returning the first non-empty one.
func (r *Resolver) AvatarFor(t *store.Thread) string {
	if t == nil {
		return DefaultAvatar
	}
	if r.avatars != nil {
		if url := r.avatars.LatestAvatar(t.PhoneKey); url != "" {
			return url
		}
	}
	for _, candidate := range []string{t.UserAvatar, t.PhotoURL, t.Avatar} {
		if candidate != "" {
			return candidate
		}
	}
	return DefaultAvatar
}

func (r *Resolver) publish(phoneKey string) {
	if r.bus != nil {
		r.bus.Publish(bus.Event{Kind: bus.ProfileTopic(phoneKey), Timestamp: time.Now()})
	}
}

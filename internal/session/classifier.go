// Package session classifies timestamps into active market sessions.
package session

import (
	"time"

	"session-trader/internal/models"
)

// Classifier maps a timestamp to the set of currently active sessions.
// It is a pure function of time and the immutable session configuration;
// windows were validated at config load, so classification cannot fail.
type Classifier struct {
	sessions []models.Session
}

// NewClassifier creates a classifier over the given session list.
func NewClassifier(sessions []models.Session) *Classifier {
	owned := make([]models.Session, len(sessions))
	copy(owned, sessions)
	return &Classifier{sessions: owned}
}

// Active returns the names of all enabled sessions whose window contains t.
// Multiple sessions may overlap and be simultaneously active.
func (c *Classifier) Active(t time.Time) []models.SessionName {
	var active []models.SessionName
	for _, s := range c.sessions {
		if !s.Enabled {
			continue
		}
		if s.Contains(t) {
			active = append(active, s.Name)
		}
	}
	return active
}

// IsActive reports whether the named session is active at t.
func (c *Classifier) IsActive(name models.SessionName, t time.Time) bool {
	for _, s := range c.sessions {
		if s.Name == name {
			return s.Enabled && s.Contains(t)
		}
	}
	return false
}

// Overlapping returns the active sessions when more than one session is
// active at t, and nil otherwise.
func (c *Classifier) Overlapping(t time.Time) []models.SessionName {
	active := c.Active(t)
	if len(active) > 1 {
		return active
	}
	return nil
}

// Sessions returns a copy of the configured session list.
func (c *Classifier) Sessions() []models.Session {
	out := make([]models.Session, len(c.sessions))
	copy(out, c.sessions)
	return out
}

// NextStart returns the next wall-clock time at which the named session
// opens, or the zero time if the session is unknown or disabled.
func (c *Classifier) NextStart(name models.SessionName, now time.Time) time.Time {
	for _, s := range c.sessions {
		if s.Name != name || !s.Enabled {
			continue
		}
		local := now.In(s.Location)
		start := time.Date(local.Year(), local.Month(), local.Day(),
			s.StartMinute/60, s.StartMinute%60, 0, 0, s.Location)
		if !start.After(local) {
			start = start.AddDate(0, 0, 1)
		}
		return start
	}
	return time.Time{}
}

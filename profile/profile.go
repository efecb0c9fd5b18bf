// Package profile defines the domain types shared by the aggregation
// pipeline: the normalized profile shape served to consumers and the
// error taxonomy the HTTP boundary maps to status codes.
package profile

import (
	"fmt"
	"time"
)

// Profile represents a GitHub account.
//
//nolint:govet // fieldalignment: intentional layout for readability
type Profile struct {
	Handle      string `json:"handle"`
	DisplayName string `json:"displayName,omitempty"`
	AvatarURL   string `json:"avatarUrl"`
	Bio         string `json:"bio,omitempty"`
	PublicRepos int    `json:"publicRepoCount"`
	Followers   int    `json:"followerCount"`
	Following   int    `json:"followingCount"`
}

// RepoSummary is a denormalized projection of one repository.
type RepoSummary struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Stars       int    `json:"starCount"`
	URL         string `json:"url"`
	Language    string `json:"primaryLanguage"`
}

// UnknownLanguage is the sentinel used when a repository reports no
// primary language.
const UnknownLanguage = "Unknown"

// ActivityEntry is a denormalized projection of one recent public event.
type ActivityEntry struct {
	Kind       string `json:"kind"`
	Repo       string `json:"repoFullName"`
	OccurredAt string `json:"occurredAt"`
}

// Caps on the denormalized lists. Every Aggregated honors these.
const (
	MaxPinnedRepos   = 6
	MaxActivities    = 5
	MaxFallbackProxy = 3 // synthesized entries when no events feed exists
)

// Aggregated is the unit cached and returned to consumers. It is
// constructed fresh on every cache miss and immutable afterwards.
type Aggregated struct {
	Profile        Profile         `json:"profile"`
	PinnedRepos    []RepoSummary   `json:"pinnedRepos"`
	RecentActivity []ActivityEntry `json:"recentActivity"`
	ChillScore     int             `json:"chillScore"`
}

// ValidationError reports missing or malformed caller input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NotFoundError reports that the upstream platform has no such handle.
type NotFoundError struct {
	Handle string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("profile not found: %s", e.Handle)
}

// RateLimitError reports upstream quota exhaustion. Reset is the time
// the quota window reopens; zero when the upstream did not say.
type RateLimitError struct {
	Reset time.Time
}

func (e *RateLimitError) Error() string {
	if e.Reset.IsZero() {
		return "rate limited by upstream"
	}
	return fmt.Sprintf("rate limited by upstream until %s", e.Reset.UTC().Format(time.RFC3339))
}

// UpstreamError reports any other upstream failure: 5xx, malformed
// body, timeout.
type UpstreamError struct {
	Detail string
}

func (e *UpstreamError) Error() string {
	return "upstream error: " + e.Detail
}

// Package normalize converts raw upstream shapes into the stable
// aggregated profile. Everything here is pure: no I/O, no clock, no
// randomness, so the same raw inputs always produce the same output.
package normalize

import (
	"strings"
	"time"

	"github.com/chillgits/chillgits/github"
	"github.com/chillgits/chillgits/profile"
)

// eventSuffix is the naming convention of the upstream events feed
// (PushEvent, WatchEvent, ...). Entries without it are not discrete
// events and are dropped.
const eventSuffix = "Event"

// dateLayout is the display format for activity timestamps.
const dateLayout = "Jan 2, 2006"

// Aggregate assembles the served document from the raw fetch results.
// curated marks repos as coming from the pinned-items query, which is
// already fork-free; the recently-updated listing is filtered here.
func Aggregate(user github.RawUser, repos []github.RawRepo, curated bool, events []github.RawEvent) profile.Aggregated {
	p := User(user)
	return profile.Aggregated{
		Profile:        p,
		PinnedRepos:    Repos(repos, curated),
		RecentActivity: Activity(events, repos),
		ChillScore:     profile.ChillScore(p),
	}
}

// User maps the raw user record 1:1, clamping counts at zero.
func User(raw github.RawUser) profile.Profile {
	return profile.Profile{
		Handle:      raw.Login,
		DisplayName: raw.Name,
		AvatarURL:   raw.AvatarURL,
		Bio:         raw.Bio,
		PublicRepos: max(raw.PublicRepos, 0),
		Followers:   max(raw.Followers, 0),
		Following:   max(raw.Following, 0),
	}
}

// Repos maps raw repositories to summaries, capped at MaxPinnedRepos in
// upstream order. Forks are dropped unless the list is curated.
func Repos(raw []github.RawRepo, curated bool) []profile.RepoSummary {
	summaries := make([]profile.RepoSummary, 0, profile.MaxPinnedRepos)
	for _, r := range raw {
		if len(summaries) == profile.MaxPinnedRepos {
			break
		}
		if r.Fork && !curated {
			continue
		}
		lang := r.Language
		if lang == "" {
			lang = profile.UnknownLanguage
		}
		summaries = append(summaries, profile.RepoSummary{
			Name:        r.Name,
			Description: r.Description,
			Stars:       r.Stars,
			URL:         r.HTMLURL,
			Language:    lang,
		})
	}
	return summaries
}

// Activity projects the events feed into display entries, capped at
// MaxActivities. An empty feed falls back to synthesizing "Updated"
// entries from the repo listing's own timestamps, capped at
// MaxFallbackProxy. The two sources never mix within one aggregation.
func Activity(events []github.RawEvent, repos []github.RawRepo) []profile.ActivityEntry {
	entries := make([]profile.ActivityEntry, 0, profile.MaxActivities)
	for _, ev := range events {
		if len(entries) == profile.MaxActivities {
			break
		}
		if !strings.HasSuffix(ev.Type, eventSuffix) || ev.Type == eventSuffix {
			continue
		}
		entries = append(entries, profile.ActivityEntry{
			Kind:       strings.TrimSuffix(ev.Type, eventSuffix),
			Repo:       ev.Repo.Name,
			OccurredAt: displayDate(ev.CreatedAt),
		})
	}
	if len(entries) > 0 {
		return entries
	}

	for _, r := range repos {
		if len(entries) == profile.MaxFallbackProxy {
			break
		}
		if r.Fork {
			continue
		}
		entries = append(entries, profile.ActivityEntry{
			Kind:       "Updated",
			Repo:       r.FullName,
			OccurredAt: displayDate(r.UpdatedAt),
		})
	}
	return entries
}

// displayDate reformats an upstream RFC 3339 timestamp for display.
// Unparsable input passes through untouched rather than erroring.
func displayDate(ts string) string {
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return ts
	}
	return t.UTC().Format(dateLayout)
}

package profile

// Chill score weights. The score rewards a moderate repo count, an
// audience larger than the followed set, and a written bio, then clamps
// to [0, 100]. Weights live here and nowhere else so presentation code
// cannot fork the formula.
const (
	repoWeight     = 2.0
	followerWeight = 0.01
	ratioWeight    = 15.0
	bioBonus       = 10.0
	scoreBase      = 20.0
)

// ChillScore computes the heuristic score for a profile. Pure and
// deterministic: equal profiles always score equally.
func ChillScore(p Profile) int {
	score := scoreBase

	repos := p.PublicRepos
	if repos > 25 {
		// Past this point more repos reads as less chill.
		repos = 25 - (repos - 25)
		if repos < 0 {
			repos = 0
		}
	}
	score += float64(repos) * repoWeight

	score += float64(p.Followers) * followerWeight

	if p.Following > 0 && p.Followers >= p.Following {
		score += ratioWeight
	}

	if p.Bio != "" {
		score += bioBonus
	}

	switch {
	case score < 0:
		return 0
	case score > 100:
		return 100
	default:
		return int(score)
	}
}

// Package scoring ranks candidate posts by recency and author impact.
package scoring

import (
	"math"
	"time"

	"replyscout/internal/model"
)

const (
	// Recency halves roughly every 21 minutes; a 30-minute-old post keeps
	// about 37% of the maximum score.
	recencyDecayMinutes = 30

	followerWeight = 10
	likeWeight     = 3
	repostWeight   = 3

	recencyShare = 0.7
	impactShare  = 0.3
)

// Score computes the scoring breakdown for a post and its author. It is a
// pure function of its inputs: callers inject now so results are reproducible.
func Score(post model.Post, author model.Author, now time.Time) model.Scoring {
	recency := clamp(recency(post.CreatedAt, now))
	impact := clamp(impact(author.Followers, post.Likes, post.Reposts))
	total := clamp(recencyShare*recency + impactShare*impact)

	return model.Scoring{
		Recency: round1(recency),
		Impact:  round1(impact),
		Total:   round1(total),
	}
}

func recency(createdAt, now time.Time) float64 {
	ageMinutes := now.Sub(createdAt).Minutes()
	return math.Exp(-ageMinutes/recencyDecayMinutes) * 100
}

// impact is a weighted sum of logarithms: audience reach dominates, with the
// +1 offsets keeping zero-engagement posts out of log10(0). A zero-follower
// author yields -Inf, which the clamp floors to zero.
func impact(followers, likes, reposts int) float64 {
	f := math.Log10(math.Max(float64(followers), 0)) * followerWeight
	l := math.Log10(float64(likes)+1) * likeWeight
	r := math.Log10(float64(reposts)+1) * repostWeight
	return f + l + r
}

func clamp(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

package matching

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Weights of the four score components. They sum to MaximumScore.
const (
	WeightSpecialization = 40.0
	WeightLocation       = 30.0
	WeightBudget         = 20.0
	WeightVerification   = 10.0

	MaximumScore        = 100.0
	DefaultMinimumScore = 40.0

	sameDepartmentScore     = 20.0
	adjacentDepartmentScore = 10.0
	flexibleBudgetScore     = 15.0
	budgetRatioFactor       = 10.0
	pendingVerifiedScore    = 5.0
)

// Verification is the verification state of a provider profile.
type Verification string

const (
	VerificationVerified   Verification = "verifie"
	VerificationPending    Verification = "en_attente"
	VerificationUnverified Verification = "non_verifie"
)

// Request holds the request attributes that take part in scoring.
type Request struct {
	CategoryID     string
	PostalCode     string
	Coordinates    *Coordinates
	BudgetMaxCents int64
}

// Profile holds the provider attributes that take part in scoring.
// MinimumPriceCents of zero means the provider states no minimum.
type Profile struct {
	Specializations   []string
	PostalCode        string
	Coordinates       *Coordinates
	TravelRadiusKm    float64
	MinimumPriceCents int64
	Verification      Verification
}

// Components breaks a score down per weight category.
type Components struct {
	Specialization float64
	Location       float64
	Budget         float64
	Verification   float64
}

// Total sums the components.
func (components Components) Total() float64 {
	return components.Specialization + components.Location + components.Budget + components.Verification
}

// Result is the outcome of scoring one request/profile pair. It is never persisted.
type Result struct {
	Score      float64
	Components Components
	Reasons    []string
	// DistanceKm is set only when both sides carry coordinates.
	DistanceKm *float64
}

// Score computes the match score of a profile for a request, in [0, 100].
// Missing optional data falls back to the conservative branch of each
// category instead of failing.
func Score(request Request, profile Profile) Result {
	result := Result{}

	if hasSpecialization(profile.Specializations, request.CategoryID) {
		result.Components.Specialization = WeightSpecialization
		result.Reasons = append(result.Reasons, "spécialité correspondante")
	}

	result.Components.Location = scoreLocation(request, profile, &result)
	result.Components.Budget = scoreBudget(request, profile, &result)

	switch profile.Verification {
	case VerificationVerified:
		result.Components.Verification = WeightVerification
		result.Reasons = append(result.Reasons, "profil vérifié")
	case VerificationPending:
		result.Components.Verification = pendingVerifiedScore
	}

	result.Score = clamp(result.Components.Total(), 0, MaximumScore)
	return result
}

func scoreLocation(request Request, profile Profile, result *Result) float64 {
	if request.Coordinates != nil && profile.Coordinates != nil && profile.TravelRadiusKm > 0 {
		distance := Distance(*request.Coordinates, *profile.Coordinates)
		result.DistanceKm = &distance
		if distance > profile.TravelRadiusKm {
			result.Reasons = append(result.Reasons, fmt.Sprintf("hors zone (%.1f km)", distance))
			return 0
		}
		result.Reasons = append(result.Reasons, fmt.Sprintf("à %.1f km", distance))
		return WeightLocation - (distance/profile.TravelRadiusKm)*WeightLocation
	}

	requestDepartment, requestOK := Department(request.PostalCode)
	profileDepartment, profileOK := Department(profile.PostalCode)
	if !requestOK || !profileOK {
		return 0
	}
	gap := requestDepartment - profileDepartment
	if gap < 0 {
		gap = -gap
	}
	switch {
	case gap == 0:
		result.Reasons = append(result.Reasons, "même département")
		return sameDepartmentScore
	case gap == 1:
		result.Reasons = append(result.Reasons, "département voisin")
		return adjacentDepartmentScore
	default:
		return 0
	}
}

func scoreBudget(request Request, profile Profile, result *Result) float64 {
	if profile.MinimumPriceCents <= 0 {
		result.Reasons = append(result.Reasons, "tarif flexible")
		return flexibleBudgetScore
	}
	if request.BudgetMaxCents >= profile.MinimumPriceCents {
		result.Reasons = append(result.Reasons, "budget compatible")
		ratio := float64(request.BudgetMaxCents) / float64(profile.MinimumPriceCents)
		return math.Min(WeightBudget, ratio*budgetRatioFactor)
	}
	result.Reasons = append(result.Reasons, "budget insuffisant")
	return 0
}

func hasSpecialization(specializations []string, categoryID string) bool {
	normalized := strings.TrimSpace(categoryID)
	if normalized == "" {
		return false
	}
	for _, specialization := range specializations {
		if strings.TrimSpace(specialization) == normalized {
			return true
		}
	}
	return false
}

func clamp(value float64, lower float64, upper float64) float64 {
	return math.Max(lower, math.Min(upper, value))
}

// Ranked points back into the slice passed to a Rank function.
type Ranked struct {
	Index  int
	Result Result
}

// RankProfiles scores every profile for a request, keeps the ones at or above
// minScore and orders them by descending score. Equal scores keep their input
// order.
func RankProfiles(request Request, profiles []Profile, minScore float64) []Ranked {
	ranked := make([]Ranked, 0, len(profiles))
	for index, profile := range profiles {
		result := Score(request, profile)
		if result.Score >= minScore {
			ranked = append(ranked, Ranked{Index: index, Result: result})
		}
	}
	sortRanked(ranked)
	return ranked
}

// RankRequests scores every request for one profile, with the same filtering
// and ordering rules as RankProfiles.
func RankRequests(profile Profile, requests []Request, minScore float64) []Ranked {
	ranked := make([]Ranked, 0, len(requests))
	for index, request := range requests {
		result := Score(request, profile)
		if result.Score >= minScore {
			ranked = append(ranked, Ranked{Index: index, Result: result})
		}
	}
	sortRanked(ranked)
	return ranked
}

func sortRanked(ranked []Ranked) {
	sort.SliceStable(ranked, func(left, right int) bool {
		return ranked[left].Result.Score > ranked[right].Result.Score
	})
}

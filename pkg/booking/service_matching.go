package booking

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/MarkoPoloResearchLab/photobook/pkg/matching"
)

// ProviderMatch is one ranked provider for a request.
type ProviderMatch struct {
	Profile ProviderProfile
	Result  matching.Result
}

// RequestMatch is one ranked open request for a provider.
type RequestMatch struct {
	Request ClientRequest
	Result  matching.Result
}

// MatchProviders ranks the generally available providers for an open
// request, records every match in the request's notified set and sends a new
// request event to the providers that were not notified before. A minScore
// of zero or less selects matching.DefaultMinimumScore.
func (service *Service) MatchProviders(ctx context.Context, requestID RequestID, minScore float64) ([]ProviderMatch, error) {
	minScore = effectiveMinimumScore(minScore)
	var (
		request       ClientRequest
		matches       []ProviderMatch
		newlyNotified []ProviderMatch
	)
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		var err error
		request, err = transactionStore.GetRequest(ctx, requestID)
		if err != nil {
			return err
		}
		if request.Status != RequestStatusOpen {
			return fmt.Errorf("%w: request is %s", ErrRequestClosed, request.Status)
		}
		available, err := transactionStore.ListAvailableProfiles(ctx)
		if err != nil {
			return err
		}
		candidates := make([]ProviderProfile, 0, len(available))
		inputs := make([]matching.Profile, 0, len(available))
		for _, profile := range available {
			if !profile.GenerallyAvailable || profile.ProviderID == request.ClientID {
				continue
			}
			candidates = append(candidates, profile)
			inputs = append(inputs, profile.MatchingProfile())
		}

		notified := append([]UserID{}, request.NotifiedProviders...)
		for _, ranked := range matching.RankProfiles(request.MatchingCriteria(), inputs, minScore) {
			match := ProviderMatch{Profile: candidates[ranked.Index], Result: ranked.Result}
			matches = append(matches, match)
			if !containsUser(notified, match.Profile.ProviderID) {
				notified = append(notified, match.Profile.ProviderID)
				newlyNotified = append(newlyNotified, match)
			}
		}
		if len(newlyNotified) == 0 {
			return nil
		}
		return transactionStore.SaveRequestProviders(ctx, request.ID, notified, request.InterestedProviders)
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationMatchProviders,
		ActorID:   request.ClientID.String(),
		RequestID: requestID.String(),
		Error:     operationError,
	})
	if operationError != nil {
		return nil, operationError
	}

	events := make([]Event, 0, len(newlyNotified))
	for _, match := range newlyNotified {
		events = append(events, Event{
			Type:       EventNewRequest,
			Recipients: []UserID{match.Profile.ProviderID},
			Data: map[string]string{
				EventKeyRequestID: request.ID.String(),
				EventKeyTitle:     request.Title,
				EventKeyScore:     strconv.FormatFloat(match.Result.Score, 'f', 0, 64),
			},
		})
	}
	service.emit(ctx, events...)
	return matches, nil
}

// MatchRequests ranks the open requests for one provider. It records nothing.
func (service *Service) MatchRequests(ctx context.Context, providerID UserID, minScore float64) ([]RequestMatch, error) {
	minScore = effectiveMinimumScore(minScore)
	profile, err := service.store.GetProviderProfile(ctx, providerID)
	if err != nil {
		return nil, err
	}
	open, err := service.store.ListOpenRequests(ctx, service.now())
	if err != nil {
		return nil, err
	}
	candidates := make([]ClientRequest, 0, len(open))
	inputs := make([]matching.Request, 0, len(open))
	for _, request := range open {
		if request.ClientID == providerID {
			continue
		}
		candidates = append(candidates, request)
		inputs = append(inputs, request.MatchingCriteria())
	}
	ranked := matching.RankRequests(profile.MatchingProfile(), inputs, minScore)
	matches := make([]RequestMatch, 0, len(ranked))
	for _, entry := range ranked {
		matches = append(matches, RequestMatch{Request: candidates[entry.Index], Result: entry.Result})
	}
	return matches, nil
}

// SaveProviderProfile creates or replaces a provider profile.
func (service *Service) SaveProviderProfile(ctx context.Context, profile ProviderProfile) (ProviderProfile, error) {
	normalized, err := normalizeProfile(profile)
	if err == nil {
		err = service.store.UpsertProviderProfile(ctx, normalized)
	}
	service.logOperation(ctx, OperationLog{
		Operation: operationSaveProfile,
		ActorID:   profile.ProviderID.String(),
		Amount:    profile.MinimumPrice,
		Error:     err,
	})
	if err != nil {
		return ProviderProfile{}, err
	}
	return normalized, nil
}

// GetProviderProfile loads a provider profile.
func (service *Service) GetProviderProfile(ctx context.Context, providerID UserID) (ProviderProfile, error) {
	return service.store.GetProviderProfile(ctx, providerID)
}

func normalizeProfile(profile ProviderProfile) (ProviderProfile, error) {
	if profile.ProviderID.String() == "" {
		return ProviderProfile{}, fmt.Errorf("%w: missing provider", ErrInvalidUserID)
	}
	if profile.TravelRadiusKm < 0 {
		return ProviderProfile{}, fmt.Errorf("%w: negative travel radius", ErrInvalidSchedule)
	}
	if profile.MinimumPrice < 0 {
		return ProviderProfile{}, fmt.Errorf("%w: negative minimum price", ErrInvalidAmountCents)
	}
	switch profile.Verification {
	case "":
		profile.Verification = matching.VerificationUnverified
	case matching.VerificationVerified, matching.VerificationPending, matching.VerificationUnverified:
	default:
		return ProviderProfile{}, fmt.Errorf("%w: verification %q", ErrInvalidStatus, profile.Verification)
	}
	profile.Specializations = trimAll(profile.Specializations)
	profile.Styles = trimAll(profile.Styles)
	slots := make([]TimeSlot, 0, len(profile.BlockedSlots))
	for _, slot := range profile.BlockedSlots {
		if !slot.End.After(slot.Start) {
			return ProviderProfile{}, fmt.Errorf("%w: blocked slot ends before it starts", ErrInvalidSchedule)
		}
		slots = append(slots, TimeSlot{Start: slot.Start.UTC(), End: slot.End.UTC()})
	}
	profile.BlockedSlots = slots
	return profile, nil
}

func trimAll(values []string) []string {
	trimmed := make([]string, 0, len(values))
	for _, value := range values {
		if value = strings.TrimSpace(value); value != "" {
			trimmed = append(trimmed, value)
		}
	}
	return trimmed
}

func effectiveMinimumScore(minScore float64) float64 {
	if minScore <= 0 {
		return matching.DefaultMinimumScore
	}
	return minScore
}

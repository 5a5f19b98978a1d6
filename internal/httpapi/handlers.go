package httpapi

import (
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/MarkoPoloResearchLab/photobook/internal/apperror"
	"github.com/MarkoPoloResearchLab/photobook/internal/validation"
	"github.com/MarkoPoloResearchLab/photobook/pkg/booking"
	"github.com/gin-gonic/gin"
)

const (
	pathSelf      = "me"
	queryMinScore = "score_min"
	queryLimit    = "limite"
	queryStart    = "debut"
	queryDuration = "duree_minutes"
)

func (handler *Handler) handleCreateRequest(ctx *gin.Context) {
	clientID, ok := handler.requireUser(ctx)
	if !ok {
		return
	}
	var form validation.RequestForm
	if !handler.bindForm(ctx, &form) {
		return
	}
	input, err := requestInputFromForm(clientID, form)
	if err != nil {
		handler.respondError(ctx, "create_request", err)
		return
	}
	request, err := handler.bookings.CreateRequest(ctx.Request.Context(), input)
	if err != nil {
		handler.respondError(ctx, "create_request", err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"demande": newRequestPayload(request)})
}

func (handler *Handler) handleGetRequest(ctx *gin.Context) {
	if _, ok := handler.requireUser(ctx); !ok {
		return
	}
	requestID, err := booking.NewRequestID(ctx.Param("id"))
	if err != nil {
		handler.respondError(ctx, "get_request", err)
		return
	}
	request, err := handler.bookings.GetRequest(ctx.Request.Context(), requestID)
	if err != nil {
		handler.respondError(ctx, "get_request", err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"demande": newRequestPayload(request)})
}

func (handler *Handler) handleCancelRequest(ctx *gin.Context) {
	clientID, ok := handler.requireUser(ctx)
	if !ok {
		return
	}
	requestID, err := booking.NewRequestID(ctx.Param("id"))
	if err == nil {
		err = handler.bookings.CancelRequest(ctx.Request.Context(), clientID, requestID)
	}
	if err != nil {
		handler.respondError(ctx, "cancel_request", err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"statut": booking.RequestStatusCancelled.String()})
}

// handleListQuotes returns every quote to the request owner and only their
// own quote to a provider.
func (handler *Handler) handleListQuotes(ctx *gin.Context) {
	userID, ok := handler.requireUser(ctx)
	if !ok {
		return
	}
	requestID, err := booking.NewRequestID(ctx.Param("id"))
	if err != nil {
		handler.respondError(ctx, "list_quotes", err)
		return
	}
	request, err := handler.bookings.GetRequest(ctx.Request.Context(), requestID)
	if err != nil {
		handler.respondError(ctx, "list_quotes", err)
		return
	}
	quotes, err := handler.bookings.ListQuotes(ctx.Request.Context(), requestID)
	if err != nil {
		handler.respondError(ctx, "list_quotes", err)
		return
	}
	payloads := make([]quotePayload, 0, len(quotes))
	for _, quote := range quotes {
		if request.ClientID == userID || quote.ProviderID == userID {
			payloads = append(payloads, newQuotePayload(quote))
		}
	}
	ctx.JSON(http.StatusOK, gin.H{"devis": payloads})
}

func (handler *Handler) handleMatchProviders(ctx *gin.Context) {
	clientID, ok := handler.requireUser(ctx)
	if !ok {
		return
	}
	requestID, err := booking.NewRequestID(ctx.Param("id"))
	if err != nil {
		handler.respondError(ctx, "match_providers", err)
		return
	}
	request, err := handler.bookings.GetRequest(ctx.Request.Context(), requestID)
	if err != nil {
		handler.respondError(ctx, "match_providers", err)
		return
	}
	if request.ClientID != clientID {
		handler.respondError(ctx, "match_providers", booking.ErrForbidden)
		return
	}
	minScore, err := handler.minimumScore(ctx)
	if err != nil {
		handler.respondError(ctx, "match_providers", err)
		return
	}
	matches, err := handler.bookings.MatchProviders(ctx.Request.Context(), requestID, minScore)
	if err != nil {
		handler.respondError(ctx, "match_providers", err)
		return
	}
	payloads := make([]providerMatchPayload, 0, len(matches))
	for _, match := range matches {
		payloads = append(payloads, providerMatchPayload{Profile: newProfilePayload(match.Profile), Match: newScorePayload(match.Result)})
	}
	ctx.JSON(http.StatusOK, gin.H{"photographes": payloads})
}

func (handler *Handler) handleCreateQuote(ctx *gin.Context) {
	providerID, ok := handler.requireUser(ctx)
	if !ok {
		return
	}
	var form validation.QuoteForm
	if !handler.bindForm(ctx, &form) {
		return
	}
	input, err := quoteInputFromForm(providerID, form)
	if err != nil {
		handler.respondError(ctx, "create_quote", err)
		return
	}
	quote, err := handler.bookings.CreateQuote(ctx.Request.Context(), input)
	if err != nil {
		handler.respondError(ctx, "create_quote", err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"devis": newQuotePayload(quote)})
}

func (handler *Handler) handleMarkQuoteRead(ctx *gin.Context) {
	clientID, quoteID, ok := handler.quoteTarget(ctx, "mark_quote_read")
	if !ok {
		return
	}
	quote, err := handler.bookings.MarkQuoteRead(ctx.Request.Context(), clientID, quoteID)
	if err != nil {
		handler.respondError(ctx, "mark_quote_read", err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"devis": newQuotePayload(quote)})
}

func (handler *Handler) handleAcceptQuote(ctx *gin.Context) {
	clientID, quoteID, ok := handler.quoteTarget(ctx, "accept_quote")
	if !ok {
		return
	}
	reservation, err := handler.bookings.AcceptQuote(ctx.Request.Context(), clientID, quoteID)
	if err != nil {
		handler.respondError(ctx, "accept_quote", err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"reservation": newReservationPayload(reservation)})
}

func (handler *Handler) handleRefuseQuote(ctx *gin.Context) {
	clientID, quoteID, ok := handler.quoteTarget(ctx, "refuse_quote")
	if !ok {
		return
	}
	if err := handler.bookings.RefuseQuote(ctx.Request.Context(), clientID, quoteID); err != nil {
		handler.respondError(ctx, "refuse_quote", err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"statut": booking.QuoteStatusRefused.String()})
}

func (handler *Handler) quoteTarget(ctx *gin.Context, operation string) (booking.UserID, booking.QuoteID, bool) {
	userID, ok := handler.requireUser(ctx)
	if !ok {
		return booking.UserID{}, booking.QuoteID{}, false
	}
	quoteID, err := booking.NewQuoteID(ctx.Param("id"))
	if err != nil {
		handler.respondError(ctx, operation, err)
		return booking.UserID{}, booking.QuoteID{}, false
	}
	return userID, quoteID, true
}

func (handler *Handler) handleGetProfile(ctx *gin.Context) {
	userID, ok := handler.requireUser(ctx)
	if !ok {
		return
	}
	providerID, err := resolveProvider(ctx.Param("id"), userID)
	if err != nil {
		handler.respondError(ctx, "get_profile", err)
		return
	}
	profile, err := handler.bookings.GetProviderProfile(ctx.Request.Context(), providerID)
	if err != nil {
		handler.respondError(ctx, "get_profile", err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"profil": newProfilePayload(profile)})
}

func (handler *Handler) handleSaveProfile(ctx *gin.Context) {
	userID, ok := handler.requireUser(ctx)
	if !ok {
		return
	}
	providerID, err := resolveProvider(ctx.Param("id"), userID)
	if err != nil {
		handler.respondError(ctx, "save_profile", err)
		return
	}
	if providerID != userID {
		handler.respondError(ctx, "save_profile", booking.ErrForbidden)
		return
	}
	var form validation.ProfileForm
	if !handler.bindForm(ctx, &form) {
		return
	}
	existing, err := handler.bookings.GetProviderProfile(ctx.Request.Context(), providerID)
	if err != nil && apperror.Normalize(err).Kind != apperror.KindNotFound {
		handler.respondError(ctx, "save_profile", err)
		return
	}
	profile, err := profileFromForm(providerID, form, existing)
	if err != nil {
		handler.respondError(ctx, "save_profile", err)
		return
	}
	saved, err := handler.bookings.SaveProviderProfile(ctx.Request.Context(), profile)
	if err != nil {
		handler.respondError(ctx, "save_profile", err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"profil": newProfilePayload(saved)})
}

func (handler *Handler) handleAvailability(ctx *gin.Context) {
	userID, ok := handler.requireUser(ctx)
	if !ok {
		return
	}
	providerID, err := resolveProvider(ctx.Param("id"), userID)
	if err != nil {
		handler.respondError(ctx, "check_availability", err)
		return
	}
	start, duration, err := parseSlot(ctx.Query(queryStart), ctx.Query(queryDuration))
	if err != nil {
		handler.respondError(ctx, "check_availability", err)
		return
	}
	availability, err := handler.bookings.CheckAvailability(ctx.Request.Context(), providerID, start, duration)
	if err != nil {
		handler.respondError(ctx, "check_availability", err)
		return
	}
	ctx.JSON(http.StatusOK, availability)
}

func (handler *Handler) handleMatchRequests(ctx *gin.Context) {
	userID, ok := handler.requireUser(ctx)
	if !ok {
		return
	}
	providerID, err := resolveProvider(ctx.Param("id"), userID)
	if err != nil {
		handler.respondError(ctx, "match_requests", err)
		return
	}
	if providerID != userID {
		handler.respondError(ctx, "match_requests", booking.ErrForbidden)
		return
	}
	minScore, err := handler.minimumScore(ctx)
	if err != nil {
		handler.respondError(ctx, "match_requests", err)
		return
	}
	matches, err := handler.bookings.MatchRequests(ctx.Request.Context(), providerID, minScore)
	if err != nil {
		handler.respondError(ctx, "match_requests", err)
		return
	}
	payloads := make([]requestMatchPayload, 0, len(matches))
	for _, match := range matches {
		payloads = append(payloads, requestMatchPayload{Request: newRequestPayload(match.Request), Match: newScorePayload(match.Result)})
	}
	ctx.JSON(http.StatusOK, gin.H{"demandes": payloads})
}

// handleValidateProviderSignup checks a photographer sign-up form before the
// account is created with the auth service.
func (handler *Handler) handleValidateProviderSignup(ctx *gin.Context) {
	var form validation.ProviderSignupForm
	if !handler.bindForm(ctx, &form) {
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"valide": true})
}

func (handler *Handler) requireUser(ctx *gin.Context) (booking.UserID, bool) {
	userID, ok := currentUser(ctx)
	if !ok {
		handler.respondError(ctx, "authenticate", apperror.ErrAuthRequired)
		return booking.UserID{}, false
	}
	return userID, true
}

// minimumScore reads the optional score_min query value, falling back to the
// configured minimum.
func (handler *Handler) minimumScore(ctx *gin.Context) (float64, error) {
	raw := strings.TrimSpace(ctx.Query(queryMinScore))
	if raw == "" {
		return handler.cfg.MinimumMatchScore, nil
	}
	score, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(score) || score < 0 || score > 100 {
		return 0, apperror.New(apperror.KindInvalidInput, err)
	}
	return score, nil
}

func resolveProvider(raw string, caller booking.UserID) (booking.UserID, error) {
	if strings.TrimSpace(raw) == pathSelf {
		return caller, nil
	}
	return booking.NewUserID(raw)
}

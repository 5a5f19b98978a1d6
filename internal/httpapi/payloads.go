package httpapi

import (
	"time"

	"github.com/MarkoPoloResearchLab/photobook/internal/validation"
	"github.com/MarkoPoloResearchLab/photobook/pkg/booking"
	"github.com/MarkoPoloResearchLab/photobook/pkg/matching"
)

type locationPayload struct {
	Address    string   `json:"adresse,omitempty"`
	City       string   `json:"ville"`
	PostalCode string   `json:"code_postal"`
	Latitude   *float64 `json:"latitude,omitempty"`
	Longitude  *float64 `json:"longitude,omitempty"`
}

type requestPayload struct {
	ID              string          `json:"id"`
	ClientID        string          `json:"client_id"`
	CategoryID      string          `json:"categorie_id"`
	Title           string          `json:"titre"`
	Description     string          `json:"description,omitempty"`
	StartsAt        time.Time       `json:"date_souhaitee"`
	DurationMinutes int             `json:"duree_minutes"`
	Location        locationPayload `json:"lieu"`
	BudgetMin       int64           `json:"budget_min"`
	BudgetMax       int64           `json:"budget_max"`
	Status          string          `json:"statut"`
	QuotesReceived  int             `json:"nombre_devis_recus"`
	CreatedAt       time.Time       `json:"cree_le"`
	ExpiresAt       time.Time       `json:"expire_le"`
}

type quotePayload struct {
	ID            string                `json:"id"`
	RequestID     string                `json:"demande_id"`
	ProviderID    string                `json:"photographe_id"`
	BaseRate      int64                 `json:"tarif_base"`
	TravelFee     int64                 `json:"frais_deplacement"`
	Options       []booking.QuoteOption `json:"options"`
	Discount      int64                 `json:"remise"`
	Total         int64                 `json:"montant_total"`
	ValidityDays  int                   `json:"delai_validite_jours"`
	Message       string                `json:"message,omitempty"`
	Status        string                `json:"statut"`
	ReadAt        *time.Time            `json:"lu_le,omitempty"`
	ReservationID string                `json:"reservation_id,omitempty"`
	CreatedAt     time.Time             `json:"cree_le"`
	ExpiresAt     time.Time             `json:"expire_le"`
}

type reservationPayload struct {
	ID              string          `json:"id"`
	QuoteID         string          `json:"devis_id"`
	RequestID       string          `json:"demande_id"`
	ClientID        string          `json:"client_id"`
	ProviderID      string          `json:"photographe_id"`
	StartsAt        time.Time       `json:"date_debut"`
	EndsAt          time.Time       `json:"date_fin"`
	DurationMinutes int             `json:"duree_minutes"`
	Location        locationPayload `json:"lieu"`
	Total           int64           `json:"montant_total"`
	Status          string          `json:"statut"`
	PaymentStatus   string          `json:"statut_paiement"`
	CreatedAt       time.Time       `json:"cree_le"`
}

type profilePayload struct {
	ProviderID         string             `json:"photographe_id"`
	Specializations    []string           `json:"specialisations"`
	Styles             []string           `json:"styles"`
	TravelRadiusKm     float64            `json:"rayon_deplacement_km"`
	MinimumPrice       int64              `json:"budget_min_prestation"`
	City               string             `json:"ville,omitempty"`
	PostalCode         string             `json:"code_postal,omitempty"`
	Latitude           *float64           `json:"latitude,omitempty"`
	Longitude          *float64           `json:"longitude,omitempty"`
	Verification       string             `json:"statut_verification"`
	GenerallyAvailable bool               `json:"disponibilite_generale"`
	BlockedSlots       []booking.TimeSlot `json:"creneaux_bloques"`
}

type componentsPayload struct {
	Specialization float64 `json:"specialisation"`
	Location       float64 `json:"localisation"`
	Budget         float64 `json:"budget"`
	Verification   float64 `json:"verification"`
}

type scorePayload struct {
	Score      float64           `json:"score"`
	Components componentsPayload `json:"composantes"`
	Reasons    []string          `json:"raisons"`
	DistanceKm *float64          `json:"distance_km,omitempty"`
}

type providerMatchPayload struct {
	Profile profilePayload `json:"photographe"`
	Match   scorePayload   `json:"correspondance"`
}

type requestMatchPayload struct {
	Request requestPayload `json:"demande"`
	Match   scorePayload   `json:"correspondance"`
}

type reviewPayload struct {
	ID            string    `json:"id"`
	ReservationID string    `json:"reservation_id"`
	ProviderID    string    `json:"photographe_id"`
	Rating        int       `json:"note"`
	Comment       string    `json:"commentaire,omitempty"`
	CreatedAt     time.Time `json:"cree_le"`
}

func newLocationPayload(location booking.Location) locationPayload {
	payload := locationPayload{Address: location.Address, City: location.City, PostalCode: location.PostalCode}
	if location.Coordinates != nil {
		latitude, longitude := location.Coordinates.Latitude, location.Coordinates.Longitude
		payload.Latitude, payload.Longitude = &latitude, &longitude
	}
	return payload
}

func newRequestPayload(request booking.ClientRequest) requestPayload {
	return requestPayload{
		ID:              request.ID.String(),
		ClientID:        request.ClientID.String(),
		CategoryID:      request.CategoryID,
		Title:           request.Title,
		Description:     request.Description,
		StartsAt:        request.StartsAt,
		DurationMinutes: request.DurationMinutes,
		Location:        newLocationPayload(request.Location),
		BudgetMin:       request.BudgetMin.Int64(),
		BudgetMax:       request.BudgetMax.Int64(),
		Status:          request.Status.String(),
		QuotesReceived:  request.QuotesReceived,
		CreatedAt:       request.CreatedAt,
		ExpiresAt:       request.ExpiresAt,
	}
}

func newQuotePayload(quote booking.Quote) quotePayload {
	options := quote.Options
	if options == nil {
		options = []booking.QuoteOption{}
	}
	return quotePayload{
		ID:            quote.ID.String(),
		RequestID:     quote.RequestID.String(),
		ProviderID:    quote.ProviderID.String(),
		BaseRate:      quote.BaseRate.Int64(),
		TravelFee:     quote.TravelFee.Int64(),
		Options:       options,
		Discount:      quote.Discount.Int64(),
		Total:         quote.Total.Int64(),
		ValidityDays:  quote.ValidityDays,
		Message:       quote.Message,
		Status:        quote.Status.String(),
		ReadAt:        quote.ReadAt,
		ReservationID: quote.ReservationID.String(),
		CreatedAt:     quote.CreatedAt,
		ExpiresAt:     quote.ExpiresAt,
	}
}

func newReservationPayload(reservation booking.Reservation) reservationPayload {
	return reservationPayload{
		ID:              reservation.ID.String(),
		QuoteID:         reservation.QuoteID.String(),
		RequestID:       reservation.RequestID.String(),
		ClientID:        reservation.ClientID.String(),
		ProviderID:      reservation.ProviderID.String(),
		StartsAt:        reservation.StartsAt,
		EndsAt:          reservation.EndsAt(),
		DurationMinutes: reservation.DurationMinutes,
		Location:        newLocationPayload(reservation.Location),
		Total:           reservation.Total.Int64(),
		Status:          reservation.Status.String(),
		PaymentStatus:   reservation.PaymentStatus.String(),
		CreatedAt:       reservation.CreatedAt,
	}
}

func newProfilePayload(profile booking.ProviderProfile) profilePayload {
	payload := profilePayload{
		ProviderID:         profile.ProviderID.String(),
		Specializations:    nonNilStrings(profile.Specializations),
		Styles:             nonNilStrings(profile.Styles),
		TravelRadiusKm:     profile.TravelRadiusKm,
		MinimumPrice:       profile.MinimumPrice.Int64(),
		City:               profile.City,
		PostalCode:         profile.PostalCode,
		Verification:       string(profile.Verification),
		GenerallyAvailable: profile.GenerallyAvailable,
		BlockedSlots:       profile.BlockedSlots,
	}
	if payload.BlockedSlots == nil {
		payload.BlockedSlots = []booking.TimeSlot{}
	}
	if profile.Coordinates != nil {
		latitude, longitude := profile.Coordinates.Latitude, profile.Coordinates.Longitude
		payload.Latitude, payload.Longitude = &latitude, &longitude
	}
	return payload
}

func newScorePayload(result matching.Result) scorePayload {
	return scorePayload{
		Score: result.Score,
		Components: componentsPayload{
			Specialization: result.Components.Specialization,
			Location:       result.Components.Location,
			Budget:         result.Components.Budget,
			Verification:   result.Components.Verification,
		},
		Reasons:    nonNilStrings(result.Reasons),
		DistanceKm: result.DistanceKm,
	}
}

func newReviewPayload(review booking.Review) reviewPayload {
	return reviewPayload{
		ID:            review.ID,
		ReservationID: review.ReservationID.String(),
		ProviderID:    review.ProviderID.String(),
		Rating:        review.Rating,
		Comment:       review.Comment,
		CreatedAt:     review.CreatedAt,
	}
}

func requestInputFromForm(clientID booking.UserID, form validation.RequestForm) (booking.RequestInput, error) {
	budgetMin, err := booking.NewAmountCents(form.BudgetMin)
	if err != nil {
		return booking.RequestInput{}, err
	}
	budgetMax, err := booking.NewAmountCents(form.BudgetMax)
	if err != nil {
		return booking.RequestInput{}, err
	}
	return booking.RequestInput{
		ClientID:        clientID,
		CategoryID:      form.CategoryID,
		Title:           form.Title,
		Description:     form.Description,
		StartsAt:        form.StartsAt.UTC(),
		DurationMinutes: form.DurationMinutes,
		Location: booking.Location{
			Address:     form.Address,
			City:        form.City,
			PostalCode:  form.PostalCode,
			Coordinates: coordinates(form.Latitude, form.Longitude),
		},
		BudgetMin: budgetMin,
		BudgetMax: budgetMax,
	}, nil
}

func quoteInputFromForm(providerID booking.UserID, form validation.QuoteForm) (booking.QuoteInput, error) {
	requestID, err := booking.NewRequestID(form.RequestID)
	if err != nil {
		return booking.QuoteInput{}, err
	}
	amounts := make([]booking.AmountCents, 0, 3)
	for _, raw := range []int64{form.BaseRate, form.TravelFee, form.Discount} {
		amount, err := booking.NewAmountCents(raw)
		if err != nil {
			return booking.QuoteInput{}, err
		}
		amounts = append(amounts, amount)
	}
	options := make([]booking.QuoteOption, 0, len(form.Options))
	for _, option := range form.Options {
		price, err := booking.NewAmountCents(option.Price)
		if err != nil {
			return booking.QuoteInput{}, err
		}
		options = append(options, booking.QuoteOption{Name: option.Name, Price: price})
	}
	return booking.QuoteInput{
		ProviderID:   providerID,
		RequestID:    requestID,
		BaseRate:     amounts[0],
		TravelFee:    amounts[1],
		Options:      options,
		Discount:     amounts[2],
		ValidityDays: form.ValidityDays,
		Message:      form.Message,
	}, nil
}

// profileFromForm keeps the verification state of existing: providers never
// set it themselves.
func profileFromForm(providerID booking.UserID, form validation.ProfileForm, existing booking.ProviderProfile) (booking.ProviderProfile, error) {
	minimumPrice, err := booking.NewAmountCents(form.MinimumPrice)
	if err != nil {
		return booking.ProviderProfile{}, err
	}
	available := true
	switch {
	case form.GenerallyAvailable != nil:
		available = *form.GenerallyAvailable
	case existing.ProviderID.String() != "":
		available = existing.GenerallyAvailable
	}
	slots := make([]booking.TimeSlot, 0, len(form.BlockedSlots))
	for _, slot := range form.BlockedSlots {
		slots = append(slots, booking.TimeSlot{Start: slot.Start.UTC(), End: slot.End.UTC()})
	}
	return booking.ProviderProfile{
		ProviderID:         providerID,
		Specializations:    form.Specializations,
		Styles:             form.Styles,
		TravelRadiusKm:     form.TravelRadiusKm,
		MinimumPrice:       minimumPrice,
		City:               form.City,
		PostalCode:         form.PostalCode,
		Coordinates:        coordinates(form.Latitude, form.Longitude),
		Verification:       existing.Verification,
		GenerallyAvailable: available,
		BlockedSlots:       slots,
	}, nil
}

func coordinates(latitude *float64, longitude *float64) *matching.Coordinates {
	if latitude == nil || longitude == nil {
		return nil
	}
	return &matching.Coordinates{Latitude: *latitude, Longitude: *longitude}
}

func nonNilStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

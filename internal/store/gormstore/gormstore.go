package gormstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/MarkoPoloResearchLab/photobook/pkg/booking"
	"github.com/MarkoPoloResearchLab/photobook/pkg/matching"
	gosqlite "github.com/glebarez/go-sqlite"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	emptyListJSON         = "[]"
	pgUniqueViolationCode = "23505"
	sqliteConstraintCode  = 19
	entityRequest         = "request"
	entityQuote           = "quote"
	entityReservation     = "reservation"
	entityProfile         = "profile"
	entityReview          = "review"
	actionDecode          = "decode"
	actionDuplicate       = "duplicate"
	actionExpire          = "expire"
	actionGet             = "get"
	actionInsert          = "insert"
	actionLink            = "link"
	actionList            = "list"
	actionRefuseSiblings  = "refuse_siblings"
	actionSaveProviders   = "save_providers"
	actionUpdatePayment   = "update_payment"
	actionUpdateStatus    = "update_status"
	actionUpsert          = "upsert"
)

// Store implements booking.Store using GORM.
type Store struct {
	db   *gorm.DB
	inTx bool
}

// New returns a Store backed by gorm.DB.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// WithTx executes fn within a transaction. Reads issued through the
// transactional store lock the rows they return.
func (store *Store) WithTx(ctx context.Context, fn func(ctx context.Context, txStore booking.Store) error) error {
	return store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		return fn(ctx, &Store{db: transaction, inTx: true})
	})
}

func (store *Store) reader(ctx context.Context) *gorm.DB {
	db := store.db.WithContext(ctx)
	if store.inTx {
		db = db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return db
}

func (store *Store) InsertRequest(ctx context.Context, request booking.ClientRequest) error {
	model := ClientRequest{
		ID:                  request.ID.String(),
		ClientID:            request.ClientID.String(),
		CategoryID:          request.CategoryID,
		Title:               request.Title,
		Description:         request.Description,
		StartsAt:            request.StartsAt.UTC(),
		DurationMinutes:     request.DurationMinutes,
		Address:             request.Location.Address,
		City:                request.Location.City,
		PostalCode:          request.Location.PostalCode,
		BudgetMin:           request.BudgetMin.Int64(),
		BudgetMax:           request.BudgetMax.Int64(),
		Status:              request.Status.String(),
		QuotesReceived:      request.QuotesReceived,
		NotifiedProviders:   encodeUsers(request.NotifiedProviders),
		InterestedProviders: encodeUsers(request.InterestedProviders),
		CreatedAt:           request.CreatedAt.UTC(),
		ExpiresAt:           request.ExpiresAt.UTC(),
	}
	model.Latitude, model.Longitude = splitCoordinates(request.Location.Coordinates)
	if err := store.db.WithContext(ctx).Create(&model).Error; err != nil {
		return wrapStoreError(entityRequest, actionInsert, err)
	}
	return nil
}

func (store *Store) GetRequest(ctx context.Context, requestID booking.RequestID) (booking.ClientRequest, error) {
	var model ClientRequest
	err := store.reader(ctx).Where("id = ?", requestID.String()).Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return booking.ClientRequest{}, wrapStoreError(entityRequest, actionGet, booking.ErrRequestNotFound)
	}
	if err != nil {
		return booking.ClientRequest{}, wrapStoreError(entityRequest, actionGet, err)
	}
	request, err := mapRequest(model)
	if err != nil {
		return booking.ClientRequest{}, wrapStoreError(entityRequest, actionDecode, err)
	}
	return request, nil
}

func (store *Store) ListOpenRequests(ctx context.Context, at time.Time) ([]booking.ClientRequest, error) {
	var rows []ClientRequest
	err := store.db.WithContext(ctx).
		Where("statut = ? AND expire_le > ?", booking.RequestStatusOpen.String(), at.UTC()).
		Order("created_at ASC").
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(entityRequest, actionList, err)
	}
	requests := make([]booking.ClientRequest, 0, len(rows))
	for _, row := range rows {
		request, err := mapRequest(row)
		if err != nil {
			return nil, wrapStoreError(entityRequest, actionDecode, err)
		}
		requests = append(requests, request)
	}
	return requests, nil
}

func (store *Store) UpdateRequestStatus(ctx context.Context, requestID booking.RequestID, from booking.RequestStatus, to booking.RequestStatus) error {
	result := store.db.WithContext(ctx).
		Model(&ClientRequest{}).
		Where("id = ? AND statut = ?", requestID.String(), from.String()).
		Update("statut", to.String())
	if result.Error != nil {
		return wrapStoreError(entityRequest, actionUpdateStatus, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(entityRequest, actionUpdateStatus, booking.ErrStatusConflict)
	}
	return nil
}

// SaveRequestProviders stores both provider sets and derives the quote
// counter from the interested set.
func (store *Store) SaveRequestProviders(ctx context.Context, requestID booking.RequestID, notified []booking.UserID, interested []booking.UserID) error {
	result := store.db.WithContext(ctx).
		Model(&ClientRequest{}).
		Where("id = ?", requestID.String()).
		Updates(map[string]interface{}{
			"photographes_notifies":   encodeUsers(notified),
			"photographes_interesses": encodeUsers(interested),
			"nombre_devis_recus":      len(interested),
		})
	if result.Error != nil {
		return wrapStoreError(entityRequest, actionSaveProviders, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(entityRequest, actionSaveProviders, booking.ErrRequestNotFound)
	}
	return nil
}

func (store *Store) InsertQuote(ctx context.Context, quote booking.Quote) error {
	options, err := json.Marshal(quote.Options)
	if err != nil {
		return wrapStoreError(entityQuote, actionInsert, err)
	}
	model := Quote{
		ID:           quote.ID.String(),
		RequestID:    quote.RequestID.String(),
		ProviderID:   quote.ProviderID.String(),
		BaseRate:     quote.BaseRate.Int64(),
		TravelFee:    quote.TravelFee.Int64(),
		Options:      datatypes.JSON(options),
		Discount:     quote.Discount.Int64(),
		Total:        quote.Total.Int64(),
		ValidityDays: quote.ValidityDays,
		Message:      quote.Message,
		Status:       quote.Status.String(),
		ReadAt:       quote.ReadAt,
		CreatedAt:    quote.CreatedAt.UTC(),
		ExpiresAt:    quote.ExpiresAt.UTC(),
	}
	err = store.db.WithContext(ctx).Create(&model).Error
	if isUniqueConflict(err) {
		return wrapStoreError(entityQuote, actionDuplicate, booking.ErrQuoteExists)
	}
	if err != nil {
		return wrapStoreError(entityQuote, actionInsert, err)
	}
	return nil
}

func (store *Store) GetQuote(ctx context.Context, quoteID booking.QuoteID) (booking.Quote, error) {
	var model Quote
	err := store.reader(ctx).Where("id = ?", quoteID.String()).Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return booking.Quote{}, wrapStoreError(entityQuote, actionGet, booking.ErrQuoteNotFound)
	}
	if err != nil {
		return booking.Quote{}, wrapStoreError(entityQuote, actionGet, err)
	}
	quote, err := mapQuote(model)
	if err != nil {
		return booking.Quote{}, wrapStoreError(entityQuote, actionDecode, err)
	}
	return quote, nil
}

func (store *Store) ListQuotes(ctx context.Context, requestID booking.RequestID) ([]booking.Quote, error) {
	var rows []Quote
	err := store.reader(ctx).
		Where("demande_id = ?", requestID.String()).
		Order("created_at ASC").
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(entityQuote, actionList, err)
	}
	quotes := make([]booking.Quote, 0, len(rows))
	for _, row := range rows {
		quote, err := mapQuote(row)
		if err != nil {
			return nil, wrapStoreError(entityQuote, actionDecode, err)
		}
		quotes = append(quotes, quote)
	}
	return quotes, nil
}

func (store *Store) UpdateQuoteStatus(ctx context.Context, quoteID booking.QuoteID, to booking.QuoteStatus, at time.Time, from ...booking.QuoteStatus) error {
	updates := map[string]interface{}{"statut": to.String()}
	if to == booking.QuoteStatusRead {
		updates["lu_le"] = at.UTC()
	}
	result := store.db.WithContext(ctx).
		Model(&Quote{}).
		Where("id = ? AND statut IN ?", quoteID.String(), quoteStatusStrings(from)).
		Updates(updates)
	if result.Error != nil {
		return wrapStoreError(entityQuote, actionUpdateStatus, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(entityQuote, actionUpdateStatus, booking.ErrStatusConflict)
	}
	return nil
}

func (store *Store) LinkQuoteReservation(ctx context.Context, quoteID booking.QuoteID, reservationID booking.ReservationID) error {
	result := store.db.WithContext(ctx).
		Model(&Quote{}).
		Where("id = ?", quoteID.String()).
		Update("reservation_id", reservationID.String())
	if result.Error != nil {
		return wrapStoreError(entityQuote, actionLink, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(entityQuote, actionLink, booking.ErrQuoteNotFound)
	}
	return nil
}

func (store *Store) RefuseSiblingQuotes(ctx context.Context, requestID booking.RequestID, acceptedQuoteID booking.QuoteID) (int64, error) {
	result := store.db.WithContext(ctx).
		Model(&Quote{}).
		Where("demande_id = ? AND id <> ? AND statut IN ?", requestID.String(), acceptedQuoteID.String(), liveQuoteStatuses()).
		Update("statut", booking.QuoteStatusRefused.String())
	if result.Error != nil {
		return 0, wrapStoreError(entityQuote, actionRefuseSiblings, result.Error)
	}
	return result.RowsAffected, nil
}

func (store *Store) InsertReservation(ctx context.Context, reservation booking.Reservation) error {
	model := Reservation{
		ID:              reservation.ID.String(),
		QuoteID:         reservation.QuoteID.String(),
		RequestID:       reservation.RequestID.String(),
		ClientID:        reservation.ClientID.String(),
		ProviderID:      reservation.ProviderID.String(),
		StartsAt:        reservation.StartsAt.UTC(),
		EndsAt:          reservation.EndsAt().UTC(),
		DurationMinutes: reservation.DurationMinutes,
		Address:         reservation.Location.Address,
		City:            reservation.Location.City,
		PostalCode:      reservation.Location.PostalCode,
		Total:           reservation.Total.Int64(),
		Status:          reservation.Status.String(),
		PaymentStatus:   reservation.PaymentStatus.String(),
		CreatedAt:       reservation.CreatedAt.UTC(),
	}
	model.Latitude, model.Longitude = splitCoordinates(reservation.Location.Coordinates)
	if reservation.PaymentSessionID != "" {
		sessionID := reservation.PaymentSessionID
		model.PaymentSessionID = &sessionID
	}
	err := store.db.WithContext(ctx).Create(&model).Error
	if isUniqueConflict(err) {
		return wrapStoreError(entityReservation, actionDuplicate, booking.ErrQuoteNotAcceptable)
	}
	if err != nil {
		return wrapStoreError(entityReservation, actionInsert, err)
	}
	return nil
}

func (store *Store) GetReservation(ctx context.Context, reservationID booking.ReservationID) (booking.Reservation, error) {
	var model Reservation
	err := store.reader(ctx).Where("id = ?", reservationID.String()).Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return booking.Reservation{}, wrapStoreError(entityReservation, actionGet, booking.ErrReservationNotFound)
	}
	if err != nil {
		return booking.Reservation{}, wrapStoreError(entityReservation, actionGet, err)
	}
	reservation, err := mapReservation(model)
	if err != nil {
		return booking.Reservation{}, wrapStoreError(entityReservation, actionDecode, err)
	}
	return reservation, nil
}

func (store *Store) UpdateReservationStatus(ctx context.Context, reservationID booking.ReservationID, to booking.ReservationStatus, from ...booking.ReservationStatus) error {
	result := store.db.WithContext(ctx).
		Model(&Reservation{}).
		Where("id = ? AND statut IN ?", reservationID.String(), reservationStatusStrings(from)).
		Update("statut", to.String())
	if result.Error != nil {
		return wrapStoreError(entityReservation, actionUpdateStatus, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(entityReservation, actionUpdateStatus, booking.ErrStatusConflict)
	}
	return nil
}

func (store *Store) UpdatePaymentStatus(ctx context.Context, reservationID booking.ReservationID, from booking.PaymentStatus, to booking.PaymentStatus, sessionID string) error {
	result := store.db.WithContext(ctx).
		Model(&Reservation{}).
		Where("id = ? AND statut_paiement = ?", reservationID.String(), from.String()).
		Updates(map[string]interface{}{
			"statut_paiement":     to.String(),
			"session_paiement_id": sessionID,
		})
	if result.Error != nil {
		return wrapStoreError(entityReservation, actionUpdatePayment, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(entityReservation, actionUpdatePayment, booking.ErrStatusConflict)
	}
	return nil
}

// ListOverlappingReservations returns the provider's reservations in the given
// statuses whose stored interval intersects slot.
func (store *Store) ListOverlappingReservations(ctx context.Context, providerID booking.UserID, slot booking.TimeSlot, statuses ...booking.ReservationStatus) ([]booking.Reservation, error) {
	var rows []Reservation
	err := store.db.WithContext(ctx).
		Where("photographe_id = ? AND date_debut < ? AND date_fin > ?", providerID.String(), slot.End.UTC(), slot.Start.UTC()).
		Where("statut IN ?", reservationStatusStrings(statuses)).
		Order("date_debut ASC").
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(entityReservation, actionList, err)
	}
	reservations := make([]booking.Reservation, 0, len(rows))
	for _, row := range rows {
		reservation, err := mapReservation(row)
		if err != nil {
			return nil, wrapStoreError(entityReservation, actionDecode, err)
		}
		reservations = append(reservations, reservation)
	}
	return reservations, nil
}

func (store *Store) ExpireQuotes(ctx context.Context, at time.Time) (int64, error) {
	result := store.db.WithContext(ctx).
		Model(&Quote{}).
		Where("statut IN ? AND expire_le <= ?", liveQuoteStatuses(), at.UTC()).
		Update("statut", booking.QuoteStatusExpired.String())
	if result.Error != nil {
		return 0, wrapStoreError(entityQuote, actionExpire, result.Error)
	}
	return result.RowsAffected, nil
}

func (store *Store) ExpireRequests(ctx context.Context, at time.Time) (int64, error) {
	result := store.db.WithContext(ctx).
		Model(&ClientRequest{}).
		Where("statut = ? AND expire_le <= ?", booking.RequestStatusOpen.String(), at.UTC()).
		Update("statut", booking.RequestStatusExpired.String())
	if result.Error != nil {
		return 0, wrapStoreError(entityRequest, actionExpire, result.Error)
	}
	return result.RowsAffected, nil
}

// ExpireUnpaidReservations cancels reservations still awaiting payment once
// their slot has started.
func (store *Store) ExpireUnpaidReservations(ctx context.Context, at time.Time) (int64, error) {
	result := store.db.WithContext(ctx).
		Model(&Reservation{}).
		Where("statut = ? AND date_debut <= ?", booking.ReservationStatusPendingPayment.String(), at.UTC()).
		Update("statut", booking.ReservationStatusCancelled.String())
	if result.Error != nil {
		return 0, wrapStoreError(entityReservation, actionExpire, result.Error)
	}
	return result.RowsAffected, nil
}

func (store *Store) UpsertProviderProfile(ctx context.Context, profile booking.ProviderProfile) error {
	slots, err := json.Marshal(profile.BlockedSlots)
	if err != nil {
		return wrapStoreError(entityProfile, actionUpsert, err)
	}
	model := ProviderProfile{
		ProviderID:         profile.ProviderID.String(),
		Specializations:    encodeStrings(profile.Specializations),
		Styles:             encodeStrings(profile.Styles),
		TravelRadiusKm:     profile.TravelRadiusKm,
		MinimumPrice:       profile.MinimumPrice.Int64(),
		City:               profile.City,
		PostalCode:         profile.PostalCode,
		Verification:       string(profile.Verification),
		GenerallyAvailable: profile.GenerallyAvailable,
		BlockedSlots:       datatypes.JSON(slots),
	}
	model.Latitude, model.Longitude = splitCoordinates(profile.Coordinates)
	err = store.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "photographe_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"specialisations", "styles", "rayon_deplacement_km", "budget_min_prestation",
				"ville", "code_postal", "latitude", "longitude", "statut_verification",
				"disponibilite_generale", "creneaux_bloques", "updated_at",
			}),
		}).
		Create(&model).Error
	if err != nil {
		return wrapStoreError(entityProfile, actionUpsert, err)
	}
	return nil
}

func (store *Store) GetProviderProfile(ctx context.Context, providerID booking.UserID) (booking.ProviderProfile, error) {
	var model ProviderProfile
	err := store.db.WithContext(ctx).Where("photographe_id = ?", providerID.String()).Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return booking.ProviderProfile{}, wrapStoreError(entityProfile, actionGet, booking.ErrProfileNotFound)
	}
	if err != nil {
		return booking.ProviderProfile{}, wrapStoreError(entityProfile, actionGet, err)
	}
	profile, err := mapProfile(model)
	if err != nil {
		return booking.ProviderProfile{}, wrapStoreError(entityProfile, actionDecode, err)
	}
	return profile, nil
}

// ListAvailableProfiles lists generally available profiles in creation order.
func (store *Store) ListAvailableProfiles(ctx context.Context) ([]booking.ProviderProfile, error) {
	var rows []ProviderProfile
	err := store.db.WithContext(ctx).
		Where("disponibilite_generale = ?", true).
		Order("created_at ASC").
		Order("photographe_id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(entityProfile, actionList, err)
	}
	profiles := make([]booking.ProviderProfile, 0, len(rows))
	for _, row := range rows {
		profile, err := mapProfile(row)
		if err != nil {
			return nil, wrapStoreError(entityProfile, actionDecode, err)
		}
		profiles = append(profiles, profile)
	}
	return profiles, nil
}

func (store *Store) InsertReview(ctx context.Context, review booking.Review) error {
	model := Review{
		ID:            review.ID,
		ReservationID: review.ReservationID.String(),
		ClientID:      review.ClientID.String(),
		ProviderID:    review.ProviderID.String(),
		Rating:        review.Rating,
		Comment:       review.Comment,
		CreatedAt:     review.CreatedAt.UTC(),
	}
	err := store.db.WithContext(ctx).Create(&model).Error
	if isUniqueConflict(err) {
		return wrapStoreError(entityReview, actionDuplicate, booking.ErrReviewExists)
	}
	if err != nil {
		return wrapStoreError(entityReview, actionInsert, err)
	}
	return nil
}

func wrapStoreError(entity string, action string, err error) error {
	return booking.NewStoreError(entity, action, err)
}

func mapRequest(row ClientRequest) (booking.ClientRequest, error) {
	requestID, err := booking.NewRequestID(row.ID)
	if err != nil {
		return booking.ClientRequest{}, err
	}
	clientID, err := booking.NewUserID(row.ClientID)
	if err != nil {
		return booking.ClientRequest{}, err
	}
	status, err := booking.ParseRequestStatus(row.Status)
	if err != nil {
		return booking.ClientRequest{}, err
	}
	notified, err := decodeUsers(row.NotifiedProviders)
	if err != nil {
		return booking.ClientRequest{}, err
	}
	interested, err := decodeUsers(row.InterestedProviders)
	if err != nil {
		return booking.ClientRequest{}, err
	}
	return booking.ClientRequest{
		ID:              requestID,
		ClientID:        clientID,
		CategoryID:      row.CategoryID,
		Title:           row.Title,
		Description:     row.Description,
		StartsAt:        row.StartsAt.UTC(),
		DurationMinutes: row.DurationMinutes,
		Location: booking.Location{
			Address:     row.Address,
			City:        row.City,
			PostalCode:  row.PostalCode,
			Coordinates: joinCoordinates(row.Latitude, row.Longitude),
		},
		BudgetMin:           booking.AmountCents(row.BudgetMin),
		BudgetMax:           booking.AmountCents(row.BudgetMax),
		Status:              status,
		QuotesReceived:      row.QuotesReceived,
		NotifiedProviders:   notified,
		InterestedProviders: interested,
		CreatedAt:           row.CreatedAt.UTC(),
		ExpiresAt:           row.ExpiresAt.UTC(),
	}, nil
}

func mapQuote(row Quote) (booking.Quote, error) {
	quoteID, err := booking.NewQuoteID(row.ID)
	if err != nil {
		return booking.Quote{}, err
	}
	requestID, err := booking.NewRequestID(row.RequestID)
	if err != nil {
		return booking.Quote{}, err
	}
	providerID, err := booking.NewUserID(row.ProviderID)
	if err != nil {
		return booking.Quote{}, err
	}
	status, err := booking.ParseQuoteStatus(row.Status)
	if err != nil {
		return booking.Quote{}, err
	}
	var options []booking.QuoteOption
	if err := unmarshalJSON(row.Options, &options); err != nil {
		return booking.Quote{}, err
	}
	quote := booking.Quote{
		ID:           quoteID,
		RequestID:    requestID,
		ProviderID:   providerID,
		BaseRate:     booking.AmountCents(row.BaseRate),
		TravelFee:    booking.AmountCents(row.TravelFee),
		Options:      options,
		Discount:     booking.AmountCents(row.Discount),
		Total:        booking.AmountCents(row.Total),
		ValidityDays: row.ValidityDays,
		Message:      row.Message,
		Status:       status,
		CreatedAt:    row.CreatedAt.UTC(),
		ExpiresAt:    row.ExpiresAt.UTC(),
	}
	if row.ReadAt != nil {
		readAt := row.ReadAt.UTC()
		quote.ReadAt = &readAt
	}
	if row.ReservationID != nil && *row.ReservationID != "" {
		reservationID, err := booking.NewReservationID(*row.ReservationID)
		if err != nil {
			return booking.Quote{}, err
		}
		quote.ReservationID = reservationID
	}
	return quote, nil
}

func mapReservation(row Reservation) (booking.Reservation, error) {
	reservationID, err := booking.NewReservationID(row.ID)
	if err != nil {
		return booking.Reservation{}, err
	}
	quoteID, err := booking.NewQuoteID(row.QuoteID)
	if err != nil {
		return booking.Reservation{}, err
	}
	requestID, err := booking.NewRequestID(row.RequestID)
	if err != nil {
		return booking.Reservation{}, err
	}
	clientID, err := booking.NewUserID(row.ClientID)
	if err != nil {
		return booking.Reservation{}, err
	}
	providerID, err := booking.NewUserID(row.ProviderID)
	if err != nil {
		return booking.Reservation{}, err
	}
	status, err := booking.ParseReservationStatus(row.Status)
	if err != nil {
		return booking.Reservation{}, err
	}
	paymentStatus, err := booking.ParsePaymentStatus(row.PaymentStatus)
	if err != nil {
		return booking.Reservation{}, err
	}
	reservation := booking.Reservation{
		ID:              reservationID,
		QuoteID:         quoteID,
		RequestID:       requestID,
		ClientID:        clientID,
		ProviderID:      providerID,
		StartsAt:        row.StartsAt.UTC(),
		DurationMinutes: row.DurationMinutes,
		Location: booking.Location{
			Address:     row.Address,
			City:        row.City,
			PostalCode:  row.PostalCode,
			Coordinates: joinCoordinates(row.Latitude, row.Longitude),
		},
		Total:         booking.AmountCents(row.Total),
		Status:        status,
		PaymentStatus: paymentStatus,
		CreatedAt:     row.CreatedAt.UTC(),
	}
	if row.PaymentSessionID != nil {
		reservation.PaymentSessionID = *row.PaymentSessionID
	}
	return reservation, nil
}

func mapProfile(row ProviderProfile) (booking.ProviderProfile, error) {
	providerID, err := booking.NewUserID(row.ProviderID)
	if err != nil {
		return booking.ProviderProfile{}, err
	}
	var specializations, styles []string
	if err := unmarshalJSON(row.Specializations, &specializations); err != nil {
		return booking.ProviderProfile{}, err
	}
	if err := unmarshalJSON(row.Styles, &styles); err != nil {
		return booking.ProviderProfile{}, err
	}
	var slots []booking.TimeSlot
	if err := unmarshalJSON(row.BlockedSlots, &slots); err != nil {
		return booking.ProviderProfile{}, err
	}
	return booking.ProviderProfile{
		ProviderID:         providerID,
		Specializations:    specializations,
		Styles:             styles,
		TravelRadiusKm:     row.TravelRadiusKm,
		MinimumPrice:       booking.AmountCents(row.MinimumPrice),
		City:               row.City,
		PostalCode:         row.PostalCode,
		Coordinates:        joinCoordinates(row.Latitude, row.Longitude),
		Verification:       matching.Verification(row.Verification),
		GenerallyAvailable: row.GenerallyAvailable,
		BlockedSlots:       slots,
	}, nil
}

func encodeUsers(users []booking.UserID) datatypes.JSON {
	raw := make([]string, 0, len(users))
	for _, user := range users {
		raw = append(raw, user.String())
	}
	return encodeStrings(raw)
}

func decodeUsers(payload datatypes.JSON) ([]booking.UserID, error) {
	var raw []string
	if err := unmarshalJSON(payload, &raw); err != nil {
		return nil, err
	}
	users := make([]booking.UserID, 0, len(raw))
	for _, value := range raw {
		user, err := booking.NewUserID(value)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, nil
}

func encodeStrings(values []string) datatypes.JSON {
	if len(values) == 0 {
		return datatypes.JSON(emptyListJSON)
	}
	encoded, err := json.Marshal(values)
	if err != nil {
		return datatypes.JSON(emptyListJSON)
	}
	return datatypes.JSON(encoded)
}

func unmarshalJSON(payload datatypes.JSON, target interface{}) error {
	if len(payload) == 0 {
		return nil
	}
	return json.Unmarshal(payload, target)
}

func splitCoordinates(coordinates *matching.Coordinates) (*float64, *float64) {
	if coordinates == nil {
		return nil, nil
	}
	latitude, longitude := coordinates.Latitude, coordinates.Longitude
	return &latitude, &longitude
}

func joinCoordinates(latitude *float64, longitude *float64) *matching.Coordinates {
	if latitude == nil || longitude == nil {
		return nil
	}
	return &matching.Coordinates{Latitude: *latitude, Longitude: *longitude}
}

func liveQuoteStatuses() []string {
	return []string{booking.QuoteStatusSent.String(), booking.QuoteStatusRead.String()}
}

func quoteStatusStrings(statuses []booking.QuoteStatus) []string {
	values := make([]string, 0, len(statuses))
	for _, status := range statuses {
		values = append(values, status.String())
	}
	return values
}

func reservationStatusStrings(statuses []booking.ReservationStatus) []string {
	values := make([]string, 0, len(statuses))
	for _, status := range statuses {
		values = append(values, status.String())
	}
	return values
}

func isUniqueConflict(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolationCode
	}
	var sqliteErr *gosqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code()&0xFF == sqliteConstraintCode
	}
	return false
}

package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MarkoPoloResearchLab/photobook/internal/apperror"
	"github.com/MarkoPoloResearchLab/photobook/internal/notify"
	"github.com/MarkoPoloResearchLab/photobook/internal/validation"
	"github.com/MarkoPoloResearchLab/photobook/pkg/booking"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func (handler *Handler) handleGetReservation(ctx *gin.Context) {
	userID, reservationID, ok := handler.reservationTarget(ctx, "get_reservation")
	if !ok {
		return
	}
	reservation, err := handler.bookings.GetReservation(ctx.Request.Context(), userID, reservationID)
	if err != nil {
		handler.respondError(ctx, "get_reservation", err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"reservation": newReservationPayload(reservation)})
}

func (handler *Handler) handleUpdateReservationStatus(ctx *gin.Context) {
	userID, reservationID, ok := handler.reservationTarget(ctx, "update_reservation")
	if !ok {
		return
	}
	var form validation.ReservationStatusForm
	if !handler.bindForm(ctx, &form) {
		return
	}
	status, err := booking.ParseReservationStatus(form.Status)
	if err != nil {
		handler.respondError(ctx, "update_reservation", err)
		return
	}
	reservation, err := handler.bookings.UpdateReservationStatus(ctx.Request.Context(), userID, reservationID, status)
	if err != nil {
		handler.respondError(ctx, "update_reservation", err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"reservation": newReservationPayload(reservation)})
}

func (handler *Handler) handleSubmitReview(ctx *gin.Context) {
	userID, reservationID, ok := handler.reservationTarget(ctx, "submit_review")
	if !ok {
		return
	}
	var form validation.ReviewForm
	if !handler.bindForm(ctx, &form) {
		return
	}
	review, err := handler.bookings.SubmitReview(ctx.Request.Context(), booking.ReviewInput{
		ReservationID: reservationID,
		ClientID:      userID,
		Rating:        form.Rating,
		Comment:       form.Comment,
	})
	if err != nil {
		handler.respondError(ctx, "submit_review", err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"avis": newReviewPayload(review)})
}

func (handler *Handler) reservationTarget(ctx *gin.Context, operation string) (booking.UserID, booking.ReservationID, bool) {
	userID, ok := handler.requireUser(ctx)
	if !ok {
		return booking.UserID{}, booking.ReservationID{}, false
	}
	reservationID, err := booking.NewReservationID(ctx.Param("id"))
	if err != nil {
		handler.respondError(ctx, operation, err)
		return booking.UserID{}, booking.ReservationID{}, false
	}
	return userID, reservationID, true
}

// handlePaymentWebhook is called by the payment provider. The body only
// names the session; its state is fetched back from the provider.
func (handler *Handler) handlePaymentWebhook(ctx *gin.Context) {
	var form validation.PaymentWebhookForm
	if !handler.bindForm(ctx, &form) {
		return
	}
	reservation, err := handler.bookings.ConfirmPayment(ctx.Request.Context(), strings.TrimSpace(form.SessionID))
	if err != nil {
		handler.respondError(ctx, "confirm_payment", err)
		return
	}
	handler.logger.Info("payment webhook processed",
		zap.String("reservation_id", reservation.ID.String()),
		zap.String("payment_status", reservation.PaymentStatus.String()))
	ctx.JSON(http.StatusOK, gin.H{
		"reservation_id":  reservation.ID.String(),
		"statut":          reservation.Status.String(),
		"statut_paiement": reservation.PaymentStatus.String(),
	})
}

func (handler *Handler) handleListNotifications(ctx *gin.Context) {
	userID, ok := handler.requireUser(ctx)
	if !ok {
		return
	}
	limit := 0
	if raw := strings.TrimSpace(ctx.Query(queryLimit)); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			handler.respondError(ctx, "list_notifications", apperror.New(apperror.KindInvalidInput, err))
			return
		}
		limit = parsed
	}
	notifications, err := handler.notifications.ListNotifications(ctx.Request.Context(), userID, limit)
	if err != nil {
		handler.respondError(ctx, "list_notifications", err)
		return
	}
	if notifications == nil {
		notifications = []notify.Notification{}
	}
	ctx.JSON(http.StatusOK, gin.H{"notifications": notifications})
}

func (handler *Handler) handleMarkNotificationRead(ctx *gin.Context) {
	userID, ok := handler.requireUser(ctx)
	if !ok {
		return
	}
	if err := handler.notifications.MarkNotificationRead(ctx.Request.Context(), userID, ctx.Param("id")); err != nil {
		handler.respondError(ctx, "mark_notification_read", err)
		return
	}
	ctx.Status(http.StatusNoContent)
}

func (handler *Handler) handleRegisterDevice(ctx *gin.Context) {
	userID, ok := handler.requireUser(ctx)
	if !ok {
		return
	}
	var form validation.DeviceForm
	if !handler.bindForm(ctx, &form) {
		return
	}
	if err := handler.notifications.RegisterDevice(ctx.Request.Context(), userID, form.Token, form.Platform); err != nil {
		handler.respondError(ctx, "register_device", err)
		return
	}
	ctx.Status(http.StatusNoContent)
}

func parseSlot(rawStart string, rawDuration string) (time.Time, time.Duration, error) {
	start, err := time.Parse(time.RFC3339, strings.TrimSpace(rawStart))
	if err != nil {
		return time.Time{}, 0, fmt.Errorf("%w: start %q", booking.ErrInvalidSchedule, rawStart)
	}
	minutes, err := strconv.Atoi(strings.TrimSpace(rawDuration))
	if err != nil || minutes <= 0 {
		return time.Time{}, 0, fmt.Errorf("%w: duration %q", booking.ErrInvalidSchedule, rawDuration)
	}
	return start.UTC(), time.Duration(minutes) * time.Minute, nil
}

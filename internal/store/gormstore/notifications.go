package gormstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/MarkoPoloResearchLab/photobook/internal/notify"
	"github.com/MarkoPoloResearchLab/photobook/pkg/booking"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	entityNotification = "notification"
	entityDevice       = "device"
	actionMarkRead        = "mark_read"
	actionSave            = "save"
)

// NotificationStore implements notify.Store using GORM.
type NotificationStore struct {
	db *gorm.DB
}

// NewNotificationStore returns a NotificationStore backed by gorm.DB.
func NewNotificationStore(db *gorm.DB) *NotificationStore {
	return &NotificationStore{db: db}
}

func (store *NotificationStore) InsertNotification(ctx context.Context, notification notify.Notification) error {
	data, err := json.Marshal(notification.Data)
	if err != nil {
		return wrapStoreError(entityNotification, actionInsert, err)
	}
	model := Notification{
		ID:        notification.ID,
		UserID:    notification.UserID.String(),
		Type:      string(notification.Type),
		Title:     notification.Title,
		Body:      notification.Body,
		Data:      datatypes.JSON(data),
		ReadAt:    notification.ReadAt,
		CreatedAt: notification.CreatedAt.UTC(),
	}
	if err := store.db.WithContext(ctx).Create(&model).Error; err != nil {
		return wrapStoreError(entityNotification, actionInsert, err)
	}
	return nil
}

// ListNotifications returns the newest notifications first.
func (store *NotificationStore) ListNotifications(ctx context.Context, userID booking.UserID, limit int) ([]notify.Notification, error) {
	var rows []Notification
	err := store.db.WithContext(ctx).
		Where("utilisateur_id = ?", userID.String()).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(entityNotification, actionList, err)
	}
	notifications := make([]notify.Notification, 0, len(rows))
	for _, row := range rows {
		data := map[string]string{}
		if err := unmarshalJSON(row.Data, &data); err != nil {
			return nil, wrapStoreError(entityNotification, actionDecode, err)
		}
		notification := notify.Notification{
			ID:        row.ID,
			UserID:    userID,
			Type:      booking.EventType(row.Type),
			Title:     row.Title,
			Body:      row.Body,
			Data:      data,
			CreatedAt: row.CreatedAt.UTC(),
		}
		if row.ReadAt != nil {
			readAt := row.ReadAt.UTC()
			notification.ReadAt = &readAt
		}
		notifications = append(notifications, notification)
	}
	return notifications, nil
}

// MarkNotificationRead stamps lu_le once; marking twice keeps the first stamp.
func (store *NotificationStore) MarkNotificationRead(ctx context.Context, userID booking.UserID, notificationID string, at time.Time) error {
	var model Notification
	err := store.db.WithContext(ctx).
		Where("id = ? AND utilisateur_id = ?", notificationID, userID.String()).
		Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return wrapStoreError(entityNotification, actionMarkRead, notify.ErrNotificationNotFound)
	}
	if err != nil {
		return wrapStoreError(entityNotification, actionMarkRead, err)
	}
	if model.ReadAt != nil {
		return nil
	}
	err = store.db.WithContext(ctx).
		Model(&Notification{}).
		Where("id = ? AND lu_le IS NULL", notificationID).
		Update("lu_le", at.UTC()).Error
	if err != nil {
		return wrapStoreError(entityNotification, actionMarkRead, err)
	}
	return nil
}

// SaveDevice upserts a push token, reassigning it to the latest user.
func (store *NotificationStore) SaveDevice(ctx context.Context, device notify.Device) error {
	model := Device{Token: device.Token, UserID: device.UserID.String(), Platform: device.Platform}
	err := store.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "token"}},
			DoUpdates: clause.AssignmentColumns([]string{"utilisateur_id", "plateforme", "updated_at"}),
		}).
		Create(&model).Error
	if err != nil {
		return wrapStoreError(entityDevice, actionSave, err)
	}
	return nil
}

func (store *NotificationStore) ListDeviceTokens(ctx context.Context, userID booking.UserID) ([]string, error) {
	var tokens []string
	err := store.db.WithContext(ctx).
		Model(&Device{}).
		Where("utilisateur_id = ?", userID.String()).
		Order("created_at ASC").
		Pluck("token", &tokens).Error
	if err != nil {
		return nil, wrapStoreError(entityDevice, actionList, err)
	}
	return tokens, nil
}

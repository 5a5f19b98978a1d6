package gormstore

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ClientRequest mirrors the demandes_client table.
type ClientRequest struct {
	ID                  string         `gorm:"primaryKey;size:64"`
	ClientID            string         `gorm:"column:client_id;not null;index:idx_demandes_client"`
	CategoryID          string         `gorm:"column:categorie_id;not null"`
	Title               string         `gorm:"column:titre;not null"`
	Description         string         `gorm:"column:description"`
	StartsAt            time.Time      `gorm:"column:date_souhaitee;not null"`
	DurationMinutes     int            `gorm:"column:duree_minutes;not null"`
	Address             string         `gorm:"column:adresse"`
	City                string         `gorm:"column:ville"`
	PostalCode          string         `gorm:"column:code_postal"`
	Latitude            *float64       `gorm:"column:latitude"`
	Longitude           *float64       `gorm:"column:longitude"`
	BudgetMin           int64          `gorm:"column:budget_min;not null"`
	BudgetMax           int64          `gorm:"column:budget_max;not null"`
	Status              string         `gorm:"column:statut;not null;index:idx_demandes_statut_expire,priority:1"`
	QuotesReceived      int            `gorm:"column:nombre_devis_recus;not null"`
	NotifiedProviders   datatypes.JSON `gorm:"column:photographes_notifies;not null"`
	InterestedProviders datatypes.JSON `gorm:"column:photographes_interesses;not null"`
	CreatedAt           time.Time      `gorm:"not null"`
	ExpiresAt           time.Time      `gorm:"column:expire_le;not null;index:idx_demandes_statut_expire,priority:2"`
}

func (ClientRequest) TableName() string { return "demandes_client" }

func (request *ClientRequest) BeforeCreate(tx *gorm.DB) error {
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	return nil
}

// Quote mirrors the devis table.
type Quote struct {
	ID            string         `gorm:"primaryKey;size:64"`
	RequestID     string         `gorm:"column:demande_id;not null;index:idx_devis_demande"`
	ProviderID    string         `gorm:"column:photographe_id;not null;index:idx_devis_photographe"`
	BaseRate      int64          `gorm:"column:tarif_base;not null"`
	TravelFee     int64          `gorm:"column:frais_deplacement;not null"`
	Options       datatypes.JSON `gorm:"column:options;not null"`
	Discount      int64          `gorm:"column:remise;not null"`
	Total         int64          `gorm:"column:montant_total;not null"`
	ValidityDays  int            `gorm:"column:delai_validite_jours;not null"`
	Message       string         `gorm:"column:message"`
	Status        string         `gorm:"column:statut;not null;index:idx_devis_statut_expire,priority:1"`
	ReadAt        *time.Time     `gorm:"column:lu_le"`
	ReservationID *string        `gorm:"column:reservation_id"`
	CreatedAt     time.Time      `gorm:"not null"`
	ExpiresAt     time.Time      `gorm:"column:expire_le;not null;index:idx_devis_statut_expire,priority:2"`
}

func (Quote) TableName() string { return "devis" }

func (quote *Quote) BeforeCreate(tx *gorm.DB) error {
	if quote.ID == "" {
		quote.ID = uuid.NewString()
	}
	return nil
}

// Reservation mirrors the reservations table. EndsAt is stored so overlap
// queries stay index friendly.
type Reservation struct {
	ID               string    `gorm:"primaryKey;size:64"`
	QuoteID          string    `gorm:"column:devis_id;not null;uniqueIndex:uniq_reservations_devis"`
	RequestID        string    `gorm:"column:demande_id;not null"`
	ClientID         string    `gorm:"column:client_id;not null;index:idx_reservations_client"`
	ProviderID       string    `gorm:"column:photographe_id;not null;index:idx_reservations_photographe_slot,priority:1"`
	StartsAt         time.Time `gorm:"column:date_debut;not null;index:idx_reservations_photographe_slot,priority:2"`
	EndsAt           time.Time `gorm:"column:date_fin;not null"`
	DurationMinutes  int       `gorm:"column:duree_minutes;not null"`
	Address          string    `gorm:"column:adresse"`
	City             string    `gorm:"column:ville"`
	PostalCode       string    `gorm:"column:code_postal"`
	Latitude         *float64  `gorm:"column:latitude"`
	Longitude        *float64  `gorm:"column:longitude"`
	Total            int64     `gorm:"column:montant_total;not null"`
	Status           string    `gorm:"column:statut;not null"`
	PaymentStatus    string    `gorm:"column:statut_paiement;not null"`
	PaymentSessionID *string   `gorm:"column:session_paiement_id"`
	CreatedAt        time.Time `gorm:"not null"`
	UpdatedAt        time.Time `gorm:"not null"`
}

func (Reservation) TableName() string { return "reservations" }

func (reservation *Reservation) BeforeCreate(tx *gorm.DB) error {
	if reservation.ID == "" {
		reservation.ID = uuid.NewString()
	}
	return nil
}

// ProviderProfile mirrors the profils_photographe table.
type ProviderProfile struct {
	ProviderID         string         `gorm:"column:photographe_id;primaryKey;size:64"`
	Specializations    datatypes.JSON `gorm:"column:specialisations;not null"`
	Styles             datatypes.JSON `gorm:"column:styles;not null"`
	TravelRadiusKm     float64        `gorm:"column:rayon_deplacement_km;not null"`
	MinimumPrice       int64          `gorm:"column:budget_min_prestation;not null"`
	City               string         `gorm:"column:ville"`
	PostalCode         string         `gorm:"column:code_postal"`
	Latitude           *float64       `gorm:"column:latitude"`
	Longitude          *float64       `gorm:"column:longitude"`
	Verification       string         `gorm:"column:statut_verification;not null"`
	GenerallyAvailable bool           `gorm:"column:disponibilite_generale;not null;index"`
	BlockedSlots       datatypes.JSON `gorm:"column:creneaux_bloques;not null"`
	CreatedAt          time.Time      `gorm:"not null"`
	UpdatedAt          time.Time      `gorm:"not null"`
}

func (ProviderProfile) TableName() string { return "profils_photographe" }

// Review mirrors the avis table.
type Review struct {
	ID            string    `gorm:"primaryKey;size:64"`
	ReservationID string    `gorm:"column:reservation_id;not null;uniqueIndex:uniq_avis_reservation"`
	ClientID      string    `gorm:"column:client_id;not null"`
	ProviderID    string    `gorm:"column:photographe_id;not null;index:idx_avis_photographe"`
	Rating        int       `gorm:"column:note;not null"`
	Comment       string    `gorm:"column:commentaire"`
	CreatedAt     time.Time `gorm:"not null"`
}

func (Review) TableName() string { return "avis" }

func (review *Review) BeforeCreate(tx *gorm.DB) error {
	if review.ID == "" {
		review.ID = uuid.NewString()
	}
	return nil
}

// Notification mirrors the notifications table.
type Notification struct {
	ID        string         `gorm:"primaryKey;size:64"`
	UserID    string         `gorm:"column:utilisateur_id;not null;index:idx_notifications_utilisateur_created,priority:1"`
	Type      string         `gorm:"column:type;not null"`
	Title     string         `gorm:"column:titre;not null"`
	Body      string         `gorm:"column:message;not null"`
	Data      datatypes.JSON `gorm:"column:donnees;not null"`
	ReadAt    *time.Time     `gorm:"column:lu_le"`
	CreatedAt time.Time      `gorm:"not null;index:idx_notifications_utilisateur_created,priority:2"`
}

func (Notification) TableName() string { return "notifications" }

func (notification *Notification) BeforeCreate(tx *gorm.DB) error {
	if notification.ID == "" {
		notification.ID = uuid.NewString()
	}
	return nil
}

// Device mirrors the appareils table: one push token per row.
type Device struct {
	Token     string    `gorm:"column:token;primaryKey;size:255"`
	UserID    string    `gorm:"column:utilisateur_id;not null;index:idx_appareils_utilisateur"`
	Platform  string    `gorm:"column:plateforme"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (Device) TableName() string { return "appareils" }

// Migrate creates or updates every table used by the stores.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&ClientRequest{},
		&Quote{},
		&Reservation{},
		&ProviderProfile{},
		&Review{},
		&Notification{},
		&Device{},
	)
}

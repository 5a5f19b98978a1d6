package validation

import "time"

// RequestForm is the body of a new client request.
type RequestForm struct {
	CategoryID      string    `json:"categorie_id" validate:"required"`
	Title           string    `json:"titre" validate:"required,min=3,max=120"`
	Description     string    `json:"description" validate:"max=2000"`
	StartsAt        time.Time `json:"date_souhaitee" validate:"required"`
	DurationMinutes int       `json:"duree_minutes" validate:"gt=0,lte=1440"`
	Address         string    `json:"adresse" validate:"max=255"`
	City            string    `json:"ville" validate:"required"`
	PostalCode      string    `json:"code_postal" validate:"required,frpostal"`
	Latitude        *float64  `json:"latitude" validate:"omitempty,latitude"`
	Longitude       *float64  `json:"longitude" validate:"omitempty,longitude"`
	BudgetMin       int64     `json:"budget_min" validate:"gte=0"`
	BudgetMax       int64     `json:"budget_max" validate:"omitempty,gtefield=BudgetMin"`
}

// QuoteOptionForm is one optional line of a quote.
type QuoteOptionForm struct {
	Name  string `json:"nom" validate:"required,max=120"`
	Price int64  `json:"prix" validate:"gte=0"`
}

// QuoteForm is the body of a new quote.
type QuoteForm struct {
	RequestID    string            `json:"demande_id" validate:"required"`
	BaseRate     int64             `json:"tarif_base" validate:"gte=0"`
	TravelFee    int64             `json:"frais_deplacement" validate:"gte=0"`
	Options      []QuoteOptionForm `json:"options" validate:"dive"`
	Discount     int64             `json:"remise" validate:"gte=0"`
	ValidityDays int               `json:"delai_validite_jours" validate:"omitempty,gte=1,lte=90"`
	Message      string            `json:"message" validate:"max=2000"`
}

// ProviderSignupForm is the body of a provider account creation.
type ProviderSignupForm struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"mot_de_passe" validate:"required,password"`
	FirstName   string `json:"prenom" validate:"required"`
	LastName    string `json:"nom" validate:"required"`
	Phone       string `json:"telephone" validate:"required,frphone"`
	CompanyName string `json:"raison_sociale" validate:"max=255"`
	Siret       string `json:"siret" validate:"required,siret"`
}

// BlockedSlotForm is one unavailable interval of a provider.
type BlockedSlotForm struct {
	Start time.Time `json:"debut" validate:"required"`
	End   time.Time `json:"fin" validate:"required,gtfield=Start"`
}

// ProfileForm is the body of a provider profile update.
type ProfileForm struct {
	Specializations    []string          `json:"specialisations" validate:"min=1,dive,required"`
	Styles             []string          `json:"styles" validate:"dive,required"`
	TravelRadiusKm     float64           `json:"rayon_deplacement_km" validate:"gte=0,lte=1000"`
	MinimumPrice       int64             `json:"budget_min_prestation" validate:"gte=0"`
	City               string            `json:"ville"`
	PostalCode         string            `json:"code_postal" validate:"omitempty,frpostal"`
	Latitude           *float64          `json:"latitude" validate:"omitempty,latitude"`
	Longitude          *float64          `json:"longitude" validate:"omitempty,longitude"`
	GenerallyAvailable *bool             `json:"disponibilite_generale"`
	BlockedSlots       []BlockedSlotForm `json:"creneaux_bloques" validate:"dive"`
}

// ReviewForm is the body of a reservation review.
type ReviewForm struct {
	Rating  int    `json:"note" validate:"gte=1,lte=5"`
	Comment string `json:"commentaire" validate:"max=1000"`
}

// ReservationStatusForm is the body of a reservation status change.
type ReservationStatusForm struct {
	Status string `json:"statut" validate:"required,oneof=confirmee en_cours terminee annulee"`
}

// DeviceForm registers a push token.
type DeviceForm struct {
	Token    string `json:"token" validate:"required,max=255"`
	Platform string `json:"plateforme" validate:"omitempty,oneof=ios android web"`
}

// PaymentWebhookForm is the payment provider callback body.
type PaymentWebhookForm struct {
	SessionID string `json:"session_id" validate:"required"`
}

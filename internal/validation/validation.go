// Package validation checks inbound forms with go-playground/validator and
// reports failures keyed by JSON field name, with French messages.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

const (
	tagSiret    = "siret"
	tagPhone    = "frphone"
	tagPassword = "password"
	tagPostal   = "frpostal"

	siretLength        = 14
	laPosteSirenPrefix = "356000000"
	minPasswordLength  = 8
	maxPasswordLength  = 72
)

var (
	frenchPhonePattern  = regexp.MustCompile(`^(?:(?:\+|00)33[\s.-]{0,3}(?:\(0\)[\s.-]{0,3})?|0)[1-9](?:[\s.-]?\d{2}){4}$`)
	frenchPostalPattern = regexp.MustCompile(`^(?:\d{5}|2[AaBb]\d{3})$`)
)

// Result is the outcome of validating one form.
type Result struct {
	IsValid bool              `json:"valide"`
	Errors  map[string]string `json:"erreurs,omitempty"`
}

// Validator wraps a configured validator.Validate.
type Validator struct {
	validate *validator.Validate
}

// New returns a Validator with the custom tags registered.
func New() *Validator {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return field.Name
		}
		return name
	})
	_ = validate.RegisterValidation(tagSiret, func(fieldLevel validator.FieldLevel) bool {
		return ValidSiret(fieldLevel.Field().String())
	})
	_ = validate.RegisterValidation(tagPhone, func(fieldLevel validator.FieldLevel) bool {
		return frenchPhonePattern.MatchString(strings.TrimSpace(fieldLevel.Field().String()))
	})
	_ = validate.RegisterValidation(tagPassword, func(fieldLevel validator.FieldLevel) bool {
		return ValidPassword(fieldLevel.Field().String())
	})
	_ = validate.RegisterValidation(tagPostal, func(fieldLevel validator.FieldLevel) bool {
		return frenchPostalPattern.MatchString(strings.TrimSpace(fieldLevel.Field().String()))
	})
	return &Validator{validate: validate}
}

// Validate checks form and never returns an error: unexpected validator
// failures are reported under the "_" key.
func (v *Validator) Validate(form interface{}) Result {
	err := v.validate.Struct(form)
	if err == nil {
		return Result{IsValid: true}
	}
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return Result{Errors: map[string]string{"_": "formulaire invalide"}}
	}
	messages := make(map[string]string, len(fieldErrors))
	for _, fieldError := range fieldErrors {
		key := fieldKey(fieldError.Namespace())
		if _, exists := messages[key]; !exists {
			messages[key] = message(fieldError)
		}
	}
	return Result{Errors: messages}
}

func fieldKey(namespace string) string {
	if index := strings.Index(namespace, "."); index >= 0 {
		return namespace[index+1:]
	}
	return namespace
}

func message(fieldError validator.FieldError) string {
	switch fieldError.Tag() {
	case "required":
		return "ce champ est obligatoire"
	case "email":
		return "adresse e-mail invalide"
	case tagSiret:
		return "numéro SIRET invalide"
	case tagPhone:
		return "numéro de téléphone invalide"
	case tagPassword:
		return fmt.Sprintf("le mot de passe doit contenir de %d à %d caractères, dont une majuscule, une minuscule et un chiffre", minPasswordLength, maxPasswordLength)
	case tagPostal:
		return "code postal invalide"
	case "min":
		if fieldError.Kind() == reflect.Slice {
			return fmt.Sprintf("au moins %s élément(s)", fieldError.Param())
		}
		return fmt.Sprintf("au moins %s caractères", fieldError.Param())
	case "max":
		return fmt.Sprintf("au plus %s caractères", fieldError.Param())
	case "gt":
		return fmt.Sprintf("doit être supérieur à %s", fieldError.Param())
	case "gte":
		return fmt.Sprintf("doit être supérieur ou égal à %s", fieldError.Param())
	case "lte":
		return fmt.Sprintf("doit être inférieur ou égal à %s", fieldError.Param())
	case "gtefield":
		return "doit être supérieur ou égal au budget minimum"
	case "gtfield":
		return "doit être postérieur au début"
	case "oneof":
		return fmt.Sprintf("valeur autorisée : %s", strings.ReplaceAll(fieldError.Param(), " ", ", "))
	case "latitude":
		return "latitude invalide"
	case "longitude":
		return "longitude invalide"
	}
	return "valeur invalide"
}

// ValidSiret reports whether value is a 14 digit SIRET with a valid Luhn
// checksum. La Poste establishments use a digit sum multiple of 5 instead.
func ValidSiret(value string) bool {
	value = strings.ReplaceAll(strings.TrimSpace(value), " ", "")
	if len(value) != siretLength {
		return false
	}
	sum := 0
	digitSum := 0
	for index := 0; index < siretLength; index++ {
		character := value[siretLength-1-index]
		if character < '0' || character > '9' {
			return false
		}
		digit := int(character - '0')
		digitSum += digit
		if index%2 == 1 {
			digit *= 2
			if digit > 9 {
				digit -= 9
			}
		}
		sum += digit
	}
	if sum%10 == 0 {
		return true
	}
	return strings.HasPrefix(value, laPosteSirenPrefix) && digitSum%5 == 0
}

// ValidPassword enforces length and character class rules.
func ValidPassword(value string) bool {
	if len(value) < minPasswordLength || len(value) > maxPasswordLength {
		return false
	}
	var hasUpper, hasLower, hasDigit bool
	for _, character := range value {
		switch {
		case unicode.IsUpper(character):
			hasUpper = true
		case unicode.IsLower(character):
			hasLower = true
		case unicode.IsDigit(character):
			hasDigit = true
		}
	}
	return hasUpper && hasLower && hasDigit
}

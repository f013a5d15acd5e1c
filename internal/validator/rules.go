package validator

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/ibuddy-app/ibuddy-service/internal/models"
)

const (
	passwordMinLength  = 8
	passwordMaxLength  = 64
	assetNameMaxLength = 255
)

func registerRules(validate *validator.Validate) {
	// English letters and spaces only.
	validate.RegisterValidation("person_name", func(fl validator.FieldLevel) bool {
		s := strings.TrimSpace(fl.Field().String())
		if s == "" {
			return false
		}
		for _, r := range s {
			if r != ' ' && !(r >= 'a' && r <= 'z') && !(r >= 'A' && r <= 'Z') {
				return false
			}
		}
		return true
	})

	validate.RegisterValidation("strong_password", func(fl validator.FieldLevel) bool {
		return IsStrongPassword(fl.Field().String())
	})

	validate.RegisterValidation("mentee_status", func(fl validator.FieldLevel) bool {
		return models.MenteeStatus(fl.Field().String()).IsValid()
	})

	validate.RegisterValidation("user_role", func(fl validator.FieldLevel) bool {
		return models.Role(fl.Field().String()).IsValid()
	})

	validate.RegisterValidation("asset_type", func(fl validator.FieldLevel) bool {
		return models.AssetType(fl.Field().String()).IsValid()
	})

	validate.RegisterValidation("gender", func(fl validator.FieldLevel) bool {
		switch models.Gender(fl.Field().String()) {
		case models.GenderMale, models.GenderFemale:
			return true
		}
		return false
	})

	validate.RegisterValidation("degree", func(fl validator.FieldLevel) bool {
		switch models.Degree(fl.Field().String()) {
		case models.DegreeBachelor, models.DegreeMaster, models.DegreeOthers:
			return true
		}
		return false
	})

	// Printable, not blank once trimmed.
	validate.RegisterValidation("asset_name", func(fl validator.FieldLevel) bool {
		s := strings.TrimSpace(fl.Field().String())
		if s == "" || len(s) > assetNameMaxLength {
			return false
		}
		for _, r := range s {
			if !unicode.IsPrint(r) {
				return false
			}
		}
		return true
	})

	validate.RegisterAlias("date_string", "datetime="+DateLayout)
	validate.RegisterAlias("country_code", "iso3166_1_alpha2")
}

// IsStrongPassword requires 8 to 64 characters with at least one digit, one
// lower case letter, one upper case letter and one symbol.
func IsStrongPassword(s string) bool {
	n := len([]rune(s))
	if n < passwordMinLength || n > passwordMaxLength {
		return false
	}
	var digit, lower, upper, symbol bool
	for _, r := range s {
		switch {
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			symbol = true
		}
	}
	return digit && lower && upper && symbol
}

// label turns "agreementEndDate" into "Agreement end date".
func label(field string) string {
	if field == "" {
		return "Field"
	}
	var b strings.Builder
	for i, r := range field {
		switch {
		case i == 0:
			b.WriteRune(unicode.ToUpper(r))
		case unicode.IsUpper(r):
			b.WriteRune(' ')
			b.WriteRune(unicode.ToLower(r))
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func messageFor(fe validator.FieldError) string {
	name := label(fe.Field())
	switch fe.Tag() {
	case "required", "required_if", "required_without":
		return fmt.Sprintf("%s is required", name)
	case "min":
		if fe.Kind().String() == "string" {
			return fmt.Sprintf("%s is too short", name)
		}
		return fmt.Sprintf("%s must be at least %s", name, fe.Param())
	case "max":
		if fe.Kind().String() == "string" {
			return fmt.Sprintf("%s is too long", name)
		}
		return fmt.Sprintf("%s must be at most %s", name, fe.Param())
	case "email":
		return fmt.Sprintf("%s is not a valid email address", name)
	case "person_name":
		return fmt.Sprintf("%s must contain only English letters and spaces", name)
	case "strong_password":
		return fmt.Sprintf("%s is too weak, it should be at least 8 characters long, contain numbers, lowercase letters, uppercase letters, and symbols", name)
	case "datetime", "date_string":
		return fmt.Sprintf("%s is not a valid date", name)
	case "iso3166_1_alpha2", "country_code":
		return fmt.Sprintf("%s is not a valid country", name)
	case "mentee_status":
		return fmt.Sprintf("%s is not a valid mentee status", name)
	case "user_role":
		return fmt.Sprintf("%s is not a valid role", name)
	case "asset_name":
		return fmt.Sprintf("%s must be between 1 and %d printable characters", name, assetNameMaxLength)
	case "asset_type":
		return fmt.Sprintf("%s is not a valid asset type", name)
	case "gender":
		return fmt.Sprintf("%s must be male or female", name)
	case "degree":
		return fmt.Sprintf("%s must be bachelor, master or others", name)
	case "dive", "unique":
		return fmt.Sprintf("%s contains invalid entries", name)
	default:
		return fmt.Sprintf("%s is invalid", name)
	}
}

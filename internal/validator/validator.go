// Package validator wraps go-playground/validator with the request rules of
// the service and turns failures into field-keyed messages.
package validator

import (
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// DateLayout is the format of every date carried in requests.
const DateLayout = "2006-01-02"

// AgreementPeriod is implemented by requests carrying an agreement start and
// end date. Validate checks the period after the field rules pass.
type AgreementPeriod interface {
	AgreementDates() (start, end string)
}

type Validator struct {
	validate *validator.Validate
	now      func() time.Time
}

func New() *Validator {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			name, _, _ = strings.Cut(fld.Tag.Get("form"), ",")
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
	registerRules(validate)

	return &Validator{validate: validate, now: time.Now}
}

// Validate returns ValidationErrors or nil.
func (v *Validator) Validate(s interface{}) error {
	if err := v.validate.Struct(s); err != nil {
		return ToValidationErrors(err)
	}
	if p, ok := s.(AgreementPeriod); ok {
		start, end := p.AgreementDates()
		if errs := v.ValidateAgreementPeriod(start, end); len(errs) > 0 {
			return errs
		}
	}
	return nil
}

// Var validates a single value against a tag expression.
func (v *Validator) Var(field string, value interface{}, tag string) error {
	if err := v.validate.Var(value, tag); err != nil {
		errs := ToValidationErrors(err)
		for i := range errs {
			errs[i].Field = field
			errs[i].Message = strings.Replace(errs[i].Message, "Field", label(field), 1)
		}
		return errs
	}
	return nil
}

// ValidateAgreementPeriod requires the end date to be in the future and not
// before the start date. Empty dates are left to the field rules.
func (v *Validator) ValidateAgreementPeriod(start, end string) ValidationErrors {
	if start == "" || end == "" {
		return nil
	}
	startDate, err1 := time.Parse(DateLayout, start)
	endDate, err2 := time.Parse(DateLayout, end)
	if err1 != nil || err2 != nil {
		return nil
	}
	if !endDate.After(v.now()) || endDate.Before(startDate) {
		return Field("agreementEndDate", "End date must be in the future and after the start date", end)
	}
	return nil
}

// SetClock replaces the time source used for date rules.
func (v *Validator) SetClock(now func() time.Time) {
	v.now = now
}

// ParseDate parses a request date. Empty input yields nil.
func ParseDate(s string) (*time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return nil, err
	}
	return &t, nil
}

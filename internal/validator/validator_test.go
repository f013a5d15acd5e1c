package validator

import (
	"errors"
	"testing"
	"time"
)

type signupRequest struct {
	FirstName string `json:"firstName" validate:"required,min=2,max=255,person_name"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,strong_password"`
}

type periodRequest struct {
	Country string `json:"countryCode" validate:"required,country_code"`
	Start   string `json:"agreementStartDate" validate:"required,date_string"`
	End     string `json:"agreementEndDate" validate:"required,date_string"`
	Status  string `json:"status" validate:"omitempty,mentee_status"`
}

func (r periodRequest) AgreementDates() (string, string) { return r.Start, r.End }

func newTestValidator() *Validator {
	v := New()
	v.SetClock(func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) })
	return v
}

func fieldsOf(t *testing.T, err error) map[string]string {
	t.Helper()
	var ve ValidationErrors
	if !errors.As(err, &ve) {
		t.Fatalf("error %v is not ValidationErrors", err)
	}
	return ve.Fields()
}

func TestValidateSignup(t *testing.T) {
	v := newTestValidator()
	tests := []struct {
		name      string
		req       signupRequest
		wantField string
		wantMsg   string
	}{
		{
			name: "valid",
			req:  signupRequest{FirstName: "Jane", Email: "jane@example.com", Password: "Str0ng!pass"},
		},
		{
			name:      "missing name",
			req:       signupRequest{Email: "jane@example.com", Password: "Str0ng!pass"},
			wantField: "firstName",
			wantMsg:   "First name is required",
		},
		{
			name:      "digits in name",
			req:       signupRequest{FirstName: "J4ne", Email: "jane@example.com", Password: "Str0ng!pass"},
			wantField: "firstName",
			wantMsg:   "First name must contain only English letters and spaces",
		},
		{
			name:      "bad email",
			req:       signupRequest{FirstName: "Jane", Email: "jane", Password: "Str0ng!pass"},
			wantField: "email",
			wantMsg:   "Email is not a valid email address",
		},
		{
			name:      "weak password",
			req:       signupRequest{FirstName: "Jane", Email: "jane@example.com", Password: "password"},
			wantField: "password",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(&tt.req)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			fields := fieldsOf(t, err)
			msg, ok := fields[tt.wantField]
			if !ok {
				t.Fatalf("no error for %s in %v", tt.wantField, fields)
			}
			if tt.wantMsg != "" && msg != tt.wantMsg {
				t.Errorf("message = %q, want %q", msg, tt.wantMsg)
			}
		})
	}
}

func TestValidateAgreementPeriod(t *testing.T) {
	v := newTestValidator()
	tests := []struct {
		name    string
		req     periodRequest
		wantErr bool
	}{
		{"future end", periodRequest{Country: "DE", Start: "2024-01-01", End: "2024-12-31"}, false},
		{"past end", periodRequest{Country: "DE", Start: "2023-01-01", End: "2024-01-01"}, true},
		{"end before start", periodRequest{Country: "DE", Start: "2025-06-01", End: "2025-01-01"}, true},
		{"same day", periodRequest{Country: "DE", Start: "2025-01-01", End: "2025-01-01"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.req)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				want := "End date must be in the future and after the start date"
				if got := fieldsOf(t, err)["agreementEndDate"]; got != want {
					t.Errorf("message = %q, want %q", got, want)
				}
			}
		})
	}
}

func TestValidateFieldRules(t *testing.T) {
	v := newTestValidator()
	err := v.Validate(periodRequest{Country: "Germany", Start: "01/02/2024", End: "2024-12-31", Status: "lost"})
	fields := fieldsOf(t, err)

	if fields["countryCode"] != "Country code is not a valid country" {
		t.Errorf("countryCode message = %q", fields["countryCode"])
	}
	if fields["agreementStartDate"] != "Agreement start date is not a valid date" {
		t.Errorf("agreementStartDate message = %q", fields["agreementStartDate"])
	}
	if _, ok := fields["status"]; !ok {
		t.Error("expected status error")
	}
}

func TestIsStrongPassword(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"Aa1!aaaa", true},
		{"Aa1!aaa", false},
		{"aa1!aaaa", false},
		{"AA1!AAAA", false},
		{"Aa!aaaaa", false},
		{"Aa1aaaaa", false},
		{"Aa1!" + string(make([]rune, 61)), false},
	}
	for _, tt := range tests {
		if got := IsStrongPassword(tt.in); got != tt.want {
			t.Errorf("IsStrongPassword(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestVar(t *testing.T) {
	v := newTestValidator()
	err := v.Var("email", "nope", "required,email")
	fields := fieldsOf(t, err)
	if fields["email"] != "Email is not a valid email address" {
		t.Errorf("Var() message = %q", fields["email"])
	}
	if err := v.Var("email", "a@b.co", "required,email"); err != nil {
		t.Errorf("Var() error = %v", err)
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-02-29")
	if err != nil || d == nil || d.Day() != 29 {
		t.Fatalf("ParseDate() = %v, %v", d, err)
	}
	if d, err := ParseDate(" "); d != nil || err != nil {
		t.Errorf("ParseDate(blank) = %v, %v", d, err)
	}
	if _, err := ParseDate("29.02.2024"); err == nil {
		t.Error("expected error for foreign layout")
	}
}

package keys

import (
	"testing"
)

func TestEntityKeyRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		prefix Prefix
		id     string
	}{
		{name: "mentee", prefix: PrefixMentee, id: "0b6f0c2e-1111-4a4a-9c9c-000000000001"},
		{name: "id containing separator", prefix: PrefixAsset, id: "a#b"},
		{name: "faq", prefix: PrefixFAQ, id: "42"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k := New(tt.prefix, tt.id)
			got, err := ParseEntityKey(tt.prefix, k.String())
			if err != nil {
				t.Fatalf("ParseEntityKey() error = %v", err)
			}
			if got != k {
				t.Errorf("ParseEntityKey() = %+v, want %+v", got, k)
			}
		})
	}
}

func TestParseEntityKeyRejectsForeignPrefix(t *testing.T) {
	if _, err := ParseEntityKey(PrefixMentee, "Note#1"); err == nil {
		t.Error("expected error for key with another prefix")
	}
	if _, err := ParseEntityKey(PrefixMentee, "Mentee#"); err == nil {
		t.Error("expected error for key without id")
	}
}

func TestChildKeyRoundTrip(t *testing.T) {
	k := Note("m-1", "n-1")
	if k.PartitionKey() != "Mentee#m-1" {
		t.Errorf("PartitionKey() = %q", k.PartitionKey())
	}
	if k.SortKey() != "Note#n-1" {
		t.Errorf("SortKey() = %q", k.SortKey())
	}

	got, err := ParseChildKey(PrefixMentee, PrefixNote, k.PartitionKey(), k.SortKey())
	if err != nil {
		t.Fatalf("ParseChildKey() error = %v", err)
	}
	if got != k {
		t.Errorf("ParseChildKey() = %+v, want %+v", got, k)
	}
}

func TestValidatePrefixes(t *testing.T) {
	tests := []struct {
		name     string
		prefixes []Prefix
		wantErr  bool
	}{
		{name: "registered", prefixes: Prefixes()},
		{name: "shared leading letters", prefixes: []Prefix{"Note", "Not"}},
		{name: "nested", prefixes: []Prefix{"User", "User#Admin"}, wantErr: true},
		{name: "empty", prefixes: []Prefix{""}, wantErr: true},
		{name: "duplicate", prefixes: []Prefix{"FAQ", "FAQ"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePrefixes(tt.prefixes)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePrefixes() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestUserIDNormalizesEmail(t *testing.T) {
	a := UserID("Jane.Doe@Example.com ")
	b := UserID("jane.doe@example.com")
	if a != b {
		t.Errorf("UserID differs for equivalent e-mails: %q vs %q", a, b)
	}
	if a == UserID("john@example.com") {
		t.Error("UserID collides for different e-mails")
	}
	if User(a).String() != "User#"+a {
		t.Errorf("User key = %q", User(a).String())
	}
}

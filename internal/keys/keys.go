// Package keys composes and parses the partition and sort keys used by the
// key-value tables. Every entity is addressed as "<Prefix>#<ID>".
package keys

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

const separator = "#"

type Prefix string

const (
	PrefixUser     Prefix = "User"
	PrefixPassword Prefix = "Password"
	PrefixMentee   Prefix = "Mentee"
	PrefixNote     Prefix = "Note"
	PrefixAsset    Prefix = "Asset"
	PrefixFAQ      Prefix = "FAQ"
)

// Prefixes returns every registered prefix.
func Prefixes() []Prefix {
	return []Prefix{PrefixUser, PrefixPassword, PrefixMentee, PrefixNote, PrefixAsset, PrefixFAQ}
}

func init() {
	if err := ValidatePrefixes(Prefixes()); err != nil {
		panic(err)
	}
}

// ValidatePrefixes rejects empty prefixes, prefixes containing the separator
// and any pair where one "prefix#" is a leading substring of another.
func ValidatePrefixes(prefixes []Prefix) error {
	tagged := make([]string, 0, len(prefixes))
	for _, p := range prefixes {
		if p == "" {
			return fmt.Errorf("keys: empty prefix")
		}
		if strings.Contains(string(p), separator) {
			return fmt.Errorf("keys: prefix %q contains %q", p, separator)
		}
		tagged = append(tagged, string(p)+separator)
	}
	sort.Strings(tagged)
	for i := 1; i < len(tagged); i++ {
		if strings.HasPrefix(tagged[i], tagged[i-1]) {
			return fmt.Errorf("keys: prefix %q is ambiguous with %q", tagged[i], tagged[i-1])
		}
	}
	return nil
}

// EntityKey addresses a root entity.
type EntityKey struct {
	Prefix Prefix
	ID     string
}

func New(prefix Prefix, id string) EntityKey {
	return EntityKey{Prefix: prefix, ID: id}
}

func (k EntityKey) String() string {
	return string(k.Prefix) + separator + k.ID
}

// ParseEntityKey is the inverse of EntityKey.String for the given prefix.
func ParseEntityKey(prefix Prefix, s string) (EntityKey, error) {
	id, ok := strings.CutPrefix(s, string(prefix)+separator)
	if !ok || id == "" {
		return EntityKey{}, fmt.Errorf("keys: %q is not a %s key", s, prefix)
	}
	return EntityKey{Prefix: prefix, ID: id}, nil
}

// ChildKey addresses an item stored in its parent's partition.
type ChildKey struct {
	Parent    EntityKey
	ChildType Prefix
	ChildID   string
}

func NewChild(parent EntityKey, childType Prefix, childID string) ChildKey {
	return ChildKey{Parent: parent, ChildType: childType, ChildID: childID}
}

func (k ChildKey) PartitionKey() string {
	return k.Parent.String()
}

func (k ChildKey) SortKey() string {
	return string(k.ChildType) + separator + k.ChildID
}

// ParseChildKey rebuilds a ChildKey from its partition and sort key.
func ParseChildKey(parentPrefix, childType Prefix, pk, sk string) (ChildKey, error) {
	parent, err := ParseEntityKey(parentPrefix, pk)
	if err != nil {
		return ChildKey{}, err
	}
	child, err := ParseEntityKey(childType, sk)
	if err != nil {
		return ChildKey{}, err
	}
	return ChildKey{Parent: parent, ChildType: childType, ChildID: child.ID}, nil
}

// SortKeyPrefix is the begins_with argument selecting every child of a type.
func SortKeyPrefix(childType Prefix) string {
	return string(childType) + separator
}

// userNamespace seeds the deterministic user ids.
var userNamespace = uuid.MustParse("8d3b9f3e-2a4c-5e71-9a0b-6c1d2e3f4a5b")

// NormalizeEmail trims and lower-cases an e-mail address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// UserID derives the stable user id from an e-mail address. Two spellings
// differing only in case or surrounding whitespace map to the same id.
func UserID(email string) string {
	return uuid.NewSHA1(userNamespace, []byte(NormalizeEmail(email))).String()
}

func User(id string) EntityKey     { return New(PrefixUser, id) }
func Password(id string) EntityKey { return New(PrefixPassword, id) }
func Mentee(id string) EntityKey   { return New(PrefixMentee, id) }
func Asset(id string) EntityKey    { return New(PrefixAsset, id) }
func FAQ(id string) EntityKey      { return New(PrefixFAQ, id) }

func Note(menteeID, noteID string) ChildKey {
	return NewChild(Mentee(menteeID), PrefixNote, noteID)
}

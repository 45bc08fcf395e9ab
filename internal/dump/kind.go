package dump

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownKind is returned by ParseKind for names outside the four kinds.
var ErrUnknownKind = errors.New("unknown entity kind")

// ErrInvalidID is wrapped by errors for an entity id that is malformed
// or not positive.
var ErrInvalidID = errors.New("invalid id")

// Kind is one of the four Discogs entity kinds. The set is closed; every
// per-kind behavior is a switch over these values.
type Kind int

const (
	Artist Kind = iota + 1
	Label
	Master
	Release
)

// Kinds lists every kind in export order.
var Kinds = []Kind{Artist, Label, Master, Release}

// ParseKind converts "artist", "artists", "Release", ... into a Kind.
func ParseKind(s string) (Kind, error) {
	name := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), "s")
	for _, k := range Kinds {
		if k.String() == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// String returns the singular name, which is also the entity element name
// and the primary table name.
func (k Kind) String() string {
	switch k {
	case Artist:
		return "artist"
	case Label:
		return "label"
	case Master:
		return "master"
	case Release:
		return "release"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Plural returns the plural name used by the dump root element and file.
func (k Kind) Plural() string {
	return k.String() + "s"
}

// Valid reports whether k is one of the four kinds.
func (k Kind) Valid() bool {
	return k >= Artist && k <= Release
}

// Element is the name of the element wrapping one entity.
func (k Kind) Element() string { return k.String() }

// Root is the name of the document element wrapping all entities.
func (k Kind) Root() string { return k.Plural() }

func (k Kind) newEntity() Entity {
	switch k {
	case Artist:
		return &ArtistRecord{}
	case Label:
		return &LabelRecord{}
	case Master:
		return &MasterRecord{}
	case Release:
		return &ReleaseRecord{}
	}
	return nil
}

package task

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

// IDKind discriminates the two ways a task can be identified (spec §3,
// supplemented from original_source/'s TaskId sum type).
type IDKind string

const (
	IDKindUUID IDKind = "uuid"
	IDKindUser IDKind = "user"
)

var (
	ErrEmptyUserID      = errors.New("task user id is empty")
	ErrWhitespaceUserID = errors.New("task user id contains whitespace")
)

// ID is the TaskId sum type: either a server-generated UUID or a
// caller-supplied, whitespace-free string. The zero value is not a
// valid ID; always build one via NewUUID or NewUserID.
type ID struct {
	Kind   IDKind
	UUID   uuid.UUID
	UserID string
}

func NewUUID() ID {
	return ID{Kind: IDKindUUID, UUID: uuid.New()}
}

// NewUserID validates the caller-supplied identifier per spec §3: it
// must be non-empty and contain no whitespace.
func NewUserID(raw string) (ID, error) {
	if raw == "" {
		return ID{}, ErrEmptyUserID
	}
	if strings.ContainsAny(raw, " \t\n\r") {
		return ID{}, ErrWhitespaceUserID
	}
	return ID{Kind: IDKindUser, UserID: raw}, nil
}

// String renders the id as the value stored in the "id" column,
// discriminated by IDKind in an adjacent column.
func (id ID) String() string {
	switch id.Kind {
	case IDKindUUID:
		return id.UUID.String()
	case IDKindUser:
		return id.UserID
	default:
		return ""
	}
}

func (id ID) Equal(other ID) bool {
	return id.Kind == other.Kind && id.UUID == other.UUID && id.UserID == other.UserID
}

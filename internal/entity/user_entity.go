package entity

import (
	"time"

	"github.com/google/uuid"
)

// User is the document owner. Account issuance and credential handling
// live outside this service; we only need identity for ownership checks.
type User struct {
	Id        uuid.UUID
	Email     string
	FullName  string
	CreatedAt time.Time
	UpdatedAt *time.Time
	DeletedAt *time.Time
}

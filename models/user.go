package models

import (
	"database/sql"
	"time"
)

// User is the identity subsystem's view of a user, referenced here by
// username. This service never creates or verifies users; it only reads the
// profile attributes it needs for room rendering and push delivery.
type User struct {
	Username string `gorm:"primaryKey"`
	FullName string
	PfpIndex string
	PfpBg    string
	FcmToken sql.NullString
	JoinedAt time.Time
}

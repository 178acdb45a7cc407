package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"backend/internal/authz"
)

// User is the single account document; staff and admins are users with an
// elevated role rather than a separate collection.
type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Username     string             `bson:"username" json:"username"`
	Email        string             `bson:"email" json:"email"`
	Phone        string             `bson:"phone,omitempty" json:"phone,omitempty"`
	Role         authz.Role         `bson:"role" json:"role"`
	PasswordHash string             `bson:"passwordHash" json:"-"`
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt" json:"updatedAt"`
}

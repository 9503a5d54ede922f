package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Device is an IMEI registration owned by a user.
type Device struct {
	ID           primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	UserID       primitive.ObjectID `json:"userId" bson:"userId"`
	IMEI         string             `json:"imei" bson:"imei"`
	TAC          string             `json:"tac" bson:"tac"`
	Brand        string             `json:"brand,omitempty" bson:"brand,omitempty"`
	Model        string             `json:"model,omitempty" bson:"model,omitempty"`
	Reference    string             `json:"reference" bson:"reference"` // registration reference handed to the client
	RegisteredAt time.Time          `json:"registeredAt" bson:"registeredAt"`
}

type RegisterDeviceRequest struct {
	IMEI string `json:"imei" validate:"required"`
}

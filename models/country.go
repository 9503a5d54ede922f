package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// Country lookup record, served to the mobile client for the
// registration form.
type Country struct {
	ID        primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	Name      string             `json:"name" bson:"name"`
	Code      string             `json:"code" bson:"code"`
	Emoji     string             `json:"emoji,omitempty" bson:"emoji,omitempty"`
	Image     string             `json:"image,omitempty" bson:"image,omitempty"`
	DialCodes []string           `json:"dialCodes,omitempty" bson:"dialCodes,omitempty"`
	Slug      string             `json:"slug,omitempty" bson:"slug,omitempty"`
}

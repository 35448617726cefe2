package models

import "time"

// Mechanic is an entry in the directory of mechanics that may be invited to
// quote on a maintenance request. ID is the mechanic's user id.
type Mechanic struct {
	ID        string    `bson:"_id" json:"id"`
	Name      string    `bson:"name" json:"name"`
	Email     string    `bson:"email" json:"email"`
	Specialty string    `bson:"specialty" json:"specialty"`
	Active    bool      `bson:"active" json:"active"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

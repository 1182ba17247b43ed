package domain

import "time"

// User represents a Telegram user registered with the bot.
type User struct {
	ID         int64     `bson:"id" json:"id"`
	ExternalID int64     `bson:"external_id" json:"external_id"`
	FirstName  string    `bson:"first_name" json:"first_name"`
	LastName   string    `bson:"last_name" json:"last_name"`
	Handle     string    `bson:"handle" json:"handle"`
	CreatedAt  time.Time `bson:"created_at" json:"created_at"`
}

// DisplayName joins the name parts, falling back to the handle.
func (u User) DisplayName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	case u.LastName != "":
		return u.LastName
	default:
		return u.Handle
	}
}

package domain

import "time"

// Application is a job application collected through the dialog.
type Application struct {
	ID        int64     `bson:"id" json:"id"`
	UserID    int64     `bson:"user_id" json:"user_id"`
	Position  string    `bson:"position" json:"position"`
	Salary    int64     `bson:"salary" json:"salary"`
	Region    string    `bson:"region" json:"region"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

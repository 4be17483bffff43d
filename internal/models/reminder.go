package models

import "time"

// Reminder is a direct message to deliver to UserID once RemindAt has passed.
type Reminder struct {
	ID        uint `gorm:"primarykey"`
	CreatedAt time.Time

	UserID   int64     `gorm:"index;not null"`
	RemindAt time.Time `gorm:"index;not null"`
	Content  string    `gorm:"type:text;not null"`
}

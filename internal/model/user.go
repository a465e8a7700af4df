package model

import "time"

type User struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	Email       string    `gorm:"size:128;not null;uniqueIndex" json:"email"`
	DisplayName string    `gorm:"size:128;not null" json:"displayName"`
	CreatedAt   time.Time `json:"createdAt"`
}

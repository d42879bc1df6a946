// Package model defines database models
package model

import "time"

type User struct {
	ID                      string     `gorm:"primaryKey" json:"_id"`
	Email                   string     `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash            *string    `json:"-"` // nil for users that only ever signed in through a provider
	Name                    string     `json:"name"`
	PhoneNumber             string     `json:"phoneNumber"`
	ProfileImage            string     `json:"profileImage"`
	IsVerified              bool       `gorm:"default:false" json:"isVerified"`
	VerificationToken       *string    `gorm:"index" json:"-"`
	VerificationTokenExpiry *time.Time `json:"-"`
	ResetOTP                *string    `json:"-"`
	ResetOTPExpiry          *time.Time `json:"-"`
	CreatedAt               time.Time  `json:"createdAt"`
	UpdatedAt               time.Time  `json:"updatedAt"`
}

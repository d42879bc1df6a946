package model

import "time"

type ResendRequest struct {
	ID         int    `gorm:"primaryKey;autoIncrement"`
	UserID     string `gorm:"uniqueIndex"`
	LastResend time.Time
	Cooldown   time.Time // No resend is sent before this point
	Count      int       // Resends sent inside the current window
	WindowEnd  time.Time
	Blocked    bool // If the user sends too many resend requests they're blocked until WindowEnd
}

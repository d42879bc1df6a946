package model

import "time"

const (
	ProviderCredentials = "credentials"
	ProviderGoogle      = "google"
)

// Account links a User to one identity at a provider. A given
// (provider, provider_account_id) pair belongs to at most one user.
type Account struct {
	ID                uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID            string    `gorm:"index;not null" json:"userId"`
	Provider          string    `gorm:"uniqueIndex:idx_provider_account;not null" json:"provider"`
	ProviderAccountID string    `gorm:"uniqueIndex:idx_provider_account;not null" json:"providerAccountId"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

package store

import "time"

type BufferedMessage struct {
	RequestID string `gorm:"primaryKey"`
	Height    int64  `gorm:"index"`
	Payload   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type ExpectedRequest struct {
	Height    int64  `gorm:"primaryKey;autoIncrement:false"`
	RequestID string `gorm:"primaryKey"`
}

type Counterparty struct {
	RequestID string `gorm:"primaryKey"`
	NodeID    string
}

// PrivateProofContribution rows are inserted at most once per responding
// IdP and deleted when the onboarding session ends.
type PrivateProofContribution struct {
	Id        int    `gorm:"primaryKey;autoIncrement"`
	RequestID string `gorm:"uniqueIndex:idx_contribution_responder"`
	IdpID     string `gorm:"uniqueIndex:idx_contribution_responder"`
	Payload   string
	CreatedAt time.Time
}

// PendingDispatch marks a message handed to a dispatcher whose dispatch has
// not finished yet.
type PendingDispatch struct {
	RequestID string `gorm:"primaryKey"`
	CreatedAt time.Time
}

type Challenge struct {
	RequestID string `gorm:"primaryKey"`
	Value     string
}

type PendingIdentity struct {
	RequestID string `gorm:"primaryKey"`
	Payload   string
}

type OnboardingSession struct {
	RequestID string `gorm:"primaryKey"`
	Phase     string `gorm:"index"`
	Payload   string
	UpdatedAt time.Time
}

type CallbackURL struct {
	NodeID  string `gorm:"primaryKey"`
	Purpose string `gorm:"primaryKey"`
	URL     string
}

func allRecords() []any {
	return []any{
		&BufferedMessage{},
		&ExpectedRequest{},
		&Counterparty{},
		&PrivateProofContribution{},
		&PendingDispatch{},
		&Challenge{},
		&PendingIdentity{},
		&OnboardingSession{},
		&CallbackURL{},
	}
}

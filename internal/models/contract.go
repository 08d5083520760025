package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// Contract represents a service contract for an event, signed electronically
// by the client through the public signing page.
type Contract struct {
	ID        uint    `gorm:"primaryKey" json:"id"`
	CreatorID *uint   `gorm:"index" json:"creator_id"`
	QuoteRef  *string `gorm:"size:100" json:"quote_ref"`

	// Public access keys. Slug is preferred; token is kept for contracts
	// created before slugs existed and must keep resolving indefinitely.
	PublicSlug  *string `gorm:"size:100;uniqueIndex" json:"public_slug"`
	PublicToken *string `gorm:"size:100;uniqueIndex" json:"public_token"`

	Status string `gorm:"default:draft;index" json:"status"`
	// StatusBeforeSignature records whether the contract was draft or sent
	// when it entered draft_signed, so an edit can restore it exactly.
	StatusBeforeSignature *string `gorm:"size:20" json:"status_before_signature"`

	ClientName  string `gorm:"not null" json:"client_name"`
	ClientEmail string `gorm:"not null" json:"client_email"`
	ClientPhone string `json:"client_phone"`

	EventType string     `gorm:"size:100" json:"event_type"`
	EventDate *time.Time `json:"event_date"`
	Venue     *string    `gorm:"size:255" json:"venue"`
	Amount    *float64   `gorm:"type:decimal" json:"amount"`
	Currency  string     `gorm:"default:USD;not null" json:"currency"`
	Terms     *string    `gorm:"type:text" json:"terms"`

	// Preview signature, present only while the contract is in draft_signed.
	PreviewSignaturePath *string    `gorm:"size:255" json:"preview_signature_path"`
	SignatureDrawnAt     *time.Time `json:"signature_drawn_at"`

	// AuditPayload is set exactly once, at confirmation, and never mutated.
	AuditPayload *SignatureAudit `gorm:"type:jsonb" json:"audit_payload"`
	SignedAt     *time.Time      `gorm:"index" json:"signed_at"`

	SentAt    *time.Time `json:"sent_at"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// TableName specifies the table name for Contract
func (Contract) TableName() string {
	return "contracts"
}

// Contract status constants
const (
	ContractStatusDraft       = "draft"
	ContractStatusSent        = "sent"
	ContractStatusDraftSigned = "draft_signed"
	ContractStatusSigned      = "signed"
	ContractStatusCompleted   = "completed"
	ContractStatusCancelled   = "cancelled"
)

// UnknownIP is recorded in the audit payload when the caller's address
// could not be attributed.
const UnknownIP = "unknown"

// MaySignPreview returns true if a preview signature can be saved
func (c *Contract) MaySignPreview() bool {
	return c.Status == ContractStatusDraft ||
		c.Status == ContractStatusSent ||
		c.Status == ContractStatusDraftSigned
}

// MayConfirm returns true if the signature can be confirmed
func (c *Contract) MayConfirm() bool {
	return c.Status == ContractStatusDraftSigned && c.PreviewSignaturePath != nil
}

// MayEditSignature returns true if the preview signature can be discarded
func (c *Contract) MayEditSignature() bool {
	return c.Status == ContractStatusDraftSigned
}

// MaySend returns true if the contract can be dispatched to the client
func (c *Contract) MaySend() bool {
	return c.Status == ContractStatusDraft
}

// MayComplete returns true if the contract can be marked completed
func (c *Contract) MayComplete() bool {
	return c.Status == ContractStatusSigned
}

// MayCancel returns true if the contract can be cancelled
func (c *Contract) MayCancel() bool {
	return c.Status == ContractStatusDraft ||
		c.Status == ContractStatusSent ||
		c.Status == ContractStatusDraftSigned
}

// IsFinal returns true once no signing operation may touch the contract
func (c *Contract) IsFinal() bool {
	return c.Status == ContractStatusSigned ||
		c.Status == ContractStatusCompleted ||
		c.Status == ContractStatusCancelled
}

// IsSigned returns true if the contract carries a confirmed signature
func (c *Contract) IsSigned() bool {
	return c.Status == ContractStatusSigned || c.Status == ContractStatusCompleted
}

// PriorStatus returns the status the contract held before entering
// draft_signed. Legacy rows never recorded it; a contract that reached
// the signing page was dispatched, so sent is the safe default.
func (c *Contract) PriorStatus() string {
	if c.StatusBeforeSignature != nil && *c.StatusBeforeSignature != "" {
		return *c.StatusBeforeSignature
	}
	return ContractStatusSent
}

// SignatureAudit is the immutable evidence bundle captured at confirmation:
// who signed, from where, with what device, and when.
type SignatureAudit struct {
	SignatureRef string    `json:"signature_ref"`
	SignedAt     time.Time `json:"signed_at"`
	SignerIP     string    `json:"signer_ip"`
	UserAgent    string    `json:"user_agent"`
	Timezone     string    `json:"timezone"`
	ClientName   string    `json:"client_name"`
	ClientEmail  string    `json:"client_email"`
}

// Value serializes the audit payload for the jsonb column
func (a SignatureAudit) Value() (driver.Value, error) {
	return json.Marshal(a)
}

// Scan deserializes the audit payload from the jsonb column
func (a *SignatureAudit) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, a)
	case string:
		return json.Unmarshal([]byte(v), a)
	default:
		return errors.New("unsupported type for SignatureAudit")
	}
}

// ClientContext carries the request attribution captured by the signing
// edge. It is threaded explicitly into the protocol so the core never
// reads ambient request state.
type ClientContext struct {
	IPAddress string `json:"ip_address"`
	UserAgent string `json:"user_agent"`
	Timezone  string `json:"timezone"`
}

// ContractResponse is the JSON response format for contracts
type ContractResponse struct {
	ID                   uint            `json:"id"`
	PublicSlug           *string         `json:"public_slug"`
	Status               string          `json:"status"`
	ClientName           string          `json:"client_name"`
	ClientEmail          string          `json:"client_email"`
	ClientPhone          string          `json:"client_phone"`
	EventType            string          `json:"event_type"`
	EventDate            *time.Time      `json:"event_date"`
	Venue                *string         `json:"venue"`
	Amount               *float64        `json:"amount"`
	Currency             string          `json:"currency"`
	Terms                *string         `json:"terms"`
	QuoteRef             *string         `json:"quote_ref"`
	PreviewSignaturePath *string         `json:"preview_signature_path"`
	SignatureDrawnAt     *time.Time      `json:"signature_drawn_at"`
	AuditPayload         *SignatureAudit `json:"audit_payload"`
	SignedAt             *time.Time      `json:"signed_at"`
	SentAt               *time.Time      `json:"sent_at"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

// ToResponse converts Contract to ContractResponse
func (c *Contract) ToResponse() ContractResponse {
	return ContractResponse{
		ID:                   c.ID,
		PublicSlug:           c.PublicSlug,
		Status:               c.Status,
		ClientName:           c.ClientName,
		ClientEmail:          c.ClientEmail,
		ClientPhone:          c.ClientPhone,
		EventType:            c.EventType,
		EventDate:            c.EventDate,
		Venue:                c.Venue,
		Amount:               c.Amount,
		Currency:             c.Currency,
		Terms:                c.Terms,
		QuoteRef:             c.QuoteRef,
		PreviewSignaturePath: c.PreviewSignaturePath,
		SignatureDrawnAt:     c.SignatureDrawnAt,
		AuditPayload:         c.AuditPayload,
		SignedAt:             c.SignedAt,
		SentAt:               c.SentAt,
		CreatedAt:            c.CreatedAt,
		UpdatedAt:            c.UpdatedAt,
	}
}

// PublicContractResponse is the snapshot exposed on the unauthenticated
// signing page. It hides internal references the signer has no use for.
type PublicContractResponse struct {
	Status           string          `json:"status"`
	ClientName       string          `json:"client_name"`
	ClientEmail      string          `json:"client_email"`
	EventType        string          `json:"event_type"`
	EventDate        *time.Time      `json:"event_date"`
	Venue            *string         `json:"venue"`
	Amount           *float64        `json:"amount"`
	Currency         string          `json:"currency"`
	Terms            *string         `json:"terms"`
	SignatureDrawnAt *time.Time      `json:"signature_drawn_at"`
	AuditPayload     *SignatureAudit `json:"audit_payload"`
	SignedAt         *time.Time      `json:"signed_at"`
}

// ToPublicResponse converts Contract to PublicContractResponse
func (c *Contract) ToPublicResponse() PublicContractResponse {
	return PublicContractResponse{
		Status:           c.Status,
		ClientName:       c.ClientName,
		ClientEmail:      c.ClientEmail,
		EventType:        c.EventType,
		EventDate:        c.EventDate,
		Venue:            c.Venue,
		Amount:           c.Amount,
		Currency:         c.Currency,
		Terms:            c.Terms,
		SignatureDrawnAt: c.SignatureDrawnAt,
		AuditPayload:     c.AuditPayload,
		SignedAt:         c.SignedAt,
	}
}

package models

import (
	"time"
)

// AuditLog represents a system audit entry
type AuditLog struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Actor      string    `gorm:"size:100;not null" json:"actor"`  // "client" for public signing actions, operator email otherwise
	Action     string    `gorm:"size:50;not null" json:"action"`  // CREATE, SEND, SIGN_PREVIEW, CONFIRM_SIGNATURE, EDIT_SIGNATURE, ...
	Entity     string    `gorm:"size:50;not null" json:"entity"`  // Contract, Notification, etc.
	EntityID   uint      `json:"entity_id"`
	Details    string    `gorm:"type:text" json:"details"`
	IPAddress  string    `gorm:"size:45" json:"ip_address"`
	UserAgent  string    `gorm:"size:255" json:"user_agent"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName specifies the table name for AuditLog
func (AuditLog) TableName() string {
	return "audit_logs"
}

package models

import "time"

// ContactGroup is a named recipient list owned by a tenant.
type ContactGroup struct {
	ID        string    `json:"id" db:"id"`
	TenantID  string    `json:"tenantId" db:"tenant_id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// Contact is one recipient inside a group. PhoneNumber is unique per group.
type Contact struct {
	ID          int64     `json:"id" db:"id"`
	GroupID     string    `json:"groupId" db:"group_id"`
	Name        string    `json:"name" db:"name"`
	PhoneNumber string    `json:"phoneNumber" db:"phone_number"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
}

// ImportResult summarizes a CSV import run. Invalid rows are skipped, never
// fatal to the import.
type ImportResult struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
}

// Package model defines domain entities used by services and repositories.
package model

import (
	"encoding/json"
	"time"

	"github.com/gofrs/uuid/v5"
)

// Tokens collects an issued access token.
type Tokens struct {
	AccessToken string    `json:"token"`
	ExpiresAt   time.Time `json:"expiresAt"` // access token expiry (for diagnostics)
}

// Buyer is a single lead record. UpdatedAt is the optimistic concurrency token.
type Buyer struct {
	ID           uuid.UUID    `json:"id"`
	OwnerID      uuid.UUID    `json:"ownerId"`
	FullName     string       `json:"fullName"`
	Email        *string      `json:"email"`
	Phone        string       `json:"phone"`
	City         City         `json:"city"`
	PropertyType PropertyType `json:"propertyType"`
	BHK          *BHK         `json:"bhk"`
	Purpose      Purpose      `json:"purpose"`
	BudgetMin    *int64       `json:"budgetMin"`
	BudgetMax    *int64       `json:"budgetMax"`
	Timeline     Timeline     `json:"timeline"`
	Source       Source       `json:"source"`
	Status       Status       `json:"status"`
	Notes        *string      `json:"notes"`
	Tags         []string     `json:"tags"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

// BuyerPatch is a validated partial field set. Nil means "not submitted".
type BuyerPatch struct {
	FullName     *string
	Email        *string
	Phone        *string
	City         *City
	PropertyType *PropertyType
	BHK          *BHK
	Purpose      *Purpose
	BudgetMin    *int64
	BudgetMax    *int64
	Timeline     *Timeline
	Source       *Source
	Status       *Status
	Notes        *string
	Tags         *[]string
}

// Apply returns b with every submitted field of p written over it.
func (p BuyerPatch) Apply(b Buyer) Buyer {
	if p.FullName != nil {
		b.FullName = *p.FullName
	}
	if p.Email != nil {
		b.Email = ptr(*p.Email)
	}
	if p.Phone != nil {
		b.Phone = *p.Phone
	}
	if p.City != nil {
		b.City = *p.City
	}
	if p.PropertyType != nil {
		b.PropertyType = *p.PropertyType
	}
	if p.BHK != nil {
		b.BHK = ptr(*p.BHK)
	}
	if p.Purpose != nil {
		b.Purpose = *p.Purpose
	}
	if p.BudgetMin != nil {
		b.BudgetMin = ptr(*p.BudgetMin)
	}
	if p.BudgetMax != nil {
		b.BudgetMax = ptr(*p.BudgetMax)
	}
	if p.Timeline != nil {
		b.Timeline = *p.Timeline
	}
	if p.Source != nil {
		b.Source = *p.Source
	}
	if p.Status != nil {
		b.Status = *p.Status
	}
	if p.Notes != nil {
		b.Notes = ptr(*p.Notes)
	}
	if p.Tags != nil {
		b.Tags = append([]string{}, (*p.Tags)...)
	}
	return b
}

// Fields lists the JSON names of submitted fields.
func (p BuyerPatch) Fields() []string {
	var out []string
	add := func(set bool, name string) {
		if set {
			out = append(out, name)
		}
	}
	add(p.FullName != nil, "fullName")
	add(p.Email != nil, "email")
	add(p.Phone != nil, "phone")
	add(p.City != nil, "city")
	add(p.PropertyType != nil, "propertyType")
	add(p.BHK != nil, "bhk")
	add(p.Purpose != nil, "purpose")
	add(p.BudgetMin != nil, "budgetMin")
	add(p.BudgetMax != nil, "budgetMax")
	add(p.Timeline != nil, "timeline")
	add(p.Source != nil, "source")
	add(p.Status != nil, "status")
	add(p.Notes != nil, "notes")
	add(p.Tags != nil, "tags")
	return out
}

// HistoryKind distinguishes sentinel entries from incremental ones.
type HistoryKind string

const (
	HistoryCreated HistoryKind = "created"
	HistoryUpdated HistoryKind = "updated"
	HistoryDeleted HistoryKind = "deleted"
)

// FieldChange is one before/after pair of a diff.
type FieldChange struct {
	Before any `json:"before"`
	After  any `json:"after"`
}

// Diff maps changed field names to their before/after values.
type Diff map[string]FieldChange

// HistoryEntry is an immutable audit record. BuyerID may reference a deleted buyer.
type HistoryEntry struct {
	ID        uuid.UUID       `json:"id"`
	BuyerID   uuid.UUID       `json:"buyerId"`
	ChangedBy uuid.UUID       `json:"changedBy"`
	ChangedAt time.Time       `json:"changedAt"`
	Kind      HistoryKind     `json:"kind"`
	Diff      json.RawMessage `json:"diff"`
}

// BuyerDetail is a buyer with its most recent history.
type BuyerDetail struct {
	Buyer
	History []HistoryEntry `json:"history"`
}

// BuyerFilter narrows list/export queries. Zero values mean "no filter".
type BuyerFilter struct {
	Search       string
	City         City
	PropertyType PropertyType
	Status       Status
	Timeline     Timeline
}

// BuyerPage is one page of a filtered list.
type BuyerPage struct {
	Buyers   []Buyer `json:"buyers"`
	Total    int     `json:"total"`
	Page     int     `json:"page"`
	PageSize int     `json:"pageSize"`
}

// User represents an account stored on the server. Passwords are never stored in plaintext.
type User struct {
	ID        uuid.UUID // PK
	Email     string    // unique
	PwdHash   []byte    // Argon2id(password, SaltAuth)
	SaltAuth  []byte    // per-user auth salt
	CreatedAt time.Time
}

func ptr[T any](v T) *T { return &v }

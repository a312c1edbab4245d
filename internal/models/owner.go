package models

// OwnerKind discriminates between an individual professional and a
// multi-member studio account.
type OwnerKind string

const (
	OwnerKindProfessional OwnerKind = "PROFESSIONAL"
	OwnerKindStudio       OwnerKind = "STUDIO"
)

// Valid returns true when the kind is a supported value.
func (k OwnerKind) Valid() bool {
	return k == OwnerKindProfessional || k == OwnerKindStudio
}

// OwnerRef identifies the owning account of a request. It is resolved once
// per request (from the JWT claims) into a Scope, and every repository query
// filters by that scope instead of re-deriving studio-vs-individual logic.
type OwnerRef struct {
	Kind OwnerKind `json:"kind"`
	ID   string    `json:"id"`
}

// Scope is the single ownership filter value threaded through queries.
type Scope struct {
	OwnerID string
}

// Resolve collapses the sum type into the query filter.
func (o OwnerRef) Resolve() Scope {
	return Scope{OwnerID: o.ID}
}

// Owner is the account row behind an OwnerRef.
type Owner struct {
	ID         string    `db:"id" json:"id"`
	Kind       OwnerKind `db:"kind" json:"kind"`
	Name       string    `db:"name" json:"name"`
	MaxPerSlot int       `db:"max_per_slot" json:"max_per_slot"`
}

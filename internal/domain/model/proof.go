package model

// ProofKind is the shape of evidence a user submitted for review.
type ProofKind string

const (
	ProofKindPhoto    ProofKind = "photo"
	ProofKindDocument ProofKind = "document"
	ProofKindText     ProofKind = "text"
)

// AllowedProofMIME is the evidence allow-list; anything else is rejected
// before a record is created.
var AllowedProofMIME = map[string]string{
	"image/jpeg":      "jpg",
	"image/png":       "png",
	"application/pdf": "pdf",
}

package types

import "time"

// Resource type values accepted by the catalogue.
const (
	TypeClassNotes = "Class Notes"
	TypeTermTest   = "Term Test"
	TypeFinalPaper = "Final Paper"
)

// Years lists the study years files can be filed under.
var Years = []string{"1", "2", "3", "4"}

// Types lists the accepted resource type values.
var Types = []string{TypeClassNotes, TypeTermTest, TypeFinalPaper}

// Subjects is the advisory subject catalogue shown by the frontend.
// The subject field itself is free-form.
var Subjects = []string{"IOT-POA", "AI", "DWM", "ATCD", "ADMS", "AA", "CG", "HONOURS"}

// File represents one shared resource in the catalogue. The bytes live on
// the remote media host; the catalogue stores the durable URL and the
// remote object key needed to delete it later.
type File struct {
	// ID is the unique identifier of the file record.
	ID int `json:"id" db:"id"`

	// FileURL is the durable public location on the media host. Unique:
	// two records never point at the same remote object.
	FileURL string `json:"fileUrl" db:"file_url"`

	// RemoteKey is the media host's object key, persisted at creation so
	// deletes never have to reconstruct it from the URL.
	RemoteKey string `json:"-" db:"remote_key"`

	// Name is the display name shown in the catalogue.
	Name string `json:"name" db:"name"`

	// Subject is the subject tag (e.g. "AI").
	Subject string `json:"subject" db:"subject"`

	// Type is one of the values in Types.
	Type string `json:"type" db:"type"`

	// Year is one of the values in Years.
	Year string `json:"year" db:"year"`

	// Approved gates visibility in the public catalogue listings.
	Approved bool `json:"isChecked" db:"approved"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// ValidYear reports whether year is an accepted value.
func ValidYear(year string) bool {
	for _, y := range Years {
		if y == year {
			return true
		}
	}
	return false
}

// ValidType reports whether t is an accepted resource type.
func ValidType(t string) bool {
	for _, candidate := range Types {
		if candidate == t {
			return true
		}
	}
	return false
}

package ontology

import "time"

// Operation names a committed registry mutation.
type Operation string

const (
	OpSeed           Operation = "seed"
	OpSpecialisation Operation = "specialisation"
	OpDisambiguation Operation = "disambiguation"
	OpAbstraction    Operation = "abstraction"
	OpDeduplication  Operation = "deduplication"
)

// Version is one entry in the registry's version history. The version counter
// is monotonically increasing; ParentVersion points at the version the commit
// was built against (0 for the initial seed).
type Version struct {
	Version       int64     `json:"version"`
	ParentVersion int64     `json:"parent_version"`
	CommitID      string    `json:"commit_id"`
	Operation     Operation `json:"operation"`
	SubjectIDs    []string  `json:"subject_ids"`
	CreatedAt     time.Time `json:"created_at"`
}

package models

import "time"

// DocumentRef points at one downloadable document referenced by a tender's
// detail view. URL may be empty when the link target could not be resolved.
type DocumentRef struct {
	DisplayText string `json:"display_text"`
	URL         string `json:"url,omitempty"`
	Filename    string `json:"filename"`
}

// RawTenderRecord holds the unprocessed extraction result for one listing
// item. It is written to the raw checkpoint file immediately after extraction
// and never mutated afterwards.
type RawTenderRecord struct {
	ID             string            `json:"id"`
	TenderNumber   string            `json:"tender_number"`
	Title          string            `json:"title"`
	DetailText     string            `json:"detail_text"`
	ParsedFields   map[string]string `json:"parsed_fields"`
	Documents      []DocumentRef     `json:"documents,omitempty"`
	Degraded       bool              `json:"degraded"`
	Portal         string            `json:"portal"`
	PublicationURL string            `json:"publication_url"`
	ScrapedAt      time.Time         `json:"scraped_at"`
}

// DatesInput carries the publication's date fields. Deadlines are kept as
// free text because the portal mixes timestamps with phrases like
// "auf Anfrage"; calendar dates are parsed where the format allows it.
type DatesInput struct {
	PeriodStart             *time.Time
	PeriodEnd               *time.Time
	ApplicationDeadline     string
	AwardPeriod             *time.Time
	ExpirationTime          *time.Time
	BiddersRequestsDeadline string
}

// ContractorInput identifies the contracting authority. Dedup identity is
// the exact name; address and email of later duplicates are ignored.
type ContractorInput struct {
	Name         string
	Address      string
	ContactEmail string
}

// CPVCodeInput is a procurement classification code with optional description.
type CPVCodeInput struct {
	Code        string
	Description string
}

// PublicationInput is the typed, validated form of a RawTenderRecord handed
// to the persistence gateway. TenderNumber is the natural identity used for
// idempotent ingestion.
type PublicationInput struct {
	TenderNumber             string
	Title                    string
	Description              string
	TenderProcedure          string
	ExecutionPlace           string
	SubdivisionIntoLots      bool
	SideOffersAllowed        bool
	SeveralMainOffersAllowed bool
	Portal                   string
	PublicationURL           string

	Dates                DatesInput
	ContractingAuthority ContractorInput
	CPVCodes             []CPVCodeInput
	Documents            []DocumentRef
}

// IngestResult reports whether a publication was newly created.
type IngestResult struct {
	Created bool
	Reason  string
}

// Ingest result reasons.
const (
	ReasonAlreadyExists = "already_exists"
	ReasonConflict      = "conflict"
)

// RunReport aggregates the per-run counters printed at the end of a run.
type RunReport struct {
	RunID      string    `json:"run_id"`
	Portal     string    `json:"portal"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Discovered       int `json:"discovered"`
	Extracted        int `json:"extracted"`
	Degraded         int `json:"degraded"`
	Failed           int `json:"failed"`
	Persisted        int `json:"persisted"`
	SkippedDuplicate int `json:"skipped_duplicate"`
	DocumentsSaved   int `json:"documents_saved"`
	DocumentsSkipped int `json:"documents_skipped"`
	DocumentsFailed  int `json:"documents_failed"`

	Errors []string `json:"errors,omitempty"`
}

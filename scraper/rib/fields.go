package rib

import (
	"regexp"
	"strings"
	"time"

	"tender-scraper/models"
)

// ParseFields turns a block of "label: value" lines into a normalized
// mapping. Labels are lowercased with whitespace runs collapsed to
// underscores; values are trimmed. Lines without a separator are ignored,
// and the last occurrence of a repeated label wins.
func ParseFields(text string) map[string]string {
	fields := make(map[string]string)

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		idx := strings.Index(line, ":")
		if idx < 0 {
			continue
		}
		label := normalizeLabel(line[:idx])
		if label == "" {
			continue
		}
		fields[label] = strings.TrimSpace(line[idx+1:])
	}

	return fields
}

func normalizeLabel(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), "_")
}

// Labels the portal uses for each typed field, in lookup order. The portal
// serves both English and German templates.
var fieldLabels = map[string][]string{
	"tender_number":               {"tender_number", "tender_no", "vergabenummer", "vergabe-nr."},
	"title":                       {"title", "titel"},
	"description":                 {"description", "beschreibung"},
	"tender_procedure":            {"tender_procedure", "procedure", "vergabeverfahren", "verfahrensart"},
	"execution_place":             {"execution_place", "place_of_execution", "ausführungsort", "erfüllungsort"},
	"subdivision_into_lots":       {"subdivision_into_lots", "lots", "aufteilung_in_lose"},
	"side_offers_allowed":         {"side_offers_allowed", "nebenangebote"},
	"several_main_offers_allowed": {"several_main_offers_allowed", "mehrere_hauptangebote"},
	"period_start":                {"period_start", "start", "beginn"},
	"period_end":                  {"period_end", "end", "ende"},
	"application_deadline":        {"application_deadline", "deadline", "angebotsfrist", "abgabefrist"},
	"award_period":                {"award_period", "zuschlagsfrist"},
	"expiration_time":             {"expiration_time", "bindefrist"},
	"bidders_requests_deadline":   {"bidders_requests_deadline", "bieterfragen", "bieteranfragen"},
	"authority_name":              {"contracting_authority", "authority", "auftraggeber", "vergabestelle"},
	"authority_address":           {"address", "adresse", "anschrift"},
	"authority_email":             {"contact_email", "email", "e-mail", "kontakt"},
	"cpv_codes":                   {"cpv_codes", "cpv_code", "cpv"},
}

func lookupField(fields map[string]string, name string) string {
	for _, label := range fieldLabels[name] {
		if v, ok := fields[label]; ok && v != "" {
			return v
		}
	}
	return ""
}

var dateLayouts = []string{"2006-01-02", "02.01.2006", "02.01.06"}

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"02.01.2006 15:04",
	"02.01.2006",
	"2006-01-02",
}

func parseDate(v string) *time.Time {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return &t
		}
	}
	return nil
}

func parseTimestamp(v string) *time.Time {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return &t
		}
	}
	return nil
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "yes", "ja", "true", "1", "x":
		return true
	}
	return false
}

var cpvPattern = regexp.MustCompile(`\d{8}-\d`)

// parseCPVCodes extracts CPV codes and their trailing descriptions from a
// value like "45000000-7 Construction work, 45210000-2".
func parseCPVCodes(v string) []models.CPVCodeInput {
	locs := cpvPattern.FindAllStringIndex(v, -1)
	if locs == nil {
		return nil
	}

	seen := make(map[string]struct{}, len(locs))
	out := make([]models.CPVCodeInput, 0, len(locs))

	for i, loc := range locs {
		code := v[loc[0]:loc[1]]
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}

		end := len(v)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		desc := strings.TrimSpace(strings.Trim(strings.TrimSpace(v[loc[1]:end]), ",;"))

		out = append(out, models.CPVCodeInput{Code: code, Description: desc})
	}
	return out
}

// tenderNumberOf resolves the record's natural key: the parsed tender number
// under any of its labels, falling back to the listing item id so degraded
// records still ingest idempotently. Every artifact that names a tender uses
// this resolution.
func tenderNumberOf(rec *models.RawTenderRecord) string {
	if n := lookupField(rec.ParsedFields, "tender_number"); n != "" {
		return n
	}
	return "rib-" + rec.ID
}

// BuildPublicationInput is the single conversion point from a raw extracted
// record to the typed input the persistence gateway accepts. Unknown parsed
// labels stay on the raw record and are not persisted.
func BuildPublicationInput(rec *models.RawTenderRecord) models.PublicationInput {
	f := rec.ParsedFields

	in := models.PublicationInput{
		TenderNumber:             tenderNumberOf(rec),
		Title:                    lookupField(f, "title"),
		Description:              lookupField(f, "description"),
		TenderProcedure:          lookupField(f, "tender_procedure"),
		ExecutionPlace:           lookupField(f, "execution_place"),
		SubdivisionIntoLots:      parseBool(lookupField(f, "subdivision_into_lots")),
		SideOffersAllowed:        parseBool(lookupField(f, "side_offers_allowed")),
		SeveralMainOffersAllowed: parseBool(lookupField(f, "several_main_offers_allowed")),
		Portal:                   rec.Portal,
		PublicationURL:           rec.PublicationURL,

		Dates: models.DatesInput{
			PeriodStart:             parseDate(lookupField(f, "period_start")),
			PeriodEnd:               parseDate(lookupField(f, "period_end")),
			ApplicationDeadline:     lookupField(f, "application_deadline"),
			AwardPeriod:             parseDate(lookupField(f, "award_period")),
			ExpirationTime:          parseTimestamp(lookupField(f, "expiration_time")),
			BiddersRequestsDeadline: lookupField(f, "bidders_requests_deadline"),
		},
		ContractingAuthority: models.ContractorInput{
			Name:         lookupField(f, "authority_name"),
			Address:      lookupField(f, "authority_address"),
			ContactEmail: lookupField(f, "authority_email"),
		},
		CPVCodes:  parseCPVCodes(lookupField(f, "cpv_codes")),
		Documents: rec.Documents,
	}

	if in.Title == "" {
		in.Title = rec.Title
	}

	return in
}

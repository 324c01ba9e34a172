package usaspending

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/fedleads/harvester/internal/contracts"
)

// awardFields is the result-field manifest sent with every bulk query.
var awardFields = []string{
	"Award ID",
	"Recipient Name",
	"Description",
	"Award Amount",
	"Awarding Agency",
	"Awarding Sub Agency",
	"Start Date",
	"End Date",
	"naics_code",
	"Place of Performance State Code",
	"Place of Performance City Name",
	"generated_internal_id",
}

// searchResponse is the bulk award envelope. Results stay raw so one
// malformed award never aborts the batch.
type searchResponse struct {
	Results []json.RawMessage `json:"results"`
}

// award is the loosely-shaped provider record; field names follow the
// provider's display-name convention.
type award struct {
	AwardID             string   `json:"Award ID"`
	RecipientName       string   `json:"Recipient Name"`
	Description         string   `json:"Description"`
	AwardAmount         *float64 `json:"Award Amount"`
	AwardingAgency      string   `json:"Awarding Agency"`
	AwardingSubAgency   string   `json:"Awarding Sub Agency"`
	StartDate           string   `json:"Start Date"`
	EndDate             string   `json:"End Date"`
	NaicsCode           string   `json:"naics_code"`
	PlaceOfPerfState    string   `json:"Place of Performance State Code"`
	PlaceOfPerfCity     string   `json:"Place of Performance City Name"`
	GeneratedInternalID string   `json:"generated_internal_id"`
}

// mapAward converts one raw award into the canonical shape.
func mapAward(raw json.RawMessage, region string) (contracts.NormalizedContract, error) {
	var a award
	if err := json.Unmarshal(raw, &a); err != nil {
		return contracts.NormalizedContract{}, fmt.Errorf("decode award: %w", err)
	}

	externalID := a.GeneratedInternalID
	if externalID == "" {
		externalID = a.AwardID
	}
	title := strings.TrimSpace(a.Description)
	if externalID == "" && title == "" {
		return contracts.NormalizedContract{}, fmt.Errorf("award has neither id nor description")
	}

	rec := contracts.NormalizedContract{
		ExternalID:   externalID,
		Title:        title,
		Agency:       a.AwardingAgency,
		SubAgency:    a.AwardingSubAgency,
		CategoryCode: a.NaicsCode,
		Provenance:   contracts.ProvenanceSecondary,
		Location: contracts.Location{
			City:   a.PlaceOfPerfCity,
			Region: firstNonEmpty(a.PlaceOfPerfState, region),
		},
	}
	if a.AwardAmount != nil {
		rec.ValueDisplay = fmt.Sprintf("$%.2f", *a.AwardAmount)
	}
	if a.GeneratedInternalID != "" {
		rec.SourceURL = "https://www.usaspending.gov/award/" + a.GeneratedInternalID
	}
	if ts, err := time.Parse("2006-01-02", strings.TrimSpace(a.StartDate)); err == nil {
		rec.PostedDate = ts
	}
	if ts, err := time.Parse("2006-01-02", strings.TrimSpace(a.EndDate)); err == nil {
		rec.DueDate = &ts
	}
	return rec, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

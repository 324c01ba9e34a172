package sam

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/fedleads/harvester/internal/contracts"
)

// searchResponse is the paginated envelope returned by the opportunity
// search endpoint. Records stay raw so one malformed entry never aborts the
// page.
type searchResponse struct {
	TotalRecords  int               `json:"totalRecords"`
	Opportunities []json.RawMessage `json:"opportunitiesData"`
}

// opportunity is the loosely-shaped provider record. The API aliases several
// fields between versions, so both spellings are captured and resolved in
// the mapping step.
type opportunity struct {
	NoticeID           string `json:"noticeId"`
	ID                 string `json:"id"`
	Title              string `json:"title"`
	Department         string `json:"department"`
	FullParentPathName string `json:"fullParentPathName"`
	SubTier            string `json:"subTier"`
	Office             string `json:"office"`
	NaicsCode          string `json:"naicsCode"`
	ClassificationCode string `json:"classificationCode"`
	PostedDate         string `json:"postedDate"`
	ResponseDeadLine   string `json:"responseDeadLine"`
	UILink             string `json:"uiLink"`
	Award              *struct {
		Amount string `json:"amount"`
	} `json:"award"`
	PlaceOfPerformance *struct {
		City *struct {
			Name string `json:"name"`
		} `json:"city"`
		State *struct {
			Code string `json:"code"`
		} `json:"state"`
	} `json:"placeOfPerformance"`
}

var postedDateLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04:05-07:00",
	"2006-01-02T15:04:05Z",
	"01/02/2006",
}

// mapOpportunity converts one raw provider record into the canonical shape.
// The ambiguous provider shape never leaks past this function.
func mapOpportunity(raw json.RawMessage, region string) (contracts.NormalizedContract, error) {
	var opp opportunity
	if err := json.Unmarshal(raw, &opp); err != nil {
		return contracts.NormalizedContract{}, fmt.Errorf("decode opportunity: %w", err)
	}

	externalID := opp.NoticeID
	if externalID == "" {
		externalID = opp.ID
	}
	if externalID == "" && strings.TrimSpace(opp.Title) == "" {
		return contracts.NormalizedContract{}, fmt.Errorf("opportunity has neither notice id nor title")
	}

	agency, subAgency := splitAgencyPath(opp.FullParentPathName)
	if agency == "" {
		agency = opp.Department
	}
	if subAgency == "" {
		subAgency = opp.SubTier
	}

	code := opp.NaicsCode
	if code == "" {
		code = opp.ClassificationCode
	}

	rec := contracts.NormalizedContract{
		ExternalID:   externalID,
		Title:        strings.TrimSpace(opp.Title),
		Agency:       agency,
		SubAgency:    subAgency,
		CategoryCode: code,
		SourceURL:    opp.UILink,
		Provenance:   contracts.ProvenancePrimary,
		Location:     contracts.Location{Region: region},
	}
	if opp.Award != nil {
		rec.ValueDisplay = opp.Award.Amount
	}
	if pop := opp.PlaceOfPerformance; pop != nil {
		if pop.City != nil {
			rec.Location.City = pop.City.Name
		}
		if pop.State != nil && pop.State.Code != "" {
			rec.Location.Region = pop.State.Code
		}
	}
	if ts, ok := parseDate(opp.PostedDate); ok {
		rec.PostedDate = ts
	}
	if ts, ok := parseDate(opp.ResponseDeadLine); ok {
		rec.DueDate = &ts
	}
	return rec, nil
}

// splitAgencyPath breaks the dotted agency hierarchy into its top-level
// agency and the first sub-tier.
func splitAgencyPath(path string) (string, string) {
	parts := strings.Split(path, ".")
	switch {
	case path == "" || len(parts) == 0:
		return "", ""
	case len(parts) == 1:
		return strings.TrimSpace(parts[0]), ""
	default:
		return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
	}
}

func parseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range postedDateLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

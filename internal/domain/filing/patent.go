package filing

import (
	"encoding/json"
	"reflect"
	"strings"
)

// PatentRecord is the patent variant of Record. All fields are optional while
// the wizard is in progress.
type PatentRecord struct {
	Title               string              `json:"title,omitempty"`
	InventorNames       NameList            `json:"inventorNames,omitempty"`
	InventionType       string              `json:"inventionType,omitempty"`
	BriefSummary        string              `json:"briefSummary,omitempty"`
	TechnicalField      string              `json:"technicalField,omitempty"`
	BackgroundArt       string              `json:"backgroundArt,omitempty"`
	DetailedDescription string              `json:"detailedDescription,omitempty"`
	AdvantageousEffects string              `json:"advantageousEffects,omitempty"`
	Claims              ClaimSet            `json:"claims,omitempty"`
	PriorArt            []PriorArtReference `json:"priorArt,omitempty"`
	ApplicantName       string              `json:"applicantName,omitempty"`
	Abstract            string              `json:"abstract,omitempty"`
	DrawingsDescription string              `json:"drawingsDescription,omitempty"`
	InventorDeclaration *bool               `json:"inventorDeclaration,omitempty"`
}

func (*PatentRecord) FilingType() FilingType { return FilingTypePatent }
func (*PatentRecord) isRecord()              {}

// Inventors returns the non-blank inventor names.
func (p *PatentRecord) Inventors() []string {
	out := make([]string, 0, len(p.InventorNames))
	for _, n := range p.InventorNames {
		if s := strings.TrimSpace(n); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// PriorArtReference is one cited prior-art document.
type PriorArtReference struct {
	Reference string `json:"reference"`
	Type      string `json:"type,omitempty"` // patent | publication | product | other
	Relevance string `json:"relevance,omitempty"`
}

var jsonNameListType = reflect.TypeOf(NameList{})

// NameList is an ordered list of person names. It decodes from either a JSON
// array or a single string, since single-inventor forms submit a plain
// string.
type NameList []string

// UnmarshalJSON accepts ["a","b"] or "a".
func (n *NameList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*n = list
		return nil
	}
	var single string
	if err := json.Unmarshal(data, &single); err != nil {
		return &json.UnmarshalTypeError{Value: string(data), Type: jsonNameListType, Field: "inventorNames"}
	}
	if strings.TrimSpace(single) == "" {
		*n = nil
		return nil
	}
	*n = NameList{single}
	return nil
}

//Personal.AI order the ending

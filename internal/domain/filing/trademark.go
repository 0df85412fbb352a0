package filing

import "strings"

// Nice classification bounds (goods 1-34, services 35-45).
const (
	MinNiceClass = 1
	MaxNiceClass = 45
)

// Recognised trademark mark types.
var markTypes = map[string]struct{}{
	"standard_character": {},
	"design":             {},
	"sound":              {},
	"collective":         {},
	"certification":      {},
}

// IsKnownMarkType reports whether s is a recognised mark type.
func IsKnownMarkType(s string) bool {
	_, ok := markTypes[strings.ToLower(strings.TrimSpace(s))]
	return ok
}

// TrademarkRecord is the trademark variant of Record.
type TrademarkRecord struct {
	ApplicantName              string         `json:"applicantName,omitempty"`
	MarkText                   string         `json:"markText,omitempty"`
	MarkType                   string         `json:"markType,omitempty"`
	OwnerName                  string         `json:"ownerName,omitempty"`
	OwnerType                  string         `json:"ownerType,omitempty"`
	OwnerAddress               string         `json:"ownerAddress,omitempty"`
	FilingBasis                FilingBasis    `json:"filingBasis,omitempty"`
	GoodsServices              []GoodsService `json:"goodsServices,omitempty"`
	UsageEvidence              *UsageEvidence `json:"usageEvidence,omitempty"`
	DeclarationOfTruth         *bool          `json:"declarationOfTruth,omitempty"`
	DeclarationOfPenalty       *bool          `json:"declarationOfPenalty,omitempty"`
	ForeignRegistrationNumber  string         `json:"foreignRegistrationNumber,omitempty"`
	ForeignRegistrationCountry string         `json:"foreignRegistrationCountry,omitempty"`
}

func (*TrademarkRecord) FilingType() FilingType { return FilingTypeTrademark }
func (*TrademarkRecord) isRecord()              {}

// Evidence returns the usage evidence, or an empty value when unset.
func (t *TrademarkRecord) Evidence() UsageEvidence {
	if t.UsageEvidence == nil {
		return UsageEvidence{}
	}
	return *t.UsageEvidence
}

// NiceClasses returns the distinct valid class numbers in first-seen order.
func (t *TrademarkRecord) NiceClasses() []int {
	seen := map[int]struct{}{}
	var out []int
	for _, g := range t.GoodsServices {
		if !g.HasValidClass() {
			continue
		}
		if _, ok := seen[g.NiceClass]; ok {
			continue
		}
		seen[g.NiceClass] = struct{}{}
		out = append(out, g.NiceClass)
	}
	return out
}

// GoodsService is one identified good or service with its Nice class.
type GoodsService struct {
	Description  string `json:"description,omitempty"`
	NiceClass    int    `json:"niceClass,omitempty"`
	Industry     string `json:"industry,omitempty"`
	TargetMarket string `json:"targetMarket,omitempty"`
}

// HasValidClass reports whether NiceClass lies in [1, 45].
func (g GoodsService) HasValidClass() bool {
	return g.NiceClass >= MinNiceClass && g.NiceClass <= MaxNiceClass
}

// IsComplete reports whether the item has a description and a valid class.
func (g GoodsService) IsComplete() bool {
	return strings.TrimSpace(g.Description) != "" && g.HasValidClass()
}

// UsageEvidence is the proof (or statement of intent) of use of the mark.
type UsageEvidence struct {
	FirstUseDate           string `json:"firstUseDate,omitempty"`
	FirstUseInCommerceDate string `json:"firstUseInCommerceDate,omitempty"`
	CommerceType           string `json:"commerceType,omitempty"`
	UsageDescription       string `json:"usageDescription,omitempty"`
	SpecimenDescription    string `json:"specimenDescription,omitempty"`
	SpecimenReference      string `json:"specimenReference,omitempty"`
	IntendedUseDescription string `json:"intendedUseDescription,omitempty"`
}

// HasSpecimen reports whether a specimen is described or referenced.
func (u UsageEvidence) HasSpecimen() bool {
	return strings.TrimSpace(u.SpecimenDescription) != "" || strings.TrimSpace(u.SpecimenReference) != ""
}

//Personal.AI order the ending

package filing

import (
	"fmt"
	"strings"

	"github.com/turtacn/IPFiling-Assistant/pkg/errors"
)

// IntentToUsePolicy decides which usage evidence an intent_to_use trademark
// application must supply on the usage-evidence step.
type IntentToUsePolicy string

const (
	// IntentToUseRequiresDescription asks for an intended-use description in
	// place of first-use date and specimen.
	IntentToUseRequiresDescription IntentToUsePolicy = "intended_use"
	// IntentToUseWaived requires nothing on the step.
	IntentToUseWaived IntentToUsePolicy = "waived"
	// IntentToUseStrict treats intent_to_use the same as use_in_commerce.
	IntentToUseStrict IntentToUsePolicy = "strict"
)

// IsValid reports whether p is a recognised policy.
func (p IntentToUsePolicy) IsValid() bool {
	switch p {
	case IntentToUseRequiresDescription, IntentToUseWaived, IntentToUseStrict:
		return true
	}
	return false
}

// StepResult is the outcome of a step or completeness check. MissingFields
// is never nil and lists field paths in check order.
type StepResult struct {
	Valid         bool     `json:"isValid"`
	MissingFields []string `json:"missingFields"`
}

func resultOf(missing []string) StepResult {
	if missing == nil {
		missing = []string{}
	}
	return StepResult{Valid: len(missing) == 0, MissingFields: missing}
}

// StepValidator gates wizard navigation. It is stateless apart from its
// policy and safe for concurrent use.
type StepValidator struct {
	policy IntentToUsePolicy
}

// NewStepValidator returns a validator using policy; an unrecognised policy
// falls back to IntentToUseRequiresDescription.
func NewStepValidator(policy IntentToUsePolicy) *StepValidator {
	if !policy.IsValid() {
		policy = IntentToUseRequiresDescription
	}
	return &StepValidator{policy: policy}
}

// Policy returns the intent-to-use policy in effect.
func (v *StepValidator) Policy() IntentToUsePolicy { return v.policy }

var defaultValidator = NewStepValidator(IntentToUseRequiresDescription)

// CanAdvance validates step with the default policy.
func CanAdvance(t FilingType, step int, r Record) (StepResult, error) {
	return defaultValidator.CanAdvance(t, step, r)
}

// CheckComplete checks whole-record completeness with the default policy.
func CheckComplete(t FilingType, r Record) (StepResult, error) {
	return defaultValidator.CheckComplete(t, r)
}

// CanAdvance reports whether the fields required by step are present. A step
// outside [1, N], or an Unset type, is an error (FIL_001), distinct from an
// incomplete result. A nil record is treated as empty.
func (v *StepValidator) CanAdvance(t FilingType, step int, r Record) (StepResult, error) {
	if !t.IsValid() || step < 1 || step > t.StepCount() {
		return StepResult{}, errors.Newf(errors.ErrCodeStepOutOfRange, "step %d out of range for %s", step, t.String())
	}
	r, err := recordFor(t, r)
	if err != nil {
		return StepResult{}, err
	}
	switch rec := r.(type) {
	case *PatentRecord:
		return resultOf(patentStep(step, rec)), nil
	case *TrademarkRecord:
		return resultOf(v.trademarkStep(step, rec)), nil
	}
	return StepResult{}, errors.New(errors.ErrCodeInvalidFilingType, "unsupported record variant")
}

// CheckComplete validates every step in order and, for patents, that every
// dependent claim names its parent.
func (v *StepValidator) CheckComplete(t FilingType, r Record) (StepResult, error) {
	if !t.IsValid() {
		return StepResult{}, errors.New(errors.ErrCodeStepOutOfRange, "no steps before a filing type is selected")
	}
	missing := []string{}
	for step := 1; step <= t.StepCount(); step++ {
		res, err := v.CanAdvance(t, step, r)
		if err != nil {
			return StepResult{}, err
		}
		missing = append(missing, res.MissingFields...)
	}
	if pr, ok := r.(*PatentRecord); ok && pr != nil {
		for i, c := range pr.Claims {
			if c.Kind != ClaimDependent {
				continue
			}
			if parent, found := pr.Claims.FindByID(c.ParentID); !found || !parent.IsIndependent() {
				missing = append(missing, fmt.Sprintf("claims[%d].parentId", i))
			}
		}
	}
	return resultOf(missing), nil
}

func recordFor(t FilingType, r Record) (Record, error) {
	if r == nil {
		return NewRecord(t), nil
	}
	switch rec := r.(type) {
	case *PatentRecord:
		if rec == nil {
			return NewRecord(t), nil
		}
	case *TrademarkRecord:
		if rec == nil {
			return NewRecord(t), nil
		}
	}
	if r.FilingType() != t {
		return nil, errors.New(errors.ErrCodeInvalidFilingType, "record does not match filing type").
			WithDetail(r.FilingType().String() + " != " + t.String())
	}
	return r, nil
}

func blank(s string) bool { return strings.TrimSpace(s) == "" }

func patentStep(step int, p *PatentRecord) []string {
	var missing []string
	switch step {
	case 1:
		if blank(p.Title) {
			missing = append(missing, "title")
		}
		if len(p.Inventors()) == 0 {
			missing = append(missing, "inventorNames")
		}
		if blank(p.InventionType) {
			missing = append(missing, "inventionType")
		}
		if blank(p.BriefSummary) {
			missing = append(missing, "briefSummary")
		}
	case 2:
		if blank(p.TechnicalField) {
			missing = append(missing, "technicalField")
		}
		if blank(p.BackgroundArt) {
			missing = append(missing, "backgroundArt")
		}
		if blank(p.DetailedDescription) {
			missing = append(missing, "detailedDescription")
		}
		if blank(p.AdvantageousEffects) {
			missing = append(missing, "advantageousEffects")
		}
	case 3:
		// prior art is optional
	case 4:
		if !p.Claims.HasIndependent() {
			missing = append(missing, "claims")
		}
	}
	return missing
}

func (v *StepValidator) trademarkStep(step int, t *TrademarkRecord) []string {
	var missing []string
	switch step {
	case 1:
		if blank(t.ApplicantName) {
			missing = append(missing, "applicantName")
		}
		if blank(t.MarkText) {
			missing = append(missing, "markText")
		}
		if t.FilingBasis == "" {
			missing = append(missing, "filingBasis")
		}
	case 2:
		if len(t.GoodsServices) == 0 {
			missing = append(missing, "goodsServices")
			break
		}
		for i, g := range t.GoodsServices {
			if blank(g.Description) {
				missing = append(missing, fmt.Sprintf("goodsServices[%d].description", i))
			}
			if !g.HasValidClass() {
				missing = append(missing, fmt.Sprintf("goodsServices[%d].niceClass", i))
			}
		}
	case 3:
		ev := t.Evidence()
		if t.FilingBasis == BasisIntentToUse && v.policy != IntentToUseStrict {
			if v.policy == IntentToUseRequiresDescription && blank(ev.IntendedUseDescription) {
				missing = append(missing, "usageEvidence.intendedUseDescription")
			}
			break
		}
		if blank(ev.FirstUseDate) {
			missing = append(missing, "usageEvidence.firstUseDate")
		}
		if blank(ev.SpecimenDescription) {
			missing = append(missing, "usageEvidence.specimenDescription")
		}
	}
	return missing
}

//Personal.AI order the ending

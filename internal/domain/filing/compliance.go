package filing

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// CheckStatus is the outcome of one requirement check.
type CheckStatus string

const (
	StatusPass CheckStatus = "pass"
	StatusWarn CheckStatus = "warn"
	StatusFail CheckStatus = "fail"
)

// Rule thresholds.
const (
	MinSpecificationChars = 200
	MaxAbstractWords      = 150
	MaxIndiaTitleWords    = 15
)

// RequirementCheck is one jurisdiction-specific test against a record.
type RequirementCheck struct {
	ID          string      `json:"id"`
	Description string      `json:"description"`
	Status      CheckStatus `json:"status"`
	Detail      string      `json:"detail,omitempty"`
}

// JurisdictionReport groups the checks of one jurisdiction.
type JurisdictionReport struct {
	Code   Jurisdiction       `json:"code"`
	Name   string             `json:"name"`
	Checks []RequirementCheck `json:"checks"`
}

// ComplianceReport is the result of evaluating a record against every
// jurisdiction, in registry order.
type ComplianceReport struct {
	FilingType    FilingType           `json:"filingType"`
	Jurisdictions []JurisdictionReport `json:"jurisdictions"`
}

// Check returns the check with id.
func (r ComplianceReport) Check(id string) (RequirementCheck, bool) {
	for _, j := range r.Jurisdictions {
		for _, c := range j.Checks {
			if c.ID == id {
				return c, true
			}
		}
	}
	return RequirementCheck{}, false
}

// Jurisdiction returns the section for code.
func (r ComplianceReport) Jurisdiction(code Jurisdiction) (JurisdictionReport, bool) {
	for _, j := range r.Jurisdictions {
		if j.Code == code {
			return j, true
		}
	}
	return JurisdictionReport{}, false
}

// Counts returns the number of passing, warning and failing checks.
func (r ComplianceReport) Counts() (pass, warn, fail int) {
	for _, j := range r.Jurisdictions {
		for _, c := range j.Checks {
			switch c.Status {
			case StatusPass:
				pass++
			case StatusWarn:
				warn++
			default:
				fail++
			}
		}
	}
	return pass, warn, fail
}

// Total returns the number of checks across all jurisdictions.
func (r ComplianceReport) Total() int {
	p, w, f := r.Counts()
	return p + w + f
}

// Failing returns the ids of failing checks in report order.
func (r ComplianceReport) Failing() []string {
	var out []string
	for _, j := range r.Jurisdictions {
		for _, c := range j.Checks {
			if c.Status == StatusFail {
				out = append(out, c.ID)
			}
		}
	}
	return out
}

// ─────────────────────────────────────────────────────────────────────────────
// Evaluator
// ─────────────────────────────────────────────────────────────────────────────

type patentRule struct {
	jurisdiction Jurisdiction
	id           string
	description  string
	eval         func(*PatentRecord) (CheckStatus, string)
}

type trademarkRule struct {
	jurisdiction Jurisdiction
	id           string
	description  string
	eval         func(*TrademarkRecord) (CheckStatus, string)
}

// ComplianceEvaluator evaluates records against the built-in rule tables.
type ComplianceEvaluator struct {
	registry *InMemoryJurisdictionRegistry
}

// NewComplianceEvaluator returns an evaluator over the default registry.
func NewComplianceEvaluator() *ComplianceEvaluator {
	return &ComplianceEvaluator{registry: NewJurisdictionRegistry()}
}

var defaultEvaluator = NewComplianceEvaluator()

// Evaluate runs the compliance rules for t with the default evaluator.
func Evaluate(t FilingType, r Record) ComplianceReport {
	return defaultEvaluator.Evaluate(t, r)
}

// Evaluate runs every rule of t against r. Absent fields never pass. An
// Unset type, or a record of another type, yields a report with no checks.
func (e *ComplianceEvaluator) Evaluate(t FilingType, r Record) ComplianceReport {
	report := ComplianceReport{FilingType: t, Jurisdictions: []JurisdictionReport{}}
	r, err := recordFor(t, r)
	if err != nil || !t.IsValid() {
		return report
	}
	for _, info := range e.registry.List() {
		jr := JurisdictionReport{Code: info.Code, Name: info.Name, Checks: []RequirementCheck{}}
		switch rec := r.(type) {
		case *PatentRecord:
			for _, rule := range patentRules {
				if rule.jurisdiction != info.Code {
					continue
				}
				status, detail := rule.eval(rec)
				jr.Checks = append(jr.Checks, RequirementCheck{ID: rule.id, Description: rule.description, Status: status, Detail: detail})
			}
		case *TrademarkRecord:
			for _, rule := range trademarkRules {
				if rule.jurisdiction != info.Code {
					continue
				}
				status, detail := rule.eval(rec)
				jr.Checks = append(jr.Checks, RequirementCheck{ID: rule.id, Description: rule.description, Status: status, Detail: detail})
			}
		}
		report.Jurisdictions = append(report.Jurisdictions, jr)
	}
	return report
}

func present(s string) bool { return !blank(s) }

func wordCount(s string) int { return len(strings.Fields(s)) }

func charCount(s string) int { return utf8.RuneCountInString(strings.TrimSpace(s)) }

func passIf(ok bool, otherwise CheckStatus, detail string) (CheckStatus, string) {
	if ok {
		return StatusPass, ""
	}
	return otherwise, detail
}

// ─────────────────────────────────────────────────────────────────────────────
// Patent rules
// ─────────────────────────────────────────────────────────────────────────────

var patentRules = []patentRule{
	{JurisdictionUSPTO, "uspto.patent.claims", "At least one claim is drafted", func(p *PatentRecord) (CheckStatus, string) {
		return passIf(len(p.Claims) > 0, StatusFail, "no claims drafted")
	}},
	{JurisdictionUSPTO, "uspto.patent.specification", "Specification completeness", func(p *PatentRecord) (CheckStatus, string) {
		return passIf(charCount(p.DetailedDescription) > MinSpecificationChars, StatusWarn,
			fmt.Sprintf("detailed description should exceed %d characters", MinSpecificationChars))
	}},
	{JurisdictionUSPTO, "uspto.patent.abstract", "Abstract of 150 words or fewer", func(p *PatentRecord) (CheckStatus, string) {
		n := wordCount(p.Abstract)
		switch {
		case n == 0:
			return StatusFail, "abstract is missing"
		case n > MaxAbstractWords:
			return StatusWarn, fmt.Sprintf("abstract has %d words", n)
		}
		return StatusPass, ""
	}},
	{JurisdictionUSPTO, "uspto.patent.inventors", "Inventors are named", func(p *PatentRecord) (CheckStatus, string) {
		return passIf(len(p.Inventors()) > 0, StatusFail, "no inventor named")
	}},
	{JurisdictionUSPTO, "uspto.patent.declaration", "Inventor oath or declaration", func(p *PatentRecord) (CheckStatus, string) {
		return passIf(p.InventorDeclaration != nil && *p.InventorDeclaration, StatusWarn, "inventor declaration not confirmed")
	}},
	{JurisdictionEUIPO, "euipo.patent.title", "Title of the invention", func(p *PatentRecord) (CheckStatus, string) {
		return passIf(present(p.Title), StatusFail, "title is missing")
	}},
	{JurisdictionEUIPO, "euipo.patent.technical_field", "Technical field is stated", func(p *PatentRecord) (CheckStatus, string) {
		return passIf(present(p.TechnicalField), StatusFail, "technical field is missing")
	}},
	{JurisdictionEUIPO, "euipo.patent.problem_solution", "Problem and solution are disclosed", func(p *PatentRecord) (CheckStatus, string) {
		bg, fx := present(p.BackgroundArt), present(p.AdvantageousEffects)
		switch {
		case bg && fx:
			return StatusPass, ""
		case bg:
			return StatusWarn, "advantageous effects are missing"
		case fx:
			return StatusWarn, "background art is missing"
		}
		return StatusFail, "background art and advantageous effects are missing"
	}},
	{JurisdictionEUIPO, "euipo.patent.independent_claim", "At least one independent claim", func(p *PatentRecord) (CheckStatus, string) {
		return passIf(p.Claims.HasIndependent(), StatusFail, "no independent claim")
	}},
	{JurisdictionIndia, "india.patent.title", "Title of 15 words or fewer", func(p *PatentRecord) (CheckStatus, string) {
		n := wordCount(p.Title)
		switch {
		case n == 0:
			return StatusFail, "title is missing"
		case n > MaxIndiaTitleWords:
			return StatusWarn, fmt.Sprintf("title has %d words", n)
		}
		return StatusPass, ""
	}},
	{JurisdictionIndia, "india.patent.applicant", "Applicant is identified", func(p *PatentRecord) (CheckStatus, string) {
		switch {
		case present(p.ApplicantName):
			return StatusPass, ""
		case len(p.Inventors()) > 0:
			return StatusWarn, "inventors named but no applicant"
		}
		return StatusFail, "applicant is missing"
	}},
	{JurisdictionIndia, "india.patent.specification", "Complete specification", func(p *PatentRecord) (CheckStatus, string) {
		n := charCount(p.DetailedDescription)
		switch {
		case n > MinSpecificationChars:
			return StatusPass, ""
		case n > 0:
			return StatusWarn, "only a provisional-length specification is present"
		}
		return StatusFail, "specification is missing"
	}},
	{JurisdictionIndia, "india.patent.prior_art", "Prior art is disclosed", func(p *PatentRecord) (CheckStatus, string) {
		return passIf(len(p.PriorArt) > 0, StatusWarn, "no prior art disclosed")
	}},
}

// ─────────────────────────────────────────────────────────────────────────────
// Trademark rules
// ─────────────────────────────────────────────────────────────────────────────

func allClassesValid(gs []GoodsService) bool {
	for _, g := range gs {
		if !g.HasValidClass() {
			return false
		}
	}
	return true
}

func classesCheck(t *TrademarkRecord) (CheckStatus, string) {
	switch {
	case len(t.GoodsServices) == 0:
		return StatusFail, "no goods or services listed"
	case allClassesValid(t.GoodsServices):
		return StatusPass, ""
	}
	return StatusWarn, "some items have no valid Nice class"
}

var trademarkRules = []trademarkRule{
	{JurisdictionUSPTO, "uspto.trademark.applicant", "Applicant is identified", func(t *TrademarkRecord) (CheckStatus, string) {
		return passIf(present(t.ApplicantName), StatusFail, "applicant is missing")
	}},
	{JurisdictionUSPTO, "uspto.trademark.mark", "Mark is specified", func(t *TrademarkRecord) (CheckStatus, string) {
		return passIf(present(t.MarkText), StatusFail, "mark text is missing")
	}},
	{JurisdictionUSPTO, "uspto.trademark.basis", "Filing basis is supported", func(t *TrademarkRecord) (CheckStatus, string) {
		ev := t.Evidence()
		switch t.FilingBasis {
		case BasisUseInCommerce:
			date, spec := present(ev.FirstUseDate), ev.HasSpecimen()
			switch {
			case date && spec:
				return StatusPass, ""
			case date:
				return StatusWarn, "specimen is missing"
			case spec:
				return StatusWarn, "first use date is missing"
			}
			return StatusFail, "first use date and specimen are missing"
		case BasisIntentToUse:
			return passIf(present(ev.IntendedUseDescription), StatusWarn, "intended use is not described")
		case BasisForeignRegistration:
			return passIf(present(t.ForeignRegistrationNumber), StatusFail, "foreign registration number is missing")
		}
		return StatusFail, "filing basis is missing"
	}},
	{JurisdictionUSPTO, "uspto.trademark.goods_services", "Goods and services are identified", func(t *TrademarkRecord) (CheckStatus, string) {
		if len(t.GoodsServices) == 0 {
			return StatusFail, "no goods or services listed"
		}
		incomplete := 0
		for _, g := range t.GoodsServices {
			if !g.IsComplete() {
				incomplete++
			}
		}
		return passIf(incomplete == 0, StatusWarn, fmt.Sprintf("%d item(s) incomplete", incomplete))
	}},
	{JurisdictionUSPTO, "uspto.trademark.declaration", "Declaration signed", func(t *TrademarkRecord) (CheckStatus, string) {
		ok := t.DeclarationOfTruth != nil && *t.DeclarationOfTruth &&
			t.DeclarationOfPenalty != nil && *t.DeclarationOfPenalty
		return passIf(ok, StatusFail, "declarations are not confirmed")
	}},
	{JurisdictionEUIPO, "euipo.trademark.nice_classes", "Nice classifications", classesCheck},
	{JurisdictionEUIPO, "euipo.trademark.owner", "Owner name and address", func(t *TrademarkRecord) (CheckStatus, string) {
		name, addr := present(t.OwnerName), present(t.OwnerAddress)
		switch {
		case name && addr:
			return StatusPass, ""
		case name:
			return StatusWarn, "owner address is missing"
		case addr:
			return StatusWarn, "owner name is missing"
		}
		return StatusFail, "owner is missing"
	}},
	{JurisdictionEUIPO, "euipo.trademark.mark_type", "Mark type is recognised", func(t *TrademarkRecord) (CheckStatus, string) {
		return passIf(IsKnownMarkType(t.MarkType), StatusWarn, "mark type not recognised")
	}},
	{JurisdictionEUIPO, "euipo.trademark.class_fee", "Class fees", func(t *TrademarkRecord) (CheckStatus, string) {
		n := len(t.NiceClasses())
		switch {
		case n == 0:
			return StatusFail, "no valid class"
		case n > 1:
			return StatusWarn, fmt.Sprintf("%d classes; each class beyond the first incurs a fee", n)
		}
		return StatusPass, ""
	}},
	{JurisdictionIndia, "india.trademark.applicant", "Applicant and applicant type", func(t *TrademarkRecord) (CheckStatus, string) {
		switch {
		case present(t.ApplicantName) && present(t.OwnerType):
			return StatusPass, ""
		case present(t.ApplicantName):
			return StatusWarn, "applicant type is missing"
		}
		return StatusFail, "applicant is missing"
	}},
	{JurisdictionIndia, "india.trademark.classes", "Class of goods or services", classesCheck},
	{JurisdictionIndia, "india.trademark.user_date", "User date or proposed to be used", func(t *TrademarkRecord) (CheckStatus, string) {
		ok := t.FilingBasis == BasisIntentToUse || present(t.Evidence().FirstUseDate)
		return passIf(ok, StatusWarn, "no user date; file as proposed to be used or add first use date")
	}},
	{JurisdictionIndia, "india.trademark.address_for_service", "Address for service in India", func(t *TrademarkRecord) (CheckStatus, string) {
		return passIf(present(t.OwnerAddress), StatusWarn, "address for service is missing")
	}},
}

//Personal.AI order the ending

// Package filing holds the filing-assistant domain: the typed filing record
// for patents and trademarks, the upload set, the step validator, the
// jurisdiction compliance evaluator and the readiness scoring engine.
//
// The package performs no I/O and starts no goroutines. The stateful
// orchestration lives in internal/application/session.
package filing

import (
	"strings"

	"github.com/turtacn/IPFiling-Assistant/pkg/errors"
)

// FilingType selects the record shape, step sequence and compliance rules.
type FilingType string

const (
	FilingTypeUnset     FilingType = ""
	FilingTypePatent    FilingType = "patent"
	FilingTypeTrademark FilingType = "trademark"
)

// String returns the wire value, "unset" for the zero value.
func (t FilingType) String() string {
	if t == FilingTypeUnset {
		return "unset"
	}
	return string(t)
}

// IsValid reports whether t is Patent or Trademark.
func (t FilingType) IsValid() bool {
	return t == FilingTypePatent || t == FilingTypeTrademark
}

// StepCount returns N, the number of wizard steps for t (0 when Unset).
func (t FilingType) StepCount() int {
	return len(t.StepNames())
}

// StepNames returns the ordered wizard step titles for t.
func (t FilingType) StepNames() []string {
	switch t {
	case FilingTypePatent:
		return []string{"Basic Info", "Detailed Description", "Prior Art", "Claims"}
	case FilingTypeTrademark:
		return []string{"Basic Info", "Goods & Services", "Usage Evidence"}
	default:
		return nil
	}
}

// ParseFilingType accepts "patent" or "trademark" in any case.
func ParseFilingType(s string) (FilingType, error) {
	switch FilingType(strings.ToLower(strings.TrimSpace(s))) {
	case FilingTypePatent:
		return FilingTypePatent, nil
	case FilingTypeTrademark:
		return FilingTypeTrademark, nil
	}
	return FilingTypeUnset, errors.New(errors.ErrCodeInvalidFilingType, "filing type must be patent or trademark").
		WithDetail(s)
}

// FilingBasis is the legal basis of a trademark application.
type FilingBasis string

const (
	BasisUseInCommerce       FilingBasis = "use_in_commerce"
	BasisIntentToUse         FilingBasis = "intent_to_use"
	BasisForeignRegistration FilingBasis = "foreign_registration"
)

// IsValid reports whether b is one of the three recognised bases.
func (b FilingBasis) IsValid() bool {
	switch b {
	case BasisUseInCommerce, BasisIntentToUse, BasisForeignRegistration:
		return true
	}
	return false
}

// UnmarshalJSON rejects unrecognised bases; the empty string means unset.
func (b *FilingBasis) UnmarshalJSON(data []byte) error {
	var s string
	if err := unmarshalString(data, &s); err != nil {
		return err
	}
	v := FilingBasis(s)
	if v != "" && !v.IsValid() {
		return fieldValueError("filingBasis", s)
	}
	*b = v
	return nil
}

//Personal.AI order the ending

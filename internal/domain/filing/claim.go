package filing

import (
	"fmt"
	"strings"

	"github.com/turtacn/IPFiling-Assistant/pkg/errors"
)

// ClaimKind distinguishes independent claims from claims that refine another.
type ClaimKind string

const (
	ClaimIndependent ClaimKind = "independent"
	ClaimDependent   ClaimKind = "dependent"
)

// IsValid reports whether k is a recognised claim kind.
func (k ClaimKind) IsValid() bool {
	return k == ClaimIndependent || k == ClaimDependent
}

// UnmarshalJSON rejects unknown kinds.
func (k *ClaimKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := unmarshalString(data, &s); err != nil {
		return err
	}
	v := ClaimKind(strings.ToLower(s))
	if !v.IsValid() {
		return fieldValueError("claims.kind", s)
	}
	*k = v
	return nil
}

// Claim is one patent claim. ParentID is only meaningful for dependent
// claims; an empty ParentID on a dependent claim means the user has not yet
// chosen the parent, which is a legal data-entry state until finalisation.
type Claim struct {
	ID       string    `json:"id"`
	Text     string    `json:"text,omitempty"`
	Kind     ClaimKind `json:"kind"`
	ParentID string    `json:"parentId,omitempty"`
}

// IsIndependent reports whether c is an independent claim.
func (c Claim) IsIndependent() bool { return c.Kind == ClaimIndependent }

// ClaimSet is the ordered claim list of a patent record.
type ClaimSet []Claim

// IndependentClaims returns the independent claims in order.
func (cs ClaimSet) IndependentClaims() []Claim {
	var out []Claim
	for _, c := range cs {
		if c.IsIndependent() {
			out = append(out, c)
		}
	}
	return out
}

// HasIndependent reports whether at least one claim is independent.
func (cs ClaimSet) HasIndependent() bool {
	for _, c := range cs {
		if c.IsIndependent() {
			return true
		}
	}
	return false
}

// DependentClaimsOf returns the dependent claims whose parent is id.
func (cs ClaimSet) DependentClaimsOf(id string) []Claim {
	var out []Claim
	for _, c := range cs {
		if c.Kind == ClaimDependent && c.ParentID == id {
			out = append(out, c)
		}
	}
	return out
}

// FindByID returns the claim with the given id.
func (cs ClaimSet) FindByID(id string) (Claim, bool) {
	for _, c := range cs {
		if c.ID == id {
			return c, true
		}
	}
	return Claim{}, false
}

// UnresolvedDependents returns dependent claims that have no parent yet.
func (cs ClaimSet) UnresolvedDependents() []Claim {
	var out []Claim
	for _, c := range cs {
		if c.Kind == ClaimDependent && c.ParentID == "" {
			out = append(out, c)
		}
	}
	return out
}

// ClaimViolation describes one broken claim invariant.
type ClaimViolation struct {
	Index  int    `json:"index"`
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

func (v ClaimViolation) String() string {
	return fmt.Sprintf("claims[%d] %q: %s", v.Index, v.ID, v.Reason)
}

// Violations lists every broken structural invariant: blank or duplicate ids,
// missing kinds, and dependent claims whose parent does not name an existing independent
// claim. Unresolved (empty) parents are not violations.
func (cs ClaimSet) Violations() []ClaimViolation {
	var out []ClaimViolation
	seen := make(map[string]int, len(cs))
	for i, c := range cs {
		if strings.TrimSpace(c.ID) == "" {
			out = append(out, ClaimViolation{Index: i, Reason: "id is required"})
			continue
		}
		if !c.Kind.IsValid() {
			out = append(out, ClaimViolation{Index: i, ID: c.ID, Reason: "kind must be independent or dependent"})
		}
		if _, dup := seen[c.ID]; dup {
			out = append(out, ClaimViolation{Index: i, ID: c.ID, Reason: "duplicate id"})
			continue
		}
		seen[c.ID] = i
	}
	for i, c := range cs {
		if c.Kind != ClaimDependent || c.ParentID == "" {
			continue
		}
		if c.ParentID == c.ID {
			out = append(out, ClaimViolation{Index: i, ID: c.ID, Reason: "claim cannot depend on itself"})
			continue
		}
		parent, ok := cs.FindByID(c.ParentID)
		switch {
		case !ok:
			out = append(out, ClaimViolation{Index: i, ID: c.ID, Reason: "parent " + c.ParentID + " does not exist"})
		case !parent.IsIndependent():
			out = append(out, ClaimViolation{Index: i, ID: c.ID, Reason: "parent " + c.ParentID + " is not an independent claim"})
		}
	}
	return out
}

// Validate returns a FIL_012 error listing every violation, or nil.
func (cs ClaimSet) Validate() error {
	v := cs.Violations()
	if len(v) == 0 {
		return nil
	}
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = x.String()
	}
	return errors.New(errors.ErrCodeClaimInvariant, "claim structure invalid").WithDetail(strings.Join(parts, "; "))
}

//Personal.AI order the ending

package filing

import (
	"strings"

	"github.com/turtacn/IPFiling-Assistant/pkg/errors"
)

// Jurisdiction identifies an IP office whose filing requirements are checked.
type Jurisdiction string

const (
	JurisdictionUSPTO Jurisdiction = "uspto"
	JurisdictionEUIPO Jurisdiction = "euipo"
	JurisdictionIndia Jurisdiction = "india"
)

// JurisdictionInfo holds display metadata about a jurisdiction.
type JurisdictionInfo struct {
	Code     Jurisdiction `json:"code"`
	Name     string       `json:"name"`
	Office   string       `json:"office"`
	Currency string       `json:"currency"`
}

// JurisdictionRegistry resolves jurisdiction codes and aliases.
type JurisdictionRegistry interface {
	Get(code string) (*JurisdictionInfo, error)
	Normalize(code string) (Jurisdiction, error)
	List() []*JurisdictionInfo
}

// InMemoryJurisdictionRegistry is the built-in registry of the three offices.
type InMemoryJurisdictionRegistry struct {
	order         []Jurisdiction
	jurisdictions map[Jurisdiction]*JurisdictionInfo
	aliases       map[string]Jurisdiction
}

// NewJurisdictionRegistry returns the registry in evaluation order.
func NewJurisdictionRegistry() *InMemoryJurisdictionRegistry {
	r := &InMemoryJurisdictionRegistry{
		jurisdictions: make(map[Jurisdiction]*JurisdictionInfo),
		aliases:       make(map[string]Jurisdiction),
	}
	r.init()
	return r
}

func (r *InMemoryJurisdictionRegistry) init() {
	r.add(JurisdictionUSPTO, "United States", "United States Patent and Trademark Office", "USD")
	r.addAlias("us", JurisdictionUSPTO)
	r.addAlias("usa", JurisdictionUSPTO)

	r.add(JurisdictionEUIPO, "European Union", "European Union Intellectual Property Office", "EUR")
	r.addAlias("eu", JurisdictionEUIPO)

	r.add(JurisdictionIndia, "India", "Office of the Controller General of Patents, Designs and Trade Marks", "INR")
	r.addAlias("in", JurisdictionIndia)
	r.addAlias("ipindia", JurisdictionIndia)
}

func (r *InMemoryJurisdictionRegistry) add(code Jurisdiction, name, office, currency string) {
	r.order = append(r.order, code)
	r.jurisdictions[code] = &JurisdictionInfo{Code: code, Name: name, Office: office, Currency: currency}
}

func (r *InMemoryJurisdictionRegistry) addAlias(alias string, target Jurisdiction) {
	r.aliases[strings.ToLower(alias)] = target
}

// Get returns the metadata for a code or alias.
func (r *InMemoryJurisdictionRegistry) Get(code string) (*JurisdictionInfo, error) {
	j, err := r.Normalize(code)
	if err != nil {
		return nil, err
	}
	info := *r.jurisdictions[j]
	return &info, nil
}

// Normalize maps a code or alias, in any case, to its Jurisdiction.
func (r *InMemoryJurisdictionRegistry) Normalize(code string) (Jurisdiction, error) {
	lower := strings.ToLower(strings.TrimSpace(code))
	if _, ok := r.jurisdictions[Jurisdiction(lower)]; ok {
		return Jurisdiction(lower), nil
	}
	if j, ok := r.aliases[lower]; ok {
		return j, nil
	}
	return "", errors.NotFound("jurisdiction not found").WithDetail(code)
}

// List returns all jurisdictions in evaluation order.
func (r *InMemoryJurisdictionRegistry) List() []*JurisdictionInfo {
	list := make([]*JurisdictionInfo, 0, len(r.order))
	for _, code := range r.order {
		info := *r.jurisdictions[code]
		list = append(list, &info)
	}
	return list
}

// Codes returns the jurisdiction codes in evaluation order.
func (r *InMemoryJurisdictionRegistry) Codes() []Jurisdiction {
	out := make([]Jurisdiction, len(r.order))
	copy(out, r.order)
	return out
}

//Personal.AI order the ending

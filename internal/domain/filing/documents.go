package filing

import (
	"fmt"
	"strings"
	"time"

	"github.com/turtacn/IPFiling-Assistant/pkg/errors"
)

// DocumentKind names a generated filing document.
type DocumentKind string

const (
	DocSpecification       DocumentKind = "specification"
	DocClaims              DocumentKind = "claims"
	DocAbstract            DocumentKind = "abstract"
	DocInventorDeclaration DocumentKind = "inventor_declaration"

	DocApplication       DocumentKind = "application"
	DocGoodsServices     DocumentKind = "goods_services"
	DocSpecimenStatement DocumentKind = "specimen_statement"
	DocDeclaration       DocumentKind = "declaration"
)

// RequiredDocuments returns the documents every application of type t needs.
func RequiredDocuments(t FilingType) []DocumentKind {
	switch t {
	case FilingTypePatent:
		return []DocumentKind{DocSpecification, DocClaims, DocAbstract, DocInventorDeclaration}
	case FilingTypeTrademark:
		return []DocumentKind{DocApplication, DocGoodsServices, DocSpecimenStatement, DocDeclaration}
	default:
		return nil
	}
}

// ParseDocumentKind validates s against the documents of t (FIL_013).
func ParseDocumentKind(t FilingType, s string) (DocumentKind, error) {
	k := DocumentKind(strings.ToLower(strings.TrimSpace(s)))
	for _, d := range RequiredDocuments(t) {
		if d == k {
			return k, nil
		}
	}
	return "", errors.New(errors.ErrCodeUnknownDocumentKind, "unknown document kind for "+t.String()).WithDetail(s)
}

// GeneratedDocument records a rendered document. The bytes live in the blob
// store; only the reference is kept.
type GeneratedDocument struct {
	Kind        DocumentKind `json:"kind"`
	MediaType   string       `json:"mediaType"`
	Size        int64        `json:"size"`
	BlobRef     string       `json:"blobRef,omitempty"`
	GeneratedAt time.Time    `json:"generatedAt"`
}

// CountGenerated returns how many distinct required documents of t are in
// docs.
func CountGenerated(t FilingType, docs map[DocumentKind]GeneratedDocument) int {
	n := 0
	for _, k := range RequiredDocuments(t) {
		if _, ok := docs[k]; ok {
			n++
		}
	}
	return n
}

// BuildDocument renders the markdown content of kind from r. The content is
// handed to a document renderer and never read back into the record.
func BuildDocument(kind DocumentKind, r Record) (string, error) {
	if r == nil {
		return "", errors.New(errors.ErrCodeInvalidFilingType, "no record to build a document from")
	}
	if _, err := ParseDocumentKind(r.FilingType(), string(kind)); err != nil {
		return "", err
	}
	var b strings.Builder
	switch rec := r.(type) {
	case *PatentRecord:
		buildPatentDocument(&b, kind, rec)
	case *TrademarkRecord:
		buildTrademarkDocument(&b, kind, rec)
	}
	return b.String(), nil
}

func orPlaceholder(s string) string {
	if blank(s) {
		return "_[not provided]_"
	}
	return strings.TrimSpace(s)
}

func confirmed(b *bool) string {
	if b != nil && *b {
		return "[x]"
	}
	return "[ ]"
}

func section(b *strings.Builder, title, body string) {
	fmt.Fprintf(b, "## %s\n\n%s\n\n", title, orPlaceholder(body))
}

func buildPatentDocument(b *strings.Builder, kind DocumentKind, p *PatentRecord) {
	switch kind {
	case DocSpecification:
		fmt.Fprintf(b, "# %s\n\n", orPlaceholder(p.Title))
		section(b, "Technical Field", p.TechnicalField)
		section(b, "Background Art", p.BackgroundArt)
		section(b, "Summary of the Invention", p.BriefSummary)
		section(b, "Brief Description of the Drawings", p.DrawingsDescription)
		section(b, "Detailed Description", p.DetailedDescription)
		section(b, "Advantageous Effects", p.AdvantageousEffects)
		if len(p.PriorArt) > 0 {
			b.WriteString("## Cited Prior Art\n\n")
			for _, ref := range p.PriorArt {
				fmt.Fprintf(b, "- %s", ref.Reference)
				if ref.Relevance != "" {
					fmt.Fprintf(b, ": %s", ref.Relevance)
				}
				b.WriteString("\n")
			}
			b.WriteString("\n")
		}
	case DocClaims:
		b.WriteString("# Claims\n\n")
		if len(p.Claims) == 0 {
			b.WriteString(orPlaceholder("") + "\n")
		}
		for i, c := range p.Claims {
			text := orPlaceholder(c.Text)
			if c.Kind == ClaimDependent && c.ParentID != "" {
				if pi := indexOfClaim(p.Claims, c.ParentID); pi >= 0 {
					text = fmt.Sprintf("The invention of claim %d, %s", pi+1, text)
				}
			}
			fmt.Fprintf(b, "%d. %s\n", i+1, text)
		}
	case DocAbstract:
		fmt.Fprintf(b, "# Abstract\n\n%s\n", orPlaceholder(p.Abstract))
	case DocInventorDeclaration:
		b.WriteString("# Inventor Declaration\n\n")
		fmt.Fprintf(b, "Title of invention: %s\n\n", orPlaceholder(p.Title))
		for _, n := range p.Inventors() {
			fmt.Fprintf(b, "- %s\n", n)
		}
		fmt.Fprintf(b, "\n%s I believe I am the original inventor of the claimed invention.\n", confirmed(p.InventorDeclaration))
	}
}

func indexOfClaim(cs ClaimSet, id string) int {
	for i, c := range cs {
		if c.ID == id {
			return i
		}
	}
	return -1
}

func buildTrademarkDocument(b *strings.Builder, kind DocumentKind, t *TrademarkRecord) {
	switch kind {
	case DocApplication:
		fmt.Fprintf(b, "# Trademark Application: %s\n\n", orPlaceholder(t.MarkText))
		fmt.Fprintf(b, "- Applicant: %s\n", orPlaceholder(t.ApplicantName))
		fmt.Fprintf(b, "- Mark type: %s\n", orPlaceholder(t.MarkType))
		fmt.Fprintf(b, "- Owner: %s (%s)\n", orPlaceholder(t.OwnerName), orPlaceholder(t.OwnerType))
		fmt.Fprintf(b, "- Address: %s\n", orPlaceholder(t.OwnerAddress))
		fmt.Fprintf(b, "- Filing basis: %s\n", orPlaceholder(string(t.FilingBasis)))
		if t.FilingBasis == BasisForeignRegistration {
			fmt.Fprintf(b, "- Foreign registration: %s %s\n", orPlaceholder(t.ForeignRegistrationCountry), orPlaceholder(t.ForeignRegistrationNumber))
		}
	case DocGoodsServices:
		b.WriteString("# Goods and Services\n\n| Class | Description |\n|---|---|\n")
		for _, g := range t.GoodsServices {
			class := "?"
			if g.HasValidClass() {
				class = fmt.Sprintf("%d", g.NiceClass)
			}
			fmt.Fprintf(b, "| %s | %s |\n", class, orPlaceholder(g.Description))
		}
	case DocSpecimenStatement:
		ev := t.Evidence()
		b.WriteString("# Specimen Statement\n\n")
		if t.FilingBasis == BasisIntentToUse {
			fmt.Fprintf(b, "The applicant has a bona fide intention to use the mark in commerce.\n\n%s\n", orPlaceholder(ev.IntendedUseDescription))
			return
		}
		fmt.Fprintf(b, "- First use: %s\n", orPlaceholder(ev.FirstUseDate))
		fmt.Fprintf(b, "- First use in commerce: %s\n", orPlaceholder(ev.FirstUseInCommerceDate))
		fmt.Fprintf(b, "- Specimen: %s\n", orPlaceholder(ev.SpecimenDescription))
		if ev.SpecimenReference != "" {
			fmt.Fprintf(b, "- Specimen reference: %s\n", ev.SpecimenReference)
		}
	case DocDeclaration:
		b.WriteString("# Declaration\n\n")
		fmt.Fprintf(b, "%s The facts set forth in this application are true.\n", confirmed(t.DeclarationOfTruth))
		fmt.Fprintf(b, "%s Willful false statements are punishable by fine or imprisonment.\n", confirmed(t.DeclarationOfPenalty))
		fmt.Fprintf(b, "\nSigned: %s\n", orPlaceholder(t.ApplicantName))
	}
}

//Personal.AI order the ending

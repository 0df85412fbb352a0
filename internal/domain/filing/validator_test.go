package filing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/IPFiling-Assistant/pkg/errors"
)

func completePatent() *PatentRecord {
	return &PatentRecord{
		Title:               "Self-cleaning widget",
		InventorNames:       NameList{"Ada Lovelace"},
		InventionType:       "utility",
		BriefSummary:        "A widget that cleans itself.",
		TechnicalField:      "Household appliances",
		BackgroundArt:       "Widgets get dirty.",
		DetailedDescription: "The widget has a brush.",
		AdvantageousEffects: "Less cleaning.",
		Claims: ClaimSet{
			{ID: "c1", Text: "A widget comprising a brush.", Kind: ClaimIndependent},
			{ID: "c2", Text: "wherein the brush rotates.", Kind: ClaimDependent, ParentID: "c1"},
		},
	}
}

func completeTrademark(basis FilingBasis) *TrademarkRecord {
	return &TrademarkRecord{
		ApplicantName: "Acme Ltd",
		MarkText:      "ACME",
		FilingBasis:   basis,
		GoodsServices: []GoodsService{{Description: "Footwear", NiceClass: 25}},
		UsageEvidence: &UsageEvidence{FirstUseDate: "2023-04-01", SpecimenDescription: "Label on shoe box"},
	}
}

func TestCanAdvance_EmptyPatentStep1(t *testing.T) {
	res, err := CanAdvance(FilingTypePatent, 1, &PatentRecord{})
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, []string{"title", "inventorNames", "inventionType", "briefSummary"}, res.MissingFields)
}

func TestCanAdvance_NilRecordIsEmpty(t *testing.T) {
	res, err := CanAdvance(FilingTypePatent, 1, nil)
	require.NoError(t, err)
	assert.Len(t, res.MissingFields, 4)
}

func TestCanAdvance_BlankInventorsMissing(t *testing.T) {
	p := completePatent()
	p.InventorNames = NameList{" ", ""}
	res, err := CanAdvance(FilingTypePatent, 1, p)
	require.NoError(t, err)
	assert.Equal(t, []string{"inventorNames"}, res.MissingFields)
}

func TestCanAdvance_PatentSteps(t *testing.T) {
	p := completePatent()
	for step := 1; step <= 4; step++ {
		res, err := CanAdvance(FilingTypePatent, step, p)
		require.NoError(t, err)
		assert.True(t, res.Valid, "step %d", step)
		assert.NotNil(t, res.MissingFields)
		assert.Empty(t, res.MissingFields)
	}

	res, err := CanAdvance(FilingTypePatent, 3, &PatentRecord{})
	require.NoError(t, err)
	assert.True(t, res.Valid)

	res, err = CanAdvance(FilingTypePatent, 4, &PatentRecord{Claims: ClaimSet{{ID: "d1", Kind: ClaimDependent}}})
	require.NoError(t, err)
	assert.Equal(t, []string{"claims"}, res.MissingFields)
}

func TestCanAdvance_StepOutOfRange(t *testing.T) {
	cases := []struct {
		name string
		ft   FilingType
		step int
	}{
		{"zero", FilingTypePatent, 0},
		{"past patent", FilingTypePatent, 5},
		{"past trademark", FilingTypeTrademark, 4},
		{"unset", FilingTypeUnset, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := CanAdvance(tc.ft, tc.step, nil)
			assert.True(t, errors.IsCode(err, errors.ErrCodeStepOutOfRange))
		})
	}
}

func TestCanAdvance_TypeMismatch(t *testing.T) {
	_, err := CanAdvance(FilingTypeTrademark, 1, &PatentRecord{})
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidFilingType))
}

func TestCanAdvance_EmptyGoodsServices(t *testing.T) {
	tm := completeTrademark(BasisUseInCommerce)
	tm.GoodsServices = []GoodsService{}
	res, err := CanAdvance(FilingTypeTrademark, 2, tm)
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, []string{"goodsServices"}, res.MissingFields)
}

func TestCanAdvance_IncompleteGoodsServices(t *testing.T) {
	tm := completeTrademark(BasisUseInCommerce)
	tm.GoodsServices = []GoodsService{
		{Description: "Shoes", NiceClass: 25},
		{Description: "", NiceClass: 46},
	}
	res, err := CanAdvance(FilingTypeTrademark, 2, tm)
	require.NoError(t, err)
	assert.Equal(t, []string{"goodsServices[1].description", "goodsServices[1].niceClass"}, res.MissingFields)
}

func TestCanAdvance_UsageEvidencePolicies(t *testing.T) {
	itu := completeTrademark(BasisIntentToUse)
	itu.UsageEvidence = nil

	res, err := NewStepValidator(IntentToUseRequiresDescription).CanAdvance(FilingTypeTrademark, 3, itu)
	require.NoError(t, err)
	assert.Equal(t, []string{"usageEvidence.intendedUseDescription"}, res.MissingFields)

	res, err = NewStepValidator(IntentToUseWaived).CanAdvance(FilingTypeTrademark, 3, itu)
	require.NoError(t, err)
	assert.True(t, res.Valid)

	res, err = NewStepValidator(IntentToUseStrict).CanAdvance(FilingTypeTrademark, 3, itu)
	require.NoError(t, err)
	assert.Equal(t, []string{"usageEvidence.firstUseDate", "usageEvidence.specimenDescription"}, res.MissingFields)

	itu.UsageEvidence = &UsageEvidence{IntendedUseDescription: "Launch in 2027"}
	res, err = CanAdvance(FilingTypeTrademark, 3, itu)
	require.NoError(t, err)
	assert.True(t, res.Valid)

	uic := completeTrademark(BasisUseInCommerce)
	uic.UsageEvidence.SpecimenDescription = ""
	res, err = NewStepValidator(IntentToUseWaived).CanAdvance(FilingTypeTrademark, 3, uic)
	require.NoError(t, err)
	assert.Equal(t, []string{"usageEvidence.specimenDescription"}, res.MissingFields)
}

func TestNewStepValidator_UnknownPolicy(t *testing.T) {
	assert.Equal(t, IntentToUseRequiresDescription, NewStepValidator("lenient").Policy())
}

func TestCheckComplete(t *testing.T) {
	res, err := CheckComplete(FilingTypePatent, completePatent())
	require.NoError(t, err)
	assert.True(t, res.Valid)

	p := completePatent()
	p.Claims = append(p.Claims, Claim{ID: "c3", Kind: ClaimDependent})
	res, err = CheckComplete(FilingTypePatent, p)
	require.NoError(t, err)
	assert.Equal(t, []string{"claims[2].parentId"}, res.MissingFields)

	res, err = CheckComplete(FilingTypeTrademark, completeTrademark(BasisUseInCommerce))
	require.NoError(t, err)
	assert.True(t, res.Valid)

	res, err = CheckComplete(FilingTypeTrademark, &TrademarkRecord{})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"applicantName", "markText", "filingBasis",
		"goodsServices",
		"usageEvidence.firstUseDate", "usageEvidence.specimenDescription",
	}, res.MissingFields)

	_, err = CheckComplete(FilingTypeUnset, nil)
	assert.True(t, errors.IsCode(err, errors.ErrCodeStepOutOfRange))
}

func TestCheckComplete_ZeroIndependentClaimsNeverComplete(t *testing.T) {
	p := completePatent()
	p.Claims = ClaimSet{
		{ID: "d1", Kind: ClaimDependent},
		{ID: "d2", Kind: ClaimDependent},
		{ID: "d3", Kind: ClaimDependent},
	}
	res, err := CheckComplete(FilingTypePatent, p)
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Contains(t, res.MissingFields, "claims")
}

//Personal.AI order the ending

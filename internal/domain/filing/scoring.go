package filing

// Score bounds and upload heuristics.
const (
	MaxScore            = 100
	UploadBonusPoints   = 10
	UploadPenaltyPoints = 5
)

// Score converts a compliance report into a 0-100 readiness score. A pass
// weighs 1, a warning one half and a failure 0; the result is rounded half
// up. A report without checks scores 0.
func Score(r ComplianceReport) int {
	pass, warn, fail := r.Counts()
	den := pass + warn + fail
	if den == 0 {
		return 0
	}
	// Weights are doubled so the half-weight stays integral.
	num2 := 2*pass + warn
	return clampScore((100*num2 + den) / (2 * den))
}

// DocumentScore is round(100 * generated / required), 0 when nothing is
// required.
func DocumentScore(generated, required int) int {
	if required <= 0 {
		return 0
	}
	if generated < 0 {
		generated = 0
	}
	if generated > required {
		generated = required
	}
	return clampScore((200*generated + required) / (2 * required))
}

// Combine averages the two most recent scores, rounding half up. When only
// one is present it is used directly; with neither the result is 0.
func Combine(a, b *int) int {
	switch {
	case a != nil && b != nil:
		return clampScore((clampScore(*a) + clampScore(*b) + 1) / 2)
	case a != nil:
		return clampScore(*a)
	case b != nil:
		return clampScore(*b)
	}
	return 0
}

// UploadBonus is the displayed-score adjustment after an upload is added.
func UploadBonus(score int) int {
	return clampScore(score + UploadBonusPoints)
}

// UploadPenalty is the displayed-score adjustment after an upload is removed.
func UploadPenalty(score int) int {
	return clampScore(score - UploadPenaltyPoints)
}

func clampScore(s int) int {
	switch {
	case s < 0:
		return 0
	case s > MaxScore:
		return MaxScore
	}
	return s
}

//Personal.AI order the ending

package service

import (
	"fmt"

	"github.com/biomarker-advisor/internal/domain"
)

// condition is a test on a single range classification.
type condition func(domain.RangeClassification) bool

var (
	abnormalOrCritical condition = domain.RangeClassification.IsAbnormalOrCritical
	critical           condition = domain.RangeClassification.IsCritical
	high               condition = domain.RangeClassification.IsHigh
	low                condition = domain.RangeClassification.IsLow
	elevated           condition = func(r domain.RangeClassification) bool { return r == domain.ELEVATED }
)

// allOf holds when every listed biomarker is present and satisfies cond.
// Lookups are by id, so a duplicate cannot stand in for a missing biomarker.
func allOf(cond condition, required ...domain.BiomarkerID) domain.Predicate {
	return func(ms []domain.Measurement) bool {
		for _, id := range required {
			if !biomarkerIs(id, cond)(ms) {
				return false
			}
		}
		return true
	}
}

// anyOf holds when at least one measurement satisfies cond.
func anyOf(cond condition) domain.Predicate {
	return countAtLeast(cond, 1)
}

// countAtLeast holds when at least n measurements satisfy cond.
func countAtLeast(cond condition, n int) domain.Predicate {
	return func(ms []domain.Measurement) bool {
		count := 0
		for _, m := range ms {
			if m.Is(cond) {
				count++
			}
		}
		return count >= n
	}
}

// biomarkerIs looks id up in the measurements; a missing biomarker or an
// absent classification is false.
func biomarkerIs(id domain.BiomarkerID, cond condition) domain.Predicate {
	return func(ms []domain.Measurement) bool {
		m, ok := domain.FindMeasurement(ms, id)
		return ok && m.Is(cond)
	}
}

func either(ps ...domain.Predicate) domain.Predicate {
	return func(ms []domain.Measurement) bool {
		for _, p := range ps {
			if p(ms) {
				return true
			}
		}
		return false
	}
}

func both(ps ...domain.Predicate) domain.Predicate {
	return func(ms []domain.Measurement) bool {
		for _, p := range ps {
			if !p(ms) {
				return false
			}
		}
		return true
	}
}

// criticalOrAbnormalCount is the most common shape in the table.
func criticalOrAbnormalCount(n int) domain.Predicate {
	return either(anyOf(critical), countAtLeast(abnormalOrCritical, n))
}

type ruleSpec struct {
	id         int
	name       string
	biomarkers []domain.BiomarkerID
	predicate  domain.Predicate
	importance int
	message    string
}

func ids(b ...domain.BiomarkerID) []domain.BiomarkerID { return b }

var (
	liverEnzymes  = ids(domain.ALT, domain.AST)
	glycemic      = ids(domain.Glucose, domain.HbA1c)
	calciumVitD   = ids(domain.Calcium, domain.VitaminD)
	micronutrient = ids(domain.VitaminD, domain.Magnesium, domain.Zinc)
	thyroid       = ids(domain.TSH, domain.T4)
	clotting      = ids(domain.PT, domain.APTT)
	cholestasis   = ids(domain.BilirubinTotal, domain.BilirubinDirect, domain.BilirubinIndirect, domain.GGT)
	proteins      = ids(domain.Albumin, domain.TotalProtein)
	renal         = ids(domain.Creatinine, domain.EGFR)
)

var standardRuleSpecs = []ruleSpec{
	{1, "liver-enzymes", liverEnzymes, allOf(abnormalOrCritical, liverEnzymes...), 3,
		"ALT and AST are both outside their reference ranges. Raised liver enzymes can point to liver inflammation or injury; a hepatic panel review is recommended."},
	{2, "glycemic-critical", glycemic, anyOf(critical), 3,
		"Glucose or HbA1c is at a critical level. Prompt medical evaluation of blood sugar control is recommended."},
	{3, "cardiovascular-inflammation", ids(domain.LDL, domain.ApoB, domain.CRP), countAtLeast(elevated, 2), 1,
		"At least two of LDL, ApoB and CRP are elevated, a combination associated with increased cardiovascular risk."},
	{4, "glucose-regulation", ids(domain.Insulin, domain.Glucose, domain.HbA1c), criticalOrAbnormalCount(2), 1,
		"Insulin, glucose and HbA1c suggest impaired glucose regulation. Screening for insulin resistance should be considered."},
	{5, "calcium-vitamin-d", calciumVitD, allOf(abnormalOrCritical, calciumVitD...), 1,
		"Calcium and vitamin D are both out of range. Bone and mineral metabolism should be reviewed."},
	{6, "adrenal-balance", ids(domain.Cortisol, domain.DHEAS, domain.Testosterone),
		either(anyOf(critical), allOf(abnormalOrCritical, domain.Cortisol, domain.DHEAS)), 1,
		"Cortisol, DHEA-S and testosterone indicate a possible adrenal hormone imbalance."},
	{7, "micronutrients", micronutrient, allOf(abnormalOrCritical, micronutrient...), 1,
		"Vitamin D, magnesium and zinc are all out of range, suggesting a combined micronutrient imbalance."},
	{8, "hepatic-metabolic", ids(domain.AlkalinePhosphatase, domain.ALT, domain.GGT, domain.Insulin), criticalOrAbnormalCount(2), 1,
		"Liver enzymes and insulin point to a possible metabolic liver condition such as fatty liver disease."},
	{9, "anemia", ids(domain.Hemoglobin, domain.RBC, domain.MCV), criticalOrAbnormalCount(2), 3,
		"Hemoglobin, red blood cell count and MCV suggest anemia. A follow-up blood count and iron studies are recommended."},
	{10, "dyslipidemia", ids(domain.TotalCholesterol, domain.LDL, domain.Triglycerides), criticalOrAbnormalCount(2), 2,
		"Cholesterol, LDL and triglycerides indicate dyslipidemia. Diet, activity and lipid-lowering options should be discussed."},
	{11, "thyroid-function", thyroid, allOf(abnormalOrCritical, thyroid...), 3,
		"TSH and T4 are both out of range, consistent with a thyroid function disorder."},
	{12, "d-dimer", ids(domain.DDimer), allOf(abnormalOrCritical, domain.DDimer), 3,
		"D-dimer is out of range. This may indicate active clot formation and needs urgent clinical correlation."},
	{13, "cholestasis", cholestasis, allOf(abnormalOrCritical, cholestasis...), 3,
		"All bilirubin fractions and GGT are out of range, suggesting impaired bile flow or liver dysfunction."},
	{14, "protein-status", proteins, allOf(abnormalOrCritical, proteins...), 3,
		"Albumin and total protein are both out of range, which may reflect nutritional, liver or kidney problems."},
	{15, "coagulation-prolonged", clotting, allOf(high, clotting...), 3,
		"PT and aPTT are both prolonged. Blood clots more slowly than normal and bleeding risk is increased."},
	{16, "coagulation-shortened", clotting, allOf(low, clotting...), 3,
		"PT and aPTT are both shortened, which may indicate a tendency towards excessive clotting."},
	{17, "kidney-function", renal, allOf(abnormalOrCritical, renal...), 3,
		"Creatinine and eGFR are both out of range, consistent with reduced kidney function."},
	{18, "pituitary-hypogonadism", ids(domain.Testosterone, domain.Prolactin),
		both(biomarkerIs(domain.Testosterone, low), biomarkerIs(domain.Prolactin, high)), 3,
		"Low testosterone together with high prolactin may indicate a pituitary cause of hypogonadism."},
	{19, "androgen-binding", ids(domain.Testosterone, domain.SHBG), criticalOrAbnormalCount(1), 2,
		"Testosterone or SHBG is out of range. The amount of available testosterone may be affected."},
}

var standardRules = buildRules(standardRuleSpecs)

func buildRules(specs []ruleSpec) []domain.Rule {
	rules := make([]domain.Rule, 0, len(specs))
	for _, s := range specs {
		rule, err := domain.NewRule(s.id, s.name, s.biomarkers, s.predicate, s.message, s.importance)
		if err != nil {
			panic(fmt.Sprintf("building rule %d: %v", s.id, err))
		}
		rules = append(rules, rule)
	}
	return rules
}

// StandardRules returns the canonical rule table, ids 1 to 19 in order.
func StandardRules() []domain.Rule {
	out := make([]domain.Rule, len(standardRules))
	copy(out, standardRules)
	return out
}

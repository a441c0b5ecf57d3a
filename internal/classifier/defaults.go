package classifier

import "github.com/biomarker-advisor/internal/domain"

type intervalBuilder struct {
	iv Interval
}

func reference(id domain.BiomarkerID, lo, hi float64) *intervalBuilder {
	return &intervalBuilder{iv: Interval{BiomarkerID: id, ReferenceMin: bound(lo), ReferenceMax: bound(hi)}}
}

// atLeast is for analytes with only a lower reference bound.
func atLeast(id domain.BiomarkerID, lo float64) *intervalBuilder {
	return &intervalBuilder{iv: Interval{BiomarkerID: id, ReferenceMin: bound(lo)}}
}

func (b *intervalBuilder) optimal(lo, hi float64) *intervalBuilder {
	b.iv.OptimalMin, b.iv.OptimalMax = bound(lo), bound(hi)
	return b
}

func (b *intervalBuilder) optimalAbove(lo float64) *intervalBuilder {
	b.iv.OptimalMin = bound(lo)
	return b
}

func (b *intervalBuilder) optimalBelow(hi float64) *intervalBuilder {
	b.iv.OptimalMax = bound(hi)
	return b
}

func (b *intervalBuilder) critical(lo, hi float64) *intervalBuilder {
	b.iv.CriticalLow, b.iv.CriticalHigh = bound(lo), bound(hi)
	return b
}

func (b *intervalBuilder) criticalLow(lo float64) *intervalBuilder {
	b.iv.CriticalLow = bound(lo)
	return b
}

func (b *intervalBuilder) criticalHigh(hi float64) *intervalBuilder {
	b.iv.CriticalHigh = bound(hi)
	return b
}

// DefaultIntervals returns adult reference intervals for every registry
// biomarker, in registry units.
func DefaultIntervals() []Interval {
	builders := []*intervalBuilder{
		reference(domain.Glucose, 70, 99).optimal(75, 90).critical(40, 400),
		reference(domain.Insulin, 2.6, 24.9).optimal(3, 8),
		reference(domain.TotalCholesterol, 125, 200).optimal(150, 180),
		atLeast(domain.HDL, 40).optimalAbove(60),
		reference(domain.LDL, 0, 100).optimalBelow(80),
		reference(domain.Triglycerides, 0, 150).optimalBelow(100).criticalHigh(1000),
		reference(domain.ApoB, 40, 100).optimalBelow(80),
		reference(domain.CRP, 0, 3).optimalBelow(1),
		reference(domain.Hemoglobin, 12, 17.5).optimal(13.5, 15.5).critical(7, 20),
		reference(domain.RBC, 4.2, 5.9),
		reference(domain.MCV, 80, 100).optimal(85, 95),
		reference(domain.Calcium, 8.5, 10.5).optimal(9.2, 10).critical(6.5, 13),
		reference(domain.VitaminD, 30, 100).optimal(40, 60).critical(10, 150),
		reference(domain.Magnesium, 1.7, 2.2).optimalAbove(2.0).critical(1.0, 4.0),
		reference(domain.Zinc, 60, 120).optimal(90, 110),
		reference(domain.Cortisol, 6, 23).optimal(10, 18).critical(3, 50),
		reference(domain.DHEAS, 80, 560),
		reference(domain.Testosterone, 264, 916).optimal(500, 800).criticalLow(100),
		reference(domain.SHBG, 10, 57),
		reference(domain.Prolactin, 4, 15.2).criticalHigh(200),
		reference(domain.TSH, 0.4, 4.5).optimal(0.5, 2.5).critical(0.01, 20),
		reference(domain.T4, 0.8, 1.8).critical(0.3, 5),
		reference(domain.Creatinine, 0.6, 1.3).criticalHigh(4),
		atLeast(domain.EGFR, 90).criticalLow(15),
		reference(domain.Albumin, 3.5, 5.0).optimalAbove(4.0).criticalLow(2.0),
		reference(domain.TotalProtein, 6.0, 8.3).criticalLow(4.0),
		reference(domain.AST, 10, 40).optimalBelow(26).criticalHigh(1000),
		reference(domain.ALT, 7, 56).optimalBelow(25).criticalHigh(1000),
		reference(domain.GGT, 8, 61).optimalBelow(30),
		reference(domain.AlkalinePhosphatase, 44, 147).optimal(50, 100),
		reference(domain.BilirubinTotal, 0.1, 1.2).criticalHigh(15),
		reference(domain.BilirubinDirect, 0, 0.3),
		reference(domain.HbA1c, 4.0, 5.6).optimal(4.5, 5.3).criticalHigh(10),
		reference(domain.BilirubinIndirect, 0.2, 0.8),
		reference(domain.PT, 11, 13.5).critical(8, 30),
		reference(domain.APTT, 25, 35).critical(20, 70),
		reference(domain.DDimer, 0, 0.5),
	}

	out := make([]Interval, len(builders))
	for i, b := range builders {
		out[i] = b.iv
	}
	return out
}

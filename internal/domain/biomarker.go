package domain

import (
	"fmt"
	"strings"
)

// BiomarkerID is a stable identifier from the closed biomarker registry.
type BiomarkerID int

// Registry ids. The numbering is part of the external contract and must not change.
const (
	Glucose             BiomarkerID = 1
	Insulin             BiomarkerID = 2
	TotalCholesterol    BiomarkerID = 3
	HDL                 BiomarkerID = 4
	LDL                 BiomarkerID = 5
	Triglycerides       BiomarkerID = 6
	ApoB                BiomarkerID = 7
	CRP                 BiomarkerID = 8
	Hemoglobin          BiomarkerID = 9
	RBC                 BiomarkerID = 10
	MCV                 BiomarkerID = 11
	Calcium             BiomarkerID = 12
	VitaminD            BiomarkerID = 13
	Magnesium           BiomarkerID = 14
	Zinc                BiomarkerID = 15
	Cortisol            BiomarkerID = 16
	DHEAS               BiomarkerID = 17
	Testosterone        BiomarkerID = 18
	SHBG                BiomarkerID = 19
	Prolactin           BiomarkerID = 20
	TSH                 BiomarkerID = 21
	T4                  BiomarkerID = 22
	Creatinine          BiomarkerID = 23
	EGFR                BiomarkerID = 24
	Albumin             BiomarkerID = 25
	TotalProtein        BiomarkerID = 26
	AST                 BiomarkerID = 27
	ALT                 BiomarkerID = 28
	GGT                 BiomarkerID = 29
	AlkalinePhosphatase BiomarkerID = 30
	BilirubinTotal      BiomarkerID = 31
	BilirubinDirect     BiomarkerID = 32
	HbA1c               BiomarkerID = 33
	BilirubinIndirect   BiomarkerID = 34
	PT                  BiomarkerID = 35
	APTT                BiomarkerID = 36
	DDimer              BiomarkerID = 37
)

// Biomarker describes one registry entry.
type Biomarker struct {
	ID   BiomarkerID `json:"id"`
	Code string      `json:"code"`
	Name string      `json:"name"`
	Unit string      `json:"unit"`
}

var biomarkerRegistry = []Biomarker{
	{Glucose, "glucose", "Glucose (fasting)", "mg/dL"},
	{Insulin, "insulin", "Insulin (fasting)", "μIU/mL"},
	{TotalCholesterol, "cholesterol", "Total cholesterol", "mg/dL"},
	{HDL, "hdl", "HDL cholesterol", "mg/dL"},
	{LDL, "ldl", "LDL cholesterol", "mg/dL"},
	{Triglycerides, "triglycerides", "Triglycerides", "mg/dL"},
	{ApoB, "apob", "Apolipoprotein B", "mg/dL"},
	{CRP, "crp", "C-reactive protein", "mg/L"},
	{Hemoglobin, "hemoglobin", "Hemoglobin", "g/dL"},
	{RBC, "rbc", "Red blood cells", "×10⁶/μL"},
	{MCV, "mcv", "Mean corpuscular volume", "fL"},
	{Calcium, "calcium", "Calcium", "mg/dL"},
	{VitaminD, "vitamin_d", "Vitamin D (25-OH)", "ng/mL"},
	{Magnesium, "magnesium", "Magnesium", "mg/dL"},
	{Zinc, "zinc", "Zinc", "μg/dL"},
	{Cortisol, "cortisol", "Cortisol (morning)", "μg/dL"},
	{DHEAS, "dheas", "DHEA sulfate", "μg/dL"},
	{Testosterone, "testosterone", "Testosterone (total)", "ng/dL"},
	{SHBG, "shbg", "Sex hormone binding globulin", "nmol/L"},
	{Prolactin, "prolactin", "Prolactin", "ng/mL"},
	{TSH, "tsh", "Thyroid stimulating hormone", "mIU/L"},
	{T4, "t4", "Free T4", "ng/dL"},
	{Creatinine, "creatinine", "Creatinine", "mg/dL"},
	{EGFR, "egfr", "eGFR", "mL/min/1.73m²"},
	{Albumin, "albumin", "Albumin", "g/dL"},
	{TotalProtein, "protein", "Total protein", "g/dL"},
	{AST, "ast", "Aspartate aminotransferase", "U/L"},
	{ALT, "alt", "Alanine aminotransferase", "U/L"},
	{GGT, "ggt", "Gamma-glutamyl transferase", "U/L"},
	{AlkalinePhosphatase, "alk_phos", "Alkaline phosphatase", "U/L"},
	{BilirubinTotal, "bili_total", "Bilirubin (total)", "mg/dL"},
	{BilirubinDirect, "bili_direct", "Bilirubin (direct)", "mg/dL"},
	{HbA1c, "hba1c", "Hemoglobin A1c", "%"},
	{BilirubinIndirect, "bili_indirect", "Bilirubin (indirect)", "mg/dL"},
	{PT, "pt", "Prothrombin time", "s"},
	{APTT, "aptt", "Activated partial thromboplastin time", "s"},
	{DDimer, "d_dimer", "D-dimer", "μg/mL FEU"},
}

var (
	biomarkersByID   = make(map[BiomarkerID]Biomarker, len(biomarkerRegistry))
	biomarkersByCode = make(map[string]Biomarker, len(biomarkerRegistry))
)

func init() {
	for _, b := range biomarkerRegistry {
		biomarkersByID[b.ID] = b
		biomarkersByCode[b.Code] = b
	}
}

// Biomarkers returns a copy of the registry ordered by id.
func Biomarkers() []Biomarker {
	out := make([]Biomarker, len(biomarkerRegistry))
	copy(out, biomarkerRegistry)
	return out
}

// LookupBiomarker finds a registry entry by id.
func LookupBiomarker(id BiomarkerID) (Biomarker, bool) {
	b, ok := biomarkersByID[id]
	return b, ok
}

// LookupBiomarkerByCode finds a registry entry by its code, ignoring case.
func LookupBiomarkerByCode(code string) (Biomarker, error) {
	b, ok := biomarkersByCode[strings.ToLower(strings.TrimSpace(code))]
	if !ok {
		return Biomarker{}, fmt.Errorf("%w: %q", ErrUnknownBiomarker, code)
	}
	return b, nil
}

// IsKnown reports whether id is in the registry.
func (id BiomarkerID) IsKnown() bool {
	_, ok := biomarkersByID[id]
	return ok
}

// Code returns the registry code, or a numeric placeholder for unknown ids.
func (id BiomarkerID) Code() string {
	if b, ok := biomarkersByID[id]; ok {
		return b.Code
	}
	return fmt.Sprintf("unknown_%d", int(id))
}

func (id BiomarkerID) String() string {
	return id.Code()
}

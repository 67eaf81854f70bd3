package schema

// Report accumulates everything the validator found in one pass over a
// station document. Field names are part of the wire contract with the
// review UI, do not rename them.
type Report struct {
	IsValid               bool     `json:"is_valid"`
	MissingRequiredFields []string `json:"missing_required_fields"`
	InvalidFieldTypes     []string `json:"invalid_field_types"`
	StructuralIssues      []string `json:"structural_issues"`
	Warnings              []string `json:"warnings"`
	CorrectionsApplied    []string `json:"corrections_applied"`
}

// NewReport returns a valid report with empty, non-nil issue lists so the
// JSON form always carries arrays instead of nulls.
func NewReport() *Report {
	return &Report{
		IsValid:               true,
		MissingRequiredFields: []string{},
		InvalidFieldTypes:     []string{},
		StructuralIssues:      []string{},
		Warnings:              []string{},
		CorrectionsApplied:    []string{},
	}
}

func (r *Report) missingField(name string) {
	r.MissingRequiredFields = append(r.MissingRequiredFields, name)
	r.IsValid = false
}

func (r *Report) structuralIssue(msg string) {
	r.StructuralIssues = append(r.StructuralIssues, msg)
	r.IsValid = false
}

func (r *Report) invalidType(msg string) {
	r.InvalidFieldTypes = append(r.InvalidFieldTypes, msg)
	r.IsValid = false
}

func (r *Report) warn(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

func (r *Report) corrected(msg string) {
	r.CorrectionsApplied = append(r.CorrectionsApplied, msg)
}

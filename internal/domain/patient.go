package domain

// Patient maps a row of the patients table (and its archive twin). The ID is
// externally assigned and unique across the union of active and archived
// patients at enrollment time.
type Patient struct {
	PatientID string `db:"patient_id"`
	Name      string `db:"patient_name"`
	Sex       string `db:"patient_sex"`
	Age       int    `db:"patient_age"`
	Tag       string `db:"patient_tag"` // unit/ward tag
}

// ToJSON shapes the patient row for listing responses.
func (p *Patient) ToJSON() map[string]any {
	return map[string]any{
		"ptid":   p.PatientID,
		"ptname": p.Name,
		"ptsex":  p.Sex,
		"ptage":  p.Age,
		"pttag":  p.Tag,
	}
}

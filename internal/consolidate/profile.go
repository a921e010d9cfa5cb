package consolidate

import "psicoapp/internal/record"

// Profile holds the patient attributes shown on the patient screen. Every
// field is the first non-empty value found across the patient's rows.
type Profile struct {
	Name             string
	BirthDate        string
	CPF              string
	Treatment        string
	Profession       string
	Origin           string
	ReferredBy       string
	Phone            string
	Email            string
	ContactName      string
	EmergencyContact string
	Address          string
	District         string
	City             string
	CEP              string
	FatherName       string
	MotherName       string
	Notes            string
}

type profileField struct {
	columns []string
	set     func(p *Profile, v string)
}

// profileFields lists the columns read for each field, preferred column
// first.
var profileFields = []profileField{
	{[]string{record.ColumnName}, func(p *Profile, v string) { p.Name = v }},
	{[]string{"nascimento"}, func(p *Profile, v string) { p.BirthDate = v }},
	{[]string{record.ColumnCPF}, func(p *Profile, v string) { p.CPF = v }},
	{[]string{"tratamento"}, func(p *Profile, v string) { p.Treatment = v }},
	{[]string{"profissao"}, func(p *Profile, v string) { p.Profession = v }},
	{[]string{"origem"}, func(p *Profile, v string) { p.Origin = v }},
	{[]string{"quem_indicou"}, func(p *Profile, v string) { p.ReferredBy = v }},
	{[]string{"telefone"}, func(p *Profile, v string) { p.Phone = v }},
	{[]string{record.ColumnEmail}, func(p *Profile, v string) { p.Email = v }},
	{[]string{"nome_do_contato", "nome_contato"}, func(p *Profile, v string) { p.ContactName = v }},
	{[]string{"contato_emergencia", "contato_de_emergencia"}, func(p *Profile, v string) { p.EmergencyContact = v }},
	{[]string{"endereco"}, func(p *Profile, v string) { p.Address = v }},
	{[]string{"bairro"}, func(p *Profile, v string) { p.District = v }},
	{[]string{"cidade"}, func(p *Profile, v string) { p.City = v }},
	{[]string{"cep"}, func(p *Profile, v string) { p.CEP = v }},
	{[]string{"nome_do_pai", "nome_pai"}, func(p *Profile, v string) { p.FatherName = v }},
	{[]string{"nome_da_mae", "nome_mae"}, func(p *Profile, v string) { p.MotherName = v }},
	{[]string{"observacoees", "observacoes"}, func(p *Profile, v string) { p.Notes = v }},
}

func buildProfile(rows []record.Record) Profile {
	var p Profile
	for _, f := range profileFields {
		f.set(&p, firstFilled(rows, f.columns...))
	}
	return p
}

// firstFilled scans rows in order and returns the first non-empty value
// among cols.
func firstFilled(rows []record.Record, cols ...string) string {
	for _, r := range rows {
		if v := r.Text(cols...); v != "" {
			return v
		}
	}
	return ""
}

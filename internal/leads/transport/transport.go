// Package transport defines the wire types for the public intake endpoint.
package transport

import "strings"

// SubmitFormRequest is the landing-page form payload. The form historically
// posted Portuguese field names; newer embeds use the English ones. Both are
// accepted, with the Portuguese alias winning when both are present. Name,
// email, company and revenue must arrive under at least one alias; the job
// title is optional.
type SubmitFormRequest struct {
	Whatsapp         string `json:"whatsapp" validate:"required"`
	FullName         string `json:"full_name" validate:"required_without=ProspectName,omitempty,min=3,max=100"`
	ProspectName     string `json:"nome_prospect" validate:"required_without=FullName,omitempty,min=3,max=100"`
	Company          string `json:"company" validate:"required_without=ProspectCompany,omitempty,min=2,max=50"`
	ProspectCompany  string `json:"empresa_prospect" validate:"required_without=Company,omitempty,min=2,max=50"`
	Email            string `json:"email" validate:"required_without=ProspectEmail,omitempty,email"`
	ProspectEmail    string `json:"email_prospect" validate:"required_without=Email,omitempty,email"`
	JobTitle         string `json:"role" validate:"omitempty,max=50"`
	ProspectJobTitle string `json:"cargo_prospect" validate:"omitempty,max=50"`
	Revenue          string `json:"revenue" validate:"required_without=CompanyRevenue"`
	CompanyRevenue   string `json:"faturamento_empresa" validate:"required_without=Revenue"`
}

// Name resolves the prospect name across aliases.
func (r SubmitFormRequest) Name() string { return pick(r.ProspectName, r.FullName) }

// CompanyName resolves the company across aliases.
func (r SubmitFormRequest) CompanyName() string { return pick(r.ProspectCompany, r.Company) }

// EmailAddress resolves the email across aliases.
func (r SubmitFormRequest) EmailAddress() string { return pick(r.ProspectEmail, r.Email) }

// Role resolves the job title across aliases.
func (r SubmitFormRequest) Role() string { return pick(r.ProspectJobTitle, r.JobTitle) }

// RevenueBand resolves the company revenue across aliases.
func (r SubmitFormRequest) RevenueBand() string { return pick(r.CompanyRevenue, r.Revenue) }

func pick(primary, fallback string) string {
	if s := strings.TrimSpace(primary); s != "" {
		return s
	}
	return strings.TrimSpace(fallback)
}

// SubmitFormResponse is returned to the landing page.
type SubmitFormResponse struct {
	Status    string `json:"status"`
	RequestID string `json:"request_id"`
	Message   string `json:"message,omitempty"`
}

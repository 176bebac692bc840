package ui

import (
	"net/url"

	"bugbounty-tracker/internal/report"
)

// Form 保存提交表单的六个输入值和字段错误
type Form struct {
	Title         string
	Description   string
	Severity      string
	CompanyName   string
	ReporterEmail string
	BountyAmount  string
	Errors        map[string]string
}

// NewForm 返回一个空表单, 严重程度默认为 medium
func NewForm() Form {
	return Form{Severity: string(report.SeverityMedium)}
}

// FormFromValues 从提交的表单字段构造 Form
func FormFromValues(v url.Values) Form {
	return Form{
		Title:         v.Get("title"),
		Description:   v.Get("description"),
		Severity:      v.Get("severity"),
		CompanyName:   v.Get("companyName"),
		ReporterEmail: v.Get("reporterEmail"),
		BountyAmount:  v.Get("bountyAmount"),
	}
}

// Value 是表单提交时交给上层的值对象
func (f Form) Value() report.CreateInput {
	return report.FormInput(url.Values{
		"title":         {f.Title},
		"description":   {f.Description},
		"severity":      {f.Severity},
		"companyName":   {f.CompanyName},
		"reporterEmail": {f.ReporterEmail},
		"bountyAmount":  {f.BountyAmount},
	})
}

func (f *Form) SetErrors(verr *report.ValidationError) {
	f.Errors = make(map[string]string, len(verr.Fields))
	for _, fe := range verr.Fields {
		f.Errors[fe.Field] = fe.Message
	}
}

// SeverityOptions 用于下拉框
func (f Form) SeverityOptions() []report.Severity {
	return report.Severities()
}

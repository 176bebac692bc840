package ui

import (
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"bugbounty-tracker/internal/report"
)

// Card 是列表中一条报告的展示数据
type Card struct {
	ID            string
	Title         string
	Description   string
	CompanyName   string
	ReporterEmail string
	Status        string
	BadgeClass    string
	SeverityLabel string
	Bounty        string // 没有赏金时为空
	Submitted     string
}

// Cards 把报告转换为展示数据, 不做任何 I/O
func Cards(reports []report.Report) []Card {
	cards := make([]Card, 0, len(reports))
	for _, r := range reports {
		cards = append(cards, Card{
			ID:            r.ID,
			Title:         r.Title,
			Description:   r.Description,
			CompanyName:   r.CompanyName,
			ReporterEmail: r.ReporterEmail,
			Status:        string(r.Status),
			BadgeClass:    SeverityBadgeClass(r.Severity),
			SeverityLabel: strings.ToUpper(string(r.Severity)),
			Bounty:        FormatBounty(r.BountyAmount),
			Submitted:     FormatTimestamp(r.SubmittedAt),
		})
	}
	return cards
}

func SeverityBadgeClass(s report.Severity) string {
	return "severity-badge severity-" + string(s)
}

// FormatBounty 格式化赏金金额, 带千分位, 保留两位小数
func FormatBounty(amount *float64) string {
	if amount == nil {
		return ""
	}
	p := message.NewPrinter(language.English)
	return "$" + p.Sprint(number.Decimal(*amount, number.MinFractionDigits(2), number.MaxFractionDigits(2)))
}

func FormatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("Jan 2, 2006 15:04 UTC")
}

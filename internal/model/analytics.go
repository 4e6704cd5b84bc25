package model

// Date layout used by analytics filters and the click distribution.
const DateLayout = "2006-01-02"

// Defaults applied when an AnalyticsRequest leaves a limit unset.
const (
	DefaultRefererQuantity           = 10
	DefaultUserAgentQuantity         = 10
	DefaultClickDistributionQuantity = 30

	// MaxDateRangeDays is the widest allowed gap between start and end date.
	MaxDateRangeDays = 366
)

// AnalyticsRequest filters an analytics report. Every field is optional.
type AnalyticsRequest struct {
	RefererQuantity           *int64  `json:"referer_quantity,omitempty" validate:"omitempty,min=1,max=100"`
	UserAgentQuantity         *int64  `json:"user_agent_quantity,omitempty" validate:"omitempty,min=1,max=50"`
	ClickDistributionQuantity *int64  `json:"click_distribution_quantity,omitempty" validate:"omitempty,min=1,max=365"`
	StartDate                 *string `json:"start_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	EndDate                   *string `json:"end_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

// RefererLimit returns the referer limit or its default.
func (r AnalyticsRequest) RefererLimit() int64 {
	return valueOr(r.RefererQuantity, DefaultRefererQuantity)
}

// UserAgentLimit returns the user agent limit or its default.
func (r AnalyticsRequest) UserAgentLimit() int64 {
	return valueOr(r.UserAgentQuantity, DefaultUserAgentQuantity)
}

// ClickDistributionLimit returns the distribution limit or its default.
func (r AnalyticsRequest) ClickDistributionLimit() int64 {
	return valueOr(r.ClickDistributionQuantity, DefaultClickDistributionQuantity)
}

func valueOr(v *int64, def int64) int64 {
	if v == nil {
		return def
	}
	return *v
}

// ReferrerData is one row of the top referrers breakdown.
type ReferrerData struct {
	Referer string `json:"referer"`
	Count   int64  `json:"count"`
}

// UserAgentData is one row of the top user agents breakdown.
type UserAgentData struct {
	UserAgent string `json:"user_agent"`
	Count     int64  `json:"count"`
}

// ClickDistributionData is the click count for one calendar date.
type ClickDistributionData struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

// DateRange echoes the requested date window. Days is inclusive.
type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
	Days  int64  `json:"days"`
}

// AnalyticsData is the composite report for one slug.
type AnalyticsData struct {
	TotalClicks       int64                   `json:"total_clicks"`
	UniqueClicks      int64                   `json:"unique_clicks"`
	TopReferrers      []ReferrerData          `json:"top_referrers"`
	TopUserAgents     []UserAgentData         `json:"top_user_agents"`
	ClickDistribution []ClickDistributionData `json:"click_distribution"`
	DateRange         *DateRange              `json:"date_range"`
}

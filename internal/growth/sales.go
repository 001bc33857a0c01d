package growth

import (
	"math"
)

const (
	planningMonths           = 12
	weeksPerMonth            = 4.33
	businessDaysPerWeek      = 5
	projectsPerPersonPerWeek = 1
	weeksPerYear             = 52
)

// SalesPlan is the sales cadence needed to reach the next stage's revenue.
type SalesPlan struct {
	CurrentStage          Stage   `json:"current_stage"`
	NextStage             Stage   `json:"next_stage"`
	RevenueGap            float64 `json:"revenue_gap"`
	SalesNeeded           int     `json:"sales_needed"`
	SalesPerMonth         int     `json:"sales_per_month"`
	MonthlyRevenueTarget  float64 `json:"monthly_revenue_target"`
	SalesPerWeek          int     `json:"sales_per_week"`
	SalesPerDay           int     `json:"sales_per_day"`
	MaxClientsPerYear     int     `json:"max_clients_per_year"`
	MaxClientsPerMonth    int     `json:"max_clients_per_month"`
	MaxConcurrentProjects int     `json:"max_concurrent_projects"`
	CapacityUtilization   float64 `json:"capacity_utilization"`
	TimelineMonths        int     `json:"timeline_months"`
}

// PlanSales computes the cadence for a business with the given headcount,
// annual revenue, price per sale and delivery time per project. It returns
// false when there is no next stage, the price is not positive, or revenue
// already meets the next stage's floor.
func (m *Model) PlanSales(headcount int, revenue, servicePrice float64, deliveryWeeks int) (SalesPlan, bool) {
	current, ok := m.Classify(headcount, revenue)
	if !ok {
		return SalesPlan{}, false
	}
	next, ok := m.Next(current)
	if !ok || servicePrice <= 0 {
		return SalesPlan{}, false
	}

	gap := math.Max(0, next.Revenue.Min-revenue)
	if gap <= 0 {
		return SalesPlan{}, false
	}

	salesNeeded := int(math.Ceil(gap / servicePrice))
	salesPerMonth := int(math.Ceil(float64(salesNeeded) / planningMonths))
	salesPerWeek := int(math.Ceil(float64(salesPerMonth) / weeksPerMonth))
	salesPerDay := int(math.Ceil(float64(salesPerWeek) / businessDaysPerWeek))

	projectsPerWeek := projectsPerPersonPerWeek * headcount
	maxPerYear := projectsPerWeek * weeksPerYear

	var utilization float64
	if maxPerYear > 0 {
		utilization = float64(salesNeeded) / float64(maxPerYear) * 100
	}

	return SalesPlan{
		CurrentStage:          current,
		NextStage:             next,
		RevenueGap:            gap,
		SalesNeeded:           salesNeeded,
		SalesPerMonth:         salesPerMonth,
		MonthlyRevenueTarget:  float64(salesPerMonth) * servicePrice,
		SalesPerWeek:          salesPerWeek,
		SalesPerDay:           salesPerDay,
		MaxClientsPerYear:     maxPerYear,
		MaxClientsPerMonth:    int(math.Floor(float64(projectsPerWeek) * weeksPerMonth)),
		MaxConcurrentProjects: deliveryWeeks * headcount,
		CapacityUtilization:   utilization,
		TimelineMonths:        planningMonths,
	}, true
}

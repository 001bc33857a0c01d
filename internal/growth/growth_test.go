package growth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultModelHasTenStages(t *testing.T) {
	stages := Default().Stages()
	require.Len(t, stages, 10)
	assert.Equal(t, "Improvise", stages[0].Name)
	assert.Equal(t, "Capitalize", stages[9].Name)
	assert.Nil(t, stages[9].Revenue.Max)
	assert.Equal(t, "Stage 3 - Stabilize", stages[3].Label())
}

func TestClassify(t *testing.T) {
	m := Default()

	tests := []struct {
		name      string
		headcount int
		revenue   float64
		wantID    int
		wantOK    bool
	}{
		{name: "solo founder low revenue", headcount: 0, revenue: 20000, wantID: 0, wantOK: true},
		{name: "solo founder revenue tiebreak", headcount: 0, revenue: 120000, wantID: 2, wantOK: true},
		{name: "one person past solo bands", headcount: 1, revenue: 300000, wantID: 3, wantOK: true},
		{name: "revenue fits no headcount match", headcount: 0, revenue: 10000000, wantID: 0, wantOK: true},
		{name: "single headcount match", headcount: 3, revenue: 0, wantID: 3, wantOK: true},
		{name: "mid size", headcount: 30, revenue: 6000000, wantID: 6, wantOK: true},
		{name: "beyond model", headcount: 600, revenue: 1, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stage, ok := m.Classify(tt.headcount, tt.revenue)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantID, stage.ID)
			}
		})
	}
}

func TestNext(t *testing.T) {
	m := Default()

	s, _ := m.Stage(4)
	next, ok := m.Next(s)
	require.True(t, ok)
	assert.Equal(t, "Productize", next.Name)

	last, _ := m.Stage(9)
	_, ok = m.Next(last)
	assert.False(t, ok)
}

func TestGoal(t *testing.T) {
	m := Default()

	assert.Equal(t, "Create and implement CLOSER framework script", m.Goal("2", "SALES"))
	assert.Equal(t, "Establish proper bookkeeping and cash flow tracking", m.Goal("Stage 1", "FINANCE"))
	assert.Equal(t, "Handle early customer feedback personally", m.Goal("0 - Improvise", "CUSTOMER SERVICE"))
	// Stages without a goal table fall back to Stage 2.
	assert.Equal(t, "Create and implement CLOSER framework script", m.Goal("7 - Categorize", "SALES"))
	assert.Equal(t, DefaultGoal, m.Goal("1", "LEGAL"))
}

func TestBusinessAreas(t *testing.T) {
	areas := Default().BusinessAreas()
	assert.Equal(t, []string{"CUSTOMER SERVICE", "FINANCE", "HR", "IT", "MARKETING", "PRODUCT", "RECRUITING", "SALES"}, areas)
}

func TestLoadRejectsOutOfOrderStages(t *testing.T) {
	_, err := Load([]byte("stages:\n  - id: 1\n    name: Wrong\n"))
	require.Error(t, err)

	_, err = Load([]byte("stages: []\n"))
	require.Error(t, err)
}

func TestPlanSales(t *testing.T) {
	m := Default()

	plan, ok := m.PlanSales(2, 300000, 10000, 3)
	require.True(t, ok)
	assert.Equal(t, "Stabilize", plan.CurrentStage.Name)
	assert.Equal(t, "Prioritize", plan.NextStage.Name)
	assert.InDelta(t, 700000, plan.RevenueGap, 1e-6)
	assert.Equal(t, 70, plan.SalesNeeded)
	assert.Equal(t, 6, plan.SalesPerMonth)
	assert.InDelta(t, 60000, plan.MonthlyRevenueTarget, 1e-6)
	assert.Equal(t, 2, plan.SalesPerWeek)
	assert.Equal(t, 1, plan.SalesPerDay)
	assert.Equal(t, 104, plan.MaxClientsPerYear)
	assert.Equal(t, 8, plan.MaxClientsPerMonth)
	assert.Equal(t, 6, plan.MaxConcurrentProjects)
	assert.InDelta(t, 67.307, plan.CapacityUtilization, 0.01)
	assert.Equal(t, 12, plan.TimelineMonths)
}

func TestPlanSalesWithoutCapacity(t *testing.T) {
	plan, ok := Default().PlanSales(0, 120000, 5000, 2)
	require.True(t, ok)
	assert.Equal(t, 26, plan.SalesNeeded)
	assert.Equal(t, 3, plan.SalesPerMonth)
	assert.Equal(t, 0, plan.MaxClientsPerYear)
	assert.Zero(t, plan.CapacityUtilization)
}

func TestPlanSalesNotApplicable(t *testing.T) {
	m := Default()

	_, ok := m.PlanSales(300, 200000000, 10000, 2)
	assert.False(t, ok, "no stage after Capitalize")

	_, ok = m.PlanSales(2, 300000, 0, 2)
	assert.False(t, ok, "price must be positive")
}

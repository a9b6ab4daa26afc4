package rules

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEmbeddedTables(t *testing.T) {
	r, err := Load()
	require.NoError(t, err)

	f := r.Payroll.Federal
	assert.Equal(t, 0.22, f.IncomeTaxRate)
	assert.Equal(t, 168600.0, f.SocialSecurityWageBase)
	assert.Equal(t, 200000.0, f.AdditionalMedicareThreshold["single"])
	assert.Equal(t, 250000.0, f.AdditionalMedicareThreshold["married_joint"])
	assert.Equal(t, 125000.0, f.AdditionalMedicareThreshold["married_separate"])

	assert.Equal(t, 0.19, r.Global.VAT["DE"])
	assert.Equal(t, 0.03, r.Global.DST["FR"].Rate)
	assert.Equal(t, 100000.0, r.Global.Nexus.Default.Revenue)
}

func TestStateResolution(t *testing.T) {
	r := MustLoad()

	ca := r.Payroll.State("ca")
	assert.Equal(t, 0.05, ca.IncomeTaxRate, "falls back to the default income rate")
	assert.Equal(t, 0.01, ca.DisabilityRate)

	tx := r.Payroll.State("TX")
	assert.Zero(t, tx.IncomeTaxRate)
	assert.Zero(t, tx.DisabilityRate)

	unknown := r.Payroll.State("ZZ")
	assert.Equal(t, 0.05, unknown.IncomeTaxRate)
	assert.Equal(t, 0.03, unknown.SUTARate)
	assert.Equal(t, "quarterly", unknown.FilingFrequency)
}

func TestQuarterDeadline(t *testing.T) {
	r := MustLoad()

	q1, err := r.Payroll.QuarterDeadline(2026, 1)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 4, 30, 0, 0, 0, 0, time.UTC), q1)

	q4, err := r.Payroll.QuarterDeadline(2026, 4)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2027, 1, 31, 0, 0, 0, 0, time.UTC), q4)

	_, err = r.Payroll.QuarterDeadline(2026, 5)
	assert.Error(t, err)
}

func TestJurisdictionHelpers(t *testing.T) {
	assert.Equal(t, "US-CA", USState("ca"))
	assert.Equal(t, "US-NY", USState("US-NY"))
	assert.True(t, IsUS("us-tx"))
	assert.False(t, IsUS("FR"))

	r := MustLoad()
	assert.Equal(t, 100, r.Global.Nexus.Threshold("US-NY").Transactions)
	assert.Zero(t, r.Global.Nexus.Threshold("US-CA").Transactions)
	assert.Equal(t, 200, r.Global.Nexus.Threshold("US-OH").Transactions)
	assert.Equal(t, 0.075, r.Global.SalesTax.For("US-OH").State)
}

package main

import "time"

// Period is the tariff bucket a half-hourly reading is billed under.
type Period int

const (
	PeriodPeak Period = iota
	PeriodOffPeak
	PeriodSmartCharging
)

func (p Period) String() string {
	switch p {
	case PeriodOffPeak:
		return "standard_off_peak"
	case PeriodSmartCharging:
		return "smart_charging"
	default:
		return "peak"
	}
}

// ConsumptionReading is a single interval reading from the Octopus
// consumption API. IntervalStart is nil when the API returned a row without
// a parsable timestamp; such rows are skipped during aggregation.
type ConsumptionReading struct {
	IntervalStart *time.Time
	Consumption   float64
}

// DispatchKind distinguishes planned from completed Intelligent dispatches.
type DispatchKind string

const (
	DispatchPlanned   DispatchKind = "planned"
	DispatchCompleted DispatchKind = "completed"
)

// DispatchWindow is an Intelligent Octopus smart-charging interval during
// which off-peak pricing applies regardless of clock time.
type DispatchWindow struct {
	Start  time.Time
	End    time.Time
	Kind   DispatchKind
	Delta  float64
	Source string
}

// Contains reports whether t falls inside the window, inclusive at both ends.
func (w DispatchWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// TariffConfig holds the Octopus Go tariff rates, in GBP per kWh plus GBP
// per day for the standing charges. Loaded once at process start.
type TariffConfig struct {
	OffPeakRate        float64
	PeakRate           float64
	GasRate            float64
	StandingChargeElec float64
	StandingChargeGas  float64
}

// UsageSummary is a day's electricity usage split by tariff bucket.
// Bucket values are rounded to 2 dp at the aggregation boundary; TotalUsage
// is rounded from the unrounded accumulators so nothing is double-counted.
type UsageSummary struct {
	OffPeakUsage          float64
	PeakUsage             float64
	SmartChargingUsage    float64
	TotalUsage            float64
	SmartChargingSessions int
}

// GasSummary is a day's gas usage. When no gas data exists for the day the
// figures are a 7-day daily average and IsAverage is set.
type GasSummary struct {
	VolumeM3  float64
	EnergyKWh float64
	IsAverage bool
}

// CostSummary is derived from UsageSummary x TariffConfig. Each component is
// rounded to 2 dp individually and the totals are rounded sums of the already
// rounded components, matching how the supplier presents the figures.
type CostSummary struct {
	OffPeakCost          float64
	PeakCost             float64
	SmartChargingCost    float64
	TotalElectricityCost float64
	GasUsageCost         float64
	TotalGasCost         float64
	TotalCost            float64
	SmartChargingSavings float64
}

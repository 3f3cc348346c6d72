package main

import (
	"fmt"
	"math"

	"go.uber.org/zap"
)

// round2 rounds to 2 decimal places. Rounding is deferred to the aggregation
// and costing boundaries so error does not compound across additions.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Aggregator folds interval readings into per-period usage summaries.
type Aggregator struct {
	Classifier *Classifier
	GasFactor  float64 // m3 -> kWh conversion, e.g. 11.1868
	log        *zap.SugaredLogger
}

func NewAggregator(classifier *Classifier, gasFactor float64, log *zap.SugaredLogger) *Aggregator {
	return &Aggregator{Classifier: classifier, GasFactor: gasFactor, log: log}
}

// AggregateElectricity classifies every reading into exactly one bucket and
// sums consumption per bucket. Readings without a timestamp are skipped and
// logged rather than defaulted into a bucket; this is deliberate so a corrupt
// row can never inflate the peak figure.
//
// Smart-charging sessions are deduplicated by (date, hour), so a 90-minute
// dispatch spanning an hour boundary counts as two sessions. That is how the
// display has always counted them; keep it.
func (a *Aggregator) AggregateElectricity(readings []ConsumptionReading) UsageSummary {
	var offPeak, peak, smart float64
	sessions := map[string]struct{}{}

	for _, r := range readings {
		if r.IntervalStart == nil {
			a.log.Warnw("skipping reading with missing interval_start", "consumption", r.Consumption)
			continue
		}
		t := *r.IntervalStart
		switch a.Classifier.Classify(t) {
		case PeriodSmartCharging:
			smart += r.Consumption
			local := t.In(a.Classifier.loc())
			sessions[fmt.Sprintf("%s_%d", local.Format("2006-01-02"), local.Hour())] = struct{}{}
		case PeriodOffPeak:
			offPeak += r.Consumption
		default:
			peak += r.Consumption
		}
	}

	return UsageSummary{
		OffPeakUsage:          round2(offPeak),
		PeakUsage:             round2(peak),
		SmartChargingUsage:    round2(smart),
		TotalUsage:            round2(offPeak + peak + smart),
		SmartChargingSessions: len(sessions),
	}
}

// AggregateGas converts a day's gas volume to energy. When the daily total is
// exactly zero (smart gas meters frequently report a day late) it falls back
// to a 7-day daily average via fetchWeekly, flagged IsAverage. An empty
// weekly result yields zeros, not an error.
func (a *Aggregator) AggregateGas(daily []ConsumptionReading, fetchWeekly func() ([]ConsumptionReading, error)) (GasSummary, error) {
	volume := a.sumVolume(daily)
	if volume != 0 {
		v := round2(volume)
		return GasSummary{
			VolumeM3:  v,
			EnergyKWh: round2(v * a.GasFactor),
		}, nil
	}

	a.log.Infow("no gas readings for the day, falling back to weekly average")
	weekly, err := fetchWeekly()
	if err != nil {
		return GasSummary{}, fmt.Errorf("fetching weekly gas readings: %w", err)
	}
	weeklyVolume := a.sumVolume(weekly)
	return GasSummary{
		VolumeM3:  round2(weeklyVolume / 7),
		EnergyKWh: round2(weeklyVolume * a.GasFactor / 7),
		IsAverage: true,
	}, nil
}

func (a *Aggregator) sumVolume(readings []ConsumptionReading) float64 {
	var total float64
	for _, r := range readings {
		if r.IntervalStart == nil {
			a.log.Warnw("skipping gas reading with missing interval_start", "consumption", r.Consumption)
			continue
		}
		total += r.Consumption
	}
	return total
}

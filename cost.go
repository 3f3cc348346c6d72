package main

// CalculateCosts prices a day's usage against the configured tariff. It is a
// pure function: no upstream calls, no clock reads.
//
// Every component cost is rounded to 2 dp before summing and each total is
// rounded again, so totals are sums of the figures actually shown. This can
// drift up to a penny versus rounding once at the end; it matches the
// supplier's presentation and must not be "fixed" to sum-then-round.
func CalculateCosts(usage UsageSummary, gas GasSummary, tariff TariffConfig) CostSummary {
	offPeakCost := round2(usage.OffPeakUsage * tariff.OffPeakRate)
	peakCost := round2(usage.PeakUsage * tariff.PeakRate)
	// Smart-charging dispatches are billed at the off-peak rate.
	smartCost := round2(usage.SmartChargingUsage * tariff.OffPeakRate)
	totalElec := round2(offPeakCost + peakCost + smartCost + tariff.StandingChargeElec)

	gasUsageCost := round2(gas.EnergyKWh * tariff.GasRate)
	totalGas := round2(gasUsageCost + tariff.StandingChargeGas)

	// Savings are computed uniformly against the peak rate, even for dispatch
	// usage that would have landed in the clock off-peak window anyway. Known
	// over-estimate; kept for continuity with historical display values.
	savings := round2(usage.SmartChargingUsage * (tariff.PeakRate - tariff.OffPeakRate))

	return CostSummary{
		OffPeakCost:          offPeakCost,
		PeakCost:             peakCost,
		SmartChargingCost:    smartCost,
		TotalElectricityCost: totalElec,
		GasUsageCost:         gasUsageCost,
		TotalGasCost:         totalGas,
		TotalCost:            round2(totalElec + totalGas),
		SmartChargingSavings: savings,
	}
}

package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the consolidated configuration for the service. Everything that
// used to vary between deployments (off-peak bounds, conversion factor,
// dispatch awareness, rates) is a knob here rather than a code path.
type Config struct {
	APIKey string

	ElectricityMeter MeterPoint
	GasMeter         MeterPoint

	Tariff              TariffConfig
	OffPeakWindow       OffPeakWindow
	GasConversionFactor float64

	DispatchEnabled bool
	Location        *time.Location

	Port        string
	HTTPTimeout time.Duration
	CacheDir    string
	CacheTTL    time.Duration
	LogLevel    string
}

func setConfigDefaults() {
	viper.SetDefault("rates.peak", 0.2957)
	viper.SetDefault("rates.off_peak", 0.0700)
	viper.SetDefault("rates.gas", 0.0626)
	viper.SetDefault("standing_charge.electricity", 0.4734)
	viper.SetDefault("standing_charge.gas", 0.2971)
	viper.SetDefault("off_peak.start", "23:30")
	viper.SetDefault("off_peak.end", "05:30")
	viper.SetDefault("gas.conversion_factor", 11.1868)
	viper.SetDefault("dispatch.enabled", true)
	viper.SetDefault("timezone", "Europe/London")
	viper.SetDefault("port", "5000")
	viper.SetDefault("http.timeout", "10s")
	viper.SetDefault("cache.dir", "")
	viper.SetDefault("cache.ttl", "15m")
	viper.SetDefault("log.level", "info")
}

// loadConfig reads configs/config.yml if present and overlays environment
// variables (dots become underscores, e.g. ELECTRICITY_MPAN).
func loadConfig() (*Config, error) {
	setConfigDefaults()

	viper.AddConfigPath("configs")
	viper.SetConfigName("config")
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	var missing []string
	requireString := func(key string) string {
		v := viper.GetString(key)
		if v == "" {
			missing = append(missing, strings.ToUpper(strings.ReplaceAll(key, ".", "_")))
		}
		return v
	}

	cfg := &Config{
		APIKey: requireString("api_key"),
		ElectricityMeter: MeterPoint{
			PointID:      requireString("electricity.mpan"),
			SerialNumber: requireString("electricity.serial"),
		},
		GasMeter: MeterPoint{
			PointID:      requireString("gas.mprn"),
			SerialNumber: requireString("gas.serial"),
		},
		Tariff: TariffConfig{
			OffPeakRate:        viper.GetFloat64("rates.off_peak"),
			PeakRate:           viper.GetFloat64("rates.peak"),
			GasRate:            viper.GetFloat64("rates.gas"),
			StandingChargeElec: viper.GetFloat64("standing_charge.electricity"),
			StandingChargeGas:  viper.GetFloat64("standing_charge.gas"),
		},
		GasConversionFactor: viper.GetFloat64("gas.conversion_factor"),
		DispatchEnabled:     viper.GetBool("dispatch.enabled"),
		Port:                viper.GetString("port"),
		HTTPTimeout:         viper.GetDuration("http.timeout"),
		CacheDir:            viper.GetString("cache.dir"),
		CacheTTL:            viper.GetDuration("cache.ttl"),
		LogLevel:            viper.GetString("log.level"),
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	start, err := ParseClockTime(viper.GetString("off_peak.start"))
	if err != nil {
		return nil, fmt.Errorf("off_peak.start: %w", err)
	}
	end, err := ParseClockTime(viper.GetString("off_peak.end"))
	if err != nil {
		return nil, fmt.Errorf("off_peak.end: %w", err)
	}
	cfg.OffPeakWindow = OffPeakWindow{Start: start, End: end}

	loc, err := time.LoadLocation(viper.GetString("timezone"))
	if err != nil {
		return nil, fmt.Errorf("loading timezone: %w", err)
	}
	cfg.Location = loc

	return cfg, nil
}

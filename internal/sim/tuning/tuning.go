package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	TickRateHz int `yaml:"tick_rate_hz"`
	DayTicks   int `yaml:"day_ticks"`

	GridRows int `yaml:"grid_rows"`
	GridCols int `yaml:"grid_cols"`

	StartingBalance float64 `yaml:"starting_balance"`

	Access    Access    `yaml:"accessibility"`
	LandValue LandValue `yaml:"land_value"`
	Tx        Tx        `yaml:"transactions"`
}

type Access struct {
	MaxRadius int `yaml:"max_radius"`
}

type LandValue struct {
	CenterPrice float64 `yaml:"center_price"`
	EdgePrice   float64 `yaml:"edge_price"`
	CacheTTLMs  int     `yaml:"cache_ttl_ms"`
}

type Tx struct {
	SubmitTimeoutMs  int     `yaml:"submit_timeout_ms"`
	DemolitionFeePct float64 `yaml:"demolition_fee_pct"`
	RepairCostPerPt  float64 `yaml:"repair_cost_per_pt"`
	MaxReachFromHub  float64 `yaml:"max_reach_from_hub"`
}

func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func Defaults() Tuning {
	return Tuning{
		TickRateHz:      1,
		DayTicks:        4,
		GridRows:        20,
		GridCols:        20,
		StartingBalance: 5000,
		Access: Access{
			MaxRadius: 5,
		},
		LandValue: LandValue{
			CenterPrice: 500,
			EdgePrice:   100,
			CacheTTLMs:  5000,
		},
		Tx: Tx{
			SubmitTimeoutMs:  250,
			DemolitionFeePct: 0.10,
			RepairCostPerPt:  2.0,
			MaxReachFromHub:  0, // 0 disables the connectivity requirement
		},
	}
}

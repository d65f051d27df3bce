// Package telemetry produces mock UPS readings onto a message queue.
package telemetry

import (
	"encoding/json"
	"math/rand/v2"
	"time"
)

// PublishTimeLayout formats Reading.PublishTime, e.g. "2024 06 01 12-30-05".
const PublishTimeLayout = "2006 01 02 15-04-05"

// Reading is one UPS sample.
type Reading struct {
	LastInputVAC   float64 `json:"last_input_vac"`
	InputVAC       float64 `json:"input_vac"`
	OutputVAC      float64 `json:"output_vac"`
	OutputPower    float64 `json:"output_power"`
	PowerNow       float64 `json:"power_now"`
	OutputHz       float64 `json:"output_hz"`
	BatteryLevel   float64 `json:"battery_level"`
	Temperature    float64 `json:"temperature"`
	BeepOn         bool    `json:"beep_on"`
	ShutdownActive bool    `json:"shutdown_active"`
	TestActive     bool    `json:"test_active"`
	UPSOK          bool    `json:"ups_ok"`
	Boost          bool    `json:"boost"`
	Bypass         bool    `json:"bypass"`
	LowBattery     bool    `json:"low_battery"`
	BatteryInUse   bool    `json:"battery_in_use"`
	PublishTime    string  `json:"publish_time"`
	Info           string  `json:"info"`
	Name           string  `json:"name"`
	NoData         bool    `json:"no_data"`
}

// Generator builds randomized readings.
type Generator struct {
	rng   *rand.Rand
	clock func() time.Time
}

// NewGenerator creates a generator. A nil rng uses a randomly seeded source;
// a nil clock uses local wall time.
func NewGenerator(rng *rand.Rand, clock func() time.Time) *Generator {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if clock == nil {
		clock = time.Now
	}
	return &Generator{rng: rng, clock: clock}
}

func (g *Generator) uniform(lo, hi float64) float64 {
	return lo + g.rng.Float64()*(hi-lo)
}

func (g *Generator) coin() bool {
	return g.rng.IntN(2) == 1
}

// Next returns a new reading stamped with the current clock time.
func (g *Generator) Next() Reading {
	return Reading{
		LastInputVAC: g.uniform(0, 227),
		InputVAC:     g.uniform(117, 227),
		OutputVAC:    g.uniform(0, 127),
		OutputPower:  g.uniform(0, 100),
		PowerNow:     g.uniform(0, 100),
		OutputHz:     g.uniform(0, 90),
		BatteryLevel: g.uniform(0, 100),
		Temperature:  g.uniform(0, 100),
		BeepOn:       true,
		UPSOK:        true,
		Boost:        g.coin(),
		LowBattery:   g.coin(),
		BatteryInUse: g.coin(),
		PublishTime:  g.clock().Format(PublishTimeLayout),
		Info:         "UPS Senoidal",
		Name:         "UPS Server",
	}
}

// Message encodes readings as the queue message body, a JSON array.
func Message(readings ...Reading) (string, error) {
	if readings == nil {
		readings = []Reading{}
	}
	b, err := json.Marshal(readings)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

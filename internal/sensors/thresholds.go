package sensors

// Reading status values shown on the dashboard.
const (
	StatusGreen  = "green"
	StatusYellow = "yellow"
	StatusRed    = "red"
)

type band struct {
	min, max float64
}

// Water-quality bands agreed with the farm operators. Red wins over
// yellow; anything outside all bands (or an unknown sensor type) reads
// green.
var thresholds = map[string]struct {
	yellow []band
	red    []band
}{
	"temperature": {
		yellow: []band{{25, 32}},
		red:    []band{{0, 24}, {33, 100}},
	},
	"oxygen": {
		yellow: []band{{3, 5}},
		red:    []band{{0, 2.9}},
	},
	"ph": {
		yellow: []band{{6.5, 7.0}, {8.5, 9.0}},
		red:    []band{{0, 6.4}, {9.1, 14}},
	},
	"salinity": {
		yellow: []band{{15, 20}, {35, 40}},
		red:    []band{{0, 14.9}, {40.1, 50}},
	},
	"turbidity": {
		yellow: []band{{10, 20}},
		red:    []band{{0, 9.9}, {20.1, 100}},
	},
}

// StatusFor grades a reading against the thresholds for its sensor type.
func StatusFor(sensorType string, value float64) string {
	t, ok := thresholds[sensorType]
	if !ok {
		return StatusGreen
	}
	for _, b := range t.red {
		if value >= b.min && value <= b.max {
			return StatusRed
		}
	}
	for _, b := range t.yellow {
		if value >= b.min && value <= b.max {
			return StatusYellow
		}
	}
	return StatusGreen
}

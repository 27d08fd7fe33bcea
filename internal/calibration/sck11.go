package calibration

const (
	HardwareSCK11 HardwareID = "sck:1.1"
	// KitSCK11 is the kit id devices of this revision are registered with.
	KitSCK11 HardwareID = "3"
)

var sck11Channels = map[SensorType]Channel{
	SensorNoise: 7,
	SensorTemp:  12,
	SensorHum:   13,
	SensorLight: 14,
	SensorNO2:   15,
	SensorCO:    16,
	SensorBat:   17,
	SensorPanel: 18,
	SensorNets:  21,
}

// raw microphone level to dB
var sck11NoiseTable = []Threshold{
	{0, 50}, {2, 55}, {3, 57}, {6, 58}, {20, 59}, {40, 60}, {60, 61}, {75, 62},
	{115, 63}, {150, 64}, {180, 65}, {220, 66}, {260, 67}, {300, 68}, {375, 69},
	{430, 70}, {500, 71}, {575, 72}, {660, 73}, {720, 74}, {820, 75}, {900, 76},
	{975, 77}, {1050, 78}, {1125, 79}, {1200, 80}, {1275, 81}, {1320, 82},
	{1375, 83}, {1400, 84}, {1430, 85}, {1450, 86}, {1480, 87}, {1500, 88},
	{1525, 89}, {1540, 90}, {1560, 91}, {1580, 92}, {1600, 93}, {1620, 94},
	{1640, 95}, {1660, 96}, {1680, 97}, {1690, 98}, {1700, 99}, {1710, 100},
	{1720, 101}, {1745, 102}, {1770, 103}, {1785, 104}, {1800, 105}, {1815, 106},
	{1830, 107}, {1845, 108}, {1860, 109}, {1875, 110},
}

// NewSCK11 builds the Smart Citizen Kit 1.1 variant.
// Panel, battery and network channels have no known formula and pass through.
func NewSCK11() (*Variant, error) {
	channels, err := NewChannelMap(sck11Channels)
	if err != nil {
		return nil, err
	}

	noise, err := NewLookupTable(sck11NoiseTable)
	if err != nil {
		return nil, err
	}

	return NewVariant(HardwareSCK11, channels, map[SensorType]Formula{
		SensorNoise: LookupFormula(noise),
		SensorTemp:  LinearFormula(175.72, -53),
		SensorHum:   LinearFormula(125.0, 7),
		SensorCO:    ScaledFormula(1000),
		SensorNO2:   ScaledFormula(1000),
		SensorLight: ScaledFormula(10),
	})
}

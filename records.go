package culturedb

// TemperatureReading is one observation from the vessel temperature probe.
type TemperatureReading struct {
	Key          ActivityKey
	TemperatureC float64
}

// PHReading is one observation from the pH probe.
type PHReading struct {
	Key ActivityKey
	PH  float64
}

// ODReading is one raw optical-density observation. Channel and Angle
// describe the photodiode that produced it; they stay in the narrow table
// and are not part of the consolidated view.
type ODReading struct {
	Key       ActivityKey
	ODReading float64
	Channel   string
	Angle     string
}

// GrowthRateEstimate is one output of the growth-rate estimator.
type GrowthRateEstimate struct {
	Key        ActivityKey
	GrowthRate float64
}

// RodTemperatures is one sweep of the three-channel rod thermometer.
// Individual channels may be absent (nil) when a sensor did not respond;
// the per-channel read timestamps are optional narrow-only detail.
type RodTemperatures struct {
	Key          ActivityKey
	TopC         *float64
	MiddleC      *float64
	BottomC      *float64
	TopReadAt    string
	MiddleReadAt string
	BottomReadAt string
}

// StirringRate is one measured stirring speed.
type StirringRate struct {
	Key ActivityKey
	RPM float64
}

// DosingEvent is one actuator update from the dosing system. SourceOfEvent
// names the automation or user that triggered it; it stays narrow-only.
type DosingEvent struct {
	Key           ActivityKey
	VolumeML      float64
	Event         string
	SourceOfEvent string
}

package model

// SectorAll is the catch-all sector that matches every instrument.
const SectorAll = "ALL"

// Instrument is a tradable security from the universe. Immutable after load.
type Instrument struct {
	ID     string `yaml:"instrument_key" json:"instrument_key"`
	Name   string `yaml:"name" json:"name"`
	Sector string `yaml:"sector" json:"sector"`
}

package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ErrInvalidCorrections is returned when a correction list fails validation.
var ErrInvalidCorrections = errors.New("invalid corrections")

// CodeFix overrides the station code of one station on one line.
type CodeFix struct {
	Line    string `yaml:"line" validate:"required"`
	Station string `yaml:"station" validate:"required"`
	Code    string `yaml:"code" validate:"required,alphanum"`
}

// Rename maps a mistyped station name to its canonical spelling.
type Rename struct {
	From string `yaml:"from" validate:"required"`
	To   string `yaml:"to" validate:"required,nefield=From"`
}

// Corrections is the table of known data-entry fixes applied to route tables.
type Corrections struct {
	CodeFixes      []CodeFix `yaml:"code_fixes" validate:"dive"`
	Renames        []Rename  `yaml:"renames" validate:"dive"`
	ClosedStations []string  `yaml:"closed_stations" validate:"dive,required"`
	ClosedStops    []string  `yaml:"closed_stops" validate:"dive,required"`
}

// DefaultCorrections returns the fixes known for the published rail route table.
func DefaultCorrections() *Corrections {
	return &Corrections{
		CodeFixes: []CodeFix{
			{Line: "Bukit Panjang LRT Line", Station: "Bukit Panjang", Code: "BP6"},
		},
		Renames: []Rename{
			{From: "Rafles Place", To: "Raffles Place"},
		},
		ClosedStations: []string{"Teck Lee"},
	}
}

// LoadCorrections reads and validates a YAML correction list.
func LoadCorrections(path string) (*Corrections, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read corrections: %w", err)
	}
	return ParseCorrections(data)
}

// ParseCorrections decodes and validates a YAML correction list.
func ParseCorrections(data []byte) (*Corrections, error) {
	var c Corrections
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCorrections, err)
	}
	if err := validator.New().Struct(c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCorrections, err)
	}
	return &c, nil
}

// WithClosedStops returns a copy of c with extra out-of-service stop codes.
func (c *Corrections) WithClosedStops(codes ...string) *Corrections {
	out := *c
	out.ClosedStops = append(append([]string(nil), c.ClosedStops...), codes...)
	return &out
}

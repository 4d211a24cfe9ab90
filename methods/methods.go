/*
Package methods is the catalog of heat-to-power conversion methods.

The catalog is static: Kalina Cycle, Steam Turbine and ORC Cycle, each with
a nominal efficiency, the temperature band it suits and its trade-offs.
Recommend picks the method whose band contains the source temperature and
falls back to the flagged default when no band matches.

Temperatures are in degrees Celsius. Bands are half-open [Min, Max); a nil
bound is unbounded.
*/
package methods

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrMethodNotFound = errors.New("conversion method not found")

type Method struct {
	Slug        string
	Name        string
	Efficiency  float64 // percent
	Conditions  string
	Pros        []string
	Cons        []string
	TempRange   string
	MinTemp     *float64
	MaxTemp     *float64
	Cost        string
	Scalability string
	Default     bool
}

func celsius(v float64) *float64 { return &v }

var catalog = []Method{
	{
		Slug:        "kalina-cycle",
		Name:        "Kalina Cycle",
		Efficiency:  42.7,
		Conditions:  "Best for medium-temp (250–450°C), variable heat sources",
		Pros:        []string{"High efficiency in mid-range temps", "Flexible with mixed fluids", "Lower maintenance"},
		Cons:        []string{"Complex setup", "Higher initial cost"},
		TempRange:   "250–450°C",
		MinTemp:     celsius(250),
		MaxTemp:     celsius(450),
		Cost:        "Medium",
		Scalability: "High",
		Default:     true,
	},
	{
		Slug:        "steam-turbine",
		Name:        "Steam Turbine",
		Efficiency:  35.2,
		Conditions:  "High-temp only (≥450°C), stable steam supply",
		Pros:        []string{"Proven technology", "High power output"},
		Cons:        []string{"Inefficient below 450°C", "Water intensive", "Slow ramp-up"},
		TempRange:   "≥450°C",
		MinTemp:     celsius(450),
		Cost:        "High",
		Scalability: "Medium",
	},
	{
		Slug:        "orc-cycle",
		Name:        "ORC Cycle",
		Efficiency:  28.9,
		Conditions:  "Low-temp (<250°C), remote or modular sites",
		Pros:        []string{"Works at low temps", "Modular & portable", "Low noise"},
		Cons:        []string{"Lower efficiency", "Expensive working fluids"},
		TempRange:   "<250°C",
		MaxTemp:     celsius(250),
		Cost:        "Low-Medium",
		Scalability: "Very High",
	},
}

// All returns a copy of the catalog in display order.
func All() []Method {
	out := make([]Method, len(catalog))
	copy(out, catalog)
	return out
}

func Lookup(slug string) (Method, error) {
	for _, m := range catalog {
		if m.Slug == slug {
			return m, nil
		}
	}
	return Method{}, fmt.Errorf("%w: %q", ErrMethodNotFound, slug)
}

// Default returns the flagged fallback method.
func Default() Method {
	for _, m := range catalog {
		if m.Default {
			return m
		}
	}
	return catalog[0]
}

func (m Method) Suits(tempC float64) bool {
	if m.MinTemp != nil && tempC < *m.MinTemp {
		return false
	}
	if m.MaxTemp != nil && tempC >= *m.MaxTemp {
		return false
	}
	return true
}

// Recommend returns the method suited to the source temperature.
func Recommend(tempC float64) Method {
	for _, m := range catalog {
		if m.Suits(tempC) {
			return m
		}
	}
	return Default()
}

// Summary renders the downloadable recommendation text.
func Summary(m Method, generated time.Time) string {
	var b strings.Builder
	b.WriteString("HEATX METHOD RECOMMENDATION\n\n")
	fmt.Fprintf(&b, "Recommended: %s\n", m.Name)
	fmt.Fprintf(&b, "Efficiency: %.1f%%\n", m.Efficiency)
	fmt.Fprintf(&b, "Conditions: %s\n", m.Conditions)
	fmt.Fprintf(&b, "Temperature Range: %s\n", m.TempRange)
	fmt.Fprintf(&b, "Cost Level: %s\n", m.Cost)
	fmt.Fprintf(&b, "Scalability: %s\n\n", m.Scalability)
	b.WriteString("Pros:\n")
	for _, p := range m.Pros {
		fmt.Fprintf(&b, "- %s\n", p)
	}
	b.WriteString("\nCons:\n")
	for _, c := range m.Cons {
		fmt.Fprintf(&b, "- %s\n", c)
	}
	fmt.Fprintf(&b, "\nGenerated: %s\n", generated.UTC().Format(time.RFC3339))
	return b.String()
}

// Filename is the download name for a method summary.
func Filename(m Method) string {
	return "heatx-method-" + m.Slug + ".txt"
}

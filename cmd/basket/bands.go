package main

import (
	"github.com/fatih/color"
	"github.com/srg/basket/internal/proximity"
)

var bandColors = map[proximity.Band]*color.Color{
	proximity.Excellent: color.New(color.FgGreen, color.Bold),
	proximity.VeryGood:  color.New(color.FgGreen),
	proximity.Good:      color.New(color.FgCyan),
	proximity.Low:       color.New(color.FgYellow),
	proximity.VeryLow:   color.New(color.FgRed),
	proximity.NoSignal:  color.New(color.Faint),
}

// colorBand renders a band label in its colour. color.NoColor turns this
// into the plain label.
func colorBand(b proximity.Band) string {
	if c, ok := bandColors[b]; ok {
		return c.Sprint(b.String())
	}
	return b.String()
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

package logger

import (
	"fmt"
	"strings"
)

// FillBar renders how full a bounded resource is, e.g. "[===       ] 30/100 (30%)".
type FillBar struct {
	current int
	total   int
	width   int
}

// NewFillBar creates a bar of the given character width
func NewFillBar(current, total, width int) FillBar {
	if width < 1 {
		width = 10
	}
	return FillBar{current: current, total: total, width: width}
}

// Percentage returns the fill percentage clamped to 0-100
func (b FillBar) Percentage() int {
	if b.total <= 0 {
		return 0
	}
	perc := (b.current * 100) / b.total
	if perc > 100 {
		perc = 100
	}
	if perc < 0 {
		perc = 0
	}
	return perc
}

// Render generates the ASCII bar string
func (b FillBar) Render() string {
	perc := b.Percentage()
	filled := (perc * b.width) / 100

	bar := "[" + strings.Repeat("=", filled) + strings.Repeat(" ", b.width-filled) + "]"
	return fmt.Sprintf("%s %d/%d (%d%%)", bar, b.current, b.total, perc)
}

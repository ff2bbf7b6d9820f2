package templates

import (
	"fmt"
	"strings"

	"posto-dashboard/internal/models"
)

const (
	chartWidth  = 600
	chartHeight = 180
	chartPad    = 10
	maxLabels   = 8
)

// Chart is a revenue line laid out in SVG user units.
type Chart struct {
	Width  int
	Height int
	Line   string
	Max    float64
	Labels []ChartLabel
}

type ChartLabel struct {
	X    float64
	Text string
}

func newChart(points []models.TrendPoint) Chart {
	c := Chart{Width: chartWidth, Height: chartHeight}
	if len(points) == 0 {
		return c
	}
	for _, p := range points {
		if p.Revenue > c.Max {
			c.Max = p.Revenue
		}
	}

	step := 0.0
	if len(points) > 1 {
		step = float64(chartWidth-2*chartPad) / float64(len(points)-1)
	}
	every := (len(points) + maxLabels - 1) / maxLabels

	coords := make([]string, 0, len(points))
	for i, p := range points {
		x := chartPad + step*float64(i)
		y := float64(chartHeight - chartPad)
		if c.Max > 0 {
			y -= p.Revenue / c.Max * float64(chartHeight-2*chartPad)
		}
		coords = append(coords, fmt.Sprintf("%.1f,%.1f", x, y))
		if i%every == 0 {
			c.Labels = append(c.Labels, ChartLabel{X: x, Text: p.Label})
		}
	}
	c.Line = strings.Join(coords, " ")
	return c
}

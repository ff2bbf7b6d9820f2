package format

import (
	"math"
	"testing"
)

func TestMoney(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "R$ 0,00"},
		{152, "R$ 152,00"},
		{189432.5, "R$ 189.432,50"},
		{-12.5, "-R$ 12,50"},
	}
	for _, tt := range tests {
		if got := Money(tt.in); got != tt.want {
			t.Errorf("Money(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNumbers(t *testing.T) {
	if got := Integer(1247); got != "1.247" {
		t.Errorf("Integer = %q", got)
	}
	if got := Liters(34567.5); got != "34.567,5 L" {
		t.Errorf("Liters = %q", got)
	}
	if got := Number(2134, 2); got != "2.134" {
		t.Errorf("Number = %q", got)
	}
}

func TestChange(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{12.5, "+12,5%"},
		{-2.1, "-2,1%"},
		{0, "--"},
		{math.Inf(1), "--"},
	}
	for _, tt := range tests {
		if got := Change(tt.in); got != tt.want {
			t.Errorf("Change(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
	if Trend(-1) != "down" || Trend(3) != "up" || Trend(0) != "flat" {
		t.Error("unexpected trend modifier")
	}
}

func TestPlain(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{1234.5, "1234.50"},
		{0, "0.00"},
		{-7.25, "-7.25"},
	}
	for _, tt := range tests {
		if got := Plain(tt.in); got != tt.want {
			t.Errorf("Plain(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

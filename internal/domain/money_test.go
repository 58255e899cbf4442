package domain

import "testing"

func TestRound2(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want float64
	}{
		{"exact", 110.0, 110.0},
		{"half up", 0.125, 0.13},
		{"half up negative", -0.125, -0.13},
		{"truncating", 1.014, 1.01},
		{"fx product", 100 * 1.1, 110.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Round2(tt.in); got != tt.want {
				t.Errorf("Round2(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestConvert(t *testing.T) {
	// Raw float product, no intermediate rounding.
	if got := Round2(Convert(100, 1.1)); got != 110.0 {
		t.Errorf("Convert(100, 1.1) rounds to %v, want 110.0", got)
	}
	if got := Convert(50, 1); got != 50 {
		t.Errorf("Convert(50, 1) = %v, want 50", got)
	}
}

func TestNormalizeCurrency(t *testing.T) {
	if got := NormalizeCurrency("  usd "); got != "USD" {
		t.Errorf("NormalizeCurrency = %q, want USD", got)
	}
}

func TestLedgerReservedSign(t *testing.T) {
	tests := []struct {
		typ  LedgerType
		want float64
	}{
		{LedgerFund, 1},
		{LedgerAdjust, 1},
		{LedgerSpend, -1},
	}
	for _, tt := range tests {
		e := LedgerEvent{Type: tt.typ}
		if got := e.ReservedSign(); got != tt.want {
			t.Errorf("ReservedSign(%s) = %v, want %v", tt.typ, got, tt.want)
		}
	}
}

package runner

import (
	"testing"

	"trade_guard/internal/models"
)

func TestQty(t *testing.T) {
	tests := []struct {
		name    string
		balance float64
		risk    float64
		lev     int
		price   float64
		want    float64
	}{
		{"typical", 1000, 0.6, 10, 100, 60},
		{"zero price", 1000, 0.6, 10, 0, 0},
		{"zero balance", 0, 0.6, 10, 100, 0},
		{"negative balance", -5, 0.6, 10, 100, 0},
		{"zero leverage", 1000, 0.6, 0, 100, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Qty(tt.balance, tt.risk, tt.lev, tt.price); !approx(got, tt.want) {
				t.Fatalf("Qty = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPnLSign(t *testing.T) {
	long := models.Position{IsOpen: true, Side: models.SideLong, EntryPrice: 100}
	short := models.Position{IsOpen: true, Side: models.SideShort, EntryPrice: 100}

	if got := PnL(long, 6000, 101); !approx(got, 60) {
		t.Fatalf("long up = %v", got)
	}
	if got := PnL(short, 6000, 101); !approx(got, -60) {
		t.Fatalf("short up = %v", got)
	}
	if got := PnL(short, 6000, 99); !approx(got, 60) {
		t.Fatalf("short down = %v", got)
	}
	if got := PnL(models.Flat(), 6000, 99); got != 0 {
		t.Fatalf("flat = %v", got)
	}
}

func TestExitLevel(t *testing.T) {
	long := models.Position{IsOpen: true, Side: models.SideLong, EntryPrice: 100, TP1Price: 102, SLPrice: 98}
	short := models.Position{IsOpen: true, Side: models.SideShort, EntryPrice: 100, TP1Price: 98, SLPrice: 102}

	tests := []struct {
		name   string
		pos    models.Position
		price  float64
		reason string
		level  float64
	}{
		{"long inside", long, 101, "", 0},
		{"long tp", long, 102, "tp1", 102},
		{"long sl", long, 97, "sl", 98},
		{"short inside", short, 99, "", 0},
		{"short tp", short, 97.5, "tp1", 98},
		{"short sl", short, 102.1, "sl", 102},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			level, reason, hit := exitLevel(tt.pos, tt.price)
			if reason != tt.reason || level != tt.level || hit != (tt.reason != "") {
				t.Fatalf("exitLevel = %v %q %v", level, reason, hit)
			}
		})
	}
}

func TestTrailArmed(t *testing.T) {
	long := models.Position{IsOpen: true, Side: models.SideLong, EntryPrice: 100, TP1Price: 102}
	short := models.Position{IsOpen: true, Side: models.SideShort, EntryPrice: 100, TP1Price: 98}

	if trailArmed(long, 100.9, 0.5) || !trailArmed(long, 101, 0.5) {
		t.Fatal("long arm threshold")
	}
	if !trailArmed(short, 99, 0.5) || trailArmed(short, 100.5, 0.5) {
		t.Fatal("short arm threshold")
	}
	if trailArmed(long, 105, 0) {
		t.Fatal("ratio 0 disables trailing")
	}
}

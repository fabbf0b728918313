package scheduler

import (
	"testing"
	"time"
)

func mustTable(t *testing.T, entries ...string) TimeTable {
	t.Helper()
	table, err := ParseTimeTable(entries)
	if err != nil {
		t.Fatalf("ParseTimeTable(%v) error = %v", entries, err)
	}
	return table
}

func TestParseTimeTable(t *testing.T) {
	tests := []struct {
		name    string
		entries []string
		wantErr bool
	}{
		{"standard slots", []string{"14:00", "15:30", "18:00", "20:00", "21:30"}, false},
		{"single slot", []string{"09:05"}, false},
		{"empty", nil, true},
		{"bad format", []string{"14:00", "25:99"}, true},
		{"missing minutes", []string{"14"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := ParseTimeTable(tt.entries)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseTimeTable() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && table.Len() != len(tt.entries) {
				t.Errorf("Len() = %d, want %d", table.Len(), len(tt.entries))
			}
		})
	}
}

func TestSlotTime(t *testing.T) {
	table := mustTable(t, "14:00", "15:30")

	tests := []struct {
		name string
		slot int
		now  time.Time
		want time.Time
	}{
		{
			"before slot stays same day",
			0,
			time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
			time.Date(2024, 1, 1, 14, 0, 0, 0, time.UTC),
		},
		{
			"after slot rolls to next day",
			0,
			time.Date(2024, 1, 1, 22, 0, 0, 0, time.UTC),
			time.Date(2024, 1, 2, 14, 0, 0, 0, time.UTC),
		},
		{
			"exactly at slot rolls to next day",
			0,
			time.Date(2024, 1, 1, 14, 0, 0, 0, time.UTC),
			time.Date(2024, 1, 2, 14, 0, 0, 0, time.UTC),
		},
		{
			"second slot independent of first",
			1,
			time.Date(2024, 1, 1, 14, 30, 0, 0, time.UTC),
			time.Date(2024, 1, 1, 15, 30, 0, 0, time.UTC),
		},
		{
			"rolls across month boundary",
			0,
			time.Date(2024, 1, 31, 23, 0, 0, 0, time.UTC),
			time.Date(2024, 2, 1, 14, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := table.SlotTime(tt.slot, tt.now)
			if !got.Equal(tt.want) {
				t.Errorf("SlotTime(%d, %s) = %s, want %s", tt.slot, tt.now, got, tt.want)
			}
			if !got.After(tt.now) {
				t.Errorf("SlotTime() = %s, not strictly after now %s", got, tt.now)
			}
		})
	}
}

func TestNextFire(t *testing.T) {
	table := mustTable(t, "14:00", "15:30", "18:00")

	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{
			"morning picks first slot",
			time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC),
			time.Date(2024, 1, 1, 14, 0, 0, 0, time.UTC),
		},
		{
			"between slots picks next",
			time.Date(2024, 1, 1, 14, 30, 0, 0, time.UTC),
			time.Date(2024, 1, 1, 15, 30, 0, 0, time.UTC),
		},
		{
			"after last slot wraps to tomorrow",
			time.Date(2024, 1, 1, 19, 0, 0, 0, time.UTC),
			time.Date(2024, 1, 2, 14, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := table.NextFire(tt.now); !got.Equal(tt.want) {
				t.Errorf("NextFire(%s) = %s, want %s", tt.now, got, tt.want)
			}
		})
	}
}

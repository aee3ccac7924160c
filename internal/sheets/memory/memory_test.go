package memory

import (
	"context"
	"reflect"
	"testing"
)

func TestReplaceRows(t *testing.T) {
	s := New()
	ctx := context.Background()

	rows := [][]string{{"Date", "Amount"}, {"2024-07-01", "1000"}}
	if err := s.ReplaceRows(ctx, "Transactions - budi", rows); err != nil {
		t.Fatalf("ReplaceRows: %v", err)
	}
	rows[1][1] = "mutated"

	got, err := s.ReadRows(ctx, "Transactions - budi")
	if err != nil {
		t.Fatalf("ReadRows: %v", err)
	}
	want := [][]string{{"Date", "Amount"}, {"2024-07-01", "1000"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("rows = %v, want %v", got, want)
	}

	if err := s.ReplaceRows(ctx, "Transactions - budi", [][]string{{"Date", "Amount"}}); err != nil {
		t.Fatalf("ReplaceRows: %v", err)
	}
	got, _ = s.ReadRows(ctx, "Transactions - budi")
	if len(got) != 1 {
		t.Fatalf("rows after replace = %v, want header only", got)
	}
	if s.Writes() != 2 {
		t.Fatalf("writes = %d, want 2", s.Writes())
	}
}

func TestReadUnknownTab(t *testing.T) {
	s := New()
	got, err := s.ReadRows(context.Background(), "missing")
	if err != nil || len(got) != 0 {
		t.Fatalf("ReadRows(missing) = %v, %v", got, err)
	}
	if len(s.Tabs()) != 0 {
		t.Fatalf("tabs = %v, want none", s.Tabs())
	}
}

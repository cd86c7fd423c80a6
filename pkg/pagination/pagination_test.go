package pagination

import "testing"

func TestNormalize(t *testing.T) {
	p := Params{}.Normalize()
	if p.Page != 1 || p.Limit != DefaultLimit {
		t.Fatalf("unexpected defaults: %+v", p)
	}

	p = Params{Page: 3, Limit: 500}.Normalize()
	if p.Limit != MaxLimit {
		t.Fatalf("expected limit capped at %d, got %d", MaxLimit, p.Limit)
	}
}

func TestOffset(t *testing.T) {
	if got := (Params{Page: 1, Limit: 20}).Offset(); got != 0 {
		t.Fatalf("expected offset 0, got %d", got)
	}
	if got := (Params{Page: 4, Limit: 10}).Offset(); got != 30 {
		t.Fatalf("expected offset 30, got %d", got)
	}
}

func TestNewResult(t *testing.T) {
	res := NewResult(Params{Page: 2, Limit: 10}, 25)
	if res.TotalPages != 3 {
		t.Fatalf("expected 3 pages, got %d", res.TotalPages)
	}
	if res.Total != 25 || res.Page != 2 {
		t.Fatalf("unexpected result: %+v", res)
	}

	res = NewResult(Params{Limit: 10}, 30)
	if res.TotalPages != 3 {
		t.Fatalf("expected 3 pages for even division, got %d", res.TotalPages)
	}
}

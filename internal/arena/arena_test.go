package arena

import "testing"

func TestAllocReturnsAlignedBlock(t *testing.T) {
	a := New(256)
	buf, _, err := a.Alloc(5)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if len(buf) < 5 {
		t.Errorf("len(buf) = %d, want >= 5", len(buf))
	}
}

func TestAllocExhaustionReturnsOOM(t *testing.T) {
	a := New(32)
	_, _, err := a.Alloc(1024)
	if err == nil {
		t.Fatal("expected OOM error")
	}
	if _, ok := err.(*OOMError); !ok {
		t.Errorf("err type = %T, want *OOMError", err)
	}
}

func TestFreeAndCoalesceReclaimsSpace(t *testing.T) {
	a := New(128)
	_, b1, err := a.Alloc(16)
	if err != nil {
		t.Fatalf("Alloc 1: %v", err)
	}
	_, b2, err := a.Alloc(16)
	if err != nil {
		t.Fatalf("Alloc 2: %v", err)
	}
	a.Free(b1)
	a.Free(b2)
	if _, _, err := a.Alloc(64); err != nil {
		t.Fatalf("Alloc after coalesce: %v", err)
	}
}

func TestResetDiscardsAllBlocks(t *testing.T) {
	a := New(64)
	if _, _, err := a.Alloc(32); err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	a.Reset()
	if _, _, err := a.Alloc(60); err != nil {
		t.Errorf("Alloc after Reset: %v", err)
	}
}

func TestHighWaterTracksPeakUsage(t *testing.T) {
	a := New(128)
	_, b1, _ := a.Alloc(20)
	_, _, _ = a.Alloc(20)
	a.Free(b1)
	if hw := a.HighWater(); hw < 40 {
		t.Errorf("HighWater() = %d, want >= 40", hw)
	}
}

func TestAllocTableDriven(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		request int
		wantErr bool
	}{
		{"fits", 64, 8, false},
		{"exact", 64, 64 - headerSize, false},
		{"tooLarge", 16, 256, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := New(tt.size)
			_, _, err := a.Alloc(tt.request)
			if (err != nil) != tt.wantErr {
				t.Errorf("Alloc(%d) in pool(%d) err = %v, wantErr %v", tt.request, tt.size, err, tt.wantErr)
			}
		})
	}
}

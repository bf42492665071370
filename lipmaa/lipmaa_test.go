package lipmaa

import (
	"reflect"
	"testing"
)

func TestLinkseq(t *testing.T) {
	// Values 2..14 checked by hand against the perfect-boundary
	// construction (boundaries at 1, 4, 13, 40, ...).
	want := map[uint64]uint64{
		2: 1, 3: 2, 4: 1,
		5: 4, 6: 5, 7: 6, 8: 5, 9: 8, 10: 9, 11: 10, 12: 9, 13: 4,
		14: 13,
	}
	for n, exp := range want {
		if got := Linkseq(n); got != exp {
			t.Errorf("Linkseq(%d) = %d, want %d", n, got, exp)
		}
	}
}

func TestLinkseqUndefinedBelowTwo(t *testing.T) {
	if got := Linkseq(0); got != 0 {
		t.Errorf("Linkseq(0) = %d, want 0", got)
	}
	if got := Linkseq(1); got != 0 {
		t.Errorf("Linkseq(1) = %d, want 0", got)
	}
}

func TestCertPoolFourteen(t *testing.T) {
	// This is the exact scenario used by the log-engine compaction test:
	// after 14 appends, compact() must delete every seqnum outside
	// cert_pool(14) union {14}.
	got := CertPool(14)
	want := []uint64{13, 4, 1}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("CertPool(14) = %v, want %v", got, want)
	}
}

func TestCertPoolProperties(t *testing.T) {
	for n := uint64(2); n < 500; n++ {
		pool := CertPool(n)
		if len(pool) == 0 {
			t.Fatalf("CertPool(%d) is empty", n)
		}
		if pool[len(pool)-1] != 1 {
			t.Fatalf("CertPool(%d) does not end at 1: %v", n, pool)
		}
		prev := n
		for _, s := range pool {
			if s >= prev {
				t.Fatalf("CertPool(%d) not strictly decreasing: %v", n, pool)
			}
			prev = s
		}
	}
}

func TestCertPoolTrivial(t *testing.T) {
	if got := CertPool(0); got != nil {
		t.Errorf("CertPool(0) = %v, want nil", got)
	}
	if got := CertPool(1); got != nil {
		t.Errorf("CertPool(1) = %v, want nil", got)
	}
}

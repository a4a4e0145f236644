package util

import (
	"fmt"
	"testing"
)

func TestBloomFilterMembership(t *testing.T) {
	bf := NewBloomFilter(100, 0.01)

	bf.Add([]byte("alpha"))
	bf.Add([]byte("beta"))

	if !bf.Test([]byte("alpha")) || !bf.Test([]byte("beta")) {
		t.Fatal("added elements must test positive")
	}
}

func TestScalableBloomFilterGrows(t *testing.T) {
	sbf, err := NewScalableBloomFilter(SBFConfig{
		InitialCapacity:      10,
		ErrorRate:            0.01,
		GrowthFactor:         2,
		ErrorTighteningRatio: 0.5,
	})
	if err != nil {
		t.Fatalf("NewScalableBloomFilter: %v", err)
	}

	for i := 0; i < 50; i++ {
		sbf.Add([]byte(fmt.Sprintf("item-%d", i)))
	}

	if sbf.Len() < 2 {
		t.Fatalf("Len() = %d, expected the filter stack to grow", sbf.Len())
	}
	for i := 0; i < 50; i++ {
		if !sbf.Test([]byte(fmt.Sprintf("item-%d", i))) {
			t.Fatalf("item-%d tested negative after add", i)
		}
	}
}

func TestScalableBloomFilterRejectsBadConfig(t *testing.T) {
	_, err := NewScalableBloomFilter(SBFConfig{InitialCapacity: 0, ErrorRate: 0.01, GrowthFactor: 2, ErrorTighteningRatio: 0.5})
	if err == nil {
		t.Fatal("expected error for zero capacity")
	}
}

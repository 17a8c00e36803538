package escrow

import (
	"errors"
	"testing"

	"escrowd/ledger"
)

func TestFindProgramAuthorityIsDeterministic(t *testing.T) {
	program := newTestAddress(0x01)
	first, firstBump, err := FindProgramAuthority(program)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	second, secondBump, err := FindProgramAuthority(program)
	if err != nil {
		t.Fatalf("derive again: %v", err)
	}
	if first != second || firstBump != secondBump {
		t.Fatal("derivation not stable across calls")
	}

	other, _, err := FindProgramAuthority(newTestAddress(0x02))
	if err != nil {
		t.Fatalf("derive other: %v", err)
	}
	if other == first {
		t.Fatal("distinct programs derived the same authority")
	}
}

func TestDerivedAuthorityValidatesStructurally(t *testing.T) {
	program := newTestAddress(0x01)
	authority, bump, err := FindProgramAuthority(program)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	recomputed, err := ledger.CreateProgramAddress(authoritySeeds(program), bump, program)
	if err != nil {
		t.Fatalf("recompute: %v", err)
	}
	if recomputed != authority {
		t.Fatal("CreateProgramAddress disagrees with the search result")
	}
}

func TestCheckAuthorityAccount(t *testing.T) {
	program := newTestAddress(0x01)
	if err := CheckAuthorityAccount(program, program); err != nil {
		t.Fatalf("own identity rejected: %v", err)
	}
	if err := CheckAuthorityAccount(newTestAddress(0x02), program); !errors.Is(err, ErrInvalidAuthorityID) {
		t.Fatalf("err = %v, want ErrInvalidAuthorityID", err)
	}
}

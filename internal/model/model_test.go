package model

import "testing"

func TestTimelineTableRoundTrip(t *testing.T) {
	for _, tl := range Timelines {
		code, ok := tl.StorageCode()
		if !ok {
			t.Fatalf("%s has no storage code", tl)
		}
		back, ok := TimelineFromStorage(code)
		if !ok || back != tl {
			t.Fatalf("round trip %s -> %s -> %s", tl, code, back)
		}
	}
	if _, ok := Timeline("_1y").StorageCode(); ok {
		t.Fatal("unknown api code mapped")
	}
	if _, ok := TimelineFromStorage("_0_3m"); ok {
		t.Fatal("api code accepted as storage code")
	}
}

func TestPatchApplyAndFields(t *testing.T) {
	name := "Ravi Kumar"
	tags := []string{"vip"}
	bhk := BHKThree
	p := BuyerPatch{FullName: &name, BHK: &bhk, Tags: &tags}

	before := Buyer{FullName: "Ravi", Phone: "9999999999", Tags: []string{}}
	after := p.Apply(before)

	if after.FullName != name || after.Phone != before.Phone || *after.BHK != BHKThree {
		t.Fatalf("unexpected apply result: %+v", after)
	}
	tags[0] = "mutated"
	if after.Tags[0] != "vip" {
		t.Fatal("Apply must copy tags")
	}
	if before.FullName != "Ravi" || before.BHK != nil {
		t.Fatal("Apply modified its input")
	}

	got := p.Fields()
	want := []string{"fullName", "bhk", "tags"}
	if len(got) != len(want) {
		t.Fatalf("fields = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("fields = %v, want %v", got, want)
		}
	}
	if len((BuyerPatch{}).Fields()) != 0 {
		t.Fatal("empty patch reports fields")
	}
}

func TestNeedsBHK(t *testing.T) {
	for _, p := range PropertyTypes {
		want := p == PropertyApartment || p == PropertyVilla
		if p.NeedsBHK() != want {
			t.Fatalf("%s: NeedsBHK = %v", p, !want)
		}
	}
}

func TestParseEnum(t *testing.T) {
	if v, ok := ParseEnum(Sources, "Walk_in"); !ok || v != SourceWalkIn {
		t.Fatalf("got %q %v", v, ok)
	}
	if _, ok := ParseEnum(Sources, "walk_in"); ok {
		t.Fatal("enum match must be exact")
	}
}

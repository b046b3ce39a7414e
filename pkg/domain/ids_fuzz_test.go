//go:build go1.18

package domain

import (
	"testing"
)

// FuzzParseSessionID checks that parsing never panics on arbitrary input and
// that accepted values round-trip through their canonical string form.
func FuzzParseSessionID(f *testing.F) {
	f.Add("")
	f.Add("550e8400-e29b-41d4-a716-446655440000")
	f.Add("00000000-0000-0000-0000-000000000000")
	f.Add("not-a-uuid")
	f.Add("'; DROP TABLE records;--")
	f.Add(string([]byte{0x00, 0x01, 0x02}))
	f.Add("550e8400-e29b-41d4-a716-446655440000\x00suffix")

	f.Fuzz(func(t *testing.T, input string) {
		id, err := ParseSessionID(input)
		if err != nil {
			return
		}
		roundTrip, err2 := ParseSessionID(id.String())
		if err2 != nil {
			t.Errorf("accepted value failed round-trip: %v", err2)
		}
		if roundTrip != id {
			t.Error("round-trip changed the ID value")
		}
	})
}

// FuzzParseIDsConsistent checks that the UUID-backed ID types share one
// validation behavior: an input accepted by one is accepted by all.
func FuzzParseIDsConsistent(f *testing.F) {
	f.Add("550e8400-e29b-41d4-a716-446655440000")
	f.Add("")
	f.Add("invalid")

	f.Fuzz(func(t *testing.T, input string) {
		_, errSession := ParseSessionID(input)
		_, errRecord := ParseRecordID(input)

		if (errSession == nil) != (errRecord == nil) {
			t.Error("inconsistent validation across ID types")
		}
	})
}

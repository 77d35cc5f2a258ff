package state_test

import (
	"encoding/json"
	"leica/authority"
	"leica/domain/state"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Fields", func() {
	It("should treat blank values as missing", func() {
		var nilTime *time.Time
		f := state.Fields{"blank": "  ", "nil": nil, "ptr": nilTime, "list": []string{}, "zero": 0, "text": "x"}
		Expect(f.Has("blank")).To(BeFalse())
		Expect(f.Has("nil")).To(BeFalse())
		Expect(f.Has("ptr")).To(BeFalse())
		Expect(f.Has("list")).To(BeFalse())
		Expect(f.Has("absent")).To(BeFalse())
		Expect(f.Has("zero")).To(BeTrue())
		Expect(f.Has("text")).To(BeTrue())
		Expect(f.Present("blank")).To(BeTrue())
		Expect(f.Present("absent")).To(BeFalse())
	})

	It("should convert numbers", func() {
		f := state.Fields{"f": float64(1200), "n": json.Number("35"), "s": " 7 ", "i": 3, "frac": 1.5, "bad": "x"}
		Expect(f.Int64("f")).To(Equal(int64(1200)))
		Expect(f.Int64("n")).To(Equal(int64(35)))
		Expect(f.Int64("s")).To(Equal(int64(7)))
		Expect(f.Int64("i")).To(Equal(int64(3)))
		_, err := f.Int64("frac")
		Expect(err).To(HaveOccurred())
		_, err = f.Int64("bad")
		Expect(err).To(HaveOccurred())
		_, err = f.Int64("absent")
		Expect(err).To(MatchError("field absent is missing"))
	})

	It("should convert times to UTC", func() {
		local := time.Date(2021, 5, 1, 12, 0, 0, 0, time.FixedZone("CEST", 2*3600))
		f := state.Fields{"t": local, "p": &local, "s": "2021-05-01T12:00:00+02:00", "bad": "tomorrow"}
		expected := time.Date(2021, 5, 1, 10, 0, 0, 0, time.UTC)
		Expect(f.Time("t")).To(Equal(expected))
		Expect(f.Time("p")).To(Equal(expected))
		Expect(f.Time("s")).To(Equal(expected))
		_, err := f.Time("bad")
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("Permission", func() {
	doc := &document{owner: "u1"}

	It("should deny nil actors", func() {
		p := &state.Permission{Name: "p", Roles: state.Roles(authority.RoleSystem)}
		Expect(p.Evaluate(nil, doc, time.Now())).To(BeFalse())
	})

	It("should grant the owner role to owners only", func() {
		p := &state.Permission{Name: "p", Roles: state.Roles(authority.RoleOwner)}
		Expect(p.Evaluate(actor{id: "u1"}, doc, time.Now())).To(BeTrue())
		Expect(p.Evaluate(actor{id: "u2"}, doc, time.Now())).To(BeFalse())
		Expect(state.EffectiveRoles(actor{id: "u1", roles: state.Roles(authority.RoleCustomer)}, doc)).
			To(Equal(state.Roles(authority.RoleCustomer, authority.RoleOwner)))
	})

	It("should run the check after roles matched", func() {
		calls := 0
		p := &state.Permission{Name: "p", Roles: state.Roles(authority.RoleQA),
			Check: func(a state.Principal, d state.Document, now time.Time) bool { calls++; return false }}
		Expect(p.Evaluate(actor{id: "x", roles: state.Roles(authority.RoleCustomer)}, doc, time.Now())).To(BeFalse())
		Expect(calls).To(Equal(0))
		Expect(p.Evaluate(actor{id: "x", roles: state.Roles(authority.RoleQA)}, doc, time.Now())).To(BeFalse())
		Expect(calls).To(Equal(1))
	})
})

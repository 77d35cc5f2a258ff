package state_test

import (
	"leica/domain/state"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("History", func() {
	t0 := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)

	It("should validate the from/to chain", func() {
		h := state.History{
			{Date: t0, From: "created", To: "pending"},
			{Date: t0.Add(time.Hour), From: "pending", To: "published"},
		}
		Expect(h.Validate()).To(Succeed())

		h = append(h, state.HistoryEntry{Date: t0.Add(2 * time.Hour), From: "pending", To: "asigned"})
		err := h.Validate()
		Expect(err).To(HaveOccurred())
		Expect(err.(*state.ChainError).Index).To(Equal(2))
		Expect(err.(*state.ChainError).Expected).To(Equal("published"))
	})

	It("should repair out of order entries without touching the original", func() {
		h := state.History{
			{Date: t0.Add(time.Hour), From: "pending", To: "published"},
			{Date: t0, From: "created", To: "pending"},
			{Date: t0.Add(2 * time.Hour), From: "unknown", To: "assigned"},
		}
		repaired, changed := h.Repair()
		Expect(changed).To(BeTrue())
		Expect(repaired.Validate()).To(Succeed())
		Expect(repaired[0].To).To(Equal("pending"))
		Expect(repaired[2].From).To(Equal("published"))
		Expect(h[0].To).To(Equal("published"))

		_, changed = repaired.Repair()
		Expect(changed).To(BeFalse())
	})

	It("should be stored as json text", func() {
		var empty state.History
		v, err := empty.Value()
		Expect(err).To(BeNil())
		Expect(v).To(Equal("[]"))

		h := state.History{{Date: t0, From: "a", To: "b", Transition: "go", Actor: "u1", Message: "m"}}
		v, err = h.Value()
		Expect(err).To(BeNil())

		var loaded state.History
		Expect(loaded.Scan(v)).To(Succeed())
		Expect(loaded).To(Equal(h))
		Expect(loaded.Scan([]byte(v.(string)))).To(Succeed())
		Expect(loaded).To(Equal(h))

		Expect(loaded.Scan(nil)).To(Succeed())
		Expect(loaded).To(BeEmpty())
		Expect(loaded.Scan(42)).To(HaveOccurred())
	})

	It("should report the last entry", func() {
		_, found := state.History{}.Last()
		Expect(found).To(BeFalse())
		last, found := state.History{{To: "a"}, {To: "b"}}.Last()
		Expect(found).To(BeTrue())
		Expect(last.To).To(Equal("b"))
	})
})

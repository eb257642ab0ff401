package tlb

import (
	"github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/memsym/mem/vm"
	"github.com/sarchlab/memsym/mem/vm/tlb/internal"
)

func fillWithPages(t *TLB, pid vm.PID, numPages int, start uint64) {
	for i := 0; i < numPages; i++ {
		_, _, evicted := t.Insert(
			vm.Page{PID: pid, VPN: uint64(i), PFN: uint64(i + 100)},
			start+uint64(i))
		Expect(evicted).To(BeFalse())
	}
}

func countValid(t *TLB, pid vm.PID, vpn uint64) int {
	n := 0
	for _, e := range t.Entries() {
		if e.Valid && e.PID == pid && e.VPN == vpn {
			n++
		}
	}

	return n
}

var _ = ginkgo.Describe("TLB", func() {
	var (
		mockCtrl *gomock.Controller
		set      *MockSet
	)

	ginkgo.BeforeEach(func() {
		mockCtrl = gomock.NewController(ginkgo.GinkgoT())
		set = NewMockSet(mockCtrl)
	})

	ginkgo.AfterEach(func() {
		mockCtrl.Finish()
	})

	ginkgo.It("should build with 8 invalid entries by default", func() {
		t := MakeBuilder().Build()

		Expect(t.NumEntries()).To(Equal(8))
		Expect(t.Policy().Name()).To(Equal("FIFO"))
		for i, e := range t.Entries() {
			Expect(e.Valid).To(BeFalse())
			Expect(e.Slot).To(Equal(i))
		}
	})

	ginkgo.It("should miss on an empty TLB", func() {
		t := MakeBuilder().Build()

		_, found := t.Lookup(0, 1, 1)

		Expect(found).To(BeFalse())
	})

	ginkgo.Context("capacity", func() {
		ginkgo.It("should fill all slots in order without eviction", func() {
			t := MakeBuilder().Build()

			fillWithPages(t, 0, 8, 1)

			for i, e := range t.Entries() {
				Expect(e.Valid).To(BeTrue())
				Expect(e.VPN).To(Equal(uint64(i)))
				Expect(e.Timestamp).To(Equal(uint64(i + 1)))
			}
		})

		ginkgo.It("should evict exactly once on the 9th page", func() {
			t := MakeBuilder().Build()
			fillWithPages(t, 0, 8, 1)

			slot, victim, evicted := t.Insert(
				vm.Page{PID: 0, VPN: 8, PFN: 108}, 9)

			Expect(evicted).To(BeTrue())
			Expect(slot).To(Equal(0))
			Expect(victim.VPN).To(Equal(uint64(0)))

			valid := 0
			for _, e := range t.Entries() {
				if e.Valid {
					valid++
				}
			}
			Expect(valid).To(Equal(8))
		})
	})

	ginkgo.Context("FIFO", func() {
		ginkgo.It("should evict the first inserted entry even after a hit", func() {
			t := MakeBuilder().WithPolicy(FIFOPolicy{}).Build()
			fillWithPages(t, 0, 8, 1)

			e, found := t.Lookup(0, 0, 9)
			Expect(found).To(BeTrue())
			Expect(e.Timestamp).To(Equal(uint64(1)))

			_, victim, evicted := t.Insert(vm.Page{PID: 0, VPN: 8, PFN: 108}, 10)

			Expect(evicted).To(BeTrue())
			Expect(victim.VPN).To(Equal(uint64(0)))
			_, found = t.Lookup(0, 0, 11)
			Expect(found).To(BeFalse())
		})

		ginkgo.It("should not visit the set on hit", func() {
			t := &TLB{set: set, policy: FIFOPolicy{}}
			set.EXPECT().Lookup(vm.PID(1), uint64(3)).Return(2, true)
			set.EXPECT().Block(2).Return(internal.Block{
				WayID: 2,
				Page:  vm.Page{PID: 1, VPN: 3, PFN: 4, Valid: true},
			})

			e, found := t.Lookup(1, 3, 5)

			Expect(found).To(BeTrue())
			Expect(e.Slot).To(Equal(2))
			Expect(e.PFN).To(Equal(uint64(4)))
		})
	})

	ginkgo.Context("LRU", func() {
		ginkgo.It("should keep the recently used entry", func() {
			t := MakeBuilder().WithPolicy(LRUPolicy{}).Build()
			fillWithPages(t, 0, 8, 1)

			e, found := t.Lookup(0, 0, 9)
			Expect(found).To(BeTrue())
			Expect(e.Timestamp).To(Equal(uint64(9)))

			_, victim, evicted := t.Insert(vm.Page{PID: 0, VPN: 8, PFN: 108}, 10)

			Expect(evicted).To(BeTrue())
			Expect(victim.VPN).To(Equal(uint64(1)))
			_, found = t.Lookup(0, 0, 11)
			Expect(found).To(BeTrue())
		})

		ginkgo.It("should visit the set on hit", func() {
			t := &TLB{set: set, policy: LRUPolicy{}}
			set.EXPECT().Lookup(vm.PID(1), uint64(3)).Return(2, true)
			set.EXPECT().Visit(2, uint64(5))
			set.EXPECT().Block(2).Return(internal.Block{
				WayID:     2,
				Page:      vm.Page{PID: 1, VPN: 3, PFN: 4, Valid: true},
				Timestamp: 5,
			})

			e, found := t.Lookup(1, 3, 5)

			Expect(found).To(BeTrue())
			Expect(e.Timestamp).To(Equal(uint64(5)))
		})
	})

	ginkgo.It("should break timestamp ties by the lowest slot", func() {
		t := MakeBuilder().WithPolicy(LRUPolicy{}).Build()
		for i := 0; i < 8; i++ {
			t.Insert(vm.Page{PID: 0, VPN: uint64(i), PFN: 1}, 7)
		}

		slot, victim, evicted := t.Insert(vm.Page{PID: 0, VPN: 9, PFN: 1}, 8)

		Expect(evicted).To(BeTrue())
		Expect(slot).To(Equal(0))
		Expect(victim.VPN).To(Equal(uint64(0)))
	})

	ginkgo.It("should overwrite a matching entry in place", func() {
		t := MakeBuilder().Build()
		t.Insert(vm.Page{PID: 0, VPN: 1, PFN: 1}, 1)
		t.Insert(vm.Page{PID: 0, VPN: 5, PFN: 1}, 2)

		slot, _, evicted := t.Insert(vm.Page{PID: 0, VPN: 5, PFN: 2}, 3)

		Expect(evicted).To(BeFalse())
		Expect(slot).To(Equal(1))
		Expect(countValid(t, 0, 5)).To(Equal(1))
		Expect(t.Entry(1).PFN).To(Equal(uint64(2)))
	})

	ginkgo.It("should distinguish entries by process", func() {
		t := MakeBuilder().Build()
		t.Insert(vm.Page{PID: 0, VPN: 1, PFN: 1}, 1)
		t.Insert(vm.Page{PID: 1, VPN: 1, PFN: 2}, 2)

		e0, found0 := t.Lookup(0, 1, 3)
		e1, found1 := t.Lookup(1, 1, 3)
		_, found2 := t.Lookup(2, 1, 3)

		Expect(found0).To(BeTrue())
		Expect(found1).To(BeTrue())
		Expect(found2).To(BeFalse())
		Expect(e0.PFN).To(Equal(uint64(1)))
		Expect(e1.PFN).To(Equal(uint64(2)))
	})

	ginkgo.It("should invalidate and reuse the lowest free slot", func() {
		t := MakeBuilder().Build()
		fillWithPages(t, 0, 8, 1)

		Expect(t.Invalidate(0, 3)).To(Equal(1))
		Expect(t.Invalidate(0, 3)).To(Equal(0))
		_, found := t.Lookup(0, 3, 9)
		Expect(found).To(BeFalse())

		slot, _, evicted := t.Insert(vm.Page{PID: 0, VPN: 20, PFN: 1}, 10)
		Expect(evicted).To(BeFalse())
		Expect(slot).To(Equal(3))
	})

	ginkgo.It("should only invalidate the entries of the given process", func() {
		t := MakeBuilder().Build()
		t.Insert(vm.Page{PID: 0, VPN: 1, PFN: 1}, 1)
		t.Insert(vm.Page{PID: 1, VPN: 1, PFN: 1}, 2)

		Expect(t.Invalidate(1, 1)).To(Equal(1))

		_, found := t.Lookup(0, 1, 3)
		Expect(found).To(BeTrue())
	})

	ginkgo.It("should reset", func() {
		t := MakeBuilder().Build()
		fillWithPages(t, 0, 8, 1)

		t.Reset()

		for _, e := range t.Entries() {
			Expect(e.Valid).To(BeFalse())
		}
	})

	ginkgo.It("should parse policies", func() {
		p, err := ParsePolicy("fifo")
		Expect(err).NotTo(HaveOccurred())
		Expect(p).To(Equal(FIFOPolicy{}))

		p, err = ParsePolicy("LRU")
		Expect(err).NotTo(HaveOccurred())
		Expect(p).To(Equal(LRUPolicy{}))

		_, err = ParsePolicy("random")
		Expect(err).To(HaveOccurred())
	})
})

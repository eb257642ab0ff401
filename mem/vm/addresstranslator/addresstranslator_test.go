package addresstranslator

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/memsym/mem/vm"
	"github.com/sarchlab/memsym/mem/vm/tlb"
)

var _ = Describe("AddressTranslator", func() {
	var (
		layout    vm.AddressLayout
		pageTable vm.PageTable
		t         *tlb.TLB
		at        *Comp
	)

	BeforeEach(func() {
		layout = vm.AddressLayout{OffsetBits: 4, PFNBits: 4, VPNBits: 4}
		pageTable = vm.NewPageTable(4, layout.VPNSpace())
		t = tlb.MakeBuilder().WithPolicy(tlb.LRUPolicy{}).Build()
		at = MakeBuilder().
			WithLayout(layout).
			WithTLB(t).
			WithPageTable(pageTable).
			Build()
	})

	It("should fail on an unmapped page", func() {
		trans, err := at.Translate(0, 37, 1)

		var notMapped *vm.NotMappedError
		Expect(err).To(BeAssignableToTypeOf(notMapped))
		Expect(trans.Hit).To(BeFalse())
		Expect(trans.VPN).To(Equal(uint64(2)))
		Expect(trans.Offset).To(Equal(uint64(5)))
	})

	It("should fill the TLB from the page table on a miss", func() {
		pageTable.Insert(vm.Page{PID: 0, VPN: 2, PFN: 3})

		trans, err := at.Translate(0, 37, 1)

		Expect(err).NotTo(HaveOccurred())
		Expect(trans.Hit).To(BeFalse())
		Expect(trans.Slot).To(Equal(0))
		Expect(trans.PFN).To(Equal(uint64(3)))
		Expect(trans.PAddr).To(Equal(uint64(3<<4 | 5)))
		Expect(trans.Evicted).To(BeFalse())
		Expect(t.Entry(0)).To(Equal(tlb.Entry{
			Slot: 0, VPN: 2, PFN: 3, PID: 0, Valid: true, Timestamp: 1,
		}))
	})

	It("should hit after a fill", func() {
		pageTable.Insert(vm.Page{PID: 0, VPN: 2, PFN: 3})
		_, _ = at.Translate(0, 37, 1)

		trans, err := at.Translate(0, 33, 2)

		Expect(err).NotTo(HaveOccurred())
		Expect(trans.Hit).To(BeTrue())
		Expect(trans.Slot).To(Equal(0))
		Expect(trans.PAddr).To(Equal(uint64(3<<4 | 1)))
		Expect(t.Entry(0).Timestamp).To(Equal(uint64(2)))
	})

	It("should not use the mappings of other processes", func() {
		at.Map(1, 2, 3, 1)

		_, err := at.Translate(0, 37, 2)

		Expect(err).To(HaveOccurred())
	})

	It("should fail for pages beyond the virtual space", func() {
		_, err := at.Translate(0, 1<<8, 1)

		Expect(err).To(HaveOccurred())
	})

	It("should map into both the page table and the TLB", func() {
		slot, _, evicted := at.Map(0, 2, 3, 1)

		Expect(slot).To(Equal(0))
		Expect(evicted).To(BeFalse())
		page, found := pageTable.Find(0, 2)
		Expect(found).To(BeTrue())
		Expect(page.PFN).To(Equal(uint64(3)))

		trans, _ := at.Translate(0, 37, 2)
		Expect(trans.Hit).To(BeTrue())
	})

	It("should overwrite an existing mapping", func() {
		at.Map(0, 2, 3, 1)
		at.Map(0, 2, 7, 2)

		page, _ := pageTable.Find(0, 2)
		Expect(page.PFN).To(Equal(uint64(7)))

		n := 0
		for _, e := range t.Entries() {
			if e.Valid && e.VPN == 2 {
				n++
				Expect(e.PFN).To(Equal(uint64(7)))
			}
		}
		Expect(n).To(Equal(1))
	})

	It("should unmap from both the page table and the TLB", func() {
		at.Map(0, 2, 3, 1)

		Expect(at.Unmap(0, 2)).To(Equal(1))

		_, found := pageTable.Find(0, 2)
		Expect(found).To(BeFalse())
		_, err := at.Translate(0, 37, 2)
		Expect(err).To(HaveOccurred())
	})
})

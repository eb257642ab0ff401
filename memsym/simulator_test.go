package memsym

import (
	"errors"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/memsym/mem/vm"
	"github.com/sarchlab/memsym/mem/vm/tlb"
	"github.com/sarchlab/memsym/sim/hooking"
)

func parseLine(line string) Command {
	tokens := strings.Fields(line)
	return Command{Name: tokens[0], Args: tokens[1:]}
}

func execAll(s *Simulator, lines ...string) {
	for _, line := range lines {
		Expect(s.Execute(parseLine(line))).To(Succeed(), line)
	}
}

type posMatcher struct {
	pos *hooking.HookPos
}

func (m posMatcher) Matches(x any) bool {
	ctx, ok := x.(hooking.HookCtx)
	return ok && ctx.Pos == m.pos
}

func (m posMatcher) String() string {
	return "is invoked at " + m.pos.Name
}

func atPos(pos *hooking.HookPos) gomock.Matcher {
	return posMatcher{pos: pos}
}

// itemCollector is a hook that keeps every item it sees, optionally only at
// some positions.
type itemCollector struct {
	positions []*hooking.HookPos
	items     []interface{}
}

func newItemCollector(positions ...*hooking.HookPos) *itemCollector {
	return &itemCollector{positions: positions}
}

func (c *itemCollector) Func(ctx hooking.HookCtx) {
	if len(c.positions) == 0 {
		c.items = append(c.items, ctx.Item)
		return
	}

	for _, p := range c.positions {
		if p == ctx.Pos {
			c.items = append(c.items, ctx.Item)
			return
		}
	}
}

func (c *itemCollector) Items() []interface{} {
	return c.items
}

func fillEvents(items []interface{}) []TLBFillEvent {
	var fills []TLBFillEvent

	for _, item := range items {
		if fill, ok := item.(TLBFillEvent); ok {
			fills = append(fills, fill)
		}
	}

	return fills
}

var _ = Describe("Simulator", func() {
	var (
		mockCtrl  *gomock.Controller
		s         *Simulator
		collector *itemCollector
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		s = MakeBuilder().Build()
		collector = newItemCollector()
		s.AcceptHook(collector)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	Context("before configuration", func() {
		DescribeTable("should reject any other command with a SequenceError",
			func(line string) {
				err := s.Execute(parseLine(line))

				var seqErr *SequenceError
				Expect(errors.As(err, &seqErr)).To(BeTrue())
				Expect(s.State()).To(Equal(StateUnconfigured))
			},
			Entry("valid load", "load r1 #1"),
			Entry("invalid load", "load r9 #abc"),
			Entry("switch", "ctxswitch 7"),
			Entry("add", "add"),
			Entry("map", "map 0 1"),
			Entry("unknown command", "jump 3"),
			Entry("inspect", "rinspect r1"),
		)

		It("should report exactly one error event", func() {
			s = MakeBuilder().Build()
			hook := NewMockHook(mockCtrl)
			s.AcceptHook(hook)
			hook.EXPECT().Func(atPos(HookPosError)).Do(func(ctx hooking.HookCtx) {
				event := ctx.Item.(ErrorEvent)
				Expect(event.PID).To(Equal(vm.PID(0)))
				Expect(event.Err).To(MatchError(
					"attempt to execute instruction before define"))
			})

			Expect(s.Add()).NotTo(Succeed())
		})
	})

	Context("configuration", func() {
		It("should allocate the machine", func() {
			Expect(s.Configure(2, 3, 4)).To(Succeed())

			Expect(s.State()).To(Equal(StateReady))
			Expect(s.storage.Capacity()).To(Equal(uint64(32)))
			Expect(s.pageTable.NumProcesses()).To(Equal(4))
			Expect(s.pageTable.NumPages()).To(Equal(uint64(16)))
			Expect(s.tlb.NumEntries()).To(Equal(8))
			Expect(collector.Items()).To(Equal([]interface{}{
				ConfigureEvent{
					EventMeta: EventMeta{PID: 0, Clock: 1},
					Layout:    vm.AddressLayout{OffsetBits: 2, PFNBits: 3, VPNBits: 4},
				},
			}))
		})

		It("should fail with a ConfigError the second time", func() {
			Expect(s.Configure(2, 2, 2)).To(Succeed())

			err := s.Execute(parseLine("define x y z"))

			var configErr *ConfigError
			Expect(errors.As(err, &configErr)).To(BeTrue())
		})

		DescribeTable("should reject layouts that cannot be allocated",
			func(line string) {
				err := s.Execute(parseLine(line))

				var validationErr *ValidationError
				Expect(errors.As(err, &validationErr)).To(BeTrue())
				Expect(s.State()).To(Equal(StateUnconfigured))

				err = s.Execute(parseLine("store 5 #7"))
				Expect(errors.As(err, &validationErr)).To(BeTrue())
			},
			Entry("physical space too large", "define 20 20 2"),
			Entry("virtual space too large", "define 2 2 21"),
			Entry("offset width wrapping the sum",
				"define 18446744073709551615 1 2"),
			Entry("PFN width wrapping the sum",
				"define 1 18446744073709551615 2"),
		)
	})

	Context("when configured", func() {
		BeforeEach(func() {
			Expect(s.Configure(4, 4, 4)).To(Succeed())
		})

		It("should decompose addresses with the offset bits", func() {
			execAll(s, "map 2 3", "store 37 #9")

			Expect(s.storage.Read(3<<4 | 5)).To(Equal(uint32(9)))
			items := collector.Items()
			Expect(items[len(items)-1]).To(Equal(StoreImmediateEvent{
				EventMeta: EventMeta{PID: 0, Clock: 3},
				VAddr:     37,
				PAddr:     53,
				Value:     9,
			}))
		})

		It("should keep registers across context switches", func() {
			execAll(s, "load r1 #5", "ctxswitch 1")
			Expect(s.Context(1).R1).To(Equal(uint32(0)))

			execAll(s, "load r1 #8", "ctxswitch 0")

			Expect(s.CurrentPID()).To(Equal(vm.PID(0)))
			Expect(s.Context(0).R1).To(Equal(uint32(5)))
			Expect(s.Context(1).R1).To(Equal(uint32(8)))
		})

		It("should reject switching to a process that does not exist", func() {
			err := s.Switch(4)

			var validationErr *ValidationError
			Expect(errors.As(err, &validationErr)).To(BeTrue())
			Expect(err).To(MatchError("invalid context switch to process 4"))

			var switchErr *SwitchError
			Expect(errors.As(err, &switchErr)).To(BeTrue())
			Expect(switchErr.Target).To(Equal("4"))
			Expect(s.CurrentPID()).To(Equal(vm.PID(0)))
		})

		It("should add with 32-bit wraparound", func() {
			Expect(s.Load(R1, Immediate(4294967295))).To(Succeed())
			Expect(s.Load(R2, Immediate(1))).To(Succeed())

			Expect(s.Add()).To(Succeed())

			Expect(s.Context(0).R1).To(Equal(uint32(0)))
			items := collector.Items()
			Expect(items[len(items)-1]).To(Equal(AddEvent{
				EventMeta: EventMeta{PID: 0, Clock: 4},
				R1:        4294967295,
				R2:        1,
				Result:    0,
			}))
		})

		DescribeTable("should reject registers that do not exist",
			func(op func(s *Simulator) error) {
				err := op(s)

				var validationErr *ValidationError
				Expect(errors.As(err, &validationErr)).To(BeTrue())
				Expect(s.Context(0)).To(Equal(ProcessContext{}))
			},
			Entry("load destination", func(s *Simulator) error {
				return s.Load(Register(7), Immediate(9))
			}),
			Entry("store source", func(s *Simulator) error {
				execAll(s, "map 0 1")
				return s.Store(0, RegisterOperand(Register(5)))
			}),
			Entry("inspected register", func(s *Simulator) error {
				return s.InspectRegister(Register(-1))
			}),
		)

		DescribeTable("should reject malformed operands",
			func(line string) {
				err := s.Execute(parseLine(line))

				var validationErr *ValidationError
				Expect(errors.As(err, &validationErr)).To(BeTrue())
			},
			Entry("unknown register", "load r3 #1"),
			Entry("malformed immediate", "load r1 #one"),
			Entry("immediate beyond 32 bits", "load r1 #4294967296"),
			Entry("register as load source", "load r1 r2"),
			Entry("address as store source", "store 0 16"),
			Entry("wrong number of operands", "map 1"),
			Entry("negative page", "unmap -1"),
			Entry("page out of range", "map 16 0"),
			Entry("frame out of range", "map 0 16"),
			Entry("unknown command", "jump 3"),
			Entry("TLB entry out of range", "tinspect 8"),
		)

		It("should store registers", func() {
			execAll(s, "map 1 2", "load r2 #77", "store 16 r2")

			Expect(s.storage.Read(2 << 4)).To(Equal(uint32(77)))
			items := collector.Items()
			Expect(items[len(items)-1]).To(BeAssignableToTypeOf(StoreRegisterEvent{}))
		})

		It("should fail on unmapped pages", func() {
			err := s.Execute(parseLine("load r1 16"))

			var transErr *TranslationError
			Expect(errors.As(err, &transErr)).To(BeTrue())
			Expect(transErr.VPN).To(Equal(uint64(1)))

			var notMapped *vm.NotMappedError
			Expect(errors.As(err, &notMapped)).To(BeTrue())

			items := collector.Items()
			Expect(items).To(HaveLen(3))
			Expect(items[1]).To(BeAssignableToTypeOf(TLBMissEvent{}))
			Expect(items[2]).To(BeAssignableToTypeOf(ErrorEvent{}))
		})

		It("should fail on a page after it has been unmapped", func() {
			execAll(s, "map 3 1", "load r1 48", "unmap 3")

			for _, e := range s.tlb.Entries() {
				Expect(e.Valid && e.VPN == 3).To(BeFalse())
			}

			err := s.Execute(parseLine("load r1 48"))

			var transErr *TranslationError
			Expect(errors.As(err, &transErr)).To(BeTrue())
		})

		It("should only unmap the pages of the current process", func() {
			execAll(s, "map 3 1", "ctxswitch 1", "map 3 2", "unmap 3",
				"ctxswitch 0", "load r1 48")

			Expect(s.Stats().Hits).To(Equal(uint64(1)))
		})

		It("should keep one TLB entry when a page is mapped twice", func() {
			Expect(s.storage.Write(5<<4, 55)).To(Succeed())

			execAll(s, "map 3 4", "map 3 5", "load r1 48")

			n := 0
			for _, e := range s.tlb.Entries() {
				if e.Valid && e.VPN == 3 && e.PID == 0 {
					n++
					Expect(e.PFN).To(Equal(uint64(5)))
				}
			}
			Expect(n).To(Equal(1))
			Expect(s.Context(0).R1).To(Equal(uint32(55)))
		})

		It("should stop after the first error", func() {
			Expect(s.Switch(9)).NotTo(Succeed())
			n := len(collector.Items())

			err := s.Add()

			var halted *HaltedError
			Expect(errors.As(err, &halted)).To(BeTrue())
			Expect(len(collector.Items())).To(Equal(n))
			Expect(s.Halted()).To(HaveOccurred())
		})

		It("should report inspections", func() {
			execAll(s, "map 2 3", "store 32 #6", "load r2 #4",
				"rinspect r2", "pinspect 2", "pinspect 5", "tinspect 0",
				"linspect 48")

			items := collector.Items()
			Expect(items[len(items)-5:]).To(Equal([]interface{}{
				RegisterInspectEvent{
					EventMeta: EventMeta{Clock: 5}, Register: R2, Value: 4,
				},
				PageTableInspectEvent{
					EventMeta: EventMeta{Clock: 6}, VPN: 2, PFN: 3, Valid: true,
				},
				PageTableInspectEvent{
					EventMeta: EventMeta{Clock: 7}, VPN: 5,
				},
				TLBInspectEvent{
					EventMeta: EventMeta{Clock: 8},
					Entry: tlb.Entry{
						Slot: 0, VPN: 2, PFN: 3, Valid: true, Timestamp: 2,
					},
				},
				LocationInspectEvent{
					EventMeta: EventMeta{Clock: 9}, PAddr: 48, Value: 6,
				},
			}))
		})
	})

	Context("TLB replacement", func() {
		setUp := func(policy tlb.Policy) {
			s = MakeBuilder().WithPolicy(policy).Build()
			collector = newItemCollector(HookPosTranslate)
			s.AcceptHook(collector)
			Expect(s.Configure(4, 4, 4)).To(Succeed())

			for vpn := uint64(0); vpn <= 8; vpn++ {
				s.pageTable.Insert(vm.Page{PID: 0, VPN: vpn, PFN: vpn})
			}
		}

		loadPage := func(vpn uint64) {
			Expect(s.Load(R1, Address(vpn<<4))).To(Succeed())
		}

		It("should fill 8 slots without eviction and evict once after", func() {
			setUp(tlb.FIFOPolicy{})

			for vpn := uint64(0); vpn < 8; vpn++ {
				loadPage(vpn)
			}

			Expect(s.Stats().Misses).To(Equal(uint64(8)))
			Expect(s.Stats().Evictions).To(Equal(uint64(0)))
			for _, e := range s.tlb.Entries() {
				Expect(e.Valid).To(BeTrue())
			}

			loadPage(8)

			Expect(s.Stats().Evictions).To(Equal(uint64(1)))
		})

		It("should evict the first inserted page under FIFO", func() {
			setUp(tlb.FIFOPolicy{})
			for vpn := uint64(0); vpn < 8; vpn++ {
				loadPage(vpn)
			}
			loadPage(0)
			Expect(s.Stats().Hits).To(Equal(uint64(1)))

			loadPage(8)

			fills := fillEvents(collector.Items())
			last := fills[len(fills)-1]
			Expect(last.Evicted).To(BeTrue())
			Expect(last.Victim.VPN).To(Equal(uint64(0)))
			Expect(last.Slot).To(Equal(0))

			loadPage(0)
			Expect(s.Stats().Misses).To(Equal(uint64(10)))
		})

		It("should keep the recently used page under LRU", func() {
			setUp(tlb.LRUPolicy{})
			for vpn := uint64(0); vpn < 8; vpn++ {
				loadPage(vpn)
			}
			loadPage(0)

			loadPage(8)

			fills := fillEvents(collector.Items())
			last := fills[len(fills)-1]
			Expect(last.Evicted).To(BeTrue())
			Expect(last.Victim.VPN).To(Equal(uint64(1)))

			loadPage(0)
			Expect(s.Stats().Hits).To(Equal(uint64(2)))
		})
	})

	It("should run the end-to-end scenario", func() {
		hook := NewMockHook(mockCtrl)
		s = MakeBuilder().Build()
		s.AcceptHook(hook)

		gomock.InOrder(
			hook.EXPECT().Func(atPos(HookPosConfigure)),
			hook.EXPECT().Func(atPos(HookPosMap)),
			hook.EXPECT().Func(atPos(HookPosTranslate)).
				Do(func(ctx hooking.HookCtx) {
					Expect(ctx.Item).To(Equal(TLBHitEvent{
						EventMeta: EventMeta{Clock: 3}, VPN: 0, Slot: 0, PFN: 1,
					}))
				}),
			hook.EXPECT().Func(atPos(HookPosStore)),
			hook.EXPECT().Func(atPos(HookPosTranslate)),
			hook.EXPECT().Func(atPos(HookPosLoad)).
				Do(func(ctx hooking.HookCtx) {
					Expect(ctx.Item).To(Equal(LoadMemoryEvent{
						EventMeta: EventMeta{Clock: 4},
						Register:  R1,
						VAddr:     0,
						PAddr:     4,
						Value:     7,
					}))
				}),
		)

		execAll(s, "configure 2 2 2", "map 0 1", "store 0 #7", "load r1 0")

		Expect(s.Context(0).R1).To(Equal(uint32(7)))
	})

	It("should take a snapshot", func() {
		execAll(s, "define 2 2 2", "map 1 3", "load r1 #3")

		snapshot := s.Snapshot()

		Expect(snapshot.State).To(Equal("Ready"))
		Expect(snapshot.Policy).To(Equal("FIFO"))
		Expect(snapshot.Clock).To(Equal(uint64(3)))
		Expect(snapshot.TLB).To(HaveLen(8))
		Expect(snapshot.Pages[0]).To(Equal([]vm.Page{
			{PID: 0, VPN: 1, PFN: 3, Valid: true},
		}))
		Expect(snapshot.Pages[1]).To(BeEmpty())
		Expect(snapshot.Contexts[0].R1).To(Equal(uint32(3)))
	})
})

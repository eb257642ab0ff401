package memsym

// InspectRegister reports a register of the current process.
func (s *Simulator) InspectRegister(r Register) error {
	return s.run(false, func() error { return s.inspectRegister(r) })
}

func (s *Simulator) inspectRegister(r Register) error {
	if err := s.checkRegister(r); err != nil {
		return err
	}

	s.emit(HookPosInspect, RegisterInspectEvent{
		EventMeta: s.meta(),
		Register:  r,
		Value:     s.currentContext().Get(r),
	})

	return nil
}

// InspectPageTable reports the page-table entry of a virtual page of the
// current process.
func (s *Simulator) InspectPageTable(vpn uint64) error {
	return s.run(false, func() error { return s.inspectPageTable(vpn) })
}

func (s *Simulator) inspectPageTable(vpn uint64) error {
	if vpn >= s.layout.VPNSpace() {
		return s.invalid("virtual page number %d out of range", vpn)
	}

	page, found := s.pageTable.Find(s.currentPID, vpn)
	s.emit(HookPosInspect, PageTableInspectEvent{
		EventMeta: s.meta(),
		VPN:       vpn,
		PFN:       page.PFN,
		Valid:     found,
	})

	return nil
}

// InspectTLB reports the content of a TLB slot.
func (s *Simulator) InspectTLB(slot int) error {
	return s.run(false, func() error { return s.inspectTLB(slot) })
}

func (s *Simulator) inspectTLB(slot int) error {
	if slot < 0 || slot >= s.tlb.NumEntries() {
		return s.invalid("TLB entry %d out of range", slot)
	}

	s.emit(HookPosInspect, TLBInspectEvent{
		EventMeta: s.meta(),
		Entry:     s.tlb.Entry(slot),
	})

	return nil
}

// InspectLocation reports the word at a physical address.
func (s *Simulator) InspectLocation(pAddr uint64) error {
	return s.run(false, func() error { return s.inspectLocation(pAddr) })
}

func (s *Simulator) inspectLocation(pAddr uint64) error {
	v, err := s.storage.Read(pAddr)
	if err != nil {
		return s.invalid("physical location %d out of range", pAddr)
	}

	s.emit(HookPosInspect, LocationInspectEvent{
		EventMeta: s.meta(),
		PAddr:     pAddr,
		Value:     v,
	})

	return nil
}

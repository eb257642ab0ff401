package vm

import "fmt"

// A Page is an entry in the page table, maintaining the information about how
// to translate a virtual page to a physical frame.
type Page struct {
	PID   PID
	VPN   uint64
	PFN   uint64
	Valid bool
}

// A PageTable holds the pages of every process. It is the authoritative
// source of all the mappings.
type PageTable interface {
	// Insert installs the page, replacing the entry of the same PID and VPN.
	Insert(page Page)

	// Remove clears the entry of the given PID and VPN.
	Remove(pid PID, vpn uint64)

	// Find returns the valid page of the given PID and VPN. The bool return
	// value indicates if the page is found or not.
	Find(pid PID, vpn uint64) (Page, bool)

	// Update changes the PFN of an existing valid page.
	Update(page Page)

	// NumProcesses returns the number of processes that own a table.
	NumProcesses() int

	// NumPages returns the number of entries in each table.
	NumPages() uint64
}

// NewPageTable creates a PageTable with one table of numPages invalid entries
// for each of the numProcesses processes.
func NewPageTable(numProcesses int, numPages uint64) PageTable {
	pt := &pageTableImpl{
		numPages: numPages,
		tables:   make([]processTable, numProcesses),
	}

	for i := range pt.tables {
		pt.tables[i] = processTable{entries: make([]Page, numPages)}
	}

	return pt
}

type pageTableImpl struct {
	numPages uint64
	tables   []processTable
}

func (pt *pageTableImpl) NumProcesses() int {
	return len(pt.tables)
}

func (pt *pageTableImpl) NumPages() uint64 {
	return pt.numPages
}

func (pt *pageTableImpl) getTable(pid PID) *processTable {
	if int(pid) >= len(pt.tables) {
		panic(fmt.Sprintf("process %d does not have a page table", pid))
	}

	return &pt.tables[pid]
}

func (pt *pageTableImpl) inRange(pid PID, vpn uint64) bool {
	return int(pid) < len(pt.tables) && vpn < pt.numPages
}

// Insert puts a valid page into the PageTable.
func (pt *pageTableImpl) Insert(page Page) {
	page.Valid = true
	pt.getTable(page.PID).insert(page)
}

// Remove invalidates the entry that holds the target page.
func (pt *pageTableImpl) Remove(pid PID, vpn uint64) {
	pt.getTable(pid).remove(vpn)
}

// Find returns the page with the given virtual page number.
func (pt *pageTableImpl) Find(pid PID, vpn uint64) (Page, bool) {
	if !pt.inRange(pid, vpn) {
		return Page{}, false
	}

	return pt.getTable(pid).find(vpn)
}

// Update changes the frame of an existing page. The PID and the VPN fields
// are used to locate the page to update.
func (pt *pageTableImpl) Update(page Page) {
	pt.getTable(page.PID).update(page)
}

type processTable struct {
	entries []Page
}

func (t *processTable) insert(page Page) {
	t.vpnMustBeInRange(page.VPN)
	t.entries[page.VPN] = page
}

func (t *processTable) remove(vpn uint64) {
	t.vpnMustBeInRange(vpn)
	t.entries[vpn] = Page{}
}

func (t *processTable) update(page Page) {
	t.pageMustExist(page.VPN)

	page.Valid = true
	t.entries[page.VPN] = page
}

func (t *processTable) find(vpn uint64) (Page, bool) {
	page := t.entries[vpn]
	if !page.Valid {
		return Page{}, false
	}

	return page, true
}

func (t *processTable) vpnMustBeInRange(vpn uint64) {
	if vpn >= uint64(len(t.entries)) {
		panic(fmt.Sprintf("VPN %d is out of the page table range", vpn))
	}
}

func (t *processTable) pageMustExist(vpn uint64) {
	t.vpnMustBeInRange(vpn)

	if !t.entries[vpn].Valid {
		panic("page does not exist")
	}
}

package vm

import "fmt"

// A NotMappedError reports a reference to a virtual page that has no valid
// page-table entry.
type NotMappedError struct {
	PID PID
	VPN uint64
}

func (e *NotMappedError) Error() string {
	return fmt.Sprintf("VPN %d of process %d is not mapped", e.VPN, e.PID)
}

// Command memsym runs a virtual memory trace through the address translation
// simulator and writes what happens to an output trace.
package main

import "github.com/sarchlab/memsym/cmd/memsym/cmd"

func main() {
	cmd.Execute()
}

package datarecording

import (
	"os"
	"strings"
	"time"
)

// ExecInfo is one property of a program execution.
type ExecInfo struct {
	Property string
	Value    string
}

// ExecTableName is the table that ExecRecorder writes.
const ExecTableName = "exec_info"

const execTimeFormat = "2006-01-02 15:04:05.000000000"

// ExecRecorder records when and how the program was run.
type ExecRecorder struct {
	recorder DataRecorder
	entries  []ExecInfo
}

// NewExecRecorder creates the exec_info table in the recorder.
func NewExecRecorder(recorder DataRecorder) *ExecRecorder {
	recorder.CreateTable(ExecTableName, ExecInfo{})

	return &ExecRecorder{recorder: recorder}
}

// Start captures the start time, the command line and the working directory.
// Extra properties are recorded as given.
func (e *ExecRecorder) Start(extra ...ExecInfo) {
	e.entries = append(e.entries,
		ExecInfo{"Start Time", time.Now().Format(execTimeFormat)},
		ExecInfo{"Command", strings.Join(os.Args, " ")},
	)

	cwd, err := os.Getwd()
	if err == nil {
		e.entries = append(e.entries, ExecInfo{"Working Directory", cwd})
	}

	e.entries = append(e.entries, extra...)
}

// End writes the captured properties along with the end time.
func (e *ExecRecorder) End() {
	for _, entry := range e.entries {
		e.recorder.InsertData(ExecTableName, entry)
	}

	e.recorder.InsertData(ExecTableName,
		ExecInfo{"End Time", time.Now().Format(execTimeFormat)})

	e.entries = nil

	e.recorder.Flush()
}

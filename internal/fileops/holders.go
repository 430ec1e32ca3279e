package fileops

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/shirou/gopsutil/v4/process"
)

// Holder is a process with a file open.
type Holder struct {
	PID  int32
	Name string
}

func (h Holder) String() string {
	return fmt.Sprintf("%s(%d)", h.Name, h.PID)
}

// ProcessHolders lists processes that have path open. Processes whose
// open files cannot be read (permissions, exited) are skipped.
func ProcessHolders(ctx context.Context, path string) ([]Holder, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}

	var holders []Holder
	for _, p := range procs {
		files, err := p.OpenFilesWithContext(ctx)
		if err != nil {
			continue
		}
		for _, f := range files {
			if f.Path != abs {
				continue
			}
			name, _ := p.NameWithContext(ctx)
			holders = append(holders, Holder{PID: p.Pid, Name: name})
			break
		}
	}
	return holders, nil
}

// Package dagstatus parses the meta-scheduler's node status snapshots and
// renders them as a human-readable table.
package dagstatus

import "fmt"

// Summary describes the workflow as a whole, as recorded in the snapshot's
// DagStatus block.
type Summary struct {
	Timestamp    string
	Status       string
	NodesTotal   int
	NodesDone    int
	NodesPre     int
	NodesQueued  int
	NodesPost    int
	NodesReady   int
	NodesUnready int
	NodesFailed  int
	JobProcsHeld int
	JobProcsIdle int
}

// NodeStatus describes one node in the workflow.
type NodeStatus struct {
	Name        string
	Status      string
	Detail      string
	RetryCount  int
	ProcsQueued int
	ProcsHeld   int
}

// End records when the snapshot was taken and when the next one is due.
type End struct {
	EndTime    string
	NextUpdate string
}

// Snapshot is one fully parsed status file.
type Snapshot struct {
	Summary Summary
	Nodes   []NodeStatus
	End     End
}

// RunningProcs counts the nodes actually executing: submitted to the
// scheduler and not sitting idle. The snapshot itself records only queued
// and idle counts, so running is always derived.
func (s *Snapshot) RunningProcs() int {
	var running int
	for _, n := range s.Nodes {
		if n.Status == "STATUS_SUBMITTED" && n.Detail == "not_idle" {
			running++
		}
	}
	return running
}

// DonePercent returns the completed fraction as a formatted percentage.
func (s *Snapshot) DonePercent() string {
	return percent(s.Summary.NodesDone, s.Summary.NodesTotal)
}

// RunningPercent returns the running fraction as a formatted percentage.
func (s *Snapshot) RunningPercent() string {
	return percent(s.RunningProcs(), s.Summary.NodesTotal)
}

func percent(part, total int) string {
	if total == 0 {
		return "0.0"
	}
	return fmt.Sprintf("%.1f", 100*float64(part)/float64(total))
}

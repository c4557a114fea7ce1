package output

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tanq16/rfidrop/internal/utils"
	"golang.org/x/term"
)

const (
	StatusPending = "pending"
	StatusActive  = "active"
	StatusSuccess = "success"
	StatusError   = "error"
)

type JobOutput struct {
	ID          int
	Name        string
	Status      string
	Message     string
	Progress    *utils.ProgressSnapshot
	Complete    bool
	StartTime   time.Time
	LastUpdated time.Time
	Error       error
}

type ErrorReport struct {
	JobName string
	Error   error
	Time    time.Time
}

// Manager renders the live status of every registered upload job
type Manager struct {
	out         io.Writer
	interactive bool
	outputs     map[int]*JobOutput
	mutex       sync.RWMutex
	numLines    int
	errors      []ErrorReport
	doneCh      chan struct{}
	displayTick time.Duration
	jobCount    int
	displayWg   sync.WaitGroup
	unmuteLogs  func()
}

func NewManager() *Manager {
	return NewManagerWithWriter(os.Stdout, term.IsTerminal(int(os.Stdout.Fd())))
}

// NewManagerWithWriter renders to out. Without interactive, nothing is redrawn in
// place and only the final state is written.
func NewManagerWithWriter(out io.Writer, interactive bool) *Manager {
	return &Manager{
		out:         out,
		interactive: interactive,
		outputs:     make(map[int]*JobOutput),
		doneCh:      make(chan struct{}),
		displayTick: 200 * time.Millisecond,
	}
}

func (m *Manager) RegisterJob(name string) int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.jobCount++
	now := time.Now()
	m.outputs[m.jobCount] = &JobOutput{
		ID:          m.jobCount,
		Name:        name,
		Status:      StatusPending,
		StartTime:   now,
		LastUpdated: now,
	}
	return m.jobCount
}

func (m *Manager) update(id int, fn func(info *JobOutput)) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if info, exists := m.outputs[id]; exists {
		fn(info)
		info.LastUpdated = time.Now()
	}
}

func (m *Manager) SetMessage(id int, message string) {
	m.update(id, func(info *JobOutput) { info.Message = message })
}

func (m *Manager) SetStatus(id int, status string) {
	m.update(id, func(info *JobOutput) { info.Status = status })
}

func (m *Manager) GetStatus(id int) string {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	if info, exists := m.outputs[id]; exists {
		return info.Status
	}
	return "unknown"
}

func (m *Manager) SetProgress(id int, snapshot utils.ProgressSnapshot) {
	m.update(id, func(info *JobOutput) {
		if info.Complete {
			return
		}
		info.Progress = &snapshot
	})
}

func (m *Manager) Complete(id int, message string) {
	m.update(id, func(info *JobOutput) {
		if message == "" {
			message = fmt.Sprintf("Uploaded %s", info.Name)
		}
		info.Message = message
		info.Progress = nil
		info.Complete = true
		info.Status = StatusSuccess
	})
}

func (m *Manager) ReportError(id int, err error) {
	m.update(id, func(info *JobOutput) {
		info.Complete = true
		info.Status = StatusError
		info.Error = err
		info.Progress = nil
		if info.Message == "" {
			info.Message = fmt.Sprintf("Failed %s", info.Name)
		}
		m.errors = append(m.errors, ErrorReport{JobName: info.Name, Error: err, Time: time.Now()})
	})
}

// Failures counts jobs that ended in error
func (m *Manager) Failures() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.errors)
}

func (m *Manager) GetStatusIndicator(status string) string {
	switch status {
	case StatusSuccess:
		return successStyle.Render(StyleSymbols["pass"])
	case StatusError:
		return errorStyle.Render(StyleSymbols["fail"])
	case StatusPending:
		return pendingStyle.Render(StyleSymbols["pending"])
	default:
		return infoStyle.Render(StyleSymbols["bullet"])
	}
}

func (m *Manager) sortedJobs() []*JobOutput {
	jobs := make([]*JobOutput, 0, len(m.outputs))
	for _, info := range m.outputs {
		jobs = append(jobs, info)
	}
	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].Complete != jobs[j].Complete {
			return !jobs[i].Complete
		}
		return jobs[i].ID < jobs[j].ID
	})
	return jobs
}

func (m *Manager) renderJob(info *JobOutput) []string {
	elapsed := time.Since(info.StartTime)
	if info.Complete {
		elapsed = info.LastUpdated.Sub(info.StartTime)
	}
	var message string
	switch info.Status {
	case StatusSuccess:
		message = successStyle.Render(info.Message)
	case StatusError:
		message = errorStyle.Render(info.Message)
	default:
		message = pendingStyle.Render(info.Message)
	}
	if info.Status == StatusPending && info.Message == "" {
		message = pendingStyle.Render("Waiting...")
	}
	lines := []string{fmt.Sprintf("%s%s %s %s", strings.Repeat(" ", 2), m.GetStatusIndicator(info.Status), debugStyle.Render(elapsed.Round(time.Second).String()), message)}
	if info.Progress != nil {
		lines = append(lines, strings.Repeat(" ", 2+4)+streamStyle.Render(ProgressLine(*info.Progress)))
	}
	return lines
}

func (m *Manager) renderLines(limit int) []string {
	var active, completed []string
	for _, info := range m.sortedJobs() {
		if info.Complete {
			completed = append(completed, m.renderJob(info)...)
		} else {
			active = append(active, m.renderJob(info)...)
		}
	}
	lines := active
	if limit > 0 && len(active)+len(completed) > limit {
		keep := max(0, limit-len(active))
		completed = completed[len(completed)-min(keep, len(completed)):]
	}
	lines = append(lines, completed...)
	if limit > 0 && len(lines) > limit {
		lines = lines[:limit]
	}
	return lines
}

func (m *Manager) updateDisplay() {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	if m.numLines > 0 {
		fmt.Fprintf(m.out, "\033[%dA\033[J", m.numLines)
	}
	lines := m.renderLines(getTerminalHeight() - 3)
	for _, line := range lines {
		fmt.Fprintln(m.out, line)
	}
	m.numLines = len(lines)
}

func (m *Manager) StartDisplay() {
	m.unmuteLogs = func() {}
	if m.interactive {
		m.unmuteLogs = utils.MuteConsole()
	}
	m.displayWg.Add(1)
	go func() {
		defer m.displayWg.Done()
		ticker := time.NewTicker(m.displayTick)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if m.interactive {
					m.updateDisplay()
				}
			case <-m.doneCh:
				if m.interactive {
					m.updateDisplay()
				} else {
					m.printFinal()
				}
				m.ShowSummary()
				return
			}
		}
	}()
}

func (m *Manager) StopDisplay() {
	close(m.doneCh)
	m.displayWg.Wait()
	if m.unmuteLogs != nil {
		m.unmuteLogs()
	}
}

func (m *Manager) printFinal() {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	for _, line := range m.renderLines(0) {
		fmt.Fprintln(m.out, line)
	}
}

func (m *Manager) displayErrors() {
	if len(m.errors) == 0 {
		return
	}
	fmt.Fprintln(m.out)
	fmt.Fprintln(m.out, strings.Repeat(" ", 2)+errorStyle.Bold(true).Render("Errors:"))
	for i, err := range m.errors {
		fmt.Fprintf(m.out, "%s%s %s %s\n",
			strings.Repeat(" ", 2+2),
			errorStyle.Render(fmt.Sprintf("%d.", i+1)),
			debugStyle.Render(fmt.Sprintf("[%s]", err.Time.Format("15:04:05"))),
			errorStyle.Render(fmt.Sprintf("File: %s", err.JobName)))
		fmt.Fprintf(m.out, "%s%s\n", strings.Repeat(" ", 2+4), errorStyle.Render(fmt.Sprintf("Error: %v", err.Error)))
	}
}

func (m *Manager) ShowSummary() {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	fmt.Fprintln(m.out)
	var success, failures int
	for _, info := range m.outputs {
		switch info.Status {
		case StatusSuccess:
			success++
		case StatusError:
			failures++
		}
	}
	fmt.Fprintln(m.out, strings.Repeat(" ", 2)+success2Style.Render(fmt.Sprintf("Completed %d of %d", success, len(m.outputs))))
	if failures > 0 {
		fmt.Fprintln(m.out, strings.Repeat(" ", 2)+errorStyle.Render(fmt.Sprintf("Failed %d of %d", failures, len(m.outputs))))
	}
	m.displayErrors()
	fmt.Fprintln(m.out)
}

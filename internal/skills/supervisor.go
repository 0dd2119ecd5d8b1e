// Package skills discovers skill.toml manifests and supervises their
// processes. Daemon skills are kept running and restarted on crash until a
// crash-loop threshold; oneshot skills run to completion when triggered.
// Every skill process runs in its own process group so teardown reaches its
// whole tree.
package skills

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/clawinfra/clawguard/internal/creds"
	"github.com/clawinfra/clawguard/internal/procgroup"
)

var (
	// ErrSkillNotFound is returned for names with no discovered manifest.
	ErrSkillNotFound = errors.New("skills: skill not found")

	// ErrCredentialMissing is returned when a required credential is unset.
	ErrCredentialMissing = errors.New("skills: required credential missing")

	// ErrCrashLoop is returned when a skill has crashed too many times and
	// the supervisor refuses to restart it without operator intervention.
	ErrCrashLoop = errors.New("skills: crash loop")

	// ErrAlreadyRunning is returned when starting a running skill.
	ErrAlreadyRunning = errors.New("skills: already running")

	// ErrNotRunning is returned when stopping a stopped skill.
	ErrNotRunning = errors.New("skills: not running")
)

// Status is the observable state of a skill.
type Status string

const (
	StatusStopped   Status = "stopped"
	StatusRunning   Status = "running"
	StatusCrashed   Status = "crashed"
	StatusCrashLoop Status = "crash_loop"
	StatusDisabled  Status = "disabled"
)

// State is a point-in-time snapshot of one skill for the API and tools.
type State struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Type        SkillType `json:"type"`
	Enabled     bool      `json:"enabled"`
	Status      Status    `json:"status"`
	PID         int       `json:"pid,omitempty"`
	Crashes     int       `json:"crashes"`
	StartedAt   time.Time `json:"started_at,omitempty"`
	LastExit    string    `json:"last_exit,omitempty"`
}

type skillEntry struct {
	manifest *Manifest
	dir      string

	pid             int
	cmd             *exec.Cmd
	logFile         *os.File
	running         bool
	stopping        bool
	manuallyStopped bool
	crashes         int
	startedAt       time.Time
	lastExit        string
	orphaned        bool
}

// Supervisor owns skill discovery and process lifecycle.
type Supervisor struct {
	mu             sync.Mutex
	skillsDir      string
	dataDir        string
	grace          time.Duration
	crashThreshold int
	platformEnv    map[string]string
	creds          *creds.Store
	onCrash        func(name string, crashes int)
	logger         *slog.Logger
	skills         map[string]*skillEntry
}

// Options configures a Supervisor.
type Options struct {
	SkillsDir      string
	DataDir        string
	Grace          time.Duration
	CrashThreshold int
	PlatformEnv    map[string]string
	Creds          *creds.Store

	// OnCrash, when set, is called after an unrequested daemon exit has been
	// recorded. Called without the supervisor lock held.
	OnCrash func(name string, crashes int)
}

// NewSupervisor creates a supervisor; call Reconcile to discover and start
// skills.
func NewSupervisor(opts Options, logger *slog.Logger) *Supervisor {
	if opts.Grace <= 0 {
		opts.Grace = 2 * time.Second
	}
	if opts.CrashThreshold <= 0 {
		opts.CrashThreshold = 5
	}
	return &Supervisor{
		skillsDir:      opts.SkillsDir,
		dataDir:        opts.DataDir,
		grace:          opts.Grace,
		crashThreshold: opts.CrashThreshold,
		platformEnv:    opts.PlatformEnv,
		creds:          opts.Creds,
		onCrash:        opts.OnCrash,
		logger:         logger.With("component", "skills"),
		skills:         make(map[string]*skillEntry),
	}
}

// Reconcile drives observed state toward the manifests: rescan, tear down
// what should not run, then start what should. Teardown always happens
// before any spawn so a renamed or disabled skill never briefly runs twice.
func (s *Supervisor) Reconcile() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.scanLocked(); err != nil {
		return err
	}
	s.teardownLocked()
	s.startEnabledLocked()
	return nil
}

// scanLocked refreshes manifests from disk. Skills whose directory vanished
// are marked orphaned for teardown.
func (s *Supervisor) scanLocked() error {
	entries, err := os.ReadDir(s.skillsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("skills: read dir: %w", err)
	}

	seen := make(map[string]struct{})
	for _, de := range entries {
		if !de.IsDir() {
			continue
		}
		dir := filepath.Join(s.skillsDir, de.Name())
		m, err := LoadManifest(dir)
		if err != nil {
			// Directories without a skill.toml (prompt skills) are not an
			// error.
			if !errors.Is(err, os.ErrNotExist) {
				s.logger.Warn("skipping skill", "dir", dir, "error", err)
			}
			continue
		}
		seen[m.Name] = struct{}{}
		if e, ok := s.skills[m.Name]; ok {
			e.manifest = m
			e.dir = dir
			e.orphaned = false
		} else {
			s.skills[m.Name] = &skillEntry{manifest: m, dir: dir}
			s.logger.Info("skill discovered", "name", m.Name, "type", m.SkillType)
		}
	}
	for name, e := range s.skills {
		if _, ok := seen[name]; !ok {
			e.orphaned = true
		}
	}
	return nil
}

// teardownLocked stops skills that should not be running: disabled,
// orphaned, or no longer daemons.
func (s *Supervisor) teardownLocked() {
	// stopLocked drops the lock while waiting out the grace period, so
	// iterate a snapshot of names rather than the live map.
	names := make([]string, 0, len(s.skills))
	for name := range s.skills {
		names = append(names, name)
	}
	for _, name := range names {
		e, ok := s.skills[name]
		if !ok {
			continue
		}
		if e.running && (e.orphaned || !e.manifest.Enabled || e.manifest.SkillType != TypeDaemon) {
			s.logger.Info("stopping skill", "name", name, "reason", teardownReason(e))
			s.stopLocked(e)
		}
		if e.orphaned && !e.running {
			delete(s.skills, name)
		}
	}
}

func teardownReason(e *skillEntry) string {
	switch {
	case e.orphaned:
		return "removed"
	case !e.manifest.Enabled:
		return "disabled"
	default:
		return "not a daemon"
	}
}

// startEnabledLocked spawns enabled daemons that are not running, unless
// manually stopped or crash-looped.
func (s *Supervisor) startEnabledLocked() {
	for name, e := range s.skills {
		if e.running || e.orphaned || e.manuallyStopped {
			continue
		}
		if e.manifest.SkillType != TypeDaemon || !e.manifest.Enabled {
			continue
		}
		if e.crashes >= s.crashThreshold {
			continue
		}
		if err := s.spawnLocked(e); err != nil {
			s.logger.Warn("skill start failed", "name", name, "error", err)
		}
	}
}

// Start clears the manual-stop and crash-loop flags and spawns a daemon
// skill immediately.
func (s *Supervisor) Start(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.skills[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSkillNotFound, name)
	}
	if e.running {
		return fmt.Errorf("%w: %s", ErrAlreadyRunning, name)
	}
	if e.manifest.SkillType != TypeDaemon {
		return fmt.Errorf("skills: %s is a oneshot, use trigger", name)
	}
	e.manuallyStopped = false
	e.crashes = 0
	return s.spawnLocked(e)
}

// Stop terminates a running skill and pins it stopped until Start.
func (s *Supervisor) Stop(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.skills[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSkillNotFound, name)
	}
	e.manuallyStopped = true
	if !e.running {
		return fmt.Errorf("%w: %s", ErrNotRunning, name)
	}
	s.stopLocked(e)
	return nil
}

// Restart stops then starts a daemon skill. Crash history is kept: a skill
// past the crash-loop threshold needs an explicit Start.
func (s *Supervisor) Restart(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.skills[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSkillNotFound, name)
	}
	if e.manifest.SkillType != TypeDaemon {
		return fmt.Errorf("skills: %s is a oneshot, use trigger", name)
	}

	// Pin the entry while stopLocked drops the lock for the grace period. A
	// concurrent Reconcile would otherwise respawn the skill mid-restart.
	e.manuallyStopped = true
	if e.running {
		s.stopLocked(e)
	}
	e.manuallyStopped = false
	return s.spawnLocked(e)
}

// Trigger runs a oneshot skill. It returns once the process is started;
// completion is recorded by the reaper.
func (s *Supervisor) Trigger(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.skills[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSkillNotFound, name)
	}
	if e.manifest.SkillType != TypeOneshot {
		return fmt.Errorf("skills: %s is a daemon, use start", name)
	}
	if !e.manifest.Enabled {
		return fmt.Errorf("skills: %s is disabled", name)
	}
	if e.running {
		return fmt.Errorf("%w: %s", ErrAlreadyRunning, name)
	}
	return s.spawnLocked(e)
}

// List returns snapshots sorted by name.
func (s *Supervisor) List() []State {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]State, 0, len(s.skills))
	for _, e := range s.skills {
		out = append(out, s.snapshotLocked(e))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Get returns one skill's snapshot.
func (s *Supervisor) Get(name string) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.skills[name]
	if !ok {
		return State{}, fmt.Errorf("%w: %s", ErrSkillNotFound, name)
	}
	return s.snapshotLocked(e), nil
}

// StopAll tears down every running skill. Called on daemon shutdown.
func (s *Supervisor) StopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.skills))
	for name := range s.skills {
		names = append(names, name)
	}
	for _, name := range names {
		if e, ok := s.skills[name]; ok && e.running {
			s.stopLocked(e)
		}
	}
}

func (s *Supervisor) snapshotLocked(e *skillEntry) State {
	st := State{
		Name:        e.manifest.Name,
		Description: e.manifest.Description,
		Type:        e.manifest.SkillType,
		Enabled:     e.manifest.Enabled,
		Crashes:     e.crashes,
		LastExit:    e.lastExit,
	}
	switch {
	case e.running:
		st.Status = StatusRunning
		st.PID = e.pid
		st.StartedAt = e.startedAt
	case !e.manifest.Enabled:
		st.Status = StatusDisabled
	case e.crashes >= s.crashThreshold:
		st.Status = StatusCrashLoop
	case e.crashes > 0:
		st.Status = StatusCrashed
	default:
		st.Status = StatusStopped
	}
	return st
}

// spawnLocked builds the environment, starts the process in its own group,
// and hands it to the reaper goroutine. It is the single choke point for the
// one-process-per-skill invariant: a live entry is never spawned over.
func (s *Supervisor) spawnLocked(e *skillEntry) error {
	if e.running {
		return fmt.Errorf("%w: %s", ErrAlreadyRunning, e.manifest.Name)
	}
	if e.manifest.SkillType == TypeDaemon && e.crashes >= s.crashThreshold {
		return fmt.Errorf("%w: %s after %d crashes", ErrCrashLoop, e.manifest.Name, e.crashes)
	}

	env, err := s.buildEnv(e)
	if err != nil {
		e.lastExit = err.Error()
		return err
	}

	dataDir := filepath.Join(s.dataDir, "skill-data", e.manifest.Name)
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("skills: create data dir: %w", err)
	}

	argv := interpreterFor(e.manifest.Entrypoint)
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = e.dir
	cmd.Env = env

	logFile, err := os.OpenFile(filepath.Join(dataDir, "skill.log"),
		os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("skills: open log: %w", err)
	}
	cmd.Stdout = logFile
	cmd.Stderr = logFile

	pid, err := procgroup.Spawn(cmd)
	if err != nil {
		logFile.Close()
		e.lastExit = err.Error()
		return fmt.Errorf("skills: spawn %s: %w", e.manifest.Name, err)
	}

	e.pid = pid
	e.cmd = cmd
	e.logFile = logFile
	e.running = true
	e.stopping = false
	e.startedAt = time.Now().UTC()
	s.logger.Info("skill started", "name", e.manifest.Name, "pid", pid, "type", e.manifest.SkillType)

	go s.reap(e.manifest.Name, pid, cmd)
	return nil
}

// reap waits for a process to exit and records the outcome. A daemon exit
// that was not requested counts as a crash.
func (s *Supervisor) reap(name string, pid int, cmd *exec.Cmd) {
	err := cmd.Wait()

	s.mu.Lock()

	e, ok := s.skills[name]
	if !ok || e.pid != pid {
		s.mu.Unlock()
		return
	}
	if e.logFile != nil {
		e.logFile.Close()
		e.logFile = nil
	}
	e.running = false
	e.pid = 0
	e.cmd = nil

	if err != nil {
		e.lastExit = err.Error()
	} else {
		e.lastExit = "exit status 0"
	}

	crashes := 0
	if e.manifest.SkillType == TypeDaemon && !e.stopping {
		e.crashes++
		crashes = e.crashes
		s.logger.Warn("skill crashed", "name", name, "crashes", e.crashes, "exit", e.lastExit)
		if e.crashes >= s.crashThreshold {
			s.logger.Error("skill entered crash loop, not restarting", "name", name)
		}
	} else {
		s.logger.Info("skill exited", "name", name, "exit", e.lastExit)
	}
	e.stopping = false
	s.mu.Unlock()

	if crashes > 0 && s.onCrash != nil {
		s.onCrash(name, crashes)
	}
}

// stopLocked tears down a running process group with the configured grace.
func (s *Supervisor) stopLocked(e *skillEntry) {
	e.stopping = true
	pid := e.pid
	s.mu.Unlock()
	procgroup.TerminateGroup(pid, s.grace)
	s.mu.Lock()

	// The reaper flips running; wait briefly for it so callers observe the
	// stop synchronously.
	for i := 0; i < 100 && e.running; i++ {
		s.mu.Unlock()
		time.Sleep(10 * time.Millisecond)
		s.mu.Lock()
	}
}

// buildEnv assembles the process environment: inherited env, platform env,
// well-known skill vars, manifest env, then credentials. Later entries win.
func (s *Supervisor) buildEnv(e *skillEntry) ([]string, error) {
	env := os.Environ()
	for k, v := range s.platformEnv {
		env = append(env, k+"="+v)
	}
	env = append(env,
		"SKILL_NAME="+e.manifest.Name,
		"SKILL_DIR="+e.dir,
		"SKILL_DATA_DIR="+filepath.Join(s.dataDir, "skill-data", e.manifest.Name),
		"SKILLS_DIR="+s.skillsDir,
	)
	for k, v := range e.manifest.Env {
		env = append(env, k+"="+v)
	}
	for _, spec := range e.manifest.Credentials {
		value, err := s.creds.Get(e.manifest.Name, spec.Name)
		if err != nil {
			if spec.Required {
				return nil, fmt.Errorf("%w: %s/%s", ErrCredentialMissing, e.manifest.Name, spec.Name)
			}
			continue
		}
		env = append(env, spec.Name+"="+value)
	}
	return env, nil
}

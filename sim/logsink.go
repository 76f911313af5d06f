package sim

import (
	"log"
	"path"
	"sync"
	"time"
)

// LogLevel mirrors the --log-level surface described in the CLI contract:
// trace, debug, info, warn, error, ordered from most to least verbose.
type LogLevel int

// The supported log levels, in increasing severity.
const (
	LevelTrace LogLevel = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
)

func (l LogLevel) String() string {
	switch l {
	case LevelTrace:
		return "trace"
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

// ParseLogLevel converts a --log-level string into a LogLevel. Unrecognized
// strings fall back to LevelInfo.
func ParseLogLevel(s string) LogLevel {
	switch s {
	case "trace":
		return LevelTrace
	case "debug":
		return LevelDebug
	case "warn":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// LogRecord is the wire format for one log line, per the spec's log record
// format: (sim_time, wall_time_ns, cid, level, message). Within a single
// tick, records reach the sink in Sequence order because the scheduler
// appends them during the sequence-ordered commit phase.
type LogRecord struct {
	SimTime     SimTime
	WallTimeNS  int64
	ComponentID ComponentID
	Level       LogLevel
	Message     string
}

// LogSink receives LogRecords as the scheduler commits effectors.
type LogSink interface {
	Record(r LogRecord)
}

// StdLogSink writes records to a standard library *log.Logger, filtered by
// minimum level and by a component-name glob (--log-glob), mirroring the
// teacher's LogHookBase/EventLogger hook built atop the same *log.Logger
// type - adapted here to operate on LogRecord rather than a dispatch Event,
// and promoted from a Hook into the engine's LogSink boundary directly
// since log records, unlike events, are not something handler code
// schedules or reacts to.
type StdLogSink struct {
	mu        sync.Mutex
	logger    *log.Logger
	minLevel  LogLevel
	nameGlob  string
	nameOf    func(ComponentID) string
}

// NewStdLogSink creates a LogSink that writes through logger, filtering out
// records below minLevel and, if nameGlob is non-empty, records whose
// component name does not match the glob pattern (path.Match syntax).
// nameOf resolves a ComponentID to its registered display name; it may be
// nil if glob filtering is not needed.
func NewStdLogSink(
	logger *log.Logger,
	minLevel LogLevel,
	nameGlob string,
	nameOf func(ComponentID) string,
) *StdLogSink {
	return &StdLogSink{
		logger:   logger,
		minLevel: minLevel,
		nameGlob: nameGlob,
		nameOf:   nameOf,
	}
}

// Record writes r to the underlying logger if it passes the level and glob
// filters.
func (s *StdLogSink) Record(r LogRecord) {
	if r.Level < s.minLevel {
		return
	}

	if s.nameGlob != "" && s.nameOf != nil {
		name := s.nameOf(r.ComponentID)
		matched, err := path.Match(s.nameGlob, name)
		if err != nil || !matched {
			return
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.Printf("%d %s cid=%d %s",
		r.SimTime, r.Level, r.ComponentID, r.Message)
}

// discardLogSink is used when the simulation is built without an explicit
// sink, so components can always call Effector.Log without a nil check.
type discardLogSink struct{}

func (discardLogSink) Record(LogRecord) {}

// nowWallNS returns the current wall-clock time in nanoseconds since the
// Unix epoch, used to stamp LogRecord.WallTimeNS. This is observational
// only - it never feeds back into any ordering or error-handling decision,
// per the determinism rule that error handling may not consult wall time.
func nowWallNS() int64 {
	return time.Now().UnixNano()
}

package engine

import (
	"log"
	"os"
	"sync"

	"golang.org/x/time/rate"
)

var (
	issueLogger     *log.Logger
	issueLoggerOnce sync.Once

	issueThrottleMu  sync.Mutex
	issueThrottleLim = make(map[string]*rate.Limiter)
)

func getIssueLogger() *log.Logger {
	issueLoggerOnce.Do(func() {
		f, err := os.OpenFile("serial-forwarder.issue.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			issueLogger = log.New(os.Stderr, "[ISSUE] ", log.LstdFlags|log.Lmicroseconds)
			issueLogger.Printf("failed to open issue log file: %v", err)
			return
		}
		issueLogger = log.New(f, "[ISSUE] ", log.LstdFlags|log.Lmicroseconds)
	})
	return issueLogger
}

func logIssuef(format string, args ...any) {
	getIssueLogger().Printf(format, args...)
}

// logIssuefThrottled emits at most one line per key per interval, using a
// token-bucket limiter (burst 1) per key rather than a bare timestamp map so
// a racing burst of callers can't all slip through the window at once.
func logIssuefThrottled(key string, everyN rate.Limit, format string, args ...any) {
	issueThrottleMu.Lock()
	lim, ok := issueThrottleLim[key]
	if !ok {
		lim = rate.NewLimiter(everyN, 1)
		issueThrottleLim[key] = lim
	}
	allow := lim.Allow()
	issueThrottleMu.Unlock()

	if allow {
		logIssuef(format, args...)
	}
}

// logging.go - level-prefixed logging, matching the teacher's plain
// log/fmt usage rather than a structured logging framework
package main

import (
	"log"
	"os"
)

var stderrLog = log.New(os.Stderr, "", log.LstdFlags)

func logInfo(format string, args ...interface{}) {
	stderrLog.Printf("INFO: "+format, args...)
}

func logWarning(format string, args ...interface{}) {
	stderrLog.Printf("WARNING: "+format, args...)
}

func logError(format string, args ...interface{}) {
	stderrLog.Printf("ERROR: "+format, args...)
}

func logDebug(format string, args ...interface{}) {
	if !debugLogging {
		return
	}
	stderrLog.Printf("DEBUG: "+format, args...)
}

// debugLogging gates logDebug. No flag sets it, so debug lines are off.
var debugLogging bool

// redirectLogToKmsg is called once when --daemon is given: the teacher's
// terminal_host.go restores stdio on exit the same way this restores the
// log writer's previous destination if /dev/kmsg can't be opened.
func redirectLogToKmsg() error {
	f, err := os.OpenFile("/dev/kmsg", os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	stderrLog.SetOutput(f)
	stderrLog.SetFlags(0)
	return nil
}

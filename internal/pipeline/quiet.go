package pipeline

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
)

// Parsing libraries are free with diagnostics on stdout/stderr. When this
// process serves tool responses over a stream those writes corrupt the
// channel, so the engine phase runs with process output pointed at /dev/null.
// Reference counted: overlapping conversions share one redirection and the
// original descriptors come back only when the last one releases.
var outputGuard struct {
	mu         sync.Mutex
	depth      int
	stdout     *os.File
	stderr     *os.File
	logWriter  io.Writer
	devnull    *os.File
}

// suppressOutput silences process stdout/stderr and the stdlib log output,
// returning a restore func that is safe to call exactly once on every exit
// path.
func suppressOutput() (func(), error) {
	outputGuard.mu.Lock()
	defer outputGuard.mu.Unlock()

	if outputGuard.depth == 0 {
		devnull, err := os.OpenFile(os.DevNull, os.O_WRONLY, 0)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", os.DevNull, err)
		}

		outputGuard.devnull = devnull
		outputGuard.stdout = os.Stdout
		outputGuard.stderr = os.Stderr
		outputGuard.logWriter = log.Writer()

		os.Stdout = devnull
		os.Stderr = devnull
		log.SetOutput(io.Discard)
	}
	outputGuard.depth++

	var once sync.Once
	restore := func() {
		once.Do(func() {
			outputGuard.mu.Lock()
			defer outputGuard.mu.Unlock()

			outputGuard.depth--
			if outputGuard.depth > 0 {
				return
			}

			os.Stdout = outputGuard.stdout
			os.Stderr = outputGuard.stderr
			log.SetOutput(outputGuard.logWriter)
			outputGuard.devnull.Close()
			outputGuard.devnull = nil
		})
	}

	return restore, nil
}

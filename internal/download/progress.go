package download

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
)

const spinnerTick = 120 * time.Millisecond

// progressOptions is the look shared by the download bar and the spinner.
func progressOptions(w io.Writer, description string, extra ...progressbar.Option) []progressbar.Option {
	return append([]progressbar.Option{
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(w),
		progressbar.OptionThrottle(65 * time.Millisecond),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionClearOnFinish(),
	}, extra...)
}

// StartSpinner shows an indeterminate spinner on stderr until the returned
// func is called. Calling it more than once is safe.
func StartSpinner(enabled bool, description string) func() {
	return startSpinner(os.Stderr, enabled, description)
}

func startSpinner(w io.Writer, enabled bool, description string) func() {
	if !enabled {
		return func() {}
	}

	bar := progressbar.NewOptions(-1, progressOptions(w, description,
		progressbar.OptionSpinnerType(14),
		progressbar.OptionShowElapsedTimeOnFinish(),
	)...)

	stopCh := make(chan struct{})
	doneCh := make(chan struct{})

	go func() {
		defer close(doneCh)
		ticker := time.NewTicker(spinnerTick)
		defer ticker.Stop()

		for {
			select {
			case <-stopCh:
				_ = bar.Finish()
				return
			case <-ticker.C:
				_ = bar.Add(1)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stopCh)
			<-doneCh
		})
	}
}

package fetch

import (
	"io"
	"time"

	"github.com/schollz/progressbar/v3"
)

// Returns a [ProgressFunc] that draws a byte progress bar on w.
//
// The bar is created on the first chunk, once the expected total is known.
// A total of -1 renders an indeterminate spinner.
func ProgressBar(w io.Writer, description string) ProgressFunc {
	var bar *progressbar.ProgressBar

	return func(written, total int64) {
		if bar == nil {
			bar = progressbar.NewOptions64(total,
				progressbar.OptionSetWriter(w),
				progressbar.OptionSetDescription(description),
				progressbar.OptionShowBytes(true),
				progressbar.OptionSetWidth(30),
				progressbar.OptionThrottle(65*time.Millisecond),
				progressbar.OptionClearOnFinish(),
			)
		}
		_ = bar.Set64(written)
		if total > 0 && written >= total {
			_ = bar.Finish()
		}
	}
}

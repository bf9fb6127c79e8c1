package output

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/gofrs/flock"
)

// lockRetryDelay is how often WriteFile retries a held lock.
const lockRetryDelay = 50 * time.Millisecond

// WriteFile renders a report into path while holding an exclusive lock on
// path+".lock", so concurrent barrage runs never interleave their output.
// The file is replaced, not appended to.
func WriteFile(ctx context.Context, path string, render func(io.Writer) error) error {
	lock := flock.New(path + ".lock")
	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("lock %s: %w", path, err)
	}
	if !locked {
		return fmt.Errorf("lock %s: not acquired", path)
	}
	defer lock.Unlock()

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	buf := bufio.NewWriter(f)
	if err := render(buf); err != nil {
		f.Close()
		return fmt.Errorf("failed to render %s: %w", path, err)
	}
	if err := buf.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

package framework

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const readinessPollInterval = time.Millisecond * 100

// AwaitTarget polls url until it answers with a status below 500, or until timeout expires.
// It is used before a run so that scenarios do not fail just because the application under
// test is still starting. A dot is written to output for every attempt.
func AwaitTarget(ctx context.Context, url string, timeout time.Duration, output io.Writer) error {
	if output == nil {
		output = io.Discard
	}
	fmt.Fprintf(output, "Waiting for target at %s", url)

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client := &http.Client{Timeout: readinessPollInterval * 10}
	ticker := time.NewTicker(readinessPollInterval)
	defer ticker.Stop()

	var lastErr error
	for {
		fmt.Fprintf(output, ".")
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			fmt.Fprintln(output)
			return err
		}
		resp, err := client.Do(req)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode < 500 {
				fmt.Fprintln(output)
				return nil
			}
			err = fmt.Errorf("target returned status code %d", resp.StatusCode)
		}
		lastErr = err

		select {
		case <-ctx.Done():
			fmt.Fprintln(output)
			return &TimeoutError{
				Operation: fmt.Sprintf("waiting for %s (last result: %s)", url, lastErr),
				After:     timeout,
			}
		case <-ticker.C:
		}
	}
}

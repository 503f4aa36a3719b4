// Command rundedupe-demo reads signal IDs from stdin, one per line, and
// deduplicates a simulated "send welcome email" effect against an in-memory
// store: repeating an ID within the process prints the memoized result
// instead of resending.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sunder-dev/rundedupe/dedupe"
	"github.com/sunder-dev/rundedupe/dedupe/logadapter"
	"github.com/sunder-dev/rundedupe/dedupe/memstore"
)

func main() {
	zl := zerolog.New(os.Stderr).With().Timestamp().Logger()
	logger := logadapter.NewZerologLogger(zl)

	store := memstore.NewStore[string, string, string](nil)
	defer store.Close()

	coordinator := dedupe.New[string, string, string](store, dedupe.Config[string]{
		ProcessorID:       "rundedupe-demo",
		MaxProcessingTime: time.Minute,
		PollStrategy:      dedupe.PollLinear(50*time.Millisecond, 5*time.Second),
	}, dedupe.WithLogger[string, string, string](logger))

	fmt.Println("enter signal IDs, one per line (ctrl-d to exit); a blank line generates a fresh id")
	ctx := context.Background()
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		id := strings.TrimSpace(scanner.Text())
		if id == "" {
			id = uuid.NewString()
		}

		result, err := coordinator.Once(ctx, id, func(context.Context) (string, error) {
			return fmt.Sprintf("welcome email sent for %s", id), nil
		})
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			continue
		}
		fmt.Println(result)
	}
}

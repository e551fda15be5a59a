// Package utils holds small ambient helpers with no natural home in a
// domain package. FormatHand replaces the teacher's pokerrpc-coupled
// FormatCards (display helper over generated protobuf card messages,
// which no longer exist in this module) with the equivalent over
// internal/cards.Card; EnsureDataDirExists is kept verbatim, used by
// cmd/buckeuchresrv's -datadir flag.
package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/buckeuchre/buckeuchre/internal/cards"
)

// FormatHand renders a hand as space-separated card ids
// ("SPADES_JACK HEARTS_ACE ..."), or "None" for an empty hand; pkg/table
// uses it to log a newly dealt hand without reaching for full JSON.
func FormatHand(hand []cards.Card) string {
	if len(hand) == 0 {
		return "None"
	}
	ids := make([]string, len(hand))
	for i, c := range hand {
		ids[i] = c.ID()
	}
	return strings.Join(ids, " ")
}

// EnsureDataDirExists creates the datadir and its logs subdirectory if
// they don't exist.
func EnsureDataDirExists(datadir string) error {
	if err := os.MkdirAll(datadir, 0700); err != nil {
		return fmt.Errorf("failed to create datadir %s: %v", datadir, err)
	}

	logsDir := filepath.Join(datadir, "logs")
	if err := os.MkdirAll(logsDir, 0700); err != nil {
		return fmt.Errorf("failed to create logs directory %s: %v", logsDir, err)
	}

	return nil
}

package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/buckeuchre/buckeuchre/internal/cards"
)

func TestFormatHandJoinsCardIDs(t *testing.T) {
	hand := []cards.Card{
		cards.New(cards.Spades, cards.Jack),
		cards.New(cards.Hearts, cards.Ace),
	}
	require.Equal(t, "SPADES_JACK HEARTS_ACE", FormatHand(hand))
}

func TestFormatHandEmptyReportsNone(t *testing.T) {
	require.Equal(t, "None", FormatHand(nil))
}

func TestEnsureDataDirExistsCreatesLogsSubdir(t *testing.T) {
	root := t.TempDir()
	dataDir := filepath.Join(root, "buckeuchre")

	require.NoError(t, EnsureDataDirExists(dataDir))

	info, err := os.Stat(filepath.Join(dataDir, "logs"))
	require.NoError(t, err)
	require.True(t, info.IsDir())

	// Calling it again on an already-prepared directory is a no-op.
	require.NoError(t, EnsureDataDirExists(dataDir))
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/barnettlynn/mfkeytools/mfkey/internal/config"
	"github.com/barnettlynn/mfkeytools/pkg/crypto1"
	"github.com/barnettlynn/mfkeytools/pkg/keysdict"
	"github.com/barnettlynn/mfkeytools/pkg/mfkey"
	"github.com/barnettlynn/mfkeytools/pkg/noncelog"
)

const configFileName = "config.yaml"

// ============================================================================
// Main
// ============================================================================

func main() {
	verbose := flag.Bool("v", false, "enable debug logging")
	logFormat := flag.String("log-format", "text", "log format: text or json")
	configFlag := flag.String("config", "", "config file (default: config.yaml next to the executable)")
	confirm := flag.Bool("confirm", false, "confirm recovered keys against the card on the reader")
	reportPath := flag.String("report", "", "write a YAML report of the run to this file")
	flag.Parse()

	// Configure slog
	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if *logFormat == "json" {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, opts)))
	} else {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, opts)))
	}

	// Load config
	configPath := *configFlag
	if configPath == "" {
		var err error
		configPath, err = defaultConfigPath()
		if err != nil {
			log.Fatalf("resolve config path failed: %v", err)
		}
	}
	fmt.Printf("Using config: %s\n", configPath)

	mode := config.ValidationFull
	if *confirm {
		mode = config.ValidationConfirm
	}
	cfg, err := config.LoadWithMode(configPath, mode)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	// Load nonces and dictionaries
	nonces, err := loadNonces(cfg)
	if err != nil {
		log.Fatalf("load nonces failed: %v", err)
	}
	dicts, err := keysdict.OpenSet(cfg.Dicts.System, cfg.Dicts.User)
	if err != nil {
		log.Fatalf("open dictionaries failed: %v", err)
	}
	fmt.Printf("Nonces: %d, keys in dictionaries: %d\n", len(nonces), dicts.Len())

	state := mfkey.NewProgramState()
	candidateDicts := map[uint32]string{}
	attack := &mfkey.Attack{
		Budget:     cfg.Budget(),
		Dictionary: dicts,
		Memory:     cfg.Memory(),
		State:      state,
		OnCandidates: func(n *mfkey.Nonce, keys []crypto1.Key) error {
			path, err := keysdict.WriteCandidates(cfg.Dicts.CandidatesDir, n.UID, keys)
			if err != nil {
				return err
			}
			candidateDicts[n.UID] = path
			return nil
		},
	}

	// Run the search on a worker while this goroutine reports progress
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var sum *mfkey.Summary
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		sum, err = attack.Run(ctx, nonces)
	}()
	watchProgress(state, cancel, finished)

	switch {
	case errors.Is(err, mfkey.ErrMissingInput):
		fmt.Println("No nonces found. Collect nonces by reading the tag or reader in the NFC app.")
		os.Exit(1)
	case errors.Is(err, mfkey.ErrNoWorkRemaining):
		fmt.Println("Nonces already cracked: every nonce is solved by a dictionary key.")
		return
	case mfkey.IsInsufficientMemory(err):
		printSummary(sum, dicts.Added(), candidateDicts)
		log.Fatalf("not enough memory for the search: %v", err)
	case errors.Is(err, context.Canceled):
		fmt.Println("Stopped.")
	case err != nil:
		printSummary(sum, dicts.Added(), candidateDicts)
		log.Fatalf("attack failed: %v", err)
	}

	printSummary(sum, dicts.Added(), candidateDicts)

	var confirmed map[confirmKey]crypto1.Key
	if *confirm && sum != nil {
		confirmed, err = confirmKeys(cfg, sum, dicts)
		if err != nil {
			log.Fatalf("confirm keys failed: %v", err)
		}
	}

	if *reportPath != "" && sum != nil {
		if err := writeReport(*reportPath, sum, candidateDicts, confirmed); err != nil {
			log.Fatalf("write report failed: %v", err)
		}
		fmt.Printf("Report written to %s\n", *reportPath)
	}
}

// ============================================================================
// Input
// ============================================================================

func loadNonces(cfg *config.Config) ([]mfkey.Nonce, error) {
	var nonces []mfkey.Nonce
	for _, path := range []string{cfg.Nonces.Mfkey32Log, cfg.Nonces.NestedLog} {
		if path == "" {
			continue
		}
		l, err := noncelog.LoadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			slog.Info("nonce log not present", "path", path)
			continue
		}
		if err != nil {
			return nil, err
		}
		for _, le := range l.Errors {
			slog.Warn("skipped nonce log line", "path", path, "line", le.Line, "err", le.Err)
		}
		slog.Debug("nonce log loaded", "path", path, "nonces", len(l.Nonces))
		nonces = append(nonces, l.Nonces...)
	}
	return nonces, nil
}

func defaultConfigPath() (string, error) {
	exePath, err := os.Executable()
	if err != nil {
		return "", err
	}
	exeConfigPath := filepath.Join(filepath.Dir(exePath), configFileName)
	if fileExists(exeConfigPath) {
		return exeConfigPath, nil
	}

	// Fallback for `go run`, where the executable is placed in a temp directory.
	cwd, err := os.Getwd()
	if err != nil {
		return exeConfigPath, nil
	}
	cwdConfigPath := filepath.Join(cwd, configFileName)
	if fileExists(cwdConfigPath) {
		return cwdConfigPath, nil
	}
	return exeConfigPath, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// ============================================================================
// Output
// ============================================================================

func printSummary(sum *mfkey.Summary, added int, candidateDicts map[uint32]string) {
	if sum == nil {
		return
	}
	fmt.Printf("Dictionary solves: %d\n", len(sum.DictionarySolved))
	fmt.Printf("Keys recovered: %d, added to user dict: %d\n", len(sum.Keys), added)
	for _, n := range sum.Solved {
		fmt.Printf("  cuid %08x sector %2d key %s: %s\n", n.UID, n.Sector, keyLetter(n.KeyType), n.Key)
	}
	for _, c := range sum.Candidates {
		fmt.Printf("Key candidates for cuid %08x sector %d: %d in %s\n",
			c.Nonce.UID, c.Nonce.Sector, len(c.Keys), candidateDicts[c.Nonce.UID])
	}
	if len(sum.Unsolved) > 0 {
		fmt.Printf("Unsolved: %d\n", len(sum.Unsolved))
		for i := range sum.Unsolved {
			fmt.Printf("  %s\n", formatNonce(&sum.Unsolved[i]))
		}
	}
	if sum.Tier != mfkey.TierFull {
		fmt.Printf("Ran on the %s tier.\n", sum.Tier)
	}
}

func formatNonce(n *mfkey.Nonce) string {
	if n.Attack == mfkey.Mfkey32 {
		return noncelog.FormatMfkey32(n)
	}
	return noncelog.FormatNested(n)
}

func keyLetter(k byte) string {
	if k == 0 {
		return "?"
	}
	return string(k)
}

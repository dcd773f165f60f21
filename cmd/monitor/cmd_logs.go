package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func newLogsCmd() *cobra.Command {
	var follow bool
	var lines int
	var level, since string
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show monitor event log lines",
		RunE: func(cmd *cobra.Command, args []string) error {
			return tailLogs("logs/monitor.log", lines, follow, level, since)
		},
	}
	cmd.Flags().BoolVar(&follow, "follow", false, "keep printing new lines as they are appended")
	cmd.Flags().IntVar(&lines, "lines", 50, "number of trailing lines to show")
	cmd.Flags().StringVar(&level, "level", "", "filter to a minimum log level")
	cmd.Flags().StringVar(&since, "since", "", "only show lines at or after this RFC3339 timestamp")
	return cmd
}

func tailLogs(path string, n int, follow bool, level, since string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var sinceTime time.Time
	if since != "" {
		sinceTime, _ = time.Parse(time.RFC3339, since)
	}

	lines := readTail(f, n)
	for _, line := range lines {
		printIfMatches(line, level, sinceTime)
	}

	if !follow {
		return nil
	}

	reader := bufio.NewReader(f)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			time.Sleep(500 * time.Millisecond)
			continue
		}
		printIfMatches(line, level, sinceTime)
	}
}

func printIfMatches(line, level string, since time.Time) {
	if level != "" {
		rank := map[string]int{"debug": 0, "info": 1, "warn": 2, "error": 3}
		lineRank := -1
		for name, r := range rank {
			if strings.Contains(line, `"level":"`+name+`"`) {
				lineRank = r
			}
		}
		if min, known := rank[level]; (known && lineRank < min) || (!known && !strings.Contains(line, `"level":"`+level+`"`)) {
			return
		}
	}
	if !since.IsZero() {
		// timestamp gate: the JSON line's "timestamp" field is parsed as
		// RFC3339 or as zap's ISO8601 layout; a line whose timestamp cannot
		// be found or parsed is printed.
		idx := strings.Index(line, `"timestamp":"`)
		if idx >= 0 {
			ts := line[idx+len(`"timestamp":"`):]
			if end := strings.IndexByte(ts, '"'); end >= 0 {
				ts = ts[:end]
				parsed, err := time.Parse(time.RFC3339, ts)
				if err != nil {
					parsed, err = time.Parse("2006-01-02T15:04:05.000Z0700", ts)
				}
				if err == nil && parsed.Before(since) {
					return
				}
			}
		}
	}
	fmt.Print(line)
}

func readTail(f *os.File, n int) []string {
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var all []string
	for scanner.Scan() {
		all = append(all, scanner.Text()+"\n")
	}
	if len(all) <= n {
		return all
	}
	return all[len(all)-n:]
}

package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/poiesic/logingest/parse"
)

var messages = []string{
	"Connection pool exhausted, waiting for a free slot",
	"Request completed in 12ms",
	"Cache miss for key user:1042, loading from store",
	"Retrying operation, attempt 2 of 5",
	"Scheduled job started",
	"Scheduled job finished, 0 errors",
	"Configuration reloaded",
	"Heartbeat received from node-3",
	"Slow query detected, 1530ms",
	"Session expired for user 88, redirecting to login",
	"Disk usage at 81%, threshold is 85%",
	"Message queued for delivery",
	"Failed to reach upstream, falling back to replica",
	"Worker 7 idle, returning to pool",
	"Checkpoint written",
	"The server room developed opinions about the backup schedule.",
	"The null pointer exception filed for workers' compensation.",
	"Memory leaks formed a union.",
	"The cache invalidation problem solved itself out of spite.",
	"The garbage collector went on strike.",
	"TCP packets started arriving before they were sent.",
	"The race condition won by not participating.",
	"The mutex died of loneliness.",
	"The database index went for a walk and never returned.",
	"The API rate limit took a sabbatical.",
	"Load balancers developed preferences.",
	"The thread pool went for a swim.",
	"The watchdog timer fell asleep.",
	"The scheduler scheduled its own retirement.",
	"The daemon process sought redemption.",
}

var (
	levels  = []string{"DEBUG", "INFO", "INFO", "INFO", "WARN", "ERROR"}
	classes = []string{"Scheduler", "ConnectionPool", "RequestHandler", "CacheManager", "Replicator"}
	methods = []string{"Run", "Acquire", "Handle", "Load", "Flush", "Sync"}
)

var (
	outDir       = flag.String("out", "./seed_logs", "directory to write log files to")
	files        = flag.Int("files", 4, "number of files to write")
	linesPerFile = flag.Int("lines", 10000, "lines per file")
	format       = flag.String("format", parse.FormatStandard, "log format (standard, performance)")
	compression  = flag.String("compress", "", "compress files (gz, zst)")
	malformed    = flag.Float64("malformed", 0, "fraction of lines with a broken thread id")
	seed         = flag.Uint64("seed", 1, "random seed")
	seedFileName = flag.String("src", "", "file of messages, one per line")
)

// generator produces synthetic log lines.
type generator struct {
	rng       *rand.Rand
	format    string
	messages  []string
	malformed float64
	start     time.Time
}

// lines returns an iterator over n log lines of one file.
// Standard files start with a header row, as the real ones do.
func (g *generator) lines(fileIndex, n int) iter.Seq[string] {
	return func(yield func(string) bool) {
		if g.format == parse.FormatStandard {
			if !yield("OwnerId,TaskId,TimeStamp,LogLevel,ThreadId,ClassName,MethodName,Message,") {
				return
			}
		}
		ts := g.start.Add(time.Duration(fileIndex) * time.Hour)
		for i := 0; i < n; i++ {
			ts = ts.Add(time.Duration(g.rng.IntN(250)) * time.Millisecond)
			if !yield(g.line(ts)) {
				return
			}
		}
	}
}

func (g *generator) line(ts time.Time) string {
	thread := fmt.Sprint(g.rng.IntN(32) + 1)
	if g.malformed > 0 && g.rng.Float64() < g.malformed {
		thread = "t" + thread
	}
	class := classes[g.rng.IntN(len(classes))]
	method := methods[g.rng.IntN(len(methods))]
	msg := g.messages[g.rng.IntN(len(g.messages))]

	if g.format == parse.FormatPerformance {
		return strings.Join([]string{
			ts.Format("1/2/2006 15:04:05.000"), thread, class, method, msg,
		}, ",") + ","
	}
	return strings.Join([]string{
		fmt.Sprintf("OWNER%03d", g.rng.IntN(1000)),
		fmt.Sprintf("TASK-%d", g.rng.IntN(50)),
		ts.Format(parse.StandardTimestampLayout),
		levels[g.rng.IntN(len(levels))],
		thread, class, method, msg,
	}, ",") + ","
}

// fileName follows the naming the ingest patterns expect.
func fileName(format string, index int, compress string) string {
	name := fmt.Sprintf("log%d.csv", index+1)
	if format == parse.FormatPerformance {
		name = fmt.Sprintf("perf.%d.csv", index+1)
	}
	if compress != "" {
		name += "." + compress
	}
	return name
}

// writeLines writes every line to path, compressed when compress is gz or zst.
func writeLines(path string, lines iter.Seq[string], compress string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	var w io.WriteCloser
	switch compress {
	case "":
		w = nopCloser{f}
	case "gz":
		w = gzip.NewWriter(f)
	case "zst":
		zw, err := zstd.NewWriter(f)
		if err != nil {
			return err
		}
		w = zw
	default:
		return fmt.Errorf("unknown compression %q: must be gz or zst", compress)
	}

	bw := bufio.NewWriter(w)
	for line := range lines {
		bw.WriteString(line)
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	return w.Close()
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

// messagesFromFile reads one message per non-empty line.
func messagesFromFile(filename string) ([]string, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			out = append(out, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s holds no messages", filename)
	}
	return out, nil
}

func run() error {
	if *format != parse.FormatStandard && *format != parse.FormatPerformance {
		return fmt.Errorf("unknown format %q", *format)
	}

	msgs := messages
	if *seedFileName != "" {
		var err error
		msgs, err = messagesFromFile(*seedFileName)
		if err != nil {
			return err
		}
	}

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		return err
	}

	g := &generator{
		rng:       rand.New(rand.NewPCG(*seed, *seed)),
		format:    *format,
		messages:  msgs,
		malformed: *malformed,
		start:     time.Date(2014, 5, 1, 8, 0, 0, 0, time.Local),
	}
	for i := 0; i < *files; i++ {
		path := filepath.Join(*outDir, fileName(*format, i, *compression))
		if err := writeLines(path, g.lines(i, *linesPerFile), *compression); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
		slog.Info("wrote log file", "path", path, "lines", *linesPerFile)
	}
	return nil
}

func main() {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(handler))
	flag.Parse()

	if err := run(); err != nil {
		slog.Error("seeding failed", "err", err)
		os.Exit(1)
	}
}

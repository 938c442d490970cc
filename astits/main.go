// Command astits is a thin CLI shell around the mpegts codec: it
// shuttles a stream between its binary wire form and the package's
// text format, and can dump selected fields or round-trip-verify a
// stream packet by packet.
package main

import (
	"bufio"
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/pkg/profile"
	"golang.org/x/exp/slices"

	"github.com/go-student/mpegts"
	"github.com/go-student/mpegts/internal/fieldpath"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		usage()
		return 2
	}

	cmd := args[0]
	rest := args[1:]

	if cmd == "help" || cmd == "--help" || cmd == "-h" {
		usage()
		return 0
	}

	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	syncGap := fs.Int("sync-gap", mpegts.DefaultSyncGap, "framer sync_gap in bytes (188-18800)")
	fs.IntVar(syncGap, "s", mpegts.DefaultSyncGap, "alias for --sync-gap")
	noRaw := fs.Bool("no-raw", false, "fail if any envelope is a Raw (unparsed) packet")
	ignorePTSDelta := fs.Bool("ignore-pts-delta", false, "don't log a warning when PTS goes backwards in test mode")
	verbose := fs.Bool("d", false, "increase verbosity")
	quiet := fs.Bool("q", false, "suppress all logging")
	inputPath := fs.String("i", "-", "input path, - for stdin")
	outputPath := fs.String("o", "-", "output path, - for stdout")
	cpuProfile := fs.Bool("cpu-profile", false, "enable CPU profiling")

	var fieldFlags []string
	var pts, pusi, pid, typ, syncframe bool
	if cmd == "dump" {
		fs.BoolVar(&pts, "pts", false, "include PTS")
		fs.BoolVar(&pusi, "pusi", false, "include payload_unit_start_indicator")
		fs.BoolVar(&pid, "pid", false, "include PID")
		fs.BoolVar(&typ, "type", false, "include derived stream/envelope type")
		fs.BoolVar(&syncframe, "syncframe", false, "include AC-3 syncframe distance in the payload")
		rest, fieldFlags = extractFieldPathFlags(rest)
	}

	if err := fs.Parse(rest); err != nil {
		return 2
	}

	logger := log.New(os.Stderr, "", log.LstdFlags)
	if *quiet {
		logger.SetOutput(io.Discard)
	}
	if *verbose {
		logger.SetFlags(log.LstdFlags | log.Lshortfile)
	}
	mpegts.SetLogger(logger)

	if *cpuProfile {
		defer profile.Start(profile.CPUProfile, profile.ProfilePath(".")).Stop()
	}

	_, cancel := context.WithCancel(context.Background())
	handleSignals(cancel)

	in, closeIn, err := openInput(*inputPath)
	if err != nil {
		logger.Printf("astits: %v", err)
		return 1
	}
	defer closeIn()

	out, closeOut, err := openOutput(*outputPath)
	if err != nil {
		logger.Printf("astits: %v", err)
		return 1
	}
	defer closeOut()

	opts := []mpegts.FramerOption{mpegts.WithSyncGap(*syncGap)}

	switch cmd {
	case "totxt":
		return runTotxt(in, out, logger, *noRaw, opts)
	case "tobin":
		return runTobin(in, out, logger)
	case "dump":
		return runDump(in, out, logger, *noRaw, opts, dumpFlags{
			pts: pts, pusi: pusi, pid: pid, typ: typ, syncframe: syncframe,
			fieldPaths: fieldFlags,
		})
	case "test":
		return runTest(in, out, logger, *noRaw, *ignorePTSDelta, opts)
	default:
		logger.Printf("astits: unknown subcommand %q", cmd)
		usage()
		return 2
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: astits <totxt|tobin|dump|test|help> [options]

Subcommands:
  totxt   binary TS stream -> text format
  tobin   text format -> binary TS stream
  dump    extract selected fields per envelope
  test    binary -> model -> binary round-trip verification
  help    show this message

Options:
  --sync-gap N, -s N   framer sync_gap in bytes (188-18800)
  --no-raw              fail if any envelope is a Raw (unparsed) packet
  --ignore-pts-delta     don't log a warning when PTS goes backwards in test mode
  -d                    increase verbosity
  -q                    silent
  -i PATH               input path, - for stdin (default)
  -o PATH               output path, - for stdout (default)
  --help, -h            show this message

dump additionally accepts: --pts --pusi --pid --type --syncframe and
any --<dotted.field.path> naming an attribute of the packet model.`)
}

// extractFieldPathFlags pulls out any --xxx flag this command doesn't
// already recognize and treats it as a dotted field path, since the
// set of addressable fields isn't known ahead of time.
var knownDumpFlags = []string{
	"cpu-profile", "d", "i", "ignore-pts-delta", "no-raw", "o", "pid",
	"pts", "pusi", "q", "s", "sync-gap", "syncframe", "type",
}

func extractFieldPathFlags(args []string) (remaining []string, paths []string) {
	for _, a := range args {
		if !strings.HasPrefix(a, "--") && !strings.HasPrefix(a, "-") {
			remaining = append(remaining, a)
			continue
		}
		name := strings.TrimLeft(a, "-")
		if eq := strings.IndexByte(name, '='); eq >= 0 {
			name = name[:eq]
		}
		if slices.Contains(knownDumpFlags, name) {
			remaining = append(remaining, a)
			continue
		}
		paths = append(paths, name)
	}
	return remaining, paths
}

func handleSignals(cancel context.CancelFunc) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
}

func openInput(path string) (io.Reader, func() error, error) {
	if path == "" || path == "-" {
		return os.Stdin, func() error { return nil }, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening input %s: %w", path, err)
	}
	return f, f.Close, nil
}

func openOutput(path string) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		return os.Stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("creating output %s: %w", path, err)
	}
	return f, f.Close, nil
}

func runTotxt(in io.Reader, out io.Writer, logger *log.Logger, noRaw bool, opts []mpegts.FramerOption) int {
	f := mpegts.NewFramer(in, opts...)
	w := bufio.NewWriter(out)
	defer w.Flush()

	for {
		env, ok, err := f.NextEnvelope()
		if err != nil {
			logger.Printf("astits: %v", err)
			return 1
		}
		if !ok {
			break
		}
		if noRaw && env.BodyKind == mpegts.EnvelopeBodyRaw {
			logger.Printf("astits: raw envelope at offset %d with --no-raw set", env.ByteOffset)
			return 1
		}
		fmt.Fprintln(w, mpegts.EncodeEnvelopeText(env))
	}
	return 0
}

func runTobin(in io.Reader, out io.Writer, logger *log.Logger) int {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	w := bufio.NewWriter(out)
	defer w.Flush()

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		env, err := mpegts.DecodeEnvelopeText(line)
		if err != nil {
			logger.Printf("astits: %v", err)
			return 1
		}
		if _, err := w.Write(env.Raw); err != nil {
			logger.Printf("astits: writing output: %v", err)
			return 1
		}
	}
	if err := scanner.Err(); err != nil {
		logger.Printf("astits: reading input: %v", err)
		return 1
	}
	return 0
}

type dumpFlags struct {
	pts, pusi, pid, typ, syncframe bool
	fieldPaths                     []string
}

func runDump(in io.Reader, out io.Writer, logger *log.Logger, noRaw bool, opts []mpegts.FramerOption, df dumpFlags) int {
	f := mpegts.NewFramer(in, opts...)
	w := bufio.NewWriter(out)
	defer w.Flush()

	for {
		env, ok, err := f.NextEnvelope()
		if err != nil {
			logger.Printf("astits: %v", err)
			return 1
		}
		if !ok {
			break
		}
		if noRaw && env.BodyKind == mpegts.EnvelopeBodyRaw {
			logger.Printf("astits: raw envelope at offset %d with --no-raw set", env.ByteOffset)
			return 1
		}

		var fields []string
		fields = append(fields, fmt.Sprintf("index=%d", env.PacketIndex), fmt.Sprintf("offset=%d", env.ByteOffset))

		if env.BodyKind == mpegts.EnvelopeBodyRaw {
			fields = append(fields, "kind=raw")
			if df.syncframe {
				fields = append(fields, fmt.Sprintf("syncframe=%d", mpegts.AC3SyncframeDistance(env.Raw)))
			}
			fmt.Fprintln(w, strings.Join(fields, " "))
			continue
		}

		fields = append(fields, "kind=packet")
		p := env.Packet
		if df.pid {
			fields = append(fields, fmt.Sprintf("pid=%d", p.Header.PID))
		}
		if df.pusi {
			fields = append(fields, fmt.Sprintf("pusi=%t", p.Header.PayloadUnitStartIndicator))
		}
		if df.typ {
			fields = append(fields, fmt.Sprintf("type=%s", envelopeType(p)))
		}
		if df.pts {
			if p.PES != nil && p.PES.OptionalHeader != nil && p.PES.OptionalHeader.PTS != nil {
				fields = append(fields, fmt.Sprintf("pts=%d", *p.PES.OptionalHeader.PTS))
			}
		}
		if df.syncframe && p.DataBytes != nil {
			fields = append(fields, fmt.Sprintf("syncframe=%d", mpegts.AC3SyncframeDistance(p.DataBytes)))
		}
		for _, path := range df.fieldPaths {
			v, err := fieldpath.Get(p, path)
			if err != nil {
				logger.Printf("astits: unknown field %q", path)
				return 2
			}
			fields = append(fields, fmt.Sprintf("%s=%v", path, v))
		}

		fmt.Fprintln(w, strings.Join(fields, " "))
	}
	return 0
}

func envelopeType(p *mpegts.Mpeg2TsPacket) string {
	switch {
	case p.PES != nil:
		return "pes"
	case p.PSI != nil:
		return "psi"
	default:
		return "data"
	}
}

func runTest(in io.Reader, out io.Writer, logger *log.Logger, noRaw, ignorePTSDelta bool, opts []mpegts.FramerOption) int {
	f := mpegts.NewFramer(in, opts...)
	w := bufio.NewWriter(out)
	defer w.Flush()

	var lastPTS *int64
	mismatches := 0
	rawCount := 0

	for {
		env, ok, err := f.NextEnvelope()
		if err != nil {
			logger.Printf("astits: %v", err)
			return 1
		}
		if !ok {
			break
		}

		if env.BodyKind == mpegts.EnvelopeBodyRaw {
			rawCount++
			continue
		}

		w.Write(env.Raw)

		p := env.Packet
		reserialized, err := mpegts.SerializePacket(p)
		if err != nil {
			logger.Printf("astits: serializing packet at offset %d: %v", env.ByteOffset, err)
			mismatches++
		} else if !bytes.Equal(reserialized, env.Raw) {
			logger.Printf("astits: round-trip mismatch at offset %d\n  got:  % x\n  want: % x", env.ByteOffset, reserialized, env.Raw)
			mismatches++
		}

		if !ignorePTSDelta && p.PES != nil && p.PES.OptionalHeader != nil && p.PES.OptionalHeader.PTS != nil {
			cur := *p.PES.OptionalHeader.PTS
			if lastPTS != nil && mpegts.PTSModulo.Cmp(cur, *lastPTS) < 0 {
				logger.Printf("astits: PTS went backwards at offset %d: %d -> %d", env.ByteOffset, *lastPTS, cur)
			}
			lastPTS = &cur
		}
	}

	if noRaw && rawCount > 0 {
		logger.Printf("astits: %d raw envelope(s) encountered with --no-raw set", rawCount)
		return 1
	}
	if mismatches > 0 {
		return 1
	}
	return 0
}

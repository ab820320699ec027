// Command export-cards renders the invitation cards of one event into a directory, a zip
// archive or a printable PDF.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"ms-invites/internal/card"
	"ms-invites/internal/config"
	"ms-invites/internal/database"
	"ms-invites/internal/logger"
	"ms-invites/internal/store"
)

type options struct {
	eventID     string
	out         string
	format      string
	ids         []string
	concurrency int
	timeout     time.Duration
}

func parseFlags(args []string, cfg *config.Config) (*options, error) {
	fs := flag.NewFlagSet("export-cards", flag.ContinueOnError)
	o := &options{}
	var ids string
	fs.StringVar(&o.eventID, "event", "", "event id (required)")
	fs.StringVar(&o.out, "out", "", "output directory, or file for zip and pdf (required)")
	fs.StringVar(&o.format, "format", "", "dir, zip or pdf; guessed from -out when empty")
	fs.StringVar(&ids, "ids", "", "comma separated invite ids; all invites when empty")
	fs.IntVar(&o.concurrency, "concurrency", cfg.Card.ExportConcurrency, "cards rendered in parallel")
	fs.DurationVar(&o.timeout, "timeout", 10*time.Minute, "give up after this long")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if o.eventID == "" || o.out == "" {
		return nil, fmt.Errorf("-event and -out are required")
	}
	if o.format == "" {
		switch strings.ToLower(filepath.Ext(o.out)) {
		case ".zip":
			o.format = "zip"
		case ".pdf":
			o.format = "pdf"
		default:
			o.format = "dir"
		}
	}
	if o.format != "dir" && o.format != "zip" && o.format != "pdf" {
		return nil, fmt.Errorf("unknown format %q", o.format)
	}
	for _, id := range strings.Split(ids, ",") {
		if id = strings.TrimSpace(id); id != "" {
			o.ids = append(o.ids, id)
		}
	}
	return o, nil
}

// export renders every card first and writes output only when all of them succeeded.
func export(ctx context.Context, renderer *card.Renderer, o *options) (int, error) {
	_, cards, err := renderer.EventCards(ctx, o.eventID, o.ids)
	if err != nil {
		return 0, err
	}

	switch o.format {
	case "dir":
		err = card.WriteDir(ctx, o.out, cards)
	default:
		err = writeFileAtomic(o.out, func(f *os.File) error {
			if o.format == "zip" {
				return card.WriteZip(ctx, f, cards)
			}
			return card.WritePDF(ctx, f, cards)
		})
	}
	if err != nil {
		return 0, err
	}
	return len(cards), nil
}

func writeFileAtomic(path string, write func(f *os.File) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".export-*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	_ = godotenv.Load()
	cfg := config.Load()
	log := logger.New(os.Stderr)

	o, err := parseFlags(args, cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	bunDB, err := database.Connect(ctx, cfg.Database, log)
	if err != nil {
		log.Error("DATABASE", err.Error())
		return 1
	}
	defer bunDB.Close()

	renderer := card.NewRenderer(store.New(bunDB), card.NewComposer(cfg.Card.QRRenderSize), o.concurrency, log)

	start := time.Now()
	n, err := export(ctx, renderer, o)
	if err != nil {
		log.Error("EXPORT", failureMessage(o.format, err))
		return 1
	}
	log.Info("EXPORT", fmt.Sprintf("Wrote %d cards to %s (%s) in %s", n, o.out, o.format, time.Since(start).Round(time.Millisecond)))
	return 0
}

// failureMessage says what may be left behind. Zip and pdf files are written atomically;
// a directory export can stop after some cards were already placed.
func failureMessage(format string, err error) string {
	if format == "dir" {
		return fmt.Sprintf("Export failed, the directory may hold some of the cards: %v", err)
	}
	return fmt.Sprintf("Export failed, nothing written: %v", err)
}

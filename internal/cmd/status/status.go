// Package status parses status command flags and loads player status
// fragments into in-memory targets or the elements of a host page.
package status

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/a-h/templ"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/louisbranch/statusfrag/internal/dom"
	"github.com/louisbranch/statusfrag/internal/fragment"
	entrypoint "github.com/louisbranch/statusfrag/internal/platform/cmd"
	"github.com/louisbranch/statusfrag/internal/platform/logging"
	"github.com/louisbranch/statusfrag/internal/platform/timeouts"
)

// ElementPrefix names the default target element of a player id.
const ElementPrefix = "player-"

// Settings holds the status command options read from env and flags.
type Settings struct {
	PageURL  string        `env:"PAGE_URL" envDefault:"http://localhost:8080/"`
	Network  string        `env:"NETWORK" envDefault:"facebook"`
	BasePath string        `env:"BASE_PATH"`
	HostPage string        `env:"HOST_PAGE"`
	Interval time.Duration `env:"INTERVAL"`
	LogLevel string        `env:"LOG_LEVEL" envDefault:"normal"`
}

// Config holds status command configuration.
type Config struct {
	Settings

	// Bindings are the positional arguments in order.
	Bindings []Binding
}

// Binding pairs a target element with the player id loaded into it.
type Binding struct {
	Target string
	ID     string
}

// ParseBinding reads "target=id" or a bare "id". A bare id targets
// ElementPrefix+id; "target=" clears target.
func ParseBinding(arg string) Binding {
	if target, id, ok := strings.Cut(arg, "="); ok {
		return Binding{Target: target, ID: id}
	}
	return Binding{Target: ElementPrefix + arg, ID: arg}
}

func bindFlags(fs *flag.FlagSet, cfg *Settings) {
	fs.StringVar(&cfg.PageURL, "page-url", cfg.PageURL, "URL of the page hosting the status targets")
	fs.StringVar(&cfg.Network, "network", cfg.Network, "Player network used to build the status path")
	fs.StringVar(&cfg.BasePath, "base-path", cfg.BasePath, "Status path prefix (overrides -network)")
	fs.StringVar(&cfg.HostPage, "host-page", cfg.HostPage, "HTML page whose elements receive the fragments")
	fs.DurationVar(&cfg.Interval, "interval", cfg.Interval, "Reload every interval until interrupted (0 loads once)")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: none, normal or debug")
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfigFromArgs(&cfg.Settings, fs, args, bindFlags); err != nil {
		return Config{}, err
	}
	if cfg.Interval < 0 || (cfg.Interval > 0 && cfg.Interval < timeouts.MinRefresh) {
		return Config{}, fmt.Errorf("interval must be 0 or at least %s", timeouts.MinRefresh)
	}
	if fs.NArg() == 0 {
		return Config{}, errors.New("at least one player id is required")
	}
	for _, arg := range fs.Args() {
		cfg.Bindings = append(cfg.Bindings, ParseBinding(arg))
	}
	return cfg, nil
}

// Run loads every binding and renders the result to out.
func Run(ctx context.Context, cfg Config, out io.Writer) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceStatus, func(ctx context.Context) error {
		logger, err := logging.New(cfg.LogLevel, nil)
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		board, err := newBoard(cfg, logger)
		if err != nil {
			return err
		}
		return board.run(ctx, cfg.Interval, out)
	})
}

// board holds the targets of one command invocation.
type board struct {
	loader   *fragment.Loader
	logger   *zap.Logger
	bindings []Binding
	targets  map[string]fragment.Target
	doc      *dom.Document
	// order lists in-memory targets by first appearance.
	order    []string
	elements map[string]*fragment.Element
	// waitCap bounds how long a round waits before rendering.
	waitCap time.Duration
}

func newBoard(cfg Config, logger *zap.Logger) (*board, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = fragment.StatusPath(cfg.Network, "")
	}
	loader, err := fragment.NewLoader(fragment.Config{
		PageURL:  cfg.PageURL,
		BasePath: basePath,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("init loader: %w", err)
	}

	b := &board{
		loader:   loader,
		logger:   logger,
		bindings: cfg.Bindings,
		targets:  make(map[string]fragment.Target, len(cfg.Bindings)),
		elements: make(map[string]*fragment.Element),
		waitCap:  timeouts.Wait,
	}
	if cfg.HostPage != "" {
		if err := b.bindDocument(cfg.HostPage); err != nil {
			return nil, err
		}
		return b, nil
	}
	for _, binding := range cfg.Bindings {
		if _, ok := b.elements[binding.Target]; ok {
			continue
		}
		el := fragment.NewElement("")
		b.elements[binding.Target] = el
		b.targets[binding.Target] = el
		b.order = append(b.order, binding.Target)
	}
	return b, nil
}

func (b *board) bindDocument(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open host page: %w", err)
	}
	defer f.Close()

	doc, err := dom.Parse(f)
	if err != nil {
		return err
	}
	for _, binding := range b.bindings {
		if _, ok := b.targets[binding.Target]; ok {
			continue
		}
		el, err := doc.Element(binding.Target)
		if err != nil {
			return fmt.Errorf("bind %s: %w", binding.Target, err)
		}
		b.targets[binding.Target] = el
	}
	b.doc = doc
	return nil
}

func (b *board) run(ctx context.Context, interval time.Duration, out io.Writer) error {
	if err := b.round(ctx); err != nil {
		return err
	}
	if err := b.render(ctx, out); err != nil {
		return err
	}
	if interval <= 0 {
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := b.round(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
			if err := b.render(ctx, out); err != nil {
				return err
			}
		}
	}
}

// round starts every load and waits for them up to waitCap. Loads still in
// flight after that keep their targets' content and may land later. Loads
// for the same target race; the response that completes last wins. Only
// cancellation of ctx is returned.
func (b *board) round(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, b.waitCap)
	defer cancel()

	var g errgroup.Group
	for _, binding := range b.bindings {
		p := b.loader.Load(ctx, b.targets[binding.Target], binding.ID)
		g.Go(func() error {
			outcome, err := p.Wait(waitCtx)
			if err != nil {
				if ctx.Err() == nil {
					b.logger.Debug("status fragment still pending",
						zap.String("target", binding.Target),
						zap.String("id", binding.ID),
						zap.Duration("waited", b.waitCap),
					)
				}
				return nil
			}
			b.logger.Info("status fragment",
				zap.String("target", binding.Target),
				zap.String("id", binding.ID),
				zap.Stringer("outcome", outcome),
			)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("wait for fragments: %w", err)
	}
	return nil
}

func (b *board) render(ctx context.Context, out io.Writer) error {
	if b.doc != nil {
		if err := b.doc.Render(out); err != nil {
			return fmt.Errorf("render host page: %w", err)
		}
		_, err := io.WriteString(out, "\n")
		return err
	}
	for _, target := range b.order {
		if err := section(target, b.elements[target]).Render(ctx, out); err != nil {
			return fmt.Errorf("render %s: %w", target, err)
		}
	}
	return nil
}

// section wraps an element's content in a section carrying the target id.
func section(target string, el *fragment.Element) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, `<section id="`+templ.EscapeString(target)+`">`); err != nil {
			return err
		}
		if err := el.Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, "</section>\n")
		return err
	})
}

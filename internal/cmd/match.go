package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/riftlens/riftlens/internal/core"
	"github.com/riftlens/riftlens/internal/core/session"
	apperrors "github.com/riftlens/riftlens/internal/errors"
	"github.com/riftlens/riftlens/internal/observability"
	"github.com/riftlens/riftlens/internal/output"
)

var (
	matchRegion  string
	matchRandom  bool
	matchOutput  string
	matchTimeout time.Duration
	matchOut     string
)

var matchCmd = &cobra.Command{
	Use:   "match [player]",
	Short: "Scout a live match from the terminal",
	Long: `Resolve a player's live game (or a random featured game with --random),
run the enrichment pipeline in-process and print each stage as it completes.

Examples:
  riftlens match "Faker" --region kr
  riftlens match --random --output-format json`,
	Args: func(cmd *cobra.Command, args []string) error {
		if matchRandom && len(args) > 0 {
			return fmt.Errorf("--random takes no player name")
		}
		if !matchRandom && len(args) != 1 {
			return fmt.Errorf("requires a player name or --random")
		}
		return nil
	},
	RunE: runMatch,
}

func runMatch(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(matchOutput)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), matchTimeout)
	defer cancel()

	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	st, err := buildStack(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := st.close(closeCtx); err != nil {
			observability.CLILogger.Warn("Shutdown incomplete", zap.Error(err))
		}
	}()
	st.loadCatalog(ctx)

	var m *session.Match
	if matchRandom {
		m, err = st.resolver.ResolveAny(ctx, matchRegion)
	} else {
		m, err = st.resolver.ResolveByPlayer(ctx, args[0], matchRegion)
	}
	if err != nil {
		envelope := apperrors.FromResolveError(ctx, err)
		observability.CLILogger.Debug("Match resolution failed", zap.Error(err))
		return envelope
	}
	observability.CLILogger.Debug("Match resolved",
		zap.Int64("match_id", m.ID),
		zap.String("region", m.Region))

	conn := newTerminalConn()
	s, err := st.registry.Subscribe(conn, *m)
	if err != nil {
		return apperrors.FromResolveError(ctx, err)
	}
	defer st.registry.Unsubscribe(conn.ID())

	sink, err := openSink(matchOut)
	if err != nil {
		return err
	}
	defer func() { _ = sink.close() }()

	return printSession(ctx, sink.writer, output.NewFormatter(format), conn, s.Done())
}

// printSession prints events until the pipeline ends. A crucial error is
// returned so the process exits non-zero.
func printSession(ctx context.Context, w io.Writer, formatter output.Formatter, conn *terminalConn, done <-chan struct{}) error {
	var crucial error
	emit := func(ev session.Event) error {
		if p, ok := ev.Data.(session.ErrorPayload); ok && p.Type == session.ErrorTypeCrucial {
			crucial = fmt.Errorf("match pipeline stopped at %s: %s", p.Stage, p.Message)
		}
		rendered, err := formatter.FormatEvent(ev)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, strings.TrimRight(rendered, "\n"))
		return err
	}

	for {
		select {
		case ev := <-conn.events:
			if err := emit(ev); err != nil {
				return err
			}
		case <-done:
			// events are queued before done closes
			for {
				select {
				case ev := <-conn.events:
					if err := emit(ev); err != nil {
						return err
					}
				default:
					return crucial
				}
			}
		case <-ctx.Done():
			return apperrors.Wrap(ctx, apperrors.CodeTimeout, ctx.Err(), "match did not finish in time")
		}
	}
}

// terminalConn is a session.Conn that queues events for printSession. The
// buffer holds a whole pipeline, so Send never fails in practice.
type terminalConn struct {
	id     string
	events chan session.Event
}

func newTerminalConn() *terminalConn {
	return &terminalConn{
		id:     "cli-" + uuid.New().String(),
		events: make(chan session.Event, 4*len(core.DefaultPipeline)),
	}
}

func (c *terminalConn) ID() string { return c.id }

func (c *terminalConn) Send(ev session.Event) error {
	select {
	case c.events <- ev:
		return nil
	default:
		return fmt.Errorf("terminal output is behind")
	}
}

func init() {
	rootCmd.AddCommand(matchCmd)

	matchCmd.Flags().StringVarP(&matchRegion, "region", "r", "", "region (default from config)")
	matchCmd.Flags().BoolVar(&matchRandom, "random", false, "scout a random featured game")
	matchCmd.Flags().StringVar(&matchOutput, "output-format", string(output.FormatTable), "Output format: table|json")
	matchCmd.Flags().StringVar(&matchOut, "out", "", "Write output to a file (default stdout)")
	matchCmd.Flags().DurationVar(&matchTimeout, "timeout", 5*time.Minute, "give up after this long")
}

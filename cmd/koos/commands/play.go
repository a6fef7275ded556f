package commands

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/ABakker30/koospuzzlev1-sub002/internal/catalog"
	"github.com/ABakker30/koospuzzlev1-sub002/internal/config"
	"github.com/ABakker30/koospuzzlev1-sub002/internal/deps"
	"github.com/ABakker30/koospuzzlev1-sub002/internal/driver"
	"github.com/ABakker30/koospuzzlev1-sub002/internal/ledger"
	"github.com/ABakker30/koospuzzlev1-sub002/internal/printer"
	"github.com/ABakker30/koospuzzlev1-sub002/pkg/engine"
	"github.com/ABakker30/koospuzzlev1-sub002/pkg/lattice"
)

var playConfigPath string

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Start an interactive game session",
	Long: `Play starts a game from a koos.yml configuration and reads moves from
standard input. When the configuration names a Redis ledger, the session is
recorded there and remote moves stream in live.

Commands at the prompt:
  place <piece> <i,j,k> <i,j,k> <i,j,k> <i,j,k>   place a piece
  hint <i,j,k>                                     request a hint at a cell
  check                                            check board solvability
  pass                                             end the turn
  board                                            show placements
  score                                            show the scoreboard
  quit                                             leave the game`,
	RunE: runPlay,
}

func init() {
	playCmd.Flags().StringVarP(&playConfigPath, "config", "c", "koos.yml", "path to the game configuration")
	rootCmd.AddCommand(playCmd)
}

func nowMs() int64 { return time.Now().UnixMilli() }

func runPlay(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(playConfigPath)
	if err != nil {
		return printer.Error("Invalid game configuration", err.Error(), []string{
			"Check the syntax of " + playConfigPath,
			"Run 'koos check' to validate the container",
		})
	}

	spec, err := cfg.PuzzleSpec()
	if err != nil {
		return printer.Error("Invalid container", err.Error(), nil)
	}

	state, err := engine.NewGameState(cfg.SetupInput(), spec)
	if err != nil {
		return printer.Error("Invalid game setup", err.Error(), nil)
	}

	bundle := deps.New(catalog.Default(), deps.Options{})
	opts := driver.Options{
		NowMs:         nowMs,
		OnStateChange: renderTransition,
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	if cfg.Redis != nil {
		lc, err := ledger.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, state.GameID)
		if err != nil {
			return printer.Error("Failed to create ledger client", err.Error(), nil)
		}
		defer lc.Close()
		if err := lc.Ping(ctx); err != nil {
			return printer.Error("Cannot reach Redis", err.Error(), []string{
				"Verify the redis.addr in " + playConfigPath,
				"Remove the redis section to play locally",
			})
		}
		opts.Ledger = lc
	}

	d := driver.New(state, bundle, opts)

	if opts.Ledger != nil {
		// Adopt any state already recorded for this game, then stream
		// remote moves.
		if err := d.Resync(ctx); err != nil {
			printer.Warning("ledger resync failed: %v\n", err)
		}
		go d.Run(ctx)
	}

	if d.State().Phase == engine.PhaseSetup {
		if _, err := d.Apply(ctx, engine.StartGame{AtMs: nowMs()}); err != nil {
			printer.Warning("failed to record game start: %v\n", err)
		}
	}
	if cfg.Settings.TimerMode == engine.TimerModeClock {
		go d.RunClock(ctx)
	}

	printer.Success("game %s started: %q (%d cells)\n", d.State().GameID, spec.Name(), spec.Size())
	return promptLoop(ctx, d)
}

// promptLoop reads player commands from stdin until the game ends or the
// player quits.
func promptLoop(ctx context.Context, d *driver.Driver) error {
	scanner := bufio.NewScanner(os.Stdin)
	for {
		st := d.State()
		if st.Phase == engine.PhaseEnded {
			renderEnd(st)
			return nil
		}
		if active := st.ActivePlayer(); active != nil && st.Phase == engine.PhaseInTurn {
			printer.Turn(st.Turn, active.Name)
		}
		printer.Printf("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}

		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if fields[0] == "quit" {
			printer.Println("leaving game")
			return nil
		}
		if err := runCommand(ctx, d, fields); err != nil {
			printer.Warning("%v\n", err)
		}
	}
}

func runCommand(ctx context.Context, d *driver.Driver, fields []string) error {
	st := d.State()
	active := st.ActivePlayer()
	if active == nil {
		return fmt.Errorf("no active player")
	}

	switch fields[0] {
	case "place":
		if len(fields) != 6 {
			return fmt.Errorf("usage: place <piece> <i,j,k> x4")
		}
		cells, err := parseCells(fields[2:])
		if err != nil {
			return err
		}
		_, err = d.Apply(ctx, engine.PlacePiece{
			PlayerID: active.ID,
			PieceID:  fields[1],
			Cells:    cells,
			AtMs:     nowMs(),
		})
		return err

	case "hint":
		if len(fields) != 2 {
			return fmt.Errorf("usage: hint <i,j,k>")
		}
		anchor, err := lattice.ParseCell(fields[1])
		if err != nil {
			return err
		}
		_, err = d.Apply(ctx, engine.RequestHint{PlayerID: active.ID, Anchor: anchor, AtMs: nowMs()})
		if err == nil {
			waitForResolution(d)
		}
		return err

	case "check":
		_, err := d.Apply(ctx, engine.RequestCheck{PlayerID: active.ID, AtMs: nowMs()})
		if err == nil {
			waitForResolution(d)
		}
		return err

	case "pass":
		_, err := d.Apply(ctx, engine.Pass{PlayerID: active.ID, AtMs: nowMs()})
		return err

	case "board":
		renderBoard(st)
		return nil

	case "score":
		renderScore(st)
		return nil

	default:
		return fmt.Errorf("unknown command %q", fields[0])
	}
}

// waitForResolution blocks the prompt until an outstanding asynchronous
// request (hint or check) and any follow-up repair have played out.
func waitForResolution(d *driver.Driver) {
	for {
		st := d.State()
		if st.Phase == engine.PhaseEnded {
			return
		}
		if st.Phase == engine.PhaseInTurn && st.Subphase == engine.SubphaseNormal {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func parseCells(keys []string) ([]lattice.Cell, error) {
	cells := make([]lattice.Cell, len(keys))
	for i, key := range keys {
		cell, err := lattice.ParseCell(key)
		if err != nil {
			return nil, err
		}
		cells[i] = cell
	}
	return cells, nil
}

// renderTransition surfaces the transient outputs of each state transition.
func renderTransition(st engine.GameState) {
	if st.Message != "" {
		printer.Info("%s\n", st.Message)
	}
	for _, n := range st.Notices {
		switch n.Kind {
		case engine.NoticeScorePulse:
			if n.ScoreDelta > 0 {
				printer.Success("%s +%d\n", playerName(&st, n.PlayerID), n.ScoreDelta)
			} else {
				printer.Warning("%s %d\n", playerName(&st, n.PlayerID), n.ScoreDelta)
			}
		case engine.NoticeRepairProgress:
			printer.Step("repair %d/%d\n", n.Cursor, n.Total)
		}
	}
	if st.PendingHint != nil {
		printer.Hint("thinking about %s...\n", st.PendingHint.Anchor.Key())
	}
}

func playerName(st *engine.GameState, id string) string {
	if p := st.PlayerByID(id); p != nil {
		return p.Name
	}
	return id
}

func renderBoard(st engine.GameState) {
	if len(st.Board) == 0 {
		printer.Println("board is empty")
		return
	}
	for _, p := range st.Board {
		keys := make([]string, len(p.Cells))
		for i, c := range p.Cells {
			keys[i] = c.Key()
		}
		printer.Printf("  %s by %s (%s): %s\n", p.PieceID, playerName(&st, p.PlayerID), p.Provenance, strings.Join(keys, " "))
	}
	printer.Printf("%d of %d cells covered\n", 4*len(st.Board), st.Spec.Size())
}

func renderScore(st engine.GameState) {
	for i, p := range st.Players {
		marker := " "
		if i == st.ActiveIdx {
			marker = "*"
		}
		printer.Printf("%s ", marker)
		printer.Score(i+1, p.Name, p.Score)
	}
}

func renderEnd(st engine.GameState) {
	if st.End == nil {
		return
	}
	printer.Println()
	printer.Success("game over (%s)\n", st.End.Reason)
	for i, row := range st.End.Ranking {
		printer.Score(i+1, row.Name, row.Score)
	}
	if len(st.End.WinnerIDs) == 1 {
		printer.Success("winner: %s\n", playerName(&st, st.End.WinnerIDs[0]))
	} else {
		names := make([]string, len(st.End.WinnerIDs))
		for i, id := range st.End.WinnerIDs {
			names[i] = playerName(&st, id)
		}
		printer.Success("tie between %s\n", strings.Join(names, ", "))
	}
}

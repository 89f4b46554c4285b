package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/ctrlflow/attestcore/cliconfig"
	"github.com/ctrlflow/attestcore/core"
	"github.com/ctrlflow/attestcore/exportsink"
	"github.com/ctrlflow/attestcore/simclient"
)

var demoBadPath bool

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run a simulated attestation session and print its proof",
	Long: `demo drives one in-process session through a short sequence of
branch, indirect-call, and call/return events and prints the resulting
execution log and digest. Pass --bad-path to simulate a hijacked
return and watch the core reject it.`,
	RunE: runDemo,
}

func init() {
	demoCmd.Flags().BoolVar(&demoBadPath, "bad-path", false, "simulate a mismatched function return")
}

func runDemo(cmd *cobra.Command, args []string) error {
	cfg, err := cliconfig.Load(ConfigFile())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	b := core.NewBoundary(core.Config{MaxSessions: cfg.MaxSessions})

	aborter := &cliAborter{out: cmd.OutOrStdout()}
	c, err := simclient.Open(b, aborter)
	if err != nil {
		return fmt.Errorf("open session: %w", err)
	}
	defer c.Close()

	const mainID = 0x1B2
	if err := c.FuncEnter(mainID); err != nil {
		return fmt.Errorf("func enter: %w", err)
	}
	if err := c.Log(1); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	if err := c.LogIndirect(0x00000001DEADBEEF); err != nil {
		return fmt.Errorf("log indirect: %w", err)
	}

	if demoBadPath {
		c.FuncExit(0xBAD5) // wrong id on purpose
	}
	c.FuncExit(mainID)

	proof, err := c.Proof()
	if err != nil {
		return fmt.Errorf("proof: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "execution proof: %x\n", proof)

	log, err := c.ExportLog()
	if err != nil {
		return fmt.Errorf("export log: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "execution log (%d bytes): % x\n", len(log), log)

	if cfg.ExportDir != "" {
		sink, err := exportsink.OpenFileSink(cfg.ExportDir)
		if err != nil {
			return fmt.Errorf("open export sink: %w", err)
		}
		defer sink.Close()
		err = sink.Put(exportsink.Export{
			SessionID:  1,
			ExportedAt: time.Now(),
			Tag:        proof,
			Log:        log,
		})
		if err != nil {
			return fmt.Errorf("persist export: %w", err)
		}
	}

	if cfg.SQLiteDSN != "" {
		db, err := exportsink.OpenSQLiteSink(cfg.SQLiteDSN)
		if err != nil {
			return fmt.Errorf("open sqlite export sink: %w", err)
		}
		defer db.Close()
		err = db.Put(exportsink.Export{
			SessionID:  1,
			ExportedAt: time.Now(),
			Tag:        proof,
			Log:        log,
		})
		if err != nil {
			return fmt.Errorf("persist export to sqlite: %w", err)
		}
	}

	return nil
}

// cliAborter prints the detection instead of exiting, so a bad-path
// demo run can still print its proof and log afterward.
type cliAborter struct {
	out io.Writer
}

func (a *cliAborter) Abort(msg string) {
	fmt.Fprintf(a.out, "[attestctl] detected hijacked return: %s\n", msg)
}

// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/davecgh/go-spew/spew"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"gopkg.in/cheggaaa/pb.v1"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/vechain/thorpos/cmd/stakesim/httpserver"
	"github.com/vechain/thorpos/eventdb"
	"github.com/vechain/thorpos/genesis"
	"github.com/vechain/thorpos/kv"
	"github.com/vechain/thorpos/log"
	"github.com/vechain/thorpos/lvldb"
	"github.com/vechain/thorpos/metrics"
	"github.com/vechain/thorpos/runtime"
)

var (
	version   string
	gitCommit string
	gitTag    string

	logger = log.WithContext("pkg", "stakesim")
)

func fullVersion() string {
	versionMeta := "release"
	if gitTag == "" {
		versionMeta = "dev"
	}
	return fmt.Sprintf("%s-%s-%s", version, gitCommit, versionMeta)
}

func main() {
	app := cli.App{
		Version:   fullVersion(),
		Name:      "stakesim",
		Usage:     "Replays staking scenarios through the proof-of-stake engine",
		Copyright: "2025 VeChain Foundation <https://vechain.org/>",
		Flags: []cli.Flag{
			verbosityFlag,
		},
		Commands: []cli.Command{
			{
				Name:  "replay",
				Usage: "execute the blocks of a scenario and commit them",
				Flags: []cli.Flag{
					genesisFlag,
					blocksFlag,
					dataDirFlag,
					eventDBFlag,
					cacheFlag,
					verbosityFlag,
					enableMetricsFlag,
					metricsAddrFlag,
				},
				Action: replayAction,
			},
			{
				Name:  "inspect",
				Usage: "dump the staking state of a data dir",
				Flags: []cli.Flag{
					genesisFlag,
					blocksFlag,
					dataDirFlag,
					eventDBFlag,
					verbosityFlag,
				},
				Action: inspectAction,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initLogger(ctx *cli.Context) {
	verbosity := ctx.Int(verbosityFlag.Name)
	if ctx.GlobalIsSet(verbosityFlag.Name) && !ctx.IsSet(verbosityFlag.Name) {
		verbosity = ctx.GlobalInt(verbosityFlag.Name)
	}
	useColor := isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
	log.SetDefault(log.NewTerminalHandler(os.Stderr, log.LevelFromVerbosity(verbosity), useColor))
}

func handleExitSignal() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		exitSignalCh := make(chan os.Signal, 1)
		signal.Notify(exitSignalCh, os.Interrupt, syscall.SIGTERM)

		sig := <-exitSignalCh
		logger.Info("exit signal received", "signal", sig)
		cancel()
	}()
	return ctx
}

// prepare loads the genesis, funded with the accounts of the scenario if any.
func prepare(ctx *cli.Context) (*genesis.Genesis, *Scenario, *keyring, error) {
	gen := genesis.NewDevnet()
	if path := ctx.String(genesisFlag.Name); path != "" {
		var err error
		if gen, err = genesis.Load(path); err != nil {
			return nil, nil, nil, err
		}
	}
	keys := newKeyring()
	path := ctx.String(blocksFlag.Name)
	if path == "" {
		return gen, nil, keys, nil
	}
	sc, err := loadScenario(path)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := sc.Apply(gen, keys); err != nil {
		return nil, nil, nil, errors.Wrap(err, "fund scenario accounts")
	}
	return gen, sc, keys, nil
}

func openStore(ctx *cli.Context) (kv.Store, error) {
	dir := ctx.String(dataDirFlag.Name)
	if dir == "" {
		logger.Warn("no data dir given, chain data kept in memory")
		return lvldb.NewMem(), nil
	}
	return lvldb.New(dir, lvldb.Options{
		CacheSize:              128,
		OpenFilesCacheCapacity: 64,
	})
}

func openEventDB(ctx *cli.Context) (*eventdb.EventDB, error) {
	path := ctx.String(eventDBFlag.Name)
	if path == "" {
		return nil, nil
	}
	return eventdb.New(path)
}

func replayAction(ctx *cli.Context) error {
	exitSignal := handleExitSignal()
	initLogger(ctx)

	gen, sc, keys, err := prepare(ctx)
	if err != nil {
		return err
	}
	if sc == nil {
		return errors.New("flag --blocks is required")
	}

	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	events, err := openEventDB(ctx)
	if err != nil {
		return err
	}
	opts := runtime.Options{StateCacheMB: ctx.Int(cacheFlag.Name)}
	if events != nil {
		defer events.Close()
		opts.Events = events
	}

	if ctx.Bool(enableMetricsFlag.Name) {
		metrics.InitializePrometheusMetrics()
		url, stop, err := httpserver.StartServer(ctx.String(metricsAddrFlag.Name), events)
		if err != nil {
			return err
		}
		defer stop()
		logger.Info("metrics server started", "url", url+"/metrics")
	}

	rt, err := runtime.New(store, gen, opts)
	if err != nil {
		return err
	}

	player := newPlayer(rt, keys)
	if isatty.IsTerminal(os.Stdout.Fd()) {
		bar := pb.New64(int64(sc.Len())).SetMaxWidth(90).Start()
		defer func() { bar.NotPrint = true }()
		player.onBlock = func(res *BlockResult) {
			reportBlock(res)
			bar.Add64(1)
		}
		defer bar.Finish()
	} else {
		player.onBlock = reportBlock
	}

	if err := player.play(exitSignal, sc); err != nil {
		return err
	}

	rd := rt.Reader()
	defer rd.Release()
	supply, err := rd.TotalSupply()
	if err != nil {
		return err
	}
	locked, err := rd.TotalLocked()
	if err != nil {
		return err
	}
	logger.Info("replay done", "height", rd.Height(), "root", rd.Root(), "supply", supply, "locked", locked)
	return nil
}

func reportBlock(res *BlockResult) {
	for i, r := range res.Results {
		if !r.OK() {
			logger.Info("tx rejected", "height", res.Height, "index", i, "origin", r.Origin, "code", r.Code, "reason", r.Log)
		}
	}
	for _, u := range res.Updates {
		logger.Debug("power update", "height", res.Height, "validator", u.Address, "power", u.Power)
	}
}

func inspectAction(ctx *cli.Context) error {
	initLogger(ctx)

	if ctx.String(dataDirFlag.Name) == "" {
		return errors.New("flag --data-dir is required")
	}
	gen, _, _, err := prepare(ctx)
	if err != nil {
		return err
	}
	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	rt, err := runtime.New(store, gen, runtime.Options{})
	if err != nil {
		return err
	}
	rd := rt.Reader()
	defer rd.Release()

	snap, err := takeSnapshot(rd)
	if err != nil {
		return err
	}

	events, err := openEventDB(ctx)
	if err != nil {
		return err
	}
	if events != nil {
		defer events.Close()
		if snap.RecentEvents, err = events.Filter(context.Background(), &eventdb.Filter{Order: eventdb.DESC, Limit: 20}); err != nil {
			return err
		}
	}

	cfg := spew.ConfigState{Indent: "    ", DisablePointerAddresses: true, DisableCapacities: true, SortKeys: true}
	cfg.Fdump(os.Stdout, snap)
	return nil
}

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"norn/internal/agent"
	"norn/internal/common"
	"norn/internal/sim"
	"norn/internal/sink"
)

func main() {
	symbol := flag.String("symbol", "NORN", "instrument symbol")
	tick := flag.Int64("tick", 1, "tick size in minor price units")
	lot := flag.Int64("lot", 1, "lot size in minor quantity units")
	startPrice := flag.Int64("price", 10000, "opening mark price, in minor units")
	horizon := flag.Duration("horizon", 10*time.Second, "simulated run length")
	seed := flag.Int64("seed", 1, "noise trader seed; same seed, same run")
	noiseAgents := flag.Int("noise", 8, "number of noise traders")
	journalPath := flag.String("journal", "", "pebble journal directory (empty discards)")
	level := flag.String("log-level", "info", "zerolog level")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	lvl, err := zerolog.ParseLevel(*level)
	if err != nil {
		log.Fatal().Err(err).Msg("bad log level")
	}
	zerolog.SetGlobalLevel(lvl)

	instrument := common.Instrument{
		ID:     common.InstrumentID(*symbol),
		Symbol: *symbol,
		Tick:   *tick,
		Lot:    *lot,
	}

	var journal sink.Sink
	if *journalPath != "" {
		store, err := sink.OpenPebble(*journalPath)
		if err != nil {
			log.Fatal().Err(err).Msg("unable to open journal")
		}
		log.Info().Str("run", store.Run().String()).Str("path", *journalPath).Msg("journal open")
		journal = sink.NewJournal(store)
	}

	simulation, err := sim.New(sim.Config{
		Instruments: []common.Instrument{instrument},
		Sink:        journal,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("unable to build simulation")
	}

	maker := agent.NewMarketMaker("maker-1", instrument, 2, 10*(*lot), 200*(*lot))
	if err := simulation.RegisterAgent(maker, 50*time.Millisecond, instrument.ID); err != nil {
		log.Fatal().Err(err).Msg("unable to register market maker")
	}
	for i := 0; i < *noiseAgents; i++ {
		trader := agent.NewNoiseTrader(
			common.AgentID(fmt.Sprintf("noise-%d", i+1)),
			instrument,
			*seed+int64(i),
		)
		if err := simulation.RegisterAgent(trader, 100*time.Millisecond, instrument.ID); err != nil {
			log.Fatal().Err(err).Msg("unable to register noise trader")
		}
	}

	// Seed the reference price every strategy quotes around.
	err = simulation.IngestTicks([]sim.TickRecord{
		{Time: 0, Instrument: instrument.ID, Price: *startPrice},
	})
	if err != nil {
		log.Fatal().Err(err).Msg("unable to seed opening print")
	}

	// The run itself is synchronous; a signal stops it between events.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()
	go func() {
		<-ctx.Done()
		simulation.Stop()
	}()

	events := simulation.Start(common.Time(0).Add(*horizon))

	trades := simulation.Trades()
	var lastPrice int64
	if len(trades) > 0 {
		lastPrice = trades[len(trades)-1].Price
	}
	makerStats := simulation.AgentStats(maker.ID())
	log.Info().
		Int("events", events).
		Int("trades", len(trades)).
		Int64("last_price", lastPrice).
		Int64("maker_position", maker.Position()).
		Int("maker_fills", makerStats.Fills).
		Int64("maker_volume", makerStats.Volume).
		Msg("run complete")

	if err := simulation.Close(); err != nil {
		log.Error().Err(err).Msg("journal close failed")
	}
}

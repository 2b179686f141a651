// The pimdram command runs a PIM matrix-multiply workload on the DRAM
// system and reports how long it takes.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/pimdram/datarecording"
	"github.com/sarchlab/pimdram/dram"
	"github.com/sarchlab/pimdram/monitoring"
)

var (
	numChannel   int
	numBankGroup int
	numBank      int

	dimM, dimN, dimK int
	mTileSize        int
	vcuts, hcuts     int
	mcf, ucf         int
	df               int

	maxCycles   uint64
	epochPeriod uint64
	statsPath   string
	noStats     bool

	monitorOn   bool
	monitorPort int
)

var rootCmd = &cobra.Command{
	Use: "pimdram",
	Short: "pimdram runs a tiled matrix multiplication inside a " +
		"cycle-accurate PIM DRAM model.",
	Run: run,
}

func init() {
	flags := rootCmd.Flags()

	flags.IntVar(&numChannel, "channels", 4, "number of channels")
	flags.IntVar(&numBankGroup, "bank-groups", 4,
		"number of bank groups per rank")
	flags.IntVar(&numBank, "banks", 4, "number of banks per bank group")

	flags.IntVar(&dimM, "m", 64, "output rows")
	flags.IntVar(&dimN, "n", 64, "input depth")
	flags.IntVar(&dimK, "k", 64, "reduction depth")
	flags.IntVar(&mTileSize, "m-tile", 256, "row tile size")
	flags.IntVar(&vcuts, "vcuts", 1, "vertical cuts")
	flags.IntVar(&hcuts, "hcuts", 1, "horizontal cuts")
	flags.IntVar(&mcf, "mcf", 1, "multi-column folding factor")
	flags.IntVar(&ucf, "ucf", 1, "unit column folding factor")
	flags.IntVar(&df, "df", 0, "dataflow variant")

	flags.Uint64Var(&maxCycles, "max-cycles", 10000000,
		"cycle budget before giving up")
	flags.Uint64Var(&epochPeriod, "epoch-period", 100000,
		"cycles between statistics snapshots")
	flags.StringVar(&statsPath, "stats-db", "",
		"statistics database path, empty picks a unique name")
	flags.BoolVar(&noStats, "no-stats", false,
		"disable statistics recording")

	flags.BoolVar(&monitorOn, "monitor", false,
		"start the monitoring server")
	flags.IntVar(&monitorPort, "monitor-port", 0,
		"monitoring server port, 0 picks a free one")
}

func run(_ *cobra.Command, _ []string) {
	godotenv.Load()

	if statsPath == "" {
		statsPath = os.Getenv("PIMDRAM_STATS_DB")
	}

	builder := dram.MakeBuilder().
		WithNumChannel(numChannel).
		WithNumBankGroup(numBankGroup).
		WithNumBank(numBank).
		WithEpochPeriod(epochPeriod)

	var recorder datarecording.DataRecorder
	if !noStats {
		recorder = datarecording.New(statsPath)
		builder = builder.WithStatsRecorder(recorder)
	}

	system := builder.Build("PIMDRAM")

	if monitorOn {
		monitor := monitoring.NewMonitor().
			WithPortNumber(monitorPort)
		monitor.RegisterSystem(system)
		monitor.StartServer()
	}

	writesDone := 0
	system.RegisterCallbacks(
		func(uint64) {},
		func(uint64) { writesDone++ },
	)

	submitWorkload(system)

	cycles := uint64(0)
	for ; cycles < maxCycles && !system.PIMTurnedOff(); cycles++ {
		system.Tick()
	}

	if !system.PIMTurnedOff() {
		fmt.Fprintf(os.Stderr,
			"computation did not finish within %d cycles\n",
			maxCycles)
		atexit.Exit(1)
	}

	fmt.Printf("computation finished in %d cycles, %d output writes\n",
		cycles, writesDone)

	system.RecordFinalStats()

	atexit.Exit(0)
}

func submitWorkload(system *dram.System) {
	words := []uint64{
		dram.EncodeConfig(dram.ConfigWord{
			VCuts:      vcuts,
			HCuts:      hcuts,
			MCF:        mcf,
			UCF:        ucf,
			DF:         df,
			MTileSize:  mTileSize,
			VCutsNext:  vcuts,
			HCutsNext:  hcuts,
			KernelSize: 1,
			Stride:     1,
		}),
	}

	cuts := vcuts * hcuts
	for i := 0; i < cuts; i++ {
		base := uint64(i) * 768
		words = append(words,
			dram.EncodeLoad(i, dram.LoadTypeWeight,
				uint32(dimM), base),
			dram.EncodeLoad(i, dram.LoadTypeOutput,
				uint32(dimK), base+256),
			dram.EncodeLoad(i, dram.LoadTypeInput,
				uint32(dimN), base+512),
		)
	}

	words = append(words,
		dram.EncodeComputeEnable((uint64(1)<<cuts)-1))

	for _, word := range words {
		for !system.WillAcceptPIMTransaction() {
			system.Tick()
		}
		system.AddPIMTransaction(word)
	}
}

func main() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

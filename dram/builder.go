package dram

import (
	"fmt"

	"github.com/sarchlab/pimdram/datarecording"
	"github.com/sarchlab/pimdram/dram/internal/addressmapping"
	"github.com/sarchlab/pimdram/dram/internal/ctrl"
	"github.com/sarchlab/pimdram/dram/internal/org"
	"github.com/sarchlab/pimdram/dram/internal/signal"
)

// Builder can build PIM DRAM systems.
type Builder struct {
	recorder datarecording.DataRecorder

	transactionQueueSize int
	pimTransQueueDepth   int
	epochPeriod          uint64

	busWidth     int
	burstLength  int
	numChannel   int
	numRank      int
	numBankGroup int
	numBank      int
	numRow       int
	numCol       int

	burstCycle int
	tAL        int
	tCL        int
	tCWL       int
	readDelay  int
	writeDelay int
	tRCD       int
	tRP        int
	tRAS       int
	tRC        int
	tCCDL      int
	tCCDS      int
	tRTP       int
	tWTRL      int
	tWTRS      int
	tWR        int
	tRRDL      int
	tRRDS      int
	tRTRS      int
	tRCDRD     int
	tRCDWR     int
	tREFI      int
	tRFC       int

	pimRefreshLead  int
	pimRefreshLead2 int
}

// MakeBuilder creates a builder with default configuration. The default
// organization is 4 channels of one rank with 4 bank groups of 4 banks.
func MakeBuilder() Builder {
	return Builder{
		transactionQueueSize: 32,
		pimTransQueueDepth:   16,
		epochPeriod:          100000,
		busWidth:             64,
		burstLength:          8,
		numChannel:           4,
		numRank:              1,
		numBankGroup:         4,
		numBank:              4,
		numRow:               16384,
		numCol:               1024,
		tAL:                  0,
		tCL:                  11,
		tCWL:                 8,
		tRCD:                 11,
		tRP:                  11,
		tRAS:                 28,
		tCCDL:                4,
		tCCDS:                4,
		tRTP:                 6,
		tWTRL:                6,
		tWTRS:                6,
		tWR:                  12,
		tRRDL:                5,
		tRRDS:                5,
		tRTRS:                1,
		tRCDRD:               24,
		tRCDWR:               20,
		tREFI:                6240,
		tRFC:                 208,
		pimRefreshLead:       40,
		pimRefreshLead2:      8,
	}
}

// WithStatsRecorder sets the recorder that epoch statistics are written to.
func (b Builder) WithStatsRecorder(r datarecording.DataRecorder) Builder {
	b.recorder = r
	return b
}

// WithTransactionQueueSize sets the per-channel conventional transaction
// queue capacity.
func (b Builder) WithTransactionQueueSize(n int) Builder {
	b.transactionQueueSize = n
	return b
}

// WithPIMTransQueueDepth sets the capacity of the PIM control-word queue.
func (b Builder) WithPIMTransQueueDepth(n int) Builder {
	b.pimTransQueueDepth = n
	return b
}

// WithEpochPeriod sets the number of cycles between statistics snapshots.
// Zero disables epoch statistics.
func (b Builder) WithEpochPeriod(n uint64) Builder {
	b.epochPeriod = n
	return b
}

// WithBusWidth sets the number of bits transferred out of a channel at once.
func (b Builder) WithBusWidth(n int) Builder {
	b.busWidth = n
	return b
}

// WithBurstLength sets the number of accesses grouped into one burst.
func (b Builder) WithBurstLength(n int) Builder {
	b.burstLength = n
	return b
}

// WithNumChannel sets the number of channels.
func (b Builder) WithNumChannel(n int) Builder {
	b.numChannel = n
	return b
}

// WithNumRank sets the number of ranks per channel.
func (b Builder) WithNumRank(n int) Builder {
	b.numRank = n
	return b
}

// WithNumBankGroup sets the number of bank groups per rank.
func (b Builder) WithNumBankGroup(n int) Builder {
	b.numBankGroup = n
	return b
}

// WithNumBank sets the number of banks per bank group.
func (b Builder) WithNumBank(n int) Builder {
	b.numBank = n
	return b
}

// WithNumRow sets the number of rows per bank.
func (b Builder) WithNumRow(n int) Builder {
	b.numRow = n
	return b
}

// WithNumCol sets the number of columns per row.
func (b Builder) WithNumCol(n int) Builder {
	b.numCol = n
	return b
}

// WithTRCD sets the row-to-column delay in cycles.
func (b Builder) WithTRCD(cycle int) Builder {
	b.tRCD = cycle
	return b
}

// WithTRP sets the row precharge latency in cycles.
func (b Builder) WithTRP(cycle int) Builder {
	b.tRP = cycle
	return b
}

// WithTRAS sets the row access strobe latency in cycles.
func (b Builder) WithTRAS(cycle int) Builder {
	b.tRAS = cycle
	return b
}

// WithTCCDL sets the long column-to-column delay in cycles.
func (b Builder) WithTCCDL(cycle int) Builder {
	b.tCCDL = cycle
	return b
}

// WithTCCDS sets the short column-to-column delay in cycles.
func (b Builder) WithTCCDS(cycle int) Builder {
	b.tCCDS = cycle
	return b
}

// WithTRCDRD sets the activate-to-read latency used by the PIM pacing
// counters.
func (b Builder) WithTRCDRD(cycle int) Builder {
	b.tRCDRD = cycle
	return b
}

// WithTRCDWR sets the activate-to-write latency used by the PIM pacing
// counters.
func (b Builder) WithTRCDWR(cycle int) Builder {
	b.tRCDWR = cycle
	return b
}

// WithTREFI sets the refresh interval in cycles.
func (b Builder) WithTREFI(cycle int) Builder {
	b.tREFI = cycle
	return b
}

// WithTRFC sets the refresh cycle time in cycles.
func (b Builder) WithTRFC(cycle int) Builder {
	b.tRFC = cycle
	return b
}

// WithPIMRefreshLead sets how many cycles before a refresh the controllers
// stop accepting new row activations for PIM work.
func (b Builder) WithPIMRefreshLead(cycle int) Builder {
	b.pimRefreshLead = cycle
	return b
}

// WithPIMRefreshLead2 sets how many cycles before a refresh all PIM work is
// suppressed.
func (b Builder) WithPIMRefreshLead2(cycle int) Builder {
	b.pimRefreshLead2 = cycle
	return b
}

// Build builds a new System.
func (b Builder) Build(name string) *System {
	b.calculateDerivedTiming()

	mapper := addressmapping.MakeBuilder().
		WithBurstLength(b.burstLength).
		WithBusWidth(b.busWidth).
		WithNumChannel(b.numChannel).
		WithNumRank(b.numRank).
		WithNumBankGroup(b.numBankGroup).
		WithNumBank(b.numBank).
		WithNumRow(b.numRow).
		WithNumCol(b.numCol).
		Build()

	s := &System{
		name:            name,
		mapper:          mapper,
		numChannel:      b.numChannel,
		banksPerChannel: b.numRank * b.numBankGroup * b.numBank,
		banksPerGroup:   b.numBank,
		columnsPerBurst: b.numCol / b.burstLength,
		tCCDL:           b.tCCDL,
		tRCDRD:          b.tRCDRD,
		tRCDWR:          b.tRCDWR,
		epochPeriod:     b.epochPeriod,
		pimQueueDepth:   b.pimTransQueueDepth,
		recorder:        b.recorder,
	}

	for i := 0; i < b.numChannel; i++ {
		channel := b.buildChannel(fmt.Sprintf("%s.Ch[%d]", name, i))
		s.ctrls = append(s.ctrls,
			ctrl.NewController(i, channel, mapper, ctrl.Config{
				TransQueueCap:   b.transactionQueueSize,
				ReadDelay:       b.readDelay,
				WriteDelay:      b.writeDelay,
				TREFI:           b.tREFI,
				TRFC:            b.tRFC,
				PIMRefreshLead:  b.pimRefreshLead,
				PIMRefreshLead2: b.pimRefreshLead2,
			}))
	}

	if b.recorder != nil {
		b.recorder.CreateTable(epochStatsTable, epochStatsEntry{})
		b.recorder.CreateTable(finalStatsTable, epochStatsEntry{})
	}

	return s
}

func (b *Builder) calculateDerivedTiming() {
	b.burstCycle = b.burstLength / 2
	b.readDelay = b.tAL + b.tCL + b.burstCycle
	b.writeDelay = b.tAL + b.tCWL + b.burstCycle
	b.tRC = b.tRAS + b.tRP
}

func (b Builder) buildChannel(name string) *org.ChannelImpl {
	channel := &org.ChannelImpl{
		Timing: b.generateTiming(),
	}

	channel.Banks = org.MakeBanks(b.numRank, b.numBankGroup, b.numBank)
	for i := 0; i < b.numRank; i++ {
		for j := 0; j < b.numBankGroup; j++ {
			for k := 0; k < b.numBank; k++ {
				bankName := fmt.Sprintf("%s.Bank[%d][%d][%d]",
					name, i, j, k)
				channel.Banks[i][j][k] =
					org.NewBankImpl(bankName)
			}
		}
	}

	return channel
}

func (b Builder) generateTiming() org.Timing {
	t := org.Timing{
		SameBank:              org.MakeTimeTable(),
		OtherBanksInBankGroup: org.MakeTimeTable(),
		SameRank:              org.MakeTimeTable(),
		OtherRanks:            org.MakeTimeTable(),
	}

	readToReadL := max(b.burstCycle, b.tCCDL)
	readToReadS := max(b.burstCycle, b.tCCDS)
	readToWrite := b.tAL + b.tCL + b.burstCycle - (b.tAL + b.tCWL) +
		b.tRTRS
	readToPrecharge := b.tAL + b.tRTP
	readpToAct := b.tAL + b.burstCycle + b.tRTP + b.tRP

	writeToReadL := b.writeDelay + b.tWTRL
	writeToReadS := b.writeDelay + b.tWTRS
	writeToWriteL := max(b.burstCycle, b.tCCDL)
	writeToWriteS := max(b.burstCycle, b.tCCDS)
	writeToPrecharge := b.tAL + b.tCWL + b.burstCycle + b.tWR

	prechargeToActivate := b.tRP
	readToActivate := readToPrecharge + prechargeToActivate
	writeToActivate := writeToPrecharge + prechargeToActivate

	activateToActivate := b.tRC
	activateToActivateL := b.tRRDL
	activateToActivateS := b.tRRDS
	activateToPrecharge := b.tRAS
	activateToColumn := b.tRCD - b.tAL

	t.SameBank[signal.CmdKindActivate] = []org.TimeTableEntry{
		{NextCmdKind: signal.CmdKindActivate, MinCycleInBetween: activateToActivate},
		{NextCmdKind: signal.CmdKindRead, MinCycleInBetween: activateToColumn},
		{NextCmdKind: signal.CmdKindReadPrecharge, MinCycleInBetween: activateToColumn},
		{NextCmdKind: signal.CmdKindWrite, MinCycleInBetween: activateToColumn},
		{NextCmdKind: signal.CmdKindWritePrecharge, MinCycleInBetween: activateToColumn},
		{NextCmdKind: signal.CmdKindPrecharge, MinCycleInBetween: activateToPrecharge},
	}
	t.OtherBanksInBankGroup[signal.CmdKindActivate] = []org.TimeTableEntry{
		{NextCmdKind: signal.CmdKindActivate, MinCycleInBetween: activateToActivateL},
	}
	t.SameRank[signal.CmdKindActivate] = []org.TimeTableEntry{
		{NextCmdKind: signal.CmdKindActivate, MinCycleInBetween: activateToActivateS},
	}

	t.SameBank[signal.CmdKindRead] = []org.TimeTableEntry{
		{NextCmdKind: signal.CmdKindRead, MinCycleInBetween: readToReadL},
		{NextCmdKind: signal.CmdKindReadPrecharge, MinCycleInBetween: readToReadL},
		{NextCmdKind: signal.CmdKindWrite, MinCycleInBetween: readToWrite},
		{NextCmdKind: signal.CmdKindWritePrecharge, MinCycleInBetween: readToWrite},
		{NextCmdKind: signal.CmdKindPrecharge, MinCycleInBetween: readToPrecharge},
	}
	t.OtherBanksInBankGroup[signal.CmdKindRead] = []org.TimeTableEntry{
		{NextCmdKind: signal.CmdKindRead, MinCycleInBetween: readToReadL},
		{NextCmdKind: signal.CmdKindReadPrecharge, MinCycleInBetween: readToReadL},
		{NextCmdKind: signal.CmdKindWrite, MinCycleInBetween: readToWrite},
		{NextCmdKind: signal.CmdKindWritePrecharge, MinCycleInBetween: readToWrite},
	}
	t.SameRank[signal.CmdKindRead] = []org.TimeTableEntry{
		{NextCmdKind: signal.CmdKindRead, MinCycleInBetween: readToReadS},
		{NextCmdKind: signal.CmdKindReadPrecharge, MinCycleInBetween: readToReadS},
		{NextCmdKind: signal.CmdKindWrite, MinCycleInBetween: readToWrite},
		{NextCmdKind: signal.CmdKindWritePrecharge, MinCycleInBetween: readToWrite},
	}

	t.SameBank[signal.CmdKindReadPrecharge] = []org.TimeTableEntry{
		{NextCmdKind: signal.CmdKindActivate, MinCycleInBetween: readpToAct},
	}
	t.OtherBanksInBankGroup[signal.CmdKindReadPrecharge] =
		t.OtherBanksInBankGroup[signal.CmdKindRead]
	t.SameRank[signal.CmdKindReadPrecharge] =
		t.SameRank[signal.CmdKindRead]

	t.SameBank[signal.CmdKindWrite] = []org.TimeTableEntry{
		{NextCmdKind: signal.CmdKindRead, MinCycleInBetween: writeToReadL},
		{NextCmdKind: signal.CmdKindReadPrecharge, MinCycleInBetween: writeToReadL},
		{NextCmdKind: signal.CmdKindWrite, MinCycleInBetween: writeToWriteL},
		{NextCmdKind: signal.CmdKindWritePrecharge, MinCycleInBetween: writeToWriteL},
		{NextCmdKind: signal.CmdKindPrecharge, MinCycleInBetween: writeToPrecharge},
	}
	t.OtherBanksInBankGroup[signal.CmdKindWrite] = []org.TimeTableEntry{
		{NextCmdKind: signal.CmdKindRead, MinCycleInBetween: writeToReadL},
		{NextCmdKind: signal.CmdKindReadPrecharge, MinCycleInBetween: writeToReadL},
		{NextCmdKind: signal.CmdKindWrite, MinCycleInBetween: writeToWriteL},
		{NextCmdKind: signal.CmdKindWritePrecharge, MinCycleInBetween: writeToWriteL},
	}
	t.SameRank[signal.CmdKindWrite] = []org.TimeTableEntry{
		{NextCmdKind: signal.CmdKindRead, MinCycleInBetween: writeToReadS},
		{NextCmdKind: signal.CmdKindReadPrecharge, MinCycleInBetween: writeToReadS},
		{NextCmdKind: signal.CmdKindWrite, MinCycleInBetween: writeToWriteS},
		{NextCmdKind: signal.CmdKindWritePrecharge, MinCycleInBetween: writeToWriteS},
	}

	t.SameBank[signal.CmdKindWritePrecharge] = []org.TimeTableEntry{
		{NextCmdKind: signal.CmdKindActivate, MinCycleInBetween: writeToActivate},
	}
	t.OtherBanksInBankGroup[signal.CmdKindWritePrecharge] =
		t.OtherBanksInBankGroup[signal.CmdKindWrite]
	t.SameRank[signal.CmdKindWritePrecharge] =
		t.SameRank[signal.CmdKindWrite]

	t.SameBank[signal.CmdKindPrecharge] = []org.TimeTableEntry{
		{NextCmdKind: signal.CmdKindActivate, MinCycleInBetween: prechargeToActivate},
	}

	t.SameBank[signal.CmdKindRefresh] = []org.TimeTableEntry{
		{NextCmdKind: signal.CmdKindActivate, MinCycleInBetween: readToActivate},
	}

	return t
}

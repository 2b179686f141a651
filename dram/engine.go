package dram

import (
	"fmt"
	"log"
	"os"

	"github.com/sarchlab/pimdram/dram/internal/signal"
)

// Design constants of the in-bank compute arrays.
const (
	pesPerRow    = 128
	pesPerBankIO = 16
)

// cutGeometry is the per-cycle geometric layout of one cut, derived from the
// system configuration and the cut's iterators.
type cutGeometry struct {
	vcutNo int
	hcutNo int

	cutHeight int
	cutWidth  int

	nTileSize        int
	nTileIt          int
	mTileIt          int
	mCurrentTileSize int
	kTileSize        int

	weightBanksReduce int
}

func (s *System) cutGeometry(i int, cut *cutState) cutGeometry {
	g := cutGeometry{
		vcutNo:    i % s.vcuts,
		hcutNo:    i / s.vcuts,
		cutHeight: s.numChannel / s.hcuts,
		cutWidth:  s.banksPerChannel / s.vcuts,
	}

	g.nTileSize = pesPerRow / s.vcuts
	g.nTileIt = cut.nIt / g.nTileSize
	g.mTileIt = cut.mIt / s.mTileSize

	g.mCurrentTileSize = s.mTileSize
	if cut.m < s.mTileSize*(g.mTileIt+1) {
		g.mCurrentTileSize = cut.m % s.mTileSize
	}

	g.kTileSize = min(g.cutHeight*pesPerBankIO, cut.k)

	g.weightBanksReduce = 1
	if s.df == 1 {
		g.weightBanksReduce = pesPerBankIO
	}

	return g
}

// tickCut runs one cycle of the four-phase scheduler for cut i, emitting at
// most one weight or input batch plus at most one output batch.
func (s *System) tickCut(i int, waitRefresh, isInRef bool) {
	cut := &s.cuts[i]

	if !cut.inPIM || isInRef {
		return
	}

	g := s.cutGeometry(i, cut)

	// Captured before the phase dispatch: a cut that reaches the
	// input-finished state this cycle starts writing back next cycle.
	outputReady := cut.iwStatus == statusInputFinished

	var wBatch, inBatch, outBatch []signal.Command

	switch cut.iwStatus {
	case statusFetchWeight:
		wBatch = s.fetchWeight(cut, g, waitRefresh)
	case statusWeightFinished:
		s.finishWeight(cut)
	case statusFeedInput:
		inBatch = s.feedInput(cut, g, waitRefresh)
	case statusInputFinished:
		s.drainInput(cut)
	}

	if cut.outCnt == 0 {
		cut.outputValid++
	}
	if cut.outCnt != -1 {
		cut.outCnt--
	}

	outEnable := g.cutHeight/s.vcuts > 0 || g.vcutNo%2 == 0
	if cut.outputValid > 0 && outputReady && outEnable {
		outBatch = s.writeOutput(i, cut, g, waitRefresh)
	}

	for _, cmd := range wBatch {
		s.ctrls[cmd.Location.Channel].PushWeightCommand(cmd)
	}
	for _, cmd := range inBatch {
		s.ctrls[cmd.Location.Channel].PushInputCommand(cmd, s.clk)
	}
	for _, cmd := range outBatch {
		s.ctrls[cmd.Location.Channel].PushWriteCommand(cmd)
	}
}

// fetchWeight builds the weight-fetch batch for the cut and advances the N
// iterator on success. A batch is all-or-nothing: a controller that is not
// ready, or a command kind that diverges from the first, discards the whole
// batch for this cycle.
func (s *System) fetchWeight(
	cut *cutState,
	g cutGeometry,
	waitRefresh bool,
) []signal.Command {
	banksPerCut := g.cutWidth / g.weightBanksReduce

	nTilePerBank := min(cut.n, (g.nTileSize-1)/banksPerCut+1)
	colOffset := g.nTileIt*(nTilePerBank*((cut.k-1)/g.kTileSize+1)) +
		cut.kTileIt*nTilePerBank +
		cut.nIt%g.nTileSize

	prechargeEvery := min(cut.n,
		pesPerRow/s.banksPerChannel*g.weightBanksReduce)

	var batch []signal.Command

batchLoop:
	for j := 0; j < g.cutHeight; j++ {
		for k := 0; k < banksPerCut; k++ {
			ch := g.hcutNo*g.cutHeight + j
			bank := g.vcutNo*g.cutWidth + k*g.weightBanksReduce

			cmd := s.makeCommand(signal.CmdKindPIMRead,
				ch, bank, cut.baseRowW, colOffset)
			col := int(cmd.Location.Column)
			if (col+1)%prechargeEvery == 0 ||
				(col+1)%s.columnsPerBurst == 0 {
				cmd.Kind = signal.CmdKindPIMReadPrecharge
			}

			ready := s.ctrls[ch].GetReadyCommand(cmd, s.clk)
			if !ready.IsValid() {
				batch = nil
				break batchLoop
			}

			batch = append(batch, ready)
			if batch[0].Kind != ready.Kind {
				batch = nil
				break batchLoop
			}
		}
	}

	if len(batch) == 0 {
		return nil
	}

	first := batch[0].Kind

	if first == signal.CmdKindPIMActivate {
		if cut.wActPlaced || waitRefresh {
			return nil
		}

		cut.wActPlaced = true

		return batch
	}

	if first == signal.CmdKindPIMReadPrecharge {
		cut.wActPlaced = false
	}
	if s.df == 1 && first == signal.CmdKindPrecharge {
		return nil
	}

	cut.nIt++
	if cut.nIt%nTilePerBank == 0 &&
		(g.nTileSize == nTilePerBank || cut.nIt%g.nTileSize != 0) {
		cut.nIt = g.nTileSize * g.nTileIt
		cut.iwStatus++
	}

	return batch
}

// finishWeight hands the cut over to input feeding. In single-tenant mode the
// cut stalls back to weight fetching while its companion is still fetching or
// draining.
func (s *System) finishWeight(cut *cutState) {
	cut.iwStatus++
	cut.vpuCnt = 1

	if len(s.cuts) != 1 {
		return
	}

	for j := range s.cuts {
		if s.cuts[j].iwStatus == statusFetchWeight ||
			s.cuts[j].iwStatus == statusInputFinished {
			cut.iwStatus--
			break
		}
	}
}

// feedInput builds the input-feed batch for the cut. Unlike the weight phase,
// a not-ready controller only discards the accumulated commands and moves on
// to the next channel; mixed batches are retried as pure ACTIVATE batches.
func (s *System) feedInput(
	cut *cutState,
	g cutGeometry,
	waitRefresh bool,
) []signal.Command {
	cut.vpuCnt--
	if cut.vpuCnt < 0 {
		cut.vpuCnt = 0
	}

	colOffset := g.mTileIt*(s.mTileSize*((cut.k-1)/g.kTileSize+1)) +
		cut.kTileIt*g.mCurrentTileSize +
		cut.mIt%s.mTileSize

	mixed := false
	var batch []signal.Command

	for j := 0; j < g.cutHeight; j++ {
		for k := 0; k < s.mc; k++ {
			ch := g.hcutNo*g.cutHeight + j
			bank := g.vcutNo*g.cutWidth + k*(g.cutWidth/s.mc)

			cmd := s.makeCommand(signal.CmdKindPIMRead,
				ch, bank, cut.baseRowIn, colOffset)

			closing := cut.mIt+1 == cut.m
			if s.df == 1 {
				closing = closing &&
					(cut.kTileIt+1)*g.kTileSize >= cut.k
			}
			if int(cmd.Location.Column) == s.columnsPerBurst-1 ||
				closing {
				cmd.Kind = signal.CmdKindPIMReadPrecharge
			}

			ready := s.ctrls[ch].GetReadyCommand(cmd, s.clk)
			if !ready.IsValid() {
				batch = batch[:0]
				break
			}

			batch = append(batch, ready)
			if batch[0].Kind != ready.Kind {
				mixed = true
			}
		}
	}

	if len(s.cuts) > 1 && len(batch) != g.cutHeight {
		return nil
	}

	if mixed {
		kept := batch[:0]
		for _, cmd := range batch {
			if !cmd.Kind.IsReadFamily() {
				kept = append(kept, cmd)
			}
		}
		batch = kept
	}

	if len(batch) == 0 {
		return nil
	}

	first := batch[0].Kind

	if first == signal.CmdKindPIMActivate {
		if (!mixed && cut.inActPlaced) || waitRefresh {
			return nil
		}

		cut.inActPlaced = true

		return batch
	}

	if first == signal.CmdKindPIMReadPrecharge {
		cut.inActPlaced = false
	}
	if cut.vpuCnt != 0 {
		return nil
	}

	if s.mTileSize <= pesPerRow/s.vcuts {
		log.Panicf("M tile size %d must exceed %d",
			s.mTileSize, pesPerRow/s.vcuts)
	}

	if (cut.kTileIt+1)*g.kTileSize >= cut.k && cut.mIt%s.mTileSize == 0 {
		cut.outCnt = max(1, s.tCCDL*(3+pesPerBankIO)-s.tRCDWR)
	}

	cut.mIt++
	if cut.mIt%s.mTileSize == 0 || cut.mIt == cut.m {
		cut.inCnt = max(1,
			s.tCCDL*max(pesPerRow/(s.vcuts*s.mc), pesPerBankIO)-
				s.tRCDRD)
		cut.iwStatus++
		cut.mIt = s.mTileSize * g.mTileIt
		cut.kTileIt++

		if cut.kTileIt*g.kTileSize >= cut.k {
			cut.kTileIt = 0
			cut.nIt = g.nTileSize * (g.nTileIt + 1)

			if cut.nIt >= cut.n {
				cut.nIt = 0
				cut.mIt = s.mTileSize * (g.mTileIt + 1)

				if cut.mIt >= cut.m {
					fmt.Fprintf(os.Stderr,
						"%d End of computation\n",
						s.clk)
					cut.inCnt = -1
				}
			}
		}
	}

	return batch
}

// drainInput counts the in-flight input reads down. When the drain finishes
// and no output tile is pending, the cut goes back to fetching weights. An
// inCnt of -1 marks the end of the computation; the cut then idles until its
// output is exhausted.
func (s *System) drainInput(cut *cutState) {
	if cut.inCnt == -1 {
		return
	}

	cut.inCnt = max(0, cut.inCnt-1)
	if cut.inCnt == 0 && cut.outputValid == 0 {
		cut.iwStatus = statusFetchWeight
	}
}

// writeOutput builds the output write-back batch for the cut and advances the
// output iterators on success.
func (s *System) writeOutput(
	i int,
	cut *cutState,
	g cutGeometry,
	waitRefresh bool,
) []signal.Command {
	vcutOutNo := (g.vcutNo + cut.nOutTileIt) % s.vcuts
	if cut.m == 1 {
		vcutOutNo = g.vcutNo
	} else if s.vcuts == 16 {
		vcutOutNo = g.vcutNo / 2
	}

	mTileSizeOut := s.mTileSize
	mOut := cut.m
	nOut := cut.n
	nTileSizeOut := g.nTileSize
	if s.df == 1 {
		mTileSizeOut = s.mTileSize / pesPerRow * s.mcf
		mOut = max(1, cut.m*s.mcf/pesPerRow)
		nOut = pesPerRow
		nTileSizeOut = pesPerRow
	}

	mOutTileIt := cut.mOutIt / mTileSizeOut

	mOutCurrentTileSize := mTileSizeOut
	if mOut < mTileSizeOut*(mOutTileIt+1) {
		mOutCurrentTileSize = mOut % mTileSizeOut
	}

	nTileNum := (cut.n-1)/nTileSizeOut + 1
	nTileNumCh := nTileNum / s.vcuts
	if nTileNum%s.vcuts > cut.nOutTileIt%s.vcuts {
		nTileNumCh++
	}
	nTileItCh := cut.nOutTileIt / s.vcuts

	colOffset := mOutTileIt*(mTileSizeOut*nTileNumCh) +
		nTileItCh*mOutCurrentTileSize +
		cut.mOutIt%mTileSizeOut

	cutHeightOut := g.cutHeight / s.vcuts
	if g.cutHeight < s.vcuts {
		cutHeightOut = 1
	}

	kBound := s.mc
	if s.df == 1 {
		kBound = 1
	}

	var batch []signal.Command

batchLoop:
	for j := 0; j < cutHeightOut; j++ {
		ch := g.hcutNo*g.cutHeight + vcutOutNo*cutHeightOut + j

		for k := 0; k < kBound; k++ {
			bank := g.vcutNo*g.cutWidth + k*(g.cutWidth/s.mc)
			if s.df != 1 {
				bank++
			}

			cmd := s.makeCommand(signal.CmdKindPIMWrite,
				ch, bank, cut.baseRowOut, colOffset)
			if int(cmd.Location.Column) == s.columnsPerBurst-1 ||
				cut.mOutIt+1 == mOut {
				cmd.Kind = signal.CmdKindPIMWritePrecharge
			}

			ready := s.ctrls[ch].GetReadyCommand(cmd, s.clk)
			if !ready.IsValid() {
				batch = nil
				break batchLoop
			}

			batch = append(batch, ready)
			if batch[0].Kind != ready.Kind {
				batch = nil
				break batchLoop
			}
		}
	}

	if len(batch) == 0 {
		return nil
	}

	first := batch[0].Kind

	if first == signal.CmdKindPIMActivate {
		if cut.outActPlaced || waitRefresh {
			return nil
		}

		cut.outActPlaced = true

		return batch
	}

	if first == signal.CmdKindPIMWritePrecharge {
		cut.outActPlaced = false
	}

	cut.mOutIt++
	if cut.mOutIt%mTileSizeOut == 0 || cut.mOutIt == mOut {
		cut.mOutIt = mTileSizeOut * mOutTileIt
		cut.nOutTileIt++

		if cut.nOutTileIt*nTileSizeOut >= nOut {
			cut.nOutTileIt = 0
			cut.mOutIt = mTileSizeOut * (mOutTileIt + 1)

			if cut.mOutIt >= mOut {
				s.exhaustOutput(i, cut, g)
			}
		}

		cut.outputValid--
		if g.cutHeight < s.vcuts {
			s.cuts[i+1].outputValid--
		}
	}

	return batch
}

// exhaustOutput turns the cut (and its paired cut, when a pair shares one
// channel row) off once its last output tile is written.
func (s *System) exhaustOutput(i int, cut *cutState, g cutGeometry) {
	if cut.inCnt != -1 {
		log.Panicf("cut %d exhausted its output while still feeding input",
			i)
	}

	fmt.Fprintf(os.Stderr,
		"%d Output exhausted. Cut %d leaves PIM mode.\n", s.clk, i)

	cut.inPIM = false
	if g.cutHeight < s.vcuts {
		s.cuts[i+1].inPIM = false
	}

	s.turnOff = true
	for j := range s.cuts {
		if s.cuts[j].inPIM {
			s.turnOff = false
		}
	}
}

// makeCommand builds a command for one bank of one channel, splitting the
// flat bank index into group and bank and the column offset into row and
// column.
func (s *System) makeCommand(
	kind signal.CommandKind,
	channel, bank int,
	baseRow uint64,
	colOffset int,
) signal.Command {
	cmd := signal.Command{Kind: kind}

	cmd.Location.Channel = uint64(channel)
	cmd.Location.BankGroup = uint64(bank / s.banksPerGroup)
	cmd.Location.Bank = uint64(bank % s.banksPerGroup)
	cmd.Location.Row = baseRow + uint64(colOffset/s.columnsPerBurst)
	cmd.Location.Column = uint64(colOffset % s.columnsPerBurst)
	cmd.FlatAddr = s.mapper.Unmap(cmd.Location)

	return cmd
}

// Package dram implements a cycle-accurate DRAM system with
// processing-in-memory support for tiled matrix multiplication. The system
// advances in lock step with an external clock, decodes bit-packed PIM
// control transactions, and schedules weight-fetch, input-feed, and
// output-write command batches onto per-channel controllers.
package dram

import (
	"log"

	"github.com/sarchlab/pimdram/datarecording"
	"github.com/sarchlab/pimdram/dram/internal/addressmapping"
	"github.com/sarchlab/pimdram/dram/internal/signal"
)

// A System owns the per-channel controllers and the PIM compute state. All
// its state changes happen synchronously inside Tick.
type System struct {
	name string

	ctrls  []Controller
	mapper addressmapping.Mapper

	numChannel      int
	banksPerChannel int
	banksPerGroup   int
	columnsPerBurst int

	tCCDL  int
	tRCDRD int
	tRCDWR int

	epochPeriod   uint64
	pimQueueDepth int

	recorder datarecording.DataRecorder

	readCallback  func(flatAddr uint64)
	writeCallback func(flatAddr uint64)

	clk        uint64
	lastReqClk uint64

	pimTransQueue []signal.Transaction

	vcuts, hcuts         int
	vcutsNext, hcutsNext int
	mcf, ucf, mc         int
	df                   int
	mTileSize            int
	kernelSize, stride   int

	cuts    []cutState
	turnOff bool
}

// epochStatsEntry is one row of the epoch statistics table, per channel.
type epochStatsEntry struct {
	Cycle        uint64
	Channel      int
	NumActivate  uint64
	NumPrecharge uint64
	NumRead      uint64
	NumWrite     uint64
	NumRefresh   uint64
	NumPIMRead   uint64
	NumPIMWrite  uint64
	NumTransDone uint64
}

const (
	epochStatsTable = "epoch_stats"
	finalStatsTable = "final_stats"
)

// RegisterCallbacks sets the completion callbacks invoked when a
// transaction's data leaves or reaches the DRAM.
func (s *System) RegisterCallbacks(
	onRead func(flatAddr uint64),
	onWrite func(flatAddr uint64),
) {
	s.readCallback = onRead
	s.writeCallback = onWrite
}

// WillAcceptPIMTransaction reports whether the PIM control queue has room.
func (s *System) WillAcceptPIMTransaction() bool {
	return len(s.pimTransQueue) < s.pimQueueDepth
}

// AddPIMTransaction enqueues one PIM control word. Submitting to a full
// queue is a protocol violation.
func (s *System) AddPIMTransaction(flatAddr uint64) bool {
	ok := s.WillAcceptPIMTransaction()
	if !ok {
		log.Panicf("PIM transaction submitted to a full queue")
	}

	s.pimTransQueue = append(s.pimTransQueue, signal.Transaction{
		FlatAddr:     flatAddr,
		ArrivalCycle: s.clk,
	})
	s.lastReqClk = s.clk

	return ok
}

// WillAcceptTransaction reports whether the owning channel can take a
// conventional transaction.
func (s *System) WillAcceptTransaction(flatAddr uint64, isWrite bool) bool {
	return s.ctrls[s.GetChannel(flatAddr)].
		WillAcceptTransaction(flatAddr, isWrite)
}

// AddTransaction enqueues a conventional read or write.
func (s *System) AddTransaction(flatAddr uint64, isWrite bool) bool {
	ok := s.WillAcceptTransaction(flatAddr, isWrite)
	if !ok {
		log.Panicf("transaction submitted to a full channel %d",
			s.GetChannel(flatAddr))
	}

	s.ctrls[s.GetChannel(flatAddr)].AddTransaction(signal.Transaction{
		FlatAddr:     flatAddr,
		IsWrite:      isWrite,
		ArrivalCycle: s.clk,
	})
	s.lastReqClk = s.clk

	return ok
}

// GetChannel extracts the channel index from a flat address.
func (s *System) GetChannel(flatAddr uint64) int {
	return int(s.mapper.Channel(flatAddr))
}

// Cycle returns the current clock value.
func (s *System) Cycle() uint64 {
	return s.clk
}

// PIMTurnedOff reports that every cut has exhausted its output and left PIM
// mode.
func (s *System) PIMTurnedOff() bool {
	return s.turnOff
}

// Tick advances the whole system by one cycle: completions first, then the
// control-word decoder, then the per-cut schedulers, then the controllers.
func (s *System) Tick() {
	s.drainCompletions()

	waitRefresh := s.checkRefreshComing()
	isInRef := s.checkInRefresh()

	s.decodePIMTransaction()

	for i := range s.cuts {
		s.tickCut(i, waitRefresh, isInRef)
	}

	for _, c := range s.ctrls {
		c.Tick()
	}

	s.clk++

	if s.epochPeriod > 0 && s.clk%s.epochPeriod == 0 {
		s.recordEpochStats()
	}
}

func (s *System) drainCompletions() {
	for _, c := range s.ctrls {
	channelDrain:
		for {
			flatAddr, kind := c.ReturnDoneTrans(s.clk)

			switch kind {
			case signal.TransKindWrite:
				if s.writeCallback != nil {
					s.writeCallback(flatAddr)
				}
			case signal.TransKindRead:
				if s.readCallback != nil {
					s.readCallback(flatAddr)
				}
			default:
				break channelDrain
			}
		}
	}
}

// checkRefreshComing reports whether any controller has a refresh close
// ahead. A pending refresh invalidates all open-row bookkeeping: the rows
// will be closed, so each cut must re-activate afterward.
func (s *System) checkRefreshComing() bool {
	waitRefresh := false

	for _, c := range s.ctrls {
		if c.PIMRefreshComing() {
			waitRefresh = true
			break
		}
	}

	if waitRefresh {
		for i := range s.cuts {
			s.cuts[i].inActPlaced = false
			s.cuts[i].wActPlaced = false
			s.cuts[i].outActPlaced = false
		}
	}

	return waitRefresh
}

func (s *System) checkInRefresh() bool {
	for _, c := range s.ctrls {
		if c.IsInRefresh() || c.PIMRefreshComing2() {
			return true
		}
	}

	return false
}

func (s *System) recordEpochStats() {
	if s.recorder == nil {
		return
	}

	for i, c := range s.ctrls {
		stats := c.CollectStats()
		s.recorder.InsertData(epochStatsTable, epochStatsEntry{
			Cycle:        s.clk,
			Channel:      i,
			NumActivate:  stats.NumActivate,
			NumPrecharge: stats.NumPrecharge,
			NumRead:      stats.NumRead,
			NumWrite:     stats.NumWrite,
			NumRefresh:   stats.NumRefresh,
			NumPIMRead:   stats.NumPIMRead,
			NumPIMWrite:  stats.NumPIMWrite,
			NumTransDone: stats.NumTransDone,
		})
		c.ResetStats()
	}
}

// CutStatus is a host-visible snapshot of one cut's compute state.
type CutStatus struct {
	Cut         int  `json:"cut"`
	InPIM       bool `json:"in_pim"`
	Phase       int  `json:"phase"`
	MIt         int  `json:"m_it"`
	NIt         int  `json:"n_it"`
	KTileIt     int  `json:"k_tile_it"`
	MOutIt      int  `json:"m_out_it"`
	NOutTileIt  int  `json:"n_out_tile_it"`
	OutputValid int  `json:"output_valid"`
}

// Name returns the name of the system.
func (s *System) Name() string {
	return s.name
}

// CutStatus snapshots the compute state of every cut.
func (s *System) CutStatus() []CutStatus {
	status := make([]CutStatus, len(s.cuts))

	for i := range s.cuts {
		c := &s.cuts[i]
		status[i] = CutStatus{
			Cut:         i,
			InPIM:       c.inPIM,
			Phase:       c.iwStatus,
			MIt:         c.mIt,
			NIt:         c.nIt,
			KTileIt:     c.kTileIt,
			MOutIt:      c.mOutIt,
			NOutTileIt:  c.nOutTileIt,
			OutputValid: c.outputValid,
		}
	}

	return status
}

// ResetStats clears the counters of every controller.
func (s *System) ResetStats() {
	for _, c := range s.ctrls {
		c.ResetStats()
	}
}

// RecordFinalStats writes the counters accumulated since the last epoch
// snapshot and flushes the recorder.
func (s *System) RecordFinalStats() {
	if s.recorder == nil {
		return
	}

	for i, c := range s.ctrls {
		stats := c.CollectStats()
		s.recorder.InsertData(finalStatsTable, epochStatsEntry{
			Cycle:        s.clk,
			Channel:      i,
			NumActivate:  stats.NumActivate,
			NumPrecharge: stats.NumPrecharge,
			NumRead:      stats.NumRead,
			NumWrite:     stats.NumWrite,
			NumRefresh:   stats.NumRefresh,
			NumPIMRead:   stats.NumPIMRead,
			NumPIMWrite:  stats.NumPIMWrite,
			NumTransDone: stats.NumTransDone,
		})
	}

	s.recorder.Flush()
}

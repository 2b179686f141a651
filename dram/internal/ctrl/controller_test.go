package ctrl

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/pimdram/dram/internal/addressmapping"
	"github.com/sarchlab/pimdram/dram/internal/org"
	"github.com/sarchlab/pimdram/dram/internal/signal"
)

func makeTestChannel() *org.ChannelImpl {
	timing := org.Timing{
		SameBank:              org.MakeTimeTable(),
		OtherBanksInBankGroup: org.MakeTimeTable(),
		SameRank:              org.MakeTimeTable(),
		OtherRanks:            org.MakeTimeTable(),
	}

	timing.SameBank[signal.CmdKindActivate] = []org.TimeTableEntry{
		{NextCmdKind: signal.CmdKindRead, MinCycleInBetween: 4},
		{NextCmdKind: signal.CmdKindWrite, MinCycleInBetween: 4},
		{NextCmdKind: signal.CmdKindReadPrecharge, MinCycleInBetween: 4},
		{NextCmdKind: signal.CmdKindWritePrecharge, MinCycleInBetween: 4},
	}
	timing.SameBank[signal.CmdKindRead] = []org.TimeTableEntry{
		{NextCmdKind: signal.CmdKindRead, MinCycleInBetween: 2},
		{NextCmdKind: signal.CmdKindReadPrecharge, MinCycleInBetween: 2},
	}

	channel := &org.ChannelImpl{Timing: timing}
	channel.Banks = org.MakeBanks(1, 2, 2)
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			channel.Banks[0][i][j] = org.NewBankImpl("Bank")
		}
	}

	return channel
}

var _ = Describe("Controller", func() {
	var (
		mapper     addressmapping.Mapper
		channel    *org.ChannelImpl
		controller *Controller
	)

	cfg := Config{
		TransQueueCap:   2,
		ReadDelay:       6,
		WriteDelay:      5,
		TREFI:           1000,
		TRFC:            20,
		PIMRefreshLead:  40,
		PIMRefreshLead2: 8,
	}

	readCmd := func(row uint64) signal.Command {
		return signal.Command{
			Kind: signal.CmdKindPIMRead,
			Location: addressmapping.Location{
				Row: row,
			},
		}
	}

	tickN := func(n int) {
		for i := 0; i < n; i++ {
			controller.Tick()
		}
	}

	BeforeEach(func() {
		mapper = addressmapping.MakeBuilder().
			WithNumChannel(1).
			WithNumRank(1).
			WithNumBankGroup(2).
			WithNumBank(2).
			Build()
		channel = makeTestChannel()
		controller = NewController(0, channel, mapper, cfg)
	})

	It("should probe an activate precursor on a closed bank", func() {
		ready := controller.GetReadyCommand(readCmd(5), 0)

		Expect(ready.Kind).To(Equal(signal.CmdKindPIMActivate))
	})

	It("should issue lane commands and enforce timing", func() {
		act := readCmd(5)
		act.Kind = signal.CmdKindPIMActivate
		controller.PushWeightCommand(act)

		controller.Tick()

		Expect(controller.GetReadyCommand(readCmd(5), 1).
			IsValid()).To(BeFalse())
		Expect(controller.GetReadyCommand(readCmd(5), 4)).
			To(Equal(readCmd(5)))
		Expect(controller.CollectStats().NumActivate).
			To(Equal(uint64(1)))
	})

	It("should hold input-lane commands until their release cycle",
		func() {
			act := readCmd(5)
			act.Kind = signal.CmdKindPIMActivate
			controller.PushInputCommand(act, 3)

			tickN(3)
			Expect(controller.CollectStats().NumActivate).
				To(Equal(uint64(0)))

			controller.Tick()
			Expect(controller.CollectStats().NumActivate).
				To(Equal(uint64(1)))
		})

	It("should complete PIM writes after the write delay", func() {
		write := readCmd(5)
		write.Kind = signal.CmdKindPIMWrite
		write.FlatAddr = 0x40
		controller.PushWriteCommand(write)

		controller.Tick()

		_, kind := controller.ReturnDoneTrans(3)
		Expect(kind).To(Equal(signal.TransKindNone))

		addr, kind := controller.ReturnDoneTrans(5)
		Expect(kind).To(Equal(signal.TransKindWrite))
		Expect(addr).To(Equal(uint64(0x40)))
	})

	It("should run a conventional read to completion", func() {
		controller.AddTransaction(signal.Transaction{FlatAddr: 0x100})

		var doneAt uint64
		for cycle := uint64(0); cycle < 50; cycle++ {
			controller.Tick()

			_, kind := controller.ReturnDoneTrans(cycle)
			if kind == signal.TransKindRead {
				doneAt = cycle
				break
			}
		}

		// Activate at cycle 0, read at cycle 4, data 6 cycles later.
		Expect(doneAt).To(Equal(uint64(10)))
	})

	It("should bound the transaction queue", func() {
		Expect(controller.WillAcceptTransaction(0, false)).To(BeTrue())
		controller.AddTransaction(signal.Transaction{FlatAddr: 0x0})
		controller.AddTransaction(signal.Transaction{FlatAddr: 0x40})

		Expect(controller.WillAcceptTransaction(0x80, false)).
			To(BeFalse())
	})

	It("should announce refreshes ahead of time", func() {
		Expect(controller.PIMRefreshComing()).To(BeFalse())
		Expect(controller.PIMRefreshComing2()).To(BeFalse())

		tickN(960)
		Expect(controller.PIMRefreshComing()).To(BeTrue())
		Expect(controller.PIMRefreshComing2()).To(BeFalse())

		tickN(32)
		Expect(controller.PIMRefreshComing2()).To(BeTrue())
		Expect(controller.IsInRefresh()).To(BeFalse())
	})

	It("should refuse all commands during refresh", func() {
		act := readCmd(5)
		act.Kind = signal.CmdKindPIMActivate
		controller.PushWeightCommand(act)
		controller.Tick()

		tickN(1000)
		Expect(controller.IsInRefresh()).To(BeTrue())
		Expect(controller.GetReadyCommand(readCmd(5), 1001).
			IsValid()).To(BeFalse())

		// The refresh closed the row that was open before it.
		tickN(20)
		Expect(controller.IsInRefresh()).To(BeFalse())
		ready := controller.GetReadyCommand(readCmd(5), 1021)
		Expect(ready.Kind).To(Equal(signal.CmdKindPIMActivate))
		Expect(controller.CollectStats().NumRefresh).
			To(Equal(uint64(1)))
	})

	It("should carry the multi-tenant flag", func() {
		Expect(controller.MultiTenant()).To(BeFalse())

		controller.SetMultiTenant(true)

		Expect(controller.MultiTenant()).To(BeTrue())
	})
})

package dram

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/pimdram/dram/internal/ctrl"
	"github.com/sarchlab/pimdram/dram/internal/signal"
)

// Response modes of the fake controller's ready-command probe.
const (
	fakeNotReady = iota
	fakeEcho
	fakeActivate
)

// fakeController scripts the controller contract so that engine behavior can
// be pinned cycle by cycle.
type fakeController struct {
	mode int

	refreshComing  bool
	refreshComing2 bool
	inRefresh      bool

	multiTenant bool

	weight []signal.Command
	input  []signal.Command
	write  []signal.Command
}

func (f *fakeController) WillAcceptTransaction(uint64, bool) bool {
	return true
}

func (f *fakeController) AddTransaction(signal.Transaction) {}

func (f *fakeController) GetReadyCommand(
	cmd signal.Command,
	cycle uint64,
) signal.Command {
	switch f.mode {
	case fakeEcho:
		return cmd
	case fakeActivate:
		cmd.Kind = signal.CmdKindPIMActivate
		return cmd
	default:
		return signal.Command{Kind: signal.CmdKindInvalid}
	}
}

func (f *fakeController) ReturnDoneTrans(uint64) (uint64, signal.TransKind) {
	return 0, signal.TransKindNone
}

func (f *fakeController) IsInRefresh() bool       { return f.inRefresh }
func (f *fakeController) PIMRefreshComing() bool  { return f.refreshComing }
func (f *fakeController) PIMRefreshComing2() bool { return f.refreshComing2 }

func (f *fakeController) PushWeightCommand(cmd signal.Command) {
	f.weight = append(f.weight, cmd)
}

func (f *fakeController) PushInputCommand(cmd signal.Command, _ uint64) {
	f.input = append(f.input, cmd)
}

func (f *fakeController) PushWriteCommand(cmd signal.Command) {
	f.write = append(f.write, cmd)
}

func (f *fakeController) SetMultiTenant(on bool) { f.multiTenant = on }

func (f *fakeController) CollectStats() ctrl.Stats { return ctrl.Stats{} }
func (f *fakeController) ResetStats()              {}

func (f *fakeController) Tick() {}

var _ = Describe("Cut engine under scripted controllers", func() {
	var (
		s     *System
		fakes []*fakeController
	)

	setMode := func(mode int) {
		for _, f := range fakes {
			f.mode = mode
		}
	}

	BeforeEach(func() {
		s = MakeBuilder().
			WithNumChannel(4).
			WithNumBankGroup(4).
			WithNumBank(4).
			WithTREFI(100000000).
			WithEpochPeriod(0).
			Build("System")

		fakes = make([]*fakeController, 4)
		ctrls := make([]Controller, 4)
		for i := range fakes {
			fakes[i] = &fakeController{mode: fakeNotReady}
			ctrls[i] = fakes[i]
		}
		s.ctrls = ctrls

		submitWords(s, configWord(1, 1, 1, 1, 0, 256))
		submitWords(s, loadWords(0, 16, 16, 16)...)
		submitWords(s, EncodeComputeEnable(1))
		for i := 0; i < 5; i++ {
			s.Tick()
		}
	})

	It("should emit an activate batch once and hold it", func() {
		setMode(fakeActivate)

		s.Tick()

		Expect(s.cuts[0].wActPlaced).To(BeTrue())
		for _, f := range fakes {
			Expect(len(f.weight)).To(BeNumerically(">", 0))
			Expect(f.weight[0].Kind).
				To(Equal(signal.CmdKindPIMActivate))
		}

		// The activate is placed; re-emitting it is suppressed.
		pushed := len(fakes[0].weight)
		s.Tick()
		Expect(fakes[0].weight).To(HaveLen(pushed))
	})

	It("should not place an activate while a refresh is pending",
		func() {
			setMode(fakeActivate)
			for _, f := range fakes {
				f.refreshComing = true
			}

			s.Tick()

			Expect(s.cuts[0].wActPlaced).To(BeFalse())
			for _, f := range fakes {
				Expect(f.weight).To(BeEmpty())
			}
		})

	Context("while feeding input", func() {
		BeforeEach(func() {
			setMode(fakeEcho)

			// Eight weight reads finish the weight phase, one
			// cycle hands over, and input feeding begins.
			for i := 0; i < 12 &&
				s.cuts[0].iwStatus != statusFeedInput; i++ {
				s.Tick()
			}
			Expect(s.cuts[0].iwStatus).To(Equal(statusFeedInput))

			for s.cuts[0].mIt < 5 {
				s.Tick()
			}
		})

		It("should freeze the cut while a refresh runs", func() {
			mItBefore := s.cuts[0].mIt
			pushed := len(fakes[0].input)

			for _, f := range fakes {
				f.refreshComing2 = true
			}
			s.Tick()
			s.Tick()

			Expect(s.cuts[0].mIt).To(Equal(mItBefore))
			Expect(fakes[0].input).To(HaveLen(pushed))

			for _, f := range fakes {
				f.refreshComing2 = false
			}
			s.Tick()

			Expect(s.cuts[0].mIt).To(Equal(mItBefore + 1))
		})

		It("should clear open-row flags when a refresh nears", func() {
			s.cuts[0].wActPlaced = true
			s.cuts[0].inActPlaced = true
			s.cuts[0].outActPlaced = true

			for _, f := range fakes {
				f.refreshComing = true
			}
			s.Tick()

			cut := &s.cuts[0]
			Expect(cut.wActPlaced).To(BeFalse())
			Expect(cut.inActPlaced).To(BeFalse())
			Expect(cut.outActPlaced).To(BeFalse())
		})
	})
})

package dram

// The four phases each cut cycles through.
const (
	statusFetchWeight = iota
	statusWeightFinished
	statusFeedInput
	statusInputFinished
)

// cutState is the mutable compute state of one cut.
type cutState struct {
	baseRowW   uint64
	baseRowIn  uint64
	baseRowOut uint64

	m, n, k int

	mIt        int
	kTileIt    int
	nIt        int
	mOutIt     int
	nOutTileIt int

	inPIM    bool
	iwStatus int

	inCnt  int
	outCnt int
	vpuCnt int

	inActPlaced  bool
	wActPlaced   bool
	outActPlaced bool

	outputValid int
}

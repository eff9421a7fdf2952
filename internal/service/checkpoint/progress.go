package checkpoint

import "github.com/kapu/game-metadata-sync-go/internal/constants"

// Progress tracks the resume index of one run over a slice of the catalog.
// The index only moves forward until Complete resets it.
type Progress struct {
	index     int
	processed int
	saveEvery int
	complete  bool
}

func NewProgress(start, saveEvery int) *Progress {
	if start < 0 {
		start = 0
	}
	if saveEvery <= 0 {
		saveEvery = constants.RunConfig.SaveEvery
	}
	return &Progress{index: start, saveEvery: saveEvery}
}

// Index is the next record to process.
func (p *Progress) Index() int {
	return p.index
}

// Advance moves the index to i. Smaller values are ignored.
func (p *Progress) Advance(i int) {
	if i > p.index {
		p.index = i
	}
}

// MarkProcessed counts one resolved record toward the save interval.
func (p *Progress) MarkProcessed() {
	p.processed++
}

func (p *Progress) Processed() int {
	return p.processed
}

// ShouldSave is true after every saveEvery processed records.
func (p *Progress) ShouldSave() bool {
	return p.processed > 0 && p.processed%p.saveEvery == 0
}

// Complete ends the pass over the slice. The index returns to 0 and the
// full cycle is recorded as complete. Each checkpoint key owns exactly one
// slice, so finishing it is a full cycle for that key.
func (p *Progress) Complete() {
	p.index = 0
	p.complete = true
}

func (p *Progress) FullCycleComplete() bool {
	return p.complete
}

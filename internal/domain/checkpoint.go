package domain

import "time"

// Checkpoint is the persisted store document for one provider (and shard).
type Checkpoint struct {
	Games              map[string]*ResolvedRecord `json:"games"`
	LastUpdated        time.Time                  `json:"last_updated"`
	TotalGames         int                        `json:"total_games"`
	LastProcessedIndex int                        `json:"last_processed_index"`
	FullCycleComplete  bool                       `json:"full_cycle_complete"`
	Provider           string                     `json:"provider,omitempty"`
	Shard              int                        `json:"shard,omitempty"`
	RunID              string                     `json:"run_id,omitempty"`
}

func NewCheckpoint(provider string, shard int) *Checkpoint {
	return &Checkpoint{
		Games:    make(map[string]*ResolvedRecord),
		Provider: provider,
		Shard:    shard,
	}
}

// Ensure fills in a nil games map after decoding an older or empty document.
func (c *Checkpoint) Ensure() *Checkpoint {
	if c.Games == nil {
		c.Games = make(map[string]*ResolvedRecord)
	}
	return c
}

func (c *Checkpoint) Get(id string) *ResolvedRecord {
	if c == nil || c.Games == nil {
		return nil
	}
	return c.Games[id]
}

func (c *Checkpoint) Put(id string, rec *ResolvedRecord) {
	c.Ensure()
	c.Games[id] = rec
	c.TotalGames = len(c.Games)
}

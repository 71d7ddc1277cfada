package strategy

import "github.com/holiman/uint256"

// HarvestLogEntry records the strategy balance around one harvest.
type HarvestLogEntry struct {
	Timestamp    int64
	AssetsBefore *uint256.Int
	AssetsAfter  *uint256.Int
}

func (e HarvestLogEntry) clone() HarvestLogEntry {
	return HarvestLogEntry{
		Timestamp:    e.Timestamp,
		AssetsBefore: new(uint256.Int).Set(e.AssetsBefore),
		AssetsAfter:  new(uint256.Int).Set(e.AssetsAfter),
	}
}

// harvestLog is a fixed-capacity ring buffer of harvest entries.
type harvestLog struct {
	buf   []HarvestLogEntry
	start int
	size  int
}

func newHarvestLog(capacity int) *harvestLog {
	return &harvestLog{buf: make([]HarvestLogEntry, capacity)}
}

func (l *harvestLog) Cap() int { return len(l.buf) }
func (l *harvestLog) Len() int { return l.size }

// Push appends entry, returning the evicted oldest entry when full.
func (l *harvestLog) Push(entry HarvestLogEntry) (HarvestLogEntry, bool) {
	if l.size < len(l.buf) {
		l.buf[(l.start+l.size)%len(l.buf)] = entry
		l.size++
		return HarvestLogEntry{}, false
	}
	evicted := l.buf[l.start]
	l.buf[l.start] = entry
	l.start = (l.start + 1) % len(l.buf)
	return evicted, true
}

// Latest returns a pointer to the newest entry, or nil when empty.
func (l *harvestLog) Latest() *HarvestLogEntry {
	if l.size == 0 {
		return nil
	}
	return &l.buf[(l.start+l.size-1)%len(l.buf)]
}

// Entries returns copies of the retained entries, oldest first.
func (l *harvestLog) Entries() []HarvestLogEntry {
	out := make([]HarvestLogEntry, 0, l.size)
	for i := 0; i < l.size; i++ {
		out = append(out, l.buf[(l.start+i)%len(l.buf)].clone())
	}
	return out
}

func (l *harvestLog) Clone() *harvestLog {
	out := newHarvestLog(len(l.buf))
	for _, entry := range l.Entries() {
		out.Push(entry)
	}
	return out
}

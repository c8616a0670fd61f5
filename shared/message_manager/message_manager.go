package messagemanager

import "sync"

// MessageManager remembers which shuffle chunk IDs a job has already
// consumed so redelivered chunks are acknowledged without being applied
// twice. State lives as long as the process; job IDs are minted per run.
type MessageManager struct {
	mu           sync.Mutex
	processedIDs map[string]map[string]bool // jobID -> chunkID -> true
}

// NewMessageManager creates an empty manager.
func NewMessageManager() *MessageManager {
	return &MessageManager{
		processedIDs: make(map[string]map[string]bool),
	}
}

// IsProcessed reports whether id was already marked for jobID.
func (mm *MessageManager) IsProcessed(jobID, id string) bool {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	return mm.processedIDs[jobID][id]
}

// MarkProcessed records id for jobID.
func (mm *MessageManager) MarkProcessed(jobID, id string) {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	ids := mm.processedIDs[jobID]
	if ids == nil {
		ids = make(map[string]bool)
		mm.processedIDs[jobID] = ids
	}
	ids[id] = true
}

// CleanJob forgets every ID of jobID.
func (mm *MessageManager) CleanJob(jobID string) {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	delete(mm.processedIDs, jobID)
}

// GetProcessedCount returns the number of IDs held across all jobs.
func (mm *MessageManager) GetProcessedCount() int {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	total := 0
	for _, ids := range mm.processedIDs {
		total += len(ids)
	}
	return total
}

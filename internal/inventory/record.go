package inventory

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Status represents the lifecycle of a video record.
type Status string

const (
	StatusUnlinked   Status = "unlinked"
	StatusLinked     Status = "linked"
	StatusProcessing Status = "processing"
	StatusMissing    Status = "missing"
)

var allStatuses = []Status{StatusUnlinked, StatusLinked, StatusProcessing, StatusMissing}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// ErrAlreadyLinked is returned when a link would silently replace an existing
// transcript association. Re-linking requires an explicit Unlink first.
var ErrAlreadyLinked = errors.New("record already linked")

// VideoRecord is the durable record of one logical video. ID and OriginalPath
// are immutable once set; CurrentPath is rewritten by the reorganizer.
type VideoRecord struct {
	ID              string     `json:"id"`
	Filename        string     `json:"filename"`
	OriginalPath    string     `json:"original_path"`
	CurrentPath     string     `json:"current_path"`
	SourceLabel     string     `json:"source_label"`
	SizeBytes       int64      `json:"size_bytes"`
	ModifiedAt      time.Time  `json:"modified_at"`
	DurationSeconds float64    `json:"duration_seconds"`
	Status          Status     `json:"status"`
	TranscriptID    string     `json:"transcript_id,omitempty"`
	MatchConfidence float64    `json:"match_confidence,omitempty"`
	LinkedAt        *time.Time `json:"linked_at,omitempty"`
	MissingSince    *time.Time `json:"missing_since,omitempty"`
}

// Link associates the record with a transcript. A confidence of zero means the
// link was established deterministically rather than by fuzzy matching. An
// existing link to a different transcript is never silently replaced.
func (r *VideoRecord) Link(transcriptID string, confidence float64, now time.Time) error {
	transcriptID = strings.TrimSpace(transcriptID)
	if transcriptID == "" {
		return errors.New("transcript id is required")
	}
	if r.Status == StatusLinked && r.TranscriptID != transcriptID {
		return fmt.Errorf("%w: %s is linked to %s", ErrAlreadyLinked, r.ID, r.TranscriptID)
	}
	linkedAt := now.UTC()
	r.Status = StatusLinked
	r.TranscriptID = transcriptID
	r.MatchConfidence = confidence
	r.LinkedAt = &linkedAt
	r.MissingSince = nil
	return nil
}

// Unlink clears the transcript association, returning the record to unlinked.
func (r *VideoRecord) Unlink() {
	r.Status = StatusUnlinked
	r.TranscriptID = ""
	r.MatchConfidence = 0
	r.LinkedAt = nil
}

// MarkProcessing flags the record as owned by an in-flight transcription job.
// Acts as the mutual-exclusion flag preventing duplicate jobs per video.
func (r *VideoRecord) MarkProcessing() error {
	switch r.Status {
	case StatusProcessing:
		return fmt.Errorf("video %s already has a transcription in flight", r.ID)
	case StatusLinked:
		return fmt.Errorf("video %s is already linked to %s", r.ID, r.TranscriptID)
	case StatusMissing:
		return fmt.Errorf("video %s is missing from disk", r.ID)
	}
	r.Status = StatusProcessing
	return nil
}

// MarkMissing transitions the record to missing. An already-missing record
// keeps its original MissingSince timestamp.
func (r *VideoRecord) MarkMissing(now time.Time) {
	if r.Status == StatusMissing {
		return
	}
	since := now.UTC()
	r.Status = StatusMissing
	r.MissingSince = &since
	r.LinkedAt = nil
}

// MarkSeen records that the file was observed on disk, recovering a missing
// record to its pre-missing linkage.
func (r *VideoRecord) MarkSeen() {
	if r.Status != StatusMissing {
		return
	}
	r.MissingSince = nil
	if r.TranscriptID != "" {
		r.Status = StatusLinked
	} else {
		r.Status = StatusUnlinked
	}
}

// IsLinked reports whether the record carries a transcript association.
func (r *VideoRecord) IsLinked() bool {
	return r.Status == StatusLinked && r.TranscriptID != ""
}

// Inventory is the durable, versioned record of every known video.
type Inventory struct {
	Videos   map[string]*VideoRecord `json:"videos"`
	LastScan *time.Time              `json:"last_scan,omitempty"`
}

// NewInventory returns an empty inventory ready for merging.
func NewInventory() *Inventory {
	return &Inventory{Videos: map[string]*VideoRecord{}}
}

// ByCurrentPath returns the record currently located at path, if any.
func (inv *Inventory) ByCurrentPath(path string) *VideoRecord {
	for _, record := range inv.Videos {
		if record.CurrentPath == path {
			return record
		}
	}
	return nil
}

// LinkedTranscriptIDs returns the set of transcript IDs already claimed by a
// record, used to exclude them from match candidacy.
func (inv *Inventory) LinkedTranscriptIDs() map[string]struct{} {
	linked := make(map[string]struct{})
	for _, record := range inv.Videos {
		if record.TranscriptID != "" {
			linked[record.TranscriptID] = struct{}{}
		}
	}
	return linked
}

// StatusCounts returns a count of records grouped by status.
func (inv *Inventory) StatusCounts() map[Status]int {
	counts := make(map[Status]int, len(allStatuses))
	for _, record := range inv.Videos {
		counts[record.Status]++
	}
	return counts
}

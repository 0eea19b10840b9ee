package service

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/squadops/squadconf/internal/models"
)

// CurrentPack resolves the pack a rotation distribution is serving right
// now: the one at the cursor's queue number, or a calendar-anchored pack
// whose date is today and whose time window contains now, or a date-less
// pack whose time window contains now. Ties resolve deterministically:
// calendar packs before queued ones, then ascending queue number, most
// recent start date, later time window, lowest id.
func CurrentPack(db *gorm.DB, dist *models.RotationDistribution, now time.Time) (*models.RotationLayersPack, error) {
	packs, err := rotationPacks(db, dist.RotationID)
	if err != nil {
		return nil, err
	}

	var matches []*models.RotationLayersPack
	for i := range packs {
		rp := &packs[i]
		switch {
		case rp.QueueNumber != nil && *rp.QueueNumber == dist.LastQueueNumber:
			matches = append(matches, rp)
		case rp.StartDate != nil && sameDate(*rp.StartDate, now) && windowContains(rp, now):
			matches = append(matches, rp)
		case rp.StartDate == nil && rp.QueueNumber == nil && windowContains(rp, now):
			matches = append(matches, rp)
		}
	}
	if len(matches) == 0 {
		return nil, nil
	}

	sort.SliceStable(matches, func(i, j int) bool { return packLess(matches[i], matches[j]) })
	return matches[0], nil
}

// NextPack advances past the cursor: the smallest queue number strictly
// greater than it, wrapping to the smallest queue-numbered date-less
// pack when the sequence is exhausted. Calendar-anchored packs are never
// reachable this way; they only surface through CurrentPack's date/time
// match.
func NextPack(db *gorm.DB, dist *models.RotationDistribution) (*models.RotationLayersPack, error) {
	packs, err := rotationPacks(db, dist.RotationID)
	if err != nil {
		return nil, err
	}

	var next, first *models.RotationLayersPack
	for i := range packs {
		rp := &packs[i]
		if rp.QueueNumber == nil {
			continue
		}
		if *rp.QueueNumber > dist.LastQueueNumber {
			if next == nil || *rp.QueueNumber < *next.QueueNumber {
				next = rp
			}
		}
		if rp.StartDate == nil {
			if first == nil || *rp.QueueNumber < *first.QueueNumber {
				first = rp
			}
		}
	}

	if next != nil {
		return next, nil
	}
	// Cycle restart.
	return first, nil
}

// PackBySlug addresses a rotation entry directly.
func PackBySlug(db *gorm.DB, dist *models.RotationDistribution, slug string) (*models.RotationLayersPack, error) {
	var rp models.RotationLayersPack
	err := db.Preload("Pack").
		Where("rotation_id = ? AND slug = ?", dist.RotationID, slug).
		First(&rp).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rp, nil
}

// FormatRotationConfig renders the server-readable map list for one
// resolved pack. Only well-formed layer tokens make it into the output.
func FormatRotationConfig(rotation *models.Rotation, pack *models.RotationLayersPack, now time.Time) string {
	if pack == nil {
		return fmt.Sprintf("// no rotation found %s", now.Format(DateTimeLayout))
	}

	layers := pack.Pack.ParsedLayers()
	return fmt.Sprintf(
		"// %s - %s - %s\n\n%s",
		rotation.Title, pack.PositionDescriptor(), now.Format(DateTimeLayout),
		strings.Join(layers, "\n"),
	)
}

// WriteLocalRotationConfigs advances every active local rotation
// distribution whose calendar date has rolled over since its last
// update: the next pack is resolved, the local file rewritten and the
// cursor advanced, all in one transaction per distribution.
func WriteLocalRotationConfigs(db *gorm.DB, dir string) error {
	var distributions []models.RotationDistribution
	err := db.Preload("Rotation").
		Where("is_active = ? AND mode IN ?", true,
			[]models.DistributionMode{models.DistributionLocal, models.DistributionAPIAndLocal}).
		Find(&distributions).Error
	if err != nil {
		return fmt.Errorf("select local rotation distributions: %w", err)
	}

	now := time.Now().UTC()
	due := distributions[:0]
	for i := range distributions {
		d := &distributions[i]
		if d.LastUpdateDate == nil || !sameDate(*d.LastUpdateDate, now) {
			due = append(due, *d)
		}
	}
	if len(due) == 0 {
		return nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create rotations dir: %w", err)
	}

	for i := range due {
		dist := &due[i]
		err := db.Transaction(func(tx *gorm.DB) error {
			pack, err := NextPack(tx, dist)
			if err != nil {
				return err
			}

			content := FormatRotationConfig(&dist.Rotation, pack, now)
			path := filepath.Join(dir, *dist.LocalFilename)
			if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
				return err
			}

			updates := map[string]any{"last_update_date": now}
			if pack != nil && pack.QueueNumber != nil {
				updates["last_queue_number"] = *pack.QueueNumber
			}
			return tx.Model(dist).Updates(updates).Error
		})
		if err != nil {
			slog.Error("update rotation file", "rotation", dist.Rotation.Title, "error", err)
		}
	}
	return nil
}

func rotationPacks(db *gorm.DB, rotationID uint) ([]models.RotationLayersPack, error) {
	var packs []models.RotationLayersPack
	err := db.Preload("Pack").Where("rotation_id = ?", rotationID).Find(&packs).Error
	if err != nil {
		return nil, fmt.Errorf("select rotation packs: %w", err)
	}
	return packs, nil
}

// sameDate compares calendar days in UTC, the zone every stored
// timestamp and sweep clock uses.
func sameDate(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

// windowContains reports whether the pack's [start, end] time-of-day
// window contains now. Packs without a complete window never match.
func windowContains(rp *models.RotationLayersPack, now time.Time) bool {
	if rp.StartTimeAt == nil || rp.EndTimeAt == nil {
		return false
	}
	current := now.Format("15:04")
	return *rp.StartTimeAt <= current && current <= *rp.EndTimeAt
}

// packLess orders candidate packs: calendar entries (nil queue number)
// first, then ascending queue number, most recent start date first
// (dated before undated), later start and end times first, lowest id
// last.
func packLess(a, b *models.RotationLayersPack) bool {
	if (a.QueueNumber == nil) != (b.QueueNumber == nil) {
		return a.QueueNumber == nil
	}
	if a.QueueNumber != nil && *a.QueueNumber != *b.QueueNumber {
		return *a.QueueNumber < *b.QueueNumber
	}

	if (a.StartDate == nil) != (b.StartDate == nil) {
		return b.StartDate == nil
	}
	if a.StartDate != nil && !a.StartDate.Equal(*b.StartDate) {
		return a.StartDate.After(*b.StartDate)
	}

	if c := compareTimePtrDesc(a.StartTimeAt, b.StartTimeAt); c != 0 {
		return c < 0
	}
	if c := compareTimePtrDesc(a.EndTimeAt, b.EndTimeAt); c != 0 {
		return c < 0
	}
	return a.ID < b.ID
}

// compareTimePtrDesc orders "HH:MM" strings descending with nils last.
func compareTimePtrDesc(a, b *string) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	case *a == *b:
		return 0
	case *a > *b:
		return -1
	default:
		return 1
	}
}

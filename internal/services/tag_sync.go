package services

import (
	"fmt"
	"strings"

	"github.com/tasktracker/backend/internal/models"
	"github.com/tasktracker/backend/pkg/response"
	"gorm.io/gorm"
)

// TagDiff is the minimal change that turns a task's current tag set into
// the desired one.
type TagDiff struct {
	ToConnect    []string
	ToDisconnect []string
}

func (d TagDiff) Empty() bool {
	return len(d.ToConnect) == 0 && len(d.ToDisconnect) == 0
}

// DiffTags computes desired \ current and current \ desired. Duplicates are
// ignored and input order is preserved.
func DiffTags(current, desired []string) TagDiff {
	cur := make(map[string]struct{}, len(current))
	for _, id := range current {
		cur[id] = struct{}{}
	}
	want := make(map[string]struct{}, len(desired))
	for _, id := range desired {
		want[id] = struct{}{}
	}

	var d TagDiff
	seen := make(map[string]struct{}, len(desired))
	for _, id := range desired {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		if _, ok := cur[id]; !ok {
			d.ToConnect = append(d.ToConnect, id)
		}
	}
	seen = make(map[string]struct{}, len(current))
	for _, id := range current {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		if _, ok := want[id]; !ok {
			d.ToDisconnect = append(d.ToDisconnect, id)
		}
	}
	return d
}

// PlanTagSync reads the task's current tags and works out what to connect
// and disconnect. desired nil means the caller did not supply a tag list,
// so nothing is disconnected. A non-empty newTagName is resolved (created
// if needed) and joins the desired set. Run it in the same transaction as
// ApplyTagDiff.
func PlanTagSync(tx *gorm.DB, taskID string, desired []string, newTagName string) (TagDiff, error) {
	var current []models.Tag
	if err := tx.Model(&models.Task{ID: taskID}).Association("Tags").Find(&current); err != nil {
		return TagDiff{}, fmt.Errorf("load current tags: %w", err)
	}
	currentIDs := make([]string, 0, len(current))
	for _, t := range current {
		currentIDs = append(currentIDs, t.ID)
	}

	effective := desired
	if desired == nil {
		effective = append([]string(nil), currentIDs...)
	}

	if newTagName != "" {
		name, err := NormalizeTagName(newTagName)
		if err != nil {
			return TagDiff{}, err
		}
		tag, err := ResolveTag(tx, name)
		if err != nil {
			return TagDiff{}, err
		}
		if !containsID(effective, tag.ID) {
			effective = append(effective, tag.ID)
		}
	}

	return DiffTags(currentIDs, effective), nil
}

// ApplyTagDiff connects and disconnects tags on the task. Every id in
// ToConnect must name an existing tag.
func ApplyTagDiff(tx *gorm.DB, taskID string, diff TagDiff) error {
	if diff.Empty() {
		return nil
	}
	assoc := tx.Model(&models.Task{ID: taskID}).Association("Tags")

	if len(diff.ToConnect) > 0 {
		var tags []models.Tag
		if err := tx.Where("id IN ?", diff.ToConnect).Find(&tags).Error; err != nil {
			return fmt.Errorf("load tags: %w", err)
		}
		if len(tags) != len(diff.ToConnect) {
			return response.NewValidation("unknown tag ids: %s", strings.Join(missingIDs(diff.ToConnect, tags), ", "))
		}
		if err := assoc.Append(&tags); err != nil {
			return fmt.Errorf("connect tags: %w", err)
		}
	}

	if len(diff.ToDisconnect) > 0 {
		drop := make([]models.Tag, 0, len(diff.ToDisconnect))
		for _, id := range diff.ToDisconnect {
			drop = append(drop, models.Tag{ID: id})
		}
		if err := assoc.Delete(&drop); err != nil {
			return fmt.Errorf("disconnect tags: %w", err)
		}
	}
	return nil
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func missingIDs(want []string, found []models.Tag) []string {
	have := make(map[string]struct{}, len(found))
	for _, t := range found {
		have[t.ID] = struct{}{}
	}
	var missing []string
	for _, id := range want {
		if _, ok := have[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}

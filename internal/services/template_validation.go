package services

import (
	"strings"

	"github.com/projecthub/projecthub-backend/internal/apperr"
	"github.com/projecthub/projecthub-backend/internal/types"
)

const errTimelineExceedsDuration = "Milestone timeline exceeds estimated duration"

// validateTemplate enforces the structural rules every template write
// must pass: required name, unique milestone titles, sane offsets and
// effort estimates, and a timeline that fits the configured duration
// (plus a one-week grace margin).
func validateTemplate(name string, milestones []types.MilestoneItem, cfg types.TemplateConfig) error {
	if strings.TrimSpace(name) == "" {
		return apperr.Validation("invalid_template", "Template name is required")
	}
	if len(milestones) == 0 {
		return apperr.Validation("invalid_template", "Template must define at least one milestone")
	}

	seen := make(map[string]struct{}, len(milestones))
	maxOffset := 0
	for _, m := range milestones {
		title := strings.TrimSpace(m.Title)
		if title == "" {
			return apperr.Validation("invalid_milestone", "Milestone title is required")
		}
		if _, dup := seen[title]; dup {
			return apperr.Validation("duplicate_milestone_title", "Duplicate milestone title: %s", title)
		}
		seen[title] = struct{}{}
		if m.DaysFromStart < 0 {
			return apperr.Validation("invalid_milestone", "Milestone %q has a negative start offset", title)
		}
		if m.EstimatedHours <= 0 {
			return apperr.Validation("invalid_milestone", "Milestone %q must estimate more than zero hours", title)
		}
		if m.DaysFromStart > maxOffset {
			maxOffset = m.DaysFromStart
		}
	}

	if cfg.EstimatedDurationWeeks > 0 {
		if maxOffset > cfg.EstimatedDurationWeeks*7+7 {
			return apperr.Validation("timeline_exceeds_duration", "%s", errTimelineExceedsDuration)
		}
	}
	if cfg.MinDurationWeeks > 0 && cfg.MaxDurationWeeks > 0 && cfg.MinDurationWeeks > cfg.MaxDurationWeeks {
		return apperr.Validation("invalid_template", "Minimum duration cannot exceed maximum duration")
	}

	for _, required := range cfg.RequiredMilestones {
		if _, ok := seen[required]; !ok {
			return apperr.Validation("missing_required_milestone", "Required milestone %q is not defined", required)
		}
	}
	return nil
}

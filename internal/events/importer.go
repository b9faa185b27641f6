package events

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	appLog "pdxevents/internal/log"
	"pdxevents/internal/model"
	"pdxevents/internal/recurrence"
)

// Rejection explains why a staged draft was not accepted.
type Rejection struct {
	Index  int    `json:"index"`
	Title  string `json:"title"`
	Reason string `json:"reason"`
}

// StageResult splits a batch of drafts into acceptable rows and rejected
// ones. Accepted keeps input order.
type StageResult struct {
	Accepted []Draft
	Rejected []Rejection
}

// Stage screens a batch of drafts before any of them is stored. A raw
// pattern that does not classify as weekly or monthly rejects the row.
func Stage(drafts []Draft) StageResult {
	var res StageResult
	for i, d := range drafts {
		if reason := stageReason(d); reason != "" {
			res.Rejected = append(res.Rejected, Rejection{Index: i, Title: d.Title, Reason: reason})
			continue
		}
		res.Accepted = append(res.Accepted, d)
	}
	return res
}

func stageReason(d Draft) string {
	switch {
	case strings.TrimSpace(d.Title) == "":
		return "missing title"
	case d.Date.IsZero():
		return "missing date"
	case d.Pattern == "":
		return ""
	case recurrence.TypeFromPattern(d.Pattern) == recurrence.Unknown:
		return fmt.Sprintf("unrecognized recurrence pattern %q", d.Pattern)
	}
	return ""
}

// ImportResult reports the outcome of Import.
type ImportResult struct {
	Created  []*model.Event `json:"-"`
	Rejected []Rejection    `json:"rejected,omitempty"`
}

// Import stages drafts and submits every accepted one. Rows that fail
// submission validation are reported as rejections; storage errors abort.
func (s *Service) Import(ctx context.Context, drafts []Draft) (ImportResult, error) {
	var res ImportResult

	staged := Stage(drafts)
	res.Rejected = append(res.Rejected, staged.Rejected...)

	// Map accepted drafts back to their input index for reporting.
	rejected := make(map[int]bool, len(staged.Rejected))
	for _, r := range staged.Rejected {
		rejected[r.Index] = true
	}
	for i, d := range drafts {
		if rejected[i] {
			continue
		}
		e, err := s.Submit(ctx, d)
		if err != nil {
			if isDraftError(err) {
				res.Rejected = append(res.Rejected, Rejection{Index: i, Title: d.Title, Reason: err.Error()})
				continue
			}
			return res, err
		}
		res.Created = append(res.Created, e)
	}

	slices.SortFunc(res.Rejected, func(a, b Rejection) int { return a.Index - b.Index })

	appLog.Info("import completed", "drafts", len(drafts), "created", len(res.Created), "rejected", len(res.Rejected))
	return res, nil
}

// isDraftError reports whether err comes from the draft itself rather than
// from storage.
func isDraftError(err error) bool {
	return errors.Is(err, ErrInvalidEvent) ||
		errors.Is(err, ErrSeriesEnded) ||
		errors.Is(err, recurrence.ErrInvalidPattern) ||
		errors.Is(err, recurrence.ErrUnresolvable)
}

// Package score derives a session's traffic-light result from its checklist
// items. Evaluation is pure: same item list in, same result out, no I/O.
package score

import (
	"fmt"
	"math"

	"github.com/klinikhygiene/begehung/internal/domain"
)

// Thresholds for the base traffic-light color, in percent.
const (
	yellowFloor = 60
	greenFloor  = 80
)

// criticalRedLimit is the critical-failure count above which the color is
// forced to red regardless of percentage.
const criticalRedLimit = 3

const allCriticalSatisfied = "all critical criteria satisfied"

// Evaluate computes the derived result fields for the given item list.
func Evaluate(items []domain.ChecklistItem) domain.Result {
	var answered, approvedLike, criticalFailed int
	for _, item := range items {
		if !item.Status.Answered() {
			continue
		}
		answered++
		if item.Status.ApprovedLike() {
			approvedLike++
		}
		if item.Question.Critical && item.Status == domain.StatusFailed {
			criticalFailed++
		}
	}

	// With nothing answered yet the ratio is undefined; report 0 so the
	// result is always well-formed.
	percentage := 0
	if answered > 0 {
		percentage = int(math.Round(float64(approvedLike) / float64(answered) * 100))
	}

	color := baseColor(percentage)
	description := allCriticalSatisfied
	if criticalFailed > 0 {
		description = fmt.Sprintf("%d critical criteria not satisfied", criticalFailed)
		if criticalFailed > criticalRedLimit {
			color = domain.ColorRed
		} else if color == domain.ColorGreen {
			color = domain.ColorYellow
		}
	}

	return domain.Result{
		Color:          color,
		Percentage:     percentage,
		CriticalFailed: criticalFailed,
		Description:    description,
	}
}

func baseColor(percentage int) domain.ResultColor {
	switch {
	case percentage < yellowFloor:
		return domain.ColorRed
	case percentage < greenFloor:
		return domain.ColorYellow
	default:
		return domain.ColorGreen
	}
}

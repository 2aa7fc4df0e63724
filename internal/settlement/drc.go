package settlement

import (
	"upi-reconciliation-service/internal/matcher"
	"upi-reconciliation-service/internal/models"
	"upi-reconciliation-service/pkg/logger"
)

// ApplyDRC marks every record named by a dispute report row with the
// DRC_RAISED exception ahead of annexure and TTUM emission, so disputes
// land in the DRC file regardless of how matching classified them. The
// displaced exception tag is preserved in the record's remarks. Returns
// the number of records marked.
func (g *Generator) ApplyDRC(result *matcher.Result, drcRows []*models.Transaction) int {
	if result == nil || len(drcRows) == 0 {
		return 0
	}

	disputed := make(map[string]bool, len(drcRows))
	for _, row := range drcRows {
		if row != nil && row.RRN != "" {
			disputed[row.RRN] = true
		}
	}

	marked := 0
	for _, rec := range result.OrderedRecords() {
		if rec.RRN == "" || !disputed[rec.RRN] {
			continue
		}
		if rec.ExceptionType == models.ExcDRCRaised {
			continue
		}
		if rec.ExceptionType != "" {
			note := "was " + rec.ExceptionType
			if rec.Remarks != "" {
				rec.Remarks += "; "
			}
			rec.Remarks += note
		}
		rec.ExceptionType = models.ExcDRCRaised
		rec.TTUMRequired = true
		marked++
	}

	if marked > 0 {
		result.RecountStatus()
		g.log.WithFields(logger.Fields{
			"cycle_id": result.CycleID,
			"marked":   marked,
		}).Info("DRC dispute rows applied")
	}
	return marked
}

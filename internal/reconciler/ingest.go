package reconciler

import (
	"context"
	"fmt"
	"path/filepath"

	"upi-reconciliation-service/internal/models"
	"upi-reconciliation-service/internal/parsers"
	"upi-reconciliation-service/pkg/logger"
)

// stagedFile is a consumed source file, remembered so the run can copy it
// into its uploads directory once everything else has succeeded.
type stagedFile struct {
	path   string
	source models.Source
}

// sourceData holds everything ingested for one cycle.
type sourceData struct {
	cbs         []*models.Transaction
	sw          []*models.Transaction
	npci        []*models.Transaction
	ntsl        []*models.Transaction
	drc         []*models.Transaction
	adjustments []models.Adjustment

	files []stagedFile
	rows  int
}

// ingest parses and normalizes every file the request names. Row-level
// parse failures become warnings; structural failures (unreadable file,
// missing required columns, unparseable amounts) abort the run.
func (s *Service) ingest(ctx context.Context, req *Request, info *parsers.NPCIFileInfo) (*sourceData, error) {
	data := &sourceData{}

	cbs, err := s.parseSource(ctx, req.CBSFile, models.SourceCBS, data)
	if err != nil {
		return nil, err
	}
	data.cbs = cbs

	sw, err := s.parseSource(ctx, req.SwitchFile, models.SourceSwitch, data)
	if err != nil {
		return nil, err
	}
	data.sw = sw

	npci, err := s.parseSource(ctx, req.NPCIFile, models.SourceNPCI, data)
	if err != nil {
		return nil, err
	}
	stampNPCIDirection(npci, info)
	data.npci = npci

	if req.NTSLFile != "" {
		ntsl, err := s.parseSource(ctx, req.NTSLFile, models.SourceNTSL, data)
		if err != nil {
			return nil, err
		}
		data.ntsl = ntsl
	}

	if req.AdjustmentFile != "" {
		adjustments, err := s.parseAdjustments(ctx, req.AdjustmentFile, data)
		if err != nil {
			return nil, err
		}
		data.adjustments = adjustments
	}

	if req.DRCFile != "" {
		drc, err := s.parseSource(ctx, req.DRCFile, models.SourceAdjustment, data)
		if err != nil {
			return nil, err
		}
		data.drc = drc
	}

	return data, nil
}

// parseSource reads one file into normalized transactions and stages it
// for the uploads record.
func (s *Service) parseSource(ctx context.Context, path string, source models.Source, data *sourceData) ([]*models.Transaction, error) {
	table, parseStats, err := s.parser.ParseFile(ctx, path)
	if err != nil {
		return nil, err
	}
	s.reportParseErrors(path, parseStats)

	txns, stats, err := s.norm.NormalizeTable(ctx, table, source)
	if err != nil {
		return nil, err
	}
	for _, w := range stats.Warnings {
		s.addWarning(w)
	}

	s.log.WithFields(logger.Fields{
		"file":         filepath.Base(path),
		"source":       string(source),
		"rows_in":      stats.RowsIn,
		"rows_out":     stats.RowsOut,
		"rows_dropped": stats.RowsDropped,
	}).Info("Source file ingested")

	data.files = append(data.files, stagedFile{path: path, source: source})
	data.rows += stats.RowsOut
	return txns, nil
}

// parseAdjustments reads the manual adjustment sheet.
func (s *Service) parseAdjustments(ctx context.Context, path string, data *sourceData) ([]models.Adjustment, error) {
	table, parseStats, err := s.parser.ParseFile(ctx, path)
	if err != nil {
		return nil, err
	}
	s.reportParseErrors(path, parseStats)

	adjustments, stats, err := s.norm.NormalizeAdjustments(ctx, table)
	if err != nil {
		return nil, err
	}
	for _, w := range stats.Warnings {
		s.addWarning(w)
	}

	s.log.WithFields(logger.Fields{
		"file":        filepath.Base(path),
		"adjustments": len(adjustments),
	}).Info("Adjustment file ingested")

	data.files = append(data.files, stagedFile{path: path, source: models.SourceAdjustment})
	data.rows += stats.RowsOut
	return adjustments, nil
}

// reportParseErrors turns row-level parse failures into run warnings.
func (s *Service) reportParseErrors(path string, stats *parsers.ParseStats) {
	if stats == nil || !stats.HasErrors() {
		return
	}
	name := filepath.Base(path)
	for _, sample := range stats.GetSampleErrors(3) {
		s.addWarning(fmt.Sprintf("%s: %s", name, sample))
	}
	s.log.WithFields(logger.Fields{
		"file":   name,
		"errors": stats.ErrorCount,
	}).Warn("Some rows failed to parse")
}

// stampNPCIDirection copies the direction and subtype encoded in the NPCI
// file name onto rows that carried no transaction type of their own. The
// engine reads these hints when it infers each record's direction.
func stampNPCIDirection(txns []*models.Transaction, info *parsers.NPCIFileInfo) {
	if info == nil {
		return
	}
	for _, txn := range txns {
		if txn.TranType == "" {
			txn.TranType = string(info.Direction)
		}
		if txn.TranSubtype == "" {
			txn.TranSubtype = info.Subtype
		}
	}
}

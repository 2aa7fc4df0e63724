package parsers

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"upi-reconciliation-service/internal/models"
	"upi-reconciliation-service/pkg/errors"
)

// NPCI raw file names follow a fixed convention that encodes the direction,
// transaction subtype, bank code, file date and settlement cycle:
//
//	{ISSR|ACQR}{P2P|P2M}{BANK}{DDMMYY}_{N}C.{csv|xlsx}
//
// where BANK is a 4-character bank code and N is the cycle number 1..10.
// ISSR files carry inward traffic (the bank is the issuer), ACQR files
// carry outward traffic (the bank is the acquirer).
var npciFileNamePattern = regexp.MustCompile(`(?i)^(ISSR|ACQR)(P2P|P2M)([A-Z0-9]{4})(\d{6})_(\d{1,2})C\.(csv|xlsx)$`)

// DRC dispute report names start with a fixed prefix followed by the bank
// code and file date: DRCREPORT{BANK}{DDMMYY} with an optional free-form
// suffix before the extension.
var drcFileNamePattern = regexp.MustCompile(`(?i)^DRCREPORT([A-Z0-9]{4})(\d{6})\S*\.(csv|xlsx)$`)

// NPCIFileInfo holds the metadata encoded in an NPCI raw file name.
type NPCIFileInfo struct {
	Direction models.Direction
	Subtype   string // P2P or P2M
	BankCode  string
	FileDate  time.Time
	CycleID   string // "1C" through "10C"
	CycleNum  int
}

// ParseNPCIFileName validates an NPCI raw file name against the naming
// convention and extracts its metadata. The path may include directories;
// only the base name is inspected.
func ParseNPCIFileName(path string) (*NPCIFileInfo, error) {
	name := filepath.Base(path)

	m := npciFileNamePattern.FindStringSubmatch(name)
	if m == nil {
		return nil, errors.ValidationError(
			errors.CodeInvalidFileName,
			"npci_file_name",
			name,
			nil,
		).WithSuggestion("NPCI file names must match {ISSR|ACQR}{P2P|P2M}{BANK}{DDMMYY}_{N}C.{csv|xlsx}, e.g. ISSRP2PAXIS040126_1C.csv")
	}

	cycleNum, err := strconv.Atoi(m[5])
	if err != nil || cycleNum < 1 || cycleNum > 10 {
		return nil, errors.ValidationError(
			errors.CodeInvalidFileName,
			"cycle_number",
			m[5],
			nil,
		).WithContext("file_name", name).
			WithSuggestion("Cycle number must be between 1 and 10")
	}

	fileDate, err := parseFileDate(m[4])
	if err != nil {
		return nil, errors.ValidationError(
			errors.CodeInvalidFileName,
			"file_date",
			m[4],
			err,
		).WithContext("file_name", name).
			WithSuggestion("File date must be DDMMYY, e.g. 040126 for 4 January 2026")
	}

	direction := models.DirectionInward
	if strings.EqualFold(m[1], "ACQR") {
		direction = models.DirectionOutward
	}

	return &NPCIFileInfo{
		Direction: direction,
		Subtype:   strings.ToUpper(m[2]),
		BankCode:  strings.ToUpper(m[3]),
		FileDate:  fileDate,
		CycleID:   fmt.Sprintf("%dC", cycleNum),
		CycleNum:  cycleNum,
	}, nil
}

// DRCFileInfo holds the metadata encoded in a DRC dispute report name.
type DRCFileInfo struct {
	BankCode string
	FileDate time.Time
}

// ParseDRCFileName validates a DRC dispute report file name and extracts
// its metadata.
func ParseDRCFileName(path string) (*DRCFileInfo, error) {
	name := filepath.Base(path)

	m := drcFileNamePattern.FindStringSubmatch(name)
	if m == nil {
		return nil, errors.ValidationError(
			errors.CodeInvalidFileName,
			"drc_file_name",
			name,
			nil,
		).WithSuggestion("DRC file names must match DRCREPORT{BANK}{DDMMYY}.{csv|xlsx}, e.g. DRCREPORTAXIS040126.csv")
	}

	fileDate, err := parseFileDate(m[2])
	if err != nil {
		return nil, errors.ValidationError(
			errors.CodeInvalidFileName,
			"file_date",
			m[2],
			err,
		).WithContext("file_name", name).
			WithSuggestion("File date must be DDMMYY, e.g. 040126 for 4 January 2026")
	}

	return &DRCFileInfo{
		BankCode: strings.ToUpper(m[1]),
		FileDate: fileDate,
	}, nil
}

// IsNPCIFileName reports whether the base name matches the NPCI raw file
// convention, without extracting metadata.
func IsNPCIFileName(path string) bool {
	return npciFileNamePattern.MatchString(filepath.Base(path))
}

// IsDRCFileName reports whether the base name matches the DRC dispute
// report convention.
func IsDRCFileName(path string) bool {
	return drcFileNamePattern.MatchString(filepath.Base(path))
}

// parseFileDate parses the DDMMYY date token used in file names.
func parseFileDate(token string) (time.Time, error) {
	return time.Parse("020106", token)
}

// ValidCycleID reports whether id is one of the ten settlement cycle
// identifiers "1C" through "10C".
func ValidCycleID(id string) bool {
	if !strings.HasSuffix(id, "C") {
		return false
	}
	n, err := strconv.Atoi(strings.TrimSuffix(id, "C"))
	if err != nil {
		return false
	}
	return n >= 1 && n <= 10
}

// CycleIDs returns the ten settlement cycle identifiers in order.
func CycleIDs() []string {
	ids := make([]string, 0, 10)
	for n := 1; n <= 10; n++ {
		ids = append(ids, fmt.Sprintf("%dC", n))
	}
	return ids
}

package models

import (
	"encoding/json"
	"strings"
)

// RCClass partitions response codes into the classes the engine branches on.
type RCClass string

const (
	RCSuccess     RCClass = "SUCCESS"
	RCDeemed      RCClass = "DEEMED"
	RCFail        RCClass = "FAIL"
	RCUnspecified RCClass = "UNSPECIFIED"
)

// ResponseCode is a source system's response code, classified. The raw code
// is retained for FAIL responses (and for deemed responses like "RB1") so
// reports can surface the original value.
type ResponseCode struct {
	Class RCClass `json:"class"`
	Code  string  `json:"code,omitempty"`
}

// Convenience constructors for the fixed classes.
var (
	RCSuccessCode     = ResponseCode{Class: RCSuccess, Code: "00"}
	RCDeemedCode      = ResponseCode{Class: RCDeemed, Code: "RB"}
	RCUnspecifiedCode = ResponseCode{Class: RCUnspecified}
)

// FailRC constructs a FAIL response carrying the raw code.
func FailRC(code string) ResponseCode {
	return ResponseCode{Class: RCFail, Code: code}
}

// IsSuccess reports whether the response is an explicit success.
func (rc ResponseCode) IsSuccess() bool { return rc.Class == RCSuccess }

// IsDeemed reports whether the response is a deemed acceptance (RB family).
func (rc ResponseCode) IsDeemed() bool { return rc.Class == RCDeemed }

// IsFail reports whether the response is an explicit decline.
func (rc ResponseCode) IsFail() bool { return rc.Class == RCFail }

// String returns the raw code when present, else the class name.
func (rc ResponseCode) String() string {
	if rc.Code != "" {
		return rc.Code
	}
	return string(rc.Class)
}

// ParseRC classifies a raw response code value.
//
// Empty values are UNSPECIFIED; the RB family is DEEMED; "00", "0",
// "SUCCESS" and "S" are SUCCESS; anything else is a FAIL carrying the raw
// code.
func ParseRC(raw string) ResponseCode {
	value := strings.ToUpper(strings.TrimSpace(raw))
	if value == "" {
		return RCUnspecifiedCode
	}
	if strings.HasPrefix(value, "RB") {
		return ResponseCode{Class: RCDeemed, Code: value}
	}
	switch value {
	case "00", "0", "SUCCESS", "S":
		return ResponseCode{Class: RCSuccess, Code: "00"}
	}
	return ResponseCode{Class: RCFail, Code: value}
}

// MarshalJSON keeps the wire shape stable even if fields are added later.
func (rc ResponseCode) MarshalJSON() ([]byte, error) {
	type Alias ResponseCode
	return json.Marshal(Alias(rc))
}

// UnmarshalJSON accepts either the structured form or a bare string code.
func (rc *ResponseCode) UnmarshalJSON(data []byte) error {
	// Bare string form: "00", "RB", "U69" ...
	var raw string
	if err := json.Unmarshal(data, &raw); err == nil {
		*rc = ParseRC(raw)
		return nil
	}

	type Alias ResponseCode
	var aux Alias
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*rc = ResponseCode(aux)
	return nil
}

// LegStatusOf derives the exception-matrix leg status for a source slot.
// A missing row is a failed leg; deemed and declined responses are failed;
// success and unspecified responses are successful legs.
func LegStatusOf(txn *Transaction) LegStatus {
	if txn == nil {
		return LegFailed
	}
	switch txn.RC.Class {
	case RCFail, RCDeemed:
		return LegFailed
	}
	return LegSuccess
}

package service

import (
	"fmt"
	"strconv"
)

const (
	judgingLabel     = "Judging"
	unknownCellValue = "?"
	unknownVerdict   = "Unknown Verdict"
)

var verdictNames = map[string]string{
	"AC":  "Accepted",
	"WA":  "Wrong Answer",
	"TLE": "Time Limit Exceeded",
	"MLE": "Memory Limit Exceeded",
	"OLE": "Output Limit Exceeded",
	"RE":  "Runtime Error",
	"CE":  "Compile Error",
	"SE":  "System Error",
	"JE":  "Judge Error",
	"PE":  "Presentation Error",
}

// VerdictText expands a verdict code. Codes outside the table share one fallback label.
func VerdictText(code string) string {
	if name, ok := verdictNames[code]; ok {
		return name
	}
	return unknownVerdict
}

// DisplayRuntime renders a runtime in seconds as whole milliseconds.
func DisplayRuntime(runtime *float64) string {
	if runtime == nil {
		return unknownCellValue
	}
	return fmt.Sprintf("%.0f ms", *runtime*1000)
}

func displayPoints(points *float64) string {
	if points == nil {
		return unknownCellValue
	}
	return strconv.FormatFloat(*points, 'f', -1, 64)
}

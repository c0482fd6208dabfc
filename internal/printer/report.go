package printer

import (
	"regexp"
	"strconv"
	"strings"

	"set_and_wait/internal/models"
)

// reTempPair matches "T:201.2 /202.0", "T1:25 /0", "B:60.1 /60" and "C:30 /0".
var reTempPair = regexp.MustCompile(`(?:^|\s)(B|C|T\d*):\s*(-?\d+(?:\.\d+)?)(?:\s*/\s*(-?\d+(?:\.\d+)?))?`)

// ParseReport extracts heater readings from a firmware temperature report. A bare "T"
// is attributed to currentTool unless explicit per-tool entries are present.
func ParseReport(line string, currentTool int) ([]models.HeaterReading, bool) {
	matches := reTempPair.FindAllStringSubmatch(line, -1)
	if len(matches) == 0 {
		return nil, false
	}

	explicitTools := false
	for _, m := range matches {
		if len(m[1]) > 1 && m[1][0] == 'T' {
			explicitTools = true
			break
		}
	}

	out := make([]models.HeaterReading, 0, len(matches))
	for _, m := range matches {
		actual, err := strconv.ParseFloat(m[2], 64)
		if err != nil {
			continue
		}
		r := models.HeaterReading{ActualC: actual}
		if m[3] != "" {
			r.TargetC, _ = strconv.ParseFloat(m[3], 64)
		}

		switch key := m[1]; {
		case key == "B":
			r.Class = models.HeaterBed
		case key == "C":
			r.Class = models.HeaterEnclosure
		case key == "T":
			if explicitTools {
				continue
			}
			r.Class, r.Channel = models.HeaterPrimary, currentTool
		default:
			n, err := strconv.Atoi(strings.TrimPrefix(key, "T"))
			if err != nil {
				continue
			}
			r.Class, r.Channel = models.HeaterPrimary, n
		}
		out = append(out, r)
	}
	return out, len(out) > 0
}

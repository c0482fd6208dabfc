package printer

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"set_and_wait/internal/models"
)

var (
	reWord  = regexp.MustCompile(`^\s*(?:N\d+\s*)?([GMT]\d+)`)
	reParam = regexp.MustCompile(`([A-Z])([-+]?[0-9]*\.?[0-9]+)`)
)

// Commands that keep the firmware busy until their "ok".
var longRunningCommands = map[string]bool{
	"G28": true, "G29": true, "G30": true, "G32": true,
	"M109": true, "M190": true, "M191": true, "M400": true, "M600": true,
}

// Firmware-side blocking heat commands.
var heatingCommands = map[string]bool{"M109": true, "M190": true, "M191": true}

// setCommands maps non-blocking and blocking heater commands to their class.
var setCommands = map[string]models.HeaterClass{
	"M104": models.HeaterPrimary, "M109": models.HeaterPrimary,
	"M140": models.HeaterBed, "M190": models.HeaterBed,
	"M141": models.HeaterEnclosure, "M191": models.HeaterEnclosure,
}

// line is a parsed command line: word plus numeric parameters.
type line struct {
	word   string
	params map[byte]float64
}

func parseLine(s string) line {
	s = strings.ToUpper(s)
	if i := strings.IndexAny(s, ";*"); i >= 0 {
		s = s[:i]
	}
	m := reWord.FindStringSubmatchIndex(s)
	if m == nil {
		return line{}
	}
	l := line{word: s[m[2]:m[3]], params: map[byte]float64{}}
	for _, p := range reParam.FindAllStringSubmatch(s[m[1]:], -1) {
		if v, err := strconv.ParseFloat(p[2], 64); err == nil {
			l.params[p[1][0]] = v
		}
	}
	return l
}

func (l line) param(k byte) (float64, bool) {
	v, ok := l.params[k]
	return v, ok
}

// toolChange returns the tool selected by a bare "T<n>" line.
func (l line) toolChange() (int, bool) {
	if len(l.word) < 2 || l.word[0] != 'T' {
		return 0, false
	}
	n, err := strconv.Atoi(l.word[1:])
	if err != nil {
		return 0, false
	}
	return n, true
}

// dwell returns the duration of a G4 line (P in ms, S in seconds).
func (l line) dwell() (time.Duration, bool) {
	if l.word != "G4" {
		return 0, false
	}
	if p, ok := l.param('P'); ok {
		return time.Duration(p * float64(time.Millisecond)), true
	}
	if s, ok := l.param('S'); ok {
		return time.Duration(s * float64(time.Second)), true
	}
	return 0, true
}

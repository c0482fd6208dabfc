package service

import (
	"regexp"
	"strconv"
	"strings"

	"set_and_wait/internal/models"
)

// Command words handled by the pipeline.
const (
	cmdCancelWait  = "M108"
	cmdToolSet     = "M104"
	cmdToolWait    = "M109"
	cmdBedSet      = "M140"
	cmdBedWait     = "M190"
	cmdChamberSet  = "M141"
	cmdChamberWait = "M191"
)

// blockingPairs maps each blocking command to its non-blocking twin and heater class.
var blockingPairs = map[string]struct {
	set   string
	class models.HeaterClass
}{
	cmdToolWait:    {set: cmdToolSet, class: models.HeaterPrimary},
	cmdBedWait:     {set: cmdBedSet, class: models.HeaterBed},
	cmdChamberWait: {set: cmdChamberSet, class: models.HeaterEnclosure},
}

var (
	reCommand = regexp.MustCompile(`^\s*(?:N\d+\s*)?([GMT]\d+(?:\.\d+)?)`)
	reFloatS  = regexp.MustCompile(`S(?P<value>[-+]?[0-9]*\.?[0-9]+)`)
	reFloatR  = regexp.MustCompile(`R(?P<value>[-+]?[0-9]*\.?[0-9]+)`)
	reIntT    = regexp.MustCompile(`T(?P<value>\d+)`)
)

// Translation is a blocking command split into what to send now and what to wait for.
type Translation struct {
	From    string // blocking command word
	To      string // non-blocking command word
	Line    string // non-blocking line to dispatch
	Request WaitRequest
}

// stripLine removes the checksum and trailing comment of a command line.
func stripLine(line string) string {
	if i := strings.IndexByte(line, ';'); i >= 0 {
		line = line[:i]
	}
	if i := strings.IndexByte(line, '*'); i >= 0 {
		line = line[:i]
	}
	return strings.TrimSpace(line)
}

// CommandOf returns the upper-cased command word of line, or "" when there is none.
func CommandOf(line string) string {
	m := reCommand.FindStringSubmatch(strings.ToUpper(stripLine(line)))
	if m == nil {
		return ""
	}
	return m[1]
}

// IsBlocking reports whether cmd is one of the set-and-wait commands.
func IsBlocking(cmd string) bool {
	_, ok := blockingPairs[cmd]
	return ok
}

// Translate turns a blocking heater command into its non-blocking twin and a wait request.
// currentTool supplies the selected tool when a primary heater command names none.
// ok is false when the line is not a blocking command or carries no S/R target.
func Translate(line string, currentTool func() int) (Translation, bool) {
	from := CommandOf(line)
	pair, ok := blockingPairs[from]
	if !ok {
		return Translation{}, false
	}
	// parameters follow the command word
	args := strings.ToUpper(stripLine(line))
	if i := strings.Index(args, from); i >= 0 {
		args = args[i+len(from):]
	}

	var (
		mode   models.ComparisonMode
		target float64
	)
	if v, found := floatParam(reFloatS, args); found {
		mode, target = models.ModeAtLeast, v
	} else if v, found := floatParam(reFloatR, args); found {
		mode, target = models.ModeWithinAbsolute, v
	} else {
		return Translation{}, false
	}

	req := WaitRequest{
		Identifier: from,
		Class:      pair.class,
		Mode:       mode,
		TargetC:    target,
	}
	out := pair.set + " S" + strconv.FormatFloat(target, 'f', -1, 64)

	if pair.class.MultiChannel() {
		tool := 0
		if m := reIntT.FindStringSubmatch(args); m != nil {
			tool, _ = strconv.Atoi(m[1])
		} else if currentTool != nil {
			tool = currentTool()
		}
		req.Channel = &tool
		out += " T" + strconv.Itoa(tool)
	}

	return Translation{From: from, To: pair.set, Line: out, Request: req}, true
}

func floatParam(re *regexp.Regexp, args string) (float64, bool) {
	m := re.FindStringSubmatch(args)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

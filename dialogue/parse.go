package dialogue

import (
	"bufio"
	"io"
	"regexp"
	"strings"
)

var (
	stageDirection = regexp.MustCompile(`\[.*?\]`)
	speakerName    = regexp.MustCompile(`^[A-Z and]+\.$`)
)

// Line is one speech: everything an actor says until the next speaker.
type Line struct {
	Actor string
	Act   string
	Text  string
}

// Act is a named act and its speeches in order.
type Act struct {
	Name  string
	Lines []Line
}

// Play is a parsed script.
type Play struct {
	Acts []Act

	// Source statistics over the content section, after stage directions
	// were removed.
	NumLines int
	NumWords int
}

// Act returns the act with the given name.
func (p *Play) Act(name string) (Act, bool) {
	for _, a := range p.Acts {
		if a.Name == name {
			return a, true
		}
	}
	return Act{}, false
}

// Lines returns all speeches of the play in order.
func (p *Play) Lines() []Line {
	var out []Line
	for _, a := range p.Acts {
		out = append(out, a.Lines...)
	}
	return out
}

// Parse reads a play in Gutenberg layout.
//
// Only text between the "***" start and end markers is read. Bracketed stage
// directions are dropped. A line starting with "ACT" opens a new act, a line
// such as "HAMLET." or "ROSENCRANTZ and GUILDENSTERN." names the speaker, and
// the following lines up to the next speaker or act form one speech.
// Speeches before the first act or speaker are ignored.
func Parse(r io.Reader) (*Play, error) {
	play := &Play{}

	var (
		inContent bool
		act       = -1
		actor     string
		speech    strings.Builder
	)

	flush := func() {
		if act >= 0 && actor != "" && speech.Len() > 0 {
			a := &play.Acts[act]
			a.Lines = append(a.Lines, Line{Actor: actor, Act: a.Name, Text: speech.String()})
		}
		speech.Reset()
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)

	for sc.Scan() {
		line := sc.Text()

		if strings.Contains(line, "***") {
			inContent = !inContent
		}
		if !inContent {
			continue
		}

		line = strings.TrimRight(line, "\r")
		line = stageDirection.ReplaceAllString(line, "")
		if line == "" {
			continue
		}

		play.NumLines++
		play.NumWords += len(strings.Fields(line))

		switch {
		case strings.HasPrefix(line, "ACT"):
			flush()
			play.Acts = append(play.Acts, Act{Name: strings.ReplaceAll(line, ".", "")})
			act = len(play.Acts) - 1
			actor = ""
		case speakerName.MatchString(line):
			flush()
			actor = strings.ReplaceAll(line, ".", "")
		case actor != "":
			if speech.Len() > 0 {
				speech.WriteByte(' ')
			}
			speech.WriteString(line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	flush()

	return play, nil
}

package gitshell

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/noah-isme/ada-judge-api/internal/dto"
)

const (
	separator = "------------------------------------"
	// clearLine erases leftovers of the previous frame.
	clearLine = "\033[K"
)

var (
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	pointsStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	timeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	otherStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))

	verdictStyles = map[string]lipgloss.Style{
		"AC":  lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		"TLE": lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		"WA":  lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
		"RE":  lipgloss.NewStyle().Foreground(lipgloss.Color("13")),
		"CE":  lipgloss.NewStyle().Foreground(lipgloss.Color("14")),
	}

	// Sub results arrive with display names.
	verdictCodes = map[string]string{
		"Accepted":            "AC",
		"Time Limit Exceeded": "TLE",
		"Wrong Answer":        "WA",
		"Runtime Error":       "RE",
		"Compile Error":       "CE",
	}
)

func styleVerdict(result string) string {
	code := result
	if mapped, ok := verdictCodes[result]; ok {
		code = mapped
	}
	if style, ok := verdictStyles[code]; ok {
		return style.Render(code)
	}
	return otherStyle.Render(code)
}

// Render draws one frame for views and reports whether every view is terminal.
func Render(views []dto.SubmissionView) (string, bool) {
	var b strings.Builder
	done := true

	b.WriteString(separator + clearLine + "\n")
	for _, view := range views {
		pad := strings.Repeat(" ", len(fmt.Sprint(view.ID)))

		b.WriteString(view.Problem.Name + clearLine + "\n")
		b.WriteString(separator + clearLine + "\n")
		fmt.Fprintf(&b, "Submission #%d:%s\n", view.ID, clearLine)

		if !view.Terminal {
			done = false
			fmt.Fprintf(&b, " Status: %s%s\n", statusStyle.Render(view.Status), clearLine)
		} else {
			verdict := "?"
			if view.Result != nil {
				verdict = *view.Result
			}
			points := 0.0
			if view.Points != nil {
				points = *view.Points
			}
			fmt.Fprintf(&b, "%sFinal Result: %s, Points: %s%s\n", pad, styleVerdict(verdict), pointsStyle.Render(fmt.Sprintf("%3.0f", points)), clearLine)
		}

		if view.ShowResult {
			for i, group := range view.SubResults {
				indent := strings.Repeat(" ", max(0, 5-len(fmt.Sprint(i))))
				fmt.Fprintf(&b, "%s%sGroup #%d: %s, Points: %s%s\n", pad, indent, i, resultCell(group.Result), pointsStyle.Render(group.Points), clearLine)
				for _, task := range group.SubResults {
					fmt.Fprintf(&b, "%s     Subtask: %s, %s%s\n", pad, resultCell(task.Result), timeStyle.Render(task.Runtime), clearLine)
				}
			}
		}
		b.WriteString(separator + clearLine + "\n")
	}

	return b.String(), done
}

func resultCell(result string) string {
	if result == "" || result == "Judging" {
		return "   "
	}
	return styleVerdict(result)
}

// Fetcher loads the submissions a session is watching.
type Fetcher func(ctx context.Context) ([]dto.SubmissionView, error)

// Watch redraws the submissions every interval until all of them are terminal.
func Watch(ctx context.Context, out io.Writer, fetch Fetcher, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		views, err := fetch(ctx)
		if err != nil {
			fmt.Fprintln(out, errorStyle.Render(err.Error())+clearLine)
			return err
		}

		frame, done := Render(views)
		fmt.Fprint(out, frame)
		if done {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		// move the cursor back to the top of the frame
		fmt.Fprintf(out, "\033[%dA", strings.Count(frame, "\n"))
	}
}

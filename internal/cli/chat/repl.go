package chat

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/cloo-solutions/ragchat/internal/service"
	"github.com/fatih/color"
)

const maxLineBytes = 1 << 20

var errLineTooLong = fmt.Errorf("question is longer than %d bytes", maxLineBytes)

// Asker answers a single question.
type Asker interface {
	Ask(ctx context.Context, question string) (*service.Answer, error)
}

// RunREPL reads one question per line from in until EOF, ctx cancellation or
// a line equal to exitKeyword (case-insensitive). A failed or over-long
// question is reported and the loop keeps going.
func RunREPL(ctx context.Context, in io.Reader, out io.Writer, asker Asker, exitKeyword string) error {
	you := color.New(color.FgGreen, color.Bold).SprintFunc()
	bot := color.New(color.FgCyan, color.Bold).SprintFunc()
	warn := color.New(color.FgYellow).SprintFunc()

	fmt.Fprintln(out, you("Chatbot ready!"))
	fmt.Fprintf(out, "Ask a question about the material. Type '%s' to quit.\n\n", exitKeyword)

	reader := bufio.NewReader(in)

	for {
		if ctx.Err() != nil {
			return nil
		}

		fmt.Fprint(out, you("You: "))
		line, err := readLine(reader)
		if errors.Is(err, errLineTooLong) {
			fmt.Fprintln(out, bot("Chatbot:"), warn(fmt.Sprintf("sorry, I couldn't answer that (%v)", err)))
			fmt.Fprintln(out)
			continue
		}
		if err != nil {
			fmt.Fprintln(out)
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		question := strings.TrimSpace(line)
		if question == "" {
			continue
		}
		if strings.EqualFold(question, strings.TrimSpace(exitKeyword)) {
			fmt.Fprintln(out, bot("Chatbot:"), "Goodbye!")
			return nil
		}

		fmt.Fprintln(out, bot("Chatbot:"), "Thinking...")

		answer, err := asker.Ask(ctx, question)
		if err != nil {
			fmt.Fprintln(out, bot("Chatbot:"), warn(fmt.Sprintf("sorry, I couldn't answer that (%v)", err)))
			fmt.Fprintln(out)
			continue
		}

		fmt.Fprintln(out, bot("Chatbot:"), answer.Response)
		fmt.Fprintln(out)
	}
}

// readLine returns the next line without its terminator. A line over
// maxLineBytes is consumed in full and reported as errLineTooLong.
func readLine(r *bufio.Reader) (string, error) {
	var buf []byte
	tooLong := false
	for {
		chunk, isPrefix, err := r.ReadLine()
		if err != nil {
			if tooLong {
				return "", errLineTooLong
			}
			if len(buf) > 0 {
				return string(buf), nil
			}
			return "", err
		}
		if !tooLong && len(buf)+len(chunk) > maxLineBytes {
			tooLong = true
			buf = nil
		}
		if !tooLong {
			buf = append(buf, chunk...)
		}
		if !isPrefix {
			break
		}
	}
	if tooLong {
		return "", errLineTooLong
	}
	return string(buf), nil
}
